// Package debate drives a fixed-length debate between two personas, a
// devil's advocate and an optimist, each backed by a remote Response
// Provider.
//
// # Session Lifecycle
//
// A debate session moves through four states:
//
//   - Idle: no debate has been started yet
//   - AwaitingInitialReplies: both personas answer the topic concurrently
//   - AwaitingRoundReplies: rebuttal rounds, devil first, then optimist
//   - Concluded: the round cap was reached or a provider call failed
//
// Transitions are pure functions (Start, SubmitReply, Fail) that return the
// next Session together with the Effects to perform. The Orchestrator
// interprets those effects against a Provider and a Sink, which keeps the
// state machine testable without a network.
//
// # Usage
//
//	transcripts := debate.NewTranscripts()
//	orch := debate.NewOrchestrator(client, transcripts, debate.DefaultParams(), logger)
//	sess, err := orch.Run(ctx, "universal basic income")
package debate
