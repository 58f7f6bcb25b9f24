package debate

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Provider produces a persona reply for a prompt
type Provider interface {
	Reply(ctx context.Context, req Request) (string, error)
}

// ProviderFunc adapts a function to Provider
type ProviderFunc func(ctx context.Context, req Request) (string, error)

// Reply calls f
func (f ProviderFunc) Reply(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Join issues every request concurrently and waits for all of them. Each
// outcome is captured in request order; a failure does not cancel the
// others.
func Join(ctx context.Context, p Provider, reqs []Request) []Outcome {
	outcomes := make([]Outcome, len(reqs))

	// No WithContext: a failing request must not cancel its sibling.
	var g errgroup.Group
	for i, req := range reqs {
		g.Go(func() error {
			text, err := p.Reply(ctx, req)
			outcomes[i] = Outcome{Persona: req.Persona, Text: text, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// FirstError returns the first failed outcome's error, if any
func FirstError(outcomes []Outcome) error {
	for _, o := range outcomes {
		if o.Err != nil {
			return o.Err
		}
	}
	return nil
}
