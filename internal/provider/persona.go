package provider

import (
	"fmt"

	"DebateArena/internal/debate"
)

const (
	minIntensity = 0.0
	maxIntensity = 2.0
)

var personaPrompts = map[debate.Persona]string{
	debate.Devil: "You are the Devil's Advocate in a two-person debate. Challenge the " +
		"position in front of you, expose weak assumptions, hidden costs and unintended " +
		"consequences, and argue the contrary case even if it is unpopular. Never agree " +
		"outright.",
	debate.Optimist: "You are the Optimist in a two-person debate. Argue for the " +
		"opportunities and benefits of the position in front of you, answer criticism " +
		"with constructive counterpoints and concrete upsides, and stay hopeful without " +
		"ignoring facts.",
}

// ClampIntensity bounds x to the supported [0, 2] range
func ClampIntensity(x float64) float64 {
	switch {
	case x < minIntensity:
		return minIntensity
	case x > maxIntensity:
		return maxIntensity
	}
	return x
}

// SystemPrompt builds the persona instructions for the given intensity
func SystemPrompt(persona debate.Persona, intensity float64) string {
	intensity = ClampIntensity(intensity)

	var tone string
	switch {
	case intensity < 0.75:
		tone = "Keep your tone mild and courteous."
	case intensity < 1.25:
		tone = "Keep your tone firm but balanced."
	default:
		tone = "Be forceful, pointed and uncompromising."
	}

	return fmt.Sprintf("%s %s Reply in at most three short paragraphs.", personaPrompts[persona], tone)
}

// Temperature maps intensity onto a sampling temperature in [0.4, 1.0]
func Temperature(intensity float64) float64 {
	return 0.4 + 0.3*ClampIntensity(intensity)
}
