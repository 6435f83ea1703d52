package ai

import (
	"fmt"
	"strings"

	"github.com/veilgate/ludens/internal/ai/emotion"
	"github.com/veilgate/ludens/pkg/memory"
)

// dialogSystemPrompt builds the system prompt for a dialog completion:
// persona, current mood, relevant memories, and the scene context.
func dialogSystemPrompt(name, personality, mood string, memories []memory.Record, sceneContext string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s, a character in a living game world.\n", name)
	if personality != "" {
		fmt.Fprintf(&b, "Personality: %s\n", personality)
	}
	if mood != "" {
		fmt.Fprintf(&b, "Current mood: you are feeling %s.\n", mood)
	}

	if len(memories) > 0 {
		b.WriteString("\nWhat you remember:\n")
		b.WriteString(memory.Summarize(memories))
	}

	if sceneContext != "" {
		fmt.Fprintf(&b, "\nScene: %s\n", sceneContext)
	}

	b.WriteString("\nStay in character. Reply with a single spoken line, no narration or quotation marks.")
	return b.String()
}

// decisionSystemPrompt builds the system prompt for a decision completion:
// persona, the full emotional state, and relevant memories.
func decisionSystemPrompt(name, personality string, emotions map[string]float64, memories []memory.Record, sceneContext string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s, a character in a living game world.\n", name)
	if personality != "" {
		fmt.Fprintf(&b, "Personality: %s\n", personality)
	}

	b.WriteString("Emotional state:\n")
	for _, emo := range emotion.Emotions {
		fmt.Fprintf(&b, "  %s: %.2f\n", emo, emotions[emo])
	}

	if len(memories) > 0 {
		b.WriteString("\nWhat you remember:\n")
		b.WriteString(memory.Summarize(memories))
	}

	if sceneContext != "" {
		fmt.Fprintf(&b, "\nScene: %s\n", sceneContext)
	}

	b.WriteString("\nChoose the option that best fits your character and state. Reply with the option text only.")
	return b.String()
}

// decisionQuestion lists the options as the user turn of a decision
// completion.
func decisionQuestion(options []string) string {
	var b strings.Builder
	b.WriteString("Your options:\n")
	for i, opt := range options {
		fmt.Fprintf(&b, "%d. %s\n", i+1, opt)
	}
	b.WriteString("Which do you choose?")
	return b.String()
}
