package illustration

import (
	"fmt"
	"strings"
)

// keywordsFrom extracts the interesting tokens of a prompt: lowercased runs
// of letters/digits longer than three characters.
func keywordsFrom(text string) []string {
	lowered := strings.ToLower(strings.TrimSpace(text))
	fields := strings.FieldsFunc(lowered, func(r rune) bool {
		return (r < 'a' || r > 'z') && (r < '0' || r > '9')
	})

	keywords := fields[:0]
	for _, f := range fields {
		if len(f) > 3 {
			keywords = append(keywords, f)
		}
	}
	return keywords
}

// ResolveAction decides between updating the current canvas and expanding it.
// An explicit requested action wins; otherwise a prompt introducing keywords
// unseen in the scene history means a new topic, which expands the canvas.
func ResolveAction(history []string, latestPrompt, requestedAction string) string {
	if requestedAction != "" && requestedAction != "auto" {
		return requestedAction
	}
	if len(history) == 0 {
		return ActionUpdate
	}

	previous := make(map[string]bool)
	for _, prompt := range history {
		for _, term := range keywordsFrom(prompt) {
			previous[term] = true
		}
	}

	for _, term := range keywordsFrom(latestPrompt) {
		if !previous[term] {
			return ActionExpand
		}
	}
	return ActionUpdate
}

// BuildPrompt assembles the illustration-model prompt from the scene state
// and the latest focus.
func BuildPrompt(scene Scene, latestPrompt, action string) string {
	lines := []string{
		"You are the illustration model for live children's storytelling.",
		"Illustrate in a kawaii, picture-book style with soft rounded characters, large expressive eyes, and pastel colors.",
		"Keep lines clean, shading simple, and make everything friendly, cozy, and safe for children aged 3-10.",
		"Ensure characters and props remain consistent between frames unless the story explicitly changes them.",
	}

	if len(scene.History) > 0 {
		var recap strings.Builder
		for i, prompt := range scene.History {
			fmt.Fprintf(&recap, " (%d) %s;", i+1, prompt)
		}
		lines = append(lines, fmt.Sprintf("So far the story scene includes:%s Respect those established details.",
			strings.TrimSuffix(recap.String(), ";")))
	}

	if len(scene.Conversation) > 0 {
		recent := scene.Conversation
		if len(recent) > 3 {
			recent = recent[len(recent)-3:]
		}
		var dialogue strings.Builder
		for i, ex := range recent {
			fmt.Fprintf(&dialogue, "Turn %d: child said %q and helper replied %q. ", i+1, ex.Child, ex.Assistant)
		}
		lines = append(lines, fmt.Sprintf("Recent dialogue to incorporate: %sUse the helper's reply to guide the atmosphere and the child's intent.",
			dialogue.String()))
	}

	if action == ActionExpand {
		lines = append(lines, "Expand the existing canvas to keep prior elements visible while adding new subjects.")
	} else {
		lines = append(lines, "Update existing elements in place, refining colors, props, or expressions if needed.")
	}

	lines = append(lines,
		fmt.Sprintf("Focus for this update: %s. Blend it into the ongoing scene in a playful way.", latestPrompt),
		"Return an updated illustration that reflects the complete scene so far.",
	)

	return strings.Join(lines, "\n")
}
