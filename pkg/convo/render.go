package convo

import "strings"

// RenderTranscript flattens a transcript to "role: text" lines, one per turn.
// The same rendering feeds summarization prompts and the transcript export.
func RenderTranscript(turns []Turn) string {
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, t.Role.String()+": "+t.Text)
	}
	return strings.Join(lines, "\n")
}

// LastUserText returns the most recent user utterance, or "".
func LastUserText(turns []Turn) string {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == RoleUser {
			return turns[i].Text
		}
	}
	return ""
}
