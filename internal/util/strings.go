package util

import "strings"

// StripCodeFences removes a leading markdown code fence (with optional
// language tag) and a trailing fence from text. Model output frequently wraps
// code in ``` blocks even when asked for raw code.
func StripCodeFences(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		rest := text[3:]
		if idx := strings.IndexByte(rest, '\n'); idx >= 0 {
			// drop the language tag line
			text = rest[idx+1:]
		} else {
			text = strings.TrimSpace(rest)
		}
	}

	text = strings.TrimSpace(text)
	if strings.HasSuffix(text, "```") {
		text = strings.TrimSpace(text[:len(text)-3])
	}

	return text
}
