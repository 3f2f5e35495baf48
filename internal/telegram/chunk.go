package telegram

import "strings"

// SplitMessage splits text into chunks of at most maxLen bytes, preferring
// to cut at the last newline in the window when that newline sits in the
// second half. The newline is left at the head of the remainder, so
// concatenating the chunks reproduces the input exactly.
//
// Splitting runs on pre-sanitized text and never cuts inside a recognized
// tag token; a cut that would land mid-tag is moved back to the tag's
// opening bracket.
func SplitMessage(text string, maxLen int) []string {
	if maxLen <= 0 || len(text) <= maxLen {
		return []string{text}
	}

	var chunks []string
	for len(text) > maxLen {
		cut := strings.LastIndex(text[:maxLen], "\n")
		if cut <= 0 || cut < maxLen/2 {
			cut = maxLen
		}
		if p := straddlingTagStart(text, cut); p > 0 {
			cut = p
		}
		chunks = append(chunks, text[:cut])
		text = text[cut:]
	}
	return append(chunks, text)
}

// straddlingTagStart returns the position of a recognized tag token that
// begins before cut and extends past it, or 0 when the cut is safe.
func straddlingTagStart(text string, cut int) int {
	p := strings.LastIndexByte(text[:cut], '<')
	if p <= 0 {
		return 0
	}
	if strings.IndexByte(text[p:cut], '>') >= 0 {
		// The token closed before the cut.
		return 0
	}
	if tag, ok := matchTag(text[p:]); ok && p+len(tag) > cut {
		return p
	}
	return 0
}
