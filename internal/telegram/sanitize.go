package telegram

import (
	"fmt"
	"strings"
)

// The transport's inline markup dialect: four tag kinds, open/close pairs,
// no attributes. Everything else must arrive escaped or the API rejects
// the whole message.
var allowedTags = []string{
	"<b>", "</b>",
	"<i>", "</i>",
	"<code>", "</code>",
	"<pre>", "</pre>",
}

// Sanitize normalizes free-form rich text into transport-safe markup:
// recognized tags pass through, every other markup-significant character
// is escaped, and unbalanced tag nesting is repaired. Total over all
// inputs and side-effect free.
func Sanitize(text string) string {
	// NUL can't appear in a transport message and is used as the
	// placeholder sentinel below.
	text = strings.ReplaceAll(text, "\x00", "")

	// Pass 1: pull recognized tag tokens out, remember them in order.
	var tags []string
	var sb strings.Builder
	sb.Grow(len(text))
	for i := 0; i < len(text); {
		if text[i] == '<' {
			if tag, ok := matchTag(text[i:]); ok {
				sb.WriteString(placeholder(len(tags)))
				tags = append(tags, tag)
				i += len(tag)
				continue
			}
		}
		sb.WriteByte(text[i])
		i++
	}

	// Pass 2: escape everything that is not a tag token.
	escaped := escapeMarkup(sb.String())

	// Pass 3: restore the tag tokens.
	for idx, tag := range tags {
		escaped = strings.Replace(escaped, placeholder(idx), tag, 1)
	}

	return repairBalance(escaped)
}

func placeholder(n int) string {
	return fmt.Sprintf("\x00%d\x00", n)
}

// escapeMarkup escapes the three markup-significant characters.
// & goes first so already-escaped output isn't double-touched.
func escapeMarkup(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

// matchTag reports whether s begins with a recognized tag token.
func matchTag(s string) (string, bool) {
	for _, tag := range allowedTags {
		if strings.HasPrefix(s, tag) {
			return tag, true
		}
	}
	return "", false
}

func isCloseTag(tag string) bool {
	return strings.HasPrefix(tag, "</")
}

func tagName(tag string) string {
	return strings.Trim(tag, "</>")
}

// repairBalance walks the text tracking an open-tag stack. A closing tag
// that doesn't match the top of the stack is dropped; tags still open at
// the end of the string are closed in LIFO order.
func repairBalance(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	var stack []string

	for i := 0; i < len(s); {
		if s[i] == '<' {
			if tag, ok := matchTag(s[i:]); ok {
				if isCloseTag(tag) {
					if len(stack) > 0 && stack[len(stack)-1] == tagName(tag) {
						stack = stack[:len(stack)-1]
						sb.WriteString(tag)
					}
					// Mismatched closer: dropped, stack untouched.
				} else {
					stack = append(stack, tagName(tag))
					sb.WriteString(tag)
				}
				i += len(tag)
				continue
			}
		}
		sb.WriteByte(s[i])
		i++
	}

	for i := len(stack) - 1; i >= 0; i-- {
		sb.WriteString("</" + stack[i] + ">")
	}
	return sb.String()
}
