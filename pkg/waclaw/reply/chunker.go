package reply

import "strings"

// Provider outbound size caps.
const (
	TelephonyMaxChars = 1600
	WebMaxChars       = 4000
)

// Chunk splits text into pieces no longer than maxLen, preferring newline
// boundaries, then word boundaries, and only ever splitting mid-word when a
// single word itself exceeds maxLen. Order is preserved and no empty chunk
// is ever returned.
func Chunk(text string, maxLen int) []string {
	if maxLen <= 0 {
		if text == "" {
			return nil
		}
		return []string{text}
	}
	if text == "" {
		return nil
	}
	if len(text) <= maxLen {
		return []string{text}
	}

	var chunks []string
	paragraphs := strings.Split(text, "\n")

	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}

	for pi, para := range paragraphs {
		sep := "\n"
		if pi == len(paragraphs)-1 {
			sep = ""
		}
		line := para + sep

		for len(line) > 0 {
			room := maxLen - current.Len()
			if room <= 0 {
				flush()
				room = maxLen
			}

			if len(line) <= room {
				current.WriteString(line)
				line = ""
				continue
			}

			// Need to split. Prefer the last word boundary within room.
			cut := lastBreakableIndex(line, room)
			if cut <= 0 {
				// No boundary at all (single long word) — hard split.
				if room <= 0 {
					flush()
					room = maxLen
				}
				cut = room
				if cut > len(line) {
					cut = len(line)
				}
			}

			current.WriteString(line[:cut])
			line = line[cut:]
			flush()
		}
	}
	flush()

	if len(chunks) == 0 && text != "" {
		chunks = []string{text}
	}
	return chunks
}

// lastBreakableIndex returns the index just after the last whitespace run
// at or before limit, or -1 if none exists.
func lastBreakableIndex(s string, limit int) int {
	if limit > len(s) {
		limit = len(s)
	}
	for i := limit; i > 0; i-- {
		if s[i-1] == ' ' || s[i-1] == '\t' {
			return i
		}
	}
	return -1
}
