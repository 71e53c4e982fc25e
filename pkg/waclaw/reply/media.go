package reply

import (
	"os"
	"regexp"
	"strings"
)

// mediaExtensions is the fixed allowlist of file extensions recognised as
// local media paths. Per the design's open question on the media-URL
// grammar, this list is intentionally not widened beyond what the design
// states: absolute http(s) URLs, and absolute filesystem paths recognised
// by extension.
var mediaExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
	".mp3": true, ".ogg": true, ".wav": true, ".m4a": true,
	".mp4": true, ".mov": true, ".webm": true,
	".pdf": true, ".doc": true, ".docx": true,
}

var urlRE = regexp.MustCompile(`https?://[^\s]+`)

// absPathRE matches absolute filesystem paths (unix-style) with a
// recognised media extension.
var absPathRE = regexp.MustCompile(`/[^\s]+\.[A-Za-z0-9]+`)

// SplitMedia extracts media URLs/paths from agent text, returning the
// remaining prose and the extracted references in order of appearance.
func SplitMedia(text string) (prose string, mediaRefs []string) {
	var refs []string

	text = urlRE.ReplaceAllStringFunc(text, func(m string) string {
		refs = append(refs, m)
		return ""
	})

	text = absPathRE.ReplaceAllStringFunc(text, func(m string) string {
		if hasMediaExtension(m) {
			refs = append(refs, m)
			return ""
		}
		return m
	})

	prose = strings.TrimSpace(strings.Join(strings.Fields(text), " "))
	return prose, refs
}

func hasMediaExtension(path string) bool {
	idx := strings.LastIndex(path, ".")
	if idx < 0 {
		return false
	}
	ext := strings.ToLower(path[idx:])
	return mediaExtensions[ext]
}

// isHTTPURL reports whether ref is an http(s) URL (passes through
// unconditionally, regardless of size).
func isHTTPURL(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// FilterMediaBySize drops local media paths whose file size exceeds
// maxMB, keeping http(s) URLs unconditionally. maxMB <= 0 disables the
// cap (everything passes).
func FilterMediaBySize(refs []string, maxMB int) []string {
	if maxMB <= 0 {
		return refs
	}
	maxBytes := int64(maxMB) * 1024 * 1024
	kept := make([]string, 0, len(refs))
	for _, ref := range refs {
		if isHTTPURL(ref) {
			kept = append(kept, ref)
			continue
		}
		info, err := os.Stat(ref)
		if err != nil {
			// Can't probe it — don't silently drop a reference the agent
			// explicitly produced; let the dispatch layer surface the error.
			kept = append(kept, ref)
			continue
		}
		if info.Size() <= maxBytes {
			kept = append(kept, ref)
		}
	}
	return kept
}
