package reply

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
)

// MediaKind categorises a MIME type for the purposes of size limits and
// the fixed allow-list below. It is distinct from the media-URL grammar
// SplitMedia recognises — this operates on bytes already fetched or about
// to be uploaded, not on text scraped out of an agent reply.
type MediaKind string

const (
	MediaKindImage    MediaKind = "image"
	MediaKindAudio    MediaKind = "audio"
	MediaKindVideo    MediaKind = "video"
	MediaKindDocument MediaKind = "document"
)

// allowedMediaMime is the fixed set of MIME types a channel adapter is
// permitted to upload or persist a download of. Anything else is rejected
// outright rather than forwarded blind to a provider API.
var allowedMediaMime = map[string]MediaKind{
	"image/jpeg": MediaKindImage,
	"image/png":  MediaKindImage,
	"image/gif":  MediaKindImage,
	"image/webp": MediaKindImage,

	"audio/mpeg":  MediaKindAudio,
	"audio/mp3":   MediaKindAudio,
	"audio/ogg":   MediaKindAudio,
	"audio/wav":   MediaKindAudio,
	"audio/x-wav": MediaKindAudio,
	"audio/webm":  MediaKindAudio,
	"audio/mp4":   MediaKindAudio,
	"audio/x-m4a": MediaKindAudio,

	"video/mp4":       MediaKindVideo,
	"video/webm":      MediaKindVideo,
	"video/quicktime": MediaKindVideo,

	"application/pdf":  MediaKindDocument,
	"text/plain":        MediaKindDocument,
	"text/csv":          MediaKindDocument,
	"text/markdown":     MediaKindDocument,
	"application/json":  MediaKindDocument,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": MediaKindDocument,
}

// extensionMimeFallback covers the cases where http.DetectContentType's
// 512-byte sniff returns the generic application/octet-stream — common for
// small or headerless audio clips.
var extensionMimeFallback = map[string]string{
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".ogg":  "audio/ogg",
	".wav":  "audio/wav",
	".weba": "audio/webm",
	".pdf":  "application/pdf",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".txt":  "text/plain",
	".md":   "text/markdown",
	".json": "application/json",
	".csv":  "text/csv",
}

// DetectMediaMime sniffs data's content type, falling back to an extension
// lookup when the sniff is too generic to be useful.
func DetectMediaMime(data []byte, filename string) string {
	detected := http.DetectContentType(data)
	if detected != "application/octet-stream" && !strings.HasPrefix(detected, "text/plain") {
		return detected
	}
	if alt, ok := extensionMimeFallback[strings.ToLower(filepath.Ext(filename))]; ok {
		return alt
	}
	return detected
}

// ValidateMedia checks size against maxMB and MIME type against the fixed
// allow-list, returning the media kind on success. maxMB <= 0 disables the
// size check.
func ValidateMedia(data []byte, mimeType string, maxMB int) (MediaKind, error) {
	bare := strings.TrimSpace(strings.Split(mimeType, ";")[0])
	kind, allowed := allowedMediaMime[bare]
	if !allowed {
		return "", fmt.Errorf("media: mime type %q is not permitted", bare)
	}
	if maxMB > 0 && int64(len(data)) > int64(maxMB)*1024*1024 {
		return "", fmt.Errorf("media: %d bytes exceeds the %dMB cap", len(data), maxMB)
	}
	return kind, nil
}
