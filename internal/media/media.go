package media

import (
	"context"
	"net/url"
	"path"
	"strings"
)

// Store is the external object-store collaborator. Uploads happen out of band;
// this subsystem mostly deletes media when a message is hidden for everyone.
type Store interface {
	Upload(ctx context.Context, filename, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, key string) error
}

var (
	imageExts = map[string]struct{}{
		".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {},
		".bmp": {}, ".svg": {}, ".heic": {}, ".heif": {}, ".tiff": {},
	}
	videoExts = map[string]struct{}{
		".mp4": {}, ".webm": {}, ".mov": {}, ".avi": {}, ".mkv": {}, ".m4v": {},
	}
	audioExts = map[string]struct{}{
		".mp3": {}, ".wav": {}, ".ogg": {}, ".m4a": {}, ".aac": {}, ".flac": {},
	}
)

// KindFromURL infers an attachment kind (image/video/audio/file) from the URL
// extension, in that precedence.
func KindFromURL(raw string) string {
	ext := strings.ToLower(path.Ext(stripQuery(raw)))
	if _, ok := imageExts[ext]; ok {
		return "image"
	}
	if _, ok := videoExts[ext]; ok {
		return "video"
	}
	if _, ok := audioExts[ext]; ok {
		return "audio"
	}
	return "file"
}

// ExtractKey recovers the object key from a public URL produced by Upload.
// Returns false for URLs that don't belong to the store.
func ExtractKey(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", false
	}
	if !strings.Contains(u.Host, ".s3.") && !strings.Contains(u.Host, ".amazonaws.com") {
		return "", false
	}
	key := strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", false
	}
	unescaped, err := url.PathUnescape(key)
	if err != nil {
		return key, true
	}
	return unescaped, true
}

func stripQuery(raw string) string {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		return raw[:i]
	}
	return raw
}
