// Package storage uploads user media (avatars, cover images) to object
// storage and returns their public URLs.
package storage

import (
	"path"
	"strings"

	"github.com/google/uuid"
)

// objectKey builds <prefix>/<uuid><ext>. The client filename only
// contributes its extension.
func objectKey(prefix, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if len(ext) > 8 || strings.ContainsAny(ext, "/\\ ") {
		ext = ""
	}
	return strings.Trim(prefix, "/") + "/" + uuid.NewString() + ext
}

func publicURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}
