// Package imagestore abstracts the external image-hosting service the journal
// stores entry images and avatars in.
package imagestore

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"strings"
)

// Constraints are normalization hints passed along with an upload. The
// serving side applies them; the store only records them.
type Constraints struct {
	MaxWidth  int
	MaxHeight int
	Quality   string
}

// EntryImage is the constraint set for diary entry images.
var EntryImage = Constraints{MaxWidth: 800, MaxHeight: 600, Quality: "auto:good"}

// Avatar is the constraint set for profile pictures.
var Avatar = Constraints{MaxWidth: 300, MaxHeight: 300, Quality: "auto"}

// DeleteStatus is the tri-state outcome of a delete call.
type DeleteStatus int

const (
	// StatusDeleted means the reference existed and is gone now.
	StatusDeleted DeleteStatus = iota
	// StatusAlreadyAbsent means the reference was unknown or already removed.
	StatusAlreadyAbsent
	// StatusFailed means the store could not complete the delete; the
	// accompanying error says why.
	StatusFailed
)

// Store uploads image payloads and deletes them by reference.
type Store interface {
	// Upload stores a base64 image payload and returns a durable reference.
	Upload(ctx context.Context, payload string, c Constraints) (string, error)

	// Delete removes a previously stored image. Unknown and already-deleted
	// references are not errors: they report StatusAlreadyAbsent with a nil
	// error.
	Delete(ctx context.Context, reference string) (DeleteStatus, error)
}

// decodePayload decodes a data URI ("data:image/png;base64,...") or a bare
// base64 string into raw bytes and a content type.
func decodePayload(payload string) ([]byte, string, error) {
	contentType := "application/octet-stream"
	encoded := payload

	if strings.HasPrefix(payload, "data:") {
		meta, rest, ok := strings.Cut(payload[len("data:"):], ",")
		if !ok {
			return nil, "", fmt.Errorf("malformed data URI")
		}
		encoded = rest
		meta = strings.TrimSuffix(meta, ";base64")
		if meta != "" {
			if mt, _, err := mime.ParseMediaType(meta); err == nil {
				contentType = mt
			}
		}
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image payload: %w", err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("empty image payload")
	}
	return data, contentType, nil
}

// extensionFor maps a content type to a file extension for storage keys.
func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	default:
		return "bin"
	}
}
