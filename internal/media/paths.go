// Package media builds object-storage keys for user uploads.
package media

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// defaultExtension is used when no MIME type accompanies the upload.
const defaultExtension = "jpg"

// Kind is the media folder an upload lands in.
type Kind string

const (
	KindImage Kind = "images"
	KindVideo Kind = "videos"
)

// KindForMIME picks the storage folder from the MIME type prefix. Anything
// that is not a video is stored with images.
func KindForMIME(mimeType string) Kind {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "video/") {
		return KindVideo
	}
	return KindImage
}

// ExtensionForMIME derives a file extension from the MIME subtype, with jpg
// as the default when the type is absent or unusable.
func ExtensionForMIME(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	idx := strings.IndexByte(mimeType, '/')
	if idx < 0 || idx == len(mimeType)-1 {
		return defaultExtension
	}
	subtype := mimeType[idx+1:]
	if plus := strings.IndexByte(subtype, '+'); plus > 0 {
		subtype = subtype[:plus]
	}
	switch subtype {
	case "", "*":
		return defaultExtension
	case "jpeg":
		return "jpg"
	case "quicktime":
		return "mov"
	default:
		return subtype
	}
}

// ObjectKey builds the storage path for an event media upload:
// events/{userID}/images/{uuid}.{ext} or events/{userID}/videos/{uuid}.{ext}.
func ObjectKey(userID, mimeType string) string {
	return fmt.Sprintf("events/%s/%s/%s.%s",
		strings.TrimSpace(userID), KindForMIME(mimeType), uuid.NewString(), ExtensionForMIME(mimeType))
}
