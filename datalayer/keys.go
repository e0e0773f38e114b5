package datalayer

import (
	"net/url"
	"strings"
)

// ImagesKey addresses the gallery listing.
const ImagesKey = "/api/images"

// ImageKey addresses a single image. Folder separators in publicID are kept
// as path segments; everything else is escaped.
func ImageKey(publicID string) string {
	segments := strings.Split(publicID, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return ImagesKey + "/" + strings.Join(segments, "/")
}
