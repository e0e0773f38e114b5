package imageservice

import "encoding/json"

const (
	// galleryMaxResults caps the gallery listing.
	galleryMaxResults = 10
	tagsField         = "tags"
)

// UploadResult is the outcome of a forwarded upload.
type UploadResult struct {
	// Resource is the remote resource description, unmodified.
	Resource   json.RawMessage
	PublicID   string
	DurationMs int64
}

// QueryResult is the outcome of a forwarded search.
type QueryResult struct {
	// Envelope is the remote search envelope, unmodified.
	Envelope   json.RawMessage
	Count      int
	DurationMs int64
}
