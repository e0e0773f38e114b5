package image

import (
	"encoding/json"
	"fmt"
	"time"
)

// Resource represents an image as described by the remote media service.
type Resource struct {
	AssetID    string    `json:"asset_id"`
	PublicID   string    `json:"public_id"`
	Format     string    `json:"format,omitempty"`
	Version    int64     `json:"version,omitempty"`
	Type       string    `json:"type,omitempty"`
	Bytes      int64     `json:"bytes,omitempty"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	Folder     string    `json:"folder"`
	URL        string    `json:"url"`
	SecureURL  string    `json:"secure_url,omitempty"`
	Tags       []string  `json:"tags"`
	CreatedAt  time.Time `json:"created_at"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// SearchResult is the envelope returned by the remote search endpoint.
type SearchResult struct {
	TotalCount int        `json:"total_count"`
	Time       int64      `json:"time"`
	Resources  []Resource `json:"resources"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// Upload describes a file received by the upload bridge. It only lives for
// the duration of one request.
type Upload struct {
	// Path is the temporary location of the received file.
	Path string
	// Filename is the name the client sent with the file part.
	Filename string
	// GeneratedName is the server-assigned name of the temporary file.
	GeneratedName string
	// PublicID overrides GeneratedName as the remote identifier when set.
	PublicID    string
	Folder      string
	Tags        []string
	Size        int64
	ContentType string
}

// RemoteID returns the identifier the uploaded resource is pinned to.
func (u Upload) RemoteID() string {
	if u.PublicID != "" {
		return u.PublicID
	}
	return u.GeneratedName
}

// DecodeSearchResult decodes a raw search envelope.
func DecodeSearchResult(data []byte) (*SearchResult, error) {
	var result SearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode search result: %w", err)
	}
	return &result, nil
}

// DecodeResource decodes a raw resource description.
func DecodeResource(data []byte) (*Resource, error) {
	var res Resource
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("decode resource: %w", err)
	}
	return &res, nil
}
