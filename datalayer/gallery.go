package datalayer

import (
	"context"
	"io"
	"net/http"

	"github.com/actyvystom/cloudinary-demo/domain/image"
)

// Gallery reads images through the cache and revalidates the listing after
// every successful upload.
type Gallery struct {
	client *Client
	cache  *Cache
}

// NewGallery creates a gallery backed by client.
func NewGallery(client *Client, cfg Config) *Gallery {
	return &Gallery{
		client: client,
		cache:  NewCache(client.Fetch, cfg),
	}
}

// Cache exposes the underlying cache for state inspection.
func (g *Gallery) Cache() *Cache {
	return g.cache
}

// Images returns the gallery listing.
func (g *Gallery) Images(ctx context.Context) (*image.SearchResult, error) {
	entry, err := g.cache.Get(ctx, ImagesKey)
	if err != nil {
		return nil, err
	}
	return decodeListing(ImagesKey, entry.Data)
}

// Image returns a single image by its public identifier.
func (g *Gallery) Image(ctx context.Context, publicID string) (*image.Resource, error) {
	key := ImageKey(publicID)
	entry, err := g.cache.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	result, err := decodeListing(key, entry.Data)
	if err != nil {
		return nil, err
	}
	if len(result.Resources) == 0 {
		return nil, &ClientFetchError{Key: key, StatusCode: http.StatusNotFound, Code: "not_found", Message: "image " + publicID + " not found"}
	}
	return &result.Resources[0], nil
}

// UploadResult is the outcome of a successful upload.
type UploadResult struct {
	Resource *image.Resource
	// Listing is the revalidated gallery listing, nil when ListingErr is set.
	Listing    *image.SearchResult
	ListingErr error
}

// Upload sends the file and, when the server answers 201, revalidates the
// gallery listing so it includes the new image. A failed revalidation does
// not fail the upload; it is reported in ListingErr.
func (g *Gallery) Upload(ctx context.Context, filename string, r io.Reader, opts UploadOptions) (*UploadResult, error) {
	raw, err := g.client.Upload(ctx, filename, r, opts)
	if err != nil {
		return nil, err
	}
	res, err := image.DecodeResource(raw)
	if err != nil {
		return nil, &ClientFetchError{Key: UploadPath, StatusCode: http.StatusCreated, Message: err.Error(), Err: err}
	}

	result := &UploadResult{Resource: res}
	entry, err := g.cache.Revalidate(ctx, ImagesKey)
	if err == nil {
		result.Listing, err = decodeListing(ImagesKey, entry.Data)
	}
	result.ListingErr = err
	return result, nil
}

func decodeListing(key string, data []byte) (*image.SearchResult, error) {
	result, err := image.DecodeSearchResult(data)
	if err != nil {
		return nil, &ClientFetchError{Key: key, StatusCode: http.StatusOK, Message: err.Error(), Err: err}
	}
	return result, nil
}
