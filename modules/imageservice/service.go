package imageservice

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/actyvystom/cloudinary-demo/domain/image"
	"github.com/actyvystom/cloudinary-demo/modules/cloudinary"
	"github.com/go-monolith/mono/pkg/types"
)

// MediaClient is the part of the remote media service the bridges use.
type MediaClient interface {
	Upload(ctx context.Context, path string, params cloudinary.UploadParams) (json.RawMessage, error)
	Search(ctx context.Context, params cloudinary.SearchParams) (json.RawMessage, error)
}

// validateImageID rejects identifiers that cannot be embedded in a search expression.
func validateImageID(publicID string) error {
	if strings.TrimSpace(publicID) == "" {
		return ErrInvalidImageID
	}
	if strings.ContainsAny(publicID, `"\`) || strings.IndexFunc(publicID, unicode.IsControl) >= 0 {
		return fmt.Errorf("%w: %q", ErrInvalidImageID, publicID)
	}
	return nil
}

// remoteError wraps a client failure so callers can classify it with errors.Is.
func remoteError(err error) error {
	return fmt.Errorf("%w: %w", ErrRemoteService, err)
}

// Service forwards gallery operations to the remote media service. It keeps
// no state between calls.
type Service struct {
	media  MediaClient
	logger types.Logger
}

// NewService creates a new image service backed by media.
func NewService(media MediaClient, logger types.Logger) *Service {
	return &Service{media: media, logger: logger}
}

// UploadImage forwards a received upload as exactly one remote upload call.
func (s *Service) UploadImage(ctx context.Context, upload image.Upload) (*UploadResult, error) {
	if upload.Path == "" {
		return nil, fmt.Errorf("%w: no file received", ErrMalformedUpload)
	}
	start := time.Now()

	raw, err := s.media.Upload(ctx, upload.Path, cloudinary.UploadParams{
		PublicID:    upload.RemoteID(),
		Folder:      upload.Folder,
		Tags:        upload.Tags,
		ContentType: upload.ContentType,
	})
	if err != nil {
		s.logger.Error("Remote upload failed",
			"filename", upload.Filename,
			"public_id", upload.RemoteID(),
			"error", err)
		return nil, remoteError(err)
	}

	publicID := upload.RemoteID()
	if res, err := image.DecodeResource(raw); err == nil && res.PublicID != "" {
		publicID = res.PublicID
	}

	result := &UploadResult{
		Resource:   raw,
		PublicID:   publicID,
		DurationMs: time.Since(start).Milliseconds(),
	}
	s.logger.Info("Image uploaded",
		"filename", upload.Filename,
		"public_id", publicID,
		"size", upload.Size,
		"duration_ms", result.DurationMs)
	return result, nil
}

// ListImages returns the gallery listing: the most recent images with tags.
func (s *Service) ListImages(ctx context.Context) (*QueryResult, error) {
	start := time.Now()

	raw, err := s.media.Search(ctx, cloudinary.SearchParams{
		MaxResults: galleryMaxResults,
		WithFields: []string{tagsField},
	})
	if err != nil {
		s.logger.Error("Remote image listing failed", "error", err)
		return nil, remoteError(err)
	}

	result := &QueryResult{Envelope: raw, DurationMs: time.Since(start).Milliseconds()}
	if env, err := image.DecodeSearchResult(raw); err == nil {
		result.Count = len(env.Resources)
	}
	return result, nil
}

// GetImage looks up a single image by its public identifier.
func (s *Service) GetImage(ctx context.Context, publicID string) (*QueryResult, error) {
	if err := validateImageID(publicID); err != nil {
		return nil, err
	}
	start := time.Now()

	raw, err := s.media.Search(ctx, cloudinary.SearchParams{
		Expression: cloudinary.ExactMatch("public_id", publicID),
		MaxResults: 1,
		WithFields: []string{tagsField},
	})
	if err != nil {
		if cloudinary.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %q", ErrImageNotFound, publicID)
		}
		s.logger.Error("Remote image lookup failed", "public_id", publicID, "error", err)
		return nil, remoteError(err)
	}

	env, err := image.DecodeSearchResult(raw)
	if err != nil {
		return nil, remoteError(err)
	}
	if len(env.Resources) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrImageNotFound, publicID)
	}

	return &QueryResult{
		Envelope:   raw,
		Count:      len(env.Resources),
		DurationMs: time.Since(start).Milliseconds(),
	}, nil
}
