package imageservice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/actyvystom/cloudinary-demo/domain/image"
	"github.com/actyvystom/cloudinary-demo/modules/cloudinary"
	"github.com/actyvystom/cloudinary-demo/modules/cloudinary/cloudinarytest"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements types.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(msg string, args ...any)          {}
func (m *mockLogger) Info(msg string, args ...any)           {}
func (m *mockLogger) Warn(msg string, args ...any)           {}
func (m *mockLogger) Error(msg string, args ...any)          {}
func (m *mockLogger) With(args ...any) types.Logger          { return m }
func (m *mockLogger) WithError(err error) types.Logger       { return m }
func (m *mockLogger) WithModule(module string) types.Logger { return m }

// recordingClient is a MediaClient that records the parameters it receives.
type recordingClient struct {
	uploads  []cloudinary.UploadParams
	searches []cloudinary.SearchParams
	response json.RawMessage
	err      error
}

func (r *recordingClient) Upload(_ context.Context, _ string, params cloudinary.UploadParams) (json.RawMessage, error) {
	r.uploads = append(r.uploads, params)
	return r.response, r.err
}

func (r *recordingClient) Search(_ context.Context, params cloudinary.SearchParams) (json.RawMessage, error) {
	r.searches = append(r.searches, params)
	return r.response, r.err
}

func newFakeService(t *testing.T) (*Service, *cloudinarytest.Server) {
	t.Helper()
	fake := cloudinarytest.NewServer(t)
	client, err := cloudinary.NewClient(fake.Config())
	require.NoError(t, err)
	return NewService(client, &mockLogger{}), fake
}

func TestValidateImageID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"abc123", true},
		{"folder/sub/cat", true},
		{"with space", true},
		{"", false},
		{"   ", false},
		{`quo"te`, false},
		{`back\slash`, false},
		{"new\nline", false},
		{"nul\x00", false},
	}

	for _, tc := range tests {
		err := validateImageID(tc.id)
		if tc.valid {
			assert.NoError(t, err, "id %q", tc.id)
		} else {
			assert.ErrorIs(t, err, ErrInvalidImageID, "id %q", tc.id)
		}
	}
}

func TestService_UploadImage(t *testing.T) {
	svc, fake := newFakeService(t)
	path := cloudinarytest.WritePNG(t, "0b1c2d3e4f", 100, 100)

	result, err := svc.UploadImage(context.Background(), image.Upload{
		Path:          path,
		Filename:      "cat.png",
		GeneratedName: "0b1c2d3e4f",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, fake.Uploads())
	assert.Equal(t, "0b1c2d3e4f", result.PublicID)

	res, err := image.DecodeResource(result.Resource)
	require.NoError(t, err)
	assert.Equal(t, 100, res.Width)
	assert.Equal(t, 100, res.Height)
}

func TestService_UploadImageForwardsOptions(t *testing.T) {
	media := &recordingClient{response: json.RawMessage(`{"public_id":"pets/rex"}`)}
	svc := NewService(media, &mockLogger{})

	result, err := svc.UploadImage(context.Background(), image.Upload{
		Path:          "/tmp/ignored",
		GeneratedName: "generated",
		PublicID:      "rex",
		Folder:        "pets",
		Tags:          []string{"dog"},
		ContentType:   "image/png",
	})
	require.NoError(t, err)

	require.Len(t, media.uploads, 1)
	assert.Equal(t, cloudinary.UploadParams{
		PublicID:    "rex",
		Folder:      "pets",
		Tags:        []string{"dog"},
		ContentType: "image/png",
	}, media.uploads[0])
	assert.Equal(t, "pets/rex", result.PublicID)
}

func TestService_UploadImageWithoutFile(t *testing.T) {
	media := &recordingClient{}
	svc := NewService(media, &mockLogger{})

	_, err := svc.UploadImage(context.Background(), image.Upload{})
	assert.ErrorIs(t, err, ErrMalformedUpload)
	assert.Empty(t, media.uploads)
}

func TestService_UploadImageRemoteFailure(t *testing.T) {
	svc, fake := newFakeService(t)
	fake.Fail(http.StatusInternalServerError, "upstream exploded")

	_, err := svc.UploadImage(context.Background(), image.Upload{
		Path:          cloudinarytest.WritePNG(t, "x", 2, 2),
		GeneratedName: "x",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRemoteService)

	var apiErr *cloudinary.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "upstream exploded", apiErr.Message)
}

func TestService_ListImages(t *testing.T) {
	media := &recordingClient{response: json.RawMessage(`{"total_count":0,"time":1,"resources":[]}`)}
	svc := NewService(media, &mockLogger{})

	result, err := svc.ListImages(context.Background())
	require.NoError(t, err)

	require.Len(t, media.searches, 1)
	assert.Equal(t, cloudinary.SearchParams{MaxResults: 10, WithFields: []string{"tags"}}, media.searches[0])
	assert.JSONEq(t, `{"total_count":0,"time":1,"resources":[]}`, string(result.Envelope))
	assert.Equal(t, 0, result.Count)
}

func TestService_ListImagesPassesEnvelopeThrough(t *testing.T) {
	svc, _ := newFakeService(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b"} {
		_, err := svc.UploadImage(ctx, image.Upload{Path: cloudinarytest.WritePNG(t, id, 3, 3), GeneratedName: id})
		require.NoError(t, err)
	}

	first, err := svc.ListImages(ctx)
	require.NoError(t, err)
	second, err := svc.ListImages(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, first.Count)
	assert.Equal(t, string(first.Envelope), string(second.Envelope))
}

func TestService_ListImagesRemoteFailure(t *testing.T) {
	svc, fake := newFakeService(t)
	fake.Fail(http.StatusUnauthorized, "Invalid credentials")

	_, err := svc.ListImages(context.Background())
	assert.ErrorIs(t, err, ErrRemoteService)
}

func TestService_GetImage(t *testing.T) {
	svc, _ := newFakeService(t)
	ctx := context.Background()
	_, err := svc.UploadImage(ctx, image.Upload{
		Path:          cloudinarytest.WritePNG(t, "cat", 100, 100),
		GeneratedName: "cat",
		Folder:        "animals",
		Tags:          []string{"cute"},
	})
	require.NoError(t, err)

	result, err := svc.GetImage(ctx, "animals/cat")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Count)

	env, err := image.DecodeSearchResult(result.Envelope)
	require.NoError(t, err)
	require.Len(t, env.Resources, 1)
	assert.Equal(t, "animals/cat", env.Resources[0].PublicID)
	assert.Equal(t, []string{"cute"}, env.Resources[0].Tags)
}

func TestService_GetImageSearchParams(t *testing.T) {
	media := &recordingClient{response: json.RawMessage(`{"total_count":1,"resources":[{"public_id":"abc"}]}`)}
	svc := NewService(media, &mockLogger{})

	_, err := svc.GetImage(context.Background(), "abc")
	require.NoError(t, err)

	require.Len(t, media.searches, 1)
	assert.Equal(t, `public_id="abc"`, media.searches[0].Expression)
	assert.Equal(t, 1, media.searches[0].MaxResults)
	assert.Equal(t, []string{"tags"}, media.searches[0].WithFields)
}

func TestService_GetImageNotFound(t *testing.T) {
	svc, fake := newFakeService(t)

	_, err := svc.GetImage(context.Background(), "does-not-exist")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrImageNotFound)
	assert.Contains(t, err.Error(), "does-not-exist")
	assert.Equal(t, 1, fake.Searches())
}

func TestService_GetImageRemoteNotFound(t *testing.T) {
	svc, fake := newFakeService(t)
	fake.Fail(http.StatusNotFound, "Resource not found")

	_, err := svc.GetImage(context.Background(), "gone")
	assert.ErrorIs(t, err, ErrImageNotFound)
}

func TestService_GetImageInvalidIDSkipsRemote(t *testing.T) {
	media := &recordingClient{}
	svc := NewService(media, &mockLogger{})

	_, err := svc.GetImage(context.Background(), `x" OR public_id="y`)
	assert.ErrorIs(t, err, ErrInvalidImageID)
	assert.Empty(t, media.searches)
}
