// Package cloudinarytest provides an in-memory stand-in for the Cloudinary
// upload and search APIs.
package cloudinarytest

import (
	"encoding/json"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/actyvystom/cloudinary-demo/modules/cloudinary"
)

// Credentials accepted by the fake.
const (
	// CloudName is the account name served under /v1_1/<CloudName>.
	CloudName = "demo-cloud"
	// APIKey is checked on uploads and searches.
	APIKey = "test-key"
	// APISecret signs uploads and authenticates searches.
	APISecret = "test-secret"
)

// Epoch is the fixed creation time reported for uploaded resources.
var Epoch = time.Date(2023, time.March, 14, 9, 30, 0, 0, time.UTC)

var exactPublicID = regexp.MustCompile(`^public_id="((?:[^"\\]|\\.)*)"$`)

type resource struct {
	AssetID    string    `json:"asset_id"`
	PublicID   string    `json:"public_id"`
	Folder     string    `json:"folder"`
	Filename   string    `json:"filename"`
	Format     string    `json:"format"`
	Version    int64     `json:"version"`
	Type       string    `json:"type"`
	CreatedAt  time.Time `json:"created_at"`
	UploadedAt time.Time `json:"uploaded_at"`
	Bytes      int64     `json:"bytes"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	URL        string    `json:"url"`
	SecureURL  string    `json:"secure_url"`
	// Tags is only reported when the search asks for it.
	Tags       *[]string `json:"tags,omitempty"`
}

type searchResponse struct {
	TotalCount int               `json:"total_count"`
	Time       int64             `json:"time"`
	Resources  []json.RawMessage `json:"resources"`
}

// Server is a fake remote media service.
type Server struct {
	*httptest.Server

	mu           sync.Mutex
	resources    []resource
	failure      *failure
	searchFail   *failure
	contentTypes []string

	uploads  atomic.Int64
	searches atomic.Int64
	seq      atomic.Int64
}

type failure struct {
	status  int
	message string
}

// NewServer starts a fake service that is closed when the test ends.
func NewServer(tb testing.TB) *Server {
	tb.Helper()
	s := &Server{}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1_1/"+CloudName+"/image/upload", s.handleUpload)
	mux.HandleFunc("/v1_1/"+CloudName+"/resources/search", s.handleSearch)
	s.Server = httptest.NewServer(mux)
	tb.Cleanup(s.Close)
	return s
}

// Config returns client configuration pointing at the fake.
func (s *Server) Config() cloudinary.Config {
	return cloudinary.Config{
		CloudName: CloudName,
		APIKey:    APIKey,
		APISecret: APISecret,
		BaseURL:   s.URL,
		Timeout:   5 * time.Second,
	}
}

// Fail makes every following call answer with status and message.
func (s *Server) Fail(status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failure = &failure{status: status, message: message}
}

// FailSearches makes following search calls answer with status and message
// while uploads keep working.
func (s *Server) FailSearches(status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchFail = &failure{status: status, message: message}
}

// Recover clears failures set by Fail and FailSearches.
func (s *Server) Recover() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failure = nil
	s.searchFail = nil
}

// Uploads returns the number of upload calls received.
func (s *Server) Uploads() int { return int(s.uploads.Load()) }

// Searches returns the number of search calls received.
func (s *Server) Searches() int { return int(s.searches.Load()) }

// ContentTypes returns the Content-Type of every file part received, in order.
func (s *Server) ContentTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.contentTypes...)
}

// Len returns the number of stored resources.
func (s *Server) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.resources)
}

func (s *Server) currentFailure() *failure {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failure
}

func (s *Server) currentSearchFailure() *failure {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return s.failure
	}
	return s.searchFail
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	s.uploads.Add(1)
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if f := s.currentFailure(); f != nil {
		writeError(w, f.status, f.message)
		return
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	fields := url.Values(r.MultipartForm.Value)
	if fields.Get("api_key") != APIKey {
		writeError(w, http.StatusUnauthorized, "Invalid api_key "+fields.Get("api_key"))
		return
	}
	if got, want := fields.Get("signature"), cloudinary.Sign(fields, APISecret); got != want {
		writeError(w, http.StatusUnauthorized, "Invalid Signature "+got)
		return
	}
	if fields.Get("timestamp") == "" {
		writeError(w, http.StatusBadRequest, "Missing required parameter - timestamp")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing required parameter - file")
		return
	}
	defer file.Close()
	s.mu.Lock()
	s.contentTypes = append(s.contentTypes, header.Header.Get("Content-Type"))
	s.mu.Unlock()

	cfg, format, err := image.DecodeConfig(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid image file")
		return
	}

	n := s.seq.Add(1)
	publicID := fields.Get("public_id")
	if publicID == "" {
		publicID = fmt.Sprintf("generated%04d", n)
	}
	folder := fields.Get("folder")
	if folder != "" {
		publicID = folder + "/" + publicID
	}
	var tags []string
	if raw := fields.Get("tags"); raw != "" {
		tags = strings.Split(raw, ",")
	}
	if tags == nil {
		tags = []string{}
	}
	created := Epoch.Add(time.Duration(n) * time.Minute)
	path := fmt.Sprintf("/%s/image/upload/v%d/%s.%s", CloudName, created.Unix(), publicID, format)
	res := resource{
		AssetID:    fmt.Sprintf("asset%08d", n),
		PublicID:   publicID,
		Folder:     folder,
		Filename:   header.Filename,
		Format:     format,
		Version:    created.Unix(),
		Type:       "upload",
		CreatedAt:  created,
		UploadedAt: created,
		Bytes:      header.Size,
		Width:      cfg.Width,
		Height:     cfg.Height,
		URL:        "http://res.cloudinary.com" + path,
		SecureURL:  "https://res.cloudinary.com" + path,
		Tags:       &tags,
	}

	s.mu.Lock()
	// newest first, like the default search order
	s.resources = append([]resource{res}, s.resources...)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	s.searches.Add(1)
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if f := s.currentSearchFailure(); f != nil {
		writeError(w, f.status, f.message)
		return
	}
	if user, pass, ok := r.BasicAuth(); !ok || user != APIKey || pass != APISecret {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	var query cloudinary.SearchParams
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		writeError(w, http.StatusBadRequest, "invalid search body")
		return
	}

	match := func(resource) bool { return true }
	if query.Expression != "" {
		m := exactPublicID.FindStringSubmatch(query.Expression)
		if m == nil {
			writeError(w, http.StatusBadRequest, "unsupported expression "+query.Expression)
			return
		}
		want := strings.ReplaceAll(m[1], `\"`, `"`)
		match = func(res resource) bool { return res.PublicID == want }
	}
	withTags := false
	for _, f := range query.WithFields {
		if f == "tags" {
			withTags = true
		}
	}

	s.mu.Lock()
	matched := make([]resource, 0, len(s.resources))
	for _, res := range s.resources {
		if match(res) {
			matched = append(matched, res)
		}
	}
	s.mu.Unlock()

	out := searchResponse{TotalCount: len(matched), Time: 3, Resources: []json.RawMessage{}}
	limit := query.MaxResults
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	for i, res := range matched {
		if i == limit {
			break
		}
		if !withTags {
			res.Tags = nil
		}
		raw, _ := json.Marshal(res)
		out.Resources = append(out.Resources, raw)
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": map[string]string{"message": message}})
}
