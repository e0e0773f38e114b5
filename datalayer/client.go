package datalayer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const (
	// UploadPath is the upload bridge route.
	UploadPath = "/api/upload"

	defaultClientTimeout = 2 * time.Minute
	maxPayloadSize       = 10 * 1024 * 1024
)

// UploadOptions are the optional form fields sent with an upload.
type UploadOptions struct {
	PublicID string
	Folder   string
	Tags     []string
}

// Client talks to the gallery server bridges.
type Client struct {
	baseURL string
	http    *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultClientTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch reads the payload at key. It satisfies Fetcher.
func (c *Client) Fetch(ctx context.Context, key string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+key, nil)
	if err != nil {
		return nil, &ClientFetchError{Key: key, Message: err.Error(), Err: err}
	}
	req.Header.Set("Accept", "application/json")
	return c.do(key, req, http.StatusOK)
}

// Upload streams the file content from r to the upload bridge and returns
// the created resource description.
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader, opts UploadOptions) ([]byte, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeUploadForm(mw, filename, r, opts))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+UploadPath, pr)
	if err != nil {
		pr.CloseWithError(err)
		return nil, &ClientFetchError{Key: UploadPath, Message: err.Error(), Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	return c.do(UploadPath, req, http.StatusCreated)
}

func writeUploadForm(mw *multipart.Writer, filename string, r io.Reader, opts UploadOptions) error {
	fields := [][2]string{
		{"public_id", opts.PublicID},
		{"folder", opts.Folder},
		{"tags", strings.Join(opts.Tags, ",")},
	}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return err
		}
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, r); err != nil {
		return err
	}
	return mw.Close()
}

// errorBody is the server's error response shape.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *Client) do(key string, req *http.Request, want int) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &ClientFetchError{Key: key, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadSize))
	if err != nil {
		return nil, &ClientFetchError{Key: key, StatusCode: resp.StatusCode, Message: "read response: " + err.Error(), Err: err}
	}
	if resp.StatusCode != want {
		fe := &ClientFetchError{Key: key, StatusCode: resp.StatusCode}
		var parsed errorBody
		if json.Unmarshal(body, &parsed) == nil && parsed.Message != "" {
			fe.Code = parsed.Error
			fe.Message = parsed.Message
		} else {
			fe.Message = http.StatusText(resp.StatusCode)
		}
		return nil, fe
	}
	if !json.Valid(body) {
		return nil, &ClientFetchError{Key: key, StatusCode: resp.StatusCode, Message: fmt.Sprintf("response is not valid JSON (%d bytes)", len(body))}
	}
	return body, nil
}
