package cloudinary

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// UploadParams are the optional upload parameters the bridge forwards.
type UploadParams struct {
	// PublicID pins the identifier of the created resource.
	PublicID string
	Folder   string
	Tags     []string

	// ContentType is sent on the file part. Defaults to application/octet-stream.
	ContentType string
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func (p UploadParams) values() url.Values {
	v := url.Values{}
	if p.PublicID != "" {
		v.Set("public_id", p.PublicID)
	}
	if p.Folder != "" {
		v.Set("folder", p.Folder)
	}
	if len(p.Tags) > 0 {
		v.Set("tags", strings.Join(p.Tags, ","))
	}
	return v
}

// Upload sends the file at path to the image upload endpoint and returns the
// remote resource description. The file is streamed, never buffered whole.
func (c *Client) Upload(ctx context.Context, path string, params UploadParams) (json.RawMessage, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cloudinary %s: open file: %w", opUpload, err)
	}

	fields := params.values()
	fields.Set("timestamp", c.timestamp())
	fields.Set("signature", Sign(fields, c.cfg.APISecret))
	fields.Set("api_key", c.cfg.APIKey)

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		defer file.Close()
		pw.CloseWithError(writeUploadBody(mw, fields, file, params.ContentType))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/image/upload"), pr)
	if err != nil {
		pr.CloseWithError(err)
		return nil, fmt.Errorf("cloudinary %s: build request: %w", opUpload, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	return c.do(opUpload, req)
}

func writeUploadBody(mw *multipart.Writer, fields url.Values, file *os.File, contentType string) error {
	for key, values := range fields {
		for _, value := range values {
			if err := mw.WriteField(key, value); err != nil {
				return err
			}
		}
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`,
		quoteEscaper.Replace(filepath.Base(file.Name()))))
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return err
	}
	return mw.Close()
}
