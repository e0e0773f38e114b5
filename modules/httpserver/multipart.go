package httpserver

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/actyvystom/cloudinary-demo/domain/image"
	"github.com/actyvystom/cloudinary-demo/modules/imageservice"
	"github.com/google/uuid"
)

const (
	fileField = "file"
	// maxFieldSize bounds the text fields sent next to the file.
	maxFieldSize = 4 * 1024
)

// malformed builds a malformed upload error.
func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", imageservice.ErrMalformedUpload, fmt.Sprintf(format, args...))
}

// generatedName returns a fresh server-side name for a received file.
func generatedName() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// receiveUpload streams the multipart body of r into a temporary file under
// dir. The body is read part by part; nothing is parsed ahead of time.
// On success the caller owns the returned file and must remove it.
func receiveUpload(r *http.Request, dir string) (*image.Upload, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, malformed("invalid multipart payload: %v", err)
	}

	var upload *image.Upload
	fields := map[string]string{}
	fail := func(err error) (*image.Upload, error) {
		removeUpload(upload)
		return nil, err
	}

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fail(malformed("read multipart data: %v", err))
		}

		name := part.FormName()
		switch {
		case name == "":
			_ = part.Close()
		case name == fileField:
			if upload != nil {
				_ = part.Close()
				return fail(malformed("more than one %q part", fileField))
			}
			saved, err := saveMultipartFile(part, dir)
			if err != nil {
				return fail(err)
			}
			upload = saved
		default:
			value, err := readField(part)
			if err != nil {
				return fail(err)
			}
			fields[name] = value
		}
	}

	if upload == nil {
		return nil, malformed("missing %q part", fileField)
	}
	upload.PublicID = fields["public_id"]
	upload.Folder = strings.Trim(fields["folder"], "/")
	upload.Tags = splitTags(fields["tags"])
	return upload, nil
}

func saveMultipartFile(part *multipart.Part, dir string) (*image.Upload, error) {
	defer part.Close()
	if part.FileName() == "" {
		return nil, malformed("%q part carries no file name", fileField)
	}

	name := generatedName()
	path := filepath.Join(dir, name)
	tmp, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer tmp.Close()

	written, err := io.Copy(tmp, part)
	if err != nil {
		_ = os.Remove(path)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, malformed("upload exceeds %d bytes", tooLarge.Limit)
		}
		return nil, malformed("save upload: %v", err)
	}
	if written == 0 {
		_ = os.Remove(path)
		return nil, malformed("%q part is empty", fileField)
	}

	contentType := part.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = detectContentType(part.FileName())
	}
	return &image.Upload{
		Path:          path,
		Filename:      part.FileName(),
		GeneratedName: name,
		Size:          written,
		ContentType:   contentType,
	}, nil
}

func readField(part *multipart.Part) (string, error) {
	defer part.Close()
	payload, err := io.ReadAll(io.LimitReader(part, maxFieldSize+1))
	if err != nil {
		return "", malformed("read form field %q: %v", part.FormName(), err)
	}
	if len(payload) > maxFieldSize {
		return "", malformed("form field %q is too long", part.FormName())
	}
	return strings.TrimSpace(string(payload)), nil
}

func splitTags(raw string) []string {
	var tags []string
	for _, tag := range strings.Split(raw, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// removeUpload deletes the temporary file of upload, if any.
func removeUpload(upload *image.Upload) {
	if upload == nil || upload.Path == "" {
		return
	}
	_ = os.Remove(upload.Path)
}
