package cloudinarytest

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// PNG returns an encoded width×height PNG image.
func PNG(tb testing.TB, width, height int) []byte {
	tb.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		img.Set(x, x%max(height, 1), color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		tb.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// WritePNG writes a width×height PNG named name into a temp dir and returns its path.
func WritePNG(tb testing.TB, name string, width, height int) string {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), name)
	if err := os.WriteFile(path, PNG(tb, width, height), 0o600); err != nil {
		tb.Fatalf("write png: %v", err)
	}
	return path
}
