package imageservice

import "errors"

// Sentinel errors for image service operations.
var (
	// ErrMalformedUpload is returned when the upload carries no usable file.
	ErrMalformedUpload = errors.New("malformed upload")

	// ErrRemoteService is returned when the remote media service fails or is unreachable.
	ErrRemoteService = errors.New("remote media service error")

	// ErrImageNotFound is returned when the requested image does not exist.
	ErrImageNotFound = errors.New("image not found")

	// ErrInvalidImageID is returned when the image identifier cannot be used in a query.
	ErrInvalidImageID = errors.New("invalid image ID")
)
