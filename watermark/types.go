// Package watermark provides a Go client for the blind-watermark HTTP service.
// It supports embedding a text watermark into an image, extracting it again
// given its bit-length, and downloading processed images.
package watermark

import (
	"errors"
	"fmt"
)

// Multipart form field names understood by the service
const (
	FieldFile          = "file"
	FieldWatermarkText = "watermark_text"
	FieldWatermarkLen  = "wm_length"
)

// Endpoint paths
const (
	PathEmbed     = "/embed"
	PathExtract   = "/extract"
	PathProcessed = "/processed/"
)

// File is an image selected for upload
type File struct {
	// Name is the base file name sent as the multipart filename
	Name string

	// Data is the raw image content
	Data []byte
}

// Empty reports whether no usable file content is present
func (f *File) Empty() bool {
	return f == nil || len(f.Data) == 0
}

// UploadRequest is the payload for either operation: one file plus auxiliary form fields
type UploadRequest struct {
	File   *File
	Fields map[string]string
}

// EmbedRequest configures an embed call
type EmbedRequest struct {
	File *File

	// Text is the watermark payload, sent verbatim
	Text string
}

// EmbedResponse is the service's success body for /embed
type EmbedResponse struct {
	// Length is the watermark bit-length required for extraction
	Length int `json:"wm_length"`

	// ProcessedImageURL locates the watermarked image, usually relative to the server
	ProcessedImageURL string `json:"processed_image_url"`
}

// ExtractRequest configures an extract call
type ExtractRequest struct {
	File *File

	// Length is the watermark bit-length as entered by the user
	Length string
}

// ExtractResponse is the service's success body for /extract
type ExtractResponse struct {
	ExtractedText string `json:"extracted_text"`
}

// embedBody and extractBody are the wire forms of the success bodies.
// Pointer fields tell a missing key apart from a zero value.
type embedBody struct {
	Length            *int    `json:"wm_length"`
	ProcessedImageURL *string `json:"processed_image_url"`
}

func (b *embedBody) validate() error {
	if b.Length == nil {
		return fmt.Errorf("%w: missing wm_length", ErrMalformedResponse)
	}
	if b.ProcessedImageURL == nil || *b.ProcessedImageURL == "" {
		return fmt.Errorf("%w: missing processed_image_url", ErrMalformedResponse)
	}
	return nil
}

type extractBody struct {
	ExtractedText *string `json:"extracted_text"`
}

// An empty extracted_text is a valid result; only an absent key is malformed.
func (b *extractBody) validate() error {
	if b.ExtractedText == nil {
		return fmt.Errorf("%w: missing extracted_text", ErrMalformedResponse)
	}
	return nil
}

// DownloadResult describes a processed image saved to disk
type DownloadResult struct {
	Path  string
	Bytes int64
}

var (
	// ErrEmptyFile indicates a selected file has no content
	ErrEmptyFile = errors.New("file is empty")
	// ErrUnsupportedType indicates an extension the service does not accept
	ErrUnsupportedType = errors.New("unsupported image type")
	// ErrFileTooLarge indicates a file above MaxFileSize
	ErrFileTooLarge = errors.New("file too large")
	// ErrMalformedResponse indicates a success status whose body lacks required fields
	ErrMalformedResponse = errors.New("malformed response")
)

// APIError is a completed request with a non-success status
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"error"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.StatusCode)
	}
	return e.Message
}

// TransportError is a request that never produced a usable response:
// the network failed or a success body could not be parsed
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
