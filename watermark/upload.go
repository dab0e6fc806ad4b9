package watermark

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"sort"
)

// BuildUpload assembles the multipart body for an upload request.
// Auxiliary fields are written in name order so bodies are reproducible.
func BuildUpload(req *UploadRequest) (*bytes.Buffer, string, error) {
	if req == nil || req.File.Empty() {
		return nil, "", fmt.Errorf("upload: %w", ErrEmptyFile)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile(FieldFile, req.File.Name)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(req.File.Data); err != nil {
		return nil, "", fmt.Errorf("failed to copy file to form: %w", err)
	}

	names := make([]string, 0, len(req.Fields))
	for name := range req.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := writer.WriteField(name, req.Fields[name]); err != nil {
			return nil, "", fmt.Errorf("failed to write %s: %w", name, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return body, writer.FormDataContentType(), nil
}
