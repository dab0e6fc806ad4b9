package watermark

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SupportedImageTypes lists the extensions the service accepts
var SupportedImageTypes = []string{".png", ".jpg", ".jpeg", ".gif"}

// MaxFileSize is the largest image the client will upload (50MB)
const MaxFileSize = 50 * 1024 * 1024

// LoadFile reads and validates an image for upload
func LoadFile(path string) (*File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to access %s: %w", filepath.Base(path), err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", filepath.Base(path))
	}
	if !IsImageFile(path) {
		return nil, fmt.Errorf("%s: %w (allowed: %s)", filepath.Base(path), ErrUnsupportedType, strings.Join(SupportedImageTypes, ", "))
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrEmptyFile)
	}
	if info.Size() > MaxFileSize {
		return nil, fmt.Errorf("%s: %w (%s, maximum %s)", filepath.Base(path), ErrFileTooLarge, FormatSize(info.Size()), FormatSize(MaxFileSize))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}

	return &File{Name: filepath.Base(path), Data: data}, nil
}

// IsImageFile checks if a file has a supported image extension
func IsImageFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, supported := range SupportedImageTypes {
		if ext == supported {
			return true
		}
	}
	return false
}

// DownloadName returns the suggested filename for a resource locator: its final path segment
func DownloadName(ref string) string {
	return ref[strings.LastIndex(ref, "/")+1:]
}

// FormatSize formats a byte size as a human-readable string
func FormatSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}
