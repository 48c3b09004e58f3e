package utils

import (
	"mime"
	"net/http"
	"path/filepath"
)

// ContentTypeDetector provides methods to detect content types
type ContentTypeDetector struct{}

// NewContentTypeDetector creates a new content type detector
func NewContentTypeDetector() *ContentTypeDetector {
	return &ContentTypeDetector{}
}

// DetectContentTypeFromExtension tries to detect content type from a file extension
func (d *ContentTypeDetector) DetectContentTypeFromExtension(filename string) string {
	ext := filepath.Ext(filename)
	if ext == "" {
		return "application/octet-stream"
	}

	// Get content type from extension
	contentType := mime.TypeByExtension(ext)
	if contentType == "" {
		return "application/octet-stream"
	}

	return contentType
}

// DetectContentTypeFromBytes tries to detect content type from the file content
func (d *ContentTypeDetector) DetectContentTypeFromBytes(data []byte) string {
	// Use http.DetectContentType for binary detection
	return http.DetectContentType(data)
}

// DetectContentType tries to detect content type from both extension and content
func (d *ContentTypeDetector) DetectContentType(filename string, data []byte) string {
	// First try by extension
	contentType := d.DetectContentTypeFromExtension(filename)

	// If we couldn't determine the type or got the default type, try by content
	if contentType == "application/octet-stream" {
		return d.DetectContentTypeFromBytes(data)
	}

	return contentType
}
