package utils

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/mail"
	"regexp"
	"strings"
)

// Validators provides validation methods
type Validators struct{}

// NewValidators creates a new validators instance
func NewValidators() *Validators {
	return &Validators{}
}

// IsValidEmail checks if a string is a valid email address
func (v *Validators) IsValidEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}

// IsValidUsername checks if a string is a valid username
func (v *Validators) IsValidUsername(username string) bool {
	// Username should be alphanumeric with underscores and dashes, 3-32 characters
	matched, _ := regexp.MatchString(`^[a-zA-Z0-9_-]{3,32}$`, username)
	return matched
}

// IsValidFilename checks if a string is a valid filename
func (v *Validators) IsValidFilename(filename string) bool {
	// Check if the filename has invalid characters
	invalid := []string{"\\", "/", ":", "*", "?", "\"", "<", ">", "|"}
	for _, char := range invalid {
		if strings.Contains(filename, char) {
			return false
		}
	}

	// Check if the filename is too long
	if len(filename) > 255 {
		return false
	}

	return true
}

// IsValidID checks if a string is a valid MongoDB ID
func (v *Validators) IsValidID(id string) bool {
	matched, _ := regexp.MatchString(`^[0-9a-fA-F]{24}$`, id)
	return matched
}

// ValidateFileHeader performs basic validation on file header
func (v *Validators) ValidateFileHeader(fileHeader *multipart.FileHeader, maxSize int64) error {
	if fileHeader == nil {
		return errors.New("no file provided")
	}

	if fileHeader.Size == 0 {
		return errors.New("file is empty")
	}

	if fileHeader.Size > maxSize {
		return fmt.Errorf("file size exceeds maximum allowed size of %d bytes", maxSize)
	}

	if !v.IsValidFilename(fileHeader.Filename) {
		return errors.New("invalid filename")
	}

	return nil
}
