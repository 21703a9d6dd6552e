package validator

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

type ValidationErrors map[string]string

func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

func (v ValidationErrors) Add(field, message string) {
	v[field] = message
}

// String renders the errors deterministically, field-sorted.
func (v ValidationErrors) String() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, v[f]))
	}
	return strings.Join(parts, "; ")
}

// MaxAttachmentSize is the upload ceiling: 5 MiB.
const MaxAttachmentSize = 5 << 20

var allowedImageTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/gif":  {},
	"image/webp": {},
}

var (
	unsafeChars  = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
	repeatedDots = regexp.MustCompile(`\.{2,}`)
	edgeUnders   = regexp.MustCompile(`^_+|_+$`)
)

func ValidateAttachment(filename, contentType string, size int64) ValidationErrors {
	errs := make(ValidationErrors)

	if strings.TrimSpace(filename) == "" {
		errs.Add("filename", "File name is required")
	}

	if contentType == "" {
		errs.Add("content_type", "Content type is required")
	} else if _, ok := allowedImageTypes[contentType]; !ok {
		errs.Add("content_type", "Invalid file type. Only JPEG, PNG, GIF, and WEBP are allowed")
	}

	if size <= 0 {
		errs.Add("size", "File is empty")
	} else if size > MaxAttachmentSize {
		errs.Add("size", "File too large. Maximum size is 5MB")
	}

	return errs
}

func ValidateMessage(text, attachmentURL string) ValidationErrors {
	errs := make(ValidationErrors)

	if strings.TrimSpace(text) == "" && attachmentURL == "" {
		errs.Add("text", "Message needs text or an attachment")
	}

	return errs
}

// SanitizeFileName makes a name safe for use in a storage object key:
// everything outside [A-Za-z0-9._-] becomes _, runs of dots collapse to
// one, leading/trailing underscores are stripped, and the result is capped
// at 100 characters. Prevents path traversal and key collisions.
func SanitizeFileName(name string) string {
	name = unsafeChars.ReplaceAllString(name, "_")
	name = repeatedDots.ReplaceAllString(name, ".")
	name = edgeUnders.ReplaceAllString(name, "")
	if len(name) > 100 {
		name = name[:100]
	}
	return name
}
