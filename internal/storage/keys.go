package storage

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path"
	"strings"
	"time"
)

// MaxFileSize is the upload ceiling per file (50MB).
const MaxFileSize = 50 * 1024 * 1024

// MaxFilesPerUpload caps one multipart request.
const MaxFilesPerUpload = 10

var allowedExtensions = map[string]bool{
	"pdf":  true,
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"doc":  true,
	"docx": true,
	"xls":  true,
	"xlsx": true,
}

// FileExtension returns the lowercase extension of a filename without the dot.
func FileExtension(filename string) string {
	ext := strings.TrimPrefix(path.Ext(filename), ".")
	return strings.ToLower(ext)
}

// ValidateFilename checks the extension against the fixed allow-list.
func ValidateFilename(filename string) error {
	ext := FileExtension(filename)
	if ext == "" {
		return fmt.Errorf("file %q has no extension", filename)
	}
	if !allowedExtensions[ext] {
		return fmt.Errorf("unsupported file type: .%s", ext)
	}
	return nil
}

// ValidateFileSize checks the 50MB ceiling.
func ValidateFileSize(size int64) error {
	if size > MaxFileSize {
		return fmt.Errorf("file exceeds the %dMB limit", MaxFileSize/(1024*1024))
	}
	return nil
}

// ObjectKey builds the object-store key for an uploaded document:
//
//	loans/{loanId}/{documentType}/{timestamp}-{randomSuffix}.{ext}
//
// The timestamp is ISO8601 with ':' and '.' replaced so the key stays
// path- and URL-friendly.
func ObjectKey(loanID, documentType, filename string) string {
	timestamp := strings.NewReplacer(":", "-", ".", "-").
		Replace(time.Now().UTC().Format("2006-01-02T15:04:05.000Z"))

	suffix := make([]byte, 4)
	_, _ = rand.Read(suffix)

	return fmt.Sprintf("loans/%s/%s/%s-%s.%s",
		loanID, documentType, timestamp, hex.EncodeToString(suffix), FileExtension(filename))
}
