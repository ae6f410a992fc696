// Package extract pulls plain text out of uploaded resumes.
package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"jobboard-backend/internal/shared/storage/object"
)

const (
	MimePDF  = "application/pdf"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

	sidecarSuffix = ".extracted.txt"
)

// ErrUnsupported is returned for payloads that are neither PDF nor DOCX.
var ErrUnsupported = errors.New("unsupported mime type")

// Normalize maps a sniffed content type to PDF or DOCX where possible.
// DOCX sniffs as a zip archive, so the archive contents and then the file
// extension decide.
func Normalize(mimeType, fileName string, data []byte) string {
	base, _, _ := strings.Cut(mimeType, ";")
	base = strings.ToLower(strings.TrimSpace(base))
	switch {
	case base != "application/zip" && base != "application/octet-stream":
		return base
	case docxEntry(data) != nil:
		return MimeDOCX
	case base == "application/zip" && strings.EqualFold(filepath.Ext(fileName), ".docx"):
		return MimeDOCX
	}
	return base
}

// Text extracts plain text from an in-memory PDF or DOCX.
func Text(ctx context.Context, data []byte, mimeType, fileName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	kind := Normalize(mimeType, fileName, data)
	var (
		text string
		err  error
	)
	switch kind {
	case MimePDF:
		text, err = pdfText(data)
	case MimeDOCX:
		text, err = docxText(data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, kind)
	}
	return strings.TrimSpace(text), err
}

// SidecarKey is where FromObject keeps the text extracted from key.
func SidecarKey(key string) string { return key + sidecarSuffix }

// FromObject extracts the text of a stored file and saves it under
// SidecarKey(key).
func FromObject(ctx context.Context, store object.Store, key, mimeType, fileName string) (string, error) {
	rc, err := store.Open(ctx, key)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", key, err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return "", fmt.Errorf("extract %s: read: %w", key, err)
	}
	text, err := Text(ctx, data, mimeType, fileName)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", key, err)
	}
	if _, err := store.Put(ctx, SidecarKey(key), "text/plain; charset=utf-8", strings.NewReader(text)); err != nil {
		return "", fmt.Errorf("extract %s: save text: %w", key, err)
	}
	return text, nil
}

func docxEntry(data []byte) *zip.File {
	if len(data) == 0 {
		return nil
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil
	}
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") == "word/document.xml" {
			return f
		}
	}
	return nil
}
