package local

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"jobboard-backend/internal/shared/storage/object"
)

func TestPutOpenDelete(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir())

	n, err := s.Put(ctx, "resumes/abc/cv.pdf", "application/pdf", strings.NewReader("%PDF-1.4 body"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if n != int64(len("%PDF-1.4 body")) {
		t.Fatalf("unexpected size %d", n)
	}

	rc, err := s.Open(ctx, "resumes/abc/cv.pdf")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	got, _ := io.ReadAll(rc)
	rc.Close()
	if string(got) != "%PDF-1.4 body" {
		t.Fatalf("unexpected body %q", got)
	}

	if err := s.Delete(ctx, "resumes/abc/cv.pdf"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, "resumes/abc/cv.pdf"); err != nil {
		t.Fatalf("second Delete should be a no-op, got %v", err)
	}
	if _, err := s.Open(ctx, "resumes/abc/cv.pdf"); !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPutReplacesWithoutLeftovers(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s := New(root)

	for _, body := range []string{"first version", "second"} {
		if _, err := s.Put(ctx, "resumes/abc/cv.pdf", "application/pdf", strings.NewReader(body)); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	got, err := os.ReadFile(filepath.Join(root, "resumes", "abc", "cv.pdf"))
	if err != nil || string(got) != "second" {
		t.Fatalf("expected replaced body, got %q, %v", got, err)
	}
	entries, _ := os.ReadDir(filepath.Join(root, "resumes", "abc"))
	if len(entries) != 1 {
		t.Fatalf("expected no temp files, got %d entries", len(entries))
	}
}

func TestRejectsTraversal(t *testing.T) {
	s := New(t.TempDir())
	if _, err := s.Put(context.Background(), "../escape.txt", "text/plain", strings.NewReader("x")); !errors.Is(err, object.ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
	if _, err := s.Open(context.Background(), "/etc/passwd"); !errors.Is(err, object.ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}
