package object

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestNewKey(t *testing.T) {
	key, err := NewKey("resumes", "resume-1", "my/cv.pdf")
	if err != nil {
		t.Fatalf("NewKey: %v", err)
	}
	parts := strings.Split(key, "/")
	if len(parts) != 3 || parts[0] != "resumes" {
		t.Fatalf("unexpected key layout %q", key)
	}
	if len(parts[1]) != 64 {
		t.Fatalf("expected hashed owner segment, got %q", parts[1])
	}
	if !strings.HasSuffix(parts[2], "_my_cv.pdf") {
		t.Fatalf("expected sanitized file name suffix, got %q", parts[2])
	}

	if _, err := NewKey("resumes", "resume-1", "../etc/passwd"); err == nil {
		t.Fatalf("expected traversal to be rejected")
	}
}

func TestCleanKey(t *testing.T) {
	tests := []struct {
		key  string
		want string
		err  bool
	}{
		{key: "resumes/a/cv.pdf", want: "resumes/a/cv.pdf"},
		{key: "resumes//a/./cv.pdf", want: "resumes/a/cv.pdf"},
		{key: `resumes\a\cv.pdf`, want: "resumes/a/cv.pdf"},
		{key: "/etc/passwd", err: true},
		{key: "../secret", err: true},
		{key: "a/../../secret", err: true},
		{key: "", err: true},
	}
	for _, tt := range tests {
		got, err := CleanKey(tt.key)
		if tt.err {
			if !errors.Is(err, ErrInvalidKey) {
				t.Fatalf("CleanKey(%q): expected ErrInvalidKey, got %q, %v", tt.key, got, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("CleanKey(%q) = %q, %v; want %q", tt.key, got, err, tt.want)
		}
	}
}

func TestSniffKeepsStream(t *testing.T) {
	body := "%PDF-1.4\n" + strings.Repeat("x", 1000)
	mime, r, err := Sniff(strings.NewReader(body))
	if err != nil {
		t.Fatalf("Sniff: %v", err)
	}
	if mime != "application/pdf" {
		t.Fatalf("expected application/pdf, got %q", mime)
	}
	all, _ := io.ReadAll(r)
	if string(all) != body {
		t.Fatalf("stream was truncated: %d of %d bytes", len(all), len(body))
	}
}

func TestOwnerSegment(t *testing.T) {
	got := OwnerSegment("google:12345")
	if got != OwnerSegment("google:12345") {
		t.Fatalf("expected stable hash")
	}
	if len(got) != 64 || strings.Trim(got, "0123456789abcdef") != "" {
		t.Fatalf("expected 64 hex characters, got %q", got)
	}
}

func TestSafeFileName(t *testing.T) {
	tests := []struct {
		in, want string
		err      bool
	}{
		{in: " cv.pdf ", want: "cv.pdf"},
		{in: `dir\cv.docx`, want: "dir_cv.docx"},
		{in: "cv\x00\n.pdf", want: "cv.pdf"},
		{in: strings.Repeat("я", 200), want: strings.Repeat("я", maxFileNameRunes)},
		{in: "../cv.pdf", err: true},
		{in: "  ", err: true},
	}
	for _, tt := range tests {
		got, err := safeFileName(tt.in)
		if tt.err {
			if err == nil {
				t.Fatalf("safeFileName(%q): expected error, got %q", tt.in, got)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("safeFileName(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}
