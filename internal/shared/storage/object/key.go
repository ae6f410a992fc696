package object

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"
	"unicode"
)

const maxFileNameRunes = 128

var errBadFileName = errors.New("invalid file name")

// NewKey builds "<prefix>/<hashed owner>/<random>_<file name>".
func NewKey(prefix, owner, fileName string) (string, error) {
	name, err := safeFileName(fileName)
	if err != nil {
		return "", fmt.Errorf("sanitize file name: %w", err)
	}
	return path.Join(prefix, OwnerSegment(owner), randomID()+"_"+name), nil
}

// OwnerSegment hashes an owner id into a stable hex path segment so raw ids
// never appear in object keys.
func OwnerSegment(owner string) string {
	sum := sha256.Sum256([]byte(owner))
	return hex.EncodeToString(sum[:])
}

// safeFileName flattens separators, drops control characters and caps the
// length. Names containing ".." are rejected outright.
func safeFileName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", errBadFileName
	}
	var b strings.Builder
	n := 0
	for _, r := range strings.TrimSpace(name) {
		if n == maxFileNameRunes {
			break
		}
		switch {
		case r == '/' || r == '\\':
			r = '_'
		case unicode.IsControl(r):
			continue
		}
		b.WriteRune(r)
		n++
	}
	if b.Len() == 0 {
		return "", errBadFileName
	}
	return b.String(), nil
}

func randomID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 16)
	}
	return hex.EncodeToString(b[:])
}
