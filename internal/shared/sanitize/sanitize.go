// Package sanitize strips unsafe markup from user supplied text.
package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strict = bluemonday.StrictPolicy()
	ugc    = bluemonday.UGCPolicy()
)

// Plain removes every tag and returns unescaped plain text, so "a < b" survives
// while "<b>x</b>" becomes "x".
func Plain(s string) string {
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}

// Rich keeps the safe subset of HTML allowed in descriptions.
func Rich(s string) string {
	return strings.TrimSpace(ugc.Sanitize(s))
}

// RichPtr applies Rich to an optional value; blank results become nil.
func RichPtr(s *string) *string {
	if s == nil {
		return nil
	}
	out := Rich(*s)
	if out == "" {
		return nil
	}
	return &out
}
