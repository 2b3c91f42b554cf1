// Package envelope splits an encoded lead sheet record into its header
// fields and chart body.
package envelope

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var ErrEnvelopeFormat = errors.New("malformed song envelope")

const (
	headerField = `[\p{L}\p{N}_ \-',()?]+`
	envelopeRe  = `^([A-Za-z][A-Za-z0-9+.\-]*)://` +
		`(` + headerField + `)=` +
		`(` + headerField + `)=` +
		`(` + headerField + `)=` +
		`([^=]{1,3})=` +
		`(.)=` +
		`(.*[Z=])`
)

var (
	envelopePattern = regexp.MustCompile(envelopeRe)
	escapePattern   = regexp.MustCompile(`%[0-9A-Fa-f]{2}`)
)

type Envelope struct {
	Scheme string
	Title  string
	Author string
	Tempo  string
	Key    string
	Flag   string
	// Body runs up to and including the last terminator (Z or =).
	Body string
}

// Extract matches record against scheme://title=author=tempo=key=flag=body.
// Anything after the body's last terminator is dropped.
func Extract(record string) (Envelope, error) {
	record = strings.TrimSpace(record)
	m := envelopePattern.FindStringSubmatch(record)
	if m == nil {
		return Envelope{}, fmt.Errorf("%w: %s", ErrEnvelopeFormat, preview(record))
	}
	return Envelope{
		Scheme: m[1],
		Title:  m[2],
		Author: m[3],
		Tempo:  m[4],
		Key:    m[5],
		Flag:   m[6],
		Body:   m[7],
	}, nil
}

// IsEscaped reports whether raw is a percent-encoded record as copied from a
// link. Links never carry a raw space or "|", while a decoded chart always
// has one, and a decoded "%" repeat sign is not followed by hex digits.
func IsEscaped(raw string) bool {
	raw = strings.TrimSpace(raw)
	return escapePattern.MatchString(raw) && !strings.ContainsAny(raw, " |")
}

// Unescape percent-decodes a record as copied from a link. Plus signs are
// kept since they appear in chord qualities.
func Unescape(raw string) (string, error) {
	s, err := url.PathUnescape(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEnvelopeFormat, err)
	}
	return s, nil
}

func preview(s string) string {
	if len(s) > 40 {
		return fmt.Sprintf("%q...", s[:40])
	}
	return fmt.Sprintf("%q", s)
}
