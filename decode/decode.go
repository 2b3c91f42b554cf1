// Package decode turns a lead sheet record into a model.Song: percent-decode,
// split the envelope, scan the body.
package decode

import (
	"strings"

	"github.com/jsphweid/leadsheet/envelope"
	"github.com/jsphweid/leadsheet/model"
	"github.com/jsphweid/leadsheet/scanner"
)

// Decoder shares one scanner across records.
type Decoder struct {
	scanner *scanner.Scanner
}

func NewDecoder(opts scanner.Options) *Decoder {
	return &Decoder{scanner: scanner.New(opts)}
}

// Normalize returns raw as a decoded record, percent-decoding it only when it
// was copied from a link.
func Normalize(raw string) (string, error) {
	if !envelope.IsEscaped(raw) {
		return strings.TrimSpace(raw), nil
	}
	return envelope.Unescape(raw)
}

// Decode accepts a record either percent-encoded or as plain text.
func (d *Decoder) Decode(raw string) (*model.Song, []scanner.Diagnostic, error) {
	record, err := Normalize(raw)
	if err != nil {
		return nil, nil, err
	}
	return d.DecodeRecord(record)
}

func (d *Decoder) DecodeRecord(record string) (*model.Song, []scanner.Diagnostic, error) {
	env, err := envelope.Extract(record)
	if err != nil {
		return nil, nil, err
	}
	h := scanner.Header{Title: env.Title, Author: env.Author, Tempo: env.Tempo, Key: env.Key}
	return d.scanner.Scan(h, env.Body)
}

func Decode(raw string, opts scanner.Options) (*model.Song, []scanner.Diagnostic, error) {
	return NewDecoder(opts).Decode(raw)
}

func DecodeRecord(record string, opts scanner.Options) (*model.Song, []scanner.Diagnostic, error) {
	return NewDecoder(opts).DecodeRecord(record)
}

// Wire converts scan diagnostics to their JSON form.
func Wire(diags []scanner.Diagnostic) []model.Diagnostic {
	res := make([]model.Diagnostic, 0, len(diags))
	for _, d := range diags {
		res = append(res, model.Diagnostic{
			Pos:      d.Err.Pos,
			Severity: d.Severity.String(),
			Message:  d.Err.Err.Error(),
		})
	}
	return res
}
