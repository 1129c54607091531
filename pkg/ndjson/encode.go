// Package ndjson serializes opaque records as newline-delimited JSON.
//
// Records are kept as raw JSON exactly as the API returned them, so field
// order and number formatting survive the round trip untouched. Two output
// styles are supported:
//
//   - StyleSpaced (default): ", " and ": " separators with non-ASCII
//     characters escaped as \uXXXX, the layout analytics tables built by
//     earlier loaders already expect.
//   - StyleCompact: no insignificant whitespace.
//
// Every line, including the last, ends with "\n".
package ndjson

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Record is one schema-less API result object.
type Record = json.RawMessage

// Style selects the separator layout of each serialized record.
type Style string

const (
	// StyleSpaced separates members with ", " and keys from values with ": ".
	StyleSpaced Style = "spaced"

	// StyleCompact elides all insignificant whitespace.
	StyleCompact Style = "compact"
)

// ParseStyle converts a configuration string to a Style.
func ParseStyle(s string) (Style, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(StyleSpaced):
		return StyleSpaced, nil
	case string(StyleCompact):
		return StyleCompact, nil
	default:
		return "", fmt.Errorf("unknown ndjson style %q (want spaced or compact)", s)
	}
}

// Encode serializes records in order, one per line.
// An empty input yields an empty, non-nil slice.
func Encode(records []Record, style Style) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, estimateSize(records)))
	for i, rec := range records {
		if err := appendRecord(buf, rec, style); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// Line serializes a single record without the trailing newline.
func Line(rec Record, style Style) ([]byte, error) {
	var buf bytes.Buffer
	if err := appendRecord(&buf, rec, style); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func appendRecord(buf *bytes.Buffer, rec Record, style Style) error {
	var compact bytes.Buffer
	if err := json.Compact(&compact, rec); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}

	if style == StyleCompact {
		buf.Write(compact.Bytes())
		return nil
	}
	writeSpaced(buf, compact.Bytes())
	return nil
}

// writeSpaced rewrites compact JSON with spaced separators.
// src must already be valid compact JSON.
func writeSpaced(buf *bytes.Buffer, src []byte) {
	inString := false
	escaped := false

	for i := 0; i < len(src); {
		c := src[i]

		if inString {
			switch {
			case escaped:
				escaped = false
				buf.WriteByte(c)
			case c == '\\':
				escaped = true
				buf.WriteByte(c)
			case c == '"':
				inString = false
				buf.WriteByte(c)
			case c >= utf8.RuneSelf:
				r, size := utf8.DecodeRune(src[i:])
				writeEscapedRune(buf, r)
				i += size
				continue
			default:
				buf.WriteByte(c)
			}
			i++
			continue
		}

		switch c {
		case '"':
			inString = true
			buf.WriteByte(c)
		case ',':
			buf.WriteString(", ")
		case ':':
			buf.WriteString(": ")
		default:
			buf.WriteByte(c)
		}
		i++
	}
}

// writeEscapedRune writes r as \uXXXX, using a surrogate pair above the BMP.
func writeEscapedRune(buf *bytes.Buffer, r rune) {
	if r > 0xFFFF {
		r -= 0x10000
		fmt.Fprintf(buf, `\u%04x\u%04x`, 0xD800+(r>>10), 0xDC00+(r&0x3FF))
		return
	}
	fmt.Fprintf(buf, `\u%04x`, r)
}

func estimateSize(records []Record) int {
	n := 0
	for _, rec := range records {
		// separators add roughly one space per member
		n += len(rec) + len(rec)/8 + 1
	}
	return n
}
