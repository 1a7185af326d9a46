// Package sse implements an incremental parser for the Server-Sent-Events
// wire framing. The parser is push-based: the caller feeds it one line at a
// time (record terminator already stripped) and receives completed event
// payloads as they are assembled.
package sse

import (
	"strings"
	"unicode/utf8"
)

// Parser accumulates data: lines into event payloads.
//
// Multi-line data fields are concatenated with no separator between lines.
// The SSE specification calls for a newline join, but the upstream API's
// consumers rely on plain concatenation, so that behavior is preserved here.
type Parser struct {
	buf strings.Builder
}

// NewParser creates an empty Parser.
func NewParser() *Parser {
	return &Parser{}
}

// Feed processes a single line and reports whether a complete event was
// assembled. The returned event is non-empty whenever ok is true.
//
//   - empty line: emits the accumulated buffer if non-empty
//   - line starting with ":": comment/keep-alive, ignored
//   - line starting with "data:": payload appended to the buffer
//   - anything else (event:, id:, retry:, ...): ignored
func (p *Parser) Feed(line string) (event string, ok bool) {
	if line == "" {
		if p.buf.Len() == 0 {
			return "", false
		}
		event = p.buf.String()
		p.buf.Reset()
		return event, true
	}

	if strings.HasPrefix(line, ":") {
		return "", false
	}

	if data, found := strings.CutPrefix(line, "data:"); found {
		p.buf.WriteString(strings.TrimPrefix(data, " "))
		return "", false
	}

	// Other field names are not meaningful to this integration.
	return "", false
}

// FeedBytes processes a raw line that has not been validated as UTF-8.
// Undecodable lines are dropped without disturbing the accumulation buffer,
// and ok reports whether the line was accepted.
func (p *Parser) FeedBytes(line []byte) (event string, emitted, ok bool) {
	if !utf8.Valid(line) {
		return "", false, false
	}
	event, emitted = p.Feed(string(line))
	return event, emitted, true
}

// Pending reports whether the parser holds a partially assembled event.
func (p *Parser) Pending() bool {
	return p.buf.Len() > 0
}

// Reset discards any partially assembled event, for reuse across
// reconnections of the underlying stream.
func (p *Parser) Reset() {
	p.buf.Reset()
}
