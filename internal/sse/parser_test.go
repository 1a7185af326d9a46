package sse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feedAll(p *Parser, lines []string) []string {
	var events []string
	for _, line := range lines {
		if event, ok := p.Feed(line); ok {
			events = append(events, event)
		}
	}
	return events
}

func TestParser_SingleDataBlock(t *testing.T) {
	p := NewParser()

	events := feedAll(p, []string{"data: table 4 seated", ""})

	require.Len(t, events, 1)
	assert.Equal(t, "table 4 seated", events[0])
	assert.False(t, p.Pending())
}

func TestParser_MultiLineDataConcatenates(t *testing.T) {
	// Multi-line data fields are joined with no separator; this matches the
	// upstream wire behavior even though the SSE spec says newline-join.
	p := NewParser()

	events := feedAll(p, []string{"data: first", "data: second", ""})

	require.Len(t, events, 1)
	assert.Equal(t, "firstsecond", events[0])
}

func TestParser_StripsSingleLeadingSpaceOnly(t *testing.T) {
	p := NewParser()

	events := feedAll(p, []string{"data:  padded", ""})

	require.Len(t, events, 1)
	assert.Equal(t, " padded", events[0])
}

func TestParser_NoSpaceAfterColon(t *testing.T) {
	p := NewParser()

	events := feedAll(p, []string{"data:bare", ""})

	require.Len(t, events, 1)
	assert.Equal(t, "bare", events[0])
}

func TestParser_CommentsIgnored(t *testing.T) {
	p := NewParser()

	t.Run("comment alone emits nothing", func(t *testing.T) {
		events := feedAll(p, []string{": ping", ""})
		assert.Empty(t, events)
	})

	t.Run("comment does not disturb buffer", func(t *testing.T) {
		events := feedAll(p, []string{"data: hello", ": keep-alive", ""})
		require.Len(t, events, 1)
		assert.Equal(t, "hello", events[0])
	})
}

func TestParser_OtherFieldsIgnored(t *testing.T) {
	p := NewParser()

	events := feedAll(p, []string{"event: update", "id: 42", "retry: 1000", "data: payload", ""})

	require.Len(t, events, 1)
	assert.Equal(t, "payload", events[0])
}

func TestParser_ConsecutiveBlankLines(t *testing.T) {
	p := NewParser()

	events := feedAll(p, []string{"data: one", "", "", "", "data: two", ""})

	require.Len(t, events, 2)
	assert.Equal(t, []string{"one", "two"}, events)
}

func TestParser_BlankLinesNeverEmitEmptyEvent(t *testing.T) {
	p := NewParser()

	events := feedAll(p, []string{"", "", ""})

	assert.Empty(t, events)
}

func TestParser_FeedBytes(t *testing.T) {
	p := NewParser()

	t.Run("valid utf-8 accepted", func(t *testing.T) {
		_, emitted, ok := p.FeedBytes([]byte("data: señor"))
		assert.True(t, ok)
		assert.False(t, emitted)

		event, emitted, ok := p.FeedBytes([]byte(""))
		assert.True(t, ok)
		require.True(t, emitted)
		assert.Equal(t, "señor", event)
	})

	t.Run("invalid utf-8 dropped without touching buffer", func(t *testing.T) {
		_, _, ok := p.FeedBytes([]byte("data: kept"))
		require.True(t, ok)

		_, emitted, ok := p.FeedBytes([]byte{0xff, 0xfe, 0xfd})
		assert.False(t, ok)
		assert.False(t, emitted)

		event, emitted, ok := p.FeedBytes([]byte(""))
		assert.True(t, ok)
		require.True(t, emitted)
		assert.Equal(t, "kept", event)
	})
}

func TestParser_Reset(t *testing.T) {
	p := NewParser()

	p.Feed("data: partial")
	require.True(t, p.Pending())

	p.Reset()
	assert.False(t, p.Pending())

	_, ok := p.Feed("")
	assert.False(t, ok)
}
