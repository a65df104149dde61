// Package eventstream parses the text format used by the gateway's
// confirmation-events endpoint. The format is a sequence of blocks
// separated by a blank line; within a block, a line prefixed "event:" names
// the event and a line prefixed "data:" carries the payload.
package eventstream

import (
	"strings"
)

// Event is one parsed block. Data is always non-empty on emitted events;
// Event may be empty when the block carried only a data line.
type Event struct {
	Event string
	Data  string
}

// Parse converts a chunk of stream text into discrete events. The parser is
// pure and stateless: callers that receive a block split across transport
// chunks must buffer and re-submit the reassembled text themselves (see
// SplitComplete). Blocks without a data line are dropped; lines matching
// neither prefix are ignored.
func Parse(chunk string) []Event {
	var events []Event
	for _, block := range strings.Split(chunk, "\n\n") {
		if event, ok := parseBlock(block); ok {
			events = append(events, event)
		}
	}
	return events
}

// SplitComplete splits buffered stream text into the prefix holding only
// complete blocks and the trailing partial block, if any. Callers feed the
// complete part to Parse and carry the remainder into the next read.
func SplitComplete(buffered string) (complete, remainder string) {
	idx := strings.LastIndex(buffered, "\n\n")
	if idx == -1 {
		return "", buffered
	}
	return buffered[:idx+2], buffered[idx+2:]
}

func parseBlock(block string) (Event, bool) {
	var event Event
	hasData := false
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSuffix(line, "\r")
		switch {
		case strings.HasPrefix(line, "event:"):
			event.Event = strings.TrimPrefix(strings.TrimPrefix(line, "event:"), " ")
		case strings.HasPrefix(line, "data:"):
			event.Data = strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " ")
			hasData = true
		}
	}
	// A block that never set a data value is not an event.
	if !hasData {
		return Event{}, false
	}
	return event, true
}
