package quik

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// The terminal speaks one JSON object per line. Encoding appends the
// terminating newline; decoding takes a single line without it.

func encodeMessage(m *Message) ([]byte, error) {
	buf, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Command, err)
	}
	return append(buf, '\n'), nil
}

func decodeMessage(line []byte) (*Message, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, fmt.Errorf("decode: empty line")
	}
	m := &Message{}
	if err := json.Unmarshal(line, m); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if m.Command == "" {
		return nil, fmt.Errorf("decode: missing cmd")
	}
	return m, nil
}
