package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ParseChannel reads one wire channel value: a single EncodedBuffer object
// or an ordered list of them. A null or absent value returns (nil, false, nil).
func ParseChannel(raw json.RawMessage) ([]EncodedBuffer, bool, error) {
	raw = bytes.TrimSpace(raw)
	if IsNull(raw) {
		return nil, false, nil
	}
	switch raw[0] {
	case '{':
		var eb EncodedBuffer
		if err := json.Unmarshal(raw, &eb); err != nil {
			return nil, false, fmt.Errorf("%w: %v", ErrMalformedChannel, err)
		}
		return []EncodedBuffer{eb}, false, nil
	case '[':
		var list []EncodedBuffer
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, true, fmt.Errorf("%w: %v", ErrMalformedChannel, err)
		}
		return list, true, nil
	default:
		return nil, false, fmt.Errorf("%w: expected object or array", ErrMalformedChannel)
	}
}

// ParseRef inspects a raw shape. It returns ok=false when the shape is an
// inline block; otherwise the reference index or a malformed-ref error.
func ParseRef(raw json.RawMessage) (index int, ok bool, err error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return 0, false, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return 0, false, nil
	}
	ref, found := fields["ref"]
	if !found {
		return 0, false, nil
	}
	n, err := strconv.ParseInt(string(bytes.TrimSpace(ref)), 10, 0)
	if err != nil || n < 0 {
		return 0, true, fmt.Errorf("%w: ref=%s", ErrRefMalformed, string(ref))
	}
	return int(n), true, nil
}

// ParseBlock reads a raw inline shape as a wire block.
func ParseBlock(raw json.RawMessage) (Block, error) {
	var block Block
	if err := json.Unmarshal(raw, &block); err != nil {
		return nil, fmt.Errorf("%w: inline shape: %v", ErrMalformedChannel, err)
	}
	return block, nil
}
