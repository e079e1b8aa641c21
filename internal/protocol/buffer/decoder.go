package buffer

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/zeebo/blake3"

	"github.com/danmuck/cadview/internal/geometry"
	"github.com/danmuck/cadview/internal/protocol"
)

// Decoder decodes channels for one scene update. Identical EncodedBuffers
// seen during the update decode once and share a single array. Close
// releases the decoder's own references.
type Decoder struct {
	mem   memory.Allocator
	cache map[[32]byte]*geometry.Array
	hits  int
}

func NewDecoder(mem memory.Allocator) *Decoder {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	return &Decoder{mem: mem, cache: make(map[[32]byte]*geometry.Array)}
}

func (d *Decoder) Allocator() memory.Allocator { return d.mem }

// Decode returns an array owned by the caller (one reference).
func (d *Decoder) Decode(eb protocol.EncodedBuffer) (*geometry.Array, error) {
	key := cacheKey(eb)
	if arr, ok := d.cache[key]; ok {
		d.hits++
		arr.Retain()
		return arr, nil
	}
	arr, err := Decode(d.mem, eb)
	if err != nil {
		return nil, err
	}
	arr.Retain()
	d.cache[key] = arr
	return arr, nil
}

// DecodeChannel interprets a raw channel value. An absent or null value
// returns (nil, nil). Any failing list element fails the whole channel.
func (d *Decoder) DecodeChannel(name string, raw json.RawMessage) (*geometry.Channel, error) {
	list, isList, err := protocol.ParseChannel(raw)
	if err != nil {
		return nil, &protocol.BufferDecodeError{Channel: name, Err: err}
	}
	if list == nil && !isList {
		return nil, nil
	}
	ch := &geometry.Channel{List: isList, Arrays: make([]*geometry.Array, 0, len(list))}
	for _, eb := range list {
		arr, err := d.Decode(eb)
		if err != nil {
			for _, a := range ch.Arrays {
				a.Release()
			}
			var bde *protocol.BufferDecodeError
			if errors.As(err, &bde) {
				bde.Channel = name
			}
			return nil, err
		}
		ch.Arrays = append(ch.Arrays, arr)
	}
	return ch, nil
}

// Hits reports how many decodes were served from the cache.
func (d *Decoder) Hits() int { return d.hits }

// Close releases cached arrays. Arrays handed out earlier stay valid.
func (d *Decoder) Close() {
	for key, arr := range d.cache {
		arr.Release()
		delete(d.cache, key)
	}
}

func cacheKey(eb protocol.EncodedBuffer) [32]byte {
	h := blake3.New()
	io.WriteString(h, string(eb.Codec))
	h.Write([]byte{0})
	io.WriteString(h, string(eb.DType))
	h.Write([]byte{0})
	io.WriteString(h, eb.Buffer)
	var key [32]byte
	copy(key[:], h.Sum(nil))
	return key
}
