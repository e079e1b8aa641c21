package buffer

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/danmuck/cadview/internal/geometry"
	"github.com/danmuck/cadview/internal/protocol"
)

// DecodeHex decodes pairs of case-insensitive hex digits. It stops at the
// first invalid pair, or a trailing odd digit, and returns the bytes decoded
// up to that point. It never fails.
func DecodeHex(s string) []byte {
	dst := make([]byte, len(s)/2)
	n, _ := hex.Decode(dst, []byte(s))
	return dst[:n]
}

// EncodeHex is the lowercase inverse of DecodeHex.
func EncodeHex(b []byte) string {
	return hex.EncodeToString(b)
}

// DecodeBase64 decodes the standard alphabet. Input may be fully padded to
// a multiple of four or carry no padding at all; any other padding, or a
// foreign character, is an error.
func DecodeBase64(s string) ([]byte, error) {
	if len(s)%4 == 0 {
		for i := 0; i < 2 && strings.HasSuffix(s, "="); i++ {
			s = s[:len(s)-1]
		}
	}
	return base64.RawStdEncoding.DecodeString(s)
}

// EncodeBase64 encodes with the standard padded alphabet.
func EncodeBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// Bytes applies the codec step of eb.
func Bytes(eb protocol.EncodedBuffer) ([]byte, error) {
	switch eb.Codec {
	case protocol.CodecHex:
		return DecodeHex(eb.Buffer), nil
	case protocol.CodecBase64:
		raw, err := DecodeBase64(eb.Buffer)
		if err != nil {
			return nil, &protocol.BufferDecodeError{Codec: eb.Codec, DType: eb.DType, Err: err}
		}
		return raw, nil
	default:
		return nil, &protocol.BufferDecodeError{Codec: eb.Codec, DType: eb.DType, Err: protocol.ErrUnknownCodec}
	}
}

// Reinterpret turns little-endian bytes into a typed array. int32 and uint32
// both map to unsigned 32-bit lanes.
func Reinterpret(mem memory.Allocator, dtype protocol.DType, raw []byte) (*geometry.Array, error) {
	if !dtype.Valid() {
		return nil, &protocol.BufferDecodeError{DType: dtype, Err: protocol.ErrUnknownDType}
	}
	if len(raw)%protocol.LaneSize != 0 {
		return nil, &protocol.BufferDecodeError{
			DType: dtype,
			Err:   fmt.Errorf("%w: %d bytes", protocol.ErrLaneAlignment, len(raw)),
		}
	}
	n := len(raw) / protocol.LaneSize
	switch dtype {
	case protocol.DTypeFloat32:
		values := make([]float32, n)
		for i := range values {
			values[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*protocol.LaneSize:]))
		}
		return geometry.NewFloat32(mem, values), nil
	default:
		values := make([]uint32, n)
		for i := range values {
			values[i] = binary.LittleEndian.Uint32(raw[i*protocol.LaneSize:])
		}
		return geometry.NewUint32(mem, dtype, values), nil
	}
}

// Decode runs both steps for one EncodedBuffer without caching.
func Decode(mem memory.Allocator, eb protocol.EncodedBuffer) (*geometry.Array, error) {
	if !eb.DType.Valid() {
		return nil, &protocol.BufferDecodeError{Codec: eb.Codec, DType: eb.DType, Err: protocol.ErrUnknownDType}
	}
	raw, err := Bytes(eb)
	if err != nil {
		return nil, err
	}
	arr, err := Reinterpret(mem, eb.DType, raw)
	if err != nil {
		if bde, ok := err.(*protocol.BufferDecodeError); ok {
			bde.Codec = eb.Codec
		}
		return nil, err
	}
	return arr, nil
}

// EncodeFloat32s builds an EncodedBuffer from float32 values.
func EncodeFloat32s(values []float32, codec protocol.Codec) protocol.EncodedBuffer {
	raw := make([]byte, len(values)*protocol.LaneSize)
	for i, v := range values {
		binary.LittleEndian.PutUint32(raw[i*protocol.LaneSize:], math.Float32bits(v))
	}
	return protocol.EncodedBuffer{Buffer: encodeText(raw, codec), Codec: codec, DType: protocol.DTypeFloat32}
}

// EncodeUint32s builds an EncodedBuffer from 32-bit lanes tagged with dtype.
func EncodeUint32s(values []uint32, dtype protocol.DType, codec protocol.Codec) protocol.EncodedBuffer {
	raw := make([]byte, len(values)*protocol.LaneSize)
	for i, v := range values {
		binary.LittleEndian.PutUint32(raw[i*protocol.LaneSize:], v)
	}
	return protocol.EncodedBuffer{Buffer: encodeText(raw, codec), Codec: codec, DType: dtype}
}

func encodeText(raw []byte, codec protocol.Codec) string {
	if codec == protocol.CodecBase64 {
		return EncodeBase64(raw)
	}
	return EncodeHex(raw)
}

// Lanes returns the little-endian bytes of a decoded array.
func Lanes(a *geometry.Array) []byte {
	if a.DType() == protocol.DTypeFloat32 {
		f := a.Float32s()
		raw := make([]byte, len(f)*protocol.LaneSize)
		for i, v := range f {
			binary.LittleEndian.PutUint32(raw[i*protocol.LaneSize:], math.Float32bits(v))
		}
		return raw
	}
	u := a.Uint32s()
	raw := make([]byte, len(u)*protocol.LaneSize)
	for i, v := range u {
		binary.LittleEndian.PutUint32(raw[i*protocol.LaneSize:], v)
	}
	return raw
}

// Encode turns a decoded array back into its wire form.
func Encode(a *geometry.Array, codec protocol.Codec) protocol.EncodedBuffer {
	return protocol.EncodedBuffer{Buffer: encodeText(Lanes(a), codec), Codec: codec, DType: a.DType()}
}
