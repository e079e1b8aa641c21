package buffer

import (
	"encoding/json"
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danmuck/cadview/internal/protocol"
)

func TestHexRoundTripEvenLength(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		raw := make([]byte, rng.Intn(64))
		rng.Read(raw)
		s := EncodeHex(raw)
		assert.Equal(t, s, EncodeHex(DecodeHex(s)))
		assert.Equal(t, s, EncodeHex(DecodeHex(strings.ToUpper(s))), "upper case must decode identically")
	}
}

func TestHexTruncatesAtFirstBadPair(t *testing.T) {
	assert.Equal(t, []byte{0x00, 0x80}, DecodeHex("0080zz3f"))
	assert.Equal(t, []byte{0xab}, DecodeHex("aBc"))
	assert.Equal(t, []byte{0x01}, DecodeHex("01g0ff"))
	assert.Empty(t, DecodeHex("x"))
	assert.Empty(t, DecodeHex(""))
}

func TestBase64LengthMatchesPadding(t *testing.T) {
	for n := 0; n < 20; n++ {
		raw := make([]byte, n)
		for i := range raw {
			raw[i] = byte(i * 31)
		}
		padded := EncodeBase64(raw)
		got, err := DecodeBase64(padded)
		require.NoError(t, err)
		assert.Len(t, got, n)

		pad := strings.Count(padded, "=")
		assert.Equal(t, len(padded)/4*3-pad, len(got))

		unpadded, err := DecodeBase64(strings.TrimRight(padded, "="))
		require.NoError(t, err)
		assert.Equal(t, got, unpadded)
	}

	for _, bad := range []string{"QQ=", "QQ=====", "QUJD====", "====", "Q===", "QQ=A"} {
		_, err := DecodeBase64(bad)
		assert.Error(t, err, "input %q", bad)
	}
	got, err := DecodeBase64("QQ==")
	require.NoError(t, err)
	assert.Equal(t, []byte("A"), got)
}

func TestBase64RejectsForeignAlphabet(t *testing.T) {
	_, err := Bytes(protocol.EncodedBuffer{Buffer: "AAAA-_8=", Codec: protocol.CodecBase64, DType: protocol.DTypeUint32})
	require.Error(t, err)
	assert.True(t, errors.Is(err, protocol.ErrBufferDecode))
}

func TestLaneCountsPerDType(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	for _, dtype := range []protocol.DType{protocol.DTypeFloat32, protocol.DTypeInt32, protocol.DTypeUint32} {
		for n := 0; n < 5; n++ {
			raw := make([]byte, 4*n)
			arr, err := Reinterpret(mem, dtype, raw)
			require.NoError(t, err)
			assert.Equal(t, n, arr.Len(), "dtype=%s", dtype)
			assert.Equal(t, dtype, arr.DType())
			arr.Release()
		}
	}
}

func TestFloat32LittleEndian(t *testing.T) {
	arr, err := Decode(memory.DefaultAllocator, protocol.EncodedBuffer{Buffer: "0000803f000000c0", Codec: protocol.CodecHex, DType: protocol.DTypeFloat32})
	require.NoError(t, err)
	defer arr.Release()
	assert.Equal(t, []float32{1.0, -2.0}, arr.Float32s())
}

func TestInt32DecodesAsUnsignedLanes(t *testing.T) {
	eb := protocol.EncodedBuffer{Buffer: "ffffffff02000000", Codec: protocol.CodecHex, DType: protocol.DTypeInt32}
	arr, err := Decode(memory.DefaultAllocator, eb)
	require.NoError(t, err)
	defer arr.Release()
	assert.Equal(t, []uint32{0xffffffff, 2}, arr.Uint32s())

	eb.DType = protocol.DTypeUint32
	same, err := Decode(memory.DefaultAllocator, eb)
	require.NoError(t, err)
	defer same.Release()
	assert.Equal(t, arr.Uint32s(), same.Uint32s())
}

func TestUnknownDTypeAndCodec(t *testing.T) {
	_, err := Decode(memory.DefaultAllocator, protocol.EncodedBuffer{Buffer: "0000803f", Codec: protocol.CodecHex, DType: "float64"})
	var bde *protocol.BufferDecodeError
	require.True(t, errors.As(err, &bde))
	assert.True(t, errors.Is(err, protocol.ErrUnknownDType))

	_, err = Decode(memory.DefaultAllocator, protocol.EncodedBuffer{Buffer: "0000803f", Codec: "b32", DType: protocol.DTypeFloat32})
	assert.True(t, errors.Is(err, protocol.ErrUnknownCodec))
}

func TestMisalignedLengthIsDecodeError(t *testing.T) {
	// The bad pair leaves 3 bytes, which is not a whole lane.
	_, err := Decode(memory.DefaultAllocator, protocol.EncodedBuffer{Buffer: "000080zz", Codec: protocol.CodecHex, DType: protocol.DTypeFloat32})
	assert.True(t, errors.Is(err, protocol.ErrLaneAlignment))
	assert.True(t, errors.Is(err, protocol.ErrBufferDecode))
}

func TestEncodeHelpersRoundTrip(t *testing.T) {
	for _, codec := range []protocol.Codec{protocol.CodecHex, protocol.CodecBase64} {
		arr, err := Decode(memory.DefaultAllocator, EncodeFloat32s([]float32{0.5, 3, -1}, codec))
		require.NoError(t, err)
		assert.Equal(t, []float32{0.5, 3, -1}, arr.Float32s())
		arr.Release()

		arr, err = Decode(memory.DefaultAllocator, EncodeUint32s([]uint32{9, 8}, protocol.DTypeUint32, codec))
		require.NoError(t, err)
		assert.Equal(t, []uint32{9, 8}, arr.Uint32s())
		arr.Release()
	}
}

func TestDecoderSharesIdenticalBuffers(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	d := NewDecoder(mem)
	eb := EncodeFloat32s([]float32{1, 2, 3}, protocol.CodecBase64)
	a, err := d.Decode(eb)
	require.NoError(t, err)
	b, err := d.Decode(eb)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, d.Hits())

	other := eb
	other.DType = protocol.DTypeUint32
	c, err := d.Decode(other)
	require.NoError(t, err)
	assert.NotSame(t, a, c)

	d.Close()
	assert.Equal(t, []float32{1, 2, 3}, a.Float32s(), "handed-out arrays survive Close")
	a.Release()
	b.Release()
	c.Release()
}

func TestDecodeChannelSingleAndList(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)
	d := NewDecoder(mem)
	defer d.Close()

	single := mustJSON(t, EncodeUint32s([]uint32{3}, protocol.DTypeInt32, protocol.CodecHex))
	ch, err := d.DecodeChannel("triangles", single)
	require.NoError(t, err)
	require.NotNil(t, ch.Single())
	assert.Equal(t, []uint32{3}, ch.Single().Uint32s())
	for _, a := range ch.Arrays {
		a.Release()
	}

	list := mustJSON(t, []protocol.EncodedBuffer{
		EncodeFloat32s([]float32{1}, protocol.CodecHex),
		EncodeFloat32s([]float32{2, 3}, protocol.CodecBase64),
	})
	ch, err = d.DecodeChannel("vertices", list)
	require.NoError(t, err)
	require.True(t, ch.List)
	require.Len(t, ch.Arrays, 2)
	assert.Equal(t, []float32{1}, ch.Arrays[0].Float32s())
	assert.Equal(t, []float32{2, 3}, ch.Arrays[1].Float32s())
	assert.Equal(t, 3, ch.Len())
	for _, a := range ch.Arrays {
		a.Release()
	}

	ch, err = d.DecodeChannel("normals", json.RawMessage("null"))
	assert.NoError(t, err)
	assert.Nil(t, ch)
}

func TestDecodeChannelFailingElementFailsChannel(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)
	d := NewDecoder(mem)
	defer d.Close()

	list := mustJSON(t, []protocol.EncodedBuffer{
		EncodeFloat32s([]float32{1}, protocol.CodecHex),
		{Buffer: "00", Codec: protocol.CodecHex, DType: "float64"},
	})
	ch, err := d.DecodeChannel("edges", list)
	assert.Nil(t, ch)
	var bde *protocol.BufferDecodeError
	require.True(t, errors.As(err, &bde))
	assert.Equal(t, "edges", bde.Channel)

	_, err = d.DecodeChannel("edges", json.RawMessage(`"0000803f"`))
	assert.True(t, errors.Is(err, protocol.ErrMalformedChannel))
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestEncodeDecodedArrayRestoresWireBytes(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	for _, eb := range []protocol.EncodedBuffer{
		{Buffer: "0000803f000000c0", Codec: protocol.CodecHex, DType: protocol.DTypeFloat32},
		{Buffer: "ffffffff02000000", Codec: protocol.CodecHex, DType: protocol.DTypeInt32},
	} {
		arr, err := Decode(mem, eb)
		require.NoError(t, err)
		assert.Equal(t, eb, Encode(arr, protocol.CodecHex))
		assert.Len(t, Lanes(arr), 8)
		arr.Release()
	}
}
