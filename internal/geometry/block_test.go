package geometry

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danmuck/cadview/internal/protocol"
)

func TestChannelNamesRoundTrip(t *testing.T) {
	for _, id := range AllChannels() {
		got, ok := ChannelByName(id.String())
		require.True(t, ok, id.String())
		assert.Equal(t, id, got)
	}
	_, ok := ChannelByName("colors")
	assert.False(t, ok)
	assert.Equal(t, "unknown", NumChannels.String())
}

func TestArrayAccessorsByDType(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	f := NewFloat32(mem, []float32{1, 2.5})
	defer f.Release()
	assert.Equal(t, protocol.DTypeFloat32, f.DType())
	assert.Equal(t, []float32{1, 2.5}, f.Float32s())
	assert.Nil(t, f.Uint32s())

	u := NewUint32(mem, protocol.DTypeInt32, []uint32{0xffffffff, 7})
	defer u.Release()
	assert.Equal(t, protocol.DTypeInt32, u.DType())
	assert.Equal(t, []uint32{0xffffffff, 7}, u.Uint32s())
	assert.Nil(t, u.Float32s())
	assert.Equal(t, 2, u.Arrow().Len())
}

func TestBlockSharedReleaseFreesOnLastHolder(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())

	b := NewBlock()
	b.Set(Vertices, &Channel{Arrays: []*Array{NewFloat32(mem, []float32{0, 0, 1})}})
	b.Set(Edges, &Channel{List: true, Arrays: []*Array{
		NewUint32(mem, protocol.DTypeUint32, []uint32{0, 1}),
		NewUint32(mem, protocol.DTypeUint32, []uint32{1, 2}),
	}})
	require.Equal(t, []ChannelID{Vertices, Edges}, b.Present())
	assert.Equal(t, 4, b.Channel(Edges).Len())
	assert.Nil(t, b.Channel(Edges).Single())
	assert.NotNil(t, b.Channel(Vertices).Single())

	b.Retain()
	b.Retain()
	assert.EqualValues(t, 3, b.RefCount())

	b.Release()
	b.Release()
	assert.True(t, b.Has(Vertices), "channels must survive while a holder remains")
	assert.NotZero(t, mem.CurrentAlloc())

	b.Release()
	assert.False(t, b.Has(Vertices))
	mem.AssertSize(t, 0)
}

func TestBlockSetReplacesChannel(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	b := NewBlock()
	b.Set(Normals, &Channel{Arrays: []*Array{NewFloat32(mem, []float32{1})}})
	b.Set(Normals, &Channel{Arrays: []*Array{NewFloat32(mem, []float32{2})}})
	assert.Equal(t, []float32{2}, b.Channel(Normals).Single().Float32s())
	b.Release()
}

func TestNilBlockChannelLookup(t *testing.T) {
	var b *Block
	assert.Nil(t, b.Channel(Vertices))
	assert.False(t, b.Has(Vertices))
}
