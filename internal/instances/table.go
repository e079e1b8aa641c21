package instances

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/cadview/internal/geometry"
	"github.com/danmuck/cadview/internal/protocol"
	"github.com/danmuck/cadview/internal/protocol/buffer"
)

// Report collects field-level and reference errors of one update.
type Report struct {
	Errors []error
}

func (r *Report) Add(err error) {
	if r == nil || err == nil {
		return
	}
	r.Errors = append(r.Errors, err)
}

func (r *Report) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Errors)
}

// Stats counts channel outcomes while decoding.
type Stats struct {
	Blocks   int
	Channels int
	Failed   int
}

// DecodeBlock decodes the listed channels of raw into a new block holding
// one reference for the caller. A failing channel is logged, reported, and
// left absent; the rest of the block still decodes.
func DecodeBlock(dec *buffer.Decoder, raw protocol.Block, ids []geometry.ChannelID, where string, report *Report, stats *Stats) *geometry.Block {
	block := geometry.NewBlock()
	for _, id := range ids {
		value, ok := raw[id.String()]
		if !ok {
			continue
		}
		ch, err := dec.DecodeChannel(id.String(), value)
		if err != nil {
			log.Warn().Err(err).Str("at", where).Str("channel", id.String()).Msg("instances.DecodeBlock channel dropped")
			report.Add(fmt.Errorf("%s: %w", where, err))
			if stats != nil {
				stats.Failed++
			}
			continue
		}
		if ch == nil {
			continue
		}
		block.Set(id, ch)
		if stats != nil {
			stats.Channels++
		}
	}
	if stats != nil {
		stats.Blocks++
	}
	return block
}

// Table owns the canonical decoded instances of one update. It is filled
// completely before any reference resolves and cleared once afterwards.
type Table struct {
	blocks  []*geometry.Block
	cleared bool
	stats   Stats
}

// Decode builds a table from the wire instances, decoding every channel of
// every block before returning.
func Decode(dec *buffer.Decoder, raw []protocol.Block, report *Report) *Table {
	t := &Table{blocks: make([]*geometry.Block, len(raw))}
	all := geometry.AllChannels()
	for i, rb := range raw {
		t.blocks[i] = DecodeBlock(dec, rb, all, fmt.Sprintf("instances[%d]", i), report, &t.stats)
	}
	log.Debug().
		Int("instances", len(raw)).
		Int("channels", t.stats.Channels).
		Int("failed", t.stats.Failed).
		Msg("instances.Decode done")
	return t
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.blocks)
}

func (t *Table) Stats() Stats { return t.stats }

// Resolve returns instance index with one reference retained for the caller.
func (t *Table) Resolve(index int) (*geometry.Block, error) {
	if index < 0 || index >= t.Len() {
		return nil, &protocol.ReferenceError{Index: index, Len: t.Len(), Err: protocol.ErrRefOutOfRange}
	}
	b := t.blocks[index]
	b.Retain()
	return b, nil
}

// Clear drops the table's references. Blocks resolved earlier stay alive
// through their holders. Only the first call has an effect.
func (t *Table) Clear() {
	if t.cleared {
		return
	}
	for i, b := range t.blocks {
		b.Release()
		t.blocks[i] = nil
	}
	t.blocks = t.blocks[:0]
	t.cleared = true
}

func (t *Table) Cleared() bool { return t.cleared }
