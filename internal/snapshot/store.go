package snapshot

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/fxamacker/cbor/v2"
	"github.com/rs/zerolog/log"
	"github.com/zeebo/blake3"

	"github.com/danmuck/cadview/internal/scene"
)

var ErrCorrupt = errors.New("snapshot: corrupt snapshot")

var magic = [4]byte{'C', 'V', 'S', 'N'}

// magic, compression tag, payload size, blake3 digest of the payload.
const headerSize = 4 + 1 + 8 + 32

const maxPayload = 1 << 30

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("snapshot: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{MaxNestedLevels: 1024}.DecMode()
	if err != nil {
		panic("snapshot: CBOR decoder initialization failed: " + err.Error())
	}
}

// Store persists the last rendered scene to a single file.
type Store struct {
	path        string
	compression Compression
	now         func() time.Time

	mu sync.Mutex
}

func NewStore(path string, c Compression) *Store {
	return &Store{path: path, compression: c, now: time.Now}
}

func (s *Store) Path() string { return s.path }

// Save replaces the stored snapshot with root.
func (s *Store) Save(ctx context.Context, root *scene.Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := Encode(root, s.compression, s.now().Unix())
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("snapshot: create dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("snapshot: write: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("snapshot: rename: %w", err)
	}
	log.Debug().Str("path", s.path).Int("bytes", len(data)).Msg("snapshot.Store.Save written")
	return nil
}

// Load reads the stored snapshot. A missing file returns (nil, nil).
func (s *Store) Load(ctx context.Context, mem memory.Allocator) (*scene.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	data, err := os.ReadFile(s.path)
	s.mu.Unlock()
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot: read: %w", err)
	}
	return Decode(data, mem)
}

// Encode serializes root into the snapshot file format. Compression falls
// back to none when it would not shrink the payload.
func Encode(root *scene.Node, c Compression, created int64) ([]byte, error) {
	payload, err := encMode.Marshal(fromScene(root, created))
	if err != nil {
		return nil, fmt.Errorf("snapshot: encode: %w", err)
	}
	body, err := compress(payload, c)
	if errors.Is(err, errIncompressible) {
		c, body = CompressionNone, payload
	} else if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	out.Grow(headerSize + len(body))
	out.Write(magic[:])
	out.WriteByte(byte(c))
	var size [8]byte
	binary.LittleEndian.PutUint64(size[:], uint64(len(payload)))
	out.Write(size[:])
	digest := blake3.Sum256(payload)
	out.Write(digest[:])
	out.Write(body)
	return out.Bytes(), nil
}

// Decode parses the snapshot file format and rebuilds the tree on mem.
func Decode(data []byte, mem memory.Allocator) (*scene.Node, error) {
	if len(data) < headerSize || !bytes.Equal(data[:4], magic[:]) {
		return nil, fmt.Errorf("%w: bad header", ErrCorrupt)
	}
	c := Compression(data[4])
	size := binary.LittleEndian.Uint64(data[5:13])
	body := data[headerSize:]
	if size > maxPayload || size > maxExpansion(c, len(body)) {
		return nil, fmt.Errorf("%w: implausible payload size %d for %d %s bytes", ErrCorrupt, size, len(body), c)
	}
	var digest [32]byte
	copy(digest[:], data[13:headerSize])

	payload, err := decompress(body, c, int(size))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if blake3.Sum256(payload) != digest {
		return nil, fmt.Errorf("%w: digest mismatch", ErrCorrupt)
	}

	var rec record
	if err := decMode.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	return rec.toScene(mem)
}
