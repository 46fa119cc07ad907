package partition

import (
	"bytes"
	"io"
	"sync"

	"github.com/pierrec/lz4"
)

// LZ4Serializer is a partition Serializer which uses the lz4 compression algorithm
type LZ4Serializer struct {
	lock         sync.Mutex
	compressor   *lz4.Writer
	decompressor *lz4.Reader
}

// NewLZ4Serializer instantiates a new LZ4Serializer
func NewLZ4Serializer() *LZ4Serializer {
	return &LZ4Serializer{
		compressor:   lz4.NewWriter(new(bytes.Buffer)),
		decompressor: lz4.NewReader(new(bytes.Buffer)),
	}
}

// Name returns "lz4"
func (s *LZ4Serializer) Name() string {
	return "lz4"
}

// Serialize compresses partition data to a write stream
func (s *LZ4Serializer) Serialize(w io.Writer, p *Partition) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.compressor.Reset(w)
	if err := writeRaw(s.compressor, p.NEntries(), p.NAttributes(), p.Values()); err != nil {
		return err
	}
	return s.compressor.Close()
}

// Deserialize decompresses partition data from a read stream
func (s *LZ4Serializer) Deserialize(r io.Reader) (int, []float64, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.decompressor.Reset(r)
	return readRaw(s.decompressor)
}
