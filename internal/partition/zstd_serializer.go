package partition

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// ZstdSerializer is a partition Serializer which uses the zstd compression algorithm.
// Each call builds and closes its own encoder or decoder, so a ZstdSerializer holds
// no background goroutines between calls.
type ZstdSerializer struct {
	level zstd.EncoderLevel
}

// NewZstdSerializer instantiates a new ZstdSerializer
func NewZstdSerializer() (*ZstdSerializer, error) {
	return &ZstdSerializer{level: zstd.SpeedFastest}, nil
}

// Name returns "zstd"
func (s *ZstdSerializer) Name() string {
	return "zstd"
}

// Serialize compresses partition data to a write stream
func (s *ZstdSerializer) Serialize(w io.Writer, p *Partition) error {
	compressor, err := zstd.NewWriter(w, zstd.WithEncoderLevel(s.level))
	if err != nil {
		return fmt.Errorf("Unable to initialize compressor: %w", err)
	}
	if err := writeRaw(compressor, p.NEntries(), p.NAttributes(), p.Values()); err != nil {
		compressor.Close()
		return err
	}
	return compressor.Close()
}

// Deserialize decompresses partition data from a read stream
func (s *ZstdSerializer) Deserialize(r io.Reader) (int, []float64, error) {
	decompressor, err := zstd.NewReader(nil)
	if err != nil {
		return 0, nil, fmt.Errorf("Unable to initialize decompressor: %w", err)
	}
	defer decompressor.Close()
	if err := decompressor.Reset(r); err != nil {
		return 0, nil, err
	}
	return readRaw(decompressor)
}
