// Package serialized reads back partitions which a table saved with one of its serializers
package serialized

import (
	"io"

	"github.com/go-sif/disttable/internal/partition"
)

// Parser produces points from a saved partition
type Parser struct {
	serializer partition.Serializer
}

// CreateParser returns a Parser for partitions saved with the named serializer ("lz4" or "zstd")
func CreateParser(serializer string) (*Parser, error) {
	s, err := partition.SerializerFromName(serializer)
	if err != nil {
		return nil, err
	}
	return &Parser{serializer: s}, nil
}

// Name returns the name of the underlying serializer
func (p *Parser) Name() string {
	return p.serializer.Name()
}

// Parse decompresses a saved partition
func (p *Parser) Parse(r io.Reader) (int, []float64, error) {
	return p.serializer.Deserialize(r)
}
