package partition

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

const (
	serializedMagic   = "DTPT"
	serializedVersion = 1
	// refuse to allocate absurd buffers when reading a corrupt header
	maxSerializedValues = 1 << 32
)

// A Serializer persists a Partition to a stream and reads it back
type Serializer interface {
	// Name returns a short name for this Serializer, e.g. for file extensions
	Name() string
	// Serialize writes the points of p to w
	Serialize(w io.Writer, p *Partition) error
	// Deserialize reads points written by Serialize
	Deserialize(r io.Reader) (numAttributes int, values []float64, err error)
}

// SerializerFromName returns a new Serializer for the given name
func SerializerFromName(name string) (Serializer, error) {
	switch name {
	case "lz4":
		return NewLZ4Serializer(), nil
	case "zstd":
		return NewZstdSerializer()
	default:
		return nil, fmt.Errorf("Unknown partition serializer %q", name)
	}
}

// writeRaw writes the uncompressed representation of a Partition
func writeRaw(w io.Writer, numEntries int, numAttributes int, values []float64) error {
	bw := bufio.NewWriter(w)
	header := make([]byte, 13)
	copy(header, serializedMagic)
	header[4] = serializedVersion
	binary.LittleEndian.PutUint32(header[5:], uint32(numEntries))
	binary.LittleEndian.PutUint32(header[9:], uint32(numAttributes))
	if _, err := bw.Write(header); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, values); err != nil {
		return err
	}
	return bw.Flush()
}

// readRaw reads the uncompressed representation of a Partition
func readRaw(r io.Reader) (int, []float64, error) {
	br := bufio.NewReader(r)
	header := make([]byte, 13)
	if _, err := io.ReadFull(br, header); err != nil {
		return 0, nil, fmt.Errorf("Unable to read partition header: %w", err)
	}
	if string(header[:4]) != serializedMagic {
		return 0, nil, fmt.Errorf("Stream is not a serialized partition")
	}
	if header[4] != serializedVersion {
		return 0, nil, fmt.Errorf("Unsupported serialized partition version %d", header[4])
	}
	numEntries := int(binary.LittleEndian.Uint32(header[5:]))
	numAttributes := int(binary.LittleEndian.Uint32(header[9:]))
	total := uint64(numEntries) * uint64(numAttributes)
	if total >= maxSerializedValues {
		return 0, nil, fmt.Errorf("Serialized partition of %d x %d values is too large", numEntries, numAttributes)
	}
	values := make([]float64, total)
	if err := binary.Read(br, binary.LittleEndian, values); err != nil {
		return 0, nil, fmt.Errorf("Unable to read partition values: %w", err)
	}
	return numAttributes, values, nil
}
