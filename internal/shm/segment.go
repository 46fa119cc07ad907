// Package shm lets ranks which share a host read each other's partitions through memory-mapped
// segment files instead of exchanging messages.
package shm

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-sif/disttable/errors"
)

const (
	segmentMagic      = "DTSM"
	segmentHeaderSize = 12
)

// SegmentPath returns the location of the segment published by a rank within dir
func SegmentPath(dir string, rank int) string {
	return filepath.Join(dir, fmt.Sprintf("rank-%d.dtseg", rank))
}

// Publication is a segment file published by its owning rank
type Publication struct {
	path string
}

// Publish writes a partition's row-major values to the segment file for rank. The file
// appears atomically, so a reader never observes a partially written segment.
func Publish(dir string, rank int, numAttributes int, values []float64) (*Publication, error) {
	if numAttributes <= 0 || len(values)%numAttributes != 0 {
		return nil, fmt.Errorf("Cannot publish %d values with %d attributes", len(values), numAttributes)
	}
	tmp, err := ioutil.TempFile(dir, "publish-*.tmp")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())
	w := bufio.NewWriter(tmp)
	header := make([]byte, segmentHeaderSize)
	copy(header, segmentMagic)
	binary.LittleEndian.PutUint32(header[4:], uint32(len(values)/numAttributes))
	binary.LittleEndian.PutUint32(header[8:], uint32(numAttributes))
	if _, err := w.Write(header); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := binary.Write(w, binary.LittleEndian, values); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}
	path := SegmentPath(dir, rank)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return nil, err
	}
	return &Publication{path: path}, nil
}

// Path returns the location of the published segment
func (p *Publication) Path() string {
	return p.path
}

// Close removes the segment file. Segments already attached by readers stay readable.
func (p *Publication) Close() error {
	err := os.Remove(p.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Segment is a read-only view of a peer's published partition
type Segment struct {
	lock          sync.RWMutex
	data          []byte
	numEntries    int
	numAttributes int
}

// Attach maps the segment published by rank within dir
func Attach(dir string, rank int) (*Segment, error) {
	f, err := os.Open(SegmentPath(dir, rank))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := fi.Size()
	if size < segmentHeaderSize {
		return nil, fmt.Errorf("Segment %s is truncated", f.Name())
	}
	data, err := mmap(f, int(size))
	if err != nil {
		return nil, err
	}
	s := &Segment{data: data}
	if err := s.parseHeader(); err != nil {
		munmap(data)
		return nil, fmt.Errorf("Segment %s: %w", f.Name(), err)
	}
	return s, nil
}

func (s *Segment) parseHeader() error {
	if string(s.data[:4]) != segmentMagic {
		return fmt.Errorf("not a point segment")
	}
	s.numEntries = int(binary.LittleEndian.Uint32(s.data[4:]))
	s.numAttributes = int(binary.LittleEndian.Uint32(s.data[8:]))
	expected := uint64(segmentHeaderSize) + uint64(s.numEntries)*uint64(s.numAttributes)*8
	if s.numAttributes == 0 || uint64(len(s.data)) != expected {
		return fmt.Errorf("header describes %d x %d values but the segment holds %d bytes", s.numEntries, s.numAttributes, len(s.data))
	}
	return nil
}

// NEntries returns the number of points in this Segment
func (s *Segment) NEntries() int {
	return s.numEntries
}

// NAttributes returns the number of attributes of each point in this Segment
func (s *Segment) NAttributes() int {
	return s.numAttributes
}

// Read returns a copy of the point at index
func (s *Segment) Read(index int) ([]float64, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.data == nil {
		return nil, fmt.Errorf("Segment has been closed")
	}
	if index < 0 || index >= s.numEntries {
		return nil, errors.OutOfRangeError{Index: index, Size: s.numEntries}
	}
	res := make([]float64, s.numAttributes)
	off := segmentHeaderSize + index*s.numAttributes*8
	for i := range res {
		res[i] = math.Float64frombits(binary.LittleEndian.Uint64(s.data[off+i*8:]))
	}
	return res, nil
}

// Close unmaps this Segment
func (s *Segment) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.data == nil {
		return nil
	}
	err := munmap(s.data)
	s.data = nil
	return err
}
