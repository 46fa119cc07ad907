package partition

import (
	"fmt"
	"io"

	"github.com/go-sif/disttable/errors"
	"github.com/go-sif/disttable/types"
)

// Partition is the shard of points owned by this process. It is
// populated exactly once and is read-only afterwards, so it may be
// read concurrently without locking.
type Partition struct {
	numAttributes int
	numEntries    int
	values        []float64
	source        string
	loaded        bool
}

// New creates an empty, unloaded Partition
func New() *Partition {
	return &Partition{}
}

// FromValues creates a loaded Partition from row-major point data, taking ownership of values
func FromValues(numAttributes int, values []float64) (*Partition, error) {
	p := New()
	if err := p.load(numAttributes, values, "values"); err != nil {
		return nil, err
	}
	return p, nil
}

// Init loads the points described by source into this Partition
func (p *Partition) Init(source types.PointSource) error {
	if p.loaded {
		return errors.DuplicateInitError{What: "Partition"}
	}
	numAttributes, values, err := source.Load()
	if err != nil {
		return fmt.Errorf("Unable to load points from %s: %w", source.String(), err)
	}
	return p.load(numAttributes, values, source.String())
}

func (p *Partition) load(numAttributes int, values []float64, source string) error {
	if p.loaded {
		return errors.DuplicateInitError{What: "Partition"}
	}
	if numAttributes <= 0 {
		return fmt.Errorf("Points from %s must have at least one attribute, got %d", source, numAttributes)
	}
	if len(values)%numAttributes != 0 {
		return fmt.Errorf("Points from %s are ragged: %d values is not a multiple of %d attributes", source, len(values), numAttributes)
	}
	p.numAttributes = numAttributes
	p.numEntries = len(values) / numAttributes
	p.values = values
	p.source = source
	p.loaded = true
	return nil
}

// IsLoaded returns true iff Init has completed successfully
func (p *Partition) IsLoaded() bool {
	return p.loaded
}

// Get returns an alias of the point at localIndex
func (p *Partition) Get(localIndex int) (types.Point, error) {
	if localIndex < 0 || localIndex >= p.numEntries {
		return nil, errors.OutOfRangeError{Index: localIndex, Size: p.numEntries}
	}
	return p.At(localIndex), nil
}

// At returns an alias of the point at localIndex without bounds checking beyond the runtime's
func (p *Partition) At(localIndex int) types.Point {
	start := localIndex * p.numAttributes
	end := start + p.numAttributes
	// clamp capacity so an append on the alias can never overwrite the next point
	return types.Point(p.values[start:end:end])
}

// Len returns the number of points in this Partition
func (p *Partition) Len() int {
	return p.numEntries
}

// Dim returns the number of attributes per point
func (p *Partition) Dim() int {
	return p.numAttributes
}

// NEntries returns the number of points in this Partition
func (p *Partition) NEntries() int {
	return p.numEntries
}

// NAttributes returns the number of attributes per point
func (p *Partition) NAttributes() int {
	return p.numAttributes
}

// Values returns the row-major backing array of this Partition. It must not be modified.
func (p *Partition) Values() []float64 {
	return p.values
}

// Source returns a description of where this Partition was loaded from
func (p *Partition) Source() string {
	return p.source
}

// Save persists this Partition to w using the given Serializer
func (p *Partition) Save(w io.Writer, s Serializer) error {
	if !p.loaded {
		return errors.UninitializedAccessError{Op: "Partition.Save"}
	}
	return s.Serialize(w, p)
}
