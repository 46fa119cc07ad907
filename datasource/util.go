// Package datasource contains the building blocks shared by PointSources: a Parser turns a
// stream of encoded points into row-major values, and a PointSource decides which streams
// to feed it.
package datasource

import (
	"fmt"
	"io"
)

// A Parser decodes row-major point data from a stream
type Parser interface {
	// Name returns a short description of this Parser, for logging
	Name() string
	// Parse reads every point from r. numAttributes is 0 when r contained no points.
	Parse(r io.Reader) (numAttributes int, values []float64, err error)
}

// Accumulator concatenates the points of several parsed streams, checking that they agree on
// the number of attributes
type Accumulator struct {
	numAttributes int
	values        []float64
}

// Append adds the points of one stream, named for error reporting
func (a *Accumulator) Append(name string, numAttributes int, values []float64) error {
	if numAttributes == 0 {
		if len(values) > 0 {
			return fmt.Errorf("%s produced %d values without any attributes", name, len(values))
		}
		return nil
	}
	if a.numAttributes != 0 && a.numAttributes != numAttributes {
		return fmt.Errorf("%s has %d attributes, but previous inputs had %d", name, numAttributes, a.numAttributes)
	}
	a.numAttributes = numAttributes
	if a.values == nil {
		a.values = values
	} else {
		a.values = append(a.values, values...)
	}
	return nil
}

// Result returns the accumulated points
func (a *Accumulator) Result() (int, []float64) {
	return a.numAttributes, a.values
}
