// Package memory provides PointSources backed by data which is already in memory
package memory

import (
	"bytes"
	"fmt"

	"github.com/go-sif/disttable/datasource"
)

// DataSource is a set of buffers containing encoded points, decoded by a Parser
type DataSource struct {
	data   [][]byte
	parser datasource.Parser
}

// CreateSource is a factory for DataSources
func CreateSource(data [][]byte, parser datasource.Parser) *DataSource {
	return &DataSource{data: data, parser: parser}
}

// Load parses every buffer in order
func (ms *DataSource) Load() (int, []float64, error) {
	var acc datasource.Accumulator
	for i, buff := range ms.data {
		name := fmt.Sprintf("buffer %d", i)
		numAttributes, values, err := ms.parser.Parse(bytes.NewReader(buff))
		if err != nil {
			return 0, nil, fmt.Errorf("Unable to parse %s: %w", name, err)
		}
		if err := acc.Append(name, numAttributes, values); err != nil {
			return 0, nil, err
		}
	}
	numAttributes, values := acc.Result()
	return numAttributes, values, nil
}

// String returns a string representation of this DataSource
func (ms *DataSource) String() string {
	return fmt.Sprintf("%d %s buffers in memory", len(ms.data), ms.parser.Name())
}

// ValueSource is a PointSource over row-major values which are already decoded
type ValueSource struct {
	numAttributes int
	values        []float64
}

// CreateValueSource is a factory for ValueSources. values is copied when loaded.
func CreateValueSource(numAttributes int, values []float64) *ValueSource {
	return &ValueSource{numAttributes: numAttributes, values: values}
}

// CreateRowSource creates a ValueSource from one slice per point
func CreateRowSource(rows [][]float64) (*ValueSource, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("At least one row is required to infer the number of attributes")
	}
	numAttributes := len(rows[0])
	values := make([]float64, 0, numAttributes*len(rows))
	for i, row := range rows {
		if len(row) != numAttributes {
			return nil, fmt.Errorf("Row %d has %d attributes, expected %d", i, len(row), numAttributes)
		}
		values = append(values, row...)
	}
	return &ValueSource{numAttributes: numAttributes, values: values}, nil
}

// Load returns a copy of the values of this ValueSource
func (vs *ValueSource) Load() (int, []float64, error) {
	values := make([]float64, len(vs.values))
	copy(values, vs.values)
	return vs.numAttributes, values, nil
}

// String returns a string representation of this ValueSource
func (vs *ValueSource) String() string {
	return fmt.Sprintf("%d values in memory", len(vs.values))
}
