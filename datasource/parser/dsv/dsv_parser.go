// Package dsv parses points from delimiter-separated text, one point per line
package dsv

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// ParserConf configures a DSV Parser
type ParserConf struct {
	HeaderLines int    // The number of lines to ignore from the beginning of each file. Defaults to 0.
	Delimiter   rune   // The delimiter separating columns in the file. Defaults to ,
	Comment     rune   // Lines beginning with the comment character are ignored. Cannot be equal to the Delimiter. Defaults to no comment character.
	Columns     []int  // The columns which hold attributes, in order. Defaults to every column.
	NilValue    string // A special string which represents missing values. Missing values parse as NaN. Defaults to none.
}

// Parser produces points from DSV data
type Parser struct {
	conf *ParserConf
}

// CreateParser returns a new DSV Parser
func CreateParser(conf *ParserConf) *Parser {
	if conf.Delimiter == 0 {
		conf.Delimiter = ','
	}
	return &Parser{conf: conf}
}

// Name returns "dsv"
func (p *Parser) Name() string {
	return "dsv"
}

// Parse parses DSV data to produce row-major point values
func (p *Parser) Parse(r io.Reader) (int, []float64, error) {
	reader := csv.NewReader(r)
	reader.Comma = p.conf.Delimiter
	reader.Comment = p.conf.Comment
	// every record must have as many fields as the first
	reader.FieldsPerRecord = 0
	reader.ReuseRecord = true
	reader.TrimLeadingSpace = true

	// ignore header lines, if configured to do so
	for i := 0; i < p.conf.HeaderLines; i++ {
		if _, err := reader.Read(); err == io.EOF {
			return 0, nil, nil
		} else if err != nil {
			return 0, nil, err
		}
	}

	numAttributes := 0
	var values []float64
	for line := p.conf.HeaderLines + 1; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			return numAttributes, values, nil
		} else if err != nil {
			return 0, nil, err
		}
		columns := p.conf.Columns
		if columns == nil {
			numAttributes = len(record)
			for _, field := range record {
				v, err := p.parseField(field)
				if err != nil {
					return 0, nil, fmt.Errorf("Record %d: %w", line, err)
				}
				values = append(values, v)
			}
			continue
		}
		numAttributes = len(columns)
		for _, c := range columns {
			if c < 0 || c >= len(record) {
				return 0, nil, fmt.Errorf("Record %d has no column %d", line, c)
			}
			v, err := p.parseField(record[c])
			if err != nil {
				return 0, nil, fmt.Errorf("Record %d: %w", line, err)
			}
			values = append(values, v)
		}
	}
}

func (p *Parser) parseField(field string) (float64, error) {
	field = strings.TrimSpace(field)
	if p.conf.NilValue != "" && field == p.conf.NilValue {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(field, 64)
	if err != nil {
		return 0, fmt.Errorf("Unable to parse %q as a number", field)
	}
	return v, nil
}
