package jsonl

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/gjson"
)

// ParserConf configures a JSONL Parser, suitable for JSON lines data
type ParserConf struct {
	Paths         []string // The gjson paths of the attributes of each point, in order. Defaults to treating each line as an array of numbers.
	HeaderLines   int      // The number of lines to ignore from the beginning of each file. Defaults to 0.
	Comment       rune     // Lines beginning with the comment character are ignored. Defaults to no comment character.
	MaxBufferSize int      // Maximum size in bytes of the buffer used to read lines from the file
}

// Parser produces points from JSONL data
type Parser struct {
	conf *ParserConf
}

// CreateParser returns a new JSONL Parser. Attributes are read from each line of JSON using
// the configured paths. Values within the JSON which do not correspond to a path are ignored.
func CreateParser(conf *ParserConf) *Parser {
	if conf.MaxBufferSize == 0 {
		conf.MaxBufferSize = bufio.MaxScanTokenSize
	}
	return &Parser{conf: conf}
}

// Name returns "jsonl"
func (p *Parser) Name() string {
	return "jsonl"
}

// Parse parses JSONL data to produce row-major point values
func (p *Parser) Parse(r io.Reader) (int, []float64, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), p.conf.MaxBufferSize)
	numAttributes := 0
	var values []float64
	for line := 1; scanner.Scan(); line++ {
		if line <= p.conf.HeaderLines {
			continue
		}
		text := strings.TrimSpace(scanner.Text())
		if len(text) == 0 || (p.conf.Comment != 0 && strings.HasPrefix(text, string(p.conf.Comment))) {
			continue
		}
		if !gjson.Valid(text) {
			return 0, nil, fmt.Errorf("Line %d is not valid JSON", line)
		}
		row, err := p.parseRow(gjson.Parse(text))
		if err != nil {
			return 0, nil, fmt.Errorf("Line %d: %w", line, err)
		}
		if numAttributes == 0 {
			numAttributes = len(row)
		} else if len(row) != numAttributes {
			return 0, nil, fmt.Errorf("Line %d has %d attributes, expected %d", line, len(row), numAttributes)
		}
		values = append(values, row...)
	}
	if err := scanner.Err(); err != nil {
		return 0, nil, err
	}
	return numAttributes, values, nil
}
