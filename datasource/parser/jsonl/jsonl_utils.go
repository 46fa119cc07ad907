package jsonl

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// parseRow extracts the attributes of one point from a line of JSON
func (p *Parser) parseRow(doc gjson.Result) ([]float64, error) {
	if len(p.conf.Paths) == 0 {
		if !doc.IsArray() {
			return nil, fmt.Errorf("Expected an array of numbers. Was: %s", doc.Raw)
		}
		elems := doc.Array()
		row := make([]float64, 0, len(elems))
		for i, elem := range elems {
			v, err := parseValue(elem, fmt.Sprintf("[%d]", i))
			if err != nil {
				return nil, err
			}
			row = append(row, v)
		}
		return row, nil
	}
	row := make([]float64, 0, len(p.conf.Paths))
	for _, path := range p.conf.Paths {
		v, err := parseValue(doc.Get(path), path)
		if err != nil {
			return nil, err
		}
		row = append(row, v)
	}
	return row, nil
}

func parseValue(val gjson.Result, path string) (float64, error) {
	switch val.Type {
	case gjson.Number:
		return val.Num, nil
	case gjson.Null:
		if !val.Exists() {
			return 0, fmt.Errorf("Attribute %s is missing", path)
		}
		return 0, fmt.Errorf("Attribute %s is null", path)
	default:
		return 0, fmt.Errorf("Attribute %s was not a number. Was: %s", path, val.Raw)
	}
}
