package jsonl

import (
	"strings"
	"testing"

	"github.com/go-sif/disttable/datasource/memory"
	"github.com/stretchr/testify/require"
)

func TestJSONLPaths(t *testing.T) {
	parser := CreateParser(&ParserConf{Paths: []string{"pos.x", "pos.y", "mass"}})
	data := [][]byte{
		[]byte("{\"name\": \"Sean\", \"pos\": { \"x\": 1, \"y\": 2}, \"mass\": 3}\n{\"name\": \"Chris\", \"pos\": { \"x\": 4, \"y\": 5}, \"mass\": 6}"),
		[]byte("{\"name\": \"Phil\", \"pos\": { \"x\": 7, \"y\": 8}, \"mass\": 9}\n"),
	}
	numAttributes, values, err := memory.CreateSource(data, parser).Load()
	require.Nil(t, err)
	require.Equal(t, 3, numAttributes)
	require.Equal(t, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9}, values)
}

func TestJSONLArrays(t *testing.T) {
	parser := CreateParser(&ParserConf{HeaderLines: 1, Comment: '#'})
	numAttributes, values, err := parser.Parse(strings.NewReader("header\n[1, 2.5]\n\n# skipped\n[-3, 4e2]\n"))
	require.Nil(t, err)
	require.Equal(t, 2, numAttributes)
	require.Equal(t, []float64{1, 2.5, -3, 400}, values)
}

func TestJSONLMalformed(t *testing.T) {
	parser := CreateParser(&ParserConf{Paths: []string{"a"}})
	for _, input := range []string{
		"{\"a\": \"one\"}",
		"{\"b\": 1}",
		"{\"a\": null}",
		"{\"a\": 1",
	} {
		_, _, err := parser.Parse(strings.NewReader(input))
		require.NotNil(t, err, input)
	}
	_, _, err := CreateParser(&ParserConf{}).Parse(strings.NewReader("[1, 2]\n[3]\n"))
	require.NotNil(t, err)
	require.Contains(t, err.Error(), "Line 2")
}
