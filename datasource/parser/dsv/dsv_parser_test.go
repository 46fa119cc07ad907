package dsv

import (
	"math"
	"strings"
	"testing"

	"github.com/go-sif/disttable/datasource/memory"
	"github.com/stretchr/testify/require"
)

func TestDSVParser(t *testing.T) {
	parser := CreateParser(&ParserConf{HeaderLines: 1})
	data := [][]byte{
		[]byte("x,y,z\n1,2,3\n4, 5, 6\n"),
		[]byte("x,y,z\n7,8,9.5\n"),
	}
	numAttributes, values, err := memory.CreateSource(data, parser).Load()
	require.Nil(t, err)
	require.Equal(t, 3, numAttributes)
	require.Equal(t, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9.5}, values)
}

func TestDSVColumnsAndNils(t *testing.T) {
	parser := CreateParser(&ParserConf{
		Delimiter: '|',
		Comment:   '#',
		Columns:   []int{2, 0},
		NilValue:  "null",
	})
	numAttributes, values, err := parser.Parse(strings.NewReader("# id|label|value\n1|a|10\n2|b|null\n"))
	require.Nil(t, err)
	require.Equal(t, 2, numAttributes)
	require.Len(t, values, 4)
	require.Equal(t, []float64{10, 1}, values[:2])
	require.True(t, math.IsNaN(values[2]))
	require.Equal(t, 2.0, values[3])
}

func TestDSVMalformed(t *testing.T) {
	parser := CreateParser(&ParserConf{})
	_, _, err := parser.Parse(strings.NewReader("1,2\n3\n"))
	require.NotNil(t, err)
	_, _, err = parser.Parse(strings.NewReader("1,2\n3,four\n"))
	require.NotNil(t, err)
	require.Contains(t, err.Error(), "Record 2")

	parser = CreateParser(&ParserConf{Columns: []int{3}})
	_, _, err = parser.Parse(strings.NewReader("1,2\n"))
	require.NotNil(t, err)

	numAttributes, values, err := CreateParser(&ParserConf{HeaderLines: 2}).Parse(strings.NewReader("a,b\n"))
	require.Nil(t, err)
	require.Equal(t, 0, numAttributes)
	require.Empty(t, values)
}
