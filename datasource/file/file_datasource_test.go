package file

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-sif/disttable/datasource/parser/dsv"
	"github.com/go-sif/disttable/datasource/parser/serialized"
	"github.com/go-sif/disttable/internal/partition"
	"github.com/stretchr/testify/require"
)

func TestDSVFiles(t *testing.T) {
	dir := t.TempDir()
	require.Nil(t, ioutil.WriteFile(filepath.Join(dir, "b.csv"), []byte("5,6\n7,8\n"), 0644))
	require.Nil(t, ioutil.WriteFile(filepath.Join(dir, "a.csv"), []byte("1,2\n3,4\n"), 0644))
	require.Nil(t, ioutil.WriteFile(filepath.Join(dir, "c.csv"), []byte(""), 0644))
	source := CreateSource(filepath.Join(dir, "*.csv"), dsv.CreateParser(&dsv.ParserConf{}))
	numAttributes, values, err := source.Load()
	require.Nil(t, err)
	require.Equal(t, 2, numAttributes)
	require.Equal(t, []float64{1, 2, 3, 4, 5, 6, 7, 8}, values)
	require.Contains(t, source.String(), "dsv files")

	require.Nil(t, ioutil.WriteFile(filepath.Join(dir, "d.csv"), []byte("1,2,3\n"), 0644))
	_, _, err = source.Load()
	require.NotNil(t, err)

	_, _, err = CreateSource(filepath.Join(dir, "*.tsv"), dsv.CreateParser(&dsv.ParserConf{})).Load()
	require.NotNil(t, err)
}

func TestSavedPartitions(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"lz4", "zstd"} {
		original, err := partition.FromValues(3, []float64{1, 2, 3, 4, 5, 6})
		require.Nil(t, err)
		s, err := partition.SerializerFromName(name)
		require.Nil(t, err)
		path := filepath.Join(dir, "rank-0."+name)
		f, err := os.Create(path)
		require.Nil(t, err)
		require.Nil(t, original.Save(f, s))
		require.Nil(t, f.Close())

		parser, err := serialized.CreateParser(name)
		require.Nil(t, err)
		reloaded := partition.New()
		require.Nil(t, reloaded.Init(CreateSource(path, parser)))
		require.Equal(t, original.Values(), reloaded.Values())
		require.Equal(t, 3, reloaded.NAttributes())
	}
	_, err := serialized.CreateParser("gzip")
	require.NotNil(t, err)
}
