package partition

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/go-sif/disttable/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type testSource struct {
	numAttributes int
	values        []float64
	err           error
}

func (s *testSource) Load() (int, []float64, error) {
	return s.numAttributes, s.values, s.err
}

func (s *testSource) String() string {
	return "test source"
}

func createTestValues(numPoints int, numAttributes int) []float64 {
	values := make([]float64, numPoints*numAttributes)
	for i := range values {
		values[i] = float64(i) + 0.5
	}
	return values
}

func TestInitAndGet(t *testing.T) {
	p := New()
	require.False(t, p.IsLoaded())
	err := p.Init(&testSource{numAttributes: 3, values: createTestValues(5, 3)})
	require.Nil(t, err)
	require.True(t, p.IsLoaded())
	require.Equal(t, 5, p.NEntries())
	require.Equal(t, 3, p.NAttributes())

	point, err := p.Get(2)
	require.Nil(t, err)
	require.Equal(t, []float64{6.5, 7.5, 8.5}, []float64(point))
	// the point is an alias which cannot grow into its neighbour
	require.Equal(t, 3, cap(point))
	point = append(point, 42)
	next, err := p.Get(3)
	require.Nil(t, err)
	require.Equal(t, 9.5, next[0])

	_, err = p.Get(5)
	require.Equal(t, errors.OutOfRangeError{Index: 5, Size: 5}, err)
	_, err = p.Get(-1)
	require.IsType(t, errors.OutOfRangeError{}, err)
}

func TestInitErrors(t *testing.T) {
	err := New().Init(&testSource{numAttributes: 3, values: createTestValues(1, 4)})
	require.NotNil(t, err)
	err = New().Init(&testSource{numAttributes: 0})
	require.NotNil(t, err)
	err = New().Init(&testSource{err: fmt.Errorf("boom")})
	require.NotNil(t, err)

	p := New()
	require.Nil(t, p.Init(&testSource{numAttributes: 2, values: createTestValues(2, 2)}))
	err = p.Init(&testSource{numAttributes: 2, values: createTestValues(2, 2)})
	require.IsType(t, errors.DuplicateInitError{}, err)
}

func TestEmptyPartition(t *testing.T) {
	p, err := FromValues(4, nil)
	require.Nil(t, err)
	require.Equal(t, 0, p.NEntries())
	_, err = p.Get(0)
	require.IsType(t, errors.OutOfRangeError{}, err)
}

func TestSaveUnloaded(t *testing.T) {
	err := New().Save(new(bytes.Buffer), NewLZ4Serializer())
	require.IsType(t, errors.UninitializedAccessError{}, err)
}

func TestSerializersRoundTrip(t *testing.T) {
	zstdSerializer, err := NewZstdSerializer()
	require.Nil(t, err)
	for _, s := range []Serializer{NewLZ4Serializer(), zstdSerializer} {
		p, err := FromValues(3, createTestValues(100, 3))
		require.Nil(t, err)
		var buf bytes.Buffer
		require.Nil(t, p.Save(&buf, s), s.Name())
		numAttributes, values, err := s.Deserialize(&buf)
		require.Nil(t, err, s.Name())
		require.Equal(t, 3, numAttributes)
		require.Equal(t, p.Values(), values)
	}
}

func TestDeserializeGarbage(t *testing.T) {
	s := NewLZ4Serializer()
	_, _, err := s.Deserialize(bytes.NewReader([]byte("definitely not lz4")))
	require.NotNil(t, err)

	var buf bytes.Buffer
	require.Nil(t, writeRaw(&buf, 0, 1, nil))
	raw := buf.Bytes()
	raw[0] = 'X'
	_, _, err = readRaw(bytes.NewReader(raw))
	require.NotNil(t, err)
}

func TestZstdSerializerReleasesWorkers(t *testing.T) {
	defer goleak.VerifyNone(t)
	s, err := SerializerFromName("zstd")
	require.Nil(t, err)
	p, err := FromValues(2, createTestValues(1000, 2))
	require.Nil(t, err)
	for i := 0; i < 3; i++ {
		var buf bytes.Buffer
		require.Nil(t, p.Save(&buf, s))
		numAttributes, values, err := s.Deserialize(&buf)
		require.Nil(t, err)
		require.Equal(t, 2, numAttributes)
		require.Equal(t, p.Values(), values)
	}
	_, _, err = s.Deserialize(bytes.NewReader([]byte("definitely not zstd")))
	require.NotNil(t, err)
}
