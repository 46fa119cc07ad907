package tree

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/go-sif/disttable/types"
	"gonum.org/v1/gonum/floats"
)

// DefaultLeafSize is the leaf size used when a BuildConf does not specify one
const DefaultLeafSize = 20

// A PointSet is a read-only, indexable collection of points of equal dimension
type PointSet interface {
	Len() int
	Dim() int
	At(i int) types.Point
}

// BuildConf configures the construction of a Tree
type BuildConf struct {
	// Owner is the rank which owns the points being indexed
	Owner int
	// LeafSize is the maximum number of points in a leaf
	LeafSize int
	// SampleProbability is the fraction of points indexed, in (0, 1]
	SampleProbability float64
	// Seed seeds the sampling of points when SampleProbability < 1
	Seed int64
}

// A Builder constructs a Tree over a PointSet
type Builder interface {
	Build(points PointSet, metric types.Metric, conf *BuildConf) (*Tree, error)
}

// MidpointBuilder builds ball trees by recursively splitting the widest dimension of a
// node at the midpoint of its range
type MidpointBuilder struct{}

// SampleSize returns the number of points indexed out of n for a sampling probability p:
// round(p*n), but at least one point when n > 0
func SampleSize(n int, p float64) (int, error) {
	if !(p > 0 && p <= 1) {
		return 0, fmt.Errorf("Sample probability %g is not in (0, 1]", p)
	}
	m := int(math.Round(p * float64(n)))
	if m < 1 && n > 0 {
		m = 1
	}
	return m, nil
}

// Build constructs a Tree over points, or over a uniform sample of them
func (b *MidpointBuilder) Build(points PointSet, metric types.Metric, conf *BuildConf) (*Tree, error) {
	if metric == nil {
		return nil, fmt.Errorf("A metric is required to build a tree")
	}
	leafSize := conf.LeafSize
	if leafSize < 1 {
		leafSize = DefaultLeafSize
	}
	n := points.Len()
	m, err := SampleSize(n, conf.SampleProbability)
	if err != nil {
		return nil, err
	}
	var idx []int
	if m == n {
		idx = make([]int, n)
		for i := range idx {
			idx[i] = i
		}
	} else {
		idx = rand.New(rand.NewSource(conf.Seed)).Perm(n)[:m]
		sort.Ints(idx)
	}
	s := &splitter{points: points, metric: metric, leafSize: leafSize, owner: conf.Owner}
	root := s.build(idx, 0)
	ids := make([]types.PointID, len(idx))
	for i, local := range idx {
		ids[i] = types.PointID{Owner: int32(conf.Owner), Index: int32(local)}
	}
	return New(root, ids, metric), nil
}

type splitter struct {
	points   PointSet
	metric   types.Metric
	leafSize int
	owner    int
}

// build creates the node covering idx, reordering idx in place so that every node's
// points are contiguous. begin is the offset of idx within the whole ordering.
func (s *splitter) build(idx []int, begin int) *Node {
	if len(idx) == 0 {
		return nil
	}
	bound := s.bound(idx)
	if len(idx) <= s.leafSize {
		return NewNode(bound, begin, len(idx), s.owner, nil, nil)
	}
	dim, lo, hi := s.widestDimension(idx)
	if lo == hi {
		// every point is identical
		return NewNode(bound, begin, len(idx), s.owner, nil, nil)
	}
	mid := (lo + hi) / 2
	split := partitionBy(idx, func(i int) bool { return s.points.At(i)[dim] < mid })
	if split == 0 || split == len(idx) {
		sort.Slice(idx, func(a, b int) bool { return s.points.At(idx[a])[dim] < s.points.At(idx[b])[dim] })
		split = len(idx) / 2
	}
	left := s.build(idx[:split], begin)
	right := s.build(idx[split:], begin+split)
	return NewNode(bound, begin, len(idx), s.owner, left, right)
}

// bound computes the centroid of idx and the distance to its farthest point
func (s *splitter) bound(idx []int) BallBound {
	center := make([]float64, s.points.Dim())
	for _, i := range idx {
		floats.Add(center, s.points.At(i))
	}
	floats.Scale(1/float64(len(idx)), center)
	radius := 0.0
	for _, i := range idx {
		radius = math.Max(radius, s.metric.Distance(center, s.points.At(i)))
	}
	return BallBound{Center: center, Radius: radius}
}

func (s *splitter) widestDimension(idx []int) (dim int, lo float64, hi float64) {
	mins := s.points.At(idx[0]).Copy()
	maxs := s.points.At(idx[0]).Copy()
	for _, i := range idx[1:] {
		p := s.points.At(i)
		for d, v := range p {
			mins[d] = math.Min(mins[d], v)
			maxs[d] = math.Max(maxs[d], v)
		}
	}
	widths := make([]float64, len(mins))
	floats.SubTo(widths, maxs, mins)
	dim = floats.MaxIdx(widths)
	return dim, mins[dim], maxs[dim]
}

// partitionBy reorders idx so that elements satisfying pred come first, returning their count
func partitionBy(idx []int, pred func(int) bool) int {
	split := 0
	for i, v := range idx {
		if pred(v) {
			idx[i], idx[split] = idx[split], idx[i]
			split++
		}
	}
	return split
}
