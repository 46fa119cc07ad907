// Package tree provides the spatial index which algorithms traverse over a table's points.
// Trees are produced by a Builder and are read-only afterwards, except for the per-node
// statistics which algorithms may attach.
package tree

import (
	"fmt"

	"github.com/go-sif/disttable/types"
)

// BallBound bounds a set of points by a center and a radius under some Metric
type BallBound struct {
	Center types.Point
	Radius float64
}

// Contains returns true iff p lies within this BallBound under metric
func (b BallBound) Contains(metric types.Metric, p types.Point) bool {
	return metric.Distance(b.Center, p) <= b.Radius
}

// MinDistance returns a lower bound on the distance between any point in this BallBound and any point in other
func (b BallBound) MinDistance(metric types.Metric, other BallBound) float64 {
	d := metric.Distance(b.Center, other.Center) - b.Radius - other.Radius
	if d < 0 {
		return 0
	}
	return d
}

// MaxDistance returns an upper bound on the distance between any point in this BallBound and any point in other
func (b BallBound) MaxDistance(metric types.Metric, other BallBound) float64 {
	return metric.Distance(b.Center, other.Center) + b.Radius + other.Radius
}

// Node is a node of a Tree, covering a contiguous range of the Tree's point ordering
type Node struct {
	bound BallBound
	left  *Node
	right *Node
	begin int
	count int
	owner int
	stat  interface{}
}

// Tree is a binary space-partitioning tree over the points of one or more partitions.
// Every leaf covers points of exactly one owner.
type Tree struct {
	root     *Node
	ids      []types.PointID
	numNodes int
	metric   types.Metric
}

// New assembles a Tree from its root and the point ordering its nodes index into. It is
// intended for Builder implementations.
func New(root *Node, ids []types.PointID, metric types.Metric) *Tree {
	t := &Tree{root: root, ids: ids, metric: metric}
	t.walk(root, func(*Node) { t.numNodes++ })
	return t
}

// NewNode creates a node covering ids[begin:begin+count] of its Tree. left and right must
// both be nil for a leaf, or both non-nil. owner is -1 when the points span several owners.
func NewNode(bound BallBound, begin int, count int, owner int, left *Node, right *Node) *Node {
	return &Node{bound: bound, begin: begin, count: count, owner: owner, left: left, right: right}
}

func (t *Tree) walk(n *Node, fn func(*Node)) {
	if n == nil {
		return
	}
	fn(n)
	t.walk(n.left, fn)
	t.walk(n.right, fn)
}

// Root returns the root Node of this Tree, or nil if the Tree is empty
func (t *Tree) Root() *Node {
	return t.root
}

// Metric returns the Metric under which the bounds of this Tree were computed
func (t *Tree) Metric() types.Metric {
	return t.metric
}

// Bound returns the bounding ball of a Node
func (t *Tree) Bound(n *Node) BallBound {
	return n.bound
}

// LeftChild returns the left child of a Node, or nil for a leaf
func (t *Tree) LeftChild(n *Node) *Node {
	return n.left
}

// RightChild returns the right child of a Node, or nil for a leaf
func (t *Tree) RightChild(n *Node) *Node {
	return n.right
}

// IsLeaf returns true iff a Node has no children
func (t *Tree) IsLeaf(n *Node) bool {
	return n.left == nil && n.right == nil
}

// Count returns the number of points under a Node
func (t *Tree) Count(n *Node) int {
	return n.count
}

// Begin returns the position of a Node's first point within the Tree's point ordering
func (t *Tree) Begin(n *Node) int {
	return n.begin
}

// Owner returns the rank owning every point under a Node, or -1 when they span several owners
func (t *Tree) Owner(n *Node) int {
	return n.owner
}

// Stat returns the statistic an algorithm attached to a Node
func (t *Tree) Stat(n *Node) interface{} {
	return n.stat
}

// SetStat attaches an algorithm-specific statistic to a Node. Statistics are not
// synchronized; algorithms sharing a Tree across goroutines must coordinate themselves.
func (t *Tree) SetStat(n *Node, stat interface{}) {
	n.stat = stat
}

// PointIDs returns the identifiers of the points under a Node. The result must not be modified.
func (t *Tree) PointIDs(n *Node) []types.PointID {
	return t.ids[n.begin : n.begin+n.count : n.begin+n.count]
}

// Leaves returns every leaf of this Tree, from left to right
func (t *Tree) Leaves() []*Node {
	var leaves []*Node
	t.walk(t.root, func(n *Node) {
		if t.IsLeaf(n) {
			leaves = append(leaves, n)
		}
	})
	return leaves
}

// NumNodes returns the number of nodes in this Tree
func (t *Tree) NumNodes() int {
	return t.numNodes
}

// NumPoints returns the number of points indexed by this Tree
func (t *Tree) NumPoints() int {
	return len(t.ids)
}

// Validate checks that every leaf covers points of exactly its owner
func (t *Tree) Validate() error {
	for _, leaf := range t.Leaves() {
		for _, id := range t.PointIDs(leaf) {
			if int(id.Owner) != leaf.owner {
				return fmt.Errorf("Leaf at %d owned by rank %d covers point %s", leaf.begin, leaf.owner, id)
			}
		}
	}
	return nil
}
