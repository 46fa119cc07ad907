package tree

import (
	"fmt"
	"io"

	"github.com/xlab/treeprint"
)

// Print writes an indented rendering of this Tree to w, one line per node
func (t *Tree) Print(w io.Writer) error {
	if t.root == nil {
		_, err := io.WriteString(w, "(empty tree)\n")
		return err
	}
	printed := treeprint.New()
	t.printChildren(printed.AddBranch(t.describe(t.root)), t.root)
	_, err := io.WriteString(w, printed.String())
	return err
}

func (t *Tree) printChildren(branch treeprint.Tree, n *Node) {
	for _, child := range []*Node{n.left, n.right} {
		if child == nil {
			continue
		}
		if t.IsLeaf(child) {
			branch.AddNode(t.describe(child))
		} else {
			t.printChildren(branch.AddBranch(t.describe(child)), child)
		}
	}
}

func (t *Tree) describe(n *Node) string {
	kind := "node"
	if t.IsLeaf(n) {
		kind = "leaf"
	}
	return fmt.Sprintf("%s [%d, %d) owner=%d center=%.4g radius=%.4g", kind, n.begin, n.begin+n.count, n.owner, []float64(n.bound.Center), n.bound.Radius)
}
