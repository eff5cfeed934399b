package tree

import (
	"fmt"
	"io"
	"strings"
)

// Render writes an indented outline of the tree, one person per line.
func Render(w io.Writer, root *Node) error {
	if root == nil {
		_, err := fmt.Fprintln(w, "(empty tree)")
		return err
	}
	return render(w, root, 0)
}

func render(w io.Writer, n *Node, indent int) error {
	line := strings.Repeat("  ", indent) + label(n)
	if n.Spouse != nil {
		line += " + " + label(n.Spouse)
	}
	if _, err := fmt.Fprintln(w, line); err != nil {
		return err
	}
	for _, child := range n.Children {
		if err := render(w, child, indent+1); err != nil {
			return err
		}
	}
	return nil
}

func label(n *Node) string {
	name := n.Name
	if name == "" {
		name = n.ProfileID
	}
	if n.Gender == "" {
		return name
	}
	return fmt.Sprintf("%s (%s)", name, n.Gender)
}
