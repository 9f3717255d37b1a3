package coverage

import "fmt"

// Node is one decoded tilemap quadtree node: either a leaf scalar (a
// float64 as encoding/json decodes it, typically 0 or 1), nil, the
// RootSentinel string "blob", or a
// 4-element slice of child Nodes in NW, NE, SW, SE order.
type Node = interface{}

// Walk expands the top-level index field of a tilemap as a quadtree,
// starting from the implicit root (0,0,0), and records every leaf whose
// value is 1 into b; other leaf values are skipped. Child node (x, y) mapping at depth z+1 follows
// NW,NE,SW,SE -> (x*2,y*2), (x*2+1,y*2), (x*2,y*2+1), (x*2+1,y*2+1).
func Walk(root Node, b *Builder) error {
	return walk(root, 0, 0, 0, b)
}

func walk(node Node, z, x, y uint32, b *Builder) error {
	switch v := node.(type) {
	case string:
		if v == RootSentinel {
			return nil
		}
		return fmt.Errorf("coverage: unexpected string node %q at z=%d x=%d y=%d", v, z, x, y)
	case float64:
		if v == 1 {
			b.Set(z, x, y)
		}
		return nil
	case []interface{}:
		if len(v) != 4 {
			return fmt.Errorf("coverage: quadtree node at z=%d x=%d y=%d has %d children, want 4", z, x, y, len(v))
		}
		children := [4][2]uint32{
			{x * 2, y * 2},       // NW
			{x*2 + 1, y * 2},     // NE
			{x * 2, y*2 + 1},     // SW
			{x*2 + 1, y*2 + 1},   // SE
		}
		for i, child := range v {
			cx, cy := children[i][0], children[i][1]
			if err := walk(child, z+1, cx, cy, b); err != nil {
				return err
			}
		}
		return nil
	case nil:
		return nil
	default:
		return fmt.Errorf("coverage: unrecognized quadtree node type %T at z=%d x=%d y=%d", node, z, x, y)
	}
}
