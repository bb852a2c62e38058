package ast

// arenaMinNodes sizes the first node chunk at roughly 1 KiB.
const arenaMinNodes = 16

// Arena is a bump allocator owning every node, child slice, and string of a
// single parse. Chunks are fixed-capacity so returned pointers and slices
// stay valid as the arena grows; dropping the Arena releases the whole tree
// at once.
type Arena struct {
	chunks [][]Node
	data   [][]NodeData
	// Capacity of the next node chunk; doubles on each growth.
	nextCap int
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{nextCap: arenaMinNodes}
}

// Node copies n into the arena and returns a stable pointer to it.
func (a *Arena) Node(n Node) *Node {
	s := a.alloc(1)
	s[0] = n
	return &s[0]
}

// Nodes copies ns into a contiguous arena-owned slice. The result is suitable
// as a Children slice: it will never be reallocated.
func (a *Arena) Nodes(ns []Node) []Node {
	if len(ns) == 0 {
		return nil
	}
	s := a.alloc(len(ns))
	copy(s, ns)
	return s
}

// Data copies d into the arena and returns a stable pointer to it.
func (a *Arena) Data(d NodeData) *NodeData {
	if len(a.data) > 0 {
		c := a.data[len(a.data)-1]
		if len(c) < cap(c) {
			c = append(c, d)
			a.data[len(a.data)-1] = c
			return &c[len(c)-1]
		}
	}
	c := make([]NodeData, 1, arenaMinNodes)
	c[0] = d
	a.data = append(a.data, c)
	return &c[0]
}

// Str returns text owned by the arena. Sub-slices of the original source pass
// through unchanged; Go strings are immutable, so no copy is ever needed.
func (a *Arena) Str(s string) string {
	return s
}

// NodeCount returns the number of nodes allocated so far.
func (a *Arena) NodeCount() int {
	total := 0
	for _, c := range a.chunks {
		total += len(c)
	}
	return total
}

// alloc reserves n contiguous node slots in the current chunk, opening a new
// chunk when the current one cannot fit them. A chunk is never reallocated,
// so earlier pointers into it remain valid.
func (a *Arena) alloc(n int) []Node {
	if len(a.chunks) > 0 {
		c := a.chunks[len(a.chunks)-1]
		if len(c)+n <= cap(c) {
			s := c[len(c) : len(c)+n]
			a.chunks[len(a.chunks)-1] = c[:len(c)+n]
			return s
		}
	}

	size := a.nextCap
	if size < n {
		size = n
	}
	a.nextCap = size * 2

	c := make([]Node, n, size)
	a.chunks = append(a.chunks, c)
	return c
}
