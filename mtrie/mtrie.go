// Package mtrie implements the multi-child radix trie spec.md §4.2
// describes: a mapping from arbitrary byte-string prefixes to sets of
// pipes, used by PUB/XPUB to route a published message to every pipe
// that (directly or via an ancestor prefix) subscribes to it.
//
// There is no existing implementation of this in the retrieval pack —
// mangos's PUB broadcasts to every attached pipe and lets SUB filter
// locally (see protocol/xpub in the teacher) — so this package is
// derived directly from the specification's algorithmic description,
// using the enumerated child layout spec.md §9 recommends in place of
// the source's raw pointer/count fields.
package mtrie

import "github.com/pjkundert/zeromq3-0"

// Pipe is the minimal pipe-identity surface the trie needs: something
// hashable to dedupe by, matching zx.Pipe's ID method.
type Pipe interface {
	ID() zx.PipeID
}

const growthIncrement = 256

type childKind int

const (
	childEmpty childKind = iota
	childOne
	childTable
)

// children is the enumerated child layout: at most one of the fields
// below is meaningful, selected by kind. This is the value-oriented
// substitute for the source's {min, count, table-or-pointer} node.
type children struct {
	kind childKind

	oneByte byte
	one     *node

	min   int // base byte value, 0..255
	table []*node
}

func (c *children) get(b byte) *node {
	switch c.kind {
	case childOne:
		if b == c.oneByte {
			return c.one
		}
	case childTable:
		idx := int(b) - c.min
		if idx >= 0 && idx < len(c.table) {
			return c.table[idx]
		}
	}
	return nil
}

// ensure returns the child at byte b, creating and/or widening the
// layout as necessary, per spec.md §4.2's add() description.
func (c *children) ensure(b byte) *node {
	switch c.kind {
	case childEmpty:
		c.kind = childOne
		c.oneByte = b
		c.one = &node{}
		return c.one

	case childOne:
		if b == c.oneByte {
			return c.one
		}
		lo, hi := minInt(int(c.oneByte), int(b)), maxInt(int(c.oneByte), int(b))
		tbl := make([]*node, hi-lo+1)
		tbl[int(c.oneByte)-lo] = c.one
		nn := &node{}
		tbl[int(b)-lo] = nn
		*c = children{kind: childTable, min: lo, table: tbl}
		return nn

	default: // childTable
		idx := int(b) - c.min
		if idx >= 0 && idx < len(c.table) {
			if c.table[idx] == nil {
				c.table[idx] = &node{}
			}
			return c.table[idx]
		}
		lo, hi := c.min, c.min+len(c.table)-1
		if int(b) < lo {
			lo = int(b)
		}
		if int(b) > hi {
			hi = int(b)
		}
		tbl := make([]*node, hi-lo+1)
		copy(tbl[c.min-lo:], c.table)
		c.min, c.table = lo, tbl
		idx = int(b) - lo
		if c.table[idx] == nil {
			c.table[idx] = &node{}
		}
		return c.table[idx]
	}
}

// node holds the pipe set subscribed at exactly this prefix, plus its
// children. A node with kind==childEmpty and an empty pipe set is a
// candidate for pruning, though this implementation (like the source)
// does not aggressively reclaim such nodes on removal.
type node struct {
	pipes map[zx.PipeID]Pipe
	ch    children
}

// Mtrie is a subscription trie owned by exactly one PUB/XPUB socket.
// Mtrie does no locking of its own, so its methods are not safe for
// concurrent use; protocol/pub and protocol/xpub guard it with their own
// socket mutex.
type Mtrie struct {
	root node
}

// New returns an empty Mtrie: an empty-prefix subscriber added to it
// matches every message (spec.md §8 property 5).
func New() *Mtrie {
	return &Mtrie{}
}

// Add subscribes pipe at prefix. It returns true iff no pipe was
// previously subscribed at exactly this prefix, so the caller can emit
// an upstream "subscribe" control message (spec.md §8 property 2).
func (t *Mtrie) Add(prefix []byte, p Pipe) bool {
	n := &t.root
	for _, b := range prefix {
		n = n.ch.ensure(b)
	}
	if n.pipes == nil {
		n.pipes = make(map[zx.PipeID]Pipe)
	}
	first := len(n.pipes) == 0
	n.pipes[p.ID()] = p
	return first
}

// Rm unsubscribes pipe from prefix. It returns true iff the pipe set at
// prefix became empty as a result (spec.md §8 property 3); it is a
// no-op returning false if prefix or pipe was never subscribed.
func (t *Mtrie) Rm(prefix []byte, p Pipe) bool {
	n := &t.root
	for _, b := range prefix {
		n = n.ch.get(b)
		if n == nil {
			return false
		}
	}
	if n.pipes == nil {
		return false
	}
	if _, ok := n.pipes[p.ID()]; !ok {
		return false
	}
	delete(n.pipes, p.ID())
	return len(n.pipes) == 0
}

// RmPipe sweeps the whole trie removing pipe wherever it is subscribed,
// invoking onEmpty(prefix) for every node whose pipe set becomes empty
// as a result. The prefix buffer is reused across all invocations within
// one RmPipe call and grows in 256-byte increments, matching spec.md
// §4.2's description; callers that need to retain a prefix past the
// callback's return must copy it.
func (t *Mtrie) RmPipe(p Pipe, onEmpty func(prefix []byte)) {
	buf := make([]byte, 0, growthIncrement)
	var walk func(n *node, depth int)
	walk = func(n *node, depth int) {
		if n.pipes != nil {
			if _, ok := n.pipes[p.ID()]; ok {
				delete(n.pipes, p.ID())
				if len(n.pipes) == 0 && onEmpty != nil {
					onEmpty(buf[:depth])
				}
			}
		}
		switch n.ch.kind {
		case childOne:
			buf = growTo(buf, depth+1)
			buf[depth] = n.ch.oneByte
			walk(n.ch.one, depth+1)
		case childTable:
			for i, c := range n.ch.table {
				if c == nil {
					continue
				}
				buf = growTo(buf, depth+1)
				buf[depth] = byte(n.ch.min + i)
				walk(c, depth+1)
			}
		}
	}
	walk(&t.root, 0)
}

func growTo(buf []byte, n int) []byte {
	if cap(buf) < n {
		newCap := ((n / growthIncrement) + 1) * growthIncrement
		nb := make([]byte, len(buf), newCap)
		copy(nb, buf)
		buf = nb
	}
	return buf[:n]
}

// Match invokes cb once for every pipe registered at any prefix of
// data (including the root, so an empty-prefix subscriber sees every
// message), stopping once len(data) bytes are consumed, no further
// child exists, or max invocations have occurred (max == 0 means
// unlimited). It returns the total invocation count.
//
// Matching pipes are collected first and cb runs only after the walk
// has finished, so a callback that mutates this Mtrie (e.g. to
// unsubscribe) does not disturb the walk itself.
func (t *Mtrie) Match(data []byte, cb func(Pipe), max int) int {
	var matched []Pipe
	n := &t.root
	collect := func(nd *node) bool {
		for _, p := range nd.pipes {
			if max > 0 && len(matched) >= max {
				return false
			}
			matched = append(matched, p)
		}
		return true
	}
	if collect(n) {
		for i := 0; i < len(data); i++ {
			if max > 0 && len(matched) >= max {
				break
			}
			c := n.ch.get(data[i])
			if c == nil {
				break
			}
			n = c
			if !collect(n) {
				break
			}
		}
	}
	for _, p := range matched {
		cb(p)
	}
	return len(matched)
}

// Has is a read-only probe returning the number of pipes subscribed at
// exactly prefix (not counting descendants), per spec.md §9's Open
// Questions: an exact-match count, never a descendant aggregate.
func (t *Mtrie) Has(prefix []byte) int {
	n := &t.root
	for _, b := range prefix {
		n = n.ch.get(b)
		if n == nil {
			return 0
		}
	}
	return len(n.pipes)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
