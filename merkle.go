package merkle

import (
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"strings"
	"sync"
)

var (
	ErrTreeFull           = errors.New("merkle tree is full")
	ErrInsufficientHeight = errors.New("insufficient tree height")
	ErrIndexOutOfBounds   = errors.New("index out of bounds")
)

// paddingSentinel is hashed to fill unused leaf slots. Roots are only
// reproducible across implementations that pad with this exact value.
var paddingSentinel = []byte("0")

// Tree is a fixed-capacity binary Merkle tree committing an ordered
// sequence of byte values to a single root digest. The height is set at
// construction and bounds the tree at 2^height leaves; unused leaf
// slots are padded with the sentinel hash.
//
// All node hashes live in a single flat table holding every level
// bottom-to-top, so appends and proofs touch O(height) entries.
// Insert mutates the table; callers mixing Insert with reads must
// serialize them externally.
type Tree struct {
	height   int
	leaves   [][]byte
	nodes    [][]byte
	hashFunc func() hash.Hash
	pool     sync.Pool
}

// NewTree builds a tree of the given height from the initial leaves,
// using hashFunc for all digests. It fails with ErrInsufficientHeight
// when the leaves exceed the 2^height capacity.
func NewTree(leaves [][]byte, height int, hashFunc func() hash.Hash) (*Tree, error) {
	if height < 0 {
		return nil, fmt.Errorf("%w: negative height %d", ErrInsufficientHeight, height)
	}
	capacity := 1 << height
	if len(leaves) > capacity {
		return nil, fmt.Errorf("%w: %d leaves exceed capacity %d", ErrInsufficientHeight, len(leaves), capacity)
	}

	t := &Tree{
		height:   height,
		leaves:   append([][]byte(nil), leaves...),
		hashFunc: hashFunc,
		pool: sync.Pool{
			New: func() interface{} {
				return hashFunc()
			},
		},
	}
	t.build()

	return t, nil
}

// build fills the node table: hashed leaves, sentinel padding, then
// each level combined pairwise until the root.
func (t *Tree) build() {
	capacity := 1 << t.height
	nodes := make([][]byte, 0, 2*capacity-1)

	for _, leaf := range t.leaves {
		nodes = append(nodes, t.hash(leaf))
	}
	padding := t.hash(paddingSentinel)
	for len(nodes) < capacity {
		nodes = append(nodes, padding)
	}

	offset := 0
	for width := capacity; width > 1; width /= 2 {
		for i := 0; i < width; i += 2 {
			nodes = append(nodes, t.hashPair(nodes[offset+i], nodes[offset+i+1]))
		}
		offset += width
	}

	t.nodes = nodes
}

// Insert appends value as the next leaf and recomputes the ancestor
// chain of its slot, leaving the rest of the table untouched. It fails
// with ErrTreeFull at capacity, with the tree unchanged.
func (t *Tree) Insert(value []byte) error {
	if len(t.leaves) == 1<<t.height {
		return fmt.Errorf("%w: capacity %d", ErrTreeFull, 1<<t.height)
	}

	t.leaves = append(t.leaves, value)
	index := len(t.leaves) - 1
	t.nodes[index] = t.hash(value)

	// Only the rightmost branch changes, so every sibling read below is
	// already up to date.
	offset := 0
	for level := 0; level < t.height; level++ {
		var parent []byte
		if index%2 == 0 {
			parent = t.hashPair(t.nodes[offset+index], t.nodes[offset+index+1])
		} else {
			parent = t.hashPair(t.nodes[offset+index-1], t.nodes[offset+index])
		}

		offset += 1 << (t.height - level)
		index /= 2
		t.nodes[offset+index] = parent
	}

	return nil
}

// GenerateProof returns a membership proof for the leaf at index,
// or ErrIndexOutOfBounds if no such leaf exists.
func (t *Tree) GenerateProof(index int) (*Proof, error) {
	if index < 0 || index >= len(t.leaves) {
		return nil, fmt.Errorf("%w: index %d with %d leaves", ErrIndexOutOfBounds, index, len(t.leaves))
	}

	lemma := make([][]byte, 0, t.height)
	path := make([]bool, 0, t.height)

	offset := 0
	for level := 0; level < t.height; level++ {
		// Record the sibling and its side: true when it sits to the
		// right of the node on the proved path.
		var sibling []byte
		if index%2 == 0 {
			sibling = t.nodes[offset+index+1]
			path = append(path, true)
		} else {
			sibling = t.nodes[offset+index-1]
			path = append(path, false)
		}
		lemma = append(lemma, append([]byte(nil), sibling...))

		offset += 1 << (t.height - level)
		index /= 2
	}

	return NewProof(lemma, path, t.hashFunc), nil
}

// Root returns the top-level digest committing to all leaves and
// padding, or nil if the node table is empty.
func (t *Tree) Root() []byte {
	if len(t.nodes) == 0 {
		return nil
	}
	return t.nodes[len(t.nodes)-1]
}

// Value returns the raw leaf bytes at index. The second return value
// is false when no leaf exists there.
func (t *Tree) Value(index int) ([]byte, bool) {
	if index < 0 || index >= len(t.leaves) {
		return nil, false
	}
	return t.leaves[index], true
}

// Len returns the number of leaves currently in the tree.
func (t *Tree) Len() int {
	return len(t.leaves)
}

// Height returns the construction-time height; capacity is 2^Height.
func (t *Tree) Height() int {
	return t.height
}

// String renders the node table level by level, root first, each
// digest hex-encoded and indented by its depth.
func (t *Tree) String() string {
	offsets := make([]int, t.height+1)
	for level := 1; level <= t.height; level++ {
		offsets[level] = offsets[level-1] + 1<<(t.height-level+1)
	}

	var b strings.Builder
	for level := t.height; level >= 0; level-- {
		indent := strings.Repeat("  ", t.height-level)
		width := 1 << (t.height - level)
		for i := 0; i < width; i++ {
			b.WriteString(indent)
			b.WriteString(hex.EncodeToString(t.nodes[offsets[level]+i]))
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func (t *Tree) hash(data []byte) []byte {
	h := t.pool.Get().(hash.Hash)
	h.Write(data)
	sum := h.Sum(nil)
	h.Reset()
	t.pool.Put(h)
	return sum
}

func (t *Tree) hashPair(left, right []byte) []byte {
	h := t.pool.Get().(hash.Hash)
	h.Write(left)
	h.Write(right)
	sum := h.Sum(nil)
	h.Reset()
	t.pool.Put(h)
	return sum
}
