package merkle

import (
	"bytes"
	"hash"
)

// Proof is an immutable membership proof for one leaf: the sibling
// digests along the path to the root (lemma, leaf level first) and, for
// each, whether that sibling sits to the right of the proved node
// (path). It holds no reference to the tree that produced it.
type Proof struct {
	Lemma [][]byte
	Path  []bool

	hashFunc func() hash.Hash
}

// NewProof assembles a proof from its parts, so a verifier can rebuild
// one received over an untrusted channel without holding a tree.
func NewProof(lemma [][]byte, path []bool, hashFunc func() hash.Hash) *Proof {
	return &Proof{
		Lemma:    lemma,
		Path:     path,
		hashFunc: hashFunc,
	}
}

// Verify reports whether value is committed under root by this proof.
// It hashes value, folds in each sibling on the side its path marker
// names, and compares the result with root byte-for-byte.
//
// Malformed proofs (empty lemma, lemma and path of different lengths)
// verify as false; Verify never returns an error.
func (p *Proof) Verify(root, value []byte) bool {
	if len(p.Lemma) == 0 || len(p.Lemma) != len(p.Path) {
		return false
	}
	if p.hashFunc == nil {
		return false
	}

	h := p.hashFunc()
	h.Write(value)
	current := h.Sum(nil)

	for i, sibling := range p.Lemma {
		h.Reset()
		if p.Path[i] {
			h.Write(current)
			h.Write(sibling)
		} else {
			h.Write(sibling)
			h.Write(current)
		}
		current = h.Sum(nil)
	}

	return bytes.Equal(current, root)
}
