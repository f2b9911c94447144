// Package compression implements the bounded Merkle tree backing compressed
// proof-of-purchase receipts. A tree is created with a fixed maximum depth
// that caps the number of leaves it can ever hold; once exhausted it must be
// replaced before further receipts can be appended.
package compression

import (
	"encoding/binary"
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/gagliardetto/solana-go"
)

const (
	// MinDepth and MaxDepth bound the supported tree sizes.
	MinDepth = 3
	MaxDepth = 30
)

var (
	ErrTreeFull     = errors.New("compression: tree is full")
	ErrInvalidDepth = errors.New("compression: invalid tree depth")
	ErrInvalidLeaf  = errors.New("compression: invalid leaf")
)

// Tree is an append-only incremental Merkle tree. Only the filled-subtree
// frontier is persisted, so appends are O(depth) regardless of leaf count.
type Tree struct {
	Address        solana.PublicKey `json:"address"`
	Authority      solana.PublicKey `json:"authority"`
	Depth          uint32           `json:"depth"`
	MaxBufferSize  uint32           `json:"maxBufferSize"`
	Count          uint64           `json:"count"`
	Root           [32]byte         `json:"root"`
	FilledSubtrees [][32]byte       `json:"filledSubtrees"`
}

// NewTree creates an empty tree rooted over 2^depth zero leaves.
func NewTree(address, authority solana.PublicKey, depth, maxBufferSize uint32) (*Tree, error) {
	if depth < MinDepth || depth > MaxDepth {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDepth, depth)
	}
	if maxBufferSize == 0 {
		return nil, fmt.Errorf("%w: zero buffer size", ErrInvalidDepth)
	}
	t := &Tree{
		Address:        address,
		Authority:      authority,
		Depth:          depth,
		MaxBufferSize:  maxBufferSize,
		FilledSubtrees: make([][32]byte, depth),
	}
	zeros := zeroHashes(depth)
	copy(t.FilledSubtrees, zeros[:depth])
	t.Root = zeros[depth]
	return t, nil
}

// Capacity returns the maximum number of leaves the tree can hold.
func (t *Tree) Capacity() uint64 {
	if t == nil {
		return 0
	}
	return 1 << t.Depth
}

// IsFull reports whether no further leaves can be appended.
func (t *Tree) IsFull() bool {
	return t != nil && t.Count >= t.Capacity()
}

// Append inserts a leaf and updates the root. It fails with ErrTreeFull once
// the capacity determined at creation time is reached.
func (t *Tree) Append(leaf [32]byte) error {
	if t == nil {
		return ErrInvalidLeaf
	}
	if t.IsFull() {
		return fmt.Errorf("%w: capacity %d", ErrTreeFull, t.Capacity())
	}
	zeros := zeroHashes(t.Depth)
	node := leaf
	index := t.Count
	for level := uint32(0); level < t.Depth; level++ {
		if index%2 == 0 {
			t.FilledSubtrees[level] = node
			node = hashPair(node, zeros[level])
		} else {
			node = hashPair(t.FilledSubtrees[level], node)
		}
		index /= 2
	}
	t.Root = node
	t.Count++
	return nil
}

// Clone returns a deep copy of the tree.
func (t *Tree) Clone() *Tree {
	if t == nil {
		return nil
	}
	clone := *t
	clone.FilledSubtrees = make([][32]byte, len(t.FilledSubtrees))
	copy(clone.FilledSubtrees, t.FilledSubtrees)
	return &clone
}

// LeafMetadata is the buyer-supplied display payload carried by a compressed
// receipt.
type LeafMetadata struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
	URI    string `json:"uri"`
}

// Leaf computes the canonical hash for a receipt owned by owner and verified
// against the product's collection mint. Fields are length prefixed so no two
// distinct payloads collide by concatenation.
func Leaf(owner, collection solana.PublicKey, meta LeafMetadata) [32]byte {
	buf := make([]byte, 0, 64+len(meta.Name)+len(meta.Symbol)+len(meta.URI)+12)
	buf = append(buf, owner.Bytes()...)
	buf = append(buf, collection.Bytes()...)
	for _, field := range []string{meta.Name, meta.Symbol, meta.URI} {
		var size [4]byte
		binary.LittleEndian.PutUint32(size[:], uint32(len(field)))
		buf = append(buf, size[:]...)
		buf = append(buf, field...)
	}
	var out [32]byte
	copy(out[:], ethcrypto.Keccak256(buf))
	return out
}

func hashPair(left, right [32]byte) [32]byte {
	var out [32]byte
	copy(out[:], ethcrypto.Keccak256(left[:], right[:]))
	return out
}

// zeroHashes returns the zero-subtree hashes for levels 0..depth. Index 0 is
// the empty leaf, index depth the root of an empty tree.
func zeroHashes(depth uint32) [][32]byte {
	out := make([][32]byte, depth+1)
	for level := uint32(1); level <= depth; level++ {
		out[level] = hashPair(out[level-1], out[level-1])
	}
	return out
}
