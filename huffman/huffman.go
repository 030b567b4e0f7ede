// Package huffman builds canonical Huffman decoders from per-symbol code
// lengths, per RFC 1951 section 3.2.2, and walks them bit by bit against a
// bitreader.Reader.
package huffman

import (
	"errors"
	"fmt"
	"sync"

	"github.com/bantic/gzinspect/bitreader"
)

// ErrBadHuffmanWalk is returned when decoding walks an edge that was never
// assigned a child, or attempts to decode from an empty tree. It indicates
// a corrupt DEFLATE stream.
var ErrBadHuffmanWalk = errors.New("huffman: decode reached an absent edge")

const noChild = -1
const noSymbol = -1

// node is one entry of the flat trie. zero/one are indexes into Tree.nodes
// (noChild if absent); symbol is noSymbol for internal nodes. This is the
// "flat vector of nodes" representation rather than a pointer graph, so
// that building a tree per dynamic block doesn't allocate one heap object
// per trie node.
type node struct {
	zero, one int32
	symbol    int32
}

// Tree is a canonical Huffman decoder: a binary trie whose leaves carry
// symbol values, read MSB-first.
type Tree struct {
	nodes []node
}

func newTree() *Tree {
	return &Tree{nodes: []node{{zero: noChild, one: noChild, symbol: noSymbol}}}
}

// FromCodeLengths builds a canonical Huffman tree from a vector of
// per-symbol code lengths over alphabet 0..len(lengths). A length of 0
// means the symbol is absent from the alphabet.
func FromCodeLengths(lengths []int) (*Tree, error) {
	maxLen := 0
	for _, l := range lengths {
		if l > maxLen {
			maxLen = l
		}
	}

	t := newTree()
	if maxLen == 0 {
		return t, nil
	}

	count := make([]int, maxLen+1)
	for _, l := range lengths {
		if l > 0 {
			count[l]++
		}
	}

	nextCode := make([]int, maxLen+1)
	code := 0
	for b := 1; b <= maxLen; b++ {
		code = (code + count[b-1]) << 1
		nextCode[b] = code
	}

	for sym, l := range lengths {
		if l == 0 {
			continue
		}
		c := nextCode[l]
		nextCode[l]++
		if err := t.insert(c, l, int32(sym)); err != nil {
			return nil, err
		}
	}

	return t, nil
}

// headerCodeLengthOrder is the fixed permutation RFC 1951 uses to transmit
// the meta-tree's code lengths; it concentrates likely-present codes at
// the front of the encoded stream.
var headerCodeLengthOrder = [19]int{16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15}

// FromHeaderCodeLengths builds the meta-tree for a dynamic block from the
// HCLEN+4 code lengths read directly off the wire, reordering them
// according to headerCodeLengthOrder before canonical construction.
func FromHeaderCodeLengths(raw []int) (*Tree, error) {
	full := make([]int, len(headerCodeLengthOrder))
	for i, v := range raw {
		full[headerCodeLengthOrder[i]] = v
	}
	return FromCodeLengths(full)
}

var (
	fixedOnce sync.Once
	fixedTree *Tree
)

// Fixed returns the built-in literal/length tree defined by RFC 1951
// section 3.2.6. It is computed once and memoized.
func Fixed() *Tree {
	fixedOnce.Do(func() {
		lengths := make([]int, 288)
		for i := 0; i <= 143; i++ {
			lengths[i] = 8
		}
		for i := 144; i <= 255; i++ {
			lengths[i] = 9
		}
		for i := 256; i <= 279; i++ {
			lengths[i] = 7
		}
		for i := 280; i <= 287; i++ {
			lengths[i] = 8
		}
		t, err := FromCodeLengths(lengths)
		if err != nil {
			// Unreachable: the fixed lengths are a fixed, valid canonical code.
			panic(fmt.Sprintf("huffman: building fixed tree: %v", err))
		}
		fixedTree = t
	})
	return fixedTree
}

func (t *Tree) insert(code, length int, symbol int32) error {
	idx := int32(0)
	for b := length - 1; b >= 0; b-- {
		bit := (code >> uint(b)) & 1
		if bit == 1 {
			if t.nodes[idx].one == noChild {
				t.nodes = append(t.nodes, node{zero: noChild, one: noChild, symbol: noSymbol})
				t.nodes[idx].one = int32(len(t.nodes) - 1)
			}
			idx = t.nodes[idx].one
		} else {
			if t.nodes[idx].zero == noChild {
				t.nodes = append(t.nodes, node{zero: noChild, one: noChild, symbol: noSymbol})
				t.nodes[idx].zero = int32(len(t.nodes) - 1)
			}
			idx = t.nodes[idx].zero
		}
	}
	if t.nodes[idx].symbol != noSymbol {
		return fmt.Errorf("huffman: duplicate code assigned to symbol %d", symbol)
	}
	t.nodes[idx].symbol = symbol
	return nil
}

// Decode walks the trie one bit at a time from br until a leaf is reached,
// returning its symbol. It returns ErrBadHuffmanWalk if a walked edge is
// absent, or the reader's own error (typically bitreader.ErrUnexpectedEOF)
// if the source is exhausted mid-walk.
func (t *Tree) Decode(br *bitreader.Reader) (int32, error) {
	idx := int32(0)
	for {
		n := t.nodes[idx]
		if n.zero == noChild && n.one == noChild {
			if n.symbol == noSymbol {
				return 0, ErrBadHuffmanWalk
			}
			return n.symbol, nil
		}

		bit, err := br.ReadBitsInv(1)
		if err != nil {
			return 0, err
		}

		if bit == 1 {
			idx = n.one
		} else {
			idx = n.zero
		}
		if idx == noChild {
			return 0, ErrBadHuffmanWalk
		}
	}
}

// Equal reports whether two trees decode identically, used to confirm
// the fixed tree matches whichever way it was constructed.
func (t *Tree) Equal(other *Tree) bool {
	if len(t.nodes) != len(other.nodes) {
		return false
	}
	for i := range t.nodes {
		if t.nodes[i] != other.nodes[i] {
			return false
		}
	}
	return true
}
