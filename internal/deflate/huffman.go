// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package deflate

import "github.com/cosnicolaou/pngpeek/internal/pngerr"

// noChild marks a codeNode child slot as holding a leaf rather than the
// index of another internal node, the way internal/bzip2/huffman.go's
// invalidNodeValue marks a leaf child.
const noChild = 0xffff

// codeNode is one interior node of a canonical Huffman tree. left/right are
// indices into the owning codeTree's nodes slice, or noChild if that side of
// the split is a leaf, in which case leftSymbol/rightSymbol hold the decoded
// symbol.
type codeNode struct {
	left, right             uint16
	leftSymbol, rightSymbol uint16
}

// codeTree is a canonical Huffman code built from a per-symbol code-length
// vector, per RFC 1951 §3.2.2. It is immutable once built.
type codeTree struct {
	nodes []codeNode
	root  uint16 // index into nodes of the tree root; always an internal node
}

// maxCodeLength is the longest code length DEFLATE allows.
const maxCodeLength = 15

// buildItem is a node awaiting attachment at the next shallower depth: a
// leaf of a given symbol, or the already-built internal node at the given
// arena index.
type buildItem struct {
	isLeaf bool
	symbol uint16
	index  uint16
}

// newCodeTree builds a canonical Huffman tree from lengths, one entry per
// symbol (0 meaning "this symbol has no code"). It walks code lengths from
// 15 down to 1, pairing up the previous (deeper) layer's roots into interior
// nodes and prepending newly introduced leaves at the current depth, the
// construction specified by RFC 1951 §3.2.2 and mirrored by
// original_source/deflate/code_tree.py.
func newCodeTree(lengths []int) (*codeTree, error) {
	if len(lengths) < 2 {
		return nil, pngerr.CorruptStreamError{Reason: "huffman code needs at least two symbols"}
	}
	for _, l := range lengths {
		if l < 0 || l > maxCodeLength {
			return nil, pngerr.CorruptStreamError{Reason: "illegal huffman code length"}
		}
	}

	t := &codeTree{}
	var layer []buildItem // roots of the previous (one level deeper) layer

	for depth := maxCodeLength; depth >= 0; depth-- {
		if len(layer)%2 != 0 {
			return nil, pngerr.CorruptStreamError{Reason: "huffman code lengths do not form a valid canonical code"}
		}
		var next []buildItem
		if depth > 0 {
			for sym, l := range lengths {
				if l == depth {
					next = append(next, buildItem{isLeaf: true, symbol: uint16(sym)})
				}
			}
		}
		for j := 0; j < len(layer); j += 2 {
			left, right := layer[j], layer[j+1]
			var n codeNode
			if left.isLeaf {
				n.left, n.leftSymbol = noChild, left.symbol
			} else {
				n.left = left.index
			}
			if right.isLeaf {
				n.right, n.rightSymbol = noChild, right.symbol
			} else {
				n.right = right.index
			}
			t.nodes = append(t.nodes, n)
			next = append(next, buildItem{index: uint16(len(t.nodes) - 1)})
		}
		layer = next
	}

	if len(layer) != 1 || layer[0].isLeaf {
		return nil, pngerr.CorruptStreamError{Reason: "huffman code lengths do not form a valid canonical code"}
	}
	t.root = layer[0].index
	return t, nil
}

// decode walks the tree from the root, reading one bit at a time from br,
// descending left on 0 and right on 1, until a leaf is reached.
func (t *codeTree) decode(br *bitReader) (int, error) {
	idx := t.root
	for {
		node := &t.nodes[idx]
		bit, err := br.ReadBit()
		if err != nil {
			return 0, err
		}
		var child, symbol uint16
		if bit == 0 {
			child, symbol = node.left, node.leftSymbol
		} else {
			child, symbol = node.right, node.rightSymbol
		}
		if child == noChild {
			return int(symbol), nil
		}
		idx = child
	}
}
