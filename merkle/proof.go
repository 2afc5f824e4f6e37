package merkle

import "errors"

var (
	// ErrLeafOutOfRange is returned when a proof is requested for a leaf
	// index beyond the tree's padded capacity.
	ErrLeafOutOfRange = errors.New("merkle: leaf index out of range")
	// ErrPathLength is returned when a sibling path does not match the
	// depth of the tree it claims to prove against.
	ErrPathLength = errors.New("merkle: sibling path length does not match tree depth")
)

// ProvePath returns the sibling hashes proving leaves[index] against the
// root of the tree padded out to limit leaves, ordered bottom-up. The path
// length always equals Depth(limit); callers proving list membership mix the
// recomputed root with the list length themselves.
func ProvePath(leaves [][32]byte, limit uint64, index uint64) ([][32]byte, error) {
	if limit < uint64(len(leaves)) {
		limit = uint64(len(leaves))
	}
	depth := Depth(limit)
	if index>>uint(depth) != 0 {
		return nil, ErrLeafOutOfRange
	}
	path := make([][32]byte, depth)
	for d := 0; d < depth; d++ {
		sib := (index >> uint(d)) ^ 1
		// The sibling is the root of the depth-d subtree rooted at
		// leaf position sib<<d.
		start := sib << uint(d)
		end := start + uint64(1)<<uint(d)
		if start >= uint64(len(leaves)) {
			path[d] = zeroHashes[d]
			continue
		}
		if end > uint64(len(leaves)) {
			end = uint64(len(leaves))
		}
		path[d] = subtreeRoot(leaves[start:end], d)
	}
	return path, nil
}

// PathRoot folds a sibling path back up from the leaf at index and returns
// the recomputed tree root.
func PathRoot(leaf [32]byte, index uint64, path [][32]byte) [32]byte {
	node := leaf
	for d := 0; d < len(path); d++ {
		if (index>>uint(d))&1 == 1 {
			node = Hash(path[d], node)
		} else {
			node = Hash(node, path[d])
		}
	}
	return node
}

// VerifyPath reports whether a sibling path reproduces root from the leaf
// at index. It fails with ErrPathLength if the path does not contain
// exactly depth siblings.
func VerifyPath(leaf [32]byte, index uint64, depth int, path [][32]byte, root [32]byte) (bool, error) {
	if len(path) != depth {
		return false, ErrPathLength
	}
	return PathRoot(leaf, index, path) == root, nil
}
