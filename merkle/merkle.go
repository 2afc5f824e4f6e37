// Package merkle implements the generalized merkleization used for archive
// hash tree roots: 32-byte chunking, pairwise SHA-256 reduction with
// zero-padding to a declared limit, and length mixing for list types.
package merkle

import (
	"encoding/binary"

	"github.com/minio/sha256-simd"
)

// ChunkSize is the leaf width of the tree.
const ChunkSize = 32

// maxDepth bounds the zero-subtree cache. A depth-64 tree covers any limit
// representable in a uint64.
const maxDepth = 64

var zeroHashes [maxDepth + 1][32]byte

func init() {
	for i := 1; i <= maxDepth; i++ {
		zeroHashes[i] = Hash(zeroHashes[i-1], zeroHashes[i-1])
	}
}

// Hash combines two 32-byte nodes into their parent.
func Hash(a, b [32]byte) [32]byte {
	var buf [64]byte
	copy(buf[:32], a[:])
	copy(buf[32:], b[:])
	return sha256.Sum256(buf[:])
}

// ZeroHash returns the root of an all-zero subtree of the given depth.
// ZeroHash(0) is the zero chunk.
func ZeroHash(depth int) [32]byte {
	return zeroHashes[depth]
}

// Depth returns the tree depth needed to hold limit leaves, i.e. the
// base-2 logarithm of the next power of two. Depth(0) and Depth(1) are 0.
func Depth(limit uint64) int {
	if limit <= 1 {
		return 0
	}
	d := 0
	for uint64(1)<<uint(d) < limit {
		d++
	}
	return d
}

// Pack splits serialized bytes into 32-byte chunks, right-padding the last
// chunk with zeros. Empty input packs to no chunks.
func Pack(data []byte) [][32]byte {
	if len(data) == 0 {
		return nil
	}
	n := (len(data) + ChunkSize - 1) / ChunkSize
	chunks := make([][32]byte, n)
	for i := 0; i < n; i++ {
		start := i * ChunkSize
		end := start + ChunkSize
		if end > len(data) {
			end = len(data)
		}
		copy(chunks[i][:], data[start:end])
	}
	return chunks
}

// Merkleize reduces chunks to a single root in a tree padded out to limit
// leaves. Padding is virtual: absent subtrees resolve through the zero-hash
// cache rather than being materialized, so a large limit with few chunks
// costs O(len(chunks) + depth). A limit of 0 uses the next power of two of
// the chunk count. Merkleize(nil, 0) is the zero chunk.
func Merkleize(chunks [][32]byte, limit uint64) [32]byte {
	if limit == 0 {
		limit = uint64(len(chunks))
	}
	if limit < uint64(len(chunks)) {
		limit = uint64(len(chunks))
	}
	return subtreeRoot(chunks, Depth(limit))
}

func subtreeRoot(chunks [][32]byte, depth int) [32]byte {
	if len(chunks) == 0 {
		return zeroHashes[depth]
	}
	if depth == 0 {
		return chunks[0]
	}
	half := 1 << uint(depth-1)
	if len(chunks) <= half {
		return Hash(subtreeRoot(chunks, depth-1), zeroHashes[depth-1])
	}
	return Hash(subtreeRoot(chunks[:half], depth-1), subtreeRoot(chunks[half:], depth-1))
}

// MixInLength commits a list's element root to its actual length:
// hash(root || little_endian_64(length) || 24 zero bytes).
func MixInLength(root [32]byte, length uint64) [32]byte {
	var chunk [32]byte
	binary.LittleEndian.PutUint64(chunk[:8], length)
	return Hash(root, chunk)
}

// Uint64Root returns the single-chunk root of a little-endian uint64.
func Uint64Root(v uint64) [32]byte {
	var chunk [32]byte
	binary.LittleEndian.PutUint64(chunk[:8], v)
	return chunk
}

// BytesRoot returns the root of a fixed-width byte vector: its packed
// chunks merkleized without length mixing.
func BytesRoot(data []byte) [32]byte {
	return Merkleize(Pack(data), 0)
}

// ByteListRoot returns the root of a byte list bounded by maxBytes: packed
// chunks merkleized out to the chunk capacity of maxBytes, then mixed with
// the byte length.
func ByteListRoot(data []byte, maxBytes uint64) [32]byte {
	maxChunks := (maxBytes + ChunkSize - 1) / ChunkSize
	return MixInLength(Merkleize(Pack(data), maxChunks), uint64(len(data)))
}

// ListRoot returns the root of a list of composite elements given their
// roots: leaves merkleized out to maxLen, mixed with the element count.
func ListRoot(roots [][32]byte, maxLen uint64) [32]byte {
	return MixInLength(Merkleize(roots, maxLen), uint64(len(roots)))
}
