// Package accumulator maintains an append-only sequence of archive roots
// and seals it into checkpoint roots against which inclusion of any entry
// can be proven, before and after sealing.
package accumulator

import (
	"errors"
	"sync"

	"github.com/coldstore/blockarchive/merkle"
)

// MaxEntries bounds the number of archive roots one accumulator (and so one
// checkpoint) can cover. It fixes the padded tree shape: every inclusion
// proof carries exactly ProofDepth siblings.
const MaxEntries = 65536

// ProofDepth is the sibling count of every inclusion proof. The length-mix
// step sits above the element tree and is recomputed by the verifier, not
// carried in the path.
const ProofDepth = 16

var (
	// ErrSealed is returned by Append and Seal once the accumulator has
	// been sealed. Callers open a fresh accumulator for later entries.
	ErrSealed = errors.New("accumulator: sealed")
	// ErrFull is returned by Append at MaxEntries.
	ErrFull = errors.New("accumulator: full")
	// ErrIndexOutOfRange is returned by ProveInclusion for an index at or
	// past the entry count.
	ErrIndexOutOfRange = errors.New("accumulator: index out of range")
	// ErrMalformedProof is returned by VerifyInclusion for a sibling path
	// whose length does not match ProofDepth.
	ErrMalformedProof = errors.New("accumulator: malformed proof")
)

// Entry is one appended archive root with its assigned sequence index.
type Entry struct {
	Index uint64
	Root  [32]byte
}

// Checkpoint is the immutable result of sealing: the length-mixed root over
// the entry sequence and the entry count it covers. A later accumulator's
// entries start where a sealed checkpoint's left off; no linkage beyond
// that is recorded.
type Checkpoint struct {
	Root  [32]byte
	Count uint64
}

// Proof is a sibling path for one entry against a root covering count
// entries. Index and Count are the values the path was issued for.
type Proof struct {
	Index uint64
	Count uint64
	Path  [][32]byte
}

// Accumulator is an append-only ordered sequence of archive roots.
// Appends and sealing are serialized by an internal lock; proofs are
// computed against a snapshot taken under the same lock, so readers may
// proceed concurrently with appends.
type Accumulator struct {
	mu      sync.RWMutex
	entries [][32]byte
	sealed  bool
	ckpt    Checkpoint
}

// New returns an empty, open accumulator.
func New() *Accumulator {
	return &Accumulator{}
}

// Append adds an archive root at the next index and returns that index.
// It fails with ErrSealed after Seal.
func (a *Accumulator) Append(root [32]byte) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sealed {
		return 0, ErrSealed
	}
	if len(a.entries) >= MaxEntries {
		return 0, ErrFull
	}
	a.entries = append(a.entries, root)
	return uint64(len(a.entries) - 1), nil
}

// Len returns the current entry count.
func (a *Accumulator) Len() uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return uint64(len(a.entries))
}

// Sealed reports whether Seal has been called.
func (a *Accumulator) Sealed() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.sealed
}

// Entries returns a copy of the entry sequence.
func (a *Accumulator) Entries() []Entry {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]Entry, len(a.entries))
	for i, r := range a.entries {
		out[i] = Entry{Index: uint64(i), Root: r}
	}
	return out
}

// Root returns the length-mixed root over the current entry sequence: the
// live root while open, the checkpoint root once sealed. An empty
// accumulator has a defined root.
func (a *Accumulator) Root() [32]byte {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.sealed {
		return a.ckpt.Root
	}
	return merkle.ListRoot(a.entries, MaxEntries)
}

// Seal closes the accumulator. The transition is one-way: any Append
// already holding the lock lands either wholly before or wholly after it,
// and every Append afterwards fails ErrSealed. Sealing twice fails
// ErrSealed; the first checkpoint stands.
func (a *Accumulator) Seal() (Checkpoint, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sealed {
		return Checkpoint{}, ErrSealed
	}
	a.sealed = true
	a.ckpt = Checkpoint{
		Root:  merkle.ListRoot(a.entries, MaxEntries),
		Count: uint64(len(a.entries)),
	}
	return a.ckpt, nil
}

// Checkpoint returns the sealed checkpoint, if any.
func (a *Accumulator) Checkpoint() (Checkpoint, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.ckpt, a.sealed
}

// ProveInclusion returns a proof that the entry at index is part of the
// current sequence. While open, the proof verifies against the live Root at
// the returned Count; once sealed, against the checkpoint root. It fails
// with ErrIndexOutOfRange past the end.
func (a *Accumulator) ProveInclusion(index uint64) (Proof, error) {
	a.mu.RLock()
	entries := a.entries
	a.mu.RUnlock()

	if index >= uint64(len(entries)) {
		return Proof{}, ErrIndexOutOfRange
	}
	path, err := merkle.ProvePath(entries, MaxEntries, index)
	if err != nil {
		return Proof{}, err
	}
	return Proof{
		Index: index,
		Count: uint64(len(entries)),
		Path:  path,
	}, nil
}

// VerifyInclusion recomputes the length-mixed sequence root from an entry
// root, its index, the covered entry count and a sibling path, and reports
// whether it matches expected (a live root or a published checkpoint root).
// A proof that merely fails to match yields false, not an error; only a
// path of the wrong length is rejected as malformed.
func VerifyInclusion(root [32]byte, index, count uint64, path [][32]byte, expected [32]byte) (bool, error) {
	if len(path) != ProofDepth {
		return false, ErrMalformedProof
	}
	if index >= count || count > MaxEntries {
		return false, nil
	}
	elements := merkle.PathRoot(root, index, path)
	return merkle.MixInLength(elements, count) == expected, nil
}
