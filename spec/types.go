// Package spec defines the block archive container schema and its canonical
// byte encoding: SSZ-style containers with little-endian integers, 4-byte
// offsets for variable-size fields, and hash tree roots with length mixing.
package spec

import (
	"errors"

	"github.com/holiman/uint256"
)

// List and byte-sequence bounds. These are part of the wire format: they fix
// the padded tree shapes that hash tree roots commit to.
const (
	MaxTopicsPerLog           = 4
	MaxLogDataBytes           = 4194304
	MaxLogsPerPayload         = 1048576
	MaxTransactionsPerPayload = 1048576
	MaxBytesPerTransaction    = 1073741824
	MaxUnclesPerPayload       = 10
	MaxExtraDataBytes         = 32
	MaxPayloadsPerArchive     = 1000000
)

var (
	// ErrLengthExceeded reports a list or byte sequence longer than its
	// declared maximum, at encode or decode time.
	ErrLengthExceeded = errors.New("spec: length exceeds declared maximum")
	// ErrTruncated reports a decode buffer with fewer bytes than the
	// fixed part of a container declares.
	ErrTruncated = errors.New("spec: truncated input")
	// ErrBadOffset reports offsets that are not monotonically
	// non-decreasing, point outside the buffer, or disagree with the
	// fixed-part size.
	ErrBadOffset = errors.New("spec: malformed offsets")
	// ErrSize reports a fixed-width byte field whose value has the wrong
	// length at encode time.
	ErrSize = errors.New("spec: invalid fixed field size")
	// ErrArchiveOverflow reports an archive build with more blocks than
	// MaxPayloadsPerArchive.
	ErrArchiveOverflow = errors.New("spec: too many blocks for one archive")
	// ErrHeaderBodyMismatch reports a decoded archive whose header block
	// count disagrees with the body.
	ErrHeaderBodyMismatch = errors.New("spec: header block count does not match body")
)

// Log is one receipt log entry.
type Log struct {
	Address []byte   `ssz-size:"20"`
	Topics  [][]byte `ssz-max:"4" ssz-size:"?,32"`
	Data    []byte   `ssz-max:"4194304"`
}

// Receipt is the consensus form of one transaction receipt.
type Receipt struct {
	PostState         []byte `ssz-size:"32"`
	Status            uint64
	CumulativeGasUsed uint64
	Logs              []*Log `ssz-max:"1048576"`
}

// ExecutionHeader mirrors the execution block header. ExtraData is the only
// variable-size field; BaseFeePerGas is a 256-bit little-endian integer.
type ExecutionHeader struct {
	ParentHash    []byte `ssz-size:"32"`
	UncleHash     []byte `ssz-size:"32"`
	FeeRecipient  []byte `ssz-size:"20"`
	StateRoot     []byte `ssz-size:"32"`
	TxHash        []byte `ssz-size:"32"`
	ReceiptsRoot  []byte `ssz-size:"32"`
	LogsBloom     []byte `ssz-size:"256"`
	PrevRandao    []byte `ssz-size:"32"`
	BlockNumber   uint64
	GasLimit      uint64
	GasUsed       uint64
	Timestamp     uint64
	ExtraData     []byte `ssz-max:"32"`
	BaseFeePerGas uint256.Int
	MixDigest     []byte `ssz-size:"32"`
	Nonce         []byte `ssz-size:"8"`
}

// Block pairs a header with its opaque transaction payloads, uncle headers
// and receipts. Uncles carry headers only, never further uncles. The codec
// does not require the transaction and receipt counts to agree; that is a
// semantic check owned by callers.
type Block struct {
	Header       *ExecutionHeader
	Transactions [][]byte           `ssz-max:"1048576,1073741824"`
	Uncles       []*ExecutionHeader `ssz-max:"10"`
	Receipts     []*Receipt         `ssz-max:"1048576"`
}

// ArchiveHeader describes the body it accompanies. HeadBlockNumber is the
// highest block number present; BlockCount must equal the body's length.
type ArchiveHeader struct {
	Version         uint64
	HeadBlockNumber uint64
	BlockCount      uint64
}

// ArchiveBody holds an archive's block sequence.
type ArchiveBody struct {
	Blocks []*Block `ssz-max:"1000000"`
}

// Archive is the header/body pair, built once and identified by its hash
// tree root.
type Archive struct {
	Header ArchiveHeader
	Body   ArchiveBody
}
