package spec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/holiman/uint256"
)

func bytesN(fill byte, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = fill
	}
	return b
}

func testHeader(number uint64) *ExecutionHeader {
	return &ExecutionHeader{
		ParentHash:    bytesN(0x11, 32),
		UncleHash:     bytesN(0x22, 32),
		FeeRecipient:  bytesN(0x33, 20),
		StateRoot:     bytesN(0x44, 32),
		TxHash:        bytesN(0x55, 32),
		ReceiptsRoot:  bytesN(0x66, 32),
		LogsBloom:     bytesN(0x77, 256),
		PrevRandao:    bytesN(0x88, 32),
		BlockNumber:   number,
		GasLimit:      30_000_000,
		GasUsed:       21_000,
		Timestamp:     1_600_000_000 + number,
		ExtraData:     []byte("geth"),
		BaseFeePerGas: *uint256.NewInt(7),
		MixDigest:     bytesN(0x99, 32),
		Nonce:         bytesN(0xaa, 8),
	}
}

func testLog() *Log {
	return &Log{
		Address: bytesN(0xbb, 20),
		Topics:  [][]byte{bytesN(0xcc, 32), bytesN(0xdd, 32)},
		Data:    []byte{1, 2, 3, 4, 5},
	}
}

func testReceipt(gas uint64) *Receipt {
	return &Receipt{
		PostState:         bytesN(0xee, 32),
		Status:            1,
		CumulativeGasUsed: gas,
		Logs:              []*Log{testLog()},
	}
}

func testBlock(number uint64) *Block {
	return &Block{
		Header:       testHeader(number),
		Transactions: [][]byte{bytesN(0x01, 100), bytesN(0x02, 33)},
		Uncles:       []*ExecutionHeader{testHeader(number - 1)},
		Receipts:     []*Receipt{testReceipt(21_000), testReceipt(42_000)},
	}
}

// reencode round-trips a value through its encoding and asserts the decoded
// value re-encodes to the identical bytes.
func reencode(t *testing.T, enc []byte, v interface {
	UnmarshalSSZ([]byte) error
	MarshalSSZ() ([]byte, error)
}) {
	t.Helper()
	if err := v.UnmarshalSSZ(enc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	enc2, err := v.MarshalSSZ()
	if err != nil {
		t.Fatalf("re-marshal: %v", err)
	}
	if !bytes.Equal(enc, enc2) {
		t.Fatal("re-encoded bytes differ from original encoding")
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	h := testHeader(100)
	enc, err := h.MarshalSSZ()
	if err != nil {
		t.Fatal(err)
	}
	if len(enc) != h.SizeSSZ() {
		t.Fatalf("encoded %d bytes, SizeSSZ says %d", len(enc), h.SizeSSZ())
	}
	var dec ExecutionHeader
	reencode(t, enc, &dec)
	if dec.BlockNumber != 100 || !bytes.Equal(dec.ExtraData, []byte("geth")) {
		t.Fatal("decoded fields mismatch")
	}
	if !dec.BaseFeePerGas.Eq(uint256.NewInt(7)) {
		t.Fatal("base fee mismatch")
	}
}

func TestLogRoundTrip(t *testing.T) {
	l := testLog()
	enc, err := l.MarshalSSZ()
	if err != nil {
		t.Fatal(err)
	}
	var dec Log
	reencode(t, enc, &dec)
	if len(dec.Topics) != 2 || !bytes.Equal(dec.Topics[1], bytesN(0xdd, 32)) {
		t.Fatal("decoded topics mismatch")
	}
	if !bytes.Equal(dec.Data, []byte{1, 2, 3, 4, 5}) {
		t.Fatal("decoded data mismatch")
	}
}

func TestReceiptRoundTrip(t *testing.T) {
	r := testReceipt(77)
	enc, err := r.MarshalSSZ()
	if err != nil {
		t.Fatal(err)
	}
	var dec Receipt
	reencode(t, enc, &dec)
	if dec.CumulativeGasUsed != 77 || len(dec.Logs) != 1 {
		t.Fatal("decoded receipt mismatch")
	}
}

func TestBlockRoundTrip(t *testing.T) {
	b := testBlock(9)
	enc, err := b.MarshalSSZ()
	if err != nil {
		t.Fatal(err)
	}
	if len(enc) != b.SizeSSZ() {
		t.Fatalf("encoded %d bytes, SizeSSZ says %d", len(enc), b.SizeSSZ())
	}
	var dec Block
	reencode(t, enc, &dec)
	if len(dec.Transactions) != 2 || len(dec.Uncles) != 1 || len(dec.Receipts) != 2 {
		t.Fatal("decoded block shape mismatch")
	}
	if !bytes.Equal(dec.Transactions[0], bytesN(0x01, 100)) {
		t.Fatal("transaction payload not byte-identical")
	}
}

// The regression scenario: 2 transactions of 10 and 20 bytes, no uncles,
// 2 receipts each with one topicless, dataless log.
func TestBlockScenarioRoundTrip(t *testing.T) {
	b := &Block{
		Header:       testHeader(1),
		Transactions: [][]byte{bytesN(0xf1, 10), bytesN(0xf2, 20)},
		Receipts: []*Receipt{
			{PostState: bytesN(0, 32), Status: 1, CumulativeGasUsed: 21_000, Logs: []*Log{{Address: bytesN(0xab, 20)}}},
			{PostState: bytesN(0, 32), Status: 1, CumulativeGasUsed: 42_000, Logs: []*Log{{Address: bytesN(0xcd, 20)}}},
		},
	}
	enc, err := b.MarshalSSZ()
	if err != nil {
		t.Fatal(err)
	}
	var dec Block
	if err := dec.UnmarshalSSZ(enc); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(dec.Transactions[0], bytesN(0xf1, 10)) || !bytes.Equal(dec.Transactions[1], bytesN(0xf2, 20)) {
		t.Fatal("transaction payloads not byte-identical")
	}
	if len(dec.Uncles) != 0 {
		t.Fatal("expected no uncles")
	}
	if len(dec.Receipts) != 2 || len(dec.Receipts[0].Logs) != 1 {
		t.Fatal("receipt logs mismatch")
	}
	if len(dec.Receipts[0].Logs[0].Topics) != 0 || len(dec.Receipts[0].Logs[0].Data) != 0 {
		t.Fatal("log should have no topics and no data")
	}
}

func TestTopicsBound(t *testing.T) {
	l := testLog()
	l.Topics = [][]byte{bytesN(1, 32), bytesN(2, 32), bytesN(3, 32), bytesN(4, 32)}
	if _, err := l.MarshalSSZ(); err != nil {
		t.Fatalf("exactly MaxTopicsPerLog topics should encode: %v", err)
	}
	l.Topics = append(l.Topics, bytesN(5, 32))
	if _, err := l.MarshalSSZ(); !errors.Is(err, ErrLengthExceeded) {
		t.Fatalf("expected ErrLengthExceeded, got %v", err)
	}
}

func TestUnclesBound(t *testing.T) {
	b := testBlock(50)
	b.Uncles = nil
	for i := 0; i < MaxUnclesPerPayload; i++ {
		b.Uncles = append(b.Uncles, testHeader(uint64(i)))
	}
	if _, err := b.MarshalSSZ(); err != nil {
		t.Fatalf("exactly MaxUnclesPerPayload uncles should encode: %v", err)
	}
	b.Uncles = append(b.Uncles, testHeader(99))
	if _, err := b.MarshalSSZ(); !errors.Is(err, ErrLengthExceeded) {
		t.Fatalf("expected ErrLengthExceeded, got %v", err)
	}
}

func TestExtraDataBound(t *testing.T) {
	h := testHeader(1)
	h.ExtraData = bytesN(0, MaxExtraDataBytes)
	if _, err := h.MarshalSSZ(); err != nil {
		t.Fatal(err)
	}
	h.ExtraData = bytesN(0, MaxExtraDataBytes+1)
	if _, err := h.MarshalSSZ(); !errors.Is(err, ErrLengthExceeded) {
		t.Fatalf("expected ErrLengthExceeded, got %v", err)
	}
}

func TestFixedFieldSize(t *testing.T) {
	h := testHeader(1)
	h.ParentHash = bytesN(0, 31)
	if _, err := h.MarshalSSZ(); !errors.Is(err, ErrSize) {
		t.Fatalf("expected ErrSize, got %v", err)
	}
}

func TestTruncatedInput(t *testing.T) {
	h := testHeader(1)
	enc, err := h.MarshalSSZ()
	if err != nil {
		t.Fatal(err)
	}
	var dec ExecutionHeader
	if err := dec.UnmarshalSSZ(enc[:100]); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
	var blk Block
	if err := blk.UnmarshalSSZ([]byte{1, 2, 3}); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestMalformedOffsets(t *testing.T) {
	l := testLog()
	enc, err := l.MarshalSSZ()
	if err != nil {
		t.Fatal(err)
	}

	// Topics offset pointing past the buffer.
	bad := append([]byte{}, enc...)
	binary.LittleEndian.PutUint32(bad[24:28], uint32(len(bad)+1))
	var dec Log
	if err := dec.UnmarshalSSZ(bad); !errors.Is(err, ErrBadOffset) {
		t.Fatalf("expected ErrBadOffset for out-of-bounds offset, got %v", err)
	}

	// Decreasing offsets.
	bad = append([]byte{}, enc...)
	binary.LittleEndian.PutUint32(bad[24:28], 8)
	if err := dec.UnmarshalSSZ(bad); !errors.Is(err, ErrBadOffset) {
		t.Fatalf("expected ErrBadOffset for decreasing offsets, got %v", err)
	}

	// First offset disagreeing with the fixed-part size.
	bad = append([]byte{}, enc...)
	binary.LittleEndian.PutUint32(bad[20:24], logFixedSize+1)
	if err := dec.UnmarshalSSZ(bad); !errors.Is(err, ErrBadOffset) {
		t.Fatalf("expected ErrBadOffset for misplaced first offset, got %v", err)
	}
}

func TestMalformedBlockOffsets(t *testing.T) {
	b := testBlock(3)
	enc, err := b.MarshalSSZ()
	if err != nil {
		t.Fatal(err)
	}
	bad := append([]byte{}, enc...)
	// Swap the uncles and receipts offsets so they decrease.
	o2 := binary.LittleEndian.Uint32(bad[8:12])
	o3 := binary.LittleEndian.Uint32(bad[12:16])
	binary.LittleEndian.PutUint32(bad[8:12], o3)
	binary.LittleEndian.PutUint32(bad[12:16], o2)
	var dec Block
	if err := dec.UnmarshalSSZ(bad); !errors.Is(err, ErrBadOffset) {
		t.Fatalf("expected ErrBadOffset, got %v", err)
	}
}

func TestDecodeOversizedTopicCount(t *testing.T) {
	// Hand-build a log encoding carrying 5 topics.
	var enc []byte
	enc = append(enc, bytesN(0xbb, 20)...)
	enc = appendOffset(enc, logFixedSize)
	enc = appendOffset(enc, logFixedSize+32*5)
	for i := 0; i < 5; i++ {
		enc = append(enc, bytesN(byte(i), 32)...)
	}
	var dec Log
	if err := dec.UnmarshalSSZ(enc); !errors.Is(err, ErrLengthExceeded) {
		t.Fatalf("expected ErrLengthExceeded, got %v", err)
	}
}

func TestEmptyBodyRoundTrip(t *testing.T) {
	body := &ArchiveBody{}
	enc, err := body.MarshalSSZ()
	if err != nil {
		t.Fatal(err)
	}
	var dec ArchiveBody
	if err := dec.UnmarshalSSZ(enc); err != nil {
		t.Fatal(err)
	}
	if len(dec.Blocks) != 0 {
		t.Fatal("expected no blocks")
	}
}
