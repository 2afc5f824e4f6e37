package spec

import (
	"encoding/binary"

	"github.com/holiman/uint256"
)

// Fixed-part sizes. Variable-size fields contribute a 4-byte offset at
// their declared position; payloads follow the fixed part in field order.
const (
	bytesPerOffset           = 4
	logFixedSize             = 28
	receiptFixedSize         = 52
	executionHeaderFixedSize = 576
	blockFixedSize           = 16
	archiveHeaderSize        = 24
	archiveBodyFixedSize     = 4
	archiveFixedSize         = archiveHeaderSize + bytesPerOffset
)

func appendUint64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

func appendOffset(buf []byte, o int) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(o))
	return append(buf, b[:]...)
}

func readOffset(buf []byte) uint64 {
	return uint64(binary.LittleEndian.Uint32(buf))
}

func appendFixedBytes(buf, b []byte, size int) ([]byte, error) {
	if len(b) != size {
		return nil, ErrSize
	}
	return append(buf, b...), nil
}

func appendUint256(buf []byte, v *uint256.Int) []byte {
	var b [32]byte
	binary.LittleEndian.PutUint64(b[0:8], v[0])
	binary.LittleEndian.PutUint64(b[8:16], v[1])
	binary.LittleEndian.PutUint64(b[16:24], v[2])
	binary.LittleEndian.PutUint64(b[24:32], v[3])
	return append(buf, b[:]...)
}

func readUint256(buf []byte) uint256.Int {
	return uint256.Int{
		binary.LittleEndian.Uint64(buf[0:8]),
		binary.LittleEndian.Uint64(buf[8:16]),
		binary.LittleEndian.Uint64(buf[16:24]),
		binary.LittleEndian.Uint64(buf[24:32]),
	}
}

// decodeDynamicList slices a list-of-variable-size payload into its
// elements using the leading offset table. An empty payload is an empty
// list. Offsets must be monotonically non-decreasing and inside the buffer.
func decodeDynamicList(buf []byte, maxCount uint64) ([][]byte, error) {
	if len(buf) == 0 {
		return nil, nil
	}
	if len(buf) < bytesPerOffset {
		return nil, ErrTruncated
	}
	first := readOffset(buf)
	if first%bytesPerOffset != 0 || first > uint64(len(buf)) {
		return nil, ErrBadOffset
	}
	count := first / bytesPerOffset
	if count > maxCount {
		return nil, ErrLengthExceeded
	}
	elems := make([][]byte, count)
	prev := first
	for i := uint64(0); i < count; i++ {
		next := uint64(len(buf))
		if i < count-1 {
			next = readOffset(buf[(i+1)*bytesPerOffset:])
		}
		if next < prev || next > uint64(len(buf)) {
			return nil, ErrBadOffset
		}
		elems[i] = buf[prev:next]
		prev = next
	}
	return elems, nil
}

// --- Log ---

func (l *Log) SizeSSZ() int {
	return logFixedSize + 32*len(l.Topics) + len(l.Data)
}

func (l *Log) MarshalSSZ() ([]byte, error) {
	return l.MarshalSSZTo(make([]byte, 0, l.SizeSSZ()))
}

func (l *Log) MarshalSSZTo(buf []byte) ([]byte, error) {
	if len(l.Topics) > MaxTopicsPerLog || len(l.Data) > MaxLogDataBytes {
		return nil, ErrLengthExceeded
	}
	var err error
	if buf, err = appendFixedBytes(buf, l.Address, 20); err != nil {
		return nil, err
	}
	buf = appendOffset(buf, logFixedSize)
	buf = appendOffset(buf, logFixedSize+32*len(l.Topics))
	for _, t := range l.Topics {
		if buf, err = appendFixedBytes(buf, t, 32); err != nil {
			return nil, err
		}
	}
	buf = append(buf, l.Data...)
	return buf, nil
}

func (l *Log) UnmarshalSSZ(buf []byte) error {
	if len(buf) < logFixedSize {
		return ErrTruncated
	}
	o1 := readOffset(buf[20:])
	o2 := readOffset(buf[24:])
	if o1 != logFixedSize || o2 < o1 || o2 > uint64(len(buf)) {
		return ErrBadOffset
	}
	topics := buf[o1:o2]
	if len(topics)%32 != 0 {
		return ErrBadOffset
	}
	if len(topics)/32 > MaxTopicsPerLog {
		return ErrLengthExceeded
	}
	data := buf[o2:]
	if len(data) > MaxLogDataBytes {
		return ErrLengthExceeded
	}
	l.Address = append([]byte{}, buf[0:20]...)
	l.Topics = make([][]byte, 0, len(topics)/32)
	for i := 0; i < len(topics); i += 32 {
		l.Topics = append(l.Topics, append([]byte{}, topics[i:i+32]...))
	}
	l.Data = append([]byte{}, data...)
	return nil
}

// --- Receipt ---

func (r *Receipt) SizeSSZ() int {
	size := receiptFixedSize
	for _, l := range r.Logs {
		size += bytesPerOffset + l.SizeSSZ()
	}
	return size
}

func (r *Receipt) MarshalSSZ() ([]byte, error) {
	return r.MarshalSSZTo(make([]byte, 0, r.SizeSSZ()))
}

func (r *Receipt) MarshalSSZTo(buf []byte) ([]byte, error) {
	if len(r.Logs) > MaxLogsPerPayload {
		return nil, ErrLengthExceeded
	}
	var err error
	if buf, err = appendFixedBytes(buf, r.PostState, 32); err != nil {
		return nil, err
	}
	buf = appendUint64(buf, r.Status)
	buf = appendUint64(buf, r.CumulativeGasUsed)
	buf = appendOffset(buf, receiptFixedSize)

	off := bytesPerOffset * len(r.Logs)
	for _, l := range r.Logs {
		buf = appendOffset(buf, off)
		off += l.SizeSSZ()
	}
	for _, l := range r.Logs {
		if buf, err = l.MarshalSSZTo(buf); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func (r *Receipt) UnmarshalSSZ(buf []byte) error {
	if len(buf) < receiptFixedSize {
		return ErrTruncated
	}
	o := readOffset(buf[48:])
	if o != receiptFixedSize || o > uint64(len(buf)) {
		return ErrBadOffset
	}
	elems, err := decodeDynamicList(buf[o:], MaxLogsPerPayload)
	if err != nil {
		return err
	}
	r.PostState = append([]byte{}, buf[0:32]...)
	r.Status = binary.LittleEndian.Uint64(buf[32:40])
	r.CumulativeGasUsed = binary.LittleEndian.Uint64(buf[40:48])
	r.Logs = make([]*Log, len(elems))
	for i, e := range elems {
		r.Logs[i] = new(Log)
		if err := r.Logs[i].UnmarshalSSZ(e); err != nil {
			return err
		}
	}
	return nil
}

// --- ExecutionHeader ---

func (h *ExecutionHeader) SizeSSZ() int {
	return executionHeaderFixedSize + len(h.ExtraData)
}

func (h *ExecutionHeader) MarshalSSZ() ([]byte, error) {
	return h.MarshalSSZTo(make([]byte, 0, h.SizeSSZ()))
}

func (h *ExecutionHeader) MarshalSSZTo(buf []byte) ([]byte, error) {
	if len(h.ExtraData) > MaxExtraDataBytes {
		return nil, ErrLengthExceeded
	}
	var err error
	if buf, err = appendFixedBytes(buf, h.ParentHash, 32); err != nil {
		return nil, err
	}
	if buf, err = appendFixedBytes(buf, h.UncleHash, 32); err != nil {
		return nil, err
	}
	if buf, err = appendFixedBytes(buf, h.FeeRecipient, 20); err != nil {
		return nil, err
	}
	if buf, err = appendFixedBytes(buf, h.StateRoot, 32); err != nil {
		return nil, err
	}
	if buf, err = appendFixedBytes(buf, h.TxHash, 32); err != nil {
		return nil, err
	}
	if buf, err = appendFixedBytes(buf, h.ReceiptsRoot, 32); err != nil {
		return nil, err
	}
	if buf, err = appendFixedBytes(buf, h.LogsBloom, 256); err != nil {
		return nil, err
	}
	if buf, err = appendFixedBytes(buf, h.PrevRandao, 32); err != nil {
		return nil, err
	}
	buf = appendUint64(buf, h.BlockNumber)
	buf = appendUint64(buf, h.GasLimit)
	buf = appendUint64(buf, h.GasUsed)
	buf = appendUint64(buf, h.Timestamp)
	buf = appendOffset(buf, executionHeaderFixedSize)
	buf = appendUint256(buf, &h.BaseFeePerGas)
	if buf, err = appendFixedBytes(buf, h.MixDigest, 32); err != nil {
		return nil, err
	}
	if buf, err = appendFixedBytes(buf, h.Nonce, 8); err != nil {
		return nil, err
	}
	buf = append(buf, h.ExtraData...)
	return buf, nil
}

func (h *ExecutionHeader) UnmarshalSSZ(buf []byte) error {
	if len(buf) < executionHeaderFixedSize {
		return ErrTruncated
	}
	o := readOffset(buf[500:])
	if o != executionHeaderFixedSize || o > uint64(len(buf)) {
		return ErrBadOffset
	}
	extra := buf[o:]
	if len(extra) > MaxExtraDataBytes {
		return ErrLengthExceeded
	}
	h.ParentHash = append([]byte{}, buf[0:32]...)
	h.UncleHash = append([]byte{}, buf[32:64]...)
	h.FeeRecipient = append([]byte{}, buf[64:84]...)
	h.StateRoot = append([]byte{}, buf[84:116]...)
	h.TxHash = append([]byte{}, buf[116:148]...)
	h.ReceiptsRoot = append([]byte{}, buf[148:180]...)
	h.LogsBloom = append([]byte{}, buf[180:436]...)
	h.PrevRandao = append([]byte{}, buf[436:468]...)
	h.BlockNumber = binary.LittleEndian.Uint64(buf[468:476])
	h.GasLimit = binary.LittleEndian.Uint64(buf[476:484])
	h.GasUsed = binary.LittleEndian.Uint64(buf[484:492])
	h.Timestamp = binary.LittleEndian.Uint64(buf[492:500])
	h.BaseFeePerGas = readUint256(buf[504:536])
	h.MixDigest = append([]byte{}, buf[536:568]...)
	h.Nonce = append([]byte{}, buf[568:576]...)
	h.ExtraData = append([]byte{}, extra...)
	return nil
}

// --- Block ---

func (b *Block) SizeSSZ() int {
	size := blockFixedSize
	if b.Header != nil {
		size += b.Header.SizeSSZ()
	}
	for _, tx := range b.Transactions {
		size += bytesPerOffset + len(tx)
	}
	for _, u := range b.Uncles {
		size += bytesPerOffset + u.SizeSSZ()
	}
	for _, r := range b.Receipts {
		size += bytesPerOffset + r.SizeSSZ()
	}
	return size
}

func (b *Block) MarshalSSZ() ([]byte, error) {
	return b.MarshalSSZTo(make([]byte, 0, b.SizeSSZ()))
}

func (b *Block) MarshalSSZTo(buf []byte) ([]byte, error) {
	if b.Header == nil {
		b.Header = new(ExecutionHeader)
	}
	if len(b.Transactions) > MaxTransactionsPerPayload ||
		len(b.Uncles) > MaxUnclesPerPayload ||
		len(b.Receipts) > MaxTransactionsPerPayload {
		return nil, ErrLengthExceeded
	}
	for _, tx := range b.Transactions {
		if len(tx) > MaxBytesPerTransaction {
			return nil, ErrLengthExceeded
		}
	}

	txsSize := bytesPerOffset * len(b.Transactions)
	for _, tx := range b.Transactions {
		txsSize += len(tx)
	}
	unclesSize := bytesPerOffset * len(b.Uncles)
	for _, u := range b.Uncles {
		unclesSize += u.SizeSSZ()
	}

	o0 := blockFixedSize
	o1 := o0 + b.Header.SizeSSZ()
	o2 := o1 + txsSize
	o3 := o2 + unclesSize
	buf = appendOffset(buf, o0)
	buf = appendOffset(buf, o1)
	buf = appendOffset(buf, o2)
	buf = appendOffset(buf, o3)

	var err error
	if buf, err = b.Header.MarshalSSZTo(buf); err != nil {
		return nil, err
	}

	off := bytesPerOffset * len(b.Transactions)
	for _, tx := range b.Transactions {
		buf = appendOffset(buf, off)
		off += len(tx)
	}
	for _, tx := range b.Transactions {
		buf = append(buf, tx...)
	}

	off = bytesPerOffset * len(b.Uncles)
	for _, u := range b.Uncles {
		buf = appendOffset(buf, off)
		off += u.SizeSSZ()
	}
	for _, u := range b.Uncles {
		if buf, err = u.MarshalSSZTo(buf); err != nil {
			return nil, err
		}
	}

	off = bytesPerOffset * len(b.Receipts)
	for _, r := range b.Receipts {
		buf = appendOffset(buf, off)
		off += r.SizeSSZ()
	}
	for _, r := range b.Receipts {
		if buf, err = r.MarshalSSZTo(buf); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func (b *Block) UnmarshalSSZ(buf []byte) error {
	if len(buf) < blockFixedSize {
		return ErrTruncated
	}
	o0 := readOffset(buf[0:])
	o1 := readOffset(buf[4:])
	o2 := readOffset(buf[8:])
	o3 := readOffset(buf[12:])
	if o0 != blockFixedSize || o1 < o0 || o2 < o1 || o3 < o2 || o3 > uint64(len(buf)) {
		return ErrBadOffset
	}

	header := new(ExecutionHeader)
	if err := header.UnmarshalSSZ(buf[o0:o1]); err != nil {
		return err
	}

	txElems, err := decodeDynamicList(buf[o1:o2], MaxTransactionsPerPayload)
	if err != nil {
		return err
	}
	txs := make([][]byte, len(txElems))
	for i, e := range txElems {
		if len(e) > MaxBytesPerTransaction {
			return ErrLengthExceeded
		}
		txs[i] = append([]byte{}, e...)
	}

	uncleElems, err := decodeDynamicList(buf[o2:o3], MaxUnclesPerPayload)
	if err != nil {
		return err
	}
	uncles := make([]*ExecutionHeader, len(uncleElems))
	for i, e := range uncleElems {
		uncles[i] = new(ExecutionHeader)
		if err := uncles[i].UnmarshalSSZ(e); err != nil {
			return err
		}
	}

	rcptElems, err := decodeDynamicList(buf[o3:], MaxTransactionsPerPayload)
	if err != nil {
		return err
	}
	receipts := make([]*Receipt, len(rcptElems))
	for i, e := range rcptElems {
		receipts[i] = new(Receipt)
		if err := receipts[i].UnmarshalSSZ(e); err != nil {
			return err
		}
	}

	b.Header = header
	b.Transactions = txs
	b.Uncles = uncles
	b.Receipts = receipts
	return nil
}

// --- ArchiveHeader ---

func (h *ArchiveHeader) SizeSSZ() int { return archiveHeaderSize }

func (h *ArchiveHeader) MarshalSSZ() ([]byte, error) {
	return h.MarshalSSZTo(make([]byte, 0, archiveHeaderSize))
}

func (h *ArchiveHeader) MarshalSSZTo(buf []byte) ([]byte, error) {
	buf = appendUint64(buf, h.Version)
	buf = appendUint64(buf, h.HeadBlockNumber)
	buf = appendUint64(buf, h.BlockCount)
	return buf, nil
}

func (h *ArchiveHeader) UnmarshalSSZ(buf []byte) error {
	if len(buf) < archiveHeaderSize {
		return ErrTruncated
	}
	h.Version = binary.LittleEndian.Uint64(buf[0:8])
	h.HeadBlockNumber = binary.LittleEndian.Uint64(buf[8:16])
	h.BlockCount = binary.LittleEndian.Uint64(buf[16:24])
	return nil
}

// --- ArchiveBody ---

func (b *ArchiveBody) SizeSSZ() int {
	size := archiveBodyFixedSize
	for _, blk := range b.Blocks {
		size += bytesPerOffset + blk.SizeSSZ()
	}
	return size
}

func (b *ArchiveBody) MarshalSSZ() ([]byte, error) {
	return b.MarshalSSZTo(make([]byte, 0, b.SizeSSZ()))
}

func (b *ArchiveBody) MarshalSSZTo(buf []byte) ([]byte, error) {
	if len(b.Blocks) > MaxPayloadsPerArchive {
		return nil, ErrLengthExceeded
	}
	buf = appendOffset(buf, archiveBodyFixedSize)

	off := bytesPerOffset * len(b.Blocks)
	for _, blk := range b.Blocks {
		buf = appendOffset(buf, off)
		off += blk.SizeSSZ()
	}
	var err error
	for _, blk := range b.Blocks {
		if buf, err = blk.MarshalSSZTo(buf); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func (b *ArchiveBody) UnmarshalSSZ(buf []byte) error {
	if len(buf) < archiveBodyFixedSize {
		return ErrTruncated
	}
	o := readOffset(buf)
	if o != archiveBodyFixedSize || o > uint64(len(buf)) {
		return ErrBadOffset
	}
	elems, err := decodeDynamicList(buf[o:], MaxPayloadsPerArchive)
	if err != nil {
		return err
	}
	blocks := make([]*Block, len(elems))
	for i, e := range elems {
		blocks[i] = new(Block)
		if err := blocks[i].UnmarshalSSZ(e); err != nil {
			return err
		}
	}
	b.Blocks = blocks
	return nil
}

// --- Archive ---

func (a *Archive) SizeSSZ() int {
	return archiveHeaderSize + bytesPerOffset + a.Body.SizeSSZ()
}

func (a *Archive) MarshalSSZ() ([]byte, error) {
	return a.MarshalSSZTo(make([]byte, 0, a.SizeSSZ()))
}

func (a *Archive) MarshalSSZTo(buf []byte) ([]byte, error) {
	var err error
	if buf, err = a.Header.MarshalSSZTo(buf); err != nil {
		return nil, err
	}
	buf = appendOffset(buf, archiveFixedSize)
	return a.Body.MarshalSSZTo(buf)
}

// UnmarshalSSZ decodes an archive and validates that the header's declared
// block count matches the body.
func (a *Archive) UnmarshalSSZ(buf []byte) error {
	if len(buf) < archiveFixedSize {
		return ErrTruncated
	}
	o := readOffset(buf[archiveHeaderSize:])
	if o != archiveFixedSize || o > uint64(len(buf)) {
		return ErrBadOffset
	}
	if err := a.Header.UnmarshalSSZ(buf[:archiveHeaderSize]); err != nil {
		return err
	}
	if err := a.Body.UnmarshalSSZ(buf[o:]); err != nil {
		return err
	}
	if a.Header.BlockCount != uint64(len(a.Body.Blocks)) {
		return ErrHeaderBodyMismatch
	}
	return nil
}
