package spec

import (
	"github.com/coldstore/blockarchive/merkle"
)

// Hash tree roots follow the container/list decomposition of the encoding:
// one leaf chunk per field, lists merkleized out to their declared maximum
// and mixed with their actual length.

func fixedRoot(b []byte, size int) ([32]byte, error) {
	if len(b) != size {
		return [32]byte{}, ErrSize
	}
	return merkle.BytesRoot(b), nil
}

func (l *Log) HashTreeRoot() ([32]byte, error) {
	if len(l.Topics) > MaxTopicsPerLog || len(l.Data) > MaxLogDataBytes {
		return [32]byte{}, ErrLengthExceeded
	}
	addr, err := fixedRoot(l.Address, 20)
	if err != nil {
		return [32]byte{}, err
	}
	topics := make([][32]byte, len(l.Topics))
	for i, t := range l.Topics {
		if topics[i], err = fixedRoot(t, 32); err != nil {
			return [32]byte{}, err
		}
	}
	fields := [][32]byte{
		addr,
		merkle.ListRoot(topics, MaxTopicsPerLog),
		merkle.ByteListRoot(l.Data, MaxLogDataBytes),
	}
	return merkle.Merkleize(fields, 0), nil
}

func (r *Receipt) HashTreeRoot() ([32]byte, error) {
	if len(r.Logs) > MaxLogsPerPayload {
		return [32]byte{}, ErrLengthExceeded
	}
	post, err := fixedRoot(r.PostState, 32)
	if err != nil {
		return [32]byte{}, err
	}
	logs := make([][32]byte, len(r.Logs))
	for i, l := range r.Logs {
		if logs[i], err = l.HashTreeRoot(); err != nil {
			return [32]byte{}, err
		}
	}
	fields := [][32]byte{
		post,
		merkle.Uint64Root(r.Status),
		merkle.Uint64Root(r.CumulativeGasUsed),
		merkle.ListRoot(logs, MaxLogsPerPayload),
	}
	return merkle.Merkleize(fields, 0), nil
}

func (h *ExecutionHeader) HashTreeRoot() ([32]byte, error) {
	if len(h.ExtraData) > MaxExtraDataBytes {
		return [32]byte{}, ErrLengthExceeded
	}
	fields := make([][32]byte, 0, 16)
	for _, f := range []struct {
		b    []byte
		size int
	}{
		{h.ParentHash, 32},
		{h.UncleHash, 32},
		{h.FeeRecipient, 20},
		{h.StateRoot, 32},
		{h.TxHash, 32},
		{h.ReceiptsRoot, 32},
		{h.LogsBloom, 256},
		{h.PrevRandao, 32},
	} {
		root, err := fixedRoot(f.b, f.size)
		if err != nil {
			return [32]byte{}, err
		}
		fields = append(fields, root)
	}
	fields = append(fields,
		merkle.Uint64Root(h.BlockNumber),
		merkle.Uint64Root(h.GasLimit),
		merkle.Uint64Root(h.GasUsed),
		merkle.Uint64Root(h.Timestamp),
		merkle.ByteListRoot(h.ExtraData, MaxExtraDataBytes),
		merkle.BytesRoot(appendUint256(nil, &h.BaseFeePerGas)),
	)
	mix, err := fixedRoot(h.MixDigest, 32)
	if err != nil {
		return [32]byte{}, err
	}
	nonce, err := fixedRoot(h.Nonce, 8)
	if err != nil {
		return [32]byte{}, err
	}
	fields = append(fields, mix, nonce)
	return merkle.Merkleize(fields, 0), nil
}

func (b *Block) HashTreeRoot() ([32]byte, error) {
	if b.Header == nil {
		b.Header = new(ExecutionHeader)
	}
	if len(b.Transactions) > MaxTransactionsPerPayload ||
		len(b.Uncles) > MaxUnclesPerPayload ||
		len(b.Receipts) > MaxTransactionsPerPayload {
		return [32]byte{}, ErrLengthExceeded
	}
	header, err := b.Header.HashTreeRoot()
	if err != nil {
		return [32]byte{}, err
	}
	txs := make([][32]byte, len(b.Transactions))
	for i, tx := range b.Transactions {
		if len(tx) > MaxBytesPerTransaction {
			return [32]byte{}, ErrLengthExceeded
		}
		txs[i] = merkle.ByteListRoot(tx, MaxBytesPerTransaction)
	}
	uncles := make([][32]byte, len(b.Uncles))
	for i, u := range b.Uncles {
		if uncles[i], err = u.HashTreeRoot(); err != nil {
			return [32]byte{}, err
		}
	}
	receipts := make([][32]byte, len(b.Receipts))
	for i, r := range b.Receipts {
		if receipts[i], err = r.HashTreeRoot(); err != nil {
			return [32]byte{}, err
		}
	}
	fields := [][32]byte{
		header,
		merkle.ListRoot(txs, MaxTransactionsPerPayload),
		merkle.ListRoot(uncles, MaxUnclesPerPayload),
		merkle.ListRoot(receipts, MaxTransactionsPerPayload),
	}
	return merkle.Merkleize(fields, 0), nil
}

func (h *ArchiveHeader) HashTreeRoot() ([32]byte, error) {
	fields := [][32]byte{
		merkle.Uint64Root(h.Version),
		merkle.Uint64Root(h.HeadBlockNumber),
		merkle.Uint64Root(h.BlockCount),
	}
	return merkle.Merkleize(fields, 0), nil
}

func (b *ArchiveBody) HashTreeRoot() ([32]byte, error) {
	if len(b.Blocks) > MaxPayloadsPerArchive {
		return [32]byte{}, ErrLengthExceeded
	}
	blocks := make([][32]byte, len(b.Blocks))
	var err error
	for i, blk := range b.Blocks {
		if blocks[i], err = blk.HashTreeRoot(); err != nil {
			return [32]byte{}, err
		}
	}
	return merkle.ListRoot(blocks, MaxPayloadsPerArchive), nil
}

func (a *Archive) HashTreeRoot() ([32]byte, error) {
	header, err := a.Header.HashTreeRoot()
	if err != nil {
		return [32]byte{}, err
	}
	body, err := a.Body.HashTreeRoot()
	if err != nil {
		return [32]byte{}, err
	}
	return merkle.Merkleize([][32]byte{header, body}, 0), nil
}
