package spec

import (
	"fmt"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

// RLP interchange with go-ethereum chain exports. A Block's RLP form is the
// standard block three-tuple plus an interleaved receipts list; the
// BlockNoReceipts view drops the receipts for plain block dumps.

// from core/types/block.go
type extblock struct {
	Header *types.Header
	Txs    []*types.Transaction
	Uncles []*types.Header
}

type extblockReceipts struct {
	Header   *types.Header
	Txs      []*types.Transaction
	Uncles   []*types.Header
	Receipts []*types.Receipt
}

func fillHdr(eh *ExecutionHeader) *types.Header {
	hdr := &types.Header{
		ParentHash:  common.BytesToHash(eh.ParentHash),
		UncleHash:   common.BytesToHash(eh.UncleHash),
		Coinbase:    common.BytesToAddress(eh.FeeRecipient),
		Root:        common.BytesToHash(eh.StateRoot),
		TxHash:      common.BytesToHash(eh.TxHash),
		ReceiptHash: common.BytesToHash(eh.ReceiptsRoot),
		Bloom:       types.BytesToBloom(eh.LogsBloom),
		Number:      new(big.Int).SetUint64(eh.BlockNumber),
		GasLimit:    eh.GasLimit,
		GasUsed:     eh.GasUsed,
		Time:        eh.Timestamp,
		Extra:       eh.ExtraData,
		MixDigest:   common.BytesToHash(eh.MixDigest),
	}
	copy(hdr.Nonce[:], eh.Nonce)

	var difficulty big.Int
	difficulty.SetBytes(eh.PrevRandao)
	hdr.Difficulty = &difficulty

	if !eh.BaseFeePerGas.IsZero() {
		hdr.BaseFee = eh.BaseFeePerGas.ToBig()
	}
	return hdr
}

func fillEHdr(h *types.Header) (*ExecutionHeader, error) {
	eh := &ExecutionHeader{}
	eh.ParentHash = h.ParentHash.Bytes()
	eh.UncleHash = h.UncleHash.Bytes()
	eh.FeeRecipient = h.Coinbase.Bytes()
	eh.StateRoot = h.Root.Bytes()
	eh.TxHash = h.TxHash.Bytes()
	eh.ReceiptsRoot = h.ReceiptHash.Bytes()
	eh.LogsBloom = h.Bloom.Bytes()

	eh.PrevRandao = make([]byte, 32)
	h.Difficulty.FillBytes(eh.PrevRandao)

	eh.BlockNumber = h.Number.Uint64()
	eh.GasLimit = h.GasLimit
	eh.GasUsed = h.GasUsed
	eh.Timestamp = h.Time

	if len(h.Extra) > MaxExtraDataBytes {
		return nil, fmt.Errorf("invalid extradata length in block %d: %v", eh.BlockNumber, len(h.Extra))
	}
	eh.ExtraData = h.Extra

	if h.BaseFee != nil {
		fee, overflow := uint256.FromBig(h.BaseFee)
		if overflow {
			return nil, fmt.Errorf("base fee overflow in block %d", eh.BlockNumber)
		}
		eh.BaseFeePerGas = *fee
	}
	eh.MixDigest = h.MixDigest.Bytes()
	eh.Nonce = make([]byte, 8)
	copy(eh.Nonce, h.Nonce[:])
	return eh, nil
}

func fillLog(l *Log) *types.Log {
	tl := &types.Log{
		Address: common.BytesToAddress(l.Address),
		Data:    l.Data,
	}
	for _, t := range l.Topics {
		tl.Topics = append(tl.Topics, common.BytesToHash(t))
	}
	return tl
}

func fromLog(tl *types.Log) (*Log, error) {
	if len(tl.Topics) > MaxTopicsPerLog {
		return nil, fmt.Errorf("log has %d topics", len(tl.Topics))
	}
	if len(tl.Data) > MaxLogDataBytes {
		return nil, fmt.Errorf("log data length %d", len(tl.Data))
	}
	l := &Log{
		Address: tl.Address.Bytes(),
		Data:    tl.Data,
	}
	for _, t := range tl.Topics {
		l.Topics = append(l.Topics, t.Bytes())
	}
	return l, nil
}

func fillReceipt(r *Receipt) *types.Receipt {
	tr := &types.Receipt{
		Status:            r.Status,
		CumulativeGasUsed: r.CumulativeGasUsed,
	}
	if *(*[32]byte)(r.PostState) != [32]byte{} {
		tr.PostState = r.PostState
	}
	tr.Logs = make([]*types.Log, len(r.Logs))
	for i := 0; i < len(r.Logs); i++ {
		tr.Logs[i] = fillLog(r.Logs[i])
	}
	tr.Bloom = types.CreateBloom(types.Receipts{tr})
	return tr
}

func fromReceipt(tr *types.Receipt) (*Receipt, error) {
	if len(tr.Logs) > MaxLogsPerPayload {
		return nil, fmt.Errorf("receipt has %d logs", len(tr.Logs))
	}
	r := &Receipt{
		Status:            tr.Status,
		CumulativeGasUsed: tr.CumulativeGasUsed,
	}
	r.PostState = make([]byte, 32)
	copy(r.PostState, tr.PostState)
	for _, tl := range tr.Logs {
		l, err := fromLog(tl)
		if err != nil {
			return nil, err
		}
		r.Logs = append(r.Logs, l)
	}
	return r, nil
}

func (b *Block) fillExt() (extblockReceipts, error) {
	hdr := fillHdr(b.Header)
	txs := make([]*types.Transaction, len(b.Transactions))
	for i, encTx := range b.Transactions {
		var tx types.Transaction
		if err := tx.UnmarshalBinary(encTx); err != nil {
			return extblockReceipts{}, fmt.Errorf("invalid transaction %d: %v", i, err)
		}
		txs[i] = &tx
	}
	var uncles []*types.Header
	for i := 0; i < len(b.Uncles); i++ {
		uncles = append(uncles, fillHdr(b.Uncles[i]))
	}
	var receipts []*types.Receipt
	for i := 0; i < len(b.Receipts); i++ {
		receipts = append(receipts, fillReceipt(b.Receipts[i]))
	}
	return extblockReceipts{
		Header:   hdr,
		Txs:      txs,
		Uncles:   uncles,
		Receipts: receipts,
	}, nil
}

func (b *Block) fillFromExt(eb extblockReceipts) error {
	eh, err := fillEHdr(eb.Header)
	if err != nil {
		return err
	}
	b.Header = eh

	for i := 0; i < len(eb.Txs); i++ {
		enc, err := eb.Txs[i].MarshalBinary()
		if err != nil {
			return err
		}
		b.Transactions = append(b.Transactions, enc)
	}
	for i := 0; i < len(eb.Uncles); i++ {
		eh, err := fillEHdr(eb.Uncles[i])
		if err != nil {
			return err
		}
		b.Uncles = append(b.Uncles, eh)
	}
	for i := 0; i < len(eb.Receipts); i++ {
		r, err := fromReceipt(eb.Receipts[i])
		if err != nil {
			return err
		}
		b.Receipts = append(b.Receipts, r)
	}
	return nil
}

// EncodeRLP writes the block as {header, txs, uncles, receipts}.
func (b *Block) EncodeRLP(w io.Writer) error {
	eb, err := b.fillExt()
	if err != nil {
		return err
	}
	return rlp.Encode(w, eb)
}

func (b *Block) DecodeRLP(s *rlp.Stream) error {
	var eb extblockReceipts
	if err := s.Decode(&eb); err != nil {
		return err
	}
	return b.fillFromExt(eb)
}

// BlockNoReceipts is a Block whose RLP form is the standard three-tuple
// block encoding, for dumps without interleaved receipts.
type BlockNoReceipts Block

func (b *BlockNoReceipts) EncodeRLP(w io.Writer) error {
	eb, err := (*Block)(b).fillExt()
	if err != nil {
		return err
	}
	return rlp.Encode(w, extblock{
		Header: eb.Header,
		Txs:    eb.Txs,
		Uncles: eb.Uncles,
	})
}

func (b *BlockNoReceipts) DecodeRLP(s *rlp.Stream) error {
	var eb extblock
	if err := s.Decode(&eb); err != nil {
		return err
	}
	return (*Block)(b).fillFromExt(extblockReceipts{
		Header: eb.Header,
		Txs:    eb.Txs,
		Uncles: eb.Uncles,
	})
}
