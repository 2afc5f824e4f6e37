package spec

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/require"
)

func testTxBinary(t *testing.T, nonce uint64) []byte {
	t.Helper()
	to := common.BytesToAddress(bytesN(0x42, 20))
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: big.NewInt(2),
		Gas:      21_000,
		To:       &to,
		Value:    big.NewInt(3),
		V:        big.NewInt(27),
		R:        big.NewInt(10),
		S:        big.NewInt(11),
	})
	enc, err := tx.MarshalBinary()
	require.NoError(t, err)
	return enc
}

func testRLPBlock(t *testing.T) *Block {
	t.Helper()
	return &Block{
		Header:       testHeader(9),
		Transactions: [][]byte{testTxBinary(t, 1), testTxBinary(t, 2)},
		Uncles:       []*ExecutionHeader{testHeader(8)},
		Receipts: []*Receipt{
			{
				PostState:         bytesN(0, 32),
				Status:            types.ReceiptStatusSuccessful,
				CumulativeGasUsed: 21_000,
				Logs:              []*Log{testLog()},
			},
			{
				PostState:         bytesN(0, 32),
				Status:            types.ReceiptStatusFailed,
				CumulativeGasUsed: 42_000,
			},
		},
	}
}

func TestBlockRLPRoundTrip(t *testing.T) {
	b := testRLPBlock(t)
	enc, err := rlp.EncodeToBytes(b)
	require.NoError(t, err)

	var dec Block
	require.NoError(t, rlp.DecodeBytes(enc, &dec))

	// The round trip must preserve the archive encoding bit for bit.
	want, err := b.MarshalSSZ()
	require.NoError(t, err)
	got, err := dec.MarshalSSZ()
	require.NoError(t, err)
	require.True(t, bytes.Equal(want, got), "archive encoding changed across an RLP round trip")

	require.Len(t, dec.Transactions, 2)
	require.True(t, bytes.Equal(b.Transactions[0], dec.Transactions[0]), "transaction binary changed")
	require.Len(t, dec.Receipts, 2)
	require.Equal(t, types.ReceiptStatusFailed, dec.Receipts[1].Status)
	require.Len(t, dec.Receipts[0].Logs, 1)
}

func TestBlockNoReceiptsRLPRoundTrip(t *testing.T) {
	b := testRLPBlock(t)
	enc, err := rlp.EncodeToBytes((*BlockNoReceipts)(b))
	require.NoError(t, err)

	var dec BlockNoReceipts
	require.NoError(t, rlp.DecodeBytes(enc, &dec))
	require.Empty(t, dec.Receipts)
	require.Len(t, dec.Transactions, 2)
	require.Equal(t, uint64(9), dec.Header.BlockNumber)
	require.Len(t, dec.Uncles, 1)
	require.Equal(t, uint64(8), dec.Uncles[0].BlockNumber)
}
