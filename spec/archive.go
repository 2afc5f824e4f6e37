package spec

// NewArchive assembles an archive from an ordered block sequence. The
// header's HeadBlockNumber is stamped with the last block's number (the
// highest present, assuming callers supply blocks in ascending order) and
// BlockCount with the sequence length. Callers with more than
// MaxPayloadsPerArchive blocks must split across multiple archives.
func NewArchive(version uint64, blocks []*Block) (*Archive, error) {
	if len(blocks) > MaxPayloadsPerArchive {
		return nil, ErrArchiveOverflow
	}
	var head uint64
	if len(blocks) > 0 {
		head = blocks[len(blocks)-1].Header.BlockNumber
	}
	return &Archive{
		Header: ArchiveHeader{
			Version:         version,
			HeadBlockNumber: head,
			BlockCount:      uint64(len(blocks)),
		},
		Body: ArchiveBody{Blocks: blocks},
	}, nil
}
