// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package inscriptions

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// idSeparator defines separator between TxID and Index in inscription ID.
const idSeparator string = "i"

// ID describes inscription identifier.
type ID struct {
	TxID  *chainhash.Hash // Reveal transaction ID.
	Index uint32          // The index of new inscriptions being inscribed in the reveal transaction.
}

// NewID returns ID of the inscription revealed by the given transaction.
func NewID(revealTxID chainhash.Hash, index uint32) *ID {
	return &ID{TxID: &revealTxID, Index: index}
}

// NewIDFromDataPush parses inscription ID from script data push.
// Data push is txid bytes followed by index in little-endian with trailing zeros omitted.
func NewIDFromDataPush(id []byte) (*ID, error) {
	if len(id) < chainhash.HashSize || len(id) > chainhash.HashSize+4 {
		return nil, fmt.Errorf("invalid TxID format: %x", id)
	}

	txID, err := chainhash.NewHash(id[:chainhash.HashSize])
	if err != nil {
		return nil, err
	}

	var index = make([]byte, 4)
	copy(index, id[chainhash.HashSize:])

	return &ID{TxID: txID, Index: binary.LittleEndian.Uint32(index)}, nil
}

// String returns inscription ID as string.
func (id *ID) String() string {
	return id.TxID.String() + idSeparator + strconv.FormatUint(uint64(id.Index), 10)
}

// IndexLETrailingZerosOmitted returns index as bytes array in little-endian ordering with trailing zeros omitted.
func (id *ID) IndexLETrailingZerosOmitted() []byte {
	data := binary.LittleEndian.AppendUint32(nil, id.Index)
	for lastIdx := 3; lastIdx >= 0; lastIdx-- {
		if data[lastIdx] != 0 {
			return data[:lastIdx+1]
		}
	}

	return []byte{}
}

// IntoDataPush returns ID as bytes for script OP_PUSH.
func (id *ID) IntoDataPush() []byte {
	return append(id.TxID.CloneBytes(), id.IndexLETrailingZerosOmitted()...)
}
