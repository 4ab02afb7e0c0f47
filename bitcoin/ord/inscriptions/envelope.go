// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package inscriptions

import (
	"encoding/binary"
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
)

// ErrNoInternalKey defines that envelope internal key is missing.
var ErrNoInternalKey = errors.New("no internal key provided")

// ErrTaprootCommitment defines that taproot commitment could not be built for the envelope script.
var ErrTaprootCommitment = errors.New("taproot commitment")

// maxBodyDataPushLen defines maximum size of the data push for bitcoin scripts.
const maxBodyDataPushLen int = 520

// SpendInfo describes taproot data derived from the envelope script and internal key.
// Computed once, must not be changed.
type SpendInfo struct {
	InternalKey  *btcec.PublicKey
	OutputKey    *btcec.PublicKey // tweaked key: internal key + tap tweak(merkle root).
	MerkleRoot   chainhash.Hash   // single leaf tree, thus equals leaf hash.
	LeafHash     chainhash.Hash
	ControlBlock []byte           // serialized control block for the envelope leaf.
}

// Envelope describes inscription envelope script together with its taproot spend info.
//
//	OP_FALSE OP_IF
//	  <"ord">
//	  <01> <content type>
//	  OP_0
//	  <body chunk 1> ... <body chunk n>
//	OP_ENDIF
type Envelope struct {
	script    []byte
	tapLeaf   txscript.TapLeaf
	spendInfo SpendInfo
}

// NewEnvelope builds inscription envelope for the given content type and body,
// committing it to single leaf taproot tree with provided internal key.
func NewEnvelope(mime, data []byte, internalKey *btcec.PublicKey) (*Envelope, error) {
	if internalKey == nil {
		return nil, ErrNoInternalKey
	}

	script, err := EnvelopeScript(mime, data)
	if err != nil {
		return nil, err
	}

	var (
		tapLeaf       = txscript.NewBaseTapLeaf(script)
		tapScriptTree = txscript.AssembleTaprootScriptTree(tapLeaf)
		merkleRoot    = tapScriptTree.RootNode.TapHash()
		ctrlBlock     = tapScriptTree.LeafMerkleProofs[0].ToControlBlock(internalKey)
	)

	ctrlBlockBytes, err := ctrlBlock.ToBytes()
	if err != nil {
		return nil, errors.Join(ErrTaprootCommitment, err)
	}

	return &Envelope{
		script:  script,
		tapLeaf: tapLeaf,
		spendInfo: SpendInfo{
			InternalKey:  internalKey,
			OutputKey:    txscript.ComputeTaprootOutputKey(internalKey, merkleRoot[:]),
			MerkleRoot:   merkleRoot,
			LeafHash:     tapLeaf.TapHash(),
			ControlBlock: ctrlBlockBytes,
		},
	}, nil
}

// MustEnvelope uses NewEnvelope, panics in case of error.
func MustEnvelope(mime, data []byte, internalKey *btcec.PublicKey) *Envelope {
	envelope, err := NewEnvelope(mime, data, internalKey)
	if err != nil {
		panic(err)
	}

	return envelope
}

// EnvelopeScript returns raw envelope script for the given content type and body.
// INFO: every push is length-prefixed, single byte values are never replaced by OP_1..OP_16
// so the layout matches already inscribed envelopes byte to byte.
func EnvelopeScript(mime, data []byte) ([]byte, error) {
	script, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_FALSE).
		AddOp(txscript.OP_IF).
		AddData([]byte(inscriptionOrdTag)).
		AddOps(TagContentType.IntoDataPush()).
		Script()
	if err != nil {
		return nil, err
	}

	script = appendDataPush(script, mime)
	script = append(script, txscript.OP_0)
	for _, chunk := range Chunks(data) {
		script = appendDataPush(script, chunk)
	}

	return append(script, txscript.OP_ENDIF), nil
}

// Chunks splits data into parts of maxBodyDataPushLen size at most.
// Empty data produces no chunks.
func Chunks(data []byte) [][]byte {
	chunks := make([][]byte, ceilQuotient(len(data), maxBodyDataPushLen))
	for idx := range chunks {
		start := idx * maxBodyDataPushLen
		end := min(start+maxBodyDataPushLen, len(data))
		chunks[idx] = data[start:end]
	}

	return chunks
}

// appendDataPush appends data with explicit length prefix to the script.
func appendDataPush(script, data []byte) []byte {
	dataLen := len(data)
	switch {
	case dataLen == 0:
		return append(script, txscript.OP_0)
	case dataLen < txscript.OP_PUSHDATA1:
		script = append(script, byte(dataLen))
	case dataLen <= 0xff:
		script = append(script, txscript.OP_PUSHDATA1, byte(dataLen))
	case dataLen <= 0xffff:
		script = append(script, txscript.OP_PUSHDATA2)
		script = binary.LittleEndian.AppendUint16(script, uint16(dataLen))
	default:
		script = append(script, txscript.OP_PUSHDATA4)
		script = binary.LittleEndian.AppendUint32(script, uint32(dataLen))
	}

	return append(script, data...)
}

// ceilQuotient returns division result with ceil function applied.
func ceilQuotient(divided, divisor int) int {
	ceilQuo := divided / divisor
	if divided%divisor != 0 {
		ceilQuo++
	}

	return ceilQuo
}

// Script returns copy of the envelope script.
func (e *Envelope) Script() []byte {
	return append([]byte(nil), e.script...)
}

// TapLeaf returns envelope script as taproot leaf.
func (e *Envelope) TapLeaf() txscript.TapLeaf {
	return e.tapLeaf
}

// SpendInfo returns taproot spend info of the envelope.
func (e *Envelope) SpendInfo() SpendInfo {
	return e.spendInfo
}

// InternalKey returns the key envelope is committed to.
func (e *Envelope) InternalKey() *btcec.PublicKey {
	return e.spendInfo.InternalKey
}

// CommitScript returns P2TR locking script that commits to envelope merkle root.
func (e *Envelope) CommitScript() ([]byte, error) {
	return txscript.PayToTaprootScript(e.spendInfo.OutputKey)
}

// Address returns P2TR address that commits to envelope merkle root.
func (e *Envelope) Address(chainParams *chaincfg.Params) (*btcutil.AddressTaproot, error) {
	return btcutil.NewAddressTaproot(schnorr.SerializePubKey(e.spendInfo.OutputKey), chainParams)
}
