// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package inscriptions

import (
	"bytes"
	"errors"
	"math/big"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/BoostyLabs/inscriber/internal/reverse"
	"github.com/BoostyLabs/inscriber/internal/sequencereader"
)

var (
	// ErrMalformedInscription defines that inscription is malformed and failed to parse.
	ErrMalformedInscription = errors.New("inscription is malformed")
	// ErrRepeatedFieldData defines that already filled field met while parsing.
	ErrRepeatedFieldData = errors.New("field already filled")
	// ErrNotScriptPathWitness defines that witness does not carry tapscript spend.
	ErrNotScriptPathWitness = errors.New("witness is not a script path spend")
)

// inscriptionOrdTag defines ord tag for inscription to disambiguate inscriptions from other uses of envelopes.
var inscriptionOrdTag = []byte("ord")

// annexTag defines first byte of the taproot annex witness element.
const annexTag byte = 0x50

// Inscription describes inscription read back from an envelope script.
type Inscription struct {
	Body            []byte
	ContentEncoding string
	ContentType     string
	Delegate        *ID
	Metadata        []byte
	Metaprotocol    []byte
	Parents         []*ID
	Pointer         *big.Int
}

// instruction is a single decoded script operation.
type instruction struct {
	opcode byte
	data   []byte
}

// pushData returns data the instruction puts on the stack, false for non push opcodes.
func (ins instruction) pushData() ([]byte, bool) {
	switch {
	case ins.opcode <= txscript.OP_PUSHDATA4:
		if ins.data == nil {
			return []byte{}, true
		}

		return ins.data, true
	case ins.opcode == txscript.OP_1NEGATE:
		return []byte{0x81}, true
	case ins.opcode >= txscript.OP_1 && ins.opcode <= txscript.OP_16:
		return []byte{ins.opcode - (txscript.OP_1 - 1)}, true
	default:
		return nil, false
	}
}

// ParseRevealWitness parses inscription from the witness of a tapscript spending input.
// Witness layout is [..., script, control block] with optional trailing annex.
func ParseRevealWitness(witness wire.TxWitness) (*Inscription, error) {
	if len(witness) > 1 && len(witness[len(witness)-1]) > 0 && witness[len(witness)-1][0] == annexTag {
		witness = witness[:len(witness)-1]
	}

	if len(witness) < 2 {
		return nil, ErrNotScriptPathWitness
	}

	return ParseInscriptionFromWitnessData(witness[len(witness)-2])
}

// ParseInscriptionFromWitnessData parses first envelope of the tapscript into Inscription.
func ParseInscriptionFromWitnessData(data []byte) (*Inscription, error) {
	instructions, err := envelopeInstructions(data)
	if err != nil {
		return nil, err
	}

	sr := sequencereader.New(instructions)
	inscription := new(Inscription)
	for sr.HasNext() {
		ins, _ := sr.Next() // skip error due to the loop condition check.
		if ins.opcode == txscript.OP_ENDIF {
			return inscription, nil
		}

		tag, ok := ins.pushData()
		if !ok {
			return nil, ErrMalformedInscription
		}

		// empty tag means that all next data pushes are body parts.
		if len(tag) == 0 {
			err = inscription.fillBody(sr)
		} else {
			err = inscription.fillField(tag, sr)
		}
		if err != nil {
			return nil, err
		}
	}

	return nil, ErrMalformedInscription
}

// envelopeInstructions decodes the script and returns instructions between
// OP_FALSE OP_IF "ord" and OP_ENDIF, the closing opcode included.
func envelopeInstructions(script []byte) ([]instruction, error) {
	var (
		instructions []instruction
		start        = -1
		end          = -1
	)

	tokenizer := txscript.MakeScriptTokenizer(0, script)
	for tokenizer.Next() {
		instructions = append(instructions, instruction{opcode: tokenizer.Opcode(), data: tokenizer.Data()})

		n := len(instructions)
		if start == -1 && n >= 3 &&
			instructions[n-3].opcode == txscript.OP_FALSE &&
			instructions[n-2].opcode == txscript.OP_IF &&
			bytes.Equal(instructions[n-1].data, inscriptionOrdTag) {
			start = n
			continue
		}

		if start != -1 && tokenizer.Opcode() == txscript.OP_ENDIF {
			end = n
			break
		}
	}
	if tokenizer.Err() != nil || start == -1 || end == -1 {
		return nil, ErrMalformedInscription
	}

	return instructions[start:end], nil
}

// fillBody fills Body field with body data pushes up to OP_ENDIF.
func (i *Inscription) fillBody(sr *sequencereader.SequenceReader[instruction]) error {
	var body []byte
	for sr.HasNext() {
		ins, _ := sr.Peek()
		if ins.opcode == txscript.OP_ENDIF {
			break
		}

		chunk, ok := ins.pushData()
		if !ok {
			return ErrMalformedInscription
		}

		body = append(body, chunk...)
		_, _ = sr.Next()
	}

	i.Body = body

	return nil
}

// fillField reads tag value and fills the corresponding Inscription field.
// Unknown odd tags are ignored, unknown even tags make inscription malformed.
func (i *Inscription) fillField(tagData []byte, sr *sequencereader.SequenceReader[instruction]) (err error) {
	ins, err := sr.Next()
	if err != nil {
		return ErrMalformedInscription
	}

	value, ok := ins.pushData()
	if !ok || len(tagData) != 1 {
		return ErrMalformedInscription
	}

	switch tag := Tag(tagData[0]); tag {
	case TagContentType:
		if len(i.ContentType) != 0 {
			return ErrRepeatedFieldData
		}

		i.ContentType = string(value)
	case TagPointer:
		if i.Pointer != nil {
			return ErrRepeatedFieldData
		}

		i.Pointer = new(big.Int).SetBytes(reverse.Bytes(value))
	case TagParent:
		id, err := NewIDFromDataPush(value)
		if err != nil {
			return err
		}

		i.Parents = append(i.Parents, id)
	case TagMetadata:
		i.Metadata = append(i.Metadata, value...)
	case TagMetaprotocol:
		if len(i.Metaprotocol) != 0 {
			return ErrRepeatedFieldData
		}

		i.Metaprotocol = bytes.Clone(value)
	case TagContentEncoding:
		if len(i.ContentEncoding) != 0 {
			return ErrRepeatedFieldData
		}

		i.ContentEncoding = string(value)
	case TagDelegate:
		if i.Delegate != nil {
			return ErrRepeatedFieldData
		}

		i.Delegate, err = NewIDFromDataPush(value)
		if err != nil {
			return err
		}
	case TagRune, TagNote, TagNop, TagUnbound:
	default:
		if tag%2 == 0 {
			return ErrMalformedInscription
		}
	}

	return nil
}
