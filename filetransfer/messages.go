// Package filetransfer implements the object/item transfer protocol of
// spec §4.6: a bootstrap nonce exchange followed by an encrypted,
// brotli-compressed chunk stream over a transport channel.
package filetransfer

import (
	"samizdat/content"
	"samizdat/hash"
	"samizdat/patricia"
	"samizdat/wire"
)

// MaxHeaderSize bounds a single header message (spec §4.6).
const MaxHeaderSize = 256 * 1024

// MaxPayloadSize bounds a single chunk-carrying stream payload: 2x chunk
// size (spec §4.6).
const MaxPayloadSize = 2 * content.ChunkSize

// NonceMessage is the first message on every transfer, itself encrypted
// under TransferCipher(content_hash, Hash::default()); it carries the fresh
// nonce the rest of the session's cipher is derived from.
type NonceMessage struct {
	Nonce hash.Hash
}

func (m NonceMessage) Marshal() []byte {
	e := wire.NewEncoder()
	e.WriteRaw(m.Nonce.Bytes())
	return e.Bytes()
}

func UnmarshalNonceMessage(b []byte) (NonceMessage, error) {
	d := wire.NewDecoder(b)
	raw, err := d.ReadRaw(hash.Size)
	if err != nil {
		return NonceMessage{}, err
	}
	h, err := hash.FromBytes(raw)
	if err != nil {
		return NonceMessage{}, err
	}
	return NonceMessage{Nonce: h}, nil
}

// ObjectMessage carries the object header the receiver validates before
// accepting chunk data.
type ObjectMessage struct {
	Hash     hash.Hash
	Metadata content.Metadata
}

func (m ObjectMessage) Marshal() []byte {
	e := wire.NewEncoder()
	e.WriteRaw(m.Hash.Bytes())
	e.WriteBytes(m.Metadata.Marshal())
	return e.Bytes()
}

func UnmarshalObjectMessage(b []byte) (ObjectMessage, error) {
	d := wire.NewDecoder(b)
	raw, err := d.ReadRaw(hash.Size)
	if err != nil {
		return ObjectMessage{}, err
	}
	h, err := hash.FromBytes(raw)
	if err != nil {
		return ObjectMessage{}, err
	}
	metaBytes, err := d.ReadBytes()
	if err != nil {
		return ObjectMessage{}, err
	}
	meta, err := content.UnmarshalMetadata(metaBytes)
	if err != nil {
		return ObjectMessage{}, err
	}
	return ObjectMessage{Hash: h, Metadata: meta}, nil
}

// ItemMessage wraps object transfer with the collection-item membership
// proof the receiver asked for.
type ItemMessage struct {
	Item         content.Item
	ObjectHeader ObjectMessage
}

func (m ItemMessage) Marshal() []byte {
	e := wire.NewEncoder()
	e.WriteRaw(m.Item.CollectionHash.Bytes())
	e.WriteString(m.Item.Name)
	e.WriteRaw(m.Item.ObjectHash.Bytes())
	e.WriteUint32(uint32(len(m.Item.Proof.Steps)))
	for _, step := range m.Item.Proof.Steps {
		e.WriteUint32(uint32(step.Depth))
		e.WriteRaw(step.Sibling.Bytes())
	}
	e.WriteRaw(m.Item.Proof.Value.Bytes())
	e.WriteBytes(m.ObjectHeader.Marshal())
	return e.Bytes()
}

func UnmarshalItemMessage(b []byte) (ItemMessage, error) {
	d := wire.NewDecoder(b)
	collRaw, err := d.ReadRaw(hash.Size)
	if err != nil {
		return ItemMessage{}, err
	}
	collHash, err := hash.FromBytes(collRaw)
	if err != nil {
		return ItemMessage{}, err
	}
	name, err := d.ReadString()
	if err != nil {
		return ItemMessage{}, err
	}
	objRaw, err := d.ReadRaw(hash.Size)
	if err != nil {
		return ItemMessage{}, err
	}
	objHash, err := hash.FromBytes(objRaw)
	if err != nil {
		return ItemMessage{}, err
	}
	n, err := d.ReadUint32()
	if err != nil {
		return ItemMessage{}, err
	}
	steps := make([]patricia.ProofStep, n)
	for i := range steps {
		depth, err := d.ReadUint32()
		if err != nil {
			return ItemMessage{}, err
		}
		sibRaw, err := d.ReadRaw(hash.Size)
		if err != nil {
			return ItemMessage{}, err
		}
		sib, err := hash.FromBytes(sibRaw)
		if err != nil {
			return ItemMessage{}, err
		}
		steps[i] = patricia.ProofStep{Depth: int(depth), Sibling: sib}
	}
	valueRaw, err := d.ReadRaw(hash.Size)
	if err != nil {
		return ItemMessage{}, err
	}
	value, err := hash.FromBytes(valueRaw)
	if err != nil {
		return ItemMessage{}, err
	}
	headerBytes, err := d.ReadBytes()
	if err != nil {
		return ItemMessage{}, err
	}
	header, err := UnmarshalObjectMessage(headerBytes)
	if err != nil {
		return ItemMessage{}, err
	}
	return ItemMessage{
		Item: content.Item{
			CollectionHash: collHash,
			Name:           name,
			ObjectHash:     objHash,
			Proof:          patricia.Proof{Value: value, Steps: steps},
		},
		ObjectHeader: header,
	}, nil
}

// ProceedDecision is the receiver's response to an ItemMessage.
type ProceedDecision byte

const (
	Proceed ProceedDecision = iota
	Cancel
)

type ProceedMessage struct {
	Decision ProceedDecision
}

func (m ProceedMessage) Marshal() []byte {
	e := wire.NewEncoder()
	e.WriteBool(m.Decision == Proceed)
	return e.Bytes()
}

func UnmarshalProceedMessage(b []byte) (ProceedMessage, error) {
	d := wire.NewDecoder(b)
	proceed, err := d.ReadBool()
	if err != nil {
		return ProceedMessage{}, err
	}
	if proceed {
		return ProceedMessage{Decision: Proceed}, nil
	}
	return ProceedMessage{Decision: Cancel}, nil
}
