package wire

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
)

const (
	cctpHeaderLen = 4 + 4 + 4 + 8 + 32 + 32 + 32
	burnBodyLen   = 4 + 32 + 32 + 32 + 32
)

// CCTPMessage is the message-transmitter envelope. Body is opaque here; token burns
// decode it with DecodeBurnMessage.
type CCTPMessage struct {
	Version           uint32
	SourceDomain      uint32
	DestinationDomain uint32
	Nonce             uint64
	Sender            vaaLib.Address
	Recipient         vaaLib.Address
	DestinationCaller vaaLib.Address
	Body              []byte
}

// BurnMessage is the token-messenger body of a CCTP burn.
type BurnMessage struct {
	Version       uint32
	BurnToken     vaaLib.Address
	MintRecipient vaaLib.Address
	Amount        *uint256.Int
	MessageSender vaaLib.Address
}

func (m *CCTPMessage) Encode() []byte {
	buf := make([]byte, 0, cctpHeaderLen+len(m.Body))
	buf = putUint32(buf, m.Version)
	buf = putUint32(buf, m.SourceDomain)
	buf = putUint32(buf, m.DestinationDomain)
	buf = putUint64(buf, m.Nonce)
	buf = append(buf, m.Sender[:]...)
	buf = append(buf, m.Recipient[:]...)
	buf = append(buf, m.DestinationCaller[:]...)
	return append(buf, m.Body...)
}

func DecodeCCTPMessage(data []byte) (*CCTPMessage, error) {
	r := newReader("cctp message", data)
	m := &CCTPMessage{
		Version:           r.uint32(),
		SourceDomain:      r.uint32(),
		DestinationDomain: r.uint32(),
		Nonce:             r.uint64(),
		Sender:            r.address(),
		Recipient:         r.address(),
		DestinationCaller: r.address(),
	}
	if r.err != nil {
		return nil, r.err
	}
	m.Body = r.rest()
	return m, nil
}

func (b *BurnMessage) Encode() []byte {
	buf := make([]byte, 0, burnBodyLen)
	buf = putUint32(buf, b.Version)
	buf = append(buf, b.BurnToken[:]...)
	buf = append(buf, b.MintRecipient[:]...)
	buf = putUint256(buf, b.Amount)
	return append(buf, b.MessageSender[:]...)
}

func DecodeBurnMessage(data []byte) (*BurnMessage, error) {
	r := newReader("burn message", data)
	b := &BurnMessage{
		Version:       r.uint32(),
		BurnToken:     r.address(),
		MintRecipient: r.address(),
		Amount:        r.uint256(),
		MessageSender: r.address(),
	}
	if err := r.finish(); err != nil {
		return nil, err
	}
	return b, nil
}

// DecodeTokenBurnMessage decodes the envelope and its burn body in one step.
func DecodeTokenBurnMessage(data []byte) (*CCTPMessage, *BurnMessage, error) {
	m, err := DecodeCCTPMessage(data)
	if err != nil {
		return nil, nil, err
	}
	b, err := DecodeBurnMessage(m.Body)
	if err != nil {
		return nil, nil, err
	}
	return m, b, nil
}

// CCTPMessageHash is the digest Circle attesters sign.
func CCTPMessageHash(message []byte) common.Hash {
	return crypto.Keccak256Hash(message)
}
