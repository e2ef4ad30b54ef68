package wire

import (
	"fmt"
	"math"

	"github.com/holiman/uint256"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
)

// PayloadIDDeposit is the discriminator of a DepositWithPayload message.
const PayloadIDDeposit uint8 = 1

// depositHeaderLen covers everything up to and including the payload length field.
const depositHeaderLen = 1 + 32 + 32 + 4 + 4 + 8 + 32 + 32 + 2

// Deposit is the DepositWithPayload message carried as a VAA payload.
type Deposit struct {
	TokenAddress      vaaLib.Address
	Amount            *uint256.Int
	SourceDomain      uint32
	DestinationDomain uint32
	CCTPNonce         uint64
	BurnSource        vaaLib.Address
	MintRecipient     vaaLib.Address
	Payload           []byte
}

func (d *Deposit) Encode() ([]byte, error) {
	if len(d.Payload) > math.MaxUint16 {
		return nil, fmt.Errorf("payload too large: %d bytes", len(d.Payload))
	}
	buf := make([]byte, 0, depositHeaderLen+len(d.Payload))
	buf = append(buf, PayloadIDDeposit)
	buf = append(buf, d.TokenAddress[:]...)
	buf = putUint256(buf, d.Amount)
	buf = putUint32(buf, d.SourceDomain)
	buf = putUint32(buf, d.DestinationDomain)
	buf = putUint64(buf, d.CCTPNonce)
	buf = append(buf, d.BurnSource[:]...)
	buf = append(buf, d.MintRecipient[:]...)
	buf = putUint16(buf, uint16(len(d.Payload)))
	return append(buf, d.Payload...), nil
}

func DecodeDeposit(data []byte) (*Deposit, error) {
	if len(data) > 0 && data[0] != PayloadIDDeposit {
		return nil, malformed("unknown payload id %d", data[0])
	}
	r := newReader("deposit", data)
	r.uint8()
	d := &Deposit{
		TokenAddress:      r.address(),
		Amount:            r.uint256(),
		SourceDomain:      r.uint32(),
		DestinationDomain: r.uint32(),
		CCTPNonce:         r.uint64(),
		BurnSource:        r.address(),
		MintRecipient:     r.address(),
	}
	n := int(r.uint16())
	if r.err != nil {
		return nil, r.err
	}
	if r.remaining() != n {
		return nil, malformed("deposit: payload length %d, %d bytes remain", n, r.remaining())
	}
	d.Payload = r.rest()
	return d, nil
}

// AmountUint64 narrows the amount, failing rather than truncating.
func (d *Deposit) AmountUint64() (uint64, error) {
	return Uint64(d.Amount)
}

// Uint64 narrows a 256-bit amount to 64 bits.
func Uint64(v *uint256.Int) (uint64, error) {
	if v == nil {
		return 0, nil
	}
	n, overflow := v.Uint64WithOverflow()
	if overflow {
		return 0, fmt.Errorf("%w: %s", ErrAmountOverflow, v.Dec())
	}
	return n, nil
}
