package wire

import (
	"encoding/binary"

	"github.com/holiman/uint256"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
)

// reader walks a byte slice front to back. The first short read latches an error and
// every later read becomes a no-op, so decoders check err once at the end.
type reader struct {
	buf  []byte
	off  int
	what string
	err  error
}

func newReader(what string, buf []byte) *reader {
	return &reader{buf: buf, what: what}
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if len(r.buf)-r.off < n {
		r.err = malformed("%s: need %d bytes at offset %d, have %d", r.what, n, r.off, len(r.buf)-r.off)
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) uint8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) uint16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (r *reader) uint32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (r *reader) uint64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func (r *reader) address() (addr vaaLib.Address) {
	b := r.take(32)
	if b != nil {
		copy(addr[:], b)
	}
	return addr
}

func (r *reader) uint256() *uint256.Int {
	b := r.take(32)
	if b == nil {
		return nil
	}
	return new(uint256.Int).SetBytes32(b)
}

func (r *reader) remaining() int {
	return len(r.buf) - r.off
}

func (r *reader) rest() []byte {
	if r.err != nil {
		return nil
	}
	out := make([]byte, len(r.buf)-r.off)
	copy(out, r.buf[r.off:])
	r.off = len(r.buf)
	return out
}

// finish fails if anything is left unread.
func (r *reader) finish() error {
	if r.err != nil {
		return r.err
	}
	if r.off != len(r.buf) {
		return malformed("%s: %d trailing bytes", r.what, len(r.buf)-r.off)
	}
	return nil
}

func putUint16(buf []byte, v uint16) []byte {
	return binary.BigEndian.AppendUint16(buf, v)
}

func putUint32(buf []byte, v uint32) []byte {
	return binary.BigEndian.AppendUint32(buf, v)
}

func putUint64(buf []byte, v uint64) []byte {
	return binary.BigEndian.AppendUint64(buf, v)
}

func putUint256(buf []byte, v *uint256.Int) []byte {
	if v == nil {
		v = new(uint256.Int)
	}
	b := v.Bytes32()
	return append(buf, b[:]...)
}
