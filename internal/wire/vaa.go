package wire

import (
	"encoding/hex"
	"fmt"
	"time"

	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"
)

// ParseVAA decodes a version 1 VAA. The signed digest is available from the SDK's
// SigningDigest on the result.
func ParseVAA(data []byte) (*vaaLib.VAA, error) {
	v, err := vaaLib.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: vaa: %w", ErrMalformedMessage, err)
	}
	return v, nil
}

// ParseVAAPermissive also accepts version 2 envelopes. The relayer uses it to read routing
// fields; raw bytes still go to the destination for verification.
func ParseVAAPermissive(data []byte) (*vaaLib.VAA, error) {
	r := newReader("vaa", data)
	version := r.uint8()
	if r.err == nil && version != vaaLib.SupportedVAAVersion && version != 2 {
		return nil, malformed("unsupported vaa version %d", version)
	}
	v := &vaaLib.VAA{
		Version:          version,
		GuardianSetIndex: r.uint32(),
	}
	count := int(r.uint8())
	v.Signatures = make([]*vaaLib.Signature, 0, count)
	for i := 0; i < count && r.err == nil; i++ {
		sig := &vaaLib.Signature{Index: r.uint8()}
		copy(sig.Signature[:], r.take(65))
		v.Signatures = append(v.Signatures, sig)
	}

	v.Timestamp = time.Unix(int64(r.uint32()), 0)
	v.Nonce = r.uint32()
	v.EmitterChain = vaaLib.ChainID(r.uint16())
	v.EmitterAddress = r.address()
	v.Sequence = r.uint64()
	v.ConsistencyLevel = r.uint8()
	if r.err != nil {
		return nil, r.err
	}
	v.Payload = r.rest()
	return v, nil
}

// LogVAAFull logs all fields of a VAA for debugging
func LogVAAFull(logger *zap.Logger, vaa *vaaLib.VAA, rawBytes []byte) {
	logger.Debug("=== Full VAA Details ===",
		zap.Uint8("version", vaa.Version),
		zap.Uint32("guardianSetIndex", vaa.GuardianSetIndex),
		zap.Int("signatureCount", len(vaa.Signatures)),
		zap.Time("timestamp", vaa.Timestamp),
		zap.Uint32("nonce", vaa.Nonce),
		zap.Uint64("sequence", vaa.Sequence),
		zap.Uint8("consistencyLevel", vaa.ConsistencyLevel),
		zap.Stringer("emitterChain", vaa.EmitterChain),
		zap.String("emitterAddress", hex.EncodeToString(vaa.EmitterAddress[:])),
		zap.String("digest", vaa.SigningDigest().Hex()),
		zap.Int("payloadLength", len(vaa.Payload)),
		zap.Int("rawBytesLength", len(rawBytes)),
	)

	for i, sig := range vaa.Signatures {
		logger.Debug("VAA Signature",
			zap.Int("index", i),
			zap.Uint8("guardianIndex", sig.Index),
			zap.String("signature", hex.EncodeToString(sig.Signature[:])),
		)
	}
}
