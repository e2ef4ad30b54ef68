// Package attest verifies the two independent attestations a redemption needs: a quorum of
// Wormhole guardian signatures over a VAA, and Circle attester signatures over a CCTP message.
package attest

import (
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
)

// GuardianSet is an indexed list of guardian addresses.
type GuardianSet struct {
	Index uint32
	Keys  []common.Address
	// Quorum overrides the default floor(2n/3)+1 threshold when positive.
	Quorum int
	// ExpiresAt is zero for the current set.
	ExpiresAt time.Time
}

func (g GuardianSet) QuorumSize() int {
	if g.Quorum > 0 {
		return g.Quorum
	}
	return vaaLib.CalculateQuorum(len(g.Keys))
}

// VerifyGuardianQuorum checks that v carries at least a quorum of valid signatures from set,
// in strictly increasing guardian index order.
func VerifyGuardianQuorum(v *vaaLib.VAA, set GuardianSet) error {
	if v.GuardianSetIndex != set.Index {
		return fmt.Errorf("%w: vaa %d, set %d", ErrGuardianSetMismatch, v.GuardianSetIndex, set.Index)
	}
	if len(set.Keys) == 0 {
		return fmt.Errorf("%w: set %d is empty", ErrUnknownGuardianSet, set.Index)
	}
	if quorum := set.QuorumSize(); len(v.Signatures) < quorum {
		return fmt.Errorf("%w: have %d, need %d of %d", ErrInsufficientSignatures, len(v.Signatures), quorum, len(set.Keys))
	}

	digest := v.SigningDigest()
	last := -1
	for pos, sig := range v.Signatures {
		idx := int(sig.Index)
		if idx <= last {
			return &SignatureError{Position: pos, GuardianIndex: sig.Index, Reason: "guardian indices must be strictly increasing"}
		}
		last = idx
		if idx >= len(set.Keys) {
			return &SignatureError{Position: pos, GuardianIndex: sig.Index, Reason: "guardian index out of range"}
		}
		pubKey, err := crypto.SigToPub(digest.Bytes(), sig.Signature[:])
		if err != nil {
			return &SignatureError{Position: pos, GuardianIndex: sig.Index, Reason: err.Error()}
		}
		if crypto.PubkeyToAddress(*pubKey) != set.Keys[idx] {
			return &SignatureError{Position: pos, GuardianIndex: sig.Index, Reason: "signer does not match guardian key"}
		}
	}
	return nil
}

// GuardianSets holds every known guardian set by index. Superseded sets keep verifying
// until their expiry.
type GuardianSets struct {
	mu      sync.RWMutex
	sets    map[uint32]GuardianSet
	current uint32
	now     func() time.Time
}

func NewGuardianSets(initial GuardianSet) *GuardianSets {
	return &GuardianSets{
		sets:    map[uint32]GuardianSet{initial.Index: initial},
		current: initial.Index,
		now:     time.Now,
	}
}

// Rotate installs next as the current set and schedules the previous one to expire after ttl.
func (s *GuardianSets) Rotate(next GuardianSet, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if next.Index != s.current+1 {
		return fmt.Errorf("guardian set index must be %d, got %d", s.current+1, next.Index)
	}
	prev := s.sets[s.current]
	prev.ExpiresAt = s.now().Add(ttl)
	s.sets[s.current] = prev
	s.sets[next.Index] = next
	s.current = next.Index
	return nil
}

func (s *GuardianSets) Current() GuardianSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sets[s.current]
}

func (s *GuardianSets) Get(index uint32) (GuardianSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.sets[index]
	if !ok {
		return GuardianSet{}, fmt.Errorf("%w: %d", ErrUnknownGuardianSet, index)
	}
	if !set.ExpiresAt.IsZero() && !s.now().Before(set.ExpiresAt) {
		return GuardianSet{}, fmt.Errorf("%w: %d", ErrGuardianSetExpired, index)
	}
	return set, nil
}

// Verify resolves the VAA's guardian set and checks quorum against it.
func (s *GuardianSets) Verify(v *vaaLib.VAA) error {
	set, err := s.Get(v.GuardianSetIndex)
	if err != nil {
		return err
	}
	return VerifyGuardianQuorum(v, set)
}
