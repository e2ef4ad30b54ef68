// Package ledger records consumed message identifiers so that each one authorizes at most one
// successful mint or registration. Entries are never deleted.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrAlreadyConsumed = errors.New("message already consumed")
	ErrNotReserved     = errors.New("reservation no longer held")
)

// Key identifies a consumable message.
type Key string

// VAAKey keys a Wormhole message by its signing digest.
func VAAKey(digest common.Hash) Key {
	return Key("vaa/" + digest.Hex()[2:])
}

// CCTPKey keys a CCTP message by its source domain and nonce.
func CCTPKey(sourceDomain uint32, nonce uint64) Key {
	return Key(fmt.Sprintf("cctp/%d/%d", sourceDomain, nonce))
}

// Ledger is a set of consumed keys with check-and-mark semantics.
type Ledger interface {
	// TryConsume marks key consumed, failing with ErrAlreadyConsumed if it already was.
	TryConsume(ctx context.Context, key Key) error
	// Reserve claims every key or none. A claimed key is reported as consumed to
	// everyone else until the reservation is released.
	Reserve(ctx context.Context, keys ...Key) (Reservation, error)
	IsConsumed(ctx context.Context, key Key) (bool, error)
}

// Reservation is a pending claim on a set of keys.
type Reservation interface {
	// Commit makes the claim permanent.
	Commit(ctx context.Context) error
	// Release drops a claim that never authorized anything.
	Release(ctx context.Context) error
}
