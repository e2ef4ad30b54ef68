package devnet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"

	"github.com/wormhole-demo/circle-integration/internal/attest"
	"github.com/wormhole-demo/circle-integration/internal/integration"
	"github.com/wormhole-demo/circle-integration/internal/wire"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrUnsupportedToken    = errors.New("unsupported burn token")
	ErrNonceAlreadyUsed    = errors.New("nonce already used")
	ErrInvalidCaller       = errors.New("invalid caller for message")
)

type nonceKey struct {
	domain uint32
	nonce  uint64
}

type balanceKey struct {
	domain uint32
	token  vaaLib.Address
	owner  vaaLib.Address
}

// CCTP simulates the token messenger and message transmitter of every domain, plus Circle's
// attestation service.
type CCTP struct {
	attester *ecdsa.PrivateKey

	mu       sync.Mutex
	tokens   map[uint32]vaaLib.Address
	balances map[balanceKey]*uint256.Int
	nonces   map[uint32]uint64
	messages map[nonceKey][]byte
	used     map[nonceKey]bool
	pending  map[nonceKey]int

	// PendingPolls is how many attestation fetches of a fresh burn report pending.
	PendingPolls int
	// FailMints makes every mint fail as a paused token would.
	FailMints bool
}

var _ integration.AttestationFetcher = &CCTP{}

func NewCCTP() (*CCTP, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generating attester key: %w", err)
	}
	return &CCTP{
		attester: key,
		tokens:   make(map[uint32]vaaLib.Address),
		balances: make(map[balanceKey]*uint256.Int),
		nonces:   make(map[uint32]uint64),
		messages: make(map[nonceKey][]byte),
		used:     make(map[nonceKey]bool),
		pending:  make(map[nonceKey]int),
	}, nil
}

// AddDomain deploys USDC on domain at token.
func (s *CCTP) AddDomain(domain uint32, token vaaLib.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[domain] = token
}

func (s *CCTP) Attesters() attest.AttesterSet {
	return attest.AttesterSet{Enabled: []common.Address{crypto.PubkeyToAddress(s.attester.PublicKey)}}
}

// TokenMessenger is the address CCTP messages on domain are sent from and to.
func TokenMessenger(domain uint32) vaaLib.Address {
	return DeriveAddress(fmt.Sprintf("token-messenger/%d", domain))
}

func (s *CCTP) Fund(domain uint32, owner vaaLib.Address, amount *uint256.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := balanceKey{domain, s.tokens[domain], owner}
	s.balances[k] = new(uint256.Int).Add(s.balanceLocked(k), amount)
}

func (s *CCTP) Balance(domain uint32, owner vaaLib.Address) *uint256.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return new(uint256.Int).Set(s.balanceLocked(balanceKey{domain, s.tokens[domain], owner}))
}

func (s *CCTP) balanceLocked(k balanceKey) *uint256.Int {
	if b, ok := s.balances[k]; ok {
		return b
	}
	return new(uint256.Int)
}

// Custody returns the burn/mint primitive of one domain.
func (s *CCTP) Custody(domain uint32) integration.TokenCustody {
	return &custody{sim: s, domain: domain}
}

func (s *CCTP) FetchAttestation(_ context.Context, sourceDomain uint32, nonce uint64) (*integration.CircleAttestation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := nonceKey{sourceDomain, nonce}
	message, ok := s.messages[k]
	if !ok {
		return nil, integration.ErrNotReady
	}
	if s.pending[k] > 0 {
		s.pending[k]--
		return nil, integration.ErrNotReady
	}
	sig, err := attest.SignAttestation(wire.CCTPMessageHash(message), s.attester)
	if err != nil {
		return nil, err
	}
	return &integration.CircleAttestation{Message: message, Attestation: sig}, nil
}

type custody struct {
	sim    *CCTP
	domain uint32
}

func (c *custody) Burn(_ context.Context, req integration.BurnRequest) (*integration.BurnReceipt, error) {
	s := c.sim
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.Token != s.tokens[c.domain] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedToken, req.Token)
	}
	if _, ok := s.tokens[req.DestinationDomain]; !ok {
		return nil, fmt.Errorf("unknown destination domain %d", req.DestinationDomain)
	}
	k := balanceKey{c.domain, req.Token, req.Sender}
	balance := s.balanceLocked(k)
	if balance.Lt(req.Amount) {
		return nil, fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, balance.Dec(), req.Amount.Dec())
	}
	s.balances[k] = new(uint256.Int).Sub(balance, req.Amount)

	nonce := s.nonces[c.domain]
	s.nonces[c.domain] = nonce + 1
	burn := &wire.BurnMessage{
		Version:       0,
		BurnToken:     req.Token,
		MintRecipient: req.MintRecipient,
		Amount:        new(uint256.Int).Set(req.Amount),
		MessageSender: req.Sender,
	}
	message := (&wire.CCTPMessage{
		Version:           0,
		SourceDomain:      c.domain,
		DestinationDomain: req.DestinationDomain,
		Nonce:             nonce,
		Sender:            TokenMessenger(c.domain),
		Recipient:         TokenMessenger(req.DestinationDomain),
		DestinationCaller: req.DestinationCaller,
		Body:              burn.Encode(),
	}).Encode()
	s.messages[nonceKey{c.domain, nonce}] = message
	s.pending[nonceKey{c.domain, nonce}] = s.PendingPolls
	return &integration.BurnReceipt{Nonce: nonce, Message: message}, nil
}

func (c *custody) Mint(_ context.Context, req integration.MintRequest) (*integration.MintReceipt, error) {
	s := c.sim
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailMints {
		return nil, fmt.Errorf("token on domain %d is paused", c.domain)
	}
	message, burn, err := wire.DecodeTokenBurnMessage(req.Message)
	if err != nil {
		return nil, err
	}
	if message.DestinationDomain != c.domain {
		return nil, fmt.Errorf("message is for domain %d", message.DestinationDomain)
	}
	if err := s.Attesters().VerifyAttestation(wire.CCTPMessageHash(req.Message), req.Attestation); err != nil {
		return nil, err
	}
	if message.DestinationCaller != (vaaLib.Address{}) && message.DestinationCaller != req.Caller {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCaller, req.Caller)
	}
	k := nonceKey{message.SourceDomain, message.Nonce}
	if s.used[k] {
		return nil, fmt.Errorf("%w: %d/%d", ErrNonceAlreadyUsed, k.domain, k.nonce)
	}
	if burn.BurnToken != s.tokens[message.SourceDomain] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedToken, burn.BurnToken)
	}
	s.used[k] = true

	token := s.tokens[c.domain]
	bk := balanceKey{c.domain, token, burn.MintRecipient}
	s.balances[bk] = new(uint256.Int).Add(s.balanceLocked(bk), burn.Amount)
	return &integration.MintReceipt{
		Token:     token,
		Amount:    new(uint256.Int).Set(burn.Amount),
		Recipient: burn.MintRecipient,
	}, nil
}
