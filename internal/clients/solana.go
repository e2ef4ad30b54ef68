package clients

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"

	"github.com/wormhole-demo/circle-integration/internal/registry"
)

// Circle Integration program deployed on Solana devnet.
var DefaultCircleIntegrationProgramID = solana.MustPublicKeyFromBase58("wcihrWf1s91vfukW7LW8ZvR1rzpeZ9BrtZ8oyPkWK5d")

// PDA seeds for the Circle Integration program
var (
	SeedCustodian         = []byte("emitter")
	SeedCustodyToken      = []byte("custody")
	SeedUpgradeAuthority  = []byte("upgrade")
	SeedRegisteredEmitter = []byte("registered_emitter")
	SeedConsumedVAA       = []byte("consumed-vaa")
)

// ErrAccountNotFound is returned when a program account has not been created.
var ErrAccountNotFound = errors.New("account not found")

var registeredEmitterDiscriminator = accountDiscriminator("RegisteredEmitter")

// accountDiscriminator is the Anchor account prefix: sha256("account:<Name>")[:8].
func accountDiscriminator(name string) [8]byte {
	sum := sha256.Sum256([]byte("account:" + name))
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}

// RegisteredEmitterAccount is the on-chain record of a foreign Circle Integration emitter.
type RegisteredEmitterAccount struct {
	Bump       uint8
	CCTPDomain uint32
	Chain      uint16
	Address    [32]byte
}

// Emitter converts the account into a registry entry.
func (a RegisteredEmitterAccount) Emitter() registry.Emitter {
	return registry.Emitter{
		Chain:   vaaLib.ChainID(a.Chain),
		Address: vaaLib.Address(a.Address),
		Domain:  a.CCTPDomain,
	}
}

// DecodeRegisteredEmitterAccount decodes raw account data including the Anchor discriminator.
func DecodeRegisteredEmitterAccount(data []byte) (*RegisteredEmitterAccount, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("registered emitter account too short: %d bytes", len(data))
	}
	var disc [8]byte
	copy(disc[:], data[:8])
	if disc != registeredEmitterDiscriminator {
		return nil, fmt.Errorf("not a registered emitter account: discriminator %x", disc)
	}

	var acct RegisteredEmitterAccount
	if err := bin.NewBorshDecoder(data[8:]).Decode(&acct); err != nil {
		return nil, fmt.Errorf("failed to decode registered emitter: %w", err)
	}
	return &acct, nil
}

// SolanaClient reads Circle Integration program state from a Solana RPC node.
type SolanaClient struct {
	client    *rpc.Client
	programID solana.PublicKey
	logger    *zap.Logger
}

// NewSolanaClient creates a new Solana client.
// If programID is empty, uses DefaultCircleIntegrationProgramID.
func NewSolanaClient(logger *zap.Logger, rpcURL string, programID string) (*SolanaClient, error) {
	client := &SolanaClient{
		logger:    logger.With(zap.String("component", "SolanaClient")),
		client:    rpc.New(rpcURL),
		programID: DefaultCircleIntegrationProgramID,
	}

	if programID != "" {
		progID, err := solana.PublicKeyFromBase58(programID)
		if err != nil {
			return nil, fmt.Errorf("invalid program ID: %v", err)
		}
		client.programID = progID
	}

	client.logger.Info("Solana client initialized",
		zap.String("rpcURL", rpcURL),
		zap.String("programID", client.programID.String()))

	return client, nil
}

// GetProgramID returns the Circle Integration program ID
func (c *SolanaClient) GetProgramID() solana.PublicKey {
	return c.programID
}

// DeriveCustodianPDA derives the custodian, which is also the program's Wormhole emitter.
func DeriveCustodianPDA(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{SeedCustodian}, programID)
}

// DeriveCustodyTokenPDA derives the custody token account.
func DeriveCustodyTokenPDA(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{SeedCustodyToken}, programID)
}

// DeriveUpgradeAuthorityPDA derives the upgrade authority.
func DeriveUpgradeAuthorityPDA(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{SeedUpgradeAuthority}, programID)
}

// DeriveRegisteredEmitterPDA derives the registered emitter PDA for a foreign chain.
// The chain ID is encoded big-endian.
func DeriveRegisteredEmitterPDA(programID solana.PublicKey, chain vaaLib.ChainID) (solana.PublicKey, uint8, error) {
	chainBytes := make([]byte, 2)
	binary.BigEndian.PutUint16(chainBytes, uint16(chain))
	return solana.FindProgramAddress([][]byte{SeedRegisteredEmitter, chainBytes}, programID)
}

// DeriveConsumedVAAPDA derives the replay marker for a VAA digest.
func DeriveConsumedVAAPDA(programID solana.PublicKey, digest common.Hash) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{SeedConsumedVAA, digest.Bytes()}, programID)
}

// FetchRegisteredEmitter loads the registered emitter for chain.
func (c *SolanaClient) FetchRegisteredEmitter(ctx context.Context, chain vaaLib.ChainID) (*RegisteredEmitterAccount, error) {
	pda, _, err := DeriveRegisteredEmitterPDA(c.programID, chain)
	if err != nil {
		return nil, fmt.Errorf("failed to derive registered emitter PDA: %v", err)
	}

	data, err := c.accountData(ctx, pda)
	if err != nil {
		return nil, err
	}
	acct, err := DecodeRegisteredEmitterAccount(data)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Fetched registered emitter",
		zap.Stringer("chain", chain),
		zap.String("pda", pda.String()),
		zap.Uint32("cctpDomain", acct.CCTPDomain))
	return acct, nil
}

// IsVAAConsumed reports whether the program has created the consumed-vaa marker for digest.
func (c *SolanaClient) IsVAAConsumed(ctx context.Context, digest common.Hash) (bool, error) {
	pda, _, err := DeriveConsumedVAAPDA(c.programID, digest)
	if err != nil {
		return false, fmt.Errorf("failed to derive consumed VAA PDA: %v", err)
	}
	_, err = c.accountData(ctx, pda)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrAccountNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (c *SolanaClient) accountData(ctx context.Context, account solana.PublicKey) ([]byte, error) {
	info, err := c.client.GetAccountInfo(ctx, account)
	if errors.Is(err, rpc.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, account)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", account, err)
	}
	if info == nil || info.Value == nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, account)
	}
	return info.Value.Data.GetBinary(), nil
}
