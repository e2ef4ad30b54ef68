package clients

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/wormhole-demo/circle-integration/internal/integration"
)

const circleIntegrationABIJSON = `[
	{
		"inputs": [{
			"components": [
				{"internalType": "bytes", "name": "encodedWormholeMessage", "type": "bytes"},
				{"internalType": "bytes", "name": "circleBridgeMessage", "type": "bytes"},
				{"internalType": "bytes", "name": "circleAttestation", "type": "bytes"}
			],
			"internalType": "struct ICircleIntegration.RedeemParameters",
			"name": "params",
			"type": "tuple"
		}],
		"name": "redeemTokensWithPayload",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [{"internalType": "bytes32", "name": "hash", "type": "bytes32"}],
		"name": "isMessageConsumed",
		"outputs": [{"internalType": "bool", "name": "", "type": "bool"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

const redeemGasLimit = 3000000

var circleIntegrationABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(circleIntegrationABIJSON))
	if err != nil {
		panic(fmt.Sprintf("circle integration ABI: %v", err))
	}
	return parsed
}()

// redeemParameters mirrors ICircleIntegration.RedeemParameters for ABI packing.
type redeemParameters struct {
	EncodedWormholeMessage []byte
	CircleBridgeMessage    []byte
	CircleAttestation      []byte
}

// evmBackend is the subset of ethclient the client needs.
type evmBackend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	NetworkID(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// EVMClient talks to a Circle Integration contract on an EVM chain.
type EVMClient struct {
	client     evmBackend
	privateKey *ecdsa.PrivateKey
	address    common.Address
	logger     *zap.Logger
}

// NewEVMClient creates a new client for EVM-compatible blockchains
func NewEVMClient(logger *zap.Logger, rpcURL, privateKeyHex string) (*EVMClient, error) {
	logger = logger.With(zap.String("component", "EVMClient"))

	logger.Info("Connecting to EVM chain", zap.String("rpcURL", rpcURL))
	ethClient, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to EVM node: %w", err)
	}
	return newEVMClient(logger, ethClient, privateKeyHex)
}

func newEVMClient(logger *zap.Logger, backend evmBackend, privateKeyHex string) (*EVMClient, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &EVMClient{
		client:     backend,
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
		logger:     logger,
	}, nil
}

// GetAddress returns the public address for this client
func (c *EVMClient) GetAddress() common.Address {
	return c.address
}

func packRedeem(params integration.RedeemParams) ([]byte, error) {
	return circleIntegrationABI.Pack("redeemTokensWithPayload", redeemParameters{
		EncodedWormholeMessage: params.EncodedWormholeMessage,
		CircleBridgeMessage:    params.CircleBridgeMessage,
		CircleAttestation:      params.CircleAttestation,
	})
}

// RedeemTokensWithPayload submits a matched deposit VAA and CCTP message to the contract.
func (c *EVMClient) RedeemTokensWithPayload(ctx context.Context, contract common.Address, params integration.RedeemParams) (string, error) {
	c.logger.Debug("Sending redeem transaction to EVM",
		zap.Int("vaaLength", len(params.EncodedWormholeMessage)),
		zap.Int("messageLength", len(params.CircleBridgeMessage)))

	data, err := packRedeem(params)
	if err != nil {
		return "", fmt.Errorf("ABI pack error: %w", err)
	}
	return c.sendTransaction(ctx, contract, data)
}

// IsMessageConsumed reports whether the contract has already redeemed the VAA with this digest.
func (c *EVMClient) IsMessageConsumed(ctx context.Context, contract common.Address, digest common.Hash) (bool, error) {
	data, err := circleIntegrationABI.Pack("isMessageConsumed", digest)
	if err != nil {
		return false, fmt.Errorf("ABI pack error: %w", err)
	}
	out, err := c.client.CallContract(ctx, ethereum.CallMsg{From: c.address, To: &contract, Data: data}, nil)
	if err != nil {
		return false, fmt.Errorf("isMessageConsumed call failed: %w", err)
	}
	results, err := circleIntegrationABI.Unpack("isMessageConsumed", out)
	if err != nil {
		return false, fmt.Errorf("ABI unpack error: %w", err)
	}
	consumed, ok := results[0].(bool)
	if !ok {
		return false, fmt.Errorf("unexpected isMessageConsumed result %T", results[0])
	}
	return consumed, nil
}

func (c *EVMClient) sendTransaction(ctx context.Context, to common.Address, data []byte) (string, error) {
	nonce, err := c.client.PendingNonceAt(ctx, c.address)
	if err != nil {
		return "", fmt.Errorf("failed to get nonce: %w", err)
	}
	chainID, err := c.client.NetworkID(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get chain ID: %w", err)
	}
	header, err := c.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to get latest block header: %w", err)
	}

	// 2x base fee absorbs fluctuation until inclusion
	baseFee := header.BaseFee
	if baseFee == nil {
		baseFee = big.NewInt(0)
	}
	maxPriorityFeePerGas := big.NewInt(100000000) // 0.1 gwei tip
	maxFeePerGas := new(big.Int).Mul(baseFee, big.NewInt(2))
	maxFeePerGas.Add(maxFeePerGas, maxPriorityFeePerGas)

	c.logger.Debug("Gas fees calculated",
		zap.String("baseFee", baseFee.String()),
		zap.String("maxFeePerGas", maxFeePerGas.String()),
		zap.String("maxPriorityFeePerGas", maxPriorityFeePerGas.String()))

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: maxPriorityFeePerGas,
		GasFeeCap: maxFeePerGas,
		Gas:       redeemGasLimit,
		To:        &to,
		Value:     big.NewInt(0),
		Data:      data,
	})
	signedTx, err := types.SignTx(tx, types.NewLondonSigner(chainID), c.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}
	if err := c.client.SendTransaction(ctx, signedTx); err != nil {
		return "", fmt.Errorf("failed to send transaction: %w", err)
	}
	return signedTx.Hash().Hex(), nil
}
