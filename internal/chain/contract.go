package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// policyContractABI covers the single method the backend calls.
const policyContractABI = `[{
	"type": "function",
	"name": "updatePolicyClaim",
	"stateMutability": "nonpayable",
	"inputs": [
		{"name": "_policyId", "type": "uint256"},
		{"name": "_approvedAmount", "type": "uint256"}
	],
	"outputs": []
}]`

// ContractConfig holds the connection settings for NewContractPayer.
type ContractConfig struct {
	RPCURL          string // e.g. "https://mainnet.base.org"
	PrivateKeyHex   string // signing key, with or without 0x prefix
	ContractAddress string // deployed policy contract
}

// contractPayer is the concrete Payer backed by go-ethereum.
type contractPayer struct {
	client   *ethclient.Client
	contract *bind.BoundContract
	key      *ecdsa.PrivateKey
	chainID  *big.Int
}

// NewContractPayer dials the RPC endpoint, resolves the chain id and binds
// the policy contract. The returned close func releases the RPC connection.
func NewContractPayer(ctx context.Context, cfg ContractConfig) (Payer, func(), error) {
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, nil, fmt.Errorf("chain: invalid contract address %q", cfg.ContractAddress)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKeyHex, "0x"))
	if err != nil {
		return nil, nil, fmt.Errorf("chain: parse private key: %w", err)
	}

	parsedABI, err := abi.JSON(strings.NewReader(policyContractABI))
	if err != nil {
		return nil, nil, fmt.Errorf("chain: parse abi: %w", err)
	}

	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, nil, fmt.Errorf("chain: dial %s: %w", cfg.RPCURL, err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("chain: chain id: %w", err)
	}

	addr := common.HexToAddress(cfg.ContractAddress)
	p := &contractPayer{
		client:   client,
		contract: bind.NewBoundContract(addr, parsedABI, client, client, client),
		key:      key,
		chainID:  chainID,
	}
	return p, client.Close, nil
}

// UpdatePolicyClaim sends updatePolicyClaim(policyID, amount) and waits for
// the receipt. A receipt with a failed status is reported as ErrReverted.
func (p *contractPayer) UpdatePolicyClaim(ctx context.Context, policyID, approvedAmountWei *big.Int) (string, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(p.key, p.chainID)
	if err != nil {
		return "", fmt.Errorf("chain: transactor: %w", err)
	}
	opts.Context = ctx

	tx, err := p.contract.Transact(opts, "updatePolicyClaim", policyID, approvedAmountWei)
	if err != nil {
		return "", fmt.Errorf("chain: send updatePolicyClaim: %w", err)
	}

	receipt, err := bind.WaitMined(ctx, p.client, tx)
	if err != nil {
		return "", fmt.Errorf("chain: wait for %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return "", fmt.Errorf("%w: %s", ErrReverted, tx.Hash().Hex())
	}

	return tx.Hash().Hex(), nil
}
