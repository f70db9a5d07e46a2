// Package chain signs and submits the vault and settlement transactions.
// All money movement in a round goes through here; every transaction is
// awaited to a mined receipt before the caller proceeds, and a failed
// receipt is replayed as a call to recover the revert reason.
package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"bj-service/internal/config"
	appErr "bj-service/pkg/errors"
	"bj-service/pkg/logger"
)

type Client struct {
	eth     *ethclient.Client
	key     *ecdsa.PrivateKey
	from    common.Address
	chainID *big.Int
	signer  types.Signer

	// One operator key signs everything, so nonce allocation is serialized.
	mu sync.Mutex
}

func Dial(cfg config.ChainConfig) (*Client, error) {
	eth, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial chain rpc: %w", err)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse chain private key: %w", err)
	}

	chainID := big.NewInt(cfg.ChainID)
	return &Client{
		eth:     eth,
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		chainID: chainID,
		signer:  types.LatestSignerForChainID(chainID),
	}, nil
}

func (c *Client) From() common.Address {
	return c.from
}

// Transact signs a legacy transaction, submits it and waits for the mined
// receipt. A reverted receipt is surfaced as ErrTransactionRevert with the
// chain-provided reason when one can be recovered.
func (c *Client) Transact(ctx context.Context, to common.Address, value *big.Int, gasLimit uint64, data []byte) (*types.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	nonce, err := c.eth.PendingNonceAt(ctx, c.from)
	if err != nil {
		return nil, fmt.Errorf("fetch nonce: %w", err)
	}
	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       &to,
		Value:    value,
		Data:     data,
	})
	signed, err := types.SignTx(tx, c.signer, c.key)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}

	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrTransactionRevert, err)
	}

	logger.Log.Info("transaction submitted",
		zap.String("hash", signed.Hash().Hex()),
		zap.String("to", to.Hex()),
	)

	receipt, err := bind.WaitMined(ctx, c.eth, signed)
	if err != nil {
		return nil, fmt.Errorf("wait for receipt: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		reason := c.revertReason(ctx, signed, receipt.BlockNumber)
		return receipt, fmt.Errorf("%w: %s", appErr.ErrTransactionRevert, reason)
	}
	return receipt, nil
}

// Call executes a read-only contract call at the latest block.
func (c *Client) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	return c.eth.CallContract(ctx, ethereum.CallMsg{
		From: c.from,
		To:   &to,
		Data: data,
	}, nil)
}

// revertReason replays a failed transaction as a call at its block. Nodes
// that prune state may refuse the replay, in which case a generic reason
// is returned.
func (c *Client) revertReason(ctx context.Context, tx *types.Transaction, blockNumber *big.Int) string {
	msg := ethereum.CallMsg{
		From:     c.from,
		To:       tx.To(),
		Gas:      tx.Gas(),
		GasPrice: tx.GasPrice(),
		Value:    tx.Value(),
		Data:     tx.Data(),
	}
	_, err := c.eth.CallContract(ctx, msg, blockNumber)
	if err == nil {
		return "transaction reverted without reason"
	}
	return err.Error()
}
