package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	appErr "bj-service/pkg/errors"
	"bj-service/pkg/logger"
)

const gasLimitVault = 200_000

// VaultGateway wraps the on-chain user vault: deposits, withdrawals, the
// stake escrow into the shared game pool and the session-liveness refresh.
type VaultGateway struct {
	client  *Client
	address common.Address
	abi     abi.ABI
}

type UserInfo struct {
	Username string   `json:"username"`
	Balance  *big.Int `json:"balance"`
	Frozen   bool     `json:"frozen"`
}

func NewVaultGateway(client *Client, address string) (*VaultGateway, error) {
	parsed, err := abi.JSON(strings.NewReader(vaultABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse vault abi: %w", err)
	}
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid vault address %q", address)
	}
	return &VaultGateway{
		client:  client,
		address: common.HexToAddress(address),
		abi:     parsed,
	}, nil
}

// RefreshLiveness bumps the vault's last-activity timestamp. Best effort:
// callers log a failure and still attempt the paid call that follows.
func (g *VaultGateway) RefreshLiveness(ctx context.Context) error {
	data, err := g.abi.Pack("updateLastActivity")
	if err != nil {
		return err
	}
	_, err = g.client.Transact(ctx, g.address, nil, gasLimitVault, data)
	return err
}

// PushStake moves amountWei from the vault balance into the game pool.
// Once the receipt confirms the funds are committed; a later failure in
// the same round does not return them automatically.
func (g *VaultGateway) PushStake(ctx context.Context, amountWei *big.Int) error {
	data, err := g.abi.Pack("pushToPool", amountWei)
	if err != nil {
		return err
	}
	if _, err := g.client.Transact(ctx, g.address, nil, gasLimitVault, data); err != nil {
		return fmt.Errorf("%w: %v", appErr.ErrEscrowFailed, err)
	}
	logger.Log.Info("stake escrowed to pool", zap.String("amountWei", amountWei.String()))
	return nil
}

func (g *VaultGateway) Deposit(ctx context.Context, amountWei *big.Int) error {
	data, err := g.abi.Pack("deposit")
	if err != nil {
		return err
	}
	_, err = g.client.Transact(ctx, g.address, amountWei, gasLimitVault, data)
	return err
}

func (g *VaultGateway) Withdraw(ctx context.Context, amountWei *big.Int) error {
	data, err := g.abi.Pack("withdraw", amountWei)
	if err != nil {
		return err
	}
	_, err = g.client.Transact(ctx, g.address, nil, gasLimitVault, data)
	return err
}

func (g *VaultGateway) UserInfo(ctx context.Context, player common.Address) (*UserInfo, error) {
	data, err := g.abi.Pack("getUserInfo", player)
	if err != nil {
		return nil, err
	}
	raw, err := g.client.Call(ctx, g.address, data)
	if err != nil {
		return nil, err
	}
	var info UserInfo
	if err := g.abi.UnpackIntoInterface(&info, "getUserInfo", raw); err != nil {
		return nil, fmt.Errorf("unpack getUserInfo: %w", err)
	}
	return &info, nil
}

func (g *VaultGateway) PoolBalance(ctx context.Context) (*big.Int, error) {
	data, err := g.abi.Pack("gamePoolBalance")
	if err != nil {
		return nil, err
	}
	raw, err := g.client.Call(ctx, g.address, data)
	if err != nil {
		return nil, err
	}
	out, err := g.abi.Unpack("gamePoolBalance", raw)
	if err != nil {
		return nil, fmt.Errorf("unpack gamePoolBalance: %w", err)
	}
	return abi.ConvertType(out[0], new(big.Int)).(*big.Int), nil
}
