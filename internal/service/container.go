package service

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"bj-service/internal/chain"
	"bj-service/internal/config"
	"bj-service/internal/dealer"
	"bj-service/internal/service/round"
)

type Container struct {
	Chain  *chain.Client
	Vault  *chain.VaultGateway
	Dealer *dealer.Client
	Round  *round.Service
}

func NewContainer(db *gorm.DB, rdb *redis.Client) (*Container, error) {
	cfg := config.GlobalConfig

	client, err := chain.Dial(cfg.Chain)
	if err != nil {
		return nil, fmt.Errorf("chain client: %w", err)
	}
	vault, err := chain.NewVaultGateway(client, cfg.Chain.VaultAddress)
	if err != nil {
		return nil, fmt.Errorf("vault gateway: %w", err)
	}
	settlement, err := chain.NewSettlementGateway(client, cfg.Chain.BlackjackAddress, cfg.Chain.GasLimitStart, cfg.Chain.GasLimitSettle)
	if err != nil {
		return nil, fmt.Errorf("settlement gateway: %w", err)
	}
	dealing := dealer.NewClient(cfg.Dealer.BaseURL, time.Duration(cfg.Dealer.TimeoutSeconds)*time.Second)

	return &Container{
		Chain:  client,
		Vault:  vault,
		Dealer: dealing,
		Round:  round.NewService(db, rdb, vault, settlement, dealing),
	}, nil
}
