package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"bj-service/internal/dealer"
	appErr "bj-service/pkg/errors"
	"bj-service/pkg/logger"
)

// SettlementGateway wraps the on-chain blackjack contract: round start
// against the deck commitment and the final reveal-and-settle call.
type SettlementGateway struct {
	client    *Client
	address   common.Address
	abi       abi.ABI
	gasStart  uint64
	gasSettle uint64
}

// revealArg mirrors the contract's Reveal tuple for abi packing.
type revealArg struct {
	Pos    uint8
	CardId uint8
	Salt   [32]byte
	Proof  [][32]byte
}

func NewSettlementGateway(client *Client, address string, gasStart, gasSettle uint64) (*SettlementGateway, error) {
	parsed, err := abi.JSON(strings.NewReader(blackjackABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse blackjack abi: %w", err)
	}
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid blackjack address %q", address)
	}
	return &SettlementGateway{
		client:    client,
		address:   common.HexToAddress(address),
		abi:       parsed,
		gasStart:  gasStart,
		gasSettle: gasSettle,
	}, nil
}

func (g *SettlementGateway) MaxBet(ctx context.Context) (*big.Int, error) {
	data, err := g.abi.Pack("MAX_BET")
	if err != nil {
		return nil, err
	}
	raw, err := g.client.Call(ctx, g.address, data)
	if err != nil {
		return nil, err
	}
	out, err := g.abi.Unpack("MAX_BET", raw)
	if err != nil {
		return nil, fmt.Errorf("unpack MAX_BET: %w", err)
	}
	return abi.ConvertType(out[0], new(big.Int)).(*big.Int), nil
}

// StartRound registers the deck commitment and the stake on-chain and
// returns the round id emitted by the RoundStarted event. A confirmed
// transaction without that event is a distinct fatal error: the round id
// cannot be recovered any other way.
func (g *SettlementGateway) StartRound(ctx context.Context, deckRoot string, holePos int, holeLeaf string, stakeWei *big.Int) (*big.Int, error) {
	root, err := toBytes32(deckRoot)
	if err != nil {
		return nil, fmt.Errorf("deck root: %w", err)
	}
	leaf, err := toBytes32(holeLeaf)
	if err != nil {
		return nil, fmt.Errorf("hole leaf: %w", err)
	}

	data, err := g.abi.Pack("startRound", root, uint8(holePos), leaf, stakeWei)
	if err != nil {
		return nil, err
	}
	receipt, err := g.client.Transact(ctx, g.address, nil, g.gasStart, data)
	if err != nil {
		return nil, err
	}

	roundID, ok := g.roundIDFromLogs(receipt.Logs, "RoundStarted")
	if !ok {
		return nil, appErr.ErrRoundEventMissing
	}
	logger.Log.Info("round started on-chain", zap.String("roundId", roundID.String()))
	return roundID, nil
}

// Settle submits the reveal bundle supplied by the dealing service and
// returns the payout emitted by RoundSettled. The bundle is passed through
// untouched apart from abi conversion; on a split round the doubled flag
// is forced false, matching the contract's accounting.
func (g *SettlementGateway) Settle(ctx context.Context, roundID *big.Int, sd *dealer.SettlementData) (*big.Int, error) {
	holeSalt, err := toBytes32(sd.HoleSalt)
	if err != nil {
		return nil, fmt.Errorf("hole salt: %w", err)
	}
	holeProof, err := toProof(sd.HoleProof)
	if err != nil {
		return nil, fmt.Errorf("hole proof: %w", err)
	}
	initial3, err := toRevealArgs(sd.Initial3)
	if err != nil {
		return nil, fmt.Errorf("initial reveals: %w", err)
	}
	playerExtra, err := toRevealArgs(sd.PlayerExtra)
	if err != nil {
		return nil, fmt.Errorf("player reveals: %w", err)
	}
	dealerDraws, err := toRevealArgs(sd.DealerDraws)
	if err != nil {
		return nil, fmt.Errorf("dealer reveals: %w", err)
	}
	hand1Extra, err := toRevealArgs(sd.Hand1Extra)
	if err != nil {
		return nil, fmt.Errorf("hand1 reveals: %w", err)
	}
	hand2Extra, err := toRevealArgs(sd.Hand2Extra)
	if err != nil {
		return nil, fmt.Errorf("hand2 reveals: %w", err)
	}

	doubled := sd.Doubled && !sd.Split

	data, err := g.abi.Pack("settle",
		roundID,
		uint8(sd.HoleCardID),
		holeSalt,
		holeProof,
		initial3,
		playerExtra,
		dealerDraws,
		doubled,
		sd.Split,
		hand1Extra,
		hand2Extra,
	)
	if err != nil {
		return nil, err
	}

	receipt, err := g.client.Transact(ctx, g.address, nil, g.gasSettle, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrSettleFailed, err)
	}

	payout, ok := g.payoutFromLogs(receipt.Logs)
	if !ok {
		return nil, fmt.Errorf("%w: RoundSettled", appErr.ErrRoundEventMissing)
	}
	logger.Log.Info("round settled on-chain",
		zap.String("roundId", roundID.String()),
		zap.String("payoutWei", payout.String()),
	)
	return payout, nil
}

func (g *SettlementGateway) roundIDFromLogs(logs []*types.Log, event string) (*big.Int, bool) {
	topic := g.abi.Events[event].ID
	for _, l := range logs {
		if l.Address != g.address || len(l.Topics) < 2 || l.Topics[0] != topic {
			continue
		}
		return new(big.Int).SetBytes(l.Topics[1].Bytes()), true
	}
	return nil, false
}

func (g *SettlementGateway) payoutFromLogs(logs []*types.Log) (*big.Int, bool) {
	topic := g.abi.Events["RoundSettled"].ID
	for _, l := range logs {
		if l.Address != g.address || len(l.Topics) == 0 || l.Topics[0] != topic {
			continue
		}
		out, err := g.abi.Unpack("RoundSettled", l.Data)
		if err != nil || len(out) == 0 {
			return nil, false
		}
		return abi.ConvertType(out[0], new(big.Int)).(*big.Int), true
	}
	return nil, false
}

func toBytes32(hex string) ([32]byte, error) {
	var out [32]byte
	raw, err := hexutil.Decode(hex)
	if err != nil {
		return out, err
	}
	if len(raw) != 32 {
		return out, fmt.Errorf("expected 32 bytes, got %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

func toProof(hexes []string) ([][32]byte, error) {
	out := make([][32]byte, 0, len(hexes))
	for _, h := range hexes {
		b, err := toBytes32(h)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func toRevealArgs(reveals []dealer.Reveal) ([]revealArg, error) {
	out := make([]revealArg, 0, len(reveals))
	for _, r := range reveals {
		salt, err := toBytes32(r.Salt)
		if err != nil {
			return nil, err
		}
		proof, err := toProof(r.Proof)
		if err != nil {
			return nil, err
		}
		out = append(out, revealArg{
			Pos:    uint8(r.Pos),
			CardId: uint8(r.CardID),
			Salt:   salt,
			Proof:  proof,
		})
	}
	return out, nil
}
