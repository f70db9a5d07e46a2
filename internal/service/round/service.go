package round

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"bj-service/internal/dealer"
	"bj-service/internal/model"
	appErr "bj-service/pkg/errors"
	"bj-service/pkg/logger"
)

// roundLockTTL caps how long a crashed instance can hold a player's
// distributed action lock.
const roundLockTTL = 2 * time.Minute

// Service owns the per-player sessions and the persistence around them.
// The redis lock makes state-mutating actions single-flight across
// instances; within one instance the session's busy flag does the same.
type Service struct {
	db         *gorm.DB
	rdb        *redis.Client
	escrow     Escrow
	settlement Settlement
	dealing    Dealing

	sessions sync.Map // normalized address -> *Session
}

func NewService(db *gorm.DB, rdb *redis.Client, escrow Escrow, settlement Settlement, dealing Dealing) *Service {
	return &Service{
		db:         db,
		rdb:        rdb,
		escrow:     escrow,
		settlement: settlement,
		dealing:    dealing,
	}
}

// NormalizeAddress validates and canonicalizes a player address. Every
// public entry point goes through this, so a checksummed and a lowercased
// spelling of the same wallet share one session.
func NormalizeAddress(player string) (string, error) {
	if !common.IsHexAddress(player) {
		return "", appErr.ErrInvalidAddress
	}
	return strings.ToLower(common.HexToAddress(player).Hex()), nil
}

// SessionFor returns the player's session, creating it on first contact.
func (s *Service) SessionFor(player string) (*Session, error) {
	addr, err := NormalizeAddress(player)
	if err != nil {
		return nil, err
	}
	return s.session(addr), nil
}

func (s *Service) session(addr string) *Session {
	if v, ok := s.sessions.Load(addr); ok {
		return v.(*Session)
	}
	sess := newSession(addr, s.escrow, s.settlement, s.dealing, s)
	actual, _ := s.sessions.LoadOrStore(addr, sess)
	return actual.(*Session)
}

func (s *Service) Start(ctx context.Context, player, stakeEth string) (Snapshot, error) {
	return s.withRoundLock(ctx, player, func(sess *Session) (Snapshot, error) {
		return sess.Start(ctx, stakeEth)
	})
}

func (s *Service) Hit(ctx context.Context, player string) (Snapshot, error) {
	return s.withRoundLock(ctx, player, func(sess *Session) (Snapshot, error) {
		return sess.Hit(ctx)
	})
}

func (s *Service) Stand(ctx context.Context, player string) (Snapshot, error) {
	return s.withRoundLock(ctx, player, func(sess *Session) (Snapshot, error) {
		return sess.Stand(ctx)
	})
}

func (s *Service) Double(ctx context.Context, player string) (Snapshot, error) {
	return s.withRoundLock(ctx, player, func(sess *Session) (Snapshot, error) {
		return sess.Double(ctx)
	})
}

func (s *Service) Split(ctx context.Context, player string) (Snapshot, error) {
	return s.withRoundLock(ctx, player, func(sess *Session) (Snapshot, error) {
		return sess.Split(ctx)
	})
}

func (s *Service) State(ctx context.Context, player string) (Snapshot, error) {
	sess, err := s.SessionFor(player)
	if err != nil {
		return Snapshot{}, err
	}
	return sess.State(), nil
}

func (s *Service) LastProof(ctx context.Context, player string) (*dealer.FairnessProof, error) {
	sess, err := s.SessionFor(player)
	if err != nil {
		return nil, err
	}
	return sess.LastProof()
}

// History lists the player's most recent round records, newest first.
func (s *Service) History(ctx context.Context, player string, limit int) ([]model.RoundRecord, error) {
	addr, err := NormalizeAddress(player)
	if err != nil {
		return nil, err
	}
	if s.db == nil {
		return nil, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var records []model.RoundRecord
	err = s.db.WithContext(ctx).
		Where("player_address = ?", addr).
		Order("id DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// ResetOnAccountChange drops the in-memory session for a wallet. The next
// request from that address starts from a clean idle state; settled history
// stays in the database.
func (s *Service) ResetOnAccountChange(player string) error {
	addr, err := NormalizeAddress(player)
	if err != nil {
		return err
	}
	s.sessions.Delete(addr)
	return nil
}

func (s *Service) withRoundLock(ctx context.Context, player string, fn func(*Session) (Snapshot, error)) (Snapshot, error) {
	addr, err := NormalizeAddress(player)
	if err != nil {
		return Snapshot{}, err
	}
	sess := s.session(addr)

	if s.rdb != nil {
		key := "round:lock:" + addr
		ok, err := s.rdb.SetNX(ctx, key, "1", roundLockTTL).Result()
		if err != nil {
			// Redis being down degrades to the in-process busy flag.
			logger.Log.Warn("round lock unavailable", zap.String("player", addr), zap.Error(err))
		} else if !ok {
			return sess.State(), appErr.ErrRoundInFlight
		} else {
			defer s.rdb.Del(context.WithoutCancel(ctx), key)
		}
	}
	return fn(sess)
}

func (s *Service) saveRound(ctx context.Context, rec *model.RoundRecord) {
	if s.db == nil || rec == nil {
		return
	}
	if err := s.db.WithContext(ctx).Save(rec).Error; err != nil {
		logger.Log.Error("persist round record failed",
			zap.String("player", rec.PlayerAddress),
			zap.Error(err),
		)
	}
}

func (s *Service) saveOrphan(ctx context.Context, o *model.OrphanedStake) {
	if s.db == nil || o == nil {
		return
	}
	if err := s.db.WithContext(ctx).Create(o).Error; err != nil {
		logger.Log.Error("persist orphaned stake failed",
			zap.String("player", o.PlayerAddress),
			zap.Error(err),
		)
	}
}
