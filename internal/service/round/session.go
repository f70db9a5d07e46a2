package round

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"go.uber.org/zap"

	"bj-service/internal/blackjack"
	"bj-service/internal/chain"
	"bj-service/internal/dealer"
	"bj-service/internal/fairness"
	"bj-service/internal/model"
	appErr "bj-service/pkg/errors"
	"bj-service/pkg/logger"
)

type Phase string

const (
	PhaseNone      Phase = "none"
	PhaseStarting  Phase = "starting"
	PhaseInPlay    Phase = "in_play"
	PhaseResolving Phase = "resolving"
	PhaseSettling  Phase = "settling"
	PhaseSettled   Phase = "settled"
	PhaseFailed    Phase = "failed"
)

// Escrow moves player funds in and out of the shared game pool.
type Escrow interface {
	RefreshLiveness(ctx context.Context) error
	PushStake(ctx context.Context, amountWei *big.Int) error
}

// Settlement is the on-chain round registry: commitment at start, reveal
// bundle at the end.
type Settlement interface {
	MaxBet(ctx context.Context) (*big.Int, error)
	StartRound(ctx context.Context, deckRoot string, holePos int, holeLeaf string, stakeWei *big.Int) (*big.Int, error)
	Settle(ctx context.Context, roundID *big.Int, sd *dealer.SettlementData) (*big.Int, error)
}

// Dealing is the off-chain dealing service holding the actual deck.
type Dealing interface {
	StartGame(ctx context.Context, player string) (*dealer.StartGameResponse, error)
	Hit(ctx context.Context, player string, handIndex int) (*dealer.HitResponse, error)
	Stand(ctx context.Context, player string, handIndex int) (*dealer.StandResponse, error)
	Double(ctx context.Context, player string) (*dealer.DoubleResponse, error)
	Split(ctx context.Context, player string) (*dealer.SplitResponse, error)
	FullDeckReveal(ctx context.Context, player string) (*dealer.FairnessProof, error)
}

// recordStore persists round records and orphaned-stake rows. Failures are
// logged, never surfaced: the audit trail is advisory, the chain is the
// ledger of record.
type recordStore interface {
	saveRound(ctx context.Context, rec *model.RoundRecord)
	saveOrphan(ctx context.Context, o *model.OrphanedStake)
}

// Result is the frozen summary of the last settled round.
type Result struct {
	Message       string `json:"message"`
	PayoutEth     string `json:"payoutEth"`
	NetProfitEth  string `json:"netProfitEth"`
	ProofVerified *bool  `json:"proofVerified,omitempty"`
}

// Snapshot is the full externally visible session state, pushed over the
// websocket after every transition and returned by each action.
type Snapshot struct {
	Player         string   `json:"player"`
	Phase          Phase    `json:"phase"`
	Seq            int64    `json:"seq"`
	RoundID        string   `json:"roundId,omitempty"`
	StakeEth       string   `json:"stakeEth,omitempty"`
	DeckRoot       string   `json:"deckRoot,omitempty"`
	PlayerCards    []Card   `json:"playerCards"`
	DealerCards    []Card   `json:"dealerCards"`
	Hand1Cards     []Card   `json:"hand1Cards,omitempty"`
	Hand2Cards     []Card   `json:"hand2Cards,omitempty"`
	PlayerTotal    int      `json:"playerTotal"`
	DealerTotal    int      `json:"dealerTotal"`
	Hand1Total     int      `json:"hand1Total,omitempty"`
	Hand2Total     int      `json:"hand2Total,omitempty"`
	IsSplit        bool     `json:"isSplit"`
	IsAceSplit     bool     `json:"isAceSplit"`
	Doubled        bool     `json:"doubled"`
	ActiveHand     int      `json:"activeHand"`
	AllowedActions []string `json:"allowedActions"`
	Message        string   `json:"message,omitempty"`
	LastResult     *Result  `json:"lastResult,omitempty"`
}

// Session drives one player's round lifecycle. All state mutation happens
// on the single goroutine that won the busy flag; the mutex only guards
// visibility for snapshot readers and subscribers. Chain and dealer calls
// are made outside the lock.
type Session struct {
	player     string
	escrow     Escrow
	settlement Settlement
	dealing    Dealing
	store      recordStore

	mu   sync.Mutex
	busy bool

	phase    Phase
	stakeWei *big.Int
	roundID  *big.Int
	deckRoot string
	holePos  int
	holeLeaf string

	playerCards []Card
	dealerCards []Card
	hand1       []Card
	hand2       []Card
	isSplit     bool
	isAceSplit  bool
	activeHand  int
	doubled     bool

	canDouble    bool
	splitOffered bool

	message       string
	lastResult    *Result
	proof         *dealer.FairnessProof
	proofVerified *bool

	record *model.RoundRecord

	subscribers map[int64]chan Snapshot
	nextSub     int64
	seq         int64
}

func newSession(player string, escrow Escrow, settlement Settlement, dealing Dealing, store recordStore) *Session {
	return &Session{
		player:      player,
		escrow:      escrow,
		settlement:  settlement,
		dealing:     dealing,
		store:       store,
		phase:       PhaseNone,
		subscribers: make(map[int64]chan Snapshot),
	}
}

// Start escrows the stake, deals the opening hand and registers the round
// on-chain. An opening blackjack auto-stands immediately.
func (s *Session) Start(ctx context.Context, stakeEth string) (Snapshot, error) {
	if err := s.begin(); err != nil {
		return s.State(), err
	}
	err := s.startRound(ctx, stakeEth)
	return s.finishOp(), err
}

func (s *Session) Hit(ctx context.Context) (Snapshot, error) {
	if err := s.begin(); err != nil {
		return s.State(), err
	}
	err := s.hit(ctx)
	return s.finishOp(), err
}

func (s *Session) Stand(ctx context.Context) (Snapshot, error) {
	if err := s.begin(); err != nil {
		return s.State(), err
	}
	err := s.requireAction(ActionStand)
	if err == nil {
		err = s.stand(ctx)
	}
	return s.finishOp(), err
}

func (s *Session) Double(ctx context.Context) (Snapshot, error) {
	if err := s.begin(); err != nil {
		return s.State(), err
	}
	err := s.double(ctx)
	return s.finishOp(), err
}

func (s *Session) Split(ctx context.Context) (Snapshot, error) {
	if err := s.begin(); err != nil {
		return s.State(), err
	}
	err := s.split(ctx)
	return s.finishOp(), err
}

// State returns a consistent snapshot without mutating anything.
func (s *Session) State() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// LastProof returns the fairness reveal captured at settlement.
func (s *Session) LastProof() (*dealer.FairnessProof, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.proof == nil {
		return nil, appErr.ErrProofUnavailable
	}
	return s.proof, nil
}

// Subscribe registers a snapshot channel and immediately pushes the current
// state. The returned id releases the channel via Unsubscribe.
func (s *Session) Subscribe() (int64, <-chan Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSub++
	id := s.nextSub
	ch := make(chan Snapshot, 8)
	s.subscribers[id] = ch
	ch <- s.snapshotLocked()
	return id, ch
}

func (s *Session) Unsubscribe(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ch, ok := s.subscribers[id]; ok {
		delete(s.subscribers, id)
		close(ch)
	}
}

// begin claims the single-flight busy flag.
func (s *Session) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return appErr.ErrRoundInFlight
	}
	s.busy = true
	return nil
}

// finishOp releases the busy flag and broadcasts the resulting state.
func (s *Session) finishOp() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	snap := s.snapshotLocked()
	s.broadcastLocked(snap)
	return snap
}

func (s *Session) withLock(fn func()) {
	s.mu.Lock()
	fn()
	s.mu.Unlock()
}

func (s *Session) startRound(ctx context.Context, stakeEth string) error {
	var active bool
	s.withLock(func() {
		switch s.phase {
		case PhaseStarting, PhaseInPlay, PhaseResolving, PhaseSettling:
			active = true
		}
	})
	if active {
		return appErr.ErrRoundActive
	}

	stake, err := chain.ParseEther(stakeEth)
	if err != nil || stake.Sign() <= 0 {
		return appErr.ErrStakeRequired
	}
	if maxBet, err := s.settlement.MaxBet(ctx); err != nil {
		logger.Log.Warn("max bet lookup failed", zap.Error(err))
	} else if maxBet != nil && maxBet.Sign() > 0 && stake.Cmp(maxBet) > 0 {
		return fmt.Errorf("%w: max %s ETH", appErr.ErrStakeExceedsMax, chain.FormatEther(maxBet))
	}

	s.withLock(func() {
		s.resetRoundLocked()
		s.phase = PhaseStarting
		s.stakeWei = stake
	})

	if err := s.escrow.RefreshLiveness(ctx); err != nil {
		logger.Log.Warn("liveness refresh failed", zap.String("player", s.player), zap.Error(err))
	}
	if err := s.escrow.PushStake(ctx, stake); err != nil {
		// Nothing committed yet, the session returns to idle.
		s.withLock(func() {
			s.phase = PhaseNone
			s.stakeWei = nil
		})
		return err
	}

	game, err := s.dealing.StartGame(ctx, s.player)
	if err != nil {
		return s.orphan(ctx, "start_game", stake, err)
	}

	roundID, err := s.settlement.StartRound(ctx, game.DeckRoot, game.HolePos, game.HoleLeaf, stake)
	if err != nil {
		return s.orphan(ctx, "start_round", stake, err)
	}

	var blackjackDealt bool
	s.withLock(func() {
		s.roundID = roundID
		s.deckRoot = game.DeckRoot
		s.holePos = game.HolePos
		s.holeLeaf = game.HoleLeaf
		s.playerCards = Reconcile(nil, []int{game.InitialHand.PlayerCard1, game.InitialHand.PlayerCard2})
		s.dealerCards = Reconcile(nil, []int{game.InitialHand.DealerUpCard, blackjack.HoleCard})
		s.phase = PhaseInPlay
		s.canDouble = true
		s.splitOffered = game.InitialHand.IsSplittable && blackjack.IsSplittable(cardIDs(s.playerCards))
		s.message = "Your turn."
		blackjackDealt = blackjack.IsBlackjack(cardIDs(s.playerCards))
		if blackjackDealt {
			s.canDouble = false
			s.splitOffered = false
			s.message = "Blackjack!"
		}
	})
	s.createRecord(ctx)

	if blackjackDealt {
		return s.stand(ctx)
	}
	return nil
}

func (s *Session) hit(ctx context.Context) error {
	if err := s.requireAction(ActionHit); err != nil {
		return err
	}

	hand := s.currentHand()
	resp, err := s.dealing.Hit(ctx, s.player, hand)
	if err != nil {
		return s.actionFailure(ctx, err)
	}

	var total int
	s.withLock(func() {
		s.canDouble = false
		s.splitOffered = false
		switch hand {
		case 1:
			s.hand1 = Reconcile(s.hand1, resp.NewHandCards)
			total = blackjack.Total(cardIDs(s.hand1))
		case 2:
			s.hand2 = Reconcile(s.hand2, resp.NewHandCards)
			total = blackjack.Total(cardIDs(s.hand2))
		default:
			s.playerCards = Reconcile(s.playerCards, resp.NewHandCards)
			total = blackjack.Total(cardIDs(s.playerCards))
		}
		s.message = fmt.Sprintf("Drew %s (%d).", blackjack.CardName(resp.NewCard.CardID), total)
	})
	s.updateRecord(ctx)

	// Bust and exact 21 both end the player's input on this hand; the
	// dealing service owns what happens next (hand switch or settlement).
	if total >= 21 {
		return s.stand(ctx)
	}
	return nil
}

func (s *Session) stand(ctx context.Context) error {
	hand := s.currentHand()
	resp, err := s.dealing.Stand(ctx, s.player, hand)
	if err != nil {
		return s.actionFailure(ctx, err)
	}
	if resp.HandSwitched {
		return s.switchHand(ctx, resp)
	}
	return s.resolve(ctx, resp.Settlement, resp.DealerHand)
}

func (s *Session) switchHand(ctx context.Context, resp *dealer.StandResponse) error {
	var total int
	var aceSplit bool
	s.withLock(func() {
		s.activeHand = 2
		s.hand2 = Reconcile(s.hand2, resp.NewHand2Cards)
		total = blackjack.Total(cardIDs(s.hand2))
		aceSplit = s.isAceSplit
		s.message = fmt.Sprintf("Hand 2 (%d).", total)
	})
	s.updateRecord(ctx)

	// Ace splits get exactly one card per hand, so hand 2 stands at once.
	if aceSplit || total >= 21 {
		return s.stand(ctx)
	}
	return nil
}

func (s *Session) double(ctx context.Context) error {
	if err := s.requireAction(ActionDouble); err != nil {
		return err
	}

	stake := s.stakeSnapshot()
	if err := s.escrow.RefreshLiveness(ctx); err != nil {
		logger.Log.Warn("liveness refresh failed", zap.String("player", s.player), zap.Error(err))
	}
	if err := s.escrow.PushStake(ctx, stake); err != nil {
		// Second stake never left the vault, the hand is still live.
		return err
	}
	s.withLock(func() {
		s.doubled = true
		s.canDouble = false
		s.splitOffered = false
	})

	resp, err := s.dealing.Double(ctx, s.player)
	if err != nil {
		return s.orphan(ctx, "double", s.totalStakedSnapshot(), err)
	}

	s.withLock(func() {
		s.playerCards = Reconcile(s.playerCards, resp.PlayerFinalCards)
	})
	return s.resolve(ctx, resp.Settlement, resp.DealerHand)
}

func (s *Session) split(ctx context.Context) error {
	if err := s.requireAction(ActionSplit); err != nil {
		return err
	}

	var ids []int
	s.withLock(func() { ids = cardIDs(s.playerCards) })
	if len(ids) != 2 || !blackjack.IsSplittable(ids) {
		return appErr.ErrNotSplittable
	}
	aces := ids[0]%13 == 0 && ids[1]%13 == 0

	stake := s.stakeSnapshot()
	if err := s.escrow.RefreshLiveness(ctx); err != nil {
		logger.Log.Warn("liveness refresh failed", zap.String("player", s.player), zap.Error(err))
	}
	if err := s.escrow.PushStake(ctx, stake); err != nil {
		return err
	}

	resp, err := s.dealing.Split(ctx, s.player)
	if err != nil {
		return s.orphan(ctx, "split", new(big.Int).Mul(stake, big.NewInt(2)), err)
	}

	var total int
	s.withLock(func() {
		s.isSplit = true
		s.isAceSplit = aces
		s.activeHand = 1
		s.canDouble = false
		s.splitOffered = false
		s.hand1 = Reconcile(s.playerCards[:1], resp.Hand1)
		s.hand2 = Reconcile(s.playerCards[1:], resp.Hand2)
		s.playerCards = nil
		total = blackjack.Total(cardIDs(s.hand1))
		s.message = fmt.Sprintf("Hand 1 (%d).", total)
	})
	s.updateRecord(ctx)

	if aces || total >= 21 {
		return s.stand(ctx)
	}
	return nil
}

// resolve adopts the dealer's full hand, scores every player hand against
// it and hands off to settlement.
func (s *Session) resolve(ctx context.Context, sd *dealer.SettlementData, dealerHand []int) error {
	var outcome string
	s.withLock(func() {
		s.phase = PhaseResolving
		s.dealerCards = Reconcile(s.dealerCards, dealerHand)
		dealerTotal := blackjack.Total(dealerHand)
		if s.isSplit {
			t1 := blackjack.Total(cardIDs(s.hand1))
			t2 := blackjack.Total(cardIDs(s.hand2))
			outcome = fmt.Sprintf("Dealer has %d. Hand 1 (%d): %s. Hand 2 (%d): %s.",
				dealerTotal, t1, blackjack.Compare(t1, dealerTotal), t2, blackjack.Compare(t2, dealerTotal))
		} else {
			pt := blackjack.Total(cardIDs(s.playerCards))
			verdict := string(blackjack.Compare(pt, dealerTotal))
			if s.doubled {
				verdict = "(Double) " + verdict
			}
			outcome = fmt.Sprintf("Dealer has %d, you have %d: %s.", dealerTotal, pt, verdict)
		}
		s.message = outcome
	})
	return s.settle(ctx, sd, outcome)
}

// settle submits the reveal bundle exactly once and freezes the result.
// The fairness reveal afterwards is best effort: a missing or mismatching
// proof flags the record but never reopens a settled round.
func (s *Session) settle(ctx context.Context, sd *dealer.SettlementData, outcome string) error {
	var roundID *big.Int
	s.withLock(func() {
		s.phase = PhaseSettling
		roundID = s.roundID
	})
	s.updateRecord(ctx)

	payout, err := s.settlement.Settle(ctx, roundID, sd)
	if err != nil {
		return s.orphan(ctx, "settle", s.totalStakedSnapshot(), err)
	}

	staked := s.totalStakedSnapshot()
	net := new(big.Int).Sub(payout, staked)

	var verified *bool
	proof, perr := s.dealing.FullDeckReveal(ctx, s.player)
	if perr != nil {
		logger.Log.Warn("fairness reveal unavailable", zap.String("player", s.player), zap.Error(perr))
	} else {
		var root string
		s.withLock(func() { root = s.deckRoot })
		v := fairness.VerifyProof(root, proof) == nil
		verified = &v
		if !v {
			logger.Log.Warn("fairness proof mismatch",
				zap.String("player", s.player),
				zap.String("deckRoot", root),
			)
		}
	}

	s.withLock(func() {
		s.phase = PhaseSettled
		s.proof = proof
		s.proofVerified = verified
		s.lastResult = &Result{
			Message:       outcome,
			PayoutEth:     chain.FormatEther(payout),
			NetProfitEth:  chain.FormatEther(net),
			ProofVerified: verified,
		}
		s.message = outcome
	})
	s.settleRecord(ctx, outcome, payout, net, proof, verified)

	logger.Log.Info("round settled",
		zap.String("player", s.player),
		zap.String("roundId", roundID.String()),
		zap.String("payoutWei", payout.String()),
		zap.String("netWei", net.String()),
	)
	return nil
}

// orphan marks the round failed with committed funds at risk. The row it
// writes is the operational trail for manual recovery; no automatic refund
// is attempted.
func (s *Session) orphan(ctx context.Context, stage string, amount *big.Int, cause error) error {
	var roundID string
	s.withLock(func() {
		s.phase = PhaseFailed
		s.message = "Round failed with funds in escrow. The stake needs manual recovery."
		if s.roundID != nil {
			roundID = s.roundID.String()
		}
	})

	s.store.saveOrphan(ctx, &model.OrphanedStake{
		PlayerAddress: s.player,
		AmountWei:     amount.String(),
		RoundID:       roundID,
		Stage:         stage,
		Reason:        cause.Error(),
	})
	s.updateRecord(ctx)

	logger.Log.Error("orphaned stake",
		zap.String("player", s.player),
		zap.String("stage", stage),
		zap.String("amountWei", amount.String()),
		zap.Error(cause),
	)
	return fmt.Errorf("%w: %s: %v", appErr.ErrOrphanedStake, stage, cause)
}

// actionFailure classifies a dealing error mid-round. Losing the server-side
// round is terminal because the committed stake can no longer settle;
// anything else aborts only the attempted action.
func (s *Session) actionFailure(ctx context.Context, err error) error {
	if errors.Is(err, appErr.ErrNoActiveRound) {
		return s.orphan(ctx, "lost_round", s.totalStakedSnapshot(), err)
	}
	return err
}

func (s *Session) requireAction(action string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.actionAllowedLocked(action) {
		return nil
	}
	switch s.phase {
	case PhaseNone, PhaseSettled, PhaseFailed:
		return appErr.ErrNoActiveRound
	case PhaseInPlay:
		switch action {
		case ActionDouble:
			return appErr.ErrDoubleUnavailable
		case ActionSplit:
			if s.isSplit {
				return appErr.ErrAlreadySplit
			}
			return appErr.ErrNotSplittable
		}
	}
	return appErr.ErrNotPlayerTurn
}

func (s *Session) currentHand() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isSplit {
		return s.activeHand
	}
	return 0
}

func (s *Session) stakeSnapshot() *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stakeWei == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(s.stakeWei)
}

// totalStakedSnapshot is the committed amount for this round: the stake,
// doubled when a second equal stake went into the pool.
func (s *Session) totalStakedSnapshot() *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stakeWei == nil {
		return new(big.Int)
	}
	total := new(big.Int).Set(s.stakeWei)
	if s.doubled || s.isSplit {
		total.Mul(total, big.NewInt(2))
	}
	return total
}

func (s *Session) resetRoundLocked() {
	s.stakeWei = nil
	s.roundID = nil
	s.deckRoot = ""
	s.holePos = 0
	s.holeLeaf = ""
	s.playerCards = nil
	s.dealerCards = nil
	s.hand1 = nil
	s.hand2 = nil
	s.isSplit = false
	s.isAceSplit = false
	s.activeHand = 0
	s.doubled = false
	s.canDouble = false
	s.splitOffered = false
	s.message = ""
	s.proof = nil
	s.proofVerified = nil
	s.record = nil
}

func (s *Session) snapshotLocked() Snapshot {
	s.seq++
	snap := Snapshot{
		Player:         s.player,
		Phase:          s.phase,
		Seq:            s.seq,
		DeckRoot:       s.deckRoot,
		PlayerCards:    append([]Card(nil), s.playerCards...),
		DealerCards:    append([]Card(nil), s.dealerCards...),
		Hand1Cards:     append([]Card(nil), s.hand1...),
		Hand2Cards:     append([]Card(nil), s.hand2...),
		PlayerTotal:    blackjack.Total(cardIDs(s.playerCards)),
		DealerTotal:    blackjack.Total(cardIDs(s.dealerCards)),
		Hand1Total:     blackjack.Total(cardIDs(s.hand1)),
		Hand2Total:     blackjack.Total(cardIDs(s.hand2)),
		IsSplit:        s.isSplit,
		IsAceSplit:     s.isAceSplit,
		Doubled:        s.doubled,
		ActiveHand:     s.activeHand,
		AllowedActions: s.allowedActionsLocked(),
		Message:        s.message,
		LastResult:     s.lastResult,
	}
	if s.roundID != nil {
		snap.RoundID = s.roundID.String()
	}
	if s.stakeWei != nil {
		snap.StakeEth = chain.FormatEther(s.stakeWei)
	}
	return snap
}

func (s *Session) broadcastLocked(snap Snapshot) {
	for id, ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			logger.Log.Warn("snapshot subscriber channel full",
				zap.String("player", s.player),
				zap.Int64("subscriber", id),
			)
		}
	}
}

func (s *Session) createRecord(ctx context.Context) {
	var rec *model.RoundRecord
	s.withLock(func() {
		rec = &model.RoundRecord{
			PlayerAddress: s.player,
			StakeWei:      s.stakeWei.String(),
			DeckRoot:      s.deckRoot,
			HolePos:       s.holePos,
			HoleLeaf:      s.holeLeaf,
			Phase:         string(s.phase),
		}
		if s.roundID != nil {
			rec.RoundID = s.roundID.String()
		}
		s.record = rec
	})
	s.store.saveRound(ctx, rec)
}

func (s *Session) updateRecord(ctx context.Context) {
	var rec *model.RoundRecord
	s.withLock(func() {
		if s.record == nil {
			return
		}
		s.record.Phase = string(s.phase)
		s.record.Doubled = s.doubled
		s.record.Split = s.isSplit
		s.record.AceSplit = s.isAceSplit
		rec = s.record
	})
	if rec != nil {
		s.store.saveRound(ctx, rec)
	}
}

func (s *Session) settleRecord(ctx context.Context, outcome string, payout, net *big.Int, proof *dealer.FairnessProof, verified *bool) {
	var rec *model.RoundRecord
	s.withLock(func() {
		if s.record == nil {
			return
		}
		now := time.Now()
		s.record.Phase = string(s.phase)
		s.record.Doubled = s.doubled
		s.record.Split = s.isSplit
		s.record.AceSplit = s.isAceSplit
		s.record.Outcome = outcome
		s.record.PayoutWei = payout.String()
		s.record.NetProfitWei = net.String()
		s.record.ProofVerified = verified
		s.record.SettledAt = &now
		if proof != nil {
			if raw, err := json.Marshal(proof); err == nil {
				s.record.ProofJSON = raw
			}
		}
		rec = s.record
	})
	if rec != nil {
		s.store.saveRound(ctx, rec)
	}
}
