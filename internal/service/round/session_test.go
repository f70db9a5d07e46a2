package round_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"bj-service/internal/chain"
	"bj-service/internal/dealer"
	"bj-service/internal/service/round"
	appErr "bj-service/pkg/errors"
)

const player = "0x1111111111111111111111111111111111111111"

type fakeEscrow struct {
	pushes      []*big.Int
	pushErr     error
	livenessErr error
}

func (f *fakeEscrow) RefreshLiveness(ctx context.Context) error { return f.livenessErr }

func (f *fakeEscrow) PushStake(ctx context.Context, amountWei *big.Int) error {
	if f.pushErr != nil {
		return f.pushErr
	}
	f.pushes = append(f.pushes, new(big.Int).Set(amountWei))
	return nil
}

type fakeSettlement struct {
	maxBet    *big.Int
	roundID   *big.Int
	startErr  error
	payout    *big.Int
	settleErr error

	startCalls  int
	settleCalls int
	lastRoot    string
	lastStake   *big.Int
	lastData    *dealer.SettlementData
}

func (f *fakeSettlement) MaxBet(ctx context.Context) (*big.Int, error) {
	return f.maxBet, nil
}

func (f *fakeSettlement) StartRound(ctx context.Context, deckRoot string, holePos int, holeLeaf string, stakeWei *big.Int) (*big.Int, error) {
	f.startCalls++
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.lastRoot = deckRoot
	f.lastStake = new(big.Int).Set(stakeWei)
	return f.roundID, nil
}

func (f *fakeSettlement) Settle(ctx context.Context, roundID *big.Int, sd *dealer.SettlementData) (*big.Int, error) {
	f.settleCalls++
	if f.settleErr != nil {
		return nil, f.settleErr
	}
	f.lastData = sd
	return f.payout, nil
}

type fakeDealing struct {
	start    *dealer.StartGameResponse
	startErr error
	hits     []*dealer.HitResponse
	hitErr   error
	stands   []*dealer.StandResponse
	double   *dealer.DoubleResponse
	split    *dealer.SplitResponse
	splitErr error
	proof    *dealer.FairnessProof
	proofErr error

	startCalls int
	hitHands   []int
	standHands []int
}

func (f *fakeDealing) StartGame(ctx context.Context, player string) (*dealer.StartGameResponse, error) {
	f.startCalls++
	if f.startErr != nil {
		return nil, f.startErr
	}
	return f.start, nil
}

func (f *fakeDealing) Hit(ctx context.Context, player string, handIndex int) (*dealer.HitResponse, error) {
	if f.hitErr != nil {
		return nil, f.hitErr
	}
	f.hitHands = append(f.hitHands, handIndex)
	if len(f.hits) == 0 {
		return nil, errors.New("unexpected hit")
	}
	resp := f.hits[0]
	f.hits = f.hits[1:]
	return resp, nil
}

func (f *fakeDealing) Stand(ctx context.Context, player string, handIndex int) (*dealer.StandResponse, error) {
	f.standHands = append(f.standHands, handIndex)
	if len(f.stands) == 0 {
		return nil, errors.New("unexpected stand")
	}
	resp := f.stands[0]
	f.stands = f.stands[1:]
	return resp, nil
}

func (f *fakeDealing) Double(ctx context.Context, player string) (*dealer.DoubleResponse, error) {
	if f.double == nil {
		return nil, errors.New("unexpected double")
	}
	return f.double, nil
}

func (f *fakeDealing) Split(ctx context.Context, player string) (*dealer.SplitResponse, error) {
	if f.splitErr != nil {
		return nil, f.splitErr
	}
	if f.split == nil {
		return nil, errors.New("unexpected split")
	}
	return f.split, nil
}

func (f *fakeDealing) FullDeckReveal(ctx context.Context, player string) (*dealer.FairnessProof, error) {
	if f.proofErr != nil {
		return nil, f.proofErr
	}
	return f.proof, nil
}

func eth(t *testing.T, amount string) *big.Int {
	t.Helper()
	wei, err := chain.ParseEther(amount)
	if err != nil {
		t.Fatalf("parse ether %q: %v", amount, err)
	}
	return wei
}

func startResponse(p1, p2, up int, splittable bool) *dealer.StartGameResponse {
	return &dealer.StartGameResponse{
		DeckRoot: "0xaa00000000000000000000000000000000000000000000000000000000000000",
		HolePos:  4,
		HoleLeaf: "0x1100000000000000000000000000000000000000000000000000000000000000",
		InitialHand: &dealer.InitialHand{
			PlayerCard1:  p1,
			PlayerCard2:  p2,
			DealerUpCard: up,
			IsSplittable: splittable,
		},
	}
}

func settledStand(dealerHand []int, doubled, split bool) *dealer.StandResponse {
	return &dealer.StandResponse{
		Settlement: &dealer.SettlementData{Doubled: doubled, Split: split},
		DealerHand: dealerHand,
	}
}

func newFixture(payout string) (*fakeEscrow, *fakeSettlement, *fakeDealing, *round.Service) {
	esc := &fakeEscrow{}
	set := &fakeSettlement{
		roundID: big.NewInt(7),
		payout:  mustWei(payout),
	}
	deal := &fakeDealing{proofErr: errors.New("reveal unavailable")}
	svc := round.NewService(nil, nil, esc, set, deal)
	return esc, set, deal, svc
}

func mustWei(amount string) *big.Int {
	wei, err := chain.ParseEther(amount)
	if err != nil {
		panic(err)
	}
	return wei
}

func TestStartRejectsBadStake(t *testing.T) {
	ctx := context.Background()
	esc, _, _, svc := newFixture("0")

	if _, err := svc.Start(ctx, player, "0"); !errors.Is(err, appErr.ErrStakeRequired) {
		t.Fatalf("expected ErrStakeRequired, got %v", err)
	}
	if _, err := svc.Start(ctx, player, "-1"); !errors.Is(err, appErr.ErrStakeRequired) {
		t.Fatalf("expected ErrStakeRequired, got %v", err)
	}
	if len(esc.pushes) != 0 {
		t.Fatalf("no stake may be escrowed before validation passes")
	}
}

func TestStartRejectsStakeAboveMaxBet(t *testing.T) {
	ctx := context.Background()
	esc, set, _, svc := newFixture("0")
	set.maxBet = mustWei("1")

	if _, err := svc.Start(ctx, player, "2"); !errors.Is(err, appErr.ErrStakeExceedsMax) {
		t.Fatalf("expected ErrStakeExceedsMax, got %v", err)
	}
	if len(esc.pushes) != 0 {
		t.Fatalf("oversized stake must be rejected before escrow")
	}
}

func TestStartRejectsInvalidAddress(t *testing.T) {
	ctx := context.Background()
	_, _, _, svc := newFixture("0")

	if _, err := svc.Start(ctx, "not-an-address", "1"); !errors.Is(err, appErr.ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress, got %v", err)
	}
}

// An opening blackjack never waits for player input: the round stands and
// settles as one continuation of Start.
func TestOpeningBlackjackAutoStands(t *testing.T) {
	ctx := context.Background()
	esc, set, deal, svc := newFixture("2.5")
	deal.start = startResponse(0, 12, 4, false) // A + K vs dealer 5
	deal.stands = []*dealer.StandResponse{settledStand([]int{4, 21, 9}, false, false)}

	snap, err := svc.Start(ctx, player, "1")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if snap.Phase != round.PhaseSettled {
		t.Fatalf("expected settled, got %s", snap.Phase)
	}
	if len(deal.standHands) != 1 || deal.standHands[0] != 0 {
		t.Fatalf("expected one auto-stand on hand 0, got %v", deal.standHands)
	}
	if set.settleCalls != 1 {
		t.Fatalf("expected exactly one settle, got %d", set.settleCalls)
	}
	if len(esc.pushes) != 1 || esc.pushes[0].Cmp(eth(t, "1")) != 0 {
		t.Fatalf("expected a single 1 ETH escrow, got %v", esc.pushes)
	}
	if snap.LastResult == nil || snap.LastResult.PayoutEth != "2.5" {
		t.Fatalf("unexpected result: %+v", snap.LastResult)
	}
	if snap.LastResult.NetProfitEth != "1.5" {
		t.Fatalf("net profit should be payout minus stake, got %s", snap.LastResult.NetProfitEth)
	}
	if len(snap.AllowedActions) != 1 || snap.AllowedActions[0] != round.ActionStart {
		t.Fatalf("settled round should only offer start, got %v", snap.AllowedActions)
	}
}

// A hit that busts the hand ends player input immediately; the bust stand
// still goes to the dealing service so the settlement data is authoritative.
func TestBustHitAutoStands(t *testing.T) {
	ctx := context.Background()
	_, set, deal, svc := newFixture("0")
	deal.start = startResponse(12, 11, 4, false) // K + Q
	deal.hits = []*dealer.HitResponse{{
		NewCard:      dealer.Reveal{CardID: 9},
		NewHandCards: []int{12, 11, 9},
		Busted:       true,
		Total:        30,
	}}
	deal.stands = []*dealer.StandResponse{settledStand([]int{4, 20, 8}, false, false)}

	if _, err := svc.Start(ctx, player, "1"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	snap, err := svc.Hit(ctx, player)
	if err != nil {
		t.Fatalf("hit failed: %v", err)
	}
	if snap.Phase != round.PhaseSettled {
		t.Fatalf("expected settled after bust, got %s", snap.Phase)
	}
	if len(deal.standHands) != 1 {
		t.Fatalf("bust must trigger exactly one stand, got %v", deal.standHands)
	}
	if set.settleCalls != 1 {
		t.Fatalf("expected one settle, got %d", set.settleCalls)
	}
	if snap.LastResult == nil || snap.LastResult.Message == "" {
		t.Fatalf("bust round must still carry a result: %+v", snap.LastResult)
	}
}

func TestDoubleTakesSecondStake(t *testing.T) {
	ctx := context.Background()
	esc, set, deal, svc := newFixture("4")
	deal.start = startResponse(4, 5, 8, false) // 5 + 6 = 11
	deal.double = &dealer.DoubleResponse{
		Settlement:       &dealer.SettlementData{Doubled: true},
		DealerHand:       []int{8, 22, 30},
		PlayerFinalCards: []int{4, 5, 9},
	}

	if _, err := svc.Start(ctx, player, "1"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	snap, err := svc.Double(ctx, player)
	if err != nil {
		t.Fatalf("double failed: %v", err)
	}
	if len(esc.pushes) != 2 {
		t.Fatalf("double must escrow a second equal stake, got %d pushes", len(esc.pushes))
	}
	if esc.pushes[1].Cmp(esc.pushes[0]) != 0 {
		t.Fatalf("second stake must equal the first")
	}
	if !snap.Doubled || snap.Phase != round.PhaseSettled {
		t.Fatalf("unexpected snapshot: phase=%s doubled=%v", snap.Phase, snap.Doubled)
	}
	if set.lastData == nil || !set.lastData.Doubled {
		t.Fatalf("settlement data must carry the doubled flag")
	}
	// payout 4, staked 2
	if snap.LastResult.NetProfitEth != "2" {
		t.Fatalf("net profit must subtract both stakes, got %s", snap.LastResult.NetProfitEth)
	}
}

func TestSplitRoundPlaysBothHands(t *testing.T) {
	ctx := context.Background()
	esc, set, deal, svc := newFixture("4")
	deal.start = startResponse(7, 20, 4, true) // 8♣ + 8♦
	deal.split = &dealer.SplitResponse{Hand1: []int{7, 30}, Hand2: []int{20}}
	deal.stands = []*dealer.StandResponse{
		{HandSwitched: true, ActiveHand: 2, NewHand2Cards: []int{20, 40}},
		settledStand([]int{4, 21, 9}, false, true),
	}

	if _, err := svc.Start(ctx, player, "1"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	snap, err := svc.Split(ctx, player)
	if err != nil {
		t.Fatalf("split failed: %v", err)
	}
	if !snap.IsSplit || snap.ActiveHand != 1 {
		t.Fatalf("expected hand 1 active after split, got %+v", snap)
	}
	if len(esc.pushes) != 2 {
		t.Fatalf("split must escrow a second stake, got %d", len(esc.pushes))
	}

	// Double is off the table once split.
	if _, err := svc.Double(ctx, player); !errors.Is(err, appErr.ErrDoubleUnavailable) {
		t.Fatalf("expected ErrDoubleUnavailable after split, got %v", err)
	}

	// Stand hand 1: the dealing service switches to hand 2.
	snap, err = svc.Stand(ctx, player)
	if err != nil {
		t.Fatalf("stand hand 1 failed: %v", err)
	}
	if snap.ActiveHand != 2 || snap.Phase != round.PhaseInPlay {
		t.Fatalf("expected hand 2 in play, got phase=%s active=%d", snap.Phase, snap.ActiveHand)
	}
	if len(deal.standHands) != 1 || deal.standHands[0] != 1 {
		t.Fatalf("expected stand on hand 1, got %v", deal.standHands)
	}

	// Stand hand 2: terminal settlement.
	snap, err = svc.Stand(ctx, player)
	if err != nil {
		t.Fatalf("stand hand 2 failed: %v", err)
	}
	if snap.Phase != round.PhaseSettled {
		t.Fatalf("expected settled, got %s", snap.Phase)
	}
	if deal.standHands[1] != 2 {
		t.Fatalf("expected stand on hand 2, got %v", deal.standHands)
	}
	if set.lastData == nil || !set.lastData.Split {
		t.Fatalf("settlement data must carry the split flag")
	}
	// payout 4, staked 2 across the two hands
	if snap.LastResult.NetProfitEth != "2" {
		t.Fatalf("net profit must subtract both stakes, got %s", snap.LastResult.NetProfitEth)
	}
}

func TestSplitRejectedForUnequalValues(t *testing.T) {
	ctx := context.Background()
	esc, _, deal, svc := newFixture("0")
	deal.start = startResponse(0, 1, 4, false) // A + 2

	if _, err := svc.Start(ctx, player, "1"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := svc.Split(ctx, player); !errors.Is(err, appErr.ErrNotSplittable) {
		t.Fatalf("expected ErrNotSplittable, got %v", err)
	}
	if len(esc.pushes) != 1 {
		t.Fatalf("rejected split must not escrow a second stake")
	}
}

// Funds escrowed but the dealing service never opened a round: the session
// fails terminally, reports the orphaned stake and does not retry the push.
func TestStartGameFailureOrphansStake(t *testing.T) {
	ctx := context.Background()
	esc, set, deal, svc := newFixture("0")
	deal.startErr = errors.New("dealer down")

	snap, err := svc.Start(ctx, player, "1")
	if !errors.Is(err, appErr.ErrOrphanedStake) {
		t.Fatalf("expected ErrOrphanedStake, got %v", err)
	}
	if snap.Phase != round.PhaseFailed {
		t.Fatalf("expected failed phase, got %s", snap.Phase)
	}
	if len(esc.pushes) != 1 {
		t.Fatalf("stake must be pushed exactly once, got %d", len(esc.pushes))
	}
	if set.startCalls != 0 || set.settleCalls != 0 {
		t.Fatalf("chain round must not be touched after dealing failure")
	}

	// A fresh round can still start from the failed state.
	deal.startErr = nil
	deal.start = startResponse(3, 8, 4, false)
	snap, err = svc.Start(ctx, player, "1")
	if err != nil {
		t.Fatalf("restart after failure: %v", err)
	}
	if snap.Phase != round.PhaseInPlay {
		t.Fatalf("expected in_play, got %s", snap.Phase)
	}
}

func TestSettleFailureOrphansStake(t *testing.T) {
	ctx := context.Background()
	_, set, deal, svc := newFixture("0")
	set.settleErr = errors.New("execution reverted")
	deal.start = startResponse(12, 11, 4, false)
	deal.stands = []*dealer.StandResponse{settledStand([]int{4, 20, 8}, false, false)}

	if _, err := svc.Start(ctx, player, "1"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	snap, err := svc.Stand(ctx, player)
	if !errors.Is(err, appErr.ErrOrphanedStake) {
		t.Fatalf("expected ErrOrphanedStake, got %v", err)
	}
	if snap.Phase != round.PhaseFailed {
		t.Fatalf("expected failed, got %s", snap.Phase)
	}
	if set.settleCalls != 1 {
		t.Fatalf("settle must be attempted exactly once, got %d", set.settleCalls)
	}
}

func TestActionsRequireActiveRound(t *testing.T) {
	ctx := context.Background()
	_, _, _, svc := newFixture("0")

	if _, err := svc.Hit(ctx, player); !errors.Is(err, appErr.ErrNoActiveRound) {
		t.Fatalf("expected ErrNoActiveRound, got %v", err)
	}
	if _, err := svc.Stand(ctx, player); !errors.Is(err, appErr.ErrNoActiveRound) {
		t.Fatalf("expected ErrNoActiveRound, got %v", err)
	}
}

func TestStartRejectedWhileRoundActive(t *testing.T) {
	ctx := context.Background()
	_, _, deal, svc := newFixture("0")
	deal.start = startResponse(3, 8, 4, false)

	if _, err := svc.Start(ctx, player, "1"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := svc.Start(ctx, player, "1"); !errors.Is(err, appErr.ErrRoundActive) {
		t.Fatalf("expected ErrRoundActive, got %v", err)
	}
}

func TestLosingDealerRoundIsTerminal(t *testing.T) {
	ctx := context.Background()
	_, _, deal, svc := newFixture("0")
	deal.start = startResponse(3, 8, 4, false)

	if _, err := svc.Start(ctx, player, "1"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	deal.hitErr = appErr.ErrNoActiveRound
	snap, err := svc.Hit(ctx, player)
	if !errors.Is(err, appErr.ErrOrphanedStake) {
		t.Fatalf("expected ErrOrphanedStake when the dealer lost the round, got %v", err)
	}
	if snap.Phase != round.PhaseFailed {
		t.Fatalf("expected failed, got %s", snap.Phase)
	}
}

func TestTransientHitFailureKeepsTurn(t *testing.T) {
	ctx := context.Background()
	_, _, deal, svc := newFixture("0")
	deal.start = startResponse(3, 8, 4, false)

	if _, err := svc.Start(ctx, player, "1"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	deal.hitErr = errors.New("timeout")
	snap, err := svc.Hit(ctx, player)
	if err == nil || errors.Is(err, appErr.ErrOrphanedStake) {
		t.Fatalf("transient failure must surface without failing the round, got %v", err)
	}
	if snap.Phase != round.PhaseInPlay {
		t.Fatalf("round must stay in play after a transient failure, got %s", snap.Phase)
	}

	deal.hitErr = nil
	deal.hits = []*dealer.HitResponse{{
		NewCard:      dealer.Reveal{CardID: 2},
		NewHandCards: []int{3, 8, 2},
		Total:        16,
	}}
	if _, err := svc.Hit(ctx, player); err != nil {
		t.Fatalf("retry after transient failure: %v", err)
	}
}

func TestStateAndProofRetrieval(t *testing.T) {
	ctx := context.Background()
	_, _, deal, svc := newFixture("2")
	deal.start = startResponse(0, 12, 4, false)
	deal.stands = []*dealer.StandResponse{settledStand([]int{4, 21, 9}, false, false)}

	if _, err := svc.LastProof(ctx, player); !errors.Is(err, appErr.ErrProofUnavailable) {
		t.Fatalf("expected ErrProofUnavailable before any round, got %v", err)
	}

	if _, err := svc.Start(ctx, player, "1"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	snap, err := svc.State(ctx, player)
	if err != nil {
		t.Fatalf("state failed: %v", err)
	}
	if snap.Phase != round.PhaseSettled {
		t.Fatalf("expected settled, got %s", snap.Phase)
	}
	// Reveal endpoint was down for this fixture, so no proof was captured
	// and the verification flag stays unset.
	if snap.LastResult == nil || snap.LastResult.ProofVerified != nil {
		t.Fatalf("proof verification must be unset when the reveal is unavailable")
	}
	if _, err := svc.LastProof(ctx, player); !errors.Is(err, appErr.ErrProofUnavailable) {
		t.Fatalf("expected ErrProofUnavailable, got %v", err)
	}
}

func TestMismatchedRevealFlagsProof(t *testing.T) {
	ctx := context.Background()
	_, _, deal, svc := newFixture("2")
	deal.start = startResponse(0, 12, 4, false)
	deal.stands = []*dealer.StandResponse{settledStand([]int{4, 21, 9}, false, false)}
	deal.proofErr = nil
	deal.proof = &dealer.FairnessProof{
		DeckRoot: "0x2200000000000000000000000000000000000000000000000000000000000000",
	}

	snap, err := svc.Start(ctx, player, "1")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if snap.Phase != round.PhaseSettled {
		t.Fatalf("proof mismatch must not unsettle the round, got %s", snap.Phase)
	}
	if snap.LastResult.ProofVerified == nil || *snap.LastResult.ProofVerified {
		t.Fatalf("mismatching reveal must be flagged unverified")
	}
	if _, err := svc.LastProof(ctx, player); err != nil {
		t.Fatalf("captured proof must still be retrievable: %v", err)
	}
}

func TestResetOnAccountChange(t *testing.T) {
	ctx := context.Background()
	_, _, deal, svc := newFixture("0")
	deal.start = startResponse(3, 8, 4, false)

	if _, err := svc.Start(ctx, player, "1"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := svc.ResetOnAccountChange(player); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	snap, err := svc.State(ctx, player)
	if err != nil {
		t.Fatalf("state failed: %v", err)
	}
	if snap.Phase != round.PhaseNone {
		t.Fatalf("expected a clean session after account change, got %s", snap.Phase)
	}
}
