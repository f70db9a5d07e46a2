// Package blackjack holds the pure hand arithmetic shared by the round
// controller and the UI-facing handlers. Card ids follow the wire contract
// with the dealing service: rank = id % 13 (0 = Ace ... 12 = King) and
// suit = id / 13. Id 99 is the concealed hole-card placeholder.
package blackjack

import "fmt"

// HoleCard is the placeholder id for a concealed card. It is never a valid
// rank and is ignored by every total computation.
const HoleCard = 99

var (
	rankNames = []string{"A", "2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K"}
	suitNames = []string{"♣", "♦", "♥", "♠"}
)

// CardValue returns the blackjack value of a card id. Aces count 11 here;
// Total does the soft-to-hard adjustment.
func CardValue(cardID int) int {
	rank := cardID % 13
	switch {
	case rank == 0:
		return 11
	case rank <= 9:
		return rank + 1
	default:
		return 10
	}
}

// CardName renders a card id as rank plus suit symbol, e.g. "A♣" or "10♥".
func CardName(cardID int) string {
	if cardID < 0 || cardID > 51 {
		return "??"
	}
	return fmt.Sprintf("%s%s", rankNames[cardID%13], suitNames[cardID/13])
}

// Total computes the hand total, counting each Ace as 11 and then demoting
// aces one at a time while the hand is bust. Placeholder and out-of-range
// ids are ignored.
func Total(cardIDs []int) int {
	total := 0
	aces := 0
	for _, id := range cardIDs {
		if id < 0 || id > 51 {
			continue
		}
		v := CardValue(id)
		total += v
		if v == 11 {
			aces++
		}
	}
	for total > 21 && aces > 0 {
		total -= 10
		aces--
	}
	return total
}

// IsBlackjack reports a natural: exactly two cards totalling 21.
func IsBlackjack(cardIDs []int) bool {
	return len(cardIDs) == 2 && Total(cardIDs) == 21
}

// IsSplittable reports whether a fresh two-card hand may be split. The
// dealing service treats ten-value cards (10/J/Q/K) as equal for splitting,
// so the client mirrors that rather than comparing raw ranks.
func IsSplittable(cardIDs []int) bool {
	return len(cardIDs) == 2 && CardValue(cardIDs[0]) == CardValue(cardIDs[1])
}

// Outcome is the comparison result of one player hand against the dealer.
type Outcome string

const (
	OutcomeWin        Outcome = "Win"
	OutcomeLose       Outcome = "Lose"
	OutcomePush       Outcome = "Push"
	OutcomePlayerBust Outcome = "Lose (Player bust)"
	OutcomeDealerBust Outcome = "Win (Dealer bust)"
)

// Compare resolves a player total against a dealer total. A player bust
// always loses, even when the dealer also busts.
func Compare(playerTotal, dealerTotal int) Outcome {
	switch {
	case playerTotal > 21:
		return OutcomePlayerBust
	case dealerTotal > 21:
		return OutcomeDealerBust
	case playerTotal > dealerTotal:
		return OutcomeWin
	case playerTotal < dealerTotal:
		return OutcomeLose
	default:
		return OutcomePush
	}
}
