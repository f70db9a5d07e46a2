package round

import "github.com/google/uuid"

// Card pairs a dealing-service card id with a local identity. The identity
// is a pure reconciliation key: it survives updates that leave the card id
// at the same position unchanged and is freshly minted otherwise, so
// downstream consumers can track card positions without duplicate
// bookkeeping.
type Card struct {
	ID     string `json:"id"`
	CardID int    `json:"cardId"`
}

// Reconcile merges an authoritative card-id sequence into a previously
// tracked hand. The output always has the authoritative length; positions
// whose card id is unchanged keep their identity, everything else gets a
// new one. The card ids themselves are adopted verbatim: this function is
// never a source of truth for values.
func Reconcile(prev []Card, cardIDs []int) []Card {
	out := make([]Card, len(cardIDs))
	for i, id := range cardIDs {
		if i < len(prev) && prev[i].CardID == id {
			out[i] = prev[i]
			continue
		}
		out[i] = Card{ID: uuid.NewString(), CardID: id}
	}
	return out
}

func cardIDs(cards []Card) []int {
	ids := make([]int, 0, len(cards))
	for _, c := range cards {
		ids = append(ids, c.CardID)
	}
	return ids
}
