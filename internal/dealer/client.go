// Package dealer wraps the HTTP API of the off-chain dealing service. The
// service tracks "current round for this player" by address, so every call
// is keyed by the player address only. Responses are authoritative: callers
// must adopt the returned card ids as ground truth and never infer partial
// success from an error.
package dealer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	appErr "bj-service/pkg/errors"
	"bj-service/pkg/logger"

	"go.uber.org/zap"
)

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Reveal is one committed card opened by the dealing service: position in
// the deck, card id, per-card salt and merkle proof against the deck root.
type Reveal struct {
	Pos    int      `json:"pos"`
	CardID int      `json:"cardId"`
	Salt   string   `json:"salt"`
	Proof  []string `json:"proof"`
}

// SettlementData is the full reveal bundle the settlement contract expects.
// It is produced only by the dealing service; the client never synthesizes
// proof material.
type SettlementData struct {
	HoleCardID  int      `json:"holeCardId"`
	HoleSalt    string   `json:"holeSalt"`
	HoleProof   []string `json:"holeProof"`
	Initial3    []Reveal `json:"initial3"`
	PlayerExtra []Reveal `json:"playerExtra"`
	DealerDraws []Reveal `json:"dealerDraws"`
	Doubled     bool     `json:"doubled"`
	Split       bool     `json:"split"`
	Hand1Extra  []Reveal `json:"hand1Extra"`
	Hand2Extra  []Reveal `json:"hand2Extra"`
}

// FairnessProof is the post-round reveal of the entire deck, fetched once
// after settlement for auditing.
type FairnessProof struct {
	DeckRoot   string   `json:"deckRoot"`
	HolePos    int      `json:"holePos"`
	HoleLeaf   string   `json:"holeLeaf"`
	HoleCardID int      `json:"holeCardId"`
	HoleSalt   string   `json:"holeSalt"`
	HoleProof  []string `json:"holeProof"`
	Reveals    []Reveal `json:"reveals"`
}

type InitialHand struct {
	PlayerCard1  int  `json:"playerCard1"`
	PlayerCard2  int  `json:"playerCard2"`
	DealerUpCard int  `json:"dealerUpCard"`
	IsSplittable bool `json:"isSplittable"`
}

type StartGameResponse struct {
	DeckRoot    string       `json:"deckRoot"`
	HolePos     int          `json:"holePos"`
	HoleLeaf    string       `json:"holeLeaf"`
	InitialHand *InitialHand `json:"initialHand"`
}

type HitResponse struct {
	NewCard      Reveal `json:"newCard"`
	Hand         int    `json:"hand"`
	NewHandCards []int  `json:"newHandCards"`
	Busted       bool   `json:"busted"`
	Total        int    `json:"total"`
}

// StandResponse has two mutually exclusive shapes: a hand switch while a
// split round moves from hand 1 to hand 2, or the terminal settlement
// bundle when the round is over.
type StandResponse struct {
	HandSwitched  bool            `json:"handSwitched"`
	ActiveHand    int             `json:"activeHand"`
	NewHand2Cards []int           `json:"newHand2Cards"`
	Settlement    *SettlementData `json:"settlementData"`
	DealerHand    []int           `json:"dealerFullHand"`
}

type DoubleResponse struct {
	Settlement       *SettlementData `json:"settlementData"`
	DealerHand       []int           `json:"dealerFullHand"`
	PlayerFinalCards []int           `json:"playerFinalCards"`
}

type SplitResponse struct {
	Hand1 []int `json:"hand1"`
	Hand2 []int `json:"hand2"`
}

func (c *Client) StartGame(ctx context.Context, player string) (*StartGameResponse, error) {
	var resp StartGameResponse
	if err := c.post(ctx, "/api/start-game", map[string]any{"playerAddress": player}, &resp); err != nil {
		return nil, err
	}
	if resp.DeckRoot == "" || resp.HoleLeaf == "" || resp.InitialHand == nil {
		return nil, fmt.Errorf("%w: start-game response missing deck commitment", appErr.ErrDealerBadPayload)
	}
	return &resp, nil
}

func (c *Client) Hit(ctx context.Context, player string, handIndex int) (*HitResponse, error) {
	var resp HitResponse
	body := map[string]any{"playerAddress": player, "hand": handIndex}
	if err := c.post(ctx, "/api/hit", body, &resp); err != nil {
		return nil, err
	}
	if len(resp.NewHandCards) == 0 {
		return nil, fmt.Errorf("%w: hit response carries no hand", appErr.ErrDealerBadPayload)
	}
	return &resp, nil
}

func (c *Client) Stand(ctx context.Context, player string, handIndex int) (*StandResponse, error) {
	var resp StandResponse
	body := map[string]any{"playerAddress": player, "hand": handIndex}
	if err := c.post(ctx, "/api/stand", body, &resp); err != nil {
		return nil, err
	}
	if resp.HandSwitched {
		if len(resp.NewHand2Cards) < 2 {
			return nil, fmt.Errorf("%w: hand switch without hand 2 cards", appErr.ErrDealerBadPayload)
		}
	} else if resp.Settlement == nil || len(resp.DealerHand) < 2 {
		return nil, fmt.Errorf("%w: stand response missing settlement data", appErr.ErrDealerBadPayload)
	}
	return &resp, nil
}

func (c *Client) Double(ctx context.Context, player string) (*DoubleResponse, error) {
	var resp DoubleResponse
	if err := c.post(ctx, "/api/double", map[string]any{"playerAddress": player}, &resp); err != nil {
		return nil, err
	}
	if resp.Settlement == nil || len(resp.DealerHand) < 2 || len(resp.PlayerFinalCards) < 3 {
		return nil, fmt.Errorf("%w: double response missing settlement data", appErr.ErrDealerBadPayload)
	}
	return &resp, nil
}

func (c *Client) Split(ctx context.Context, player string) (*SplitResponse, error) {
	var resp SplitResponse
	if err := c.post(ctx, "/api/split", map[string]any{"playerAddress": player}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Hand1) < 2 || len(resp.Hand2) < 1 {
		return nil, fmt.Errorf("%w: split response hands incomplete", appErr.ErrDealerBadPayload)
	}
	return &resp, nil
}

func (c *Client) FullDeckReveal(ctx context.Context, player string) (*FairnessProof, error) {
	var resp FairnessProof
	if err := c.post(ctx, "/api/get-full-deck-reveal", map[string]any{"playerAddress": player}, &resp); err != nil {
		return nil, err
	}
	if resp.DeckRoot == "" {
		return nil, fmt.Errorf("%w: reveal response missing deck root", appErr.ErrDealerBadPayload)
	}
	return &resp, nil
}

type errorBody struct {
	Error string `json:"error"`
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", appErr.ErrDealer, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", appErr.ErrDealer, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		msg := resp.Status
		if json.Unmarshal(data, &eb) == nil && eb.Error != "" {
			msg = eb.Error
		}
		logger.Log.Warn("dealer call failed",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("error", msg),
		)
		// "No active game" is a distinct class: the server-side round
		// context is gone and only a fresh start can recover.
		if strings.Contains(msg, "No active game") {
			return fmt.Errorf("%w: %s", appErr.ErrNoActiveRound, msg)
		}
		return fmt.Errorf("%w: %s", appErr.ErrDealer, msg)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", appErr.ErrDealerBadPayload, err)
	}
	return nil
}
