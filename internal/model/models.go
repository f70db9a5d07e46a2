package model

import (
	"time"

	"gorm.io/datatypes"
)

// RoundRecord is the per-round audit row. One row per started round; the
// row is updated in place as the round advances and frozen at settlement.
// Monetary columns hold wei as decimal strings since payouts exceed int64.
type RoundRecord struct {
	ID            int64  `gorm:"primaryKey;autoIncrement"`
	PlayerAddress string `gorm:"index;size:64;not null"`
	RoundID       string `gorm:"size:80"` // on-chain round id, decimal
	StakeWei      string `gorm:"size:80"`
	DeckRoot      string `gorm:"size:66"`
	HolePos       int
	HoleLeaf      string `gorm:"size:66"`
	Phase         string `gorm:"size:16"`
	Doubled       bool
	Split         bool
	AceSplit      bool
	Outcome       string `gorm:"size:255"`
	PayoutWei     string `gorm:"size:80"`
	NetProfitWei  string `gorm:"size:80"`
	ProofJSON     datatypes.JSON `gorm:"type:jsonb"`
	ProofVerified *bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
	SettledAt     *time.Time
}

// OrphanedStake records funds escrowed into the game pool for a round that
// could not complete. Rows are written by the round controller and resolved
// manually by operations.
type OrphanedStake struct {
	ID            int64  `gorm:"primaryKey;autoIncrement"`
	PlayerAddress string `gorm:"index;size:64;not null"`
	AmountWei     string `gorm:"size:80"`
	RoundID       string `gorm:"size:80"`
	Stage         string `gorm:"size:32"` // start_game/start_round/double/split/settle
	Reason        string `gorm:"size:512"`
	Resolved      bool   `gorm:"default:false"`
	CreatedAt     time.Time
	ResolvedAt    *time.Time
}
