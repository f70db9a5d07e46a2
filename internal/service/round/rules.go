package round

// Player-facing action names. These are what the rule table emits and what
// the HTTP layer maps its routes onto.
const (
	ActionStart  = "start"
	ActionHit    = "hit"
	ActionStand  = "stand"
	ActionDouble = "double"
	ActionSplit  = "split"
)

// allowedActionsLocked is the single source of truth for what the player
// may do right now. Every action handler validates against this before
// touching money, so the rules live in one place instead of scattered
// boolean checks.
func (s *Session) allowedActionsLocked() []string {
	switch s.phase {
	case PhaseNone, PhaseSettled, PhaseFailed:
		return []string{ActionStart}
	case PhaseInPlay:
		actions := []string{ActionHit, ActionStand}
		// Double only on the untouched opening hand, never after a split.
		if s.canDouble && !s.isSplit && !s.doubled {
			actions = append(actions, ActionDouble)
		}
		// Split only while the opening two-card offer is still open.
		if s.splitOffered && !s.isSplit && len(s.playerCards) == 2 {
			actions = append(actions, ActionSplit)
		}
		return actions
	default:
		// starting/resolving/settling are transitional, no player input.
		return nil
	}
}

func (s *Session) actionAllowedLocked(action string) bool {
	for _, a := range s.allowedActionsLocked() {
		if a == action {
			return true
		}
	}
	return false
}
