// Package fairness audits the dealing service's commit-reveal scheme. The
// deck commitment is a keccak merkle root over 52 leaves of
// keccak(cardId byte ‖ 32-byte salt); an odd node at any level is paired
// with itself. The verifier only checks proofs it is given, it never
// constructs commitment material.
package fairness

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"bj-service/internal/dealer"
	appErr "bj-service/pkg/errors"
)

// VerifyReveal checks a single revealed card against the deck root.
func VerifyReveal(rootHex string, pos, cardID int, saltHex string, proofHex []string) error {
	root, err := hexutil.Decode(rootHex)
	if err != nil || len(root) != 32 {
		return fmt.Errorf("%w: bad deck root %q", appErr.ErrProofMismatch, rootHex)
	}
	salt, err := hexutil.Decode(saltHex)
	if err != nil || len(salt) != 32 {
		return fmt.Errorf("%w: bad salt for pos %d", appErr.ErrProofMismatch, pos)
	}
	if cardID < 0 || cardID > 51 {
		return fmt.Errorf("%w: card id %d out of range", appErr.ErrProofMismatch, cardID)
	}

	node := crypto.Keccak256(append([]byte{byte(cardID)}, salt...))
	idx := pos
	for _, sibHex := range proofHex {
		sib, err := hexutil.Decode(sibHex)
		if err != nil || len(sib) != 32 {
			return fmt.Errorf("%w: bad proof node for pos %d", appErr.ErrProofMismatch, pos)
		}
		if idx%2 == 1 {
			node = crypto.Keccak256(sib, node)
		} else {
			node = crypto.Keccak256(node, sib)
		}
		idx /= 2
	}

	for i := range node {
		if node[i] != root[i] {
			return fmt.Errorf("%w: pos %d card %d", appErr.ErrProofMismatch, pos, cardID)
		}
	}
	return nil
}

// VerifyProof audits a full post-round deck reveal: the hole card and every
// other revealed position must open the committed root. The expected root is
// the commitment captured at round start, not the one the reveal claims.
func VerifyProof(expectedRoot string, proof *dealer.FairnessProof) error {
	if proof == nil {
		return appErr.ErrProofUnavailable
	}
	if expectedRoot != "" && proof.DeckRoot != expectedRoot {
		return fmt.Errorf("%w: revealed root differs from committed root", appErr.ErrProofMismatch)
	}

	if err := VerifyReveal(expectedRoot, proof.HolePos, proof.HoleCardID, proof.HoleSalt, proof.HoleProof); err != nil {
		return fmt.Errorf("hole card: %w", err)
	}
	for _, r := range proof.Reveals {
		if err := VerifyReveal(expectedRoot, r.Pos, r.CardID, r.Salt, r.Proof); err != nil {
			return err
		}
	}
	return nil
}
