// Package knol fingerprints card content so a re-imported card keeps its schedule.
package knol

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/conorfennell/knolstudy/internal/domain"
)

// Normalize lowercases each field, unifies line endings and trims surrounding space,
// then joins the fields with newlines so adjacent fields cannot run together.
func Normalize(c domain.Card) string {
	parts := [...]string{c.Question, c.Answer, c.Context}
	for i, p := range parts {
		p = strings.ReplaceAll(p, "\r\n", "\n")
		parts[i] = strings.TrimSpace(strings.ToLower(p))
	}
	return strings.Join(parts[:], "\n")
}

// Hash returns the hex SHA-256 of the normalized card.
func Hash(c domain.Card) string {
	sum := sha256.Sum256([]byte(Normalize(c)))
	return hex.EncodeToString(sum[:])
}

// Stamp sets Hash on every card and drops later cards whose fingerprint was already seen.
func Stamp(cards []domain.Card) []domain.Card {
	seen := make(map[string]bool, len(cards))
	out := cards[:0]
	for _, c := range cards {
		c.Hash = Hash(c)
		if seen[c.Hash] {
			continue
		}
		seen[c.Hash] = true
		out = append(out, c)
	}
	return out
}
