package knol

import (
	"testing"

	"github.com/conorfennell/knolstudy/internal/domain"
)

func TestNormalize(t *testing.T) {
	card := domain.Card{
		Question: "  What resets on AGAIN? \r\n",
		Answer:   "Repetitions.",
		Context:  "SM-2",
	}
	expected := "what resets on again?\nrepetitions.\nsm-2"
	if got := Normalize(card); got != expected {
		t.Errorf("Expected normalized string to be '%s', but got '%s'", expected, got)
	}
}

func TestHash(t *testing.T) {
	t.Run("generates correct hash", func(t *testing.T) {
		// Hash for "q\na\nc"
		expected := "eb2456c1ee4f36305069dd0f63a30e92d5443129f5e8fd9a5ec490fbc4d4d8a2"
		if got := Hash(domain.Card{Question: "Q", Answer: "A", Context: "C"}); got != expected {
			t.Errorf("Expected hash '%s', but got '%s'", expected, got)
		}
	})

	t.Run("normalization produces same hash", func(t *testing.T) {
		a := domain.Card{Question: "  what is an interval? ", Answer: "Days until the next review."}
		b := domain.Card{Question: "What Is An Interval?", Answer: "Days until the next review."}
		if Hash(a) != Hash(b) {
			t.Error("Expected hashes to be the same after normalization, but they were different.")
		}
	})

	t.Run("fields do not run together", func(t *testing.T) {
		a := domain.Card{Question: "ab", Answer: "c"}
		b := domain.Card{Question: "a", Answer: "bc"}
		if Hash(a) == Hash(b) {
			t.Error("Expected cards with shifted fields to hash differently")
		}
	})
}

func TestStamp(t *testing.T) {
	cards := Stamp([]domain.Card{
		{Question: "One"},
		{Question: "Two"},
		{Question: " one "},
	})
	if len(cards) != 2 {
		t.Fatalf("Expected duplicates to be dropped, but got %d cards", len(cards))
	}
	for _, c := range cards {
		if c.Hash != Hash(c) {
			t.Errorf("Expected card %q to carry its hash", c.Question)
		}
	}
}
