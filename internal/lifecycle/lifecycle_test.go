package lifecycle

import (
	"testing"

	"github.com/conorfennell/knolstudy/internal/domain"
)

func TestAdvanceGraduation(t *testing.T) {
	m := Machine{}
	status, count := domain.StatusNew, 0

	for i := 1; i <= 3; i++ {
		tr := m.Advance(status, count, domain.Good, true)
		status, count = tr.Status, tr.CorrectCount
		if count != i {
			t.Fatalf("review %d: expected correct count %d, but got %d", i, i, count)
		}
		if i < 3 && (status != domain.StatusLearning || tr.Graduated) {
			t.Fatalf("review %d: expected learning without graduation, got %s graduated=%v", i, status, tr.Graduated)
		}
		if i == 3 && (status != domain.StatusReview || !tr.Graduated) {
			t.Fatalf("review 3: expected graduation to review, got %s graduated=%v", status, tr.Graduated)
		}
	}

	tr := m.Advance(status, count, domain.Again, false)
	if tr.Status != domain.StatusReview || tr.Graduated || tr.CorrectCount != 3 {
		t.Errorf("Expected graduated card to be left alone, got %+v", tr)
	}
}

func TestAdvanceLapseResets(t *testing.T) {
	m := Machine{Threshold: 3}

	tr := m.Advance(domain.StatusNew, 0, domain.Good, true)
	tr = m.Advance(tr.Status, tr.CorrectCount, domain.Easy, true)
	if tr.CorrectCount != 2 {
		t.Fatalf("Expected 2 correct answers, got %d", tr.CorrectCount)
	}

	tr = m.Advance(tr.Status, tr.CorrectCount, domain.Again, true)
	if tr.CorrectCount != 0 {
		t.Errorf("Expected again to reset correct count even when marked correct, got %d", tr.CorrectCount)
	}
	if tr.Status != domain.StatusLearning {
		t.Errorf("Expected card to stay in learning, got %s", tr.Status)
	}
}

func TestAdvanceFirstReviewLeavesNew(t *testing.T) {
	m := Machine{}
	testCases := []struct {
		name    string
		rating  domain.Rating
		correct bool
		count   int
	}{
		{"again", domain.Again, false, 0},
		{"hard unmarked", domain.Hard, false, 0},
		{"good marked", domain.Good, true, 1},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tr := m.Advance(domain.StatusNew, 0, tc.rating, tc.correct)
			if tr.Status != domain.StatusLearning {
				t.Errorf("Expected learning, got %s", tr.Status)
			}
			if tr.CorrectCount != tc.count {
				t.Errorf("Expected correct count %d, got %d", tc.count, tr.CorrectCount)
			}
		})
	}
}

func TestAdvanceCustomThreshold(t *testing.T) {
	tr := Machine{Threshold: 1}.Advance(domain.StatusNew, 0, domain.Good, true)
	if !tr.Graduated || tr.Status != domain.StatusReview {
		t.Errorf("Expected immediate graduation with threshold 1, got %+v", tr)
	}
}
