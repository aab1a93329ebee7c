package sync

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/conorfennell/knolstudy/internal/domain"
	"github.com/conorfennell/knolstudy/internal/storage"
)

func writeNotes(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
}

func TestRunReconcilesLocalSource(t *testing.T) {
	ctx := context.Background()
	db, err := storage.Open(filepath.Join(t.TempDir(), "sync.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	notes := t.TempDir()
	writeNotes(t, notes, "sm2.md", "Q: Lowest ease?\nA: 1.3\n---\nQ: First good interval?\nA: 1 day\n")
	writeNotes(t, notes, "ignored.txt", "Q: not a markdown file\nA: skipped\n")
	if err := os.Mkdir(filepath.Join(notes, "more"), 0o755); err != nil {
		t.Fatalf("Failed to create subdirectory: %v", err)
	}
	writeNotes(t, filepath.Join(notes, "more"), "dup.MD", "Q: lowest ease?\nA: 1.3\n")

	now := time.Date(2026, 3, 30, 9, 0, 0, 0, time.UTC)
	syncer := New(db, Options{ReposDir: t.TempDir(), Now: func() time.Time { return now }})

	src, err := syncer.AddSource(ctx, "alice", notes)
	if err != nil {
		t.Fatalf("AddSource failed: %v", err)
	}
	again, err := syncer.AddSource(ctx, "alice", notes)
	if err != nil || again.ID != src.ID {
		t.Fatalf("Expected re-adding a path to return source %d, but got %+v (err %v)", src.ID, again, err)
	}

	results, err := syncer.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(results) != 1 || results[0].Err != nil {
		t.Fatalf("Expected one successful result, but got %+v", results)
	}
	if results[0].Inserted != 2 || results[0].Parsed != 2 {
		t.Errorf("Expected 2 parsed and inserted cards, but got %d and %d", results[0].Parsed, results[0].Inserted)
	}

	cards, err := db.GetCardsByDeck(ctx, src.DeckID)
	if err != nil {
		t.Fatalf("GetCardsByDeck failed: %v", err)
	}
	var kept domain.Card
	for _, c := range cards {
		if c.LearningStatus != domain.StatusNew || c.UserID != "alice" || !c.NextReviewDate.Equal(domain.Day(now)) {
			t.Errorf("Expected a fresh card for alice due today, but got %+v", c)
		}
		if c.Answer == "1.3" {
			kept = c
		}
	}
	kept.Interval, kept.RepetitionCount, kept.LearningStatus = 6, 2, domain.StatusLearning
	if err := db.SaveCard(ctx, &kept); err != nil {
		t.Fatalf("SaveCard failed: %v", err)
	}

	writeNotes(t, notes, "sm2.md", "Q: Lowest ease?\nA: 1.3\n---\nQ: Second good interval?\nA: 6 days\n")
	results, err = syncer.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if results[0].Inserted != 1 || results[0].Deleted != 1 {
		t.Errorf("Expected 1 inserted and 1 deleted card, but got %d and %d", results[0].Inserted, results[0].Deleted)
	}

	stored, err := db.GetCard(ctx, kept.ID)
	if err != nil {
		t.Fatalf("Expected the unchanged card to survive, but got %v", err)
	}
	if stored.Interval != 6 || stored.LearningStatus != domain.StatusLearning {
		t.Errorf("Expected the unchanged card to keep its schedule, but got %+v", stored)
	}

	sources, err := syncer.Sources(ctx, "alice")
	if err != nil || len(sources) != 1 || sources[0].LastScanned == nil {
		t.Errorf("Expected one scanned source, but got %+v (err %v)", sources, err)
	}
}

func TestAddSourceValidation(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "sync.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	syncer := New(db, Options{ReposDir: t.TempDir()})
	ctx := context.Background()

	if _, err := syncer.AddSource(ctx, "", t.TempDir()); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized, but got %v", err)
	}
	if _, err := syncer.AddSource(ctx, "alice", filepath.Join(t.TempDir(), "missing")); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for a missing directory, but got %v", err)
	}

	src, err := syncer.AddSource(ctx, "alice", "https://github.com/me/cards.git")
	if err != nil {
		t.Fatalf("AddSource failed: %v", err)
	}
	if src.Type != domain.SourceGit {
		t.Errorf("Expected a git source, but got %s", src.Type)
	}
	if err := syncer.RemoveSource(ctx, "bob", src.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound removing someone else's source, but got %v", err)
	}
	if err := syncer.RemoveSource(ctx, "alice", src.ID); err != nil {
		t.Fatalf("RemoveSource failed: %v", err)
	}
	if sources, _ := syncer.Sources(ctx, "alice"); len(sources) != 0 {
		t.Errorf("Expected no sources after removal, but got %d", len(sources))
	}
}

func TestRunUserScopesToCaller(t *testing.T) {
	ctx := context.Background()
	db, err := storage.Open(filepath.Join(t.TempDir(), "sync.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	aliceNotes, bobNotes := t.TempDir(), t.TempDir()
	writeNotes(t, aliceNotes, "a.md", "Q: Starting ease?\nA: 2.5\n")
	writeNotes(t, bobNotes, "b.md", "Q: Graduation threshold?\nA: 3\n")

	syncer := New(db, Options{ReposDir: t.TempDir()})
	alice, err := syncer.AddSource(ctx, "alice", aliceNotes)
	if err != nil {
		t.Fatalf("AddSource failed: %v", err)
	}
	bob, err := syncer.AddSource(ctx, "bob", bobNotes)
	if err != nil {
		t.Fatalf("AddSource failed: %v", err)
	}

	if _, err := syncer.RunUser(ctx, ""); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized without a user, but got %v", err)
	}
	results, err := syncer.RunUser(ctx, "alice")
	if err != nil {
		t.Fatalf("RunUser failed: %v", err)
	}
	if len(results) != 1 || results[0].Source.ID != alice.ID || results[0].Inserted != 1 {
		t.Fatalf("Expected one result for alice's source, but got %+v", results)
	}

	bobs, err := syncer.Sources(ctx, "bob")
	if err != nil {
		t.Fatalf("Sources failed: %v", err)
	}
	if len(bobs) != 1 || bobs[0].ID != bob.ID {
		t.Fatalf("Expected bob to see only his source, but got %+v", bobs)
	}
	if bobs[0].LastScanned != nil {
		t.Errorf("Expected bob's source to stay unscanned, but it was scanned at %v", bobs[0].LastScanned)
	}
	if cards, _ := db.GetCardsByDeck(ctx, bob.DeckID); len(cards) != 0 {
		t.Errorf("Expected no cards imported for bob, but got %d", len(cards))
	}
}
