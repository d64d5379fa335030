package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/yeet-socket/yeet/internal/db"
	"github.com/yeet-socket/yeet/internal/model"
)

func newTestRepo(t *testing.T) *SessionRepository {
	t.Helper()
	testDB, err := db.NewTestDB()
	if err != nil {
		t.Fatalf("failed to init db: %v", err)
	}
	t.Cleanup(func() { testDB.Close() })
	return NewSessionRepository(testDB)
}

func newOpenSession(remoteAddr string, openedAt time.Time) *model.Session {
	return &model.Session{
		ID:         uuid.NewString(),
		RemoteAddr: remoteAddr,
		Status:     model.SessionStatusOpen,
		OpenedAt:   openedAt,
		UpdatedAt:  openedAt,
	}
}

// A session record survives a create/read cycle and its counters reflect
// exactly the prompts recorded against it.
func TestSessionRecordIntegrityProperty(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	addr := gen.AlphaString().SuchThat(func(s string) bool {
		return len(s) > 0 && len(s) <= 64
	})

	properties.Property("counters match recorded prompts", prop.ForAll(
		func(remoteAddr, identity string, outcomes []bool) bool {
			session := newOpenSession(remoteAddr, time.Now())
			if err := repo.Create(ctx, session); err != nil {
				t.Logf("failed to create session: %v", err)
				return false
			}
			if err := repo.SetIdentity(ctx, session.ID, identity); err != nil {
				t.Logf("failed to set identity: %v", err)
				return false
			}

			wantFailures := 0
			for _, failed := range outcomes {
				if failed {
					wantFailures++
				}
				if err := repo.RecordPrompt(ctx, session.ID, failed); err != nil {
					t.Logf("failed to record prompt: %v", err)
					return false
				}
			}

			got, err := repo.GetByID(ctx, session.ID)
			if err != nil {
				t.Logf("failed to retrieve session: %v", err)
				return false
			}
			return got.RemoteAddr == remoteAddr &&
				got.Identity == identity &&
				got.Status == model.SessionStatusOpen &&
				got.Prompts == len(outcomes) &&
				got.Failures == wantFailures &&
				got.ClosedAt == nil
		},
		addr,
		gen.AlphaString(),
		gen.SliceOf(gen.Bool()),
	))

	properties.Property("closed sessions reject updates", prop.ForAll(
		func(remoteAddr string) bool {
			session := newOpenSession(remoteAddr, time.Now())
			if err := repo.Create(ctx, session); err != nil {
				return false
			}
			if err := repo.Close(ctx, session.ID, time.Now()); err != nil {
				return false
			}

			got, err := repo.GetByID(ctx, session.ID)
			if err != nil || got.Status != model.SessionStatusClosed || got.ClosedAt == nil {
				return false
			}
			return errors.Is(repo.RecordPrompt(ctx, session.ID, false), model.ErrSessionClosed) &&
				errors.Is(repo.Close(ctx, session.ID, time.Now()), model.ErrSessionClosed)
		},
		addr,
	))

	properties.TestingRun(t)
}

func TestSessionRepository_NotFound(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, model.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
	if err := repo.SetIdentity(ctx, "missing", "TOM"); !errors.Is(err, model.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSessionRepository_ListAndCloseStale(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 3; i++ {
		s := newOpenSession("127.0.0.1:1000", base.Add(time.Duration(i)*time.Minute))
		if err := repo.Create(ctx, s); err != nil {
			t.Fatalf("failed to create session: %v", err)
		}
		ids = append(ids, s.ID)
	}
	if err := repo.Close(ctx, ids[0], base.Add(time.Hour)); err != nil {
		t.Fatalf("failed to close session: %v", err)
	}

	all, err := repo.List(ctx, 0)
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(all) != 3 || all[0].ID != ids[2] || all[2].ID != ids[0] {
		t.Fatalf("expected newest first, got %d sessions", len(all))
	}

	limited, err := repo.List(ctx, 2)
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("expected 2 sessions, got %d", len(limited))
	}

	open, err := repo.CountOpen(ctx)
	if err != nil || open != 2 {
		t.Fatalf("expected 2 open sessions, got %d (%v)", open, err)
	}

	closed, err := repo.CloseStale(ctx, base.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("failed to close stale: %v", err)
	}
	if closed != 2 {
		t.Errorf("expected 2 stale sessions closed, got %d", closed)
	}
	if open, _ := repo.CountOpen(ctx); open != 0 {
		t.Errorf("expected no open sessions, got %d", open)
	}
}
