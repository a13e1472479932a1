package model

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/shhac/bolt/internal/async"
	"github.com/shhac/bolt/internal/domain"
	"github.com/shhac/bolt/internal/storage"
	"github.com/shhac/bolt/internal/transport"
)

// Store is the single owner of the workspace. Every read and write of the
// workspace goes through its lock; callers only ever see deep copies.
type Store struct {
	mu sync.Mutex
	ws domain.Workspace

	transport transport.Transport
	scheduler *async.Scheduler
	bus       *Bus
	logger    *slog.Logger
}

// NewStore creates a store holding ws.
func NewStore(ws domain.Workspace, t transport.Transport, scheduler *async.Scheduler, bus *Bus, logger *slog.Logger) *Store {
	return &Store{
		ws:        ws.Clone(),
		transport: t,
		scheduler: scheduler,
		bus:       bus,
		logger:    logger,
	}
}

// Snapshot returns a deep copy of the current workspace.
func (s *Store) Snapshot() domain.Workspace {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ws.Clone()
}

// Update applies fn to the workspace under the lock. fn must not call back
// into the store.
func (s *Store) Update(fn func(ws *domain.Workspace)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.ws)
}

// Replace swaps in ws wholesale and notifies observers.
func (s *Store) Replace(ws domain.Workspace) {
	next := ws.Clone()

	s.mu.Lock()
	s.ws = next
	s.mu.Unlock()

	s.bus.Publish(Update{Kind: UpdateWorkspace, Op: transport.OpRestoreState, Workspace: next.Clone()})
}

// SaveNow serializes the workspace and sends it to the backend.
func (s *Store) SaveNow(ctx context.Context) error {
	blob, err := storage.EncodeSnapshot(s.Snapshot())
	if err != nil {
		return fmt.Errorf("encode workspace: %w", err)
	}

	if err := s.transport.SaveState(ctx, blob); err != nil {
		return fmt.Errorf("save workspace: %w", err)
	}

	s.logger.Debug("workspace saved", slog.Int("bytes", len(blob)))
	return nil
}

// Save schedules SaveNow. Failures are logged only.
func (s *Store) Save() {
	s.scheduler.Go(transport.OpSaveState, func(ctx context.Context) {
		if err := s.SaveNow(ctx); err != nil {
			s.logger.Error("failed to save workspace", slog.Any("error", err))
		}
	})
}

// RestoreNow fetches the saved blob and replaces the workspace with it. The
// blob is fully decoded before anything is touched, so on error the current
// workspace is left as it was. A backend with nothing saved replies with an
// empty blob, which leaves the workspace alone.
func (s *Store) RestoreNow(ctx context.Context) error {
	blob, err := s.transport.RestoreState(ctx)
	if err != nil {
		return fmt.Errorf("restore workspace: %w", err)
	}

	if strings.TrimSpace(blob) == "" {
		s.logger.Info("no saved workspace to restore")
		return nil
	}

	ws, err := storage.DecodeSnapshot(blob)
	if err != nil {
		return fmt.Errorf("restore workspace: %w", err)
	}

	s.Replace(ws)
	s.logger.Info("workspace restored",
		slog.Int("collections", len(ws.Collections)),
		slog.String("page", string(ws.Page)),
	)
	return nil
}

// Restore schedules RestoreNow. Failures are logged and published as an
// error update.
func (s *Store) Restore() {
	s.scheduler.Go(transport.OpRestoreState, func(ctx context.Context) {
		if err := s.RestoreNow(ctx); err != nil {
			s.logger.Error("failed to restore workspace", slog.Any("error", err))
			s.bus.Publish(ErrorUpdate(transport.OpRestoreState, err))
		}
	})
}
