// Package store persists session state so a session outlives the process
// that created it. The lobby is the only writer of a session; stores only
// need per-session atomic writes.
package store

import (
	"context"
	"errors"
	"strings"

	"github.com/DoyleJ11/party-quiz-backend/internal/engine"
)

var (
	ErrNotFound      = errors.New("store: session not found")
	ErrDuplicateCode = errors.New("store: join code already in use")
)

type Store interface {
	// CreateSession inserts a new session and reserves its join code.
	CreateSession(ctx context.Context, s engine.State) error
	// Save upserts the session, its roster and its current questions.
	Save(ctx context.Context, s engine.State) error
	Load(ctx context.Context, id string) (engine.State, error)
	FindByCode(ctx context.Context, code string) (engine.State, error)
	ListTeams(ctx context.Context, sessionID string) ([]engine.Team, error)
	Close() error
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
