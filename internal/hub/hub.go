// Package hub is the session registry: it owns the join code -> lobby map,
// creates sessions and brings persisted sessions back after a restart.
package hub

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/party-quiz-backend/internal/content"
	"github.com/DoyleJ11/party-quiz-backend/internal/engine"
	"github.com/DoyleJ11/party-quiz-backend/internal/lobby"
	"github.com/DoyleJ11/party-quiz-backend/internal/store"
)

const (
	codeLength      = 6
	maxCodeAttempts = 10
	storeTimeout    = 5 * time.Second
)

var ErrNoFreeCode = errors.New("hub: could not find a free join code")

func GenerateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, codeLength)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}

func normalizeCode(code string) string { return strings.ToUpper(strings.TrimSpace(code)) }

type HubMsg interface{ isHubMsg() }

type CreateSession struct {
	Language engine.Language
	Reply    chan Created
}

type Created struct {
	ID    string
	Code  string
	Lobby *lobby.Lobby
	Err   error
}

// GetLobby replies with nil when the code is unknown here and in the store.
type GetLobby struct {
	Code  string
	Reply chan *lobby.Lobby
}

// RemoveLobby forgets a lobby whose loop has exited. Lobby guards against
// removing a newer lobby registered under the same code.
type RemoveLobby struct {
	Code  string
	Lobby *lobby.Lobby
}

// ShutdownHub stops every lobby and waits for them before Done is closed.
type ShutdownHub struct {
	Done chan struct{}
}

func (CreateSession) isHubMsg() {}
func (GetLobby) isHubMsg()      {}
func (RemoveLobby) isHubMsg()   {}
func (ShutdownHub) isHubMsg()   {}

type Deps struct {
	Store     store.Store
	Generator content.Generator
	Speaker   content.Speaker
	Rules     engine.Rules
	Log       *zap.Logger
	Now       func() time.Time
	NewCode   func() (string, error) // GenerateCode when nil
}

type Hub struct {
	inbox   chan HubMsg
	lobbies map[string]*lobby.Lobby
	deps    Deps
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewHub(parent context.Context, deps Deps) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if deps.Store == nil {
		deps.Store = store.NewMemory()
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewCode == nil {
		deps.NewCode = GenerateCode
	}
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		lobbies: make(map[string]*lobby.Lobby),
		deps:    deps,
		log:     deps.Log,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Get resolves a join code. It returns nil when no such session exists or
// the hub has stopped.
func (h *Hub) Get(ctx context.Context, code string) *lobby.Lobby {
	reply := make(chan *lobby.Lobby, 1)
	select {
	case h.inbox <- GetLobby{Code: code, Reply: reply}:
	case <-h.done:
		return nil
	case <-ctx.Done():
		return nil
	}
	select {
	case lb := <-reply:
		return lb
	case <-h.done:
		return nil
	case <-ctx.Done():
		return nil
	}
}

func (h *Hub) Create(ctx context.Context, lang engine.Language) Created {
	reply := make(chan Created, 1)
	select {
	case h.inbox <- CreateSession{Language: lang, Reply: reply}:
	case <-h.done:
		return Created{Err: errors.New("hub: stopped")}
	case <-ctx.Done():
		return Created{Err: ctx.Err()}
	}
	select {
	case c := <-reply:
		return c
	case <-h.done:
		return Created{Err: errors.New("hub: stopped")}
	case <-ctx.Done():
		return Created{Err: ctx.Err()}
	}
}

// Shutdown stops all lobbies and returns once their state is flushed.
func (h *Hub) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	select {
	case h.inbox <- ShutdownHub{Done: done}:
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateSession:
				msg.Reply <- h.create(msg.Language)

			case GetLobby:
				msg.Reply <- h.lookup(msg.Code)

			case RemoveLobby:
				if h.lobbies[msg.Code] == msg.Lobby {
					delete(h.lobbies, msg.Code)
					h.log.Info("lobby removed", zap.String("code", msg.Code))
				}

			case ShutdownHub:
				h.shutdown()
				close(msg.Done)
				return
			}
		}
	}
}

func (h *Hub) create(lang engine.Language) Created {
	for range maxCodeAttempts {
		code, err := h.deps.NewCode()
		if err != nil {
			return Created{Err: fmt.Errorf("hub: generate code: %w", err)}
		}
		code = normalizeCode(code)
		if h.lobbies[code] != nil {
			h.log.Debug("collision on code, regenerating", zap.String("code", code))
			continue
		}

		s := engine.NewSession(uuid.NewString(), code, lang, h.deps.Rules, h.deps.Now())
		ctx, cancel := context.WithTimeout(h.ctx, storeTimeout)
		err = h.deps.Store.CreateSession(ctx, s)
		cancel()
		if errors.Is(err, store.ErrDuplicateCode) {
			h.log.Debug("code taken in store, regenerating", zap.String("code", code))
			continue
		}
		if err != nil {
			return Created{Err: err}
		}

		lb := h.start(s)
		h.log.Info("session created",
			zap.String("code", code),
			zap.String("session_id", s.SessionID),
			zap.String("language", string(lang)),
		)
		return Created{ID: s.SessionID, Code: code, Lobby: lb}
	}
	return Created{Err: ErrNoFreeCode}
}

// lookup falls back to the store so sessions survive a restart.
func (h *Hub) lookup(raw string) *lobby.Lobby {
	code := normalizeCode(raw)
	if lb := h.lobbies[code]; lb != nil {
		return lb
	}
	if code == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(h.ctx, storeTimeout)
	defer cancel()
	s, err := h.deps.Store.FindByCode(ctx, code)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			h.log.Warn("session lookup failed", zap.String("code", code), zap.Error(err))
		}
		return nil
	}
	h.log.Info("session rehydrated",
		zap.String("code", code),
		zap.String("session_id", s.SessionID),
		zap.String("phase", string(s.Phase)),
	)
	return h.start(s)
}

func (h *Hub) start(s engine.State) *lobby.Lobby {
	lb := lobby.NewLobby(h.ctx, s, lobby.Deps{
		Store:     h.deps.Store,
		Generator: h.deps.Generator,
		Speaker:   h.deps.Speaker,
		Log:       h.log,
		Now:       h.deps.Now,
	})
	h.lobbies[s.JoinCode] = lb

	go func(code string) {
		select {
		case <-lb.Done():
			select {
			case h.inbox <- RemoveLobby{Code: code, Lobby: lb}:
			case <-h.done:
			}
		case <-h.done:
		}
	}(s.JoinCode)
	return lb
}

func (h *Hub) shutdown() {
	for _, lb := range h.lobbies {
		select {
		case lb.Inbox() <- lobby.Shutdown{}:
		case <-lb.Done():
		}
	}
	for _, lb := range h.lobbies {
		<-lb.Done()
	}
	clear(h.lobbies)
	h.cancel()
}
