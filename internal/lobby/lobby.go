package lobby

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/party-quiz-backend/internal/content"
	"github.com/DoyleJ11/party-quiz-backend/internal/engine"
	"github.com/DoyleJ11/party-quiz-backend/internal/store"
	"github.com/DoyleJ11/party-quiz-backend/internal/types"
	public "github.com/DoyleJ11/party-quiz-backend/pkg/types"
)

const (
	inboxSize         = 64
	collaboratorLimit = 2 * time.Minute
)

type Msg interface{ isLobbyMsg() }

// Join subscribes a connection. It receives the current snapshot right away.
type Join struct {
	ClientID string
	Outbox   chan types.ServerMessage
}

func (Join) isLobbyMsg() {}

type Leave struct{ ClientID string }

func (Leave) isLobbyMsg() {}

// FromClient carries a command from a connection. The lobby fills in the
// actor from the connection's binding, so clients cannot act for others.
type FromClient struct {
	ClientID string
	Cmd      engine.Command
}

func (FromClient) isLobbyMsg() {}

// Resume binds a reconnecting connection to the team it joined as before.
type Resume struct {
	ClientID string
	TeamID   string
	Secret   string
}

func (Resume) isLobbyMsg() {}

// Sync asks for a fresh snapshot for one connection.
type Sync struct{ ClientID string }

func (Sync) isLobbyMsg() {}

// Query returns the anonymous projection (public HTTP state query).
type Query struct {
	Reply chan public.Snapshot
}

func (Query) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

// getState hands a copy of the actor's state to tests.
type getState struct {
	Reply chan view
}

func (getState) isLobbyMsg() {}

type timerFired struct {
	kind engine.TimerKind
	seq  int
}

func (timerFired) isLobbyMsg() {}

// systemResult carries a collaborator result back into the lobby.
type systemResult struct {
	cmd engine.Command
}

func (systemResult) isLobbyMsg() {}

type speechReady struct {
	questionIndex int
	audio         []byte
}

func (speechReady) isLobbyMsg() {}

type view struct {
	Version    int
	NumClients int
	State      engine.State
}

type Deps struct {
	Store     store.Store
	Generator content.Generator
	Speaker   content.Speaker // optional
	Log       *zap.Logger
	Now       func() time.Time
}

type client struct {
	out    chan types.ServerMessage
	teamID string
}

// Lobby is the single writer of one session: every command, timer expiry
// and collaborator result passes through its loop in arrival order.
type Lobby struct {
	inbox   chan Msg
	state   engine.State
	version int
	clients map[string]*client

	timer    *time.Timer
	timerSeq int

	deps    Deps
	log     *zap.Logger
	persist *persister

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewLobby(parent context.Context, initial engine.State, deps Deps) *Lobby {
	ctx, cancel := context.WithCancel(parent)
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	log := deps.Log.With(zap.String("code", initial.JoinCode), zap.String("session_id", initial.SessionID))

	// A rehydrated session gets its running timer back at full length.
	if initial.Timer != nil {
		initial = initial.Clone()
		initial.Timer.StartedAt = deps.Now()
	}

	l := &Lobby{
		inbox:   make(chan Msg, inboxSize),
		state:   initial,
		clients: make(map[string]*client),
		deps:    deps,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	if deps.Store != nil {
		l.persist = newPersister(ctx, deps.Store, log)
	}

	go l.loop()
	return l
}

// Inbox exposes the inbox so the hub and the ws layer can send messages.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

// Done is closed once the loop has exited.
func (l *Lobby) Done() <-chan struct{} { return l.done }

// post delivers a message from a goroutine other than the loop.
func (l *Lobby) post(m Msg) {
	select {
	case l.inbox <- m:
	case <-l.ctx.Done():
	}
}

func (l *Lobby) loop() {
	defer close(l.done)
	l.syncTimer()
	for _, e := range l.state.Pending() {
		l.log.Info("resuming pending request", zap.String("event", string(e.Type)), zap.Int("seq", e.Seq))
		l.dispatch(e)
	}
	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Join:
				l.clients[msg.ClientID] = &client{out: msg.Outbox}
				l.sendSnapshot(msg.ClientID)

			case Leave:
				c, ok := l.clients[msg.ClientID]
				if !ok {
					break
				}
				delete(l.clients, msg.ClientID)
				if c.teamID != "" {
					l.broadcastSnapshots()
				}

			case FromClient:
				l.handleClient(msg)

			case Resume:
				l.handleResume(msg)

			case Sync:
				l.sendSnapshot(msg.ClientID)

			case Query:
				msg.Reply <- Project(l.state, "", l.online(), l.deps.Now())

			case timerFired:
				l.applySystem(engine.Command{Type: engine.CmdTimerExpired, Timer: msg.kind, Seq: msg.seq})

			case systemResult:
				l.applySystem(msg.cmd)

			case speechReady:
				l.sendSpeech(msg)

			case getState:
				msg.Reply <- view{
					Version:    l.version,
					NumClients: len(l.clients),
					State:      l.state.Clone(),
				}

			case Shutdown:
				l.shutdown()
				return
			}
		}
	}
}

func (l *Lobby) shutdown() {
	l.stopTimer()
	for id, c := range l.clients {
		close(c.out) // no more messages for this client
		delete(l.clients, id)
	}
	l.cancel()
	if l.persist != nil {
		l.persist.wait()
	}
}

func (l *Lobby) handleClient(msg FromClient) {
	c, ok := l.clients[msg.ClientID]
	if !ok {
		return
	}
	cmd := msg.Cmd
	cmd.Actor = c.teamID
	cmd.System = false
	cmd.At = l.deps.Now()
	cmd.Seed = rand.Uint64()

	if cmd.Type == engine.CmdJoin {
		if c.teamID != "" {
			l.sendError(msg.ClientID, &engine.RuleError{Kind: engine.ErrInvalidMove, Reason: "this connection already joined"})
			return
		}
		cmd.TeamID = uuid.NewString()
		cmd.Secret = uuid.NewString()
	}

	events, next, err := engine.Apply(l.state, cmd)
	if err != nil {
		l.log.Debug("command rejected",
			zap.String("type", string(cmd.Type)),
			zap.String("team_id", cmd.Actor),
			zap.Error(err),
		)
		l.sendError(msg.ClientID, err)
		return
	}

	if cmd.Type == engine.CmdJoin {
		c.teamID = cmd.TeamID
		l.send(msg.ClientID, types.ServerMessage{Type: public.ServerJoined, TeamID: cmd.TeamID, Secret: cmd.Secret})
	}
	l.commit(next, events)
}

func (l *Lobby) handleResume(msg Resume) {
	c, ok := l.clients[msg.ClientID]
	if !ok {
		return
	}
	t, err := engine.Resume(l.state, msg.TeamID, msg.Secret)
	if err != nil {
		l.sendError(msg.ClientID, err)
		return
	}
	c.teamID = t.ID
	l.send(msg.ClientID, types.ServerMessage{Type: public.ServerJoined, TeamID: t.ID, Secret: msg.Secret})
	l.broadcastSnapshots()
}

func (l *Lobby) applySystem(cmd engine.Command) {
	cmd.System = true
	cmd.At = l.deps.Now()
	events, next, err := engine.Apply(l.state, cmd)
	if err != nil {
		if errors.Is(err, engine.ErrStale) {
			l.log.Debug("dropped stale system command", zap.String("type", string(cmd.Type)), zap.Error(err))
			return
		}
		l.log.Warn("system command rejected", zap.String("type", string(cmd.Type)), zap.Error(err))
		return
	}
	l.commit(next, events)
}

// commit installs the new state, fans the events out and starts whatever
// the events ask for: timers, collaborator calls, persistence.
func (l *Lobby) commit(next engine.State, events []engine.Event) {
	l.state = next
	changed := false
	for _, e := range events {
		if !e.Ephemeral() {
			changed = true
		}
	}
	if changed {
		l.version++
	}

	l.broadcast(events, changed)
	l.syncTimer()
	for _, e := range events {
		l.dispatch(e)
	}
	if changed && l.persist != nil {
		l.persist.save(l.state)
	}
}

func (l *Lobby) hostID() string {
	if h, ok := l.state.Host(); ok {
		return h.ID
	}
	return ""
}

func visibleTo(e engine.Event, teamID, hostID string) bool {
	switch {
	case e.To != "":
		return teamID == e.To
	case e.HostOnly:
		return teamID != "" && teamID == hostID
	}
	return true
}

// broadcast sends each client the events it may see. The last one carries
// the client's projection; clients that saw none of a state-changing batch
// get a plain snapshot.
func (l *Lobby) broadcast(events []engine.Event, changed bool) {
	hostID := l.hostID()
	online := l.online()
	now := l.deps.Now()
	for id, c := range l.clients {
		var msgs []types.ServerMessage
		for i := range events {
			if !visibleTo(events[i], c.teamID, hostID) {
				continue
			}
			e := events[i]
			msgs = append(msgs, types.ServerMessage{Type: public.ServerEvent, Version: l.version, Event: &e})
		}
		if changed {
			snap := Project(l.state, c.teamID, online, now)
			if len(msgs) == 0 {
				msgs = append(msgs, types.ServerMessage{Type: public.ServerSnapshot, Version: l.version})
			}
			msgs[len(msgs)-1].State = &snap
		}
		for _, m := range msgs {
			if !l.trySend(id, c, m) {
				break
			}
		}
	}
}

func (l *Lobby) broadcastSnapshots() {
	for id := range l.clients {
		l.sendSnapshot(id)
	}
}

func (l *Lobby) online() map[string]bool {
	out := make(map[string]bool, len(l.clients))
	for _, c := range l.clients {
		if c.teamID != "" {
			out[c.teamID] = true
		}
	}
	return out
}

func (l *Lobby) sendSnapshot(clientID string) {
	c, ok := l.clients[clientID]
	if !ok {
		return
	}
	snap := Project(l.state, c.teamID, l.online(), l.deps.Now())
	l.trySend(clientID, c, types.ServerMessage{Type: public.ServerSnapshot, Version: l.version, State: &snap})
}

func (l *Lobby) send(clientID string, m types.ServerMessage) {
	if c, ok := l.clients[clientID]; ok {
		l.trySend(clientID, c, m)
	}
}

// trySend never blocks the loop: a client whose outbox is full is dropped
// and has to reconnect and sync.
func (l *Lobby) trySend(id string, c *client, m types.ServerMessage) bool {
	select {
	case c.out <- m:
		return true
	default:
		l.log.Info("dropping slow client", zap.String("client_id", id), zap.String("team_id", c.teamID))
		close(c.out)
		delete(l.clients, id)
		return false
	}
}

// sendError tells only the sender. The host gets the specific reason,
// everyone else the generic kind.
func (l *Lobby) sendError(clientID string, err error) {
	c, ok := l.clients[clientID]
	if !ok {
		return
	}
	msg := types.ServerMessage{Type: public.ServerError, Kind: engine.Kind(err), Error: genericMessage(err)}
	if c.teamID != "" && c.teamID == l.hostID() {
		msg.Error = err.Error()
	}
	l.trySend(clientID, c, msg)
}

func genericMessage(err error) string {
	var re *engine.RuleError
	if errors.As(err, &re) {
		return re.Kind.Error()
	}
	if errors.Is(err, engine.ErrUnsupportedCommand) {
		return engine.ErrUnsupportedCommand.Error()
	}
	return "request failed"
}

func (l *Lobby) sendSpeech(msg speechReady) {
	if !l.state.TTSEnabled || l.state.Phase != engine.PhaseQuiz || l.state.CurrentQuestionIndex != msg.questionIndex {
		return
	}
	hostID := l.hostID()
	idx := msg.questionIndex
	for id, c := range l.clients {
		if c.teamID == "" || c.teamID != hostID {
			continue
		}
		l.trySend(id, c, types.ServerMessage{Type: public.ServerSpeechReady, QuestionIndex: &idx, Audio: msg.audio})
	}
}
