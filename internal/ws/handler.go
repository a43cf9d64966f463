package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/party-quiz-backend/internal/engine"
	"github.com/DoyleJ11/party-quiz-backend/internal/hub"
	"github.com/DoyleJ11/party-quiz-backend/internal/lobby"
	"github.com/DoyleJ11/party-quiz-backend/internal/types"
	public "github.com/DoyleJ11/party-quiz-backend/pkg/types"
)

const (
	outboxSize   = 32
	writeTimeout = 3 * time.Second

	// Players sit idle through breaks and the host's pacing.
	idleTimeout = 10 * time.Minute
)

// HostVerifier checks the token a client presents to join as host.
type HostVerifier interface {
	VerifyHostToken(token string) bool
}

// Handler upgrades GET /ws?code=XXXXXX and bridges the connection to the
// session's lobby. originPatterns is passed to websocket.Accept.
func Handler(h *hub.Hub, hosts HostVerifier, originPatterns []string, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}

		lb := h.Get(r.Context(), code)
		if lb == nil {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: originPatterns})
		if err != nil {
			log.Debug("websocket accept failed", zap.String("code", code), zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		c := &session{
			conn:     conn,
			lb:       lb,
			hosts:    hosts,
			clientID: uuid.NewString(),
			log:      log.With(zap.String("code", code)),
		}
		c.serve(r.Context())
	}
}

type session struct {
	conn     *websocket.Conn
	lb       *lobby.Lobby
	hosts    HostVerifier
	clientID string
	log      *zap.Logger
}

func (c *session) serve(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The lobby owns out from here on and closes it when it drops us.
	out := make(chan types.ServerMessage, outboxSize)
	if !c.post(ctx, lobby.Join{ClientID: c.clientID, Outbox: out}) {
		return
	}
	defer c.post(context.Background(), lobby.Leave{ClientID: c.clientID})
	c.log.Debug("client connected", zap.String("client_id", c.clientID))

	go c.writeLoop(ctx, cancel, out)

	for {
		readCtx, readCancel := context.WithTimeout(ctx, idleTimeout)
		_, data, err := c.conn.Read(readCtx)
		readCancel()
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				if ctx.Err() == nil {
					c.log.Debug("client read failed", zap.String("client_id", c.clientID), zap.Error(err))
				}
			}
			return
		}

		var cm types.ClientMessage
		if err := json.Unmarshal(data, &cm); err != nil {
			c.reply(ctx, engine.Kind(engine.ErrInvalidMove), "bad json")
			continue
		}
		if !c.handle(ctx, cm) {
			return
		}
	}
}

// writeLoop drains the outbox. A closed outbox means the lobby dropped this
// client (too slow, or shutting down).
func (c *session) writeLoop(ctx context.Context, cancel context.CancelFunc, out <-chan types.ServerMessage) {
	defer cancel()
	for msg := range out {
		wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
		err := wsjson.Write(wctx, c.conn, msg)
		wcancel()
		if err != nil {
			c.log.Debug("client write failed", zap.String("client_id", c.clientID), zap.Error(err))
			return
		}
	}
	c.conn.Close(websocket.StatusGoingAway, "resync required")
}

// handle returns false once the lobby is gone.
func (c *session) handle(ctx context.Context, cm types.ClientMessage) bool {
	switch cm.Type {
	case public.ClientJoin:
		if cm.AsHost && !c.hosts.VerifyHostToken(cm.Token) {
			c.reply(ctx, engine.Kind(engine.ErrUnauthorized), "valid host token required")
			return true
		}
		return c.post(ctx, lobby.FromClient{ClientID: c.clientID, Cmd: engine.Command{
			Type:     engine.CmdJoin,
			RealName: cm.RealName,
			Avatar:   cm.Avatar,
			AsHost:   cm.AsHost,
		}})

	case public.ClientResume:
		return c.post(ctx, lobby.Resume{ClientID: c.clientID, TeamID: cm.TeamID, Secret: cm.Secret})

	case public.ClientSync:
		return c.post(ctx, lobby.Sync{ClientID: c.clientID})
	}

	cmd, ok := toEngineCommand(cm)
	if !ok {
		c.reply(ctx, engine.Kind(engine.ErrInvalidMove), "unknown type "+cm.Type)
		return true
	}
	return c.post(ctx, lobby.FromClient{ClientID: c.clientID, Cmd: cmd})
}

func (c *session) post(ctx context.Context, m lobby.Msg) bool {
	select {
	case c.lb.Inbox() <- m:
		return true
	case <-c.lb.Done():
		return false
	case <-ctx.Done():
		return false
	}
}

// reply answers the sender directly for problems caught before the lobby.
func (c *session) reply(ctx context.Context, kind, text string) {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	msg := types.ServerMessage{Type: public.ServerError, Kind: kind, Error: text}
	if err := wsjson.Write(wctx, c.conn, msg); err != nil && !errors.Is(err, context.Canceled) {
		c.log.Debug("client write failed", zap.String("client_id", c.clientID), zap.Error(err))
	}
}

func toEngineCommand(m types.ClientMessage) (engine.Command, bool) {
	cmd := engine.Command{}
	switch m.Type {
	case public.ClientConfirmHost:
		cmd.Type = engine.CmdConfirmHost
	case public.ClientSetFaction:
		cmd.Type = engine.CmdSetFaction
		cmd.Faction = engine.Faction(m.Faction)
	case public.ClientResetScores:
		cmd.Type = engine.CmdResetScores
	case public.ClientUpdateSettings:
		cmd.Type = engine.CmdUpdateSettings
		cmd.TTSEnabled = m.TTSEnabled
		cmd.ShowAnswers = m.ShowAnswers
	case public.ClientOpenCategories:
		cmd.Type = engine.CmdOpenCategories
	case public.ClientToggleCategory:
		cmd.Type = engine.CmdToggleCategory
		cmd.CategoryID = m.CategoryID
	case public.ClientStartQuiz:
		cmd.Type = engine.CmdStartQuiz
	case public.ClientRetryGeneration:
		cmd.Type = engine.CmdRetryGeneration
	case public.ClientSubmitAnswer:
		cmd.Type = engine.CmdSubmitAnswer
		cmd.QuestionIndex = intOr(m.QuestionIndex, -1)
		cmd.Option = intOr(m.Option, engine.NoAnswer)
	case public.ClientNextQuestion:
		cmd.Type = engine.CmdNextQuestion
	case public.ClientEndBreak:
		cmd.Type = engine.CmdEndBreak
	case public.ClientNextCategory:
		cmd.Type = engine.CmdNextCategory
	case public.ClientFinishQuiz:
		cmd.Type = engine.CmdFinishQuiz
		cmd.SkipBingo = m.SkipBingo
	case public.ClientSelectCell:
		cmd.Type = engine.CmdSelectCell
		cmd.Cell = intOr(m.Cell, engine.NoCell)
	case public.ClientRetryDraw:
		cmd.Type = engine.CmdRetryDraw
	case public.ClientStartPerformance:
		cmd.Type = engine.CmdStartPerformance
	case public.ClientBuzz:
		cmd.Type = engine.CmdBuzz
	case public.ClientJudge:
		cmd.Type = engine.CmdJudge
		cmd.Correct = m.Correct
	case public.ClientNextTurn:
		cmd.Type = engine.CmdNextTurn
	case public.ClientFinish:
		cmd.Type = engine.CmdFinish
	case public.ClientReact:
		cmd.Type = engine.CmdReact
		cmd.Text = m.Text
	case public.ClientQuickMessage:
		cmd.Type = engine.CmdQuickMessage
		cmd.Text = m.Text
	default:
		return engine.Command{}, false
	}
	return cmd, true
}

func intOr(p *int, fallback int) int {
	if p == nil {
		return fallback
	}
	return *p
}
