package lobby

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/party-quiz-backend/internal/content"
	"github.com/DoyleJ11/party-quiz-backend/internal/engine"
	"github.com/DoyleJ11/party-quiz-backend/internal/store"
	"github.com/DoyleJ11/party-quiz-backend/internal/types"
	public "github.com/DoyleJ11/party-quiz-backend/pkg/types"
)

const within = 2 * time.Second

type fakeGen struct {
	mu   sync.Mutex
	fail error
}

func (g *fakeGen) setFail(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fail = err
}

func (g *fakeGen) err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fail
}

func (g *fakeGen) Questions(ctx context.Context, category string, lang engine.Language, count int) ([]engine.Question, error) {
	if err := g.err(); err != nil {
		return nil, err
	}
	return sampleQuestions(category, count), nil
}

func (g *fakeGen) Card(ctx context.Context, req content.CardRequest) (engine.TabooCard, error) {
	if err := g.err(); err != nil {
		return engine.TabooCard{}, err
	}
	return engine.TabooCard{Term: "Elfmeter", Forbidden: [5]string{"Tor", "Ball", "Schuss", "Punkt", "Torwart"}, Hint: "Nerven!", Difficulty: req.Difficulty}, nil
}

func (g *fakeGen) Roast(ctx context.Context, lang engine.Language, board []engine.ScoreLine) (string, error) {
	return fmt.Sprintf("%s wins", board[0].SecretName), nil
}

type fakeSpeaker struct{}

func (fakeSpeaker) Speak(ctx context.Context, text string, lang engine.Language) ([]byte, error) {
	return []byte("mp3:" + text), nil
}

func sampleQuestions(category string, n int) []engine.Question {
	qs := make([]engine.Question, n)
	for i := range qs {
		qs[i] = engine.Question{
			ID:           fmt.Sprintf("%s-%d", category, i),
			Text:         engine.LocalizedText{Primary: fmt.Sprintf("Frage %d", i), Secondary: fmt.Sprintf("Question %d", i)},
			Options:      [4]string{"a", "b", "c", "d"},
			CorrectIndex: i % 4,
		}
	}
	return qs
}

func fastRules() engine.Rules {
	r := engine.DefaultRules()
	r.QuestionTimerSec = 1
	r.TurnDelayMs = 50
	return r
}

type harness struct {
	t     *testing.T
	l     *Lobby
	store *store.Memory
	gen   *fakeGen
}

func newHarness(t *testing.T, initial engine.State) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h := &harness{t: t, store: store.NewMemory(), gen: &fakeGen{}}
	h.l = NewLobby(ctx, initial, Deps{Store: h.store, Generator: h.gen, Speaker: fakeSpeaker{}})
	return h
}

func newSession(t *testing.T, rules engine.Rules) *harness {
	return newHarness(t, engine.NewSession("s-1", "ABC123", engine.LangDE, rules, time.Now()))
}

// recvMsg receives one message with a timeout so tests never hang.
func recvMsg(t *testing.T, ch <-chan types.ServerMessage, within time.Duration) types.ServerMessage {
	t.Helper()
	select {
	case m, ok := <-ch:
		if !ok {
			t.Fatalf("client outbox closed unexpectedly")
		}
		return m
	case <-time.After(within):
		t.Fatalf("timed out waiting for a message")
		return types.ServerMessage{}
	}
}

// collectUntil returns every message up to and including the first one
// matching pred.
func collectUntil(t *testing.T, ch <-chan types.ServerMessage, pred func(types.ServerMessage) bool) []types.ServerMessage {
	t.Helper()
	deadline := time.Now().Add(within)
	var out []types.ServerMessage
	for {
		m := recvMsg(t, ch, time.Until(deadline))
		out = append(out, m)
		if pred(m) {
			return out
		}
	}
}

func isEvent(typ engine.EventType) func(types.ServerMessage) bool {
	return func(m types.ServerMessage) bool {
		return m.Type == public.ServerEvent && m.Event != nil && m.Event.Type == typ
	}
}

func waitEvent(t *testing.T, ch <-chan types.ServerMessage, typ engine.EventType) types.ServerMessage {
	t.Helper()
	msgs := collectUntil(t, ch, isEvent(typ))
	return msgs[len(msgs)-1]
}

func hasEvent(msgs []types.ServerMessage, typ engine.EventType) bool {
	for _, m := range msgs {
		if isEvent(typ)(m) {
			return true
		}
	}
	return false
}

func (h *harness) connect(clientID string, size int) chan types.ServerMessage {
	h.t.Helper()
	out := make(chan types.ServerMessage, size)
	h.l.Inbox() <- Join{ClientID: clientID, Outbox: out}
	first := recvMsg(h.t, out, within)
	require.Equal(h.t, public.ServerSnapshot, first.Type)
	return out
}

func (h *harness) join(clientID, name string, asHost bool) (chan types.ServerMessage, string) {
	h.t.Helper()
	out := h.connect(clientID, 64)
	h.do(clientID, engine.Command{Type: engine.CmdJoin, RealName: name, AsHost: asHost})
	msgs := collectUntil(h.t, out, func(m types.ServerMessage) bool { return m.Type == public.ServerJoined })
	joined := msgs[len(msgs)-1]
	require.NotEmpty(h.t, joined.TeamID)
	require.NotEmpty(h.t, joined.Secret)
	return out, joined.TeamID
}

func (h *harness) do(clientID string, cmd engine.Command) {
	h.l.Inbox() <- FromClient{ClientID: clientID, Cmd: cmd}
}

func (h *harness) view() view {
	h.t.Helper()
	reply := make(chan view, 1)
	h.l.Inbox() <- getState{Reply: reply}
	select {
	case v := <-reply:
		return v
	case <-time.After(within):
		h.t.Fatalf("timed out waiting for view")
		return view{}
	}
}

type table struct {
	host, x, y       chan types.ServerMessage
	hostID, xID, yID string
}

// seat joins a host and two players, each on its own connection.
func (h *harness) seat() table {
	var tb table
	tb.host, tb.hostID = h.join("c-host", "Mo", true)
	tb.x, tb.xID = h.join("c-x", "Ana", false)
	tb.y, tb.yID = h.join("c-y", "Bo", false)
	return tb
}

func (h *harness) startQuiz() {
	h.do("c-host", engine.Command{Type: engine.CmdConfirmHost})
	h.do("c-host", engine.Command{Type: engine.CmdOpenCategories})
	h.do("c-host", engine.Command{Type: engine.CmdToggleCategory, CategoryID: "sport"})
	h.do("c-host", engine.Command{Type: engine.CmdStartQuiz})
}

func TestLobby_JoinSendsSnapshotAndBindsTeam(t *testing.T) {
	h := newSession(t, engine.DefaultRules())

	out := h.connect("c1", 16)
	h.do("c1", engine.Command{Type: engine.CmdJoin, RealName: "Ana"})

	joined := recvMsg(t, out, within)
	require.Equal(t, public.ServerJoined, joined.Type)

	evt := recvMsg(t, out, within)
	require.True(t, isEvent(engine.EvtTeamJoined)(evt))
	assert.Equal(t, 1, evt.Version)
	require.NotNil(t, evt.State)
	require.Len(t, evt.State.Teams, 1)
	assert.Equal(t, joined.TeamID, evt.State.You)
	assert.Equal(t, "Ana", evt.State.Teams[0].RealName)
	assert.True(t, evt.State.Teams[0].Online)

	// A second join on the same connection is refused.
	h.do("c1", engine.Command{Type: engine.CmdJoin, RealName: "Ana again"})
	errMsg := recvMsg(t, out, within)
	assert.Equal(t, public.ServerError, errMsg.Type)
	assert.Equal(t, "invalid_move", errMsg.Kind)

	v := h.view()
	assert.Equal(t, 1, v.Version)
	assert.Len(t, v.State.Teams, 1)
}

func TestLobby_OtherViewersDoNotSeeRealNames(t *testing.T) {
	h := newSession(t, engine.DefaultRules())
	_, xID := h.join("c-x", "Ana", false)
	yOut, _ := h.join("c-y", "Bo", false)

	h.l.Inbox() <- Sync{ClientID: "c-y"}
	snap := waitFor(t, yOut, public.ServerSnapshot)
	for _, tm := range snap.State.Teams {
		if tm.ID == xID {
			assert.Empty(t, tm.RealName)
			assert.NotEmpty(t, tm.SecretName)
		}
	}
}

func TestLobby_AnswerRankIsPrivate(t *testing.T) {
	h := newSession(t, engine.DefaultRules())
	tb := h.seat()
	h.startQuiz()

	waitEvent(t, tb.x, engine.EvtQuestionStarted)
	waitEvent(t, tb.y, engine.EvtQuestionStarted)

	h.do("c-x", engine.Command{Type: engine.CmdSubmitAnswer, QuestionIndex: 0, Option: 0})

	accepted := waitEvent(t, tb.x, engine.EvtAnswerAccepted)
	assert.Equal(t, 1, accepted.Event.Rank)

	progress := waitEvent(t, tb.x, engine.EvtAnswerProgress)
	require.NotNil(t, progress.State)
	require.NotNil(t, progress.State.Quiz.MyAnswer)
	assert.Equal(t, 1, progress.State.Quiz.MyAnswer.Rank)
	assert.Nil(t, progress.State.Quiz.Correct, "correct option hidden while open")

	yMsgs := collectUntil(t, tb.y, isEvent(engine.EvtAnswerProgress))
	assert.False(t, hasEvent(yMsgs, engine.EvtAnswerAccepted))
	assert.Nil(t, yMsgs[len(yMsgs)-1].State.Quiz.MyAnswer)

	h.do("c-y", engine.Command{Type: engine.CmdSubmitAnswer, QuestionIndex: 0, Option: 3})
	closed := waitEvent(t, tb.y, engine.EvtQuestionClosed)
	require.NotNil(t, closed.Event.CorrectIndex)
	assert.Equal(t, 0, *closed.Event.CorrectIndex)
	assert.Equal(t, 150, closed.Event.Deltas[tb.xID])
	assert.Equal(t, 0, closed.Event.Deltas[tb.yID])
	require.NotNil(t, closed.State.Quiz.Correct)
}

func TestLobby_ErrorsGoOnlyToSender(t *testing.T) {
	h := newSession(t, engine.DefaultRules())
	tb := h.seat()

	h.do("c-x", engine.Command{Type: engine.CmdOpenCategories})
	errMsg := waitFor(t, tb.x, public.ServerError)
	assert.Equal(t, "unauthorized", errMsg.Kind)
	assert.Equal(t, engine.ErrUnauthorized.Error(), errMsg.Error)

	h.do("c-host", engine.Command{Type: engine.CmdOpenCategories})
	errMsg = waitFor(t, tb.host, public.ServerError)
	assert.Equal(t, "precondition", errMsg.Kind)
	assert.Contains(t, errMsg.Error, "confirmed")

	// System commands from a connection are refused.
	h.do("c-x", engine.Command{Type: engine.CmdRoastReady, Text: "spoof", System: true})
	errMsg = waitFor(t, tb.x, public.ServerError)
	assert.Equal(t, "unauthorized", errMsg.Kind)

	h.l.Inbox() <- Sync{ClientID: "c-y"}
	yMsgs := collectUntil(t, tb.y, func(m types.ServerMessage) bool { return m.Type == public.ServerSnapshot })
	for _, m := range yMsgs {
		assert.NotEqual(t, public.ServerError, m.Type)
	}
}

func waitFor(t *testing.T, ch <-chan types.ServerMessage, typ string) types.ServerMessage {
	t.Helper()
	msgs := collectUntil(t, ch, func(m types.ServerMessage) bool { return m.Type == typ })
	return msgs[len(msgs)-1]
}

func TestLobby_GenerationFailureReachesHostOnly(t *testing.T) {
	h := newSession(t, engine.DefaultRules())
	tb := h.seat()
	h.gen.setFail(errors.New("quota exceeded"))
	h.startQuiz()

	failed := waitEvent(t, tb.host, engine.EvtGenerationFailed)
	assert.Equal(t, "quota exceeded", failed.Event.Reason)
	require.NotNil(t, failed.State.Quiz)
	assert.Equal(t, "quota exceeded", failed.State.Quiz.Error)

	// The player sees the version move without the event.
	xMsgs := collectUntil(t, tb.x, func(m types.ServerMessage) bool {
		return m.Type == public.ServerSnapshot && m.Version == failed.Version
	})
	assert.False(t, hasEvent(xMsgs, engine.EvtGenerationFailed))
	assert.Empty(t, xMsgs[len(xMsgs)-1].State.Quiz.Error)

	h.gen.setFail(nil)
	h.do("c-host", engine.Command{Type: engine.CmdRetryGeneration})
	started := waitEvent(t, tb.x, engine.EvtQuestionStarted)
	assert.Equal(t, "Frage 0", started.Event.Prompt.Text.Primary)
}

func TestLobby_QuestionTimerClosesQuestion(t *testing.T) {
	h := newSession(t, fastRules())
	tb := h.seat()
	h.startQuiz()

	waitEvent(t, tb.x, engine.EvtQuestionStarted)
	closed := waitEvent(t, tb.x, engine.EvtQuestionClosed)
	assert.Equal(t, 0, closed.Event.Deltas[tb.xID])

	v := h.view()
	assert.Equal(t, engine.StageReveal, v.State.Quiz.Stage)
	assert.Nil(t, v.State.Timer)
	assert.Equal(t, engine.NoAnswer, v.State.Quiz.Answers[tb.yID].Option)
}

func TestLobby_SpeechGoesToHost(t *testing.T) {
	h := newSession(t, engine.DefaultRules())
	tb := h.seat()
	on := true
	h.do("c-host", engine.Command{Type: engine.CmdUpdateSettings, TTSEnabled: &on})
	h.startQuiz()

	speech := waitFor(t, tb.host, public.ServerSpeechReady)
	require.NotNil(t, speech.QuestionIndex)
	assert.Equal(t, 0, *speech.QuestionIndex)
	assert.Equal(t, []byte("mp3:Frage 0"), speech.Audio)

	h.do("c-x", engine.Command{Type: engine.CmdSubmitAnswer, QuestionIndex: 0, Option: 1})
	xMsgs := collectUntil(t, tb.x, isEvent(engine.EvtAnswerProgress))
	for _, m := range xMsgs {
		assert.NotEqual(t, public.ServerSpeechReady, m.Type)
	}
}

func TestLobby_EphemeralEventsKeepVersion(t *testing.T) {
	h := newSession(t, engine.DefaultRules())
	out, _ := h.join("c-x", "Ana", false)
	before := h.view().Version

	h.do("c-x", engine.Command{Type: engine.CmdReact, Text: "🎉"})
	m := waitEvent(t, out, engine.EvtReaction)
	assert.Equal(t, before, m.Version)
	assert.Nil(t, m.State)
	assert.Equal(t, before, h.view().Version)
}

func TestLobby_DropSlowClient(t *testing.T) {
	h := newSession(t, engine.DefaultRules())

	slow := make(chan types.ServerMessage, 1)
	h.l.Inbox() <- Join{ClientID: "slow", Outbox: slow}
	h.join("c-x", "Ana", false)

	v := h.view()
	assert.Equal(t, 1, v.NumClients, "slow client should be dropped")

	_ = recvMsg(t, slow, within)
	_, ok := <-slow
	assert.False(t, ok, "slow outbox should be closed")
}

func TestLobby_ResumeRebindsTeam(t *testing.T) {
	h := newSession(t, engine.DefaultRules())
	out := h.connect("c-x", 16)
	h.do("c-x", engine.Command{Type: engine.CmdJoin, RealName: "Ana"})
	joined := waitFor(t, out, public.ServerJoined)
	h.l.Inbox() <- Leave{ClientID: "c-x"}

	again := h.connect("c-x2", 16)
	h.l.Inbox() <- Resume{ClientID: "c-x2", TeamID: joined.TeamID, Secret: "wrong"}
	errMsg := waitFor(t, again, public.ServerError)
	assert.Equal(t, "unauthorized", errMsg.Kind)

	h.l.Inbox() <- Resume{ClientID: "c-x2", TeamID: joined.TeamID, Secret: joined.Secret}
	rejoined := waitFor(t, again, public.ServerJoined)
	assert.Equal(t, joined.TeamID, rejoined.TeamID)
	snap := waitFor(t, again, public.ServerSnapshot)
	assert.Equal(t, joined.TeamID, snap.State.You)
	assert.Equal(t, "Ana", snap.State.Teams[0].RealName)

	h.do("c-x2", engine.Command{Type: engine.CmdSetFaction, Faction: engine.FactionA})
	changed := waitEvent(t, again, engine.EvtFactionChanged)
	assert.Equal(t, joined.TeamID, changed.Event.TeamID)
}

func TestLobby_ShutdownClosesOutboxesAndPersists(t *testing.T) {
	h := newSession(t, engine.DefaultRules())
	out, _ := h.join("c-x", "Ana", false)

	h.l.Inbox() <- Shutdown{}
	select {
	case <-h.l.Done():
	case <-time.After(within):
		t.Fatalf("lobby did not stop")
	}
	for range out {
	}

	saved, err := h.store.Load(context.Background(), "s-1")
	require.NoError(t, err)
	require.Len(t, saved.Teams, 1)
	assert.Equal(t, "Ana", saved.Teams[0].RealName)
}

// categoryEnd plays one category through the engine directly: every
// question times out, breaks are ended by the host.
// quizLoading returns a seated session waiting for its first question batch.
func quizLoading(t *testing.T) engine.State {
	t.Helper()
	now := time.Now()
	apply := func(s engine.State, cmd engine.Command) engine.State {
		t.Helper()
		cmd.At = now
		_, next, err := engine.Apply(s, cmd)
		require.NoError(t, err, cmd.Type)
		return next
	}
	host := func(cmd engine.Command) engine.Command { cmd.Actor = "host"; return cmd }

	s := engine.NewSession("s-2", "QUIZ42", engine.LangDE, fastRules(), now)
	s = apply(s, engine.Command{Type: engine.CmdJoin, TeamID: "host", Secret: "host-secret", RealName: "Mo", AsHost: true})
	s = apply(s, engine.Command{Type: engine.CmdJoin, TeamID: "x", Secret: "x-secret", RealName: "Ana", Seed: 1})
	s = apply(s, engine.Command{Type: engine.CmdJoin, TeamID: "y", Secret: "y-secret", RealName: "Bo", Seed: 2})
	s = apply(s, host(engine.Command{Type: engine.CmdConfirmHost}))
	s = apply(s, host(engine.Command{Type: engine.CmdOpenCategories}))
	s = apply(s, host(engine.Command{Type: engine.CmdToggleCategory, CategoryID: "sport"}))
	return apply(s, host(engine.Command{Type: engine.CmdStartQuiz}))
}

func categoryEnd(t *testing.T) engine.State {
	t.Helper()
	now := time.Now()
	apply := func(s engine.State, cmd engine.Command) engine.State {
		t.Helper()
		cmd.At = now
		_, next, err := engine.Apply(s, cmd)
		require.NoError(t, err, cmd.Type)
		return next
	}
	host := func(cmd engine.Command) engine.Command { cmd.Actor = "host"; return cmd }

	s := quizLoading(t)
	s = apply(s, engine.Command{Type: engine.CmdQuestionsReady, System: true, Seq: s.Quiz.LoadSeq, Questions: sampleQuestions("sport", 10)})
	for s.Quiz.Stage != engine.StageCategoryEnd {
		switch s.Quiz.Stage {
		case engine.StageQuestion:
			s = apply(s, engine.Command{Type: engine.CmdTimerExpired, System: true, Timer: engine.TimerQuestion, Seq: s.Timer.Seq})
		case engine.StageReveal:
			s = apply(s, host(engine.Command{Type: engine.CmdNextQuestion}))
		case engine.StageBreak:
			s = apply(s, host(engine.Command{Type: engine.CmdEndBreak}))
		}
	}
	return s
}

func TestLobby_LeaderboardGetsRoast(t *testing.T) {
	h := newHarness(t, categoryEnd(t))
	out := h.connect("c-host", 64)
	h.l.Inbox() <- Resume{ClientID: "c-host", TeamID: "host", Secret: "host-secret"}
	waitFor(t, out, public.ServerJoined)

	h.do("c-host", engine.Command{Type: engine.CmdFinishQuiz, SkipBingo: true})
	revealed := waitEvent(t, out, engine.EvtIdentitiesRevealed)
	require.Len(t, revealed.Event.Scoreboard, 2)

	roast := waitEvent(t, out, engine.EvtRoastReady)
	assert.Contains(t, roast.Event.Text, "wins")
	assert.Equal(t, roast.Event.Text, roast.State.Roast)
	assert.Equal(t, string(engine.PhaseLeaderboard), roast.State.Phase)
}

func TestLobby_BingoCardDrawnForActiveCell(t *testing.T) {
	h := newHarness(t, categoryEnd(t))
	host := h.connect("c-host", 64)
	h.l.Inbox() <- Resume{ClientID: "c-host", TeamID: "host", Secret: "host-secret"}
	x := h.connect("c-x", 64)
	h.l.Inbox() <- Resume{ClientID: "c-x", TeamID: "x", Secret: "x-secret"}
	y := h.connect("c-y", 64)
	h.l.Inbox() <- Resume{ClientID: "c-y", TeamID: "y", Secret: "y-secret"}

	h.do("c-host", engine.Command{Type: engine.CmdFinishQuiz})
	started := waitEvent(t, x, engine.EvtBingoStarted)
	assert.Equal(t, "x", started.Event.Turn)

	h.do("c-x", engine.Command{Type: engine.CmdSelectCell, Cell: 4})
	drawn := waitEvent(t, x, engine.EvtCardDrawn)
	require.NotNil(t, drawn.State.Bingo.Card, "performer sees the card")
	assert.Equal(t, "Elfmeter", drawn.State.Bingo.Card.Term)

	yDrawn := waitEvent(t, y, engine.EvtCardDrawn)
	assert.Nil(t, yDrawn.State.Bingo.Card, "other teams do not")
	assert.True(t, yDrawn.State.Bingo.CardReady)

	hostDrawn := waitEvent(t, host, engine.EvtCardDrawn)
	require.NotNil(t, hostDrawn.State.Bingo.Card)

	h.do("c-host", engine.Command{Type: engine.CmdStartPerformance})
	waitEvent(t, y, engine.EvtPerformanceStarted)
	h.do("c-y", engine.Command{Type: engine.CmdBuzz})
	waitEvent(t, y, engine.EvtBuzzed)

	// The short turn delay hands the turn to y on its own.
	advanced := waitEvent(t, y, engine.EvtTurnAdvanced)
	assert.Equal(t, "y", advanced.Event.Turn)
}

func TestLobby_RehydratedTimerIsRearmed(t *testing.T) {
	s := categoryEnd(t)
	s.Quiz.Stage = engine.StageQuestion
	s.CurrentQuestionIndex = 9
	s.Quiz.Answers = map[string]engine.Answer{}
	s.TimerSeq++
	s.Timer = &engine.Timer{Kind: engine.TimerQuestion, Seq: s.TimerSeq, Duration: time.Second, StartedAt: time.Now().Add(-time.Hour)}

	h := newHarness(t, s)
	out := h.connect("watcher", 16)
	v := h.view()
	require.NotNil(t, v.State.Timer)
	assert.WithinDuration(t, time.Now(), v.State.Timer.StartedAt, time.Second)

	closed := waitEvent(t, out, engine.EvtQuestionClosed)
	assert.Equal(t, 9, *closed.Event.QuestionIndex)
}

// eventually polls the actor state until cond holds.
func (h *harness) eventually(cond func(engine.State) bool, msg string) engine.State {
	h.t.Helper()
	deadline := time.Now().Add(within)
	for {
		v := h.view()
		if cond(v.State) {
			return v.State
		}
		require.True(h.t, time.Now().Before(deadline), msg)
		time.Sleep(10 * time.Millisecond)
	}
}

func TestLobby_RehydratedLoadingFetchesQuestions(t *testing.T) {
	s := quizLoading(t)
	require.Equal(t, engine.StageLoading, s.Quiz.Stage)

	h := newHarness(t, s)
	got := h.eventually(func(s engine.State) bool { return len(s.Quiz.Questions) > 0 }, "questions never arrived")
	assert.Len(t, got.Quiz.Questions, engine.QuestionsPerCategory)
	assert.Equal(t, "sport-0", got.Quiz.Questions[0].ID)
	assert.NotEqual(t, engine.StageLoading, got.Quiz.Stage)
}

func TestLobby_RehydratedDrawFetchesCard(t *testing.T) {
	s := categoryEnd(t)
	for _, cmd := range []engine.Command{
		{Type: engine.CmdFinishQuiz, Actor: "host"},
		{Type: engine.CmdSelectCell, Actor: "x", Cell: 4},
	} {
		cmd.At = time.Now()
		var err error
		_, s, err = engine.Apply(s, cmd)
		require.NoError(t, err, cmd.Type)
	}
	require.Nil(t, s.Bingo.Card)

	h := newHarness(t, s)
	got := h.eventually(func(s engine.State) bool { return s.Bingo.Card != nil }, "card never arrived")
	assert.Equal(t, "Elfmeter", got.Bingo.Card.Term)
	assert.Equal(t, 4, got.Bingo.ActiveCell)
}
