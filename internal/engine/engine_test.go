package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSession_StartsInLobby(t *testing.T) {
	s := NewSession("s1", "ab12cd", LangDE, DefaultRules(), t0)

	assert.Equal(t, "AB12CD", s.JoinCode)
	assert.Len(t, s.JoinCode, 6)
	assert.Equal(t, PhaseLobby, s.Phase)
	assert.Empty(t, s.Teams)
	assert.True(t, s.Phase.Valid())
}

func TestOpenCategories_Preconditions(t *testing.T) {
	cases := []struct {
		name    string
		setup   func(t *testing.T) State
		actor   string
		wantErr error
	}{
		{
			name: "host alone",
			setup: func(t *testing.T) State {
				return newLobby(t)
			},
			actor:   "host",
			wantErr: ErrPrecondition,
		},
		{
			name: "host not confirmed",
			setup: func(t *testing.T) State {
				s := NewSession("s1", "ABC123", LangDE, DefaultRules(), t0)
				_, s = mustApply(t, s, Command{Type: CmdJoin, TeamID: "host", RealName: "Mod", AsHost: true})
				_, s = mustApply(t, s, Command{Type: CmdJoin, TeamID: "ana", RealName: "Ana & Bo"})
				return s
			},
			actor:   "host",
			wantErr: ErrPrecondition,
		},
		{
			name: "player tries to advance",
			setup: func(t *testing.T) State {
				return newLobby(t, "ana")
			},
			actor:   "ana",
			wantErr: ErrUnauthorized,
		},
		{
			name: "host with one player",
			setup: func(t *testing.T) State {
				return newLobby(t, "ana")
			},
			actor: "host",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := tc.setup(t)
			events, next, err := Apply(s, Command{Type: CmdOpenCategories, Actor: tc.actor})
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				assert.Equal(t, PhaseLobby, next.Phase)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, PhaseCategorySelect, next.Phase)
			require.Len(t, events, 1)
			assert.Equal(t, EvtPhaseChanged, events[0].Type)
			assert.Equal(t, PhaseCategorySelect, events[0].Phase)
		})
	}
}

func TestScenario_SecondJoinUnlocksCategorySelect(t *testing.T) {
	s := newLobby(t)

	_, _, err := Apply(s, host(Command{Type: CmdOpenCategories}))
	var re *RuleError
	require.True(t, errors.As(err, &re))
	assert.ErrorIs(t, err, ErrPrecondition)
	assert.Contains(t, re.Reason, "at least 2 teams")

	_, s = mustApply(t, s, Command{Type: CmdJoin, TeamID: "ana", RealName: "Ana & Bo"})
	_, s = mustApply(t, s, host(Command{Type: CmdOpenCategories}))
	assert.Equal(t, PhaseCategorySelect, s.Phase)
}

func TestStartQuiz_RequiresACategory(t *testing.T) {
	s := newLobby(t, "ana")
	_, s = mustApply(t, s, host(Command{Type: CmdOpenCategories}))

	_, next, err := Apply(s, host(Command{Type: CmdStartQuiz}))
	require.ErrorIs(t, err, ErrPrecondition)
	assert.Equal(t, PhaseCategorySelect, next.Phase)
}

func TestStartQuiz_InitialisesIndicesAndRequestsQuestions(t *testing.T) {
	s := newLobby(t, "ana")
	s.CurrentQuestionIndex = 3
	_, s = mustApply(t, s, host(Command{Type: CmdOpenCategories}))
	_, s = mustApply(t, s, host(Command{Type: CmdToggleCategory, CategoryID: "musik_hits"}))
	_, s = mustApply(t, s, host(Command{Type: CmdToggleCategory, CategoryID: "sport"}))

	events, s := mustApply(t, s, host(Command{Type: CmdStartQuiz}))

	assert.Equal(t, PhaseQuiz, s.Phase)
	assert.Equal(t, 0, s.CurrentCategoryIndex)
	assert.Equal(t, 0, s.CurrentQuestionIndex)
	assert.Equal(t, []string{"musik_hits", "sport"}, s.SelectedCategoryIDs)
	assert.Equal(t, StageLoading, s.Quiz.Stage)

	require.Len(t, events, 2)
	assert.Equal(t, EvtPhaseChanged, events[0].Type)
	assert.Equal(t, EvtQuestionsRequested, events[1].Type)
	assert.Equal(t, "musik_hits", events[1].CategoryID)
	assert.Equal(t, s.Quiz.LoadSeq, events[1].Seq)
}

func TestToggleCategory_KeepsSelectionOrder(t *testing.T) {
	s := newLobby(t, "ana")
	_, s = mustApply(t, s, host(Command{Type: CmdOpenCategories}))
	for _, c := range []string{"sport", "film", "musik_hits", "film"} {
		_, s = mustApply(t, s, host(Command{Type: CmdToggleCategory, CategoryID: c}))
	}
	assert.Equal(t, []string{"sport", "musik_hits"}, s.SelectedCategoryIDs)
}

func TestApply_RejectedCommandLeavesStateUntouched(t *testing.T) {
	s := newQuiz(t, []string{"sport"}, "ana", "bo")
	_, s = mustApply(t, s, Command{Type: CmdSubmitAnswer, Actor: "ana", QuestionIndex: 0, Option: 2})
	before := s.Clone()

	_, next, err := Apply(s, Command{Type: CmdSubmitAnswer, Actor: "ana", QuestionIndex: 0, Option: 1})
	require.ErrorIs(t, err, ErrInvalidMove)
	assert.Equal(t, before, next)
	assert.Equal(t, before, s)
}

func TestApply_DoesNotAliasPreviousState(t *testing.T) {
	s := newLobby(t, "ana")
	_, s = mustApply(t, s, host(Command{Type: CmdOpenCategories}))
	_, next := mustApply(t, s, host(Command{Type: CmdToggleCategory, CategoryID: "sport"}))

	assert.Empty(t, s.SelectedCategoryIDs)
	assert.Equal(t, []string{"sport"}, next.SelectedCategoryIDs)
}

func TestCanTransition_ForwardOnly(t *testing.T) {
	order := []Phase{PhaseLobby, PhaseCategorySelect, PhaseQuiz, PhaseBingo, PhaseLeaderboard, PhaseFinished}
	allowed := map[[2]Phase]bool{
		{PhaseLobby, PhaseCategorySelect}: true,
		{PhaseCategorySelect, PhaseQuiz}:  true,
		{PhaseQuiz, PhaseBingo}:           true,
		{PhaseQuiz, PhaseLeaderboard}:     true,
		{PhaseBingo, PhaseLeaderboard}:    true,
		{PhaseLeaderboard, PhaseFinished}: true,
	}
	for _, from := range order {
		for _, to := range order {
			assert.Equal(t, allowed[[2]Phase{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
	assert.False(t, Phase("BREAK").Valid())
}

func TestFinishedSessionRejectsCommands(t *testing.T) {
	s := newLobby(t, "ana")
	s.Phase = PhaseLeaderboard
	_, s = mustApply(t, s, host(Command{Type: CmdFinish}))
	require.Equal(t, PhaseFinished, s.Phase)

	_, _, err := Apply(s, Command{Type: CmdJoin, TeamID: "late", RealName: "Late"})
	assert.ErrorIs(t, err, ErrPrecondition)
	_, _, err = Apply(s, Command{Type: CmdReact, Actor: "ana", Text: "🎉"})
	assert.ErrorIs(t, err, ErrPrecondition)
}

func TestSystemCommandsRejectedFromClients(t *testing.T) {
	s := newQuiz(t, []string{"sport"}, "ana")

	for _, cmd := range []Command{
		{Type: CmdTimerExpired, Actor: "host", Timer: TimerQuestion, Seq: s.Timer.Seq},
		{Type: CmdQuestionsReady, Actor: "ana", Seq: s.Quiz.LoadSeq},
		{Type: CmdRoastReady, Text: "haha"},
	} {
		_, _, err := Apply(s, cmd)
		assert.ErrorIs(t, err, ErrUnauthorized, "%s", cmd.Type)
	}
}

func TestEphemeralEvents(t *testing.T) {
	s := newLobby(t, "ana")

	events, next := mustApply(t, s, Command{Type: CmdReact, Actor: "ana", Text: "🔥"})
	require.Len(t, events, 1)
	assert.True(t, events[0].Ephemeral())
	assert.Equal(t, ReactionTTLms, events[0].TTLms)
	assert.Equal(t, s, next)

	events, _ = mustApply(t, s, Command{Type: CmdQuickMessage, Actor: "ana", Text: "Weiter!"})
	assert.Equal(t, QuickMessageTTL, events[0].TTLms)

	_, _, err := Apply(s, Command{Type: CmdReact, Text: "🔥"})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestUpdateSettings(t *testing.T) {
	s := newLobby(t, "ana")
	on := true

	_, s = mustApply(t, s, host(Command{Type: CmdUpdateSettings, TTSEnabled: &on}))
	assert.True(t, s.TTSEnabled)
	assert.False(t, s.ShowAnswers)

	_, _, err := Apply(s, Command{Type: CmdUpdateSettings, Actor: "ana", ShowAnswers: &on})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestParseLanguage(t *testing.T) {
	cases := []struct {
		in      string
		want    Language
		wantErr bool
	}{
		{in: "de", want: LangDE},
		{in: "de-AT", want: LangDE},
		{in: "en", want: LangEN},
		{in: "en-GB", want: LangEN},
		{in: "fr", wantErr: true},
		{in: "!!", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseLanguage(tc.in)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrPrecondition)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestKind(t *testing.T) {
	assert.Equal(t, "precondition", Kind(precondition("x")))
	assert.Equal(t, "unauthorized", Kind(unauthorized("x")))
	assert.Equal(t, "invalid_move", Kind(invalidMove("x")))
	assert.Equal(t, "not_found", Kind(notFound("x")))
	assert.Equal(t, "internal", Kind(errors.New("boom")))
}
