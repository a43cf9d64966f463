package engine

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)

func mustApply(t *testing.T, s State, cmd Command) ([]Event, State) {
	t.Helper()
	if cmd.At.IsZero() {
		cmd.At = t0
	}
	events, next, err := Apply(s, cmd)
	require.NoError(t, err, "command %s", cmd.Type)
	return events, next
}

func host(cmd Command) Command {
	cmd.Actor = "host"
	return cmd
}

func system(cmd Command) Command {
	cmd.System = true
	return cmd
}

// newLobby returns a LOBBY session with a confirmed host and the given players.
func newLobby(t *testing.T, players ...string) State {
	t.Helper()
	s := NewSession("s1", "abc123", LangDE, DefaultRules(), t0)
	_, s = mustApply(t, s, Command{Type: CmdJoin, TeamID: "host", RealName: "Mod", AsHost: true, Secret: "host-secret"})
	_, s = mustApply(t, s, host(Command{Type: CmdConfirmHost}))
	for i, p := range players {
		_, s = mustApply(t, s, Command{Type: CmdJoin, TeamID: p, RealName: "Real " + p, Secret: p + "-secret", Seed: uint64(i)})
	}
	return s
}

func sampleQuestions(category string) []Question {
	qs := make([]Question, QuestionsPerCategory)
	for i := range qs {
		qs[i] = Question{
			ID:           fmt.Sprintf("%s-%d", category, i),
			Text:         LocalizedText{Primary: fmt.Sprintf("Frage %d", i), Secondary: fmt.Sprintf("Question %d", i)},
			Options:      [4]string{"A", "B", "C", "D"},
			CorrectIndex: i % OptionsPerQuestion,
		}
	}
	return qs
}

// newQuiz returns a session on question 0 of the first category.
func newQuiz(t *testing.T, categories []string, players ...string) State {
	t.Helper()
	s := newLobby(t, players...)
	_, s = mustApply(t, s, host(Command{Type: CmdOpenCategories}))
	for _, c := range categories {
		_, s = mustApply(t, s, host(Command{Type: CmdToggleCategory, CategoryID: c}))
	}
	_, s = mustApply(t, s, host(Command{Type: CmdStartQuiz}))
	_, s = mustApply(t, s, system(Command{Type: CmdQuestionsReady, Seq: s.Quiz.LoadSeq, Questions: sampleQuestions(categories[0])}))
	return s
}

// answerAll lets every player answer the open question with the correct option.
func answerAll(t *testing.T, s State) State {
	t.Helper()
	q, ok := s.CurrentQuestion()
	require.True(t, ok)
	for _, p := range s.Players() {
		_, s = mustApply(t, s, Command{Type: CmdSubmitAnswer, Actor: p.ID, QuestionIndex: s.CurrentQuestionIndex, Option: q.CorrectIndex})
	}
	return s
}

// playCategory runs the open category through to its final scoreboard.
func playCategory(t *testing.T, s State) State {
	t.Helper()
	for {
		s = answerAll(t, s)
		_, s = mustApply(t, s, host(Command{Type: CmdNextQuestion}))
		switch s.Quiz.Stage {
		case StageBreak:
			_, s = mustApply(t, s, host(Command{Type: CmdEndBreak}))
		case StageCategoryEnd:
			return s
		}
	}
}

// newBingo returns a session in BINGO with a fresh grid.
func newBingo(t *testing.T, players ...string) State {
	t.Helper()
	s := newQuiz(t, []string{"musik_hits", "sport"}, players...)
	s = playCategory(t, s)
	_, s = mustApply(t, s, host(Command{Type: CmdNextCategory}))
	_, s = mustApply(t, s, system(Command{Type: CmdQuestionsReady, Seq: s.Quiz.LoadSeq, Questions: sampleQuestions("sport")}))
	s = playCategory(t, s)
	_, s = mustApply(t, s, host(Command{Type: CmdFinishQuiz, Seed: 7}))
	require.Equal(t, PhaseBingo, s.Phase)
	return s
}

func sampleCard() *TabooCard {
	return &TabooCard{
		Term:       "Schlagzeug",
		Forbidden:  [5]string{"Trommel", "Band", "Stock", "Rhythmus", "Becken"},
		Hint:       "Rock",
		Difficulty: 3,
	}
}

// perform selects cell for the team on turn and starts the performance.
func perform(t *testing.T, s State, team string, cell int) State {
	t.Helper()
	_, s = mustApply(t, s, Command{Type: CmdSelectCell, Actor: team, Cell: cell})
	_, s = mustApply(t, s, system(Command{Type: CmdCardReady, Seq: s.Bingo.DrawSeq, Card: sampleCard()}))
	_, s = mustApply(t, s, host(Command{Type: CmdStartPerformance}))
	return s
}

func expire(t *testing.T, s State) ([]Event, State) {
	t.Helper()
	require.NotNil(t, s.Timer, "no timer armed")
	return mustApply(t, s, system(Command{Type: CmdTimerExpired, Timer: s.Timer.Kind, Seq: s.Timer.Seq}))
}

func containsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}
