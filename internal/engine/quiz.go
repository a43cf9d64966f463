package engine

import (
	"fmt"
	"strings"
	"time"
)

// requestQuestions resets the quiz block for the current category and asks
// the lobby to fetch its questions. LoadSeq tags the request so late results
// of an abandoned request can be told apart.
func requestQuestions(s *State) Event {
	s.Quiz = Quiz{Stage: StageLoading, LoadSeq: s.Quiz.LoadSeq + 1}
	s.CurrentQuestionIndex = 0
	return Event{
		Type:          EvtQuestionsRequested,
		CategoryID:    s.CurrentCategory(),
		CategoryIndex: intp(s.CurrentCategoryIndex),
		QuestionIndex: intp(0),
		Seq:           s.Quiz.LoadSeq,
	}
}

func validateQuestions(qs []Question) error {
	if len(qs) != QuestionsPerCategory {
		return fmt.Errorf("expected %d questions, got %d", QuestionsPerCategory, len(qs))
	}
	for i, q := range qs {
		if strings.TrimSpace(q.Text.Primary) == "" {
			return fmt.Errorf("question %d has no text", i)
		}
		for j, o := range q.Options {
			if strings.TrimSpace(o) == "" {
				return fmt.Errorf("question %d option %d is empty", i, j)
			}
		}
		if q.CorrectIndex < 0 || q.CorrectIndex >= OptionsPerQuestion {
			return fmt.Errorf("question %d has correct index %d", i, q.CorrectIndex)
		}
	}
	return nil
}

func loadingFor(s *State, seq int) error {
	if s.Phase != PhaseQuiz || s.Quiz.Stage != StageLoading || s.Quiz.LoadSeq != seq {
		return stale("question batch #%d is not awaited", seq)
	}
	return nil
}

func generationFailed(s *State, reason string) []Event {
	s.Quiz.LastError = reason
	return []Event{{
		Type:          EvtGenerationFailed,
		HostOnly:      true,
		CategoryID:    s.CurrentCategory(),
		CategoryIndex: intp(s.CurrentCategoryIndex),
		Reason:        reason,
		Seq:           s.Quiz.LoadSeq,
	}}
}

func applyQuestionsReady(s *State, cmd Command) ([]Event, error) {
	if err := requireSystem(cmd); err != nil {
		return nil, err
	}
	if err := loadingFor(s, cmd.Seq); err != nil {
		return nil, err
	}
	if err := validateQuestions(cmd.Questions); err != nil {
		return generationFailed(s, err.Error()), nil
	}

	qs := make([]Question, len(cmd.Questions))
	for i, q := range cmd.Questions {
		q.Index = i
		q.CategoryID = s.CurrentCategory()
		qs[i] = q
	}
	s.Quiz.Questions = qs
	s.Quiz.LastError = ""
	return startQuestion(s, 0, cmd.At), nil
}

func applyQuestionsFailed(s *State, cmd Command) ([]Event, error) {
	if err := requireSystem(cmd); err != nil {
		return nil, err
	}
	if err := loadingFor(s, cmd.Seq); err != nil {
		return nil, err
	}
	reason := cmd.Reason
	if reason == "" {
		reason = ErrGeneration.Error()
	}
	return generationFailed(s, reason), nil
}

func applyRetryGeneration(s *State, cmd Command) ([]Event, error) {
	if err := requireHost(s, cmd); err != nil {
		return nil, err
	}
	if err := requirePhase(s, PhaseQuiz); err != nil {
		return nil, err
	}
	if s.Quiz.Stage != StageLoading {
		return nil, precondition("questions for this category are already loaded")
	}
	return []Event{requestQuestions(s)}, nil
}

func startQuestion(s *State, idx int, at time.Time) []Event {
	s.CurrentQuestionIndex = idx
	s.Quiz.Stage = StageQuestion
	s.Quiz.Answers = map[string]Answer{}
	d := time.Duration(s.Rules.QuestionTimerSec) * time.Second
	s.armTimer(TimerQuestion, d, at)

	p := s.Quiz.Questions[idx].Prompt()
	return []Event{{
		Type:          EvtQuestionStarted,
		CategoryIndex: intp(s.CurrentCategoryIndex),
		QuestionIndex: intp(idx),
		Prompt:        &p,
		DurationMs:    d.Milliseconds(),
	}}
}

func speedBonus(rank int) int {
	return max(0, SpeedBonusMax-SpeedBonusStep*(rank-1))
}

func applySubmitAnswer(s *State, cmd Command) ([]Event, error) {
	t, err := requirePlayer(s, cmd)
	if err != nil {
		return nil, err
	}
	if err := requirePhase(s, PhaseQuiz); err != nil {
		return nil, err
	}
	if s.Quiz.Stage != StageQuestion {
		return nil, precondition("no question is open")
	}
	if cmd.QuestionIndex != s.CurrentQuestionIndex {
		return nil, invalidMove("question %d is not the open question", cmd.QuestionIndex)
	}
	if cmd.Option < 0 || cmd.Option >= OptionsPerQuestion {
		return nil, invalidMove("option %d does not exist", cmd.Option)
	}
	if _, dup := s.Quiz.Answers[t.ID]; dup {
		return nil, invalidMove("already answered this question")
	}

	q, _ := s.CurrentQuestion()
	if s.Quiz.Answers == nil {
		s.Quiz.Answers = make(map[string]Answer)
	}
	rank := len(s.Quiz.Answers) + 1
	s.Quiz.Answers[t.ID] = Answer{
		TeamID:  t.ID,
		Option:  cmd.Option,
		Rank:    rank,
		Correct: cmd.Option == q.CorrectIndex,
	}

	expected := len(s.Players())
	events := []Event{
		{Type: EvtAnswerAccepted, To: t.ID, QuestionIndex: intp(s.CurrentQuestionIndex), Rank: rank},
		{Type: EvtAnswerProgress, QuestionIndex: intp(s.CurrentQuestionIndex), Answered: len(s.Quiz.Answers), Expected: expected},
	}
	if len(s.Quiz.Answers) >= expected {
		events = append(events, closeQuestion(s)...)
	}
	return events, nil
}

// closeQuestion records NoAnswer for every silent player, applies scores
// and reveals the correct option.
func closeQuestion(s *State) []Event {
	q, _ := s.CurrentQuestion()
	// A question reloaded from storage before anyone answered comes back nil.
	if s.Quiz.Answers == nil {
		s.Quiz.Answers = make(map[string]Answer)
	}
	deltas := make(map[string]int)
	for _, p := range s.Players() {
		a, ok := s.Quiz.Answers[p.ID]
		if !ok {
			a = Answer{TeamID: p.ID, Option: NoAnswer}
		}
		if a.Correct {
			a.Points = PointsCorrect + speedBonus(a.Rank)
		}
		s.Quiz.Answers[p.ID] = a
		s.team(p.ID).Score += a.Points
		deltas[p.ID] = a.Points
	}
	s.clearTimer()
	s.Quiz.Stage = StageReveal
	return []Event{{
		Type:          EvtQuestionClosed,
		QuestionIndex: intp(s.CurrentQuestionIndex),
		CorrectIndex:  intp(q.CorrectIndex),
		Deltas:        deltas,
	}}
}

func applyNextQuestion(s *State, cmd Command) ([]Event, error) {
	if err := requireHost(s, cmd); err != nil {
		return nil, err
	}
	if err := requirePhase(s, PhaseQuiz); err != nil {
		return nil, err
	}
	if s.Quiz.Stage != StageReveal {
		return nil, precondition("the current question is not closed yet")
	}

	switch idx := s.CurrentQuestionIndex; {
	case idx == BreakAfterIndex:
		s.Quiz.Stage = StageBreak
		d := time.Duration(s.Rules.BreakTimerSec) * time.Second
		s.armTimer(TimerBreak, d, cmd.At)
		return []Event{{
			Type:          EvtBreakStarted,
			QuestionIndex: intp(idx),
			Scoreboard:    Scoreboard(*s, false),
			DurationMs:    d.Milliseconds(),
		}}, nil
	case idx >= len(s.Quiz.Questions)-1:
		s.Quiz.Stage = StageCategoryEnd
		return []Event{{
			Type:          EvtCategoryCompleted,
			CategoryIndex: intp(s.CurrentCategoryIndex),
			CategoryID:    s.CurrentCategory(),
			Scoreboard:    Scoreboard(*s, false),
		}}, nil
	default:
		return startQuestion(s, idx+1, cmd.At), nil
	}
}

func endBreak(s *State, at time.Time) ([]Event, error) {
	if s.Phase != PhaseQuiz || s.Quiz.Stage != StageBreak {
		return nil, precondition("no break is running")
	}
	s.clearTimer()
	events := []Event{{Type: EvtBreakEnded}}
	return append(events, startQuestion(s, BreakAfterIndex+1, at)...), nil
}

func applyEndBreak(s *State, cmd Command) ([]Event, error) {
	if err := requireHost(s, cmd); err != nil {
		return nil, err
	}
	return endBreak(s, cmd.At)
}

func lastCategory(s *State) bool {
	return s.CurrentCategoryIndex >= len(s.SelectedCategoryIDs)-1
}

func applyNextCategory(s *State, cmd Command) ([]Event, error) {
	if err := requireHost(s, cmd); err != nil {
		return nil, err
	}
	if err := requirePhase(s, PhaseQuiz); err != nil {
		return nil, err
	}
	if s.Quiz.Stage != StageCategoryEnd {
		return nil, precondition("the current category is not finished")
	}
	if lastCategory(s) {
		return nil, precondition("no categories left, finish the quiz instead")
	}
	s.CurrentCategoryIndex++
	return []Event{requestQuestions(s)}, nil
}

func applyFinishQuiz(s *State, cmd Command) ([]Event, error) {
	if err := requireHost(s, cmd); err != nil {
		return nil, err
	}
	if err := requirePhase(s, PhaseQuiz); err != nil {
		return nil, err
	}
	if s.Quiz.Stage != StageCategoryEnd || !lastCategory(s) {
		return nil, precondition("categories remain to be played")
	}
	if !cmd.SkipBingo && len(turnSlots(s)) < 2 {
		return nil, precondition("bingo needs at least two players or two factions")
	}

	s.IdentitiesRevealed = true
	s.Quiz = Quiz{LoadSeq: s.Quiz.LoadSeq}
	events := []Event{{Type: EvtIdentitiesRevealed, Scoreboard: Scoreboard(*s, true)}}

	if cmd.SkipBingo {
		evt, err := transition(s, PhaseLeaderboard)
		if err != nil {
			return nil, err
		}
		return append(events, evt), nil
	}
	evt, err := transition(s, PhaseBingo)
	if err != nil {
		return nil, err
	}
	return append(events, evt, startBingo(s, cmd.Seed)), nil
}
