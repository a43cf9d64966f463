package lobby

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/DoyleJ11/party-quiz-backend/internal/content"
	"github.com/DoyleJ11/party-quiz-backend/internal/engine"
)

var errNoGenerator = errors.New("no content generator configured")

// dispatch starts the slow work an event asks for. Results come back
// through the inbox as system commands; nothing here blocks the loop.
func (l *Lobby) dispatch(e engine.Event) {
	switch e.Type {
	case engine.EvtQuestionsRequested:
		l.fetchQuestions(e.CategoryID, e.Seq)
	case engine.EvtCardRequested:
		if e.Cell != nil {
			l.drawCard(*e.Cell, e.Seq)
		}
	case engine.EvtPhaseChanged:
		if e.Phase == engine.PhaseLeaderboard {
			l.requestRoast()
		}
	case engine.EvtQuestionStarted:
		if l.state.TTSEnabled && e.Prompt != nil {
			l.speak(e.Prompt.Index, e.Prompt.Text.Primary)
		}
	}
}

func (l *Lobby) background(fn func(ctx context.Context)) {
	go func() {
		ctx, cancel := context.WithTimeout(l.ctx, collaboratorLimit)
		defer cancel()
		fn(ctx)
	}()
}

func (l *Lobby) fetchQuestions(category string, seq int) {
	gen, lang := l.deps.Generator, l.state.Language
	l.background(func(ctx context.Context) {
		if gen == nil {
			l.post(systemResult{cmd: engine.Command{Type: engine.CmdQuestionsFailed, Seq: seq, Reason: errNoGenerator.Error()}})
			return
		}
		qs, err := gen.Questions(ctx, category, lang, engine.QuestionsPerCategory)
		if err != nil {
			l.log.Warn("question generation failed", zap.String("category", category), zap.Int("seq", seq), zap.Error(err))
			l.post(systemResult{cmd: engine.Command{Type: engine.CmdQuestionsFailed, Seq: seq, Reason: err.Error()}})
			return
		}
		l.post(systemResult{cmd: engine.Command{Type: engine.CmdQuestionsReady, Seq: seq, Questions: qs}})
	})
}

func (l *Lobby) drawCard(cell, seq int) {
	if l.state.Bingo == nil || cell < 0 || cell >= engine.GridCells {
		return
	}
	gen := l.deps.Generator
	c := l.state.Bingo.Cells[cell]
	req := content.CardRequest{
		Category:   c.Category,
		Activity:   c.Activity,
		Language:   l.state.Language,
		Difficulty: l.state.Rules.BingoDifficulty,
	}
	l.background(func(ctx context.Context) {
		if gen == nil {
			l.post(systemResult{cmd: engine.Command{Type: engine.CmdCardFailed, Seq: seq, Reason: errNoGenerator.Error()}})
			return
		}
		card, err := gen.Card(ctx, req)
		if err != nil {
			l.log.Warn("card draw failed", zap.Int("cell", cell), zap.Int("seq", seq), zap.Error(err))
			l.post(systemResult{cmd: engine.Command{Type: engine.CmdCardFailed, Seq: seq, Reason: err.Error()}})
			return
		}
		l.post(systemResult{cmd: engine.Command{Type: engine.CmdCardReady, Seq: seq, Card: &card}})
	})
}

// requestRoast is best effort: without a roast the leaderboard just has none.
func (l *Lobby) requestRoast() {
	gen, lang := l.deps.Generator, l.state.Language
	board := engine.Scoreboard(l.state, true)
	if gen == nil || len(board) == 0 {
		return
	}
	l.background(func(ctx context.Context) {
		text, err := gen.Roast(ctx, lang, board)
		if err != nil {
			l.log.Warn("roast failed", zap.Error(err))
			return
		}
		l.post(systemResult{cmd: engine.Command{Type: engine.CmdRoastReady, Text: text}})
	})
}

func (l *Lobby) speak(questionIndex int, text string) {
	sp, lang := l.deps.Speaker, l.state.Language
	if sp == nil {
		return
	}
	l.background(func(ctx context.Context) {
		audio, err := sp.Speak(ctx, text, lang)
		if err != nil {
			l.log.Debug("speech failed", zap.Int("question_index", questionIndex), zap.Error(err))
			return
		}
		l.post(speechReady{questionIndex: questionIndex, audio: audio})
	})
}
