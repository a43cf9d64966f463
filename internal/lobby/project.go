package lobby

import (
	"slices"
	"time"

	"github.com/DoyleJ11/party-quiz-backend/internal/engine"
	"github.com/DoyleJ11/party-quiz-backend/pkg/types"
)

// Project renders s for one viewer. viewer is the team bound to the
// connection ("" for anonymous subscribers and the public HTTP query).
func Project(s engine.State, viewer string, online map[string]bool, now time.Time) types.Snapshot {
	host, _ := s.Host()
	isHost := viewer != "" && viewer == host.ID

	snap := types.Snapshot{
		SessionID:          s.SessionID,
		Code:               s.JoinCode,
		Language:           string(s.Language),
		Phase:              string(s.Phase),
		CategoryIndex:      s.CurrentCategoryIndex,
		QuestionIndex:      s.CurrentQuestionIndex,
		SelectedCategories: slices.Clone(s.SelectedCategoryIDs),
		TTSEnabled:         s.TTSEnabled,
		ShowAnswers:        s.ShowAnswers,
		HostConfirmed:      s.HostConfirmed,
		IdentitiesRevealed: s.IdentitiesRevealed,
		You:                viewer,
		Teams:              make([]types.Team, 0, len(s.Teams)),
		Roast:              s.Roast,
	}
	for _, t := range s.Teams {
		tv := types.Team{
			ID:         t.ID,
			SecretName: t.SecretName,
			Avatar:     t.Avatar,
			Score:      t.Score,
			IsHost:     t.IsHost,
			Faction:    string(t.Faction),
			Online:     online[t.ID],
		}
		if s.IdentitiesRevealed || t.ID == viewer {
			tv.RealName = t.RealName
		}
		snap.Teams = append(snap.Teams, tv)
	}
	if s.Phase == engine.PhaseQuiz {
		snap.Quiz = projectQuiz(s, viewer, isHost)
	}
	if s.Bingo != nil && (s.Phase == engine.PhaseBingo || s.Phase == engine.PhaseLeaderboard) {
		snap.Bingo = projectBingo(s, viewer, isHost)
	}
	if s.Timer != nil {
		snap.Timer = &types.Timer{
			Kind:        string(s.Timer.Kind),
			Seq:         s.Timer.Seq,
			DurationMs:  s.Timer.Duration.Milliseconds(),
			RemainingMs: s.Timer.Remaining(now).Milliseconds(),
		}
	}
	return snap
}

func projectQuiz(s engine.State, viewer string, isHost bool) *types.Quiz {
	q := &types.Quiz{
		Stage:      string(s.Quiz.Stage),
		CategoryID: s.CurrentCategory(),
		Answered:   len(s.Quiz.Answers),
		Expected:   len(s.Players()),
	}
	if isHost {
		q.Error = s.Quiz.LastError
	}

	switch s.Quiz.Stage {
	case engine.StageQuestion, engine.StageReveal:
		cur, ok := s.CurrentQuestion()
		if !ok {
			break
		}
		q.Question = &types.Question{
			ID:          cur.ID,
			Index:       cur.Index,
			Text:        cur.Text.Primary,
			Translation: cur.Text.Secondary,
			Options:     cur.Options,
		}
		revealed := s.Quiz.Stage == engine.StageReveal
		if revealed || (isHost && s.ShowAnswers) {
			q.Correct = &cur.CorrectIndex
		}
		if a, ok := s.Quiz.Answers[viewer]; ok {
			q.MyAnswer = &types.Answer{Option: a.Option, Rank: a.Rank}
			if revealed {
				q.MyAnswer.Correct = a.Correct
				q.MyAnswer.Points = a.Points
			}
		}
		if revealed {
			q.Deltas = make(map[string]int, len(s.Quiz.Answers))
			for id, a := range s.Quiz.Answers {
				q.Deltas[id] = a.Points
			}
		}
	case engine.StageBreak, engine.StageCategoryEnd:
		q.Scoreboard = scoreLines(engine.Scoreboard(s, s.IdentitiesRevealed))
	}
	return q
}

func projectBingo(s engine.State, viewer string, isHost bool) *types.Bingo {
	b := s.Bingo
	out := &types.Bingo{
		Stage:       string(b.Stage),
		Cells:       make([]types.Cell, 0, len(b.Cells)),
		Factions:    b.Factions,
		Turn:        s.OnTurn(),
		ActiveCell:  b.ActiveCell,
		PerformerID: b.PerformerID,
		CardReady:   b.Card != nil,
		BuzzedBy:    b.BuzzedBy,
		Outcome:     b.Outcome,
		Winner:      b.WinnerKey,
		WinLine:     slices.Clone(b.WinLine),
	}
	if isHost {
		out.DrawError = b.DrawError
	}
	for _, c := range b.Cells {
		cv := types.Cell{Index: c.Index, Category: c.Category, Activity: string(c.Activity), Status: string(c.Status)}
		if c.Status == engine.CellWon {
			cv.WonBy = c.WonByTeamID
			if b.Factions {
				cv.WonBy = string(c.WonByFaction)
			}
		}
		out.Cells = append(out.Cells, cv)
	}
	// The card is for the performer and the host until the cell is resolved.
	if b.Card != nil && (isHost || viewer == b.PerformerID || b.Stage == engine.BingoResult) {
		out.Card = &types.Card{
			Term:       b.Card.Term,
			Forbidden:  slices.Clone(b.Card.Forbidden[:]),
			Hint:       b.Card.Hint,
			Difficulty: b.Card.Difficulty,
			Activity:   string(b.Card.Activity),
			Category:   b.Card.Category,
		}
	}
	return out
}

func scoreLines(board []engine.ScoreLine) []types.ScoreLine {
	out := make([]types.ScoreLine, len(board))
	for i, l := range board {
		out[i] = types.ScoreLine(l)
	}
	return out
}
