package engine

import (
	"maps"
	"slices"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/language"
)

func DefaultRules() Rules {
	return Rules{
		QuestionTimerSec: 60,
		BreakTimerSec:    180,
		PerformTimerSec:  60,
		TurnDelayMs:      2500,
		BingoDifficulty:  3,
		MinTeams:         2,
	}
}

func NewSession(id, code string, lang Language, rules Rules, now time.Time) State {
	return State{
		SessionID:           id,
		JoinCode:            strings.ToUpper(code),
		Language:            lang,
		Phase:               PhaseLobby,
		SelectedCategoryIDs: []string{},
		Rules:               rules,
		Teams:               []Team{},
		CreatedAt:           now,
	}
}

var (
	supportedTags  = []language.Tag{language.German, language.English}
	supportedLangs = []Language{LangDE, LangEN}
	langMatcher    = language.NewMatcher(supportedTags)
)

// ParseLanguage accepts any BCP 47 tag that matches one of the two
// supported locales ("de", "de-AT", "en-GB", ...).
func ParseLanguage(raw string) (Language, error) {
	tag, err := language.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", precondition("unknown language %q", raw)
	}
	_, idx, conf := langMatcher.Match(tag)
	if conf == language.No {
		return "", precondition("language %q is not supported", raw)
	}
	return supportedLangs[idx], nil
}

// Clone deep-copies everything Apply may mutate.
func (s State) Clone() State {
	c := s
	c.SelectedCategoryIDs = slices.Clone(s.SelectedCategoryIDs)
	c.Teams = slices.Clone(s.Teams)
	c.Quiz.Questions = slices.Clone(s.Quiz.Questions)
	c.Quiz.Answers = maps.Clone(s.Quiz.Answers)
	if s.Bingo != nil {
		b := *s.Bingo
		b.WinLine = slices.Clone(s.Bingo.WinLine)
		b.Slots = slices.Clone(s.Bingo.Slots)
		if s.Bingo.Card != nil {
			card := *s.Bingo.Card
			b.Card = &card
		}
		c.Bingo = &b
	}
	if s.Timer != nil {
		t := *s.Timer
		c.Timer = &t
	}
	return c
}

func (s *State) team(id string) *Team {
	if id == "" {
		return nil
	}
	for i := range s.Teams {
		if s.Teams[i].ID == id {
			return &s.Teams[i]
		}
	}
	return nil
}

func (s State) Team(id string) (Team, bool) {
	if t := s.team(id); t != nil {
		return *t, true
	}
	return Team{}, false
}

func (s State) Host() (Team, bool) {
	for _, t := range s.Teams {
		if t.IsHost {
			return t, true
		}
	}
	return Team{}, false
}

// Players returns the non-host teams in join order.
func (s State) Players() []Team {
	out := make([]Team, 0, len(s.Teams))
	for _, t := range s.Teams {
		if !t.IsHost {
			out = append(out, t)
		}
	}
	return out
}

// CurrentQuestion returns the question on screen, if any.
func (s State) CurrentQuestion() (Question, bool) {
	if s.Phase != PhaseQuiz {
		return Question{}, false
	}
	i := s.CurrentQuestionIndex
	if i < 0 || i >= len(s.Quiz.Questions) {
		return Question{}, false
	}
	return s.Quiz.Questions[i], true
}

func (s State) CurrentCategory() string {
	if s.CurrentCategoryIndex < 0 || s.CurrentCategoryIndex >= len(s.SelectedCategoryIDs) {
		return ""
	}
	return s.SelectedCategoryIDs[s.CurrentCategoryIndex]
}

func (s *State) armTimer(kind TimerKind, d time.Duration, at time.Time) {
	s.TimerSeq++
	s.Timer = &Timer{Kind: kind, Seq: s.TimerSeq, Duration: d, StartedAt: at}
}

func (s *State) clearTimer() {
	s.Timer = nil
}

// Scoreboard ranks players by score, highest first; equal scores share a rank.
// Real names and team ids are only filled in when reveal is set.
func Scoreboard(s State, reveal bool) []ScoreLine {
	players := s.Players()
	sort.SliceStable(players, func(i, j int) bool { return players[i].Score > players[j].Score })

	lines := make([]ScoreLine, 0, len(players))
	for i, p := range players {
		rank := i + 1
		if i > 0 && players[i-1].Score == p.Score {
			rank = lines[i-1].Rank
		}
		line := ScoreLine{Rank: rank, SecretName: p.SecretName, Avatar: p.Avatar, Score: p.Score}
		if reveal {
			line.TeamID = p.ID
			line.RealName = p.RealName
		}
		lines = append(lines, line)
	}
	return lines
}

// Pending lists the collaborator requests s is still waiting on, for a
// session reloaded from storage to issue again.
func (s State) Pending() []Event {
	var events []Event
	if s.Phase == PhaseQuiz && s.Quiz.Stage == StageLoading && s.Quiz.LastError == "" {
		events = append(events, Event{
			Type:          EvtQuestionsRequested,
			CategoryID:    s.CurrentCategory(),
			CategoryIndex: intp(s.CurrentCategoryIndex),
			QuestionIndex: intp(0),
			Seq:           s.Quiz.LoadSeq,
		})
	}
	if b := s.Bingo; s.Phase == PhaseBingo && b != nil && b.Stage == BingoSelecting &&
		b.ActiveCell != NoCell && b.Card == nil && b.DrawError == "" {
		events = append(events, Event{Type: EvtCardRequested, Cell: intp(b.ActiveCell), CategoryID: b.Cells[b.ActiveCell].Category, Seq: b.DrawSeq})
	}
	return events
}

func intp(i int) *int { return &i }
