package engine

import (
	"slices"
	"strings"
	"time"
)

type CommandType string

const (
	CmdJoin             CommandType = "Join"
	CmdConfirmHost      CommandType = "ConfirmHost"
	CmdSetFaction       CommandType = "SetFaction"
	CmdResetScores      CommandType = "ResetScores"
	CmdUpdateSettings   CommandType = "UpdateSettings"
	CmdOpenCategories   CommandType = "OpenCategories"
	CmdToggleCategory   CommandType = "ToggleCategory"
	CmdStartQuiz        CommandType = "StartQuiz"
	CmdQuestionsReady   CommandType = "QuestionsReady"
	CmdQuestionsFailed  CommandType = "QuestionsFailed"
	CmdRetryGeneration  CommandType = "RetryGeneration"
	CmdSubmitAnswer     CommandType = "SubmitAnswer"
	CmdNextQuestion     CommandType = "NextQuestion"
	CmdEndBreak         CommandType = "EndBreak"
	CmdNextCategory     CommandType = "NextCategory"
	CmdFinishQuiz       CommandType = "FinishQuiz"
	CmdSelectCell       CommandType = "SelectCell"
	CmdCardReady        CommandType = "CardReady"
	CmdCardFailed       CommandType = "CardFailed"
	CmdRetryDraw        CommandType = "RetryDraw"
	CmdStartPerformance CommandType = "StartPerformance"
	CmdBuzz             CommandType = "Buzz"
	CmdJudge            CommandType = "Judge"
	CmdNextTurn         CommandType = "NextTurn"
	CmdTimerExpired     CommandType = "TimerExpired"
	CmdRoastReady       CommandType = "RoastReady"
	CmdFinish           CommandType = "Finish"
	CmdReact            CommandType = "React"
	CmdQuickMessage     CommandType = "QuickMessage"
)

/*
	Client commands carry Actor = the team bound to the connection.
	System commands (timers, collaborator results) carry System = true and no Actor;
	the lobby is the only producer of those.

	CmdStartQuiz      -> PhaseChanged -> QuestionsRequested
	CmdQuestionsReady -> QuestionStarted (timer armed)
	CmdSubmitAnswer   -> AnswerAccepted (private) -> AnswerProgress [-> QuestionClosed]
	CmdNextQuestion   -> QuestionStarted | BreakStarted | CategoryCompleted
	CmdSelectCell     -> CellSelected -> CardRequested
	CmdBuzz           -> Buzzed -> CellResolved (turn-advance timer armed)
*/

type Command struct {
	Type   CommandType
	Actor  string
	System bool
	At     time.Time

	TeamID        string
	RealName      string
	Avatar        string
	Secret        string
	AsHost        bool
	Faction       Faction
	CategoryID    string
	TTSEnabled    *bool
	ShowAnswers   *bool
	QuestionIndex int
	Option        int
	Questions     []Question
	Card          *TabooCard
	Seq           int
	Cell          int
	Correct       bool
	SkipBingo     bool
	Timer         TimerKind
	Reason        string
	Text          string
	Seed          uint64
}

type EventType string

const (
	EvtTeamJoined         EventType = "team_joined"
	EvtHostConfirmed      EventType = "host_confirmed"
	EvtFactionChanged     EventType = "faction_changed"
	EvtScoresReset        EventType = "scores_reset"
	EvtSettingsChanged    EventType = "settings_changed"
	EvtPhaseChanged       EventType = "phase_changed"
	EvtCategoriesChanged  EventType = "categories_changed"
	EvtQuestionsRequested EventType = "questions_requested"
	EvtGenerationFailed   EventType = "generation_failed"
	EvtQuestionStarted    EventType = "question_started"
	EvtAnswerAccepted     EventType = "answer_accepted"
	EvtAnswerProgress     EventType = "answer_progress"
	EvtQuestionClosed     EventType = "question_closed"
	EvtBreakStarted       EventType = "break_started"
	EvtBreakEnded         EventType = "break_ended"
	EvtCategoryCompleted  EventType = "category_completed"
	EvtIdentitiesRevealed EventType = "identities_revealed"
	EvtBingoStarted       EventType = "bingo_started"
	EvtCellSelected       EventType = "cell_selected"
	EvtCardRequested      EventType = "card_requested"
	EvtCardDrawn          EventType = "card_drawn"
	EvtDrawFailed         EventType = "draw_failed"
	EvtPerformanceStarted EventType = "performance_started"
	EvtBuzzed             EventType = "buzzed"
	EvtCellResolved       EventType = "cell_resolved"
	EvtTurnAdvanced       EventType = "turn_advanced"
	EvtBingoWon           EventType = "bingo_won"
	EvtRoastReady         EventType = "roast_ready"
	EvtReaction           EventType = "reaction"
	EvtQuickMessage       EventType = "quick_message"
)

type Event struct {
	Type EventType `json:"type"`

	// To restricts delivery to one team; HostOnly to the host team.
	To       string `json:"-"`
	HostOnly bool   `json:"-"`

	Phase         Phase          `json:"phase,omitempty"`
	CategoryIndex *int           `json:"category_index,omitempty"`
	QuestionIndex *int           `json:"question_index,omitempty"`
	CategoryID    string         `json:"category_id,omitempty"`
	Categories    []string       `json:"categories,omitempty"`
	TeamID        string         `json:"team_id,omitempty"`
	SecretName    string         `json:"secret_name,omitempty"`
	Faction       Faction        `json:"faction,omitempty"`
	Prompt        *Prompt        `json:"prompt,omitempty"`
	Rank          int            `json:"rank,omitempty"`
	Answered      int            `json:"answered,omitempty"`
	Expected      int            `json:"expected,omitempty"`
	CorrectIndex  *int           `json:"correct_index,omitempty"`
	Deltas        map[string]int `json:"deltas,omitempty"`
	Scoreboard    []ScoreLine    `json:"scoreboard,omitempty"`
	Cell          *int           `json:"cell,omitempty"`
	Status        CellStatus     `json:"status,omitempty"`
	Turn          string         `json:"turn,omitempty"`
	Winner        string         `json:"winner,omitempty"`
	Line          []int          `json:"line,omitempty"`
	DurationMs    int64          `json:"duration_ms,omitempty"`
	TTLms         int            `json:"ttl_ms,omitempty"`
	Seq           int            `json:"seq,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	Text          string         `json:"text,omitempty"`
}

// Ephemeral events carry no state and do not advance the session version.
func (e Event) Ephemeral() bool {
	return e.Type == EvtReaction || e.Type == EvtQuickMessage
}

type handler func(s *State, cmd Command) ([]Event, error)

var handlers map[CommandType]handler

func init() {
	handlers = map[CommandType]handler{
		CmdJoin:             applyJoin,
		CmdConfirmHost:      applyConfirmHost,
		CmdSetFaction:       applySetFaction,
		CmdResetScores:      applyResetScores,
		CmdUpdateSettings:   applyUpdateSettings,
		CmdOpenCategories:   applyOpenCategories,
		CmdToggleCategory:   applyToggleCategory,
		CmdStartQuiz:        applyStartQuiz,
		CmdQuestionsReady:   applyQuestionsReady,
		CmdQuestionsFailed:  applyQuestionsFailed,
		CmdRetryGeneration:  applyRetryGeneration,
		CmdSubmitAnswer:     applySubmitAnswer,
		CmdNextQuestion:     applyNextQuestion,
		CmdEndBreak:         applyEndBreak,
		CmdNextCategory:     applyNextCategory,
		CmdFinishQuiz:       applyFinishQuiz,
		CmdSelectCell:       applySelectCell,
		CmdCardReady:        applyCardReady,
		CmdCardFailed:       applyCardFailed,
		CmdRetryDraw:        applyRetryDraw,
		CmdStartPerformance: applyStartPerformance,
		CmdBuzz:             applyBuzz,
		CmdJudge:            applyJudge,
		CmdNextTurn:         applyNextTurn,
		CmdTimerExpired:     applyTimerExpired,
		CmdRoastReady:       applyRoastReady,
		CmdFinish:           applyFinish,
		CmdReact:            applyEphemeral,
		CmdQuickMessage:     applyEphemeral,
	}
}

// Apply validates cmd against s and returns the resulting events and state.
// On error the returned state is s, untouched.
func Apply(s State, cmd Command) ([]Event, State, error) {
	h, ok := handlers[cmd.Type]
	if !ok {
		return nil, s, ErrUnsupportedCommand
	}
	if s.Phase == PhaseFinished && cmd.Type != CmdRoastReady {
		return nil, s, precondition("the session is finished")
	}

	next := s.Clone()
	events, err := h(&next, cmd)
	if err != nil {
		return nil, s, err
	}
	return events, next, nil
}

// transitions is the forward-only phase table.
var transitions = map[Phase][]Phase{
	PhaseLobby:          {PhaseCategorySelect},
	PhaseCategorySelect: {PhaseQuiz},
	PhaseQuiz:           {PhaseBingo, PhaseLeaderboard},
	PhaseBingo:          {PhaseLeaderboard},
	PhaseLeaderboard:    {PhaseFinished},
}

func CanTransition(from, to Phase) bool {
	return slices.Contains(transitions[from], to)
}

// transition moves s to the next phase, cancelling whatever timer the old
// phase owned. Callers validate their own preconditions first.
func transition(s *State, to Phase) (Event, error) {
	if !CanTransition(s.Phase, to) {
		return Event{}, precondition("cannot move from %s to %s", s.Phase, to)
	}
	s.Phase = to
	s.clearTimer()
	return Event{
		Type:          EvtPhaseChanged,
		Phase:         to,
		CategoryIndex: intp(s.CurrentCategoryIndex),
		QuestionIndex: intp(s.CurrentQuestionIndex),
	}, nil
}

func requireSystem(cmd Command) error {
	if !cmd.System {
		return unauthorized("clients cannot send %s", cmd.Type)
	}
	return nil
}

func requireHost(s *State, cmd Command) error {
	t := s.team(cmd.Actor)
	if t == nil || !t.IsHost {
		return unauthorized("only the host may do that")
	}
	return nil
}

func requireMember(s *State, cmd Command) (*Team, error) {
	if cmd.Actor == "" {
		return nil, unauthorized("join the session first")
	}
	t := s.team(cmd.Actor)
	if t == nil {
		return nil, notFound("team %s not found", cmd.Actor)
	}
	return t, nil
}

func requirePlayer(s *State, cmd Command) (*Team, error) {
	t, err := requireMember(s, cmd)
	if err != nil {
		return nil, err
	}
	if t.IsHost {
		return nil, invalidMove("the host moderates and does not play")
	}
	return t, nil
}

func requirePhase(s *State, p Phase) error {
	if s.Phase != p {
		return precondition("not possible during %s", s.Phase)
	}
	return nil
}

func applyOpenCategories(s *State, cmd Command) ([]Event, error) {
	if err := requireHost(s, cmd); err != nil {
		return nil, err
	}
	if err := requirePhase(s, PhaseLobby); err != nil {
		return nil, err
	}
	if len(s.Teams) < s.Rules.MinTeams {
		return nil, precondition("at least %d teams must join (host included), %d joined", s.Rules.MinTeams, len(s.Teams))
	}
	if !s.HostConfirmed {
		return nil, precondition("the host has not confirmed participation")
	}
	evt, err := transition(s, PhaseCategorySelect)
	if err != nil {
		return nil, err
	}
	return []Event{evt}, nil
}

func applyToggleCategory(s *State, cmd Command) ([]Event, error) {
	if err := requireHost(s, cmd); err != nil {
		return nil, err
	}
	if err := requirePhase(s, PhaseCategorySelect); err != nil {
		return nil, err
	}
	id := strings.TrimSpace(cmd.CategoryID)
	if id == "" {
		return nil, precondition("category id is required")
	}
	if i := slices.Index(s.SelectedCategoryIDs, id); i >= 0 {
		s.SelectedCategoryIDs = slices.Delete(s.SelectedCategoryIDs, i, i+1)
	} else {
		s.SelectedCategoryIDs = append(s.SelectedCategoryIDs, id)
	}
	return []Event{{Type: EvtCategoriesChanged, Categories: slices.Clone(s.SelectedCategoryIDs)}}, nil
}

func applyStartQuiz(s *State, cmd Command) ([]Event, error) {
	if err := requireHost(s, cmd); err != nil {
		return nil, err
	}
	if err := requirePhase(s, PhaseCategorySelect); err != nil {
		return nil, err
	}
	if len(s.SelectedCategoryIDs) == 0 {
		return nil, precondition("select at least one category")
	}
	s.CurrentCategoryIndex = 0
	s.CurrentQuestionIndex = 0
	evt, err := transition(s, PhaseQuiz)
	if err != nil {
		return nil, err
	}
	return []Event{evt, requestQuestions(s)}, nil
}

func applyUpdateSettings(s *State, cmd Command) ([]Event, error) {
	if err := requireHost(s, cmd); err != nil {
		return nil, err
	}
	if cmd.TTSEnabled != nil {
		s.TTSEnabled = *cmd.TTSEnabled
	}
	if cmd.ShowAnswers != nil {
		s.ShowAnswers = *cmd.ShowAnswers
	}
	return []Event{{Type: EvtSettingsChanged}}, nil
}

func applyFinish(s *State, cmd Command) ([]Event, error) {
	if err := requireHost(s, cmd); err != nil {
		return nil, err
	}
	if err := requirePhase(s, PhaseLeaderboard); err != nil {
		return nil, err
	}
	evt, err := transition(s, PhaseFinished)
	if err != nil {
		return nil, err
	}
	return []Event{evt}, nil
}

func applyRoastReady(s *State, cmd Command) ([]Event, error) {
	if err := requireSystem(cmd); err != nil {
		return nil, err
	}
	if s.Phase != PhaseLeaderboard && s.Phase != PhaseFinished {
		return nil, stale("roast arrived during %s", s.Phase)
	}
	s.Roast = cmd.Text
	return []Event{{Type: EvtRoastReady, Text: cmd.Text}}, nil
}

func applyEphemeral(s *State, cmd Command) ([]Event, error) {
	t, err := requireMember(s, cmd)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(cmd.Text)
	if text == "" {
		return nil, precondition("nothing to send")
	}
	if cmd.Type == CmdReact {
		return []Event{{Type: EvtReaction, TeamID: t.ID, SecretName: t.SecretName, Text: text, TTLms: ReactionTTLms}}, nil
	}
	return []Event{{Type: EvtQuickMessage, TeamID: t.ID, SecretName: t.SecretName, Text: text, TTLms: QuickMessageTTL}}, nil
}

func applyTimerExpired(s *State, cmd Command) ([]Event, error) {
	if err := requireSystem(cmd); err != nil {
		return nil, err
	}
	if s.Timer == nil || s.Timer.Kind != cmd.Timer || s.Timer.Seq != cmd.Seq {
		return nil, stale("timer %s#%d is no longer armed", cmd.Timer, cmd.Seq)
	}
	switch cmd.Timer {
	case TimerQuestion:
		return closeQuestion(s), nil
	case TimerBreak:
		return endBreak(s, cmd.At)
	case TimerPerformance:
		return performanceTimeout(s, cmd.At), nil
	case TimerTurnAdvance:
		return advanceTurn(s), nil
	}
	return nil, ErrUnsupportedCommand
}
