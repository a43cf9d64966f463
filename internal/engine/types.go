package engine

import "time"

type Phase string

const (
	PhaseLobby          Phase = "LOBBY"
	PhaseCategorySelect Phase = "CATEGORY_SELECT"
	PhaseQuiz           Phase = "QUIZ"
	PhaseBingo          Phase = "BINGO"
	PhaseLeaderboard    Phase = "LEADERBOARD"
	PhaseFinished       Phase = "FINISHED"
)

func (p Phase) Valid() bool {
	switch p {
	case PhaseLobby, PhaseCategorySelect, PhaseQuiz, PhaseBingo, PhaseLeaderboard, PhaseFinished:
		return true
	}
	return false
}

type Language string

const (
	LangDE Language = "de"
	LangEN Language = "en"
)

// QuizStage is the sub-state of PhaseQuiz. BREAK lives here so question
// progress survives it.
type QuizStage string

const (
	StageNone        QuizStage = ""
	StageLoading     QuizStage = "LOADING"
	StageQuestion    QuizStage = "QUESTION"
	StageReveal      QuizStage = "REVEAL"
	StageBreak       QuizStage = "BREAK"
	StageCategoryEnd QuizStage = "CATEGORY_END"
)

type BingoStage string

const (
	BingoSelecting  BingoStage = "SELECTING"
	BingoPerforming BingoStage = "PERFORMING"
	BingoResult     BingoStage = "RESULT"
)

type Faction string

const (
	FactionNone Faction = ""
	FactionA    Faction = "A"
	FactionB    Faction = "B"
)

func (f Faction) Valid() bool {
	return f == FactionNone || f == FactionA || f == FactionB
}

type ActivityType string

const (
	ActivityExplain   ActivityType = "EXPLAIN"
	ActivityPantomime ActivityType = "PANTOMIME"
	ActivityDraw      ActivityType = "DRAW"
	ActivityHum       ActivityType = "HUM"
)

var Activities = []ActivityType{ActivityExplain, ActivityPantomime, ActivityDraw, ActivityHum}

type CellStatus string

const (
	CellEmpty  CellStatus = "EMPTY"
	CellActive CellStatus = "ACTIVE"
	CellWon    CellStatus = "WON"
	CellLocked CellStatus = "LOCKED"
)

type TimerKind string

const (
	TimerQuestion    TimerKind = "question"
	TimerBreak       TimerKind = "break"
	TimerPerformance TimerKind = "performance"
	TimerTurnAdvance TimerKind = "turn_advance"
)

const (
	QuestionsPerCategory = 10
	OptionsPerQuestion   = 4
	BreakAfterIndex      = 4
	ForbiddenWordCount   = 5
	GridCells            = 9
	NoAnswer             = -1
	NoCell               = -1

	PointsCorrect   = 100
	SpeedBonusMax   = 50
	SpeedBonusStep  = 10
	PointsCellWon   = 50
	PointsBingoWin  = 100
	ReactionTTLms   = 3000
	QuickMessageTTL = 4000
)

// Rules holds the timing and sizing knobs of a session.
type Rules struct {
	QuestionTimerSec int `json:"question_timer_sec"`
	BreakTimerSec    int `json:"break_timer_sec"`
	PerformTimerSec  int `json:"perform_timer_sec"`
	TurnDelayMs      int `json:"turn_delay_ms"`
	BingoDifficulty  int `json:"bingo_difficulty"`
	MinTeams         int `json:"min_teams"`
}

// LocalizedText is always dual-language: Primary in the session language.
type LocalizedText struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
}

type Question struct {
	ID           string        `json:"id"`
	CategoryID   string        `json:"category_id"`
	Index        int           `json:"index"`
	Text         LocalizedText `json:"text"`
	Options      [4]string     `json:"options"`
	CorrectIndex int           `json:"correct_index"`
}

// Prompt is a Question without its answer.
type Prompt struct {
	ID      string        `json:"id"`
	Index   int           `json:"index"`
	Text    LocalizedText `json:"text"`
	Options [4]string     `json:"options"`
}

func (q Question) Prompt() Prompt {
	return Prompt{ID: q.ID, Index: q.Index, Text: q.Text, Options: q.Options}
}

type Team struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	RealName   string    `json:"real_name"`
	SecretName string    `json:"secret_name"`
	Avatar     string    `json:"avatar,omitempty"`
	Score      int       `json:"score"`
	IsHost     bool      `json:"is_host"`
	Faction    Faction   `json:"faction,omitempty"`
	Secret     string    `json:"secret"`
	JoinedAt   time.Time `json:"joined_at"`
}

type Answer struct {
	TeamID  string `json:"team_id"`
	Option  int    `json:"option"`
	Rank    int    `json:"rank"`
	Correct bool   `json:"correct"`
	Points  int    `json:"points"`
}

type Quiz struct {
	Stage     QuizStage         `json:"stage"`
	LoadSeq   int               `json:"load_seq"`
	Questions []Question        `json:"questions,omitempty"`
	Answers   map[string]Answer `json:"answers,omitempty"`
	LastError string            `json:"last_error,omitempty"`
}

type BingoCell struct {
	Index        int          `json:"index"`
	Category     string       `json:"category"`
	Activity     ActivityType `json:"activity"`
	Status       CellStatus   `json:"status"`
	WonByTeamID  string       `json:"won_by_team_id,omitempty"`
	WonByFaction Faction      `json:"won_by_faction,omitempty"`
}

type TabooCard struct {
	Term       string       `json:"term"`
	Forbidden  [5]string    `json:"forbidden"`
	Hint       string       `json:"hint"`
	Difficulty int          `json:"difficulty"`
	Activity   ActivityType `json:"activity"`
	Category   string       `json:"category"`
	Language   Language     `json:"language"`
}

type Bingo struct {
	Stage       BingoStage   `json:"stage"`
	Cells       [9]BingoCell `json:"cells"`
	Factions    bool         `json:"factions"`
	Slots       []string     `json:"slots,omitempty"` // turn order fixed at start
	Turn        int          `json:"turn"`
	ActiveCell  int          `json:"active_cell"`
	PerformerID string       `json:"performer_id,omitempty"`
	Card        *TabooCard   `json:"card,omitempty"`
	DrawSeq     int          `json:"draw_seq"`
	DrawError   string       `json:"draw_error,omitempty"`
	BuzzedBy    string       `json:"buzzed_by,omitempty"`
	Outcome     string       `json:"outcome,omitempty"`
	WinnerKey   string       `json:"winner_key,omitempty"`
	WinLine     []int        `json:"win_line,omitempty"`
}

// Timer is the one server-owned countdown a session may have running.
type Timer struct {
	Kind      TimerKind     `json:"kind"`
	Seq       int           `json:"seq"`
	Duration  time.Duration `json:"duration"`
	StartedAt time.Time     `json:"started_at"`
}

func (t *Timer) Remaining(now time.Time) time.Duration {
	if t == nil {
		return 0
	}
	left := t.Duration - now.Sub(t.StartedAt)
	if left < 0 {
		return 0
	}
	return left
}

type State struct {
	SessionID            string    `json:"session_id"`
	JoinCode             string    `json:"join_code"`
	Language             Language  `json:"language"`
	Phase                Phase     `json:"phase"`
	CurrentCategoryIndex int       `json:"current_category_index"`
	CurrentQuestionIndex int       `json:"current_question_index"`
	SelectedCategoryIDs  []string  `json:"selected_category_ids"`
	TTSEnabled           bool      `json:"tts_enabled"`
	ShowAnswers          bool      `json:"show_answers"`
	HostConfirmed        bool      `json:"host_confirmed"`
	IdentitiesRevealed   bool      `json:"identities_revealed"`
	Rules                Rules     `json:"rules"`
	Teams                []Team    `json:"teams"`
	Quiz                 Quiz      `json:"quiz"`
	Bingo                *Bingo    `json:"bingo,omitempty"`
	Timer                *Timer    `json:"timer,omitempty"`
	TimerSeq             int       `json:"timer_seq"`
	Roast                string    `json:"roast,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
}

type ScoreLine struct {
	Rank       int    `json:"rank"`
	TeamID     string `json:"team_id,omitempty"`
	SecretName string `json:"secret_name"`
	RealName   string `json:"real_name,omitempty"`
	Avatar     string `json:"avatar,omitempty"`
	Score      int    `json:"score"`
}
