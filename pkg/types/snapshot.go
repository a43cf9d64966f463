package types

// Snapshot is one viewer's projection of a session. Real names are only
// filled in for the viewer's own team until identities are revealed; resume
// secrets never leave the server.
type Snapshot struct {
	SessionID          string   `json:"session_id"`
	Code               string   `json:"code"`
	Language           string   `json:"language"`
	Phase              string   `json:"phase"`
	CategoryIndex      int      `json:"category_index"`
	QuestionIndex      int      `json:"question_index"`
	SelectedCategories []string `json:"selected_categories"`
	TTSEnabled         bool     `json:"tts_enabled"`
	ShowAnswers        bool     `json:"show_answers"`
	HostConfirmed      bool     `json:"host_confirmed"`
	IdentitiesRevealed bool     `json:"identities_revealed"`
	You                string   `json:"you,omitempty"`
	Teams              []Team   `json:"teams"`
	Quiz               *Quiz    `json:"quiz,omitempty"`
	Bingo              *Bingo   `json:"bingo,omitempty"`
	Timer              *Timer   `json:"timer,omitempty"`
	Roast              string   `json:"roast,omitempty"`
}

type Team struct {
	ID         string `json:"id"`
	SecretName string `json:"secret_name"`
	RealName   string `json:"real_name,omitempty"`
	Avatar     string `json:"avatar,omitempty"`
	Score      int    `json:"score"`
	IsHost     bool   `json:"is_host"`
	Faction    string `json:"faction,omitempty"`
	Online     bool   `json:"online"`
}

type Quiz struct {
	Stage      string         `json:"stage"`
	CategoryID string         `json:"category_id"`
	Question   *Question      `json:"question,omitempty"`
	Answered   int            `json:"answered"`
	Expected   int            `json:"expected"`
	MyAnswer   *Answer        `json:"my_answer,omitempty"`
	Correct    *int           `json:"correct_index,omitempty"`
	Deltas     map[string]int `json:"deltas,omitempty"`
	Scoreboard []ScoreLine    `json:"scoreboard,omitempty"`
	Error      string         `json:"error,omitempty"` // host only
}

type Question struct {
	ID          string    `json:"id"`
	Index       int       `json:"index"`
	Text        string    `json:"text"`
	Translation string    `json:"translation,omitempty"`
	Options     [4]string `json:"options"`
}

// Answer is the viewer's own answer. Correct and Points stay zero until the
// question closes.
type Answer struct {
	Option  int  `json:"option"`
	Rank    int  `json:"rank"`
	Correct bool `json:"correct"`
	Points  int  `json:"points"`
}

type ScoreLine struct {
	Rank       int    `json:"rank"`
	TeamID     string `json:"team_id,omitempty"`
	SecretName string `json:"secret_name"`
	RealName   string `json:"real_name,omitempty"`
	Avatar     string `json:"avatar,omitempty"`
	Score      int    `json:"score"`
}

type Bingo struct {
	Stage       string `json:"stage"`
	Cells       []Cell `json:"cells"`
	Factions    bool   `json:"factions"`
	Turn        string `json:"turn"`
	ActiveCell  int    `json:"active_cell"`
	PerformerID string `json:"performer_id,omitempty"`
	Card        *Card  `json:"card,omitempty"`
	CardReady   bool   `json:"card_ready"`
	BuzzedBy    string `json:"buzzed_by,omitempty"`
	Outcome     string `json:"outcome,omitempty"`
	Winner      string `json:"winner,omitempty"`
	WinLine     []int  `json:"win_line,omitempty"`
	DrawError   string `json:"draw_error,omitempty"` // host only
}

type Cell struct {
	Index    int    `json:"index"`
	Category string `json:"category"`
	Activity string `json:"activity"`
	Status   string `json:"status"`
	WonBy    string `json:"won_by,omitempty"`
}

type Card struct {
	Term       string   `json:"term"`
	Forbidden  []string `json:"forbidden"`
	Hint       string   `json:"hint"`
	Difficulty int      `json:"difficulty"`
	Activity   string   `json:"activity"`
	Category   string   `json:"category"`
}

type Timer struct {
	Kind        string `json:"kind"`
	Seq         int    `json:"seq"`
	DurationMs  int64  `json:"duration_ms"`
	RemainingMs int64  `json:"remaining_ms"`
}
