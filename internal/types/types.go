package types

import (
	"github.com/DoyleJ11/party-quiz-backend/internal/engine"
	public "github.com/DoyleJ11/party-quiz-backend/pkg/types"
)

type ClientMessage struct {
	Type string `json:"type"`

	RealName      string `json:"real_name,omitempty"`
	Avatar        string `json:"avatar,omitempty"`
	AsHost        bool   `json:"as_host,omitempty"`
	Token         string `json:"token,omitempty"`
	TeamID        string `json:"team_id,omitempty"`
	Secret        string `json:"secret,omitempty"`
	Faction       string `json:"faction,omitempty"`
	CategoryID    string `json:"category_id,omitempty"`
	TTSEnabled    *bool  `json:"tts_enabled,omitempty"`
	ShowAnswers   *bool  `json:"show_answers,omitempty"`
	QuestionIndex *int   `json:"question_index,omitempty"`
	Option        *int   `json:"option,omitempty"`
	Cell          *int   `json:"cell,omitempty"`
	Correct       bool   `json:"correct,omitempty"`
	SkipBingo     bool   `json:"skip_bingo,omitempty"`
	Text          string `json:"text,omitempty"`
}

type ServerMessage struct {
	Type          string           `json:"type"` // see pkg/types Server* constants
	Version       int              `json:"version,omitempty"`
	Event         *engine.Event    `json:"event,omitempty"`
	State         *public.Snapshot `json:"state,omitempty"`
	TeamID        string           `json:"team_id,omitempty"`
	Secret        string           `json:"secret,omitempty"`
	QuestionIndex *int             `json:"question_index,omitempty"`
	Audio         []byte           `json:"audio,omitempty"`
	Kind          string           `json:"kind,omitempty"`
	Error         string           `json:"error,omitempty"`
}
