// Package content produces the questions, taboo cards, roasts and speech a
// session asks for while it runs. Every call may be slow or fail; callers run
// them off the session loop and feed the result back in.
package content

import (
	"context"
	"errors"

	"github.com/DoyleJ11/party-quiz-backend/internal/engine"
)

var (
	ErrUnknownCategory = errors.New("unknown category")
	ErrNotConfigured   = errors.New("generator not configured")
)

type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Emoji string `json:"emoji"`
}

// Catalog lists the categories a host can pick from.
type Catalog interface {
	Categories(lang engine.Language) []Category
	Category(id string, lang engine.Language) (Category, bool)
}

type CardRequest struct {
	Category   string
	Activity   engine.ActivityType
	Language   engine.Language
	Difficulty int
}

type Generator interface {
	Questions(ctx context.Context, category string, lang engine.Language, count int) ([]engine.Question, error)
	Card(ctx context.Context, req CardRequest) (engine.TabooCard, error)
	Roast(ctx context.Context, lang engine.Language, board []engine.ScoreLine) (string, error)
}

// Speaker turns question text into audio for the host screen.
type Speaker interface {
	Speak(ctx context.Context, text string, lang engine.Language) ([]byte, error)
}

func otherLanguage(lang engine.Language) engine.Language {
	if lang == engine.LangDE {
		return engine.LangEN
	}
	return engine.LangDE
}

func displayName(l engine.ScoreLine) string {
	if l.RealName != "" {
		return l.RealName
	}
	return l.SecretName
}
