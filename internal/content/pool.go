package content

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"

	"github.com/DoyleJ11/party-quiz-backend/internal/engine"
)

//go:embed data/pool.json
var poolJSON []byte

type poolText map[engine.Language]string

type poolQuestion struct {
	DE      string                        `json:"de"`
	EN      string                        `json:"en"`
	Options map[engine.Language][4]string `json:"options"` // correct option first
}

func (q poolQuestion) text(lang engine.Language) string {
	if lang == engine.LangDE {
		return q.DE
	}
	return q.EN
}

type poolCardText struct {
	Term      string    `json:"term"`
	Forbidden [5]string `json:"forbidden"`
	Hint      string    `json:"hint"`
}

type poolCard struct {
	Difficulty int          `json:"difficulty"`
	DE         poolCardText `json:"de"`
	EN         poolCardText `json:"en"`
}

type poolCategory struct {
	ID        string         `json:"id"`
	Emoji     string         `json:"emoji"`
	Name      poolText       `json:"name"`
	Questions []poolQuestion `json:"questions"`
	Cards     []poolCard     `json:"cards"`
}

type poolData struct {
	Categories []poolCategory               `json:"categories"`
	Roasts     map[engine.Language][]string `json:"roasts"`
}

// Pool serves content from the bundled bilingual bank. It is the default
// generator and the category catalog for every generator.
type Pool struct {
	data poolData
	byID map[string]*poolCategory

	mu  sync.Mutex
	rng *rand.Rand
}

func NewPool(seed uint64) (*Pool, error) {
	var data poolData
	if err := json.Unmarshal(poolJSON, &data); err != nil {
		return nil, fmt.Errorf("content: parse pool: %w", err)
	}
	p := &Pool{
		data: data,
		byID: make(map[string]*poolCategory, len(data.Categories)),
		rng:  rand.New(rand.NewPCG(seed, seed+1)),
	}
	for i := range p.data.Categories {
		c := &p.data.Categories[i]
		p.byID[c.ID] = c
	}
	return p, nil
}

func (p *Pool) Categories(lang engine.Language) []Category {
	out := make([]Category, 0, len(p.data.Categories))
	for _, c := range p.data.Categories {
		out = append(out, Category{ID: c.ID, Name: c.Name[lang], Emoji: c.Emoji})
	}
	return out
}

func (p *Pool) Category(id string, lang engine.Language) (Category, bool) {
	c, ok := p.byID[id]
	if !ok {
		return Category{}, false
	}
	return Category{ID: c.ID, Name: c.Name[lang], Emoji: c.Emoji}, true
}

func (p *Pool) perm(n int) []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Perm(n)
}

func (p *Pool) Questions(ctx context.Context, category string, lang engine.Language, count int) ([]engine.Question, error) {
	c, ok := p.byID[category]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, category)
	}
	if count > len(c.Questions) {
		return nil, fmt.Errorf("category %s has %d questions, %d requested", category, len(c.Questions), count)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	order := p.perm(len(c.Questions))[:count]
	out := make([]engine.Question, 0, count)
	for i, idx := range order {
		src := c.Questions[idx]
		opts := src.Options[lang]
		q := engine.Question{
			ID:         uuid.NewString(),
			CategoryID: category,
			Index:      i,
			Text: engine.LocalizedText{
				Primary:   src.text(lang),
				Secondary: src.text(otherLanguage(lang)),
			},
		}
		for j, k := range p.perm(engine.OptionsPerQuestion) {
			q.Options[j] = opts[k]
			if k == 0 {
				q.CorrectIndex = j
			}
		}
		out = append(out, q)
	}
	return out, nil
}

// Card returns the card of the requested category whose difficulty is
// closest to the request. Unknown categories draw from the whole bank.
func (p *Pool) Card(ctx context.Context, req CardRequest) (engine.TabooCard, error) {
	if err := ctx.Err(); err != nil {
		return engine.TabooCard{}, err
	}
	var cards []poolCard
	if c, ok := p.byID[req.Category]; ok {
		cards = c.Cards
	} else {
		for _, c := range p.data.Categories {
			cards = append(cards, c.Cards...)
		}
	}
	if len(cards) == 0 {
		return engine.TabooCard{}, fmt.Errorf("%w: no cards for %s", ErrUnknownCategory, req.Category)
	}

	best := []poolCard{}
	bestDist := -1
	for _, card := range cards {
		d := card.Difficulty - req.Difficulty
		if d < 0 {
			d = -d
		}
		switch {
		case bestDist < 0 || d < bestDist:
			best, bestDist = []poolCard{card}, d
		case d == bestDist:
			best = append(best, card)
		}
	}
	card := best[p.perm(len(best))[0]]

	text := card.EN
	if req.Language == engine.LangDE {
		text = card.DE
	}
	return engine.TabooCard{
		Term:       text.Term,
		Forbidden:  text.Forbidden,
		Hint:       text.Hint,
		Difficulty: card.Difficulty,
		Activity:   req.Activity,
		Category:   req.Category,
		Language:   req.Language,
	}, nil
}

func (p *Pool) Roast(ctx context.Context, lang engine.Language, board []engine.ScoreLine) (string, error) {
	if len(board) == 0 {
		return "", fmt.Errorf("empty scoreboard")
	}
	templates := p.data.Roasts[lang]
	if len(templates) == 0 {
		templates = p.data.Roasts[engine.LangEN]
	}
	tpl := templates[p.perm(len(templates))[0]]
	first, last := board[0], board[len(board)-1]
	return fmt.Sprintf(tpl, displayName(first), first.Score, displayName(last)), nil
}
