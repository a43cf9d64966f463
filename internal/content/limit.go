package content

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/DoyleJ11/party-quiz-backend/internal/engine"
)

// Limiter caps the number of collaborator calls in flight across all
// sessions. Callers waiting for a slot give up when their context ends.
type Limiter struct {
	sem *semaphore.Weighted
}

func NewLimiter(n int) *Limiter {
	if n < 1 {
		n = 1
	}
	return &Limiter{sem: semaphore.NewWeighted(int64(n))}
}

func (l *Limiter) Generator(g Generator) Generator { return &limitedGenerator{next: g, sem: l.sem} }

func (l *Limiter) Speaker(s Speaker) Speaker { return &limitedSpeaker{next: s, sem: l.sem} }

type limitedGenerator struct {
	next Generator
	sem  *semaphore.Weighted
}

func (g *limitedGenerator) Questions(ctx context.Context, category string, lang engine.Language, count int) ([]engine.Question, error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer g.sem.Release(1)
	return g.next.Questions(ctx, category, lang, count)
}

func (g *limitedGenerator) Card(ctx context.Context, req CardRequest) (engine.TabooCard, error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return engine.TabooCard{}, err
	}
	defer g.sem.Release(1)
	return g.next.Card(ctx, req)
}

func (g *limitedGenerator) Roast(ctx context.Context, lang engine.Language, board []engine.ScoreLine) (string, error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer g.sem.Release(1)
	return g.next.Roast(ctx, lang, board)
}

type limitedSpeaker struct {
	next Speaker
	sem  *semaphore.Weighted
}

func (s *limitedSpeaker) Speak(ctx context.Context, text string, lang engine.Language) ([]byte, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)
	return s.next.Speak(ctx, text, lang)
}
