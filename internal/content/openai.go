package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/party-quiz-backend/internal/engine"
)

// OpenAI generates content through an OpenAI-compatible chat completions API.
type OpenAI struct {
	httpClient *http.Client
	apiKey     string
	apiURL     string
	model      string
	catalog    Catalog
	log        *zap.Logger
}

func NewOpenAI(apiKey, apiURL, model string, catalog Catalog, log *zap.Logger) *OpenAI {
	return &OpenAI{
		httpClient: &http.Client{Timeout: 90 * time.Second},
		apiKey:     apiKey,
		apiURL:     strings.TrimRight(apiURL, "/"),
		model:      model,
		catalog:    catalog,
		log:        log,
	}
}

func (g *OpenAI) IsAvailable() bool {
	return g.apiKey != "" && g.apiURL != ""
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (g *OpenAI) chat(ctx context.Context, system, user string) (string, error) {
	if !g.IsAvailable() {
		return "", ErrNotConfigured
	}
	body, err := json.Marshal(chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	g.log.Debug("chat completion",
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
	)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API returned status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if cr.Error != nil {
		return "", fmt.Errorf("API error: %s", cr.Error.Message)
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("empty response")
	}
	return cleanJSONContent(cr.Choices[0].Message.Content), nil
}

func cleanJSONContent(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func languageName(lang engine.Language) string {
	if lang == engine.LangDE {
		return "German"
	}
	return "English"
}

func (g *OpenAI) categoryName(id string, lang engine.Language) string {
	if g.catalog != nil {
		if c, ok := g.catalog.Category(id, lang); ok && c.Name != "" {
			return c.Name
		}
	}
	return strings.ReplaceAll(id, "_", " ")
}

const questionsPrompt = `You write questions for a party quiz. Respond with ONLY valid JSON (no markdown, no code fences) in this format:

{"questions": [{"text": "Question in %[1]s?", "translation": "The same question in %[2]s?", "options": ["A", "B", "C", "D"], "correct_index": 0}]}

Rules:
- Exactly %[3]d questions about the category the user names
- Exactly 4 short options in %[1]s per question, exactly one of them correct
- correct_index is the 0-based position of the correct option; vary it
- Mix easy and hard questions, keep them factually accurate and fun`

type aiQuestions struct {
	Questions []struct {
		Text         string   `json:"text"`
		Translation  string   `json:"translation"`
		Options      []string `json:"options"`
		CorrectIndex int      `json:"correct_index"`
	} `json:"questions"`
}

func (g *OpenAI) Questions(ctx context.Context, category string, lang engine.Language, count int) ([]engine.Question, error) {
	system := fmt.Sprintf(questionsPrompt, languageName(lang), languageName(otherLanguage(lang)), count)
	content, err := g.chat(ctx, system, "Category: "+g.categoryName(category, lang))
	if err != nil {
		return nil, err
	}

	var data aiQuestions
	if err := json.Unmarshal([]byte(content), &data); err != nil {
		return nil, fmt.Errorf("AI returned invalid JSON: %w", err)
	}
	out := make([]engine.Question, 0, len(data.Questions))
	for i, aq := range data.Questions {
		if len(aq.Options) != engine.OptionsPerQuestion {
			return nil, fmt.Errorf("question %d has %d options", i, len(aq.Options))
		}
		q := engine.Question{
			ID:           uuid.NewString(),
			CategoryID:   category,
			Index:        i,
			Text:         engine.LocalizedText{Primary: aq.Text, Secondary: aq.Translation},
			CorrectIndex: aq.CorrectIndex,
		}
		copy(q.Options[:], aq.Options)
		out = append(out, q)
	}
	return out, nil
}

const cardPrompt = `You write cards for a taboo-style party game. Respond with ONLY valid JSON (no markdown, no code fences):

{"term": "...", "forbidden": ["...", "...", "...", "...", "..."], "hint": "..."}

Rules:
- Everything in %[1]s
- The term fits the category the user names and can be acted out as: %[2]s
- Exactly 5 forbidden words, the most obvious words a player would use
- Difficulty %[3]d on a scale from 1 (very easy) to 5 (very hard)
- The hint is one short playful sentence for the audience`

func (g *OpenAI) Card(ctx context.Context, req CardRequest) (engine.TabooCard, error) {
	system := fmt.Sprintf(cardPrompt, languageName(req.Language), strings.ToLower(string(req.Activity)), req.Difficulty)
	content, err := g.chat(ctx, system, "Category: "+g.categoryName(req.Category, req.Language))
	if err != nil {
		return engine.TabooCard{}, err
	}

	var data struct {
		Term      string   `json:"term"`
		Forbidden []string `json:"forbidden"`
		Hint      string   `json:"hint"`
	}
	if err := json.Unmarshal([]byte(content), &data); err != nil {
		return engine.TabooCard{}, fmt.Errorf("AI returned invalid JSON: %w", err)
	}
	if len(data.Forbidden) != engine.ForbiddenWordCount {
		return engine.TabooCard{}, fmt.Errorf("card has %d forbidden words", len(data.Forbidden))
	}
	card := engine.TabooCard{
		Term:       data.Term,
		Hint:       data.Hint,
		Difficulty: req.Difficulty,
		Activity:   req.Activity,
		Category:   req.Category,
		Language:   req.Language,
	}
	copy(card.Forbidden[:], data.Forbidden)
	return card, nil
}

const roastPrompt = `You are the sharp-tongued host of a party quiz night. Write two or three sentences in %s
roasting the final standings the user sends. Be funny, never mean-spirited. Plain text only.`

func (g *OpenAI) Roast(ctx context.Context, lang engine.Language, board []engine.ScoreLine) (string, error) {
	var sb strings.Builder
	for _, l := range board {
		fmt.Fprintf(&sb, "%d. %s (%s): %d points\n", l.Rank, displayName(l), l.SecretName, l.Score)
	}
	text, err := g.chat(ctx, fmt.Sprintf(roastPrompt, languageName(lang)), sb.String())
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", fmt.Errorf("empty roast")
	}
	return text, nil
}
