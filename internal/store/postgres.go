package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/DoyleJ11/party-quiz-backend/internal/engine"
)

const uniqueViolation = "23505"

type sessionRow struct {
	ID                 string         `gorm:"primaryKey;size:36"`
	JoinCode           string         `gorm:"size:12;uniqueIndex;not null"`
	Language           string         `gorm:"size:8;not null"`
	Phase              string         `gorm:"size:32;not null"`
	CategoryIndex      int            `gorm:"not null;default:0"`
	QuestionIndex      int            `gorm:"not null;default:0"`
	SelectedCategories datatypes.JSON `gorm:"type:jsonb;not null"`
	TTSEnabled         bool           `gorm:"not null;default:false"`
	ShowAnswers        bool           `gorm:"not null;default:false"`
	HostConfirmed      bool           `gorm:"not null;default:false"`
	IdentitiesRevealed bool           `gorm:"not null;default:false"`
	Rules              datatypes.JSON `gorm:"type:jsonb;not null"`
	Quiz               datatypes.JSON `gorm:"type:jsonb;not null"`
	Bingo              datatypes.JSON `gorm:"type:jsonb"`
	Timer              datatypes.JSON `gorm:"type:jsonb"`
	TimerSeq           int            `gorm:"not null;default:0"`
	Roast              string         `gorm:"type:text"`
	CreatedAt          time.Time      `gorm:"not null"`
	UpdatedAt          time.Time      `gorm:"not null"`
}

func (sessionRow) TableName() string { return "sessions" }

type teamRow struct {
	ID         string    `gorm:"primaryKey;size:36"`
	SessionID  string    `gorm:"size:36;index;not null"`
	Position   int       `gorm:"not null"`
	RealName   string    `gorm:"size:64;not null"`
	SecretName string    `gorm:"size:64;not null"`
	Avatar     string    `gorm:"size:64"`
	Score      int       `gorm:"not null;default:0"`
	IsHost     bool      `gorm:"not null;default:false"`
	Faction    string    `gorm:"size:1"`
	Secret     string    `gorm:"size:64;not null"`
	JoinedAt   time.Time `gorm:"not null"`
}

func (teamRow) TableName() string { return "teams" }

type questionRow struct {
	ID           string         `gorm:"primaryKey;size:36"`
	SessionID    string         `gorm:"size:36;index;not null"`
	CategoryID   string         `gorm:"size:64;not null"`
	Position     int            `gorm:"not null"`
	Text         string         `gorm:"type:text;not null"`
	Translation  string         `gorm:"type:text"`
	Options      datatypes.JSON `gorm:"type:jsonb;not null"`
	CorrectIndex int            `gorm:"not null"`
}

func (questionRow) TableName() string { return "questions" }

// quizRow is engine.Quiz without its questions, which live in their own table.
type quizRow struct {
	Stage     engine.QuizStage         `json:"stage"`
	LoadSeq   int                      `json:"load_seq"`
	Answers   map[string]engine.Answer `json:"answers,omitempty"`
	LastError string                   `json:"last_error,omitempty"`
}

// Postgres stores sessions relationally through gorm: one row per session,
// team and loaded question.
type Postgres struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewPostgres(dsn string, log *zap.Logger) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open postgres: %w", err)
	}
	if err := db.AutoMigrate(&sessionRow{}, &teamRow{}, &questionRow{}); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	log.Info("postgres store ready")
	return &Postgres{db: db, log: log}, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

func (p *Postgres) CreateSession(ctx context.Context, s engine.State) error {
	row, teams, questions, err := toRows(s)
	if err != nil {
		return err
	}
	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		return writeChildren(tx, s.SessionID, teams, questions)
	})
	if isUniqueViolation(err) {
		return ErrDuplicateCode
	}
	if err != nil {
		return fmt.Errorf("store: create session: %w", err)
	}
	return nil
}

func (p *Postgres) Save(ctx context.Context, s engine.State) error {
	row, teams, questions, err := toRows(s)
	if err != nil {
		return err
	}
	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
			return err
		}
		return writeChildren(tx, s.SessionID, teams, questions)
	})
	if err != nil {
		return fmt.Errorf("store: save session %s: %w", s.SessionID, err)
	}
	return nil
}

func writeChildren(tx *gorm.DB, sessionID string, teams []teamRow, questions []questionRow) error {
	if len(teams) > 0 {
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&teams).Error; err != nil {
			return err
		}
	}
	// Only the current category's questions are kept.
	if err := tx.Where("session_id = ?", sessionID).Delete(&questionRow{}).Error; err != nil {
		return err
	}
	if len(questions) > 0 {
		return tx.Create(&questions).Error
	}
	return nil
}

func (p *Postgres) Load(ctx context.Context, id string) (engine.State, error) {
	return p.load(ctx, p.db.WithContext(ctx).Where("id = ?", id))
}

func (p *Postgres) FindByCode(ctx context.Context, code string) (engine.State, error) {
	return p.load(ctx, p.db.WithContext(ctx).Where("join_code = ?", normalizeCode(code)))
}

func (p *Postgres) load(ctx context.Context, q *gorm.DB) (engine.State, error) {
	var row sessionRow
	if err := q.First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return engine.State{}, ErrNotFound
		}
		return engine.State{}, fmt.Errorf("store: load session: %w", err)
	}
	var teams []teamRow
	if err := p.db.WithContext(ctx).Where("session_id = ?", row.ID).Order("position").Find(&teams).Error; err != nil {
		return engine.State{}, fmt.Errorf("store: load teams: %w", err)
	}
	var questions []questionRow
	if err := p.db.WithContext(ctx).Where("session_id = ?", row.ID).Order("position").Find(&questions).Error; err != nil {
		return engine.State{}, fmt.Errorf("store: load questions: %w", err)
	}
	return fromRows(row, teams, questions)
}

func (p *Postgres) ListTeams(ctx context.Context, sessionID string) ([]engine.Team, error) {
	var rows []teamRow
	if err := p.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("position").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: list teams: %w", err)
	}
	out := make([]engine.Team, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.team())
	}
	return out, nil
}

func (p *Postgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toRows(s engine.State) (sessionRow, []teamRow, []questionRow, error) {
	selected, err := json.Marshal(s.SelectedCategoryIDs)
	if err != nil {
		return sessionRow{}, nil, nil, err
	}
	rules, err := json.Marshal(s.Rules)
	if err != nil {
		return sessionRow{}, nil, nil, err
	}
	quiz, err := json.Marshal(quizRow{
		Stage:     s.Quiz.Stage,
		LoadSeq:   s.Quiz.LoadSeq,
		Answers:   s.Quiz.Answers,
		LastError: s.Quiz.LastError,
	})
	if err != nil {
		return sessionRow{}, nil, nil, err
	}
	row := sessionRow{
		ID:                 s.SessionID,
		JoinCode:           normalizeCode(s.JoinCode),
		Language:           string(s.Language),
		Phase:              string(s.Phase),
		CategoryIndex:      s.CurrentCategoryIndex,
		QuestionIndex:      s.CurrentQuestionIndex,
		SelectedCategories: selected,
		TTSEnabled:         s.TTSEnabled,
		ShowAnswers:        s.ShowAnswers,
		HostConfirmed:      s.HostConfirmed,
		IdentitiesRevealed: s.IdentitiesRevealed,
		Rules:              rules,
		Quiz:               quiz,
		TimerSeq:           s.TimerSeq,
		Roast:              s.Roast,
		CreatedAt:          s.CreatedAt,
	}
	if s.Bingo != nil {
		if row.Bingo, err = json.Marshal(s.Bingo); err != nil {
			return sessionRow{}, nil, nil, err
		}
	}
	if s.Timer != nil {
		if row.Timer, err = json.Marshal(s.Timer); err != nil {
			return sessionRow{}, nil, nil, err
		}
	}

	teams := make([]teamRow, 0, len(s.Teams))
	for i, t := range s.Teams {
		teams = append(teams, teamRow{
			ID:         t.ID,
			SessionID:  s.SessionID,
			Position:   i,
			RealName:   t.RealName,
			SecretName: t.SecretName,
			Avatar:     t.Avatar,
			Score:      t.Score,
			IsHost:     t.IsHost,
			Faction:    string(t.Faction),
			Secret:     t.Secret,
			JoinedAt:   t.JoinedAt,
		})
	}

	questions := make([]questionRow, 0, len(s.Quiz.Questions))
	for _, q := range s.Quiz.Questions {
		opts, err := json.Marshal(q.Options)
		if err != nil {
			return sessionRow{}, nil, nil, err
		}
		questions = append(questions, questionRow{
			ID:           q.ID,
			SessionID:    s.SessionID,
			CategoryID:   q.CategoryID,
			Position:     q.Index,
			Text:         q.Text.Primary,
			Translation:  q.Text.Secondary,
			Options:      opts,
			CorrectIndex: q.CorrectIndex,
		})
	}
	return row, teams, questions, nil
}

func (r teamRow) team() engine.Team {
	return engine.Team{
		ID:         r.ID,
		SessionID:  r.SessionID,
		RealName:   r.RealName,
		SecretName: r.SecretName,
		Avatar:     r.Avatar,
		Score:      r.Score,
		IsHost:     r.IsHost,
		Faction:    engine.Faction(r.Faction),
		Secret:     r.Secret,
		JoinedAt:   r.JoinedAt,
	}
}

func fromRows(row sessionRow, teams []teamRow, questions []questionRow) (engine.State, error) {
	s := engine.State{
		SessionID:            row.ID,
		JoinCode:             row.JoinCode,
		Language:             engine.Language(row.Language),
		Phase:                engine.Phase(row.Phase),
		CurrentCategoryIndex: row.CategoryIndex,
		CurrentQuestionIndex: row.QuestionIndex,
		TTSEnabled:           row.TTSEnabled,
		ShowAnswers:          row.ShowAnswers,
		HostConfirmed:        row.HostConfirmed,
		IdentitiesRevealed:   row.IdentitiesRevealed,
		TimerSeq:             row.TimerSeq,
		Roast:                row.Roast,
		CreatedAt:            row.CreatedAt,
		SelectedCategoryIDs:  []string{},
		Teams:                make([]engine.Team, 0, len(teams)),
	}
	if !s.Phase.Valid() {
		return engine.State{}, fmt.Errorf("store: session %s has unknown phase %q", row.ID, row.Phase)
	}
	if err := json.Unmarshal(row.SelectedCategories, &s.SelectedCategoryIDs); err != nil {
		return engine.State{}, fmt.Errorf("store: decode categories: %w", err)
	}
	if err := json.Unmarshal(row.Rules, &s.Rules); err != nil {
		return engine.State{}, fmt.Errorf("store: decode rules: %w", err)
	}
	var quiz quizRow
	if err := json.Unmarshal(row.Quiz, &quiz); err != nil {
		return engine.State{}, fmt.Errorf("store: decode quiz: %w", err)
	}
	s.Quiz = engine.Quiz{Stage: quiz.Stage, LoadSeq: quiz.LoadSeq, Answers: quiz.Answers, LastError: quiz.LastError}
	if len(row.Bingo) > 0 && string(row.Bingo) != "null" {
		s.Bingo = &engine.Bingo{}
		if err := json.Unmarshal(row.Bingo, s.Bingo); err != nil {
			return engine.State{}, fmt.Errorf("store: decode bingo: %w", err)
		}
	}
	if len(row.Timer) > 0 && string(row.Timer) != "null" {
		s.Timer = &engine.Timer{}
		if err := json.Unmarshal(row.Timer, s.Timer); err != nil {
			return engine.State{}, fmt.Errorf("store: decode timer: %w", err)
		}
	}

	for _, t := range teams {
		s.Teams = append(s.Teams, t.team())
	}
	for _, q := range questions {
		eq := engine.Question{
			ID:           q.ID,
			CategoryID:   q.CategoryID,
			Index:        q.Position,
			Text:         engine.LocalizedText{Primary: q.Text, Secondary: q.Translation},
			CorrectIndex: q.CorrectIndex,
		}
		if err := json.Unmarshal(q.Options, &eq.Options); err != nil {
			return engine.State{}, fmt.Errorf("store: decode options: %w", err)
		}
		s.Quiz.Questions = append(s.Quiz.Questions, eq)
	}
	return s, nil
}
