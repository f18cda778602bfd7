package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"codequest/internal/apperr"
	"codequest/internal/database"
	"codequest/internal/logger"
	"codequest/internal/models"
	"codequest/internal/repository"
)

// CatalogData is the import/export document for question content
type CatalogData struct {
	Version    string            `json:"version" yaml:"version"`
	ExportedAt time.Time         `json:"exported_at,omitempty" yaml:"exported_at,omitempty"`
	Questions  []CatalogQuestion `json:"questions" yaml:"questions"`
}

// CatalogQuestion is a question as authored, answer included
type CatalogQuestion struct {
	ID         int64    `json:"id" yaml:"id"`
	Skill      string   `json:"skill" yaml:"skill"`
	Difficulty float64  `json:"difficulty" yaml:"difficulty"`
	Tier       int      `json:"tier,omitempty" yaml:"tier,omitempty"`
	Tags       []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Prompt     string   `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	Answer     string   `json:"answer,omitempty" yaml:"answer,omitempty"`
}

func (c CatalogQuestion) toModel() models.Question {
	return models.Question{
		ID:         c.ID,
		SkillID:    c.Skill,
		Difficulty: c.Difficulty,
		Tier:       models.Tier(c.Tier),
		Tags:       c.Tags,
		Prompt:     c.Prompt,
		Answer:     c.Answer,
	}
}

func catalogQuestion(q models.Question) CatalogQuestion {
	return CatalogQuestion{
		ID:         q.ID,
		Skill:      q.SkillID,
		Difficulty: q.Difficulty,
		Tier:       int(q.Tier),
		Tags:       q.Tags,
		Prompt:     q.Prompt,
		Answer:     q.Answer,
	}
}

// ImportStats reports what an import changed
type ImportStats struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

// CatalogService loads and dumps the question catalog
type CatalogService struct {
	db        *database.DB
	questions *repository.QuestionRepository
	log       *logger.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(db *database.DB, questions *repository.QuestionRepository, log *logger.Logger) *CatalogService {
	return &CatalogService{db: db, questions: questions, log: log.With("service", "CatalogService")}
}

// FormatFromPath guesses the document format from a file extension
func FormatFromPath(path string) string {
	if strings.HasSuffix(strings.ToLower(path), ".json") {
		return "json"
	}
	return "yaml"
}

// Import reads a catalog document and upserts every question in one transaction
func (s *CatalogService) Import(ctx context.Context, r io.Reader, format string) (*ImportStats, error) {
	var data CatalogData
	switch strings.ToLower(format) {
	case "json":
		if err := json.NewDecoder(r).Decode(&data); err != nil {
			return nil, apperr.InvalidInput("failed to decode catalog: %v", err)
		}
	case "yaml", "yml", "":
		if err := yaml.NewDecoder(r).Decode(&data); err != nil {
			return nil, apperr.InvalidInput("failed to decode catalog: %v", err)
		}
	default:
		return nil, apperr.InvalidInput("unsupported catalog format %q", format)
	}

	if err := validateCatalog(data.Questions); err != nil {
		return nil, err
	}

	stats := &ImportStats{}
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		for _, cq := range data.Questions {
			q := cq.toModel()
			created, err := s.questions.Upsert(ctx, tx, &q)
			if err != nil {
				return err
			}
			if created {
				stats.Created++
			} else {
				stats.Updated++
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to import catalog: %w", err)
	}

	s.log.Info("catalog imported", "version", data.Version, "created", stats.Created, "updated", stats.Updated)
	return stats, nil
}

// Export writes the whole catalog to w
func (s *CatalogService) Export(ctx context.Context, w io.Writer, format string) error {
	questions, err := s.questions.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to export questions: %w", err)
	}
	data := CatalogData{
		Version:    "1.0",
		ExportedAt: time.Now().UTC(),
		Questions:  lo.Map(questions, func(q models.Question, _ int) CatalogQuestion { return catalogQuestion(q) }),
	}

	switch strings.ToLower(format) {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		err = encoder.Encode(data)
	case "yaml", "yml", "":
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		err = encoder.Encode(data)
		if err == nil {
			err = encoder.Close()
		}
	default:
		return apperr.InvalidInput("unsupported catalog format %q", format)
	}
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}

	s.log.Info("catalog exported", "questions", len(questions))
	return nil
}

func validateCatalog(questions []CatalogQuestion) error {
	ids := make(map[int64]bool, len(questions))
	for i, q := range questions {
		switch {
		case q.ID <= 0:
			return apperr.InvalidInput("question %d: id must be positive", i)
		case ids[q.ID]:
			return apperr.InvalidInput("question %d: duplicate id", q.ID)
		case strings.TrimSpace(q.Skill) == "":
			return apperr.InvalidInput("question %d: skill is required", q.ID)
		case !models.ValidRating(q.Difficulty):
			return apperr.InvalidInput("question %d: difficulty must be between %.0f and %.0f", q.ID, models.MinRating, models.MaxRating)
		case q.Tier != 0 && !models.Tier(q.Tier).Valid():
			return apperr.InvalidInput("question %d: tier must be 1, 2 or 3", q.ID)
		}
		ids[q.ID] = true
	}
	return nil
}
