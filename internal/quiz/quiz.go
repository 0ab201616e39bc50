// Package quiz assembles multiple-choice yacht questions from random samples
// of the catalog. Questions are ephemeral and never stored.
package quiz

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/yachtvault/yachtvault/internal/catalog"
	"github.com/yachtvault/yachtvault/internal/metrics"
)

// Type selects what a question asks about.
type Type string

const (
	TypeName    Type = "name"
	TypeBuilder Type = "builder"
	TypeMixed   Type = "mixed"
)

// ParseType returns the quiz type named by raw. Empty or unknown values
// yield TypeName.
func ParseType(raw string) Type {
	switch Type(strings.ToLower(strings.TrimSpace(raw))) {
	case TypeBuilder:
		return TypeBuilder
	case TypeMixed:
		return TypeMixed
	default:
		return TypeName
	}
}

const (
	// OptionsPerQuestion is the number of choices offered, including the
	// correct one.
	OptionsPerQuestion = 4
	// MaxQuestions bounds one generated batch.
	MaxQuestions = 10
)

var (
	// ErrNotEnoughYachts is returned when the pool cannot fill one question.
	ErrNotEnoughYachts = errors.New("quiz: not enough yachts in the database for a quiz")
	// ErrNoQuestions is returned when every attempt was skipped.
	ErrNoQuestions = errors.New("quiz: could not generate any quiz questions")
)

// QuizYacht is the part of a yacht record shown with a question.
type QuizYacht struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Builder       *string  `json:"builder"`
	YachtPictures []string `json:"yacht_pictures"`
	LengthM       *float64 `json:"length_m"`
	YearBuilt     *int     `json:"year_built"`
	MaxSpeedKn    *float64 `json:"max_speed_kn"`
	VolumeGT      *float64 `json:"volume_gt"`
	Price         *float64 `json:"price,omitempty"`
	Owner         *string  `json:"owner,omitempty"`
	DetailURL     *string  `json:"detail_url"`
}

func newQuizYacht(y catalog.Yacht) QuizYacht {
	pictures := y.YachtPictures
	if pictures == nil {
		pictures = []string{}
	}
	return QuizYacht{
		ID:            y.ID,
		Name:          y.DisplayName(),
		Builder:       y.Builder,
		YachtPictures: pictures,
		LengthM:       y.LengthM,
		YearBuilt:     y.YearBuilt,
		MaxSpeedKn:    y.MaxSpeedKn,
		VolumeGT:      y.VolumeGT,
		Price:         y.Price,
		Owner:         y.Owner,
		DetailURL:     y.DetailURL,
	}
}

// Question is one multiple-choice prompt.
type Question struct {
	Yacht         QuizYacht `json:"yacht"`
	Options       []string  `json:"options"`
	CorrectAnswer string    `json:"correctAnswer"`
	QuestionID    string    `json:"questionId"`
	QuestionType  Type      `json:"questionType"`
}

// IsCorrect reports whether answer is the correct option.
func (q Question) IsCorrect(answer string) bool {
	return answer == q.CorrectAnswer
}

// Request describes the batch to generate.
type Request struct {
	Type      Type
	MinLength *int
	MaxLength *int
}

// Source supplies yachts and builder names.
type Source interface {
	QuizPool(ctx context.Context, q catalog.PoolQuery) ([]catalog.Yacht, error)
	DistinctBuilders(ctx context.Context) ([]string, error)
}

// Generator builds question batches. It is safe for concurrent use.
type Generator struct {
	src Source

	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewGenerator creates a Generator seeded from the clock.
func NewGenerator(src Source) *Generator {
	return NewGeneratorWithRand(src, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewGeneratorWithRand creates a Generator using rng, for reproducible
// batches.
func NewGeneratorWithRand(src Source, rng *rand.Rand) *Generator {
	return &Generator{src: src, rng: rng, now: time.Now}
}

// Generate fetches a pool of candidate yachts and assembles up to
// MaxQuestions questions, removing OptionsPerQuestion yachts from the pool
// for each attempt.
func (g *Generator) Generate(ctx context.Context, req Request) ([]Question, error) {
	if req.Type == "" {
		req.Type = TypeName
	}

	pool, err := g.src.QuizPool(ctx, catalog.PoolQuery{
		Limit:     catalog.DefaultPoolSize,
		MinLength: req.MinLength,
		MaxLength: req.MaxLength,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch quiz pool: %w", err)
	}
	if len(pool) < OptionsPerQuestion {
		return nil, ErrNotEnoughYachts
	}

	var builders []string
	if req.Type == TypeBuilder || req.Type == TypeMixed {
		builders, err = g.src.DistinctBuilders(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch builders: %w", err)
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	pool = append([]catalog.Yacht(nil), pool...)
	stamp := g.now().UnixMilli()

	var questions []Question
	for i := 0; i < MaxQuestions; i++ {
		qType := req.Type
		if qType == TypeMixed {
			qType = TypeName
			if g.rng.Float64() > 0.5 {
				qType = TypeBuilder
			}
		}
		if len(pool) < OptionsPerQuestion {
			break
		}

		picked := make([]catalog.Yacht, 0, OptionsPerQuestion)
		for j := 0; j < OptionsPerQuestion; j++ {
			idx := g.rng.Intn(len(pool))
			picked = append(picked, pool[idx])
			pool = append(pool[:idx], pool[idx+1:]...)
		}

		subject := picked[0]
		if subject.DisplayName() == "" {
			continue
		}

		var q *Question
		switch qType {
		case TypeName:
			q = g.nameQuestion(subject, picked)
		case TypeBuilder:
			q = g.builderQuestion(subject, builders)
		}
		if q == nil {
			continue
		}
		q.QuestionID = fmt.Sprintf("quiz_%s_%d_%d", qType, stamp, i)
		questions = append(questions, *q)
		metrics.RecordQuizQuestion(string(qType))
	}

	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}
	return questions, nil
}

func (g *Generator) nameQuestion(subject catalog.Yacht, picked []catalog.Yacht) *Question {
	options := distinctNames(picked)
	if len(options) < OptionsPerQuestion {
		return nil
	}
	g.shuffle(options)
	return &Question{
		Yacht:         newQuizYacht(subject),
		Options:       options,
		CorrectAnswer: subject.DisplayName(),
		QuestionType:  TypeName,
	}
}

func (g *Generator) builderQuestion(subject catalog.Yacht, builders []string) *Question {
	correct := subject.BuilderName()
	if correct == "" {
		return nil
	}

	wrong := make([]string, 0, len(builders))
	for _, b := range builders {
		if b != correct && b != "" {
			wrong = append(wrong, b)
		}
	}

	options := []string{correct}
	seen := map[string]bool{correct: true}
	for len(options) < OptionsPerQuestion && len(wrong) > 0 {
		idx := g.rng.Intn(len(wrong))
		b := wrong[idx]
		wrong = append(wrong[:idx], wrong[idx+1:]...)
		if seen[b] {
			continue
		}
		seen[b] = true
		options = append(options, b)
	}
	if len(options) < OptionsPerQuestion {
		return nil
	}
	g.shuffle(options)
	return &Question{
		Yacht:         newQuizYacht(subject),
		Options:       options,
		CorrectAnswer: correct,
		QuestionType:  TypeBuilder,
	}
}

func (g *Generator) shuffle(s []string) {
	g.rng.Shuffle(len(s), func(i, j int) { s[i], s[j] = s[j], s[i] })
}

// distinctNames returns the non-empty names of ys, first occurrence wins.
func distinctNames(ys []catalog.Yacht) []string {
	var out []string
	seen := make(map[string]bool)
	for _, y := range ys {
		name := y.DisplayName()
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// =============================================================================
// Stats
// =============================================================================

// Stats is the running score of a quiz session.
type Stats struct {
	Correct    int `json:"correct"`
	Total      int `json:"total"`
	Streak     int `json:"streak"`
	BestStreak int `json:"bestStreak"`
}

// Record counts one answer. A wrong answer resets the streak.
func (s *Stats) Record(correct bool) {
	s.Total++
	if correct {
		s.Correct++
		s.Streak++
	} else {
		s.Streak = 0
	}
	if s.Streak > s.BestStreak {
		s.BestStreak = s.Streak
	}
}

// Accuracy returns the share of correct answers in percent.
func (s Stats) Accuracy() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Total) * 100
}

// AnswerFor returns the correct answer to a question of type t about y.
func AnswerFor(t Type, y catalog.Yacht) string {
	if t == TypeBuilder {
		return y.BuilderName()
	}
	return y.DisplayName()
}
