package web

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/yachtvault/yachtvault/internal/catalog"
	"github.com/yachtvault/yachtvault/internal/quiz"
)

const (
	msgQuizFailed     = "Failed to generate quiz question"
	msgQuizNotEnough  = "Not enough yachts in this length range. Try widening it."
	promptName        = "Which yacht is this?"
	promptBuilder     = "Which builder made this yacht?"
	quizGenerateTries = 3
)

// QuizTypeOption is one entry of the quiz type selector.
type QuizTypeOption struct {
	Value quiz.Type
	Label string
}

var quizTypeOptions = []QuizTypeOption{
	{quiz.TypeMixed, "Mixed"},
	{quiz.TypeName, "Name"},
	{quiz.TypeBuilder, "Builder"},
}

// ParseSettings reads quiz settings from a query, falling back to base for
// missing values. Lengths are clamped to the slider range and swapped when
// reversed.
func ParseSettings(values url.Values, base Settings) Settings {
	s := base
	if raw := values.Get("type"); raw != "" {
		s.Type = quiz.ParseType(raw)
	}
	if n, err := strconv.Atoi(values.Get("minLength")); err == nil {
		s.MinLength = n
	}
	if n, err := strconv.Atoi(values.Get("maxLength")); err == nil {
		s.MaxLength = n
	}
	s.MinLength = clamp(s.MinLength, SliderMin, SliderMax)
	s.MaxLength = clamp(s.MaxLength, SliderMin, SliderMax)
	if s.MinLength > s.MaxLength {
		s.MinLength, s.MaxLength = s.MaxLength, s.MinLength
	}
	return s
}

func clamp(n, lo, hi int) int {
	return min(max(n, lo), hi)
}

type answerOption struct {
	Text     string
	Correct  bool
	Selected bool
}

type questionView struct {
	ID       string
	Prompt   string
	Picture  string
	Yacht    catalog.Yacht
	Options  []answerOption
	Answered bool
	Right    bool
	Correct  string
}

type quizView struct {
	Settings   Settings
	Types      []QuizTypeOption
	SliderMin  int
	SliderMax  int
	SliderStep int
	Stats      quiz.Stats
	Accuracy   float64
	Question   *questionView
	Error      string
}

func (h *Handler) handleQuiz(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Read(r)
	if sess == nil {
		sess = NewSession(DefaultSettings())
	}

	values := r.URL.Query()
	if values.Has("type") || values.Has("minLength") || values.Has("maxLength") {
		// new settings restart the quiz
		if settings := ParseSettings(values, sess.Settings); settings != sess.Settings {
			sess = NewSession(settings)
		}
	}

	view := quizView{
		Settings:   sess.Settings,
		Types:      quizTypeOptions,
		SliderMin:  SliderMin,
		SliderMax:  SliderMax,
		SliderStep: SliderStep,
	}

	status := http.StatusOK
	question, err := h.currentQuestion(r, sess)
	if err != nil {
		status = http.StatusInternalServerError
		view.Error = msgQuizFailed
		switch {
		case errors.Is(err, catalog.ErrNotConfigured):
			view.Error = msgNotConfigured
		case errors.Is(err, quiz.ErrNotEnoughYachts), errors.Is(err, quiz.ErrNoQuestions):
			status = http.StatusOK
			view.Error = msgQuizNotEnough
		default:
			h.logger.WithContext(r.Context()).WithError(err).Error("quiz generation failed")
		}
	}
	view.Question = question
	view.Stats = sess.Stats
	view.Accuracy = sess.Stats.Accuracy()

	if err := h.sessions.Write(w, sess); err != nil {
		h.logger.WithContext(r.Context()).WithError(err).Error("write quiz session")
	}
	h.render(w, r, status, "quiz", pageData{Title: "Yacht Quiz", Active: "quiz", Data: view})
}

// currentQuestion returns the view of the session's current question,
// generating a new batch when the queue is empty. Questions whose yacht
// disappeared from the catalog are skipped.
func (h *Handler) currentQuestion(r *http.Request, sess *Session) (*questionView, error) {
	for attempt := 0; attempt < quizGenerateTries; attempt++ {
		if sess.Current() == nil {
			questions, err := h.quiz.Generate(r.Context(), quiz.Request{
				Type:      sess.Settings.Type,
				MinLength: &sess.Settings.MinLength,
				MaxLength: &sess.Settings.MaxLength,
			})
			if err != nil {
				return nil, err
			}
			sess.Enqueue(questions)
		}

		cur := sess.Current()
		y, err := h.store.GetYacht(r.Context(), cur.YachtID)
		if errors.Is(err, catalog.ErrNotFound) {
			sess.Advance()
			continue
		}
		if err != nil {
			return nil, err
		}
		return newQuestionView(cur, y, sess), nil
	}
	return nil, quiz.ErrNoQuestions
}

func newQuestionView(cur *PendingQuestion, y catalog.Yacht, sess *Session) *questionView {
	v := &questionView{
		ID:       cur.ID,
		Prompt:   promptName,
		Picture:  firstPicture(y),
		Yacht:    y,
		Answered: sess.Answered,
	}
	if cur.Type == quiz.TypeBuilder {
		v.Prompt = promptBuilder
	}
	if sess.Answered {
		v.Right = sess.Selected == sess.Correct
		v.Correct = sess.Correct
	}
	for _, opt := range cur.Options {
		v.Options = append(v.Options, answerOption{
			Text:     opt,
			Correct:  sess.Answered && opt == sess.Correct,
			Selected: sess.Answered && opt == sess.Selected,
		})
	}
	return v
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	defer http.Redirect(w, r, "/quiz", http.StatusSeeOther)

	sess := h.sessions.Read(r)
	if sess == nil || sess.Answered {
		return
	}
	cur := sess.Current()
	if cur == nil || r.PostFormValue("questionId") != cur.ID {
		return
	}

	y, err := h.store.GetYacht(r.Context(), cur.YachtID)
	if err != nil {
		h.logger.WithContext(r.Context()).WithError(err).WithField("yacht_id", cur.YachtID).Warn("quiz answer lookup failed")
		return
	}

	if sess.Answer(cur.ID, r.PostFormValue("answer"), quiz.AnswerFor(cur.Type, y)) {
		if err := h.sessions.Write(w, sess); err != nil {
			h.logger.WithContext(r.Context()).WithError(err).Error("write quiz session")
		}
	}
}

func (h *Handler) handleNext(w http.ResponseWriter, r *http.Request) {
	if sess := h.sessions.Read(r); sess != nil {
		sess.Advance()
		if err := h.sessions.Write(w, sess); err != nil {
			h.logger.WithContext(r.Context()).WithError(err).Error("write quiz session")
		}
	}
	http.Redirect(w, r, "/quiz", http.StatusSeeOther)
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	h.sessions.Clear(w)
	http.Redirect(w, r, "/quiz", http.StatusSeeOther)
}
