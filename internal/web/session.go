package web

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/yachtvault/yachtvault/internal/quiz"
)

const (
	sessionCookie     = "yv_quiz"
	defaultSessionTTL = 24 * time.Hour
	maxQueued         = 5
)

// Quiz defaults and slider bounds.
const (
	DefaultQuizType  = quiz.TypeMixed
	DefaultMinLength = 30
	DefaultMaxLength = 180
	SliderMin        = 20
	SliderMax        = 200
	SliderStep       = 5
)

// Settings are the quiz options picked by the player.
type Settings struct {
	Type      quiz.Type `json:"type"`
	MinLength int       `json:"min"`
	MaxLength int       `json:"max"`
}

// DefaultSettings returns the settings of a new quiz.
func DefaultSettings() Settings {
	return Settings{Type: DefaultQuizType, MinLength: DefaultMinLength, MaxLength: DefaultMaxLength}
}

// PendingQuestion is a question waiting in the session. The correct answer
// is not stored; it is derived from the catalog when the player answers.
type PendingQuestion struct {
	ID      string    `json:"id"`
	Type    quiz.Type `json:"type"`
	YachtID string    `json:"yacht"`
	Options []string  `json:"options"`
}

// Session is the quiz state carried in a signed cookie.
type Session struct {
	Settings Settings          `json:"settings"`
	Stats    quiz.Stats        `json:"stats"`
	Queue    []PendingQuestion `json:"queue,omitempty"`
	Answered bool              `json:"answered,omitempty"`
	Selected string            `json:"selected,omitempty"`
	Correct  string            `json:"correct,omitempty"`
	jwt.RegisteredClaims
}

// NewSession returns an empty session with the given settings.
func NewSession(settings Settings) *Session {
	return &Session{
		Settings:         settings,
		RegisteredClaims: jwt.RegisteredClaims{ID: uuid.NewString()},
	}
}

// Current returns the question at the head of the queue, or nil.
func (s *Session) Current() *PendingQuestion {
	if len(s.Queue) == 0 {
		return nil
	}
	return &s.Queue[0]
}

// Enqueue appends questions, keeping at most maxQueued.
func (s *Session) Enqueue(questions []quiz.Question) {
	for _, q := range questions {
		if len(s.Queue) >= maxQueued {
			return
		}
		s.Queue = append(s.Queue, PendingQuestion{
			ID:      q.QuestionID,
			Type:    q.QuestionType,
			YachtID: q.Yacht.ID,
			Options: q.Options,
		})
	}
}

// Answer records answer for the current question. It returns false when
// there is no current question or it was already answered.
func (s *Session) Answer(questionID, answer, correct string) bool {
	cur := s.Current()
	if cur == nil || s.Answered || cur.ID != questionID {
		return false
	}
	s.Stats.Record(answer == correct)
	s.Answered = true
	s.Selected = answer
	s.Correct = correct
	return true
}

// Advance drops the current question.
func (s *Session) Advance() {
	if len(s.Queue) > 0 {
		s.Queue = s.Queue[1:]
	}
	s.Answered = false
	s.Selected = ""
	s.Correct = ""
}

// =============================================================================
// Codec
// =============================================================================

// SessionCodec signs and verifies session cookies with HS256.
type SessionCodec struct {
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// NewSessionCodec creates a codec. A zero ttl means 24 hours.
func NewSessionCodec(secret []byte, ttl time.Duration, secure bool) (*SessionCodec, error) {
	if len(secret) == 0 {
		return nil, errors.New("session secret is empty")
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &SessionCodec{secret: secret, ttl: ttl, secure: secure, now: time.Now}, nil
}

// Encode signs s, refreshing its issue and expiry times.
func (c *SessionCodec) Encode(s *Session) (string, error) {
	now := c.now()
	s.IssuedAt = jwt.NewNumericDate(now)
	s.ExpiresAt = jwt.NewNumericDate(now.Add(c.ttl))
	if s.ID == "" {
		s.ID = uuid.NewString()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, s)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return signed, nil
}

// Decode verifies a token and returns its session.
func (c *SessionCodec) Decode(raw string) (*Session, error) {
	s := &Session{}
	_, err := jwt.ParseWithClaims(raw, s, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(c.now))
	if err != nil {
		return nil, fmt.Errorf("verify session: %w", err)
	}
	return s, nil
}

// Read returns the session in r, or nil when the cookie is missing or
// invalid.
func (c *SessionCodec) Read(r *http.Request) *Session {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil || cookie.Value == "" {
		return nil
	}
	s, err := c.Decode(cookie.Value)
	if err != nil {
		return nil
	}
	return s
}

// Write stores s in the response cookie.
func (c *SessionCodec) Write(w http.ResponseWriter, s *Session) error {
	token, err := c.Encode(s)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/quiz",
		MaxAge:   int(c.ttl / time.Second),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear removes the session cookie.
func (c *SessionCodec) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/quiz",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
