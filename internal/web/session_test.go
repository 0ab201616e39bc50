package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yachtvault/yachtvault/internal/quiz"
)

func newTestCodec(t *testing.T) (*SessionCodec, *time.Time) {
	t.Helper()
	c, err := NewSessionCodec([]byte("test-secret"), time.Hour, false)
	require.NoError(t, err)
	now := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return now }
	return c, &now
}

func sampleSession() *Session {
	s := NewSession(DefaultSettings())
	s.Enqueue([]quiz.Question{
		{QuestionID: "quiz_name_1_0", QuestionType: quiz.TypeName, Yacht: quiz.QuizYacht{ID: "4"}, Options: []string{"a", "b", "c", "d"}},
		{QuestionID: "quiz_name_1_1", QuestionType: quiz.TypeBuilder, Yacht: quiz.QuizYacht{ID: "2"}, Options: []string{"e", "f", "g", "h"}},
	})
	return s
}

func TestSessionCodecRoundTrip(t *testing.T) {
	c, _ := newTestCodec(t)
	s := sampleSession()
	s.Stats.Record(true)

	token, err := c.Encode(s)
	require.NoError(t, err)

	got, err := c.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, s.Settings, got.Settings)
	assert.Equal(t, s.Stats, got.Stats)
	assert.Equal(t, s.Queue, got.Queue)
	assert.Equal(t, s.ID, got.ID)
	assert.NotContains(t, token, "correctAnswer")
}

func TestSessionCodecRejects(t *testing.T) {
	c, now := newTestCodec(t)
	token, err := c.Encode(sampleSession())
	require.NoError(t, err)

	t.Run("tampered", func(t *testing.T) {
		parts := strings.Split(token, ".")
		parts[2] = strings.Repeat("A", len(parts[2]))
		_, err := c.Decode(strings.Join(parts, "."))
		assert.Error(t, err)
	})

	t.Run("other secret", func(t *testing.T) {
		other, err := NewSessionCodec([]byte("another-secret"), time.Hour, false)
		require.NoError(t, err)
		other.now = c.now
		_, err = other.Decode(token)
		assert.Error(t, err)
	})

	t.Run("unsigned", func(t *testing.T) {
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, sampleSession()).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = c.Decode(unsigned)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		*now = now.Add(2 * time.Hour)
		_, err := c.Decode(token)
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})
}

func TestSessionCodecCookies(t *testing.T) {
	c, _ := newTestCodec(t)

	rec := httptest.NewRecorder()
	require.NoError(t, c.Write(rec, sampleSession()))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, sessionCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, "/quiz", cookies[0].Path)

	req := httptest.NewRequest(http.MethodGet, "/quiz", nil)
	req.AddCookie(cookies[0])
	s := c.Read(req)
	require.NotNil(t, s)
	assert.Len(t, s.Queue, 2)

	bad := httptest.NewRequest(http.MethodGet, "/quiz", nil)
	bad.AddCookie(&http.Cookie{Name: sessionCookie, Value: "garbage"})
	assert.Nil(t, c.Read(bad))
	assert.Nil(t, c.Read(httptest.NewRequest(http.MethodGet, "/quiz", nil)))

	rec = httptest.NewRecorder()
	c.Clear(rec)
	assert.Equal(t, -1, rec.Result().Cookies()[0].MaxAge)
}

func TestSessionAnswerOnce(t *testing.T) {
	s := sampleSession()

	assert.False(t, s.Answer("wrong-id", "a", "a"))
	assert.True(t, s.Answer("quiz_name_1_0", "b", "a"))
	assert.False(t, s.Answer("quiz_name_1_0", "a", "a"), "second answer is ignored")
	assert.Equal(t, quiz.Stats{Correct: 0, Total: 1}, s.Stats)
	assert.Equal(t, "b", s.Selected)
	assert.Equal(t, "a", s.Correct)

	s.Advance()
	assert.False(t, s.Answered)
	assert.Equal(t, "quiz_name_1_1", s.Current().ID)

	s.Advance()
	assert.Nil(t, s.Current())
}

func TestSessionEnqueueCaps(t *testing.T) {
	s := NewSession(DefaultSettings())
	qs := make([]quiz.Question, quiz.MaxQuestions)
	s.Enqueue(qs)
	assert.Len(t, s.Queue, maxQueued)
}

func TestNewSessionCodecRequiresSecret(t *testing.T) {
	_, err := NewSessionCodec(nil, 0, false)
	assert.Error(t, err)
}
