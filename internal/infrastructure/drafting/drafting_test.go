package drafting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	grievanceapp "github.com/grievancenet/backend/internal/application/grievance"
	"github.com/grievancenet/backend/internal/infrastructure/config"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestRenderLetter(t *testing.T) {
	letter := RenderLetter("Streetlight broken", "MG Road")

	assert.True(t, strings.HasPrefix(letter, "To,\nThe Concerned Authority\n\nSubject: Civic Grievance\n\nRespected Sir/Madam,"))
	assert.Contains(t, letter, "I would like to report that Streetlight broken in MG Road.")
	assert.True(t, strings.HasSuffix(letter, "Kindly take necessary action.\n\nThanking you."))
}

func TestRenderLetter_VerbatimInputs(t *testing.T) {
	letter := RenderLetter("100% of the drains %s are blocked", "")

	assert.Contains(t, letter, "that 100% of the drains %s are blocked in .")
}

func TestTemplateDrafter(t *testing.T) {
	content, err := NewTemplateDrafter().Draft(context.Background(), grievanceapp.DraftRequest{
		Problem:  "Garbage not collected",
		Location: "Benz Circle",
	})

	require.NoError(t, err)
	assert.Equal(t, RenderLetter("Garbage not collected", "Benz Circle"), content.DraftedMail)
	assert.Equal(t, TemplateDepartment, content.Department)
	assert.Equal(t, TemplateSummary, content.Summary)
	assert.Equal(t, TemplateAdvice, content.Advice)
}

func completionServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}
		resp := map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "test-model",
			"choices": []map[string]any{},
		}
		if content != "" {
			resp["choices"] = []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}}
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestDrafter(t *testing.T, baseURL string, timeout time.Duration) *OpenAIDrafter {
	t.Helper()
	d, err := NewOpenAIDrafter(config.AIConfig{
		Enabled: true,
		APIKey:  "test-key",
		BaseURL: baseURL,
		Model:   "test-model",
		Timeout: timeout,
	}, zaptest.NewLogger(t), option.WithMaxRetries(0))
	require.NoError(t, err)
	return d
}

func TestNewOpenAIDrafter_RequiresKey(t *testing.T) {
	_, err := NewOpenAIDrafter(config.AIConfig{Enabled: true}, nil)
	require.Error(t, err)
}

func TestOpenAIDrafter_Draft(t *testing.T) {
	req := grievanceapp.DraftRequest{Problem: "Water leakage", Location: "Vijayawada"}

	t.Run("parses fenced JSON", func(t *testing.T) {
		srv := completionServer(t, http.StatusOK,
			"```json\n{\"department\":\"Water\",\"summary\":\"Pipe leak\",\"advice\":\"Call the board\",\"draftedMail\":\"Dear Sir\"}\n```")
		d := newTestDrafter(t, srv.URL, time.Second)

		content, err := d.Draft(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "Water", content.Department)
		assert.Equal(t, "Pipe leak", content.Summary)
		assert.Equal(t, "Call the board", content.Advice)
		assert.Equal(t, "Dear Sir", content.DraftedMail)
	})

	t.Run("no choices", func(t *testing.T) {
		srv := completionServer(t, http.StatusOK, "")
		d := newTestDrafter(t, srv.URL, time.Second)

		_, err := d.Draft(context.Background(), req)
		assert.ErrorIs(t, err, ErrNoChoices)
	})

	t.Run("empty draftedMail", func(t *testing.T) {
		srv := completionServer(t, http.StatusOK, `{"department":"Water","draftedMail":"  "}`)
		d := newTestDrafter(t, srv.URL, time.Second)

		_, err := d.Draft(context.Background(), req)
		assert.ErrorIs(t, err, ErrEmptyDraft)
	})

	t.Run("provider error", func(t *testing.T) {
		srv := completionServer(t, http.StatusInternalServerError, "")
		d := newTestDrafter(t, srv.URL, time.Second)

		_, err := d.Draft(context.Background(), req)
		require.Error(t, err)
	})

	t.Run("timeout bounds the call", func(t *testing.T) {
		slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		t.Cleanup(slow.Close)
		d := newTestDrafter(t, slow.URL, 50*time.Millisecond)

		start := time.Now()
		_, err := d.Draft(context.Background(), req)
		require.Error(t, err)
		assert.Less(t, time.Since(start), time.Second)
	})
}

func TestParseDraft(t *testing.T) {
	t.Run("defaults department", func(t *testing.T) {
		content, err := parseDraft(`{"draftedMail":"Letter"}`)
		require.NoError(t, err)
		assert.Equal(t, TemplateDepartment, content.Department)
	})

	t.Run("no object", func(t *testing.T) {
		_, err := parseDraft("I cannot help with that")
		assert.ErrorIs(t, err, ErrMalformedDraft)
	})

	t.Run("broken object", func(t *testing.T) {
		_, err := parseDraft(`{"draftedMail": }`)
		assert.ErrorIs(t, err, ErrMalformedDraft)
	})
}
