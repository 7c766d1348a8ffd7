package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	grievanceapp "github.com/grievancenet/backend/internal/application/grievance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLegacyHandler_Root(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/", nil), "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Backend running", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
}

func TestLegacyHandler_Chat(t *testing.T) {
	env := newTestEnv(t)

	w := env.doJSON(http.MethodPost, "/chat", "", ChatRequest{
		Message:  "Streetlight broken for two weeks",
		Location: "Benz Circle",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var draft grievanceapp.Draft
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &draft))
	assert.NotEmpty(t, draft.DraftedMail)
	assert.NotEmpty(t, draft.Department)
	assert.False(t, draft.AIUsed)
	assert.Equal(t, "grievances@vmc.example.in", draft.MailTo)
	assert.NotContains(t, w.Body.String(), `"success"`)
}

func TestLegacyHandler_Chat_EmptyMessage(t *testing.T) {
	env := newTestEnv(t)

	for _, body := range []string{`{"message":"   "}`, `{}`} {
		req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		w := env.do(req, "")

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var draft grievanceapp.Draft
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &draft))
		assert.Contains(t, draft.DraftedMail, "Respected Sir/Madam")
		assert.False(t, draft.AIUsed)
	}
}

func TestLegacyHandler_Chat_MalformedBody(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewBufferString(`{"message":`))
	req.Header.Set("Content-Type", "application/json")
	w := env.do(req, "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Invalid request body"}`, w.Body.String())
}

func TestLegacyHandler_SendEmail(t *testing.T) {
	env := newTestEnv(t)

	req := newMultipartRequest(t, "/send-email", map[string]string{
		"body":              "Dear Sir/Madam, the drain is blocked.",
		"detailed_location": "Labbipet, 4th lane",
		"latitude":          "16.5",
		"longitude":         "80.63",
	}, []upload{
		{name: "drain.png", contentType: "image/png", data: pngHeader},
		{name: "notes.txt", contentType: "text/plain", data: []byte("any file type is relayed")},
	})
	w := env.do(req, "")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"success":true}`, w.Body.String())

	sent := env.relay.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Labbipet, 4th lane", sent[0].DetailedLocation)
	require.Len(t, sent[0].Attachments, 2)
	assert.Equal(t, "drain.png", sent[0].Attachments[0].FileName)
}

func TestLegacyHandler_SendEmail_BodyMissing(t *testing.T) {
	env := newTestEnv(t)

	req := newMultipartRequest(t, "/send-email", map[string]string{"body": "  "}, nil)
	w := env.do(req, "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Mail body missing"}`, w.Body.String())
	assert.Empty(t, env.relay.sent())
}

func TestLegacyHandler_SendEmail_RelayFails(t *testing.T) {
	env := newTestEnv(t)
	env.relay.fail(errors.New("535 authentication failed"))

	req := newMultipartRequest(t, "/send-email", map[string]string{"body": "Dear Sir/Madam"}, nil)
	w := env.do(req, "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Mail failed"}`, w.Body.String())
}

func TestLegacyHandler_SendEmail_TooManyFiles(t *testing.T) {
	env := newTestEnv(t)

	files := make([]upload, 4)
	for i := range files {
		files[i] = upload{name: "p.png", contentType: "image/png", data: pngHeader}
	}
	req := newMultipartRequest(t, "/send-email", map[string]string{"body": "Dear Sir/Madam"}, files)
	w := env.do(req, "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, env.relay.sent())
}
