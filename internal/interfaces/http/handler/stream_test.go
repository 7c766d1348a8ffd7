package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	grievanceapp "github.com/grievancenet/backend/internal/application/grievance"
	"github.com/grievancenet/backend/internal/domain/grievance"
	"github.com/grievancenet/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sseEvent struct {
	name string
	msg  StreamMessage
}

// sseStream reads events from a live SSE response
type sseStream struct {
	t      *testing.T
	reader *bufio.Reader
}

func openSSE(t *testing.T, srv *httptest.Server, path, token string) *sseStream {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		srv.URL+path+"?access_token="+url.QueryEscape(token), nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")
	return &sseStream{t: t, reader: bufio.NewReader(resp.Body)}
}

// next returns the next event that is not a heartbeat
func (s *sseStream) next() sseEvent {
	s.t.Helper()
	for {
		ev := s.read()
		if ev.name != EventPing {
			return ev
		}
	}
}

func (s *sseStream) read() sseEvent {
	s.t.Helper()
	var ev sseEvent
	var data string
	for {
		line, err := s.reader.ReadString('\n')
		require.NoError(s.t, err)
		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
			if ev.name == "" && data == "" {
				continue
			}
			if ev.name != EventPing {
				require.NoError(s.t, json.Unmarshal([]byte(data), &ev.msg), data)
			}
			return ev
		case strings.HasPrefix(line, "event:"):
			ev.name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data += strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}
}

func TestStreamHandler_MineSSE(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	t.Cleanup(srv.Close)

	alice, _ := env.citizen()
	bob, _ := env.citizen()
	existing := env.submitOK(alice)

	stream := openSSE(t, srv, "/api/v1/grievances/mine/stream", alice)

	snapshot := stream.next()
	assert.Equal(t, EventSnapshot, snapshot.name)
	require.Len(t, snapshot.msg.Grievances, 1)
	assert.Equal(t, existing.ID, snapshot.msg.Grievances[0].ID)

	// Bob's grievance is outside Alice's scope
	env.submitOK(bob)
	created := env.submitOK(alice)

	ev := stream.next()
	assert.Equal(t, grievance.EventTypeGrievanceCreated, ev.name)
	require.NotNil(t, ev.msg.Grievance)
	assert.Equal(t, created.ID, ev.msg.Grievance.ID)
}

func TestStreamHandler_StatusChangeReachesOwnerAndAdmin(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	t.Cleanup(srv.Close)

	citizen, _ := env.citizen()
	admin, _ := env.admin()
	g := env.submitOK(citizen)

	mine := openSSE(t, srv, "/api/v1/grievances/mine/stream", citizen)
	all := openSSE(t, srv, "/api/v1/admin/grievances/stream", admin)
	mine.next()
	snapshot := all.next()
	require.Len(t, snapshot.msg.Grievances, 1)
	assert.Equal(t, int64(1), snapshot.msg.Total)

	w := env.doJSON(http.MethodPut, "/api/v1/admin/grievances/"+g.ID.String()+"/status", admin,
		map[string]any{"status": "In Progress"})
	require.Equal(t, http.StatusOK, w.Code)

	for _, s := range []*sseStream{mine, all} {
		ev := s.next()
		assert.Equal(t, grievance.EventTypeGrievanceStatusChanged, ev.name)
		require.NotNil(t, ev.msg.Grievance)
		assert.Equal(t, grievance.StatusInProgress, ev.msg.Grievance.Status)
	}
}

func TestStreamHandler_Heartbeat(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	t.Cleanup(srv.Close)

	token, _ := env.citizen()
	stream := openSSE(t, srv, "/api/v1/grievances/mine/stream", token)
	stream.next()

	assert.Equal(t, EventPing, stream.read().name)
}

func TestStreamHandler_AllRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.citizen()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/grievances/stream?access_token="+token, nil)
	w := env.do(req, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestStreamHandler_FeedFull(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.citizen()

	for i := 0; i < 4; i++ {
		sub, err := env.feed.Subscribe(grievanceapp.Scope{All: true})
		require.NoError(t, err)
		t.Cleanup(sub.Close)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/grievances/mine/stream", nil)
	w := env.do(req, token)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	resp := decodeResponse(t, w, nil)
	assert.Equal(t, dto.ErrCodeTooManyStreams, resp.Error.Code)
}

func TestStreamHandler_MineWS(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	t.Cleanup(srv.Close)

	token, _ := env.citizen()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/grievances/mine/ws?access_token=" + url.QueryEscape(token)
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))

	var snapshot StreamMessage
	require.NoError(t, conn.ReadJSON(&snapshot))
	assert.Equal(t, EventSnapshot, snapshot.Type)
	assert.Empty(t, snapshot.Grievances)

	created := env.submitOK(token)

	var change StreamMessage
	require.NoError(t, conn.ReadJSON(&change))
	assert.Equal(t, grievance.EventTypeGrievanceCreated, change.Type)
	require.NotNil(t, change.Grievance)
	assert.Equal(t, created.ID, change.Grievance.ID)
}

func TestStreamHandler_WSClosesOnClientDisconnect(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	t.Cleanup(srv.Close)

	token, _ := env.citizen()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/grievances/mine/ws?access_token=" + url.QueryEscape(token)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	var snapshot StreamMessage
	require.NoError(t, conn.ReadJSON(&snapshot))
	assert.Equal(t, 1, env.feed.Len())

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))
	_ = conn.Close()

	assert.Eventually(t, func() bool { return env.feed.Len() == 0 }, 5*time.Second, 20*time.Millisecond)
}

func TestStreamHandler_WSRequiresToken(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/grievances/mine/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
