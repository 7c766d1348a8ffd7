package handler

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	grievanceapp "github.com/grievancenet/backend/internal/application/grievance"
	"github.com/grievancenet/backend/internal/domain/shared"
	"github.com/grievancenet/backend/internal/infrastructure/logger"
	"github.com/grievancenet/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Stream event types besides the grievance event names
const (
	EventSnapshot = "snapshot"
	EventPing     = "ping"
	// EventResync ends a stream that fell behind; the client reconnects for a fresh snapshot
	EventResync = "resync"

	streamSSE = "sse"
	streamWS  = "ws"

	// snapshotSize bounds the listing sent when a stream opens. Older rows
	// are reached through the paged listing endpoints.
	snapshotSize = 100

	wsWriteWait      = 10 * time.Second
	wsMaxMessageSize = 512
)

// StreamMessage is one frame of a live status view
type StreamMessage struct {
	Type       string                           `json:"type"`
	Grievance  *grievanceapp.GrievanceResponse  `json:"grievance,omitempty"`
	Grievances []grievanceapp.GrievanceResponse `json:"grievances,omitempty"`
	Total      int64                            `json:"total,omitempty"`
}

// StreamConfig configures the live views
type StreamConfig struct {
	// Heartbeat is the interval of SSE pings and WebSocket ping frames
	Heartbeat time.Duration
	// AllowedOrigins are accepted for WebSocket upgrades. Empty means same
	// origin only; "*" accepts any.
	AllowedOrigins []string
}

// StreamHandler pushes grievance changes to citizens and administrators
// over Server-Sent Events or WebSocket. A stream opens with a snapshot of
// the newest 100 grievances in its scope, with Total counting all of them,
// then carries every change in that scope. Clients page older rows through
// GET /grievances/mine or GET /admin/grievances.
type StreamHandler struct {
	BaseHandler
	feed       *grievanceapp.Feed
	grievances *grievanceapp.GrievanceService
	metrics    *telemetry.GrievanceMetrics
	heartbeat  time.Duration
	upgrader   websocket.Upgrader
}

// NewStreamHandler creates a StreamHandler. metrics may be nil.
func NewStreamHandler(
	feed *grievanceapp.Feed,
	grievances *grievanceapp.GrievanceService,
	metrics *telemetry.GrievanceMetrics,
	cfg StreamConfig,
) *StreamHandler {
	heartbeat := cfg.Heartbeat
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	h := &StreamHandler{
		feed:       feed,
		grievances: grievances,
		metrics:    metrics,
		heartbeat:  heartbeat,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	if len(cfg.AllowedOrigins) > 0 {
		origins := cfg.AllowedOrigins
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(origins, "*") || slices.Contains(origins, origin)
		}
	}
	return h
}

// MineSSE godoc
// @ID           streamMyGrievances
// @Summary      Live view of my grievances (SSE)
// @Description  Server-Sent Events. The first event is "snapshot" with the newest 100 grievances and the total count; older ones are paged through GET /grievances/mine. Later events are named after the change (GrievanceCreated, GrievanceStatusChanged). A "resync" event means the stream fell behind and closes; reconnect for a fresh snapshot. Browsers pass the token as ?access_token=.
// @Tags         grievances
// @Produce      text/event-stream
// @Param        access_token query string false "Access token for clients that cannot set headers"
// @Success      200 {object} StreamMessage
// @Failure      401 {object} ErrorResponse
// @Failure      503 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /grievances/mine/stream [get]
func (h *StreamHandler) MineSSE(c *gin.Context) {
	h.serveSSE(c, false)
}

// AllSSE godoc
// @ID           streamAllGrievances
// @Summary      Live view of all grievances (SSE)
// @Description  Same as the citizen stream, across every grievance. The snapshot holds the newest 100; page older ones through GET /admin/grievances. Administrators only.
// @Tags         admin
// @Produce      text/event-stream
// @Param        access_token query string false "Access token for clients that cannot set headers"
// @Success      200 {object} StreamMessage
// @Failure      401 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Failure      503 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /admin/grievances/stream [get]
func (h *StreamHandler) AllSSE(c *gin.Context) {
	h.serveSSE(c, true)
}

// MineWS godoc
// @ID           socketMyGrievances
// @Summary      Live view of my grievances (WebSocket)
// @Description  JSON StreamMessage frames, starting with a snapshot of the newest 100. A stream that falls behind is closed with code 1013 (try again later).
// @Tags         grievances
// @Param        access_token query string false "Access token for clients that cannot set headers"
// @Success      101 {object} StreamMessage
// @Failure      401 {object} ErrorResponse
// @Failure      503 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /grievances/mine/ws [get]
func (h *StreamHandler) MineWS(c *gin.Context) {
	h.serveWS(c, false)
}

// AllWS godoc
// @ID           socketAllGrievances
// @Summary      Live view of all grievances (WebSocket)
// @Description  JSON StreamMessage frames across every grievance. Administrators only.
// @Tags         admin
// @Param        access_token query string false "Access token for clients that cannot set headers"
// @Success      101 {object} StreamMessage
// @Failure      401 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Failure      503 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /admin/grievances/ws [get]
func (h *StreamHandler) AllWS(c *gin.Context) {
	h.serveWS(c, true)
}

// open subscribes before reading the snapshot so no change falls between
// the two. A change may then appear in both, which clients resolve by version.
func (h *StreamHandler) open(c *gin.Context, all bool) (*grievanceapp.Subscription, *StreamMessage, error) {
	actor, err := getActor(c)
	if err != nil {
		return nil, nil, err
	}

	sub, err := h.feed.Subscribe(grievanceapp.Scope{OwnerID: actor.UserID, All: all})
	if err != nil {
		return nil, nil, err
	}

	ctx := c.Request.Context()
	q := grievanceapp.ListQuery{PageSize: snapshotSize}
	var page *shared.Paginated[grievanceapp.GrievanceResponse]
	if all {
		page, err = h.grievances.ListAll(ctx, actor, q)
	} else {
		page, err = h.grievances.ListMine(ctx, actor.UserID, q)
	}
	if err != nil {
		sub.Close()
		return nil, nil, err
	}

	items := page.Items
	if items == nil {
		items = []grievanceapp.GrievanceResponse{}
	}
	return sub, &StreamMessage{Type: EventSnapshot, Grievances: items, Total: page.Total}, nil
}

func changeMessage(change grievanceapp.Change) StreamMessage {
	g := change.Grievance
	return StreamMessage{Type: change.Type, Grievance: &g}
}

func (h *StreamHandler) serveSSE(c *gin.Context, all bool) {
	sub, snapshot, err := h.open(c, all)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	defer sub.Close()

	ctx := c.Request.Context()
	log := logger.L(ctx).With(zap.String("subscription_id", sub.ID().String()), zap.String("stream", streamSSE))
	h.metrics.StreamOpened(ctx, streamSSE)
	defer h.metrics.StreamClosed(context.WithoutCancel(ctx), streamSSE)
	log.Debug("Stream opened")

	// The server write timeout would otherwise cut the stream
	_ = http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{})

	header := c.Writer.Header()
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")

	c.SSEvent(EventSnapshot, snapshot)
	c.Writer.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("Stream closed by client", zap.Int64("dropped", sub.Dropped()))
			return
		case change, ok := <-sub.Changes():
			if !ok {
				if sub.Evicted() {
					log.Info("Stream fell behind, asking client to resync", zap.Int64("dropped", sub.Dropped()))
					c.SSEvent(EventResync, StreamMessage{Type: EventResync})
					c.Writer.Flush()
					return
				}
				log.Debug("Stream closed by server")
				return
			}
			c.SSEvent(change.Type, changeMessage(change))
			c.Writer.Flush()
		case now := <-ticker.C:
			c.SSEvent(EventPing, now.UTC().Format(time.RFC3339))
			c.Writer.Flush()
		}
	}
}

func (h *StreamHandler) serveWS(c *gin.Context, all bool) {
	sub, snapshot, err := h.open(c, all)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	defer sub.Close()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already answered the client
		logger.L(c.Request.Context()).Debug("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	log := logger.L(ctx).With(zap.String("subscription_id", sub.ID().String()), zap.String("stream", streamWS))
	h.metrics.StreamOpened(ctx, streamWS)
	defer h.metrics.StreamClosed(context.WithoutCancel(ctx), streamWS)
	log.Debug("Stream opened")

	// The read loop only detects the client going away and answers pongs
	gone := make(chan struct{})
	pongWait := h.heartbeat * 2
	go func() {
		defer close(gone)
		conn.SetReadLimit(wsMaxMessageSize)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Debug("WebSocket read failed", zap.Error(err))
				}
				return
			}
		}
	}()

	if err := h.writeJSON(conn, snapshot); err != nil {
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-gone:
			log.Debug("Stream closed by client", zap.Int64("dropped", sub.Dropped()))
			return
		case change, ok := <-sub.Changes():
			if !ok {
				code, reason := websocket.CloseGoingAway, "server shutting down"
				if sub.Evicted() {
					log.Info("Stream fell behind, asking client to resync", zap.Int64("dropped", sub.Dropped()))
					code, reason = websocket.CloseTryAgainLater, EventResync
				}
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
				return
			}
			msg := changeMessage(change)
			if err := h.writeJSON(conn, &msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *StreamHandler) writeJSON(conn *websocket.Conn, msg *StreamMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(msg)
}
