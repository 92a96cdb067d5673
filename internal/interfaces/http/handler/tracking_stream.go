package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/order"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// SSE event names
const (
	SSEEventConnected      = "connected"
	SSEEventHeartbeat      = "heartbeat"
	SSEEventTrackingUpdate = "tracking_update"
)

// ErrCodeMaxConnections is returned when the stream is at capacity
const ErrCodeMaxConnections = "MAX_CONNECTIONS_REACHED"

// SSEMessage is a single server-sent event
type SSEMessage struct {
	Event string `json:"event"`
	Data  string `json:"data"`
	ID    string `json:"id,omitempty"`
}

// streamClient is one connected subscriber. Admins receive every update,
// everyone else only updates for their own orders.
type streamClient struct {
	id     string
	userID uuid.UUID
	admin  bool
	ch     chan SSEMessage
}

func (c *streamClient) wants(update order.TrackingUpdate) bool {
	return c.admin || c.userID == update.UserID
}

// StreamMetrics records stream client lifecycle
type StreamMetrics interface {
	StreamClientConnected(ctx context.Context)
	StreamClientDisconnected(ctx context.Context)
}

type noopStreamMetrics struct{}

func (noopStreamMetrics) StreamClientConnected(context.Context) {}
func (noopStreamMetrics) StreamClientDisconnected(context.Context) {}

// TrackingStreamHandler fans live tracking updates out to SSE clients
type TrackingStreamHandler struct {
	BaseHandler
	channel    order.TrackingChannel
	logger     *zap.Logger
	metrics    StreamMetrics
	clients    sync.Map // map[string]*streamClient
	count      atomic.Int64
	ctx        context.Context
	cancel     context.CancelFunc
	heartbeat  time.Duration
	maxClients int
	bufferSize int
	seq        atomic.Int64
	started    bool
	startMu    sync.Mutex
}

// TrackingStreamOption configures a TrackingStreamHandler
type TrackingStreamOption func(*TrackingStreamHandler)

// WithStreamLogger sets the logger
func WithStreamLogger(logger *zap.Logger) TrackingStreamOption {
	return func(h *TrackingStreamHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithStreamHeartbeat sets the heartbeat interval
func WithStreamHeartbeat(interval time.Duration) TrackingStreamOption {
	return func(h *TrackingStreamHandler) {
		if interval > 0 {
			h.heartbeat = interval
		}
	}
}

// WithStreamMaxClients caps concurrent connections. Zero means unlimited.
func WithStreamMaxClients(max int) TrackingStreamOption {
	return func(h *TrackingStreamHandler) {
		h.maxClients = max
	}
}

// WithStreamClientBuffer sets the per-client message buffer
func WithStreamClientBuffer(size int) TrackingStreamOption {
	return func(h *TrackingStreamHandler) {
		if size > 0 {
			h.bufferSize = size
		}
	}
}

// WithStreamMetrics sets the client lifecycle metrics
func WithStreamMetrics(metrics StreamMetrics) TrackingStreamOption {
	return func(h *TrackingStreamHandler) {
		if metrics != nil {
			h.metrics = metrics
		}
	}
}

// NewTrackingStreamHandler creates a stream handler over channel
func NewTrackingStreamHandler(channel order.TrackingChannel, opts ...TrackingStreamOption) *TrackingStreamHandler {
	ctx, cancel := context.WithCancel(context.Background())
	h := &TrackingStreamHandler{
		channel:    channel,
		logger:     zap.NewNop(),
		metrics:    noopStreamMetrics{},
		ctx:        ctx,
		cancel:     cancel,
		heartbeat:  30 * time.Second,
		maxClients: 10000,
		bufferSize: 100,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Start subscribes to the tracking channel and begins heartbeats
func (h *TrackingStreamHandler) Start() error {
	h.startMu.Lock()
	defer h.startMu.Unlock()

	if h.started {
		return errors.New("tracking stream already started")
	}

	go h.sendHeartbeats()
	go func() {
		err := h.channel.Subscribe(h.ctx, h.handleUpdate)
		if err != nil && h.ctx.Err() == nil {
			h.logger.Error("Tracking stream subscription ended", zap.Error(err))
		}
	}()

	h.started = true
	h.logger.Info("Tracking stream started")
	return nil
}

// Stop disconnects every client and ends the subscription
func (h *TrackingStreamHandler) Stop() {
	h.cancel()
	h.logger.Info("Tracking stream stopped")
}

func (h *TrackingStreamHandler) handleUpdate(update order.TrackingUpdate) {
	data, err := json.Marshal(update)
	if err != nil {
		h.logger.Error("Failed to marshal tracking update", zap.Error(err))
		return
	}
	msg := SSEMessage{
		Event: SSEEventTrackingUpdate,
		Data:  string(data),
		ID:    strconv.FormatInt(h.seq.Add(1), 10),
	}

	telemetry.WithProfilingLabels(h.ctx, telemetry.OperationLabels(telemetry.OperationTrackingFanout), func(context.Context) {
		h.broadcast(msg, func(c *streamClient) bool { return c.wants(update) })
	})
}

// broadcast delivers msg to every client accepted by filter without
// blocking on slow consumers
func (h *TrackingStreamHandler) broadcast(msg SSEMessage, filter func(*streamClient) bool) {
	h.clients.Range(func(_, value any) bool {
		client, ok := value.(*streamClient)
		if !ok || (filter != nil && !filter(client)) {
			return true
		}
		select {
		case client.ch <- msg:
		default:
			h.logger.Warn("Stream client buffer full, dropping message",
				zap.String("client_id", client.id),
				zap.String("event", msg.Event))
		}
		return true
	})
}

func (h *TrackingStreamHandler) sendHeartbeats() {
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			h.broadcast(SSEMessage{
				Event: SSEEventHeartbeat,
				Data:  fmt.Sprintf(`{"timestamp":%d}`, time.Now().Unix()),
			}, nil)
		}
	}
}

// Stream godoc
// @ID           streamTracking
// @Summary      Subscribe to live tracking updates
// @Description  Server-sent events. Customers receive updates for their own orders, admins for all orders.
// @Tags         tracking
// @Produce      text/event-stream
// @Success      200 {string} string "SSE stream"
// @Failure      401 {object} dto.Response
// @Failure      503 {object} dto.Response
// @Security     BearerAuth
// @Router       /tracking/stream [get]
func (h *TrackingStreamHandler) Stream(c *gin.Context) {
	actor := h.actor(c)
	if err := shared.RequireUser(actor); err != nil {
		h.HandleError(c, err)
		return
	}

	if h.maxClients > 0 && h.ClientCount() >= h.maxClients {
		h.Error(c, http.StatusServiceUnavailable, ErrCodeMaxConnections, "Maximum number of stream connections reached")
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	// the server write timeout would otherwise end the stream
	_ = http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{})

	client := &streamClient{
		id:     uuid.NewString(),
		userID: actor.UserID,
		admin:  actor.IsAdmin(),
		ch:     make(chan SSEMessage, h.bufferSize),
	}

	reqCtx := c.Request.Context()
	h.clients.Store(client.id, client)
	h.count.Add(1)
	h.metrics.StreamClientConnected(reqCtx)
	defer func() {
		h.clients.Delete(client.id)
		h.count.Add(-1)
		h.metrics.StreamClientDisconnected(context.WithoutCancel(reqCtx))
	}()

	log := h.logger.With(zap.String("client_id", client.id), zap.String("user_id", actor.UserID.String()))
	log.Info("Tracking stream client connected")

	writeEvent(c.Writer, SSEMessage{
		Event: SSEEventConnected,
		Data:  fmt.Sprintf(`{"client_id":"%s","timestamp":%d}`, client.id, time.Now().Unix()),
	})
	c.Writer.Flush()

	for {
		select {
		case <-reqCtx.Done():
			log.Info("Tracking stream client disconnected")
			return
		case <-h.ctx.Done():
			log.Info("Tracking stream stopped, disconnecting client")
			return
		case msg := <-client.ch:
			writeEvent(c.Writer, msg)
			c.Writer.Flush()
		}
	}
}

// ClientCount returns the number of connected clients
func (h *TrackingStreamHandler) ClientCount() int {
	return int(h.count.Load())
}

func writeEvent(w io.Writer, msg SSEMessage) {
	if msg.Event != "" {
		fmt.Fprintf(w, "event: %s\n", msg.Event)
	}
	if msg.ID != "" {
		fmt.Fprintf(w, "id: %s\n", msg.ID)
	}
	fmt.Fprintf(w, "data: %s\n\n", msg.Data)
}
