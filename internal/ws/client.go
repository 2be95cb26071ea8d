package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	apperrors "github.com/Aidin1998/dexter/pkg/errors"
	"github.com/Aidin1998/dexter/pkg/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Frame types sent to clients
const (
	FrameAccepted = "accepted"
	FrameReport   = "report"
	FrameError    = "error"
)

// Frame is one outbound JSON message
type Frame struct {
	Type   string                    `json:"type"`
	Order  *models.Order             `json:"order,omitempty"`
	Report *models.SettlementReport  `json:"report,omitempty"`
	Error  *apperrors.ProblemDetails `json:"error,omitempty"`
}

func errorFrame(err error) Frame {
	return Frame{Type: FrameError, Error: apperrors.Problem(err, "/ws")}
}

// Client is one WebSocket connection. Only writePump writes to conn, and every
// frame passes through send so an order's accepted frame precedes its report.
type Client struct {
	id      string
	conn    *websocket.Conn
	hub     *Hub
	send    chan Frame
	reports chan models.SettlementReport
	logger  *zap.Logger

	// intake is held from Submit until the accepted frame is queued.
	intake sync.Mutex

	// ctx is cancelled when either pump stops; reports still in flight for
	// this client are then dropped by the coordinator.
	ctx    context.Context
	cancel context.CancelFunc
}

// readPump decodes order frames and submits them.
func (c *Client) readPump() {
	defer func() {
		c.cancel()
		c.hub.unregister(c)
		c.logger.Info("websocket client disconnected", zap.String("client_id", c.id))
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read failed", zap.String("client_id", c.id), zap.Error(err))
			}
			return
		}
		c.handle(msg)
	}
}

func (c *Client) handle(msg []byte) {
	var order models.Order
	if err := json.Unmarshal(msg, &order); err != nil {
		c.logger.Info("malformed order frame", zap.String("client_id", c.id), zap.Error(err))
		c.queue(errorFrame(apperrors.InvalidOrder.Explain("malformed order frame: %v", err)))
		return
	}

	c.intake.Lock()
	defer c.intake.Unlock()
	accepted, err := c.hub.intake.Submit(c.ctx, order, c.reports)
	if err != nil {
		c.logger.Info("order not accepted", zap.String("client_id", c.id), zap.Error(err))
		c.queue(errorFrame(err))
		return
	}
	c.queue(Frame{Type: FrameAccepted, Order: &accepted})
}

func (c *Client) queue(f Frame) {
	select {
	case c.send <- f:
	case <-c.ctx.Done():
	}
}

// forwardReports moves settlement reports onto send once their order's
// accepted frame is queued.
func (c *Client) forwardReports() {
	for {
		select {
		case r := <-c.reports:
			c.intake.Lock()
			c.queue(Frame{Type: FrameReport, Report: &r})
			c.intake.Unlock()
		case <-c.ctx.Done():
			return
		}
	}
}

// writePump sends frames and heartbeats to the client.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.cancel()
		_ = c.conn.Close()
	}()

	for {
		select {
		case f := <-c.send:
			if err := c.write(f); err != nil {
				c.logger.Warn("websocket write failed", zap.String("client_id", c.id), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Warn("websocket ping failed", zap.String("client_id", c.id), zap.Error(err))
				return
			}
		case <-c.ctx.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Client) write(f Frame) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(f)
}
