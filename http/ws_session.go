package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"messforecast/monitoring"
	"messforecast/predict"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Client message types.
const (
	wsSet     = "set"
	wsState   = "state"
	wsPredict = "predict"
	wsReset   = "reset"
)

// Server reply types.
const (
	wsReplyState      = "state"
	wsReplyPrediction = "prediction"
	wsReplyError      = "error"
)

type wsRequest struct {
	Type  string   `json:"type"`
	Field string   `json:"field,omitempty"`
	Value *float64 `json:"value,omitempty"`
}

type wsReply struct {
	Type       string             `json:"type"`
	Fields     map[string]float64 `json:"fields,omitempty"`
	Complete   bool               `json:"complete"`
	Required   int                `json:"required,omitempty"`
	Prediction *predict.Result    `json:"prediction,omitempty"`
	Error      string             `json:"error,omitempty"`
	Kind       string             `json:"kind,omitempty"`
}

// sessionConn is one WebSocket client. It owns its accumulator for the
// lifetime of the connection.
type sessionConn struct {
	api  *API
	conn *websocket.Conn
	acc  *predict.Accumulator
	send chan wsReply
	done chan struct{}
}

func (a *API) handleSessionSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     a.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &sessionConn{
		api:  a,
		conn: conn,
		acc:  predict.NewAccumulator(),
		send: make(chan wsReply, 16),
		done: make(chan struct{}),
	}
	a.metrics.Inc(monitoring.SessionsCreated)
	a.logger.Debug("session socket opened", zap.String("remote", r.RemoteAddr))

	go c.writePump()
	c.readPump()
}

func (c *sessionConn) readPump() {
	defer func() {
		close(c.done)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.api.logger.Warn("session socket closed", zap.Error(err))
			}
			return
		}

		var req wsRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			c.reply(wsReply{Type: wsReplyError, Kind: "bad_request", Error: "invalid message: " + err.Error()})
			continue
		}
		c.reply(c.dispatch(req))
	}
}

func (c *sessionConn) dispatch(req wsRequest) wsReply {
	switch req.Type {
	case wsSet:
		if req.Value == nil {
			return wsReply{Type: wsReplyError, Kind: "bad_request", Error: "value is required"}
		}
		if err := predict.ValidateSelection(req.Field, *req.Value); err != nil {
			return c.errorReply(err)
		}
		c.acc.Set(req.Field, *req.Value)
		return c.state()
	case wsState:
		return c.state()
	case wsReset:
		c.acc.Reset()
		return c.state()
	case wsPredict:
		result, err := c.api.service.PredictSession(c.acc)
		if err != nil {
			c.api.metrics.Inc(monitoring.PredictionErrors)
			return c.errorReply(err)
		}
		c.api.metrics.Inc(monitoring.Predictions)
		return wsReply{
			Type:       wsReplyPrediction,
			Complete:   c.acc.IsComplete(c.api.required),
			Prediction: &result,
		}
	default:
		return wsReply{Type: wsReplyError, Kind: "bad_request", Error: "unknown message type " + req.Type}
	}
}

func (c *sessionConn) state() wsReply {
	return wsReply{
		Type:     wsReplyState,
		Fields:   c.acc.Snapshot(),
		Complete: c.acc.IsComplete(c.api.required),
		Required: c.api.required,
	}
}

func (c *sessionConn) errorReply(err error) wsReply {
	status, body := classifyError(err)
	if status >= http.StatusInternalServerError {
		c.api.logger.Error("session socket request failed", zap.Error(err))
		body.Error = "internal server error"
	}
	return wsReply{Type: wsReplyError, Kind: body.Kind, Error: body.Error}
}

func (c *sessionConn) reply(msg wsReply) {
	select {
	case c.send <- msg:
	case <-c.done:
	}
}

func (c *sessionConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
