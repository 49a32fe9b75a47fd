// Package client provides instrumented websocket clients for the admin and app
// interfaces of the service under test.
package client

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/holochain/wind-tunnel-sub001/internal/core"
)

// Frame types on the wire.
const (
	TypeRequest  = "request"
	TypeResponse = "response"
	TypeError    = "error"
)

// DefaultRequestTimeout bounds every request. The caller's context can end it sooner.
const DefaultRequestTimeout = 30 * time.Second

// Request is sent by the client. Data is method specific.
type Request struct {
	ID     uint64          `json:"id"`
	Type   string          `json:"type"`
	Method string          `json:"method"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Response answers the Request with the same ID. Type is TypeResponse or
// TypeError; an error response carries {"message": "..."} as its data.
type Response struct {
	ID   uint64          `json:"id"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ErrConnectionClosed is returned, wrapped as an agent bail, once the
// connection has gone away.
var ErrConnectionClosed = errors.New("websocket connection closed")

// ServiceError is an error response from the service.
type ServiceError struct {
	Method  string
	Message string
}

func (e *ServiceError) Error() string {
	return "service returned error for " + e.Method + ": " + e.Message
}

// conn is a request/response websocket connection. One request is in flight
// at a time.
type conn struct {
	ws        *websocket.Conn
	mu        sync.Mutex
	nextID    atomic.Uint64
	broken    atomic.Bool
	closeOnce sync.Once
}

func dial(ctx context.Context, url string, header http.Header) (*conn, error) {
	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, errors.Wrapf(err, "connecting to %s", url)
	}
	return &conn{ws: ws}, nil
}

// request sends method with data and waits for the matching response.
func (c *conn) request(ctx context.Context, method string, data any) (gjson.Result, error) {
	if c.broken.Load() {
		return gjson.Result{}, core.Bail(ErrConnectionClosed)
	}
	req := Request{ID: c.nextID.Add(1), Type: TypeRequest, Method: method}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return gjson.Result{}, errors.Wrapf(err, "encoding %s request", method)
		}
		req.Data = raw
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	deadline := time.Now().Add(DefaultRequestTimeout)
	stop := context.AfterFunc(ctx, func() {
		// Unblock the read below.
		_ = c.ws.SetReadDeadline(time.Now())
	})
	defer stop()

	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return gjson.Result{}, c.transportError(ctx, err)
	}
	if err := c.ws.WriteJSON(req); err != nil {
		return gjson.Result{}, c.transportError(ctx, err)
	}
	if err := c.ws.SetReadDeadline(deadline); err != nil {
		return gjson.Result{}, c.transportError(ctx, err)
	}
	for {
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			return gjson.Result{}, c.transportError(ctx, err)
		}
		if !gjson.ValidBytes(msg) {
			return gjson.Result{}, errors.Errorf("invalid JSON in %s response", method)
		}
		frame := gjson.ParseBytes(msg)
		if frame.Get("id").Uint() != req.ID {
			// Stale response to a request abandoned after a timeout.
			continue
		}
		data := frame.Get("data")
		if frame.Get("type").String() == TypeError {
			return gjson.Result{}, &ServiceError{Method: method, Message: data.Get("message").String()}
		}
		return data, nil
	}
}

// transportError classifies a failed read or write. Cancellation is reported
// as a shutdown signal, anything else as a bail. The websocket cannot be used
// after a failed read or write.
func (c *conn) transportError(ctx context.Context, err error) error {
	c.broken.Store(true)
	if ctx.Err() != nil {
		return errors.Wrap(core.ErrShutdownSignal, ctx.Err().Error())
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return core.Bail(errors.Wrap(err, "request timed out"))
	}
	return core.Bail(errors.Wrap(ErrConnectionClosed, err.Error()))
}

func (c *conn) close() error {
	var err error
	c.closeOnce.Do(func() {
		c.broken.Store(true)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		err = c.ws.Close()
	})
	return err
}
