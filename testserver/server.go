// Package testserver provides a websocket service with an admin and an app
// interface, used as the target of the demo scenarios and in tests.
package testserver

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/holochain/wind-tunnel-sub001/internal/client"
)

// Version is reported by the admin version method.
const Version = "0.1.0-testserver"

// Server is the websocket test service.
type Server struct {
	e        *echo.Echo
	upgrader websocket.Upgrader
	started  time.Time
	requests atomic.Int64

	mu     sync.Mutex
	agents map[string]struct{}
	apps   map[string]string
	conns  map[*websocket.Conn]struct{}
}

// NewServer creates a new test server with all endpoints configured.
func NewServer() *Server {
	s := &Server{
		e:       echo.New(),
		started: time.Now(),
		agents:  make(map[string]struct{}),
		apps:    make(map[string]string),
		conns:   make(map[*websocket.Conn]struct{}),
	}
	s.e.HideBanner = true
	s.e.HidePort = true
	s.registerHandlers()
	return s
}

// Handler returns the http.Handler for the server.
func (s *Server) Handler() http.Handler {
	return s.e
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	return s.e.Start(addr)
}

// Shutdown stops the listener started by Start.
func (s *Server) Shutdown(ctx context.Context) error {
	s.CloseConnections()
	return s.e.Shutdown(ctx)
}

// Requests returns the number of websocket requests served.
func (s *Server) Requests() int64 {
	return s.requests.Load()
}

// CloseConnections drops every open websocket connection.
func (s *Server) CloseConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		c.Close()
	}
}

func (s *Server) registerHandlers() {
	s.e.GET("/health", s.handleHealth)
	s.e.GET(client.AdminPath, s.handleAdmin)
	s.e.GET(client.AppPath, s.handleApp)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":   "ok",
		"uptime_s": int(time.Since(s.started).Seconds()),
		"requests": s.requests.Load(),
	})
}

// handler answers one request. A returned error is sent as an error response.
type handler func(req client.Request) (any, error)

type requestError string

func (e requestError) Error() string { return string(e) }

func (s *Server) handleAdmin(c echo.Context) error {
	return s.serve(c, s.adminRequest)
}

func (s *Server) handleApp(c echo.Context) error {
	appID := c.QueryParam("app_id")
	s.mu.Lock()
	agentKey, ok := s.apps[appID]
	s.mu.Unlock()
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "app not installed: "+appID)
	}
	return s.serve(c, func(req client.Request) (any, error) {
		return s.appRequest(appID, agentKey, req)
	})
}

// serve upgrades the connection and answers requests in order until the
// client goes away.
func (s *Server) serve(c echo.Context, handle handler) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.WithError(err).Warn("Failed to upgrade websocket")
		return nil
	}
	s.mu.Lock()
	s.conns[ws] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, ws)
		s.mu.Unlock()
		ws.Close()
	}()

	for {
		var req client.Request
		if err := ws.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Debug("Websocket read failed")
			}
			return nil
		}
		s.requests.Add(1)
		resp := client.Response{ID: req.ID, Type: client.TypeResponse}
		data, err := handle(req)
		if err != nil {
			resp.Type = client.TypeError
			data = map[string]string{"message": err.Error()}
		}
		if resp.Data, err = json.Marshal(data); err != nil {
			resp.Type = client.TypeError
			resp.Data = json.RawMessage(`{"message":"could not encode response"}`)
		}
		if err := ws.WriteJSON(resp); err != nil {
			return nil
		}
	}
}

func (s *Server) adminRequest(req client.Request) (any, error) {
	data := gjson.ParseBytes(req.Data)
	switch req.Method {
	case client.MethodVersion:
		return map[string]any{
			"version":    Version,
			"started_at": s.started.Unix(),
		}, nil
	case client.MethodGenerateAgentPubKey:
		key := uuid.NewString()
		s.mu.Lock()
		s.agents[key] = struct{}{}
		s.mu.Unlock()
		return map[string]string{"agent_key": key}, nil
	case client.MethodInstallApp:
		appID, agentKey := data.Get("app_id").String(), data.Get("agent_key").String()
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.agents[agentKey]; !ok {
			return nil, requestError("unknown agent key")
		}
		if _, ok := s.apps[appID]; ok || appID == "" {
			return nil, requestError("app id is empty or already installed: " + appID)
		}
		s.apps[appID] = agentKey
		return map[string]string{"app_id": appID}, nil
	case client.MethodUninstallApp:
		appID := data.Get("app_id").String()
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.apps[appID]; !ok {
			return nil, requestError("app not installed: " + appID)
		}
		delete(s.apps, appID)
		return map[string]string{"app_id": appID}, nil
	case client.MethodListApps:
		s.mu.Lock()
		apps := make([]string, 0, len(s.apps))
		for id := range s.apps {
			apps = append(apps, id)
		}
		s.mu.Unlock()
		sort.Strings(apps)
		return map[string]any{"apps": apps}, nil
	default:
		return nil, requestError("unknown admin method: " + req.Method)
	}
}

// appRequest serves the app interface. The "test" zome has these functions:
//
//	echo       returns the payload
//	timestamp  returns the server time in unix nanoseconds
//	delay      sleeps payload.ms milliseconds
//	fail_rate  fails payload.rate percent of calls
//	fail       always fails
func (s *Server) appRequest(appID, agentKey string, req client.Request) (any, error) {
	switch req.Method {
	case client.MethodAppInfo:
		return map[string]string{"app_id": appID, "agent_key": agentKey}, nil
	case client.MethodCallZome:
	default:
		return nil, requestError("unknown app method: " + req.Method)
	}

	call := gjson.ParseBytes(req.Data)
	if zome := call.Get("zome_name").String(); zome != "test" {
		return nil, requestError("unknown zome: " + zome)
	}
	payload := call.Get("payload")
	switch fn := call.Get("fn_name").String(); fn {
	case "echo":
		return map[string]any{"result": json.RawMessage(orNull(payload.Raw))}, nil
	case "timestamp":
		return map[string]any{"result": time.Now().UnixNano()}, nil
	case "delay":
		ms := payload.Get("ms").Int()
		time.Sleep(time.Duration(ms) * time.Millisecond)
		return map[string]any{"result": ms}, nil
	case "fail_rate":
		if rand.Int63n(100) < payload.Get("rate").Int() {
			return nil, requestError("simulated failure")
		}
		return map[string]any{"result": "success"}, nil
	case "fail":
		return nil, requestError("simulated failure")
	default:
		return nil, requestError("unknown function: " + fn)
	}
}

func orNull(raw string) string {
	if raw == "" {
		return "null"
	}
	return raw
}
