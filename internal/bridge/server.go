package bridge

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rahul/steptable/internal/observability"
)

// CommandToggleSidePanel is the keyboard command that toggles the panel.
const CommandToggleSidePanel = "toggle-sidepanel"

// ChannelSidePanel is the only channel panels connect on.
const ChannelSidePanel = "sidepanel"

//go:embed panel.html
var panelPage []byte

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // panels are served from this host or an extension origin
	},
}

// Server exposes the Responder and the panel state machine over HTTP.
type Server struct {
	Responder *Responder
	Panels    *Panels
	// ActiveWindow picks the window for commands that name none.
	ActiveWindow func(ctx context.Context) (int, error)

	srv *http.Server
}

func NewServer(addr string, r *Responder, p *Panels) *Server {
	s := &Server{Responder: r, Panels: p}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Routes configures all HTTP routes.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /panel", s.handlePanel)
	mux.HandleFunc("GET /ws/{channel}", s.handleWebSocket)

	mux.HandleFunc("POST /api/message", s.handleMessage)   // table actions
	mux.HandleFunc("POST /api/runtime", s.handleRuntime)   // disable-sidepanel
	mux.HandleFunc("POST /api/commands/{name}", s.handleCommand)
	mux.HandleFunc("GET /api/status", s.handleStatus)

	return mux
}

// Start serves until Shutdown.
func (s *Server) Start() error {
	log.Printf("bridge: listening on %s", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.Panels.Close()
	return s.srv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		log.Printf("bridge: write response: %v", err)
	}
}

func (s *Server) handlePanel(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(panelPage)
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Error: fmt.Sprintf("invalid request: %v", err)})
		return
	}
	writeJSON(w, http.StatusOK, s.Responder.Handle(r.Context(), "panel", req))
}

func (s *Server) handleRuntime(w http.ResponseWriter, r *http.Request) {
	var msg RuntimeMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Error: fmt.Sprintf("invalid message: %v", err)})
		return
	}
	if msg.Type != TypeDisableSidePanel {
		writeJSON(w, http.StatusBadRequest, Response{Error: fmt.Sprintf("unknown message type %q", msg.Type)})
		return
	}
	if err := s.Panels.Disable(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, Response{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true})
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if name := r.PathValue("name"); name != CommandToggleSidePanel {
		writeJSON(w, http.StatusNotFound, Response{Error: fmt.Sprintf("unknown command %q", name)})
		return
	}

	windowID, err := s.windowFor(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Error: err.Error()})
		return
	}
	if err := s.Panels.Toggle(r.Context(), windowID); err != nil {
		writeJSON(w, http.StatusInternalServerError, Response{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: map[string]int{"windowId": windowID}})
}

func (s *Server) windowFor(r *http.Request) (int, error) {
	if v := r.URL.Query().Get("window"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil || id == 0 {
			return 0, fmt.Errorf("invalid window id %q", v)
		}
		return id, nil
	}
	if s.ActiveWindow == nil {
		return 0, errors.New("no window given and no active window known")
	}
	return s.ActiveWindow(r.Context())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := observability.GetStatus()
	writeJSON(w, http.StatusOK, map[string]any{
		"role":          st.Role,
		"operation":     st.Operation,
		"panels":        s.Panels.Sessions.Len(),
		"lastHeartbeat": st.LastHeartbeat,
	})
}

// wsPort is a panel connected over a websocket.
type wsPort struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (p *wsPort) Post(msg PortMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return p.conn.WriteJSON(msg)
}

func (p *wsPort) Close() error {
	return p.conn.Close()
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if ch := r.PathValue("channel"); ch != ChannelSidePanel {
		http.Error(w, fmt.Sprintf("unknown channel %q", ch), http.StatusNotFound)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("bridge: websocket upgrade: %v", err)
		return
	}
	port := &wsPort{conn: conn}
	defer func() {
		s.Panels.Disconnect(port)
		port.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("bridge: panel connection: %v", err)
			}
			return
		}
		var msg PortMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("bridge: ignoring malformed panel message: %v", err)
			continue
		}
		if msg.Type == TypeSidePanelReady && msg.WindowID != 0 {
			s.Panels.Connect(msg.WindowID, port)
		}
	}
}
