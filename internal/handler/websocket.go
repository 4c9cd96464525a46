package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/catalog-cache/internal/model"
	"github.com/vyrodovalexey/catalog-cache/internal/query"
	"github.com/vyrodovalexey/catalog-cache/internal/view"
)

// WebSocket configuration constants.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
)

// Page navigation values of a page message.
const (
	pageNext = "next"
	pagePrev = "prev"
)

var errUnknownMessage = errors.New("unknown message type")

// WebSocketHandler serves live catalog views. Every connection owns its own
// filter, page and selection; the record list is shared through the cache.
type WebSocketHandler struct {
	catalog  Catalog
	debounce time.Duration
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu       sync.Mutex
	sessions map[*session]struct{}
}

// NewWebSocketHandler creates a new WebSocketHandler instance. Search terms
// are applied once they were stable for debounce.
func NewWebSocketHandler(c Catalog, debounce time.Duration, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		catalog:  c,
		debounce: debounce,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(_ *http.Request) bool {
				return true
			},
		},
		logger:   logger,
		sessions: make(map[*session]struct{}),
	}
}

// RegisterRoutes registers the WebSocket routes with the router.
func (h *WebSocketHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/ws", h.HandleWebSocket).Methods(http.MethodGet)
}

// HandleWebSocket upgrades the connection and starts a view session.
//
//nolint:contextcheck // the session outlives the upgrade request
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	records, err := h.catalog.WatchRecords(r.Context())
	if err != nil {
		status := statusFor(err)
		http.Error(w, err.Error(), status)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		records.Close()
		h.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		handler: h,
		conn:    conn,
		ctx:     ctx,
		cancel:  cancel,
		state:   view.NewState(),
		records: records,
		out:     make(chan model.ViewMessage, 1),
		logger:  h.logger.With(zap.String("remote_addr", conn.RemoteAddr().String())),
	}
	s.search = view.NewDebouncer(nil, h.debounce, func(term string) {
		s.state.SetSearch(term)
		s.refresh()
	})

	h.mu.Lock()
	h.sessions[s] = struct{}{}
	h.mu.Unlock()

	s.logger.Info("websocket client connected")

	s.refresh()
	go s.watch(records)
	go s.writePump()
	go s.readPump()
}

// Sessions returns the number of open sessions.
func (h *WebSocketHandler) Sessions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// CloseAllConnections ends every session with a close frame.
func (h *WebSocketHandler) CloseAllConnections() {
	h.mu.Lock()
	sessions := make([]*session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		s.cancel()
	}

	// writePump sends the close frame on cancel.
	time.Sleep(100 * time.Millisecond)

	for _, s := range sessions {
		s.close()
	}

	h.logger.Info("all websocket connections closed")
}

func (h *WebSocketHandler) remove(s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, s)
}

// session is one websocket client and its view state.
type session struct {
	handler *WebSocketHandler
	conn    *websocket.Conn
	ctx     context.Context
	cancel  context.CancelFunc
	state   *view.State
	search  *view.Debouncer[string]
	records *query.Subscription
	out     chan model.ViewMessage
	logger  *zap.Logger

	mu         sync.Mutex
	selected   *query.Subscription
	totalPages int
	closed     bool
}

// readPump applies inbound session messages until the connection drops.
func (s *session) readPump() {
	defer s.close()

	s.conn.SetReadLimit(maxMessageSize)
	if err := s.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		s.logger.Error("failed to set read deadline", zap.Error(err))
		return
	}
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}

		var msg model.SessionMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.push(model.NewErrorMessage("invalid message: " + err.Error()))
			continue
		}
		if err := s.apply(msg); err != nil {
			s.push(model.NewErrorMessage(err.Error()))
		}
	}
}

// apply updates the session state for one inbound message.
func (s *session) apply(msg model.SessionMessage) error {
	switch msg.Type {
	case model.WSMessageTypeCategory:
		s.search.Flush()
		s.state.SetCategory(msg.Value)
	case model.WSMessageTypeSearch:
		s.search.Trigger(msg.Value)
		return nil
	case model.WSMessageTypePage:
		if err := s.turnPage(msg); err != nil {
			return err
		}
	case model.WSMessageTypeSelect:
		if err := s.selectRecord(msg.ID); err != nil {
			return err
		}
	case model.WSMessageTypeFocus:
		s.handler.catalog.HandleEvent(query.EventFocus)
		return nil
	default:
		return errUnknownMessage
	}

	s.refresh()
	return nil
}

func (s *session) turnPage(msg model.SessionMessage) error {
	s.mu.Lock()
	total := s.totalPages
	s.mu.Unlock()

	switch msg.Value {
	case pageNext:
		s.state.NextPage(total)
	case pagePrev:
		s.state.PrevPage()
	default:
		if _, err := s.state.SetPage(msg.Page); err != nil {
			return err
		}
	}
	return nil
}

// selectRecord swaps the watched record. id 0 clears the selection.
func (s *session) selectRecord(id int) error {
	var sub *query.Subscription
	if id != 0 {
		if err := s.state.Select(id); err != nil {
			return err
		}
		var err error
		if sub, err = s.handler.catalog.WatchRecord(s.ctx, id); err != nil {
			return err
		}
	} else {
		s.state.ClearSelection()
	}

	s.mu.Lock()
	prev := s.selected
	s.selected = sub
	s.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	if sub != nil {
		go s.watch(sub)
	}
	return nil
}

// watch recomputes the view on every change of sub until sub is closed.
func (s *session) watch(sub *query.Subscription) {
	for {
		select {
		case <-s.ctx.Done():
			return
		case _, ok := <-sub.Changes():
			if !ok {
				return
			}
			s.refresh()
		}
	}
}

// refresh recomputes the view from the cache and queues it for sending.
func (s *session) refresh() {
	filter := s.state.Filter()
	page, err := s.handler.catalog.Page(s.ctx, filter)
	if err != nil {
		s.push(model.NewErrorMessage(err.Error()))
		return
	}

	// Deletes can shrink the list below the current page.
	if s.state.ClampPage(page.TotalPages) {
		if page, err = s.handler.catalog.Page(s.ctx, s.state.Filter()); err != nil {
			s.push(model.NewErrorMessage(err.Error()))
			return
		}
	}

	s.mu.Lock()
	s.totalPages = page.TotalPages
	selected := s.selected
	s.mu.Unlock()

	var record *model.Record
	if selected != nil {
		if r, ok := query.DataAs[model.Record](selected.Read(s.ctx)); ok {
			record = &r
		}
	}

	s.push(model.NewViewMessage(&page, record))
}

// push queues msg, replacing a message the writer has not picked up yet.
func (s *session) push(msg model.ViewMessage) {
	for {
		select {
		case s.out <- msg:
			return
		case <-s.ctx.Done():
			return
		default:
		}
		select {
		case <-s.out:
		default:
		}
	}
}

// writePump sends queued views and keepalive pings.
func (s *session) writePump() {
	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.sendClose()
			return
		case msg := <-s.out:
			if err := s.write(msg); err != nil {
				s.logger.Debug("failed to send view", zap.Error(err))
				s.cancel()
				return
			}
		case <-pingTicker.C:
			if err := s.sendPing(); err != nil {
				s.logger.Debug("failed to send ping", zap.Error(err))
				s.cancel()
				return
			}
		}
	}
}

func (s *session) write(msg model.ViewMessage) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteJSON(msg)
}

func (s *session) sendPing() error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.PingMessage, nil)
}

func (s *session) sendClose() {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		s.logger.Debug("failed to set write deadline for close", zap.Error(err))
		return
	}
	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "server shutting down")
	if err := s.conn.WriteMessage(websocket.CloseMessage, closeMsg); err != nil {
		s.logger.Debug("failed to send close message", zap.Error(err))
	}
}

// close releases the session. Safe to call more than once.
func (s *session) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	selected := s.selected
	s.selected = nil
	s.mu.Unlock()

	s.cancel()
	s.search.Stop()
	s.records.Close()
	if selected != nil {
		selected.Close()
	}
	if err := s.conn.Close(); err != nil {
		s.logger.Debug("error closing connection", zap.Error(err))
	}
	s.handler.remove(s)
	s.logger.Info("websocket client disconnected")
}
