package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"ludo/internal/board"
	"ludo/internal/session"
)

// Server is the HTTP server.
type Server struct {
	router  chi.Router
	manager *session.Manager
}

// New creates a server with all routes.
func New(manager *session.Manager) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		manager: manager,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(requestLogger)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/modes", s.handleListModes)
		r.Post("/rooms", s.handleCreateRoom)
		r.Get("/users/{userID}/active-room", s.handleActiveRoom)
		r.Route("/rooms/{code}", func(r chi.Router) {
			r.Get("/", s.handleGetRoom)
			r.Get("/ws", s.handleWebSocket)
			r.Post("/join", s.handleJoinRoom)
			r.Post("/start", s.handleStartGame)
			r.Post("/roll", s.handleRollDice)
			r.Post("/move", s.handleMoveToken)
		})
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Debug().Str("method", r.Method).Str("path", r.URL.Path).
			Int("status", ww.Status()).Dur("took", time.Since(start)).Msg("request")
	})
}

func (s *Server) handleListModes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.Variants())
}

type createRoomRequest struct {
	HostID          string        `json:"hostId"`
	Name            string        `json:"name"`
	Mode            string        `json:"mode"`
	RequiredPlayers int           `json:"requiredPlayers"`
	Colors          []board.Color `json:"colors"`
	EntryFee        int64         `json:"entryFee"`
}

type roomResponse struct {
	RoomID string `json:"roomId"`
	Code   string `json:"code"`
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	room, err := s.manager.CreateRoom(r.Context(), session.CreateRoomParams{
		HostID:          req.HostID,
		Name:            strings.TrimSpace(req.Name),
		Mode:            strings.TrimSpace(req.Mode),
		RequiredPlayers: req.RequiredPlayers,
		Colors:          req.Colors,
		EntryFee:        req.EntryFee,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, roomResponse{RoomID: room.ID, Code: room.Code})
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	snap, err := s.manager.GetRoom(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type userRequest struct {
	UserID     string `json:"userId"`
	Name       string `json:"name"`
	TokenIndex int    `json:"tokenIndex"`
}

func decodeUser(w http.ResponseWriter, r *http.Request) (userRequest, bool) {
	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return req, false
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "userId required"})
		return req, false
	}
	return req, true
}

func (s *Server) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeUser(w, r)
	if !ok {
		return
	}
	room, err := s.manager.JoinRoom(r.Context(), chi.URLParam(r, "code"), req.UserID, strings.TrimSpace(req.Name))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, roomResponse{RoomID: room.ID, Code: room.Code})
}

func (s *Server) handleStartGame(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeUser(w, r)
	if !ok {
		return
	}
	room, err := s.manager.StartGame(r.Context(), chi.URLParam(r, "code"), req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

type rollResponse struct {
	Room   *session.Room `json:"room"`
	Value  int           `json:"value"`
	Result string        `json:"result"`
}

func (s *Server) handleRollDice(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeUser(w, r)
	if !ok {
		return
	}
	room, res, err := s.manager.RollDice(r.Context(), chi.URLParam(r, "code"), req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rollResponse{Room: room, Value: res.Value, Result: string(res.Outcome)})
}

func (s *Server) handleMoveToken(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeUser(w, r)
	if !ok {
		return
	}
	room, res, err := s.manager.MoveToken(r.Context(), chi.URLParam(r, "code"), req.UserID, req.TokenIndex)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"room": room, "move": res})
}

func (s *Server) handleActiveRoom(w http.ResponseWriter, r *http.Request) {
	room, err := s.manager.GetMyActiveRoom(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrNotYourTurn):
		return http.StatusForbidden
	case errors.Is(err, session.ErrRoomExpired):
		return http.StatusGone
	case errors.Is(err, session.ErrIllegalMove):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrRoomFull), errors.Is(err, session.ErrInvalidState):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
