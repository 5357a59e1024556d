// Package server exposes the engine's client-facing intents over HTTP
// and wires the WebSocket push channels. Identity is a signed session
// token minted here; every intent derives its actor from the token, never
// from the request body.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/HandsomeBisu/GridX-sub000/internal/engine"
	"github.com/HandsomeBisu/GridX-sub000/internal/game"
	"github.com/HandsomeBisu/GridX-sub000/internal/ws"
)

// Server hosts the HTTP API and push channels.
type Server struct {
	svc      *game.Service
	streamer *ws.Streamer
	log      *logrus.Logger
	secret   []byte
	mux      *http.ServeMux
}

// New builds the server and registers its routes.
func New(svc *game.Service, streamer *ws.Streamer, log *logrus.Logger, secret []byte) *Server {
	s := &Server{
		svc:      svc,
		streamer: streamer,
		log:      log,
		secret:   secret,
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /session", s.handleSession)
	s.mux.HandleFunc("GET /rooms", s.handleListRooms)
	s.mux.HandleFunc("POST /rooms", s.auth(s.handleCreateRoom))
	s.mux.HandleFunc("GET /rooms/{id}", s.handleGetRoom)
	s.mux.HandleFunc("POST /rooms/{id}/join", s.auth(s.handleJoin))
	s.mux.HandleFunc("POST /rooms/{id}/leave", s.auth(s.handleLeave))
	s.mux.HandleFunc("POST /rooms/{id}/start", s.auth(s.handleStart))
	s.mux.HandleFunc("POST /rooms/{id}/roll", s.auth(s.handleRoll))
	s.mux.HandleFunc("POST /rooms/{id}/purchase", s.auth(s.handlePurchase))
	s.mux.HandleFunc("POST /rooms/{id}/toll", s.auth(s.handlePayToll))
	s.mux.HandleFunc("POST /rooms/{id}/sell", s.auth(s.handleSell))
	s.mux.HandleFunc("POST /rooms/{id}/bankrupt", s.auth(s.handleBankrupt))
	s.mux.HandleFunc("POST /rooms/{id}/teleport", s.auth(s.handleTeleport))
	s.mux.HandleFunc("POST /rooms/{id}/escape", s.auth(s.handleEscape))
	s.mux.HandleFunc("POST /rooms/{id}/end-turn", s.auth(s.handleEndTurn))
	s.mux.HandleFunc("POST /rooms/{id}/timeout-check", s.auth(s.handleTimeoutCheck))
	s.mux.HandleFunc("GET /rooms/{id}/ws", s.handleRoomStream)
	s.mux.HandleFunc("GET /ws/lobby", s.streamer.ServeLobby)
}

// --- session tokens ---

type sessionClaims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// handleSession mints a signed identity for a display name. The player id
// is generated server-side.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "a display name is required")
		return
	}
	playerID := uuid.New()
	claims := sessionClaims{
		Name: req.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   playerID.String(),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token signing failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"token":    token,
		"playerId": playerID.String(),
	})
}

type identity struct {
	PlayerID uuid.UUID
	Name     string
}

type authedHandler func(w http.ResponseWriter, r *http.Request, id identity)

// auth validates the bearer token and passes the identity through.
func (s *Server) auth(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		var claims sessionClaims
		_, err := jwt.ParseWithClaims(header[len(prefix):], &claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return s.secret, nil
		})
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		playerID, err := uuid.Parse(claims.Subject)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid subject")
			return
		}
		next(w, r, identity{PlayerID: playerID, Name: claims.Name})
	}
}

// --- handlers ---

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.svc.ListRooms(r.Context())
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request, id identity) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "a room name is required")
		return
	}
	room, err := s.svc.CreateRoom(r.Context(), id.PlayerID, id.Name, req.Name)
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	roomID, ok := pathRoomID(w, r)
	if !ok {
		return
	}
	room, err := s.svc.Room(r.Context(), roomID)
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request, id identity) {
	roomID, ok := pathRoomID(w, r)
	if !ok {
		return
	}
	room, err := s.svc.JoinRoom(r.Context(), roomID, id.PlayerID, id.Name)
	s.respond(w, room, err)
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request, id identity) {
	roomID, ok := pathRoomID(w, r)
	if !ok {
		return
	}
	if err := s.svc.LeaveRoom(r.Context(), roomID, id.PlayerID); err != nil {
		s.writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"left": true})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request, id identity) {
	roomID, ok := pathRoomID(w, r)
	if !ok {
		return
	}
	room, err := s.svc.StartGame(r.Context(), roomID, id.PlayerID)
	s.respond(w, room, err)
}

func (s *Server) handleRoll(w http.ResponseWriter, r *http.Request, id identity) {
	roomID, ok := pathRoomID(w, r)
	if !ok {
		return
	}
	room, err := s.svc.RollDice(r.Context(), roomID, id.PlayerID)
	s.respond(w, room, err)
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request, id identity) {
	roomID, ok := pathRoomID(w, r)
	if !ok {
		return
	}
	var req struct {
		CellID    int      `json:"cellId"`
		Buildings []string `json:"buildings"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	buildings := make([]engine.Building, 0, len(req.Buildings))
	for _, name := range req.Buildings {
		b, err := engine.ParseBuilding(name)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		buildings = append(buildings, b)
	}
	room, err := s.svc.ConfirmPurchase(r.Context(), roomID, id.PlayerID, req.CellID, buildings)
	s.respond(w, room, err)
}

func (s *Server) handlePayToll(w http.ResponseWriter, r *http.Request, id identity) {
	roomID, ok := pathRoomID(w, r)
	if !ok {
		return
	}
	room, err := s.svc.PayToll(r.Context(), roomID, id.PlayerID)
	s.respond(w, room, err)
}

func (s *Server) handleSell(w http.ResponseWriter, r *http.Request, id identity) {
	roomID, ok := pathRoomID(w, r)
	if !ok {
		return
	}
	var req struct {
		CellIDs []int `json:"cellIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	room, err := s.svc.SellAssets(r.Context(), roomID, id.PlayerID, req.CellIDs)
	s.respond(w, room, err)
}

func (s *Server) handleBankrupt(w http.ResponseWriter, r *http.Request, id identity) {
	roomID, ok := pathRoomID(w, r)
	if !ok {
		return
	}
	room, err := s.svc.DeclareBankruptcy(r.Context(), roomID, id.PlayerID)
	s.respond(w, room, err)
}

func (s *Server) handleTeleport(w http.ResponseWriter, r *http.Request, id identity) {
	roomID, ok := pathRoomID(w, r)
	if !ok {
		return
	}
	var req struct {
		CellID int `json:"cellId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	room, err := s.svc.Teleport(r.Context(), roomID, id.PlayerID, req.CellID)
	s.respond(w, room, err)
}

func (s *Server) handleEscape(w http.ResponseWriter, r *http.Request, id identity) {
	roomID, ok := pathRoomID(w, r)
	if !ok {
		return
	}
	room, err := s.svc.EscapeConfinement(r.Context(), roomID, id.PlayerID)
	s.respond(w, room, err)
}

func (s *Server) handleEndTurn(w http.ResponseWriter, r *http.Request, id identity) {
	roomID, ok := pathRoomID(w, r)
	if !ok {
		return
	}
	room, err := s.svc.EndTurn(r.Context(), roomID, id.PlayerID)
	s.respond(w, room, err)
}

func (s *Server) handleTimeoutCheck(w http.ResponseWriter, r *http.Request, id identity) {
	roomID, ok := pathRoomID(w, r)
	if !ok {
		return
	}
	advanced, err := s.svc.ForceTimeoutCheck(r.Context(), roomID, id.PlayerID)
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"advanced": advanced})
}

func (s *Server) handleRoomStream(w http.ResponseWriter, r *http.Request) {
	roomID, ok := pathRoomID(w, r)
	if !ok {
		return
	}
	s.streamer.ServeRoom(w, r, roomID)
}

// --- helpers ---

func pathRoomID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	roomID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid room id")
		return uuid.Nil, false
	}
	return roomID, true
}

func (s *Server) respond(w http.ResponseWriter, room *game.Room, err error) {
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// writeGameError maps the engine's error taxonomy onto HTTP statuses.
func (s *Server) writeGameError(w http.ResponseWriter, err error) {
	var (
		authority *game.AuthorityError
		funds     *game.FundsError
		terminal  *game.TerminalStateError
		transient *game.TransientError
	)
	switch {
	case errors.As(err, &authority):
		writeError(w, http.StatusForbidden, authority.Error())
	case errors.As(err, &funds):
		writeError(w, http.StatusPaymentRequired, funds.Error())
	case errors.As(err, &terminal):
		writeError(w, http.StatusConflict, terminal.Error())
	case errors.As(err, &transient):
		writeError(w, http.StatusServiceUnavailable, transient.Error())
	case errors.Is(err, game.ErrRoomNotFound):
		writeError(w, http.StatusNotFound, "room not found")
	default:
		s.log.WithError(err).Error("intent failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
