package rest

import (
	"encoding/json"
	"net/http"

	"github.com/Sagnify/peergo/internal/logging"
	"github.com/Sagnify/peergo/pkg/errors"
	"github.com/Sagnify/peergo/pkg/signaling"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// ServerOptions represents REST server configuration options
type ServerOptions struct {
	// StaticDir, when set, is served at the router root for browser clients
	StaticDir string
}

// Server exposes the signaling operations over HTTP
type Server struct {
	manager *signaling.Manager
	logger  *logging.Logger
	options ServerOptions
}

// NewServer creates a new REST server
func NewServer(manager *signaling.Manager, logger *logging.Logger, options ServerOptions) *Server {
	return &Server{
		manager: manager,
		logger:  logger,
		options: options,
	}
}

// Routes builds the chi router
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Post("/offer", s.handleOffer)
	r.Post("/candidate", s.handleCandidate)
	r.Post("/leave", s.handleLeave)
	r.Get("/rooms", s.handleRooms)
	r.Get("/room-status/{room}", s.handleRoomStatus)
	r.Get("/stats", s.handleStats)

	if s.options.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.options.StaticDir)))
	}

	return r
}

type offerRequest struct {
	Room   string          `json:"room"`
	PeerID string          `json:"peer_id"`
	Offer  json.RawMessage `json:"offer"`
	Info   map[string]any  `json:"info,omitempty"`
}

type candidateRequest struct {
	Room      string          `json:"room"`
	PeerID    string          `json:"peer_id"`
	Candidate json.RawMessage `json:"candidate"`
}

type leaveRequest struct {
	Room   string `json:"room"`
	PeerID string `json:"peer_id"`
}

func (s *Server) handleOffer(w http.ResponseWriter, r *http.Request) {
	var req offerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	answer, err := s.manager.Offer(req.Room, req.PeerID, decodeSDP(req.Offer), req.Info)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

func (s *Server) handleCandidate(w http.ResponseWriter, r *http.Request) {
	var req candidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	if err := s.manager.Candidate(req.Room, req.PeerID, decodeCandidate(req.Candidate)); err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	var req leaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	if err := s.manager.Leave(req.Room, req.PeerID); err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	infos, err := s.manager.RoomsInfo()
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleRoomStatus(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "room")

	peers, err := s.manager.RoomPeers(room)
	if err != nil {
		s.writeError(w, err)
		return
	}

	hostID := ""
	for _, peer := range peers {
		if peer.IsHost {
			hostID = peer.PeerID
			break
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"peers":   peers,
		"count":   len(peers),
		"host_id": hostID,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.manager.Stats()
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var status int
	switch errors.TypeOf(err) {
	case errors.ErrorTypeValidation:
		status = http.StatusBadRequest
	case errors.ErrorTypeNegotiation:
		status = http.StatusUnprocessableEntity
	case errors.ErrorTypeTimeout:
		status = http.StatusGatewayTimeout
	default:
		status = http.StatusInternalServerError
	}

	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// decodeSDP accepts either a bare SDP string or the browser's
// {type, sdp} session description object.
func decodeSDP(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain
	}

	var desc struct {
		SDP string `json:"sdp"`
	}
	if err := json.Unmarshal(raw, &desc); err == nil {
		return desc.SDP
	}

	return ""
}

// decodeCandidate accepts a bare candidate string or the browser's
// RTCIceCandidateInit object, which is forwarded as JSON.
func decodeCandidate(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain
	}

	return string(raw)
}
