package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/himanishpuri/landmark/internal/audio"
	"github.com/himanishpuri/landmark/pkg/landmark"
	"github.com/himanishpuri/landmark/pkg/logger"
)

const (
	maxAddUpload   = 200 << 20
	maxMatchUpload = 50 << 20
)

// Server wires the landmark service to HTTP handlers.
type Server struct {
	service landmark.Service
	config  *ServerConfig
	log     landmark.Logger
}

type ServerConfig struct {
	Port           int
	DBPath         string
	Backend        string
	TempDir        string
	AllowedOrigins []string
}

func NewServer(service landmark.Service, config *ServerConfig) *Server {
	return &Server{
		service: service,
		config:  config,
		log:     logger.GetLogger().With("[http]"),
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// respondServiceError maps service errors onto status codes.
func (s *Server) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, landmark.ErrNoMatch):
		s.respondJSON(w, http.StatusNotFound, ErrorResponse{
			Error:   "no_match",
			Message: "no indexed track matches the query",
			Code:    http.StatusNotFound,
		})
	case errors.Is(err, landmark.ErrTrackNotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
	case landmark.IsInputError(err), errors.Is(err, landmark.ErrInvalidConfig):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		s.respondError(w, http.StatusGatewayTimeout, "request timed out")
	default:
		s.log.Errorf("Request failed: %v", err)
		s.respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"service": "landmark API",
		"endpoints": map[string]string{
			"health":            "GET /health",
			"stats":             "GET /api/stats",
			"tracks":            "GET /api/tracks",
			"addTrack":          "POST /api/tracks",
			"getTrack":          "GET /api/tracks/{id}",
			"deleteTrack":       "DELETE /api/tracks/{id}",
			"matchFile":         "POST /api/match",
			"matchFingerprints": "POST /api/match/fingerprints",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleStats handles GET /api/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	st, err := s.service.Stats(r.Context())
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, StatsResponse{
		Status:       "healthy",
		Backend:      s.config.Backend,
		Tracks:       st.Tracks,
		Fingerprints: st.Occurrences,
	})
}

func (s *Server) handleListTracks(w http.ResponseWriter, r *http.Request) {
	tracks, err := s.service.ListTracks(r.Context())
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	dtos := make([]TrackDTO, len(tracks))
	for i, t := range tracks {
		dtos[i] = trackDTO(t)
	}
	s.respondJSON(w, http.StatusOK, ListTracksResponse{Tracks: dtos, Count: len(dtos)})
}

func (s *Server) handleGetTrack(w http.ResponseWriter, r *http.Request, id uint32) {
	t, err := s.service.GetTrack(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, trackDTO(t))
}

func (s *Server) handleDeleteTrack(w http.ResponseWriter, r *http.Request, id uint32) {
	if err := s.service.DeleteTrack(r.Context(), id); err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.log.Infof("Deleted track %d", id)
	s.respondJSON(w, http.StatusOK, DeleteTrackResponse{Message: "Track deleted", ID: id})
}

// handleAddTrack handles POST /api/tracks with a multipart "audio" WAV file
// and an optional "name" field. The upload is spooled to disk so the
// service can checksum and decode it like any other file.
func (s *Server) handleAddTrack(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	r.Body = http.MaxBytesReader(w, r.Body, maxAddUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.respondError(w, http.StatusBadRequest, "Failed to parse form data")
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	tmp, err := os.CreateTemp(s.config.TempDir, "upload_*.wav")
	if err != nil {
		s.log.Errorf("Failed to create temp file: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to process upload")
		return
	}
	defer os.Remove(tmp.Name())

	_, err = io.Copy(tmp, file)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		s.log.Errorf("Failed to save upload: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to save uploaded file")
		return
	}

	name := r.FormValue("name")
	if name == "" {
		name = audio.BaseName(header.Filename)
	}

	t, err := s.service.AddFile(ctx, tmp.Name(), name)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, AddTrackResponse{Message: "Track indexed", Track: trackDTO(t)})
}

// handleMatchFile handles POST /api/match with a multipart "audio" WAV. The
// upload is decoded in memory.
func (s *Server) handleMatchFile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	r.Body = http.MaxBytesReader(w, r.Body, maxMatchUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.respondError(w, http.StatusBadRequest, "Failed to parse form data")
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	buf, err := audio.Decode(file, audio.DefaultOptions())
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	s.log.Infof("Matching upload %s (%s)", header.Filename, buf.Duration().Round(time.Millisecond))
	m, err := s.service.MatchSamples(ctx, buf.Samples, buf.SampleRate)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, matchResponse(m))
}

// handleMatchFingerprints handles POST /api/match/fingerprints for clients
// that fingerprint locally with the same configuration.
func (s *Server) handleMatchFingerprints(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	var req MatchFingerprintsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Fingerprints) >= FingerprintWarningThreshold {
		s.log.Warnf("Large fingerprint query received: %d", len(req.Fingerprints))
	}

	m, err := s.service.MatchFingerprints(ctx, req.ToFingerprints())
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, matchResponse(m))
}

// handleTracks routes requests to /api/tracks
func (s *Server) handleTracks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListTracks(w, r)
	case http.MethodPost:
		s.handleAddTrack(w, r)
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleTrack routes requests to /api/tracks/{id}
func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	idStr := r.URL.Path[len("/api/tracks/"):]
	if idStr == "" {
		s.respondError(w, http.StatusBadRequest, "Track ID required")
		return
	}
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid track ID %q", idStr))
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGetTrack(w, r, uint32(id))
	case http.MethodDelete:
		s.handleDeleteTrack(w, r, uint32(id))
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.handleMatchFile(w, r)
}

func (s *Server) handleMatchFingerprintsRoute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.handleMatchFingerprints(w, r)
}
