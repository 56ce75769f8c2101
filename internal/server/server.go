package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/vincentbai/formtrack/internal/datalayer"
	"github.com/vincentbai/formtrack/internal/database"
	"github.com/vincentbai/formtrack/internal/models"
	"github.com/vincentbai/formtrack/internal/replay"
)

type Server struct {
	db      *database.Database
	address string
	server  *http.Server
	runner  *replay.Runner
	logger  *slog.Logger
}

func NewServer(db *database.Database, address string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		db:      db,
		address: address,
		runner:  &replay.Runner{Logger: logger},
		logger:  logger,
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Write([]byte("ok"))
}

// handleReplays runs a posted script and stores what it emitted under a new
// session.
func (s *Server) handleReplays(w http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	var script replay.Script
	if err := json.NewDecoder(request.Body).Decode(&script); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}

	dl := datalayer.New()
	if err := s.runner.Run(request.Context(), script, dl); err != nil {
		if errors.Is(err, replay.ErrInvalidStep) || errors.Is(err, replay.ErrUnknownTarget) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		s.logger.Error("replay failed", "error", err)
		http.Error(w, "Replay failed", http.StatusInternalServerError)
		return
	}

	session := models.Session{SessionID: uuid.NewString(), Events: dl.Events()}
	if len(session.Events) > 0 {
		if err := s.db.InsertRecords(session.SessionID, session.Events); err != nil {
			s.logger.Error("database error", "error", err)
			http.Error(w, "Failed to store events", http.StatusInternalServerError)
			return
		}
	}
	s.logger.Info("replay stored", "session_id", session.SessionID, "events", len(session.Events))

	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleEvents(w http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}
	sessionID := request.URL.Query().Get("session")
	if sessionID == "" {
		http.Error(w, "session is required", http.StatusBadRequest)
		return
	}
	records, err := s.db.ListRecords(sessionID)
	if err != nil {
		s.logger.Error("database error", "error", err)
		http.Error(w, "Failed to load events", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/replays", s.handleReplays)
	mux.HandleFunc("/events", s.handleEvents)
	return mux
}

// Start serves until SIGINT or SIGTERM, then shuts down gracefully.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.address,
		Handler:      s.setupRoutes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	shutdownChannel := make(chan os.Signal, 1)
	signal.Notify(shutdownChannel, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(shutdownChannel)

	serveErrors := make(chan error, 1)
	go func() {
		s.logger.Info("formtrack agent listening", "address", s.address)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrors <- err
		}
	}()

	select {
	case err := <-serveErrors:
		return err
	case <-shutdownChannel:
	}
	s.logger.Info("shutting down server")

	shutdownContext, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownContext); err != nil {
		return err
	}

	s.logger.Info("server exited")
	return nil
}
