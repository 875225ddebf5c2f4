package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/beanlab/beanboard/pkg/assembly"
	"github.com/beanlab/beanboard/pkg/middleware"
	"github.com/beanlab/beanboard/pkg/scores"
	"github.com/beanlab/beanboard/pkg/session"
)

// Short acknowledgement and error tokens returned to the constrained
// client. Mutating calls never return partial success.
const (
	ackOK = "ok"

	tokBadField  = "ERR_FIELD"
	tokBadSymbol = "ERR_SYMBOL"
	tokIdentity  = "ERR_IDENTITY"
	tokHandshake = "ERR_HANDSHAKE"
	tokEmpty     = "ERR_EMPTY"
	tokStale     = "ERR_STALE"
	tokStore     = "ERR_STORE"
	tokNotFound  = "ERR_NOT_FOUND"
)

// routes builds the service mux.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/{field}/reset", s.handleReset)
	mux.HandleFunc("GET /v1/{field}/push/{sym}", s.handlePush)
	mux.HandleFunc("GET /v1/{field}/commit", s.handleCommit)
	mux.HandleFunc("GET /v1/world/commit/{tag}", s.handleCommitWorld)

	mux.HandleFunc("GET /v1/board", s.handleBoard)
	mux.HandleFunc("GET /v1/board/text", s.handleBoardText)

	mux.HandleFunc("GET /healthz", s.checker.LivenessHandler())
	mux.HandleFunc("GET /readyz", s.checker.ReadinessHandler())

	admin := middleware.AdminKey(s.cfg.Admin.KeyHash)
	mux.Handle("DELETE /api/v1/admin/scores/{key}",
		admin(http.HandlerFunc(s.handleAdminDelete)))

	return mux
}

// parseField maps a wire field name onto the session field.
func parseField(name string) (session.Field, bool) {
	switch name {
	case "id":
		return session.FieldIdentity, true
	case "name":
		return session.FieldName, true
	case "time":
		return session.FieldTime, true
	case "beans":
		return session.FieldCounter, true
	default:
		return 0, false
	}
}

// writeToken writes a short plain-text protocol token.
func writeToken(w http.ResponseWriter, status int, token string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(token + "\n"))
}

// writeProtocolError maps the assembly/storage error taxonomy onto short
// tokens. Storage failures are 503 and retryable; everything else is a
// client protocol error.
func (s *Server) writeProtocolError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, assembly.ErrBadSymbol):
		writeToken(w, http.StatusBadRequest, tokBadSymbol)
	case errors.Is(err, assembly.ErrIncompleteIdentity):
		writeToken(w, http.StatusBadRequest, tokIdentity)
	case errors.Is(err, assembly.ErrNoHandshake):
		writeToken(w, http.StatusBadRequest, tokHandshake)
	case errors.Is(err, assembly.ErrEmptyBuffer):
		writeToken(w, http.StatusBadRequest, tokEmpty)
	case errors.Is(err, assembly.ErrStaleSession):
		writeToken(w, http.StatusConflict, tokStale)
	case scores.IsStorage(err):
		s.log.ErrorContext(r.Context(), "storage failure",
			"error", err, "request_id", middleware.RequestIDFrom(r.Context()))
		writeToken(w, http.StatusServiceUnavailable, tokStore)
	default:
		s.log.ErrorContext(r.Context(), "unexpected failure",
			"error", err, "request_id", middleware.RequestIDFrom(r.Context()))
		writeToken(w, http.StatusInternalServerError, tokStore)
	}
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	f, ok := parseField(r.PathValue("field"))
	if !ok {
		writeToken(w, http.StatusNotFound, tokBadField)
		return
	}

	if err := s.asm.Reset(r.Context(), middleware.ClientKey(r), f); err != nil {
		s.writeProtocolError(w, r, err)
		return
	}
	writeToken(w, http.StatusOK, ackOK)
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	f, ok := parseField(r.PathValue("field"))
	if !ok {
		writeToken(w, http.StatusNotFound, tokBadField)
		return
	}

	sym, err := strconv.Atoi(r.PathValue("sym"))
	if err != nil {
		writeToken(w, http.StatusBadRequest, tokBadSymbol)
		return
	}

	if err := s.asm.Append(r.Context(), middleware.ClientKey(r), f, sym); err != nil {
		s.writeProtocolError(w, r, err)
		return
	}
	writeToken(w, http.StatusOK, ackOK)
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	f, ok := parseField(r.PathValue("field"))
	if !ok {
		writeToken(w, http.StatusNotFound, tokBadField)
		return
	}

	if err := s.asm.Commit(r.Context(), middleware.ClientKey(r), f); err != nil {
		s.writeProtocolError(w, r, err)
		return
	}
	writeToken(w, http.StatusOK, ackOK)
}

func (s *Server) handleCommitWorld(w http.ResponseWriter, r *http.Request) {
	if err := s.asm.CommitWorld(r.Context(), middleware.ClientKey(r), r.PathValue("tag")); err != nil {
		s.writeProtocolError(w, r, err)
		return
	}
	writeToken(w, http.StatusOK, ackOK)
}

// boardParams parses the shared leaderboard query parameters.
func boardParams(r *http.Request) (limit int, world string) {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	return limit, r.URL.Query().Get("world")
}

func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	limit, world := boardParams(r)
	entries, err := s.project.TopN(r.Context(), limit, world)
	if err != nil {
		s.writeProtocolError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(entries)
}

func (s *Server) handleBoardText(w http.ResponseWriter, r *http.Request) {
	limit, world := boardParams(r)
	text, err := s.project.TopNText(r.Context(), limit, world)
	if err != nil {
		s.writeProtocolError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(text))
}

func (s *Server) handleAdminDelete(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	err := s.store.Delete(r.Context(), key)
	switch {
	case errors.Is(err, scores.ErrNotFound):
		writeToken(w, http.StatusNotFound, tokNotFound)
	case err != nil:
		s.writeProtocolError(w, r, err)
	default:
		s.log.InfoContext(r.Context(), "admin reset", "key", key)
		writeToken(w, http.StatusOK, ackOK)
	}
}
