package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/spigell/cloutcash-matcher/internal/interactions"
	"github.com/spigell/cloutcash-matcher/internal/matching"
	"github.com/spigell/cloutcash-matcher/internal/profiles"
	"github.com/spigell/cloutcash-matcher/internal/validation"
)

const (
	codeBadRequest = "BAD_REQUEST"
	codeValidation = "VALIDATION_ERROR"
	codeNotFound   = "NOT_FOUND"
	codeInternal   = "INTERNAL_ERROR"
)

type apiError struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Fields  []fieldError `json:"fields,omitempty"`
}

type fieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

type interactionRequest struct {
	UserID    string     `json:"userId"`
	TargetID  string     `json:"targetId"`
	Type      string     `json:"type"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

type interactionResponse struct {
	Matched bool `json:"matched"`
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	var req matching.Request
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, apiError{Code: codeBadRequest, Message: err.Error()})
		return
	}

	resp, err := s.deps.Matcher.Match(r.Context(), req)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleInteraction(w http.ResponseWriter, r *http.Request) {
	var body interactionRequest
	if err := decodeJSON(w, r, &body); err != nil {
		respondError(w, http.StatusBadRequest, apiError{Code: codeBadRequest, Message: err.Error()})
		return
	}

	item := interactions.Interaction{
		UserID:   body.UserID,
		TargetID: body.TargetID,
		Type:     interactions.Type(body.Type),
	}
	if body.Timestamp != nil {
		item.Timestamp = body.Timestamp.UTC()
	}

	matched, err := s.deps.Recorder.Record(r.Context(), item)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, interactionResponse{Matched: matched})
}

func (s *Server) handleResetExclusions(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(chi.URLParam(r, "userID"))
	if userID == "" {
		respondError(w, http.StatusBadRequest, apiError{Code: codeBadRequest, Message: "user id is required"})
		return
	}

	if err := s.deps.Resetter.Reset(r.Context(), userID); err != nil {
		s.respondFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// respondFailure maps domain errors onto status codes. Anything unknown is a 500
// and is logged; the client only sees a generic message.
func (s *Server) respondFailure(w http.ResponseWriter, r *http.Request, err error) {
	var verr *validation.RequestValidationError
	switch {
	case errors.As(err, &verr):
		respondError(w, http.StatusBadRequest, validationError(verr))
	case errors.Is(err, interactions.ErrInvalid):
		respondError(w, http.StatusBadRequest, apiError{Code: codeValidation, Message: err.Error()})
	case errors.Is(err, profiles.ErrNotFound):
		respondError(w, http.StatusNotFound, apiError{Code: codeNotFound, Message: err.Error()})
	default:
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("http_request_id", chimiddleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		respondError(w, http.StatusInternalServerError, apiError{Code: codeInternal, Message: "internal error"})
	}
}

func validationError(verr *validation.RequestValidationError) apiError {
	out := apiError{Code: codeValidation, Message: verr.Error()}
	for _, f := range verr.Fields {
		out.Fields = append(out.Fields, fieldError{Field: f.Field, Tag: f.Tag, Message: f.Error()})
	}
	return out
}

func decodeJSON(w http.ResponseWriter, r *http.Request, out any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return errors.New("malformed json body: " + err.Error())
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func respondError(w http.ResponseWriter, status int, e apiError) {
	respondJSON(w, status, errorResponse{Error: e})
}
