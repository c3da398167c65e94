package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MikeSquared-Agency/quill/internal/feedback"
	"github.com/MikeSquared-Agency/quill/internal/processor"
	"github.com/MikeSquared-Agency/quill/internal/store"
	"github.com/MikeSquared-Agency/quill/internal/style"
)

const invalidBody = "Invalid request body"

type submitRequest struct {
	UserID     string          `json:"userId"`
	EmailPairs json.RawMessage `json:"emailPairs"`
}

// pairs decodes emailPairs leniently: a non-list yields nil, and elements
// that are not pair objects become empty pairs that intake skips.
func (req submitRequest) pairs() []style.EmailPair {
	var items []json.RawMessage
	if err := json.Unmarshal(req.EmailPairs, &items); err != nil {
		return nil
	}
	out := make([]style.EmailPair, 0, len(items))
	for _, item := range items {
		var p style.EmailPair
		if err := json.Unmarshal(item, &p); err != nil {
			p = style.EmailPair{}
		}
		out = append(out, p)
	}
	return out
}

func (s *Server) submitEmails(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, invalidBody)
		return
	}

	res, err := s.pipeline.Submit(r.Context(), req.UserID, req.pairs())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type feedbackRequest struct {
	UserID   string  `json:"userId"`
	EmailID  string  `json:"emailId"`
	Approved bool    `json:"approved"`
	Rating   *int    `json:"rating"`
	Comments *string `json:"comments"`
}

type feedbackResponse struct {
	Success bool `json:"success"`
	*processor.FeedbackResult
}

func (s *Server) emailFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, invalidBody)
		return
	}
	emailID, ok := parseEmailID(req.EmailID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid email ID")
		return
	}

	res, err := s.pipeline.Feedback(r.Context(), processor.FeedbackInput{
		UserIdentifier: req.UserID,
		EmailID:        emailID,
		Approved:       req.Approved,
		Rating:         req.Rating,
		Comments:       req.Comments,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, feedbackResponse{Success: true, FeedbackResult: res})
}

type userRequest struct {
	UserID string `json:"userId"`
}

func (s *Server) saveStyleProfile(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, invalidBody)
		return
	}
	if err := s.pipeline.SaveStyleProfile(r.Context(), req.UserID); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type draftRequest struct {
	UserID    string   `json:"userId"`
	Recipient string   `json:"recipient"`
	Topic     string   `json:"topic"`
	KeyPoints []string `json:"keyPoints"`
}

type draftResponse struct {
	Success bool `json:"success"`
	*processor.DraftResult
}

func (s *Server) generateEmail(w http.ResponseWriter, r *http.Request) {
	var req draftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, invalidBody)
		return
	}
	res, err := s.pipeline.Draft(r.Context(), processor.DraftInput{
		UserIdentifier: req.UserID,
		Recipient:      req.Recipient,
		Topic:          req.Topic,
		KeyPoints:      req.KeyPoints,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, draftResponse{Success: true, DraftResult: res})
}

func (s *Server) styleAnalysis(w http.ResponseWriter, r *http.Request) {
	view, err := s.pipeline.StyleProfile(r.Context(), userFromRequest(r))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "No style analysis found")
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) userData(w http.ResponseWriter, r *http.Request) {
	data, err := s.pipeline.UserData(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (s *Server) syntheticEmails(w http.ResponseWriter, r *http.Request) {
	emails, err := s.pipeline.CurrentEmails(r.Context(), chi.URLParam(r, "userID"), r.URL.Query().Get("category"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if emails == nil {
		emails = []style.SyntheticEmail{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"emails": emails})
}

// fail maps a pipeline error to a status and a caller-safe message.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var verr *processor.ValidationError
	var serr *processor.StepError

	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, feedback.ErrNotPending):
		writeError(w, http.StatusConflict, "Email has already been reviewed")
	case errors.Is(err, feedback.ErrBusy), errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, "Email is being updated, try again")
	case errors.Is(err, processor.ErrProvider):
		s.logger.Error("completion failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusBadGateway, "Email generation failed, please try again")
	case errors.As(err, &serr):
		s.logger.Error("request failed", "path", r.URL.Path, "step", serr.Step, "error", err)
		writeError(w, http.StatusInternalServerError, serr.Public())
	default:
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
