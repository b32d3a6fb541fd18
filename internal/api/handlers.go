package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/abhisek/catengine/internal/bank"
	"github.com/abhisek/catengine/internal/cat"
	"github.com/abhisek/catengine/internal/logger"
)

type handlers struct {
	svc *cat.Service
	log *logger.Logger
}

type createTestRequest struct {
	Topics          []string `json:"topics"`
	MinQuestions    int      `json:"min_questions"`
	MaxQuestions    int      `json:"max_questions"`
	PassingStandard *float64 `json:"passing_standard"`
}

// optionView hides correctness flags from candidates.
type optionView struct {
	ID           string `json:"id"`
	OptionNumber int    `json:"option_number"`
	Text         string `json:"text"`
}

type questionView struct {
	ID          string       `json:"id"`
	Text        string       `json:"text"`
	Format      bank.Format  `json:"format"`
	Topic       string       `json:"topic,omitempty"`
	MultiSelect bool         `json:"multi_select"`
	Options     []optionView `json:"options"`
}

type nextResponse struct {
	SessionID         string        `json:"session_id"`
	Status            cat.Status    `json:"status"`
	SerialNumber      int           `json:"serial_number,omitempty"`
	Question          *questionView `json:"question,omitempty"`
	Ability           float64       `json:"ability"`
	QuestionsAnswered int           `json:"questions_answered"`
}

func toNextResponse(n *cat.NextQuestion) nextResponse {
	resp := nextResponse{
		SessionID:         n.SessionID,
		Status:            n.Status,
		SerialNumber:      n.SerialNumber,
		Ability:           n.Ability,
		QuestionsAnswered: n.QuestionsAnswered,
	}
	if q := n.Question; q != nil {
		view := &questionView{
			ID:          q.ID,
			Text:        q.Text,
			Format:      q.Format,
			Topic:       q.Topic,
			MultiSelect: q.Format.IsMultiSelect(),
			Options:     make([]optionView, 0, len(q.Options)),
		}
		for _, o := range q.Options {
			view.Options = append(view.Options, optionView{ID: o.ID, OptionNumber: o.OptionNumber, Text: o.Text})
		}
		resp.Question = view
	}
	return resp
}

func (h *handlers) createTest(w http.ResponseWriter, r *http.Request) {
	var req createTestRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad json")
			return
		}
	}

	created, err := h.svc.CreateTest(r.Context(), callerID(r), cat.TestOptions{
		Topics:          req.Topics,
		MinQuestions:    req.MinQuestions,
		MaxQuestions:    req.MaxQuestions,
		PassingStandard: req.PassingStandard,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *handlers) next(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.NextQuestion(r.Context(), callerID(r), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toNextResponse(n))
}

func (h *handlers) submit(w http.ResponseWriter, r *http.Request) {
	var ans cat.Answer
	if err := json.NewDecoder(r.Body).Decode(&ans); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if ans.QuestionID == "" {
		writeError(w, http.StatusBadRequest, "question_id required")
		return
	}
	if ans.TimeSpentSeconds < 0 {
		writeError(w, http.StatusBadRequest, "time_spent_seconds must not be negative")
		return
	}

	res, err := h.svc.SubmitAnswer(r.Context(), callerID(r), chi.URLParam(r, "sessionID"), ans)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) abandon(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Abandon(r.Context(), callerID(r), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toNextResponse(n))
}

func (h *handlers) report(w http.ResponseWriter, r *http.Request) {
	rep, err := h.svc.Report(r.Context(), callerID(r), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// fail maps engine errors to HTTP status codes.
func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, cat.ErrEmptyPool):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, cat.ErrOutOfSequence), errors.Is(err, cat.ErrSessionClosed):
		status = http.StatusConflict
	case errors.Is(err, cat.ErrUnauthorizedSession):
		status = http.StatusForbidden
	case errors.Is(err, cat.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, cat.ErrInvalidOptions):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		h.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
