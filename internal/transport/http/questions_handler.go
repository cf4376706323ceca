package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"medexam-service/internal/domain"
)

// QuestionBank is the authoring surface of the question store.
type QuestionBank interface {
	Insert(ctx context.Context, q domain.Question) (domain.Question, error)
	ListRecent(ctx context.Context, limit int) ([]domain.Question, error)
	Count(ctx context.Context) (int, error)
}

// QuestionsHandler serves the question authoring endpoints backing the
// admin dashboard: add a question, list recent ones, probe the store.
type QuestionsHandler struct {
	bank   QuestionBank
	logger *zap.Logger
}

func NewQuestionsHandler(bank QuestionBank, logger *zap.Logger) *QuestionsHandler {
	return &QuestionsHandler{bank: bank, logger: logger}
}

type addQuestionRequest struct {
	Stem         string   `json:"stem"`
	Choices      []string `json:"choices"`
	CorrectIndex int      `json:"correctIndex"`
	Topic        string   `json:"topic"`
	Difficulty   string   `json:"difficulty"`
	Explanation  string   `json:"explanation"`
	ImageURL     string   `json:"imageUrl"`
}

func (h *QuestionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.add(w, r)
	case http.MethodGet:
		h.list(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *QuestionsHandler) add(w http.ResponseWriter, r *http.Request) {
	var req addQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid question payload", http.StatusBadRequest)
		return
	}
	if req.Stem == "" || len(req.Choices) == 0 {
		http.Error(w, "stem and choices are required", http.StatusBadRequest)
		return
	}
	for _, c := range req.Choices {
		if c == "" {
			http.Error(w, "choices must be non-empty", http.StatusBadRequest)
			return
		}
	}
	if req.CorrectIndex < 0 || req.CorrectIndex >= len(req.Choices) {
		http.Error(w, "correctIndex must point at a choice", http.StatusBadRequest)
		return
	}

	question, err := h.bank.Insert(r.Context(), domain.Question{
		Stem:         req.Stem,
		Choices:      req.Choices,
		CorrectIndex: req.CorrectIndex,
		Topic:        req.Topic,
		Difficulty:   req.Difficulty,
		Explanation:  req.Explanation,
		ImageURL:     req.ImageURL,
		IsActive:     true,
	})
	if err != nil {
		h.logger.Error("insert question failed", zap.Error(err))
		http.Error(w, "insert failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, question)
}

func (h *QuestionsHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	questions, err := h.bank.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("list questions failed", zap.Error(err))
		http.Error(w, "list failed", http.StatusInternalServerError)
		return
	}
	if questions == nil {
		questions = []domain.Question{}
	}
	writeJSON(w, http.StatusOK, questions)
}

// Healthz reports liveness plus the question count as a connectivity probe.
func (h *QuestionsHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	count, err := h.bank.Count(r.Context())
	if err != nil {
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "questions": count})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
