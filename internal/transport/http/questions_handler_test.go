package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"medexam-service/internal/domain"
	"medexam-service/internal/infra/memory"
)

func TestAddAndListQuestions(t *testing.T) {
	bank := memory.NewQuestionStore(nil)
	handler := NewQuestionsHandler(bank, zap.NewNop())

	body := `{"stem":"What is the primary function of neutrophils?","choices":["Antibody production","Phagocytosis of bacteria"],"correctIndex":1,"topic":"Hematology"}`
	req := httptest.NewRequest(http.MethodPost, "/questions", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created domain.Question
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == 0 || !created.IsActive {
		t.Fatalf("expected active question with id, got %+v", created)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/questions?limit=10", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var listed []domain.Question
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != created.ID {
		t.Fatalf("expected the created question, got %+v", listed)
	}
}

func TestAddQuestionValidation(t *testing.T) {
	handler := NewQuestionsHandler(memory.NewQuestionStore(nil), zap.NewNop())

	cases := []struct {
		name string
		body string
	}{
		{"missing stem", `{"choices":["a","b"],"correctIndex":0}`},
		{"empty choice", `{"stem":"q","choices":["a",""],"correctIndex":0}`},
		{"correct index out of range", `{"stem":"q","choices":["a","b"],"correctIndex":2}`},
		{"negative correct index", `{"stem":"q","choices":["a","b"],"correctIndex":-1}`},
		{"malformed json", `{`},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/questions", strings.NewReader(tc.body)))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", tc.name, rec.Code)
		}
	}
}

func TestHealthzReportsQuestionCount(t *testing.T) {
	bank := memory.NewQuestionStore([]domain.Question{
		{Stem: "q1", Choices: []string{"a"}, IsActive: true},
	})
	handler := NewQuestionsHandler(bank, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload struct {
		Status    string `json:"status"`
		Questions int    `json:"questions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Status != "ok" || payload.Questions != 1 {
		t.Fatalf("unexpected health payload: %+v", payload)
	}
}
