package app_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"medexam-service/internal/app"
	"medexam-service/internal/domain"
	"medexam-service/internal/infra/memory"
)

func TestCreateBuildsShuffledSession(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newTestEngine(t, testQuestions(5, "Hematology"))

	session, err := engine.Create(ctx, "", domain.ModeExam)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if session.Total != 5 || session.CurrentIndex != 0 || session.Score != 0 {
		t.Fatalf("unexpected session state: %+v", session)
	}
	if len(session.QuestionOrder) != 5 {
		t.Fatalf("expected 5 ordered questions, got %d", len(session.QuestionOrder))
	}
	if session.Finished() {
		t.Fatalf("new session must be open")
	}

	seen := make(map[int64]bool)
	for _, id := range session.QuestionOrder {
		if seen[id] {
			t.Fatalf("duplicate question id %d in order", id)
		}
		seen[id] = true
	}

	if _, _, ok := engine.Current(); !ok {
		t.Fatalf("expected current question resolvable from cache")
	}
}

func TestCreateTopicFilter(t *testing.T) {
	ctx := context.Background()
	questions := append(testQuestions(3, "Hematology"), testQuestions(2, "Microbiology")...)
	engine, _, _ := newTestEngine(t, questions)

	session, err := engine.Create(ctx, "Microbiology", domain.ModePractice)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if session.Total != 2 {
		t.Fatalf("expected 2 questions for topic, got %d", session.Total)
	}
}

func TestCreateNoQuestionsAvailable(t *testing.T) {
	ctx := context.Background()
	engine, _, records := newTestEngine(t, testQuestions(3, "Hematology"))

	_, err := engine.Create(ctx, "Immunology", domain.ModeExam)
	if !errors.Is(err, domain.ErrNoQuestionsAvailable) {
		t.Fatalf("expected ErrNoQuestionsAvailable, got %v", err)
	}
	// Nothing may be persisted on the failure path.
	if _, err := records.FindLatestOpenSession(ctx, "u1"); !errors.Is(err, domain.ErrNoOpenSession) {
		t.Fatalf("expected no persisted session, got %v", err)
	}
}

func TestExamAnswerIsFinal(t *testing.T) {
	ctx := context.Background()
	engine, _, records := newTestEngine(t, testQuestions(5, ""))

	session, err := engine.Create(ctx, "", domain.ModeExam)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	question, _, ok := engine.Current()
	if !ok {
		t.Fatalf("no current question")
	}
	session, attempt, err := engine.Answer(ctx, question.CorrectIndex)
	if err != nil {
		t.Fatalf("answer failed: %v", err)
	}
	if !attempt.Correct || session.Score != 1 || session.CurrentIndex != 1 {
		t.Fatalf("expected score=1 index=1, got score=%d index=%d", session.Score, session.CurrentIndex)
	}

	// Revisit the answered question and submit again: exam answers are final.
	if _, err := engine.Navigate(-1); err != nil {
		t.Fatalf("navigate failed: %v", err)
	}
	session, repeat, err := engine.Answer(ctx, question.CorrectIndex)
	if err != nil {
		t.Fatalf("repeat answer failed: %v", err)
	}
	if repeat.ID != attempt.ID {
		t.Fatalf("expected the original attempt back, got %+v", repeat)
	}
	if session.Score != 1 {
		t.Fatalf("score double-counted: %d", session.Score)
	}
	if n := records.AttemptCount(session.ID); n != 1 {
		t.Fatalf("expected exactly one persisted attempt, got %d", n)
	}
}

func TestPracticeReanswerSupersedes(t *testing.T) {
	ctx := context.Background()
	engine, _, records := newTestEngine(t, testQuestions(3, ""))

	session, err := engine.Create(ctx, "", domain.ModePractice)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	question, _, _ := engine.Current()
	wrong := (question.CorrectIndex + 1) % len(question.Choices)

	session, _, err = engine.Answer(ctx, wrong)
	if err != nil {
		t.Fatalf("answer failed: %v", err)
	}
	if session.Score != 0 || session.CurrentIndex != 1 {
		t.Fatalf("expected score=0 index=1, got %+v", session)
	}

	if _, err := engine.Navigate(-1); err != nil {
		t.Fatalf("navigate failed: %v", err)
	}
	session, _, err = engine.Answer(ctx, question.CorrectIndex)
	if err != nil {
		t.Fatalf("re-answer failed: %v", err)
	}
	if session.Score != 1 {
		t.Fatalf("expected score=1 after correct re-answer, got %d", session.Score)
	}
	if n := records.AttemptCount(session.ID); n != 2 {
		t.Fatalf("expected both attempts persisted, got %d", n)
	}

	if _, err := engine.Navigate(-1); err != nil {
		t.Fatalf("navigate failed: %v", err)
	}
	if _, attempt, ok := engine.Current(); !ok || attempt == nil || !attempt.Correct {
		t.Fatalf("presented attempt must reflect the latest (correct) answer, got %+v", attempt)
	}
}

func TestNavigateClampsAndNoops(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newTestEngine(t, testQuestions(3, ""))

	if _, err := engine.Create(ctx, "", domain.ModeExam); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	session, err := engine.Navigate(0)
	if err != nil {
		t.Fatalf("navigate failed: %v", err)
	}
	if session.CurrentIndex != 0 {
		t.Fatalf("navigate(0) changed state: %d", session.CurrentIndex)
	}

	if session, _ = engine.Navigate(-5); session.CurrentIndex != 0 {
		t.Fatalf("expected clamp at 0, got %d", session.CurrentIndex)
	}
	if session, _ = engine.Navigate(100); session.CurrentIndex != 2 {
		t.Fatalf("expected clamp at total-1, got %d", session.CurrentIndex)
	}
	if session, _ = engine.Navigate(-1); session.CurrentIndex != 1 {
		t.Fatalf("expected index 1, got %d", session.CurrentIndex)
	}
}

func TestFinishReturnsIncorrectQuestions(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newTestEngine(t, testQuestions(4, ""))

	if _, err := engine.Create(ctx, "", domain.ModeExam); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// Answer all four, the second one incorrectly.
	var missedID int64
	for i := 0; i < 4; i++ {
		question, _, ok := engine.Current()
		if !ok {
			t.Fatalf("no current question at step %d", i)
		}
		choice := question.CorrectIndex
		if i == 1 {
			choice = (question.CorrectIndex + 1) % len(question.Choices)
			missedID = question.ID
		}
		if _, _, err := engine.Answer(ctx, choice); err != nil {
			t.Fatalf("answer %d failed: %v", i, err)
		}
	}

	session, incorrect, err := engine.Finish(ctx)
	if err != nil {
		t.Fatalf("finish failed: %v", err)
	}
	if !session.Finished() {
		t.Fatalf("session must be closed")
	}
	if session.Score != 3 {
		t.Fatalf("expected score 3, got %d", session.Score)
	}
	if len(incorrect) != 1 || incorrect[0].ID != missedID {
		t.Fatalf("expected exactly the missed question %d, got %+v", missedID, incorrect)
	}

	// Re-finishing is a no-op on the timestamp; the review is recomputed.
	finishedAt := *session.FinishedAt
	again, incorrectAgain, err := engine.Finish(ctx)
	if err != nil {
		t.Fatalf("re-finish failed: %v", err)
	}
	if !again.FinishedAt.Equal(finishedAt) {
		t.Fatalf("re-finish moved the completion timestamp")
	}
	if len(incorrectAgain) != 1 {
		t.Fatalf("expected same review list, got %+v", incorrectAgain)
	}

	if _, _, err := engine.Answer(ctx, 0); !errors.Is(err, domain.ErrSessionFinished) {
		t.Fatalf("expected ErrSessionFinished, got %v", err)
	}
}

func TestResumeRoundTrip(t *testing.T) {
	ctx := context.Background()
	questions, records := memory.NewQuestionStore(testQuestions(4, "")), memory.NewRecordStore()

	first := app.NewSessionEngine(questions, records, zap.NewNop(), "u1")
	created, err := first.Create(ctx, "", domain.ModePractice)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// A fresh engine (another device) reconstructs full state.
	second := app.NewSessionEngine(questions, records, zap.NewNop(), "u1")
	resumed, err := second.Resume(ctx)
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if resumed.ID != created.ID {
		t.Fatalf("resumed wrong session: %s vs %s", resumed.ID, created.ID)
	}
	if resumed.CurrentIndex != 0 || resumed.Score != 0 {
		t.Fatalf("expected pristine session, got %+v", resumed)
	}
	question, attempt, ok := second.Current()
	if !ok {
		t.Fatalf("cache must cover every id in the question order")
	}
	if attempt != nil {
		t.Fatalf("expected empty attempt mapping, got %+v", attempt)
	}
	if question.ID != resumed.QuestionOrder[0] {
		t.Fatalf("current question mismatch")
	}
}

func TestResumeRebuildsAttempts(t *testing.T) {
	ctx := context.Background()
	questions, records := memory.NewQuestionStore(testQuestions(3, "")), memory.NewRecordStore()

	first := app.NewSessionEngine(questions, records, zap.NewNop(), "u1")
	if _, err := first.Create(ctx, "", domain.ModeExam); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	question, _, _ := first.Current()
	if _, _, err := first.Answer(ctx, question.CorrectIndex); err != nil {
		t.Fatalf("answer failed: %v", err)
	}

	second := app.NewSessionEngine(questions, records, zap.NewNop(), "u1")
	resumed, err := second.Resume(ctx)
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if resumed.CurrentIndex != 1 || resumed.Score != 1 {
		t.Fatalf("resume lost progress: %+v", resumed)
	}
	if _, err := second.Navigate(-1); err != nil {
		t.Fatalf("navigate failed: %v", err)
	}
	if _, attempt, ok := second.Current(); !ok || attempt == nil || attempt.QuestionID != question.ID {
		t.Fatalf("expected rebuilt attempt for question %d", question.ID)
	}
}

func TestResumeWithoutOpenSession(t *testing.T) {
	engine, _, _ := newTestEngine(t, testQuestions(2, ""))
	if _, err := engine.Resume(context.Background()); !errors.Is(err, domain.ErrNoOpenSession) {
		t.Fatalf("expected ErrNoOpenSession, got %v", err)
	}
}

func TestAnswerRequiresActiveSession(t *testing.T) {
	engine, _, _ := newTestEngine(t, testQuestions(2, ""))
	if _, _, err := engine.Answer(context.Background(), 0); !errors.Is(err, domain.ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession, got %v", err)
	}
	if _, err := engine.Navigate(1); !errors.Is(err, domain.ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession, got %v", err)
	}
	if _, _, err := engine.Finish(context.Background()); !errors.Is(err, domain.ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession, got %v", err)
	}
}

func TestAnswerChoiceOutOfRange(t *testing.T) {
	ctx := context.Background()
	engine, _, records := newTestEngine(t, testQuestions(2, ""))

	session, err := engine.Create(ctx, "", domain.ModeExam)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, _, err := engine.Answer(ctx, 7); !errors.Is(err, domain.ErrChoiceOutOfRange) {
		t.Fatalf("expected ErrChoiceOutOfRange, got %v", err)
	}
	if _, _, err := engine.Answer(ctx, -1); !errors.Is(err, domain.ErrChoiceOutOfRange) {
		t.Fatalf("expected ErrChoiceOutOfRange, got %v", err)
	}
	if n := records.AttemptCount(session.ID); n != 0 {
		t.Fatalf("out-of-range answer persisted %d attempts", n)
	}
}

func TestAnswerStoreFailureLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	questions := memory.NewQuestionStore(testQuestions(3, ""))
	records := &failingRecordStore{RecordStore: memory.NewRecordStore()}
	engine := app.NewSessionEngine(questions, records, zap.NewNop(), "u1")

	if _, err := engine.Create(ctx, "", domain.ModeExam); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	question, _, _ := engine.Current()

	records.failUpdate = true
	if _, _, err := engine.Answer(ctx, question.CorrectIndex); err == nil {
		t.Fatalf("expected store failure to surface")
	}

	// The failed write must not leak into in-memory state.
	session, ok := engine.Session()
	if !ok {
		t.Fatalf("expected active session")
	}
	if session.Score != 0 || session.CurrentIndex != 0 {
		t.Fatalf("optimistic local mutation after store failure: %+v", session)
	}
	if _, attempt, _ := engine.Current(); attempt != nil {
		t.Fatalf("attempt mapping updated despite failed session write")
	}
}

func TestInvariantsHoldAcrossFullRun(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newTestEngine(t, testQuestions(6, ""))

	session, err := engine.Create(ctx, "", domain.ModePractice)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	checkInvariants(t, session)

	for i := 0; i < session.Total; i++ {
		question, _, ok := engine.Current()
		if !ok {
			t.Fatalf("no current question")
		}
		s, _, err := engine.Answer(ctx, (question.CorrectIndex+i)%len(question.Choices))
		if err != nil {
			t.Fatalf("answer failed: %v", err)
		}
		checkInvariants(t, s)
	}

	s, _ := engine.Navigate(-100)
	checkInvariants(t, s)
	s, _, err = engine.Finish(ctx)
	if err != nil {
		t.Fatalf("finish failed: %v", err)
	}
	checkInvariants(t, s)
}

func checkInvariants(t *testing.T, s domain.Session) {
	t.Helper()
	if s.CurrentIndex < 0 || s.CurrentIndex >= s.Total {
		t.Fatalf("current index out of bounds: %d of %d", s.CurrentIndex, s.Total)
	}
	if s.Score < 0 || s.Score > s.Total {
		t.Fatalf("score out of bounds: %d of %d", s.Score, s.Total)
	}
}

type failingRecordStore struct {
	*memory.RecordStore
	failUpdate bool
}

func (s *failingRecordStore) UpdateSession(ctx context.Context, session domain.Session) (domain.Session, error) {
	if s.failUpdate {
		return domain.Session{}, errors.New("record store unavailable")
	}
	return s.RecordStore.UpdateSession(ctx, session)
}

func newTestEngine(t *testing.T, questions []domain.Question) (*app.SessionEngine, *memory.QuestionStore, *memory.RecordStore) {
	t.Helper()
	questionStore := memory.NewQuestionStore(questions)
	recordStore := memory.NewRecordStore()
	return app.NewSessionEngine(questionStore, recordStore, zap.NewNop(), "u1"), questionStore, recordStore
}

func testQuestions(n int, topic string) []domain.Question {
	questions := make([]domain.Question, n)
	for i := range questions {
		questions[i] = domain.Question{
			Stem:         fmt.Sprintf("Question %d", i+1),
			Choices:      []string{"A", "B", "C", "D"},
			CorrectIndex: i % 4,
			Topic:        topic,
			IsActive:     true,
		}
	}
	return questions
}
