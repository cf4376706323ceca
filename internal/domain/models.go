package domain

import "time"

// Question is a single multiple-choice item from the question bank.
// The session engine treats questions as read-only; authoring happens
// through the admin surface.
type Question struct {
	ID           int64    `json:"id"`
	Stem         string   `json:"stem"`
	Choices      []string `json:"choices"`
	CorrectIndex int      `json:"correctIndex"`
	Topic        string   `json:"topic,omitempty"`
	Difficulty   string   `json:"difficulty,omitempty"`
	Explanation  string   `json:"explanation,omitempty"`
	ImageURL     string   `json:"imageUrl,omitempty"`
	IsActive     bool     `json:"isActive"`
}

// Session is one user's pass over a fixed, shuffled sequence of questions.
// QuestionOrder is decided at creation and never changes afterwards.
type Session struct {
	ID            string     `json:"id"`
	UserID        string     `json:"userId"`
	Mode          Mode       `json:"mode"`
	QuestionOrder []int64    `json:"questionOrder"`
	CurrentIndex  int        `json:"currentIndex"`
	Total         int        `json:"total"`
	Score         int        `json:"score"`
	StartedAt     time.Time  `json:"startedAt"`
	FinishedAt    *time.Time `json:"finishedAt,omitempty"`
}

// Finished reports whether the session has been closed.
func (s Session) Finished() bool {
	return s.FinishedAt != nil
}

// CurrentQuestionID returns the question id at the session's view position.
func (s Session) CurrentQuestionID() (int64, bool) {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.QuestionOrder) {
		return 0, false
	}
	return s.QuestionOrder[s.CurrentIndex], true
}

// Attempt records a single answer to one question within one session.
// Attempts are insert-only; re-answers in practice mode add new rows.
type Attempt struct {
	ID          int64     `json:"id"`
	SessionID   string    `json:"sessionId"`
	UserID      string    `json:"userId"`
	QuestionID  int64     `json:"questionId"`
	ChoiceIndex int       `json:"choiceIndex"`
	Correct     bool      `json:"correct"`
	CreatedAt   time.Time `json:"createdAt"`
}
