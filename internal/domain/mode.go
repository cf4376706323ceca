package domain

// Mode controls the re-answer policy of a session.
type Mode string

const (
	// ModeExam makes every answer final: a question can be answered once.
	ModeExam Mode = "exam"
	// ModePractice permits re-answering; the latest attempt stands for review.
	ModePractice Mode = "practice"
)

// ParseMode validates a raw mode string.
func ParseMode(raw string) (Mode, error) {
	switch Mode(raw) {
	case ModeExam, ModePractice:
		return Mode(raw), nil
	default:
		return "", ErrInvalidMode
	}
}

// AllowsReanswer reports whether a question may be answered again
// within the same session.
func (m Mode) AllowsReanswer() bool {
	return m == ModePractice
}
