package domain

import "errors"

var (
	// ErrNoQuestionsAvailable is returned when session creation finds no
	// active questions matching the requested topic filter.
	ErrNoQuestionsAvailable = errors.New("no active questions available")
	// ErrNoOpenSession is returned when resume finds no unfinished session.
	ErrNoOpenSession = errors.New("no open session found")
	// ErrNoActiveSession is returned when an operation requires an active session.
	ErrNoActiveSession = errors.New("no active session")
	// ErrSessionFinished is returned when answering a closed session.
	ErrSessionFinished = errors.New("session already finished")
	// ErrChoiceOutOfRange is returned when a choice index is not a valid
	// index into the question's choices.
	ErrChoiceOutOfRange = errors.New("choice index out of range")
	// ErrQuestionNotFound indicates a question id is unknown to the store.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrInvalidMode indicates an unknown session mode.
	ErrInvalidMode = errors.New("invalid session mode")
)
