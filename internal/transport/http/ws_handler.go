package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"medexam-service/internal/app"
	"medexam-service/internal/domain"
)

// WSHandler exposes the session engine over a websocket. One connection
// drives one authenticated user's interactive session: the client sends
// intents (create, resume, answer, navigate, finish) and receives the
// updated visible state after each one.
type WSHandler struct {
	questions app.QuestionRepository
	records   app.RecordStore
	logger    *zap.Logger
	upgrader  websocket.Upgrader
}

func NewWSHandler(questions app.QuestionRepository, records app.RecordStore, logger *zap.Logger) *WSHandler {
	return &WSHandler{
		questions: questions,
		records:   records,
		logger:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type createPayload struct {
	Topic string `json:"topic"`
	Mode  string `json:"mode"`
}

type answerPayload struct {
	ChoiceIndex int `json:"choiceIndex"`
}

type navigatePayload struct {
	Delta int `json:"delta"`
}

type sessionState struct {
	Session  domain.Session   `json:"session"`
	Question *domain.Question `json:"question,omitempty"`
	Attempt  *domain.Attempt  `json:"attempt,omitempty"`
}

type reviewState struct {
	Session            domain.Session    `json:"session"`
	IncorrectQuestions []domain.Question `json:"incorrectQuestions"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and runs the intent loop. The user id arrives
// as an opaque, already-authenticated identifier.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	engine := app.NewSessionEngine(h.questions, h.records, h.logger, userID)

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}
		switch inbound.Type {
		case "create":
			var payload createPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				h.writeError(conn, "invalid create payload")
				continue
			}
			mode, err := domain.ParseMode(payload.Mode)
			if err != nil {
				h.writeError(conn, err.Error())
				continue
			}
			if _, err := engine.Create(r.Context(), payload.Topic, mode); err != nil {
				h.writeError(conn, err.Error())
				continue
			}
			h.writeState(conn, "created", engine)
		case "resume":
			if _, err := engine.Resume(r.Context()); err != nil {
				h.writeError(conn, err.Error())
				continue
			}
			h.writeState(conn, "resumed", engine)
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				h.writeError(conn, "invalid answer payload")
				continue
			}
			if _, _, err := engine.Answer(r.Context(), payload.ChoiceIndex); err != nil {
				h.writeError(conn, err.Error())
				continue
			}
			h.writeState(conn, "answered", engine)
		case "navigate":
			var payload navigatePayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				h.writeError(conn, "invalid navigate payload")
				continue
			}
			if _, err := engine.Navigate(payload.Delta); err != nil {
				h.writeError(conn, err.Error())
				continue
			}
			h.writeState(conn, "navigated", engine)
		case "finish":
			session, incorrect, err := engine.Finish(r.Context())
			if err != nil {
				h.writeError(conn, err.Error())
				continue
			}
			if incorrect == nil {
				incorrect = []domain.Question{}
			}
			h.write(conn, outboundMessage[reviewState]{Type: "finished", Payload: reviewState{
				Session:            session,
				IncorrectQuestions: incorrect,
			}})
		default:
			h.writeError(conn, "unsupported message type")
		}
	}
}

func (h *WSHandler) writeState(conn *websocket.Conn, msgType string, engine *app.SessionEngine) {
	session, ok := engine.Session()
	if !ok {
		h.writeError(conn, domain.ErrNoActiveSession.Error())
		return
	}
	state := sessionState{Session: session}
	if question, attempt, ok := engine.Current(); ok {
		state.Question = &question
		state.Attempt = attempt
	}
	h.write(conn, outboundMessage[sessionState]{Type: msgType, Payload: state})
}

func (h *WSHandler) writeError(conn *websocket.Conn, message string) {
	h.write(conn, outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: message}})
}

func (h *WSHandler) write(conn *websocket.Conn, msg any) {
	if err := conn.WriteJSON(msg); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		h.logger.Warn("ws write error", zap.Error(err))
	}
}
