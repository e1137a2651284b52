package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"quiz-game-service/internal/app"
	"quiz-game-service/internal/domain"
)

// WSHandler serves the interactive play channel. Each inbound frame maps to
// one engine operation against the caller's game, so a client can play a
// whole quiz over a single connection instead of polling the REST routes.
type WSHandler struct {
	service  *app.GameService
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.GameService, logger *slog.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		logger:  logger,
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

type resolvePayload struct {
	QuestionID uuid.UUID   `json:"question_id"`
	Choices    []uuid.UUID `json:"choices"`
}

type resolvedPayload struct {
	QuestionID uuid.UUID `json:"question_id"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the connection and runs the frame loop. Business
// rejections are reported as error frames and keep the connection open;
// malformed frames close it.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	gameID, err := uuid.Parse(r.URL.Query().Get("gameId"))
	if err != nil {
		http.Error(w, "missing or invalid gameId", http.StatusBadRequest)
		return
	}
	user := userID(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}

		switch inbound.Type {
		case "next":
			payload, err := h.service.NextQuestion(r.Context(), gameID, user)
			if errors.Is(err, domain.ErrGameFinished) {
				h.send(conn, outboundMessage[struct{}]{Type: "finished"})
				continue
			}
			if err != nil {
				h.sendError(conn, err)
				continue
			}
			h.send(conn, outboundMessage[app.NextQuestionPayload]{Type: "question", Payload: payload})

		case "answer":
			var req resolvePayload
			if err := json.Unmarshal(inbound.Payload, &req); err != nil {
				h.sendError(conn, errors.New("invalid answer payload"))
				continue
			}
			if err := h.service.Answer(r.Context(), gameID, req.QuestionID, user, req.Choices); err != nil {
				h.sendError(conn, err)
				continue
			}
			h.send(conn, outboundMessage[resolvedPayload]{Type: "resolved", Payload: resolvedPayload{QuestionID: req.QuestionID}})

		case "skip":
			var req resolvePayload
			if err := json.Unmarshal(inbound.Payload, &req); err != nil {
				h.sendError(conn, errors.New("invalid skip payload"))
				continue
			}
			if err := h.service.Skip(r.Context(), gameID, req.QuestionID, user); err != nil {
				h.sendError(conn, err)
				continue
			}
			h.send(conn, outboundMessage[resolvedPayload]{Type: "resolved", Payload: resolvedPayload{QuestionID: req.QuestionID}})

		case "results":
			results, err := h.service.Results(r.Context(), gameID, user)
			if err != nil {
				h.sendError(conn, err)
				continue
			}
			h.send(conn, outboundMessage[resultsResponse]{Type: "results", Payload: resultsPayload(results)})

		default:
			h.sendError(conn, errors.New("unsupported message type"))
		}
	}
}

func (h *WSHandler) send(conn *websocket.Conn, msg any) {
	if err := conn.WriteJSON(msg); err != nil {
		h.logger.Error("ws write failed", "err", err)
	}
}

func (h *WSHandler) sendError(conn *websocket.Conn, err error) {
	h.send(conn, outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
}
