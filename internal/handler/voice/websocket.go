package voice

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/kmondie/nebula-edge/backend/internal/service/gateway"
	"github.com/kmondie/nebula-edge/backend/internal/service/state"
	voiceService "github.com/kmondie/nebula-edge/backend/internal/service/voice"
	"github.com/kmondie/nebula-edge/backend/pkg/audio"
)

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
	pingInterval = 54 * time.Second
)

// Handler bridges browser voice websockets to live upstream sessions.
type Handler struct {
	voiceSvc *voiceService.Service
	stateSvc *state.Container
	upgrader websocket.Upgrader
}

func New(voiceSvc *voiceService.Service, stateSvc *state.Container) *Handler {
	return &Handler{
		voiceSvc: voiceSvc,
		stateSvc: stateSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/voice/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type audioFrame struct {
	Audio      string `json:"audio"`
	SampleRate int    `json:"sampleRate"`
}

type finishedFrame struct {
	ChunkID string `json:"chunkId"`
}

type errorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	user := h.stateSvc.User()

	session, err := h.voiceSvc.Open(r.Context(), gateway.UserContext{
		Name:   user.Name,
		Memory: user.GlobalMemory,
	})
	if err != nil {
		log.Printf("[voice] open session failed: %v", err)
		http.Error(w, "live session unavailable", http.StatusBadGateway)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[voice] upgrade failed: %v", err)
		session.Close()
		return
	}
	defer conn.Close()
	defer session.Close()

	log.Printf("[voice] websocket connected user=%s", user.Name)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	// The connection has exactly one writer: writeLoop. Everything outbound,
	// session events and error frames alike, goes through the outbound
	// channel; pings ride the same loop's ticker.
	outbound := make(chan any, 64)
	writerDone := make(chan struct{})
	go h.writeLoop(ctx, conn, outbound, writerDone)
	go h.forwardEvents(ctx, cancel, session, outbound)

	defer func() {
		cancel()
		<-writerDone
	}()

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[voice] read error: %v", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		switch msg.Type {
		case "audio":
			h.handleAudioFrame(ctx, session, msg.Data, outbound)
		case "finished":
			var frame finishedFrame
			if err := json.Unmarshal(msg.Data, &frame); err == nil {
				session.FinishChunk(frame.ChunkID)
			}
		case "close":
			return
		default:
			h.sendError(ctx, outbound, "unsupported message type: "+msg.Type)
		}
	}
}

func (h *Handler) handleAudioFrame(ctx context.Context, session *voiceService.Session, raw json.RawMessage, outbound chan<- any) {
	samples, rate, errText := decodeAudioFrame(raw)
	if errText != "" {
		h.sendError(ctx, outbound, errText)
		return
	}

	if err := session.PushAudio(samples, rate); err != nil {
		log.Printf("[voice] push audio failed: %v", err)
		h.sendError(ctx, outbound, "audio forwarding failed")
	}
}

// decodeAudioFrame unpacks a browser microphone frame. The error return is
// user-facing frame text, empty on success.
func decodeAudioFrame(raw json.RawMessage) ([]float32, int, string) {
	var frame audioFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, 0, "invalid audio payload"
	}

	pcm, err := audio.DecodeBase64(frame.Audio)
	if err != nil {
		return nil, 0, "invalid audio encoding"
	}

	return audio.PCM16ToFloats(pcm), frame.SampleRate, ""
}

// forwardEvents pumps session output into the outbound channel until the
// session ends, then cancels so writeLoop sends the close frame.
func (h *Handler) forwardEvents(ctx context.Context, cancel context.CancelFunc, session *voiceService.Session, outbound chan<- any) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-session.Events():
			if !ok {
				return
			}
			select {
			case outbound <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}

// writeLoop is the connection's sole writer.
func (h *Handler) writeLoop(ctx context.Context, conn *websocket.Conn, outbound <-chan any, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Drain anything already queued before closing.
			for {
				select {
				case payload := <-outbound:
					conn.SetWriteDeadline(time.Now().Add(writeTimeout))
					if err := conn.WriteJSON(payload); err != nil {
						return
					}
				default:
					conn.SetWriteDeadline(time.Now().Add(writeTimeout))
					conn.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"))
					return
				}
			}
		case payload := <-outbound:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(payload); err != nil {
				log.Printf("[voice] write failed: %v", err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) sendError(ctx context.Context, outbound chan<- any, message string) {
	select {
	case outbound <- errorFrame{Type: "error", Error: message}:
	case <-ctx.Done():
	}
}
