package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	chatModel "github.com/kmondie/nebula-edge/backend/internal/model/chat"
	"github.com/kmondie/nebula-edge/backend/internal/model/ui"
	"github.com/kmondie/nebula-edge/backend/internal/service/conversation"
	"github.com/kmondie/nebula-edge/backend/internal/service/gateway"
	"github.com/kmondie/nebula-edge/backend/internal/service/state"
	"github.com/kmondie/nebula-edge/backend/internal/service/verification"
	"github.com/kmondie/nebula-edge/backend/pkg/utils"
)

// PlaceholderText is what the assistant message shows while the relay round
// trip is in flight.
const PlaceholderText = "Accessing core relay..."

// FailureText replaces the placeholder when the round trip cannot complete.
const FailureText = "🚨 Neural Path Severed."

// Handler exposes the session collection and the send-message flow.
type Handler struct {
	convSvc    *conversation.Service
	gatewaySvc *gateway.Service
	stateSvc   *state.Container
	verifySvc  *verification.Service
}

func New(convSvc *conversation.Service, gatewaySvc *gateway.Service, stateSvc *state.Container, verifySvc *verification.Service) *Handler {
	return &Handler{
		convSvc:    convSvc,
		gatewaySvc: gatewaySvc,
		stateSvc:   stateSvc,
		verifySvc:  verifySvc,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/sessions", h.handleListSessions)
	r.Post("/sessions", h.handleCreateSession)
	r.Get("/sessions/current", h.handleCurrentSession)
	r.Get("/sessions/{sessionID}", h.handleGetSession)
	r.Post("/sessions/{sessionID}/select", h.handleSelectSession)
	r.Post("/sessions/{sessionID}/messages", h.handleSendMessage)
	r.Get("/sessions/{sessionID}/stream", h.handleSendMessageSSE)
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	viewer := h.stateSvc.User().Name
	utils.RespondJSON(w, http.StatusOK, h.convSvc.Sessions(viewer))
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session := h.convSvc.CreateSession()
	utils.RespondJSON(w, http.StatusCreated, session)
}

func (h *Handler) handleCurrentSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.convSvc.CurrentSession()
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.convSvc.GetSession(chi.URLParam(r, "sessionID"))
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}

func (h *Handler) handleSelectSession(w http.ResponseWriter, r *http.Request) {
	if err := h.convSvc.SelectSession(chi.URLParam(r, "sessionID")); err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	session, err := h.convSvc.CurrentSession()
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}

type sendPayload struct {
	Content     string                 `json:"content"`
	Attachments []chatModel.Attachment `json:"attachments,omitempty"`
	WantAudio   bool                   `json:"wantAudio,omitempty"`
}

// handleSendMessage runs one full turn: user message in, placeholder up,
// relay round trip, placeholder patched in place.
func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	if h.gatewaySvc == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "relay unavailable")
		return
	}

	sessionID := chi.URLParam(r, "sessionID")

	var payload sendPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Content == "" && len(payload.Attachments) == 0 {
		utils.RespondError(w, http.StatusBadRequest, "content is required")
		return
	}

	placeholder, history, err := h.beginTurn(sessionID, payload)
	if err != nil {
		utils.RespondError(w, statusForError(err), err.Error())
		return
	}

	patch := h.completeTurn(r.Context(), sessionID, payload, history)
	if err := h.convSvc.UpdateMessage(sessionID, placeholder.ID, patch); err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	session, err := h.convSvc.GetSession(sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}

// handleSendMessageSSE is the streaming variant: the placeholder lifecycle
// goes out as events so the frontend can render the in-flight state. The
// user text rides the "message" query parameter.
func (h *Handler) handleSendMessageSSE(w http.ResponseWriter, r *http.Request) {
	if h.gatewaySvc == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "relay unavailable")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	payload := sendPayload{
		Content:   r.URL.Query().Get("message"),
		WantAudio: r.URL.Query().Get("audio") == "1",
	}
	if payload.Content == "" {
		utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
		return
	}

	placeholder, history, err := h.beginTurn(sessionID, payload)
	if err != nil {
		utils.RespondError(w, statusForError(err), err.Error())
		return
	}

	utils.SetupSSEHeaders(w)
	utils.SendSSEEvent(w, flusher, "placeholder", placeholder)

	// All events funnel through one channel so this goroutine stays the only
	// writer. The round trip runs aside and feeds it: verification requests
	// as the model opens them, the patched session once the turn settles. The
	// browser answers challenges through the verification endpoints while
	// this request stays open.
	frames := make(chan sseFrame, 4)
	go func() {
		defer close(frames)

		patch := h.respond(r.Context(), payload, history, func(id string) {
			frames <- sseFrame{event: "verification_required", payload: map[string]string{"challengeId": id}}
		})
		if err := h.convSvc.UpdateMessage(sessionID, placeholder.ID, patch); err != nil {
			log.Printf("[chat] patch placeholder failed: %v", err)
			return
		}

		session, err := h.convSvc.GetSession(sessionID)
		if err != nil {
			return
		}
		frames <- sseFrame{event: "complete", payload: session}
	}()

	for frame := range frames {
		utils.SendSSEEvent(w, flusher, frame.event, frame.payload)
	}
}

type sseFrame struct {
	event   string
	payload any
}

// beginTurn appends the user message and the streaming placeholder, and
// returns the placeholder plus the history that preceded this turn.
func (h *Handler) beginTurn(sessionID string, payload sendPayload) (chatModel.Message, []chatModel.Message, error) {
	before, err := h.convSvc.GetSession(sessionID)
	if err != nil {
		return chatModel.Message{}, nil, err
	}
	history := before.Messages

	if _, err := h.convSvc.AppendMessage(sessionID, chatModel.Message{
		Role:        chatModel.RoleUser,
		Content:     payload.Content,
		Attachments: payload.Attachments,
	}); err != nil {
		return chatModel.Message{}, nil, err
	}

	placeholder, err := h.convSvc.AppendMessage(sessionID, chatModel.Message{
		Role:        chatModel.RoleAssistant,
		Content:     PlaceholderText,
		IsStreaming: true,
	})
	if err != nil {
		return chatModel.Message{}, nil, err
	}

	return placeholder, history, nil
}

func (h *Handler) completeTurn(ctx context.Context, sessionID string, payload sendPayload, history []chatModel.Message) chatModel.Patch {
	return h.respond(ctx, payload, history, nil)
}

// respond runs the relay round trip and folds the reply into a placeholder
// patch. onChallenge, when non-nil, is called with each verification
// challenge ID as the model opens it.
func (h *Handler) respond(ctx context.Context, payload sendPayload, history []chatModel.Message, onChallenge func(id string)) chatModel.Patch {
	user := h.stateSvc.User()
	callbacks := gateway.Callbacks{
		ApplyTheme:  h.applyTheme,
		StoreMemory: h.stateSvc.AppendMemoryFact,
	}
	if h.verifySvc != nil {
		callbacks.VerifyIdentity = func(ctx context.Context) (string, bool) {
			id, future := h.verifySvc.Begin(ctx)
			if onChallenge != nil {
				onChallenge(id)
			}
			result := <-future
			if result.Verified {
				h.stateSvc.ApplyVerifiedIdentity(result.Name)
			}
			return result.Name, result.Verified
		}
	}

	reply := h.gatewaySvc.Respond(ctx, payload.Content, history,
		payload.Attachments, callbacks, gateway.UserContext{
			Name:   user.Name,
			Memory: user.GlobalMemory,
		})
	if reply == nil {
		return failurePatch()
	}

	patch := chatModel.Patch{
		Content:       &reply.Text,
		IsStreaming:   boolPtr(false),
		GroundingURLs: reply.GroundingURLs,
		Artifact:      reply.Artifact,
	}
	if reply.Thinking != "" {
		patch.Thinking = &reply.Thinking
	}
	if reply.GeneratedImage != "" {
		patch.GeneratedImage = &reply.GeneratedImage
	}
	if reply.GeneratedVideo != "" {
		patch.GeneratedVideo = &reply.GeneratedVideo
	}

	if payload.WantAudio && reply.Text != "" {
		if pcm, err := h.gatewaySvc.Synthesize(ctx, reply.Text); err != nil {
			log.Printf("[chat] reply synthesis failed: %v", err)
		} else if pcm != "" {
			patch.AudioResponse = &pcm
		}
	}

	return patch
}

func (h *Handler) applyTheme(change gateway.ThemeChange) {
	h.stateSvc.SetTheme(ui.Theme{
		Primary:     change.PrimaryColor,
		Secondary:   change.SecondaryColor,
		Background:  change.BackgroundColor,
		LayoutStyle: ui.LayoutStyle(change.LayoutStyle),
	})
}

func failurePatch() chatModel.Patch {
	text := FailureText
	return chatModel.Patch{Content: &text, IsStreaming: boolPtr(false)}
}

func boolPtr(b bool) *bool { return &b }

// statusForError maps store errors onto HTTP codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, conversation.ErrSessionNotFound),
		errors.Is(err, conversation.ErrMessageNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
