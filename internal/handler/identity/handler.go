package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	identityModel "github.com/kmondie/nebula-edge/backend/internal/model/identity"
	"github.com/kmondie/nebula-edge/backend/internal/model/ui"
	"github.com/kmondie/nebula-edge/backend/internal/service/state"
	"github.com/kmondie/nebula-edge/backend/internal/service/verification"
	"github.com/kmondie/nebula-edge/backend/pkg/utils"
)

// Handler serves the profile, theme and sigil verification endpoints.
type Handler struct {
	stateSvc  *state.Container
	verifySvc *verification.Service
}

func New(stateSvc *state.Container, verifySvc *verification.Service) *Handler {
	return &Handler{stateSvc: stateSvc, verifySvc: verifySvc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/profile", h.handleGetProfile)
	r.Get("/theme", h.handleGetTheme)
	r.Put("/theme", h.handleSetTheme)
	r.Post("/verification", h.handleBeginVerification)
	r.Get("/verification", h.handlePendingVerifications)
	r.Post("/verification/{challengeID}/submit", h.handleSubmitPattern)
	r.Post("/verification/{challengeID}/decline", h.handleDeclineVerification)
}

type profileResponse struct {
	User  identityModel.User `json:"user"`
	Badge string             `json:"badge"`
}

func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, profileResponse{
		User:  h.stateSvc.User(),
		Badge: h.stateSvc.Badge(),
	})
}

func (h *Handler) handleGetTheme(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.stateSvc.EffectiveTheme())
}

func (h *Handler) handleSetTheme(w http.ResponseWriter, r *http.Request) {
	var theme ui.Theme
	if err := json.NewDecoder(r.Body).Decode(&theme); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if theme.Primary == "" {
		utils.RespondError(w, http.StatusBadRequest, "primary color is required")
		return
	}

	h.stateSvc.SetTheme(theme)
	utils.RespondJSON(w, http.StatusOK, h.stateSvc.EffectiveTheme())
}

// handleBeginVerification opens a browser-initiated challenge. Challenges
// opened by the model mid-turn arrive through the chat stream instead.
func (h *Handler) handleBeginVerification(w http.ResponseWriter, r *http.Request) {
	if h.verifySvc == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "verification unavailable")
		return
	}

	// The challenge outlives this request: it stays open until the user
	// submits a pattern or declines. Nobody waits on the future server-side,
	// so drain it in the background.
	id, future := h.verifySvc.Begin(context.Background())
	go func() { <-future }()

	utils.RespondJSON(w, http.StatusCreated, map[string]string{"challengeId": id})
}

func (h *Handler) handlePendingVerifications(w http.ResponseWriter, r *http.Request) {
	if h.verifySvc == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "verification unavailable")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string][]string{"pending": h.verifySvc.Pending()})
}

type submitPayload struct {
	Nodes []int `json:"nodes"`
}

type submitResponse struct {
	Verified bool                `json:"verified"`
	Name     string              `json:"name,omitempty"`
	Badge    string              `json:"badge,omitempty"`
	User     *identityModel.User `json:"user,omitempty"`
	Theme    *ui.Theme           `json:"theme,omitempty"`
}

// handleSubmitPattern evaluates a drawn pattern. A match upgrades the user
// record immediately; a mismatch leaves the challenge open for another try.
func (h *Handler) handleSubmitPattern(w http.ResponseWriter, r *http.Request) {
	if h.verifySvc == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "verification unavailable")
		return
	}

	var payload submitPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(payload.Nodes) == 0 {
		utils.RespondError(w, http.StatusBadRequest, "nodes are required")
		return
	}

	result, err := h.verifySvc.Submit(chi.URLParam(r, "challengeID"), payload.Nodes)
	if err != nil {
		utils.RespondError(w, statusForVerifyError(err), err.Error())
		return
	}

	if !result.Verified {
		utils.RespondJSON(w, http.StatusOK, submitResponse{Verified: false})
		return
	}

	user := h.stateSvc.ApplyVerifiedIdentity(result.Name)
	theme := h.stateSvc.EffectiveTheme()
	utils.RespondJSON(w, http.StatusOK, submitResponse{
		Verified: true,
		Name:     result.Name,
		Badge:    h.stateSvc.Badge(),
		User:     &user,
		Theme:    &theme,
	})
}

func (h *Handler) handleDeclineVerification(w http.ResponseWriter, r *http.Request) {
	if h.verifySvc == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "verification unavailable")
		return
	}

	if err := h.verifySvc.Decline(chi.URLParam(r, "challengeID")); err != nil {
		utils.RespondError(w, statusForVerifyError(err), err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "declined"})
}

func statusForVerifyError(err error) int {
	if errors.Is(err, verification.ErrChallengeNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
