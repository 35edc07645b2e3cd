package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	chatHandler "github.com/kmondie/nebula-edge/backend/internal/handler/chat"
	identityHandler "github.com/kmondie/nebula-edge/backend/internal/handler/identity"
	voiceHandler "github.com/kmondie/nebula-edge/backend/internal/handler/voice"
	middlewarePkg "github.com/kmondie/nebula-edge/backend/internal/middleware"
	"github.com/kmondie/nebula-edge/backend/internal/service/conversation"
	"github.com/kmondie/nebula-edge/backend/internal/service/gateway"
	"github.com/kmondie/nebula-edge/backend/internal/service/state"
	"github.com/kmondie/nebula-edge/backend/internal/service/verification"
	voiceService "github.com/kmondie/nebula-edge/backend/internal/service/voice"
	"github.com/kmondie/nebula-edge/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services. gatewaySvc and voiceSvc may
// be nil when vendor credentials are absent; their routes answer 503.
func NewRouter(stateSvc *state.Container, convSvc *conversation.Service, gatewaySvc *gateway.Service, verifySvc *verification.Service, voiceSvc *voiceService.Service) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Route("/api", func(api chi.Router) {
		chatHandler.New(convSvc, gatewaySvc, stateSvc, verifySvc).RegisterRoutes(api)
		identityHandler.New(stateSvc, verifySvc).RegisterRoutes(api)

		if voiceSvc != nil {
			voiceHandler.New(voiceSvc, stateSvc).RegisterRoutes(api)
		} else {
			api.Get("/voice/ws", func(w http.ResponseWriter, r *http.Request) {
				utils.RespondError(w, http.StatusServiceUnavailable, "live voice unavailable")
			})
		}
	})

	return r
}
