// Package voice runs live spoken conversations: it bridges browser
// microphone audio to the upstream realtime endpoint and schedules the
// synthesized replies for gapless playback.
package voice

import (
	"context"
	"fmt"
	"log"

	"github.com/kmondie/nebula-edge/backend/internal/model/identity"
	"github.com/kmondie/nebula-edge/backend/internal/service/gateway"
)

const defaultVoiceName = "Zephyr"

// Options configure the upstream live endpoint.
type Options struct {
	Endpoint string
	Model    string
}

// Service opens live sessions. Each browser connection gets its own
// upstream connection and scheduler.
type Service struct {
	opts     Options
	profiles identity.Store
}

func NewService(opts Options, profiles identity.Store) (*Service, error) {
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("live endpoint is required")
	}
	if opts.Model == "" {
		return nil, fmt.Errorf("live model is required")
	}
	return &Service{opts: opts, profiles: profiles}, nil
}

// Open dials upstream and starts a session speaking as the user's assigned
// voice. Verified inner-circle users get their profile voice; everyone else
// gets the default.
func (s *Service) Open(ctx context.Context, user gateway.UserContext) (*Session, error) {
	instruction := gateway.VoiceInstruction(user)

	voiceName := defaultVoiceName
	if profile, ok := s.profiles.FindByName(user.Name); ok && profile.VoiceName != "" {
		voiceName = profile.VoiceName
	}

	upstream, err := DialUpstream(ctx, s.opts.Endpoint, s.opts.Model, instruction, voiceName)
	if err != nil {
		return nil, fmt.Errorf("open live session: %w", err)
	}

	log.Printf("[voice] live session opened user=%s voice=%s", user.Name, voiceName)
	return newSession(upstream), nil
}
