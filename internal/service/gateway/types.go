package gateway

import (
	"context"

	"github.com/kmondie/nebula-edge/backend/internal/model/chat"
)

// Reply is the gateway's answer to one turn. Respond never fails past its
// boundary: vendor errors come back as user-visible Text.
type Reply struct {
	Text           string
	GeneratedImage string
	GeneratedVideo string
	Thinking       string
	GroundingURLs  []chat.GroundingURL
	Artifact       *chat.Artifact
}

// ThemeChange carries the structured arguments of a reprogram tool call.
type ThemeChange struct {
	LayoutStyle     string `json:"layout_style"`
	PrimaryColor    string `json:"primary_color"`
	SecondaryColor  string `json:"secondary_color,omitempty"`
	BackgroundColor string `json:"background_color,omitempty"`
}

// Callbacks are the host hooks the model can reach through tool calls.
// VerifyIdentity suspends until the user completes or declines the sigil
// challenge; the second return is false on decline.
type Callbacks struct {
	VerifyIdentity func(ctx context.Context) (string, bool)
	ApplyTheme     func(change ThemeChange)
	StoreMemory    func(fact string)
}

// UserContext personalizes the system instruction for the current user.
type UserContext struct {
	Name   string
	Memory []string
}
