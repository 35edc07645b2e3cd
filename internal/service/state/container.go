// Package state owns the user record and UI theme: explicit update operations
// with a post-update write-through to the vault, instead of ambient mutation
// scattered across handlers.
package state

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/kmondie/nebula-edge/backend/internal/model/identity"
	"github.com/kmondie/nebula-edge/backend/internal/model/ui"
	"github.com/kmondie/nebula-edge/backend/internal/store"
)

// Container holds the process-wide user and theme records. Mutations replace
// the record and persist the slot; a failed write is logged and the in-memory
// state stays authoritative until the next write.
type Container struct {
	mu       sync.RWMutex
	user     identity.User
	theme    ui.Theme
	profiles identity.Store
	vault    *store.KV
}

// NewContainer rehydrates user and theme from the vault, falling back to
// defaults for slots never written.
func NewContainer(vault *store.KV, profiles identity.Store) (*Container, error) {
	c := &Container{
		user:     identity.DefaultUser(),
		theme:    ui.Default(),
		profiles: profiles,
		vault:    vault,
	}

	if data, ok, err := vault.Get(store.SlotUser); err != nil {
		return nil, fmt.Errorf("load user slot: %w", err)
	} else if ok {
		if err := json.Unmarshal(data, &c.user); err != nil {
			return nil, fmt.Errorf("decode user slot: %w", err)
		}
	}

	if data, ok, err := vault.Get(store.SlotUI); err != nil {
		return nil, fmt.Errorf("load ui slot: %w", err)
	} else if ok {
		if err := json.Unmarshal(data, &c.theme); err != nil {
			return nil, fmt.Errorf("decode ui slot: %w", err)
		}
	}

	return c, nil
}

// User returns a copy of the current user record.
func (c *Container) User() identity.User {
	c.mu.RLock()
	defer c.mu.RUnlock()

	user := c.user
	user.GlobalMemory = append([]string(nil), c.user.GlobalMemory...)
	return user
}

// Theme returns the stored theme as-is, without identity overrides.
func (c *Container) Theme() ui.Theme {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.theme
}

// EffectiveTheme resolves the theme the shell should render: the stored theme,
// with the identity profile's override applied when no explicit secondary
// color has been set.
func (c *Container) EffectiveTheme() ui.Theme {
	c.mu.RLock()
	theme := c.theme
	name := c.user.Name
	c.mu.RUnlock()

	if theme.Secondary != "" {
		return theme
	}

	profile, ok := c.profiles.FindByName(name)
	if !ok || profile.ThemeOverride == nil {
		return theme
	}

	if profile.ThemeOverride.Primary != "" {
		theme.Primary = profile.ThemeOverride.Primary
	}
	if profile.ThemeOverride.Background != "" {
		theme.Background = profile.ThemeOverride.Background
	}
	return theme
}

// Badge classifies the current identity for the frontend HUD.
func (c *Container) Badge() string {
	c.mu.RLock()
	name := c.user.Name
	c.mu.RUnlock()

	if profile, ok := c.profiles.FindByName(name); ok {
		return profile.Badge
	}
	return identity.BadgeGuest
}

// ApplyVerifiedIdentity upgrades the user record after a successful sigil
// match, using the profile table rather than hard-coded name checks.
func (c *Container) ApplyVerifiedIdentity(name string) identity.User {
	c.mu.Lock()
	c.user.Name = name
	if profile, ok := c.profiles.FindByName(name); ok {
		c.user.Plan = profile.Plan
		c.user.IsVerifiedCreator = profile.Creator
	} else {
		c.user.Plan = identity.PlanPro
		c.user.IsVerifiedCreator = false
	}
	user := c.user
	c.mu.Unlock()

	c.persistUser()
	return user
}

// AppendMemoryFact appends to the user's long-term memory bank.
func (c *Container) AppendMemoryFact(fact string) {
	c.mu.Lock()
	c.user.GlobalMemory = append(c.user.GlobalMemory, fact)
	c.mu.Unlock()

	c.persistUser()
}

// SetTheme replaces the theme wholesale, as reprogram tool calls do.
func (c *Container) SetTheme(theme ui.Theme) {
	if !theme.LayoutStyle.Valid() {
		theme.LayoutStyle = ui.LayoutExpansiveEdge
	}

	c.mu.Lock()
	c.theme = theme
	c.mu.Unlock()

	c.persistTheme()
}

func (c *Container) persistUser() {
	c.mu.RLock()
	data, err := json.Marshal(c.user)
	c.mu.RUnlock()
	if err != nil {
		log.Printf("[state] encode user failed: %v", err)
		return
	}
	if err := c.vault.Put(store.SlotUser, data); err != nil {
		log.Printf("[state] persist user failed: %v", err)
	}
}

func (c *Container) persistTheme() {
	c.mu.RLock()
	data, err := json.Marshal(c.theme)
	c.mu.RUnlock()
	if err != nil {
		log.Printf("[state] encode theme failed: %v", err)
		return
	}
	if err := c.vault.Put(store.SlotUI, data); err != nil {
		log.Printf("[state] persist theme failed: %v", err)
	}
}
