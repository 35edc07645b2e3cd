package identity

import "github.com/kmondie/nebula-edge/backend/internal/model/ui"

// Profile captures everything keyed off a verified identity: plan upgrade,
// creator status, sigil pattern, theme fallback, shadow-session visibility and
// the voice used in live sessions. Keeping this in one table avoids name
// comparisons scattered across components.
type Profile struct {
	Name          string
	Badge         string
	Plan          Plan
	Creator       bool
	Sigil         string
	ShadowAccess  bool
	VoiceName     string
	ThemeOverride *ui.Theme
}

// BadgeGuest is the badge for anyone outside the registry.
const BadgeGuest = "GUEST"

// Store exposes profile lookup for verification and theming.
type Store interface {
	List() []Profile
	FindByName(name string) (Profile, bool)
	FindBySigil(pattern string) (Profile, bool)
}

// MemoryStore implements Store with an in-memory slice.
type MemoryStore struct {
	items []Profile
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied profiles.
func NewMemoryStore(items []Profile) *MemoryStore {
	return &MemoryStore{items: append([]Profile(nil), items...)}
}

// List returns the registered profiles.
func (s *MemoryStore) List() []Profile {
	return append([]Profile(nil), s.items...)
}

// FindByName looks up a profile by verified identity name.
func (s *MemoryStore) FindByName(name string) (Profile, bool) {
	for _, item := range s.items {
		if item.Name == name {
			return item, true
		}
	}
	return Profile{}, false
}

// FindBySigil resolves a drawn pattern key ("0,3,6,...") to its identity.
// Exact match only: no rotation, reflection or fuzzy matching.
func (s *MemoryStore) FindBySigil(pattern string) (Profile, bool) {
	for _, item := range s.items {
		if item.Sigil != "" && item.Sigil == pattern {
			return item, true
		}
	}
	return Profile{}, false
}

// Seed provides the inner-circle registry.
func Seed() []Profile {
	return []Profile{
		{
			Name:         "Kingston Mondie",
			Badge:        "ARCHITECT-S",
			Plan:         PlanEnterprise,
			Creator:      true,
			Sigil:        "0,3,6,2,4,8", // the "K" shape
			ShadowAccess: true,
			VoiceName:    "Zephyr",
			ThemeOverride: &ui.Theme{
				Primary:    "#facc15",
				Background: "#0a001a",
			},
		},
		{
			Name:      "Vicky",
			Badge:     "SYNAPSE-V",
			Plan:      PlanPro,
			Sigil:     "0,3,7,5,2", // the "V" shape
			VoiceName: "Kore",
			ThemeOverride: &ui.Theme{
				Primary:    "#ff69b4",
				Background: "#1a001a",
			},
		},
		{
			Name:      "John",
			Badge:     "SYNAPSE-S",
			Plan:      PlanPro,
			Sigil:     "0,1,2,5,8", // top and right bar
			VoiceName: "Zephyr",
		},
		{
			Name:      "Jacob",
			Badge:     "SYNAPSE-S",
			Plan:      PlanPro,
			Sigil:     "0,1,2,5,4,3,6,7,8", // the "S" spiral
			VoiceName: "Zephyr",
		},
		{
			Name:      "Duane",
			Badge:     "SYNAPSE-S",
			Plan:      PlanPro,
			Sigil:     "0,3,6,7,4,1", // the "D" loop
			VoiceName: "Zephyr",
		},
		{
			Name:      "Abryan",
			Badge:     "SYNAPSE-S",
			Plan:      PlanPro,
			Sigil:     "6,3,1,5,8", // the "A" peak
			VoiceName: "Zephyr",
		},
	}
}
