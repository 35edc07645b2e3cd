package identity

// Plan is the subscription tier shown on the profile.
type Plan string

const (
	PlanStarter    Plan = "Starter"
	PlanPro        Plan = "Pro"
	PlanEnterprise Plan = "Enterprise"
)

// DefaultName is how unverified users are addressed.
const DefaultName = "Traveler"

// User is the single per-install user record. GlobalMemory is an append-only
// fact bank carried across sessions; insertion order is preserved.
type User struct {
	Name              string   `json:"name"`
	Email             string   `json:"email"`
	Plan              Plan     `json:"plan"`
	IsVerifiedCreator bool     `json:"isVerifiedCreator"`
	GlobalMemory      []string `json:"globalMemory"`
}

// DefaultUser returns the record created on first load.
func DefaultUser() User {
	return User{
		Name:         DefaultName,
		Email:        "guest@nebula.io",
		Plan:         PlanStarter,
		GlobalMemory: []string{},
	}
}
