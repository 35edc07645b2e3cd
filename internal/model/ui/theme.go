package ui

// LayoutStyle is the structural layout of the frontend shell.
type LayoutStyle string

const (
	LayoutClassicCentered LayoutStyle = "classic-centered"
	LayoutExpansiveEdge   LayoutStyle = "expansive-edge"
	LayoutFloatingGlass   LayoutStyle = "floating-glass"
	LayoutTerminalMinimal LayoutStyle = "terminal-minimal"
)

// Valid reports whether the layout is one of the declared variants.
func (l LayoutStyle) Valid() bool {
	switch l {
	case LayoutClassicCentered, LayoutExpansiveEdge, LayoutFloatingGlass, LayoutTerminalMinimal:
		return true
	}
	return false
}

// Theme is the UI configuration mutated by reprogram tool calls. Primary is
// always present; Secondary and Background may be empty, in which case
// identity-profile overrides apply.
type Theme struct {
	Primary     string      `json:"primary"`
	Secondary   string      `json:"secondary,omitempty"`
	Background  string      `json:"background,omitempty"`
	LayoutStyle LayoutStyle `json:"layoutStyle"`
}

// Default returns the theme used on first load.
func Default() Theme {
	return Theme{
		Primary:     "#22d3ee",
		LayoutStyle: LayoutExpansiveEdge,
	}
}
