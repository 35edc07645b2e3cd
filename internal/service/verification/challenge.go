package verification

import (
	"strconv"
	"strings"
)

// GridSize is the node count of the 3x3 sigil grid.
const GridSize = 9

// Phase of one pattern-entry interaction.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseDrawing   Phase = "drawing"
	PhaseMatched   Phase = "matched"
	PhaseUnmatched Phase = "unmatched"
)

// Challenge is the pattern-entry state machine. Press starts drawing, entering
// an unvisited node appends it, release evaluates. No backtracking, no
// repeated nodes.
type Challenge struct {
	phase   Phase
	nodes   []int
	resolve func(pattern string) (string, bool)
}

// NewChallenge builds an idle challenge evaluating against the given resolver.
func NewChallenge(resolve func(pattern string) (string, bool)) *Challenge {
	return &Challenge{phase: PhaseIdle, resolve: resolve}
}

// Phase reports the current phase.
func (c *Challenge) Phase() Phase {
	return c.phase
}

// Nodes returns the in-progress pattern.
func (c *Challenge) Nodes() []int {
	return append([]int(nil), c.nodes...)
}

// Start begins drawing with the pressed node as the sole pattern element.
func (c *Challenge) Start(node int) {
	if node < 0 || node >= GridSize {
		return
	}
	c.phase = PhaseDrawing
	c.nodes = []int{node}
}

// Enter appends an unvisited node while drawing. Re-entering a visited node is
// a no-op.
func (c *Challenge) Enter(node int) {
	if c.phase != PhaseDrawing || node < 0 || node >= GridSize {
		return
	}
	for _, seen := range c.nodes {
		if seen == node {
			return
		}
	}
	c.nodes = append(c.nodes, node)
}

// Release ends drawing and evaluates the pattern. On a match the identity name
// is returned and the phase becomes matched; on a mismatch the pattern clears
// and the phase becomes unmatched.
func (c *Challenge) Release() (string, bool) {
	if c.phase != PhaseDrawing {
		return "", false
	}

	name, ok := c.resolve(PatternKey(c.nodes))
	if ok {
		c.phase = PhaseMatched
		return name, true
	}

	c.phase = PhaseUnmatched
	c.nodes = nil
	return "", false
}

// Reset returns an unmatched challenge to idle for another attempt.
func (c *Challenge) Reset() {
	c.phase = PhaseIdle
	c.nodes = nil
}

// PatternKey joins node indices into the registry comparison key.
func PatternKey(nodes []int) string {
	parts := make([]string, len(nodes))
	for i, node := range nodes {
		parts[i] = strconv.Itoa(node)
	}
	return strings.Join(parts, ",")
}
