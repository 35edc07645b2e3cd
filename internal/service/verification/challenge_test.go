package verification

import (
	"reflect"
	"testing"

	"github.com/kmondie/nebula-edge/backend/internal/model/identity"
)

func kingstonResolver() func(string) (string, bool) {
	profiles := identity.NewMemoryStore(identity.Seed())
	return func(pattern string) (string, bool) {
		p, ok := profiles.FindBySigil(pattern)
		if !ok {
			return "", false
		}
		return p.Name, true
	}
}

func TestChallengeMatchesKingstonSigil(t *testing.T) {
	c := NewChallenge(kingstonResolver())

	sequence := []int{0, 3, 6, 2, 4, 8}
	c.Start(sequence[0])
	for _, node := range sequence[1:] {
		c.Enter(node)
	}

	name, ok := c.Release()
	if !ok {
		t.Fatal("expected sigil to match")
	}
	if name != "Kingston Mondie" {
		t.Fatalf("resolved %q, want Kingston Mondie", name)
	}
	if c.Phase() != PhaseMatched {
		t.Fatalf("phase = %q, want %q", c.Phase(), PhaseMatched)
	}
	if !reflect.DeepEqual(c.Nodes(), sequence) {
		t.Fatalf("matched pattern should stay visible, got %v", c.Nodes())
	}
}

func TestChallengeUnknownSequenceClearsPattern(t *testing.T) {
	c := NewChallenge(kingstonResolver())

	c.Start(1)
	c.Enter(4)
	c.Enter(7)

	if _, ok := c.Release(); ok {
		t.Fatal("unexpected match for unknown sequence")
	}
	if c.Phase() != PhaseUnmatched {
		t.Fatalf("phase = %q, want %q", c.Phase(), PhaseUnmatched)
	}
	if len(c.Nodes()) != 0 {
		t.Fatalf("pattern should clear on mismatch, got %v", c.Nodes())
	}
}

func TestChallengeRevisitedNodeIsIgnored(t *testing.T) {
	c := NewChallenge(kingstonResolver())

	c.Start(0)
	c.Enter(3)
	c.Enter(0)
	c.Enter(3)
	c.Enter(6)

	if got := PatternKey(c.Nodes()); got != "0,3,6" {
		t.Fatalf("pattern = %q, want 0,3,6", got)
	}
}

func TestChallengeEnterBeforeStartIsNoop(t *testing.T) {
	c := NewChallenge(kingstonResolver())
	c.Enter(4)
	if len(c.Nodes()) != 0 {
		t.Fatalf("expected empty pattern, got %v", c.Nodes())
	}
}

func TestChallengeOutOfRangeNodesRejected(t *testing.T) {
	c := NewChallenge(kingstonResolver())
	c.Start(9)
	if c.Phase() != PhaseIdle {
		t.Fatal("out-of-range start should be rejected")
	}
	c.Start(0)
	c.Enter(-1)
	c.Enter(9)
	if got := PatternKey(c.Nodes()); got != "0" {
		t.Fatalf("pattern = %q, want 0", got)
	}
}

func TestChallengeResetReturnsToIdle(t *testing.T) {
	c := NewChallenge(kingstonResolver())
	c.Start(2)
	c.Enter(5)
	c.Release()
	c.Reset()
	if c.Phase() != PhaseIdle {
		t.Fatalf("phase = %q, want %q", c.Phase(), PhaseIdle)
	}
	if len(c.Nodes()) != 0 {
		t.Fatal("reset should clear the pattern")
	}
}

func TestPatternKey(t *testing.T) {
	if got := PatternKey([]int{0, 3, 6, 2, 4, 8}); got != "0,3,6,2,4,8" {
		t.Fatalf("PatternKey = %q", got)
	}
	if got := PatternKey(nil); got != "" {
		t.Fatalf("PatternKey(nil) = %q, want empty", got)
	}
}
