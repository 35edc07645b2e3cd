package gateway

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/kmondie/nebula-edge/backend/internal/model/chat"
)

// Fences larger than this are promoted even without a bracketed title.
const artifactMinLength = 100

// genericArtifactTitle labels untitled promoted fences.
const genericArtifactTitle = "Neural Component"

var (
	// ```lang[Title]\n...``` — an explicitly titled block, promoted always.
	titledFence = regexp.MustCompile("```" + `(\w+)\s*\[(.*?)\]\s*([\s\S]*?)` + "```")
	// ```lang\n...``` — promoted only when the body is long enough.
	plainFence = regexp.MustCompile("```" + `(\w+)\s*([\s\S]*?)` + "```")
	// Every fenced region, for stripping from display text.
	anyFence = regexp.MustCompile("```" + `[\s\S]*?` + "```")
)

// extractArtifact promotes at most one fenced block out of the model-authored
// reply. The returned text has all fences stripped, replaced by an inline
// placeholder only when something was promoted.
func extractArtifact(text string) (*chat.Artifact, string) {
	var artifact *chat.Artifact

	if m := titledFence.FindStringSubmatch(text); m != nil {
		artifact = &chat.Artifact{
			ID:       uuid.NewString(),
			Language: m[1],
			Title:    m[2],
			Content:  strings.TrimSpace(m[3]),
			Type:     "code",
		}
	} else if m := plainFence.FindStringSubmatch(text); m != nil && len(m[2]) > artifactMinLength {
		artifact = &chat.Artifact{
			ID:       uuid.NewString(),
			Language: m[1],
			Title:    genericArtifactTitle,
			Content:  strings.TrimSpace(m[2]),
			Type:     "code",
		}
	}

	replacement := ""
	if artifact != nil {
		replacement = "\n[Neural Projection: " + artifact.Title + "]\n"
	}
	cleaned := strings.TrimSpace(anyFence.ReplaceAllString(text, replacement))

	return artifact, cleaned
}
