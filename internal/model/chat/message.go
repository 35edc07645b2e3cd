package chat

import "time"

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// AttachmentType classifies what the user attached to a turn.
type AttachmentType string

const (
	AttachmentImage AttachmentType = "image"
	AttachmentVideo AttachmentType = "video"
	AttachmentFile  AttachmentType = "file"
)

// Attachment carries user-supplied input alongside a turn. Images and videos
// travel as base64 data URIs, everything else as raw text. Attachments live on
// the owning message only and are never persisted separately.
type Attachment struct {
	Type     AttachmentType `json:"type"`
	Data     string         `json:"data"`
	Name     string         `json:"name,omitempty"`
	MimeType string         `json:"mimeType"`
}

// Artifact is a code or markup block promoted out of an assistant reply so the
// frontend can open it in a side panel. Edits there stay local to the panel.
type Artifact struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Language string `json:"language"`
	Content  string `json:"content"`
	Type     string `json:"type"`
}

// GroundingURL is a web citation returned by the reasoning service.
type GroundingURL struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// Message is one turn in a session. The assistant placeholder appended right
// after a user turn is the only message ever mutated after insertion.
type Message struct {
	ID             string         `json:"id"`
	Role           Role           `json:"role"`
	Content        string         `json:"content"`
	Attachments    []Attachment   `json:"attachments,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
	IsStreaming    bool           `json:"isStreaming,omitempty"`
	Thinking       string         `json:"thinking,omitempty"`
	GeneratedImage string         `json:"generatedImage,omitempty"`
	GeneratedVideo string         `json:"generatedVideo,omitempty"`
	AudioResponse  string         `json:"audioResponse,omitempty"`
	GroundingURLs  []GroundingURL `json:"groundingUrls,omitempty"`
	Artifact       *Artifact      `json:"artifact,omitempty"`
}

// Patch is a partial update applied to exactly one message, used when the
// in-flight assistant placeholder is filled in (or replaced by error copy).
type Patch struct {
	Content        *string        `json:"content,omitempty"`
	IsStreaming    *bool          `json:"isStreaming,omitempty"`
	Thinking       *string        `json:"thinking,omitempty"`
	GeneratedImage *string        `json:"generatedImage,omitempty"`
	GeneratedVideo *string        `json:"generatedVideo,omitempty"`
	AudioResponse  *string        `json:"audioResponse,omitempty"`
	GroundingURLs  []GroundingURL `json:"groundingUrls,omitempty"`
	Artifact       *Artifact      `json:"artifact,omitempty"`
}

// Apply copies the set fields of the patch onto the message.
func (p Patch) Apply(m *Message) {
	if p.Content != nil {
		m.Content = *p.Content
	}
	if p.IsStreaming != nil {
		m.IsStreaming = *p.IsStreaming
	}
	if p.Thinking != nil {
		m.Thinking = *p.Thinking
	}
	if p.GeneratedImage != nil {
		m.GeneratedImage = *p.GeneratedImage
	}
	if p.GeneratedVideo != nil {
		m.GeneratedVideo = *p.GeneratedVideo
	}
	if p.AudioResponse != nil {
		m.AudioResponse = *p.AudioResponse
	}
	if p.GroundingURLs != nil {
		m.GroundingURLs = p.GroundingURLs
	}
	if p.Artifact != nil {
		m.Artifact = p.Artifact
	}
}
