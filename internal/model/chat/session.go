package chat

import "time"

// TitleLimit caps how many runes of the first user message become the title.
const TitleLimit = 30

// Session is an ordered conversation. Messages are strictly append-ordered;
// shadow sessions are visible only to identities with shadow access.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	IsShadow  bool      `json:"isShadow,omitempty"`
	Owner     string    `json:"owner,omitempty"`
}

// DeriveTitle truncates the first user message into a session title.
func DeriveTitle(content string) string {
	runes := []rune(content)
	if len(runes) > TitleLimit {
		runes = runes[:TitleLimit]
	}
	return string(runes)
}
