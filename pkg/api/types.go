package api

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ParseRole matches s against the known roles. Matching is exact and
// case-sensitive: "User" is not a role.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleUser, RoleAssistant:
		return Role(s), true
	}
	return "", false
}

// RawTurn is a conversation turn as supplied by a caller. Neither field is
// validated; content may be empty or whitespace.
type RawTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Turn is an admitted conversation turn. Content is trimmed and non-empty.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Usage reports token consumption for one completion, summed over every
// backend round-trip it needed.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Add accumulates u2 into u.
func (u *Usage) Add(u2 Usage) {
	u.InputTokens += u2.InputTokens
	u.OutputTokens += u2.OutputTokens
	u.TotalTokens += u2.TotalTokens
}

// ChatRequest is the body of POST /v1/chat.
//
// Capabilities narrows the set of capability modules the backend may call.
// An empty list exposes every registered module. AllowCapabilities and
// ReturnScope override the server's default invocation policy when set.
type ChatRequest struct {
	Messages          []RawTurn `json:"messages"`
	Capabilities      []string  `json:"capabilities,omitempty"`
	AllowCapabilities *bool     `json:"allow_capabilities,omitempty"`
	ReturnScope       string    `json:"return_scope,omitempty"`
}

// ChatResponse is the body returned for a successful completion.
type ChatResponse struct {
	ID         string `json:"id"`
	Object     string `json:"object"`
	Model      string `json:"model"`
	Messages   []Turn `json:"messages"`
	Usage      *Usage `json:"usage,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// CapabilityInfo describes one registered capability module.
type CapabilityInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Functions   []string `json:"functions"`
}

// CapabilityList is the body of GET /v1/capabilities.
type CapabilityList struct {
	Object string           `json:"object"`
	Data   []CapabilityInfo `json:"data"`
}
