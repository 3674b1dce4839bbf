package narrative

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// ChatMessage is one entry of the role-play transcript.
type ChatMessage struct {
	Role Role
	Text string
}
