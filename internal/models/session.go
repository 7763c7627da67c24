package models

// SessionState is the session manager's state machine position
type SessionState string

const (
	StateUnauthenticated SessionState = "unauthenticated"
	StateAuthenticating  SessionState = "authenticating"
	StateAuthenticated   SessionState = "authenticated"
	StateRestoring       SessionState = "restoring"
)

// Session is a snapshot of the current session
type Session struct {
	Identity        *Profile     `json:"identity,omitempty"`
	IsAuthenticated bool         `json:"is_authenticated"`
	IsLoading       bool         `json:"is_loading"`
	State           SessionState `json:"state"`
}
