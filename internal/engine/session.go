package engine

import (
	"fmt"
	"strings"

	"polytrader/internal/clob"
)

// Session is the explicit trading identity handed to the scheduler and the
// execution gateway. Nothing here is process-global: presence is checked as
// a precondition before any execution path.
type Session struct {
	Owner  string
	Client clob.Client
}

func NewSession(owner string, client clob.Client) *Session {
	return &Session{Owner: strings.TrimSpace(owner), Client: client}
}

// Ready reports whether the session can commit capital.
func (s *Session) Ready() error {
	if s == nil || s.Client == nil {
		return fmt.Errorf("no exchange client in session")
	}
	if s.Owner == "" {
		return fmt.Errorf("no owner address in session")
	}
	return nil
}
