package session

import "fmt"

// TransportError wraps a send or receive failure. It ends the session.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("session: transport %s: %v", e.Op, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// UnexpectedCommandError reports a command the current state does not
// accept. It is logged and the frame dropped.
type UnexpectedCommandError struct {
	Cmd   int32
	Name  string
	State State
}

func (e *UnexpectedCommandError) Error() string {
	return fmt.Sprintf("session: unexpected command %s (%d) in state %s", e.Name, e.Cmd, e.State)
}
