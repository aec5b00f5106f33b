package session

import "fmt"

// State is a session lifecycle stage.
type State int32

const (
	Disconnected State = iota
	Handshaking
	SchemaLoaded
	RevisionRequested
	SeedsInFlight
	SeedsComplete
	FetchInFlight
	Done
	Failed
)

var stateNames = [...]string{
	"DISCONNECTED",
	"HANDSHAKING",
	"SCHEMA_LOADED",
	"REVISION_REQUESTED",
	"SEEDS_IN_FLIGHT",
	"SEEDS_COMPLETE",
	"FETCH_IN_FLIGHT",
	"DONE",
	"FAILED",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool { return s == Done || s == Failed }
