package task

// State is a point in a task's lifecycle.
//
//	Created -> Queued -> Executing
//	Executing -> Completed | FailedLocal
//	FailedLocal -> Executing (retry) | ForwardedRemote
//	ForwardedRemote -> CompletedRemote | FailedRemote
//	Completed -> PendingSync -> Synced   (requireSync while offline)
type State string

const (
	StateCreated         State = "created"
	StateQueued          State = "queued"
	StateExecuting       State = "executing"
	StateCompleted       State = "completed"
	StateFailedLocal     State = "failed_local"
	StateForwardedRemote State = "forwarded_remote"
	StateCompletedRemote State = "completed_remote"
	StateFailedRemote    State = "failed_remote"
	StatePendingSync     State = "pending_sync"
	StateSynced          State = "synced"
)

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// IsTerminal returns true if no further transition can follow s.
// PendingSync is not terminal: it either becomes Synced or stays pending.
func (s State) IsTerminal() bool {
	switch s {
	case StateCompleted, StateCompletedRemote, StateFailedRemote, StateSynced:
		return true
	}
	return false
}

var transitions = map[State][]State{
	StateCreated:         {StateQueued, StateExecuting, StateForwardedRemote, StateCompleted},
	StateQueued:          {StateExecuting},
	StateExecuting:       {StateCompleted, StateFailedLocal},
	StateFailedLocal:     {StateExecuting, StateForwardedRemote},
	StateForwardedRemote: {StateCompletedRemote, StateFailedRemote},
	StateCompleted:       {StatePendingSync},
	StatePendingSync:     {StateSynced},
}

// CanTransition reports whether moving from s to next is a legal lifecycle step.
func (s State) CanTransition(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
