// File: internal/session/state.go
package session

import (
	"fmt"
	"sync"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

// validTransitions is the session lifecycle. Completed and Failed are
// terminal; Failed is reachable from anywhere through Fail, which
// bypasses this table.
var validTransitions = map[schemas.SessionState][]schemas.SessionState{
	schemas.StateIdle:           {schemas.StateLaunched},
	schemas.StateLaunched:       {schemas.StateNavigated},
	schemas.StateNavigated:      {schemas.StateAuthenticating, schemas.StateAuthenticated},
	schemas.StateAuthenticating: {schemas.StateAuthenticated},
	schemas.StateAuthenticated:  {schemas.StateInteracting},
	schemas.StateInteracting:    {schemas.StateVerifying},
	schemas.StateVerifying:      {schemas.StateCompleted, schemas.StateInteracting},
	schemas.StateCompleted:      {},
	schemas.StateFailed:         {},
}

// stateMachine guards lifecycle transitions. Safe for concurrent use.
type stateMachine struct {
	mu    sync.RWMutex
	state schemas.SessionState
	// failReason remembers why the session failed.
	failReason schemas.ReasonCode
}

func newStateMachine() *stateMachine {
	return &stateMachine{state: schemas.StateIdle}
}

func (m *stateMachine) current() schemas.SessionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *stateMachine) reason() schemas.ReasonCode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.failReason
}

// to advances the machine or reports an invalid transition.
func (m *stateMachine) to(next schemas.SessionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, allowed := range validTransitions[m.state] {
		if allowed == next {
			m.state = next
			return nil
		}
	}
	return fmt.Errorf("invalid session transition %s -> %s", m.state, next)
}

// fail moves to Failed from any non-terminal state. Failing a
// terminal session is a no-op so teardown paths can call it blindly.
func (m *stateMachine) fail(reason schemas.ReasonCode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == schemas.StateCompleted || m.state == schemas.StateFailed {
		return
	}
	m.state = schemas.StateFailed
	m.failReason = reason
}
