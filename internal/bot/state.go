package bot

import "sync"

const (
	stateDefault          = ""
	stateAwaitingWithdraw = "awaiting_withdraw"
)

type stateStore struct {
	mu     sync.Mutex
	states map[int64]string
}

func newStateStore() *stateStore {
	return &stateStore{states: make(map[int64]string)}
}

func (s *stateStore) set(userID int64, state string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state == stateDefault {
		delete(s.states, userID) // Удаляем состояние, если оно по-умолчанию
		return
	}
	s.states[userID] = state
}

func (s *stateStore) get(userID int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[userID]
}
