package chat

import (
	"strings"
	"sync"
)

// PhoneLocks serialises processing per phone number. An entry is dropped
// once its last holder or waiter unlocks.
type PhoneLocks struct {
	mutex sync.Mutex
	locks map[string]*phoneLock
}

type phoneLock struct {
	sync.Mutex
	refs int
}

func NewPhoneLocks() *PhoneLocks {
	return &PhoneLocks{locks: make(map[string]*phoneLock)}
}

func (l *PhoneLocks) Lock(phone string) {
	l.mutex.Lock()
	lock, exists := l.locks[phone]
	if !exists {
		lock = &phoneLock{}
		l.locks[phone] = lock
	}
	lock.refs++
	l.mutex.Unlock()

	lock.Lock()
}

func (l *PhoneLocks) Unlock(phone string) {
	l.mutex.Lock()
	lock, exists := l.locks[phone]
	if !exists {
		l.mutex.Unlock()
		return
	}
	lock.refs--
	if lock.refs == 0 {
		delete(l.locks, phone)
	}
	l.mutex.Unlock()

	lock.Unlock()
}

// IsTruthy interprets a collected yes/no answer.
func IsTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "yes", "true", "1", "כן":
		return true
	}
	return false
}
