package chat

import (
	"sync"
	"testing"
)

func (l *PhoneLocks) size() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return len(l.locks)
}

func TestPhoneLocksSerialise(t *testing.T) {
	locks := NewPhoneLocks()

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			locks.Lock(phone)
			defer locks.Unlock(phone)
			counter++
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("counter = %d, want 50", counter)
	}
	if n := locks.size(); n != 0 {
		t.Errorf("%d locks retained after release", n)
	}
}

func TestPhoneLocksEvict(t *testing.T) {
	locks := NewPhoneLocks()

	locks.Lock("111")
	locks.Lock("222")
	if n := locks.size(); n != 2 {
		t.Fatalf("size = %d, want 2", n)
	}
	locks.Unlock("111")
	if n := locks.size(); n != 1 {
		t.Errorf("size = %d, want 1", n)
	}
	locks.Unlock("222")
	locks.Unlock("333")
	if n := locks.size(); n != 0 {
		t.Errorf("size = %d, want 0", n)
	}

	locks.Lock("111")
	locks.Unlock("111")
	if n := locks.size(); n != 0 {
		t.Errorf("relock left %d entries", n)
	}
}

func TestIsTruthy(t *testing.T) {
	for value, want := range map[string]bool{
		"yes": true, " כן ": true, "TRUE": true, "1": true,
		"no": false, "": false, "לא": false,
	} {
		if got := IsTruthy(value); got != want {
			t.Errorf("IsTruthy(%q) = %v, want %v", value, got, want)
		}
	}
}
