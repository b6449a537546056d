package threads

// Mutex guards a value of type T with a Lock.
type Mutex[T any] struct {
	lock  Lock
	value T
}

// NewMutex returns an unlocked mutex holding v.
func NewMutex[T any](s *Scheduler, v T) *Mutex[T] {
	m := &Mutex[T]{value: v}
	m.lock.init(s)
	return m
}

// Lock acquires the mutex and returns the guarded value. The pointer is valid
// until Unlock.
func (m *Mutex[T]) Lock() (*T, error) {
	if err := m.lock.Acquire(); err != nil {
		return nil, err
	}
	return &m.value, nil
}

// TryLock is Lock without blocking.
func (m *Mutex[T]) TryLock() (*T, bool) {
	if !m.lock.TryAcquire() {
		return nil, false
	}
	return &m.value, true
}

func (m *Mutex[T]) Unlock() {
	m.lock.Release()
}

// Do runs fn with the mutex held.
func (m *Mutex[T]) Do(fn func(v *T)) error {
	v, err := m.Lock()
	if err != nil {
		return err
	}
	defer m.Unlock()
	fn(v)
	return nil
}
