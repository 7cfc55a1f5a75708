package taskstate

import (
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// DefaultStripes — число mutex'ов в таблице блокировок.
const DefaultStripes = 64

// stripedLock — таблица mutex'ов, индексируемая хешем ID task'а.
// Один task всегда попадает в один и тот же mutex.
type stripedLock struct {
	stripes []sync.Mutex
}

func newStripedLock(n int) *stripedLock {
	if n <= 0 {
		n = DefaultStripes
	}
	return &stripedLock{stripes: make([]sync.Mutex, n)}
}

func (l *stripedLock) index(id uuid.UUID) int {
	return int(xxhash.Sum64(id[:]) % uint64(len(l.stripes)))
}

// lock захватывает mutex task'а и возвращает функцию освобождения.
func (l *stripedLock) lock(id uuid.UUID) func() {
	m := &l.stripes[l.index(id)]
	m.Lock()
	return m.Unlock
}
