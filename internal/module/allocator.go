package module

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync"
)

// maxAllocAttempts bounds the retry loop below; collisions against a
// 32-bit space are vanishingly unlikely, so this is a safety net against
// a broken RNG, not an expected code path.
const maxAllocAttempts = 100

// numberAllocator hands out unique, non-zero uint32 module numbers. Zero
// is reserved to mean "unassigned", mirroring the donor's discriminator
// allocator.
type numberAllocator struct {
	mu   sync.Mutex
	used map[uint32]struct{}
}

func newNumberAllocator() *numberAllocator {
	return &numberAllocator{used: make(map[uint32]struct{})}
}

func (a *numberAllocator) allocate() (uint32, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for attempt := 0; attempt < maxAllocAttempts; attempt++ {
		var buf [4]byte
		if _, err := rand.Read(buf[:]); err != nil {
			return 0, fmt.Errorf("module: generate number: %w", err)
		}
		n := binary.BigEndian.Uint32(buf[:])
		if n == 0 {
			continue
		}
		if _, taken := a.used[n]; taken {
			continue
		}
		a.used[n] = struct{}{}
		return n, nil
	}
	return 0, fmt.Errorf("module: exhausted %d attempts allocating a module number", maxAllocAttempts)
}

func (a *numberAllocator) release(n uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.used, n)
}
