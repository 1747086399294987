package service

import (
	"hash/fnv"
	"sync"

	"github.com/google/uuid"
)

const lockStripes = 256

// userLocks serializes the atomic unit per user with striped mutexes:
// actions for the same user always share a stripe, actions for different
// users almost always run in parallel. The database-side version check and
// unique indexes stay in place as the second line of defense.
type userLocks struct {
	stripes [lockStripes]sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{}
}

// Lock acquires the stripe for a user and returns its release func.
func (l *userLocks) Lock(userID uuid.UUID) func() {
	h := fnv.New32a()
	h.Write(userID[:])
	stripe := &l.stripes[h.Sum32()%lockStripes]
	stripe.Lock()
	return stripe.Unlock
}
