package redis

import (
	"errors"
	"time"

	"github.com/RichardKnop/redsync"
	"github.com/gomodule/redigo/redis"
)

var ErrorLockNotAcquired = errors.New("lock held by another process")

// Locker - Distributed locks shared by all the processes on the same redis.
type Locker struct {
	redsync *redsync.Redsync
	expiry  time.Duration
}

// NewLocker - Locks expire after the given duration even if never released.
func NewLocker(pool *redis.Pool, expiry time.Duration) *Locker {
	return &Locker{
		redsync: redsync.New([]redsync.Pool{pool}),
		expiry:  expiry,
	}
}

type Lock struct {
	mutex *redsync.Mutex
}

// TryLock - Single attempt, fails with ErrorLockNotAcquired when held elsewhere.
func (l *Locker) TryLock(key *Key) (*Lock, error) {
	if key == nil {
		return nil, ErrorInvalidKey
	}

	cKey, err := key.Key()
	if err != nil {
		return nil, err
	}

	mutex := l.redsync.NewMutex(cKey, redsync.SetExpiry(l.expiry), redsync.SetTries(1))
	if err := mutex.Lock(); err != nil {
		return nil, ErrorLockNotAcquired
	}

	return &Lock{mutex: mutex}, nil
}

// Release - Returns false if the lock had already expired.
func (lock *Lock) Release() bool {
	return lock.mutex.Unlock()
}
