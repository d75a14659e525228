package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"propie/pkg/platform/sentinel"
	"propie/pkg/platform/tx"
)

// LockerSuite runs the same behavioural checks against every Locker.
type LockerSuite struct {
	suite.Suite
	newLocker func() Locker
}

func TestLocalLockerSuite(t *testing.T) {
	suite.Run(t, &LockerSuite{newLocker: func() Locker { return NewLocalLocker() }})
}

func TestRedisLockerSuite(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredislib.NewClient(&goredislib.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	suite.Run(t, &LockerSuite{newLocker: func() Locker {
		l, err := NewRedisLocker(client, WithRedisOptions(RedisOptions{
			Expiry:      5 * time.Second,
			Tries:       200,
			RetryDelay:  5 * time.Millisecond,
			DriftFactor: 0.01,
		}))
		require.NoError(t, err)
		return l
	}})
}

func (s *LockerSuite) TestPropagatesFnError() {
	locker := s.newLocker()
	want := errors.New("transition failed")

	err := locker.WithLock(context.Background(), Key("reservation", "r-1"), func(context.Context) error {
		return want
	})
	s.ErrorIs(err, want)
}

func (s *LockerSuite) TestSerializesSameKey() {
	locker := s.newLocker()
	var current, maxSeen int32
	var wg sync.WaitGroup

	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locker.WithLock(context.Background(), Key("claim", "c-1"), func(context.Context) error {
				n := atomic.AddInt32(&current, 1)
				for {
					m := atomic.LoadInt32(&maxSeen)
					if n <= m || atomic.CompareAndSwapInt32(&maxSeen, m, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				atomic.AddInt32(&current, -1)
				return nil
			})
			s.NoError(err)
		}()
	}
	wg.Wait()
	s.Equal(int32(1), maxSeen, "at most one holder per key")
}

func (s *LockerSuite) TestNestedDifferentKeys() {
	locker := s.newLocker()
	ran := false

	err := locker.WithLock(context.Background(), Key("claim", "c-1"), func(ctx context.Context) error {
		return locker.WithLock(ctx, Key("reservation", "r-1"), func(context.Context) error {
			ran = true
			return nil
		})
	})
	s.Require().NoError(err)
	s.True(ran)
}

func (s *LockerSuite) TestAcquireRelease() {
	locker := s.newLocker()
	key := Key("reservation", "r-acquire")

	release, err := locker.Acquire(context.Background(), key)
	s.Require().NoError(err)

	s.assertHeld(locker, key)

	release()
	release()

	again, err := locker.Acquire(context.Background(), key)
	s.Require().NoError(err)
	again()
}

func (s *LockerSuite) TestUnitLockHeldUntilUnitEnds() {
	locker := s.newLocker()
	runner := tx.NewMemoryRunner()
	key := Key("reservation", "r-unit")

	err := runner.RunInTx(context.Background(), func(ctx context.Context) error {
		ran := false
		s.Require().NoError(WithUnitLock(ctx, locker, key, func(context.Context) error {
			ran = true
			return nil
		}))
		s.True(ran)
		s.assertHeld(locker, key)
		return errors.New("unit fails after the nested write")
	})
	s.Require().Error(err)

	release, err := locker.Acquire(context.Background(), key)
	s.Require().NoError(err, "lock is released once the unit has ended")
	release()
}

func (s *LockerSuite) TestUnitLockOutsideUnit() {
	locker := s.newLocker()
	key := Key("claim", "c-no-unit")

	s.Require().NoError(WithUnitLock(context.Background(), locker, key, func(context.Context) error { return nil }))

	release, err := locker.Acquire(context.Background(), key)
	s.Require().NoError(err)
	release()
}

// assertHeld checks that key cannot be taken by anyone else right now.
func (s *LockerSuite) assertHeld(locker Locker, key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	release, err := locker.Acquire(ctx, key)
	if err == nil {
		release()
	}
	s.ErrorIs(err, sentinel.ErrLockNotAcquired)
}

func (s *LockerSuite) TestRejectsEmptyKey() {
	err := s.newLocker().WithLock(context.Background(), "", func(context.Context) error { return nil })
	s.Error(err)
}

func TestLocalLocker_ContextCancelledWhileWaiting(t *testing.T) {
	locker := NewLocalLocker()
	held := make(chan struct{})
	release := make(chan struct{})

	go func() {
		_ = locker.WithLock(context.Background(), "k", func(context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := locker.WithLock(ctx, "k", func(context.Context) error { return nil })
	close(release)

	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel.ErrLockNotAcquired)
}

func TestLocalLocker_ReleasesSlots(t *testing.T) {
	locker := NewLocalLocker()
	require.NoError(t, locker.WithLock(context.Background(), "k", func(context.Context) error { return nil }))
	assert.Empty(t, locker.slots)
}
