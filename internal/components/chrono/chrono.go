package chrono

import (
	"context"
	"sync"
	"time"
)

// API is the interface that anything depending on the system clock or on
// waiting should use.
//
// note: fault injection point
type API interface {
	// Now returns the current time in Location.
	Now() time.Time
	// Location is the timezone the DMS runs in.
	Location() *time.Location
	// Sleep blocks for d, returning early with ctx.Err() if ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
}

// the DMS stamps every trigger with +10:00, Brisbane has no daylight saving
const dmsTimezone = "Australia/Brisbane"

// StandardImpl is the standard implementation of API using the standard library.
type StandardImpl struct {
	location *time.Location
}

func NewStandardImpl() (StandardImpl, error) {
	location, err := time.LoadLocation(dmsTimezone)
	if err != nil {
		// tzdata may be missing on minimal hosts
		location = time.FixedZone("AEST", 10*60*60)
	}
	return StandardImpl{location: location}, nil
}

func (s StandardImpl) Now() time.Time {
	return time.Now().In(s.location)
}

func (s StandardImpl) Location() *time.Location {
	return s.location
}

func (s StandardImpl) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Fake is an API for tests, Sleep returns immediately and advances the clock.
type Fake struct {
	mutex  sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func NewFake(now time.Time) *Fake {
	return &Fake{now: now}
}

func (f *Fake) Now() time.Time {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.now
}

func (f *Fake) Location() *time.Location {
	return f.Now().Location()
}

func (f *Fake) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.sleeps = append(f.sleeps, d)
	f.now = f.now.Add(d)
	return nil
}

// Sleeps returns every duration passed to Sleep, in order.
func (f *Fake) Sleeps() []time.Duration {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return append([]time.Duration(nil), f.sleeps...)
}
