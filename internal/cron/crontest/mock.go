// Package crontest provides test doubles for the cron package.
package crontest

import (
	"context"
	"sync"
	"time"

	"github.com/phillt/bernard-sub001/internal/cron"
)

// MockJob is a configurable test double for cron.Job.
type MockJob struct {
	NameVal     string
	ScheduleVal string
	RunFunc     func(ctx context.Context) error

	mu       sync.Mutex
	calls    int
	lastCall time.Time
}

// Compile-time interface check.
var _ cron.Job = (*MockJob)(nil)

// Name implements cron.Job.
func (m *MockJob) Name() string { return m.NameVal }

// Schedule implements cron.Job.
func (m *MockJob) Schedule() string { return m.ScheduleVal }

// Run implements cron.Job and increments the call counter.
func (m *MockJob) Run(ctx context.Context) error {
	m.mu.Lock()
	m.calls++
	m.lastCall = time.Now()
	m.mu.Unlock()

	if m.RunFunc != nil {
		return m.RunFunc(ctx)
	}
	return nil
}

// CallCount returns the number of times Run was called.
func (m *MockJob) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastCall returns the time of the last Run call.
func (m *MockJob) LastCall() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastCall
}

// MockFactStore is a test double for cron.FactStore that records every
// call.
type MockFactStore struct {
	mu      sync.Mutex
	facts   []string
	sources []string
}

// Compile-time interface check.
var _ cron.FactStore = (*MockFactStore)(nil)

// AddFacts implements cron.FactStore.
func (m *MockFactStore) AddFacts(_ context.Context, facts []string, source string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.facts = append(m.facts, facts...)
	m.sources = append(m.sources, source)
	return len(facts)
}

// Facts returns every fact received so far.
func (m *MockFactStore) Facts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.facts...)
}

// Sources returns the source of each AddFacts call.
func (m *MockFactStore) Sources() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sources...)
}
