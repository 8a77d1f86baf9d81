package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/ibraheemcisse/service-monitoring-script/internal/logger"
)

// Manager ties the state store and the notifier chain together: a condition
// fires at most once per cooldown window, and clearing a previously fired
// condition sends a recovery notice and removes its record.
type Manager struct {
	store    Store
	notifier Notifier
	cooldown time.Duration
}

func NewManager(store Store, notifier Notifier, cooldown time.Duration) *Manager {
	return &Manager{
		store:    store,
		notifier: notifier,
		cooldown: cooldown,
	}
}

// Fire dispatches event unless its key fired within the cooldown window.
// Returns true when a notification was actually sent. Dispatch failures are
// logged and swallowed; a broken channel must not abort the run, and the
// fired record is still written so a flapping channel cannot cause a spam
// burst once it recovers.
func (m *Manager) Fire(ctx context.Context, now time.Time, event Event) bool {
	ok, err := m.store.ShouldFire(event.Key, m.cooldown, now)
	if err != nil {
		// Dedup state unavailable: alerting is the job, suppression is
		// best-effort. Fire anyway.
		logger.Warn("ALERT", "State store unavailable for %s: %v", event.Key, err)
		ok = true
	}
	if !ok {
		logger.Debug("ALERT", "%s suppressed (cooldown %s)", event.Key, m.cooldown)
		return false
	}

	if err := m.notifier.Notify(ctx, event); err != nil {
		logger.Warn("ALERT", "Failed to send alert for %s: %v", event.Key, err)
	}
	if err := m.store.RecordFired(event.Key, now); err != nil {
		logger.Warn("ALERT", "Failed to record alert state for %s: %v", event.Key, err)
	}
	return true
}

// Clear removes the record for key and reports whether one existed. If it
// did, a recovery notice is sent.
func (m *Manager) Clear(ctx context.Context, now time.Time, key Key) bool {
	existed, err := m.store.Clear(key)
	if err != nil {
		logger.Warn("ALERT", "Failed to clear alert state for %s: %v", key, err)
		return false
	}
	if !existed {
		return false
	}

	event := Event{
		Key:       key,
		Status:    StatusResolved,
		Severity:  "info",
		Title:     fmt.Sprintf("%s: %s recovered", key.Service, key.Condition),
		Message:   fmt.Sprintf("Condition %q on service %q is back to normal", key.Condition, key.Service),
		Timestamp: now,
	}
	if err := m.notifier.Notify(ctx, event); err != nil {
		logger.Warn("ALERT", "Failed to send recovery notice for %s: %v", key, err)
	}
	return true
}

// ClearService clears every condition scoped to the service. A successful
// status probe resets everything.
func (m *Manager) ClearService(ctx context.Context, now time.Time, service string) {
	for _, key := range ServiceKeys(service) {
		m.Clear(ctx, now, key)
	}
}
