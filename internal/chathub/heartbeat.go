package chathub

import (
	"context"
)

// Heartbeat refreshes the presence TTL of every registered participant with
// one sidecar call.
func (m *ManagerService) Heartbeat(ctx context.Context) error {
	return m.refreshPresence(ctx, m.Registry.IDs())
}

// heartbeatAsync takes the registry snapshot on the caller's goroutine and
// refreshes presence off it. At most one refresh runs at a time; a tick that
// finds one in flight is skipped and reports false.
func (m *ManagerService) heartbeatAsync(ctx context.Context) bool {
	if !m.heartbeatBusy.CompareAndSwap(false, true) {
		m.logger.Debug("presence heartbeat still running, tick skipped")
		return false
	}
	ids := m.Registry.IDs()
	go func() {
		defer m.heartbeatBusy.Store(false)
		m.refreshPresence(ctx, ids)
	}()
	return true
}

func (m *ManagerService) refreshPresence(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, presenceTimeout)
	defer cancel()

	if err := m.presence.Heartbeat(ctx, ids); err != nil {
		m.logger.Warn("presence heartbeat failed", "total", len(ids), "err", err)
		return err
	}
	return nil
}
