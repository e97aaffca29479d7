package datasource

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/asklantern/lantern-engine/pkg/apperrors"
	"github.com/asklantern/lantern-engine/pkg/logging"
	"github.com/asklantern/lantern-engine/pkg/models"
	"github.com/asklantern/lantern-engine/pkg/retry"
)

const (
	DefaultHandleTTLMinutes    = 10
	DefaultCleanupInterval     = 1 * time.Minute
	DefaultProbeTimeoutSeconds = 5
)

// ConnectionManagerConfig holds configuration for the connection manager.
type ConnectionManagerConfig struct {
	TTLMinutes          int
	ProbeTimeoutSeconds int
}

// ConnectionManager owns live source handles, keyed strictly by connection
// id so one user's handle can never serve another user's connection record.
// Handles are probed before reuse and expire after a TTL of inactivity.
type ConnectionManager struct {
	mu           sync.RWMutex
	handles      map[uuid.UUID]*managedHandle
	ttl          time.Duration
	probeTimeout time.Duration
	stopped      bool
	stopChan     chan struct{}
	logger       *zap.Logger
}

type managedHandle struct {
	handle   Handle
	lastUsed time.Time
	mu       sync.Mutex
}

// NewConnectionManager creates a connection manager with the given
// configuration and starts a background cleanup goroutine that runs until
// Close() is called.
func NewConnectionManager(cfg ConnectionManagerConfig, logger *zap.Logger) *ConnectionManager {
	if cfg.TTLMinutes <= 0 {
		cfg.TTLMinutes = DefaultHandleTTLMinutes
	}
	if cfg.ProbeTimeoutSeconds <= 0 {
		cfg.ProbeTimeoutSeconds = DefaultProbeTimeoutSeconds
	}

	m := &ConnectionManager{
		handles:      make(map[uuid.UUID]*managedHandle),
		ttl:          time.Duration(cfg.TTLMinutes) * time.Minute,
		probeTimeout: time.Duration(cfg.ProbeTimeoutSeconds) * time.Second,
		stopChan:     make(chan struct{}),
		logger:       logger,
	}

	go m.cleanupExpiredHandles()
	return m
}

// GetHandle returns a live handle for the connection, reusing a cached one
// when it is still healthy. The cache key is the connection id, never the
// credential content; callers that edit credentials must Invalidate first.
func (m *ConnectionManager) GetHandle(ctx context.Context, conn *models.Connection) (Handle, error) {
	m.mu.RLock()
	managed, exists := m.handles[conn.ID]
	m.mu.RUnlock()

	if exists {
		managed.mu.Lock()

		probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
		err := retry.Do(probeCtx, retry.DefaultConfig(), func() error {
			return managed.handle.Probe(probeCtx)
		})
		cancel()

		if err != nil {
			m.logger.Warn("cached handle unhealthy, recreating",
				zap.String("connectionID", conn.ID.String()),
				zap.String("error", logging.SanitizeError(err)),
			)
			managed.mu.Unlock()
			m.Invalidate(conn.ID)
			return m.createHandle(ctx, conn)
		}

		managed.lastUsed = time.Now()
		managed.mu.Unlock()
		return managed.handle, nil
	}

	return m.createHandle(ctx, conn)
}

// Test reports whether a working handle can be obtained for the connection.
// It never propagates an error; failures are logged and reported as false.
// This exists for user-facing "test connection" UX and must stay
// exception-safe.
func (m *ConnectionManager) Test(ctx context.Context, conn *models.Connection) bool {
	handle, err := m.GetHandle(ctx, conn)
	if err != nil {
		m.logger.Info("connection test failed",
			zap.String("connectionID", conn.ID.String()),
			zap.String("error", logging.SanitizeError(err)),
		)
		return false
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()
	if err := handle.Probe(probeCtx); err != nil {
		m.logger.Info("connection probe failed",
			zap.String("connectionID", conn.ID.String()),
			zap.String("error", logging.SanitizeError(err)),
		)
		return false
	}
	return true
}

// Invalidate closes and drops the cached handle for a connection. Used when
// credentials are edited or the connection is deleted. No-op for unknown ids.
func (m *ConnectionManager) Invalidate(connectionID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if managed, exists := m.handles[connectionID]; exists && managed != nil {
		if managed.handle != nil {
			_ = managed.handle.Close()
		}
		delete(m.handles, connectionID)
		m.logger.Debug("invalidated handle",
			zap.String("connectionID", connectionID.String()),
		)
	}
}

// createHandle validates the config, dispatches to the registered factory
// and caches the result after a successful probe.
// Caller must NOT hold any locks.
func (m *ConnectionManager) createHandle(ctx context.Context, conn *models.Connection) (Handle, error) {
	if violations := ValidateConfig(conn.SourceType, conn.Config); len(violations) > 0 {
		fields := make([]string, 0, len(violations))
		for _, v := range violations {
			fields = append(fields, v.Field)
		}
		return nil, apperrors.NewConfigError(conn.SourceType, "missing or empty required fields", fields...)
	}

	reg, ok := Lookup(conn.SourceType)
	if !ok {
		return nil, apperrors.NewConfigError(conn.SourceType, "unknown source type")
	}

	handle, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (Handle, error) {
		return reg.Factory(ctx, conn.Config, m.logger)
	})
	if err != nil {
		m.logger.Error("failed to build handle",
			zap.String("connectionID", conn.ID.String()),
			zap.String("sourceType", conn.SourceType),
			zap.String("error", logging.SanitizeError(err)),
		)
		return nil, err
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()
	if err := handle.Probe(probeCtx); err != nil {
		_ = handle.Close()
		return nil, apperrors.NewConnectivityError(conn.SourceType, "probe", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Another goroutine may have built one while we were connecting.
	if managed, exists := m.handles[conn.ID]; exists && managed != nil {
		_ = handle.Close()
		managed.mu.Lock()
		managed.lastUsed = time.Now()
		managed.mu.Unlock()
		return managed.handle, nil
	}

	m.handles[conn.ID] = &managedHandle{
		handle:   handle,
		lastUsed: time.Now(),
	}

	m.logger.Info("created new handle",
		zap.String("connectionID", conn.ID.String()),
		zap.String("sourceType", conn.SourceType),
	)
	return handle, nil
}

// cleanupExpiredHandles runs until stopChan is closed.
func (m *ConnectionManager) cleanupExpiredHandles() {
	ticker := time.NewTicker(DefaultCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.performCleanup()
		case <-m.stopChan:
			return
		}
	}
}

func (m *ConnectionManager) performCleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return
	}

	now := time.Now()
	var expired []uuid.UUID
	for id, managed := range m.handles {
		if managed == nil {
			continue
		}
		managed.mu.Lock()
		idle := now.Sub(managed.lastUsed)
		managed.mu.Unlock()
		if idle > m.ttl {
			expired = append(expired, id)
		}
	}

	for _, id := range expired {
		if managed := m.handles[id]; managed != nil && managed.handle != nil {
			_ = managed.handle.Close()
		}
		delete(m.handles, id)
	}

	if len(expired) > 0 {
		m.logger.Info("cleaned up expired handles",
			zap.Int("count", len(expired)),
			zap.Int("remaining", len(m.handles)),
		)
	}
}

// Close closes every cached handle and stops the cleanup goroutine.
// Idempotent; tolerates handles that are already closed.
func (m *ConnectionManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return nil
	}

	m.stopped = true
	close(m.stopChan)

	for _, managed := range m.handles {
		if managed != nil && managed.handle != nil {
			_ = managed.handle.Close()
		}
	}
	m.handles = make(map[uuid.UUID]*managedHandle)
	m.logger.Info("connection manager closed")
	return nil
}

// Stats returns counters useful for a health endpoint.
func (m *ConnectionManager) Stats() ConnectionStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	stats := ConnectionStats{
		TotalHandles: len(m.handles),
		TTLMinutes:   int(m.ttl.Minutes()),
	}
	for _, managed := range m.handles {
		if managed == nil {
			continue
		}
		managed.mu.Lock()
		idle := int(now.Sub(managed.lastUsed).Seconds())
		managed.mu.Unlock()
		if idle > stats.OldestIdleSeconds {
			stats.OldestIdleSeconds = idle
		}
	}
	return stats
}

// ConnectionStats contains statistics about the connection manager state.
type ConnectionStats struct {
	TotalHandles      int `json:"total_handles"`
	TTLMinutes        int `json:"ttl_minutes"`
	OldestIdleSeconds int `json:"oldest_idle_seconds"`
}
