// AngelaMos | 2026
// handler.go

package admin

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"runtime"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/arphoto/backend/internal/core"
	"github.com/carterperez-dev/arphoto/backend/internal/entitlement"
)

type SessionRevoker interface {
	RevokeAllSessions(ctx context.Context, userID int64) error
}

type EntitlementStats interface {
	Stats(ctx context.Context) (*entitlement.Stats, error)
}

type Handler struct {
	dbStats      func() sql.DBStats
	redisStats   func() *redis.PoolStats
	redisKeys    func(ctx context.Context) (int64, error)
	redisPing    func(ctx context.Context) error
	dbPing       func(ctx context.Context) error
	sessions     SessionRevoker
	entitlements EntitlementStats
}

type HandlerConfig struct {
	DBStats      func() sql.DBStats
	RedisStats   func() *redis.PoolStats
	RedisKeys    func(ctx context.Context) (int64, error)
	RedisPing    func(ctx context.Context) error
	DBPing       func(ctx context.Context) error
	Sessions     SessionRevoker
	Entitlements EntitlementStats
}

func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		dbStats:      cfg.DBStats,
		redisStats:   cfg.RedisStats,
		redisKeys:    cfg.RedisKeys,
		redisPing:    cfg.RedisPing,
		dbPing:       cfg.DBPing,
		sessions:     cfg.Sessions,
		entitlements: cfg.Entitlements,
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/stats", h.GetSystemStats)
		r.Get("/stats/db", h.GetDatabaseStats)
		r.Get("/stats/redis", h.GetRedisStats)
		r.Get("/stats/runtime", h.GetRuntimeStats)
		r.Get("/stats/entitlements", h.GetEntitlementStats)
		r.Delete("/users/{userID}/sessions", h.RevokeUserSessions)
	})
}

func (h *Handler) GetSystemStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	response := SystemStatsResponse{
		Database: DatabaseStatus{
			Healthy: healthy(ctx, h.dbPing),
			Stats:   h.getDBStats(),
		},
		Redis: RedisStatus{
			Healthy: healthy(ctx, h.redisPing),
			Stats:   h.getRedisStats(ctx),
		},
		Runtime: readRuntimeStats(),
	}

	if h.entitlements != nil {
		stats, err := h.entitlements.Stats(ctx)
		if err != nil {
			slog.WarnContext(ctx, "entitlement stats unavailable", "error", err)
		} else {
			response.Entitlements = stats
		}
	}

	core.OK(w, response)
}

func healthy(ctx context.Context, ping func(context.Context) error) bool {
	if ping == nil {
		return true
	}
	return ping(ctx) == nil
}

func (h *Handler) GetDatabaseStats(w http.ResponseWriter, r *http.Request) {
	core.OK(w, h.getDBStats())
}

func (h *Handler) GetRedisStats(w http.ResponseWriter, r *http.Request) {
	core.OK(w, h.getRedisStats(r.Context()))
}

func (h *Handler) GetRuntimeStats(w http.ResponseWriter, r *http.Request) {
	core.OK(w, readRuntimeStats())
}

func (h *Handler) GetEntitlementStats(w http.ResponseWriter, r *http.Request) {
	if h.entitlements == nil {
		core.NotFound(w, "entitlement stats")
		return
	}

	stats, err := h.entitlements.Stats(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, stats)
}

// RevokeUserSessions signs a user out everywhere.
func (h *Handler) RevokeUserSessions(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || userID <= 0 {
		core.BadRequest(w, "invalid user id")
		return
	}

	if h.sessions == nil {
		core.NotFound(w, "session store")
		return
	}

	if err := h.sessions.RevokeAllSessions(r.Context(), userID); err != nil {
		core.InternalServerError(w, err)
		return
	}

	slog.InfoContext(r.Context(), "sessions revoked by admin", "user_id", userID)
	core.NoContent(w)
}

func readRuntimeStats() RuntimeStats {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return RuntimeStats{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		MemAlloc:     memStats.Alloc,
		MemSys:       memStats.Sys,
		NumGC:        memStats.NumGC,
	}
}

func (h *Handler) getDBStats() *DBPoolStats {
	if h.dbStats == nil {
		return nil
	}

	stats := h.dbStats()
	return &DBPoolStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration.String(),
		MaxIdleClosed:      stats.MaxIdleClosed,
		MaxIdleTimeClosed:  stats.MaxIdleTimeClosed,
		MaxLifetimeClosed:  stats.MaxLifetimeClosed,
	}
}

func (h *Handler) getRedisStats(ctx context.Context) *RedisPoolStats {
	if h.redisStats == nil {
		return nil
	}

	stats := h.redisStats()
	out := &RedisPoolStats{
		Hits:       stats.Hits,
		Misses:     stats.Misses,
		Timeouts:   stats.Timeouts,
		TotalConns: stats.TotalConns,
		IdleConns:  stats.IdleConns,
		StaleConns: stats.StaleConns,
		Keys:       -1,
	}

	if h.redisKeys != nil {
		if n, err := h.redisKeys(ctx); err == nil {
			out.Keys = n
		}
	}

	return out
}

type SystemStatsResponse struct {
	Database     DatabaseStatus     `json:"database"`
	Redis        RedisStatus        `json:"redis"`
	Runtime      RuntimeStats       `json:"runtime"`
	Entitlements *entitlement.Stats `json:"entitlements,omitempty"`
}

type DatabaseStatus struct {
	Healthy bool         `json:"healthy"`
	Stats   *DBPoolStats `json:"stats,omitempty"`
}

type RedisStatus struct {
	Healthy bool            `json:"healthy"`
	Stats   *RedisPoolStats `json:"stats,omitempty"`
}

type DBPoolStats struct {
	MaxOpenConnections int    `json:"max_open_connections"`
	OpenConnections    int    `json:"open_connections"`
	InUse              int    `json:"in_use"`
	Idle               int    `json:"idle"`
	WaitCount          int64  `json:"wait_count"`
	WaitDuration       string `json:"wait_duration"`
	MaxIdleClosed      int64  `json:"max_idle_closed"`
	MaxIdleTimeClosed  int64  `json:"max_idle_time_closed"`
	MaxLifetimeClosed  int64  `json:"max_lifetime_closed"`
}

// RedisPoolStats.Keys is -1 when the count could not be read.
type RedisPoolStats struct {
	Hits       uint32 `json:"hits"`
	Misses     uint32 `json:"misses"`
	Timeouts   uint32 `json:"timeouts"`
	TotalConns uint32 `json:"total_conns"`
	IdleConns  uint32 `json:"idle_conns"`
	StaleConns uint32 `json:"stale_conns"`
	Keys       int64  `json:"keys"`
}

type RuntimeStats struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutine"`
	NumCPU       int    `json:"num_cpu"`
	MemAlloc     uint64 `json:"mem_alloc_bytes"`
	MemSys       uint64 `json:"mem_sys_bytes"`
	NumGC        uint32 `json:"num_gc"`
}
