package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/coinpulse/coinpulse/cache"
	"github.com/coinpulse/coinpulse/invalidation"

	"github.com/carlmjohnson/versioninfo"
	"github.com/labstack/echo/v4"
)

type HealthStatus struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Message string `json:"msg,omitempty"`
}

func (srv *Server) handleHealthCheck(c echo.Context) error {
	if err := srv.store.Ping(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, HealthStatus{
			Status:  "degraded",
			Version: versioninfo.Short(),
			Message: "cache backend unreachable",
		})
	}
	return c.JSON(http.StatusOK, HealthStatus{Status: "ok", Version: versioninfo.Short()})
}

type entityStats struct {
	Entity   string `json:"entity"`
	Template string `json:"template"`
	Class    string `json:"class"`
	TTL      string `json:"ttl"`
	Keys     int64  `json:"keys"`
}

type statsResponse struct {
	TotalKeys int64         `json:"totalKeys"`
	Entities  []entityStats `json:"entities"`
}

// handleCacheStats walks the live keyspace and reports per-entity key
// counts alongside the policy that governs them. Scan-based, so the counts
// are approximate under concurrent writes.
func (srv *Server) handleCacheStats(c echo.Context) error {
	ctx := c.Request().Context()

	resp := statsResponse{Entities: make([]entityStats, 0, len(cache.Types()))}
	for _, entity := range cache.Types() {
		tmpl, err := cache.Template(entity)
		if err != nil {
			return err
		}
		class, err := srv.policy.ClassFor(entity)
		if err != nil {
			return err
		}
		ttl, err := srv.policy.TTLFor(entity)
		if err != nil {
			return err
		}
		pattern, err := cache.Wildcard(entity)
		if err != nil {
			return err
		}

		var count int64
		err = srv.store.Scan(ctx, pattern, func(string) error {
			count++
			return nil
		})
		if err != nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "cache backend unreachable")
		}

		resp.Entities = append(resp.Entities, entityStats{
			Entity:   string(entity),
			Template: tmpl,
			Class:    string(class),
			TTL:      ttl.String(),
			Keys:     count,
		})
		resp.TotalKeys += count
	}

	return c.JSON(http.StatusOK, resp)
}

func (srv *Server) handleWarm(c echo.Context) error {
	counts := srv.warmer.WarmAll(c.Request().Context())
	return c.JSON(http.StatusOK, map[string]any{"warmed": counts})
}

func (srv *Server) handleFlush(c echo.Context) error {
	err := srv.manager.FlushAll(c.Request().Context())
	if errors.Is(err, invalidation.ErrFlushDisabled) {
		return echo.NewHTTPError(http.StatusForbidden, "flush is disabled on this instance (see --allow-flush)")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]bool{"flushed": true})
}

type invalidateKeyRequest struct {
	Key string `json:"key"`
}

func (srv *Server) handleInvalidateKey(c echo.Context) error {
	var body invalidateKeyRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if body.Key == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "key is required")
	}

	existed, err := srv.manager.InvalidateKey(c.Request().Context(), body.Key)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"key": body.Key, "existed": existed})
}

type invalidatePatternRequest struct {
	Pattern string `json:"pattern"`
}

func (srv *Server) handleInvalidatePattern(c echo.Context) error {
	var body invalidatePatternRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if body.Pattern == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "pattern is required")
	}
	if body.Pattern == "*" {
		return echo.NewHTTPError(http.StatusBadRequest, "refusing to purge the whole keyspace; use the flush endpoint")
	}

	n, err := srv.manager.InvalidatePattern(c.Request().Context(), body.Pattern)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"pattern": body.Pattern, "invalidated": n})
}

func (srv *Server) handleInvalidateCoin(c echo.Context) error {
	coinID := c.Param("coinID")
	if coinID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "coin ID is required")
	}

	n, err := srv.manager.InvalidateCoin(c.Request().Context(), coinID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"coinId": coinID, "invalidated": n})
}

func (srv *Server) handleInvalidateUser(c echo.Context) error {
	userID, err := strconv.ParseInt(c.Param("userID"), 10, 64)
	if err != nil || userID <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "user ID must be a positive integer")
	}

	n, err := srv.manager.InvalidateUser(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"userId": userID, "invalidated": n})
}

// handleInvalidateEvent accepts a domain change event over HTTP, for
// services which cannot publish to the pub/sub channel directly.
func (srv *Server) handleInvalidateEvent(c echo.Context) error {
	var ev invalidation.Event
	if err := c.Bind(&ev); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := ev.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	n, err := srv.manager.Dispatch(c.Request().Context(), &ev)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"event": ev.Type, "invalidated": n})
}
