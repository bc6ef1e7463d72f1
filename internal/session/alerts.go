package session

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/auth9/auth9/internal/storage/db"
)

// alertDedupWindow is §4.5's "deduplicated per (user, type) within a 30-min
// window".
const alertDedupWindow = 30 * time.Minute

const (
	severityMedium   = "medium"
	severityHigh     = "high"
	severityCritical = "critical"
)

const (
	AlertBruteForce      = "brute_force"
	AlertSuspiciousIP    = "suspicious_ip"
	AlertNewDevice       = "new_device"
	AlertImpossibleTravel = "impossible_travel"
)

// AlertEngine evaluates the four security-alert rules on every ingested
// LoginEvent. Each rule reuses the aggregate-count query methods already
// built onto internal/storage/db; this package's job is purely the
// threshold/windowing logic and the dedup gate.
type AlertEngine struct {
	pool *pgxpool.Pool
}

func NewAlertEngine(pool *pgxpool.Pool) *AlertEngine {
	return &AlertEngine{pool: pool}
}

// Evaluate runs all four rules relevant to eventType and raises alerts for
// whichever ones fire, subject to the 30-minute dedup window.
func (a *AlertEngine) Evaluate(ctx context.Context, tenantID, userID uuid.UUID, email string, eventType EventType, ip, device string, occurredAt time.Time) error {
	q := db.New(a.pool)

	switch eventType {
	case EventFailedPassword, EventFailedMFA:
		if err := a.checkBruteForce(ctx, q, tenantID, userID, email); err != nil {
			return fmt.Errorf("brute_force check: %w", err)
		}
		if err := a.checkSuspiciousIP(ctx, q, tenantID, userID, ip); err != nil {
			return fmt.Errorf("suspicious_ip check: %w", err)
		}
	case EventSuccess, EventWebAuthn:
		if userID == uuid.Nil {
			return nil
		}
		if err := a.checkNewDevice(ctx, q, tenantID, userID, device); err != nil {
			return fmt.Errorf("new_device check: %w", err)
		}
		if err := a.checkImpossibleTravel(ctx, q, tenantID, userID, ip, occurredAt); err != nil {
			return fmt.Errorf("impossible_travel check: %w", err)
		}
	}
	return nil
}

func (a *AlertEngine) checkBruteForce(ctx context.Context, q *db.Queries, tenantID, userID uuid.UUID, email string) error {
	window := since(5 * time.Minute)
	failures, err := q.CountFailuresByEmailSince(ctx, email, window)
	if err != nil {
		return err
	}
	if failures < 5 {
		return nil
	}
	distinctIPs, err := q.CountDistinctIPsForEmailSince(ctx, email, window)
	if err != nil {
		return err
	}
	if distinctIPs > 2 {
		return nil
	}
	return a.raise(ctx, q, tenantID, userID, AlertBruteForce, severityHigh, map[string]any{
		"detection_reason": "brute_force",
		"email":            email,
		"failures":         failures,
		"distinct_ips":     distinctIPs,
		"window":           "5m",
	})
}

func (a *AlertEngine) checkSuspiciousIP(ctx context.Context, q *db.Queries, tenantID, userID uuid.UUID, ip string) error {
	if ip == "" {
		return nil
	}
	window := since(10 * time.Minute)
	distinctUsers, err := q.CountDistinctUsersForIPSince(ctx, ip, window)
	if err != nil {
		return err
	}
	if distinctUsers < 5 {
		return nil
	}
	return a.raise(ctx, q, tenantID, userID, AlertSuspiciousIP, severityCritical, map[string]any{
		"detection_reason": "password_spray",
		"ip":               ip,
		"distinct_users":   distinctUsers,
		"window":           "10m",
	})
}

func (a *AlertEngine) checkNewDevice(ctx context.Context, q *db.Queries, tenantID, userID uuid.UUID, device string) error {
	if device == "" {
		return nil
	}
	seen, err := q.HasDeviceBeenSeen(ctx, pgtype.UUID{Bytes: userID, Valid: true}, device)
	if err != nil {
		return err
	}
	if seen {
		return nil
	}
	return a.raise(ctx, q, tenantID, userID, AlertNewDevice, severityMedium, map[string]any{"device": device})
}

// checkImpossibleTravel compares the current login's location (looked up
// from the user's most recent session row, since LoginEvent itself carries
// no location column per §3) against the previous successful login and
// flags a rate-of-travel in excess of 900 km/h.
func (a *AlertEngine) checkImpossibleTravel(ctx context.Context, q *db.Queries, tenantID, userID uuid.UUID, ip string, occurredAt time.Time) error {
	sessions, err := q.ListActiveSessionsForUser(ctx, pgtype.UUID{Bytes: userID, Valid: true})
	if err != nil {
		return err
	}
	if len(sessions) < 2 {
		return nil
	}
	current, previous := sessions[0], sessions[1]
	if !current.Location.Valid || !previous.Location.Valid || current.Location.String == previous.Location.String {
		return nil
	}

	curLat, curLng, ok1 := parseLatLng(current.Location.String)
	prevLat, prevLng, ok2 := parseLatLng(previous.Location.String)
	if !ok1 || !ok2 {
		return nil
	}

	elapsed := current.CreatedAt.Time.Sub(previous.CreatedAt.Time)
	if elapsed <= 0 {
		return nil
	}

	km := haversineKm(curLat, curLng, prevLat, prevLng)
	speedKmh := km / elapsed.Hours()
	if speedKmh <= 900 {
		return nil
	}

	return a.raise(ctx, q, tenantID, userID, AlertImpossibleTravel, severityHigh, map[string]any{
		"from":         previous.Location.String,
		"to":           current.Location.String,
		"distance_km":  km,
		"elapsed_mins": elapsed.Minutes(),
		"speed_kmh":    speedKmh,
	})
}

func (a *AlertEngine) raise(ctx context.Context, q *db.Queries, tenantID, userID uuid.UUID, alertType, severity string, details map[string]any) error {
	pgUserID := pgtype.UUID{Bytes: userID, Valid: userID != uuid.Nil}

	dup, err := q.ExistsRecentAlert(ctx, pgUserID, alertType, since(alertDedupWindow))
	if err != nil {
		return err
	}
	if dup {
		return nil
	}

	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return err
	}

	_, err = q.CreateSecurityAlert(ctx, db.CreateSecurityAlertParams{
		TenantID:  pgtype.UUID{Bytes: tenantID, Valid: tenantID != uuid.Nil},
		UserID:    pgUserID,
		AlertType: alertType,
		Severity:  severity,
		Details:   detailsJSON,
	})
	return err
}

// parseLatLng reads a "lat,lng" location tag as stored on sessions.location.
func parseLatLng(tag string) (lat, lng float64, ok bool) {
	parts := strings.SplitN(tag, ",", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return lat, lng, true
}

// haversineKm is the great-circle distance between two lat/lng points.
func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadiusKm = 6371.0
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}
