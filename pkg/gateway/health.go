package gateway

import (
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/hyeon/webgate/pkg/catalog"
)

// HealthReport is the payload of GET /health.
type HealthReport struct {
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
	UptimeSec int64  `json:"uptime_seconds"`
	Connected int    `json:"connected_clients"`
	Active    int    `json:"active_clients"`
	Tools     int    `json:"tools"`
}

// Reporter derives operational stats from registry snapshots. It never
// holds registry state of its own, so concurrent connect/disconnect is
// always safe around it.
type Reporter struct {
	registry  *Registry
	catalog   *catalog.Catalog
	logger    zerolog.Logger
	startedAt time.Time
	cron      *cron.Cron
}

// NewReporter creates a reporter; the uptime clock starts now.
func NewReporter(registry *Registry, cat *catalog.Catalog, logger zerolog.Logger) *Reporter {
	return &Reporter{
		registry:  registry,
		catalog:   cat,
		logger:    logger.With().Str("component", "reporter").Logger(),
		startedAt: time.Now(),
	}
}

// Health returns a point-in-time operational summary.
func (r *Reporter) Health() HealthReport {
	return HealthReport{
		Status:    "ok",
		Timestamp: time.Now().Unix(),
		UptimeSec: int64(time.Since(r.startedAt).Seconds()),
		Connected: r.registry.Len(),
		Active:    r.registry.ActiveCount(),
		Tools:     r.catalog.Len(),
	}
}

// Start schedules the periodic stats log.
func (r *Reporter) Start() {
	r.cron = cron.New()
	_, err := r.cron.AddFunc("@every 1m", r.logStats)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to schedule stats job")
		return
	}
	r.cron.Start()
}

// Stop halts the stats job and waits for a running tick to finish.
func (r *Reporter) Stop() {
	if r.cron == nil {
		return
	}
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.cron = nil
}

func (r *Reporter) logStats() {
	report := r.Health()
	r.logger.Info().
		Int64("uptime_seconds", report.UptimeSec).
		Int("connected", report.Connected).
		Int("active", report.Active).
		Int("tools", report.Tools).
		Msg("gateway stats")
}
