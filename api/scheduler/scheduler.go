package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/linesmerrill/ambulance-dispatch-api/databases"
	"github.com/linesmerrill/ambulance-dispatch-api/metrics"
	"github.com/linesmerrill/ambulance-dispatch-api/models"
)

const jobTimeout = 20 * time.Second

// Scheduler runs the periodic fleet jobs
type Scheduler struct {
	cron     *cron.Cron
	DB       databases.Store
	Metrics  *metrics.Recorder
	schedule string
}

// NewScheduler creates a new scheduler instance running the fleet audit on
// schedule (a cron spec or @every duration)
func NewScheduler(db databases.Store, rec *metrics.Recorder, schedule string) *Scheduler {
	if schedule == "" {
		schedule = "@every 30s"
	}
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(time.UTC)),
		DB:       db,
		Metrics:  rec,
		schedule: schedule,
	}
}

// Start begins the scheduler with all registered jobs
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.auditFleet); err != nil {
		zap.S().Errorw("failed to register fleet audit job", "schedule", s.schedule, "error", err)
		return err
	}
	s.cron.Start()
	zap.S().Infow("fleet scheduler started", "schedule", s.schedule)
	return nil
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("fleet scheduler stopped")
}

func (s *Scheduler) auditFleet() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	if _, err := s.Audit(ctx); err != nil {
		zap.S().Errorw("fleet audit failed", "error", err)
	}
}

// AuditReport summarizes one fleet audit
type AuditReport struct {
	ByStatus          map[string]int
	ActiveEmergencies int
	Violations        []string
}

// Audit refreshes the fleet gauges and logs every ambulance whose status
// disagrees with its current emergency
func (s *Scheduler) Audit(ctx context.Context) (*AuditReport, error) {
	fleet, err := s.DB.ListAmbulances(ctx)
	if err != nil {
		return nil, err
	}
	active, err := s.DB.ListEmergencies(ctx, databases.EmergencyFilter{Statuses: models.ActiveEmergencyStatuses})
	if err != nil {
		return nil, err
	}

	report := &AuditReport{ByStatus: map[string]int{}, ActiveEmergencies: len(active)}
	for _, a := range fleet {
		report.ByStatus[string(a.Details.Status)]++
		if err := a.CheckInvariant(); err != nil {
			report.Violations = append(report.Violations, err.Error())
			zap.S().Warnw("ambulance invariant violated", "ambulanceId", a.ID, "error", err)
		}
	}

	statuses := make([]string, 0, len(models.AmbulanceStatuses))
	for _, st := range models.AmbulanceStatuses {
		statuses = append(statuses, string(st))
	}
	s.Metrics.SetFleet(statuses, report.ByStatus)
	s.Metrics.SetActiveEmergencies(report.ActiveEmergencies)

	zap.S().Debugw("fleet audit complete", "ambulances", len(fleet), "activeEmergencies", report.ActiveEmergencies, "violations", len(report.Violations))
	return report, nil
}
