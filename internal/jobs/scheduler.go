package jobs

import (
	"context"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/qrido/qrido-server/internal/realtime"
)

// Schedules for the background sweeps.
const (
	pointsExpirySchedule        = "17 3 * * *"
	codePurgeSchedule           = "*/10 * * * *"
	partnershipDowngradeSchedule = "42 0 * * *"
)

// Scheduler runs the periodic maintenance sweeps.
type Scheduler struct {
	db   *gorm.DB
	hub  *realtime.Hub
	cron *cron.Cron
}

// NewScheduler constructs a Scheduler.
func NewScheduler(db *gorm.DB, hub *realtime.Hub) *Scheduler {
	if db == nil {
		return nil
	}
	return &Scheduler{db: db, hub: hub, cron: cron.New()}
}

// Start registers the sweeps and launches the cron loop. The loop stops
// when ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}

	if _, errAdd := s.cron.AddFunc(pointsExpirySchedule, func() { s.runExpirePoints(ctx) }); errAdd != nil {
		return errAdd
	}
	if _, errAdd := s.cron.AddFunc(codePurgeSchedule, func() { s.runPurgeCodes(ctx) }); errAdd != nil {
		return errAdd
	}
	if _, errAdd := s.cron.AddFunc(partnershipDowngradeSchedule, func() { s.runDowngradePartnerships(ctx) }); errAdd != nil {
		return errAdd
	}

	s.cron.Start()
	go func() {
		<-ctx.Done()
		s.cron.Stop()
	}()
	log.Info("job scheduler started")
	return nil
}

// runExpirePoints logs and runs the points expiry sweep.
func (s *Scheduler) runExpirePoints(ctx context.Context) {
	expired, errSweep := ExpirePoints(ctx, s.db, s.hub)
	if errSweep != nil {
		log.Errorf("points expiry sweep: %v", errSweep)
		return
	}
	if expired > 0 {
		log.Infof("points expiry sweep expired %d earn postings", expired)
	}
}

// runPurgeCodes logs and runs the verification code purge.
func (s *Scheduler) runPurgeCodes(ctx context.Context) {
	purged, errPurge := PurgeCodes(ctx, s.db)
	if errPurge != nil {
		log.Errorf("verification code purge: %v", errPurge)
		return
	}
	if purged > 0 {
		log.Debugf("verification code purge removed %d rows", purged)
	}
}

// runDowngradePartnerships logs and runs the partnership downgrade sweep.
func (s *Scheduler) runDowngradePartnerships(ctx context.Context) {
	downgraded, errSweep := DowngradePartnerships(ctx, s.db, s.hub)
	if errSweep != nil {
		log.Errorf("partnership downgrade sweep: %v", errSweep)
		return
	}
	if downgraded > 0 {
		log.Infof("downgraded %d expired partnership plans", downgraded)
	}
}
