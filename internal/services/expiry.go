package services

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/teamforge/teamforge/internal/config"
	"github.com/teamforge/teamforge/internal/store"
	"github.com/teamforge/teamforge/pkg/logger"
)

// ExpiryService sweeps stale membership offers: pending invites past their
// TTL are deleted, pending join requests past theirs are cancelled through
// the same compare-and-set a user cancellation uses.
type ExpiryService struct {
	store     *store.TeamStore
	cfg       *config.MembershipConfig
	scheduler *cron.Cron
}

func NewExpiryService(st *store.TeamStore, cfg *config.MembershipConfig) *ExpiryService {
	return &ExpiryService{store: st, cfg: cfg}
}

// StartScheduler runs the sweep on a fixed interval.
func (s *ExpiryService) StartScheduler() {
	interval := s.cfg.SweepIntervalMins
	if interval <= 0 {
		interval = 60
	}

	s.scheduler = cron.New()
	spec := fmt.Sprintf("@every %dm", interval)
	if _, err := s.scheduler.AddFunc(spec, func() {
		s.Sweep()
	}); err != nil {
		logger.Errorf("[Expiry] failed to schedule sweep: %v", err)
		return
	}
	s.scheduler.Start()
	logger.Infof("[Expiry] sweep scheduled every %dm (invite TTL %dd, request TTL %dd)",
		interval, s.cfg.InviteTTLDays, s.cfg.RequestTTLDays)
}

// StopScheduler stops the sweep.
func (s *ExpiryService) StopScheduler() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

// Sweep performs one expiry pass and reports how many records it touched.
func (s *ExpiryService) Sweep() (invites int64, requests int64) {
	now := time.Now()

	if s.cfg.InviteTTLDays > 0 {
		cutoff := now.AddDate(0, 0, -s.cfg.InviteTTLDays)
		n, err := s.store.DeleteInvitesBefore(cutoff)
		if err != nil {
			logger.Errorf("[Expiry] invite sweep failed: %v", err)
		} else {
			invites = n
		}
	}

	if s.cfg.RequestTTLDays > 0 {
		cutoff := now.AddDate(0, 0, -s.cfg.RequestTTLDays)
		n, err := s.store.ExpireRequestsBefore(cutoff)
		if err != nil {
			logger.Errorf("[Expiry] join request sweep failed: %v", err)
		} else {
			requests = n
		}
	}

	if invites > 0 || requests > 0 {
		logger.Infof("[Expiry] swept %d stale invites, %d stale join requests", invites, requests)
	}
	return invites, requests
}
