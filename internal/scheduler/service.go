package scheduler

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/house-of-holmes/social-alerts/internal/config"
	"github.com/house-of-holmes/social-alerts/internal/hub"
	"github.com/house-of-holmes/social-alerts/internal/models"
	"github.com/house-of-holmes/social-alerts/internal/notifications"
	"github.com/house-of-holmes/social-alerts/internal/storage"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Service generates periodic alert digests from the hub's history and
// hands them to the notification channels. Storage is optional; when
// configured, each digest is also archived as JSON.
type Service struct {
	config   *config.Config
	hub      *hub.Hub
	notifier notifications.NotificationInterface
	storage  storage.StorageInterface
	cron     *cron.Cron
}

// NewService creates a new digest scheduler. storageClient may be nil.
func NewService(cfg *config.Config, h *hub.Hub, notifier notifications.NotificationInterface, storageClient storage.StorageInterface) *Service {
	return &Service{
		config:   cfg,
		hub:      h,
		notifier: notifier,
		storage:  storageClient,
		cron:     cron.New(cron.WithSeconds()),
	}
}

// Start begins the scheduled digest runs
func (s *Service) Start() error {
	var cronExpression string

	switch s.config.DigestSchedule {
	case "daily":
		// Run daily at 9 AM UTC
		cronExpression = "0 0 9 * * *"
	case "weekly":
		// Run weekly on Monday at 9 AM UTC
		cronExpression = "0 0 9 * * MON"
	default:
		return fmt.Errorf("unsupported digest schedule %q", s.config.DigestSchedule)
	}

	_, err := s.cron.AddFunc(cronExpression, func() {
		logrus.Info("Starting scheduled digest run")
		if err := s.RunDigest(); err != nil {
			logrus.Errorf("Scheduled digest run failed: %v", err)
		}
	})

	if err != nil {
		return err
	}

	s.cron.Start()
	logrus.Infof("Digest scheduler started with %s schedule", s.config.DigestSchedule)
	return nil
}

// Stop stops the scheduler
func (s *Service) Stop() {
	if s.cron != nil {
		s.cron.Stop()
		logrus.Info("Digest scheduler stopped")
	}
}

// RunDigest builds a digest from current history, sends and archives it.
func (s *Service) RunDigest() error {
	digest := s.BuildDigest()

	if digest.TotalAlerts == 0 {
		logrus.Info("No alerts in history, skipping digest")
		return nil
	}

	if s.storage != nil {
		if err := s.archiveDigest(digest); err != nil {
			logrus.Errorf("Failed to archive digest: %v", err)
		}
	}

	if err := s.notifier.SendDigest(digest); err != nil {
		return fmt.Errorf("failed to send digest: %w", err)
	}

	logrus.Infof("Digest sent covering %d alerts", digest.TotalAlerts)
	return nil
}

// BuildDigest summarizes the hub's full retained history.
func (s *Service) BuildDigest() *models.Digest {
	alerts := s.hub.History(hub.HistoryLimit)

	counts := make(map[string]int)
	for _, alert := range alerts {
		counts[alert.Platform]++
	}

	return &models.Digest{
		GeneratedAt:    time.Now(),
		Period:         s.config.DigestSchedule,
		TotalAlerts:    len(alerts),
		Alerts:         alerts,
		PlatformCounts: counts,
	}
}

func (s *Service) archiveDigest(digest *models.Digest) error {
	data, err := json.Marshal(digest)
	if err != nil {
		return fmt.Errorf("failed to marshal digest: %w", err)
	}

	filename := fmt.Sprintf("digest-%s.json", digest.GeneratedAt.Format("2006-01-02-15-04-05"))
	return s.storage.Store(filename, data)
}
