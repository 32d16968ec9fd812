package scheduler

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/textwave/textwave-backend/app/services"
	businessflow "github.com/textwave/textwave-backend/business_flow"
	"github.com/textwave/textwave-backend/repository"
	"github.com/textwave/textwave-backend/utils"
)

// CampaignScheduler fires scheduled campaigns when their time comes and
// sweeps queued messages that lost their dispatch task. Both loops are
// idempotent: the enqueue is guarded by the campaign's conditional status
// transition, and a swept message that was dispatched meanwhile is dropped
// by the worker's own queued check.
type CampaignScheduler struct {
	campaignRepo repository.CampaignRepository
	messageRepo  repository.CampaignMessageRepository
	enqueue      businessflow.EnqueueFlow
	dispatcher   services.TaskDispatcher
	logger       *log.Logger

	interval      time.Duration
	sweepInterval time.Duration
	stalledAfter  time.Duration
	batchSize     int
}

// CampaignSchedulerConfig tunes the scheduler loops
type CampaignSchedulerConfig struct {
	Interval      time.Duration
	SweepInterval time.Duration
	// StalledAfter is how long a queued message of a sending campaign must
	// sit untouched before the sweep re-enqueues it
	StalledAfter time.Duration
	BatchSize    int
	// LogDir holds the rotating scheduler log; empty logs to stdout only
	LogDir string
}

// NewCampaignScheduler creates a new campaign scheduler
func NewCampaignScheduler(
	campaignRepo repository.CampaignRepository,
	messageRepo repository.CampaignMessageRepository,
	enqueue businessflow.EnqueueFlow,
	dispatcher services.TaskDispatcher,
	cfg CampaignSchedulerConfig,
) *CampaignScheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.StalledAfter <= 0 {
		cfg.StalledAfter = 5 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}

	return &CampaignScheduler{
		campaignRepo:  campaignRepo,
		messageRepo:   messageRepo,
		enqueue:       enqueue,
		dispatcher:    dispatcher,
		logger:        newSchedulerLogger(cfg.LogDir),
		interval:      cfg.Interval,
		sweepInterval: cfg.SweepInterval,
		stalledAfter:  cfg.StalledAfter,
		batchSize:     cfg.BatchSize,
	}
}

// newSchedulerLogger writes to stdout and, when a directory is given, to a
// size-rotated log file
func newSchedulerLogger(dir string) *log.Logger {
	var out io.Writer = os.Stdout
	if dir != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   filepath.Join(dir, "scheduler.log"),
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		})
	}
	return log.New(out, "scheduler ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
}

// Start launches the scheduler loops in background goroutines and returns a
// stop function
func (s *CampaignScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runDueCampaigns(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runDueCampaigns(ctx)
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(s.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweepStalledQueued(ctx)
			}
		}
	}()

	return cancel
}

// runDueCampaigns enqueues every scheduled campaign whose fire time has
// passed
func (s *CampaignScheduler) runDueCampaigns(ctx context.Context) {
	due, err := s.campaignRepo.ListDueScheduled(ctx, utils.UTCNow(), s.batchSize)
	if err != nil {
		s.logger.Printf("scheduler: list due campaigns failed: %v", err)
		return
	}
	if len(due) == 0 {
		return
	}
	s.logger.Printf("scheduler: %d campaigns due", len(due))

	for _, campaign := range due {
		c := campaign
		go func() {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Printf("scheduler: enqueue campaign id=%d panicked: %v", c.ID, r)
				}
			}()

			resp, err := s.enqueue.EnqueueByID(ctx, c.ID)
			if err != nil {
				// Another instance may have taken it, or the wallet came up
				// short; both are final for this tick
				if errors.Is(err, businessflow.ErrCampaignAlreadySending) {
					return
				}
				s.logger.Printf("scheduler: enqueue campaign id=%d failed: %v", c.ID, err)
				return
			}
			s.logger.Printf("scheduler: campaign id=%d enqueued, %d recipients, %d tasks", c.ID, resp.Recipients, resp.Enqueued)
		}()
	}
}

// sweepStalledQueued re-enqueues dispatch tasks for queued messages of
// sending campaigns that have sat untouched past the stall cutoff. The
// re-enqueue carries a nonzero attempt so it bypasses the dispatcher's
// first-enqueue dedupe, whose reservation may be orphaned by a crash.
func (s *CampaignScheduler) sweepStalledQueued(ctx context.Context) {
	cutoff := utils.UTCNow().Add(-s.stalledAfter)
	stalled, err := s.messageRepo.ListStalledQueued(ctx, cutoff, s.batchSize)
	if err != nil {
		s.logger.Printf("scheduler: list stalled messages failed: %v", err)
		return
	}
	if len(stalled) == 0 {
		return
	}

	requeued := 0
	for _, message := range stalled {
		task := services.Task{
			ID:        message.TaskID(),
			Type:      services.TaskTypeDispatchMessage,
			MessageID: message.ID,
			Attempt:   1,
		}
		if err := s.dispatcher.Enqueue(ctx, task, 0); err != nil {
			s.logger.Printf("scheduler: re-enqueue message id=%d failed: %v", message.ID, err)
			continue
		}
		requeued++
	}
	s.logger.Printf("scheduler: swept %d stalled messages, re-enqueued %d", len(stalled), requeued)
}
