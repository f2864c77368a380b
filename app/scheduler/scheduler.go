// Package scheduler runs the periodic sync, alert detection and daily report jobs
package scheduler

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/amirphl/adwatch/app/dto"
	businessflow "github.com/amirphl/adwatch/business_flow"
	"github.com/amirphl/adwatch/config"
	"github.com/amirphl/adwatch/models"
	"github.com/robfig/cron/v3"
	"gopkg.in/natefinch/lumberjack.v2"
)

// UserLister returns the users the jobs iterate over
type UserLister interface {
	ListActiveIDs(ctx context.Context) ([]uint, error)
}

// Scheduler triggers the pipeline on cron specs
type Scheduler struct {
	users      UserLister
	syncFlow   businessflow.SyncFlow
	alertFlow  businessflow.AlertFlow
	dispatcher businessflow.NotificationDispatcher
	reportFlow businessflow.DailyReportFlow
	cfg        config.SchedulerConfig
	logger     *log.Logger
	logWriter  io.Closer

	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

func NewScheduler(
	users UserLister,
	syncFlow businessflow.SyncFlow,
	alertFlow businessflow.AlertFlow,
	dispatcher businessflow.NotificationDispatcher,
	reportFlow businessflow.DailyReportFlow,
	cfg config.SchedulerConfig,
) *Scheduler {
	s := &Scheduler{
		users:      users,
		syncFlow:   syncFlow,
		alertFlow:  alertFlow,
		dispatcher: dispatcher,
		reportFlow: reportFlow,
		cfg:        cfg,
	}
	s.initSchedulerLogger()

	s.cron = cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(
			cron.Recover(cron.PrintfLogger(s.logger)),
			cron.SkipIfStillRunning(cron.PrintfLogger(s.logger)),
		),
	)
	return s
}

// initSchedulerLogger writes to stdout and, when a path is configured, a rotated file
func (s *Scheduler) initSchedulerLogger() {
	var out io.Writer = os.Stdout
	if s.cfg.LogFilePath != "" {
		lj := &lumberjack.Logger{
			Filename:   s.cfg.LogFilePath,
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     14,
			Compress:   true,
		}
		s.logWriter = lj
		out = io.MultiWriter(os.Stdout, lj)
	}
	s.logger = log.New(out, "scheduler ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
}

// Start registers the configured jobs and starts the cron loop
func (s *Scheduler) Start(parent context.Context) error {
	s.ctx, s.cancel = context.WithCancel(parent)

	jobs := []struct {
		name string
		spec string
		run  func(ctx context.Context)
	}{
		{"sync", s.cfg.SyncSpec, s.runSync},
		{"detect", s.cfg.DetectSpec, s.runDetect},
		{"morning report", s.cfg.MorningSpec, s.reportJob(models.TimeOfDayMorning)},
		{"afternoon report", s.cfg.AfternoonSpec, s.reportJob(models.TimeOfDayAfternoon)},
		{"evening report", s.cfg.EveningSpec, s.reportJob(models.TimeOfDayEvening)},
	}

	for _, job := range jobs {
		if job.spec == "" {
			continue
		}
		if _, err := s.cron.AddFunc(job.spec, func() { job.run(s.ctx) }); err != nil {
			s.cancel()
			return fmt.Errorf("invalid %s schedule %q: %w", job.name, job.spec, err)
		}
		s.logger.Printf("registered %s job at %q", job.name, job.spec)
	}

	s.cron.Start()
	s.logger.Println("scheduler started")
	return nil
}

// Stop cancels running jobs and waits for them to return
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.cron.Stop().Done()
	s.logger.Println("scheduler stopped")
	if s.logWriter != nil {
		_ = s.logWriter.Close()
	}
}

func (s *Scheduler) runSync(ctx context.Context) {
	userIDs, err := s.users.ListActiveIDs(ctx)
	if err != nil {
		s.logger.Printf("sync: list users failed: %v", err)
		return
	}

	for _, id := range userIDs {
		if ctx.Err() != nil {
			return
		}
		res := s.syncFlow.SyncAccounts(ctx, id, dto.SyncRequest{})
		s.logger.Printf("sync user=%d status=%s accounts=%d campaigns=%d errors=%d",
			id, res.Status, res.AccountsProcessed, res.CampaignsProcessed, len(res.Errors))
	}
}

func (s *Scheduler) runDetect(ctx context.Context) {
	userIDs, err := s.users.ListActiveIDs(ctx)
	if err != nil {
		s.logger.Printf("detect: list users failed: %v", err)
		return
	}

	for _, id := range userIDs {
		if ctx.Err() != nil {
			return
		}
		alerts, evaluated, err := s.alertFlow.Detect(ctx, id)
		if err != nil {
			s.logger.Printf("detect user=%d failed: %v", id, err)
			continue
		}
		sent := 0
		if s.cfg.DispatchAlerts && len(alerts) > 0 {
			sent = s.dispatcher.DispatchAlerts(ctx, id, alerts)
		}
		s.logger.Printf("detect user=%d evaluated=%d alerts=%d sent=%d", id, evaluated, len(alerts), sent)
	}
}

func (s *Scheduler) reportJob(tod models.TimeOfDay) func(ctx context.Context) {
	return func(ctx context.Context) {
		if !s.cfg.SendDailyReport {
			return
		}
		delivered, err := s.reportFlow.RunDailyReports(ctx, tod)
		if err != nil {
			s.logger.Printf("%s reports failed after %d deliveries: %v", tod, delivered, err)
		}
	}
}
