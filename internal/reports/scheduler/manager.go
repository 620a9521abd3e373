package scheduler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"paymang/paymang-backend/internal/reports"
	"paymang/paymang-backend/internal/reports/export"
)

const (
	JobApproval = "approval"
	JobExport   = "payout_export"
)

// Approver moves pending commissions past the refund window to approved
type Approver interface {
	ApproveDue(ctx context.Context, before time.Time) (int, error)
}

// Exporter renders the payouts of a period
type Exporter interface {
	Export(ctx context.Context, period reports.Period, agentID string, format export.Format, w io.Writer) error
}

// Config configures the payout scheduler. Specs use the six-field cron
// syntax with a leading seconds field.
type Config struct {
	ApprovalSpec  string        `json:"approval_spec"`
	ExportSpec    string        `json:"export_spec"`
	ApprovalDelay time.Duration `json:"approval_delay"`
	Format        export.Format `json:"format"`
	JobTimeout    time.Duration `json:"job_timeout"`
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		ApprovalSpec:  "0 0 * * * *",
		ExportSpec:    "0 0 6 1 * *",
		ApprovalDelay: 7 * 24 * time.Hour,
		Format:        export.FormatXLSX,
		JobTimeout:    30 * time.Minute,
	}
}

// ScheduleManager runs the hourly approval sweep and the monthly payout export
type ScheduleManager struct {
	cron     *cron.Cron
	jobs     map[string]cron.EntryID
	approver Approver
	exporter Exporter
	delivery *DeliveryManager
	config   Config
	logger   *zap.Logger
	now      func() time.Time
	mu       sync.RWMutex
	running  bool
}

// NewScheduleManager creates a new schedule manager
func NewScheduleManager(
	approver Approver,
	exporter Exporter,
	delivery *DeliveryManager,
	config Config,
	logger *zap.Logger,
) *ScheduleManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Format == "" {
		config.Format = export.FormatXLSX
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = 30 * time.Minute
	}
	return &ScheduleManager{
		cron:     cron.New(cron.WithSeconds()),
		jobs:     make(map[string]cron.EntryID),
		approver: approver,
		exporter: exporter,
		delivery: delivery,
		config:   config,
		logger:   logger,
		now:      time.Now,
	}
}

// Start registers both jobs and starts the cron scheduler. Jobs stop
// receiving new runs once ctx is cancelled.
func (m *ScheduleManager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return errors.New("schedule manager already running")
	}

	if err := m.addJob(ctx, JobApproval, m.config.ApprovalSpec, func(ctx context.Context) error {
		_, err := m.RunApproval(ctx)
		return err
	}); err != nil {
		return err
	}
	if err := m.addJob(ctx, JobExport, m.config.ExportSpec, func(ctx context.Context) error {
		_, err := m.RunExport(ctx, reports.PreviousMonth(m.now()))
		return err
	}); err != nil {
		m.cron.Remove(m.jobs[JobApproval])
		delete(m.jobs, JobApproval)
		return err
	}

	m.logger.Info("Starting payout scheduler",
		zap.String("approval_spec", m.config.ApprovalSpec),
		zap.String("export_spec", m.config.ExportSpec))
	m.cron.Start()
	m.running = true
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (m *ScheduleManager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	m.logger.Info("Stopping payout scheduler")
	ctx := m.cron.Stop()
	<-ctx.Done()

	m.running = false
}

func (m *ScheduleManager) addJob(ctx context.Context, name, spec string, run func(context.Context) error) error {
	entryID, err := m.cron.AddFunc(spec, func() {
		if ctx.Err() != nil {
			return
		}
		jobCtx, cancel := context.WithTimeout(ctx, m.config.JobTimeout)
		defer cancel()

		start := time.Now()
		if err := run(jobCtx); err != nil {
			m.logger.Error("Scheduled job failed", zap.String("job", name), zap.Error(err))
			return
		}
		m.logger.Info("Scheduled job completed",
			zap.String("job", name),
			zap.Duration("duration", time.Since(start)))
	})
	if err != nil {
		return fmt.Errorf("failed to add %s job: %w", name, err)
	}
	m.jobs[name] = entryID
	return nil
}

// RunApproval approves pending commissions created before now minus the approval delay
func (m *ScheduleManager) RunApproval(ctx context.Context) (int, error) {
	before := m.now().Add(-m.config.ApprovalDelay)
	n, err := m.approver.ApproveDue(ctx, before)
	if err != nil {
		return n, fmt.Errorf("approval sweep: %w", err)
	}
	m.logger.Info("Approval sweep finished", zap.Int("approved", n), zap.Time("before", before))
	return n, nil
}

// RunExport renders the payouts of period and delivers the file
func (m *ScheduleManager) RunExport(ctx context.Context, period reports.Period) (*DeliveryResult, error) {
	var buf bytes.Buffer
	if err := m.exporter.Export(ctx, period, "", m.config.Format, &buf); err != nil {
		return nil, fmt.Errorf("payout export %s: %w", period.Label(), err)
	}
	return m.delivery.Deliver(ctx, reports.FileName(period, m.config.Format), buf.Bytes(), m.config.Format.ContentType())
}

// JobStatus represents the status of a scheduled job
type JobStatus struct {
	Name    string    `json:"name"`
	NextRun time.Time `json:"next_run"`
	PrevRun time.Time `json:"prev_run"`
}

// GetJobStatus returns the status of a scheduled job
func (m *ScheduleManager) GetJobStatus(name string) (*JobStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entryID, ok := m.jobs[name]
	if !ok {
		return nil, fmt.Errorf("job %q not found", name)
	}

	entry := m.cron.Entry(entryID)
	return &JobStatus{Name: name, NextRun: entry.Next, PrevRun: entry.Prev}, nil
}

// ValidateCronExpression validates a six-field cron expression
func ValidateCronExpression(expr string) error {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	_, err := parser.Parse(expr)
	return err
}
