package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"leavehub/internal/domain/employee"
	"leavehub/internal/domain/leave"
	"leavehub/internal/platform/config"
)

const (
	JobAccrual  = "leave_accrual"
	JobRollover = "leave_rollover"
)

// Service runs the periodic ledger work: monthly accruals and the January
// year rollover. Admin endpoints reuse the same paths through RunAccrualsNow
// and RunRolloverNow so manual and scheduled runs are recorded identically.
type Service struct {
	DB        *pgxpool.Pool
	Store     leave.Store
	Ledger    *leave.Ledger
	Calendar  *leave.Calendar
	Directory employee.Directory
	Cfg       config.Config

	queue chan job
}

type job struct {
	Type string
	Run  func(context.Context) (any, error)
}

func New(db *pgxpool.Pool, store leave.Store, ledger *leave.Ledger, calendar *leave.Calendar,
	directory employee.Directory, cfg config.Config) *Service {
	return &Service{
		DB:        db,
		Store:     store,
		Ledger:    ledger,
		Calendar:  calendar,
		Directory: directory,
		Cfg:       cfg,
		queue:     make(chan job, 32),
	}
}

func (s *Service) Start(ctx context.Context) {
	go s.worker(ctx)
	if s.Cfg.AccrualInterval > 0 {
		go s.scheduleAccruals(ctx, s.Cfg.AccrualInterval)
	}
	if s.Cfg.RolloverInterval > 0 {
		go s.scheduleRollover(ctx, s.Cfg.RolloverInterval)
	}
}

// RunAccrualsNow applies pending monthly accruals immediately.
func (s *Service) RunAccrualsNow(ctx context.Context) (leave.AccrualSummary, error) {
	details, err := s.runJob(ctx, job{Type: JobAccrual, Run: func(ctx context.Context) (any, error) {
		return leave.RunAccruals(ctx, s.Store, s.Ledger, s.Directory, time.Now().UTC())
	}})
	summary, _ := details.(leave.AccrualSummary)
	return summary, err
}

// RunRolloverNow opens ledger rows for year, carrying forward earned leave
// and copying recurring holidays onto the new calendar.
func (s *Service) RunRolloverNow(ctx context.Context, year int) (leave.RolloverSummary, error) {
	var summary leave.RolloverSummary
	_, err := s.runJob(ctx, job{Type: JobRollover, Run: func(ctx context.Context) (any, error) {
		var err error
		summary, err = s.rollover(ctx, year)
		return summary, err
	}})
	return summary, err
}

func (s *Service) rollover(ctx context.Context, year int) (leave.RolloverSummary, error) {
	summary, err := leave.RunYearRollover(ctx, s.Store, s.Ledger, s.Directory, year)
	if err != nil {
		return summary, err
	}
	copied, err := s.Calendar.MaterializeRecurring(ctx, year)
	if err != nil {
		return summary, err
	}
	slog.Info("year rollover complete", "year", year, "rowsOpened", summary.RowsOpened, "holidaysCopied", copied)
	return summary, nil
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "err", err)
			}
		}
	}
}

func (s *Service) enqueue(j job) {
	select {
	case s.queue <- j:
	default:
		slog.Warn("job queue full", "jobType", j.Type)
	}
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	runID := s.openRun(ctx, j.Type)

	details, err := j.Run(ctx)
	status := "completed"
	if err != nil {
		status = "failed"
	}
	s.closeRun(ctx, runID, status, details)
	return details, err
}

func (s *Service) openRun(ctx context.Context, jobType string) string {
	if s.DB == nil {
		return ""
	}
	runID := ""
	if err := s.DB.QueryRow(ctx, `
    INSERT INTO job_runs (job_type, status)
    VALUES ($1, 'running')
    RETURNING id
  `, jobType).Scan(&runID); err != nil {
		slog.Warn("job run insert failed", "jobType", jobType, "err", err)
	}
	return runID
}

func (s *Service) closeRun(ctx context.Context, runID, status string, details any) {
	if s.DB == nil || runID == "" {
		return
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		slog.Warn("job details marshal failed", "err", err)
		detailsJSON = []byte("{}")
	}
	if _, err := s.DB.Exec(ctx, `
    UPDATE job_runs
    SET status = $1, details_json = $2, completed_at = now()
    WHERE id = $3
  `, status, detailsJSON, runID); err != nil {
		slog.Warn("job run update failed", "err", err)
	}
}

func (s *Service) scheduleAccruals(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.enqueue(job{Type: JobAccrual, Run: func(ctx context.Context) (any, error) {
				return leave.RunAccruals(ctx, s.Store, s.Ledger, s.Directory, time.Now().UTC())
			}})
		}
	}
}

// scheduleRollover fires on every tick but only does work in January; the
// rollover itself is idempotent, so repeated ticks inside the month are
// no-ops after the first.
func (s *Service) scheduleRollover(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now().UTC()
			if now.Month() != time.January {
				continue
			}
			year := now.Year()
			s.enqueue(job{Type: JobRollover, Run: func(ctx context.Context) (any, error) {
				return s.rollover(ctx, year)
			}})
		}
	}
}
