package scoring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"symbio/internal/store"
	"symbio/pkg/logger"
	"symbio/pkg/metrics"
	"symbio/pkg/otel"
	"symbio/pkg/runlock"
	"symbio/pkg/trace"
)

// JobName 也是 run-lock 的键名
const JobName = "credibility-scoring"

// ErrSkipped 另一个实例正在运行
var ErrSkipped = errors.New("scoring run skipped: lock held")

type Job struct {
	store   store.Store
	locker  runlock.Locker
	lockTTL time.Duration
	logger  *zap.Logger
}

func NewJob(st store.Store, locker runlock.Locker, lockTTL time.Duration, logger *zap.Logger) *Job {
	if lockTTL <= 0 {
		lockTTL = 10 * time.Minute
	}
	return &Job{store: st, locker: locker, lockTTL: lockTTL, logger: logger}
}

// Run 在一个事务中重算全部 freelancer 的信誉分，返回更新的数量
func (j *Job) Run(ctx context.Context) (int, error) {
	ctx, traceID := trace.Ensure(ctx)
	log := j.logger.With(zap.String("trace_id", traceID), zap.String("job", JobName))

	lease, err := j.locker.Acquire(ctx, JobName, j.lockTTL)
	if errors.Is(err, runlock.ErrHeld) {
		log.Info("Scoring run skipped, lock held by another run")
		metrics.RecordScoringRun("skipped", 0)
		return 0, ErrSkipped
	}
	if err != nil {
		metrics.RecordScoringRun("error", 0)
		return 0, err
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			log.Warn("Failed to release scoring lock", zap.Error(err))
		}
	}()

	// 运行期间持续续期；续期失败时 ctx 被取消，事务回滚
	ctx, stop := runlock.KeepAlive(ctx, lease, j.lockTTL)
	defer stop()

	ctx, span := otel.StartSpan(ctx, "scoring.run")
	defer span.End()

	start := time.Now()
	updated := 0
	err = j.store.InTx(ctx, func(tx store.Tx) error {
		inputs, err := tx.ListScoringInputs(ctx)
		if err != nil {
			return fmt.Errorf("failed to load scoring inputs: %w", err)
		}
		for _, in := range inputs {
			if err := tx.UpdateCredibilityScore(ctx, in.FreelancerID, Score(in)); err != nil {
				return fmt.Errorf("failed to update score for user %d: %w", in.FreelancerID, err)
			}
		}
		updated = len(inputs)
		return nil
	})
	if err != nil {
		if cause := context.Cause(ctx); errors.Is(cause, runlock.ErrLost) {
			err = fmt.Errorf("%w (%v)", cause, err)
		}
		span.RecordError(err)
		metrics.RecordScoringRun("error", 0)
		log.Error("Scoring run failed", zap.Error(err))
		return 0, err
	}

	metrics.RecordScoringRun("ok", updated)
	log.Info("Scoring run finished",
		zap.Int("profiles", updated),
		zap.Duration("duration", time.Since(start)),
	)
	return updated, nil
}

// Scheduler 周期性执行 Job，同一进程内单例
type Scheduler struct {
	scheduler gocron.Scheduler
	job       *Job
	interval  time.Duration
	logger    *zap.Logger
}

func NewScheduler(job *Job, interval time.Duration, logger *zap.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{scheduler: s, job: job, interval: interval, logger: logger}, nil
}

// Run 注册任务并阻塞到 ctx 结束
func (s *Scheduler) Run(ctx context.Context) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() {
			// 错误已在 Job.Run 中记录
			_, _ = s.job.Run(ctx)
		}),
		gocron.WithName(JobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to register job %s: %w", JobName, err)
	}

	s.scheduler.Start()
	logger.WithTrace(ctx, s.logger).Info("Scoring scheduler started", zap.Duration("interval", s.interval))

	<-ctx.Done()
	if err := s.scheduler.Shutdown(); err != nil {
		s.logger.Warn("Failed to shutdown scheduler", zap.Error(err))
	}
	s.logger.Info("Scoring scheduler stopped")
	return nil
}
