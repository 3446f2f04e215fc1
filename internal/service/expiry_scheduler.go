package service

import (
	"context"
	"sync"
	"time"

	"teps_backend/pkg/logger"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// ExpiryScheduler 定时把超时未完成的考试标记为 expired
type ExpiryScheduler struct {
	scheduler *gocron.Scheduler
	exams     *ExamService

	mu       sync.Mutex
	interval time.Duration
	job      *gocron.Job
}

func NewExpiryScheduler(exams *ExamService, interval time.Duration) *ExpiryScheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ExpiryScheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		exams:     exams,
		interval:  interval,
	}
}

func (s *ExpiryScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.schedule(); err != nil {
		return err
	}
	s.scheduler.StartAsync()
	logger.Log.Info("attempt expiry sweep scheduled", zap.Duration("interval", s.interval))
	return nil
}

// SetInterval 配置热更新时调整清理周期，未启动时只记录新周期
func (s *ExpiryScheduler) SetInterval(interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if interval == s.interval {
		return nil
	}
	s.interval = interval
	if s.job == nil {
		return nil
	}

	s.scheduler.RemoveByReference(s.job)
	s.job = nil
	if err := s.schedule(); err != nil {
		return err
	}
	logger.Log.Info("attempt expiry sweep rescheduled", zap.Duration("interval", interval))
	return nil
}

// Interval 当前清理周期
func (s *ExpiryScheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

func (s *ExpiryScheduler) schedule() error {
	job, err := s.scheduler.Every(s.interval).SingletonMode().Do(s.sweep)
	if err != nil {
		return err
	}
	s.job = job
	return nil
}

func (s *ExpiryScheduler) Stop() {
	s.scheduler.Stop()
}

func (s *ExpiryScheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := s.exams.ExpireStale(ctx); err != nil {
		logger.Log.Error("attempt expiry sweep failed", zap.Error(err))
	}
}
