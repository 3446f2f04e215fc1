package service

import (
	"sync"

	"teps_backend/internal/config"
)

// ExamSettings 评分参数的并发安全持有者，配置热更新时整体替换
type ExamSettings struct {
	mu  sync.RWMutex
	cfg config.ExamConfig
}

func NewExamSettings(cfg config.ExamConfig) *ExamSettings {
	return &ExamSettings{cfg: cfg}
}

func (s *ExamSettings) Get() config.ExamConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Update 新配置校验失败时保留旧值
func (s *ExamSettings) Update(cfg config.ExamConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	return nil
}
