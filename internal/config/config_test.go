package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExamConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultExamConfig().Validate())

	cases := []struct {
		name   string
		mutate func(*ExamConfig)
	}{
		{"zero attempt ttl", func(e *ExamConfig) { e.AttemptTTLHours = 0 }},
		{"zero min samples", func(e *ExamConfig) { e.StatsMinSamples = 0 }},
		{"zero sweep interval", func(e *ExamConfig) { e.ExpirySweepSeconds = 0 }},
		{"zero stats retries", func(e *ExamConfig) { e.StatsUpdateRetries = 0 }},
		{"negative cache minutes", func(e *ExamConfig) { e.ResultCacheMinutes = -1 }},
		{"percentile above 100", func(e *ExamConfig) { e.DefaultPercentile = 120 }},
		{"zero section max", func(e *ExamConfig) { e.SectionMaxScore = 0 }},
		{"weakness above strength", func(e *ExamConfig) { e.WeaknessThreshold = 90 }},
		{"bands not increasing", func(e *ExamConfig) {
			e.LevelBands = []LevelBand{{MaxScore: 200, Label: "a"}, {MaxScore: 100, Label: "b"}}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := DefaultExamConfig()
			tc.mutate(&e)
			assert.Error(t, e.Validate())
		})
	}
}

func TestExamConfig_Durations(t *testing.T) {
	e := DefaultExamConfig()
	assert.Equal(t, 24*time.Hour, e.AttemptTTL())
	assert.Equal(t, time.Minute, e.ExpirySweepInterval())
	assert.Equal(t, time.Hour, e.ResultCacheTTL())
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0644))
	return dir
}

func TestLoadConfig_ExamDefaults(t *testing.T) {
	dir := writeConfig(t, "storage:\n  type: minio\nexam:\n  expiry_sweep_seconds: 30\n")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Exam.ExpirySweepInterval())
	assert.Equal(t, 24, cfg.Exam.AttemptTTLHours)
	assert.Len(t, cfg.Exam.LevelBands, 4)
}

func TestLoadConfig_RejectsInvalidExam(t *testing.T) {
	dir := writeConfig(t, "storage:\n  type: minio\nexam:\n  attempt_ttl_hours: 0\n")

	_, err := LoadConfig(dir)
	assert.ErrorContains(t, err, "attempt_ttl_hours")
}
