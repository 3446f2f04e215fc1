package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQuestion(level int) *Question {
	return NewQuestion(SectionGrammar, "multiple_choice", "She ___ to school every day.", "goes", level)
}

func TestCalculateDifficulty_ColdStartReturnsInitialLevel(t *testing.T) {
	q := newTestQuestion(4)
	q.Statistics.TimesUsed = 9
	q.Statistics.TimesCorrect = 9

	assert.Equal(t, 4.0, q.CalculateDifficulty(10))
}

func TestUpdateStatistics_ColdStartKeepsInitialLevel(t *testing.T) {
	q := newTestQuestion(2)
	for i := 0; i < 9; i++ {
		q.UpdateStatistics(i%3 == 0, float64(i*7), "B1-B2 (Intermediate)", 10)
		assert.Equal(t, 2.0, q.Statistics.Difficulty)
	}
}

func TestCalculateDifficulty_IRTEstimate(t *testing.T) {
	q := newTestQuestion(3)
	q.Statistics.TimesUsed = 20
	q.Statistics.TimesCorrect = 15

	// p = 0.75, c = 0.25 -> b = -ln(0.5 / 0.25) = -ln 2
	assert.InDelta(t, -math.Ln2, q.CalculateDifficulty(10), 1e-9)
}

func TestCalculateDifficulty_Clamped(t *testing.T) {
	tests := []struct {
		name    string
		used    int
		correct int
		want    float64
	}{
		{"all correct", 20, 20, MinIRTDifficulty},
		{"below guessing", 20, 2, MaxIRTDifficulty},
		{"exactly guessing", 20, 5, MaxIRTDifficulty},
		{"nearly all correct", 100, 97, MinIRTDifficulty},
		{"just above guessing", 100, 26, MaxIRTDifficulty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newTestQuestion(3)
			q.Statistics.TimesUsed = tt.used
			q.Statistics.TimesCorrect = tt.correct
			got := q.CalculateDifficulty(10)
			assert.Equal(t, tt.want, got)
			assert.False(t, math.IsNaN(got))
		})
	}
}

func TestUpdateStatistics_CountersAreMonotonic(t *testing.T) {
	q := newTestQuestion(3)
	for i := 1; i <= 25; i++ {
		before := q.Statistics.TimesUsed
		q.UpdateStatistics(i%2 == 0, 30, "unrated", 10)

		s := q.Statistics
		assert.Equal(t, before+1, s.TimesUsed)
		assert.Equal(t, s.TimesUsed, s.TimesCorrect+s.TimesIncorrect)
	}
}

func TestUpdateStatistics_IncrementalAverageTime(t *testing.T) {
	q := newTestQuestion(3)
	q.UpdateStatistics(true, 10, "unrated", 10)
	q.UpdateStatistics(false, 20, "unrated", 10)
	q.UpdateStatistics(true, 60, "unrated", 10)

	assert.InDelta(t, 30.0, q.Statistics.AverageTimeSpent, 1e-9)
}

func TestUpdateStatistics_PerformanceByLevel(t *testing.T) {
	q := newTestQuestion(3)
	q.UpdateStatistics(true, 10, "A1-A2 (Beginner)", 10)
	q.UpdateStatistics(false, 10, "A1-A2 (Beginner)", 10)
	q.UpdateStatistics(true, 10, "C1-C2 (Advanced)", 10)

	perf := q.Statistics.PerformanceByLevel
	require.Len(t, perf, 2)
	assert.Equal(t, "A1-A2 (Beginner)", perf[0].Level)
	assert.Equal(t, 2, perf[0].SampleSize)
	assert.InDelta(t, 0.5, perf[0].CorrectRate, 1e-9)
	assert.Equal(t, 1, perf[1].SampleSize)
	assert.Equal(t, 1.0, perf[1].CorrectRate)

	// 少于三个分组时不重新计算区分度
	assert.Equal(t, 1.0, q.Statistics.Discrimination)
}

func TestUpdateStatistics_Discrimination(t *testing.T) {
	q := newTestQuestion(3)
	q.UpdateStatistics(false, 10, "low", 10)
	q.UpdateStatistics(true, 10, "mid", 10)
	q.UpdateStatistics(true, 10, "high", 10)

	// rates {0, 1, 1}: variance = 2/9
	assert.InDelta(t, 4.0/9.0, q.Statistics.Discrimination, 1e-9)
	assert.LessOrEqual(t, q.Statistics.Discrimination, MaxDiscrimination)
}

func TestVariance(t *testing.T) {
	assert.Equal(t, 0.0, Variance(nil))
	assert.Equal(t, 0.0, Variance([]float64{0.4, 0.4}))
	assert.InDelta(t, 0.25, Variance([]float64{0, 1}), 1e-9)
}

func TestQuestion_CheckAnswer(t *testing.T) {
	q := NewQuestion(SectionGrammar, "multiple_choice", "c", "B", 2)
	assert.True(t, q.CheckAnswer("B"))
	assert.True(t, q.CheckAnswer(" b "))
	assert.False(t, q.CheckAnswer("C"))
	assert.False(t, q.CheckAnswer(""))
}
