package model

import (
	"encoding/json"
	"math"
	"strings"

	"gorm.io/datatypes"
)

type Section string

const (
	SectionListening  Section = "listening"
	SectionVocabulary Section = "vocabulary"
	SectionGrammar    Section = "grammar"
	SectionReading    Section = "reading"
)

// Sections 官方考试的四个部分，按考试顺序
var Sections = []Section{SectionListening, SectionVocabulary, SectionGrammar, SectionReading}

func (s Section) Valid() bool {
	switch s {
	case SectionListening, SectionVocabulary, SectionGrammar, SectionReading:
		return true
	}
	return false
}

type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

func (s ReviewStatus) Valid() bool {
	return s == ReviewPending || s == ReviewApproved || s == ReviewRejected
}

const (
	MinDifficultyLevel = 1
	MaxDifficultyLevel = 5

	// IRT 难度参数 b 的取值范围
	MinIRTDifficulty = -3.0
	MaxIRTDifficulty = 3.0

	MaxDiscrimination = 2.0
	DefaultGuessing   = 0.25

	// 至少需要多少个水平分组才计算区分度
	minLevelBucketsForDiscrimination = 3
)

// LevelPerformance 某一用户水平分组在该题上的表现
type LevelPerformance struct {
	Level       string  `json:"level"`
	CorrectRate float64 `json:"correctRate"`
	SampleSize  int     `json:"sampleSize"`
}

// QuestionStatistics 题目作答统计，嵌入 questions 表（列前缀 stats_）
type QuestionStatistics struct {
	TimesUsed          int                                   `gorm:"default:0" json:"timesUsed"`
	TimesCorrect       int                                   `gorm:"default:0" json:"timesCorrect"`
	TimesIncorrect     int                                   `gorm:"default:0" json:"timesIncorrect"`
	AverageTimeSpent   float64                               `gorm:"default:0" json:"averageTimeSpent"`
	Difficulty         float64                               `gorm:"default:0" json:"difficulty"`
	Discrimination     float64                               `gorm:"default:1" json:"discrimination"`
	Guessing           float64                               `gorm:"default:0.25" json:"guessing"`
	PerformanceByLevel datatypes.JSONSlice[LevelPerformance] `gorm:"type:json" json:"performanceByLevel"`
}

// swagger:model Question
type Question struct {
	BaseModel
	Section         Section            `gorm:"size:20;index:idx_question_pool,priority:2;not null" json:"section"`
	QuestionType    string             `gorm:"size:50;index:idx_question_pool,priority:3" json:"questionType"` // multiple_choice, dialogue, passage ...
	Content         string             `gorm:"type:text;not null" json:"content"`
	Options         datatypes.JSON     `gorm:"type:json" json:"options"`
	CorrectAnswer   string             `gorm:"size:255;not null" json:"-"`
	Explanation     string             `gorm:"type:text" json:"explanation"`
	AudioURL        string             `gorm:"size:255" json:"audioUrl,omitempty"`
	AudioDuration   float64            `gorm:"default:0" json:"audioDuration,omitempty"` // 秒
	DifficultyLevel int                `gorm:"default:3;index:idx_question_pool,priority:4" json:"difficultyLevel"`
	ReviewStatus    ReviewStatus       `gorm:"size:20;default:'pending';index:idx_question_pool,priority:1" json:"reviewStatus"`
	ReviewNote      string             `gorm:"type:text" json:"reviewNote,omitempty"`
	CreatorID       uint               `gorm:"index;type:bigint unsigned" json:"creatorId"`
	Statistics      QuestionStatistics `gorm:"embedded;embeddedPrefix:stats_" json:"statistics"`
	Version         int                `gorm:"default:0;not null" json:"-"`
}

func (Question) TableName() string {
	return "questions"
}

// NewQuestion 新题目默认待审核，统计参数取冷启动值
func NewQuestion(section Section, questionType, content, correctAnswer string, difficultyLevel int) *Question {
	return &Question{
		Section:         section,
		QuestionType:    questionType,
		Content:         content,
		CorrectAnswer:   correctAnswer,
		DifficultyLevel: difficultyLevel,
		ReviewStatus:    ReviewPending,
		Statistics: QuestionStatistics{
			Discrimination:     1,
			Guessing:           DefaultGuessing,
			Difficulty:         float64(difficultyLevel),
			PerformanceByLevel: datatypes.JSONSlice[LevelPerformance]{},
		},
	}
}

// OptionList 解析选项 JSON 数组
func (q *Question) OptionList() []string {
	if len(q.Options) == 0 {
		return nil
	}
	var opts []string
	if err := json.Unmarshal(q.Options, &opts); err != nil {
		return nil
	}
	return opts
}

// CheckAnswer 忽略首尾空白与大小写
func (q *Question) CheckAnswer(selected string) bool {
	return NormalizeAnswer(selected) == NormalizeAnswer(q.CorrectAnswer)
}

func NormalizeAnswer(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// UpdateStatistics 记录一次作答结果，并重新估计难度与区分度。
// minSamples 为冷启动阈值，timeSpent 单位为秒。
func (q *Question) UpdateStatistics(isCorrect bool, timeSpent float64, userLevel string, minSamples int) {
	s := &q.Statistics
	if timeSpent < 0 {
		timeSpent = 0
	}

	s.TimesUsed++
	if isCorrect {
		s.TimesCorrect++
	} else {
		s.TimesIncorrect++
	}

	n := float64(s.TimesUsed)
	s.AverageTimeSpent = (s.AverageTimeSpent*(n-1) + timeSpent) / n

	outcome := 0.0
	if isCorrect {
		outcome = 1
	}
	found := false
	for i := range s.PerformanceByLevel {
		p := &s.PerformanceByLevel[i]
		if p.Level != userLevel {
			continue
		}
		p.SampleSize++
		m := float64(p.SampleSize)
		p.CorrectRate = (p.CorrectRate*(m-1) + outcome) / m
		found = true
		break
	}
	if !found {
		s.PerformanceByLevel = append(s.PerformanceByLevel, LevelPerformance{
			Level:       userLevel,
			CorrectRate: outcome,
			SampleSize:  1,
		})
	}

	s.Difficulty = q.CalculateDifficulty(minSamples)

	if len(s.PerformanceByLevel) >= minLevelBucketsForDiscrimination {
		rates := make([]float64, len(s.PerformanceByLevel))
		for i, p := range s.PerformanceByLevel {
			rates[i] = p.CorrectRate
		}
		s.Discrimination = math.Min(MaxDiscrimination, 2*Variance(rates))
	}
}

// CalculateDifficulty 样本不足 minSamples 时返回人工设定的难度等级，
// 否则按 b = -ln((p - c) / (1 - p)) 估计，并截断到 [-3, 3]。
func (q *Question) CalculateDifficulty(minSamples int) float64 {
	s := q.Statistics
	if s.TimesUsed < minSamples || s.TimesUsed == 0 {
		return float64(q.DifficultyLevel)
	}

	guessing := s.Guessing
	if guessing < 0 || guessing >= 1 {
		guessing = DefaultGuessing
	}

	p := float64(s.TimesCorrect) / float64(s.TimesUsed)
	// 正确率不高于猜测概率时视为最难，全部答对视为最易
	if p <= guessing {
		return MaxIRTDifficulty
	}
	if p >= 1 {
		return MinIRTDifficulty
	}

	b := -math.Log((p - guessing) / (1 - p))
	return clamp(b, MinIRTDifficulty, MaxIRTDifficulty)
}

// CorrectRate 总体正确率，未被使用过时为 0
func (s QuestionStatistics) CorrectRate() float64 {
	if s.TimesUsed == 0 {
		return 0
	}
	return float64(s.TimesCorrect) / float64(s.TimesUsed)
}

// Variance 总体方差
func Variance(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	var sq float64
	for _, x := range xs {
		d := x - mean
		sq += d * d
	}
	return sq / float64(len(xs))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
