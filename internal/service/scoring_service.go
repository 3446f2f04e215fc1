package service

import (
	"fmt"
	"math"
	"strings"

	"teps_backend/internal/model"
	"teps_backend/internal/util"
)

const (
	recommendReviewExplanations = "Review explanations for incorrectly answered questions"
	recommendRegularPractice    = "Take regular practice tests to track your progress"
	recommendFocusPrefix        = "Focus on weak areas: "
)

// ScoringService 根据试卷配置与作答记录计算成绩报告，不访问存储
type ScoringService struct {
	settings *ExamSettings
}

func NewScoringService(settings *ExamSettings) *ScoringService {
	return &ScoringService{settings: settings}
}

// CalculateResult 计算成绩。每个部分按 150 分归一化，总分为各部分之和。
// Percentile 先填默认值，由调用方按排名覆盖。
func (s *ScoringService) CalculateResult(sections []model.SectionConfig, answers []model.ExamAttemptAnswer) (*model.ExamResult, error) {
	cfg := s.settings.Get()

	bySection := make(map[model.Section][]model.ExamAttemptAnswer, len(sections))
	configured := make(map[model.Section]bool, len(sections))
	for _, sc := range sections {
		configured[sc.Section] = true
	}
	for _, a := range answers {
		if !configured[a.Section] {
			return nil, util.NewValidationError("answers", "answer to question %d belongs to section %q which is not part of this exam", a.QuestionID, a.Section)
		}
		bySection[a.Section] = append(bySection[a.Section], a)
	}

	result := &model.ExamResult{
		MaxScore:        cfg.SectionMaxScore * len(sections),
		SectionScores:   make([]model.SectionResult, 0, len(sections)),
		Percentile:      cfg.DefaultPercentile,
		Strengths:       []model.Section{},
		Weaknesses:      []model.Section{},
		Recommendations: []string{},
	}

	for _, sc := range sections {
		sr := scoreSection(sc.Section, bySection[sc.Section], cfg.SectionMaxScore)
		result.SectionScores = append(result.SectionScores, sr)
		result.TotalScore += sr.Score
		result.TotalQuestions += sr.TotalQuestions
		result.TotalTimeSpent += sr.TimeSpent

		// 没有作答的部分不计入强弱项
		if sr.TotalQuestions == 0 {
			continue
		}
		if sr.Accuracy >= cfg.StrengthThreshold {
			result.Strengths = append(result.Strengths, sr.Section)
		} else if sr.Accuracy < cfg.WeaknessThreshold {
			result.Weaknesses = append(result.Weaknesses, sr.Section)
		}
	}

	if result.TotalQuestions > 0 {
		result.AverageTimePerQuestion = float64(result.TotalTimeSpent) / float64(result.TotalQuestions)
	}

	result.EstimatedLevel = s.EstimateLevel(result.TotalScore)
	result.Recommendations = buildRecommendations(result.Weaknesses)

	return result, nil
}

func scoreSection(section model.Section, answers []model.ExamAttemptAnswer, maxScore int) model.SectionResult {
	sr := model.SectionResult{
		Section:        section,
		TotalQuestions: len(answers),
	}
	for _, a := range answers {
		if a.IsCorrect {
			sr.CorrectAnswers++
		}
		sr.TimeSpent += a.TimeSpent
	}
	if sr.TotalQuestions == 0 {
		return sr
	}
	sr.Accuracy = float64(sr.CorrectAnswers) * 100 / float64(sr.TotalQuestions)
	sr.Score = int(math.Round(float64(sr.CorrectAnswers) * float64(maxScore) / float64(sr.TotalQuestions)))
	return sr
}

// EstimateLevel 总分落在第一个 MaxScore 大于它的区间，超过所有区间时返回 TopLevel
func (s *ScoringService) EstimateLevel(totalScore int) string {
	cfg := s.settings.Get()
	for _, band := range cfg.LevelBands {
		if totalScore < band.MaxScore {
			return band.Label
		}
	}
	return cfg.TopLevel
}

func buildRecommendations(weaknesses []model.Section) []string {
	recs := make([]string, 0, 3)
	if len(weaknesses) > 0 {
		names := make([]string, len(weaknesses))
		for i, w := range weaknesses {
			names[i] = string(w)
		}
		recs = append(recs, fmt.Sprintf("%s%s", recommendFocusPrefix, strings.Join(names, ", ")))
	}
	return append(recs, recommendReviewExplanations, recommendRegularPractice)
}
