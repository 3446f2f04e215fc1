package model

// SectionResult 单个部分的得分情况
type SectionResult struct {
	Section        Section `json:"section"`
	TotalQuestions int     `json:"totalQuestions"`
	CorrectAnswers int     `json:"correctAnswers"`
	Accuracy       float64 `json:"accuracy"`
	TimeSpent      int     `json:"timeSpent"`
	Score          int     `json:"score"`
}

// swagger:model ExamResult
type ExamResult struct {
	TotalScore             int             `json:"totalScore"`
	MaxScore               int             `json:"maxScore"`
	SectionScores          []SectionResult `json:"sectionScores"`
	TotalQuestions         int             `json:"totalQuestions"`
	TotalTimeSpent         int             `json:"totalTimeSpent"`
	AverageTimePerQuestion float64         `json:"averageTimePerQuestion"`
	Percentile             float64         `json:"percentile"`
	EstimatedLevel         string          `json:"estimatedLevel"`
	Strengths              []Section       `json:"strengths"`
	Weaknesses             []Section       `json:"weaknesses"`
	Recommendations        []string        `json:"recommendations"`
}
