package model

import (
	"time"

	"gorm.io/datatypes"
)

// SectionConfig 试卷中一个部分的题量与限时
type SectionConfig struct {
	Section       Section `json:"section" binding:"required,teps_section"`
	QuestionCount int     `json:"questionCount" binding:"required,min=1,max=100"`
	TimeLimit     int     `json:"timeLimit" binding:"min=0"` // 分钟
}

// swagger:model ExamConfig
type ExamConfig struct {
	BaseModel
	Title              string                             `gorm:"size:255;not null" json:"title"`
	Description        string                             `gorm:"type:text" json:"description"`
	Sections           datatypes.JSONSlice[SectionConfig] `gorm:"type:json" json:"sections"`
	TotalTimeLimit     int                                `gorm:"default:0" json:"totalTimeLimit"` // 分钟
	ShuffleQuestions   bool                               `gorm:"not null" json:"shuffleQuestions"`
	AllowReview        bool                               `gorm:"not null" json:"allowReview"`
	AdaptiveDifficulty bool                               `gorm:"not null" json:"adaptiveDifficulty"`
	IsPublished        bool                               `gorm:"default:false;index" json:"isPublished"`
	PublishedAt        *time.Time                         `json:"publishedAt,omitempty"`
	CreatorID          uint                               `gorm:"index;type:bigint unsigned" json:"creatorId"`
}

func (ExamConfig) TableName() string {
	return "exam_configs"
}

// TotalQuestions 各部分题量之和
func (c *ExamConfig) TotalQuestions() int {
	n := 0
	for _, s := range c.Sections {
		n += s.QuestionCount
	}
	return n
}

// MaxScore 每个部分满分相同，总满分 = 部分满分 × 部分数
func (c *ExamConfig) MaxScore(sectionMax int) int {
	return sectionMax * len(c.Sections)
}
