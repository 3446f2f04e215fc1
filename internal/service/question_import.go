package service

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"teps_backend/internal/model"
	"teps_backend/internal/util"
	"teps_backend/pkg/logger"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// 导入表格的列顺序，第一行为表头
const (
	colSection = iota
	colQuestionType
	colContent
	colOptions
	colCorrectAnswer
	colExplanation
	colDifficulty
	importColumns
)

// optionSeparator 选项列内多个选项的分隔符
const optionSeparator = "|"

type ImportRowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

type ImportReport struct {
	TotalRows int              `json:"totalRows"`
	Imported  int              `json:"imported"`
	Errors    []ImportRowError `json:"errors"`
}

// ImportQuestions 从 xlsx 第一个工作表批量导入题目，合法行全部以待审核状态写入，
// 不合法的行记录在报告中，不影响其他行
func (s *QuestionService) ImportQuestions(ctx context.Context, creatorID uint, r io.Reader) (*ImportReport, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, util.NewValidationError("file", "failed to open spreadsheet: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, util.NewValidationError("file", "spreadsheet has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}

	report := &ImportReport{Errors: []ImportRowError{}}
	questions := make([]*model.Question, 0, len(rows))
	for i, row := range rows {
		if i == 0 || isBlankRow(row) {
			continue
		}
		report.TotalRows++

		req, err := parseImportRow(row)
		if err == nil {
			var q *model.Question
			q, err = s.newQuestion(creatorID, req)
			if err == nil {
				questions = append(questions, q)
				continue
			}
		}
		report.Errors = append(report.Errors, ImportRowError{Row: i + 1, Message: err.Error()})
	}

	if err := s.Repo.CreateBatch(ctx, questions); err != nil {
		return nil, err
	}
	report.Imported = len(questions)

	logger.Log.Info("questions imported",
		zap.Uint("creatorID", creatorID),
		zap.Int("imported", report.Imported),
		zap.Int("failed", len(report.Errors)))
	return report, nil
}

func parseImportRow(row []string) (QuestionRequest, error) {
	cell := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}
	if len(row) < colCorrectAnswer+1 {
		return QuestionRequest{}, util.NewValidationError("", "expected %d columns, got %d", importColumns, len(row))
	}

	req := QuestionRequest{
		Section:       model.Section(strings.ToLower(cell(colSection))),
		QuestionType:  cell(colQuestionType),
		Content:       cell(colContent),
		CorrectAnswer: cell(colCorrectAnswer),
		Explanation:   cell(colExplanation),
	}
	if opts := cell(colOptions); opts != "" {
		for _, o := range strings.Split(opts, optionSeparator) {
			if o = strings.TrimSpace(o); o != "" {
				req.Options = append(req.Options, o)
			}
		}
	}

	req.DifficultyLevel = 3
	if d := cell(colDifficulty); d != "" {
		level, err := strconv.Atoi(d)
		if err != nil {
			return QuestionRequest{}, util.NewValidationError("difficultyLevel", "not a number: %q", d)
		}
		req.DifficultyLevel = level
	}
	return req, nil
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
