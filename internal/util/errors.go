package util

import (
	"errors"
	"fmt"
)

var (
	ErrPermissionDenied       = errors.New("permission denied")
	ErrQuestionNotFound       = errors.New("question not found")
	ErrExamConfigNotFound     = errors.New("exam config not found")
	ErrAttemptNotFound        = errors.New("attempt not found")
	ErrInvalidAttemptState    = errors.New("invalid attempt state")
	ErrAttemptExpired         = errors.New("attempt expired")
	ErrAnswerAlreadySubmitted = errors.New("answer already submitted")
	ErrQuestionNotInAttempt   = errors.New("question does not belong to this attempt")
	ErrNoQuestionsAvailable   = errors.New("no approved questions available for this exam")
	ErrVersionConflict        = errors.New("concurrent modification, please retry")
)

// ValidationError 请求内容不合法
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// StateError 携带当前状态的非法状态错误，可用 errors.Is(err, ErrInvalidAttemptState) 判断
type StateError struct {
	Current string
	Action  string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s attempt in status %q", e.Action, e.Current)
}

func (e *StateError) Unwrap() error {
	return ErrInvalidAttemptState
}
