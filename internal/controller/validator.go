package controller

import (
	"sync"

	"teps_backend/internal/model"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterValidators 注册自定义校验规则，需在处理请求前调用
func RegisterValidators() {
	registerOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			_ = v.RegisterValidation("teps_section", validateSection)
		}
	})
}

func validateSection(fl validator.FieldLevel) bool {
	return model.Section(fl.Field().String()).Valid()
}
