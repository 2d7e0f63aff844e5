package services

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// 业务错误，controller层据此映射HTTP状态码
var (
	ErrNotFound          = errors.New("resource not found")
	ErrPermission        = errors.New("permission denied")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrConflict          = errors.New("duplicate resource")
)

// ValidationError 参数校验错误，Reason 会原样返回给调用方
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// NewValidationError 构造参数校验错误
func NewValidationError(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// isDuplicateKeyErr 判断唯一索引冲突
// TranslateError 打开时gorm会归一化为ErrDuplicatedKey，这里同时兜底匹配
// mysql和sqlite的原始报错文本
func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") || strings.Contains(msg, "UNIQUE constraint failed")
}
