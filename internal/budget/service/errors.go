package service

import (
	"errors"
	"fmt"
)

// 错误分类：handler据此映射响应码。
// 校验全部发生在写入之前，事务开始后只有提交或整体回滚。
var (
	// ErrNotFound 引用的会话/分类/期间不存在
	ErrNotFound = errors.New("not found")
	// ErrConflict 期间键等唯一资源已存在
	ErrConflict = errors.New("conflict")
	// ErrForbidden 非所有者执行需要所有权的操作
	ErrForbidden = errors.New("forbidden")
)

// ValidationError 输入形状/取值错误，拒绝且不产生任何写入
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationf(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsValidation 判断是否为校验错误
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
