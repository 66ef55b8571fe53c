// Package apperr 定义了核心流程对外暴露的错误类别。
// 所有错误都携带可读信息并按类别包装，调用方使用 errors.Is 判定类别。
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation 表示输入分片为空或记录格式非法。
	ErrValidation = errors.New("validation error")
	// ErrDuplicateKey 表示对同一 (conversation_id, message_index) 的重复提交。
	ErrDuplicateKey = errors.New("duplicate key error")
	// ErrNotFound 表示评分目标不存在任何消息。
	ErrNotFound = errors.New("not found error")
	// ErrGeneration 表示分类服务未返回可用的结构化输出。
	ErrGeneration = errors.New("generation error")
	// ErrStorage 表示存储层的通用失败。
	ErrStorage = errors.New("storage error")
)

// Validationf 构造一条带格式化信息的 ErrValidation。
func Validationf(format string, args ...interface{}) error {
	return wrapf(ErrValidation, format, args...)
}

// DuplicateKeyf 构造一条带格式化信息的 ErrDuplicateKey。
func DuplicateKeyf(format string, args ...interface{}) error {
	return wrapf(ErrDuplicateKey, format, args...)
}

// NotFoundf 构造一条带格式化信息的 ErrNotFound。
func NotFoundf(format string, args ...interface{}) error {
	return wrapf(ErrNotFound, format, args...)
}

// Generationf 构造一条带格式化信息的 ErrGeneration。
func Generationf(format string, args ...interface{}) error {
	return wrapf(ErrGeneration, format, args...)
}

// Storagef 构造一条带格式化信息的 ErrStorage，并保留底层错误链。
func Storagef(err error, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	return fmt.Errorf("%w: %s: %v", ErrStorage, msg, err)
}

func wrapf(kind error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}
