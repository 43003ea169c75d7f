package errors

import (
	"errors"
	"fmt"
)

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// ErrDuplicate 唯一约束冲突
var ErrDuplicate = errors.New("记录已存在")

// ConflictError 版本冲突，携带存储中的当前记录
// 调用方应使用 Current 的版本号重新提交，而不是自行推算版本
type ConflictError struct {
	Current interface{}
	Reason  string
	// Cause 用于区分冲突类别，为空时视为 ErrOptimisticLock
	Cause error
}

// NewConflict 创建版本冲突错误
func NewConflict(current interface{}, reason string) *ConflictError {
	return &ConflictError{Current: current, Reason: reason}
}

func (e *ConflictError) Error() string {
	if e.Reason == "" {
		return ErrOptimisticLock.Error()
	}
	return fmt.Sprintf("%s: %s", ErrOptimisticLock.Error(), e.Reason)
}

func (e *ConflictError) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	return ErrOptimisticLock
}

// AsConflict 提取冲突错误
func AsConflict(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
