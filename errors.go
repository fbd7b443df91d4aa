package lotterysim

import (
	"errors"
	"fmt"
	"runtime"
	"time"
)

// ErrorCode 错误代码类型
type ErrorCode string

// 错误代码常量
const (
	// 系统级错误 (1000-1999)
	ErrCodeSystem                 ErrorCode = "LOTTERY_1000"
	ErrCodeConfigInvalid          ErrorCode = "LOTTERY_1004"
	ErrCodeFetchTransport         ErrorCode = "LOTTERY_1100"
	ErrCodeFetchValidation        ErrorCode = "LOTTERY_1101"
	ErrCodeFetchAttemptsExhausted ErrorCode = "LOTTERY_1102"
	ErrCodeFetchCancelled         ErrorCode = "LOTTERY_1103"
	ErrCodeJackpotMissing         ErrorCode = "LOTTERY_1104"

	// 业务级错误 (2000-2999)
	ErrCodeInvalidRange      ErrorCode = "LOTTERY_2001"
	ErrCodeInvalidProfile    ErrorCode = "LOTTERY_2100"
	ErrCodeRangeExhausted    ErrorCode = "LOTTERY_2101"
	ErrCodeInvalidTicket     ErrorCode = "LOTTERY_2102"
	ErrCodeInvalidDataSource ErrorCode = "LOTTERY_2103"
	ErrCodeInvalidSelector   ErrorCode = "LOTTERY_2104"
	ErrCodeUnknownGame       ErrorCode = "LOTTERY_2105"

	// 限流相关错误 (5000-5999)
	ErrCodeCircuitBreakerOpen ErrorCode = "LOTTERY_5002"

	// 状态相关错误 (6000-6999)
	ErrCodeStateSaveFailure      ErrorCode = "LOTTERY_6001"
	ErrCodeStateLoadFailure      ErrorCode = "LOTTERY_6002"
	ErrCodeSerializationFailed   ErrorCode = "LOTTERY_6004"
	ErrCodeDeserializationFailed ErrorCode = "LOTTERY_6005"
)

// ErrorSeverity 错误严重程度
type ErrorSeverity string

const (
	SeverityCritical ErrorSeverity = "critical"
	SeverityHigh     ErrorSeverity = "high"
	SeverityMedium   ErrorSeverity = "medium"
	SeverityLow      ErrorSeverity = "low"
)

// LotteryError 增强的错误类型
type LotteryError struct {
	Code       ErrorCode     `json:"code"`
	Message    string        `json:"message"`
	Details    string        `json:"details,omitempty"`
	Severity   ErrorSeverity `json:"severity"`
	Timestamp  time.Time     `json:"timestamp"`
	Operation  string        `json:"operation,omitempty"`
	StackTrace string        `json:"stack_trace,omitempty"`
	Cause      error         `json:"-"`
	Retryable  bool          `json:"retryable"`
}

// Error 实现 error 接口
func (e *LotteryError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap 实现 errors.Unwrap 接口
func (e *LotteryError) Unwrap() error {
	return e.Cause
}

// Is 实现 errors.Is 接口, 按错误代码匹配
func (e *LotteryError) Is(target error) bool {
	if t, ok := target.(*LotteryError); ok {
		return e.Code == t.Code
	}
	return false
}

// clone returns a shallow copy so the predefined errors are never mutated
func (e *LotteryError) clone() *LotteryError {
	c := *e
	c.Timestamp = time.Now()
	return &c
}

// WithCause 添加原因错误
func (e *LotteryError) WithCause(cause error) *LotteryError {
	c := e.clone()
	c.Cause = cause
	return c
}

// WithDetails 添加详细信息
func (e *LotteryError) WithDetails(details string) *LotteryError {
	c := e.clone()
	c.Details = details
	return c
}

// WithDetailsf 添加格式化的详细信息
func (e *LotteryError) WithDetailsf(format string, args ...any) *LotteryError {
	return e.WithDetails(fmt.Sprintf(format, args...))
}

// WithOperation 添加操作信息
func (e *LotteryError) WithOperation(operation string) *LotteryError {
	c := e.clone()
	c.Operation = operation
	return c
}

// WithStackTrace 添加堆栈跟踪
func (e *LotteryError) WithStackTrace() *LotteryError {
	c := e.clone()
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	c.StackTrace = string(buf[:n])
	return c
}

// NewError 创建新的错误
func NewError(code ErrorCode, message string) *LotteryError {
	return &LotteryError{
		Code:      code,
		Message:   message,
		Severity:  SeverityMedium,
		Timestamp: time.Now(),
		Retryable: false,
	}
}

// NewRetryableError 创建可重试的错误
func NewRetryableError(code ErrorCode, message string) *LotteryError {
	err := NewError(code, message)
	err.Retryable = true
	return err
}

// NewCriticalError 创建严重错误
func NewCriticalError(code ErrorCode, message string) *LotteryError {
	err := NewError(code, message)
	err.Severity = SeverityCritical
	return err
}

// 预定义的错误实例
var (
	// 系统级错误
	ErrSystemError            = NewCriticalError(ErrCodeSystem, "system error occurred")
	ErrConfigInvalid          = NewCriticalError(ErrCodeConfigInvalid, "configuration is invalid")
	ErrFetchTransport         = NewCriticalError(ErrCodeFetchTransport, "failed to fetch game data")
	ErrFetchValidation        = NewRetryableError(ErrCodeFetchValidation, "received invalid response")
	ErrFetchAttemptsExhausted = NewCriticalError(ErrCodeFetchAttemptsExhausted, "fetch attempts exhausted")
	ErrFetchCancelled         = NewError(ErrCodeFetchCancelled, "fetch cancelled")
	ErrJackpotMissing         = NewCriticalError(ErrCodeJackpotMissing, "failed to fetch jackpot")

	// 业务级错误
	ErrInvalidRange      = NewError(ErrCodeInvalidRange, "invalid range: min cannot be greater than max")
	ErrInvalidProfile    = NewError(ErrCodeInvalidProfile, "invalid game profile")
	ErrRangeExhausted    = NewError(ErrCodeRangeExhausted, "sampling range cannot produce enough unique values")
	ErrInvalidTicket     = NewError(ErrCodeInvalidTicket, "invalid ticket")
	ErrInvalidDataSource = NewError(ErrCodeInvalidDataSource, "invalid data source")
	ErrInvalidSelector   = NewError(ErrCodeInvalidSelector, "invalid selector")
	ErrUnknownGame       = NewError(ErrCodeUnknownGame, "unknown game")

	// 限流相关错误
	ErrCircuitBreakerOpen = NewRetryableError(ErrCodeCircuitBreakerOpen, "circuit breaker is open")

	// 状态相关错误
	ErrStateSaveFailure      = NewRetryableError(ErrCodeStateSaveFailure, "failed to save round")
	ErrStateLoadFailure      = NewRetryableError(ErrCodeStateLoadFailure, "failed to load round")
	ErrSerializationFailed   = NewError(ErrCodeSerializationFailed, "serialization failed")
	ErrDeserializationFailed = NewError(ErrCodeDeserializationFailed, "deserialization failed")
)

// IsRetryable 判断错误是否可以重试
func IsRetryable(err error) bool {
	var lotteryErr *LotteryError
	if errors.As(err, &lotteryErr) {
		return lotteryErr.Retryable
	}
	return false
}
