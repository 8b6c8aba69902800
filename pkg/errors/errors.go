// Package errors 定義遊戲服務的領域錯誤
//
// 服務層回傳 *AppError，handler 依錯誤碼決定 HTTP 狀態碼。
package errors

import (
	"errors"
	"fmt"
)

// 錯誤碼
const (
	// ErrCodeNotFound 資源不存在
	ErrCodeNotFound = "NOT_FOUND"
	// ErrCodeAlreadyExists 資源已存在
	ErrCodeAlreadyExists = "ALREADY_EXISTS"
	// ErrCodeInvalidInput 輸入無效
	ErrCodeInvalidInput = "INVALID_INPUT"
	// ErrCodeUnauthorized 未認證
	ErrCodeUnauthorized = "UNAUTHORIZED"
	// ErrCodeForbidden 無權限
	ErrCodeForbidden = "FORBIDDEN"
	// ErrCodeInsufficientFunds 金幣不足
	ErrCodeInsufficientFunds = "INSUFFICIENT_FUNDS"
	// ErrCodeConflict 狀態衝突（卡片被鎖定等）
	ErrCodeConflict = "CONFLICT"
	// ErrCodeInternal 內部錯誤
	ErrCodeInternal = "INTERNAL_ERROR"
	// ErrCodeUnavailable 依賴服務不可用
	ErrCodeUnavailable = "SERVICE_UNAVAILABLE"
)

// AppError 應用程式錯誤
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Err     error  `json:"-"`
}

// Error 實現 error 介面
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 實現 errors.Unwrap
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 以錯誤碼比對，讓 errors.Is(err, ErrPlayerNotFound) 對包裝過的錯誤也成立
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code && (t.Message == "" || e.Message == t.Message)
}

// New 建立新的應用程式錯誤
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap 包裝底層錯誤
func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithDetails 回傳帶有詳細資訊的副本，預定義錯誤不會被修改
func (e *AppError) WithDetails(details string) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// 預定義錯誤
var (
	ErrPlayerNotFound      = New(ErrCodeNotFound, "user not found")
	ErrPlayerAlreadyExists = New(ErrCodeAlreadyExists, "user with same username already registered")
	ErrInvalidCredentials  = New(ErrCodeUnauthorized, "invalid username/password provided")
	ErrMissingToken        = New(ErrCodeUnauthorized, "access token is missing or invalid")
	ErrNotAdmin            = New(ErrCodeForbidden, "provided user is not admin")
	ErrNotOwner            = New(ErrCodeForbidden, "player is not allowed to access this resource")

	ErrCardAlreadyExists   = New(ErrCodeAlreadyExists, "at least one card in the package already exists")
	ErrInvalidPackageSize  = New(ErrCodeInvalidInput, "package has wrong number of cards")
	ErrNoPackageAvailable  = New(ErrCodeNotFound, "no card package available for buying")
	ErrInsufficientCoins   = New(ErrCodeInsufficientFunds, "not enough money for buying a card package")
	ErrInvalidDeckSize     = New(ErrCodeInvalidInput, "the provided deck did not include the required amount of cards")
	ErrCardNotAvailable    = New(ErrCodeForbidden, "at least one of the provided cards does not belong to the user or is not available")
	ErrDealNotFound        = New(ErrCodeNotFound, "the provided deal ID was not found")
	ErrDealAlreadyExists   = New(ErrCodeAlreadyExists, "a deal with this deal ID already exists")
	ErrTradeWithSelf       = New(ErrCodeForbidden, "trading with self is not allowed")
	ErrTradeRequirements   = New(ErrCodeForbidden, "the offered card does not meet the trading requirements")
	ErrCardLocked          = New(ErrCodeConflict, "the card is locked in the deck or in a trading deal")
	ErrDatabaseUnavailable = New(ErrCodeUnavailable, "database service unavailable")
)

// Code 回傳錯誤碼，非 AppError 時回傳 ErrCodeInternal
func Code(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// IsNotFound 檢查是否為不存在錯誤
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

// IsAlreadyExists 檢查是否為已存在錯誤
func IsAlreadyExists(err error) bool {
	return hasCode(err, ErrCodeAlreadyExists)
}

// IsInvalidInput 檢查是否為輸入錯誤
func IsInvalidInput(err error) bool {
	return hasCode(err, ErrCodeInvalidInput)
}

// IsUnauthorized 檢查是否為未認證錯誤
func IsUnauthorized(err error) bool {
	return hasCode(err, ErrCodeUnauthorized)
}

// IsForbidden 檢查是否為無權限錯誤
func IsForbidden(err error) bool {
	return hasCode(err, ErrCodeForbidden)
}

func hasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
