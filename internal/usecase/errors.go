package usecase

import (
	"errors"
	"fmt"
	"net/http"
)

// エラーの種別。handlerはStatusで返し、テストはKindで判定する。
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation"
	KindNotFound          ErrorKind = "not_found"
	KindInsufficientStock ErrorKind = "insufficient_stock"
	KindEmptyCart         ErrorKind = "empty_cart"
	KindConflict          ErrorKind = "conflict"
	KindTransient         ErrorKind = "transient"
)

// usecaseが返す失敗。内部のストレージ事情は外に出さない。
type HTTPError struct {
	Status  int
	Kind    ErrorKind
	Message string
}

func (e *HTTPError) Error() string {
	return e.Message
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

// 入力不正
func NewValidationError(message string) error {
	return &HTTPError{Status: http.StatusBadRequest, Kind: KindValidation, Message: message}
}

// 対象が存在しない
func NewNotFoundError(message string) error {
	return &HTTPError{Status: http.StatusNotFound, Kind: KindNotFound, Message: message}
}

// 在庫不足。残数が分かる場合はメッセージに含める。
func NewInsufficientStockError(productID int64, available int64) error {
	return &HTTPError{
		Status:  http.StatusConflict,
		Kind:    KindInsufficientStock,
		Message: fmt.Sprintf("insufficient stock for product %d: %d available", productID, available),
	}
}

// 空カートでのチェックアウト
func NewEmptyCartError() error {
	return &HTTPError{Status: http.StatusConflict, Kind: KindEmptyCart, Message: "cart is empty"}
}

// ストレージ側の一時障害。呼び出し側がリトライしてよい。
func NewTransientError() error {
	return &HTTPError{Status: http.StatusServiceUnavailable, Kind: KindTransient, Message: "store unavailable"}
}

// repoのエラーをusecaseの失敗に変換する。
// 既にHTTPErrorならそのまま、それ以外は一時障害として扱う。
func storeError(err error) error {
	if _, ok := AsHTTPError(err); ok {
		return err
	}
	return NewTransientError()
}
