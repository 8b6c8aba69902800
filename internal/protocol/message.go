// Package protocol 實作 HTTP/1.1 訊息模型與手寫的請求解析、回應序列化
//
// 只支援單一請求 / 單一回應：無 keep-alive、chunked、壓縮。
package protocol

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"unicode"
)

// Header 標頭集合，鍵值保留收到時的大小寫，查詢為精確比對
type Header map[string]string

// Get 以精確鍵名查詢，不存在時回傳空字串
func (h Header) Get(name string) string {
	return h[name]
}

// Lookup 以精確鍵名查詢
func (h Header) Lookup(name string) (string, bool) {
	v, ok := h[name]
	return v, ok
}

// Set 設定標頭，覆蓋同名值
func (h Header) Set(name, value string) {
	h[name] = value
}

// Request 解析後的請求
//
// Method、Path、Version 只在請求行有至少三個欄位時設定。
type Request struct {
	Method     string
	Path       string
	Version    string
	Headers    Header
	Body       string
	RemoteAddr string
}

// Header 以精確鍵名查詢請求標頭
func (r *Request) Header(name string) string {
	return r.Headers.Get(name)
}

// StatusCode HTTP 狀態碼
type StatusCode int

// 伺服器使用到的狀態碼
const (
	StatusOK                  StatusCode = http.StatusOK
	StatusCreated             StatusCode = http.StatusCreated
	StatusNoContent           StatusCode = http.StatusNoContent
	StatusBadRequest          StatusCode = http.StatusBadRequest
	StatusUnauthorized        StatusCode = http.StatusUnauthorized
	StatusForbidden           StatusCode = http.StatusForbidden
	StatusNotFound            StatusCode = http.StatusNotFound
	StatusConflict            StatusCode = http.StatusConflict
	StatusTooManyRequests     StatusCode = http.StatusTooManyRequests
	StatusInternalServerError StatusCode = http.StatusInternalServerError
	StatusServiceUnavailable  StatusCode = http.StatusServiceUnavailable
)

// Reason 回傳狀態行上的原因短語
//
// 格式為去除空白與標點的狀態名稱，例如 404 為 "NotFound"；未知狀態碼回傳數字本身。
func (c StatusCode) Reason() string {
	text := http.StatusText(int(c))
	if text == "" {
		return strconv.Itoa(int(c))
	}

	var b strings.Builder
	upper := true
	for _, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if upper {
				r = unicode.ToUpper(r)
				upper = false
			}
			b.WriteRune(r)
		case r == '\'':
		default:
			upper = true
		}
	}
	return b.String()
}

// Int 回傳數值
func (c StatusCode) Int() int {
	return int(c)
}

// Response 待序列化的回應
//
// 不會自動補上 Content-Length。
type Response struct {
	StatusCode StatusCode
	Headers    Header
	Body       string
}

// NewResponse 建立回應，code 為 0 時視為 200
func NewResponse(code StatusCode, body string) *Response {
	if code == 0 {
		code = StatusOK
	}
	return &Response{
		StatusCode: code,
		Headers:    make(Header),
		Body:       body,
	}
}

// Text 建立純文字回應
func Text(code StatusCode, body string) *Response {
	res := NewResponse(code, body)
	res.Headers.Set("Content-Type", "text/plain")
	return res
}

// JSON 建立 JSON 回應，編碼失敗時回傳 500
func JSON(code StatusCode, v any) *Response {
	data, err := json.Marshal(v)
	if err != nil {
		return Text(StatusInternalServerError, "Internal Server Error")
	}
	res := NewResponse(code, string(data))
	res.Headers.Set("Content-Type", "application/json")
	return res
}

// WithHeader 設定標頭並回傳自身，方便串接
func (r *Response) WithHeader(name, value string) *Response {
	if r.Headers == nil {
		r.Headers = make(Header)
	}
	r.Headers.Set(name, value)
	return r
}
