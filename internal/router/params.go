package router

import "fmt"

// ConversionError 路徑參數無法轉為宣告的型別
type ConversionError struct {
	Route string
	Param string
	Kind  Kind
	Value string
	Err   error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("router: route %s: cannot convert %s=%q to %s: %v", e.Route, e.Param, e.Value, e.Kind, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// Params 依模板宣告順序排列的路徑參數
type Params struct {
	specs  []ParamSpec
	values []any
}

// Len 參數數量
func (p Params) Len() int {
	return len(p.values)
}

// Names 依宣告順序回傳參數名稱
func (p Params) Names() []string {
	names := make([]string, len(p.specs))
	for i, s := range p.specs {
		names[i] = s.Name
	}
	return names
}

// Value 依名稱取得轉換後的值
func (p Params) Value(name string) (any, bool) {
	for i, s := range p.specs {
		if s.Name == name {
			return p.values[i], true
		}
	}
	return nil, false
}

// String 取得字串參數，名稱不存在或型別不同時回傳空字串
func (p Params) String(name string) string {
	v, _ := p.Value(name)
	s, _ := v.(string)
	return s
}

// Int 取得 int 參數
func (p Params) Int(name string) int {
	v, _ := p.Value(name)
	n, _ := v.(int)
	return n
}

// Int64 取得 int64 參數
func (p Params) Int64(name string) int64 {
	v, _ := p.Value(name)
	n, _ := v.(int64)
	return n
}

// Uint64 取得 uint64 參數
func (p Params) Uint64(name string) uint64 {
	v, _ := p.Value(name)
	n, _ := v.(uint64)
	return n
}
