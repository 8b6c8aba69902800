// Package router 將 (method, 路徑模板) 對應到處理函式並分派請求
//
// 路由於啟動時以 Builder 明確註冊，Build 之後的 Table 為唯讀，
// 可在多個連線 goroutine 間共用而不需加鎖。
package router

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/koopa0/system-design/14-monster-tcg/internal/protocol"
)

// NotFoundBody 沒有路由符合時的回應內容
const NotFoundBody = "Route not found"

// HandlerFunc 路由處理函式，可阻塞等待外部資源
type HandlerFunc func(ctx context.Context, req *protocol.Request, params Params) (*protocol.Response, error)

// Middleware 包裝處理函式
type Middleware func(HandlerFunc) HandlerFunc

// Dispatcher 將請求分派為回應
type Dispatcher interface {
	Dispatch(ctx context.Context, req *protocol.Request) (*protocol.Response, error)
}

// Route 已註冊的路由
type Route struct {
	Method   string
	Template string
	Params   []ParamSpec

	segments []segment
	handler  HandlerFunc
}

// match 比對路徑；段數相同、字面段不分大小寫相等即符合
func (r *Route) match(parts []string) bool {
	if len(parts) != len(r.segments) {
		return false
	}
	for i, seg := range r.segments {
		if seg.param < 0 && !strings.EqualFold(seg.literal, parts[i]) {
			return false
		}
	}
	return true
}

// extract 依宣告型別轉換路徑參數
func (r *Route) extract(parts []string) (Params, error) {
	values := make([]any, len(r.Params))
	for i, seg := range r.segments {
		if seg.param < 0 {
			continue
		}
		spec := r.Params[seg.param]
		v, err := spec.Kind.convert(parts[i])
		if err != nil {
			return Params{}, &ConversionError{
				Route: r.Method + " " + r.Template,
				Param: spec.Name,
				Kind:  spec.Kind,
				Value: parts[i],
				Err:   err,
			}
		}
		values[seg.param] = v
	}
	return Params{specs: r.Params, values: values}, nil
}

// Builder 收集路由註冊
type Builder struct {
	routes     []*Route
	middleware []Middleware
	errs       []error
}

// NewBuilder 建立 Builder
func NewBuilder() *Builder {
	return &Builder{}
}

// Use 加入套用到所有路由的 middleware，先加入者在最外層
func (b *Builder) Use(mw ...Middleware) *Builder {
	b.middleware = append(b.middleware, mw...)
	return b
}

// Handle 註冊路由；錯誤累積到 Build 時一次回傳
//
// 註冊順序即比對順序，模稜兩可的模板不會被拒絕，先註冊者優先。
func (b *Builder) Handle(method, template string, h HandlerFunc, mw ...Middleware) *Builder {
	if method == "" {
		b.errs = append(b.errs, fmt.Errorf("%w: template %q", ErrEmptyMethod, template))
		return b
	}
	if h == nil {
		b.errs = append(b.errs, fmt.Errorf("%w: %s %s", ErrNilHandler, method, template))
		return b
	}
	segs, params, err := parseTemplate(template)
	if err != nil {
		b.errs = append(b.errs, err)
		return b
	}

	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}

	b.routes = append(b.routes, &Route{
		Method:   method,
		Template: template,
		Params:   params,
		segments: segs,
		handler:  h,
	})
	return b
}

// GET 註冊 GET 路由
func (b *Builder) GET(template string, h HandlerFunc, mw ...Middleware) *Builder {
	return b.Handle("GET", template, h, mw...)
}

// POST 註冊 POST 路由
func (b *Builder) POST(template string, h HandlerFunc, mw ...Middleware) *Builder {
	return b.Handle("POST", template, h, mw...)
}

// PUT 註冊 PUT 路由
func (b *Builder) PUT(template string, h HandlerFunc, mw ...Middleware) *Builder {
	return b.Handle("PUT", template, h, mw...)
}

// DELETE 註冊 DELETE 路由
func (b *Builder) DELETE(template string, h HandlerFunc, mw ...Middleware) *Builder {
	return b.Handle("DELETE", template, h, mw...)
}

// Build 產生唯讀的路由表
func (b *Builder) Build() (*Table, error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}

	routes := make([]*Route, len(b.routes))
	for i, r := range b.routes {
		cp := *r
		for j := len(b.middleware) - 1; j >= 0; j-- {
			cp.handler = b.middleware[j](cp.handler)
		}
		routes[i] = &cp
	}
	return &Table{routes: routes}, nil
}

// Table 唯讀路由表，實作 Dispatcher
type Table struct {
	routes []*Route
}

// Routes 回傳路由描述的副本
func (t *Table) Routes() []Route {
	out := make([]Route, len(t.routes))
	for i, r := range t.routes {
		out[i] = Route{Method: r.Method, Template: r.Template, Params: append([]ParamSpec(nil), r.Params...)}
	}
	return out
}

// Lookup 回傳第一個符合的路由
func (t *Table) Lookup(method, path string) (*Route, bool) {
	parts := strings.Split(path, "/")
	for _, r := range t.routes {
		if r.Method == method && r.match(parts) {
			return r, true
		}
	}
	return nil, false
}

// Dispatch 找出第一個符合的路由並呼叫其處理函式
//
// 參數轉換失敗回傳 *ConversionError；處理函式的錯誤原樣回傳，panic 不在此攔截。
// 沒有符合的路由時回傳 404 "Route not found"。
func (t *Table) Dispatch(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	route, ok := t.Lookup(req.Method, req.Path)
	if !ok {
		return protocol.NewResponse(protocol.StatusNotFound, NotFoundBody), nil
	}

	params, err := route.extract(strings.Split(req.Path, "/"))
	if err != nil {
		return nil, err
	}

	res, err := route.handler(ctx, req, params)
	if err != nil {
		return nil, err
	}
	if res == nil {
		res = protocol.NewResponse(protocol.StatusOK, "")
	}
	return res, nil
}
