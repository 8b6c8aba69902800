package router

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind 路徑參數型別，集合固定，於註冊時驗證
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindInt64
	KindUint64
)

var kindNames = map[string]Kind{
	"":       KindString,
	"string": KindString,
	"int":    KindInt,
	"int64":  KindInt64,
	"uint64": KindUint64,
}

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindInt64:
		return "int64"
	case KindUint64:
		return "uint64"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// convert 將字串轉為對應型別
func (k Kind) convert(raw string) (any, error) {
	switch k {
	case KindInt:
		return strconv.Atoi(raw)
	case KindInt64:
		return strconv.ParseInt(raw, 10, 64)
	case KindUint64:
		return strconv.ParseUint(raw, 10, 64)
	default:
		return raw, nil
	}
}

// 註冊錯誤
var (
	ErrInvalidTemplate = errors.New("router: invalid route template")
	ErrUnsupportedKind = errors.New("router: unsupported parameter kind")
	ErrNilHandler      = errors.New("router: nil handler")
	ErrEmptyMethod     = errors.New("router: empty method")
)

// ParamSpec 宣告的路徑參數
type ParamSpec struct {
	Name string
	Kind Kind
}

type segment struct {
	literal string
	param   int // 參數在 ParamSpec 中的索引，-1 表示字面值
}

// parseTemplate 解析 "/users/{username}" 形式的模板
func parseTemplate(template string) ([]segment, []ParamSpec, error) {
	if !strings.HasPrefix(template, "/") {
		return nil, nil, fmt.Errorf("%w: %q must start with '/'", ErrInvalidTemplate, template)
	}

	parts := strings.Split(template, "/")
	segs := make([]segment, 0, len(parts))
	var params []ParamSpec
	seen := make(map[string]bool)

	for _, part := range parts {
		if !strings.HasPrefix(part, "{") || !strings.HasSuffix(part, "}") {
			if strings.ContainsAny(part, "{}") {
				return nil, nil, fmt.Errorf("%w: %q has malformed placeholder %q", ErrInvalidTemplate, template, part)
			}
			segs = append(segs, segment{literal: part, param: -1})
			continue
		}

		name, kindName, _ := strings.Cut(part[1:len(part)-1], ":")
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, nil, fmt.Errorf("%w: %q has empty placeholder name", ErrInvalidTemplate, template)
		}
		if seen[name] {
			return nil, nil, fmt.Errorf("%w: %q declares %q twice", ErrInvalidTemplate, template, name)
		}
		kind, ok := kindNames[strings.TrimSpace(kindName)]
		if !ok {
			return nil, nil, fmt.Errorf("%w: %q in %q", ErrUnsupportedKind, kindName, template)
		}

		seen[name] = true
		segs = append(segs, segment{param: len(params)})
		params = append(params, ParamSpec{Name: name, Kind: kind})
	}

	return segs, params, nil
}
