package protocol

import (
	"bufio"
	"io"
	"sort"
	"strconv"
)

// WriteResponse 序列化回應並寫入 w
//
//	HTTP/1.1 <code> <reason>\n
//	<Name>: <Value>\n ...
//	\n
//	<body>\n            (僅在 body 非空時)
//
// 標頭依鍵名排序輸出。
func WriteResponse(w io.Writer, res *Response) error {
	bw, ok := w.(*bufio.Writer)
	if !ok {
		bw = bufio.NewWriter(w)
	}

	code := res.StatusCode
	if code == 0 {
		code = StatusOK
	}

	bw.WriteString("HTTP/1.1 ")
	bw.WriteString(strconv.Itoa(int(code)))
	bw.WriteByte(' ')
	bw.WriteString(code.Reason())
	bw.WriteByte('\n')

	names := make([]string, 0, len(res.Headers))
	for name := range res.Headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		bw.WriteString(name)
		bw.WriteString(": ")
		bw.WriteString(res.Headers[name])
		bw.WriteByte('\n')
	}
	bw.WriteByte('\n')

	if res.Body != "" {
		bw.WriteString(res.Body)
		bw.WriteByte('\n')
	}

	return bw.Flush()
}
