package protocol

import (
	"bufio"
	"errors"
	"io"
	"strconv"
	"strings"
)

// ContentLengthHeader 決定是否讀取 body 的標頭，大小寫需完全相符
const ContentLengthHeader = "Content-Length"

// ReadRequest 從 r 讀取一個請求
//
// 逐行讀取直到空行或串流結束：第一行為請求行，其餘行依第一個冒號切成標頭。
// 標頭後若 Content-Length 為正整數，讀取該數量的字元作為 body；
// 串流提早結束時 body 較短，不視為錯誤。
// 只有非 EOF 的讀取錯誤會回傳。
func ReadRequest(r io.Reader) (*Request, error) {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}

	req := &Request{Headers: make(Header)}

	first := true
	for {
		line, err := readLine(br)
		if errors.Is(err, io.EOF) {
			return req, nil
		}
		if err != nil {
			return nil, err
		}
		if line == "" {
			break
		}
		if first {
			parseRequestLine(req, line)
			first = false
			continue
		}
		parseHeaderLine(req.Headers, line)
	}

	n, err := strconv.Atoi(req.Headers.Get(ContentLengthHeader))
	if err != nil || n <= 0 {
		return req, nil
	}

	body, err := readChars(br, n)
	if err != nil {
		return nil, err
	}
	req.Body = body
	return req, nil
}

// readLine 讀取一行並去除行尾的 "\n" 或 "\r\n"
func readLine(br *bufio.Reader) (string, error) {
	var line []byte
	for {
		l, more, err := br.ReadLine()
		if err != nil {
			return "", err
		}
		if line == nil && !more {
			return string(l), nil
		}
		line = append(line, l...)
		if !more {
			return string(line), nil
		}
	}
}

// parseRequestLine 以單一空白切割；少於三個欄位時不設定任何值
func parseRequestLine(req *Request, line string) {
	fields := strings.Split(line, " ")
	if len(fields) < 3 {
		return
	}
	req.Method = fields[0]
	req.Path = fields[1]
	req.Version = fields[2]
}

// parseHeaderLine 依第一個冒號切割，沒有冒號的行忽略
func parseHeaderLine(h Header, line string) {
	name, value, ok := strings.Cut(line, ":")
	if !ok {
		return
	}
	h[strings.TrimSpace(name)] = strings.TrimSpace(value)
}

// readChars 最多讀取 n 個字元（rune）
func readChars(br *bufio.Reader, n int) (string, error) {
	var b strings.Builder
	for i := 0; i < n; i++ {
		r, _, err := br.ReadRune()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		b.WriteRune(r)
	}
	return b.String(), nil
}
