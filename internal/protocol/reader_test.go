package protocol_test

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/system-design/14-monster-tcg/internal/protocol"
)

// TestReadRequest 測試請求行、標頭與 body 解析
func TestReadRequest(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		validate func(t *testing.T, req *protocol.Request)
	}{
		{
			name: "request line",
			raw:  "GET /users/alice HTTP/1.1\r\n\r\n",
			validate: func(t *testing.T, req *protocol.Request) {
				assert.Equal(t, "GET", req.Method)
				assert.Equal(t, "/users/alice", req.Path)
				assert.Equal(t, "HTTP/1.1", req.Version)
				assert.Empty(t, req.Headers)
				assert.Empty(t, req.Body)
			},
		},
		{
			name: "bare newlines",
			raw:  "GET /cards HTTP/1.1\nHost: localhost\n\n",
			validate: func(t *testing.T, req *protocol.Request) {
				assert.Equal(t, "/cards", req.Path)
				assert.Equal(t, "localhost", req.Header("Host"))
			},
		},
		{
			name: "header split on first colon",
			raw:  "GET / HTTP/1.1\r\nX-Time: 12:30:00\r\n\r\n",
			validate: func(t *testing.T, req *protocol.Request) {
				assert.Equal(t, "12:30:00", req.Header("X-Time"))
			},
		},
		{
			name: "header names and values trimmed",
			raw:  "GET / HTTP/1.1\r\n  Authorization :   Bearer x-mtcgToken  \r\n\r\n",
			validate: func(t *testing.T, req *protocol.Request) {
				assert.Equal(t, "Bearer x-mtcgToken", req.Header("Authorization"))
			},
		},
		{
			name: "header keys are case sensitive",
			raw:  "GET / HTTP/1.1\r\nauthorization: token\r\n\r\n",
			validate: func(t *testing.T, req *protocol.Request) {
				assert.Equal(t, "token", req.Header("authorization"))
				assert.Empty(t, req.Header("Authorization"))
			},
		},
		{
			name: "line without colon ignored",
			raw:  "GET / HTTP/1.1\r\ngarbage\r\nA: b\r\n\r\n",
			validate: func(t *testing.T, req *protocol.Request) {
				assert.Len(t, req.Headers, 1)
				assert.Equal(t, "b", req.Header("A"))
			},
		},
		{
			name: "short request line leaves fields unset",
			raw:  "GET /only\r\nHost: x\r\n\r\n",
			validate: func(t *testing.T, req *protocol.Request) {
				assert.Empty(t, req.Method)
				assert.Empty(t, req.Path)
				assert.Empty(t, req.Version)
				assert.Equal(t, "x", req.Header("Host"))
			},
		},
		{
			name: "extra request line tokens ignored",
			raw:  "GET / HTTP/1.1 extra\r\n\r\n",
			validate: func(t *testing.T, req *protocol.Request) {
				assert.Equal(t, "GET", req.Method)
				assert.Equal(t, "HTTP/1.1", req.Version)
			},
		},
		{
			name: "body with content length",
			raw:  "POST /users HTTP/1.1\r\nContent-Length: 5\r\n\r\nhelloEXTRA",
			validate: func(t *testing.T, req *protocol.Request) {
				assert.Equal(t, "hello", req.Body)
			},
		},
		{
			name: "body shorter than content length",
			raw:  "POST /users HTTP/1.1\r\nContent-Length: 5\r\n\r\nabc",
			validate: func(t *testing.T, req *protocol.Request) {
				assert.Equal(t, "abc", req.Body)
			},
		},
		{
			name: "content length counts characters",
			raw:  "POST /x HTTP/1.1\r\nContent-Length: 3\r\n\r\näöü!",
			validate: func(t *testing.T, req *protocol.Request) {
				assert.Equal(t, "äöü", req.Body)
			},
		},
		{
			name: "lowercase content length is not honored",
			raw:  "POST /x HTTP/1.1\r\ncontent-length: 3\r\n\r\nabc",
			validate: func(t *testing.T, req *protocol.Request) {
				assert.Empty(t, req.Body)
			},
		},
		{
			name: "invalid or non-positive content length",
			raw:  "POST /x HTTP/1.1\r\nContent-Length: -1\r\n\r\nabc",
			validate: func(t *testing.T, req *protocol.Request) {
				assert.Empty(t, req.Body)
			},
		},
		{
			name: "stream ends inside headers",
			raw:  "GET /stats HTTP/1.1\r\nAuthorization: t",
			validate: func(t *testing.T, req *protocol.Request) {
				assert.Equal(t, "/stats", req.Path)
				assert.Equal(t, "t", req.Header("Authorization"))
			},
		},
		{
			name: "empty stream",
			raw:  "",
			validate: func(t *testing.T, req *protocol.Request) {
				assert.Empty(t, req.Method)
				assert.NotNil(t, req.Headers)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := protocol.ReadRequest(strings.NewReader(tt.raw))
			require.NoError(t, err)
			require.NotNil(t, req)
			tt.validate(t, req)
		})
	}
}

// TestReadRequest_OneByteReader 測試逐位元組到達的輸入
func TestReadRequest_OneByteReader(t *testing.T) {
	raw := "PUT /deck HTTP/1.1\r\nContent-Length: 4\r\n\r\n[\"a\"]"
	req, err := protocol.ReadRequest(iotest.OneByteReader(strings.NewReader(raw)))
	require.NoError(t, err)
	assert.Equal(t, "PUT", req.Method)
	assert.Equal(t, `["a"`, req.Body)
}

// TestReadRequest_ReadError 測試非 EOF 錯誤會回傳
func TestReadRequest_ReadError(t *testing.T) {
	boom := errors.New("connection reset")

	_, err := protocol.ReadRequest(iotest.ErrReader(boom))
	assert.ErrorIs(t, err, boom)

	r := io.MultiReader(
		strings.NewReader("POST /x HTTP/1.1\r\nContent-Length: 10\r\n\r\nab"),
		iotest.ErrReader(boom),
	)
	_, err = protocol.ReadRequest(r)
	assert.ErrorIs(t, err, boom)
}
