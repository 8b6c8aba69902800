package protocol_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/system-design/14-monster-tcg/internal/protocol"
)

// TestWriteResponse 測試回應序列化格式
func TestWriteResponse(t *testing.T) {
	tests := []struct {
		name string
		res  *protocol.Response
		want string
	}{
		{
			name: "ok with body and header",
			res: &protocol.Response{
				StatusCode: protocol.StatusOK,
				Headers:    protocol.Header{"Content-Type": "text/plain"},
				Body:       "hi",
			},
			want: "HTTP/1.1 200 OK\nContent-Type: text/plain\n\nhi\n",
		},
		{
			name: "empty body writes no body line",
			res:  &protocol.Response{StatusCode: protocol.StatusNoContent},
			want: "HTTP/1.1 204 NoContent\n\n",
		},
		{
			name: "zero status defaults to ok",
			res:  &protocol.Response{Body: "x"},
			want: "HTTP/1.1 200 OK\n\nx\n",
		},
		{
			name: "headers sorted",
			res: &protocol.Response{
				StatusCode: protocol.StatusNotFound,
				Headers:    protocol.Header{"b": "2", "A": "1", "a": "3"},
				Body:       "Route not found",
			},
			want: "HTTP/1.1 404 NotFound\nA: 1\na: 3\nb: 2\n\nRoute not found\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, protocol.WriteResponse(&buf, tt.res))
			assert.Equal(t, tt.want, buf.String())
			assert.NotContains(t, buf.String(), "Content-Length")
		})
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

// TestWriteResponse_Error 測試寫入失敗
func TestWriteResponse_Error(t *testing.T) {
	err := protocol.WriteResponse(failingWriter{}, protocol.NewResponse(protocol.StatusOK, "x"))
	assert.Error(t, err)
}

// TestStatusCode_Reason 測試原因短語
func TestStatusCode_Reason(t *testing.T) {
	tests := map[protocol.StatusCode]string{
		protocol.StatusOK:                  "OK",
		protocol.StatusCreated:             "Created",
		protocol.StatusNoContent:           "NoContent",
		protocol.StatusBadRequest:          "BadRequest",
		protocol.StatusNotFound:            "NotFound",
		protocol.StatusTooManyRequests:     "TooManyRequests",
		protocol.StatusInternalServerError: "InternalServerError",
		protocol.StatusCode(203):           "NonAuthoritativeInformation",
		protocol.StatusCode(799):           "799",
	}
	for code, want := range tests {
		assert.Equal(t, want, code.Reason(), "code %d", code)
	}
}

// TestResponseHelpers 測試回應建構函式
func TestResponseHelpers(t *testing.T) {
	res := protocol.NewResponse(0, "")
	assert.Equal(t, protocol.StatusOK, res.StatusCode)
	assert.NotNil(t, res.Headers)

	res = protocol.JSON(protocol.StatusOK, map[string]int{"Elo": 1000})
	assert.Equal(t, `{"Elo":1000}`, res.Body)
	assert.Equal(t, "application/json", res.Headers.Get("Content-Type"))

	res = protocol.JSON(protocol.StatusOK, make(chan int))
	assert.Equal(t, protocol.StatusInternalServerError, res.StatusCode)

	res = (&protocol.Response{}).WithHeader("Authorization", "Bearer t")
	assert.Equal(t, "Bearer t", res.Headers.Get("Authorization"))
}
