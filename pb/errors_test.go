package pb

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShouldCloseConnection(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"response error", &ResponseError{Message: "x"}, false},
		{"wrapped response error", fmt.Errorf("fetch: %w", &ResponseError{Message: "x"}), false},
		{"protocol error", &ProtocolError{Message: "x"}, true},
		{"decode error", &DecodeError{Code: CodeGetResp, Err: io.ErrUnexpectedEOF}, true},
		{"unknown error", errors.New("boom"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldCloseConnection(tt.err))
		})
	}
}

func TestDecodeError_Unwrap(t *testing.T) {
	err := &DecodeError{Code: CodeGetResp, Err: io.ErrUnexpectedEOF}

	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, "decode RpbGetResp: unexpected EOF", err.Error())
}
