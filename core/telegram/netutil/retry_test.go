package netutil

import (
	"context"
	"errors"
	"net"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	tele "gopkg.in/telebot.v4"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

// floodWrap keeps tele.FloodError's own Error method out of the picture.
type floodWrap struct{ inner tele.FloodError }

func (floodWrap) Error() string   { return "flood control" }
func (f floodWrap) Unwrap() error { return f.inner }

func TestShouldRetry(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("bad request"), false},
		{"timeout", timeoutErr{}, true},
		{"dial", &net.OpError{Op: "dial", Err: errors.New("refused")}, true},
		{"url wrapped dial", &url.Error{Op: "Post", URL: "https://api", Err: &net.OpError{Op: "dial", Err: errors.New("refused")}}, true},
		{"flood", floodWrap{tele.FloodError{RetryAfter: 3}}, true},
		{"canceled", context.Canceled, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ShouldRetry(tc.err))
		})
	}
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, 4*time.Second, RetryDelay(timeoutErr{}, 2, 2*time.Second))
	assert.Equal(t, 2*time.Second, RetryDelay(timeoutErr{}, 0, 2*time.Second))
	assert.Equal(t, 3*time.Second, RetryDelay(floodWrap{tele.FloodError{RetryAfter: 3}}, 1, time.Second))
	assert.Equal(t, maxFloodWait, RetryDelay(floodWrap{tele.FloodError{RetryAfter: 600}}, 1, time.Second))
}
