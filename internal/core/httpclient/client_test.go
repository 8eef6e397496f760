package httpclient

import (
	"net/http"
	"testing"
	"time"
)

func TestNewOutbound_Pooling(t *testing.T) {
	c := NewOutbound(3*time.Second, 0)
	tr, ok := c.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("transport=%T", c.Transport)
	}
	if tr.MaxIdleConnsPerHost != 64 || tr.MaxIdleConns != 128 {
		t.Fatalf("idle=%d/%d", tr.MaxIdleConnsPerHost, tr.MaxIdleConns)
	}
	if c.Timeout != 3*time.Second || tr.ResponseHeaderTimeout != 3*time.Second {
		t.Fatalf("timeouts client=%v header=%v", c.Timeout, tr.ResponseHeaderTimeout)
	}
	if NewOutbound(0, 8).Timeout != 0 {
		t.Fatalf("zero timeout must not set a client deadline")
	}
}
