package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestGetText_RetriesTransientFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := New(Options{RetryCount: 3, RetryWait: time.Millisecond, RetryMaxWait: 5 * time.Millisecond})
	body, err := c.GetText(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("GetText: %v", err)
	}
	if body != "ok" {
		t.Errorf("body=%q, want ok", body)
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf("calls=%d, want 3", n)
	}
}

func TestGetText_NonRetryableStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "missing sheet", http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(Options{RetryCount: 3, RetryWait: time.Millisecond})
	_, err := c.GetText(context.Background(), srv.URL)

	var herr *HTTPError
	if !errors.As(err, &herr) {
		t.Fatalf("err=%v, want *HTTPError", err)
	}
	if herr.StatusCode != http.StatusNotFound {
		t.Errorf("status=%d, want 404", herr.StatusCode)
	}
	if !strings.Contains(herr.Body, "missing sheet") {
		t.Errorf("body=%q, want diagnostic text", herr.Body)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("calls=%d, want 1 (4xx must not be retried)", n)
	}
}

func TestMaskURL(t *testing.T) {
	in := "https://api.example.com/xml.response?ApiUser=nw&ApiKey=0123456789abcdef&ClientIp=41.58.1.20&Command=getTldList"
	got := MaskURL(in, []string{"ApiKey"}, []string{"ClientIp"})
	if strings.Contains(got, "0123456789abcdef") {
		t.Fatalf("api key leaked: %s", got)
	}
	if !strings.Contains(got, "012...ef") {
		t.Errorf("want partially redacted key, got %s", got)
	}
	if strings.Contains(got, "41.58.1.20") {
		t.Errorf("client ip leaked: %s", got)
	}
	if !strings.Contains(got, "x.x.x.x") {
		t.Errorf("want ip placeholder, got %s", got)
	}
}

func TestRedactValue_Short(t *testing.T) {
	if got := RedactValue("abc"); got != "..." {
		t.Errorf("RedactValue short=%q, want ...", got)
	}
}
