package transport

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewDefaults(t *testing.T) {
	t.Parallel()

	tr := New()

	if tr.base.MaxIdleConns == 0 {
		t.Errorf("TestNewDefaults: MaxIdleConns should be set")
	}
	if tr.base.MaxIdleConnsPerHost == 0 {
		t.Errorf("TestNewDefaults: MaxIdleConnsPerHost should be set")
	}
	if tr.base.IdleConnTimeout == 0 {
		t.Errorf("TestNewDefaults: IdleConnTimeout should be set")
	}
}

func TestDo(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	tr := New()
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatalf("TestDo: failed to build request: %v", err)
	}

	resp, err := tr.Do(req)
	if err != nil {
		t.Fatalf("TestDo: got err == %v, want err == nil", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("TestDo: failed to read body: %v", err)
	}
	if string(body) != "ok" {
		t.Errorf("TestDo: got body %q, want %q", body, "ok")
	}
}

func TestReleaseIsRepeatable(t *testing.T) {
	t.Parallel()

	tr := New()
	if err := tr.Release(); err != nil {
		t.Errorf("TestReleaseIsRepeatable: first Release: got err == %v, want err == nil", err)
	}
	if err := tr.Release(); err != nil {
		t.Errorf("TestReleaseIsRepeatable: second Release: got err == %v, want err == nil", err)
	}
}
