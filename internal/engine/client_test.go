package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
)

// --- helpers ---

var testUID = uuid.MustParse("94eeb28c-19cd-40b9-bb2c-ebda604a7795")

func engineServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return ts
}

func newTestClient(t *testing.T, baseURL string) *HTTPClient {
	t.Helper()
	return NewHTTPClient(baseURL, 5*time.Second)
}

// --- Run tests ---

func TestRun_Synchronous(t *testing.T) {
	ts := engineServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/run" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req runRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.UID != testUID.String() || req.Seed != 43 {
			t.Errorf("unexpected body: %+v", req)
		}
		json.NewEncoder(w).Encode(Result{PDBFilePath: "/out/a.pdb", JSONFilePath: "/out/a.json"})
	})

	resp, err := newTestClient(t, ts.URL).Run(context.Background(), testUID, 43)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Done {
		t.Fatal("expected a finished run")
	}
	if resp.Result.PDBFilePath != "/out/a.pdb" || resp.Result.JSONFilePath != "/out/a.json" {
		t.Errorf("unexpected result: %+v", resp.Result)
	}
}

func TestRun_Accepted(t *testing.T) {
	ts := engineServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	resp, err := newTestClient(t, ts.URL).Run(context.Background(), testUID, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Done {
		t.Error("202 must not be reported as done")
	}
}

func TestRun_ServerError(t *testing.T) {
	ts := engineServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := newTestClient(t, ts.URL).Run(context.Background(), testUID, 1)
	if !errors.Is(err, ErrEngineStatus) {
		t.Fatalf("expected ErrEngineStatus, got %v", err)
	}
	if !IsTransient(err) {
		t.Error("status errors must be transient")
	}
}

func TestRun_MissingJSONPath(t *testing.T) {
	ts := engineServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"pdbFilePath":"/out/a.pdb"}`))
	})

	_, err := newTestClient(t, ts.URL).Run(context.Background(), testUID, 1)
	if !errors.Is(err, ErrEngineStatus) {
		t.Fatalf("expected ErrEngineStatus, got %v", err)
	}
}

func TestRun_Unreachable(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1")
	_, err := c.Run(context.Background(), testUID, 1)
	if !errors.Is(err, ErrEngineUnreachable) {
		t.Fatalf("expected ErrEngineUnreachable, got %v", err)
	}
}

func TestRun_Timeout(t *testing.T) {
	ts := engineServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})

	c := NewHTTPClient(ts.URL, 20*time.Millisecond)
	_, err := c.Run(context.Background(), testUID, 1)
	if !errors.Is(err, ErrEngineUnreachable) {
		t.Fatalf("expected ErrEngineUnreachable, got %v", err)
	}
	if !IsTransient(err) {
		t.Error("a slow request should be retried")
	}
}

func TestRun_Cancelled(t *testing.T) {
	ts := engineServer(t, func(w http.ResponseWriter, r *http.Request) {})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(t, ts.URL).Run(ctx, testUID, 1)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

// --- Status tests ---

func TestStatus_Mapping(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		body     string
		wantDone bool
		wantErr  error
	}{
		{"ready", http.StatusOK, `{"pdbFilePath":"/p.pdb","jsonFilePath":"/p.json"}`, true, nil},
		{"running", http.StatusAccepted, ``, false, nil},
		{"engine error", http.StatusInternalServerError, `{"detail":"CUDA out of memory"}`, false, ErrEngineFailed},
		{"not found", http.StatusNotFound, ``, false, ErrEngineStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := engineServer(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/status/"+testUID.String() {
					t.Errorf("unexpected path: %s", r.URL.Path)
				}
				if r.URL.Query().Get("seed") != "7" {
					t.Errorf("unexpected seed: %s", r.URL.Query().Get("seed"))
				}
				w.WriteHeader(tt.code)
				w.Write([]byte(tt.body))
			})

			resp, err := newTestClient(t, ts.URL).Status(context.Background(), testUID, 7)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.Done != tt.wantDone {
				t.Errorf("done = %v, want %v", resp.Done, tt.wantDone)
			}
		})
	}
}

func TestStatus_FailureDetail(t *testing.T) {
	ts := engineServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"detail":"CUDA out of memory"}`))
	})

	_, err := newTestClient(t, ts.URL).Status(context.Background(), testUID, 1)
	if err == nil || err.Error() != "engine run failed: CUDA out of memory" {
		t.Fatalf("unexpected error: %v", err)
	}
}

// --- Cancel / Ready tests ---

func TestCancel(t *testing.T) {
	called := false
	ts := engineServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/cancel/"+testUID.String() {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		called = true
	})

	if err := newTestClient(t, ts.URL).Cancel(context.Background(), testUID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("cancel endpoint was not called")
	}
}

func TestReady(t *testing.T) {
	ts := engineServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
		}
	})
	if err := newTestClient(t, ts.URL).Ready(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	down := engineServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	if err := newTestClient(t, down.URL).Ready(context.Background()); !errors.Is(err, ErrEngineUnreachable) {
		t.Fatalf("expected ErrEngineUnreachable, got %v", err)
	}
}
