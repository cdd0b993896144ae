package httpmw

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMaxBody(t *testing.T) {
	tests := []struct {
		name    string
		limit   int64
		body    string
		wantErr bool
	}{
		{"under limit", 64, `{"email":"a@b.co"}`, false},
		{"exactly at limit", 5, "hello", false},
		{"one over", 5, "hello!", true},
		{"empty body", 5, "", false},
		{"zero limit rejects any byte", 0, "x", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			var readErr error
			h := MaxBody(tt.limit)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				b, err := io.ReadAll(r.Body)
				got, readErr = string(b), err
			}))
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/api/contact", strings.NewReader(tt.body)))

			var mbe *http.MaxBytesError
			if tt.wantErr {
				if !errors.As(readErr, &mbe) || mbe.Limit != tt.limit {
					t.Fatalf("err = %v, want MaxBytesError with limit %d", readErr, tt.limit)
				}
				return
			}
			if readErr != nil || got != tt.body {
				t.Fatalf("read %q, %v", got, readErr)
			}
		})
	}
}

func TestMaxBody_HandlerChoosesResponse(t *testing.T) {
	h := MaxBody(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/", strings.NewReader(strings.Repeat("z", 100))))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
}
