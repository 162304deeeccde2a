package esmfold

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

const foldedPDB = "ATOM      1  CA  GLY A   1       0.000   0.000   0.000  1.00 88.00           C\n"

func TestValidateSequence(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{"trims whitespace", "  MKV \n", "MKV", nil},
		{"empty", "   ", "", ErrEmptySequence},
		{"at limit", strings.Repeat("A", 5), strings.Repeat("A", 5), nil},
		{"over limit", strings.Repeat("A", 6), "", ErrSequenceTooLong},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ValidateSequence(tc.input, 5)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %q got %q", tc.want, got)
			}
		})
	}
}

func TestFoldPostsSequenceAndCaches(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.Method != http.MethodPost {
			t.Errorf("expected POST got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("unexpected content type %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "MKV" {
			t.Errorf("expected raw sequence body got %q", body)
		}
		_, _ = io.WriteString(w, foldedPDB)
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	for i := 0; i < 2; i++ {
		got, err := client.Fold(context.Background(), " MKV ")
		if err != nil {
			t.Fatalf("fold: %v", err)
		}
		if got != foldedPDB {
			t.Fatalf("unexpected payload %q", got)
		}
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("expected 1 upstream call got %d", n)
	}
}

func TestFoldUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.Fold(context.Background(), "MKV")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError got %v", err)
	}
	if statusErr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", statusErr.Code)
	}
}

func TestFoldRejectsLongSequenceWithoutCalling(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("upstream should not be called")
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL, MaxSequenceLength: 3})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.Fold(context.Background(), "MKVL"); !errors.Is(err, ErrSequenceTooLong) {
		t.Fatalf("expected ErrSequenceTooLong got %v", err)
	}
}
