package afdb

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"proviewer/backend/internal/structure"
)

func TestNormalizeAccession(t *testing.T) {
	tests := []struct {
		input string
		want  string
		valid bool
	}{
		{"Q8W3K0", "Q8W3K0", true},
		{" p69905 ", "P69905", true},
		{"A0A024R161", "A0A024R161", true},
		{"", "", false},
		{"not-an-id", "", false},
		{"Q8W3K", "", false},
	}
	for _, tc := range tests {
		got, err := NormalizeAccession(tc.input)
		if !tc.valid {
			if !errors.Is(err, ErrInvalidAccession) {
				t.Fatalf("%q: expected ErrInvalidAccession got %v", tc.input, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: unexpected error %v", tc.input, err)
		}
		if got != tc.want {
			t.Fatalf("%q: expected %q got %q", tc.input, tc.want, got)
		}
	}
}

func TestModelURL(t *testing.T) {
	client := NewClient(Config{BaseURL: "https://example.org/files/"})
	want := "https://example.org/files/AF-Q8W3K0-F1-model_v4.cif"
	if got := client.ModelURL("Q8W3K0", structure.FormatCIF); got != want {
		t.Fatalf("expected %q got %q", want, got)
	}
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/AF-Q8W3K0-F1-model_v4.cif":
			_, _ = io.WriteString(w, "data_AF-Q8W3K0\n")
		case "/AF-P69905-F1-model_v4.cif":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})

	got, err := client.Fetch(context.Background(), "q8w3k0", "")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got != "data_AF-Q8W3K0\n" {
		t.Fatalf("unexpected body %q", got)
	}

	if _, err := client.Fetch(context.Background(), "A0A024R161", structure.FormatCIF); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound got %v", err)
	}

	_, err = client.Fetch(context.Background(), "P69905", structure.FormatCIF)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 StatusError got %v", err)
	}
}
