package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func embedServer(t *testing.T, dimensions int, capture *embedRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if capture != nil {
			*capture = req
		}
		var resp embedResponse
		for range req.Input {
			emb := make([]float32, dimensions)
			emb[0] = 1
			resp.Data = append(resp.Data, struct {
				Embedding []float32 `json:"embedding"`
			}{Embedding: emb})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestHTTPEmbedderEmbed(t *testing.T) {
	var captured embedRequest
	srv := embedServer(t, 4, &captured)
	defer srv.Close()

	e, err := NewHTTPEmbedder(srv.URL, "key-123", "test-model", 4, 32000, 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	emb, err := e.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatal(err)
	}
	if len(emb) != 4 {
		t.Errorf("dimension=%d, want 4", len(emb))
	}
	if captured.Model != "test-model" || captured.EncodingFormat != "float" {
		t.Errorf("request=%+v", captured)
	}
	if len(captured.Input) != 1 || captured.Input[0] != "hello" {
		t.Errorf("input=%v", captured.Input)
	}
}

func TestHTTPEmbedderSendsAPIKey(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		_ = json.NewEncoder(w).Encode(embedResponse{Data: []struct {
			Embedding []float32 `json:"embedding"`
		}{{Embedding: []float32{1, 0}}}})
	}))
	defer srv.Close()

	e, _ := NewHTTPEmbedder(srv.URL, "sekret", "m", 2, 0, time.Second)
	if _, err := e.Embed(context.Background(), "x"); err != nil {
		t.Fatal(err)
	}
	if gotKey != "sekret" {
		t.Errorf("x-api-key=%q", gotKey)
	}
}

func TestHTTPEmbedderTruncatesInput(t *testing.T) {
	var captured embedRequest
	srv := embedServer(t, 2, &captured)
	defer srv.Close()

	e, _ := NewHTTPEmbedder(srv.URL, "", "m", 2, 10, time.Second)
	long := strings.Repeat("a", 50)
	if _, err := e.Embed(context.Background(), long); err != nil {
		t.Fatal(err)
	}
	if len(captured.Input[0]) != 10 {
		t.Errorf("input length=%d, want 10", len(captured.Input[0]))
	}
}

func TestHTTPEmbedderProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	e, _ := NewHTTPEmbedder(srv.URL, "", "m", 2, 0, time.Second)
	_, err := e.Embed(context.Background(), "x")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("want ErrUnavailable, got %v", err)
	}
}

func TestHTTPEmbedderUnreachable(t *testing.T) {
	e, _ := NewHTTPEmbedder("http://127.0.0.1:1", "", "m", 2, 0, 200*time.Millisecond)
	_, err := e.Embed(context.Background(), "x")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("want ErrUnavailable, got %v", err)
	}
}

func TestHTTPEmbedderDimensionCheck(t *testing.T) {
	srv := embedServer(t, 3, nil)
	defer srv.Close()

	// Provider serves 3 dimensions but the embedder expects 8.
	e, _ := NewHTTPEmbedder(srv.URL, "", "m", 8, 0, time.Second)
	_, err := e.Embed(context.Background(), "x")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("want ErrUnavailable, got %v", err)
	}
}

func TestHTTPEmbedderBatchOrder(t *testing.T) {
	var captured embedRequest
	srv := embedServer(t, 2, &captured)
	defer srv.Close()

	e, _ := NewHTTPEmbedder(srv.URL, "", "m", 2, 0, time.Second)
	embs, err := e.EmbedBatch(context.Background(), []string{"one", "two", "three"})
	if err != nil {
		t.Fatal(err)
	}
	if len(embs) != 3 {
		t.Fatalf("got %d embeddings", len(embs))
	}
	if len(captured.Input) != 3 || captured.Input[2] != "three" {
		t.Errorf("input=%v", captured.Input)
	}
}
