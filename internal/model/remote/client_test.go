package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/gltr/internal/model"
)

const testVocab = 4

// fakeServer scores position p of a sequence as a one-hot vector on
// seq[p] % testVocab, scaled by p+1.
type fakeServer struct {
	mu         sync.Mutex
	requests   []LogitsRequest
	requestIDs []string
	releases   int
	fail       int
}

func (s *fakeServer) echo() *echo.Echo {
	e := echo.New()
	e.POST(LogitsPath, s.handleLogits)
	e.POST(ReleasePath, s.handleRelease)
	return e
}

func (s *fakeServer) handleLogits(c *echo.Context) error {
	var req LogitsRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": map[string]string{"message": err.Error()}})
	}
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.requestIDs = append(s.requestIDs, c.Request().Header.Get(RequestIDHeader))
	fail := s.fail
	s.mu.Unlock()
	if fail != 0 {
		return c.JSON(fail, map[string]any{"error": map[string]string{"message": "out of memory", "type": "server_error"}})
	}

	resp := LogitsResponse{Logits: make([][][]float32, len(req.InputIDs))}
	for i, seq := range req.InputIDs {
		positions := req.Positions
		if len(positions) == 0 {
			positions = make([]int, len(seq))
			for p := range positions {
				positions[p] = p
			}
		}
		for _, p := range positions {
			v := make([]float32, testVocab)
			v[seq[p]%testVocab] = float32(p + 1)
			resp.Logits[i] = append(resp.Logits[i], v)
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *fakeServer) handleRelease(c *echo.Context) error {
	s.mu.Lock()
	s.releases++
	s.mu.Unlock()
	return c.JSON(http.StatusOK, map[string]bool{"released": true})
}

func newTestClient(t *testing.T, s *fakeServer) *Client {
	t.Helper()
	srv := httptest.NewServer(s.echo())
	t.Cleanup(srv.Close)
	c, err := New(Options{Endpoint: srv.URL + "/", Model: "aubmindlab/aragpt2-base", Device: "CPU"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestForward(t *testing.T) {
	t.Parallel()

	s := &fakeServer{}
	c := newTestClient(t, s)
	got, err := c.Forward(context.Background(), [][]int{{1, 2, 3}, {3, 0, 1}})
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if len(got) != 2 || len(got[0]) != 3 || len(got[0][0]) != testVocab {
		t.Fatalf("unexpected shape %v", got)
	}
	if got[0][2][3] != 3 || got[1][0][3] != 1 {
		t.Fatalf("unexpected scores %v", got)
	}

	req := s.requests[0]
	if req.Model != "aubmindlab/aragpt2-base" || req.Device != model.CPU || req.Positions != nil {
		t.Fatalf("unexpected request %+v", req)
	}
	if _, err := uuid.Parse(s.requestIDs[0]); err != nil {
		t.Fatalf("request id %q is not a uuid: %v", s.requestIDs[0], err)
	}
}

func TestForwardAt(t *testing.T) {
	t.Parallel()

	s := &fakeServer{}
	c := newTestClient(t, s)
	got, err := model.ScoresAt(context.Background(), c, [][]int{{1, 2, 3}, {0, 5, 0}}, 1)
	if err != nil {
		t.Fatalf("ScoresAt: %v", err)
	}
	if len(got) != 2 || got[0][2] != 2 || got[1][1] != 2 {
		t.Fatalf("unexpected scores %v", got)
	}
	if p := s.requests[0].Positions; len(p) != 1 || p[0] != 1 {
		t.Fatalf("positions not forwarded: %v", p)
	}
}

func TestServerErrorIsStatusError(t *testing.T) {
	t.Parallel()

	s := &fakeServer{fail: http.StatusServiceUnavailable}
	c := newTestClient(t, s)
	_, err := c.Forward(context.Background(), [][]int{{1}})
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.Code != http.StatusServiceUnavailable || se.Message != "out of memory" {
		t.Fatalf("unexpected status error %+v", se)
	}
}

func TestReleaseCache(t *testing.T) {
	t.Parallel()

	s := &fakeServer{}
	c := newTestClient(t, s)
	if err := model.Release(context.Background(), c); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if s.releases != 1 {
		t.Fatalf("expected one release call, got %d", s.releases)
	}
}

func TestCancelledContext(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, &fakeServer{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Forward(ctx, [][]int{{1}}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	tests := []Options{
		{Model: "m"},
		{Endpoint: "localhost:8000", Model: "m"},
		{Endpoint: "http://localhost:8000"},
		{Endpoint: "http://localhost:8000", Model: "m", Device: "tpu"},
	}
	for _, opts := range tests {
		if _, err := New(opts); err == nil {
			t.Fatalf("expected error for %+v", opts)
		}
	}
}
