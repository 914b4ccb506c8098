package dimensions

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/freight-audit/internal/common"
	"github.com/joseph-ayodele/freight-audit/internal/search"
)

type fakeSearcher struct {
	results []search.Result
	err     error
	delay   time.Duration
	calls   atomic.Int32
	query   string
	depth   string
	mu      sync.Mutex
}

func (f *fakeSearcher) Name() string { return "Tavily" }

func (f *fakeSearcher) Search(ctx context.Context, query, depth string) ([]search.Result, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.query, f.depth = query, depth
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.results, f.err
}

type fakeGenerator struct {
	out   string
	err   error
	calls atomic.Int32
}

func (f *fakeGenerator) Name() string { return "Gemini" }

func (f *fakeGenerator) Generate(_ context.Context, _ string) (string, error) {
	f.calls.Add(1)
	return f.out, f.err
}

func hits() []search.Result {
	return []search.Result{{Title: "Lamp", URL: "https://shop.example/lamp", Content: "Height 30 cm, width 20 cm"}}
}

func TestResolve_OK(t *testing.T) {
	s := &fakeSearcher{results: hits()}
	g := &fakeGenerator{out: "```json\n{\"height\": 30, \"width\": 20, \"length\": 10, \"weight\": 1.2, \"source\": \"https://shop.example/lamp\"}\n```"}
	r := NewResolver(s, g, Config{}, nil)

	est, err := r.Resolve(context.Background(), "Desk lamp")
	require.NoError(t, err)
	require.NotNil(t, est)

	assert.Equal(t, 30.0, est.Height)
	assert.Equal(t, 20.0, est.Width)
	assert.Equal(t, 10.0, est.Length)
	assert.Equal(t, 1.2, est.Weight)
	assert.Equal(t, "Tavily + Gemini", est.Source)
	assert.Equal(t, "https://shop.example/lamp", est.Reference)

	assert.Equal(t, `dimensions (height, width, length, weight) for product "Desk lamp"`, s.query)
	assert.Equal(t, "advanced", s.depth)
}

func TestResolve_MissingFieldsDefault(t *testing.T) {
	r := NewResolver(&fakeSearcher{results: hits()}, &fakeGenerator{out: `{"weight": 2}`}, Config{}, nil)

	est, err := r.Resolve(context.Background(), "Box")
	require.NoError(t, err)
	assert.Zero(t, est.Height)
	assert.Zero(t, est.Width)
	assert.Zero(t, est.Length)
	assert.Equal(t, 2.0, est.Weight)
	assert.Equal(t, "desconocida", est.Reference)
}

func TestResolve_EmptyContext(t *testing.T) {
	g := &fakeGenerator{out: `{}`}
	r := NewResolver(&fakeSearcher{results: []search.Result{{Title: "x", Content: "  "}}}, g, Config{}, nil)

	est, err := r.Resolve(context.Background(), "Nothing")
	assert.NoError(t, err)
	assert.Nil(t, est)
	assert.Zero(t, g.calls.Load())
}

func TestResolve_Failures(t *testing.T) {
	tests := []struct {
		name     string
		searcher *fakeSearcher
		gen      *fakeGenerator
		cfg      Config
		want     error
	}{
		{
			name:     "search error",
			searcher: &fakeSearcher{err: errors.New("boom")},
			gen:      &fakeGenerator{},
			want:     common.ErrExternalService,
		},
		{
			name:     "model error",
			searcher: &fakeSearcher{results: hits()},
			gen:      &fakeGenerator{err: errors.New("quota")},
			want:     common.ErrExternalService,
		},
		{
			name:     "malformed output",
			searcher: &fakeSearcher{results: hits()},
			gen:      &fakeGenerator{out: "sorry, no idea"},
			want:     common.ErrParseFailure,
		},
		{
			name:     "search timeout",
			searcher: &fakeSearcher{results: hits(), delay: time.Second},
			gen:      &fakeGenerator{out: `{}`},
			cfg:      Config{SearchTimeout: 20 * time.Millisecond},
			want:     common.ErrExternalService,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(tt.searcher, tt.gen, tt.cfg, nil)
			est, err := r.Resolve(context.Background(), "Item")
			assert.Nil(t, est)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestResolve_EmptyProduct(t *testing.T) {
	r := NewResolver(&fakeSearcher{}, &fakeGenerator{}, Config{}, nil)
	_, err := r.Resolve(context.Background(), "  ")
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
}

func TestResolve_CachesSuccess(t *testing.T) {
	s := &fakeSearcher{results: hits()}
	g := &fakeGenerator{out: `{"height": 1}`}
	r := NewResolver(s, g, Config{}, nil)

	first, err := r.Resolve(context.Background(), "Mug")
	require.NoError(t, err)
	first.Height = 99 // callers get copies

	second, err := r.Resolve(context.Background(), " mug ")
	require.NoError(t, err)
	assert.Equal(t, 1.0, second.Height)
	assert.Equal(t, int32(1), s.calls.Load())
	assert.Equal(t, int32(1), g.calls.Load())
}

func TestResolve_ConcurrentSameProduct(t *testing.T) {
	s := &fakeSearcher{results: hits(), delay: 50 * time.Millisecond}
	g := &fakeGenerator{out: `{"height": 1}`}
	r := NewResolver(s, g, Config{}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			est, err := r.Resolve(context.Background(), "Chair")
			assert.NoError(t, err)
			assert.NotNil(t, est)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), s.calls.Load())
}

func TestResolve_FirstCallerCancelDoesNotFailWaiters(t *testing.T) {
	s := &fakeSearcher{results: hits(), delay: 80 * time.Millisecond}
	g := &fakeGenerator{out: `{"height": 1}`}
	r := NewResolver(s, g, Config{}, nil)

	first, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	firstErr := make(chan error, 1)
	go func() {
		_, err := r.Resolve(first, "Chair")
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return s.calls.Load() == 1 }, time.Second, time.Millisecond)

	est, err := r.Resolve(context.Background(), "Chair")
	require.NoError(t, err)
	require.NotNil(t, est)
	assert.Equal(t, 1.0, est.Height)

	err = <-firstErr
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, common.ErrExternalService)
	assert.Equal(t, int32(1), s.calls.Load(), "one shared lookup")
}
