package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	concurrent atomic.Int32
	maxSeen    atomic.Int32
}

func (f *fakeEngine) Ingest(ctx context.Context, req IngestRequest) (IngestResponse, error) {
	cur := f.concurrent.Add(1)
	defer f.concurrent.Add(-1)

	for {
		seen := f.maxSeen.Load()
		if cur <= seen || f.maxSeen.CompareAndSwap(seen, cur) {
			break
		}
	}

	time.Sleep(5 * time.Millisecond)

	return IngestResponse{}, nil
}

func (f *fakeEngine) Transform(ctx context.Context, req ExecuteQueryRequest) (ExecuteQueryResponse, error) {
	return ExecuteQueryResponse{}, nil
}

func TestBroker_GetEngine_SameNameReturnsSameHandle(t *testing.T) {
	t.Parallel()

	calls := 0
	broker := NewBroker(func(name string) (Engine, error) {
		calls++

		return &fakeEngine{}, nil
	})

	first, err := broker.GetEngine("spark")
	require.NoError(t, err)

	second, err := broker.GetEngine("spark")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestBroker_SerializesCallsToOneEngine(t *testing.T) {
	t.Parallel()

	fe := &fakeEngine{}
	broker := NewBroker(func(name string) (Engine, error) { return fe, nil })

	h, err := broker.GetEngine("spark")
	require.NoError(t, err)

	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, _ = h.Ingest(context.Background(), IngestRequest{})
		}()
	}

	wg.Wait()

	assert.Equal(t, int32(1), fe.maxSeen.Load(), "no two calls to the same engine should run concurrently")
}

func TestBroker_FactoryErrorIsEngineNotFound(t *testing.T) {
	t.Parallel()

	broker := NewBroker(func(name string) (Engine, error) {
		return nil, assertErr
	})

	_, err := broker.GetEngine("missing")
	require.Error(t, err)
}

var assertErr = errForTest{}

type errForTest struct{}

func (errForTest) Error() string { return "boom" }
