package scanner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/hunter/internal/testutil"
)

func TestOrchestrator_PreservesInvocationOrder(t *testing.T) {
	t.Parallel()
	adapters := []Adapter{
		&testutil.DummyAdapter{AdapterName: "slow", Output: "s", Delay: 30 * time.Millisecond},
		&testutil.DummyAdapter{AdapterName: "fast", Output: "f"},
		&testutil.DummyAdapter{AdapterName: "broken", Err: errors.New("exit status 2")},
	}
	o := NewOrchestrator(Config{AdapterTimeout: time.Second}, adapters, &testutil.DummyLogger{})

	res := o.Run(context.Background(), "https://a.example")
	require.Len(t, res, 3)
	assert.Equal(t, []string{"slow", "fast", "broken"}, []string{res[0].Adapter, res[1].Adapter, res[2].Adapter})
	assert.True(t, res[0].Succeeded)
	assert.Equal(t, "s", res[0].RawText)
	assert.False(t, res[2].Succeeded)
	assert.Equal(t, "exit status 2", res[2].Error)
	assert.False(t, res.AllFailed())
	assert.Equal(t, []string{"slow", "fast", "broken"}, o.Adapters())
}

func TestOrchestrator_TimeoutIsolatesSlowAdapter(t *testing.T) {
	t.Parallel()
	hang := &testutil.DummyAdapter{AdapterName: "hang", Delay: time.Hour}
	adapters := []Adapter{
		hang,
		&testutil.DummyAdapter{AdapterName: "a", Output: "A"},
		&testutil.DummyAdapter{AdapterName: "b", Output: "B", Delay: 50 * time.Millisecond},
	}
	cfg := Config{
		AdapterTimeout: time.Second,
		Adapters:       []AdapterConfig{{Name: "hang", Timeout: 100 * time.Millisecond}},
	}
	o := NewOrchestrator(cfg, adapters, &testutil.DummyLogger{})

	start := time.Now()
	res := o.Run(context.Background(), "https://a.example")
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 900*time.Millisecond, "bounded by the largest timeout, not the hang")
	assert.False(t, res[0].Succeeded)
	assert.Equal(t, ErrTimeout, res[0].Error)
	assert.True(t, res[1].Succeeded)
	assert.True(t, res[2].Succeeded)
}

func TestOrchestrator_ConcurrentNotSequential(t *testing.T) {
	t.Parallel()
	var adapters []Adapter
	for _, n := range []string{"a", "b", "c", "d"} {
		adapters = append(adapters, &testutil.DummyAdapter{AdapterName: n, Output: n, Delay: 100 * time.Millisecond})
	}
	o := NewOrchestrator(Config{AdapterTimeout: time.Second}, adapters, &testutil.DummyLogger{})

	start := time.Now()
	res := o.Run(context.Background(), "https://a.example")
	assert.Less(t, time.Since(start), 350*time.Millisecond)
	assert.Len(t, res.Succeeded(), 4)
}

func TestOrchestrator_PanicBecomesFailure(t *testing.T) {
	t.Parallel()
	adapters := []Adapter{
		&testutil.DummyAdapter{AdapterName: "panicky", Panic: true},
		&testutil.DummyAdapter{AdapterName: "ok", Output: "fine"},
	}
	o := NewOrchestrator(Config{}, adapters, &testutil.DummyLogger{})

	res := o.Run(context.Background(), "https://a.example")
	assert.False(t, res[0].Succeeded)
	assert.Contains(t, res[0].Error, "panic")
	assert.True(t, res[1].Succeeded)
}

func TestOrchestrator_AllFailed(t *testing.T) {
	t.Parallel()
	adapters := []Adapter{
		&testutil.DummyAdapter{AdapterName: "a", Err: errors.New("x")},
		&testutil.DummyAdapter{AdapterName: "b", Err: errors.New("y")},
	}
	o := NewOrchestrator(Config{}, adapters, &testutil.DummyLogger{})
	assert.True(t, o.Run(context.Background(), "https://a.example").AllFailed())
}

func TestOrchestrator_ParentCancellation(t *testing.T) {
	t.Parallel()
	o := NewOrchestrator(Config{AdapterTimeout: time.Hour},
		[]Adapter{&testutil.DummyAdapter{AdapterName: "hang", Delay: time.Hour}}, &testutil.DummyLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)
	res := o.Run(ctx, "https://a.example")
	assert.False(t, res[0].Succeeded)
	assert.Equal(t, context.Canceled.Error(), res[0].Error)
}

func TestOrchestrator_MaxParallel(t *testing.T) {
	t.Parallel()
	var adapters []Adapter
	for _, n := range []string{"a", "b", "c"} {
		adapters = append(adapters, &testutil.DummyAdapter{AdapterName: n, Output: n, Delay: 50 * time.Millisecond})
	}
	o := NewOrchestrator(Config{MaxParallel: 1}, adapters, &testutil.DummyLogger{})

	start := time.Now()
	res := o.Run(context.Background(), "https://a.example")
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
	assert.Len(t, res.Succeeded(), 3)
}
