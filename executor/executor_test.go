package executor

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNew_Defaults(t *testing.T) {
	e := New(Config{Name: "x"})
	if e.MaxConcurrent() != DefaultMaxConcurrent {
		t.Errorf("expected default capacity %d, got %d", DefaultMaxConcurrent, e.MaxConcurrent())
	}
	if e.Available() != DefaultMaxConcurrent || e.InUse() != 0 {
		t.Errorf("unexpected slot counts %d/%d", e.Available(), e.InUse())
	}
	if DefaultConfig("d").MaxConcurrent != DefaultMaxConcurrent {
		t.Error("unexpected default config")
	}
}

func TestExecute_Hooks(t *testing.T) {
	var acquired, released int
	e := New(Config{
		Name:          "hooks",
		MaxConcurrent: 1,
		OnAcquire:     func(string) { acquired++ },
		OnRelease:     func(string) { released++ },
	})
	err := e.Execute(context.Background(), func(context.Context) error {
		if e.InUse() != 1 {
			t.Errorf("expected slot in use")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if acquired != 1 || released != 1 || e.InUse() != 0 {
		t.Errorf("acquired=%d released=%d inUse=%d", acquired, released, e.InUse())
	}
}

func TestAcquire_MaxWait(t *testing.T) {
	rejected := 0
	e := New(Config{Name: "w", MaxConcurrent: 1, MaxWait: 20 * time.Millisecond, OnReject: func(string) { rejected++ }})
	if err := e.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer e.Release()
	if err := e.Acquire(context.Background()); !stderrors.Is(err, ErrWaitTimeout) {
		t.Errorf("expected ErrWaitTimeout, got %v", err)
	}
	if rejected != 1 {
		t.Errorf("expected 1 rejection, got %d", rejected)
	}
}

func TestAcquire_ContextCancelled(t *testing.T) {
	e := New(Config{Name: "c", MaxConcurrent: 1})
	_ = e.Acquire(context.Background())
	defer e.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := e.Acquire(ctx); !stderrors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestGroup_BoundsConcurrency(t *testing.T) {
	const limit = 3
	e := New(Config{Name: "bounded", MaxConcurrent: limit})
	g := e.NewGroup(context.Background())

	var active, peak int32
	var done int32
	for i := 0; i < 20; i++ {
		err := g.Submit(func(context.Context) error {
			n := atomic.AddInt32(&active, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&active, -1)
			atomic.AddInt32(&done, 1)
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if peak > limit {
		t.Errorf("peak concurrency %d exceeds limit %d", peak, limit)
	}
	if done != 20 {
		t.Errorf("expected 20 tasks, got %d", done)
	}
	if e.InUse() != 0 {
		t.Errorf("expected all slots released, %d in use", e.InUse())
	}
}

func TestGroup_FailureCancelsSiblings(t *testing.T) {
	e := New(Config{Name: "fail", MaxConcurrent: 4})
	g := e.NewGroup(context.Background())
	boom := stderrors.New("boom")

	var cancelled int32
	for i := 0; i < 3; i++ {
		_ = g.Submit(func(ctx context.Context) error {
			select {
			case <-ctx.Done():
				atomic.AddInt32(&cancelled, 1)
			case <-time.After(2 * time.Second):
			}
			return nil
		})
	}
	_ = g.Submit(func(context.Context) error { return boom })

	if err := g.Wait(); !stderrors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
	if cancelled != 3 {
		t.Errorf("expected 3 cancelled siblings, got %d", cancelled)
	}
	if err := g.Submit(func(context.Context) error { return nil }); err == nil {
		t.Error("submit after failure should be refused")
	}
	if e.InUse() != 0 {
		t.Errorf("expected all slots released, %d in use", e.InUse())
	}
}

func TestGroup_SharedExecutor(t *testing.T) {
	e := New(Config{Name: "shared", MaxConcurrent: 2})
	var wg sync.WaitGroup
	var total int32
	for p := 0; p < 3; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g := e.NewGroup(context.Background())
			for i := 0; i < 5; i++ {
				_ = g.Submit(func(context.Context) error {
					atomic.AddInt32(&total, 1)
					return nil
				})
			}
			_ = g.Wait()
		}()
	}
	wg.Wait()
	if total != 15 {
		t.Errorf("expected 15 tasks, got %d", total)
	}
}
