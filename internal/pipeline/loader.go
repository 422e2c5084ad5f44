package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Loader acquires a Handle at most once. Concurrent first callers share a
// single in-flight load; failed loads are not remembered.
type Loader struct {
	load    LoadFunc
	task    string
	modelID string
	group   singleflight.Group
	mu      sync.RWMutex
	handle  Handle
	log     *slog.Logger
}

func NewLoader(load LoadFunc, modelID string, log *slog.Logger) *Loader {
	return &Loader{
		load:    load,
		task:    TaskSummarization,
		modelID: modelID,
		log:     log,
	}
}

func (l *Loader) ModelID() string {
	return l.modelID
}

// Loaded reports whether Acquire returns without loading.
func (l *Loader) Loaded() bool {
	return l.current() != nil
}

func (l *Loader) Acquire(ctx context.Context) (Handle, error) {
	if h := l.current(); h != nil {
		return h, nil
	}

	// The load outlives a cancelled caller so other waiters still get the handle.
	loadCtx := context.WithoutCancel(ctx)

	ch := l.group.DoChan(l.modelID, func() (any, error) {
		if h := l.current(); h != nil {
			return h, nil
		}

		start := time.Now()
		l.log.InfoContext(loadCtx, "Loading fallback pipeline",
			"task", l.task,
			"modelID", l.modelID)

		h, err := l.safeLoad(loadCtx)
		if err != nil {
			return nil, err
		}
		if h == nil {
			return nil, fmt.Errorf("load returned no handle (modelID = %s)", l.modelID)
		}

		l.mu.Lock()
		l.handle = h
		l.mu.Unlock()

		l.log.InfoContext(loadCtx, "Fallback pipeline is loaded",
			"task", l.task,
			"modelID", l.modelID,
			"durationSeconds", time.Since(start).Seconds())

		return h, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("load pipeline (modelID = %s): %w", l.modelID, res.Err)
		}

		h, ok := res.Val.(Handle)
		if !ok {
			return nil, fmt.Errorf("load pipeline (modelID = %s): unexpected result %T", l.modelID, res.Val)
		}

		return h, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Loader) current() Handle {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.handle
}

// safeLoad keeps a panicking LoadFunc from escaping the singleflight goroutine,
// which would re-panic it where no caller can recover.
func (l *Loader) safeLoad(ctx context.Context) (h Handle, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("load panicked: %v", r)
		}
	}()

	return l.load(ctx, l.task, l.modelID)
}
