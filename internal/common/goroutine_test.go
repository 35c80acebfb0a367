package common

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/arbor"
)

func TestSafeGoRunsTheFunction(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)

	ran := false
	SafeGo(arbor.NewLogger(), "test-task", func() {
		ran = true
		wg.Done()
	})

	wg.Wait()
	assert.True(t, ran)
}

func TestSafeGoRecoversFromPanic(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)

	assert.NotPanics(t, func() {
		SafeGo(arbor.NewLogger(), "panicking-task", func() {
			defer wg.Done()
			panic("boom")
		})
		wg.Wait()
	})
}

func TestGetGoroutineCountIncreasesOnEverySafeGo(t *testing.T) {
	before := GetGoroutineCount()

	var wg sync.WaitGroup
	wg.Add(1)
	SafeGo(arbor.NewLogger(), "counted-task", wg.Done)
	wg.Wait()

	assert.Greater(t, GetGoroutineCount(), before)
}

func TestSafeGoWithContextSkipsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := make(chan bool, 1)
	SafeGoWithContext(ctx, arbor.NewLogger(), "cancelled-task", func() {
		ran <- true
	})

	select {
	case <-ran:
		t.Fatal("function must not run when context is already cancelled")
	case <-time.After(100 * time.Millisecond):
	}
}
