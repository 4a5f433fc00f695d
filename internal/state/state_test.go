package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAndGetStatus(t *testing.T) {
	s := New()
	ctx := context.Background()

	// A step that hasn't run yet is pending.
	assert.Equal(t, StatusPending, s.GetStatus(ctx, "dentweb_capture.main"))

	s.SetStatus(ctx, "dentweb_capture.main", StatusRunning)
	assert.Equal(t, StatusRunning, s.GetStatus(ctx, "dentweb_capture.main"))
}

func TestSetAndGetOutput(t *testing.T) {
	s := New()
	ctx := context.Background()

	assert.Nil(t, s.GetOutput(ctx, "ocr_extract.main"))

	expected := map[string]any{"chart_no": "10482"}
	s.SetOutput(ctx, "ocr_extract.main", expected)
	assert.Equal(t, expected, s.GetOutput(ctx, "ocr_extract.main"))
}

func TestSetAndGetError(t *testing.T) {
	s := New()
	ctx := context.Background()

	assert.Nil(t, s.GetError(ctx, "webceph_process.main"))

	expected := errors.New("login failed")
	s.SetError(ctx, "webceph_process.main", expected)

	got := s.GetError(ctx, "webceph_process.main")
	require.Error(t, got)
	assert.Equal(t, expected, got)
}

func TestDuration(t *testing.T) {
	s := New()
	ctx := context.Background()

	assert.Zero(t, s.GetDuration(ctx, "archive_report.main"))

	s.SetDuration(ctx, "archive_report.main", 3*time.Second)
	assert.Equal(t, 3*time.Second, s.GetDuration(ctx, "archive_report.main"))
}

// TestStore_ConcurrentAccess verifies the store tolerates many goroutines
// writing and reading distinct keys without lost writes.
func TestStore_ConcurrentAccess(t *testing.T) {
	s := New()
	ctx := context.Background()
	numGoroutines := 100
	var wg sync.WaitGroup

	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("step.concurrent.%d", i)
			s.SetStatus(ctx, id, StatusCompleted)
			s.SetOutput(ctx, id, i)
			s.SetError(ctx, id, fmt.Errorf("error for step %d", i))
		}(i)
	}
	wg.Wait()

	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("step.concurrent.%d", i)
			assert.Equal(t, StatusCompleted, s.GetStatus(ctx, id))
			assert.Equal(t, i, s.GetOutput(ctx, id))
			assert.EqualError(t, s.GetError(ctx, id), fmt.Sprintf("error for step %d", i))
		}(i)
	}
	wg.Wait()
}
