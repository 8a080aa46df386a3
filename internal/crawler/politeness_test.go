package crawler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConcurrentVisitTracker_MarkIfNew(t *testing.T) {
	t.Parallel()

	tracker := newConcurrentVisitTracker()
	require.True(t, tracker.MarkIfNew("https://example.com/"))
	require.False(t, tracker.MarkIfNew("https://example.com/"))
	require.True(t, tracker.MarkIfNew("https://example.com/other"))
	require.False(t, tracker.MarkIfNew(""))
}

func TestConcurrentVisitTracker_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	tracker := newConcurrentVisitTracker()
	const goroutines = 32

	var wg sync.WaitGroup
	var mu sync.Mutex
	firsts := 0
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tracker.MarkIfNew("https://example.com/contended") {
				mu.Lock()
				firsts++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, firsts)
}

func TestThresholdDomainBlocker(t *testing.T) {
	t.Parallel()

	blocker := newThresholdDomainBlocker(3)

	require.False(t, blocker.MarkForbidden("example.com"))
	require.False(t, blocker.MarkForbidden("example.com"))
	require.False(t, blocker.IsBlocked("example.com"))

	require.True(t, blocker.MarkForbidden("example.com"))
	require.True(t, blocker.IsBlocked("example.com"))
	// Further marks keep reporting blocked.
	require.True(t, blocker.MarkForbidden("example.com"))

	require.False(t, blocker.IsBlocked("other.com"))
}

func TestThresholdDomainBlocker_CaseInsensitiveHost(t *testing.T) {
	t.Parallel()

	blocker := newThresholdDomainBlocker(2)
	require.False(t, blocker.MarkForbidden("Example.COM"))
	require.True(t, blocker.MarkForbidden("example.com"))
	require.True(t, blocker.IsBlocked("EXAMPLE.com"))
}

func TestThresholdDomainBlocker_DefaultThreshold(t *testing.T) {
	t.Parallel()

	blocker := newThresholdDomainBlocker(0)
	require.False(t, blocker.MarkForbidden("example.com"))
	require.False(t, blocker.MarkForbidden("example.com"))
	require.True(t, blocker.MarkForbidden("example.com"))
}

func TestThresholdDomainBlocker_EmptyHost(t *testing.T) {
	t.Parallel()

	blocker := newThresholdDomainBlocker(1)
	require.False(t, blocker.MarkForbidden(""))
	require.False(t, blocker.IsBlocked(""))
}

func TestDomainPatternBlocklist(t *testing.T) {
	t.Parallel()

	blocklist := newDomainPatternBlocklist([]string{"Bad.example.com", "*.tracker.net", "", "  "})

	require.True(t, blocklist.IsBlocked("bad.example.com"))
	require.True(t, blocklist.IsBlocked("BAD.EXAMPLE.COM"))
	require.False(t, blocklist.IsBlocked("good.example.com"))

	require.True(t, blocklist.IsBlocked("ads.tracker.net"))
	require.True(t, blocklist.IsBlocked("deep.sub.tracker.net"))
	require.False(t, blocklist.IsBlocked("tracker.net"))

	require.False(t, blocklist.IsBlocked(""))
}

func TestTimerPauseController_RespectsContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pauser := &timerPauseController{}
	start := time.Now()
	pauser.Pause(ctx, time.Minute)
	require.Less(t, time.Since(start), time.Second)
}

func TestTimerPauseController_ZeroDelay(t *testing.T) {
	t.Parallel()

	pauser := &timerPauseController{}
	start := time.Now()
	pauser.Pause(context.Background(), 0)
	require.Less(t, time.Since(start), time.Second)
}
