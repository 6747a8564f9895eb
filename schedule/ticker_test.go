package schedule

import (
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	socialtest "github.com/teranos/socialia/internal/testing"
	"github.com/teranos/socialia/post"
)

func TestTickerExecutesDuePost(t *testing.T) {
	db := socialtest.CreateTestDB(t)
	store := NewStore(db)
	execs := NewExecutionStore(db)

	poster := &stubPoster{platform: post.PlatformTwitter, result: post.Result{ExternalID: "t-1"}}
	cfg := DefaultDispatcherConfig()
	cfg.PostsPerMinute = 0
	d := NewDispatcher(store, execs, post.NewRegistry(poster), cfg, zap.NewNop().Sugar())

	job, err := d.Schedule(ScheduleRequest{
		Platform: post.PlatformTwitter,
		Payload:  post.Payload{Text: "tick"},
		DueAt:    time.Now(),
	})
	require.NoError(t, err)

	ticker := NewTicker(d, store, TickerConfig{Interval: 10 * time.Millisecond}, zap.NewNop().Sugar())
	ticker.Start()

	require.Eventually(t, func() bool {
		stored, err := store.GetJob(job.ID)
		return err == nil && stored.State == StatePosted
	}, 2*time.Second, 10*time.Millisecond)

	ticker.Stop()
	assert.Equal(t, 1, poster.callCount())
}

func TestTickerStopIsIdempotentlySafe(t *testing.T) {
	db := socialtest.CreateTestDB(t)
	store := NewStore(db)
	execs := NewExecutionStore(db)

	cfg := DefaultDispatcherConfig()
	cfg.PostsPerMinute = 0
	d := NewDispatcher(store, execs, post.NewRegistry(), cfg, zap.NewNop().Sugar())

	ticker := NewTicker(d, store, DefaultTickerConfig(), zap.NewNop().Sugar())
	ticker.Start()
	ticker.Stop()

	stats := ticker.GetStats()
	assert.Contains(t, stats, "ticks_since_start")
	assert.Equal(t, 1*time.Second, stats["interval"])
}
