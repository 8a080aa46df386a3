package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublisher_RetainsCompletionEvents(t *testing.T) {
	t.Parallel()

	p := New()
	ctx := context.Background()

	id, err := p.Publish(ctx, "crawl-completions", map[string]any{"task_id": "t1", "status": "completed"})
	require.NoError(t, err)
	require.Equal(t, "mem-1", id)

	id, err = p.Publish(ctx, "crawl-completions", map[string]any{"task_id": "t2", "status": "failed"})
	require.NoError(t, err)
	require.Equal(t, "mem-2", id)

	events := p.Events()
	require.Len(t, events, 2)
	require.Equal(t, "crawl-completions", events[0].Topic)
	require.Equal(t, map[string]any{"task_id": "t1", "status": "completed"}, events[0].Payload)
	require.Equal(t, "mem-2", events[1].ID)
}

func TestPublisher_ForTopic(t *testing.T) {
	t.Parallel()

	p := New()
	ctx := context.Background()
	_, err := p.Publish(ctx, "crawl-completions", map[string]any{"task_id": "t1"})
	require.NoError(t, err)
	_, err = p.Publish(ctx, "other", map[string]any{"task_id": "t2"})
	require.NoError(t, err)

	require.Len(t, p.ForTopic("crawl-completions"), 1)
	require.Empty(t, p.ForTopic("missing"))
}

func TestPublisher_EventsReturnsCopy(t *testing.T) {
	t.Parallel()

	p := New()
	_, err := p.Publish(context.Background(), "crawl-completions", "payload")
	require.NoError(t, err)

	events := p.Events()
	events[0].Topic = "mutated"

	require.Equal(t, "crawl-completions", p.Events()[0].Topic)
}
