package lexgo_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lexgo "github.com/hupe1980/lexgo"
	"github.com/hupe1980/lexgo/schema"
	"github.com/hupe1980/lexgo/search"
)

func testSchema() *schema.Schema {
	return schema.New(map[string]schema.Field{
		"id":    {Indexed: true, Stored: true, Required: true},
		"title": {Indexed: true, Stored: true, Scored: true, Boost: 2.0},
		"body":  {Indexed: true, Scored: true},
	})
}

func TestIndexLifecycle(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	ix, err := lexgo.OpenPath(ctx, dir, testSchema())
	require.NoError(t, err)

	w, err := ix.Writer()
	require.NoError(t, err)
	require.NoError(t, w.AddDocument(lexgo.Document{
		"id":    "1",
		"title": "a tale of two cities",
		"body":  "it was the best of times it was the worst of times",
	}))
	require.NoError(t, w.AddDocument(lexgo.Document{
		"id":    "2",
		"title": "great expectations",
		"body":  "my father's family name being pirrip",
	}))
	require.NoError(t, w.Commit(ctx))

	hits, err := ix.Search(ctx, search.NewTerm("title", "tale"), search.WithStoredFields("title"))
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a tale of two cities", string(hits[0].Stored["title"]))

	n, err := ix.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)

	require.NoError(t, ix.Close())

	// Everything survives a reopen from the same directory.
	ix2, err := lexgo.OpenPath(ctx, dir, testSchema())
	require.NoError(t, err)
	defer ix2.Close()

	n, err = ix2.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)

	hits, err = ix2.Search(ctx, search.NewPhrase("body", "best", "of", "times"))
	require.NoError(t, err)
	require.Len(t, hits, 1)
}

func TestTitleBoostOutranksBody(t *testing.T) {
	ctx := context.Background()

	ix, err := lexgo.OpenPath(ctx, t.TempDir(), testSchema())
	require.NoError(t, err)
	defer ix.Close()

	w, err := ix.Writer()
	require.NoError(t, err)
	require.NoError(t, w.AddDocument(lexgo.Document{"id": "1", "title": "whales", "body": "nothing else"}))
	require.NoError(t, w.AddDocument(lexgo.Document{"id": "2", "title": "other", "body": "whales"}))
	require.NoError(t, w.Commit(ctx))

	q := search.NewOr(
		search.NewTerm("title", "whales"),
		search.NewTerm("body", "whales"),
	)
	hits, err := ix.Search(ctx, q, search.WithStoredFields("id"))
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "1", string(hits[0].Stored["id"]))
}

func TestUpdateAndOptimize(t *testing.T) {
	ctx := context.Background()

	ix, err := lexgo.OpenPath(ctx, t.TempDir(), testSchema())
	require.NoError(t, err)
	defer ix.Close()

	for _, batch := range [][]lexgo.Document{
		{{"id": "1", "title": "first"}},
		{{"id": "2", "title": "second"}},
		{{"id": "3", "title": "third"}},
	} {
		w, err := ix.Writer()
		require.NoError(t, err)
		for _, doc := range batch {
			require.NoError(t, w.AddDocument(doc))
		}
		require.NoError(t, w.Commit(ctx))
	}

	w, err := ix.Writer()
	require.NoError(t, err)
	require.NoError(t, w.UpdateDocument("id", lexgo.Document{"id": "2", "title": "rewritten"}))
	require.NoError(t, w.Commit(ctx))

	require.NoError(t, ix.Optimize(ctx))

	hits, err := ix.Search(ctx, search.NewTerm("title", "second"))
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = ix.Search(ctx, search.NewTerm("title", "rewritten"), search.WithStoredFields("id"))
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "2", string(hits[0].Stored["id"]))

	n, err := ix.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)
}

func TestSingleWriterLock(t *testing.T) {
	ctx := context.Background()

	ix, err := lexgo.OpenPath(ctx, t.TempDir(), testSchema())
	require.NoError(t, err)
	defer ix.Close()

	w1, err := ix.Writer()
	require.NoError(t, err)

	_, err = ix.Writer()
	var le *lexgo.LockError
	require.ErrorAs(t, err, &le)

	require.NoError(t, w1.Commit(ctx))

	w2, err := ix.Writer()
	require.NoError(t, err)
	w2.Cancel()
}

func TestMetricsCollection(t *testing.T) {
	ctx := context.Background()
	metrics := &lexgo.BasicMetricsCollector{}

	ix, err := lexgo.OpenPath(ctx, t.TempDir(), testSchema(),
		lexgo.WithMetricsCollector(metrics),
		lexgo.WithLogger(lexgo.NoopLogger()))
	require.NoError(t, err)
	defer ix.Close()

	w, err := ix.Writer()
	require.NoError(t, err)
	require.NoError(t, w.AddDocument(lexgo.Document{"id": "1", "body": "observable"}))
	require.NoError(t, w.Commit(ctx))

	_, err = ix.Search(ctx, search.NewTerm("body", "observable"))
	require.NoError(t, err)

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.CommitCount)
	assert.Equal(t, int64(1), stats.CommitDocs)
	assert.Equal(t, int64(1), stats.SearchCount)
	assert.Equal(t, int64(0), stats.SearchErrors)
}

func TestOperationLogging(t *testing.T) {
	ctx := context.Background()

	var mu sync.Mutex
	var buf bytes.Buffer
	logged := lexgo.NewLogger(slog.NewTextHandler(lockedWriter{mu: &mu, w: &buf}, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	ix, err := lexgo.OpenPath(ctx, t.TempDir(), testSchema(), lexgo.WithLogger(logged))
	require.NoError(t, err)

	w, err := ix.Writer()
	require.NoError(t, err)
	require.NoError(t, w.AddDocument(lexgo.Document{"id": "1", "body": "observable"}))
	require.NoError(t, w.Commit(ctx))

	_, err = ix.Search(ctx, search.NewTerm("body", "observable"))
	require.NoError(t, err)
	require.NoError(t, ix.Optimize(ctx))
	require.NoError(t, ix.Close())

	mu.Lock()
	out := buf.String()
	mu.Unlock()
	assert.Contains(t, out, "commit completed")
	assert.Contains(t, out, "docs=1")
	assert.Contains(t, out, "search completed")
	assert.Contains(t, out, "hits=1")
	assert.Contains(t, out, "optimize completed")
}

// lockedWriter serializes handler output with the engine's background
// logging.
type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (l lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func TestMergeThrottleOption(t *testing.T) {
	ctx := context.Background()

	ix, err := lexgo.OpenPath(ctx, t.TempDir(), testSchema(),
		lexgo.WithMergeThrottle(64<<20))
	require.NoError(t, err)
	defer ix.Close()

	// Enough single-doc commits to trip the tiered policy and exercise
	// the throttled background merge path.
	for i := 0; i < 5; i++ {
		w, err := ix.Writer()
		require.NoError(t, err)
		require.NoError(t, w.AddDocument(lexgo.Document{
			"id":   string(rune('a' + i)),
			"body": "merge fodder",
		}))
		require.NoError(t, w.Commit(ctx))
	}

	n, err := ix.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(5), n)
}
