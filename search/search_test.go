package search_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/lexgo/blobstore"
	"github.com/hupe1980/lexgo/engine"
	"github.com/hupe1980/lexgo/model"
	"github.com/hupe1980/lexgo/schema"
	"github.com/hupe1980/lexgo/search"
)

// testReader builds a two-segment index:
//
//	segment one: 1 "cat", 2 "cat dog", 3 "dog ruff"
//	segment two: 4 "cat cat cat", 5 "horse", 6 "dog cat", 7 "cat big dog"
func testReader(t *testing.T) *engine.Reader {
	t.Helper()
	ctx := context.Background()

	e, err := engine.Open(ctx, engine.Config{
		Store: blobstore.NewMemoryStore(),
		Schema: schema.New(map[string]schema.Field{
			"id":   {Indexed: true, Stored: true, Required: true},
			"body": {Indexed: true, Stored: true, Scored: true},
		}),
	})
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })

	commit := func(docs ...engine.Document) {
		w, err := e.Writer()
		require.NoError(t, err)
		for _, d := range docs {
			require.NoError(t, w.AddDocument(d))
		}
		require.NoError(t, w.Commit(ctx))
	}
	commit(
		engine.Document{"id": "1", "body": "cat"},
		engine.Document{"id": "2", "body": "cat dog"},
		engine.Document{"id": "3", "body": "dog ruff"},
	)
	commit(
		engine.Document{"id": "4", "body": "cat cat cat"},
		engine.Document{"id": "5", "body": "horse"},
		engine.Document{"id": "6", "body": "dog cat"},
		engine.Document{"id": "7", "body": "cat big dog"},
	)

	r, err := e.Reader()
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	require.Len(t, r.Segments(), 2)
	return r
}

// ids runs the query and returns the stored id of every hit, in rank
// order.
func ids(t *testing.T, r *engine.Reader, q search.Query, opts ...search.Option) []string {
	t.Helper()
	opts = append(opts, search.WithStoredFields("id"), search.WithLimit(100))
	hits, err := search.Search(context.Background(), r, q, opts...)
	require.NoError(t, err)

	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = string(h.Stored["id"])
	}
	return out
}

func TestTermSearch(t *testing.T) {
	r := testReader(t)

	got := ids(t, r, search.NewTerm("body", "cat"))
	assert.ElementsMatch(t, []string{"1", "2", "4", "6", "7"}, got)

	assert.Empty(t, ids(t, r, search.NewTerm("body", "fish")))
	assert.Empty(t, ids(t, r, search.NewTerm("title", "cat")))
}

func TestAndIsIntersection(t *testing.T) {
	r := testReader(t)

	got := ids(t, r, search.NewAnd(
		search.NewTerm("body", "cat"),
		search.NewTerm("body", "dog"),
	))
	assert.ElementsMatch(t, []string{"2", "6", "7"}, got)
}

func TestOrIsUnionWithSummedScores(t *testing.T) {
	r := testReader(t)
	ctx := context.Background()

	q := search.NewOr(search.NewTerm("body", "cat"), search.NewTerm("body", "dog"))
	got := ids(t, r, q)
	assert.ElementsMatch(t, []string{"1", "2", "3", "4", "6", "7"}, got)

	// A document matching both children scores the sum of the
	// individual term scores.
	find := func(q search.Query, id string) float64 {
		hits, err := search.Search(ctx, r, q, search.WithLimit(100), search.WithStoredFields("id"))
		require.NoError(t, err)
		for _, h := range hits {
			if string(h.Stored["id"]) == id {
				return h.Score
			}
		}
		t.Fatalf("doc %s not in results", id)
		return 0
	}

	catScore := find(search.NewTerm("body", "cat"), "2")
	dogScore := find(search.NewTerm("body", "dog"), "2")
	orScore := find(q, "2")
	assert.InDelta(t, catScore+dogScore, orScore, 1e-9)
}

func TestAndNotExcludes(t *testing.T) {
	r := testReader(t)

	got := ids(t, r, search.NewAndNot(
		search.NewTerm("body", "cat"),
		search.NewTerm("body", "dog"),
	))
	assert.ElementsMatch(t, []string{"1", "4"}, got)
}

func TestPhraseRequiresAdjacencyInOrder(t *testing.T) {
	r := testReader(t)

	// "dog cat" (doc 6) and "cat big dog" (doc 7) must not match.
	got := ids(t, r, search.NewPhrase("body", "cat", "dog"))
	assert.Equal(t, []string{"2"}, got)
}

func TestPhraseSlop(t *testing.T) {
	r := testReader(t)

	q := &search.PhraseQuery{Field: "body", Terms: []string{"cat", "dog"}, Slop: 1}
	got := ids(t, r, q)
	assert.ElementsMatch(t, []string{"2", "7"}, got)
}

func TestPrefixExpansion(t *testing.T) {
	r := testReader(t)

	assert.ElementsMatch(t, []string{"5"}, ids(t, r, search.NewPrefix("body", "ho")))
	assert.Empty(t, ids(t, r, search.NewPrefix("body", "zz")))
}

func TestRangeExpansion(t *testing.T) {
	r := testReader(t)

	// Terms in range: big, cat, dog (not horse, not ruff).
	got := ids(t, r, search.NewRange("body", "big", "dog"))
	assert.ElementsMatch(t, []string{"1", "2", "3", "4", "6", "7"}, got)

	// Exclusive upper bound drops "dog".
	q := search.NewRange("body", "big", "dog")
	q.IncHi = false
	got = ids(t, r, q)
	assert.ElementsMatch(t, []string{"1", "2", "4", "6", "7"}, got)
}

func TestWildcardExpansion(t *testing.T) {
	r := testReader(t)

	assert.ElementsMatch(t, []string{"3"}, ids(t, r, search.NewWildcard("body", "r?ff")))
	assert.ElementsMatch(t, []string{"5"}, ids(t, r, search.NewWildcard("body", "h*se")))
}

func TestQueryTooBroad(t *testing.T) {
	r := testReader(t)

	_, err := search.Search(context.Background(), r,
		search.NewPrefix("body", ""),
		search.WithMaxExpansion(2))

	var tooBroad *search.QueryTooBroadError
	require.ErrorAs(t, err, &tooBroad)
	assert.Equal(t, 2, tooBroad.Limit)
}

func TestEveryMatchesAllLiveDocs(t *testing.T) {
	r := testReader(t)

	got := ids(t, r, search.NewEvery())
	assert.Len(t, got, 7)
}

func TestEqualScoresOrderByGlobalID(t *testing.T) {
	r := testReader(t)

	// Every document scores 1, so ranking falls back to ascending
	// global id: segment one's documents first, in insertion order.
	hits, err := search.Search(context.Background(), r, search.NewEvery(),
		search.WithLimit(3), search.WithStoredFields("id"))
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "1", string(hits[0].Stored["id"]))
	assert.Equal(t, "2", string(hits[1].Stored["id"]))
	assert.Equal(t, "3", string(hits[2].Stored["id"]))
}

func TestBoostReordersResults(t *testing.T) {
	r := testReader(t)

	q := search.NewOr(
		search.NewTerm("body", "horse"),
		search.NewBoost(search.NewTerm("body", "ruff"), 100),
	)
	got := ids(t, r, q)
	require.Len(t, got, 2)
	assert.Equal(t, "3", got[0])
	assert.Equal(t, "5", got[1])
}

func TestLimitBoundsResults(t *testing.T) {
	r := testReader(t)

	hits, err := search.Search(context.Background(), r, search.NewEvery(), search.WithLimit(2))
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestFilterRestrictsResults(t *testing.T) {
	r := testReader(t)

	// Admit only doc 6 (segment two, local 2).
	f := search.NewFilter()
	f.Add(model.GlobalID{Segment: r.Segments()[1].Seg.ID(), Local: 2})

	got := ids(t, r, search.NewTerm("body", "cat"), search.WithFilter(f))
	assert.Equal(t, []string{"6"}, got)
}

func TestSearchResultsAreDeterministic(t *testing.T) {
	r := testReader(t)
	ctx := context.Background()

	q := search.NewOr(search.NewTerm("body", "cat"), search.NewTerm("body", "dog"))
	first, err := search.Search(ctx, r, q, search.WithLimit(4))
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := search.Search(ctx, r, q, search.WithLimit(4))
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestSearchEmptyIndex(t *testing.T) {
	ctx := context.Background()
	e, err := engine.Open(ctx, engine.Config{
		Store:  blobstore.NewMemoryStore(),
		Schema: schema.New(map[string]schema.Field{"body": {Indexed: true}}),
	})
	require.NoError(t, err)
	defer e.Close()

	r, err := e.Reader()
	require.NoError(t, err)
	defer r.Close()

	hits, err := search.Search(ctx, r, search.NewTerm("body", "cat"))
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchSkipsDeletedDocs(t *testing.T) {
	ctx := context.Background()
	e, err := engine.Open(ctx, engine.Config{
		Store: blobstore.NewMemoryStore(),
		Schema: schema.New(map[string]schema.Field{
			"id":   {Indexed: true, Stored: true},
			"body": {Indexed: true, Scored: true},
		}),
	})
	require.NoError(t, err)
	defer e.Close()

	w, err := e.Writer()
	require.NoError(t, err)
	require.NoError(t, w.AddDocument(engine.Document{"id": "1", "body": "cat"}))
	require.NoError(t, w.AddDocument(engine.Document{"id": "2", "body": "cat"}))
	require.NoError(t, w.Commit(ctx))

	w, err = e.Writer()
	require.NoError(t, err)
	require.NoError(t, w.DeleteByTerm("id", "1"))
	require.NoError(t, w.Commit(ctx))

	r, err := e.Reader()
	require.NoError(t, err)
	defer r.Close()

	got := ids(t, r, search.NewTerm("body", "cat"))
	assert.Equal(t, []string{"2"}, got)

	// Every honors tombstones too.
	assert.Equal(t, []string{"2"}, ids(t, r, search.NewEvery()))
}
