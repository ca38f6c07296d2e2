package memory

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurocanvas/neurocanvas/pkg/model"
	"github.com/neurocanvas/neurocanvas/pkg/pattern"
	"github.com/neurocanvas/neurocanvas/pkg/store/sqlite"
)

const testDim = 8

// echoClassifier labels each payload with its first word and derives a tiny
// deterministic vector from the label, so tests control labels exactly.
type echoClassifier struct{}

func (echoClassifier) Classify(_ context.Context, payload model.InteractionPayload) (model.Classification, error) {
	label := payload.Content
	for i, r := range payload.Content {
		if r == ' ' {
			label = payload.Content[:i]
			break
		}
	}
	vec := make([]float32, testDim)
	for i := range vec {
		vec[i] = float32((int(label[i%len(label)]) % 7) + i)
	}
	return model.Classification{Label: label, Confidence: 0.9, Vector: vec}, nil
}

type failingClassifier struct{}

func (failingClassifier) Classify(context.Context, model.InteractionPayload) (model.Classification, error) {
	return model.Classification{}, errors.New("model endpoint down")
}

func newTestStore(t *testing.T) *sqlite.Database {
	t.Helper()
	db, err := sqlite.New(context.Background(), sqlite.Config{Path: filepath.Join(t.TempDir(), "memory.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestBank(t *testing.T, store ObservationStore, capacity int) *Bank {
	t.Helper()
	base := time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	tick := 0
	bank, err := NewBank(Options{
		Kind:       model.KindEmotion,
		Store:      store,
		Classifier: echoClassifier{},
		VectorDim:  testDim,
		Capacity:   capacity,
		Logger:     zerolog.Nop(),
		Now: func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			tick++
			return base.Add(time.Duration(tick) * time.Second)
		},
	})
	require.NoError(t, err)
	return bank
}

func ingest(t *testing.T, bank *Bank, user, content string) {
	t.Helper()
	require.NoError(t, bank.ProcessInteraction(context.Background(), user, model.InteractionPayload{
		Content: content,
		Source:  "text",
	}))
}

func TestDominantLabelScenario(t *testing.T) {
	bank := newTestBank(t, newTestStore(t), 100)

	ingest(t, bank, "alice", "joy one")
	ingest(t, bank, "alice", "joy two")
	ingest(t, bank, "alice", "joy three")
	ingest(t, bank, "alice", "sad one")

	state, err := bank.GetUserPatterns(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "joy", state.DominantLabel)
	assert.Equal(t, map[string]int{"joy": 3, "sad": 1}, state.Histogram)
}

func TestPatternsMatchFullRecomputation(t *testing.T) {
	bank := newTestBank(t, newTestStore(t), 100)
	ctx := context.Background()

	contents := []string{"joy a", "sad b", "joy c", "calm d", "sad e", "sad f", "joy g"}
	for _, c := range contents {
		ingest(t, bank, "alice", c)
	}

	incremental, err := bank.GetUserPatterns(ctx, "alice")
	require.NoError(t, err)

	history, err := bank.GetHistory(ctx, "alice", 0, 0)
	require.NoError(t, err)
	// History is most-recent-first; replay wants oldest-first.
	oldest := make([]model.Observation, len(history))
	for i, obs := range history {
		oldest[len(history)-1-i] = obs
	}
	recomputed := pattern.Replay(oldest).Snapshot()

	assert.Equal(t, recomputed, incremental)
}

func TestHydrationReproducesState(t *testing.T) {
	store := newTestStore(t)
	bank := newTestBank(t, store, 100)
	ctx := context.Background()

	for _, c := range []string{"joy a", "sad b", "joy c"} {
		ingest(t, bank, "alice", c)
	}
	want, err := bank.GetUserPatterns(ctx, "alice")
	require.NoError(t, err)

	// Fresh bank over the same database simulates a process restart.
	restarted := newTestBank(t, store, 100)
	got, err := restarted.GetUserPatterns(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	recs, err := restarted.GetPersonalizedRecommendations(ctx, "alice", 3)
	require.NoError(t, err)
	assert.NotEmpty(t, recs)
}

func TestEvictionKeepsCapacityAndIndexConsistent(t *testing.T) {
	const capacity = 3
	bank := newTestBank(t, newTestStore(t), capacity)
	ctx := context.Background()

	for i := 1; i <= capacity+1; i++ {
		ingest(t, bank, "alice", fmt.Sprintf("label%d x", i))
	}

	history, err := bank.GetHistory(ctx, "alice", 0, 0)
	require.NoError(t, err)
	require.Len(t, history, capacity)
	// The single oldest observation (seq 1) is gone.
	for _, obs := range history {
		assert.NotEqual(t, int64(1), obs.Seq)
	}

	// The index mirrors the store exactly.
	us := bank.userFor("alice")
	us.mu.RLock()
	defer us.mu.RUnlock()
	assert.Equal(t, capacity, us.index.Len())
	assert.False(t, us.index.Contains(1))
	for _, obs := range history {
		assert.True(t, us.index.Contains(obs.Seq))
	}

	// The evicted label left the histogram.
	assert.NotContains(t, us.state.Histogram, "label1")
}

func TestRecommendEmptyUser(t *testing.T) {
	bank := newTestBank(t, newTestStore(t), 100)

	recs, err := bank.GetPersonalizedRecommendations(context.Background(), "nobody", 5)
	require.NoError(t, err)
	require.NotNil(t, recs)
	assert.Empty(t, recs)
}

func TestRecommendDeterministic(t *testing.T) {
	// A pinned clock: identical history must rank identically on every call.
	fixed := time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC)
	bank, err := NewBank(Options{
		Kind:       model.KindEmotion,
		Store:      newTestStore(t),
		Classifier: echoClassifier{},
		VectorDim:  testDim,
		Capacity:   100,
		Logger:     zerolog.Nop(),
		Now:        func() time.Time { return fixed },
	})
	require.NoError(t, err)
	ctx := context.Background()

	for _, c := range []string{"joy a", "sad b", "joy c", "calm d", "joy e"} {
		ingest(t, bank, "alice", c)
	}

	first, err := bank.GetPersonalizedRecommendations(ctx, "alice", 10)
	require.NoError(t, err)
	require.NotEmpty(t, first)
	for i := 0; i < 5; i++ {
		again, err := bank.GetPersonalizedRecommendations(ctx, "alice", 10)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestConcurrentIngestsSameUserNoLostUpdate(t *testing.T) {
	bank := newTestBank(t, newTestStore(t), 100)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, content := range []string{"joy now", "sad now"} {
		wg.Add(1)
		go func(c string) {
			defer wg.Done()
			assert.NoError(t, bank.ProcessInteraction(ctx, "alice", model.InteractionPayload{Content: c, Source: "text"}))
		}(content)
	}
	wg.Wait()

	state, err := bank.GetUserPatterns(ctx, "alice")
	require.NoError(t, err)
	total := 0
	for _, n := range state.Histogram {
		total += n
	}
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, state.Histogram["joy"])
	assert.Equal(t, 1, state.Histogram["sad"])
}

func TestConcurrentIngestsDistinctUsers(t *testing.T) {
	bank := newTestBank(t, newTestStore(t), 100)
	ctx := context.Background()

	var wg sync.WaitGroup
	for u := 0; u < 8; u++ {
		wg.Add(1)
		go func(user string) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				assert.NoError(t, bank.ProcessInteraction(ctx, user, model.InteractionPayload{Content: "joy burst", Source: "text"}))
			}
		}(fmt.Sprintf("user%d", u))
	}
	wg.Wait()

	for u := 0; u < 8; u++ {
		state, err := bank.GetUserPatterns(ctx, fmt.Sprintf("user%d", u))
		require.NoError(t, err)
		assert.Equal(t, 10, state.Histogram["joy"])
	}
}

func TestClassifierFailureIngestsNothing(t *testing.T) {
	store := newTestStore(t)
	bank, err := NewBank(Options{
		Kind:       model.KindEmotion,
		Store:      store,
		Classifier: failingClassifier{},
		VectorDim:  testDim,
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)

	err = bank.ProcessInteraction(context.Background(), "alice", model.InteractionPayload{Content: "hello", Source: "text"})
	require.ErrorIs(t, err, model.ErrClassificationUnavailable)

	history, err := bank.GetHistory(context.Background(), "alice", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestInvalidPayloadRejected(t *testing.T) {
	bank := newTestBank(t, newTestStore(t), 100)
	ctx := context.Background()

	tests := []model.InteractionPayload{
		{Content: "", Source: "text"},
		{Content: "hello", Source: "carrier-pigeon"},
		{Content: "hello", Source: ""},
	}
	for _, payload := range tests {
		err := bank.ProcessInteraction(ctx, "alice", payload)
		require.ErrorIs(t, err, model.ErrInvalidObservation)
	}

	err := bank.ProcessInteraction(ctx, "", model.InteractionPayload{Content: "hello", Source: "text"})
	require.ErrorIs(t, err, model.ErrInvalidObservation)
}

func TestHistoryPagination(t *testing.T) {
	bank := newTestBank(t, newTestStore(t), 100)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		ingest(t, bank, "alice", fmt.Sprintf("joy %d", i))
	}

	page, err := bank.GetHistory(ctx, "alice", 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(5), page[0].Seq)
	assert.Equal(t, int64(4), page[1].Seq)

	page, err = bank.GetHistory(ctx, "alice", 2, 4)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, int64(1), page[0].Seq)
}
