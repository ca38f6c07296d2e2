// Package memory implements the memory bank facade. A Bank is the single
// entry point for one memory domain (emotional or artistic) and keeps the
// observation store, pattern aggregate, and similarity index mutually
// consistent after every interaction.
package memory

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/neurocanvas/neurocanvas/pkg/classify"
	"github.com/neurocanvas/neurocanvas/pkg/metrics"
	"github.com/neurocanvas/neurocanvas/pkg/model"
	"github.com/neurocanvas/neurocanvas/pkg/pattern"
	"github.com/neurocanvas/neurocanvas/pkg/recommend"
	"github.com/neurocanvas/neurocanvas/pkg/similarity"
)

const (
	// DefaultCapacity bounds a user's observation window.
	DefaultCapacity = 10000

	// DefaultVectorDim matches the classifier's embedding size.
	DefaultVectorDim = 768

	// DefaultTopN is the recommendation count when the caller does not ask
	// for a specific one.
	DefaultTopN = 5
)

// ObservationStore captures what the bank needs from the durable backend.
type ObservationStore interface {
	InsertObservation(ctx context.Context, obs *model.Observation) (int64, error)
	ListObservations(ctx context.Context, userID string, kind model.Kind, limit, offset int) ([]model.Observation, error)
	EvictOverCapacity(ctx context.Context, userID string, kind model.Kind, capacity int) ([]int64, error)
	DeleteObservation(ctx context.Context, userID string, kind model.Kind, seq int64) error
}

// Options configures a Bank.
type Options struct {
	Kind            model.Kind
	Store           ObservationStore
	Classifier      classify.Classifier
	VectorDim       int
	Capacity        int
	NeighborK       int
	RecencyHalfLife time.Duration
	Logger          zerolog.Logger
	Now             func() time.Time
}

// Bank orchestrates ingest and query for one memory domain. All operations
// for a single user are serialized through a per-user RWMutex; different
// users never contend.
type Bank struct {
	kind       model.Kind
	store      ObservationStore
	classifier classify.Classifier
	engine     *recommend.Engine
	validate   *validator.Validate
	dim        int
	capacity   int
	now        func() time.Time
	log        zerolog.Logger

	mu    sync.Mutex // guards users map only
	users map[string]*userState
}

// userState is the in-memory per-user view: the pattern aggregate, the
// similarity index mirroring the stored window, and the label of every
// indexed observation. Hydrated lazily from the store on first touch.
type userState struct {
	mu        sync.RWMutex
	hydrated  bool
	state     *pattern.State
	index     *similarity.Index
	labels    map[int64]string
	latest    model.Observation
	hasLatest bool
}

// NewBank builds a Bank, applying defaults for anything unset.
func NewBank(opt Options) (*Bank, error) {
	if opt.Kind != model.KindEmotion && opt.Kind != model.KindStyle {
		return nil, fmt.Errorf("memory bank: unknown kind %q", opt.Kind)
	}
	if opt.Store == nil {
		return nil, fmt.Errorf("memory bank: store is required")
	}
	if opt.VectorDim <= 0 {
		opt.VectorDim = DefaultVectorDim
	}
	if opt.Capacity <= 0 {
		opt.Capacity = DefaultCapacity
	}
	if opt.Classifier == nil {
		opt.Classifier = classify.NewLexicon(opt.Kind, opt.VectorDim)
	}
	if opt.Now == nil {
		opt.Now = time.Now
	}

	engineOpts := []recommend.Option{recommend.WithClock(opt.Now)}
	if opt.NeighborK > 0 {
		engineOpts = append(engineOpts, recommend.WithNeighbors(opt.NeighborK))
	}
	if opt.RecencyHalfLife > 0 {
		engineOpts = append(engineOpts, recommend.WithHalfLife(opt.RecencyHalfLife))
	}

	return &Bank{
		kind:       opt.Kind,
		store:      opt.Store,
		classifier: opt.Classifier,
		engine:     recommend.NewEngine(engineOpts...),
		validate:   validator.New(),
		dim:        opt.VectorDim,
		capacity:   opt.Capacity,
		now:        opt.Now,
		log:        opt.Logger.With().Str("bank", string(opt.Kind)).Logger(),
		users:      make(map[string]*userState),
	}, nil
}

// Kind returns the bank's memory domain.
func (b *Bank) Kind() model.Kind { return b.kind }

// ProcessInteraction validates and classifies raw interaction data, appends
// the resulting observation, folds it into the pattern aggregate, indexes
// it, and trims the window. Either every step applies or none survives.
func (b *Bank) ProcessInteraction(ctx context.Context, userID string, payload model.InteractionPayload) error {
	if userID == "" {
		return model.WrapOp("process interaction", fmt.Errorf("%w: user id is required", model.ErrInvalidObservation))
	}
	if err := b.validate.Struct(payload); err != nil {
		return model.WrapOp("process interaction", fmt.Errorf("%w: %v", model.ErrInvalidObservation, err))
	}

	cls, err := b.classifier.Classify(ctx, payload)
	if err != nil {
		return model.WrapOp("process interaction", fmt.Errorf("%w: %v", model.ErrClassificationUnavailable, err))
	}

	obs := model.Observation{
		UserID:     userID,
		Kind:       b.kind,
		Timestamp:  b.now().UTC(),
		Label:      cls.Label,
		Confidence: cls.Confidence,
		Vector:     cls.Vector,
	}
	if err := b.checkObservation(obs); err != nil {
		return err
	}

	us := b.userFor(userID)
	us.mu.Lock()
	defer us.mu.Unlock()

	if !us.hydrated {
		if err := b.hydrate(ctx, userID, us); err != nil {
			return err
		}
	}

	seq, err := b.store.InsertObservation(ctx, &obs)
	if err != nil {
		return model.WrapOp("process interaction", err)
	}

	if err := us.index.Insert(seq, obs.Vector); err != nil {
		b.rollback(ctx, userID, us, seq)
		return err
	}
	us.state.Fold(obs.Label, obs.Timestamp)
	us.labels[seq] = obs.Label
	us.latest = obs
	us.hasLatest = true

	if err := b.trim(ctx, userID, us); err != nil {
		return err
	}

	metrics.InteractionsTotal.WithLabelValues(string(b.kind)).Inc()
	return nil
}

// GetHistory returns the user's observations most-recent-first. A user with
// no observations gets an empty slice, not an error.
func (b *Bank) GetHistory(ctx context.Context, userID string, limit, offset int) ([]model.Observation, error) {
	us := b.userFor(userID)
	us.mu.RLock()
	defer us.mu.RUnlock()

	out, err := b.store.ListObservations(ctx, userID, b.kind, limit, offset)
	if err != nil {
		return nil, model.WrapOp("get history", err)
	}
	if out == nil {
		out = []model.Observation{}
	}
	return out, nil
}

// GetUserPatterns returns the current pattern aggregate. Cold starts
// recompute it from the store; the result is identical either way.
func (b *Bank) GetUserPatterns(ctx context.Context, userID string) (model.UserMemoryState, error) {
	us, err := b.readableUser(ctx, userID)
	if err != nil {
		return model.UserMemoryState{}, err
	}
	defer us.mu.RUnlock()
	return us.state.Snapshot(), nil
}

// GetPersonalizedRecommendations ranks suggested labels for the user's next
// interaction. Zero observations yield an empty list, never an error.
func (b *Bank) GetPersonalizedRecommendations(ctx context.Context, userID string, topN int) ([]model.Recommendation, error) {
	if topN <= 0 {
		topN = DefaultTopN
	}
	us, err := b.readableUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer us.mu.RUnlock()

	if !us.hasLatest {
		return []model.Recommendation{}, nil
	}
	neighbors := us.index.Query(us.latest.Vector, b.engine.Neighbors())
	recs := b.engine.Rank(neighbors, us.state, func(seq int64) (string, bool) {
		label, ok := us.labels[seq]
		return label, ok
	}, topN)

	metrics.RecommendationsTotal.WithLabelValues(string(b.kind)).Inc()
	return recs, nil
}

func (b *Bank) userFor(userID string) *userState {
	b.mu.Lock()
	defer b.mu.Unlock()
	us, ok := b.users[userID]
	if !ok {
		us = newUserState(b.dim)
		b.users[userID] = us
	}
	return us
}

// readableUser returns the user's state read-locked and hydrated. On return
// the caller owns an RLock.
func (b *Bank) readableUser(ctx context.Context, userID string) (*userState, error) {
	us := b.userFor(userID)
	for {
		us.mu.RLock()
		if us.hydrated {
			return us, nil
		}
		us.mu.RUnlock()

		us.mu.Lock()
		if !us.hydrated {
			if err := b.hydrate(ctx, userID, us); err != nil {
				us.mu.Unlock()
				return nil, err
			}
		}
		us.mu.Unlock()
	}
}

// hydrate rebuilds the in-memory view from the durable window. Caller holds
// the write lock.
func (b *Bank) hydrate(ctx context.Context, userID string, us *userState) error {
	window, err := b.store.ListObservations(ctx, userID, b.kind, 0, 0)
	if err != nil {
		return model.WrapOp("hydrate", err)
	}

	us.reset(b.dim)
	// List is most-recent-first; replay oldest-first.
	for i := len(window) - 1; i >= 0; i-- {
		obs := window[i]
		if err := us.index.Insert(obs.Seq, obs.Vector); err != nil {
			return err
		}
		us.state.Fold(obs.Label, obs.Timestamp)
		us.labels[obs.Seq] = obs.Label
	}
	if len(window) > 0 {
		us.latest = window[0]
		us.hasLatest = true
	}
	us.hydrated = true

	b.log.Debug().Str("user", userID).Int("window", len(window)).Msg("memory state hydrated")
	return nil
}

// trim enforces the capacity bound, keeping index and aggregate in step with
// the store. Caller holds the write lock.
func (b *Bank) trim(ctx context.Context, userID string, us *userState) error {
	if us.index.Len() <= b.capacity {
		return nil
	}
	evicted, err := b.store.EvictOverCapacity(ctx, userID, b.kind, b.capacity)
	if err != nil {
		// Store and memory may now disagree; drop the cached view so the
		// next touch rebuilds from the durable truth.
		us.reset(b.dim)
		return model.WrapOp("evict", err)
	}
	for _, seq := range evicted {
		us.index.Remove(seq)
		us.state.Remove(us.labels[seq])
		delete(us.labels, seq)
	}
	metrics.EvictionsTotal.WithLabelValues(string(b.kind)).Add(float64(len(evicted)))

	if us.index.Len() > b.capacity {
		us.reset(b.dim)
		return model.WrapOp("evict", fmt.Errorf("%w: %d observations remain over capacity %d",
			model.ErrCapacityExceeded, us.index.Len(), b.capacity))
	}
	return nil
}

// rollback undoes a stored observation whose in-memory application failed,
// then drops the cached view so the next touch rehydrates from the store.
func (b *Bank) rollback(ctx context.Context, userID string, us *userState, seq int64) {
	if err := b.store.DeleteObservation(ctx, userID, b.kind, seq); err != nil {
		b.log.Error().Err(err).Str("user", userID).Int64("seq", seq).Msg("rollback delete failed; state will rehydrate from store")
	}
	us.reset(b.dim)
}

func (b *Bank) checkObservation(obs model.Observation) error {
	if obs.Label == "" {
		return model.WrapOp("check observation", fmt.Errorf("%w: missing label", model.ErrInvalidObservation))
	}
	if obs.Confidence < 0 || obs.Confidence > 1 {
		return model.WrapOp("check observation", fmt.Errorf("%w: confidence %v outside [0,1]", model.ErrInvalidObservation, obs.Confidence))
	}
	if len(obs.Vector) != b.dim {
		return model.WrapOp("check observation", fmt.Errorf("%w: vector dimension %d, want %d", model.ErrInvalidObservation, len(obs.Vector), b.dim))
	}
	for _, v := range obs.Vector {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return model.WrapOp("check observation", fmt.Errorf("%w: non-finite vector component", model.ErrInvalidObservation))
		}
	}
	return nil
}

func newUserState(dim int) *userState {
	us := &userState{}
	us.reset(dim)
	return us
}

// reset clears the in-memory view. Caller holds the write lock (or owns the
// state exclusively).
func (us *userState) reset(dim int) {
	us.hydrated = false
	us.state = pattern.NewState()
	us.index = similarity.NewIndex(dim)
	us.labels = make(map[int64]string)
	us.latest = model.Observation{}
	us.hasLatest = false
}
