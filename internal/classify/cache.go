package classify

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/rcliao/change-correlator/internal/model"
)

// Persistent cache kinds. One namespace per classification pass, mirroring
// the three upstream cache files.
const (
	CacheKindChangeNoise   = "change_noise"
	CacheKindIncidentNoise = "incident_noise"
	CacheKindCausality     = "causality"
)

// CacheStore persists classification verdicts across runs.
type CacheStore interface {
	GetClassification(ctx context.Context, kind, key string) (model.Label, bool, error)
	PutClassification(ctx context.Context, kind, key string, label model.Label, modelName string) error
}

// Cached memoizes a Classifier. Lookup order is memory, then the persistent
// store, then the wrapped classifier. Concurrent requests for the same key
// collapse into a single external call, so each distinct title or pair is
// classified at most once per run.
type Cached struct {
	inner     Classifier
	store     CacheStore
	modelName string

	mu       sync.RWMutex
	memo     map[string]model.Label
	inflight singleflight.Group
}

// NewCached wraps inner with memoization backed by store. store may be nil,
// in which case verdicts live only for the run.
func NewCached(inner Classifier, store CacheStore, modelName string) *Cached {
	return &Cached{
		inner:     inner,
		store:     store,
		modelName: modelName,
		memo:      map[string]model.Label{},
	}
}

// ClassifyTitle implements Classifier.
func (c *Cached) ClassifyTitle(ctx context.Context, kind TitleKind, title string) (model.Label, error) {
	cacheKind := CacheKindChangeNoise
	if kind == KindIncident {
		cacheKind = CacheKindIncidentNoise
	}
	return c.classify(ctx, cacheKind, title, func() (model.Label, error) {
		return c.inner.ClassifyTitle(ctx, kind, title)
	})
}

// ClassifyPair implements Classifier.
func (c *Cached) ClassifyPair(ctx context.Context, incidentTitle, changeTitle string) (model.Label, error) {
	key := model.Pair{IncidentTitle: incidentTitle, ChangeTitle: changeTitle}.Key()
	return c.classify(ctx, CacheKindCausality, key, func() (model.Label, error) {
		return c.inner.ClassifyPair(ctx, incidentTitle, changeTitle)
	})
}

func (c *Cached) classify(ctx context.Context, cacheKind, key string, call func() (model.Label, error)) (model.Label, error) {
	memoKey := cacheKind + "\x00" + key

	c.mu.RLock()
	label, ok := c.memo[memoKey]
	c.mu.RUnlock()
	if ok {
		return label, nil
	}

	// Coalesce concurrent requests for the same key. Errors are not
	// memoized so a later retry of the run can reattempt.
	v, err, _ := c.inflight.Do(memoKey, func() (interface{}, error) {
		if c.store != nil {
			label, found, err := c.store.GetClassification(ctx, cacheKind, key)
			if err != nil {
				return nil, err
			}
			if found {
				return label, nil
			}
		}

		label, err := call()
		if err != nil {
			return nil, err
		}

		if c.store != nil {
			if err := c.store.PutClassification(ctx, cacheKind, key, label, c.modelName); err != nil {
				return nil, err
			}
		}
		return label, nil
	})
	if err != nil {
		return "", err
	}

	label = v.(model.Label)
	c.mu.Lock()
	c.memo[memoKey] = label
	c.mu.Unlock()
	return label, nil
}

var _ Classifier = (*Cached)(nil)
