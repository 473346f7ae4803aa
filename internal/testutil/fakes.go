package testutil

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"model-gateway-service/internal/core/domain"
	"model-gateway-service/internal/core/ports/output"
)

// FakeDeploymentRepo is an in-memory DeploymentRepository. Upsert is
// deliberately not atomic: it yields between the lookup and the insert, so
// callers that skip the model lock will create duplicate rows.
type FakeDeploymentRepo struct {
	mu      sync.Mutex
	rows    []*domain.Deployment
	Inserts int
	Updates int

	// UpdateErr, when set, is returned by Update.
	UpdateErr error
}

func NewFakeDeploymentRepo() *FakeDeploymentRepo {
	return &FakeDeploymentRepo{}
}

// Rows returns copies of every stored row, including duplicates.
func (r *FakeDeploymentRepo) Rows() []domain.Deployment {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Deployment, 0, len(r.rows))
	for _, d := range r.rows {
		out = append(out, *d)
	}
	return out
}

// Put stores d as is.
func (r *FakeDeploymentRepo) Put(d *domain.Deployment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *d
	r.rows = append(r.rows, &cp)
}

func (r *FakeDeploymentRepo) find(modelID uuid.UUID) *domain.Deployment {
	for _, d := range r.rows {
		if d.ModelID == modelID {
			return d
		}
	}
	return nil
}

func (r *FakeDeploymentRepo) GetByModel(_ context.Context, modelID uuid.UUID) (*domain.Deployment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := r.find(modelID)
	if d == nil {
		return nil, domain.ErrDeploymentNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *FakeDeploymentRepo) GetByModelAndKey(ctx context.Context, modelID uuid.UUID, apiKey string) (*domain.Deployment, error) {
	d, err := r.GetByModel(ctx, modelID)
	if err != nil {
		return nil, err
	}
	if d.APIKey != apiKey {
		return nil, domain.ErrDeploymentNotFound
	}
	return d, nil
}

func (r *FakeDeploymentRepo) List(_ context.Context) ([]*domain.Deployment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Deployment, 0, len(r.rows))
	for _, d := range r.rows {
		cp := *d
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r *FakeDeploymentRepo) Upsert(ctx context.Context, modelID uuid.UUID, seed ports.DeploymentSeed, mutate ports.DeploymentMutation) (*domain.Deployment, error) {
	existing, err := r.GetByModel(ctx, modelID)

	// Widen the check-then-act window.
	runtime.Gosched()
	time.Sleep(time.Millisecond)

	if err == nil {
		mutate(existing)
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, d := range r.rows {
			if d.ID == existing.ID {
				key := r.rows[i].APIKey
				cp := *existing
				cp.APIKey = key
				r.rows[i] = &cp
			}
		}
		r.Updates++
		return existing, nil
	}

	d, err := seed()
	if err != nil {
		return nil, err
	}
	mutate(d)

	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *d
	r.rows = append(r.rows, &cp)
	r.Inserts++
	return d, nil
}

func (r *FakeDeploymentRepo) Update(ctx context.Context, d *domain.Deployment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.UpdateErr != nil {
		return r.UpdateErr
	}
	for i, row := range r.rows {
		if row.ID == d.ID {
			cp := *d
			cp.APIKey = row.APIKey
			r.rows[i] = &cp
			r.Updates++
			return nil
		}
	}
	return domain.ErrDeploymentNotFound
}

// CallRecorder collects call-log entries in memory.
type CallRecorder struct {
	mu    sync.Mutex
	calls []*domain.APICall
}

func (r *CallRecorder) Record(call *domain.APICall) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *CallRecorder) Calls() []*domain.APICall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*domain.APICall(nil), r.calls...)
}

// Ensure interface compliance
var _ ports.DeploymentRepository = (*FakeDeploymentRepo)(nil)
