package fake

import (
	"context"
	"sync"

	"clusterlink"
)

type listResult struct {
	records []clusterlink.ClusterRecord
	err     error
}

// ClusterRequest is one outstanding ListClusters call.
type ClusterRequest struct {
	done chan listResult
}

// ClusterLister is an in-memory cloud API. Calls block until the test completes
// them, unless Respond is set.
type ClusterLister struct {
	CallRecorder

	// Respond answers calls immediately when set.
	Respond func(ctx context.Context) ([]clusterlink.ClusterRecord, error)

	mu       sync.Mutex
	requests []*ClusterRequest
}

func NewClusterLister() *ClusterLister {
	return &ClusterLister{}
}

func (f *ClusterLister) ListClusters(ctx context.Context) ([]clusterlink.ClusterRecord, error) {
	f.record("ListClusters")
	if f.Respond != nil {
		return f.Respond(ctx)
	}

	req := &ClusterRequest{done: make(chan listResult, 1)}
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	select {
	case res := <-req.done:
		return res.records, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Requests returns how many blocking calls were issued so far.
func (f *ClusterLister) Requests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// Succeed completes the i-th issued request (0-based) with records.
func (f *ClusterLister) Succeed(i int, records ...clusterlink.ClusterRecord) {
	f.complete(i, listResult{records: records})
}

// Fail completes the i-th issued request (0-based) with err.
func (f *ClusterLister) Fail(i int, err error) {
	f.complete(i, listResult{err: err})
}

func (f *ClusterLister) complete(i int, res listResult) {
	f.mu.Lock()
	req := f.requests[i]
	f.mu.Unlock()

	select {
	case req.done <- res:
	default:
		panic("fake.ClusterLister: request completed twice")
	}
}
