package orchestrator

import (
	"context"
	"errors"
	"sync"

	"github.com/JakeFAU/appearances-scraper/internal/pagination"
)

type fakeProxy struct {
	mu         sync.Mutex
	healthy    []bool
	restartErr error
	checks     int
	restarts   int
}

func (p *fakeProxy) HealthCheck(context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checks++
	if len(p.healthy) == 0 {
		return true
	}
	h := p.healthy[0]
	p.healthy = p.healthy[1:]
	return h
}

func (p *fakeProxy) RestartProxy(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.restarts++
	return p.restartErr
}

type fakeFetcher struct {
	body    string
	err     error
	purged  int
	fetched []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string, _ int) (string, error) {
	f.fetched = append(f.fetched, url)
	return f.body, f.err
}

func (f *fakeFetcher) PurgeSessions(context.Context) int {
	f.purged++
	return 2
}

type fakeWalker struct {
	mu      sync.Mutex
	results map[string]pagination.Result
	panics  map[string]bool
	calls   []string
	onWalk  func(url string)
}

var errNoPage = errors.New("no page")

func (w *fakeWalker) Walk(_ context.Context, url string) (pagination.Result, error) {
	w.mu.Lock()
	w.calls = append(w.calls, url)
	hook := w.onWalk
	w.mu.Unlock()
	if hook != nil {
		hook(url)
	}
	if w.panics[url] {
		panic("boom")
	}
	res, ok := w.results[url]
	if !ok {
		return pagination.Result{}, errNoPage
	}
	return res, nil
}

func (w *fakeWalker) Calls() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.calls...)
}
