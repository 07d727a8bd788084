package resilience

import (
	"context"
	"sync"
)

// scriptedProxy plays back queued health, restart and fetch results.
type scriptedProxy struct {
	mu sync.Mutex

	health   []bool
	restarts []error
	creates  []error
	fetches  []fetchResult

	open      map[string]struct{}
	created   []string
	destroyed []string
	restarted int
	fetched   []string
}

type fetchResult struct {
	body string
	err  error
}

func newScriptedProxy() *scriptedProxy {
	return &scriptedProxy{open: map[string]struct{}{}}
}

func (p *scriptedProxy) HealthCheck(context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.health) == 0 {
		return true
	}
	h := p.health[0]
	p.health = p.health[1:]
	return h
}

func (p *scriptedProxy) ListSessions(context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.open))
	for name := range p.open {
		out = append(out, name)
	}
	return out, nil
}

func (p *scriptedProxy) CreateSession(_ context.Context, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.creates) > 0 {
		err := p.creates[0]
		p.creates = p.creates[1:]
		if err != nil {
			return err
		}
	}
	p.open[name] = struct{}{}
	p.created = append(p.created, name)
	return nil
}

func (p *scriptedProxy) Fetch(_ context.Context, url, _ string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fetched = append(p.fetched, url)
	if len(p.fetches) == 0 {
		return "<html></html>", nil
	}
	r := p.fetches[0]
	p.fetches = p.fetches[1:]
	return r.body, r.err
}

func (p *scriptedProxy) DestroySession(_ context.Context, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.open, name)
	p.destroyed = append(p.destroyed, name)
	return nil
}

func (p *scriptedProxy) RestartProxy(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.restarted++
	if len(p.restarts) == 0 {
		return nil
	}
	err := p.restarts[0]
	p.restarts = p.restarts[1:]
	return err
}

func (p *scriptedProxy) openSessions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.open)
}
