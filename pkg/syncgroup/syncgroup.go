package syncgroup

import "sync"

// SyncGroup wraps sync.WaitGroup for goroutine lifecycle management:
// Add registers functions, Run launches them with the Add/Done pairing
// handled internally, WaitAndClear waits for all of them and resets the
// group for reuse.
type SyncGroup struct {
	wg sync.WaitGroup

	mu      sync.Mutex
	fns     []func()
	running int
}

// NewSyncGroup creates an empty SyncGroup.
func NewSyncGroup() *SyncGroup {
	return &SyncGroup{}
}

// Add registers a function to run on the next Run. Calls while a previous
// batch is still running are dropped; WaitAndClear first.
func (g *SyncGroup) Add(fn func()) {
	if fn == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running > 0 {
		return
	}
	g.fns = append(g.fns, fn)
}

// Run launches every registered function in its own goroutine and clears
// the registration list. A no-op while a previous batch is still running.
func (g *SyncGroup) Run() {
	g.mu.Lock()
	if g.running > 0 {
		g.mu.Unlock()
		return
	}
	fns := g.fns
	g.fns = nil
	g.running = len(fns)
	g.mu.Unlock()

	for _, fn := range fns {
		g.wg.Add(1)
		go func(fn func()) {
			defer func() {
				g.wg.Done()
				g.mu.Lock()
				g.running--
				g.mu.Unlock()
			}()
			fn()
		}(fn)
	}
}

// Wait blocks until the current batch finishes.
func (g *SyncGroup) Wait() {
	g.wg.Wait()
}

// WaitAndClear waits for the current batch and resets the group so it can
// be reused.
func (g *SyncGroup) WaitAndClear() {
	g.wg.Wait()
	g.mu.Lock()
	g.fns = nil
	g.running = 0
	g.mu.Unlock()
}
