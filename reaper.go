package zx

import "sync"

// reaper is the dedicated finalizer spec.md §4.5 describes: it tracks
// every socket a Context has created so that Context.Term can signal
// all of them to terminate and wait for each to finish its own
// termination cascade before the process considers shutdown complete.
type reaper struct {
	ctx *Context

	mu    sync.Mutex
	socks map[*baseSocket]struct{}
}

func newReaper(ctx *Context) *reaper {
	return &reaper{ctx: ctx, socks: make(map[*baseSocket]struct{})}
}

func (r *reaper) add(s *baseSocket) {
	r.mu.Lock()
	r.socks[s] = struct{}{}
	r.mu.Unlock()
}

func (r *reaper) remove(s *baseSocket) {
	r.mu.Lock()
	delete(r.socks, s)
	r.mu.Unlock()
}

// stopAll implements the termination cascade: every known socket is
// asked to mark itself ctx_terminated and begin closing, and stopAll
// blocks until they have all finished.
func (r *reaper) stopAll() {
	r.mu.Lock()
	socks := make([]*baseSocket, 0, len(r.socks))
	for s := range r.socks {
		socks = append(socks, s)
	}
	r.mu.Unlock()

	if r.ctx.log != nil {
		r.ctx.log.Logf("reaper: stopping %d socket(s)", len(socks))
	}

	var wg sync.WaitGroup
	for _, s := range socks {
		wg.Add(1)
		go func(s *baseSocket) {
			defer wg.Done()
			s.ctxTerminate()
			s.waitTerminated()
			r.remove(s)
		}(s)
	}
	wg.Wait()
}
