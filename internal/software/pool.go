package software

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// bandPool runs row bands of a frame on a fixed set of goroutines.
//
// Each worker owns a queue. An idle worker steals from the others, so a
// band that is slow to convert does not hold up the rest of the frame.
type bandPool struct {
	workers int
	queues  []chan func()
	done    chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool
}

// newBandPool starts workers goroutines. Zero or negative means GOMAXPROCS.
func newBandPool(workers int) *bandPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	depth := max(workers*4, 8)

	p := &bandPool{
		workers: workers,
		queues:  make([]chan func(), workers),
		done:    make(chan struct{}),
	}
	for i := range workers {
		p.queues[i] = make(chan func(), depth)
	}
	p.running.Store(true)

	p.wg.Add(workers)
	for i := range workers {
		go p.run(i)
	}
	return p
}

func (p *bandPool) run(id int) {
	defer p.wg.Done()
	own := p.queues[id]
	for {
		select {
		case <-p.done:
			p.drain(own)
			return
		case fn := <-own:
			fn()
			continue
		default:
		}

		if fn := p.steal(id); fn != nil {
			fn()
			continue
		}
		select {
		case <-p.done:
			p.drain(own)
			return
		case fn := <-own:
			fn()
		}
	}
}

func (p *bandPool) drain(q chan func()) {
	for {
		select {
		case fn := <-q:
			fn()
		default:
			return
		}
	}
}

func (p *bandPool) steal(id int) func() {
	for i := range p.workers {
		if i == id {
			continue
		}
		select {
		case fn := <-p.queues[i]:
			return fn
		default:
		}
	}
	return nil
}

// forEachBand splits [0, rows) into bands of at most bandRows rows, runs fn
// on every band and waits for all of them. After Close it runs fn inline.
func (p *bandPool) forEachBand(rows, bandRows int, fn func(y0, y1 int)) {
	if rows <= 0 {
		return
	}
	if bandRows <= 0 {
		bandRows = rows
	}
	if !p.running.Load() {
		fn(0, rows)
		return
	}

	var wg sync.WaitGroup
	for i, y0 := 0, 0; y0 < rows; i, y0 = i+1, y0+bandRows {
		y1 := min(y0+bandRows, rows)
		wg.Add(1)
		task := func() {
			defer wg.Done()
			fn(y0, y1)
		}
		select {
		case p.queues[i%p.workers] <- task:
		case <-p.done:
			task()
		}
	}
	wg.Wait()
}

// close stops the workers after they finish queued bands. Safe to call more
// than once.
func (p *bandPool) close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}
