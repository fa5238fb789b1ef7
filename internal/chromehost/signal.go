package chromehost

import (
	"sync"

	"github.com/chromedp/cdproto/target"

	"pkt.systems/tabnap/schema"
)

type signalKind int

const (
	sigTargetCreated signalKind = iota + 1
	sigTargetChanged
	sigTargetDestroyed
	sigLoading
	sigComplete
	sigNavigated
	sigPageEvent
	sigDiscarded
	sigPinned
	sigActivate
	sigBarrier
)

// signal is one unit of work for the pump. CDP listeners only enqueue
// signals; everything that touches the registry or calls the handler runs
// on the pump goroutine.
type signal struct {
	kind    signalKind
	target  target.ID
	info    *target.Info
	tabID   schema.TabID
	url     string
	payload string
	flag    bool
	done    chan struct{}
}

// signalQueue is an unbounded FIFO so listener callbacks never block.
type signalQueue struct {
	mu    sync.Mutex
	items []signal
	ready chan struct{}
}

func newSignalQueue() *signalQueue {
	return &signalQueue{ready: make(chan struct{}, 1)}
}

func (q *signalQueue) push(s signal) {
	q.mu.Lock()
	q.items = append(q.items, s)
	q.mu.Unlock()
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

func (q *signalQueue) drain() []signal {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	return out
}
