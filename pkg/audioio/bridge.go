package audioio

import (
	"sync"
	"sync/atomic"
)

// DefaultBridgeDepth is how many captured frames may wait for the consumer
// before new frames are dropped.
const DefaultBridgeDepth = 64

// FrameFunc receives one captured frame. The slice is only valid for the
// duration of the call; it is reused afterwards.
type FrameFunc func(frame []byte)

// CallbackBridge moves frames from the host thread to a single delivery
// goroutine, preserving order. Send never blocks.
type CallbackBridge struct {
	onFrame FrameFunc
	frames  chan *[]byte
	buffers sync.Pool

	// mu is held by the delivery goroutine from the halted check until
	// onFrame returns.
	mu         sync.Mutex
	halted     atomic.Bool
	delivering atomic.Bool
	done       chan struct{}
	exited     chan struct{}
	closeOnce  sync.Once

	delivered atomic.Uint64
	dropped   atomic.Uint64
}

func newCallbackBridge(depth int, onFrame FrameFunc) *CallbackBridge {
	if depth <= 0 {
		depth = DefaultBridgeDepth
	}
	b := &CallbackBridge{
		onFrame: onFrame,
		frames:  make(chan *[]byte, depth),
		done:    make(chan struct{}),
		exited:  make(chan struct{}),
		buffers: sync.Pool{New: func() any {
			buf := make([]byte, 0)
			return &buf
		}},
	}
	go b.deliverLoop()
	return b
}

// buffer returns a pooled buffer of exactly size bytes.
func (b *CallbackBridge) buffer(size int) *[]byte {
	buf := b.buffers.Get().(*[]byte)
	if cap(*buf) < size {
		*buf = make([]byte, size)
	}
	*buf = (*buf)[:size]
	return buf
}

func (b *CallbackBridge) recycle(buf *[]byte) {
	*buf = (*buf)[:0]
	b.buffers.Put(buf)
}

// Send queues buf for delivery. It is called from the host thread only and
// takes ownership of buf. It reports whether the frame was queued.
func (b *CallbackBridge) Send(buf *[]byte) bool {
	if b.halted.Load() {
		b.recycle(buf)
		return false
	}
	select {
	case b.frames <- buf:
		return true
	default:
		b.dropped.Add(1)
		b.recycle(buf)
		return false
	}
}

func (b *CallbackBridge) deliverLoop() {
	defer close(b.exited)
	for {
		select {
		case <-b.done:
			return
		case buf := <-b.frames:
			if !b.deliver(buf) {
				return
			}
		}
	}
}

func (b *CallbackBridge) deliver(buf *[]byte) bool {
	defer b.recycle(buf)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.halted.Load() {
		return false
	}
	b.delivering.Store(true)
	b.onFrame(*buf)
	b.delivering.Store(false)
	b.delivered.Add(1)
	return true
}

// halt stops delivery: no onFrame call starts after halt returns. A delivery
// that passed the halted check but has not entered onFrame yet is waited for.
// A call already running is not, so onFrame may halt its own bridge.
func (b *CallbackBridge) halt() {
	b.halted.Store(true)
	if b.delivering.Load() {
		return
	}
	b.mu.Lock()
	b.mu.Unlock()
}

// Release halts the bridge, stops the delivery goroutine and drops queued
// frames. It is safe to call more than once and from within onFrame.
func (b *CallbackBridge) Release() {
	b.halt()
	b.closeOnce.Do(func() {
		close(b.done)
	})
	for {
		select {
		case buf := <-b.frames:
			b.recycle(buf)
		default:
			return
		}
	}
}

// Done is closed once the delivery goroutine has exited. Waiting on it from
// inside onFrame deadlocks.
func (b *CallbackBridge) Done() <-chan struct{} {
	return b.exited
}
