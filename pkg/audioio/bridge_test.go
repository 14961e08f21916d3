package audioio

import (
	"sync/atomic"
	"testing"
	"time"
)

func sendByte(b *CallbackBridge, v byte) bool {
	buf := b.buffer(1)
	(*buf)[0] = v
	return b.Send(buf)
}

func TestBridgeDeliversInOrder(t *testing.T) {
	got := make(chan byte, 16)
	b := newCallbackBridge(16, func(frame []byte) { got <- frame[0] })
	defer b.Release()

	for i := 0; i < 10; i++ {
		if !sendByte(b, byte(i)) {
			t.Fatalf("frame %d was not queued", i)
		}
	}
	for i := 0; i < 10; i++ {
		select {
		case v := <-got:
			if v != byte(i) {
				t.Fatalf("unexpected frame: got %d, want %d", v, i)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timeout waiting for frame")
		}
	}
}

func TestBridgeSendAfterRelease(t *testing.T) {
	calls := make(chan struct{}, 1)
	b := newCallbackBridge(4, func([]byte) { calls <- struct{}{} })
	b.Release()
	b.Release()

	select {
	case <-b.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("delivery goroutine did not exit")
	}
	if sendByte(b, 1) {
		t.Fatal("Send after Release queued a frame")
	}
	select {
	case <-calls:
		t.Fatal("frame delivered after Release")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBridgeReleaseFromCallback(t *testing.T) {
	var b *CallbackBridge
	b = newCallbackBridge(4, func([]byte) { b.Release() })
	sendByte(b, 1)

	select {
	case <-b.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("delivery goroutine did not exit")
	}
	if b.delivered.Load() != 1 {
		t.Fatalf("unexpected delivered count %d", b.delivered.Load())
	}
}

func TestBridgeDefaultDepth(t *testing.T) {
	b := newCallbackBridge(0, func([]byte) {})
	defer b.Release()
	if cap(b.frames) != DefaultBridgeDepth {
		t.Fatalf("unexpected depth %d", cap(b.frames))
	}
}

func TestBridgeBufferReuse(t *testing.T) {
	b := newCallbackBridge(1, func([]byte) {})
	defer b.Release()

	buf := b.buffer(8)
	if len(*buf) != 8 {
		t.Fatalf("unexpected buffer length %d", len(*buf))
	}
	b.recycle(buf)
	if buf = b.buffer(4); len(*buf) != 4 {
		t.Fatalf("unexpected buffer length %d", len(*buf))
	}
}

func TestBridgeHaltWhileDelivering(t *testing.T) {
	entered := make(chan struct{}, 1)
	gate := make(chan struct{})
	var calls atomic.Int32
	b := newCallbackBridge(4, func([]byte) {
		calls.Add(1)
		entered <- struct{}{}
		<-gate
	})
	defer b.Release()

	sendByte(b, 1)
	<-entered
	sendByte(b, 2)

	halted := make(chan struct{})
	go func() {
		b.halt()
		close(halted)
	}()
	select {
	case <-halted:
	case <-time.After(5 * time.Second):
		t.Fatal("halt waited for a running call")
	}
	close(gate)

	b.Release()
	select {
	case <-b.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("delivery goroutine did not exit")
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("unexpected call count %d", n)
	}
}

func TestBridgeHaltWaitsForPendingDelivery(t *testing.T) {
	var calls atomic.Int32
	b := newCallbackBridge(4, func([]byte) { calls.Add(1) })
	defer b.Release()

	// Holding the delivery lock stands in for a delivery between its halted
	// check and onFrame.
	b.mu.Lock()
	sendByte(b, 1)
	sendByte(b, 2)
	halted := make(chan struct{})
	go func() {
		b.halt()
		close(halted)
	}()
	for !b.halted.Load() {
		time.Sleep(time.Millisecond)
	}
	select {
	case <-halted:
		t.Fatal("halt returned while a delivery held the lock")
	case <-time.After(20 * time.Millisecond):
	}
	b.mu.Unlock()
	<-halted

	b.Release()
	<-b.Done()
	if n := calls.Load(); n != 0 {
		t.Fatalf("got %d deliveries after halt", n)
	}
}
