package queue

import (
	"sync"
	"testing"
	"time"
)

func TestQueue_PushTryPop_FIFO(t *testing.T) {
	q := New[int](4)
	q.Push(1)
	q.Push(2)
	q.Push(3)

	for _, want := range []int{1, 2, 3} {
		got, ok := q.TryPop()
		if !ok || got != want {
			t.Fatalf("TryPop() = (%v, %v), want (%v, true)", got, ok, want)
		}
	}
	if _, ok := q.TryPop(); ok {
		t.Fatal("TryPop on an empty queue must return ok=false")
	}
}

func TestQueue_PushBatch_PreservesOrder(t *testing.T) {
	q := New[int](8)
	q.PushBatch([]int{1, 2, 3, 4})

	for _, want := range []int{1, 2, 3, 4} {
		got, ok := q.TryPop()
		if !ok || got != want {
			t.Fatalf("TryPop() = (%v, %v), want (%v, true)", got, ok, want)
		}
	}
}

func TestQueue_PushBlocksWhenFull(t *testing.T) {
	q := New[int](1)
	q.Push(1)

	pushed := make(chan struct{})
	go func() {
		q.Push(2)
		close(pushed)
	}()

	select {
	case <-pushed:
		t.Fatal("Push on a full queue must block until space is available")
	case <-time.After(50 * time.Millisecond):
	}

	if _, ok := q.TryPop(); !ok {
		t.Fatal("expected first item to be available")
	}

	select {
	case <-pushed:
	case <-time.After(time.Second):
		t.Fatal("blocked Push never unblocked after space freed")
	}
}

func TestQueue_WaitPop_UnblocksOnSetWaitAllowedFalse(t *testing.T) {
	// Scenario S5: a waiter on an empty queue returns false in bounded
	// time once wait-allowed is cleared.
	q := New[int](1)
	result := make(chan bool, 1)

	go func() {
		_, ok := q.WaitPop()
		result <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	q.SetWaitAllowed(false)

	select {
	case ok := <-result:
		if ok {
			t.Fatal("WaitPop after shutdown must report ok=false")
		}
	case <-time.After(time.Second):
		t.Fatal("WaitPop never unblocked after SetWaitAllowed(false)")
	}
}

func TestQueue_ConcurrentProducersConsumers_PreserveMultiset(t *testing.T) {
	const producers = 4
	const perProducer = 250
	q := New[int](16)

	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		p := p
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(p*perProducer + i)
			}
		}()
	}

	total := producers * perProducer
	seen := make(map[int]bool, total)
	var mu sync.Mutex
	var consumerWg sync.WaitGroup
	consumerWg.Add(4)
	for c := 0; c < 4; c++ {
		go func() {
			defer consumerWg.Done()
			for {
				v, ok := q.WaitPop()
				if !ok {
					return
				}
				mu.Lock()
				seen[v] = true
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	for q.Size() > 0 {
		time.Sleep(time.Millisecond)
	}
	q.SetWaitAllowed(false)
	consumerWg.Wait()

	if len(seen) != total {
		t.Fatalf("observed %d distinct items, want %d", len(seen), total)
	}
}
