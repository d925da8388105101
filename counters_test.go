package seqio

import (
	"fmt"
	"sync"
	"testing"
)

func TestCountersConcurrentIncrement(t *testing.T) {
	counters := NewCounters()

	const workers = 16
	const perWorker = 1000

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				counters.Inc("task_train", "examples")
				counters.Inc(fmt.Sprintf("task_%d", w%4), "input-shards")
			}
		}()
	}
	wg.Wait()

	if got := counters.Get("task_train", "examples"); got != workers*perWorker {
		t.Errorf("examples = %d, want %d", got, workers*perWorker)
	}

	snapshot := counters.Snapshot()
	var shards int64
	for ns, names := range snapshot {
		if ns == "task_train" {
			continue
		}
		shards += names["input-shards"]
	}
	if shards != workers*perWorker {
		t.Errorf("input-shards total = %d, want %d", shards, workers*perWorker)
	}

	if got := counters.Get("task_train", "missing"); got != 0 {
		t.Errorf("missing counter = %d, want 0", got)
	}
}
