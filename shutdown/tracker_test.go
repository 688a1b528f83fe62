package shutdown

import (
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"
)

func TestOperationTracker_StartDone(t *testing.T) {
	tracker := NewOperationTracker()

	if !tracker.Start("generate") {
		t.Fatal("Start on open tracker should succeed")
	}
	tracker.Start("generate")
	tracker.Start("upscale")

	if got := tracker.ActiveCount(); got != 3 {
		t.Errorf("ActiveCount = %d, want 3", got)
	}
	if got := tracker.ActiveNames(); !reflect.DeepEqual(got, []string{"generate", "upscale"}) {
		t.Errorf("ActiveNames = %v", got)
	}

	tracker.Done("generate")
	tracker.Done("upscale")
	if got := tracker.ActiveNames(); !reflect.DeepEqual(got, []string{"generate"}) {
		t.Errorf("ActiveNames after Done = %v", got)
	}
	tracker.Done("generate")
	if got := tracker.ActiveCount(); got != 0 {
		t.Errorf("ActiveCount = %d, want 0", got)
	}
}

func TestOperationTracker_CloseRejects(t *testing.T) {
	tracker := NewOperationTracker()
	tracker.Close()

	if !tracker.closed {
		t.Error("tracker should be closed")
	}
	if tracker.Start("generate") {
		t.Error("Start after Close should fail")
	}
	if got := tracker.ActiveCount(); got != 0 {
		t.Errorf("ActiveCount = %d, want 0", got)
	}
}

func TestOperationTracker_Wait(t *testing.T) {
	t.Run("returns when operations finish", func(t *testing.T) {
		tracker := NewOperationTracker()
		tracker.Start("generate")
		go func() {
			time.Sleep(20 * time.Millisecond)
			tracker.Done("generate")
		}()
		if err := tracker.Wait(time.Second); err != nil {
			t.Errorf("Wait: %v", err)
		}
	})

	t.Run("times out", func(t *testing.T) {
		tracker := NewOperationTracker()
		tracker.Start("generate")
		defer tracker.Done("generate")
		if err := tracker.Wait(20 * time.Millisecond); !errors.Is(err, ErrWaitTimeout) {
			t.Errorf("Wait = %v, want ErrWaitTimeout", err)
		}
	})

	t.Run("empty tracker returns immediately", func(t *testing.T) {
		if err := NewOperationTracker().Wait(time.Millisecond); err != nil {
			t.Errorf("Wait: %v", err)
		}
	})
}

func TestOperationTracker_Concurrent(t *testing.T) {
	tracker := NewOperationTracker()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tracker.Start("op") {
				tracker.Done("op")
			}
		}()
	}
	wg.Wait()
	if got := tracker.ActiveCount(); got != 0 {
		t.Errorf("ActiveCount = %d, want 0", got)
	}
}
