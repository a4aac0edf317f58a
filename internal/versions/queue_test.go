package versions

import (
	"testing"
	"time"
)

func TestDownloadQueueDedupesWithinWindow(t *testing.T) {
	q := NewDownloadQueue(time.Minute, 10)
	if q.SeenRecently(1, "mod.jar", "1.2.3.4") {
		t.Fatal("first attempt should not be reported as seen")
	}
	if !q.SeenRecently(1, "mod.jar", "1.2.3.4") {
		t.Fatal("repeat attempt within the window should be reported as seen")
	}
}

func TestDownloadQueueDistinguishesKeys(t *testing.T) {
	q := NewDownloadQueue(time.Minute, 10)
	q.SeenRecently(1, "mod.jar", "1.2.3.4")
	if q.SeenRecently(2, "mod.jar", "1.2.3.4") {
		t.Fatal("different version id should not collide")
	}
	if q.SeenRecently(1, "other.jar", "1.2.3.4") {
		t.Fatal("different filename should not collide")
	}
	if q.SeenRecently(1, "mod.jar", "5.6.7.8") {
		t.Fatal("different ip should not collide")
	}
}

func TestDownloadQueueExpiresAfterTTL(t *testing.T) {
	q := NewDownloadQueue(10*time.Millisecond, 10)
	q.SeenRecently(1, "mod.jar", "1.2.3.4")
	time.Sleep(30 * time.Millisecond)
	if q.SeenRecently(1, "mod.jar", "1.2.3.4") {
		t.Fatal("expected dedup entry to have expired")
	}
}

func TestDownloadQueueEvictsOldestWhenFull(t *testing.T) {
	q := NewDownloadQueue(time.Minute, 2)
	q.SeenRecently(1, "a.jar", "1.1.1.1")
	q.SeenRecently(2, "b.jar", "1.1.1.1")
	q.SeenRecently(3, "c.jar", "1.1.1.1") // evicts (1, a.jar)

	if q.SeenRecently(1, "a.jar", "1.1.1.1") {
		t.Fatal("expected evicted entry to be treated as unseen")
	}
}
