package threads

import (
	"reflect"
	"testing"
)

func levelOrder(rq *runQueue, level uint8) []ThreadID {
	var out []ThreadID
	rq.each(level, func(id ThreadID) { out = append(out, id) })
	return out
}

func TestRunQueueFIFOWithinLevel(t *testing.T) {
	rq := newRunQueue()
	rq.push(1, 3)
	rq.push(2, 3)
	rq.push(3, 3)

	for _, want := range []ThreadID{1, 2, 3} {
		got, ok := rq.popHighest()
		if !ok || got != want {
			t.Fatalf("popHighest() = %d, %v, want %d", got, ok, want)
		}
	}
	if _, ok := rq.popHighest(); ok {
		t.Fatalf("popHighest() on empty queue ok = true")
	}
	if rq.bitcache != 0 {
		t.Fatalf("bitcache = %#x, want 0", rq.bitcache)
	}
}

func TestRunQueueHighestLevelFirst(t *testing.T) {
	rq := newRunQueue()
	rq.push(4, 6)
	rq.push(5, 1)
	rq.push(6, 7)
	rq.push(7, 0)

	var got []ThreadID
	for {
		id, ok := rq.popHighest()
		if !ok {
			break
		}
		got = append(got, id)
	}
	want := []ThreadID{7, 5, 4, 6}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("pop order = %v, want %v", got, want)
	}
}

func TestRunQueuePushFront(t *testing.T) {
	rq := newRunQueue()
	rq.push(1, 2)
	rq.push(2, 2)
	rq.pushFront(3, 2)

	if got, want := levelOrder(&rq, 2), []ThreadID{3, 1, 2}; !reflect.DeepEqual(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}

	rq2 := newRunQueue()
	rq2.pushFront(9, 4)
	if got, want := levelOrder(&rq2, 4), []ThreadID{9}; !reflect.DeepEqual(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
}

func TestRunQueueRemove(t *testing.T) {
	tests := []struct {
		name   string
		remove ThreadID
		want   []ThreadID
	}{
		{name: "head", remove: 1, want: []ThreadID{2, 3}},
		{name: "middle", remove: 2, want: []ThreadID{1, 3}},
		{name: "tail", remove: 3, want: []ThreadID{1, 2}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rq := newRunQueue()
			rq.push(1, 5)
			rq.push(2, 5)
			rq.push(3, 5)
			if !rq.remove(tc.remove, 5) {
				t.Fatalf("remove(%d) = false", tc.remove)
			}
			if rq.contains(tc.remove) {
				t.Fatalf("contains(%d) = true after remove", tc.remove)
			}
			if got := levelOrder(&rq, 5); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("order = %v, want %v", got, tc.want)
			}
			rq.push(tc.remove, 5)
			if got := levelOrder(&rq, 5); got[len(got)-1] != tc.remove {
				t.Fatalf("re-push did not append at tail: %v", got)
			}
		})
	}
}

func TestRunQueueRemoveLastClearsLevel(t *testing.T) {
	rq := newRunQueue()
	rq.push(4, 3)
	if !rq.remove(4, 3) {
		t.Fatalf("remove() = false")
	}
	if !rq.empty(3) || rq.bitcache != 0 {
		t.Fatalf("level not cleared: tail=%d bitcache=%#x", rq.tail[3], rq.bitcache)
	}
	if rq.remove(4, 3) {
		t.Fatalf("second remove() = true")
	}
}

func TestRunQueueRemoveWrongLevel(t *testing.T) {
	rq := newRunQueue()
	rq.push(1, 2)
	rq.push(2, 4)
	if rq.remove(1, 4) {
		t.Fatalf("remove(1, 4) = true for a thread queued at level 2")
	}
	if got := levelOrder(&rq, 4); !reflect.DeepEqual(got, []ThreadID{2}) {
		t.Fatalf("level 4 = %v, want [2]", got)
	}
}

func TestRunQueueOutranks(t *testing.T) {
	rq := newRunQueue()
	rq.push(1, 3)
	if rq.outranks(3) {
		t.Fatalf("outranks(3) = true with only level 3 queued")
	}
	if !rq.outranks(4) {
		t.Fatalf("outranks(4) = false with level 3 queued")
	}
	if rq.outranks(0) {
		t.Fatalf("outranks(0) = true")
	}
}
