package threads

import "math/bits"

const noThread ThreadID = 0xFF

// runQueue keeps one circular FIFO of thread IDs per priority level.
//
// Each level stores only its tail; the head is next[tail]. A bit in bitcache is
// set while the corresponding level is non-empty, so the most favored level is
// the lowest set bit.
type runQueue struct {
	bitcache uint32
	tail     [Levels]ThreadID
	next     [MaxThreads]ThreadID
}

func newRunQueue() runQueue {
	var rq runQueue
	for i := range rq.tail {
		rq.tail[i] = noThread
	}
	for i := range rq.next {
		rq.next[i] = noThread
	}
	return rq
}

func (rq *runQueue) contains(id ThreadID) bool {
	return rq.next[id] != noThread
}

func (rq *runQueue) empty(level uint8) bool {
	return rq.tail[level] == noThread
}

// push appends id at the tail of level.
func (rq *runQueue) push(id ThreadID, level uint8) {
	rq.insert(id, level)
	rq.tail[level] = id
}

// pushFront inserts id at the head of level.
func (rq *runQueue) pushFront(id ThreadID, level uint8) {
	rq.insert(id, level)
}

// insert links id right after the tail, i.e. as the new head.
func (rq *runQueue) insert(id ThreadID, level uint8) {
	tail := rq.tail[level]
	if tail == noThread {
		rq.next[id] = id
		rq.tail[level] = id
	} else {
		rq.next[id] = rq.next[tail]
		rq.next[tail] = id
	}
	rq.bitcache |= 1 << level
}

func (rq *runQueue) peekHead(level uint8) (ThreadID, bool) {
	tail := rq.tail[level]
	if tail == noThread {
		return noThread, false
	}
	return rq.next[tail], true
}

func (rq *runQueue) popHead(level uint8) (ThreadID, bool) {
	tail := rq.tail[level]
	if tail == noThread {
		return noThread, false
	}
	head := rq.next[tail]
	if head == tail {
		rq.tail[level] = noThread
		rq.bitcache &^= 1 << level
	} else {
		rq.next[tail] = rq.next[head]
	}
	rq.next[head] = noThread
	return head, true
}

// remove unlinks id from level wherever it sits.
func (rq *runQueue) remove(id ThreadID, level uint8) bool {
	tail := rq.tail[level]
	if tail == noThread || !rq.contains(id) {
		return false
	}
	prev := tail
	for {
		cur := rq.next[prev]
		if cur == id {
			break
		}
		if cur == tail {
			return false
		}
		prev = cur
	}
	if rq.next[id] == id {
		rq.tail[level] = noThread
		rq.bitcache &^= 1 << level
	} else {
		rq.next[prev] = rq.next[id]
		if tail == id {
			rq.tail[level] = prev
		}
	}
	rq.next[id] = noThread
	return true
}

// highest returns the most favored non-empty level.
func (rq *runQueue) highest() (uint8, bool) {
	if rq.bitcache == 0 {
		return 0, false
	}
	return uint8(bits.TrailingZeros32(rq.bitcache)), true
}

func (rq *runQueue) popHighest() (ThreadID, bool) {
	level, ok := rq.highest()
	if !ok {
		return noThread, false
	}
	return rq.popHead(level)
}

// outranks reports whether a level strictly more favored than level is non-empty.
func (rq *runQueue) outranks(level uint8) bool {
	return rq.bitcache&(1<<level-1) != 0
}

// each visits the members of level from head to tail.
func (rq *runQueue) each(level uint8, fn func(ThreadID)) {
	tail := rq.tail[level]
	if tail == noThread {
		return
	}
	id := rq.next[tail]
	for {
		fn(id)
		if id == tail {
			return
		}
		id = rq.next[id]
	}
}

func (rq *runQueue) len(level uint8) int {
	n := 0
	rq.each(level, func(ThreadID) { n++ })
	return n
}
