package sim

import (
	"container/list"
	"fmt"
)

// EventQueue holds the scheduled processes ordered by their wakeup time.
//
// Processes with the same wakeup time keep their insertion order, unless
// they are inserted as prior, in which case they go in front of all the
// processes scheduled for that time. The queue is not safe for concurrent
// use. The kernel guards it with its own lock.
type EventQueue struct {
	l     *list.List
	index map[*Process]*list.Element
}

// NewEventQueue creates and returns a newly created EventQueue
func NewEventQueue() *EventQueue {
	q := new(EventQueue)
	q.l = list.New()
	q.index = make(map[*Process]*list.Element)
	return q
}

// Insert adds a process to the queue according to its wakeup time.
func (q *EventQueue) Insert(p *Process, prior bool) {
	q.mustNotContain(p)

	var ele *list.Element
	for ele = q.l.Front(); ele != nil; ele = ele.Next() {
		t := ele.Value.(*Process).wakeup
		if t > p.wakeup || (prior && t >= p.wakeup) {
			break
		}
	}

	if ele != nil {
		q.index[p] = q.l.InsertBefore(p, ele)
	} else {
		q.index[p] = q.l.PushBack(p)
	}
}

// InsertBefore places p immediately in front of mark. The process adopts the
// wakeup time of mark. It returns false if mark is not queued.
func (q *EventQueue) InsertBefore(p, mark *Process) bool {
	q.mustNotContain(p)

	ele, found := q.index[mark]
	if !found {
		return false
	}

	p.wakeup = mark.wakeup
	q.index[p] = q.l.InsertBefore(p, ele)

	return true
}

// InsertAfter places p immediately behind mark. The process adopts the
// wakeup time of mark. It returns false if mark is not queued.
func (q *EventQueue) InsertAfter(p, mark *Process) bool {
	q.mustNotContain(p)

	ele, found := q.index[mark]
	if !found {
		return false
	}

	p.wakeup = mark.wakeup
	q.index[p] = q.l.InsertAfter(p, ele)

	return true
}

func (q *EventQueue) mustNotContain(p *Process) {
	if _, found := q.index[p]; found {
		panic(fmt.Sprintf("sim: process %s is already scheduled", p.name))
	}
}

// Remove unlinks the process from the queue.
func (q *EventQueue) Remove(p *Process) error {
	ele, found := q.index[p]
	if !found {
		return fmt.Errorf("%w: %s", ErrNotFound, p.name)
	}

	q.l.Remove(ele)
	delete(q.index, p)

	return nil
}

// PopEarliest removes and returns the process at the front of the queue.
func (q *EventQueue) PopEarliest() (*Process, error) {
	front := q.l.Front()
	if front == nil {
		return nil, ErrEmpty
	}

	p := q.l.Remove(front).(*Process)
	delete(q.index, p)

	return p, nil
}

// Peek returns the process at the front of the queue without removing it, or
// nil if the queue is empty.
func (q *EventQueue) Peek() *Process {
	front := q.l.Front()
	if front == nil {
		return nil
	}

	return front.Value.(*Process)
}

// NextAfter returns the process that follows p in the queue. It returns nil
// when p is the last one. A process that is not queued is usually the one
// currently running, so the front of the queue is its successor.
func (q *EventQueue) NextAfter(p *Process) (*Process, error) {
	if q.l.Len() == 0 {
		return nil, ErrEmpty
	}

	ele, found := q.index[p]
	if !found {
		return q.l.Front().Value.(*Process), nil
	}

	next := ele.Next()
	if next == nil {
		return nil, nil
	}

	return next.Value.(*Process), nil
}

// Contains tells if the process is queued.
func (q *EventQueue) Contains(p *Process) bool {
	_, found := q.index[p]
	return found
}

// Len returns the number of queued processes.
func (q *EventQueue) Len() int {
	return q.l.Len()
}

// Processes returns the queued processes in the order they will run.
func (q *EventQueue) Processes() []*Process {
	procs := make([]*Process, 0, q.l.Len())
	for ele := q.l.Front(); ele != nil; ele = ele.Next() {
		procs = append(procs, ele.Value.(*Process))
	}

	return procs
}
