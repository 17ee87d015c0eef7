package scclient

import "time"

// ResponseHandler receives the outcome of an emit that requested an
// acknowledgement. err is non-nil for ResponseError, AckTimeout, or
// Cancelled; data carries the server's response payload on success.
type ResponseHandler func(err error, data any)

// responseItem is the pending-response table's value type.
type responseItem struct {
	handler ResponseHandler
	timer   *time.Timer
}

// pendingTable tracks outstanding emits awaiting a response. It is only
// ever touched from the socket's actor goroutine, so it needs no
// internal locking; timers call back into the actor via the post
// function supplied at construction.
type pendingTable struct {
	items map[uint64]*responseItem
	post  func(func())
}

func newPendingTable(post func(func())) *pendingTable {
	return &pendingTable{items: make(map[uint64]*responseItem), post: post}
}

// add registers a handler for cid. If timeout is non-zero, an ack timer
// is armed; its expiry posts onTimeout back onto the actor.
func (t *pendingTable) add(cid uint64, handler ResponseHandler, timeout time.Duration, onTimeout func(cid uint64)) {
	item := &responseItem{handler: handler}
	if timeout > 0 {
		item.timer = time.AfterFunc(timeout, func() {
			t.post(func() { onTimeout(cid) })
		})
	}
	t.items[cid] = item
}

// take removes and returns the item for cid, cancelling its timer. The
// second result is false if no such cid is pending (UnexpectedRid).
func (t *pendingTable) take(cid uint64) (*responseItem, bool) {
	item, ok := t.items[cid]
	if !ok {
		return nil, false
	}
	if item.timer != nil {
		item.timer.Stop()
	}
	delete(t.items, cid)
	return item, true
}

// drain removes and returns every pending item, cancelling their timers.
// Used on the CLOSED transition.
func (t *pendingTable) drain() []*responseItem {
	items := make([]*responseItem, 0, len(t.items))
	for cid, item := range t.items {
		if item.timer != nil {
			item.timer.Stop()
		}
		items = append(items, item)
		delete(t.items, cid)
	}
	return items
}
