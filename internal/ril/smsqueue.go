package ril

import (
	"github.com/danmuck/ipcril/internal/logging"
	"github.com/rs/zerolog"
)

// SMSQueueEntry is one outgoing message waiting for the send lock or for
// the modem's service-center address. The entry owns its buffers.
type SMSQueueEntry struct {
	Seq  uint8
	PDU  []byte
	SMSC []byte
}

// SMSQueue is a fixed set of slots plus the single in-flight lock.
//
// New entries take the lowest free slot above the highest occupied one. When
// the last slot is taken, entries shift down over any holes; only a queue with
// no holes drops its oldest entry (slot 0). Drain takes the highest occupied
// slot, which is the newest entry rather than the oldest; callers depend on
// that order.
type SMSQueue struct {
	slots  []*SMSQueueEntry
	locked bool
	log    zerolog.Logger
}

func NewSMSQueue(capacity int) *SMSQueue {
	if capacity <= 0 {
		capacity = DefaultConfig().SMSQueueSlots
	}
	return &SMSQueue{
		slots: make([]*SMSQueueEntry, capacity),
		log:   logging.Component("sms"),
	}
}

// Acquire takes the send lock, reporting false when already held.
func (q *SMSQueue) Acquire() bool {
	if q.locked {
		return false
	}
	q.locked = true
	return true
}

func (q *SMSQueue) Release()     { q.locked = false }
func (q *SMSQueue) Locked() bool { return q.locked }

// Add stores a copy of pdu and smsc and returns the slot used. evicted
// reports that the oldest entry was dropped to make room.
func (q *SMSQueue) Add(seq uint8, pdu, smsc []byte) (slot int, evicted bool) {
	slot, evicted = q.reserve()
	q.slots[slot] = &SMSQueueEntry{
		Seq:  seq,
		PDU:  cloneBytes(pdu),
		SMSC: cloneBytes(smsc),
	}
	q.log.Debug().Int("slot", slot).Uint8("seq", seq).Msg("queued outgoing sms")
	return slot, evicted
}

func (q *SMSQueue) reserve() (int, bool) {
	slot := -1
	for i := len(q.slots); i > 0; i-- {
		if q.slots[i-1] != nil {
			break
		}
		slot = i - 1
	}
	if slot >= 0 {
		return slot, false
	}

	// Slots taken out of order leave holes below the top; close them up
	// before dropping anything.
	if n := q.compact(); n < len(q.slots) {
		return n, false
	}

	dropped := q.slots[0]
	q.log.Error().
		Uint8("seq", dropped.Seq).
		Int("capacity", len(q.slots)).
		Msg("sms queue full, dropping oldest entry")
	copy(q.slots, q.slots[1:])
	last := len(q.slots) - 1
	q.slots[last] = nil
	return last, true
}

// compact moves occupied slots down over any holes, keeping their order, and
// returns the number of occupied slots.
func (q *SMSQueue) compact() int {
	n := 0
	for _, e := range q.slots {
		if e != nil {
			q.slots[n] = e
			n++
		}
	}
	for i := n; i < len(q.slots); i++ {
		q.slots[i] = nil
	}
	return n
}

// FindBySeq returns the slot holding seq.
func (q *SMSQueue) FindBySeq(seq uint8) (int, bool) {
	for i, e := range q.slots {
		if e != nil && e.Seq == seq {
			return i, true
		}
	}
	return -1, false
}

// Next returns the highest occupied slot.
func (q *SMSQueue) Next() (int, bool) {
	for i := len(q.slots) - 1; i >= 0; i-- {
		if q.slots[i] != nil {
			return i, true
		}
	}
	return -1, false
}

// Take empties slot and returns what it held.
func (q *SMSQueue) Take(slot int) (SMSQueueEntry, bool) {
	if slot < 0 || slot >= len(q.slots) || q.slots[slot] == nil {
		return SMSQueueEntry{}, false
	}
	e := *q.slots[slot]
	q.slots[slot] = nil
	return e, true
}

// Slot returns a copy of the entry in slot, if any.
func (q *SMSQueue) Slot(slot int) (SMSQueueEntry, bool) {
	if slot < 0 || slot >= len(q.slots) || q.slots[slot] == nil {
		return SMSQueueEntry{}, false
	}
	return *q.slots[slot], true
}

func (q *SMSQueue) Len() int {
	n := 0
	for _, e := range q.slots {
		if e != nil {
			n++
		}
	}
	return n
}

func (q *SMSQueue) Cap() int { return len(q.slots) }

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte{}, b...)
}
