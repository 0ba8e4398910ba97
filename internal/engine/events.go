package engine

import (
	"sync"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/tripwire/internal/trigger"
)

// NormalizeEvent returns the canonical (NFC) form of an event name, so
// visually identical names built from different code points match.
func NormalizeEvent(name string) string {
	return norm.NFC.String(name)
}

// eventLedger counts emissions per event name and remembers, per event
// trigger, the count it last observed.
type eventLedger struct {
	mu     sync.Mutex
	counts map[string]*sequence
	marks  map[string]map[string]int64
}

func newEventLedger() *eventLedger {
	return &eventLedger{
		counts: make(map[string]*sequence),
		marks:  make(map[string]map[string]int64),
	}
}

func (l *eventLedger) emit(event string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.counts[event]
	if !ok {
		c = &sequence{}
		l.counts[event] = c
	}
	return c.next()
}

func (l *eventLedger) countLocked(event string) int64 {
	if c, ok := l.counts[event]; ok {
		return c.last()
	}
	return 0
}

func (l *eventLedger) count(event string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.countLocked(event)
}

// register runs add and, if it succeeds, sets id's watermark to the current
// count. Holding the lock across both keeps the loop from observing the new
// trigger before its watermark exists.
func (l *eventLedger) register(event, id string, add func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := add(); err != nil {
		return err
	}
	m, ok := l.marks[event]
	if !ok {
		m = make(map[string]int64)
		l.marks[event] = m
	}
	m[id] = l.countLocked(event)
	return nil
}

// observe reports whether event was emitted since id last observed it, and
// advances the watermark when it was.
func (l *eventLedger) observe(event, id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	current := l.countLocked(event)
	m, ok := l.marks[event]
	if !ok {
		m = make(map[string]int64)
		l.marks[event] = m
	}
	if current > m[id] {
		m[id] = current
		return true
	}
	return false
}

func (l *eventLedger) forget(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for event, m := range l.marks {
		delete(m, id)
		if len(m) == 0 {
			delete(l.marks, event)
		}
	}
}

func (l *eventLedger) forgetAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	clear(l.marks)
}

// reset zeroes every counter and watermark.
func (l *eventLedger) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	clear(l.counts)
	clear(l.marks)
}

// EmitEvent records one emission of name and schedules re-evaluation.
// Every trigger listening on name fires once for it on a later tick.
func (a *Agent[S]) EmitEvent(name string) {
	event := NormalizeEvent(name)
	n := a.ledger.emit(event)
	a.changed.Store(true)
	a.logger.Debug("event emitted", "event", event, "count", n)
}

// EventCount returns how many times name was emitted since the last Start.
func (a *Agent[S]) EventCount(name string) int64 {
	return a.ledger.count(NormalizeEvent(name))
}

// RemoveEventTrigger unregisters trigger id if it listens on event.
func (a *Agent[S]) RemoveEventTrigger(event, id string) error {
	event = NormalizeEvent(event)
	if a.triggers.Dissociate(event, id) {
		return a.RemoveTrigger(id)
	}
	return &trigger.Error{
		Code:      trigger.ErrCodeTriggerNotFound,
		Message:   "no trigger listens on event " + event,
		TriggerID: id,
	}
}

// RemoveAllEventTriggersForEvent unregisters every trigger listening on
// event and returns how many were removed.
func (a *Agent[S]) RemoveAllEventTriggersForEvent(event string) int {
	removed := 0
	for _, id := range a.triggers.EventTriggers(NormalizeEvent(event)) {
		if a.RemoveTrigger(id) == nil {
			removed++
		}
	}
	return removed
}

// EventTriggersForEvent returns the ids listening on event in registration order.
func (a *Agent[S]) EventTriggersForEvent(event string) []string {
	return a.triggers.EventTriggers(NormalizeEvent(event))
}

// EventTriggers returns every event name with its listening trigger ids.
func (a *Agent[S]) EventTriggers() map[string][]string {
	return a.triggers.EventIndex()
}
