package event

import "sync"

var bookPool = sync.Pool{
	New: func() any { return new(BookUpdateEvent) },
}

// AcquireBookUpdateEvent returns a zeroed event stamped with a fresh BaseEvent.
// The consumer must hand it back with ReleaseBookUpdateEvent.
func AcquireBookUpdateEvent() *BookUpdateEvent {
	ev := bookPool.Get().(*BookUpdateEvent)
	ev.BaseEvent = NewBase()
	return ev
}

func ReleaseBookUpdateEvent(ev *BookUpdateEvent) {
	if ev == nil {
		return
	}
	*ev = BookUpdateEvent{}
	bookPool.Put(ev)
}

// Warmup pre-fills the pool.
func Warmup(n int) {
	evs := make([]*BookUpdateEvent, n)
	for i := range evs {
		evs[i] = AcquireBookUpdateEvent()
	}
	for _, ev := range evs {
		ReleaseBookUpdateEvent(ev)
	}
}
