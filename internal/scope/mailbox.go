package scope

// Mailbox holds at most one value. A Put replaces any value not yet taken, so the
// reader always sees the latest one.
type Mailbox[T any] struct {
	ch     chan T
	onDrop func(T)
}

// NewMailbox returns an empty mailbox. onDrop, if set, receives every replaced value.
func NewMailbox[T any](onDrop func(T)) *Mailbox[T] {
	return &Mailbox[T]{ch: make(chan T, 1), onDrop: onDrop}
}

// Put stores v without blocking.
func (m *Mailbox[T]) Put(v T) {
	for {
		select {
		case m.ch <- v:
			return
		default:
		}
		select {
		case old := <-m.ch:
			if m.onDrop != nil {
				m.onDrop(old)
			}
		default:
		}
	}
}

// Take removes and returns the stored value, if any.
func (m *Mailbox[T]) Take() (T, bool) {
	select {
	case v := <-m.ch:
		return v, true
	default:
		var zero T
		return zero, false
	}
}
