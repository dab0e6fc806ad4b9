package workflow

// LengthLink carries the watermark length from the embed workflow to the
// extract workflow's input. It only flows one way and is never cleared.
type LengthLink struct {
	value       string
	set         bool
	subscribers []func(string)
}

// Subscribe registers fn to receive every published length
func (l *LengthLink) Subscribe(fn func(string)) {
	l.subscribers = append(l.subscribers, fn)
}

// Publish stores v and delivers it to all subscribers
func (l *LengthLink) Publish(v string) {
	l.value = v
	l.set = true
	for _, fn := range l.subscribers {
		fn(v)
	}
}

// Value returns the last published length
func (l *LengthLink) Value() (string, bool) {
	return l.value, l.set
}
