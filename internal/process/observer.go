package process

// Observer receives lifecycle events from running processes. Implementations
// must be safe for concurrent use; callbacks run on the process goroutine and
// should return quickly.
type Observer interface {
	OnTransition(p *Process, from, to Status)
	OnHistory(p *Process, e HistoryEntry)
	OnRetry(p *Process, action string, attempt int, err error)
}

// MultiObserver fans events out to several observers in order.
type MultiObserver []Observer

func (m MultiObserver) OnTransition(p *Process, from, to Status) {
	for _, o := range m {
		o.OnTransition(p, from, to)
	}
}

func (m MultiObserver) OnHistory(p *Process, e HistoryEntry) {
	for _, o := range m {
		o.OnHistory(p, e)
	}
}

func (m MultiObserver) OnRetry(p *Process, action string, attempt int, err error) {
	for _, o := range m {
		o.OnRetry(p, action, attempt, err)
	}
}
