package progress

// Observer consumes published snapshots. Implementations must tolerate
// repeated calls and may be invoked from the hub's publisher goroutine
// concurrently with other observers; a panicking observer is contained and
// logged, never propagated.
type Observer interface {
	Notify(Snapshot)
}

// ObserverFunc adapts a plain function to the Observer interface.
type ObserverFunc func(Snapshot)

// Notify implements Observer.
func (f ObserverFunc) Notify(snap Snapshot) {
	f(snap)
}
