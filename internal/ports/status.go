package ports

// StatusSink receives the human-readable status line emitted on every
// fleet transition.
type StatusSink interface {
	Statusf(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// NopStatus discards all status lines.
type NopStatus struct{}

func (NopStatus) Statusf(string, ...any) {}
func (NopStatus) Warnf(string, ...any)   {}
func (NopStatus) Errorf(string, ...any)  {}
