package recorder

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordRefresh(_ *RefreshEvent) error { return nil }
func (n *NoopRecorder) RecordValuation(_ *Valuation) error  { return nil }
func (n *NoopRecorder) Valuations(_, _ string, _ int) ([]Valuation, error) {
	return nil, nil
}
func (n *NoopRecorder) Close() error { return nil }
