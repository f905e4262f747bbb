package metrics

// MultiSink fans records out to several sinks. Optional recorders are
// only called on sinks that implement them.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordTransition forwards the record to all sinks, returning the first error encountered.
func (m *MultiSink) RecordTransition(rec TransitionRecord) error {
	for _, s := range m.Sinks {
		if err := s.RecordTransition(rec); err != nil {
			return err
		}
	}
	return nil
}

// RecordBroadcast forwards broadcast rounds.
func (m *MultiSink) RecordBroadcast(rec BroadcastRecord) error {
	for _, s := range m.Sinks {
		if r, ok := s.(BroadcastRecorder); ok {
			if err := r.RecordBroadcast(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordEscalation forwards escalations.
func (m *MultiSink) RecordEscalation(rec EscalationRecord) error {
	for _, s := range m.Sinks {
		if r, ok := s.(EscalationRecorder); ok {
			if err := r.RecordEscalation(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordNotifyFailure forwards delivery failures.
func (m *MultiSink) RecordNotifyFailure(rec NotifyFailureRecord) error {
	for _, s := range m.Sinks {
		if r, ok := s.(NotifyFailureRecorder); ok {
			if err := r.RecordNotifyFailure(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordFleetSize forwards fleet size metrics when supported by the sink.
func (m *MultiSink) RecordFleetSize(total, available int) error {
	for _, s := range m.Sinks {
		if r, ok := s.(FleetSizeRecorder); ok {
			if err := r.RecordFleetSize(total, available); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close releases every sink that holds resources.
func (m *MultiSink) Close() {
	closeSinks(m.Sinks)
}

func closeSinks(sinks []MetricsSink) {
	for _, s := range sinks {
		if c, ok := s.(interface{ Close() }); ok {
			c.Close()
		}
	}
}
