package output

// Metrics receives registry measurements.
type Metrics interface {
	ObserveOperation(op string, err error)
	SetObservers(n int)
	SnapshotDelivered()
	RecordsMigrated(n int)
}
