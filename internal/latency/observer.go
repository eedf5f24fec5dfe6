package latency

// Observer is notified of pipeline events, typically to feed metrics.
type Observer interface {
	SampleRecorded(s Sample)
	DecodeFailed(err error)
	BatchReported(sum Summary)
	ReportFailed(err error)
}

type nopObserver struct{}

func (nopObserver) SampleRecorded(Sample) {}
func (nopObserver) DecodeFailed(error)    {}
func (nopObserver) BatchReported(Summary) {}
func (nopObserver) ReportFailed(error)    {}
