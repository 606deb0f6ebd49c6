package pipeline

// Tracker follows one chapter through the pipeline.
type Tracker interface {
	SetTotal(total int)
	Update(done, total int, bytes int64)
	Finish(status string, failed bool)
}

// Sink hands out a tracker per chapter label.
type Sink func(label string) Tracker

type nopTracker struct{}

func (nopTracker) SetTotal(int)           {}
func (nopTracker) Update(int, int, int64) {}
func (nopTracker) Finish(string, bool)    {}

func NopSink(string) Tracker {
	return nopTracker{}
}
