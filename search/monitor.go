package search

// Monitor observes the stages of a search.
type Monitor interface {
	Start(query string)
	AfterQueryEmbedding(strategy string)
	AfterScan(artifacts, records, mismatched int)
	Hit(hit *Hit, verbatim bool)
	Finish(hits []*Hit)
}

type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (noopMonitor) Start(string)               {}
func (noopMonitor) AfterQueryEmbedding(string) {}
func (noopMonitor) AfterScan(int, int, int)    {}
func (noopMonitor) Hit(*Hit, bool)             {}
func (noopMonitor) Finish([]*Hit)              {}
