package dispatch

// Stats are monotonically increasing counters, reset only by ResetStats.
type Stats struct {
	TotalTasks  int64 `json:"totalTasks"`
	LocalTasks  int64 `json:"localTasks"`
	RemoteTasks int64 `json:"remoteTasks"`
	Succeeded   int64 `json:"succeeded"`
	Failed      int64 `json:"failed"`
	Retries     int64 `json:"retries"`
	Fallbacks   int64 `json:"fallbacks"`
	CacheHits   int64 `json:"cacheHits"`
}

// Stats returns a copy of the counters.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// ResetStats zeroes every counter.
func (d *Dispatcher) ResetStats() {
	d.mu.Lock()
	d.stats = Stats{}
	d.mu.Unlock()
	d.logger.Info("stats reset")
}

func (d *Dispatcher) count(fn func(*Stats)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(&d.stats)
}
