package executor

import "time"

// Record is one local execution in the history ring.
type Record struct {
	TaskID    string        `json:"taskId"`
	Processor string        `json:"processor"`
	StartedAt time.Time     `json:"startedAt"`
	EndedAt   time.Time     `json:"endedAt"`
	Duration  time.Duration `json:"duration"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
}

// history is a fixed-size ring of records, oldest overwritten first.
type history struct {
	records []Record
	next    int
	full    bool
}

func newHistory(size int) *history {
	return &history{records: make([]Record, max(size, 1))}
}

func (h *history) add(r Record) {
	h.records[h.next] = r
	h.next = (h.next + 1) % len(h.records)
	if h.next == 0 {
		h.full = true
	}
}

// list returns records oldest first.
func (h *history) list() []Record {
	if !h.full {
		return append([]Record(nil), h.records[:h.next]...)
	}
	out := make([]Record, 0, len(h.records))
	out = append(out, h.records[h.next:]...)
	return append(out, h.records[:h.next]...)
}

func (h *history) len() int {
	if h.full {
		return len(h.records)
	}
	return h.next
}
