package upload

import (
	"math"

	"github.com/google/uuid"
)

// progressTracker turns byte counts into percentages. Published values never
// decrease, and 100 is only published once the whole file has been written.
type progressTracker struct {
	id     uuid.UUID
	total  int64
	sent   int64
	last   int
	notify []ProgressFunc
}

func newProgressTracker(id uuid.UUID, total int64, notify ...ProgressFunc) *progressTracker {
	return &progressTracker{id: id, total: total, notify: notify}
}

func (t *progressTracker) advance(n int64) {
	t.sent += n
	t.publish(percentOf(t.sent, t.total))
}

// complete publishes 100 if the byte count never got there, which happens
// when the declared size was zero or too large.
func (t *progressTracker) complete() {
	if t.last < 100 {
		t.publish(100)
	}
}

func (t *progressTracker) publish(percent int) {
	if percent < t.last {
		percent = t.last
	}
	t.last = percent
	p := Progress{SessionID: t.id, BytesSent: t.sent, TotalBytes: t.total, Percent: percent}
	for _, fn := range t.notify {
		if fn != nil {
			fn(p)
		}
	}
}

// percentOf returns round(sent/total*100), held at 99 until sent reaches total.
func percentOf(sent, total int64) int {
	if total <= 0 {
		return 0
	}
	if sent >= total {
		return 100
	}
	p := int(math.Round(float64(sent) / float64(total) * 100))
	if p > 99 {
		p = 99
	}
	if p < 0 {
		p = 0
	}
	return p
}
