// Package dedup suppresses repeated processing of webhook deliveries that the
// platform retries or sends twice. Entries live in memory for a bounded window.
package dedup

import (
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/edgard/zalobot/internal/zalo"
)

// DefaultMaxAge is how long a processed message is remembered.
const DefaultMaxAge = 10 * time.Minute

// Deduplicator remembers recently processed messages by key.
type Deduplicator struct {
	maxAge time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu   sync.Mutex
	seen map[string]time.Time
}

// New creates a Deduplicator. A non-positive maxAge selects DefaultMaxAge.
func New(maxAge time.Duration, logger *slog.Logger) *Deduplicator {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Deduplicator{
		maxAge: maxAge,
		logger: logger.With("component", "dedup"),
		now:    time.Now,
		seen:   make(map[string]time.Time),
	}
}

// SetClock overrides the time source. Intended for tests.
func (d *Deduplicator) SetClock(now func() time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.now = now
}

// Key derives the identity of a message. The platform message id is preferred;
// otherwise sender, group and whitespace-free lowercased text are combined.
func (d *Deduplicator) Key(ev zalo.Event) string {
	if id := ev.MessageID(); id != "" {
		return "msg_" + id
	}

	sender := orUnknown(ev.SenderID())
	group := orUnknown(ev.GroupID())

	text := strings.ToLower(strings.TrimSpace(ev.Text()))
	if text == "" {
		ts := ev.Timestamp()
		if _, err := strconv.ParseInt(ts, 10, 64); err != nil || ts == "0" {
			d.mu.Lock()
			ts = strconv.FormatInt(d.now().UnixMilli(), 10)
			d.mu.Unlock()
		}
		return "fallback_empty_" + sender + "_" + group + "_" + ts
	}

	return "fallback_" + sender + "_" + group + "_" + stripSpace(text)
}

// IsDuplicate reports whether ev has been marked, regardless of entry age.
func (d *Deduplicator) IsDuplicate(ev zalo.Event) bool {
	key := d.Key(ev)

	d.mu.Lock()
	_, ok := d.seen[key]
	d.mu.Unlock()

	if ok {
		d.logger.Info("Message already processed", "key", key)
	}
	return ok
}

// MarkProcessed records ev as processed now and sweeps expired entries.
func (d *Deduplicator) MarkProcessed(ev zalo.Event) {
	key := d.Key(ev)

	d.mu.Lock()
	d.seen[key] = d.now()
	d.mu.Unlock()

	d.logger.Debug("Message marked as processed", "key", key)
	d.Sweep()
}

// CheckAndMark marks ev and reports whether it had already been marked, in
// one step so concurrent deliveries of the same message cannot both pass.
func (d *Deduplicator) CheckAndMark(ev zalo.Event) bool {
	key := d.Key(ev)

	d.mu.Lock()
	_, dup := d.seen[key]
	if !dup {
		d.seen[key] = d.now()
	}
	d.mu.Unlock()

	if dup {
		d.logger.Info("Message already processed", "key", key)
		return true
	}
	d.Sweep()
	return false
}

// Sweep removes entries older than the max age and returns how many were removed.
func (d *Deduplicator) Sweep() int {
	d.mu.Lock()
	now := d.now()
	removed := 0
	for key, at := range d.seen {
		if now.Sub(at) > d.maxAge {
			delete(d.seen, key)
			removed++
		}
	}
	d.mu.Unlock()

	if removed > 0 {
		d.logger.Info("Cleaned up old processed message entries", "removed", removed)
	}
	return removed
}

// Len returns the number of remembered entries.
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

// Reset forgets every entry.
func (d *Deduplicator) Reset() {
	d.mu.Lock()
	d.seen = make(map[string]time.Time)
	d.mu.Unlock()
	d.logger.Info("All processed messages cleared")
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
