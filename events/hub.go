// Package events fans committed record changes out to live subscribers.
package events

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"
)

type ChangeType string

const (
	Insert ChangeType = "INSERT"
	Update ChangeType = "UPDATE"
	Delete ChangeType = "DELETE"
)

// Change describes one committed mutation.
type Change struct {
	Table   string     `json:"table"`
	Type    ChangeType `json:"type"`
	StoreID int64      `json:"store_id"`
	RowID   int64      `json:"row_id"`
	At      time.Time  `json:"at"`
}

// Publisher is implemented by anything that accepts change notifications.
type Publisher interface {
	Publish(c Change)
}

type subscription struct {
	storeID int64
	tables  []string
	ch      chan Change
}

func (s *subscription) wants(c Change) bool {
	if c.StoreID != s.storeID {
		return false
	}
	return len(s.tables) == 0 || slices.Contains(s.tables, c.Table)
}

// Hub delivers changes to subscribers of the same store. A subscriber that is
// not keeping up loses events instead of stalling the publisher.
type Hub struct {
	mu     sync.Mutex
	subs   map[*subscription]struct{}
	buffer int
	log    *slog.Logger
}

func NewHub(buffer int, log *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	if log == nil {
		log = slog.Default()
	}
	return &Hub{subs: map[*subscription]struct{}{}, buffer: buffer, log: log}
}

// Subscribe registers interest in changes to tables (all tables when empty) of
// one store. The returned channel is closed and the subscription released as
// soon as ctx is done.
func (h *Hub) Subscribe(ctx context.Context, storeID int64, tables ...string) <-chan Change {
	sub := &subscription{storeID: storeID, tables: tables, ch: make(chan Change, h.buffer)}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, sub)
		close(sub.ch)
		h.mu.Unlock()
	}()
	return sub.ch
}

func (h *Hub) Publish(c Change) {
	if c.At.IsZero() {
		c.At = time.Now().UTC()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		if !sub.wants(c) {
			continue
		}
		select {
		case sub.ch <- c:
		default:
			h.log.Warn("dropping change for slow subscriber", "table", c.Table, "store_id", c.StoreID)
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
