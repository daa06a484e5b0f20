package syncer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/packfinderz-pos/internal/connectivity"
	"github.com/angelmondragon/packfinderz-pos/pkg/logger"
)

const (
	NoticeBackOnline     = "Back online"
	NoticeOffline        = "You are offline"
	NoticeSignInRequired = "Sign-in required"

	defaultFeedSize = 50
)

type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeSuccess NoticeLevel = "success"
	NoticeWarning NoticeLevel = "warning"
)

// Notice is a short message for the cashier.
type Notice struct {
	ID      uint64      `json:"id"`
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
	At      time.Time   `json:"at"`
}

// SyncedNotice is the aggregate notice after a push confirmed n sales.
func SyncedNotice(n int) Notice {
	return Notice{Level: NoticeSuccess, Message: fmt.Sprintf("%d sales synced", n)}
}

type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// LogNotifier writes notices to the structured log.
type LogNotifier struct {
	Logger *logger.Logger
}

func (l LogNotifier) Notify(ctx context.Context, n Notice) {
	if l.Logger == nil {
		return
	}
	ctx = l.Logger.WithFields(ctx, map[string]any{"notice_level": n.Level, "notice": n.Message})
	if n.Level == NoticeWarning {
		l.Logger.Warn(ctx, "cashier notice")
		return
	}
	l.Logger.Info(ctx, "cashier notice")
}

// MultiNotifier fans a notice out to every notifier.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, n Notice) {
	for _, notifier := range m {
		if notifier != nil {
			notifier.Notify(ctx, n)
		}
	}
}

// Feed keeps the most recent notices for the UI to poll.
type Feed struct {
	mu     sync.Mutex
	size   int
	nextID uint64
	items  []Notice
	now    func() time.Time
}

func NewFeed(size int, now func() time.Time) *Feed {
	if size <= 0 {
		size = defaultFeedSize
	}
	if now == nil {
		now = time.Now
	}
	return &Feed{size: size, now: now}
}

func (f *Feed) Notify(_ context.Context, n Notice) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	n.ID = f.nextID
	if n.At.IsZero() {
		n.At = f.now().UTC()
	}
	f.items = append(f.items, n)
	if len(f.items) > f.size {
		f.items = append([]Notice(nil), f.items[len(f.items)-f.size:]...)
	}
}

// Since returns retained notices with an ID greater than after, oldest first.
func (f *Feed) Since(after uint64) []Notice {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Notice, 0, len(f.items))
	for _, n := range f.items {
		if n.ID > after {
			out = append(out, n)
		}
	}
	return out
}

type eventSource interface {
	Subscribe(fn func(connectivity.Event)) (cancel func())
}

// WireConnectivityNotices posts the online/offline notices for monitor transitions.
func WireConnectivityNotices(ctx context.Context, events eventSource, notifier Notifier) (cancel func()) {
	return events.Subscribe(func(e connectivity.Event) {
		switch e {
		case connectivity.EventBecameOnline:
			notifier.Notify(ctx, Notice{Level: NoticeInfo, Message: NoticeBackOnline})
		case connectivity.EventBecameOffline:
			notifier.Notify(ctx, Notice{Level: NoticeWarning, Message: NoticeOffline})
		}
	})
}
