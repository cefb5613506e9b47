package notify

import (
	"context"
	"sync"

	"example.com/activityplanner/internal/domain"
	"example.com/activityplanner/internal/logging"
)

// Collector gathers the notices raised while serving one request.
type Collector struct {
	mu      sync.Mutex
	notices []domain.Notice
}

type collectorKey struct{}

// WithCollector returns a context whose notices are captured by the returned Collector.
func WithCollector(ctx context.Context) (context.Context, *Collector) {
	c := &Collector{}
	return context.WithValue(ctx, collectorKey{}, c), c
}

// CollectorFrom returns the Collector attached by WithCollector, or nil.
func CollectorFrom(ctx context.Context) *Collector {
	c, _ := ctx.Value(collectorKey{}).(*Collector)
	return c
}

// Last returns the most recent notice.
func (c *Collector) Last() (domain.Notice, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.notices) == 0 {
		return domain.Notice{}, false
	}
	return c.notices[len(c.notices)-1], true
}

func (c *Collector) add(n domain.Notice) {
	c.mu.Lock()
	c.notices = append(c.notices, n)
	c.mu.Unlock()
}

// Notifier logs every notice in the default locale and hands it to the request collector.
type Notifier struct {
	log        logging.Logger
	translator *Translator
}

var _ domain.Notifier = (*Notifier)(nil)

// NewNotifier constructs a Notifier.
func NewNotifier(log logging.Logger, translator *Translator) *Notifier {
	if log == nil {
		log = logging.Nop()
	}
	return &Notifier{log: log.With("component", "notify"), translator: translator}
}

// Notify implements domain.Notifier.
func (n *Notifier) Notify(ctx context.Context, notice domain.Notice) {
	if c := CollectorFrom(ctx); c != nil {
		c.add(notice)
	}
	args := []any{
		"notice_level", string(notice.Level),
		"key", notice.Key,
		"action", string(notice.Action),
	}
	if notice.ResolutionID != "" {
		args = append(args, "resolution_id", notice.ResolutionID)
	} else {
		args = append(args, "activity_id", notice.ActivityID)
	}
	if n.translator != nil {
		args = append(args, "message", n.translator.Render("", notice))
	}
	if notice.Level == domain.NoticeError {
		n.log.Warn(ctx, "activity notice", args...)
		return
	}
	n.log.Info(ctx, "activity notice", args...)
}
