package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/roach88/threadpost/internal/compose"
	"github.com/roach88/threadpost/internal/content"
	"github.com/roach88/threadpost/internal/logging"
)

// Repository is the item store as seen by the scheduler.
type Repository interface {
	// ListDue returns scheduled items whose release time is absent or not after now.
	ListDue(ctx context.Context, now time.Time) ([]content.Item, error)

	// ParentState returns status and external id, or content.ErrNotFound.
	ParentState(ctx context.Context, id string) (content.ParentState, error)

	// WriteResult records a terminal outcome. It must only ever move an item
	// out of scheduled once, returning content.ErrNotScheduled otherwise.
	WriteResult(ctx context.Context, id string, outcome content.Outcome) error
}

// Transport publishes a finished message, optionally as a reply.
type Transport interface {
	Submit(ctx context.Context, text, replyTo string) (content.Receipt, error)
}

// FailureNotePrefix starts every diagnostic note written for a failed item.
const FailureNotePrefix = "Auto-post failed: "

// FailureNote renders the note stored on a failed item.
func FailureNote(err error) string {
	if err == nil {
		return FailureNotePrefix + "Unknown error"
	}
	return FailureNotePrefix + err.Error()
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithMaxLength sets the message length limit used when appending tags.
func WithMaxLength(n int) Option {
	return func(s *Scheduler) { s.maxLength = n }
}

// WithLogger sets the logger; per-item entries add item_id and parent_id.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the time source used to stamp write-backs.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.clock = now
		}
	}
}

// Scheduler is the thread resolver and publisher.
type Scheduler struct {
	repo      Repository
	transport Transport
	maxLength int
	logger    logrus.FieldLogger
	clock     func() time.Time
}

// New creates a Scheduler.
func New(repo Repository, transport Transport, opts ...Option) *Scheduler {
	s := &Scheduler{
		repo:      repo,
		transport: transport,
		maxLength: compose.DefaultMaxLength,
		logger:    logging.Discard(),
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Order returns items sorted for publishing: thread roots before replies,
// then ascending thread position. The sort is stable, so ties keep the
// repository order. The input slice is not modified.
func Order(items []content.Item) []content.Item {
	ordered := make([]content.Item, len(items))
	copy(ordered, items)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.HasParent() != b.HasParent() {
			return !a.HasParent()
		}
		return a.Position() < b.Position()
	})
	return ordered
}

// Due selects the items to visit in this run, in publish order.
//
// The repository result is filtered again against now and de-duplicated by
// id, so each item is visited at most once per run whatever the store does.
func (s *Scheduler) Due(ctx context.Context, now time.Time) ([]content.Item, error) {
	items, err := s.repo.ListDue(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("list due items: %w", err)
	}

	seen := make(map[string]struct{}, len(items))
	selected := make([]content.Item, 0, len(items))
	for _, it := range items {
		if !it.IsDue(now) {
			continue
		}
		if _, dup := seen[it.ID]; dup {
			continue
		}
		seen[it.ID] = struct{}{}
		selected = append(selected, it)
	}
	return Order(selected), nil
}

// Run performs one pass over the due items.
//
// Item-level problems never abort the pass; they are reported in the
// summary. Run only returns an error when the due list cannot be fetched or
// ctx is cancelled, in which case unvisited items stay scheduled.
func (s *Scheduler) Run(ctx context.Context, now time.Time) (Summary, error) {
	items, err := s.Due(ctx, now)
	if err != nil {
		s.logger.WithError(err).Error("failed to fetch due items")
		return Summary{}, err
	}

	summary := Summary{Due: len(items), Results: make([]ItemResult, 0, len(items))}
	if len(items) == 0 {
		s.logger.Info("no scheduled items due for publishing")
		return summary, nil
	}
	s.logger.WithField("count", len(items)).Info("found items to publish")

	// item id -> external id, for replies whose parent posts in this run
	published := make(map[string]string)

	for _, it := range items {
		if err := ctx.Err(); err != nil {
			s.logger.WithError(err).Warn("run interrupted; remaining items stay scheduled")
			return summary, err
		}
		summary.add(s.process(ctx, published, it))
	}
	return summary, nil
}

// process runs the publish step for one item. It never returns an error:
// the outcome is carried in the ItemResult.
func (s *Scheduler) process(ctx context.Context, published map[string]string, it content.Item) ItemResult {
	res := ItemResult{ItemID: it.ID, Title: it.Label(), ParentID: it.Parent()}
	log := s.logger.WithFields(logrus.Fields{"item_id": it.ID, "title": it.Label()})

	var replyTo string
	if it.HasParent() {
		log = log.WithFields(logrus.Fields{
			"parent_id":       it.Parent(),
			"thread_position": it.Position(),
		})

		id, err := s.resolveParent(ctx, it, published)
		if err != nil {
			res.fail(err)
			if IsParentNotReady(err) {
				res.Disposition = DispositionDeferred
				log.Warn("parent not yet posted, deferring reply")
			} else {
				res.Disposition = DispositionSkipped
				log.WithError(err).Error("parent lookup failed, leaving item scheduled")
			}
			return res
		}
		replyTo = id
		res.ReplyTo = id
		log.WithField("reply_to", id).Debug("resolved parent external id")
	}

	text := compose.ForItem(it, s.maxLength)
	receipt, err := s.transport.Submit(ctx, text, replyTo)
	if err == nil && receipt.ExternalID == "" {
		err = errors.New("transport returned no external id")
	}

	// Write-backs must land even if the run is being cancelled.
	writeCtx := context.WithoutCancel(ctx)
	at := s.clock().UTC()

	if err != nil {
		res.Disposition = DispositionFailed
		res.fail(newTransportError(it.ID, err))
		log.WithError(err).Error("publish failed")

		if werr := s.repo.WriteResult(writeCtx, it.ID, content.Failed(FailureNote(err), at)); werr != nil {
			log.WithError(werr).Error("could not record publish failure, item stays scheduled")
		}
		return res
	}

	published[it.ID] = receipt.ExternalID
	res.Disposition = DispositionPosted
	res.ExternalID = receipt.ExternalID
	log = log.WithField("external_id", receipt.ExternalID)
	log.Info("published")

	if werr := s.repo.WriteResult(writeCtx, it.ID, content.Posted(receipt, at)); werr != nil {
		res.fail(newWriteBackError(it.ID, "record posted status", werr))
		if errors.Is(werr, content.ErrNotScheduled) {
			log.WithError(werr).Error("item was resolved by an overlapping run while publishing, possible duplicate post")
		} else {
			log.WithError(werr).Error("published but status write-back failed, item may be published again by a later run")
		}
	}
	return res
}

// resolveParent finds the external id a reply must attach to.
func (s *Scheduler) resolveParent(ctx context.Context, it content.Item, published map[string]string) (string, error) {
	parentID := it.Parent()
	if id, ok := published[parentID]; ok {
		return id, nil
	}

	st, err := s.repo.ParentState(ctx, parentID)
	if errors.Is(err, content.ErrNotFound) {
		return "", newParentNotReady(it.ID, parentID)
	}
	if err != nil {
		return "", newRepositoryError(it.ID, "look up parent "+parentID, err)
	}
	if !st.Ready() {
		return "", newParentNotReady(it.ID, parentID)
	}
	return st.ExternalID, nil
}
