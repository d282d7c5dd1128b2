package summary

import (
	"context"
	"sort"
	"time"

	"github.com/HendryAvila/lodestar/internal/conversation"
	"github.com/HendryAvila/lodestar/internal/faults"
	"github.com/HendryAvila/lodestar/internal/logging"
	"github.com/HendryAvila/lodestar/internal/timeutil"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Package-level variables for testability.
var (
	timeNow = time.Now
	newID   = uuid.NewString
)

// Filter narrows a summary lookup. Zero bounds are open.
type Filter struct {
	Levels []Level
	// From and To bound period_start to [From, To).
	From time.Time
	To   time.Time
}

// Store is everything the coordinator reads and writes.
//
// UpsertSummary is unique on (conversation, level, period start,
// provenance): inserting a row that already exists returns the stored row.
// ResolveTimezone never fails on an unknown zone; it falls back to UTC.
type Store interface {
	conversation.MessageSource
	MessagesForConversation(ctx context.Context, conversationID string) ([]*conversation.Message, error)
	Summaries(ctx context.Context, conversationID string, filter Filter) ([]*Summary, error)
	UpsertSummary(ctx context.Context, s *Summary) (*Summary, error)
	ResolveTimezone(ctx context.Context, conversationID, override string) (string, error)
}

// Options tune period computation and context assembly.
type Options struct {
	WeekStart time.Weekday
	// RawTailSize bounds the earlier raw messages appended to a context.
	// Zero selects DefaultRawTailSize.
	RawTailSize int
}

// DefaultRawTailSize is the tail length used when none is configured.
const DefaultRawTailSize = 6

// Coordinator plans, generates and reuses summaries for conversation
// branches. It keeps no state between calls.
type Coordinator struct {
	store      Store
	summarizer Summarizer
	opts       Options
	log        *zap.Logger
}

// NewCoordinator creates a Coordinator. A nil summarizer uses
// BulletSummarizer; a nil logger disables logging.
func NewCoordinator(store Store, summarizer Summarizer, opts Options, logger *zap.Logger) *Coordinator {
	if summarizer == nil {
		summarizer = BulletSummarizer{}
	}
	return &Coordinator{
		store:      store,
		summarizer: summarizer,
		opts:       opts,
		log:        logging.OrNop(logger).Named("summary"),
	}
}

// Request names the branch head a plan or context is computed for.
type Request struct {
	ConversationID string
	MessageID      string
	// Timezone overrides the conversation's stored zone.
	Timezone string
	// Levels restricts the reported periods. Empty means all levels.
	Levels []Level
	// Now overrides the reference instant, which defaults to the head
	// message's creation time.
	Now time.Time
}

// PlannedPeriod is a required period and its stored state.
type PlannedPeriod struct {
	Period
	Status       Status `json:"status"`
	MessageCount int    `json:"message_count"`
	// Summary is the reusable row for StatusExists and the newest
	// superseded row for StatusInvalid.
	Summary *Summary `json:"summary,omitempty"`
}

// PlanResult reports what building a context would do, without doing it.
type PlanResult struct {
	ConversationID string          `json:"conversation_id"`
	HeadMessageID  string          `json:"head_message_id"`
	Timezone       string          `json:"timezone"`
	Anchors        Anchors         `json:"anchors"`
	BranchLength   int             `json:"branch_length"`
	Periods        []PlannedPeriod `json:"periods"`
}

// ResolvedPeriod is a period after generation or reuse.
type ResolvedPeriod struct {
	Period
	Outcome    Outcome  `json:"outcome"`
	Previous   Status   `json:"previous_status"`
	SkipReason string   `json:"skip_reason,omitempty"`
	Summary    *Summary `json:"summary,omitempty"`
}

// ContextResult is a built context with the per-period outcomes behind it.
type ContextResult struct {
	ConversationID string           `json:"conversation_id"`
	HeadMessageID  string           `json:"head_message_id"`
	Timezone       string           `json:"timezone"`
	Anchors        Anchors          `json:"anchors"`
	Periods        []ResolvedPeriod `json:"periods"`
	// Supporting lists DAY periods resolved only to feed an aggregate.
	Supporting []ResolvedPeriod `json:"supporting_periods,omitempty"`
	Context    *LayeredContext  `json:"context"`
}

// Plan classifies every required period as exists, invalid or missing.
func (c *Coordinator) Plan(ctx context.Context, req Request) (*PlanResult, error) {
	s, err := c.open(ctx, req)
	if err != nil {
		return nil, err
	}
	res := &PlanResult{
		ConversationID: req.ConversationID,
		HeadMessageID:  s.head().ID,
		Timezone:       s.tz,
		Anchors:        s.reqs.Anchors,
		BranchLength:   len(s.branch),
		Periods:        []PlannedPeriod{},
	}
	for _, p := range s.required() {
		status, row := s.classify(p)
		res.Periods = append(res.Periods, PlannedPeriod{
			Period:       p,
			Status:       status,
			MessageCount: s.messageCount(p),
			Summary:      row,
		})
	}
	return res, nil
}

// BuildContext resolves every required period bottom-up (days, then
// weeks, then months) and assembles the layered context.
func (c *Coordinator) BuildContext(ctx context.Context, req Request) (*ContextResult, error) {
	s, err := c.open(ctx, req)
	if err != nil {
		return nil, err
	}

	required := s.required()
	for _, level := range Levels {
		for _, p := range required {
			if p.Level != level {
				continue
			}
			if _, err := c.resolve(ctx, s, p); err != nil {
				return nil, err
			}
		}
	}

	res := &ContextResult{
		ConversationID: req.ConversationID,
		HeadMessageID:  s.head().ID,
		Timezone:       s.tz,
		Anchors:        s.reqs.Anchors,
		Periods:        make([]ResolvedPeriod, 0, len(required)),
	}
	isRequired := map[string]bool{}
	summaries := make([]ContextSummary, 0, len(required))
	for _, p := range required {
		isRequired[p.Key()] = true
		rp := s.resolved[p.Key()]
		res.Periods = append(res.Periods, *rp)
		summaries = append(summaries, ContextSummary{Period: p, Summary: rp.Summary})
	}
	for key, rp := range s.resolved {
		if !isRequired[key] {
			res.Supporting = append(res.Supporting, *rp)
		}
	}
	sort.Slice(res.Supporting, func(i, j int) bool {
		return res.Supporting[i].Start.Before(res.Supporting[j].Start)
	})

	tail := c.opts.RawTailSize
	if tail == 0 {
		tail = DefaultRawTailSize
	}
	res.Context = AssembleContext(s.reqs, summaries, tail)
	return res, nil
}

func (c *Coordinator) resolve(ctx context.Context, s *session, p Period) (*ResolvedPeriod, error) {
	if rp, ok := s.resolved[p.Key()]; ok {
		return rp, nil
	}

	status, row := s.classify(p)
	rp := &ResolvedPeriod{Period: p, Previous: status}
	s.resolved[p.Key()] = rp

	if status == StatusExists {
		rp.Outcome = OutcomeReused
		rp.Summary = row
		c.logOutcome(s, rp)
		return rp, nil
	}

	var (
		content string
		err     error
	)
	if p.Level == LevelDay {
		msgs := s.reqs.MessagesOn(p.Start)
		if len(msgs) == 0 && !p.Start.Equal(s.reqs.YesterdayStart) {
			rp.Outcome, rp.SkipReason = OutcomeSkipped, SkipNoMessages
			c.logOutcome(s, rp)
			return rp, nil
		}
		content, err = c.summarizer.SummarizeDay(ctx, DayInput{Period: p, Messages: msgs, Location: s.loc})
	} else {
		var children []*Summary
		for _, day := range s.reqs.ChildDays(p) {
			child, err := c.resolve(ctx, s, s.reqs.Calendar.DayPeriod(day, s.reqs.Anchors))
			if err != nil {
				return nil, err
			}
			if child.Summary != nil {
				children = append(children, child.Summary)
			}
		}
		if len(children) == 0 {
			rp.Outcome, rp.SkipReason = OutcomeSkipped, SkipNoChildSummaries
			c.logOutcome(s, rp)
			return rp, nil
		}
		content, err = c.summarizer.SummarizeAggregate(ctx, AggregateInput{Period: p, Children: children, Location: s.loc})
	}
	if err != nil {
		return nil, err
	}

	saved, err := c.store.UpsertSummary(ctx, &Summary{
		ID:                 newID(),
		ConversationID:     s.conversationID,
		Level:              p.Level,
		PeriodStart:        p.Start,
		Content:            content,
		CreatedByMessageID: s.head().ID,
		CreatedAt:          timeNow().UTC(),
	})
	if err != nil {
		return nil, faults.Storage("upsert summary", err)
	}
	rp.Outcome = OutcomeGenerated
	rp.Summary = saved
	c.logOutcome(s, rp)
	return rp, nil
}

func (c *Coordinator) logOutcome(s *session, rp *ResolvedPeriod) {
	fields := []zap.Field{
		zap.String("conversation_id", s.conversationID),
		zap.String("level", string(rp.Level)),
		zap.Time("period_start", rp.Start),
		zap.String("outcome", string(rp.Outcome)),
		zap.String("previous_status", string(rp.Previous)),
	}
	if rp.Outcome == OutcomeGenerated {
		c.log.Info("summary generated", append(fields, zap.String("summary_id", rp.Summary.ID))...)
		return
	}
	if rp.SkipReason != "" {
		fields = append(fields, zap.String("skip_reason", rp.SkipReason))
	}
	c.log.Debug("summary resolved", fields...)
}

// session holds everything one Plan or BuildContext call derives up front.
type session struct {
	conversationID string
	levels         map[Level]bool
	branch         conversation.Branch
	// rank is each branch message's distance from the head.
	rank     map[string]int
	tz       string
	loc      *time.Location
	reqs     *Requirements
	stored   map[string][]*Summary
	resolved map[string]*ResolvedPeriod
}

func (c *Coordinator) open(ctx context.Context, req Request) (*session, error) {
	if req.MessageID == "" {
		return nil, faults.New(faults.MessageNotFound, "a head message id is required")
	}

	msgs, err := c.store.MessagesForConversation(ctx, req.ConversationID)
	if err != nil {
		return nil, faults.Storage("fetch conversation messages", err)
	}
	branch, err := conversation.WalkAncestry(ctx, conversation.NewIndex(msgs, c.store), req.ConversationID, req.MessageID)
	if err != nil {
		return nil, err
	}

	tz, err := c.store.ResolveTimezone(ctx, req.ConversationID, req.Timezone)
	if err != nil {
		return nil, faults.Storage("resolve timezone", err)
	}
	loc := timeutil.LocationOrUTC(tz)

	now := req.Now
	if now.IsZero() {
		now = branch.Head().CreatedAt
	}
	reqs := ComputeRequirements(branch, now, Calendar{Location: loc, WeekStart: c.opts.WeekStart})

	s := &session{
		conversationID: req.ConversationID,
		branch:         branch,
		rank:           make(map[string]int, len(branch)),
		tz:             loc.String(),
		loc:            loc,
		reqs:           reqs,
		stored:         map[string][]*Summary{},
		resolved:       map[string]*ResolvedPeriod{},
	}
	for i, m := range branch {
		s.rank[m.ID] = i
	}
	if len(req.Levels) > 0 {
		s.levels = map[Level]bool{}
		for _, l := range req.Levels {
			s.levels[l] = true
		}
	}

	rows, err := c.store.Summaries(ctx, req.ConversationID, Filter{From: s.earliestStart(), To: reqs.TodayStart})
	if err != nil {
		return nil, faults.Storage("fetch summaries", err)
	}
	for _, row := range rows {
		key := periodKey(row.Level, row.PeriodStart)
		s.stored[key] = append(s.stored[key], row)
	}
	return s, nil
}

func (s *session) head() *conversation.Message { return s.branch.Head() }

func (s *session) required() []Period {
	all := s.reqs.Periods()
	if s.levels == nil {
		return all
	}
	out := make([]Period, 0, len(all))
	for _, p := range all {
		if s.levels[p.Level] {
			out = append(out, p)
		}
	}
	return out
}

// earliestStart is the first period start any required or child period
// can have.
func (s *session) earliestStart() time.Time {
	earliest := s.reqs.YesterdayStart
	for _, p := range s.reqs.Periods() {
		if p.Start.Before(earliest) {
			earliest = p.Start
		}
	}
	return earliest
}

// classify picks the stored row for p. Among rows produced on this branch
// the one closest to the head wins, then the newest.
func (s *session) classify(p Period) (Status, *Summary) {
	rows := s.stored[p.Key()]
	if len(rows) == 0 {
		return StatusMissing, nil
	}

	var best *Summary
	bestRank := 0
	for _, row := range rows {
		r, onBranch := s.rank[row.CreatedByMessageID]
		if !onBranch {
			continue
		}
		if best == nil || r < bestRank || (r == bestRank && row.CreatedAt.After(best.CreatedAt)) {
			best, bestRank = row, r
		}
	}
	if best != nil {
		return StatusExists, best
	}

	latest := rows[0]
	for _, row := range rows[1:] {
		if row.CreatedAt.After(latest.CreatedAt) {
			latest = row
		}
	}
	return StatusInvalid, latest
}

func (s *session) messageCount(p Period) int {
	if p.Level == LevelDay {
		return len(s.reqs.MessagesOn(p.Start))
	}
	n := 0
	for _, day := range s.reqs.ChildDays(p) {
		n += len(s.reqs.MessagesOn(day))
	}
	return n
}
