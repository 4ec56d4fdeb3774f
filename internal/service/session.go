package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"taximeter/internal/domain"
)

const defaultSampleBuffer = 64

// TickSource starts a clock and returns its channel and a function that
// stops it.
type TickSource func() (<-chan time.Time, func())

// IntervalTicker returns a TickSource backed by time.Ticker.
func IntervalTicker(d time.Duration) TickSource {
	return func() (<-chan time.Time, func()) {
		t := time.NewTicker(d)
		return t.C, t.Stop
	}
}

// SessionOptions configures a Session.
type SessionOptions struct {
	TickSource   TickSource
	SampleBuffer int
	Events       TripEventRecorder
	Logger       *zap.Logger
}

// SessionSnapshot is a consistent view of a session taken inside its loop.
type SessionSnapshot struct {
	ID      string
	MeterID string
	Reading domain.MeterReading
	Trip    domain.TripState
	Rate    domain.RateProfile
	Bill    *domain.BillBreakdown // set once the final bill is shown
}

type locationEvent struct {
	sample  domain.LocationSample
	failure string
	failed  bool
}

type command struct {
	fn   func()
	done chan struct{}
}

// Session owns one meter's trip state and processes ticks, location fixes
// and user actions one at a time on a single goroutine.
type Session struct {
	ID        string
	MeterID   string
	CreatedAt time.Time

	billing   *Billing
	ticks     TickSource
	tickC     <-chan time.Time
	stopClock func()
	locations chan locationEvent
	commands  chan command
	events    TripEventRecorder
	logger    *zap.Logger
	done      chan struct{}
}

// NewSession creates a session. Run must be called to process events.
func NewSession(id, meterID string, catalog *RateCatalog, opts SessionOptions) *Session {
	if opts.TickSource == nil {
		opts.TickSource = IntervalTicker(time.Second)
	}
	if opts.SampleBuffer <= 0 {
		opts.SampleBuffer = defaultSampleBuffer
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Session{
		ID:        id,
		MeterID:   meterID,
		CreatedAt: time.Now(),
		billing:   NewBilling(catalog),
		ticks:     opts.TickSource,
		locations: make(chan locationEvent, opts.SampleBuffer),
		commands:  make(chan command),
		events:    opts.Events,
		logger:    opts.Logger.With(zap.String("session_id", id), zap.String("meter_id", meterID)),
		done:      make(chan struct{}),
	}
}

// Run processes events until ctx is cancelled.
func (s *Session) Run(ctx context.Context) {
	defer close(s.done)
	defer s.haltClock()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.tickC:
			s.billing.Engine().Tick()
		case ev := <-s.locations:
			s.apply(ev)
		case cmd := <-s.commands:
			s.drain()
			cmd.fn()
			close(cmd.done)
		}
	}
}

// Done is closed once the event loop has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Begin starts metering with the rate sel resolves to.
func (s *Session) Begin(ctx context.Context, sel domain.RateSelector) (domain.RateProfile, error) {
	var rate domain.RateProfile
	var err error
	if cerr := s.do(ctx, func() {
		rate, err = s.billing.Begin(sel)
		if err == nil {
			s.startClock()
		}
	}); cerr != nil {
		return domain.RateProfile{}, cerr
	}
	if err != nil {
		return domain.RateProfile{}, err
	}

	s.logger.Info("trip started", zap.String("rate", rate.Name))
	s.record(ctx, EventTripStarted, nil)
	return rate, nil
}

// Stop stops the meter. The clock is halted in the same step, so ticks and
// fixes that arrive afterwards are dropped.
func (s *Session) Stop(ctx context.Context) error {
	var err error
	if cerr := s.do(ctx, func() {
		err = s.billing.Stop()
		if err == nil {
			s.haltClock()
		}
	}); cerr != nil {
		return cerr
	}
	if err != nil {
		return err
	}

	s.record(ctx, EventTripStopped, nil)
	return nil
}

// PushLocation queues a fix from the positioning source. Fixes are applied
// in arrival order and ignored unless the meter is running.
func (s *Session) PushLocation(ctx context.Context, sample domain.LocationSample) error {
	return s.push(ctx, locationEvent{sample: sample})
}

// PushLocationError queues a positioning failure for the status line.
func (s *Session) PushLocationError(ctx context.Context, message string) error {
	return s.push(ctx, locationEvent{failure: message, failed: true})
}

// AdvanceToExtras leaves the meter screen.
func (s *Session) AdvanceToExtras(ctx context.Context) error {
	var err error
	if cerr := s.do(ctx, func() { err = s.billing.AdvanceToExtras() }); cerr != nil {
		return cerr
	}
	return err
}

// SubmitExtras records the toll and other fees.
func (s *Session) SubmitExtras(ctx context.Context, tollFee, otherFee float64) error {
	var err error
	if cerr := s.do(ctx, func() { err = s.billing.SubmitExtras(tollFee, otherFee) }); cerr != nil {
		return cerr
	}
	return err
}

// SelectTip picks a tip choice.
func (s *Session) SelectTip(ctx context.Context, choice domain.TipChoice) error {
	var err error
	if cerr := s.do(ctx, func() { err = s.billing.SelectTip(choice) }); cerr != nil {
		return cerr
	}
	return err
}

// SubmitCustomTip sets the custom tip amount.
func (s *Session) SubmitCustomTip(ctx context.Context, amount float64) error {
	var err error
	if cerr := s.do(ctx, func() { err = s.billing.SubmitCustomTip(amount) }); cerr != nil {
		return cerr
	}
	return err
}

// TipQuotes returns the fixed tip amounts for the tip screen.
func (s *Session) TipQuotes(ctx context.Context) ([]domain.TipQuote, error) {
	var quotes []domain.TipQuote
	if err := s.do(ctx, func() { quotes = s.billing.TipQuotes() }); err != nil {
		return nil, err
	}
	return quotes, nil
}

// Finalize shows the final bill.
func (s *Session) Finalize(ctx context.Context) (SessionSnapshot, error) {
	var snap SessionSnapshot
	var err error
	if cerr := s.do(ctx, func() {
		if _, err = s.billing.Finalize(); err == nil {
			snap = s.snapshot()
		}
	}); cerr != nil {
		return SessionSnapshot{}, cerr
	}
	if err != nil {
		return SessionSnapshot{}, err
	}

	s.record(ctx, EventBillFinalized, &snap)
	return snap, nil
}

// Reset discards the trip and returns to Idle, seeding the idle fare from
// sel. The clock is halted if it was running.
func (s *Session) Reset(ctx context.Context, sel domain.RateSelector) error {
	var err error
	if cerr := s.do(ctx, func() {
		s.haltClock()
		err = s.billing.Reset(sel)
	}); cerr != nil {
		return cerr
	}

	s.record(ctx, EventTripReset, nil)
	return err
}

// Snapshot returns the current state of the session.
func (s *Session) Snapshot(ctx context.Context) (SessionSnapshot, error) {
	var snap SessionSnapshot
	if err := s.do(ctx, func() { snap = s.snapshot() }); err != nil {
		return SessionSnapshot{}, err
	}
	return snap, nil
}

func (s *Session) snapshot() SessionSnapshot {
	snap := SessionSnapshot{
		ID:      s.ID,
		MeterID: s.MeterID,
		Reading: s.billing.Reading(),
		Trip:    s.billing.Engine().Trip(),
		Rate:    s.billing.Engine().Rate(),
	}
	if s.billing.Stage() == domain.StageFinalBill {
		bill := s.billing.Bill()
		snap.Bill = &bill
	}
	return snap
}

// do runs fn on the loop goroutine and waits for it to finish.
func (s *Session) do(ctx context.Context, fn func()) error {
	cmd := command{fn: fn, done: make(chan struct{})}

	select {
	case s.commands <- cmd:
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-cmd.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) push(ctx context.Context, ev locationEvent) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}

	select {
	case s.locations <- ev:
		return nil
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// drain applies every tick and fix already queued so a command observes
// all events that arrived before it.
func (s *Session) drain() {
	for {
		select {
		case <-s.tickC:
			s.billing.Engine().Tick()
		case ev := <-s.locations:
			s.apply(ev)
		default:
			return
		}
	}
}

func (s *Session) apply(ev locationEvent) {
	engine := s.billing.Engine()
	if ev.failed {
		engine.OnLocationError(ev.failure)
		s.logger.Warn("location source error", zap.String("message", ev.failure))
		return
	}
	engine.OnLocation(ev.sample)
}

func (s *Session) startClock() {
	s.haltClock()
	s.tickC, s.stopClock = s.ticks()
}

func (s *Session) haltClock() {
	if s.stopClock != nil {
		s.stopClock()
	}
	s.tickC = nil
	s.stopClock = nil
}

func (s *Session) record(ctx context.Context, typ TripEventType, snap *SessionSnapshot) {
	if s.events == nil {
		return
	}

	if snap == nil {
		current, err := s.Snapshot(ctx)
		if err != nil {
			return
		}
		snap = &current
	}

	event := TripEvent{
		Type:           typ,
		SessionID:      s.ID,
		MeterID:        s.MeterID,
		RateName:       snap.Rate.Name,
		DistanceKm:     snap.Trip.DistanceKm,
		ElapsedSeconds: snap.Trip.ElapsedSeconds,
		Fare:           snap.Trip.Fare,
	}
	if snap.Bill != nil {
		event.Total = snap.Bill.Total
	}
	s.events.Record(ctx, event)
}
