// Package memory is an in-process implementation of the repository
// contracts.  Transactions are serialized by a single mutex and applied
// copy-on-write, so a failed WithinTx leaves no trace.  It backs the
// service tests and the STORE=memory development mode.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/bus-pos/internal/model"
	"github.com/iliyamo/bus-pos/internal/repository"
)

var (
	_ repository.Store         = (*Store)(nil)
	_ repository.SeatLockStore = (*SeatLocks)(nil)
)

type state struct {
	terminals   map[string]model.POSTerminal
	sessions    map[string]model.POSCashSession
	counts      []model.CashCountBreakdown
	nextCountID uint64
	tickets     map[string]model.Ticket
	payments    map[string]model.Payment
	txns        []model.POSTransaction
}

func newState() *state {
	return &state{
		terminals: map[string]model.POSTerminal{},
		sessions:  map[string]model.POSCashSession{},
		tickets:   map[string]model.Ticket{},
		payments:  map[string]model.Payment{},
	}
}

func (s *state) clone() *state {
	c := &state{
		terminals:   make(map[string]model.POSTerminal, len(s.terminals)),
		sessions:    make(map[string]model.POSCashSession, len(s.sessions)),
		counts:      append([]model.CashCountBreakdown(nil), s.counts...),
		nextCountID: s.nextCountID,
		tickets:     make(map[string]model.Ticket, len(s.tickets)),
		payments:    make(map[string]model.Payment, len(s.payments)),
		txns:        append([]model.POSTransaction(nil), s.txns...),
	}
	for k, v := range s.terminals {
		c.terminals[k] = v
	}
	for k, v := range s.sessions {
		c.sessions[k] = v
	}
	for k, v := range s.tickets {
		c.tickets[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	return c
}

// Store implements repository.Store in memory.
type Store struct {
	mu       sync.Mutex
	st       *state
	failures map[string]error
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{st: newState(), failures: map[string]error{}}
}

// PutTerminal inserts or replaces a terminal.  Terminals are managed by the
// back office, so the repository contract has no create method.
func (s *Store) PutTerminal(t model.POSTerminal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.terminals[t.ID] = t
}

// FailOn makes the next call of the named operation (e.g.
// "transactions.create") return err.  Used to exercise rollback paths.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

// Stores returns stores that apply each call immediately.
func (s *Store) Stores() repository.Stores { return bundle(&view{store: s}) }

// WithinTx runs fn against a private copy of the state and publishes the
// copy only when fn succeeds.  Transactions are fully serialized.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, st repository.Stores) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.st.clone()
	if err := fn(ctx, bundle(&view{store: s, tx: work})); err != nil {
		return err
	}
	s.st = work
	return nil
}

func bundle(v *view) repository.Stores {
	return repository.Stores{
		Terminals:    terminals{v},
		Sessions:     sessions{v},
		CashCounts:   cashCounts{v},
		Tickets:      tickets{v},
		Payments:     payments{v},
		Transactions: transactions{v},
	}
}

type view struct {
	store *Store
	tx    *state
}

// enter returns the state to operate on and the function releasing it.
// Inside a transaction the store mutex is already held.
func (v *view) enter() (*state, func()) {
	if v.tx != nil {
		return v.tx, func() {}
	}
	v.store.mu.Lock()
	return v.store.st, v.store.mu.Unlock
}

// fail consumes an injected failure for op.  The caller holds the mutex.
func (v *view) fail(op string) error {
	if err, ok := v.store.failures[op]; ok {
		delete(v.store.failures, op)
		return err
	}
	return nil
}

type terminals struct{ v *view }

func (r terminals) GetByID(_ context.Context, id string) (*model.POSTerminal, error) {
	st, done := r.v.enter()
	defer done()
	t, ok := st.terminals[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (r terminals) GetByIDForUpdate(ctx context.Context, id string) (*model.POSTerminal, error) {
	return r.GetByID(ctx, id)
}

func (r terminals) Update(_ context.Context, t *model.POSTerminal) error {
	st, done := r.v.enter()
	defer done()
	if err := r.v.fail("terminals.update"); err != nil {
		return err
	}
	if _, ok := st.terminals[t.ID]; !ok {
		return repository.ErrNotFound
	}
	st.terminals[t.ID] = *t
	return nil
}

func (r terminals) AddCash(_ context.Context, id string, amount decimal.Decimal) error {
	st, done := r.v.enter()
	defer done()
	t, ok := st.terminals[id]
	if !ok {
		return repository.ErrNotFound
	}
	t.CurrentCashAmount = t.CurrentCashAmount.Add(amount)
	st.terminals[id] = t
	return nil
}

type sessions struct{ v *view }

func (r sessions) Create(_ context.Context, s *model.POSCashSession) error {
	st, done := r.v.enter()
	defer done()
	if err := r.v.fail("sessions.create"); err != nil {
		return err
	}
	for _, existing := range st.sessions {
		if existing.TerminalID == s.TerminalID && existing.IsOpen() {
			return repository.ErrDuplicate
		}
	}
	st.sessions[s.ID] = *s
	return nil
}

func (r sessions) GetByID(_ context.Context, id string) (*model.POSCashSession, error) {
	st, done := r.v.enter()
	defer done()
	s, ok := st.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (r sessions) GetByIDForUpdate(ctx context.Context, id string) (*model.POSCashSession, error) {
	return r.GetByID(ctx, id)
}

func (r sessions) GetOpenByTerminal(_ context.Context, terminalID string) (*model.POSCashSession, error) {
	st, done := r.v.enter()
	defer done()
	for _, s := range st.sessions {
		if s.TerminalID == terminalID && s.IsOpen() {
			return &s, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r sessions) ApplySale(_ context.Context, id string, d model.SalesDelta) error {
	st, done := r.v.enter()
	defer done()
	if err := r.v.fail("sessions.apply_sale"); err != nil {
		return err
	}
	s, ok := st.sessions[id]
	if !ok || !s.IsOpen() {
		return repository.ErrNotFound
	}
	s.Apply(d)
	st.sessions[id] = s
	return nil
}

func (r sessions) Close(_ context.Context, s *model.POSCashSession) error {
	st, done := r.v.enter()
	defer done()
	if err := r.v.fail("sessions.close"); err != nil {
		return err
	}
	cur, ok := st.sessions[s.ID]
	if !ok || !cur.IsOpen() {
		return repository.ErrNotFound
	}
	cur.ClosedAt = s.ClosedAt
	cur.ClosedBy = s.ClosedBy
	cur.ClosureType = s.ClosureType
	cur.ExpectedCash = s.ExpectedCash
	cur.ActualCash = s.ActualCash
	cur.Difference = s.Difference
	cur.Notes = s.Notes
	cur.DiscrepancyNotes = s.DiscrepancyNotes
	st.sessions[s.ID] = cur
	return nil
}

func (r sessions) ListByTerminal(_ context.Context, terminalID string, from, to time.Time) ([]model.POSCashSession, error) {
	st, done := r.v.enter()
	defer done()
	var out []model.POSCashSession
	for _, s := range st.sessions {
		if s.TerminalID == terminalID && !s.OpenedAt.Before(from) && s.OpenedAt.Before(to) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.Before(out[j].OpenedAt) })
	return out, nil
}

type cashCounts struct{ v *view }

func (r cashCounts) CreateMany(_ context.Context, rows []model.CashCountBreakdown) error {
	st, done := r.v.enter()
	defer done()
	if err := r.v.fail("cash_counts.create"); err != nil {
		return err
	}
	for _, row := range rows {
		st.nextCountID++
		row.ID = st.nextCountID
		st.counts = append(st.counts, row)
	}
	return nil
}

func (r cashCounts) ListBySession(_ context.Context, sessionID string) ([]model.CashCountBreakdown, error) {
	st, done := r.v.enter()
	defer done()
	var out []model.CashCountBreakdown
	for _, c := range st.counts {
		if c.SessionID == sessionID {
			out = append(out, c)
		}
	}
	return out, nil
}

type tickets struct{ v *view }

func (r tickets) Create(_ context.Context, t *model.Ticket) error {
	st, done := r.v.enter()
	defer done()
	if err := r.v.fail("tickets.create"); err != nil {
		return err
	}
	if t.Status.OccupiesSeat() {
		for _, existing := range st.tickets {
			if existing.TripID == t.TripID && existing.SeatID == t.SeatID && existing.Status.OccupiesSeat() {
				return repository.ErrDuplicate
			}
		}
	}
	st.tickets[t.ID] = *t
	return nil
}

func (r tickets) GetByID(_ context.Context, id string) (*model.Ticket, error) {
	st, done := r.v.enter()
	defer done()
	t, ok := st.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (r tickets) FindActiveBySeat(_ context.Context, tripID, seatID string) (*model.Ticket, error) {
	st, done := r.v.enter()
	defer done()
	for _, t := range st.tickets {
		if t.TripID == tripID && t.SeatID == seatID && t.Status.OccupiesSeat() {
			return &t, nil
		}
	}
	return nil, nil
}

func (r tickets) UpdateStatus(_ context.Context, id string, from, to model.TicketStatus, at time.Time) error {
	st, done := r.v.enter()
	defer done()
	t, ok := st.tickets[id]
	if !ok {
		return repository.ErrNotFound
	}
	if t.Status != from {
		return repository.ErrConflict
	}
	t.Status = to
	t.UpdatedAt = at
	st.tickets[id] = t
	return nil
}

type payments struct{ v *view }

func (r payments) Create(_ context.Context, p *model.Payment) error {
	st, done := r.v.enter()
	defer done()
	if err := r.v.fail("payments.create"); err != nil {
		return err
	}
	st.payments[p.ID] = *p
	return nil
}

func (r payments) GetByID(_ context.Context, id string) (*model.Payment, error) {
	st, done := r.v.enter()
	defer done()
	p, ok := st.payments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

type transactions struct{ v *view }

func (r transactions) Create(_ context.Context, t *model.POSTransaction) error {
	st, done := r.v.enter()
	defer done()
	if err := r.v.fail("transactions.create"); err != nil {
		return err
	}
	st.txns = append(st.txns, *t)
	return nil
}

func (r transactions) ListBySession(_ context.Context, sessionID string) ([]model.POSTransaction, error) {
	st, done := r.v.enter()
	defer done()
	var out []model.POSTransaction
	for _, t := range st.txns {
		if t.SessionID == sessionID {
			out = append(out, t)
		}
	}
	return out, nil
}
