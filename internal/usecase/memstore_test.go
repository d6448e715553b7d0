package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"car-rental/internal/data/entity"
	"car-rental/internal/data/repository"
	"car-rental/pkg/apperror"

	"github.com/google/uuid"
)

// memState is the whole database. Values are stored by value so a clone is a
// private snapshot for one transaction.
type memState struct {
	users       map[uuid.UUID]entity.User
	cars        map[uuid.UUID]entity.Car
	avail       []entity.CarAvailability
	bookings    map[uuid.UUID]entity.Booking
	orders      []entity.PaymentOrder
	locked      []entity.BookingLockedBalance
	txs         []entity.Transaction
	withdrawals map[uuid.UUID]entity.WithdrawalRequest
	reports     map[uuid.UUID]entity.BookingReport
}

func newMemState() *memState {
	return &memState{
		users:       map[uuid.UUID]entity.User{},
		cars:        map[uuid.UUID]entity.Car{},
		bookings:    map[uuid.UUID]entity.Booking{},
		withdrawals: map[uuid.UUID]entity.WithdrawalRequest{},
		reports:     map[uuid.UUID]entity.BookingReport{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memState) clone() *memState {
	return &memState{
		users:       cloneMap(s.users),
		cars:        cloneMap(s.cars),
		avail:       append([]entity.CarAvailability(nil), s.avail...),
		bookings:    cloneMap(s.bookings),
		orders:      append([]entity.PaymentOrder(nil), s.orders...),
		locked:      append([]entity.BookingLockedBalance(nil), s.locked...),
		txs:         append([]entity.Transaction(nil), s.txs...),
		withdrawals: cloneMap(s.withdrawals),
		reports:     cloneMap(s.reports),
	}
}

// memStore is a transactional in-memory database. Transactions run one at a
// time on a copy of the state that replaces it on success.
type memStore struct {
	mu    sync.Mutex
	state *memState
}

func newMemStore() *memStore {
	return &memStore{state: newMemState()}
}

func (m *memStore) repository() *repository.Repository {
	repo := newMemRepository(&memView{store: m})
	repo.Tx = m
	return repo
}

func (m *memStore) RunInTx(ctx context.Context, fn func(tx *repository.Repository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.state.clone()
	if err := fn(newMemRepository(&memView{fixed: work})); err != nil {
		return err
	}
	m.state = work
	return nil
}

// snapshot returns a copy of the committed state for assertions.
func (m *memStore) snapshot() *memState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

func (m *memStore) seed(fn func(s *memState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.state)
}

type memView struct {
	store *memStore
	fixed *memState
}

func (v *memView) with(fn func(s *memState) error) error {
	if v.fixed != nil {
		return fn(v.fixed)
	}
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	return fn(v.store.state)
}

func newMemRepository(v *memView) *repository.Repository {
	return &repository.Repository{
		User:          &memUsers{v},
		Car:           &memCars{v},
		Availability:  &memAvailability{v},
		Booking:       &memBookings{v},
		PaymentOrder:  &memOrders{v},
		LockedBalance: &memLocked{v},
		Transaction:   &memTransactions{v},
		Withdrawal:    &memWithdrawals{v},
		Report:        &memReports{v},
	}
}

func visible(deleted bool, scope repository.Scope) bool {
	return scope == repository.IncludeDeleted || !deleted
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// users

type memUsers struct{ *memView }

func (r *memUsers) Create(ctx context.Context, u *entity.User) error {
	return r.with(func(s *memState) error {
		if _, ok := s.users[u.ID]; ok {
			return apperror.Conflict("duplicate record")
		}
		s.users[u.ID] = *u
		return nil
	})
}

func (r *memUsers) FindByID(ctx context.Context, id uuid.UUID, scope repository.Scope) (*entity.User, error) {
	var out *entity.User
	err := r.with(func(s *memState) error {
		if u, ok := s.users[id]; ok && visible(u.IsDeleted, scope) {
			out = &u
		}
		return nil
	})
	return out, err
}

func (r *memUsers) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	return r.FindByID(ctx, id, repository.ExcludeDeleted)
}

func (r *memUsers) UpdateBalances(ctx context.Context, id uuid.UUID, balance, locked int64, at time.Time) error {
	return r.with(func(s *memState) error {
		u, ok := s.users[id]
		if !ok || u.IsDeleted {
			return apperror.Conflict("user %s not found", id)
		}
		if balance < 0 || locked < 0 {
			return apperror.InsufficientFunds("balance would become negative")
		}
		u.Balance, u.LockedBalance, u.UpdatedAt = balance, locked, at
		s.users[id] = u
		return nil
	})
}

// cars

type memCars struct{ *memView }

func (r *memCars) FindByID(ctx context.Context, id uuid.UUID, scope repository.Scope) (*entity.Car, error) {
	var out *entity.Car
	err := r.with(func(s *memState) error {
		if c, ok := s.cars[id]; ok && visible(c.IsDeleted, scope) {
			out = &c
		}
		return nil
	})
	return out, err
}

func (r *memCars) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Car, error) {
	return r.FindByID(ctx, id, repository.ExcludeDeleted)
}

func (r *memCars) UpdateStatus(ctx context.Context, id uuid.UUID, from, to entity.CarStatus, at time.Time) error {
	return r.with(func(s *memState) error {
		c, ok := s.cars[id]
		if !ok || c.IsDeleted || c.Status != from {
			return apperror.Conflict("car %s is no longer %s", id, from)
		}
		c.Status, c.UpdatedAt = to, at
		s.cars[id] = c
		return nil
	})
}

// availability

type memAvailability struct{ *memView }

func (r *memAvailability) FindByCarAndRange(ctx context.Context, carID uuid.UUID, from, to time.Time, scope repository.Scope) ([]*entity.CarAvailability, error) {
	var out []*entity.CarAvailability
	from, to = entity.DayStart(from), entity.DayStart(to)
	err := r.with(func(s *memState) error {
		for _, a := range s.avail {
			if a.CarID == carID && !a.Date.Before(from) && a.Date.Before(to) && visible(a.IsDeleted, scope) {
				a := a
				out = append(out, &a)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, err
}

func (r *memAvailability) Upsert(ctx context.Context, a *entity.CarAvailability) error {
	return r.with(func(s *memState) error {
		day := entity.DayStart(a.Date)
		for i, existing := range s.avail {
			if existing.CarID == a.CarID && existing.Date.Equal(day) {
				existing.IsAvailable = a.IsAvailable
				existing.UpdatedAt = a.UpdatedAt
				existing.IsDeleted, existing.DeletedAt = false, nil
				s.avail[i] = existing
				return nil
			}
		}
		row := *a
		row.Date = day
		s.avail = append(s.avail, row)
		return nil
	})
}

// bookings

type memBookings struct{ *memView }

// checkExclusion mirrors the database exclusion constraint on active windows.
func checkExclusion(s *memState, b entity.Booking) error {
	if !b.Status.IsActive() || b.IsDeleted {
		return nil
	}
	for id, other := range s.bookings {
		if id == b.ID || other.CarID != b.CarID || !other.Status.IsActive() || other.IsDeleted {
			continue
		}
		if other.StartTime.Before(b.EndTime) && b.StartTime.Before(other.EndTime) {
			return apperror.Conflict("booking window overlaps an active booking")
		}
	}
	return nil
}

func (r *memBookings) Create(ctx context.Context, b *entity.Booking) error {
	return r.with(func(s *memState) error {
		if _, ok := s.bookings[b.ID]; ok {
			return apperror.Conflict("duplicate record")
		}
		if err := checkExclusion(s, *b); err != nil {
			return err
		}
		s.bookings[b.ID] = *b
		return nil
	})
}

func (r *memBookings) FindByID(ctx context.Context, id uuid.UUID, scope repository.Scope) (*entity.Booking, error) {
	var out *entity.Booking
	err := r.with(func(s *memState) error {
		if b, ok := s.bookings[id]; ok && visible(b.IsDeleted, scope) {
			out = &b
		}
		return nil
	})
	return out, err
}

func (r *memBookings) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	return r.FindByID(ctx, id, repository.ExcludeDeleted)
}

func (r *memBookings) Update(ctx context.Context, b *entity.Booking) error {
	return r.with(func(s *memState) error {
		current, ok := s.bookings[b.ID]
		if !ok || current.IsDeleted {
			return apperror.Conflict("booking %s not found", b.ID)
		}
		next := *b
		next.Status = current.Status
		next.StatusReason = current.StatusReason
		next.RenterID, next.CarID, next.CreatedAt = current.RenterID, current.CarID, current.CreatedAt
		if err := checkExclusion(s, next); err != nil {
			return err
		}
		s.bookings[b.ID] = next
		return nil
	})
}

func (r *memBookings) UpdateStatus(ctx context.Context, id uuid.UUID, from, to entity.BookingStatus, reason *string, at time.Time) error {
	return r.with(func(s *memState) error {
		b, ok := s.bookings[id]
		if !ok || b.IsDeleted || b.Status != from {
			return apperror.Conflict("booking %s is no longer %s", id, from)
		}
		b.Status, b.UpdatedAt = to, at
		if reason != nil {
			b.StatusReason = reason
		}
		if err := checkExclusion(s, b); err != nil {
			return err
		}
		s.bookings[id] = b
		return nil
	})
}

func (r *memBookings) filter(s *memState, f repository.BookingFilter) []entity.Booking {
	var out []entity.Booking
	for _, b := range s.bookings {
		if !visible(b.IsDeleted, f.Scope) {
			continue
		}
		if f.RenterID != nil && b.RenterID != *f.RenterID {
			continue
		}
		if f.OwnerID != nil && s.cars[b.CarID].OwnerID != *f.OwnerID {
			continue
		}
		if f.Status != nil && b.Status != *f.Status {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *memBookings) List(ctx context.Context, f repository.BookingFilter, limit, offset int) ([]*entity.Booking, error) {
	var out []*entity.Booking
	err := r.with(func(s *memState) error {
		for _, b := range page(r.filter(s, f), limit, offset) {
			b := b
			out = append(out, &b)
		}
		return nil
	})
	return out, err
}

func (r *memBookings) Count(ctx context.Context, f repository.BookingFilter) (int64, error) {
	var n int64
	err := r.with(func(s *memState) error {
		n = int64(len(r.filter(s, f)))
		return nil
	})
	return n, err
}

func (r *memBookings) FindActiveOverlapping(ctx context.Context, carID uuid.UUID, start, end time.Time, excludeID uuid.UUID) ([]*entity.Booking, error) {
	var out []*entity.Booking
	err := r.with(func(s *memState) error {
		for _, b := range s.bookings {
			if b.CarID != carID || b.ID == excludeID || b.IsDeleted || !b.Status.IsActive() {
				continue
			}
			if b.Overlaps(start, end) {
				b := b
				out = append(out, &b)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, err
}

func (r *memBookings) ids(match func(b entity.Booking) bool, limit int) ([]uuid.UUID, error) {
	var found []entity.Booking
	err := r.with(func(s *memState) error {
		for _, b := range s.bookings {
			if !b.IsDeleted && match(b) {
				found = append(found, b)
			}
		}
		return nil
	})
	sort.Slice(found, func(i, j int) bool { return found[i].StartTime.Before(found[j].StartTime) })
	var out []uuid.UUID
	for _, b := range page(found, limit, 0) {
		out = append(out, b.ID)
	}
	return out, err
}

func (r *memBookings) FindExpirable(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	return r.ids(func(b entity.Booking) bool {
		return b.Status == entity.BookingStatusApproved && !b.IsPaid && !b.StartTime.After(now)
	}, limit)
}

func (r *memBookings) FindStartable(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	return r.ids(func(b entity.Booking) bool {
		return b.Status == entity.BookingStatusApproved && b.IsPaid && !b.StartTime.After(now)
	}, limit)
}

func (r *memBookings) FindStalePending(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	return r.ids(func(b entity.Booking) bool {
		return b.Status == entity.BookingStatusPending && !b.StartTime.After(now)
	}, limit)
}

// payment orders

type memOrders struct{ *memView }

func (r *memOrders) Create(ctx context.Context, o *entity.PaymentOrder) error {
	return r.with(func(s *memState) error {
		for _, existing := range s.orders {
			if existing.OrderCode == o.OrderCode {
				return apperror.Conflict("duplicate record")
			}
		}
		s.orders = append(s.orders, *o)
		return nil
	})
}

func (r *memOrders) FindByOrderCode(ctx context.Context, code int64) (*entity.PaymentOrder, error) {
	var out *entity.PaymentOrder
	err := r.with(func(s *memState) error {
		for _, o := range s.orders {
			if o.OrderCode == code {
				o := o
				out = &o
			}
		}
		return nil
	})
	return out, err
}

func (r *memOrders) FindByBooking(ctx context.Context, bookingID uuid.UUID) ([]*entity.PaymentOrder, error) {
	var out []*entity.PaymentOrder
	err := r.with(func(s *memState) error {
		for _, o := range s.orders {
			if o.BookingID == bookingID {
				o := o
				out = append(out, &o)
			}
		}
		return nil
	})
	return out, err
}

func (r *memOrders) update(code int64, fn func(o *entity.PaymentOrder) error) error {
	return r.with(func(s *memState) error {
		for i := range s.orders {
			if s.orders[i].OrderCode == code {
				o := s.orders[i]
				if err := fn(&o); err != nil {
					return err
				}
				s.orders[i] = o
				return nil
			}
		}
		return apperror.Conflict("payment order %d not found", code)
	})
}

func (r *memOrders) UpdateLink(ctx context.Context, code int64, linkID, checkoutURL, qrCode string, at time.Time) error {
	return r.update(code, func(o *entity.PaymentOrder) error {
		o.PaymentLinkID, o.CheckoutURL, o.QRCode = &linkID, &checkoutURL, &qrCode
		o.UpdatedAt = at
		return nil
	})
}

func (r *memOrders) UpdateStatus(ctx context.Context, code int64, from, to entity.PaymentOrderStatus, at time.Time) error {
	return r.update(code, func(o *entity.PaymentOrder) error {
		if o.Status != from {
			return apperror.Conflict("payment order %d is no longer %s", code, from)
		}
		o.Status, o.UpdatedAt = to, at
		if to == entity.PaymentOrderPaid {
			o.PaidAt = &at
		}
		return nil
	})
}

// locked balances

type memLocked struct{ *memView }

func (r *memLocked) Create(ctx context.Context, lb *entity.BookingLockedBalance) error {
	return r.with(func(s *memState) error {
		for _, existing := range s.locked {
			if existing.BookingID == lb.BookingID && !existing.IsDeleted {
				return apperror.Conflict("duplicate record")
			}
		}
		s.locked = append(s.locked, *lb)
		return nil
	})
}

func (r *memLocked) FindActiveByBooking(ctx context.Context, bookingID uuid.UUID) (*entity.BookingLockedBalance, error) {
	var out *entity.BookingLockedBalance
	err := r.with(func(s *memState) error {
		for _, lb := range s.locked {
			if lb.BookingID == bookingID && !lb.IsDeleted {
				lb := lb
				out = &lb
			}
		}
		return nil
	})
	return out, err
}

func (r *memLocked) update(id uuid.UUID, fn func(lb *entity.BookingLockedBalance)) error {
	return r.with(func(s *memState) error {
		for i := range s.locked {
			if s.locked[i].ID == id && !s.locked[i].IsDeleted {
				fn(&s.locked[i])
				return nil
			}
		}
		return apperror.Conflict("locked balance %s not found", id)
	})
}

func (r *memLocked) UpdateAmount(ctx context.Context, id uuid.UUID, amount int64, at time.Time) error {
	return r.update(id, func(lb *entity.BookingLockedBalance) {
		lb.Amount, lb.UpdatedAt = amount, at
	})
}

func (r *memLocked) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.update(id, func(lb *entity.BookingLockedBalance) {
		lb.IsDeleted, lb.DeletedAt, lb.UpdatedAt = true, &at, at
	})
}

// transactions

type memTransactions struct{ *memView }

func (r *memTransactions) Create(ctx context.Context, t *entity.Transaction) error {
	return r.with(func(s *memState) error {
		if t.Type == entity.TransactionBookingPayment {
			for _, existing := range s.txs {
				if existing.Type == t.Type && existing.BookingID != nil && t.BookingID != nil && *existing.BookingID == *t.BookingID {
					return apperror.Conflict("duplicate record")
				}
			}
		}
		s.txs = append(s.txs, *t)
		return nil
	})
}

func (r *memTransactions) FindByID(ctx context.Context, id uuid.UUID) (*entity.Transaction, error) {
	var out *entity.Transaction
	err := r.with(func(s *memState) error {
		for _, t := range s.txs {
			if t.ID == id {
				t := t
				out = &t
			}
		}
		return nil
	})
	return out, err
}

func (r *memTransactions) FindByBooking(ctx context.Context, bookingID uuid.UUID) ([]*entity.Transaction, error) {
	var out []*entity.Transaction
	err := r.with(func(s *memState) error {
		for _, t := range s.txs {
			if t.BookingID != nil && *t.BookingID == bookingID {
				t := t
				out = append(out, &t)
			}
		}
		return nil
	})
	return out, err
}

func (r *memTransactions) byUser(s *memState, userID uuid.UUID) []entity.Transaction {
	var out []entity.Transaction
	for i := len(s.txs) - 1; i >= 0; i-- {
		t := s.txs[i]
		if (t.FromUserID != nil && *t.FromUserID == userID) || (t.ToUserID != nil && *t.ToUserID == userID) {
			out = append(out, t)
		}
	}
	return out
}

func (r *memTransactions) FindByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Transaction, error) {
	var out []*entity.Transaction
	err := r.with(func(s *memState) error {
		for _, t := range page(r.byUser(s, userID), limit, offset) {
			t := t
			out = append(out, &t)
		}
		return nil
	})
	return out, err
}

func (r *memTransactions) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := r.with(func(s *memState) error {
		n = int64(len(r.byUser(s, userID)))
		return nil
	})
	return n, err
}

// withdrawals

type memWithdrawals struct{ *memView }

func (r *memWithdrawals) Create(ctx context.Context, w *entity.WithdrawalRequest) error {
	return r.with(func(s *memState) error {
		s.withdrawals[w.ID] = *w
		return nil
	})
}

func (r *memWithdrawals) FindByID(ctx context.Context, id uuid.UUID, scope repository.Scope) (*entity.WithdrawalRequest, error) {
	var out *entity.WithdrawalRequest
	err := r.with(func(s *memState) error {
		if w, ok := s.withdrawals[id]; ok && visible(w.IsDeleted, scope) {
			out = &w
		}
		return nil
	})
	return out, err
}

func (r *memWithdrawals) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.WithdrawalRequest, error) {
	return r.FindByID(ctx, id, repository.ExcludeDeleted)
}

func (r *memWithdrawals) Update(ctx context.Context, w *entity.WithdrawalRequest) error {
	return r.with(func(s *memState) error {
		current, ok := s.withdrawals[w.ID]
		if !ok {
			return apperror.Conflict("withdrawal %s not found", w.ID)
		}
		current.TransactionID, current.AdminNote = w.TransactionID, w.AdminNote
		current.ProcessedBy, current.ProcessedAt, current.UpdatedAt = w.ProcessedBy, w.ProcessedAt, w.UpdatedAt
		s.withdrawals[w.ID] = current
		return nil
	})
}

func (r *memWithdrawals) UpdateStatus(ctx context.Context, id uuid.UUID, from, to entity.WithdrawalStatus, at time.Time) error {
	return r.with(func(s *memState) error {
		w, ok := s.withdrawals[id]
		if !ok || w.Status != from {
			return apperror.Conflict("withdrawal %s is no longer %s", id, from)
		}
		w.Status, w.UpdatedAt = to, at
		s.withdrawals[id] = w
		return nil
	})
}

func (r *memWithdrawals) filter(s *memState, f repository.WithdrawalFilter) []entity.WithdrawalRequest {
	var out []entity.WithdrawalRequest
	for _, w := range s.withdrawals {
		if !visible(w.IsDeleted, f.Scope) ||
			(f.UserID != nil && w.UserID != *f.UserID) ||
			(f.Status != nil && w.Status != *f.Status) {
			continue
		}
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *memWithdrawals) List(ctx context.Context, f repository.WithdrawalFilter, limit, offset int) ([]*entity.WithdrawalRequest, error) {
	var out []*entity.WithdrawalRequest
	err := r.with(func(s *memState) error {
		for _, w := range page(r.filter(s, f), limit, offset) {
			w := w
			out = append(out, &w)
		}
		return nil
	})
	return out, err
}

func (r *memWithdrawals) Count(ctx context.Context, f repository.WithdrawalFilter) (int64, error) {
	var n int64
	err := r.with(func(s *memState) error {
		n = int64(len(r.filter(s, f)))
		return nil
	})
	return n, err
}

func (r *memWithdrawals) SumReserved(ctx context.Context, userID uuid.UUID) (int64, error) {
	var sum int64
	err := r.with(func(s *memState) error {
		for _, w := range s.withdrawals {
			if w.UserID == userID && !w.IsDeleted &&
				(w.Status == entity.WithdrawalStatusPending || w.Status == entity.WithdrawalStatusApproved) {
				sum += w.Amount
			}
		}
		return nil
	})
	return sum, err
}

// reports

type memReports struct{ *memView }

func (r *memReports) Create(ctx context.Context, rp *entity.BookingReport) error {
	return r.with(func(s *memState) error {
		s.reports[rp.ID] = *rp
		return nil
	})
}

func (r *memReports) FindByID(ctx context.Context, id uuid.UUID, scope repository.Scope) (*entity.BookingReport, error) {
	var out *entity.BookingReport
	err := r.with(func(s *memState) error {
		if rp, ok := s.reports[id]; ok && visible(rp.IsDeleted, scope) {
			out = &rp
		}
		return nil
	})
	return out, err
}

func (r *memReports) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.BookingReport, error) {
	return r.FindByID(ctx, id, repository.ExcludeDeleted)
}

func (r *memReports) Update(ctx context.Context, rp *entity.BookingReport) error {
	return r.with(func(s *memState) error {
		current, ok := s.reports[rp.ID]
		if !ok {
			return apperror.Conflict("report %s not found", rp.ID)
		}
		next := *rp
		next.Status = current.Status
		s.reports[rp.ID] = next
		return nil
	})
}

func (r *memReports) UpdateStatus(ctx context.Context, id uuid.UUID, from, to entity.ReportStatus, at time.Time) error {
	return r.with(func(s *memState) error {
		rp, ok := s.reports[id]
		if !ok || rp.Status != from {
			return apperror.Conflict("report %s is no longer %s", id, from)
		}
		rp.Status, rp.UpdatedAt = to, at
		s.reports[id] = rp
		return nil
	})
}

func (r *memReports) filter(s *memState, f repository.ReportFilter) []entity.BookingReport {
	var out []entity.BookingReport
	for _, rp := range s.reports {
		if !visible(rp.IsDeleted, f.Scope) ||
			(f.BookingID != nil && rp.BookingID != *f.BookingID) ||
			(f.Status != nil && rp.Status != *f.Status) {
			continue
		}
		out = append(out, rp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *memReports) List(ctx context.Context, f repository.ReportFilter, limit, offset int) ([]*entity.BookingReport, error) {
	var out []*entity.BookingReport
	err := r.with(func(s *memState) error {
		for _, rp := range page(r.filter(s, f), limit, offset) {
			rp := rp
			out = append(out, &rp)
		}
		return nil
	})
	return out, err
}

func (r *memReports) Count(ctx context.Context, f repository.ReportFilter) (int64, error) {
	var n int64
	err := r.with(func(s *memState) error {
		n = int64(len(r.filter(s, f)))
		return nil
	})
	return n, err
}
