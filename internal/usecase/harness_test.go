package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"car-rental/internal/data/entity"
	"car-rental/pkg/payos"
	"car-rental/pkg/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testChecksumKey = "checksum"

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type stubGateway struct {
	mu        sync.Mutex
	created   []payos.PaymentRequest
	cancelled []int64
	createErr error
}

func (g *stubGateway) CreatePaymentLink(ctx context.Context, req payos.PaymentRequest) (*payos.PaymentLink, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.created = append(g.created, req)
	return &payos.PaymentLink{
		PaymentLinkID: fmt.Sprintf("pl_%d", req.OrderCode),
		CheckoutURL:   fmt.Sprintf("https://pay.test/%d", req.OrderCode),
		QRCode:        "qr",
		Status:        "PENDING",
		OrderCode:     req.OrderCode,
		Amount:        req.Amount,
	}, nil
}

func (g *stubGateway) CancelPaymentLink(ctx context.Context, orderCode int64, reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelled = append(g.cancelled, orderCode)
	return nil
}

func (g *stubGateway) VerifyWebhook(body []byte) (*payos.WebhookData, error) {
	return payos.VerifyWebhook(testChecksumKey, body)
}

func (g *stubGateway) fail(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createErr = err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(ctx context.Context, routingKey string, body any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, routingKey)
	return nil
}

func (p *recordingPublisher) Close() {}

func (p *recordingPublisher) has(routingKey string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.events {
		if e == routingKey {
			return true
		}
	}
	return false
}

type harness struct {
	t       *testing.T
	ctx     context.Context
	store   *memStore
	clock   *testClock
	gateway *stubGateway
	events  *recordingPublisher
	svc     *Service

	renter Actor
	owner  Actor
	staff  Actor
	carID  uuid.UUID
}

func testPolicy() utils.PolicyConfig {
	return utils.PolicyConfig{
		PlatformFeeBps:     1000,
		ExcessDayFeeBps:    10000,
		ExcessGrace:        time.Hour,
		MinBookingDuration: time.Hour,
		MaxBookingDuration: 90 * 24 * time.Hour,
		SweepBatchSize:     100,
	}
}

// newHarness seeds a renter, an owner with one available car at 100 per hour
// and a staff member.
func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		t:       t,
		ctx:     context.Background(),
		store:   newMemStore(),
		clock:   &testClock{t: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)},
		gateway: &stubGateway{},
		events:  &recordingPublisher{},
		renter:  Actor{UserID: uuid.New(), Role: entity.RoleUser},
		owner:   Actor{UserID: uuid.New(), Role: entity.RoleUser},
		staff:   Actor{UserID: uuid.New(), Role: entity.RoleStaff},
		carID:   uuid.New(),
	}

	phone := "0900000000"
	h.addUser(h.renter, 0, &phone)
	h.addUser(h.owner, 0, nil)
	h.addUser(h.staff, 0, nil)
	h.addCar(h.carID, h.owner.UserID, 100)

	cfg := &utils.Config{Policy: testPolicy()}
	h.svc = NewService(h.store.repository(), cfg, zap.NewNop(), Dependencies{
		Gateway:   h.gateway,
		Publisher: h.events,
		Now:       h.clock.Now,
	})
	return h
}

func (h *harness) addUser(a Actor, balance int64, phone *string) {
	now := h.clock.Now()
	h.store.seed(func(s *memState) {
		s.users[a.UserID] = entity.User{
			Base:     entity.Base{ID: a.UserID, CreatedAt: now, UpdatedAt: now},
			Username: a.UserID.String()[:8],
			Email:    a.UserID.String()[:8] + "@example.com",
			Phone:    phone,
			Role:     a.Role,
			Balance:  balance,
			IsActive: true,
		}
	})
}

func (h *harness) addCar(id, ownerID uuid.UUID, pricePerHour int64) {
	now := h.clock.Now()
	h.store.seed(func(s *memState) {
		s.cars[id] = entity.Car{
			Base:         entity.Base{ID: id, CreatedAt: now, UpdatedAt: now},
			OwnerID:      ownerID,
			Brand:        "Toyota",
			Model:        "Vios",
			LicensePlate: "51A-12345",
			Status:       entity.CarStatusAvailable,
			PricePerHour: pricePerHour,
		}
	})
}

func (h *harness) setBalance(userID uuid.UUID, balance int64) {
	h.store.seed(func(s *memState) {
		u := s.users[userID]
		u.Balance = balance
		s.users[userID] = u
	})
}

// day returns midnight UTC n days after the clock's current day.
func (h *harness) day(n int) time.Time {
	return entity.DayStart(h.clock.Now()).AddDate(0, 0, n)
}

func (h *harness) createBooking(start, end time.Time) *entity.Booking {
	h.t.Helper()
	b, err := h.svc.Booking.CreateBooking(h.ctx, h.renter, CreateBookingInput{CarID: h.carID, StartTime: start, EndTime: end})
	require.NoError(h.t, err)
	return b
}

func (h *harness) approve(id uuid.UUID) (*entity.Booking, *PaymentLink) {
	h.t.Helper()
	b, link, err := h.svc.Booking.ApproveBooking(h.ctx, h.owner, id)
	require.NoError(h.t, err)
	require.NotNil(h.t, link)
	return b, link
}

func (h *harness) pay(orderCode, amount int64) *WebhookResult {
	h.t.Helper()
	res, err := h.svc.Payment.ConfirmPayment(h.ctx, &payos.WebhookData{OrderCode: orderCode, Amount: amount, Code: "00"})
	require.NoError(h.t, err)
	return res
}

// paidBooking books day+1 from 08:00 for hours, approves it and pays.
func (h *harness) paidBooking(hours int) *entity.Booking {
	h.t.Helper()
	start := h.day(1).Add(8 * time.Hour)
	b := h.createBooking(start, start.Add(time.Duration(hours)*time.Hour))
	_, link := h.approve(b.ID)
	require.Equal(h.t, WebhookApplied, h.pay(link.OrderCode, link.Amount).Outcome)
	return h.booking(b.ID)
}

// startedBooking is a paid booking that is in progress.
func (h *harness) startedBooking(hours int) *entity.Booking {
	h.t.Helper()
	b := h.paidBooking(hours)
	h.clock.Set(b.StartTime)
	started, err := h.svc.Booking.StartBooking(h.ctx, h.owner, b.ID)
	require.NoError(h.t, err)
	return started
}

func (h *harness) booking(id uuid.UUID) *entity.Booking {
	h.t.Helper()
	b, ok := h.store.snapshot().bookings[id]
	require.True(h.t, ok)
	return &b
}

func (h *harness) user(id uuid.UUID) entity.User {
	return h.store.snapshot().users[id]
}

func (h *harness) car() entity.Car {
	return h.store.snapshot().cars[h.carID]
}

func (h *harness) transactions(typ entity.TransactionType) []entity.Transaction {
	var out []entity.Transaction
	for _, t := range h.store.snapshot().txs {
		if t.Type == typ {
			out = append(out, t)
		}
	}
	return out
}

func (h *harness) activeLock(bookingID uuid.UUID) *entity.BookingLockedBalance {
	for _, lb := range h.store.snapshot().locked {
		if lb.BookingID == bookingID && !lb.IsDeleted {
			return &lb
		}
	}
	return nil
}

// requireLedgerConsistent checks non-negative balances and that every user's
// balance equals the signed sum of the transactions touching them.
func (h *harness) requireLedgerConsistent(initial map[uuid.UUID]int64) {
	h.t.Helper()
	s := h.store.snapshot()
	for id, u := range s.users {
		require.GreaterOrEqual(h.t, u.Balance, int64(0), "balance of %s", id)
		require.GreaterOrEqual(h.t, u.LockedBalance, int64(0), "locked balance of %s", id)

		var sum int64
		for i := range s.txs {
			sum += s.txs[i].SignedAmountFor(id)
		}
		require.Equal(h.t, u.Balance-initial[id], sum, "round trip for %s", id)
	}
}
