package usecase

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"car-rental/internal/data/entity"
	"car-rental/internal/data/repository"
	"car-rental/pkg/apperror"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type LedgerService interface {
	GetBalance(ctx context.Context, actor Actor) (*Balance, error)
	ListTransactions(ctx context.Context, actor Actor, limit, offset int) ([]*entity.Transaction, int64, error)
}

// Balance is a user's money position. Available excludes amounts reserved by
// open withdrawal requests.
type Balance struct {
	UserID        uuid.UUID `json:"user_id"`
	Balance       int64     `json:"balance"`
	LockedBalance int64     `json:"locked_balance"`
	Reserved      int64     `json:"reserved"`
	Available     int64     `json:"available"`
}

type ledgerService struct {
	base
}

func (s *ledgerService) GetBalance(ctx context.Context, actor Actor) (*Balance, error) {
	user, err := s.repo.User.FindByID(ctx, actor.UserID, repository.ExcludeDeleted)
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}
	if user == nil {
		return nil, apperror.NotFound("user %s not found", actor.UserID)
	}

	reserved, err := s.repo.Withdrawal.SumReserved(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}

	return &Balance{
		UserID:        user.ID,
		Balance:       user.Balance,
		LockedBalance: user.LockedBalance,
		Reserved:      reserved,
		Available:     max(user.Balance-reserved, 0),
	}, nil
}

func (s *ledgerService) ListTransactions(ctx context.Context, actor Actor, limit, offset int) ([]*entity.Transaction, int64, error) {
	txs, err := s.repo.Transaction.FindByUser(ctx, actor.UserID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}

	total, err := s.repo.Transaction.CountByUser(ctx, actor.UserID)
	if err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	return txs, total, nil
}

// TransactionInput describes one money movement. Escrow is the locked-balance
// leg for payment and refund types; other types ignore it.
type TransactionInput struct {
	Type          entity.TransactionType
	FromUserID    *uuid.UUID
	ToUserID      *uuid.UUID
	BookingID     *uuid.UUID
	BankAccountID *uuid.UUID
	Amount        int64
	Escrow        int64
	Description   string
	ProofURL      *string
}

type balanceDelta struct {
	balance int64
	locked  int64
}

// ledgerEngine applies posting rules. Every method runs on the caller's
// transaction-scoped repository so balances and ledger rows commit together.
type ledgerEngine struct {
	log *zap.Logger
	now func() time.Time
}

func (l *ledgerEngine) ApplyTransaction(ctx context.Context, tx *repository.Repository, in TransactionInput) (*entity.Transaction, error) {
	if !in.Type.IsValid() {
		return nil, apperror.Validation("unknown transaction type %q", in.Type)
	}
	if in.Amount <= 0 {
		return nil, apperror.Validation("transaction amount must be positive")
	}
	if in.Escrow < 0 {
		return nil, apperror.Validation("escrow amount must not be negative")
	}

	deltas := map[uuid.UUID]*balanceDelta{}
	touch := func(id *uuid.UUID) *balanceDelta {
		d, ok := deltas[*id]
		if !ok {
			d = &balanceDelta{}
			deltas[*id] = d
		}
		return d
	}

	var snapshotUser *uuid.UUID
	snapshotLocked := false

	switch in.Type {
	case entity.TransactionBookingPayment, entity.TransactionExtensionPayment, entity.TransactionExcessFeePayment:
		if in.ToUserID == nil {
			return nil, apperror.Validation("%s needs a receiving owner", in.Type)
		}
		escrow := in.Escrow
		if in.Type != entity.TransactionBookingPayment {
			escrow = in.Amount
		}
		touch(in.ToUserID).locked += escrow
		snapshotUser, snapshotLocked = in.ToUserID, true
	case entity.TransactionOwnerPayout:
		if in.ToUserID == nil {
			return nil, apperror.Validation("owner payout needs an owner")
		}
		d := touch(in.ToUserID)
		d.locked -= in.Amount
		d.balance += in.Amount
		snapshotUser = in.ToUserID
	case entity.TransactionPlatformFee:
	case entity.TransactionRefund:
		if in.ToUserID == nil {
			return nil, apperror.Validation("refund needs a renter")
		}
		if in.FromUserID != nil && in.Escrow > 0 {
			touch(in.FromUserID).locked -= in.Escrow
		}
		touch(in.ToUserID).balance += in.Amount
		snapshotUser = in.ToUserID
	case entity.TransactionWithdrawalPayout:
		if in.FromUserID == nil {
			return nil, apperror.Validation("withdrawal payout needs a user")
		}
		touch(in.FromUserID).balance -= in.Amount
		snapshotUser = in.FromUserID
	case entity.TransactionCompensationPayout:
		if in.FromUserID == nil {
			return nil, apperror.Validation("compensation needs an at-fault user")
		}
		if in.ToUserID != nil && *in.ToUserID == *in.FromUserID {
			return nil, apperror.Validation("compensation cannot be paid to the charged user")
		}
		touch(in.FromUserID).balance -= in.Amount
		if in.ToUserID != nil {
			touch(in.ToUserID).balance += in.Amount
		}
		snapshotUser = in.FromUserID
	}

	// lock in id order so concurrent postings between the same users cannot deadlock
	ids := make([]uuid.UUID, 0, len(deltas))
	for id := range deltas {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })

	users := make(map[uuid.UUID]*entity.User, len(ids))
	for _, id := range ids {
		user, err := tx.User.FindByIDForUpdate(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("lock user %s: %w", id, err)
		}
		if user == nil {
			return nil, apperror.NotFound("user %s not found", id)
		}
		users[id] = user
	}

	for _, id := range ids {
		u, d := users[id], deltas[id]
		if u.Balance+d.balance < 0 {
			return nil, apperror.InsufficientFunds("user %s balance %d cannot cover %d", id, u.Balance, -d.balance)
		}
		if u.LockedBalance+d.locked < 0 {
			return nil, apperror.InsufficientFunds("user %s locked balance %d cannot cover %d", id, u.LockedBalance, -d.locked)
		}
	}

	now := l.now().UTC()
	for _, id := range ids {
		u, d := users[id], deltas[id]
		if d.balance == 0 && d.locked == 0 {
			continue
		}
		u.Balance += d.balance
		u.LockedBalance += d.locked
		if err := tx.User.UpdateBalances(ctx, id, u.Balance, u.LockedBalance, now); err != nil {
			return nil, fmt.Errorf("post %s: %w", in.Type, err)
		}
	}

	var balanceAfter int64
	if snapshotUser != nil {
		if snapshotLocked {
			balanceAfter = users[*snapshotUser].LockedBalance
		} else {
			balanceAfter = users[*snapshotUser].Balance
		}
	}

	record := &entity.Transaction{
		BaseSimple:    entity.BaseSimple{ID: uuid.New(), CreatedAt: now},
		FromUserID:    in.FromUserID,
		ToUserID:      in.ToUserID,
		BookingID:     in.BookingID,
		BankAccountID: in.BankAccountID,
		Type:          in.Type,
		Status:        entity.TransactionStatusCompleted,
		Amount:        in.Amount,
		BalanceAfter:  balanceAfter,
		Description:   in.Description,
		ProofURL:      in.ProofURL,
	}
	if err := tx.Transaction.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("record %s: %w", in.Type, err)
	}

	l.log.Info("Transaction applied",
		zap.String("transaction_id", record.ID.String()),
		zap.String("type", string(record.Type)),
		zap.Int64("amount", record.Amount),
		zap.Int64("balance_after", record.BalanceAfter),
	)

	return record, nil
}

// LockFunds records the booking payment and escrows the owner's share.
func (l *ledgerEngine) LockFunds(ctx context.Context, tx *repository.Repository, booking *entity.Booking, ownerID uuid.UUID) (*entity.Transaction, error) {
	share := booking.OwnerShare()
	record, err := l.ApplyTransaction(ctx, tx, TransactionInput{
		Type:        entity.TransactionBookingPayment,
		FromUserID:  &booking.RenterID,
		ToUserID:    &ownerID,
		BookingID:   &booking.ID,
		Amount:      booking.TotalAmount,
		Escrow:      share,
		Description: fmt.Sprintf("Payment for booking %s", booking.ID),
	})
	if err != nil {
		return nil, err
	}

	now := l.now().UTC()
	err = tx.LockedBalance.Create(ctx, &entity.BookingLockedBalance{
		Base:      entity.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		BookingID: booking.ID,
		OwnerID:   ownerID,
		Amount:    share,
	})
	if err != nil {
		return nil, fmt.Errorf("escrow booking %s: %w", booking.ID, err)
	}

	return record, nil
}

// LockAdditional escrows an extension or excess-fee payment on top of the
// booking's existing locked balance.
func (l *ledgerEngine) LockAdditional(ctx context.Context, tx *repository.Repository, booking *entity.Booking, ownerID uuid.UUID, txType entity.TransactionType, amount int64) (*entity.Transaction, error) {
	record, err := l.ApplyTransaction(ctx, tx, TransactionInput{
		Type:        txType,
		FromUserID:  &booking.RenterID,
		ToUserID:    &ownerID,
		BookingID:   &booking.ID,
		Amount:      amount,
		Description: fmt.Sprintf("%s for booking %s", txType, booking.ID),
	})
	if err != nil {
		return nil, err
	}

	now := l.now().UTC()
	lb, err := tx.LockedBalance.FindActiveByBooking(ctx, booking.ID)
	if err != nil {
		return nil, err
	}
	if lb == nil {
		err = tx.LockedBalance.Create(ctx, &entity.BookingLockedBalance{
			Base:      entity.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
			BookingID: booking.ID,
			OwnerID:   ownerID,
			Amount:    amount,
		})
	} else {
		err = tx.LockedBalance.UpdateAmount(ctx, lb.ID, lb.Amount+amount, now)
	}
	if err != nil {
		return nil, fmt.Errorf("escrow %s for booking %s: %w", txType, booking.ID, err)
	}

	return record, nil
}

// ReleaseFunds pays the escrowed amount out to the owner and records the
// platform fee. A booking without escrow releases nothing.
func (l *ledgerEngine) ReleaseFunds(ctx context.Context, tx *repository.Repository, booking *entity.Booking, ownerID uuid.UUID) error {
	lb, err := tx.LockedBalance.FindActiveByBooking(ctx, booking.ID)
	if err != nil {
		return err
	}
	if lb == nil {
		l.log.Warn("No escrow to release", zap.String("booking_id", booking.ID.String()))
		return nil
	}

	if lb.Amount > 0 {
		if _, err := l.ApplyTransaction(ctx, tx, TransactionInput{
			Type:        entity.TransactionOwnerPayout,
			ToUserID:    &ownerID,
			BookingID:   &booking.ID,
			Amount:      lb.Amount,
			Description: fmt.Sprintf("Payout for booking %s", booking.ID),
		}); err != nil {
			return err
		}
	}

	if booking.PlatformFee > 0 {
		if _, err := l.ApplyTransaction(ctx, tx, TransactionInput{
			Type:        entity.TransactionPlatformFee,
			BookingID:   &booking.ID,
			Amount:      booking.PlatformFee,
			Description: fmt.Sprintf("Platform fee for booking %s", booking.ID),
		}); err != nil {
			return err
		}
	}

	return tx.LockedBalance.SoftDelete(ctx, lb.ID, l.now().UTC())
}

// RefundFunds returns the full paid amount to the renter and reverses the
// owner's escrow.
func (l *ledgerEngine) RefundFunds(ctx context.Context, tx *repository.Repository, booking *entity.Booking, ownerID uuid.UUID) (*entity.Transaction, error) {
	lb, err := tx.LockedBalance.FindActiveByBooking(ctx, booking.ID)
	if err != nil {
		return nil, err
	}

	var escrow int64
	if lb != nil {
		escrow = lb.Amount
	}

	record, err := l.ApplyTransaction(ctx, tx, TransactionInput{
		Type:        entity.TransactionRefund,
		FromUserID:  &ownerID,
		ToUserID:    &booking.RenterID,
		BookingID:   &booking.ID,
		Amount:      booking.TotalAmount,
		Escrow:      escrow,
		Description: fmt.Sprintf("Refund for booking %s", booking.ID),
	})
	if err != nil {
		return nil, err
	}

	if lb != nil {
		if err := tx.LockedBalance.SoftDelete(ctx, lb.ID, l.now().UTC()); err != nil {
			return nil, err
		}
	}

	return record, nil
}
