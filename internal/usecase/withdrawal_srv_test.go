package usecase

import (
	"testing"

	"car-rental/internal/data/entity"
	"car-rental/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithdrawalLifecycle(t *testing.T) {
	h := newHarness(t)
	h.setBalance(h.owner.UserID, 1000)
	bank := uuid.New()

	req, err := h.svc.Withdrawal.RequestWithdrawal(h.ctx, h.owner, bank, 600)
	require.NoError(t, err)
	assert.Equal(t, entity.WithdrawalStatusPending, req.Status)

	bal, err := h.svc.Ledger.GetBalance(h.ctx, h.owner)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), bal.Balance)
	assert.Equal(t, int64(600), bal.Reserved)
	assert.Equal(t, int64(400), bal.Available)

	_, err = h.svc.Withdrawal.ApproveWithdrawal(h.ctx, h.staff, req.ID, " ok ")
	require.NoError(t, err)

	processed, record, err := h.svc.Withdrawal.ProcessWithdrawal(h.ctx, h.staff, req.ID, "https://proof.test/1")
	require.NoError(t, err)
	assert.Equal(t, entity.WithdrawalStatusProcessed, processed.Status)
	require.NotNil(t, processed.TransactionID)
	assert.Equal(t, record.ID, *processed.TransactionID)
	assert.Equal(t, entity.TransactionWithdrawalPayout, record.Type)
	assert.Equal(t, int64(400), record.BalanceAfter)
	assert.Equal(t, int64(400), h.user(h.owner.UserID).Balance)
	assert.True(t, h.events.has(EventWithdrawalProcessed))

	bal, err = h.svc.Ledger.GetBalance(h.ctx, h.owner)
	require.NoError(t, err)
	assert.Zero(t, bal.Reserved)
	assert.Equal(t, int64(400), bal.Available)

	h.requireLedgerConsistent(map[uuid.UUID]int64{h.owner.UserID: 1000})
}

func TestWithdrawalCannotExceedUnreservedBalance(t *testing.T) {
	h := newHarness(t)
	h.setBalance(h.owner.UserID, 500)
	bank := uuid.New()

	_, err := h.svc.Withdrawal.RequestWithdrawal(h.ctx, h.owner, bank, 300)
	require.NoError(t, err)

	_, err = h.svc.Withdrawal.RequestWithdrawal(h.ctx, h.owner, bank, 300)
	assert.ErrorIs(t, err, apperror.ErrInsufficientFunds)

	_, err = h.svc.Withdrawal.RequestWithdrawal(h.ctx, h.owner, bank, 200)
	assert.NoError(t, err)

	_, err = h.svc.Withdrawal.RequestWithdrawal(h.ctx, h.owner, bank, 0)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = h.svc.Withdrawal.RequestWithdrawal(h.ctx, h.owner, uuid.Nil, 10)
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestRejectedWithdrawalReleasesReservation(t *testing.T) {
	h := newHarness(t)
	h.setBalance(h.owner.UserID, 500)

	req, err := h.svc.Withdrawal.RequestWithdrawal(h.ctx, h.owner, uuid.New(), 500)
	require.NoError(t, err)

	rejected, err := h.svc.Withdrawal.RejectWithdrawal(h.ctx, h.staff, req.ID, "wrong account")
	require.NoError(t, err)
	assert.Equal(t, entity.WithdrawalStatusRejected, rejected.Status)
	require.NotNil(t, rejected.AdminNote)
	assert.Equal(t, "wrong account", *rejected.AdminNote)

	_, err = h.svc.Withdrawal.RequestWithdrawal(h.ctx, h.owner, uuid.New(), 500)
	assert.NoError(t, err)

	_, _, err = h.svc.Withdrawal.ProcessWithdrawal(h.ctx, h.staff, req.ID, "https://proof.test/1")
	assert.ErrorIs(t, err, apperror.ErrInvalidStateTransition)
	assert.Empty(t, h.transactions(entity.TransactionWithdrawalPayout))
}

func TestWithdrawalStaffOnly(t *testing.T) {
	h := newHarness(t)
	h.setBalance(h.owner.UserID, 500)
	req, err := h.svc.Withdrawal.RequestWithdrawal(h.ctx, h.owner, uuid.New(), 100)
	require.NoError(t, err)

	_, err = h.svc.Withdrawal.ApproveWithdrawal(h.ctx, h.owner, req.ID, "")
	assert.ErrorIs(t, err, apperror.ErrForbidden)
	_, _, err = h.svc.Withdrawal.ProcessWithdrawal(h.ctx, h.owner, req.ID, "https://proof.test/1")
	assert.ErrorIs(t, err, apperror.ErrForbidden)
	_, _, err = h.svc.Withdrawal.ListWithdrawals(h.ctx, h.owner, nil, 10, 0)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	_, err = h.svc.Withdrawal.ApproveWithdrawal(h.ctx, h.staff, req.ID, "")
	require.NoError(t, err)
	_, _, err = h.svc.Withdrawal.ProcessWithdrawal(h.ctx, h.staff, req.ID, "  ")
	assert.ErrorIs(t, err, apperror.ErrValidation)

	pending := entity.WithdrawalStatusApproved
	items, total, err := h.svc.Withdrawal.ListWithdrawals(h.ctx, h.staff, &pending, 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, items, 1)

	mine, total, err := h.svc.Withdrawal.ListMyWithdrawals(h.ctx, h.owner, 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, req.ID, mine[0].ID)
}
