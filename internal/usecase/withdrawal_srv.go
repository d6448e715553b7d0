package usecase

import (
	"context"
	"fmt"
	"strings"

	"car-rental/internal/data/entity"
	"car-rental/internal/data/repository"
	"car-rental/pkg/apperror"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type WithdrawalService interface {
	RequestWithdrawal(ctx context.Context, actor Actor, bankAccountID uuid.UUID, amount int64) (*entity.WithdrawalRequest, error)
	ListMyWithdrawals(ctx context.Context, actor Actor, limit, offset int) ([]*entity.WithdrawalRequest, int64, error)

	// Staff
	ListWithdrawals(ctx context.Context, actor Actor, status *entity.WithdrawalStatus, limit, offset int) ([]*entity.WithdrawalRequest, int64, error)
	ApproveWithdrawal(ctx context.Context, actor Actor, id uuid.UUID, note string) (*entity.WithdrawalRequest, error)
	RejectWithdrawal(ctx context.Context, actor Actor, id uuid.UUID, note string) (*entity.WithdrawalRequest, error)
	ProcessWithdrawal(ctx context.Context, actor Actor, id uuid.UUID, proofURL string) (*entity.WithdrawalRequest, *entity.Transaction, error)
}

type withdrawalService struct {
	base
	ledger *ledgerEngine
}

func (s *withdrawalService) RequestWithdrawal(ctx context.Context, actor Actor, bankAccountID uuid.UUID, amount int64) (*entity.WithdrawalRequest, error) {
	if amount <= 0 {
		return nil, apperror.Validation("withdrawal amount must be positive")
	}
	if bankAccountID == uuid.Nil {
		return nil, apperror.Validation("bank account is required")
	}

	var request *entity.WithdrawalRequest
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		// the user lock serialises concurrent requests against the same balance
		user, err := tx.User.FindByIDForUpdate(ctx, actor.UserID)
		if err != nil {
			return err
		}
		if user == nil {
			return apperror.NotFound("user %s not found", actor.UserID)
		}

		reserved, err := tx.Withdrawal.SumReserved(ctx, user.ID)
		if err != nil {
			return err
		}
		if available := user.Balance - reserved; amount > available {
			return apperror.InsufficientFunds("requested %d but only %d is available", amount, max(available, 0))
		}

		now := s.clock()
		request = &entity.WithdrawalRequest{
			Base:          entity.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
			UserID:        user.ID,
			BankAccountID: bankAccountID,
			Amount:        amount,
			Status:        entity.WithdrawalStatusPending,
		}
		return tx.Withdrawal.Create(ctx, request)
	})
	if err != nil {
		s.log.Warn("Failed to request withdrawal", zap.String("user_id", actor.UserID.String()), zap.Error(err))
		return nil, fmt.Errorf("request withdrawal: %w", err)
	}

	s.log.Info("Withdrawal requested",
		zap.String("withdrawal_id", request.ID.String()),
		zap.Int64("amount", request.Amount),
	)
	return request, nil
}

func (s *withdrawalService) ListMyWithdrawals(ctx context.Context, actor Actor, limit, offset int) ([]*entity.WithdrawalRequest, int64, error) {
	return s.list(ctx, repository.WithdrawalFilter{UserID: &actor.UserID}, limit, offset)
}

func (s *withdrawalService) ListWithdrawals(ctx context.Context, actor Actor, status *entity.WithdrawalStatus, limit, offset int) ([]*entity.WithdrawalRequest, int64, error) {
	if err := s.auth.RequireStaff(actor); err != nil {
		return nil, 0, err
	}
	return s.list(ctx, repository.WithdrawalFilter{Status: status}, limit, offset)
}

func (s *withdrawalService) list(ctx context.Context, filter repository.WithdrawalFilter, limit, offset int) ([]*entity.WithdrawalRequest, int64, error) {
	items, err := s.repo.Withdrawal.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list withdrawals: %w", err)
	}
	total, err := s.repo.Withdrawal.Count(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count withdrawals: %w", err)
	}
	return items, total, nil
}

func (s *withdrawalService) ApproveWithdrawal(ctx context.Context, actor Actor, id uuid.UUID, note string) (*entity.WithdrawalRequest, error) {
	return s.review(ctx, actor, id, entity.WithdrawalStatusApproved, note)
}

func (s *withdrawalService) RejectWithdrawal(ctx context.Context, actor Actor, id uuid.UUID, note string) (*entity.WithdrawalRequest, error) {
	return s.review(ctx, actor, id, entity.WithdrawalStatusRejected, note)
}

func (s *withdrawalService) review(ctx context.Context, actor Actor, id uuid.UUID, next entity.WithdrawalStatus, note string) (*entity.WithdrawalRequest, error) {
	if err := s.auth.RequireStaff(actor); err != nil {
		return nil, err
	}

	var request *entity.WithdrawalRequest
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		var err error
		request, err = s.lock(ctx, tx, id)
		if err != nil {
			return err
		}

		now := s.clock()
		from := request.Status
		if err := request.Transition(next, now); err != nil {
			return err
		}
		if err := tx.Withdrawal.UpdateStatus(ctx, id, from, next, now); err != nil {
			return err
		}

		if note = strings.TrimSpace(note); note != "" {
			request.AdminNote = &note
		}
		reviewer := actor.UserID
		request.ProcessedBy = &reviewer
		return tx.Withdrawal.Update(ctx, request)
	})
	if err != nil {
		return nil, fmt.Errorf("%s withdrawal %s: %w", next, id, err)
	}

	s.log.Info("Withdrawal reviewed", zap.String("withdrawal_id", id.String()), zap.String("status", string(next)))
	return request, nil
}

func (s *withdrawalService) ProcessWithdrawal(ctx context.Context, actor Actor, id uuid.UUID, proofURL string) (*entity.WithdrawalRequest, *entity.Transaction, error) {
	if err := s.auth.RequireStaff(actor); err != nil {
		return nil, nil, err
	}
	proofURL = strings.TrimSpace(proofURL)
	if proofURL == "" {
		return nil, nil, apperror.Validation("transfer proof is required")
	}

	var (
		request *entity.WithdrawalRequest
		record  *entity.Transaction
	)
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		var err error
		request, err = s.lock(ctx, tx, id)
		if err != nil {
			return err
		}

		now := s.clock()
		from := request.Status
		if err := request.Transition(entity.WithdrawalStatusProcessed, now); err != nil {
			return err
		}

		record, err = s.ledger.ApplyTransaction(ctx, tx, TransactionInput{
			Type:          entity.TransactionWithdrawalPayout,
			FromUserID:    &request.UserID,
			BankAccountID: &request.BankAccountID,
			Amount:        request.Amount,
			Description:   fmt.Sprintf("Withdrawal %s", request.ID),
			ProofURL:      &proofURL,
		})
		if err != nil {
			return err
		}

		if err := tx.Withdrawal.UpdateStatus(ctx, id, from, request.Status, now); err != nil {
			return err
		}
		processor := actor.UserID
		request.TransactionID = &record.ID
		request.ProcessedBy = &processor
		request.ProcessedAt = &now
		return tx.Withdrawal.Update(ctx, request)
	})
	if err != nil {
		s.log.Warn("Failed to process withdrawal", zap.String("withdrawal_id", id.String()), zap.Error(err))
		return nil, nil, fmt.Errorf("process withdrawal %s: %w", id, err)
	}

	s.log.Info("Withdrawal processed",
		zap.String("withdrawal_id", request.ID.String()),
		zap.String("transaction_id", record.ID.String()),
	)
	s.events.publish(ctx, Event{
		Type:       EventWithdrawalProcessed,
		EntityID:   request.ID,
		Status:     string(request.Status),
		Amount:     request.Amount,
		OccurredAt: request.UpdatedAt,
	})
	return request, record, nil
}

func (s *withdrawalService) lock(ctx context.Context, tx *repository.Repository, id uuid.UUID) (*entity.WithdrawalRequest, error) {
	request, err := tx.Withdrawal.FindByIDForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, apperror.NotFound("withdrawal %s not found", id)
	}
	return request, nil
}
