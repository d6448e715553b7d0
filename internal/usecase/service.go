package usecase

import (
	"time"

	"car-rental/internal/data/repository"
	"car-rental/pkg/crypto"
	"car-rental/pkg/payos"
	"car-rental/pkg/rabbitmq"
	"car-rental/pkg/utils"

	"go.uber.org/zap"
)

type Service struct {
	Availability AvailabilityService
	Booking      BookingService
	Extension    ExtensionService
	Payment      PaymentService
	Ledger       LedgerService
	Withdrawal   WithdrawalService
	Report       ReportService
}

// Dependencies are the external collaborators of the core.
type Dependencies struct {
	Gateway   payos.Gateway
	Publisher rabbitmq.Publisher
	Cipher    crypto.Cipher
	// Now defaults to time.Now.
	Now func() time.Time
}

// base carries what every service needs.
type base struct {
	repo   *repository.Repository
	policy utils.PolicyConfig
	log    *zap.Logger
	now    func() time.Time
	auth   Authorizer
	events *eventPublisher
}

func (b *base) clock() time.Time {
	return b.now().UTC()
}

func NewService(repo *repository.Repository, config *utils.Config, log *zap.Logger, deps Dependencies) *Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = rabbitmq.NewFallback(log)
	}
	cipher := deps.Cipher
	if cipher == nil {
		cipher = crypto.Plain{}
	}

	newBase := func(name string) base {
		l := log.With(zap.String("service", name))
		return base{
			repo:   repo,
			policy: config.Policy,
			log:    l,
			now:    now,
			auth:   NewAuthorizer(),
			events: &eventPublisher{publisher: publisher, log: l},
		}
	}

	ledger := &ledgerEngine{log: log.With(zap.String("service", "ledger_engine")), now: now}
	links := &linkIssuer{
		repo:    repo,
		gateway: deps.Gateway,
		log:     log.With(zap.String("service", "payment_link")),
		now:     now,
	}

	return &Service{
		Availability: &availabilityService{base: newBase("availability")},
		Booking:      &bookingService{base: newBase("booking"), ledger: ledger, links: links, cipher: cipher},
		Extension:    &extensionService{base: newBase("extension"), links: links},
		Payment:      &paymentService{base: newBase("payment"), ledger: ledger, gateway: deps.Gateway},
		Ledger:       &ledgerService{base: newBase("ledger")},
		Withdrawal:   &withdrawalService{base: newBase("withdrawal"), ledger: ledger},
		Report:       &reportService{base: newBase("report"), ledger: ledger},
	}
}
