package service

import (
	"context"
	"sync"
	"time"

	"bite/domain/ledger"
	"bite/infra/metrics"
	"bite/infra/sequence"
	entrywal "bite/infra/wal/entry"
	exitwal "bite/infra/wal/exit"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
)

// ErrUnavailable is returned for writes after the entry WAL or the outbox
// failed. The in-memory ledger may be ahead of what is durable at that
// point, so the process must restart and recover.
var ErrUnavailable = errors.New("ledger unavailable: restart to recover")

// Options are admission rules. They are checked when a command is accepted
// and recorded with it, so changing them between restarts never changes
// what replay rebuilds.
type Options struct {
	// RequireKnownService rejects requests naming an unregistered service.
	RequireKnownService bool
}

// Outbox receives the events of every applied command.
type Outbox interface {
	PutNew(seq uint64, msgs []exitwal.Message) error
	TruncateAckedUpTo(seq uint64) error
}

/*
MarketService is the ONLY write entry point into the ledger.

Per command, under one exclusive lock:
- allocate a sequence number
- append the command to the entry WAL
- apply it to the ledger
- put the resulting events into the outbox
Nothing in that section talks to the network.
*/
type MarketService struct {
	mu     sync.RWMutex
	ledger *ledger.Ledger
	seqGen *sequence.Sequencer

	entryWAL *entrywal.WAL
	outbox   Outbox
	opts     Options

	broken error
	log    *logrus.Entry
}

// NewMarketService wires a recovered ledger to its logs. seqGen must
// already point at the last applied sequence.
func NewMarketService(
	l *ledger.Ledger,
	seqGen *sequence.Sequencer,
	entryWAL *entrywal.WAL,
	outbox Outbox,
	opts Options,
	log *logrus.Logger,
) *MarketService {
	metrics.SetEscrow(uint64(l.Escrowed()))
	return &MarketService{
		ledger:   l,
		seqGen:   seqGen,
		entryWAL: entryWAL,
		outbox:   outbox,
		opts:     opts,
		log:      log.WithField("component", "market"),
	}
}

//
// ──────────────────────────────────────────────────────────
// Commands
// ──────────────────────────────────────────────────────────
//

func (s *MarketService) RegisterService(ctx context.Context, caller ledger.Address, spec ledger.ServiceSpec) (Receipt, error) {
	return s.execute(ctx, Command{
		Op:          OpRegisterService,
		Caller:      caller,
		Name:        spec.Name,
		Description: spec.Description,
		Amount:      spec.PricePerUnit,
		Uptime:      spec.Uptime,
		Rating:      spec.Rating,
	})
}

// CreateRequest escrows value from the caller's balance.
func (s *MarketService) CreateRequest(ctx context.Context, caller ledger.Address, serviceID ledger.ServiceID, objective string, value ledger.Amount) (Receipt, error) {
	return s.execute(ctx, Command{
		Op:        OpCreateRequest,
		Caller:    caller,
		ServiceID: serviceID,
		Objective: objective,
		Amount:    value,

		KnownService: s.opts.RequireKnownService,
	})
}

func (s *MarketService) SubmitOffer(ctx context.Context, caller ledger.Address, requestID ledger.RequestID, commitment ledger.Hash) (Receipt, error) {
	return s.execute(ctx, Command{
		Op:         OpSubmitOffer,
		Caller:     caller,
		RequestID:  requestID,
		Commitment: commitment,
	})
}

func (s *MarketService) RevealOffer(ctx context.Context, caller ledger.Address, requestID ledger.RequestID, price ledger.Amount, nonce uint64) (Receipt, error) {
	return s.execute(ctx, Command{
		Op:        OpRevealOffer,
		Caller:    caller,
		RequestID: requestID,
		Amount:    price,
		Nonce:     nonce,
	})
}

func (s *MarketService) SettlePayment(ctx context.Context, caller ledger.Address, requestID ledger.RequestID, provider ledger.Address) (Receipt, error) {
	provider, err := ledger.ParseAddress(string(provider))
	if err != nil {
		return Receipt{}, errors.Wrap(err, "provider")
	}
	return s.execute(ctx, Command{
		Op:        OpSettlePayment,
		Caller:    caller,
		RequestID: requestID,
		Provider:  provider,
	})
}

func (s *MarketService) RateService(ctx context.Context, caller ledger.Address, serviceID ledger.ServiceID, rating uint64) (Receipt, error) {
	return s.execute(ctx, Command{
		Op:        OpRateService,
		Caller:    caller,
		ServiceID: serviceID,
		Rating:    rating,
	})
}

func (s *MarketService) Deposit(ctx context.Context, caller ledger.Address, amount ledger.Amount) (Receipt, error) {
	return s.execute(ctx, Command{Op: OpDeposit, Caller: caller, Amount: amount})
}

func (s *MarketService) Withdraw(ctx context.Context, caller ledger.Address, amount ledger.Amount) (Receipt, error) {
	return s.execute(ctx, Command{Op: OpWithdraw, Caller: caller, Amount: amount})
}

func (s *MarketService) execute(ctx context.Context, cmd Command) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	caller, err := ledger.ParseAddress(string(cmd.Caller))
	if err != nil {
		return Receipt{}, errors.Wrap(err, "caller")
	}
	cmd.Caller = caller
	name := opName(cmd.Op)

	s.mu.Lock()
	defer s.mu.Unlock()
	start := time.Now()

	if s.broken != nil {
		return Receipt{}, ErrUnavailable
	}

	// 1️⃣ Sequence
	seq := s.seqGen.Next()

	// 2️⃣ Write WAL intent
	rec := entrywal.NewRecord(cmd.Op, seq, encodeCommand(cmd))
	if err := s.entryWAL.Append(rec); err != nil {
		s.broken = err
		s.log.WithError(err).WithField("seq", seq).Error("entry wal append failed, refusing further writes")
		metrics.RecordOperation(name, "wal_error", time.Since(start))
		return Receipt{}, errors.Mark(errors.Wrap(err, "entry wal"), ErrUnavailable)
	}

	// 3️⃣ Execute deterministic domain logic
	r, err := apply(s.ledger, cmd)
	if err != nil {
		metrics.RecordOperation(name, ledger.KindOf(err).String(), time.Since(start))
		s.log.WithFields(logrus.Fields{
			"seq":    seq,
			"op":     name,
			"caller": cmd.Caller,
		}).WithError(err).Debug("rejected")
		return Receipt{}, err
	}
	r.Seq = seq

	// 4️⃣ Outbox. The command itself is durable, so it still succeeds, but
	// its events exist only in the WAL now. Writes stop until a restart
	// replays them, and snapshots stop so the WAL is not truncated first.
	msgs, err := outboxMessages(seq, rec.Time, r.Events)
	if err == nil {
		err = s.outbox.PutNew(seq, msgs)
	}
	if err != nil {
		s.broken = errors.Wrap(err, "outbox")
		s.log.WithError(err).WithField("seq", seq).Error("outbox put failed, refusing further writes")
	}

	metrics.RecordOperation(name, "ok", time.Since(start))
	metrics.SetEscrow(uint64(s.ledger.Escrowed()))
	s.log.WithFields(logrus.Fields{
		"seq":    seq,
		"op":     name,
		"caller": cmd.Caller,
	}).Debug("applied")

	return r, nil
}

//
// ──────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────
//

func (s *MarketService) Service(id ledger.ServiceID) (ledger.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.Service(id)
}

func (s *MarketService) Services() []ledger.Service {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.Services()
}

func (s *MarketService) Request(id ledger.RequestID) (ledger.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.Request(id)
}

// Requests lists requests, all of them when status is nil.
func (s *MarketService) Requests(status *ledger.Status) []ledger.Request {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.Requests(status)
}

func (s *MarketService) Bidders(id ledger.RequestID) ([]ledger.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.Bidders(id)
}

func (s *MarketService) Offer(id ledger.RequestID, provider ledger.Address) (ledger.Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.Offer(id, provider)
}

func (s *MarketService) Balance(a ledger.Address) ledger.Amount {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.Balance(a)
}

func (s *MarketService) Escrowed() ledger.Amount {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.Escrowed()
}

// Export returns the ledger state together with the sequence it reflects.
func (s *MarketService) Export() (uint64, ledger.State) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seqGen.Current(), s.ledger.Export()
}
