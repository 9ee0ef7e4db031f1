package salesreturn

import (
	"context"
	"time"

	"stockcore/internal/core/apperror"
	appctx "stockcore/internal/core/context"
	"stockcore/internal/core/entity"
	"stockcore/internal/core/id"
	"stockcore/internal/core/security"
	"stockcore/internal/core/tx"
	"stockcore/internal/core/types"
	"stockcore/internal/domain/audit"
	"stockcore/internal/domain/ledger"
	"stockcore/internal/domain/sales"
	"stockcore/pkg/logger"
)

// NumberSource issues document numbers (RET-000001, ...).
type NumberSource interface {
	Next(ctx context.Context, documentType string) (string, error)
}

// LineInput is one requested return line.
type LineInput struct {
	SalesLineID id.ID          `json:"salesLineId"`
	Quantity    types.Quantity `json:"quantity"`
	Condition   Condition      `json:"condition"`
}

// CreateRequest creates a pending return against one committed sale.
type CreateRequest struct {
	SalesTransactionID id.ID       `json:"salesTransactionId"`
	Reason             Reason      `json:"reason"`
	Comment            string      `json:"comment"`
	Lines              []LineInput `json:"lines"`
}

// UpdateRequest edits a pending return. Version must match; lines replace the
// existing set and are re-validated against current eligibility.
type UpdateRequest struct {
	ID      id.ID       `json:"id"`
	Version int         `json:"version"`
	Reason  Reason      `json:"reason"`
	Comment string      `json:"comment"`
	Lines   []LineInput `json:"lines"`
}

// Service implements the return workflow. Creation reserves eligibility under
// the sales transaction row lock; approval restocks good items through the
// ledger; rejection releases the reservation.
type Service struct {
	repo    Repository
	sales   sales.Repository
	tracker *Tracker
	ledger  *ledger.Service
	txm     tx.Manager
	numbers NumberSource
	policy  security.ApprovalPolicy
	trail   audit.Recorder
}

func NewService(
	repo Repository,
	salesRepo sales.Repository,
	tracker *Tracker,
	ledgerSvc *ledger.Service,
	txm tx.Manager,
	numbers NumberSource,
	policy security.ApprovalPolicy,
	trail audit.Recorder,
) *Service {
	return &Service{
		repo:    repo,
		sales:   salesRepo,
		tracker: tracker,
		ledger:  ledgerSvc,
		txm:     txm,
		numbers: numbers,
		policy:  policy,
		trail:   trail,
	}
}

// Create validates eligibility and inserts a pending return. The whole
// check-then-insert runs under the sales transaction row lock, so two
// concurrent requests against the same sale serialize: the second sees either
// the first's pending row (DUPLICATE_PENDING_RETURN) or its reservation
// (OVER_RETURN).
func (s *Service) Create(ctx context.Context, req CreateRequest, actorID string) (*SalesReturn, error) {
	if actorID == "" {
		return nil, apperror.NewValidation("actor is required")
	}
	if len(req.Lines) == 0 {
		return nil, apperror.NewValidation("return requires at least one line")
	}

	var ret *SalesReturn
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		txn, err := s.sales.GetTransactionForUpdate(ctx, req.SalesTransactionID)
		if err != nil {
			return err
		}

		open, err := s.repo.FindOpenReturn(ctx, txn.ID)
		if err != nil {
			return err
		}
		if open != nil {
			return apperror.NewDuplicatePendingReturn(txn.ID.String(), open.ID.String())
		}

		ret = &SalesReturn{
			Document:           entity.NewDocument(txn.StoreID),
			SalesTransactionID: txn.ID,
			Status:             StatusPending,
			Reason:             req.Reason,
			RefundTotal:        types.ZeroMoney(),
		}
		ret.Comment = req.Comment
		ret.CreatedBy = actorID
		ret.UpdatedBy = actorID

		lines, err := s.buildLines(ctx, ret, txn, req.Lines, id.Nil())
		if err != nil {
			return err
		}
		ret.Lines = lines

		if err := ret.Validate(ctx); err != nil {
			return err
		}

		number, err := s.numbers.Next(ctx, DocumentType)
		if err != nil {
			return err
		}
		ret.Number = number

		if err := s.repo.Create(ctx, ret); err != nil {
			return err
		}
		return s.trail.Record(ctx, audit.NewEntry(DocumentType, ret.ID, audit.ActionCreated, actorID, ret))
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "return created",
		"return_id", ret.ID,
		"number", ret.Number,
		"sales_transaction_id", ret.SalesTransactionID,
		"lines", len(ret.Lines),
	)
	return ret, nil
}

// Update edits a pending return. Eligibility may have shifted since creation,
// so lines are re-validated excluding this return's own reservation. Lock
// order matches Create: sales transaction first, then the return.
func (s *Service) Update(ctx context.Context, req UpdateRequest, actorID string) (*SalesReturn, error) {
	if actorID == "" {
		return nil, apperror.NewValidation("actor is required")
	}

	var ret *SalesReturn
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetByID(ctx, req.ID)
		if err != nil {
			return err
		}

		txn, err := s.sales.GetTransactionForUpdate(ctx, current.SalesTransactionID)
		if err != nil {
			return err
		}
		ret, err = s.repo.GetByIDForUpdate(ctx, req.ID)
		if err != nil {
			return err
		}
		if ret.Status.Terminal() {
			return apperror.NewImmutableState(DocumentType, string(ret.Status))
		}
		if ret.Version != req.Version {
			return apperror.NewConcurrentModification(DocumentType, ret.ID)
		}

		ret.Reason = req.Reason
		ret.Comment = req.Comment
		ret.UpdatedBy = actorID

		lines, err := s.buildLines(ctx, ret, txn, req.Lines, ret.ID)
		if err != nil {
			return err
		}
		ret.Lines = lines

		if err := ret.Validate(ctx); err != nil {
			return err
		}
		ret.Touch()
		if err := s.repo.Update(ctx, ret); err != nil {
			return err
		}
		return s.trail.Record(ctx, audit.NewEntry(DocumentType, ret.ID, audit.ActionUpdated, actorID, ret))
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// Approve transitions pending -> approved, restocks good lines and finalizes
// the refund total. Damaged and defective lines are refunded but never
// re-enter stock. All-or-nothing across lines.
func (s *Service) Approve(ctx context.Context, returnID id.ID, actorID string) (*SalesReturn, error) {
	if actorID == "" {
		return nil, apperror.NewValidation("actor is required")
	}

	var ret *SalesReturn
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		ret, err = s.repo.GetByIDForUpdate(ctx, returnID)
		if err != nil {
			return err
		}
		if ret.Status != StatusPending {
			return apperror.NewInvalidState(DocumentType, string(ret.Status), string(StatusPending))
		}
		if err := s.authorize(ctx, ret, actorID); err != nil {
			return err
		}

		now := time.Now().UTC()
		var movements []ledger.Movement
		for _, line := range ret.Lines {
			if !line.Condition.Restockable() {
				continue
			}
			// Restocked units re-enter at the current average cost, so the
			// restock itself never shifts the average.
			pos, err := s.ledger.GetPosition(ctx, line.ProductID, ret.StoreID)
			if err != nil {
				return err
			}
			movements = append(movements, ledger.Movement{
				ProductID:     line.ProductID,
				StoreID:       ret.StoreID,
				Delta:         line.Quantity,
				Kind:          ledger.KindReturnRestock,
				ReferenceType: DocumentType,
				ReferenceID:   ret.ID,
				UnitCost:      pos.AverageCost,
				OccurredAt:    now,
			})
		}
		if len(movements) > 0 {
			if _, err := s.ledger.ApplyAll(ctx, movements); err != nil {
				return err
			}
		}

		ret.Status = StatusApproved
		ret.RefundTotal = ret.ComputedRefundTotal()
		ret.ProcessedBy = actorID
		ret.ProcessedAt = &now
		ret.UpdatedBy = actorID
		ret.Touch()
		if err := s.repo.Update(ctx, ret); err != nil {
			return err
		}
		return s.trail.Record(ctx, audit.NewEntry(DocumentType, ret.ID, audit.ActionApproved, actorID, ret))
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "return approved",
		"return_id", ret.ID,
		"number", ret.Number,
		"refund_total", ret.RefundTotal,
		"approved_by", actorID,
	)
	return ret, nil
}

// Reject transitions pending -> rejected and releases the reservation.
// Subsequent eligibility queries exclude this return's lines. No ledger
// effect. Terminal.
func (s *Service) Reject(ctx context.Context, returnID id.ID, actorID string) (*SalesReturn, error) {
	if actorID == "" {
		return nil, apperror.NewValidation("actor is required")
	}

	var ret *SalesReturn
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		ret, err = s.repo.GetByIDForUpdate(ctx, returnID)
		if err != nil {
			return err
		}
		if ret.Status != StatusPending {
			return apperror.NewInvalidState(DocumentType, string(ret.Status), string(StatusPending))
		}
		if err := s.authorize(ctx, ret, actorID); err != nil {
			return err
		}

		now := time.Now().UTC()
		ret.Status = StatusRejected
		ret.ProcessedBy = actorID
		ret.ProcessedAt = &now
		ret.UpdatedBy = actorID
		ret.Touch()
		if err := s.repo.Update(ctx, ret); err != nil {
			return err
		}
		return s.trail.Record(ctx, audit.NewEntry(DocumentType, ret.ID, audit.ActionRejected, actorID, ret))
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// GetByID returns one return with lines.
func (s *Service) GetByID(ctx context.Context, returnID id.ID) (*SalesReturn, error) {
	return s.repo.GetByID(ctx, returnID)
}

// List returns returns matching the filter.
func (s *Service) List(ctx context.Context, filter Filter) ([]*SalesReturn, error) {
	return s.repo.List(ctx, filter)
}

// Eligibility exposes the tracker for read-only callers (UI hints, facade).
func (s *Service) Eligibility() *Tracker {
	return s.tracker
}

func (s *Service) authorize(ctx context.Context, ret *SalesReturn, actorID string) error {
	var perms []string
	if user := appctx.GetUser(ctx); user != nil {
		perms = user.Permissions
	}
	return s.policy.Authorize(ctx, security.ApprovalInput{
		ActorID:      actorID,
		CreatedBy:    ret.CreatedBy,
		DocumentType: DocumentType,
		Permissions:  perms,
	})
}

// buildLines validates requested lines against current eligibility and
// computes refunds. Caller must hold the sales transaction row lock.
func (s *Service) buildLines(ctx context.Context, ret *SalesReturn, txn *sales.SalesTransaction, inputs []LineInput, excludeReturnID id.ID) ([]*ReturnLine, error) {
	eligible, err := s.tracker.EligibleQuantities(ctx, txn, excludeReturnID)
	if err != nil {
		return nil, err
	}

	// NO_ELIGIBLE_ITEMS beats OVER_RETURN: when every targeted line is
	// exhausted the request is hopeless, not just oversized.
	allExhausted := true
	for _, in := range inputs {
		if eligible[in.SalesLineID].IsPositive() {
			allExhausted = false
			break
		}
	}
	if allExhausted {
		return nil, apperror.NewNoEligibleItems(txn.ID.String())
	}

	requested := make(map[id.ID]types.Quantity, len(inputs))
	lines := make([]*ReturnLine, 0, len(inputs))
	for i, in := range inputs {
		soldLine := txn.Line(in.SalesLineID)
		if soldLine == nil {
			return nil, apperror.NewValidation("sales line does not belong to the transaction").
				WithDetail("line", i).
				WithDetail("sales_line_id", in.SalesLineID)
		}
		if !in.Quantity.IsPositive() {
			return nil, apperror.NewValidation("line quantity must be positive").
				WithDetail("line", i)
		}
		if !in.Condition.Valid() {
			return nil, apperror.NewValidation("unknown item condition: " + string(in.Condition)).
				WithDetail("line", i)
		}

		requested[in.SalesLineID] += in.Quantity
		if requested[in.SalesLineID] > eligible[in.SalesLineID] {
			return nil, apperror.NewOverReturn(
				in.SalesLineID.String(),
				requested[in.SalesLineID].Float64(),
				eligible[in.SalesLineID].Float64(),
			)
		}

		lines = append(lines, &ReturnLine{
			ID:           id.New(),
			ReturnID:     ret.ID,
			SalesLineID:  soldLine.ID,
			ProductID:    soldLine.ProductID,
			Quantity:     in.Quantity,
			Condition:    in.Condition,
			UnitPriceNet: soldLine.UnitPriceNet,
			RefundAmount: in.Quantity.Decimal().Mul(soldLine.UnitPriceNet).Round(4),
		})
	}
	return lines, nil
}
