package adjustment

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
	"stockcore/pkg/logger"
)

// NumberSource issues document numbers (ADJ-000001, ...).
type NumberSource interface {
	Next(ctx context.Context, documentType string) (string, error)
}

// LineInput is one requested correction line. Quantity is a positive
// magnitude; the direction comes from the document type.
type LineInput struct {
	ProductID id.ID          `json:"productId"`
	Quantity  types.Quantity `json:"quantity"`

	// UnitCost optionally overrides the position's average cost for inbound
	// valuation (e.g. found stock with a known cost). Zero means "use the
	// current average".
	UnitCost types.Money `json:"unitCost"`
}

// CreateRequest creates a draft adjustment.
type CreateRequest struct {
	StoreID id.ID       `json:"storeId"`
	Type    Type        `json:"type"`
	Reason  Reason      `json:"reason"`
	Date    time.Time   `json:"date"`
	Comment string      `json:"comment"`
	Lines   []LineInput `json:"lines"`
}

// UpdateRequest edits a draft adjustment. Version must match the stored
// document. Lines replace the existing set entirely.
type UpdateRequest struct {
	ID      id.ID       `json:"id"`
	Version int         `json:"version"`
	Reason  Reason      `json:"reason"`
	Date    time.Time   `json:"date"`
	Comment string      `json:"comment"`
	Lines   []LineInput `json:"lines"`
}

// Service implements the adjustment workflow. Stock is only touched on
// approval, through the ledger, inside one transaction.
type Service struct {
	repo    Repository
	ledger  *ledger.Service
	txm     tx.Manager
	numbers NumberSource
	policy  security.ApprovalPolicy
	trail   audit.Recorder
}

func NewService(
	repo Repository,
	ledgerSvc *ledger.Service,
	txm tx.Manager,
	numbers NumberSource,
	policy security.ApprovalPolicy,
	trail audit.Recorder,
) *Service {
	return &Service{
		repo:    repo,
		ledger:  ledgerSvc,
		txm:     txm,
		numbers: numbers,
		policy:  policy,
		trail:   trail,
	}
}

// Create builds a draft adjustment with server-computed snapshots.
func (s *Service) Create(ctx context.Context, req CreateRequest, actorID string) (*StockAdjustment, error) {
	if actorID == "" {
		return nil, apperror.NewValidation("actor is required")
	}

	adj := &StockAdjustment{
		Document: entity.NewDocument(req.StoreID),
		Type:     req.Type,
		Reason:   req.Reason,
		Status:   StatusDraft,
	}
	adj.Comment = req.Comment
	adj.CreatedBy = actorID
	adj.UpdatedBy = actorID
	if !req.Date.IsZero() {
		adj.Date = req.Date
	}

	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		number, err := s.numbers.Next(ctx, DocumentType)
		if err != nil {
			return err
		}
		adj.Number = number

		lines, err := s.buildLines(ctx, adj, req.Lines)
		if err != nil {
			return err
		}
		adj.Lines = lines

		if err := adj.Validate(ctx); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, adj); err != nil {
			return err
		}
		return s.trail.Record(ctx, audit.NewEntry(DocumentType, adj.ID, audit.ActionCreated, actorID, adj))
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "adjustment created",
		"adjustment_id", adj.ID,
		"number", adj.Number,
		"type", adj.Type,
		"lines", len(adj.Lines),
	)
	return adj, nil
}

// Update edits a draft. Snapshots are recomputed from the live ledger so the
// approver always sees current projections.
func (s *Service) Update(ctx context.Context, req UpdateRequest, actorID string) (*StockAdjustment, error) {
	if actorID == "" {
		return nil, apperror.NewValidation("actor is required")
	}

	var adj *StockAdjustment
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		adj, err = s.repo.GetByIDForUpdate(ctx, req.ID)
		if err != nil {
			return err
		}
		if adj.Status.Terminal() {
			return apperror.NewImmutableState(DocumentType, string(adj.Status))
		}
		if adj.Version != req.Version {
			return apperror.NewConcurrentModification(DocumentType, adj.ID)
		}

		adj.Reason = req.Reason
		adj.Comment = req.Comment
		if !req.Date.IsZero() {
			adj.Date = req.Date
		}
		adj.UpdatedBy = actorID

		lines, err := s.buildLines(ctx, adj, req.Lines)
		if err != nil {
			return err
		}
		adj.Lines = lines

		if err := adj.Validate(ctx); err != nil {
			return err
		}
		adj.Touch()
		if err := s.repo.Update(ctx, adj); err != nil {
			return err
		}
		return s.trail.Record(ctx, audit.NewEntry(DocumentType, adj.ID, audit.ActionUpdated, actorID, adj))
	})
	if err != nil {
		return nil, err
	}
	return adj, nil
}

// Delete removes a draft. Terminal documents are immutable.
func (s *Service) Delete(ctx context.Context, adjustmentID id.ID, actorID string) error {
	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		adj, err := s.repo.GetByIDForUpdate(ctx, adjustmentID)
		if err != nil {
			return err
		}
		if adj.Status.Terminal() {
			return apperror.NewImmutableState(DocumentType, string(adj.Status))
		}
		if err := s.repo.Delete(ctx, adjustmentID); err != nil {
			return err
		}
		return s.trail.Record(ctx, audit.NewEntry(DocumentType, adjustmentID, audit.ActionDeleted, actorID, adj))
	})
}

// Approve transitions draft -> approved and posts one ledger movement per
// line, all inside a single transaction. If any line would drive stock
// negative, nothing is posted and the adjustment stays draft.
func (s *Service) Approve(ctx context.Context, adjustmentID id.ID, actorID string) (*StockAdjustment, error) {
	if actorID == "" {
		return nil, apperror.NewValidation("actor is required")
	}

	var adj *StockAdjustment
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		adj, err = s.repo.GetByIDForUpdate(ctx, adjustmentID)
		if err != nil {
			return err
		}
		if adj.Status != StatusDraft {
			return apperror.NewInvalidState(DocumentType, string(adj.Status), string(StatusDraft))
		}
		if err := s.authorize(ctx, adj, actorID); err != nil {
			return err
		}

		now := time.Now().UTC()
		movements := make([]ledger.Movement, 0, len(adj.Lines))
		for _, line := range adj.Lines {
			kind := ledger.KindAdjustmentIncrease
			if adj.Type == TypeDecrease {
				kind = ledger.KindAdjustmentDecrease
			}
			movements = append(movements, ledger.Movement{
				ProductID:     line.ProductID,
				StoreID:       adj.StoreID,
				Delta:         line.AdjustedQuantity,
				Kind:          kind,
				ReferenceType: DocumentType,
				ReferenceID:   adj.ID,
				UnitCost:      line.UnitCostSnapshot,
				OccurredAt:    now,
			})
		}
		if _, err := s.ledger.ApplyAll(ctx, movements); err != nil {
			return err
		}

		adj.Status = StatusApproved
		adj.ApprovedBy = actorID
		adj.ApprovedAt = &now
		adj.UpdatedBy = actorID
		adj.Touch()
		if err := s.repo.Update(ctx, adj); err != nil {
			return err
		}
		return s.trail.Record(ctx, audit.NewEntry(DocumentType, adj.ID, audit.ActionApproved, actorID, adj))
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "adjustment approved",
		"adjustment_id", adj.ID,
		"number", adj.Number,
		"approved_by", actorID,
	)
	return adj, nil
}

// Reject transitions draft -> rejected with no ledger effect. Terminal.
func (s *Service) Reject(ctx context.Context, adjustmentID id.ID, actorID string) (*StockAdjustment, error) {
	if actorID == "" {
		return nil, apperror.NewValidation("actor is required")
	}

	var adj *StockAdjustment
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		adj, err = s.repo.GetByIDForUpdate(ctx, adjustmentID)
		if err != nil {
			return err
		}
		if adj.Status != StatusDraft {
			return apperror.NewInvalidState(DocumentType, string(adj.Status), string(StatusDraft))
		}
		if err := s.authorize(ctx, adj, actorID); err != nil {
			return err
		}

		now := time.Now().UTC()
		adj.Status = StatusRejected
		adj.ApprovedBy = actorID
		adj.ApprovedAt = &now
		adj.UpdatedBy = actorID
		adj.Touch()
		if err := s.repo.Update(ctx, adj); err != nil {
			return err
		}
		return s.trail.Record(ctx, audit.NewEntry(DocumentType, adj.ID, audit.ActionRejected, actorID, adj))
	})
	if err != nil {
		return nil, err
	}
	return adj, nil
}

// GetByID returns one adjustment with lines.
func (s *Service) GetByID(ctx context.Context, adjustmentID id.ID) (*StockAdjustment, error) {
	return s.repo.GetByID(ctx, adjustmentID)
}

// List returns adjustments matching the filter.
func (s *Service) List(ctx context.Context, filter Filter) ([]*StockAdjustment, error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) authorize(ctx context.Context, adj *StockAdjustment, actorID string) error {
	var perms []string
	if user := appctx.GetUser(ctx); user != nil {
		perms = user.Permissions
	}
	return s.policy.Authorize(ctx, security.ApprovalInput{
		ActorID:      actorID,
		CreatedBy:    adj.CreatedBy,
		DocumentType: DocumentType,
		Permissions:  perms,
	})
}

// buildLines normalizes input lines and snapshots the live position for each.
func (s *Service) buildLines(ctx context.Context, adj *StockAdjustment, inputs []LineInput) ([]*AdjustmentLine, error) {
	if len(inputs) == 0 {
		return nil, apperror.NewValidation("adjustment requires at least one line")
	}

	lines := make([]*AdjustmentLine, 0, len(inputs))
	for i, in := range inputs {
		if !in.Quantity.IsPositive() {
			return nil, apperror.NewValidation("line quantity must be positive").
				WithDetail("line", i)
		}
		if in.UnitCost.IsNegative() {
			return nil, apperror.NewValidation("line unit cost must not be negative").
				WithDetail("line", i)
		}

		pos, err := s.ledger.GetPosition(ctx, in.ProductID, adj.StoreID)
		if err != nil {
			return nil, err
		}

		delta := in.Quantity
		if adj.Type == TypeDecrease {
			delta = delta.Neg()
		}
		unitCost := pos.AverageCost
		if in.UnitCost.IsPositive() {
			unitCost = in.UnitCost
		}

		lines = append(lines, &AdjustmentLine{
			ID:                      id.New(),
			AdjustmentID:            adj.ID,
			ProductID:               in.ProductID,
			AdjustedQuantity:        delta,
			CurrentQuantitySnapshot: pos.QuantityOnHand,
			UnitCostSnapshot:        unitCost,
		})
	}
	return lines, nil
}
