package ledger

import (
	"context"
	"sort"
	"time"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/core/tx"
	"stockcore/internal/core/types"
	"stockcore/pkg/logger"
)

// Movement is a request to change stock. Workflows build these from approved
// document lines; the facade builds one per committed sale line.
type Movement struct {
	ProductID     id.ID
	StoreID       id.ID
	Delta         types.Quantity
	Kind          MovementKind
	ReferenceType string
	ReferenceID   id.ID

	// UnitCost is required for inbound deltas; ignored for outbound ones.
	UnitCost types.Money

	OccurredAt time.Time
}

// Validate checks the movement request before any lock is taken.
func (m Movement) Validate() error {
	if id.IsNil(m.ProductID) {
		return apperror.NewValidation("movement product is required")
	}
	if id.IsNil(m.StoreID) {
		return apperror.NewValidation("movement store is required")
	}
	if m.Delta.IsZero() {
		return apperror.NewValidation("movement delta must be non-zero")
	}
	if !m.Kind.Valid() {
		return apperror.NewValidation("unknown movement kind: " + string(m.Kind))
	}
	if m.ReferenceType == "" || id.IsNil(m.ReferenceID) {
		return apperror.NewValidation("movement reference is required")
	}
	if m.Delta.IsPositive() && m.UnitCost.IsNegative() {
		return apperror.NewValidation("unit cost must not be negative")
	}
	return nil
}

// Service applies movements to the ledger. It is the only write path for
// stock; adjustment and return workflows call it inside their approval
// transactions.
type Service struct {
	repo Repository
	txm  tx.Manager
}

func NewService(repo Repository, txm tx.Manager) *Service {
	return &Service{repo: repo, txm: txm}
}

// GetPosition returns the current position, zero-valued if never moved.
func (s *Service) GetPosition(ctx context.Context, productID, storeID id.ID) (*StockPosition, error) {
	if id.IsNil(productID) || id.IsNil(storeID) {
		return nil, apperror.NewValidation("product and store are required")
	}
	return s.repo.GetPosition(ctx, productID, storeID)
}

// ListPositions returns current positions matching the filter.
func (s *Service) ListPositions(ctx context.Context, filter PositionFilter) ([]*StockPosition, error) {
	return s.repo.ListPositions(ctx, filter)
}

// GetMovements returns movement history, newest first.
func (s *Service) GetMovements(ctx context.Context, filter MovementFilter) ([]*StockMovement, error) {
	return s.repo.GetMovements(ctx, filter)
}

// GetMovementsByReference returns the movements a document produced.
func (s *Service) GetMovementsByReference(ctx context.Context, referenceType string, referenceID id.ID) ([]*StockMovement, error) {
	return s.repo.GetMovementsByReference(ctx, referenceType, referenceID)
}

// SetMinimumThreshold updates the low-stock threshold for one position.
func (s *Service) SetMinimumThreshold(ctx context.Context, productID, storeID id.ID, threshold types.Quantity) error {
	if threshold.IsNegative() {
		return apperror.NewValidation("threshold must not be negative")
	}
	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.SetMinimumThreshold(ctx, productID, storeID, threshold)
	})
}

// Apply applies a single movement. See ApplyAll.
func (s *Service) Apply(ctx context.Context, req Movement) (*StockMovement, error) {
	recorded, err := s.ApplyAll(ctx, []Movement{req})
	if err != nil {
		return nil, err
	}
	return recorded[0], nil
}

// ApplyAll applies a batch of movements atomically: either every movement
// lands and every touched position is updated, or nothing changes. A movement
// that would drive quantity-on-hand negative fails the whole batch with
// INSUFFICIENT_STOCK.
//
// Runs in a transaction; when the caller already opened one (workflow
// approval), that transaction is reused and the caller's commit/rollback
// decides the outcome.
func (s *Service) ApplyAll(ctx context.Context, reqs []Movement) ([]*StockMovement, error) {
	if len(reqs) == 0 {
		return nil, apperror.NewValidation("no movements to apply")
	}
	for _, req := range reqs {
		if err := req.Validate(); err != nil {
			return nil, err
		}
	}

	var recorded []*StockMovement
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		recorded, err = s.applyLocked(ctx, reqs)
		return err
	})
	if err != nil {
		return nil, err
	}
	return recorded, nil
}

// positionKey identifies one (product, store) position for lock grouping.
type positionKey struct {
	productID id.ID
	storeID   id.ID
}

func (s *Service) applyLocked(ctx context.Context, reqs []Movement) ([]*StockMovement, error) {
	// Group by position and fix the lock order. Two concurrent approvals that
	// touch overlapping positions must acquire the row locks in the same
	// order, otherwise Postgres can deadlock them.
	grouped := make(map[positionKey][]Movement, len(reqs))
	keys := make([]positionKey, 0, len(reqs))
	for _, req := range reqs {
		key := positionKey{productID: req.ProductID, storeID: req.StoreID}
		if _, seen := grouped[key]; !seen {
			keys = append(keys, key)
		}
		grouped[key] = append(grouped[key], req)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].productID != keys[j].productID {
			return keys[i].productID.String() < keys[j].productID.String()
		}
		return keys[i].storeID.String() < keys[j].storeID.String()
	})

	now := time.Now().UTC()
	recorded := make([]*StockMovement, 0, len(reqs))

	for _, key := range keys {
		pos, err := s.repo.GetPositionForUpdate(ctx, key.productID, key.storeID)
		if err != nil {
			return nil, err
		}

		for _, req := range grouped[key] {
			before := pos.QuantityOnHand
			after := before + req.Delta
			if after.IsNegative() {
				return nil, apperror.NewInsufficientStock(
					req.ProductID.String(),
					req.Delta.Abs().Float64(),
					before.Float64(),
				)
			}

			if req.Delta.IsPositive() {
				pos.AverageCost = weightedAverageCost(before, pos.AverageCost, req.Delta, req.UnitCost)
			}
			pos.QuantityOnHand = after

			occurredAt := req.OccurredAt
			if occurredAt.IsZero() {
				occurredAt = now
			}
			recorded = append(recorded, &StockMovement{
				ID:             id.New(),
				ProductID:      req.ProductID,
				StoreID:        req.StoreID,
				Delta:          req.Delta,
				QuantityBefore: before,
				QuantityAfter:  after,
				UnitCost:       req.UnitCost,
				Kind:           req.Kind,
				ReferenceType:  req.ReferenceType,
				ReferenceID:    req.ReferenceID,
				OccurredAt:     occurredAt,
			})
		}

		pos.LastMovementAt = now
		pos.UpdatedAt = now
		if err := s.repo.SavePosition(ctx, pos); err != nil {
			return nil, err
		}
	}

	if err := s.repo.InsertMovements(ctx, recorded); err != nil {
		return nil, err
	}

	logger.Debug(ctx, "applied stock movements",
		"count", len(recorded),
		"positions", len(keys),
	)
	return recorded, nil
}

// weightedAverageCost blends the existing average with an inbound lot:
//
//	(oldQty*oldCost + delta*unitCost) / (oldQty + delta)
//
// An inbound movement with zero unit cost (e.g. found stock with no known
// cost) still dilutes the average, matching the valuation of the log replay.
func weightedAverageCost(oldQty types.Quantity, oldCost types.Money, delta types.Quantity, unitCost types.Money) types.Money {
	newQty := oldQty + delta
	if !newQty.IsPositive() {
		return oldCost
	}
	total := oldQty.Decimal().Mul(oldCost).Add(delta.Decimal().Mul(unitCost))
	return total.Div(newQty.Decimal()).Round(4)
}

// SumDeltas replays the movement log for one position.
func (s *Service) SumDeltas(ctx context.Context, productID, storeID id.ID) (types.Quantity, error) {
	return s.repo.SumDeltas(ctx, productID, storeID)
}

// VerifyPosition replays the movement log for one position and compares it to
// the materialized quantity. Used by the consistency report.
func (s *Service) VerifyPosition(ctx context.Context, productID, storeID id.ID) (bool, error) {
	pos, err := s.repo.GetPosition(ctx, productID, storeID)
	if err != nil {
		return false, err
	}
	sum, err := s.repo.SumDeltas(ctx, productID, storeID)
	if err != nil {
		return false, err
	}
	return pos.QuantityOnHand == sum, nil
}
