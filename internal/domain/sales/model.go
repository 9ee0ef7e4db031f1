// Package sales exposes the committed sales transactions the return workflow
// validates against. The engine reads and locks these records; it never
// creates or edits them.
package sales

import (
	"time"

	"stockcore/internal/core/id"
	"stockcore/internal/core/types"
)

// SalesTransaction is a committed sale as recorded by the sales subsystem.
type SalesTransaction struct {
	ID      id.ID     `db:"id" json:"id"`
	Number  string    `db:"number" json:"number"`
	StoreID id.ID     `db:"store_id" json:"storeId"`
	SoldAt  time.Time `db:"sold_at" json:"soldAt"`

	Lines []*SalesLine `db:"-" json:"lines"`
}

// SalesLine is one sold line. Quantity and price are fixed at sale time.
type SalesLine struct {
	ID                 id.ID          `db:"id" json:"id"`
	SalesTransactionID id.ID          `db:"sales_transaction_id" json:"salesTransactionId"`
	ProductID          id.ID          `db:"product_id" json:"productId"`
	Quantity           types.Quantity `db:"quantity" json:"quantity"`
	UnitPriceNet       types.Money    `db:"unit_price_net" json:"unitPriceNet"`
}

// Line returns the line with the given ID, or nil.
func (t *SalesTransaction) Line(lineID id.ID) *SalesLine {
	for _, l := range t.Lines {
		if l.ID == lineID {
			return l
		}
	}
	return nil
}
