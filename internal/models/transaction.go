package models

import "time"

// TransactionKind distinguishes trades from lease contracts.
type TransactionKind string

const (
	KindTrade   TransactionKind = "trade"
	KindDeposit TransactionKind = "deposit"
	KindRent    TransactionKind = "rent"
)

// AggregatedKinds are the kinds that get a default size class.
var AggregatedKinds = []TransactionKind{KindTrade, KindDeposit}

// TransactionRecord is one reported contract. Rows are never edited here;
// superseded reports are flipped to unavailable by the feed.
type TransactionRecord struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	ListingID    uint            `gorm:"not null;index:idx_transactions_listing_kind,priority:1" json:"listing_id"`
	Kind         TransactionKind `gorm:"size:10;not null;index:idx_transactions_listing_kind,priority:2" json:"kind"`
	PrivateArea  float64         `gorm:"not null" json:"private_area"`
	SupplyArea   *float64        `json:"supply_area"`
	ContractDate time.Time       `gorm:"type:date;not null" json:"contract_date"`
	Price        int64           `gorm:"not null" json:"price"`
	Available    bool            `gorm:"not null;default:true" json:"available"`
}

func (TransactionRecord) TableName() string {
	return "transaction_records"
}

// Supply returns the supply area, treating NULL as zero.
func (t TransactionRecord) Supply() float64 {
	if t.SupplyArea == nil {
		return 0
	}
	return *t.SupplyArea
}
