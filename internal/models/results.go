package models

import "time"

// PublicStatus is the application phase of a public listing.
type PublicStatus string

const (
	StatusBeforeOpen PublicStatus = "before_open"
	StatusReceiving  PublicStatus = "receiving"
	StatusClosed     PublicStatus = "closed"
	StatusUnknown    PublicStatus = "unknown"
)

// ListingType separates private from public listings in search output.
type ListingType string

const (
	ListingPrivate ListingType = "private"
	ListingPublic  ListingType = "public"
)

// PriceResult is one precomputed price attached to a map result.
type PriceResult struct {
	SizeUnit     int64     `json:"size_unit"`
	AveragePrice int64     `json:"average_price"`
	ContractDate time.Time `json:"contract_date"`
}

type PrivateResult struct {
	ListingID uint         `json:"listing_id"`
	Name      string       `json:"name"`
	Category  Category     `json:"category"`
	Trade     *PriceResult `json:"trade"`
	Deposit   *PriceResult `json:"deposit"`
}

type PublicResult struct {
	ListingID        uint         `json:"listing_id"`
	Name             string       `json:"name"`
	SaleCategory     Category     `json:"sale_category"`
	Status           PublicStatus `json:"status"`
	SizeType         string       `json:"size_type,omitempty"`
	SizeUnit         *int64       `json:"size_unit"`
	SupplyPrice      *int64       `json:"supply_price"`
	CompetitionRatio *int64       `json:"competition_ratio"`
	MinWinningScore  *int64       `json:"min_winning_score"`
}

// ResultEntity is a parcel returned by a bounding or radius search.
type ResultEntity struct {
	ParcelID  uint           `json:"parcel_id"`
	Address   string         `json:"address"`
	Latitude  float64        `json:"latitude"`
	Longitude float64        `json:"longitude"`
	Private   *PrivateResult `json:"private"`
	Public    *PublicResult  `json:"public"`
}

// RegionEntity is an administrative region returned at coarse zoom.
type RegionEntity struct {
	Code                string      `json:"code"`
	Name                string      `json:"name"`
	Level               RegionLevel `json:"level"`
	Latitude            float64     `json:"latitude"`
	Longitude           float64     `json:"longitude"`
	TradeAveragePrice   *int64      `json:"trade_average_price"`
	DepositAveragePrice *int64      `json:"deposit_average_price"`
	ListingCount        int64       `json:"listing_count"`
}

// SearchEntity is a name search hit.
type SearchEntity struct {
	Type      ListingType `json:"type"`
	ListingID uint        `json:"listing_id"`
	Name      string      `json:"name"`
	Address   string      `json:"address"`
	SidoCode  string      `json:"sido_code"`
	Latitude  float64     `json:"latitude"`
	Longitude float64     `json:"longitude"`
}
