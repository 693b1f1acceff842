package aggregation

import (
	"sort"
	"time"

	"mapprice/server/internal/models"
)

// GroupKey identifies a size class by its reported areas.
type GroupKey struct {
	PrivateArea float64
	SupplyArea  float64
}

// Group is the set of records sharing one GroupKey.
type Group struct {
	Key     GroupKey
	Records []models.TransactionRecord
	MaxDate time.Time
}

// PartitionByKind splits available records by transaction kind.
func PartitionByKind(records []models.TransactionRecord) map[models.TransactionKind][]models.TransactionRecord {
	byKind := make(map[models.TransactionKind][]models.TransactionRecord)
	for _, r := range records {
		if !r.Available {
			continue
		}
		byKind[r.Kind] = append(byKind[r.Kind], r)
	}
	return byKind
}

// GroupRecords groups records by (private area, supply area) and orders the
// groups by preference: more records first, then the latest contract date,
// then the smaller private and supply areas.
func GroupRecords(records []models.TransactionRecord) []Group {
	index := make(map[GroupKey]int)
	var groups []Group
	for _, r := range records {
		key := GroupKey{PrivateArea: r.PrivateArea, SupplyArea: r.Supply()}
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Key: key})
		}
		g := &groups[i]
		g.Records = append(g.Records, r)
		if r.ContractDate.After(g.MaxDate) {
			g.MaxDate = r.ContractDate
		}
	}

	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i], groups[j]
		if len(a.Records) != len(b.Records) {
			return len(a.Records) > len(b.Records)
		}
		if !a.MaxDate.Equal(b.MaxDate) {
			return a.MaxDate.After(b.MaxDate)
		}
		if a.Key.PrivateArea != b.Key.PrivateArea {
			return a.Key.PrivateArea < b.Key.PrivateArea
		}
		return a.Key.SupplyArea < b.Key.SupplyArea
	})
	return groups
}

// SelectDefault returns the default size class of one kind, or nil when the
// kind has no records.
func SelectDefault(records []models.TransactionRecord) *Group {
	groups := GroupRecords(records)
	if len(groups) == 0 {
		return nil
	}
	return &groups[0]
}
