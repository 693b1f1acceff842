package config

// Region is a province given priority in name search results.
type Region struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// PriorityRegions orders name search hits: Seoul first, then Gyeonggi.
var PriorityRegions = []Region{
	{Code: "11", Name: "서울특별시"},
	{Code: "41", Name: "경기도"},
}

// RegionRank returns the sort rank of a province code. Codes outside
// PriorityRegions share the last rank.
func RegionRank(sidoCode string) int {
	for i, region := range PriorityRegions {
		if region.Code == sidoCode {
			return i
		}
	}
	return len(PriorityRegions)
}

// GetRegionByCode returns a priority region by its code
func GetRegionByCode(code string) *Region {
	for _, region := range PriorityRegions {
		if region.Code == code {
			return &region
		}
	}
	return nil
}
