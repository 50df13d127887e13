package rewards

import "github.com/xraph/rewards/link"

// Split is the division of one receipt reward between seller and store.
type Split struct {
	Total      int64 `json:"total"`
	Percentage int   `json:"percentage"`
	Seller     int64 `json:"seller"`
	Store      int64 `json:"store"`
}

// SplitReward gives the seller floor(total*percentage/100) and the store the
// remainder, so rounding never favors the seller and no coin is lost.
// Percentage is clamped to [0,100]. The product is split around 100 so any
// int64 total is safe.
func SplitReward(total int64, percentage int) Split {
	percentage = min(max(percentage, link.MinPercentage), link.MaxPercentage)
	pct := int64(percentage)
	seller := total/100*pct + total%100*pct/100
	return Split{
		Total:      total,
		Percentage: percentage,
		Seller:     seller,
		Store:      total - seller,
	}
}
