package rewards_test

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xraph/rewards"
)

func TestSplitReward(t *testing.T) {
	tests := []struct {
		total       int64
		pct         int
		seller      int64
		store       int64
		clampedPctg int
	}{
		{100, 0, 0, 100, 0},
		{100, 30, 30, 70, 30},
		{100, 100, 100, 0, 100},
		{7, 50, 3, 4, 50},
		{1, 99, 0, 1, 99},
		{3, 33, 0, 3, 33},
		{100, -5, 0, 100, 0},
		{100, 250, 100, 0, 100},
		{math.MaxInt64, 50, 4611686018427387903, 4611686018427387904, 50},
		{math.MaxInt64, 99, 9131138316486228048, 92233720368547759, 99},
		{math.MaxInt64, 100, math.MaxInt64, 0, 100},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d@%d", tt.total, tt.pct), func(t *testing.T) {
			s := rewards.SplitReward(tt.total, tt.pct)
			assert.Equal(t, tt.seller, s.Seller)
			assert.Equal(t, tt.store, s.Store)
			assert.Equal(t, tt.clampedPctg, s.Percentage)
			assert.Equal(t, tt.total, s.Seller+s.Store)
		})
	}
}
