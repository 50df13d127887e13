package mongo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

func TestMigrationIndexesCoverUniqueness(t *testing.T) {
	indexes := migrationIndexes()

	for _, col := range []string{colAccounts, colEntries, colInvoices, colLinks, colIssuers} {
		assert.NotEmpty(t, indexes[col], col)
	}
	require.Len(t, indexes[colLinks], 3)
	assert.NotNil(t, indexes[colLinks][1].Options, "approved link index needs options")
}

func TestIsIndexViolation(t *testing.T) {
	dup := mongo.WriteException{WriteErrors: mongo.WriteErrors{{
		Code:    11000,
		Message: "E11000 duplicate key error collection: rewards.reward_links index: " + idxOneApproved + " dup key: { seller_id: \"acct_x\" }",
	}}}
	pair := mongo.WriteException{WriteErrors: mongo.WriteErrors{{
		Code:    11000,
		Message: "E11000 duplicate key error collection: rewards.reward_links index: seller_id_1_store_id_1 dup key",
	}}}

	assert.True(t, isIndexViolation(dup, idxOneApproved))
	assert.False(t, isIndexViolation(pair, idxOneApproved))
	assert.False(t, isIndexViolation(errors.New("boom"), idxOneApproved))
	assert.False(t, isIndexViolation(nil, idxOneApproved))
	assert.True(t, mongo.IsDuplicateKeyError(pair))
}
