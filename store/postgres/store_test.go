package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xraph/grove/drivers/pgdriver"

	"github.com/xraph/rewards/store"
	"github.com/xraph/rewards/store/postgres"
	"github.com/xraph/rewards/store/storetest"
)

// Set REWARDS_POSTGRES_DSN to run against a disposable database. Every
// subtest truncates the reward tables.
func TestStore(t *testing.T) {
	dsn := os.Getenv("REWARDS_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("REWARDS_POSTGRES_DSN not set")
	}

	storetest.Run(t, func(t *testing.T) store.Store {
		ctx := context.Background()
		s, err := postgres.Open(ctx, dsn)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })

		require.NoError(t, s.Migrate(ctx))
		_, err = pgdriver.Unwrap(s.DB()).NewRaw(
			"TRUNCATE reward_accounts, reward_entries, reward_invoices, reward_links, reward_issuers",
		).Exec(ctx)
		require.NoError(t, err)
		return s
	})
}
