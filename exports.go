package rewards

import (
	"github.com/xraph/rewards/id"
	"github.com/xraph/rewards/types"
)

// Re-export common types so callers don't have to import the id and types packages.

// ID is re-exported from the id package.
type ID = id.ID

// Entity is re-exported from types package.
type Entity = types.Entity

// NewEntity is re-exported from types package.
var NewEntity = types.NewEntity
