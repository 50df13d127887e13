package memory_test

import (
	"testing"

	"github.com/xraph/rewards/store"
	"github.com/xraph/rewards/store/memory"
	"github.com/xraph/rewards/store/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(*testing.T) store.Store { return memory.New() })
}
