package api_test

import (
	"testing"

	"github.com/soaringjerry/adi/internal/api"
	"github.com/soaringjerry/adi/internal/api/storetest"
)

func TestMemoryStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) api.Store { return api.NewMemoryStore() })
}
