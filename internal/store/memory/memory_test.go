package memory_test

import (
	"testing"

	"rendezvous-api/internal/store/memory"
	"rendezvous-api/internal/store/storetest"
)

func TestMemoryStore(t *testing.T) {
	storetest.Run(t, memory.New())
}
