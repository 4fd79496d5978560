package memstore

import (
	"testing"

	"philosofium/backend/progress"
	"philosofium/backend/storage/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) progress.Store { return New() })
}
