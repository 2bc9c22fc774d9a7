package memory

import (
	"testing"

	"authsvc/internal/storage/storagetest"
)

func TestStorage(t *testing.T) {
	storagetest.Run(t, func(*testing.T) storagetest.Store {
		return New()
	})
}
