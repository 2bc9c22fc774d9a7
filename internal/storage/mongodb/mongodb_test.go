package mongodb

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"authsvc/internal/storage/storagetest"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// The shared suite needs a live server; point AUTHSVC_TEST_MONGODB_URI at one
// (e.g. mongodb://localhost:27017) to run it.
func TestStorage(t *testing.T) {
	uri := os.Getenv("AUTHSVC_TEST_MONGODB_URI")
	if uri == "" {
		t.Skip("AUTHSVC_TEST_MONGODB_URI is not set")
	}

	storagetest.Run(t, func(t *testing.T) storagetest.Store {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		database := "authsvc_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
		s, err := New(ctx, uri, database)
		require.NoError(t, err)

		t.Cleanup(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = s.database.Drop(ctx)
			_ = s.Close(ctx)
		})

		return s
	})
}

func TestIsDuplicateKeyError(t *testing.T) {
	dup := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key"}}}
	other := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 121, Message: "validation failed"}}}

	assert.True(t, isDuplicateKeyError(dup))
	assert.False(t, isDuplicateKeyError(other))
	assert.False(t, isDuplicateKeyError(mongo.ErrNoDocuments))
}

func TestHashValue(t *testing.T) {
	assert.Nil(t, hashValue(nil))
	assert.Equal(t, []byte("h"), hashValue([]byte("h")))
}
