package testing

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittodrive/pkg/store"
)

// GatewayTestSuite is a conformance suite for store.Gateway implementations.
// It tests the interface contract, not implementation details, so the same
// suite runs against the memory gateway and (behind a build tag or an
// environment guard) against a real S3-compatible endpoint.
//
// Usage:
//
//	func TestMemoryGateway(t *testing.T) {
//	    suite := &testing.GatewayTestSuite{
//	        NewGateway: func() store.Gateway {
//	            return memory.NewMemoryGateway()
//	        },
//	    }
//	    suite.Run(t)
//	}
type GatewayTestSuite struct {
	// NewGateway creates a fresh, empty gateway for each test, ensuring test
	// isolation.
	NewGateway func() store.Gateway
}

// Run executes all tests in the suite.
func (suite *GatewayTestSuite) Run(t *testing.T) {
	t.Run("StatAndExists", suite.runStatTests)
	t.Run("List", suite.runListTests)
	t.Run("GetPut", suite.runGetPutTests)
	t.Run("Delete", suite.runDeleteTests)
}

func testContext() context.Context {
	return context.Background()
}

func mustPut(t *testing.T, gw store.Gateway, key string, data []byte) {
	t.Helper()
	err := gw.Put(testContext(), key, bytes.NewReader(data), int64(len(data)), "application/octet-stream")
	require.NoError(t, err, "Put should succeed")
}

func (suite *GatewayTestSuite) runStatTests(t *testing.T) {
	t.Run("StatMissingKeyIsNotFound", func(t *testing.T) {
		gw := suite.NewGateway()

		_, err := gw.Stat(testContext(), "user-1-files/missing.txt")
		assert.True(t, errors.Is(err, store.ErrObjectNotFound))
	})

	t.Run("StatReturnsSize", func(t *testing.T) {
		gw := suite.NewGateway()
		mustPut(t, gw, "user-1-files/a.txt", []byte("hello"))

		obj, err := gw.Stat(testContext(), "user-1-files/a.txt")
		require.NoError(t, err)
		assert.Equal(t, int64(5), obj.Size)
		assert.Equal(t, "user-1-files/a.txt", obj.Key)
	})

	t.Run("StatDoesNotMatchPrefixes", func(t *testing.T) {
		gw := suite.NewGateway()
		mustPut(t, gw, "user-1-files/a.txt.bak", []byte("x"))

		_, err := gw.Stat(testContext(), "user-1-files/a.txt")
		assert.True(t, errors.Is(err, store.ErrObjectNotFound))
	})

	t.Run("ExistsMatchesPrefix", func(t *testing.T) {
		gw := suite.NewGateway()
		mustPut(t, gw, "user-1-files/docs/inner/file.txt", []byte("x"))

		exists, err := gw.Exists(testContext(), "user-1-files/docs/")
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = gw.Exists(testContext(), "user-1-files/other/")
		require.NoError(t, err)
		assert.False(t, exists)
	})
}

func (suite *GatewayTestSuite) runListTests(t *testing.T) {
	t.Run("ListIsLexicographicAndComplete", func(t *testing.T) {
		gw := suite.NewGateway()
		mustPut(t, gw, "user-1-files/docs/b.txt", []byte("bb"))
		mustPut(t, gw, "user-1-files/docs/a.txt", []byte("a"))
		mustPut(t, gw, "user-1-files/docs/sub/", nil)
		mustPut(t, gw, "user-1-files/other.txt", []byte("o"))

		objects, err := gw.List(testContext(), "user-1-files/docs/")
		require.NoError(t, err)
		require.Len(t, objects, 3)
		assert.Equal(t, "user-1-files/docs/a.txt", objects[0].Key)
		assert.Equal(t, "user-1-files/docs/b.txt", objects[1].Key)
		assert.Equal(t, "user-1-files/docs/sub/", objects[2].Key)
		assert.Equal(t, int64(0), objects[2].Size)
	})

	t.Run("ListEmptyPrefix", func(t *testing.T) {
		gw := suite.NewGateway()

		objects, err := gw.List(testContext(), "user-1-files/")
		require.NoError(t, err)
		assert.Empty(t, objects)
	})
}

func (suite *GatewayTestSuite) runGetPutTests(t *testing.T) {
	t.Run("GetMissingKeyIsNotFound", func(t *testing.T) {
		gw := suite.NewGateway()

		_, err := gw.Get(testContext(), "user-1-files/missing.txt")
		assert.True(t, errors.Is(err, store.ErrObjectNotFound))
	})

	t.Run("PutThenGetRoundTrips", func(t *testing.T) {
		gw := suite.NewGateway()
		mustPut(t, gw, "user-1-files/a.txt", []byte("payload"))

		r, err := gw.Get(testContext(), "user-1-files/a.txt")
		require.NoError(t, err)
		defer r.Close()

		data, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, []byte("payload"), data)
	})

	t.Run("PutOverwritesUnconditionally", func(t *testing.T) {
		gw := suite.NewGateway()
		mustPut(t, gw, "user-1-files/a.txt", []byte("old"))
		mustPut(t, gw, "user-1-files/a.txt", []byte("new content"))

		obj, err := gw.Stat(testContext(), "user-1-files/a.txt")
		require.NoError(t, err)
		assert.Equal(t, int64(len("new content")), obj.Size)
	})

	t.Run("ZeroByteMarker", func(t *testing.T) {
		gw := suite.NewGateway()
		mustPut(t, gw, "user-1-files/docs/", nil)

		obj, err := gw.Stat(testContext(), "user-1-files/docs/")
		require.NoError(t, err)
		assert.Equal(t, int64(0), obj.Size)
	})
}

func (suite *GatewayTestSuite) runDeleteTests(t *testing.T) {
	t.Run("DeleteRemovesObject", func(t *testing.T) {
		gw := suite.NewGateway()
		mustPut(t, gw, "user-1-files/a.txt", []byte("x"))

		require.NoError(t, gw.Delete(testContext(), "user-1-files/a.txt"))

		_, err := gw.Stat(testContext(), "user-1-files/a.txt")
		assert.True(t, errors.Is(err, store.ErrObjectNotFound))
	})

	t.Run("DeleteIsIdempotent", func(t *testing.T) {
		gw := suite.NewGateway()
		mustPut(t, gw, "user-1-files/a.txt", []byte("x"))

		require.NoError(t, gw.Delete(testContext(), "user-1-files/a.txt"))
		require.NoError(t, gw.Delete(testContext(), "user-1-files/a.txt"))
	})
}
