package container

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"mammo-vision/config"
	"mammo-vision/internal/infrastructure/classifier"
	"mammo-vision/internal/infrastructure/storage"
)

func TestNew_InMemoryCache(t *testing.T) {
	cfg := config.DefaultConfig()

	c, err := New(context.Background(), cfg, storage.NewMemoryUserRepository())
	require.NoError(t, err)
	require.NotNil(t, c.AnalysisService)
	require.NotNil(t, c.UserService)
	require.NoError(t, c.Close())
}

func TestNew_BadRedisURL(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Cache.RedisURL = "not-a-url"

	_, err := New(context.Background(), cfg, storage.NewMemoryUserRepository())
	require.Error(t, err)
}

func TestModelID(t *testing.T) {
	a := classifier.DefaultOptions("a.pb")
	b := classifier.DefaultOptions("b.pb")
	require.NotEqual(t, ModelID(a), ModelID(b))

	c := classifier.DefaultOptions("a.pb")
	c.FeatureOp = "block6/activation"
	require.NotEqual(t, ModelID(a), ModelID(c))
	require.Equal(t, ModelID(a), ModelID(classifier.DefaultOptions("a.pb")))
}
