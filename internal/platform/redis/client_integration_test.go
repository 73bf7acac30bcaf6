//go:build integration

package redis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"civicpulse/pkg/testutil/containers"
)

func TestNewConnectsAndPings(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	rc := containers.GetManager().GetRedis(t)

	client, err := New(context.Background(), rc.URL, Options{PoolSize: 4})
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Health(context.Background()))
}

func TestNewEmptyURLIsDisabled(t *testing.T) {
	client, err := New(context.Background(), "", Options{})
	require.NoError(t, err)
	require.Nil(t, client)
}
