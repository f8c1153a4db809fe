package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shulepay/approvals-api/internal/models"
)

func TestEventConfigCachePassThroughWithoutRedis(t *testing.T) {
	events := &fakeEvents{configs: map[string]*models.EventConfig{
		"event-1": {ID: "event-1", Name: "Sports Day", RequiresApproval: true},
	}}
	cache := NewEventConfigCache(events, nil, 0, nil)

	cfg, err := cache.GetConfig(context.Background(), "event-1")
	require.NoError(t, err)
	require.Equal(t, "Sports Day", cfg.Name)

	_, err = cache.GetConfig(context.Background(), "missing")
	require.Error(t, err)

	require.NoError(t, cache.Invalidate(context.Background(), "event-1"))
}
