package services

import (
	"context"
	"testing"

	"finnsync/models"

	"github.com/stretchr/testify/require"
)

func TestOverrideServiceValidation(t *testing.T) {
	ctx := context.Background()
	svc := NewOverrideService(newStore(t))

	_, err := svc.Set(ctx, "K", nil, nil, "")
	require.Error(t, err)
	_, err = svc.Set(ctx, "K", models.IntPtr(0), nil, "")
	require.Error(t, err)
	_, err = svc.Set(ctx, "K", nil, models.IntPtr(-1), "")
	require.Error(t, err)
}

func TestOverrideServiceMerge(t *testing.T) {
	ctx := context.Background()
	svc := NewOverrideService(newStore(t))

	_, err := svc.Set(ctx, "K", models.IntPtr(50), nil, "")
	require.NoError(t, err)
	o, err := svc.Set(ctx, "K", nil, models.IntPtr(1000000), "")
	require.NoError(t, err)
	require.Equal(t, 50, *o.Area)
	require.Equal(t, 1000000, *o.Price)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	removed, err := svc.Remove(ctx, "K")
	require.NoError(t, err)
	require.True(t, removed)

	got, err := svc.Get(ctx, "K")
	require.NoError(t, err)
	require.Nil(t, got)
}
