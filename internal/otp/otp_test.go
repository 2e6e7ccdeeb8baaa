package otp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_IssueAndVerifyOnce(t *testing.T) {
	svc := NewService(NewMemoryStore(), time.Minute, "")
	ctx := context.Background()

	code, err := svc.Issue(ctx, 1)
	require.NoError(t, err)
	require.Len(t, code, CodeLength)

	again, err := svc.Issue(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, code, again, "live code is reused")

	wrong := "0000"
	if code == wrong {
		wrong = "1111"
	}
	ok, err := svc.Verify(ctx, 1, wrong)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.Verify(ctx, 1, code)
	require.NoError(t, err)
	assert.True(t, ok, "wrong attempt keeps the entry")

	ok, err = svc.Verify(ctx, 1, code)
	require.NoError(t, err)
	assert.False(t, ok, "code is one-time")
}

func TestService_CodesArePerUser(t *testing.T) {
	svc := NewService(NewMemoryStore(), time.Minute, "")
	ctx := context.Background()

	code, err := svc.Issue(ctx, 1)
	require.NoError(t, err)

	ok, err := svc.Verify(ctx, 2, code)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_Expiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore().WithClock(func() time.Time { return now })
	svc := NewService(store, 5*time.Minute, "")
	ctx := context.Background()

	code, err := svc.Issue(ctx, 1)
	require.NoError(t, err)

	now = now.Add(5 * time.Minute)
	ok, err := svc.Verify(ctx, 1, code)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_StaticOverrideAndFormat(t *testing.T) {
	svc := NewService(NewMemoryStore(), time.Minute, "4242")
	ctx := context.Background()

	ok, err := svc.Verify(ctx, 9, "4242")
	require.NoError(t, err)
	assert.True(t, ok)

	for _, bad := range []string{"", "123", "12345", "12a4"} {
		ok, err := svc.Verify(ctx, 9, bad)
		require.NoError(t, err)
		assert.False(t, ok, bad)
	}
}
