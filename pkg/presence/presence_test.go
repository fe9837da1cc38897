package presence_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/omniwaifu/dere-sub005/pkg/presence"
	testdb "github.com/omniwaifu/dere-sub005/test/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoutePrefersDirectChannelOverGeneral(t *testing.T) {
	client := testdb.NewTestClient(t)
	svc := presence.New(client.DB())
	userID := uuid.NewString()
	now := time.Now().UTC()

	require.NoError(t, svc.Heartbeat(t.Context(), userID, "discord", "online", []string{"general", "dm-124"}, now))

	target, err := svc.Route(t.Context(), userID, now)
	require.NoError(t, err)
	assert.Equal(t, "discord", target.Medium)
	assert.Equal(t, "dm-124", target.Channel)
	assert.False(t, target.Desktop)
}

func TestRouteFallsBackToDesktopWhenNoMediumOnline(t *testing.T) {
	client := testdb.NewTestClient(t)
	svc := presence.New(client.DB())
	userID := uuid.NewString()
	now := time.Now().UTC()

	require.NoError(t, svc.Heartbeat(t.Context(), userID, "discord", "online", []string{"general"}, now.Add(-5*time.Minute)))

	target, err := svc.Route(t.Context(), userID, now)
	require.NoError(t, err)
	assert.True(t, target.Desktop)
}

func TestSweepStaleMarksOldHeartbeatsInactive(t *testing.T) {
	client := testdb.NewTestClient(t)
	svc := presence.New(client.DB())
	userID := uuid.NewString()
	now := time.Now().UTC()

	require.NoError(t, svc.Heartbeat(t.Context(), userID, "discord", "online", []string{"general"}, now.Add(-10*time.Minute)))

	n, err := svc.SweepStale(t.Context(), now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	target, err := svc.Route(t.Context(), userID, now)
	require.NoError(t, err)
	assert.True(t, target.Desktop)
}
