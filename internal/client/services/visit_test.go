package services

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/fieldvisit/internal/client/client"
	"github.com/dmitrijs2005/fieldvisit/internal/client/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ts(s string) models.Timestamp {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return models.Timestamp{Time: t}
}

func loggedIn(t *testing.T, c *fakeClient) *fixture {
	t.Helper()
	f := newFixture(t, c)
	require.NoError(t, f.sess.Login(context.Background(), models.Identity{AccountID: 11}))
	return f
}

func TestRecent_SortedAndFiltered(t *testing.T) {
	c := &fakeClient{visits: []models.Visit{
		{ID: 1, CheckinTime: ts("2025-04-02T09:00:00Z")},
		{ID: 2, CheckinTime: ts("2025-04-03T08:00:00Z")},
		{ID: 3, CheckinTime: ts("2025-04-03T15:00:00Z")},
	}}
	f := loggedIn(t, c)
	ctx := context.Background()

	all, err := f.visits.Recent(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 2, 1}, ids(all))

	day := time.Date(2025, 4, 3, 0, 0, 0, 0, time.UTC)
	some, err := f.visits.Recent(ctx, &day)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 2}, ids(some))

	none := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	empty, err := f.visits.Recent(ctx, &none)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func ids(vs []models.Visit) []int64 {
	out := make([]int64, 0, len(vs))
	for _, v := range vs {
		out = append(out, v.ID)
	}
	return out
}

func TestRecent_RequiresSession(t *testing.T) {
	f := newFixture(t, &fakeClient{})
	_, err := f.visits.Recent(context.Background(), nil)
	require.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestProvidersAt(t *testing.T) {
	c := &fakeClient{providers: []models.Provider{
		{ProviderID: 1, Location: "Central "},
		{ProviderID: 2, Location: "north"},
		{ProviderID: 3, Location: "CENTRAL"},
		{ProviderID: 4},
	}}
	f := loggedIn(t, c)

	got, err := f.visits.ProvidersAt(context.Background(), " central")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].ProviderID)
	assert.Equal(t, int64(3), got[1].ProviderID)
}

func TestVisitLifecycle(t *testing.T) {
	c := &fakeClient{dutyOnID: "77"}
	f := loggedIn(t, c)
	ctx := context.Background()

	start := time.Date(2025, 4, 3, 10, 0, 0, 0, time.UTC)
	clock := start
	f.visits.now = func() time.Time { return clock }

	_, err := f.visits.Start(ctx, models.Provider{ProviderID: 7})
	require.ErrorIs(t, err, ErrOffDuty)

	st, err := f.visits.DutyOn(ctx, "Gate 1")
	require.NoError(t, err)
	assert.True(t, st.OnDuty)
	assert.Equal(t, "77", st.DayTrackerID)

	provider := models.Provider{ProviderID: 7, LocationID: 2, ProviderName: "Rao"}
	st, err = f.visits.Start(ctx, provider)
	require.NoError(t, err)
	require.True(t, st.VisitInProgress())

	_, err = f.visits.Start(ctx, provider)
	require.ErrorIs(t, err, ErrVisitInProgress)
	_, err = f.visits.DutyOff(ctx, "")
	require.ErrorIs(t, err, ErrVisitInProgress)
	_, err = f.visits.DutyOn(ctx, "")
	require.ErrorIs(t, err, ErrVisitInProgress)

	clock = start.Add(25 * time.Minute)
	st, err = f.visits.Stop(ctx, "Ward 3")
	require.NoError(t, err)
	assert.False(t, st.VisitInProgress())
	assert.False(t, st.OnDuty)
	assert.Equal(t, "77", st.DayTrackerID)

	require.Len(t, c.addVisit, 1)
	assert.Equal(t, models.VisitRequest{
		CheckinTime:  start,
		CheckoutTime: start.Add(25 * time.Minute),
		LocationID:   2,
		CreatedBy:    11,
		ProviderID:   7,
		GPSLocation:  "Ward 3",
	}, c.addVisit[0])

	persisted, err := f.visits.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, st, persisted)
}

func TestStop_FailureKeepsVisit(t *testing.T) {
	c := &fakeClient{dutyOnID: "1", addErr: client.ErrRejected}
	f := loggedIn(t, c)
	ctx := context.Background()

	_, err := f.visits.DutyOn(ctx, "")
	require.NoError(t, err)
	_, err = f.visits.Start(ctx, models.Provider{ProviderID: 7})
	require.NoError(t, err)

	_, err = f.visits.Stop(ctx, "")
	require.ErrorIs(t, err, client.ErrRejected)

	st, err := f.visits.State(ctx)
	require.NoError(t, err)
	assert.True(t, st.VisitInProgress())
	assert.True(t, st.OnDuty)
}

func TestStop_NoVisit(t *testing.T) {
	f := loggedIn(t, &fakeClient{})
	_, err := f.visits.Stop(context.Background(), "")
	require.ErrorIs(t, err, ErrNoVisit)
}

func TestDutyOff(t *testing.T) {
	t.Run("missing tracker", func(t *testing.T) {
		f := loggedIn(t, &fakeClient{})
		_, err := f.visits.DutyOff(context.Background(), "")
		require.ErrorIs(t, err, ErrNoDayTracker)
	})

	t.Run("clears tracker", func(t *testing.T) {
		c := &fakeClient{dutyOnID: "77"}
		f := loggedIn(t, c)
		ctx := context.Background()

		_, err := f.visits.DutyOn(ctx, "")
		require.NoError(t, err)
		st, err := f.visits.DutyOff(ctx, "Gate 1")
		require.NoError(t, err)

		assert.False(t, st.OnDuty)
		assert.Empty(t, st.DayTrackerID)
		assert.Equal(t, []string{"77"}, c.dutyOff)
	})

	t.Run("backend failure keeps state", func(t *testing.T) {
		c := &fakeClient{dutyOnID: "77", dutyOffErr: client.ErrUnavailable}
		f := loggedIn(t, c)
		ctx := context.Background()

		_, err := f.visits.DutyOn(ctx, "")
		require.NoError(t, err)
		_, err = f.visits.DutyOff(ctx, "")
		require.ErrorIs(t, err, client.ErrUnavailable)

		st, err := f.visits.State(ctx)
		require.NoError(t, err)
		assert.True(t, st.OnDuty)
	})
}

func TestState_CorruptIsReset(t *testing.T) {
	f := loggedIn(t, &fakeClient{})
	ctx := context.Background()
	require.NoError(t, f.kv.Set(ctx, KeyAppState, []byte(`{not json`)))

	st, err := f.visits.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.FieldState{}, st)
}
