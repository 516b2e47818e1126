package main

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukydev/fleetmasterpro/internal/auth"
	"github.com/ukydev/fleetmasterpro/internal/db"
	"github.com/ukydev/fleetmasterpro/internal/events"
	"github.com/ukydev/fleetmasterpro/internal/fleet"
	"github.com/ukydev/fleetmasterpro/internal/handlers"
)

func newTestServer(t *testing.T) (*httptest.Server, *db.LocalStore) {
	t.Helper()
	logger, _ := test.NewNullLogger()

	store, err := db.NewLocalStore(filepath.Join(t.TempDir(), "seed.db"), db.WithLogger(logger))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(context.Background()) })

	authService, err := auth.NewService("seed-test-secret", 0)
	require.NoError(t, err)

	bus := events.NewBus()
	regs := fleet.NewRegulationService(store, fleet.DefaultRegulations(), logger)
	plans := fleet.NewPlanBuilder(store, regs, bus, logger)
	sessions := fleet.NewEditorSessions(plans, time.Hour, logger)
	t.Cleanup(sessions.CloseAll)

	srv := httptest.NewServer(handlers.NewRouter(handlers.Dependencies{
		Store:       store,
		Backend:     "local",
		Auth:        authService,
		Cars:        fleet.NewCarService(store, logger),
		Alerts:      fleet.NewAlertManager(store, bus, logger),
		Plans:       plans,
		Sessions:    sessions,
		Status:      fleet.NewStatusCalculator(store, logger),
		Records:     fleet.NewServiceRecordService(store, logger),
		Shops:       fleet.NewShopService(store, logger),
		Regulations: regs,
		Reconciler:  fleet.NewReconciler(store, logger),
		Logger:      logger,
	}))
	t.Cleanup(srv.Close)
	return srv, store
}

func newTestSeeder(t *testing.T, srv *httptest.Server) *seeder {
	t.Helper()
	logger, _ := test.NewNullLogger()
	s, err := newSeeder(srv.URL+"/api", "", logger)
	require.NoError(t, err)
	require.NoError(t, s.primeCSRF(context.Background()))
	require.NotEmpty(t, s.csrf)
	return s
}

func TestSeed_LoadsDemoFleet(t *testing.T) {
	srv, store := newTestServer(t)
	ctx := context.Background()

	s := newTestSeeder(t, srv)
	require.NoError(t, s.login(ctx, "demo-admin", "demo-password"))
	require.NotEmpty(t, s.token)

	summary, err := s.seed(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, summary.Skipped)
	assert.Equal(t, 3, summary.Cars)
	assert.Equal(t, 3, summary.Shops)
	assert.Equal(t, 2, summary.Records)
	assert.Equal(t, 3, summary.Alerts)

	cars, err := store.ListCars(ctx)
	require.NoError(t, err)
	assert.Len(t, cars, 3)

	alerts, err := store.ListAlerts(ctx)
	require.NoError(t, err)
	assert.Len(t, alerts, 3)

	shops, err := store.ListShops(ctx)
	require.NoError(t, err)
	assert.Len(t, shops, 3)
}

func TestSeed_SecondRunLogsInAndSkips(t *testing.T) {
	srv, store := newTestServer(t)
	ctx := context.Background()

	first := newTestSeeder(t, srv)
	require.NoError(t, first.login(ctx, "demo-admin", "demo-password"))
	_, err := first.seed(ctx, time.Now().UTC())
	require.NoError(t, err)

	second := newTestSeeder(t, srv)
	require.NoError(t, second.login(ctx, "demo-admin", "demo-password"))
	summary, err := second.seed(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, summary.Skipped)
	assert.Zero(t, summary.Cars)

	cars, err := store.ListCars(ctx)
	require.NoError(t, err)
	assert.Len(t, cars, 3)
}

func TestSeed_WrongPassword(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()

	s := newTestSeeder(t, srv)
	require.NoError(t, s.login(ctx, "demo-admin", "demo-password"))

	other := newTestSeeder(t, srv)
	err := other.login(ctx, "demo-admin", "not-the-password")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestSeed_RequiresCSRFToken(t *testing.T) {
	srv, _ := newTestServer(t)
	logger, _ := test.NewNullLogger()

	s, err := newSeeder(srv.URL+"/api", "", logger)
	require.NoError(t, err)
	err = s.login(context.Background(), "demo-admin", "demo-password")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}
