package fleet

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukydev/fleetmasterpro/internal/models"
)

type countingSaver struct {
	mu    sync.Mutex
	saves []models.MaintenancePlan
	draft *models.MaintenancePlan
}

func (s *countingSaver) SaveDraft(_ context.Context, plan models.MaintenancePlan) (*models.MaintenancePlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if plan.ID == "" {
		plan.ID = "plan-1"
	}
	s.saves = append(s.saves, plan)
	return &plan, nil
}

func (s *countingSaver) CurrentDraft(_ context.Context, carID string) (*models.MaintenancePlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draft == nil {
		return nil, notFound("draft for car", carID)
	}
	return s.draft, nil
}

func (s *countingSaver) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saves)
}

func (s *countingSaver) last() models.MaintenancePlan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves[len(s.saves)-1]
}

func newSessions(t *testing.T, saver DraftSaver, interval time.Duration) *EditorSessions {
	t.Helper()
	logger, _ := test.NewNullLogger()
	sessions := NewEditorSessions(saver, interval, logger)
	t.Cleanup(sessions.CloseAll)
	return sessions
}

func TestEditorSessions_AutosavesNonEmptyDraft(t *testing.T) {
	saver := &countingSaver{}
	sessions := newSessions(t, saver, 20*time.Millisecond)
	ctx := context.Background()

	plan, err := sessions.Open(ctx, "car-1")
	require.NoError(t, err)
	assert.Equal(t, "car-1", plan.CarID)
	assert.True(t, sessions.IsOpen("car-1"))

	// Empty drafts are never written.
	time.Sleep(80 * time.Millisecond)
	assert.Zero(t, saver.count())

	require.NoError(t, sessions.Touch("car-1", models.MaintenancePlan{Notes: "check brakes"}))
	require.Eventually(t, func() bool { return saver.count() > 0 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "check brakes", saver.last().Notes)
	assert.Equal(t, "car-1", saver.last().CarID)

	// The id assigned by the first save is reused.
	require.NoError(t, sessions.Touch("car-1", models.MaintenancePlan{Notes: "and tires"}))
	require.Eventually(t, func() bool { return saver.last().Notes == "and tires" }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "plan-1", saver.last().ID)
}

func TestEditorSessions_TouchRestartsTimer(t *testing.T) {
	saver := &countingSaver{}
	sessions := newSessions(t, saver, 200*time.Millisecond)
	ctx := context.Background()

	_, err := sessions.Open(ctx, "car-1")
	require.NoError(t, err)
	for i := 0; i < 15; i++ {
		require.NoError(t, sessions.Touch("car-1", models.MaintenancePlan{Notes: "typing"}))
		time.Sleep(10 * time.Millisecond)
	}
	assert.Zero(t, saver.count())

	require.Eventually(t, func() bool { return saver.count() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestEditorSessions_CloseStopsAutosave(t *testing.T) {
	saver := &countingSaver{}
	sessions := newSessions(t, saver, 30*time.Millisecond)
	ctx := context.Background()

	_, err := sessions.Open(ctx, "car-1")
	require.NoError(t, err)
	require.NoError(t, sessions.Touch("car-1", models.MaintenancePlan{Notes: "x"}))
	assert.True(t, sessions.Close("car-1"))
	assert.False(t, sessions.Close("car-1"))
	assert.False(t, sessions.IsOpen("car-1"))

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, saver.count())
	assert.ErrorIs(t, sessions.Touch("car-1", models.MaintenancePlan{}), ErrNotFound)
}

func TestEditorSessions_OpenResumesDraftAndSavesOnDemand(t *testing.T) {
	saver := &countingSaver{draft: &models.MaintenancePlan{ID: "draft-7", CarID: "car-1", Notes: "resume me"}}
	sessions := newSessions(t, saver, time.Hour)
	ctx := context.Background()

	plan, err := sessions.Open(ctx, "car-1")
	require.NoError(t, err)
	assert.Equal(t, "draft-7", plan.ID)

	again, err := sessions.Open(ctx, "car-1")
	require.NoError(t, err)
	assert.Equal(t, plan, again)

	saved, err := sessions.Save(ctx, "car-1")
	require.NoError(t, err)
	assert.Equal(t, "draft-7", saved.ID)
	assert.Equal(t, 1, saver.count())

	_, err = sessions.Save(ctx, "car-2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEditorSessions_WithPlanBuilder(t *testing.T) {
	f := newFixture(t)
	car := f.addCar(t, 85000)
	sessions := newSessions(t, f.plans, 20*time.Millisecond)

	_, err := sessions.Open(f.ctx, car.ID)
	require.NoError(t, err)
	require.NoError(t, sessions.Touch(car.ID, models.MaintenancePlan{
		PeriodicOperations: []models.PeriodicOperation{{Operation: "Oil", EstimatedCost: 50}},
	}))

	require.Eventually(t, func() bool {
		_, err := f.plans.CurrentDraft(f.ctx, car.ID)
		return err == nil
	}, 2*time.Second, 5*time.Millisecond)

	sessions.CloseAll()
	draft, err := f.plans.CurrentDraft(f.ctx, car.ID)
	require.NoError(t, err)
	assert.Equal(t, 50.0, draft.TotalEstimatedCost)
	plans, err := f.plans.ListPlans(f.ctx, car.ID)
	require.NoError(t, err)
	assert.Len(t, plans, 1)
}
