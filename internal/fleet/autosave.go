package fleet

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleetmasterpro/internal/models"
)

// DefaultAutosaveInterval is how often an open editor persists its draft.
const DefaultAutosaveInterval = 30 * time.Second

// saveTimeout bounds a single autosave write.
const saveTimeout = 10 * time.Second

// DraftSaver persists drafts. *PlanBuilder implements it.
type DraftSaver interface {
	SaveDraft(ctx context.Context, plan models.MaintenancePlan) (*models.MaintenancePlan, error)
	CurrentDraft(ctx context.Context, carID string) (*models.MaintenancePlan, error)
}

// EditorSessions tracks open plan editors, one per car. Each session owns a
// goroutine that saves its draft when the interval passes without a Touch.
type EditorSessions struct {
	saver    DraftSaver
	interval time.Duration
	logger   log.FieldLogger

	mu       sync.Mutex
	sessions map[string]*editorSession
	wg       sync.WaitGroup
}

type editorSession struct {
	carID string
	touch chan struct{}
	done  chan struct{}

	mu   sync.Mutex
	plan models.MaintenancePlan
}

// NewEditorSessions creates a session registry. A non-positive interval
// uses DefaultAutosaveInterval.
func NewEditorSessions(saver DraftSaver, interval time.Duration, logger log.FieldLogger) *EditorSessions {
	if interval <= 0 {
		interval = DefaultAutosaveInterval
	}
	return &EditorSessions{
		saver:    saver,
		interval: interval,
		logger:   logger,
		sessions: make(map[string]*editorSession),
	}
}

// Open starts the car's editor session, resuming its draft when there is
// one. Opening an already open session returns its current plan.
func (e *EditorSessions) Open(ctx context.Context, carID string) (models.MaintenancePlan, error) {
	e.mu.Lock()
	if s, ok := e.sessions[carID]; ok {
		e.mu.Unlock()
		return s.snapshot(), nil
	}
	e.mu.Unlock()

	plan := models.MaintenancePlan{CarID: carID, Status: models.PlanStatusDraft}
	draft, err := e.saver.CurrentDraft(ctx, carID)
	switch {
	case err == nil:
		plan = *draft
	case !isNotFound(err):
		return models.MaintenancePlan{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.sessions[carID]; ok {
		return s.snapshot(), nil
	}
	s := &editorSession{
		carID: carID,
		touch: make(chan struct{}, 1),
		done:  make(chan struct{}),
		plan:  plan,
	}
	e.sessions[carID] = s
	e.wg.Add(1)
	go e.run(s)

	e.logger.WithField("car_id", carID).Debug("Editor session opened")
	return plan, nil
}

// Touch replaces the session's draft and restarts its timer.
func (e *EditorSessions) Touch(carID string, plan models.MaintenancePlan) error {
	s, err := e.get(carID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	plan.CarID = carID
	if plan.ID == "" {
		plan.ID = s.plan.ID
	}
	s.plan = plan
	s.mu.Unlock()

	select {
	case s.touch <- struct{}{}:
	default:
	}
	return nil
}

// Save persists the session's draft now, if it is not empty.
func (e *EditorSessions) Save(ctx context.Context, carID string) (*models.MaintenancePlan, error) {
	s, err := e.get(carID)
	if err != nil {
		return nil, err
	}
	return e.save(ctx, s)
}

// Close ends the session without saving.
func (e *EditorSessions) Close(carID string) bool {
	e.mu.Lock()
	s, ok := e.sessions[carID]
	if ok {
		delete(e.sessions, carID)
	}
	e.mu.Unlock()

	if ok {
		close(s.done)
		e.logger.WithField("car_id", carID).Debug("Editor session closed")
	}
	return ok
}

// IsOpen reports whether the car has an editor session.
func (e *EditorSessions) IsOpen(carID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.sessions[carID]
	return ok
}

// CloseAll ends every session and waits for their goroutines.
func (e *EditorSessions) CloseAll() {
	e.mu.Lock()
	sessions := e.sessions
	e.sessions = make(map[string]*editorSession)
	e.mu.Unlock()

	for _, s := range sessions {
		close(s.done)
	}
	e.wg.Wait()
}

func (e *EditorSessions) get(carID string) (*editorSession, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[carID]
	if !ok {
		return nil, notFound("editor session for car", carID)
	}
	return s, nil
}

func (e *EditorSessions) run(s *editorSession) {
	defer e.wg.Done()

	timer := time.NewTimer(e.interval)
	defer timer.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-s.touch:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(e.interval)
		case <-timer.C:
			ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
			if _, err := e.save(ctx, s); err != nil {
				e.logger.WithError(err).WithField("car_id", s.carID).Warn("Autosave failed")
			}
			cancel()
			timer.Reset(e.interval)
		}
	}
}

// save writes the draft and keeps the stored id so later saves upsert the
// same plan. Empty drafts are skipped.
func (e *EditorSessions) save(ctx context.Context, s *editorSession) (*models.MaintenancePlan, error) {
	plan := s.snapshot()
	if plan.IsEmpty() {
		return nil, nil
	}

	saved, err := e.saver.SaveDraft(ctx, plan)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.plan.ID == "" || s.plan.ID == saved.ID {
		s.plan.ID = saved.ID
		s.plan.CreatedAt = saved.CreatedAt
	}
	s.mu.Unlock()
	return saved, nil
}

func (s *editorSession) snapshot() models.MaintenancePlan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plan
}
