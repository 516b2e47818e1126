package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleetmasterpro/internal/auth"
	"github.com/ukydev/fleetmasterpro/internal/db"
	"github.com/ukydev/fleetmasterpro/internal/fleet"
	"github.com/ukydev/fleetmasterpro/internal/middleware"
	"github.com/ukydev/fleetmasterpro/internal/models"
)

// Dependencies are the services the API is built from.
type Dependencies struct {
	Store       db.Store
	Backend     string
	Auth        *auth.Service
	Cars        *fleet.CarService
	Alerts      *fleet.AlertManager
	Plans       *fleet.PlanBuilder
	Sessions    *fleet.EditorSessions
	Status      *fleet.StatusCalculator
	Records     *fleet.ServiceRecordService
	Shops       *fleet.ShopService
	Regulations *fleet.RegulationService
	Reconciler  *fleet.Reconciler
	Logger      log.FieldLogger
	MainAppURL  string
	// RateLimit is the number of requests allowed per client per minute;
	// zero disables limiting.
	RateLimit int
}

// NewRouter wires every route behind request logging, rate limiting,
// hand-off and CSRF checks. API routes also require a valid token.
func NewRouter(deps Dependencies) http.Handler {
	authMW := middleware.NewAuthenticator(deps.Auth, deps.Logger)
	perm := func(p models.Permission, fn http.HandlerFunc) http.Handler {
		return authMW.RequirePermission(p)(fn)
	}

	system := NewSystemHandler(deps.Store, deps.Backend, deps.Logger)
	authH := NewAuthHandler(deps.Auth, deps.Store, deps.Logger, deps.MainAppURL)
	cars := NewCarHandler(deps.Cars, deps.Status, deps.Plans, deps.Logger)
	alerts := NewAlertHandler(deps.Alerts, deps.Logger)
	plans := NewPlanHandler(deps.Plans, deps.Cars, deps.Sessions, deps.Reconciler, deps.Logger)
	records := NewRecordHandler(deps.Records, deps.Logger)
	shops := NewShopHandler(deps.Shops, deps.Logger)
	regs := NewRegulationHandler(deps.Regulations, deps.Logger)

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(system.NotFound)
	r.HandleFunc("/health", system.Health).Methods(http.MethodGet)
	r.HandleFunc(middleware.LoginPath, system.Login).Methods(http.MethodGet)
	r.Handle("/", authMW.Authenticate(http.HandlerFunc(system.Index))).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(authMW.Authenticate)

	api.HandleFunc("/auth/login", authH.Login).Methods(http.MethodPost)
	api.HandleFunc("/auth/register", authH.Register).Methods(http.MethodPost)
	api.HandleFunc("/auth/profile", authH.GetProfile).Methods(http.MethodGet)
	api.HandleFunc("/auth/profile", authH.UpdateProfile).Methods(http.MethodPut)
	api.HandleFunc("/auth/change-password", authH.ChangePassword).Methods(http.MethodPost)

	api.Handle("/cars", perm(models.PermViewCars, cars.List)).Methods(http.MethodGet)
	api.Handle("/cars", perm(models.PermManageCars, cars.Create)).Methods(http.MethodPost)
	api.Handle("/cars/{id}", perm(models.PermViewCars, cars.Get)).Methods(http.MethodGet)
	api.Handle("/cars/{id}/mileage", perm(models.PermUpdateMileage, cars.UpdateMileage)).Methods(http.MethodPut)
	api.Handle("/cars/{id}/status", perm(models.PermViewCars, cars.Status)).Methods(http.MethodGet)
	api.Handle("/cars/{id}/due-items", perm(models.PermViewPlans, cars.DueItems)).Methods(http.MethodGet)
	api.Handle("/cars/{id}/regulations", perm(models.PermViewCars, regs.ForCar)).Methods(http.MethodGet)
	api.Handle("/cars/{id}/regulations", perm(models.PermManageCars, regs.SetForCar)).Methods(http.MethodPut)
	api.Handle("/cars/{id}/regulations", perm(models.PermManageCars, regs.ResetForCar)).Methods(http.MethodDelete)
	api.Handle("/regulations", perm(models.PermViewCars, regs.Defaults)).Methods(http.MethodGet)

	api.Handle("/alerts", perm(models.PermViewAlerts, alerts.List)).Methods(http.MethodGet)
	api.Handle("/alerts", perm(models.PermReportAlerts, alerts.Create)).Methods(http.MethodPost)
	api.Handle("/alerts/{id}", perm(models.PermViewAlerts, alerts.Get)).Methods(http.MethodGet)
	api.Handle("/alerts/{id}/archive", perm(models.PermReportAlerts, alerts.Archive)).Methods(http.MethodPost)
	api.Handle("/alerts/{id}/restore", perm(models.PermReportAlerts, alerts.Restore)).Methods(http.MethodPost)
	api.Handle("/alerts/{id}/plan", perm(models.PermManagePlans, alerts.AddToPlan)).Methods(http.MethodPost)
	api.Handle("/alerts/{id}/plan", perm(models.PermManagePlans, alerts.RemoveFromPlan)).Methods(http.MethodDelete)

	api.Handle("/service-records", perm(models.PermViewCars, records.List)).Methods(http.MethodGet)
	api.Handle("/service-records", perm(models.PermManagePlans, records.Create)).Methods(http.MethodPost)

	api.Handle("/maintenance", perm(models.PermViewPlans, plans.ListMaintenance)).Methods(http.MethodGet)
	api.Handle("/maintenance/reconcile", perm(models.PermManageCars, plans.Reconcile)).Methods(http.MethodPost)
	api.Handle("/maintenance/{carId}/complete", perm(models.PermManagePlans, plans.Complete)).Methods(http.MethodPost)

	api.Handle("/maintenance-plans", perm(models.PermViewPlans, plans.List)).Methods(http.MethodGet)
	api.Handle("/maintenance-plans", perm(models.PermManagePlans, plans.SaveDraft)).Methods(http.MethodPost)
	api.Handle("/maintenance-plans/send", perm(models.PermManagePlans, plans.Send)).Methods(http.MethodPost)
	api.Handle("/maintenance-plans/editor/{carId}", perm(models.PermManagePlans, plans.OpenEditor)).Methods(http.MethodPost)
	api.Handle("/maintenance-plans/editor/{carId}", perm(models.PermManagePlans, plans.TouchEditor)).Methods(http.MethodPut)
	api.Handle("/maintenance-plans/editor/{carId}", perm(models.PermManagePlans, plans.CloseEditor)).Methods(http.MethodDelete)
	api.Handle("/maintenance-plans/editor/{carId}/save", perm(models.PermManagePlans, plans.SaveEditor)).Methods(http.MethodPost)
	api.Handle("/maintenance-plans/{id}", perm(models.PermViewPlans, plans.Get)).Methods(http.MethodGet)

	api.Handle("/service-shops", perm(models.PermViewShops, shops.List)).Methods(http.MethodGet)
	api.Handle("/service-shops", perm(models.PermManageShops, shops.Create)).Methods(http.MethodPost)
	api.Handle("/service-shops/{id}", perm(models.PermManageShops, shops.Update)).Methods(http.MethodPut)
	api.Handle("/service-shops/{id}", perm(models.PermManageShops, shops.Delete)).Methods(http.MethodDelete)

	var h http.Handler = r
	h = middleware.CSRF(h)
	h = middleware.Handoff(deps.Auth, deps.Logger)(h)
	if deps.RateLimit > 0 {
		h = middleware.NewRateLimiter(deps.RateLimit, time.Minute).Middleware(h)
	}
	h = middleware.RequestLogger(deps.Logger, "/health")(h)
	return h
}
