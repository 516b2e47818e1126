// Command seed fills a running FleetMasterPro server with a demo fleet over
// the REST API.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleetmasterpro/internal/models"
)

var errConflict = errors.New("already exists")

// demoCar is a car plus the history and open reports it is seeded with.
type demoCar struct {
	Car     models.Car
	Records []models.ServiceRecord
	Alerts  []models.AlertInput
}

// Summary counts what a seed run created.
type Summary struct {
	Cars    int
	Records int
	Alerts  int
	Shops   int
	Skipped bool
}

type seeder struct {
	baseURL string
	client  *http.Client
	token   string
	csrf    string
	logger  log.FieldLogger
}

func newSeeder(baseURL, token string, logger log.FieldLogger) (*seeder, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &seeder{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second, Jar: jar},
		token:   token,
		logger:  logger,
	}, nil
}

// primeCSRF fetches the health page so the server issues a CSRF cookie.
func (s *seeder) primeCSRF(ctx context.Context) error {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return fmt.Errorf("invalid api url: %w", err)
	}
	u.Path = "/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("server unreachable: %w", err)
	}
	resp.Body.Close()

	for _, c := range s.client.Jar.Cookies(u) {
		if c.Name == "csrf_token" {
			s.csrf = c.Value
			return nil
		}
	}
	return errors.New("server did not issue a csrf token")
}

func (s *seeder) do(ctx context.Context, method, path string, body, out interface{}) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	if s.csrf != "" {
		req.Header.Set("X-CSRF-Token", s.csrf)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode == http.StatusConflict {
		return errConflict
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s failed with status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(data))
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func (s *seeder) authorizedPost(ctx context.Context, path string, body, out interface{}) error {
	return s.do(ctx, http.MethodPost, path, body, out)
}

// login registers the seed admin, or logs in when it already exists.
func (s *seeder) login(ctx context.Context, username, password string) error {
	var resp models.LoginResponse
	err := s.authorizedPost(ctx, "/auth/register", models.RegisterRequest{
		Username:  username,
		Email:     username + "@fleetmasterpro.local",
		Password:  password,
		FirstName: "Demo",
		LastName:  "Admin",
		Role:      models.RoleAdmin,
	}, &resp)
	if errors.Is(err, errConflict) {
		err = s.authorizedPost(ctx, "/auth/login", models.LoginRequest{Username: username, Password: password}, &resp)
	}
	if err != nil {
		return fmt.Errorf("failed to authenticate: %w", err)
	}
	s.token = resp.Token
	return nil
}

// seed creates the demo fleet unless the server already has cars.
func (s *seeder) seed(ctx context.Context, now time.Time) (Summary, error) {
	var summary Summary

	var existing []json.RawMessage
	if err := s.do(ctx, http.MethodGet, "/cars", nil, &existing); err != nil {
		return summary, err
	}
	if len(existing) > 0 {
		s.logger.WithField("cars", len(existing)).Info("Fleet already seeded, nothing to do")
		summary.Skipped = true
		return summary, nil
	}

	for _, shop := range demoShops() {
		if err := s.authorizedPost(ctx, "/service-shops", shop, nil); err != nil {
			return summary, fmt.Errorf("failed to create shop %q: %w", shop.Name, err)
		}
		summary.Shops++
	}

	for _, dc := range demoFleet(now) {
		var car models.Car
		if err := s.authorizedPost(ctx, "/cars", dc.Car, &car); err != nil {
			return summary, fmt.Errorf("failed to create car %s: %w", dc.Car.DisplayName(), err)
		}
		summary.Cars++

		for _, rec := range dc.Records {
			rec.CarID = car.ID
			if err := s.authorizedPost(ctx, "/service-records", rec, nil); err != nil {
				return summary, fmt.Errorf("failed to add service record: %w", err)
			}
			summary.Records++
		}
		for _, alert := range dc.Alerts {
			alert.CarID = car.ID
			if err := s.authorizedPost(ctx, "/alerts", alert, nil); err != nil {
				return summary, fmt.Errorf("failed to report alert: %w", err)
			}
			summary.Alerts++
		}

		s.logger.WithFields(log.Fields{
			"car_id":  car.ID,
			"car":     car.DisplayName(),
			"mileage": car.Mileage,
		}).Info("Created car")
	}
	return summary, nil
}

func demoShops() []models.ServiceShop {
	return []models.ServiceShop{
		{Name: "Northside Auto Service", Contacts: "+1 555 0100, service@northside.example", Rating: 5},
		{Name: "QuickLube Express", Contacts: "+1 555 0142", Rating: 4},
		{Name: "Brake & Tire Center", Contacts: "front desk: +1 555 0177", Rating: 3},
	}
}

func demoFleet(now time.Time) []demoCar {
	monthsAgo := func(n int) time.Time { return now.AddDate(0, -n, 0) }
	return []demoCar{
		{
			Car: models.Car{Brand: "Toyota", Model: "Camry", Year: 2018, PlateNumber: "FMP-101", Mileage: 85000, Nickname: "Family car"},
			Records: []models.ServiceRecord{
				{Date: monthsAgo(8), Mileage: 75000, Operations: []string{"Engine oil and filter change", "Tire rotation"}, Cost: 140, ServiceProvider: "QuickLube Express"},
			},
			Alerts: []models.AlertInput{
				{Description: "Squeaking when braking at low speed", Location: "brakes", Mileage: 84800, Type: models.AlertTypeProblem, Priority: models.AlertPriorityCritical},
				{Description: "Wipers leave streaks", Location: "body", Mileage: 84950, Type: models.AlertTypeRecommendation, Priority: models.AlertPriorityCanWait},
			},
		},
		{
			Car: models.Car{Brand: "Ford", Model: "Transit", Year: 2016, PlateNumber: "FMP-202", Mileage: 142000},
			Records: []models.ServiceRecord{
				{Date: monthsAgo(14), Mileage: 121000, Operations: []string{"Engine oil and filter change"}, Cost: 95, ServiceProvider: "Northside Auto Service"},
			},
			Alerts: []models.AlertInput{
				{Description: "Check engine light comes on intermittently", Location: "engine", Mileage: 141500, Type: models.AlertTypeProblem, Priority: models.AlertPriorityUnclear},
			},
		},
		{
			Car: models.Car{Brand: "Tesla", Model: "Model 3", Year: 2022, PlateNumber: "FMP-303", Mileage: 31000, Nickname: "City runner"},
		},
	}
}

func main() {
	apiURL := os.Getenv("API_BASE_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080/api"
	}
	username := os.Getenv("SEED_USERNAME")
	if username == "" {
		username = "demo-admin"
	}
	password := os.Getenv("SEED_PASSWORD")
	if password == "" {
		password = "demo-password"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	s, err := newSeeder(apiURL, os.Getenv("SEED_AUTH_TOKEN"), log.StandardLogger())
	if err != nil {
		log.WithError(err).Fatal("Failed to create seeder")
	}
	if err := s.primeCSRF(ctx); err != nil {
		log.WithError(err).Fatal("Failed to reach server")
	}
	if s.token == "" {
		if err := s.login(ctx, username, password); err != nil {
			log.WithError(err).Fatal("Failed to sign in")
		}
	}

	summary, err := s.seed(ctx, time.Now().UTC())
	if err != nil {
		log.WithError(err).Fatal("Seeding failed")
	}
	log.WithFields(log.Fields{
		"api_url": apiURL,
		"cars":    summary.Cars,
		"records": summary.Records,
		"alerts":  summary.Alerts,
		"shops":   summary.Shops,
	}).Info("Demo data loaded")
}
