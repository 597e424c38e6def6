package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/rs/zerolog"

	"github.com/hackgods/praxis-scheduling/internal/config"
	"github.com/hackgods/praxis-scheduling/internal/directory"
	"github.com/hackgods/praxis-scheduling/internal/logging"
)

type SimConfig struct {
	APIBaseURL    string
	Duration      time.Duration
	Workers       int
	BookingRatio  float64
	ConfirmRatio  float64
	ReminderRatio float64
	ReadRatio     float64
	// NewPatientRatio is the share of bookings made by unknown patients.
	NewPatientRatio float64
	DirectorySeed   uint64
}

// DataPool holds what workers pick from: known patients, reference data
// fetched from the API and the appointments booked so far.
type DataPool struct {
	Patients  []directory.Patient
	Doctors   []string
	Locations []string

	mu           sync.RWMutex
	appointments []booked
}

type booked struct {
	ID        string
	PatientID string
}

func (dp *DataPool) AddAppointment(b booked) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, b)
}

func (dp *DataPool) RandomAppointment(rng *rand.Rand) (booked, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return booked{}, false
	}
	return dp.appointments[rng.IntN(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, status int, err error) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case err == nil && status == http.StatusOK:
		atomic.AddInt64(&om.Success, 1)
	case err == nil && status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, lo, hi, p50, p95 time.Duration) {
	om.mu.Lock()
	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0, 0
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	lo = latencies[0]
	hi = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]
	return avg, lo, hi, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Lookup   OperationMetrics
	Booking  OperationMetrics
	Notify   OperationMetrics
	Confirm  OperationMetrics
	Reminder OperationMetrics
	ReadByID OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	logger  zerolog.Logger
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		errLogger := zerolog.New(os.Stderr)
		errLogger.Fatal().Err(err).Msg("config load error")
	}
	logger := logging.New(baseCfg.Env, baseCfg.LogLevel).With().Str("service", "simulate").Logger()

	cfg := loadConfig(baseCfg)
	if err := validateConfig(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("booking", cfg.BookingRatio).
		Float64("confirm", cfg.ConfirmRatio).
		Float64("reminder", cfg.ReminderRatio).
		Float64("read", cfg.ReadRatio).
		Msg("simulator starting")

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sim.pool, err = sim.loadDataPool(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("load data pool")
	}
	logger.Info().
		Int("patients", len(sim.pool.Patients)).
		Int("doctors", len(sim.pool.Doctors)).
		Int("locations", len(sim.pool.Locations)).
		Msg("data pool loaded")

	sim.Run()
	sim.PrintReport()
}

func loadConfig(base config.Config) SimConfig {
	cfg := SimConfig{
		APIBaseURL:      strings.TrimRight(getEnv("SIM_API_BASE_URL", "http://localhost:8080"), "/"),
		Duration:        getDuration("SIM_DURATION", 30*time.Second),
		Workers:         getInt("SIM_WORKERS", 10),
		BookingRatio:    getFloat("SIM_BOOKING_RATIO", 0.4),
		ConfirmRatio:    getFloat("SIM_CONFIRM_RATIO", 0.2),
		ReminderRatio:   getFloat("SIM_REMINDER_RATIO", 0.1),
		ReadRatio:       getFloat("SIM_READ_RATIO", 0.3),
		NewPatientRatio: getFloat("SIM_NEW_PATIENT_RATIO", 0.3),
		DirectorySeed:   base.DirectorySeed,
	}

	// Normalize ratios
	total := cfg.BookingRatio + cfg.ConfirmRatio + cfg.ReminderRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.ConfirmRatio /= total
		cfg.ReminderRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return errors.New("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return errors.New("SIM_DURATION must be > 0")
	}
	return nil
}

// loadDataPool rebuilds the synthetic directory from the shared seed, so the
// simulator knows the same returning patients as the server, and reads the
// reference data from the API.
func (s *Simulator) loadDataPool(ctx context.Context) (*DataPool, error) {
	dp := &DataPool{Patients: directory.Synthetic(s.config.DirectorySeed, time.Now()).Patients()}

	var doctors struct {
		Doctors []struct {
			ID string `json:"id"`
		} `json:"doctors"`
	}
	if err := s.getJSON(ctx, "/api/doctors", &doctors); err != nil {
		return nil, fmt.Errorf("load doctors: %w", err)
	}
	for _, d := range doctors.Doctors {
		dp.Doctors = append(dp.Doctors, d.ID)
	}

	var locations struct {
		Locations []struct {
			ID string `json:"id"`
		} `json:"locations"`
	}
	if err := s.getJSON(ctx, "/api/locations", &locations); err != nil {
		return nil, fmt.Errorf("load locations: %w", err)
	}
	for _, l := range locations.Locations {
		dp.Locations = append(dp.Locations, l.ID)
	}

	if len(dp.Patients) == 0 || len(dp.Doctors) == 0 || len(dp.Locations) == 0 {
		return nil, errors.New("empty reference data")
	}
	return dp, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.logger.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.logger.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	seed := uint64(time.Now().UnixNano()) + uint64(workerID)
	rng := rand.New(rand.NewPCG(seed, uint64(workerID)))
	faker := gofakeit.New(seed)

	for ctx.Err() == nil {
		r := rng.Float64()
		switch {
		case r < s.config.BookingRatio:
			s.doBooking(ctx, rng, faker)
		case r < s.config.BookingRatio+s.config.ConfirmRatio:
			s.doConfirm(ctx, rng)
		case r < s.config.BookingRatio+s.config.ConfirmRatio+s.config.ReminderRatio:
			s.doReminder(ctx, rng)
		default:
			s.doReadByID(ctx, rng)
		}
	}
}

// doBooking walks the booking wizard: lookup, book, then the confirmation
// notification. New patients are enrolled by the booking, so the server can
// address the notification to them too.
func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand, faker *gofakeit.Faker) {
	var fullName, dob string
	if rng.Float64() < s.config.NewPatientRatio {
		fullName = faker.FirstName() + " " + faker.LastName()
		dob = faker.DateRange(time.Date(1950, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2005, 12, 31, 0, 0, 0, 0, time.UTC)).Format("2006-01-02")
	} else {
		p := s.pool.Patients[rng.IntN(len(s.pool.Patients))]
		fullName = p.FirstName + " " + p.LastName
		dob = p.DateOfBirth
	}

	var lookup struct {
		PatientType string `json:"patientType"`
		Patient     *struct {
			ID string `json:"id"`
		} `json:"patient"`
	}
	status, latency, err := s.postJSON(ctx, "/api/patients/lookup", map[string]string{"fullName": fullName, "dateOfBirth": dob}, &lookup)
	s.metrics.Lookup.Record(latency, status, err)
	if err != nil || status != http.StatusOK {
		return
	}

	req := map[string]any{
		"patientType": lookup.PatientType,
		"doctorId":    s.pool.Doctors[rng.IntN(len(s.pool.Doctors))],
		"locationId":  s.pool.Locations[rng.IntN(len(s.pool.Locations))],
		"date":        time.Now().AddDate(0, 0, 1+rng.IntN(14)).Format("2006-01-02"),
		"time":        fmt.Sprintf("%02d:%02d", 8+rng.IntN(9), 30*rng.IntN(2)),
	}
	if lookup.Patient != nil {
		req["patientId"] = lookup.Patient.ID
	} else {
		req["patientData"] = map[string]string{
			"fullName":    fullName,
			"dateOfBirth": dob,
			"email":       faker.Email(),
			"phone":       faker.Phone(),
		}
	}

	var bookResp struct {
		Appointment struct {
			ID        string `json:"id"`
			PatientID string `json:"patientId"`
		} `json:"appointment"`
	}
	status, latency, err = s.postJSON(ctx, "/api/appointments/book", req, &bookResp)
	s.metrics.Booking.Record(latency, status, err)
	if err != nil || status != http.StatusOK {
		return
	}

	b := booked{ID: bookResp.Appointment.ID, PatientID: bookResp.Appointment.PatientID}
	s.pool.AddAppointment(b)

	status, latency, err = s.postJSON(ctx, "/api/notifications/send", map[string]string{
		"patientId":        b.PatientID,
		"appointmentId":    b.ID,
		"notificationType": "both",
	}, nil)
	s.metrics.Notify.Record(latency, status, err)
}

func (s *Simulator) doConfirm(ctx context.Context, rng *rand.Rand) {
	b, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}

	actions := []string{"confirmed", "confirmed", "declined", "rescheduled"}
	status, latency, err := s.postJSON(ctx, "/api/appointments/confirm", map[string]string{
		"appointmentId":      b.ID,
		"confirmationStatus": actions[rng.IntN(len(actions))],
	}, nil)
	s.metrics.Confirm.Record(latency, status, err)
}

func (s *Simulator) doReminder(ctx context.Context, rng *rand.Rand) {
	b, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}

	tiers := []string{"72h", "48h", "24h"}
	status, latency, err := s.postJSON(ctx, "/api/reminders/send", map[string]string{
		"patientId":     b.PatientID,
		"appointmentId": b.ID,
		"reminderType":  tiers[rng.IntN(len(tiers))],
	}, nil)
	s.metrics.Reminder.Record(latency, status, err)
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	b, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIBaseURL+"/api/appointments/"+b.ID, nil)
	resp, err := s.client.Do(req)
	latency := time.Since(start)

	status := 0
	if err == nil {
		status = resp.StatusCode
		resp.Body.Close()
	}
	s.metrics.ReadByID.Record(latency, status, err)
}

func (s *Simulator) postJSON(ctx context.Context, path string, body, out any) (int, time.Duration, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return 0, 0, err
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+path, bytes.NewReader(raw))
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return 0, latency, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, latency, fmt.Errorf("decode %s: %w", path, err)
		}
	}
	return resp.StatusCode, latency, nil
}

func (s *Simulator) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIBaseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Patient lookup", &s.metrics.Lookup)
	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Confirmation notice", &s.metrics.Notify)
	printOperationReport("Confirm", &s.metrics.Confirm)
	printOperationReport("Reminder", &s.metrics.Reminder)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, lo, hi, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), lo.Round(time.Millisecond), hi.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
