package app_test

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/ups-tracking/ups-api/internal/entity"
	"github.com/ups-tracking/ups-api/pkg/kafka"
	"github.com/ups-tracking/ups-api/pkg/logger"
)

// DeploymentSuite exercises a running stack through its public surfaces:
// the REST API and the status update topic.
type DeploymentSuite struct {
	suite.Suite

	api      *http.Client
	baseURL  string
	scans    *kafkago.Writer
	deadline time.Duration
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (s *DeploymentSuite) SetupSuite() {
	s.baseURL = "http://" + net.JoinHostPort(envOr("APP_HOST", "localhost"), envOr("APP_PORT", "5005"))
	s.api = &http.Client{Timeout: 10 * time.Second}
	s.deadline = 30 * time.Second
	s.scans = kafka.NewWriter(kafka.WriterConfig{
		Brokers:      strings.Split(envOr("KAFKA_BROKERS", "localhost:9092"), ","),
		Topic:        envOr("KAFKA_TOPIC", "shipment.status-updates"),
		WriteTimeout: 5 * time.Second,
	}, logger.NewNop())

	s.Require().Eventually(func() bool {
		status, _ := s.call(http.MethodGet, "/health", nil, "")
		return status == http.StatusOK
	}, time.Minute, 2*time.Second, "deployment never became healthy")
}

func (s *DeploymentSuite) TearDownSuite() {
	if s.scans != nil {
		_ = s.scans.Close()
	}
}

func (s *DeploymentSuite) call(method, path string, body io.Reader, contentType string) (int, []byte) {
	req, err := http.NewRequestWithContext(context.Background(), method, s.baseURL+path, body)
	if err != nil {
		return 0, nil
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := s.api.Do(req)
	if err != nil {
		return 0, nil
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, payload
}

func (s *DeploymentSuite) shipment(method, path string, body io.Reader, contentType string, want int) entity.Shipment {
	t := s.T()
	t.Helper()

	status, payload := s.call(method, path, body, contentType)
	require.Equal(t, want, status, "body: %s", payload)

	var out entity.Shipment
	require.NoError(t, json.Unmarshal(payload, &out), "body: %s", payload)
	return out
}

func (s *DeploymentSuite) TestScanMovesShipmentInTransit() {
	t := s.T()

	form := url.Values{
		"sender":      {gofakeit.Name()},
		"recipient":   {gofakeit.Name()},
		"origin":      {gofakeit.City()},
		"destination": {gofakeit.City()},
	}
	created := s.shipment(http.MethodPost, "/api/shipments",
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", http.StatusCreated)

	require.NotEmpty(t, created.ID)
	require.Regexp(t, `^UPS-\d{6}$`, created.TrackingNumber)
	require.Equal(t, entity.StatusPending, created.Status)
	require.Equal(t, form.Get("sender"), created.Sender)

	scan, err := json.Marshal(entity.StatusUpdate{
		TrackingNumber: created.TrackingNumber,
		Status:         entity.StatusInTransit,
		Location:       gofakeit.City(),
		ScannedAt:      time.Now().UTC(),
	})
	require.NoError(t, err)
	require.NoError(t, s.scans.WriteMessages(context.Background(), kafkago.Message{
		Key:   []byte(created.TrackingNumber),
		Value: scan,
	}))

	require.Eventually(t, func() bool {
		status, payload := s.call(http.MethodGet, "/api/shipments/track/"+created.TrackingNumber, nil, "")
		var tracked entity.Shipment
		return status == http.StatusOK &&
			json.Unmarshal(payload, &tracked) == nil &&
			tracked.Status == entity.StatusInTransit
	}, s.deadline, time.Second, "scan was not applied")

	fetched := s.shipment(http.MethodGet, "/api/shipments/"+created.ID, nil, "", http.StatusOK)
	require.Equal(t, created.TrackingNumber, fetched.TrackingNumber)
	require.Equal(t, entity.StatusInTransit, fetched.Status)
}

func (s *DeploymentSuite) TestUnknownTrackingNumber() {
	status, payload := s.call(http.MethodGet, "/api/shipments/track/UPS-000000", nil, "")
	s.Require().Equal(http.StatusNotFound, status, "body: %s", payload)
	s.Require().JSONEq(`{"error":"Shipment not found"}`, string(payload))
}

func TestE2E(t *testing.T) {
	if os.Getenv("E2E_TEST") == "" {
		t.Skip("set E2E_TEST to run against a live deployment")
	}
	suite.Run(t, new(DeploymentSuite))
}
