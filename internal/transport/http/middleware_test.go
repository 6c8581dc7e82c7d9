package httpt_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ups-tracking/ups-api/internal/entity"
	httpt "github.com/ups-tracking/ups-api/internal/transport/http"
	mock_httpt "github.com/ups-tracking/ups-api/internal/transport/http/mock"
	"github.com/ups-tracking/ups-api/pkg/logger"
	mock_metric "github.com/ups-tracking/ups-api/pkg/metric/mock"
)

func TestRequestID(t *testing.T) {
	testCases := []struct {
		desc   string
		header string
	}{
		{desc: "Propagated", header: "req-42"},
		{desc: "Generated"},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			_, h := newTestHandler(t)

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			if tc.header != "" {
				req.Header.Set("X-Request-ID", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			got := rec.Header().Get("X-Request-ID")
			require.NotEmpty(t, got)
			if tc.header != "" {
				assert.Equal(t, tc.header, got)
			}
		})
	}
}

func TestAccessLog_RouteTemplate(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mock_httpt.NewMockShipmentService(ctrl)
	metrics := mock_metric.NewMockHTTP(ctrl)

	svc.EXPECT().GetByID(gomock.Any(), "abc").Return(nil, entity.ErrDataNotFound)
	metrics.EXPECT().Request(http.MethodGet, "/api/shipments/:id", http.StatusNotFound, gomock.Any()).Times(1)
	metrics.EXPECT().Request(http.MethodGet, "unmatched", http.StatusNotFound, gomock.Any()).Times(1)

	cfg := testHTTPConfig()
	cfg.SlowRequest = 0
	h := httpt.NewShipmentHandler(svc, cfg, logger.NewNop(), metrics).Engine()

	for _, path := range []string{"/api/shipments/abc", "/nowhere"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	}
}

func TestAccessLog_SlowRequest(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mock_httpt.NewMockShipmentService(ctrl)
	metrics := mock_metric.NewMockHTTP(ctrl)

	svc.EXPECT().GetAll(gomock.Any()).DoAndReturn(func(context.Context) ([]*entity.Shipment, error) {
		time.Sleep(5 * time.Millisecond)
		return []*entity.Shipment{}, nil
	})
	metrics.EXPECT().Request(http.MethodGet, "/api/shipments", http.StatusOK, gomock.Any()).Times(1)
	metrics.EXPECT().SlowRequest(http.MethodGet, "/api/shipments", http.StatusOK, gomock.Any()).Times(1)

	cfg := testHTTPConfig()
	cfg.SlowRequest = time.Millisecond
	h := httpt.NewShipmentHandler(svc, cfg, logger.NewNop(), metrics).Engine()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/shipments", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRecoverPanic(t *testing.T) {
	svc, h := newTestHandler(t)
	svc.EXPECT().GetByID(gomock.Any(), "boom").DoAndReturn(func(context.Context, string) (*entity.Shipment, error) {
		panic("store exploded")
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/shipments/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", decode(t, rec)["error"])
}
