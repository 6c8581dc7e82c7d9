package httpt_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ups-tracking/ups-api/internal/config"
	"github.com/ups-tracking/ups-api/internal/entity"
	httpt "github.com/ups-tracking/ups-api/internal/transport/http"
	mock_httpt "github.com/ups-tracking/ups-api/internal/transport/http/mock"
	"github.com/ups-tracking/ups-api/pkg/logger"
	mock_metric "github.com/ups-tracking/ups-api/pkg/metric/mock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testHTTPConfig() *config.HTTP {
	return &config.HTTP{
		MaxMultipartBytes: 1 << 20,
		MaxImageBytes:     1 << 10,
		CORS: config.CORS{
			AllowOrigins: []string{"http://localhost:3000", "https://ups-chi.vercel.app"},
			AllowMethods: []string{"GET", "POST", "PATCH", "PUT", "DELETE"},
			AllowHeaders: []string{"Content-Type"},
			MaxAge:       time.Hour,
		},
	}
}

func newTestHandler(t *testing.T) (*mock_httpt.MockShipmentService, http.Handler) {
	t.Helper()

	ctrl := gomock.NewController(t)
	svc := mock_httpt.NewMockShipmentService(ctrl)
	metrics := mock_metric.NewMockHTTP(ctrl)
	metrics.EXPECT().Request(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()
	metrics.EXPECT().SlowRequest(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()

	h := httpt.NewShipmentHandler(svc, testHTTPConfig(), logger.NewNop(), metrics)
	return svc, h.Engine()
}

func pendingShipment(in entity.CreateShipmentInput) *entity.Shipment {
	now := time.Now().UTC()
	s := entity.NewShipment(in, "UPS-482913", nil)
	s.ID = uuid.NewString()
	s.CreatedAt = now
	s.UpdatedAt = now
	return s
}

func multipartBody(t *testing.T, fields map[string]string, fileName string, file []byte) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if fileName != "" {
		part, err := w.CreateFormFile("image", fileName)
		require.NoError(t, err)
		_, err = part.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestRootAndHealth(t *testing.T) {
	_, h := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "UPS Backend Running ✅", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCreateShipmentHandler(t *testing.T) {
	input := entity.CreateShipmentInput{Sender: "A", Recipient: "B", Origin: "X", Destination: "Y"}

	testCases := []struct {
		desc        string
		request     func(t *testing.T) *http.Request
		mocks       func(svc *mock_httpt.MockShipmentService)
		wantStatus  int
		checkBody   func(t *testing.T, body map[string]any)
	}{
		{
			desc: "JSON_NoImage_Created",
			request: func(t *testing.T) *http.Request {
				req := httptest.NewRequest(http.MethodPost, "/api/shipments",
					strings.NewReader(`{"sender":"A","recipient":"B","origin":"X","destination":"Y"}`))
				req.Header.Set("Content-Type", "application/json")
				return req
			},
			mocks: func(svc *mock_httpt.MockShipmentService) {
				svc.EXPECT().Create(gomock.Any(), input, (*entity.Image)(nil)).
					Return(pendingShipment(input), nil).Times(1)
			},
			wantStatus: http.StatusCreated,
			checkBody: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "pending", body["status"])
				assert.Nil(t, body["image"])
				assert.Regexp(t, `^UPS-\d{6}$`, body["trackingNumber"])
				assert.Equal(t, body["id"], body["_id"])
				assert.Equal(t, []any{}, body["additionalImages"])
			},
		},
		{
			desc: "Multipart_WithImage_Created",
			request: func(t *testing.T) *http.Request {
				body, contentType := multipartBody(t, map[string]string{
					"sender": "A", "recipient": "B", "origin": "X", "destination": "Y",
				}, "label.png", []byte("\x89PNG\r\n\x1a\n"))
				req := httptest.NewRequest(http.MethodPost, "/api/shipments", body)
				req.Header.Set("Content-Type", contentType)
				return req
			},
			mocks: func(svc *mock_httpt.MockShipmentService) {
				svc.EXPECT().Create(gomock.Any(), input, gomock.Not(gomock.Nil())).
					DoAndReturn(func(_ context.Context, in entity.CreateShipmentInput, img *entity.Image) (*entity.Shipment, error) {
						assert.Equal(t, "label.png", img.Filename)
						data, err := io.ReadAll(img.Reader)
						require.NoError(t, err)
						assert.Equal(t, []byte("\x89PNG\r\n\x1a\n"), data)

						s := pendingShipment(in)
						url := "https://cdn.example.com/shipments/label.png"
						s.Image = &url
						return s, nil
					}).Times(1)
			},
			wantStatus: http.StatusCreated,
			checkBody: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "https://cdn.example.com/shipments/label.png", body["image"])
			},
		},
		{
			desc: "Multipart_WithoutImage_Created",
			request: func(t *testing.T) *http.Request {
				body, contentType := multipartBody(t, map[string]string{
					"sender": "A", "recipient": "B", "origin": "X", "destination": "Y",
				}, "", nil)
				req := httptest.NewRequest(http.MethodPost, "/api/shipments", body)
				req.Header.Set("Content-Type", contentType)
				return req
			},
			mocks: func(svc *mock_httpt.MockShipmentService) {
				svc.EXPECT().Create(gomock.Any(), input, (*entity.Image)(nil)).
					Return(pendingShipment(input), nil).Times(1)
			},
			wantStatus: http.StatusCreated,
		},
		{
			desc: "ImageTooLarge",
			request: func(t *testing.T) *http.Request {
				body, contentType := multipartBody(t, map[string]string{
					"sender": "A", "recipient": "B", "origin": "X", "destination": "Y",
				}, "big.png", bytes.Repeat([]byte{0xAB}, 4<<10))
				req := httptest.NewRequest(http.MethodPost, "/api/shipments", body)
				req.Header.Set("Content-Type", contentType)
				return req
			},
			mocks:      func(*mock_httpt.MockShipmentService) {},
			wantStatus: http.StatusBadRequest,
			checkBody: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "Image is too large", body["error"])
			},
		},
		{
			desc: "MissingField",
			request: func(t *testing.T) *http.Request {
				req := httptest.NewRequest(http.MethodPost, "/api/shipments",
					strings.NewReader(`{"sender":"A","recipient":"B","origin":"X"}`))
				req.Header.Set("Content-Type", "application/json")
				return req
			},
			mocks: func(svc *mock_httpt.MockShipmentService) {
				svc.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(nil, fmt.Errorf("service.Create: %w: destination", entity.ErrMissingField)).Times(1)
			},
			wantStatus: http.StatusBadRequest,
			checkBody: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "All fields are required: destination", body["error"])
			},
		},
		{
			desc: "MalformedJSON",
			request: func(t *testing.T) *http.Request {
				req := httptest.NewRequest(http.MethodPost, "/api/shipments", strings.NewReader(`{"sender":`))
				req.Header.Set("Content-Type", "application/json")
				return req
			},
			mocks:      func(*mock_httpt.MockShipmentService) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			desc: "UploadFailed",
			request: func(t *testing.T) *http.Request {
				body, contentType := multipartBody(t, map[string]string{
					"sender": "A", "recipient": "B", "origin": "X", "destination": "Y",
				}, "label.png", []byte("png"))
				req := httptest.NewRequest(http.MethodPost, "/api/shipments", body)
				req.Header.Set("Content-Type", contentType)
				return req
			},
			mocks: func(svc *mock_httpt.MockShipmentService) {
				svc.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(nil, entity.ErrUploadFailed).Times(1)
			},
			wantStatus: http.StatusInternalServerError,
		},
		{
			desc: "GenerationExhausted",
			request: func(t *testing.T) *http.Request {
				req := httptest.NewRequest(http.MethodPost, "/api/shipments",
					strings.NewReader(`{"sender":"A","recipient":"B","origin":"X","destination":"Y"}`))
				req.Header.Set("Content-Type", "application/json")
				return req
			},
			mocks: func(svc *mock_httpt.MockShipmentService) {
				svc.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(nil, entity.ErrGenerationExhausted).Times(1)
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			svc, h := newTestHandler(t)
			tc.mocks(svc)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, tc.request(t))

			assert.Equal(t, tc.wantStatus, rec.Code, rec.Body.String())
			if tc.checkBody != nil {
				tc.checkBody(t, decode(t, rec))
			}
		})
	}
}

func TestAddImageHandler(t *testing.T) {
	id := uuid.NewString()

	testCases := []struct {
		desc       string
		withFile   bool
		mocks      func(svc *mock_httpt.MockShipmentService)
		wantStatus int
		wantBody   string
	}{
		{
			desc:     "Success",
			withFile: true,
			mocks: func(svc *mock_httpt.MockShipmentService) {
				svc.EXPECT().AttachImage(gomock.Any(), id, gomock.Any()).
					Return("https://cdn.example.com/shipments/box.jpg", nil).Times(1)
			},
			wantStatus: http.StatusOK,
			wantBody:   `{"message":"Image added","url":"https://cdn.example.com/shipments/box.jpg"}`,
		},
		{
			desc:       "MissingFile",
			mocks:      func(*mock_httpt.MockShipmentService) {},
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"Image file is required"}`,
		},
		{
			desc:     "NotFound",
			withFile: true,
			mocks: func(svc *mock_httpt.MockShipmentService) {
				svc.EXPECT().AttachImage(gomock.Any(), id, gomock.Any()).
					Return("", fmt.Errorf("service.AttachImage: %w", entity.ErrDataNotFound)).Times(1)
			},
			wantStatus: http.StatusNotFound,
			wantBody:   `{"error":"Shipment not found"}`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			svc, h := newTestHandler(t)
			tc.mocks(svc)

			fileName := ""
			if tc.withFile {
				fileName = "box.jpg"
			}
			body, contentType := multipartBody(t, nil, fileName, []byte{0xFF, 0xD8, 0xFF})
			req := httptest.NewRequest(http.MethodPost, "/api/shipments/"+id+"/add-image", body)
			req.Header.Set("Content-Type", contentType)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.JSONEq(t, tc.wantBody, rec.Body.String())
		})
	}
}

func TestChangeStatusHandler(t *testing.T) {
	id := uuid.NewString()

	testCases := []struct {
		desc       string
		body       string
		mocks      func(svc *mock_httpt.MockShipmentService)
		wantStatus int
	}{
		{
			desc: "Success",
			body: `{"status":"in transit"}`,
			mocks: func(svc *mock_httpt.MockShipmentService) {
				s := pendingShipment(entity.CreateShipmentInput{Sender: "A", Recipient: "B", Origin: "X", Destination: "Y"})
				s.Status = entity.StatusInTransit
				svc.EXPECT().ChangeStatus(gomock.Any(), id, entity.StatusInTransit).Return(s, nil).Times(1)
			},
			wantStatus: http.StatusOK,
		},
		{
			desc: "InvalidStatus",
			body: `{"status":"lost"}`,
			mocks: func(svc *mock_httpt.MockShipmentService) {
				svc.EXPECT().ChangeStatus(gomock.Any(), id, entity.Status("lost")).
					Return(nil, entity.ErrInvalidStatus).Times(1)
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			desc: "IllegalTransition",
			body: `{"status":"pending"}`,
			mocks: func(svc *mock_httpt.MockShipmentService) {
				svc.EXPECT().ChangeStatus(gomock.Any(), id, entity.StatusPending).
					Return(nil, entity.ErrIllegalTransition).Times(1)
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			desc: "NotFound",
			body: `{"status":"delivered"}`,
			mocks: func(svc *mock_httpt.MockShipmentService) {
				svc.EXPECT().ChangeStatus(gomock.Any(), id, entity.StatusDelivered).
					Return(nil, entity.ErrDataNotFound).Times(1)
			},
			wantStatus: http.StatusNotFound,
		},
		{
			desc: "Conflict",
			body: `{"status":"delivered"}`,
			mocks: func(svc *mock_httpt.MockShipmentService) {
				svc.EXPECT().ChangeStatus(gomock.Any(), id, entity.StatusDelivered).
					Return(nil, entity.ErrStatusConflict).Times(1)
			},
			wantStatus: http.StatusConflict,
		},
		{
			desc: "Timeout",
			body: `{"status":"delivered"}`,
			mocks: func(svc *mock_httpt.MockShipmentService) {
				svc.EXPECT().ChangeStatus(gomock.Any(), id, entity.StatusDelivered).
					Return(nil, context.DeadlineExceeded).Times(1)
			},
			wantStatus: http.StatusGatewayTimeout,
		},
		{
			desc:       "MalformedBody",
			body:       `status=delivered`,
			mocks:      func(*mock_httpt.MockShipmentService) {},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			svc, h := newTestHandler(t)
			tc.mocks(svc)

			req := httptest.NewRequest(http.MethodPatch, "/api/shipments/"+id+"/status", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tc.wantStatus, rec.Code, rec.Body.String())
		})
	}
}

func TestReadHandlers(t *testing.T) {
	shipment := pendingShipment(entity.CreateShipmentInput{Sender: "A", Recipient: "B", Origin: "X", Destination: "Y"})

	t.Run("List", func(t *testing.T) {
		svc, h := newTestHandler(t)
		svc.EXPECT().GetAll(gomock.Any()).Return([]*entity.Shipment{shipment}, nil).Times(1)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/shipments", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var out []map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		require.Len(t, out, 1)
		assert.Equal(t, shipment.TrackingNumber, out[0]["trackingNumber"])
	})

	t.Run("ListEmpty", func(t *testing.T) {
		svc, h := newTestHandler(t)
		svc.EXPECT().GetAll(gomock.Any()).Return([]*entity.Shipment{}, nil).Times(1)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/shipments", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})

	t.Run("Track", func(t *testing.T) {
		svc, h := newTestHandler(t)
		svc.EXPECT().GetByTrackingNumber(gomock.Any(), shipment.TrackingNumber).Return(shipment, nil).Times(1)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/shipments/track/"+shipment.TrackingNumber, nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, shipment.ID, decode(t, rec)["id"])
	})

	t.Run("TrackNotFound", func(t *testing.T) {
		svc, h := newTestHandler(t)
		svc.EXPECT().GetByTrackingNumber(gomock.Any(), "UPS-000000").Return(nil, entity.ErrDataNotFound).Times(1)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/shipments/track/UPS-000000", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("TrackPassesCodeVerbatim", func(t *testing.T) {
		svc, h := newTestHandler(t)
		svc.EXPECT().GetByTrackingNumber(gomock.Any(), " UPS-000000").Return(nil, entity.ErrDataNotFound).Times(1)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/shipments/track/%20UPS-000000", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("GetByID", func(t *testing.T) {
		svc, h := newTestHandler(t)
		svc.EXPECT().GetByID(gomock.Any(), shipment.ID).Return(shipment, nil).Times(1)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/shipments/"+shipment.ID, nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, shipment.TrackingNumber, decode(t, rec)["trackingNumber"])
	})

	t.Run("ListFailure", func(t *testing.T) {
		svc, h := newTestHandler(t)
		svc.EXPECT().GetAll(gomock.Any()).Return(nil, fmt.Errorf("db down")).Times(1)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/shipments", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"error":"Internal server error"}`, rec.Body.String())
	})
}

func TestCORS(t *testing.T) {
	_, h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/shipments", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPatch)
}
