package upload_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/ups-tracking/ups-api/internal/entity"
	"github.com/ups-tracking/ups-api/internal/upload"
	mock_upload "github.com/ups-tracking/ups-api/internal/upload/mock"
	"github.com/ups-tracking/ups-api/pkg/logger"
	mock_metric "github.com/ups-tracking/ups-api/pkg/metric/mock"
	"github.com/ups-tracking/ups-api/pkg/objectstorage"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

type uploadMocks struct {
	storage *mock_upload.MockObjectStorage
	metrics *mock_metric.MockUpload
}

func TestCoordinator_Upload(t *testing.T) {
	errBucket := errors.New("googleapi: Error 403: forbidden")
	payload := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0xAB}, 5000)...)

	testCases := []struct {
		desc        string
		image       entity.Image
		folder      string
		opts        []upload.Option
		mocks       func(m uploadMocks)
		expected    string
		expectedErr error
	}{
		{
			desc:   "png into shipments",
			image:  entity.Image{Reader: bytes.NewReader(payload), Filename: "proof.PNG"},
			folder: "shipments",
			mocks: func(m uploadMocks) {
				m.storage.EXPECT().
					UploadStream(gomock.Any(), "shipments/key-1.png", "image/png", gomock.Any()).
					DoAndReturn(func(_ context.Context, key, _ string, r io.Reader) (*objectstorage.Object, error) {
						body, err := io.ReadAll(r)
						require.NoError(t, err)
						assert.Equal(t, payload, body)
						return &objectstorage.Object{
							Key:  key,
							URL:  "https://storage.googleapis.com/ups-images/" + key,
							Size: int64(len(body)),
						}, nil
					})
				m.metrics.EXPECT().Uploaded("shipments", int64(len(payload)), gomock.Any())
			},
			expected: "https://storage.googleapis.com/ups-images/shipments/key-1.png",
		},
		{
			desc:   "empty folder uses default",
			image:  entity.Image{Reader: bytes.NewReader(pngHeader)},
			folder: "",
			mocks: func(m uploadMocks) {
				m.storage.EXPECT().
					UploadStream(gomock.Any(), "shipments/key-1.png", "image/png", gomock.Any()).
					Return(&objectstorage.Object{Key: "shipments/key-1.png", URL: "https://cdn/shipments/key-1.png", Size: 10}, nil)
				m.metrics.EXPECT().Uploaded("shipments", int64(10), gomock.Any())
			},
			expected: "https://cdn/shipments/key-1.png",
		},
		{
			desc:   "unknown bytes keep filename extension",
			image:  entity.Image{Reader: strings.NewReader("\x00\x01\x02\x03binary"), Filename: "scan.HEIC"},
			folder: "/pod/",
			mocks: func(m uploadMocks) {
				m.storage.EXPECT().
					UploadStream(gomock.Any(), "pod/key-1.heic", "application/octet-stream", gomock.Any()).
					Return(&objectstorage.Object{Key: "pod/key-1.heic", URL: "https://cdn/pod/key-1.heic", Size: 10}, nil)
				m.metrics.EXPECT().Uploaded("pod", int64(10), gomock.Any())
			},
			expected: "https://cdn/pod/key-1.heic",
		},
		{
			desc:   "allow-list accepts image family",
			image:  entity.Image{Reader: bytes.NewReader(pngHeader)},
			folder: "shipments",
			opts:   []upload.Option{upload.WithAllowedTypes("image/*")},
			mocks: func(m uploadMocks) {
				m.storage.EXPECT().
					UploadStream(gomock.Any(), "shipments/key-1.png", "image/png", gomock.Any()).
					Return(&objectstorage.Object{Key: "shipments/key-1.png", URL: "https://cdn/shipments/key-1.png", Size: 10}, nil)
				m.metrics.EXPECT().Uploaded("shipments", int64(10), gomock.Any())
			},
			expected: "https://cdn/shipments/key-1.png",
		},
		{
			desc:   "allow-list rejects pdf before upload",
			image:  entity.Image{Reader: strings.NewReader("%PDF-1.7\n1 0 obj\n<< /Type /Catalog >>\nendobj\n"), Filename: "label.png"},
			folder: "shipments",
			opts:   []upload.Option{upload.WithAllowedTypes("image/*")},
			mocks: func(m uploadMocks) {
				m.metrics.EXPECT().Failed("shipments", "content_type")
			},
			expectedErr: entity.ErrUploadFailed,
		},
		{
			desc:   "allow-list exact type",
			image:  entity.Image{Reader: bytes.NewReader(pngHeader)},
			folder: "shipments",
			opts:   []upload.Option{upload.WithAllowedTypes(" image/jpeg ", "")},
			mocks: func(m uploadMocks) {
				m.metrics.EXPECT().Failed("shipments", "content_type")
			},
			expectedErr: entity.ErrUploadFailed,
		},
		{
			desc:   "storage failure",
			image:  entity.Image{Reader: bytes.NewReader(pngHeader)},
			folder: "shipments",
			mocks: func(m uploadMocks) {
				m.storage.EXPECT().
					UploadStream(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
					Return(nil, errBucket)
				m.metrics.EXPECT().Failed("shipments", "storage")
			},
			expectedErr: errBucket,
		},
		{
			desc:   "empty payload",
			image:  entity.Image{Reader: bytes.NewReader(nil)},
			folder: "shipments",
			mocks: func(m uploadMocks) {
				m.metrics.EXPECT().Failed("shipments", "empty")
			},
			expectedErr: entity.ErrUploadFailed,
		},
		{
			desc:   "nil reader",
			image:  entity.Image{},
			folder: "shipments",
			mocks: func(m uploadMocks) {
				m.metrics.EXPECT().Failed("shipments", "empty")
			},
			expectedErr: entity.ErrUploadFailed,
		},
		{
			desc:   "broken client stream",
			image:  entity.Image{Reader: iotest.ErrReader(io.ErrClosedPipe)},
			folder: "shipments",
			mocks: func(m uploadMocks) {
				m.metrics.EXPECT().Failed("shipments", "read")
			},
			expectedErr: io.ErrClosedPipe,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			m := uploadMocks{
				storage: mock_upload.NewMockObjectStorage(ctrl),
				metrics: mock_metric.NewMockUpload(ctrl),
			}
			tc.mocks(m)

			opts := append([]upload.Option{upload.WithKeyFunc(func() string { return "key-1" })}, tc.opts...)
			c, err := upload.NewCoordinator(m.storage, logger.NewNop(), m.metrics, opts...)
			require.NoError(t, err)

			url, err := c.Upload(context.Background(), tc.image, tc.folder)
			if tc.expectedErr != nil {
				require.ErrorIs(t, err, tc.expectedErr)
				require.ErrorIs(t, err, entity.ErrUploadFailed)
				assert.Empty(t, url)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, url)
		})
	}
}

func TestNewCoordinator_Validation(t *testing.T) {
	ctrl := gomock.NewController(t)

	_, err := upload.NewCoordinator(nil, logger.NewNop(), mock_metric.NewMockUpload(ctrl))
	require.Error(t, err)

	_, err = upload.NewCoordinator(mock_upload.NewMockObjectStorage(ctrl), logger.NewNop(),
		mock_metric.NewMockUpload(ctrl), upload.WithTimeout(0))
	require.Error(t, err)
}
