package repository_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/ups-tracking/ups-api/internal/entity"
	"github.com/ups-tracking/ups-api/internal/repository"
	"github.com/ups-tracking/ups-api/internal/service"
	"github.com/ups-tracking/ups-api/pkg/logger"
	"github.com/ups-tracking/ups-api/pkg/metric"
	"github.com/ups-tracking/ups-api/pkg/storage/mongo"
	"github.com/ups-tracking/ups-api/pkg/storage/postgres"
	"github.com/ups-tracking/ups-api/pkg/storage/postgres/transaction"
)

func skipUnlessIntegration(t *testing.T) {
	t.Helper()
	if os.Getenv("INTEGRATION_TEST") == "" {
		t.Skip("set INTEGRATION_TEST=1 to run container-backed store tests")
	}
}

// StoreSuite runs the same contract against every ShipmentStore backend.
type StoreSuite struct {
	suite.Suite

	store    service.ShipmentStore
	teardown func()
	setup    func(ctx context.Context) (service.ShipmentStore, func(), error)
}

func (s *StoreSuite) SetupSuite() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	store, teardown, err := s.setup(ctx)
	s.Require().NoError(err)
	s.store = store
	s.teardown = teardown
}

func (s *StoreSuite) TearDownSuite() {
	if s.teardown != nil {
		s.teardown()
	}
}

func (s *StoreSuite) newShipment(trackingNumber string) *entity.Shipment {
	return entity.NewShipment(entity.CreateShipmentInput{
		Sender:      "Alice",
		Recipient:   "Bob",
		Origin:      "NYC",
		Destination: "LA",
	}, trackingNumber, nil)
}

func (s *StoreSuite) TestCreateAndRead() {
	ctx := context.Background()

	image := "https://cdn.example.com/shipments/a.png"
	in := s.newShipment("UPS-100001")
	in.Image = &image

	created, err := s.store.Create(ctx, in)
	s.Require().NoError(err)
	s.NotEmpty(created.ID)
	s.Equal(entity.StatusPending, created.Status)
	s.Equal([]string{}, created.AdditionalImages)
	s.False(created.CreatedAt.IsZero())

	byID, err := s.store.GetByID(ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(created.TrackingNumber, byID.TrackingNumber)
	s.Require().NotNil(byID.Image)
	s.Equal(image, *byID.Image)

	byCode, err := s.store.GetByTrackingNumber(ctx, "UPS-100001")
	s.Require().NoError(err)
	s.Equal(created.ID, byCode.ID)

	exists, err := s.store.ExistsByTrackingNumber(ctx, "UPS-100001")
	s.Require().NoError(err)
	s.True(exists)

	exists, err = s.store.ExistsByTrackingNumber(ctx, "UPS-999998")
	s.Require().NoError(err)
	s.False(exists)
}

func (s *StoreSuite) TestDuplicateTrackingNumber() {
	ctx := context.Background()

	_, err := s.store.Create(ctx, s.newShipment("UPS-100002"))
	s.Require().NoError(err)

	_, err = s.store.Create(ctx, s.newShipment("UPS-100002"))
	s.Require().ErrorIs(err, entity.ErrDuplicateKey)
}

func (s *StoreSuite) TestNotFound() {
	ctx := context.Background()

	_, err := s.store.GetByID(ctx, "not-an-id")
	s.ErrorIs(err, entity.ErrDataNotFound)

	_, err = s.store.GetByTrackingNumber(ctx, "UPS-000000")
	s.ErrorIs(err, entity.ErrDataNotFound)

	_, err = s.store.AppendImage(ctx, "not-an-id", "https://cdn/x.png")
	s.ErrorIs(err, entity.ErrDataNotFound)

	_, err = s.store.UpdateStatus(ctx, "not-an-id", entity.StatusPending, entity.StatusDelivered)
	s.ErrorIs(err, entity.ErrDataNotFound)
}

func (s *StoreSuite) TestConcurrentAppendImage() {
	ctx := context.Background()
	const appends = 10

	created, err := s.store.Create(ctx, s.newShipment("UPS-100003"))
	s.Require().NoError(err)

	var wg sync.WaitGroup
	for i := range appends {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.AppendImage(ctx, created.ID, "https://cdn/"+string(rune('a'+i))+".png")
			s.NoError(err)
		}()
	}
	wg.Wait()

	got, err := s.store.GetByID(ctx, created.ID)
	s.Require().NoError(err)
	s.Len(got.AdditionalImages, appends)
	s.Nil(got.Image)
}

func (s *StoreSuite) TestUpdateStatusCompareAndSet() {
	ctx := context.Background()

	created, err := s.store.Create(ctx, s.newShipment("UPS-100004"))
	s.Require().NoError(err)

	updated, err := s.store.UpdateStatus(ctx, created.ID, entity.StatusPending, entity.StatusInTransit)
	s.Require().NoError(err)
	s.Equal(entity.StatusInTransit, updated.Status)
	s.False(updated.UpdatedAt.Before(created.UpdatedAt))

	_, err = s.store.UpdateStatus(ctx, created.ID, entity.StatusPending, entity.StatusDelivered)
	s.Require().ErrorIs(err, entity.ErrStatusConflict)
}

func (s *StoreSuite) TestList() {
	ctx := context.Background()

	older, err := s.store.Create(ctx, s.newShipment("UPS-100005"))
	s.Require().NoError(err)
	newer, err := s.store.Create(ctx, s.newShipment("UPS-100006"))
	s.Require().NoError(err)

	all, err := s.store.List(ctx)
	s.Require().NoError(err)

	pos := make(map[string]int, len(all))
	for i, sh := range all {
		pos[sh.ID] = i
	}
	s.Require().Contains(pos, older.ID)
	s.Require().Contains(pos, newer.ID)
	s.Less(pos[older.ID], pos[newer.ID], "list must return shipments oldest first")
}

func TestMongoShipmentRepository(t *testing.T) {
	skipUnlessIntegration(t)

	suite.Run(t, &StoreSuite{setup: func(ctx context.Context) (service.ShipmentStore, func(), error) {
		container, err := mongodb.Run(ctx, "mongo:7")
		if err != nil {
			return nil, nil, err
		}

		uri, err := container.ConnectionString(ctx)
		if err != nil {
			_ = container.Terminate(context.Background())
			return nil, nil, err
		}

		db, err := mongo.NewMongo(ctx, uri, "ups_test", logger.NewNop())
		if err != nil {
			_ = container.Terminate(context.Background())
			return nil, nil, err
		}

		repo := repository.NewMongoShipmentRepository(db, "shipments")
		if err = repo.EnsureIndexes(ctx); err != nil {
			return nil, nil, err
		}

		return repo, func() {
			_ = db.Close(context.Background())
			_ = container.Terminate(context.Background())
		}, nil
	}})
}

func TestPostgresShipmentRepository(t *testing.T) {
	skipUnlessIntegration(t)

	suite.Run(t, &StoreSuite{setup: func(ctx context.Context) (service.ShipmentStore, func(), error) {
		container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
			tcpostgres.WithDatabase("ups"),
			tcpostgres.WithUsername("ups"),
			tcpostgres.WithPassword("ups"),
			tcpostgres.BasicWaitStrategies(),
		)
		if err != nil {
			return nil, nil, err
		}

		dsn, err := container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			_ = container.Terminate(context.Background())
			return nil, nil, err
		}

		log := logger.NewNop()
		db, err := postgres.NewPostgres(ctx, dsn, log)
		if err != nil {
			_ = container.Terminate(context.Background())
			return nil, nil, err
		}

		if err = repository.Migrate(ctx, db.DB(), log); err != nil {
			return nil, nil, err
		}

		txManager, err := transaction.NewManager(db, log, metric.NewFactory().Transaction())
		if err != nil {
			return nil, nil, err
		}

		return repository.NewPostgresShipmentRepository(db, txManager), func() {
			db.Close()
			_ = container.Terminate(context.Background())
		}, nil
	}})
}
