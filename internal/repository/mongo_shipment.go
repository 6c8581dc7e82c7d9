package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ups-tracking/ups-api/internal/entity"
	"github.com/ups-tracking/ups-api/internal/service"
	"github.com/ups-tracking/ups-api/pkg/storage/mongo"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

var _ service.ShipmentStore = (*MongoShipmentRepository)(nil)

type shipmentDocument struct {
	ID               bson.ObjectID `bson:"_id,omitempty"`
	TrackingNumber   string        `bson:"trackingNumber"`
	Sender           string        `bson:"sender"`
	Recipient        string        `bson:"recipient"`
	Origin           string        `bson:"origin"`
	Destination      string        `bson:"destination"`
	Image            *string       `bson:"image"`
	AdditionalImages []string      `bson:"additionalImages"`
	Status           string        `bson:"status"`
	CreatedAt        time.Time     `bson:"createdAt"`
	UpdatedAt        time.Time     `bson:"updatedAt"`
}

func (d *shipmentDocument) toEntity() *entity.Shipment {
	images := d.AdditionalImages
	if images == nil {
		images = []string{}
	}
	return &entity.Shipment{
		ID:               d.ID.Hex(),
		TrackingNumber:   d.TrackingNumber,
		Sender:           d.Sender,
		Recipient:        d.Recipient,
		Origin:           d.Origin,
		Destination:      d.Destination,
		Image:            d.Image,
		AdditionalImages: images,
		Status:           entity.Status(d.Status),
		CreatedAt:        d.CreatedAt.UTC(),
		UpdatedAt:        d.UpdatedAt.UTC(),
	}
}

type MongoShipmentRepository struct {
	collection *mongodriver.Collection
	now        func() time.Time
}

func NewMongoShipmentRepository(db *mongo.Mongo, collection string) *MongoShipmentRepository {
	return &MongoShipmentRepository{
		collection: db.Database.Collection(collection),
		now:        func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

// EnsureIndexes creates the unique tracking-number index that backs
// duplicate detection on insert.
func (r *MongoShipmentRepository) EnsureIndexes(ctx context.Context) error {
	const op = "repository.mongo.EnsureIndexes"

	_, err := r.collection.Indexes().CreateMany(ctx, []mongodriver.IndexModel{
		{
			Keys:    bson.D{{Key: "trackingNumber", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_tracking_number"),
		},
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *MongoShipmentRepository) Create(ctx context.Context, shipment *entity.Shipment) (*entity.Shipment, error) {
	const op = "repository.mongo.Create"

	now := r.now()
	images := shipment.AdditionalImages
	if images == nil {
		images = []string{}
	}

	doc := &shipmentDocument{
		ID:               bson.NewObjectID(),
		TrackingNumber:   shipment.TrackingNumber,
		Sender:           shipment.Sender,
		Recipient:        shipment.Recipient,
		Origin:           shipment.Origin,
		Destination:      shipment.Destination,
		Image:            shipment.Image,
		AdditionalImages: images,
		Status:           shipment.Status.String(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		if mongodriver.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%s: tracking number %s: %w", op, shipment.TrackingNumber, entity.ErrDuplicateKey)
		}
		return nil, fmt.Errorf("%s: insert: %w", op, err)
	}

	return doc.toEntity(), nil
}

func (r *MongoShipmentRepository) GetByID(ctx context.Context, id string) (*entity.Shipment, error) {
	const op = "repository.mongo.GetByID"

	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%s: malformed id %q: %w", op, id, entity.ErrDataNotFound)
	}

	return r.findOne(ctx, op, bson.D{{Key: "_id", Value: oid}})
}

func (r *MongoShipmentRepository) GetByTrackingNumber(
	ctx context.Context,
	trackingNumber string,
) (*entity.Shipment, error) {
	const op = "repository.mongo.GetByTrackingNumber"

	return r.findOne(ctx, op, bson.D{{Key: "trackingNumber", Value: trackingNumber}})
}

func (r *MongoShipmentRepository) ExistsByTrackingNumber(ctx context.Context, trackingNumber string) (bool, error) {
	const op = "repository.mongo.ExistsByTrackingNumber"

	count, err := r.collection.CountDocuments(
		ctx,
		bson.D{{Key: "trackingNumber", Value: trackingNumber}},
		options.Count().SetLimit(1),
	)
	if err != nil {
		return false, fmt.Errorf("%s: count: %w", op, err)
	}
	return count > 0, nil
}

// List returns shipments in insertion order; ObjectIDs grow with creation time.
func (r *MongoShipmentRepository) List(ctx context.Context) ([]*entity.Shipment, error) {
	const op = "repository.mongo.List"

	cursor, err := r.collection.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("%s: find: %w", op, err)
	}
	defer cursor.Close(ctx)

	shipments := make([]*entity.Shipment, 0)
	for cursor.Next(ctx) {
		var doc shipmentDocument
		if err = cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%s: decode: %w", op, err)
		}
		shipments = append(shipments, doc.toEntity())
	}
	if err = cursor.Err(); err != nil {
		return nil, fmt.Errorf("%s: cursor: %w", op, err)
	}

	return shipments, nil
}

// AppendImage pushes url in a single atomic update, so concurrent appends never drop each other.
func (r *MongoShipmentRepository) AppendImage(ctx context.Context, id, url string) (*entity.Shipment, error) {
	const op = "repository.mongo.AppendImage"

	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%s: malformed id %q: %w", op, id, entity.ErrDataNotFound)
	}

	update := bson.D{
		{Key: "$push", Value: bson.D{{Key: "additionalImages", Value: url}}},
		{Key: "$set", Value: bson.D{{Key: "updatedAt", Value: r.now()}}},
	}

	return r.findOneAndUpdate(ctx, op, bson.D{{Key: "_id", Value: oid}}, update)
}

// UpdateStatus sets the status only while the stored value still equals from.
func (r *MongoShipmentRepository) UpdateStatus(
	ctx context.Context,
	id string,
	from, to entity.Status,
) (*entity.Shipment, error) {
	const op = "repository.mongo.UpdateStatus"

	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%s: malformed id %q: %w", op, id, entity.ErrDataNotFound)
	}

	filter := bson.D{
		{Key: "_id", Value: oid},
		{Key: "status", Value: from.String()},
	}
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "status", Value: to.String()},
			{Key: "updatedAt", Value: r.now()},
		}},
	}

	updated, err := r.findOneAndUpdate(ctx, op, filter, update)
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, entity.ErrDataNotFound) {
		return nil, err
	}

	// No match: either the shipment is gone or its status moved on.
	if _, err = r.findOne(ctx, op, bson.D{{Key: "_id", Value: oid}}); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%s: %s is no longer %q: %w", op, id, from, entity.ErrStatusConflict)
}

func (r *MongoShipmentRepository) findOne(ctx context.Context, op string, filter bson.D) (*entity.Shipment, error) {
	var doc shipmentDocument
	if err := r.collection.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrDataNotFound)
		}
		return nil, fmt.Errorf("%s: find one: %w", op, err)
	}
	return doc.toEntity(), nil
}

func (r *MongoShipmentRepository) findOneAndUpdate(
	ctx context.Context,
	op string,
	filter, update bson.D,
) (*entity.Shipment, error) {
	var doc shipmentDocument
	err := r.collection.FindOneAndUpdate(
		ctx,
		filter,
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrDataNotFound)
		}
		return nil, fmt.Errorf("%s: find one and update: %w", op, err)
	}
	return doc.toEntity(), nil
}
