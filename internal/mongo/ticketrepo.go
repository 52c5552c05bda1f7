package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/comandaclub/comanda/internal/kitchen"
	"github.com/comandaclub/comanda/pkg/enums/ticketstatus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type TicketRepo struct {
	client     *mongo.Client
	db         *mongo.Database
	collection *mongo.Collection
	logger     apt.Logger
	config     *apt.Config
}

func NewTicketRepo(config *apt.Config, logger apt.Logger) *TicketRepo {
	return &TicketRepo{
		logger: logger,
		config: config,
	}
}

func (r *TicketRepo) Start(ctx context.Context) error {
	mongoURL, _ := r.config.GetString("db.mongo.url")
	if mongoURL == "" {
		mongoURL = "mongodb://localhost:27017"
	}

	dbName, _ := r.config.GetString("db.mongo.name")
	if dbName == "" {
		dbName = "comanda_kitchen"
	}

	clientOptions := options.Client().ApplyURI(mongoURL).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return fmt.Errorf("cannot connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("cannot ping MongoDB: %w", err)
	}

	r.client = client
	r.db = client.Database(dbName)
	r.collection = r.db.Collection("tickets")

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "order_id", Value: 1}}},
		{Keys: bson.D{{Key: "restaurant_id", Value: 1}, {Key: "status", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "station", Value: 1}}},
	}
	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("cannot create ticket indexes: %w", err)
	}

	r.logger.Infof("Connected to MongoDB: %s, database: %s, collection: tickets", mongoURL, dbName)
	return nil
}

func (r *TicketRepo) GetDatabase() *mongo.Database {
	return r.db
}

func (r *TicketRepo) Stop(ctx context.Context) error {
	if r.client != nil {
		if err := r.client.Disconnect(ctx); err != nil {
			return fmt.Errorf("cannot disconnect from MongoDB: %w", err)
		}
		r.logger.Info("Disconnected from MongoDB")
	}
	return nil
}

func (r *TicketRepo) Create(ctx context.Context, t *kitchen.Ticket) error {
	t.BeforeCreate()

	if _, err := r.collection.InsertOne(ctx, t); err != nil {
		return &kitchen.TransientStoreError{Op: "create", Err: err}
	}
	return nil
}

func (r *TicketRepo) FindByID(ctx context.Context, id kitchen.TicketID) (*kitchen.Ticket, error) {
	var ticket kitchen.Ticket
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&ticket)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, kitchen.ErrTicketNotFound
		}
		return nil, &kitchen.TransientStoreError{Op: "find", Err: err}
	}
	return &ticket, nil
}

// UpdateStatus applies the transition as one conditional write: the filter
// matches on both id and the expected current status, so a concurrent
// transition that got there first makes this one fail with ErrStatusConflict
// instead of silently overwriting.
func (r *TicketRepo) UpdateStatus(ctx context.Context, id kitchen.TicketID, from, to string, now time.Time) (*kitchen.Ticket, error) {
	set := bson.M{
		"status":     to,
		"updated_at": now,
	}
	switch to {
	case ticketstatus.Statuses.InProgress.Code():
		set["started_at"] = now
	case ticketstatus.Statuses.Ready.Code():
		set["ready_at"] = now
	case ticketstatus.Statuses.Served.Code():
		set["served_at"] = now
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	result := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": from},
		bson.M{"$set": set},
		opts,
	)

	var ticket kitchen.Ticket
	if err := result.Decode(&ticket); err != nil {
		if err == mongo.ErrNoDocuments {
			// Either the ticket is gone or its status moved underneath us.
			if exists := r.collection.FindOne(ctx, bson.M{"_id": id}); exists.Err() == mongo.ErrNoDocuments {
				return nil, kitchen.ErrTicketNotFound
			}
			return nil, kitchen.ErrStatusConflict
		}
		return nil, &kitchen.TransientStoreError{Op: "update-status", Err: err}
	}

	return &ticket, nil
}

func (r *TicketRepo) List(ctx context.Context, filter kitchen.TicketFilter) ([]kitchen.Ticket, error) {
	query := bson.M{}

	if filter.RestaurantID != nil {
		query["restaurant_id"] = *filter.RestaurantID
	}

	if filter.Station != nil {
		query["station"] = *filter.Station
	}

	if filter.Status != nil {
		query["status"] = *filter.Status
	}

	if filter.OrderID != nil {
		query["order_id"] = *filter.OrderID
	}

	if filter.ActiveOnly && filter.Status == nil {
		query["status"] = bson.M{"$nin": bson.A{
			ticketstatus.Statuses.Served.Code(),
			ticketstatus.Statuses.Cancelled.Code(),
		}}
	}

	// Oldest order first: the kitchen works FIFO.
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}})

	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	if filter.Offset > 0 {
		opts.SetSkip(int64(filter.Offset))
	}

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, &kitchen.TransientStoreError{Op: "list", Err: err}
	}
	defer cursor.Close(ctx)

	var tickets []kitchen.Ticket
	if err := cursor.All(ctx, &tickets); err != nil {
		return nil, &kitchen.TransientStoreError{Op: "list", Err: err}
	}

	return tickets, nil
}
