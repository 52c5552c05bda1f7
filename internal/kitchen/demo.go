package kitchen

import (
	"context"
	"errors"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/seed"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
)

const demoSeedApplication = "kitchen_demo"

// ApplyDemoSeeds routes a handful of demo orders through the real router so
// local boards have tickets to show. Gated by demo.enabled in config.
func ApplyDemoSeeds(ctx context.Context, config *apt.Config, repo TicketRepository, cache *TicketStateCache, db *mongo.Database, logger apt.Logger) error {
	enabled, _ := config.GetString("demo.enabled")
	if enabled != "true" {
		return nil
	}
	if db == nil {
		return errors.New("database is required for demo seeding")
	}

	tracker := seed.NewMongoTracker(db)
	seeds := []seed.Seed{
		{
			ID:          "2026-08-31_demo_tickets_v1",
			Description: "Route demo orders into station tickets",
			Run: func(ctx context.Context) error {
				return seedDemoTickets(ctx, repo, logger)
			},
		},
	}

	logger.Info("Applying demo ticket seeds")
	if err := seed.Apply(ctx, tracker, seeds, demoSeedApplication); err != nil {
		return err
	}

	if cache != nil {
		if err := cache.Warm(ctx); err != nil {
			logger.Errorf("Failed to reload cache after seeding: %v", err)
		}
	}

	return nil
}

func seedDemoTickets(ctx context.Context, repo TicketRepository, logger apt.Logger) error {
	restaurantID := apt.GenerateNewID()

	demoOrders := []Submission{
		{
			OrderID:      apt.GenerateNewID(),
			RestaurantID: restaurantID,
			TableNumber:  "5",
			Items: []OrderLine{
				{MenuItemID: uuid.New(), Name: "Latte", Quantity: 1, UnitPrice: 4.5, Category: "Drinks"},
				{MenuItemID: uuid.New(), Name: "Pad Kra Pao", Quantity: 2, UnitPrice: 12.0, Category: "Main Course"},
				{MenuItemID: uuid.New(), Name: "Mango Sticky Rice", Quantity: 1, UnitPrice: 7.0, Category: "Dessert"},
			},
		},
		{
			OrderID:      apt.GenerateNewID(),
			RestaurantID: restaurantID,
			TableNumber:  "12",
			Items: []OrderLine{
				{MenuItemID: uuid.New(), Name: "Tom Yum", Quantity: 1, UnitPrice: 9.5, Category: "Soup"},
				{MenuItemID: uuid.New(), Name: "House Salad", Quantity: 1, UnitPrice: 8.0, Category: "Salad"},
			},
		},
	}

	for _, sub := range demoOrders {
		tickets, err := Route(sub, time.Now())
		if err != nil {
			return err
		}
		for _, ticket := range tickets {
			if err := repo.Create(ctx, ticket); err != nil {
				return err
			}
		}
		logger.Info("seeded demo order", "order_id", sub.OrderID.String(), "tickets", len(tickets))
	}

	return nil
}
