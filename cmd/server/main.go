package main // Entry point package

import (
    "context"
    "log"
    "time"

    "github.com/joho/godotenv"    // loads .env files in development
    "github.com/labstack/echo/v4" // Echo web framework

    "github.com/iliyamo/cinema-box-office/internal/cache"
    "github.com/iliyamo/cinema-box-office/internal/config"
    "github.com/iliyamo/cinema-box-office/internal/database"
    "github.com/iliyamo/cinema-box-office/internal/handler"
    "github.com/iliyamo/cinema-box-office/internal/order"
    "github.com/iliyamo/cinema-box-office/internal/pricing"
    "github.com/iliyamo/cinema-box-office/internal/promotion"
    "github.com/iliyamo/cinema-box-office/internal/queue"
    "github.com/iliyamo/cinema-box-office/internal/repository"
    "github.com/iliyamo/cinema-box-office/internal/reservation"
    "github.com/iliyamo/cinema-box-office/internal/router"
    queuepublisher "github.com/iliyamo/cinema-box-office/internal/service"
)

func main() {
    // .env is optional; real deployments configure through the environment.
    _ = godotenv.Load()
    cfg := config.Load()
    logger := config.NewLogger(cfg.Env, cfg.LogLevel)

    db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
    if err != nil {
        log.Fatalf("database connection failed: %v", err)
    }
    defer db.Close()

    // Repositories over the shared *sql.DB.
    catalogRepo := repository.NewCatalogRepo(db)
    priceRepo := repository.NewTicketPriceRepo(db)
    promoRepo := repository.NewPromotionRepo(db)
    orderRepo := repository.NewOrderRepo(db)

    // The reservation manager is the in-memory source of truth for seat
    // state.  Restore committed bookings of upcoming showtimes so a
    // restart cannot double-sell a seat.
    seats := reservation.NewManager(logger)
    seedCtx, cancelSeed := context.WithTimeout(context.Background(), 30*time.Second)
    booked, err := orderRepo.BookedSeats(seedCtx, time.Now().UTC())
    if err != nil {
        cancelSeed()
        log.Fatalf("loading booked seats failed: %v", err)
    }
    // Open orders from the previous run lost their in-memory holds and
    // can never be completed; close them out before serving.
    stale, err := orderRepo.CancelStale(seedCtx)
    cancelSeed()
    if err != nil {
        log.Fatalf("cancelling stale orders failed: %v", err)
    }
    for showTimeID, seatIDs := range booked {
        seats.Seed(showTimeID, seatIDs)
    }
    logger.Info().Int("showtimes", len(booked)).Int64("stale_orders", stale).
        Msg("seat state restored")

    resolver := pricing.NewResolver(logger)
    promos := promotion.NewEngine(promoRepo, logger)
    publisher := queuepublisher.NewPublisher(logger)

    // Redis backs the seat map snapshot cache.  A nil client just means
    // every seat map request computes a fresh snapshot.
    rdb := config.NewRedisClient()
    if rdb == nil {
        logger.Warn().Msg("redis unavailable; seat map caching disabled")
    }
    seatMaps := cache.NewSeatMap(rdb, cfg.SeatMapTTL, logger)

    orders := order.NewService(order.Config{
        Seats:     seats,
        Resolver:  resolver,
        Promos:    promos,
        Catalog:   catalogRepo,
        Prices:    priceRepo,
        Store:     orderRepo,
        Publisher: publisher,
        SeatMaps:  seatMaps,
        HoldTTL:   cfg.HoldTTL,
    }, logger)

    // Background expiry sweep: cancels orders whose reservation window
    // passed and frees their seats.
    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()
    sweeper := reservation.NewSweeper(orders, cfg.SweepInterval, logger)
    go sweeper.Run(ctx)

    // Consume order.completed events for the ticket log.
    go func() {
        if err := queue.StartOrderConsumer(logger); err != nil {
            logger.Error().Err(err).Msg("order consumer stopped")
        }
    }()

    e := echo.New()
    e.HideBanner = true
    router.RegisterRoutes(e)
    router.RegisterBooking(e,
        handler.NewBookingHandler(orders, logger),
        handler.NewSeatMapHandler(catalogRepo, seats, seatMaps, logger),
        handler.NewCustomerHandler(catalogRepo),
        cfg.JWTSecret,
    )

    addr := ":" + cfg.Port
    logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("listening")
    if err := e.Start(addr); err != nil {
        log.Fatal(err)
    }
}
