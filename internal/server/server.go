package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"chocolata/internal/access"
	"chocolata/internal/cart"
	"chocolata/internal/catalog"
	"chocolata/internal/config"
	"chocolata/internal/database"
	custommiddleware "chocolata/internal/middleware"
	"chocolata/internal/notify"
	"chocolata/internal/payment"
	"chocolata/internal/pricing"
	"chocolata/internal/repository"
	"chocolata/internal/service"
	"chocolata/internal/stock"
	"chocolata/internal/storage"
	"chocolata/internal/transport"
	"chocolata/internal/worker"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

type Server struct {
	*http.Server
	config  *config.Config
	logger  *zap.Logger
	db      database.Service
	redis   *redis.Client
	sweeper *worker.PaymentSweeper
}

func NewServer(cfg *config.Config, logger *zap.Logger, db database.Service) (*Server, error) {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	store, err := newObjectStore(cfg.Storage, logger)
	if err != nil {
		return nil, err
	}

	// Repositories
	userRepo := repository.NewUserRepository(db.DB())
	refreshTokenRepo := repository.NewRefreshTokenRepository(db.DB())
	productRepo := repository.NewProductRepository(db.DB())
	categoryRepo := repository.NewCategoryRepository(db.DB())
	orderRepo := repository.NewOrderRepository(db.DB())
	verificationRepo := repository.NewSellerVerificationRepository(db.DB())
	addressRepo := repository.NewAddressRepository(db.DB())
	activity := service.NewActivityLog(repository.NewActivityLogRepository(db.DB()), logger)

	// Domain engines
	rules := pricing.DefaultRules().WithFreeShippingThreshold(decimal.NewFromFloat(cfg.Shop.FreeShippingThreshold))
	engine := catalog.NewEngine(language.Make(cfg.Shop.CollationLocale))
	carts := cart.NewService(cart.NewRedisStore(redisClient, cfg.Shop.CartTTL), productRepo, logger)
	processor := payment.NewMockProcessor(cfg.Payment.MockFailureRate, logger)
	notifier := notify.NewLogNotifier(logger)

	// Services
	userService := service.NewUserService(userRepo, refreshTokenRepo, service.TokenConfig{
		Secret:        cfg.JWT.Secret,
		AccessExpiry:  time.Duration(cfg.JWT.AccessExpiry) * time.Minute,
		RefreshExpiry: time.Duration(cfg.JWT.RefreshExpiry) * 24 * time.Hour,
	}, activity, logger)
	catalogService := service.NewCatalogService(productRepo, categoryRepo, userRepo, verificationRepo, engine, cfg.Shop.CatalogPageSize, activity, logger)
	productService := service.NewProductService(productRepo, verificationRepo, store, activity, logger)
	sellerService := service.NewSellerService(verificationRepo, store, logger)
	addressService := service.NewAddressService(addressRepo, logger)
	checkoutService := service.NewCheckoutService(carts, stock.NewValidator(productRepo), rules, orderRepo, addressService, processor, notifier, cfg.Shop.Currency, logger)
	orderService := service.NewOrderService(orderRepo, notifier, cfg.Payment.WebhookSecret, cfg.Shop.PaymentTimeout, activity, logger)
	adminService := service.NewAdminService(userRepo, productRepo, orderRepo, verificationRepo, activity, cfg.Shop.Currency, logger)

	sweeper, err := worker.NewPaymentSweeper(cfg.Shop.SweepSchedule, orderService, time.Minute, logger)
	if err != nil {
		return nil, err
	}

	router := chi.NewRouter()
	router.Use(custommiddleware.DefaultMiddlewareStack()...)
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, cfg.IsDevelopment()))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.OptionalAuth(cfg.JWT.Secret))
	router.Use(custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimit.RequestsPerWindow,
		Window:            cfg.RateLimit.Window,
		KeyPrefix:         "rate_limit",
	}, logger))

	s := &Server{
		config:  cfg,
		logger:  logger,
		db:      db,
		redis:   redisClient,
		sweeper: sweeper,
	}

	router.Get("/health", s.health)

	authMiddleware := custommiddleware.AuthMiddleware(cfg.JWT.Secret, logger)
	area := func(a access.Area) []func(http.Handler) http.Handler {
		return []func(http.Handler) http.Handler{authMiddleware, custommiddleware.RequireArea(a, logger)}
	}

	transport.NewUserHandler(userService, logger).RegisterRoutes(router, authMiddleware)
	transport.NewCatalogHandler(catalogService, logger).RegisterRoutes(router)
	transport.NewCartHandler(carts, logger).RegisterRoutes(router, area(access.AreaBuyer)...)
	transport.NewCheckoutHandler(checkoutService, logger).RegisterRoutes(router, area(access.AreaBuyer)...)
	transport.NewAddressHandler(addressService, logger).RegisterRoutes(router, area(access.AreaBuyer)...)
	transport.NewOrderHandler(orderService, logger).RegisterRoutes(router, area(access.AreaBuyer)...)
	transport.NewSellerHandler(productService, orderService, sellerService, logger).RegisterRoutes(router, area(access.AreaSeller)...)
	transport.NewAdminHandler(adminService, catalogService, productService, orderService, logger).RegisterRoutes(router, area(access.AreaAdmin)...)

	s.Server = &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s, nil
}

// newObjectStore uses Cloudinary when configured and keeps uploads in memory otherwise
func newObjectStore(cfg config.StorageConfig, logger *zap.Logger) (storage.ObjectStore, error) {
	if cfg.CloudinaryURL == "" {
		logger.Warn("CLOUDINARY_URL not set, uploads are kept in memory")
		return storage.NewMemoryStore(), nil
	}
	store, err := storage.NewCloudinaryStore(cfg.CloudinaryURL, cfg.Folder, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to configure cloudinary: %w", err)
	}
	return store, nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	dbHealth := s.db.Health()
	body := map[string]interface{}{"database": dbHealth}

	if err := s.redis.Ping(r.Context()).Err(); err != nil {
		body["redis"] = map[string]string{"status": "down", "error": err.Error()}
		status = http.StatusServiceUnavailable
	} else {
		body["redis"] = map[string]string{"status": "up"}
	}
	if dbHealth["status"] != "up" {
		status = http.StatusServiceUnavailable
	}

	custommiddleware.RespondWithJSON(w, status, body)
}

// StartWorkers launches the background jobs
func (s *Server) StartWorkers() {
	s.sweeper.Start()
}

// Close stops the workers and releases Redis and the database
func (s *Server) Close(ctx context.Context) error {
	s.logger.Info("Closing server resources")

	s.sweeper.Stop(ctx)

	if err := s.redis.Close(); err != nil {
		s.logger.Error("Failed to close redis client", zap.Error(err))
	}
	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close database connection", zap.Error(err))
	}

	s.logger.Sync()
	return nil
}
