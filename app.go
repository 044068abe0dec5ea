package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"cardvault_server/config"
	"cardvault_server/controllers"
	"cardvault_server/metrics"
	"cardvault_server/routes"
	"cardvault_server/services"
	"cardvault_server/socket"
	"cardvault_server/utils"
)

// application is the fully wired HTTP surface plus the resources to release on shutdown.
type application struct {
	handler http.Handler
	closers []func() error
}

func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

// newStore selects the storage backend. The AWS config is returned when it was loaded so S3 can reuse it.
func newStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (services.Store, *aws.Config, func() error, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverLocal:
		store, err := services.NewLocalStore(cfg.LocalStorePath, logger.Named("localstore"))
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Info("using local badger store", zap.String("path", cfg.LocalStorePath))
		return store, nil, store.Close, nil
	default:
		awsCfg, err := services.LoadAWSConfig(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, nil, nil, err
		}
		store := &services.DynamoService{
			Client:          services.InitializeDynamoDBClient(awsCfg, cfg.DynamoEndpoint),
			TableName:       cfg.TableName,
			EntityTypeIndex: cfg.EntityTypeIndex,
			Logger:          logger.Named("dynamodb"),
		}
		logger.Info("using DynamoDB store", zap.String("table", cfg.TableName), zap.String("region", cfg.AWSRegion))
		return store, &awsCfg, func() error { return nil }, nil
	}
}

func newApplication(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*application, error) {
	app := &application{}

	store, awsCfg, closeStore, err := newStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	app.closers = append(app.closers, closeStore)

	collector := metrics.NewCollector("cardvault")
	router := mux.NewRouter()

	var broadcaster services.Broadcaster = services.NoopBroadcaster{}
	if cfg.EnableSocket && !cfg.IsLambda {
		hub := socket.NewGuildHub(logger.Named("socket"))
		go hub.Serve()
		app.closers = append(app.closers, hub.Close)
		router.PathPrefix("/socket.io/").Handler(hub.Handler())
		broadcaster = hub
	}

	guildService := &services.GuildService{Store: store, Logger: logger}
	memberService := &services.MemberService{Store: store, Logger: logger}
	postService := &services.PostService{Store: store, Logger: logger, Broadcaster: broadcaster}
	likeService := &services.LikeService{Store: store, Posts: postService, Logger: logger, Broadcaster: broadcaster}
	commentService := &services.CommentService{Store: store, Posts: postService, Logger: logger, Broadcaster: broadcaster}

	providers, err := services.NewCardProviders(cfg.CardSearch.Providers, &http.Client{Timeout: cfg.CardSearch.Timeout + time.Second})
	if err != nil {
		return nil, err
	}
	cardSearch := services.NewCardSearchService(providers, cfg.CardSearch.Timeout, logger.Named("cards"), collector)

	mediaService := &services.MediaService{Bucket: cfg.S3BucketName, Logger: logger}
	if cfg.S3BucketName != "" {
		if awsCfg == nil {
			loaded, err := services.LoadAWSConfig(ctx, cfg.AWSRegion)
			if err != nil {
				return nil, err
			}
			awsCfg = &loaded
		}
		mediaService = services.NewMediaService(*awsCfg, cfg.S3BucketName, logger)
	}

	validator := utils.NewValidator()
	guildController := controllers.NewGuildController(guildService, memberService, validator, logger)
	postController := &controllers.PostController{
		Guilds:    guildService,
		Members:   memberService,
		Posts:     postService,
		Likes:     likeService,
		Comments:  commentService,
		Validator: validator,
		Logger:    logger,
	}
	cardController := &controllers.CardController{Search: cardSearch, Logger: logger}
	mediaController := &controllers.MediaController{Media: mediaService, Guilds: guildService, Members: memberService, Logger: logger}

	router.Use(routes.RequestID, routes.Recovery(logger), routes.Instrument(logger, collector))
	routes.RegisterRoutes(router, collector.Handler())
	routes.RegisterGuildRoutes(router, guildController, postController)
	routes.RegisterCardRoutes(router, cardController)
	routes.RegisterMediaRoutes(router, mediaController)

	// Add CORS middleware
	app.handler = cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", controllers.HeaderUserID, controllers.HeaderDisplayName, "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
	}).Handler(router)

	return app, nil
}
