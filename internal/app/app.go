// Package app assembles the service graph from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"vocalsilence/internal/cache"
	"vocalsilence/internal/config"
	"vocalsilence/internal/llm"
	"vocalsilence/internal/questionnaire"
	"vocalsilence/internal/repository"
	"vocalsilence/internal/service"
	"vocalsilence/internal/transport/rest"
	"vocalsilence/internal/transport/ws"
)

// App holds the connected clients and the wired services.
type App struct {
	Config *config.Config
	Logger *zap.Logger

	Mongo *mongo.Client
	Redis *redis.Client

	Sessions     repository.SessionRepo
	Crises       repository.CrisisHistoryRepo
	Interactions repository.InteractionRepo
	Archive      repository.ArchiveRepo
	Catalogs     repository.QuestionnaireRepo

	Lock   cache.ParticipantLock
	Dedupe cache.DedupeCache

	Catalog      *questionnaire.Catalog
	Auth         *service.AuthService
	Messenger    service.Messenger
	Conversation *service.ConversationService
	Admin        *service.AdminService
	Dispatcher   *service.Dispatcher
	Hub          *ws.Hub
}

// ConnectMongo opens and pings the document store.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// ConnectRedis opens and pings the cache.
func ConnectRedis(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// New connects the stores and builds every service.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	mongoClient, err := ConnectMongo(ctx, cfg.MongoURI)
	if err != nil {
		return nil, err
	}
	logger.Info("connected to mongo", zap.String("database", cfg.MongoDatabase))

	rdb, err := ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		_ = mongoClient.Disconnect(context.Background())
		return nil, err
	}
	logger.Info("connected to redis", zap.String("addr", cfg.RedisAddr))

	a := &App{Config: cfg, Logger: logger, Mongo: mongoClient, Redis: rdb}
	if err := a.wire(ctx); err != nil {
		_ = a.Close(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context) error {
	cfg, logger := a.Config, a.Logger
	db := a.Mongo.Database(cfg.MongoDatabase)

	if err := repository.EnsureIndexes(ctx, db); err != nil {
		return err
	}

	a.Sessions = repository.NewSessionRepo(db)
	a.Crises = repository.NewCrisisHistoryRepo(db)
	a.Interactions = repository.NewInteractionRepo(db)
	a.Archive = repository.NewArchiveRepo(db)
	a.Catalogs = repository.NewQuestionnaireRepo(db)

	a.Lock = cache.NewParticipantLock(a.Redis, cfg.Dispatch.LockTTL, cfg.Dispatch.LockWait)
	a.Dedupe = cache.NewDedupeCache(a.Redis, cfg.Dispatch.DedupeTTL)

	catalog, err := LoadCatalog(ctx, cfg, a.Catalogs)
	if err != nil {
		return err
	}
	catalog.MarkRequired(cfg.Policy.RequiredQuestionIDs)
	a.Catalog = catalog
	logger.Info("questionnaire loaded",
		zap.String("source", cfg.QuestionnaireSource),
		zap.Int("questions", len(catalog.Questions)))

	completer, transcriber := buildModels(ctx, cfg.AI, logger)

	a.Hub = ws.NewHub(logger)
	a.Auth = service.NewAuthService(cfg.Staff)
	a.Messenger = service.NewTwilioClient(cfg.Twilio, logger)

	classifier := service.NewClassifierService(completer, cfg.AI, cfg.Policy, logger)
	safety := service.NewSafetyService(classifier, cfg.Safety, logger)
	crisis := service.NewCrisisService(classifier, logger)
	interpreter := service.NewInterpreter(classifier, cfg.Policy, logger)
	flow := service.NewQuestionnaireService(catalog, interpreter, a.Archive, cfg.Policy, logger)
	audio := service.NewAudioService(transcriber, cfg.Twilio, cfg.Audio, logger)

	a.Conversation = service.NewConversationService(
		a.Sessions, a.Crises, a.Interactions,
		safety, crisis, flow, audio,
		a.Hub, logger,
	)
	a.Admin = service.NewAdminService(
		a.Sessions, a.Crises, a.Interactions,
		crisis, flow, a.Messenger, a.Lock,
		a.Hub, logger,
	)
	a.Dispatcher = service.NewDispatcher(a.Conversation, a.Messenger, a.Lock, cfg.Dispatch, logger)
	return nil
}

// LoadCatalog reads the questionnaire from the configured source.
func LoadCatalog(ctx context.Context, cfg *config.Config, repo repository.QuestionnaireRepo) (*questionnaire.Catalog, error) {
	switch cfg.QuestionnaireSource {
	case "mongo":
		catalog, err := repo.GetActive(ctx)
		if err != nil {
			return nil, fmt.Errorf("load questionnaire from mongo: %w", err)
		}
		if catalog == nil {
			return nil, errors.New("no active questionnaire published; run the seed command")
		}
		if err := catalog.Validate(); err != nil {
			return nil, err
		}
		return catalog, nil
	case "file", "":
		if cfg.QuestionnairePath == "" {
			return questionnaire.Default()
		}
		return questionnaire.Load(cfg.QuestionnairePath)
	default:
		return nil, fmt.Errorf("unknown questionnaire source %q", cfg.QuestionnaireSource)
	}
}

// buildModels returns the completion backend and the transcriber. Either may
// be nil when credentials are missing; the services fall back accordingly.
func buildModels(ctx context.Context, cfg *config.AIConfig, logger *zap.Logger) (llm.Completer, llm.Transcriber) {
	var completer llm.Completer
	c, err := llm.NewCompleter(ctx, cfg)
	switch {
	case errors.Is(err, llm.ErrDisabled):
		logger.Warn("no model credentials configured, classifier fallbacks only")
	case err != nil:
		logger.Error("model backend unavailable", zap.Error(err))
	default:
		completer = c
		logger.Info("model backend ready",
			zap.String("provider", string(cfg.Provider)),
			zap.String("screening", cfg.Models.Screening),
			zap.String("main", cfg.Models.Detailed))
	}

	var transcriber llm.Transcriber
	if cfg.OpenAIKey != "" {
		oc, err := llm.NewOpenAIClient(cfg.OpenAIKey, cfg.OpenAIBaseURL)
		if err == nil {
			transcriber = llm.NewWhisperTranscriber(oc.Client(), cfg.Models.Transcription)
		}
	}
	if transcriber == nil {
		logger.Warn("OPENAI_API_KEY not set, audio messages cannot be transcribed")
	}
	return completer, transcriber
}

// Router builds the HTTP handler.
func (a *App) Router() http.Handler {
	return rest.NewRouter(&rest.Container{
		AuthService:  a.Auth,
		AdminService: a.Admin,
		Dispatcher:   a.Dispatcher,
		Dedupe:       a.Dedupe,
		Twilio:       a.Config.Twilio,
		WSHub:        a.Hub,
		Logger:       a.Logger,
	})
}

// Close drains the dispatcher and releases the connections.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Dispatcher != nil {
		if err := a.Dispatcher.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Hub != nil {
		a.Hub.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if a.Mongo != nil {
		if err := a.Mongo.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("disconnect mongo: %w", err))
		}
	}
	return errors.Join(errs...)
}
