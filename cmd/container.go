package main

import (
	"context"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/talentsift/sift/internal/ai/analyzer"
	"github.com/talentsift/sift/internal/ai/questiongen"
	"github.com/talentsift/sift/internal/pdf"
	"github.com/talentsift/sift/pkg/config"
	"github.com/talentsift/sift/pkg/fsx"
	"github.com/talentsift/sift/pkg/fsx/fsxs3"
	"github.com/talentsift/sift/pkg/iam/auth"
	"github.com/talentsift/sift/pkg/logx"
	"github.com/talentsift/sift/screening/analysis/analysisapi"
	"github.com/talentsift/sift/screening/analysis/analysisinfra"
	"github.com/talentsift/sift/screening/analysis/analysissrv"
	"github.com/talentsift/sift/screening/analysis/worker"
	"github.com/talentsift/sift/screening/billing/billingapi"
	"github.com/talentsift/sift/screening/billing/billinginfra"
	"github.com/talentsift/sift/screening/billing/billingsrv"
	"github.com/talentsift/sift/screening/candidate/candidateapi"
	"github.com/talentsift/sift/screening/candidate/candidateinfra"
	"github.com/talentsift/sift/screening/candidate/candidatesrv"
	"github.com/talentsift/sift/screening/job/jobapi"
	"github.com/talentsift/sift/screening/job/jobinfra"
	"github.com/talentsift/sift/screening/job/jobsrv"
	"github.com/talentsift/sift/screening/realtime/realtimeapi"
	"github.com/talentsift/sift/screening/realtime/realtimeinfra"
	"github.com/talentsift/sift/screening/upload/uploadapi"
	"github.com/talentsift/sift/screening/upload/uploadsrv"
)

const taskQueueName = "analysis_tasks"

// Container holds all application dependencies
type Container struct {
	Config *config.Config

	// Infrastructure
	DB         *sqlx.DB
	Redis      *redis.Client
	FileSystem fsx.FileSystem
	S3Client   *s3.Client

	// Services
	TokenService     *auth.TokenService
	BillingService   *billingsrv.BillingService
	JobService       *jobsrv.JobService
	CandidateService *candidatesrv.CandidateService
	Dispatcher       *analysissrv.Dispatcher
	UploadService    *uploadsrv.UploadService

	// Background
	Worker  *worker.AnalysisWorker
	Sweeper *analysissrv.Sweeper

	// API Handlers
	BillingHandlers   *billingapi.Handlers
	JobHandlers       *jobapi.Handlers
	CandidateHandlers *candidateapi.Handlers
	AnalysisHandlers  *analysisapi.Handlers
	UploadHandlers    *uploadapi.Handlers
	RealtimeHandlers  *realtimeapi.Handlers
}

// NewContainer initializes the dependency injection container
func NewContainer(cfg *config.Config) *Container {
	c := &Container{Config: cfg}
	c.initInfrastructure()
	c.initServices()
	return c
}

func (c *Container) initInfrastructure() {
	// 1. Database Connection
	db, err := sqlx.Connect("postgres", c.Config.Database.DSN())
	if err != nil {
		logx.Fatalf("Failed to connect to database: %v", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	c.DB = db

	// 2. Redis Connection
	c.Redis = redis.NewClient(&redis.Options{
		Addr:     c.Config.Redis.Addr,
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
	})
	if err := c.Redis.Ping(context.Background()).Err(); err != nil {
		logx.Warnf("Failed to connect to Redis: %v", err)
	}

	// 3. S3 Storage
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(c.Config.Storage.Region))
	if err != nil {
		logx.Fatalf("unable to load SDK config: %v", err)
	}
	c.S3Client = s3.NewFromConfig(awsCfg)
	c.FileSystem = fsxs3.NewS3FileSystem(c.S3Client, c.Config.Storage.Bucket, c.Config.Storage.BasePath)
}

func (c *Container) initServices() {
	cfg := c.Config

	// --- Repositories ---
	accountRepo := billinginfra.NewPostgresAccountRepository(c.DB)
	jobRepo := jobinfra.NewPostgresJobRepository(c.DB)
	candidateRepo := candidateinfra.NewPostgresCandidateRepository(c.DB)
	taskRepo := analysisinfra.NewPostgresTaskRepository(c.DB)

	// --- Queue and Pub/Sub ---
	taskQueue := analysisinfra.NewRedisTaskQueue(c.Redis, taskQueueName)
	pubsub := realtimeinfra.NewRedisPubSub(c.Redis)

	// --- AI and PDF ---
	cvAnalyzer := analyzer.NewCVAnalyzer(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
	questionGen := questiongen.NewQuestionGenerator(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
	extractor := pdf.NewExtractor()

	// --- Auth ---
	c.TokenService = auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)

	// --- Domain Services ---
	c.BillingService = billingsrv.NewBillingService(accountRepo, cfg.Screening.PlanLimits)
	c.JobService = jobsrv.NewJobService(jobRepo, questionGen)
	c.CandidateService = candidatesrv.NewCandidateService(candidateRepo, c.FileSystem)
	c.Dispatcher = analysissrv.NewDispatcher(
		taskRepo, taskQueue, c.BillingService, c.CandidateService, jobRepo,
		cfg.Screening.DispatchPolicy,
	)
	c.UploadService = uploadsrv.NewUploadService(
		c.FileSystem, c.CandidateService, extractor, c.Dispatcher,
		cfg.Screening.UploadConcurrency, cfg.Screening.MaxUploadBytes,
		cfg.Screening.BatchRetention,
	)

	// --- Background ---
	c.Worker = worker.NewAnalysisWorker(
		taskQueue, taskRepo, cvAnalyzer, c.CandidateService, pubsub,
		cfg.Screening.AnalysisWorkers,
	)
	c.Sweeper = analysissrv.NewSweeper(
		taskRepo, c.CandidateService,
		cfg.Screening.SweepInterval, cfg.Screening.StuckThreshold,
	)

	// --- Handlers ---
	c.BillingHandlers = billingapi.NewHandlers(c.BillingService, c.TokenService, cfg.Auth.WebhookSecret)
	c.JobHandlers = jobapi.NewHandlers(c.JobService)
	c.CandidateHandlers = candidateapi.NewHandlers(c.CandidateService)
	c.AnalysisHandlers = analysisapi.NewHandlers(c.Dispatcher)
	c.UploadHandlers = uploadapi.NewHandlers(c.UploadService)
	c.RealtimeHandlers = realtimeapi.NewHandlers(pubsub, jobRepo)
}
