// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gail-go/internal/config"
	"gail-go/internal/handler"
	"gail-go/internal/middleware"
	"gail-go/internal/model"
	"gail-go/internal/pipeline"
	"gail-go/internal/repository"
	"gail-go/internal/service"
	"gail-go/pkg/database"
	"gail-go/pkg/es"
	"gail-go/pkg/kafka"
	"gail-go/pkg/llm"
	"gail-go/pkg/log"
	"gail-go/pkg/storage"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、Redis、对象存储、ES 与 Kafka
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	if err := es.InitES(cfg.Elasticsearch); err != nil {
		log.Errorf("es 初始化失败 %s", err)
		return
	}
	kafka.InitProducer(cfg.Kafka)

	// 建表（幂等）
	if err := database.DB.AutoMigrate(
		&model.IngestionJob{},
		&model.Conversation{},
		&model.Message{},
		&model.UserProfile{},
		&model.DimensionScore{},
	); err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}

	// 4. 初始化 Repository
	jobRepo := repository.NewJobRepository(database.DB)
	convRepo := repository.NewConversationRepository(database.DB)
	profileRepo := repository.NewProfileRepository(database.DB)
	scoreRepo := repository.NewScoreRepository(database.DB)
	chatRepo := repository.NewChatHistoryRepository(database.RDB)

	// 5. 初始化 Service (依赖注入)
	llmClient := llm.NewClient(cfg.LLM)
	builder := pipeline.NewBuilder(convRepo, profileRepo, cfg.Elasticsearch)
	ingestService := service.NewIngestService(jobRepo, builder, cfg.Ingest, cfg.MinIO)
	scoreService := service.NewScoreService(convRepo, profileRepo, scoreRepo, chatRepo, llmClient, cfg.Profile)
	profileService := service.NewProfileService(profileRepo)
	chatService := service.NewChatService(profileRepo, scoreRepo, chatRepo, llmClient, cfg.Profile)

	// 6. 启动后台 Kafka 消费者，处理批量评分任务
	go kafka.StartConsumer(cfg.Kafka, scoreService)

	// 6.1 启动孤儿任务清扫器：processing 状态长时间未推进的任务置为 failed
	sweepCtx, cancelSweep := context.WithCancel(context.Background())
	defer cancelSweep()
	go sweepStaleJobs(sweepCtx, ingestService, time.Duration(cfg.Ingest.StaleJobMinutes)*time.Minute)

	// 7. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 8. 注册路由
	ingestHandler := handler.NewIngestHandler(ingestService)
	scoreHandler := handler.NewScoreHandler(scoreService)
	profileHandler := handler.NewProfileHandler(profileService)
	chatHandler := handler.NewChatHandler(chatService)
	searchHandler := handler.NewSearchHandler()

	apiV1 := r.Group("/api/v1")
	{
		// 导入任务路由组
		jobs := apiV1.Group("/jobs")
		{
			jobs.POST("", ingestHandler.CreateJob)
			jobs.GET("/:jobId", ingestHandler.GetJob)
			jobs.POST("/:jobId/chunks", ingestHandler.SubmitChunk)
			jobs.PUT("/:jobId/status", ingestHandler.UpdateStatus)
		}

		// 数据集路由组：上传到对象存储 + 服务端整文件导入
		datasets := apiV1.Group("/datasets")
		{
			datasets.POST("", ingestHandler.UploadDataset)
			datasets.POST("/ingest", ingestHandler.IngestDataset)
		}

		// 用户画像与评分路由组
		users := apiV1.Group("/users")
		{
			users.GET("", profileHandler.ListUsers)
			users.GET("/:userId/profile", profileHandler.GetProfile)
			users.POST("/:userId/scores", scoreHandler.Generate)
			users.GET("/:userId/scores", scoreHandler.GetScores)
			users.GET("/:userId/system-prompt", chatHandler.GetSystemPrompt)
		}

		// 批量评分入队
		apiV1.POST("/scores/batch", scoreHandler.EnqueueBatch)

		// 消息检索
		apiV1.GET("/search/messages", searchHandler.SearchMessages)
	}

	// Chat 路由 (WebSocket)
	r.GET("/chat/:userId", chatHandler.Handle)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	// Kafka 消费者随进程退出自然结束，无需单独关闭。
	log.Info("服务已优雅关闭")
}

// sweepStaleJobs 周期性地把长时间未推进的 processing 任务标记为 failed。
func sweepStaleJobs(ctx context.Context, ingestService service.IngestService, idleFor time.Duration) {
	ticker := time.NewTicker(idleFor / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := ingestService.FailStaleJobs(idleFor)
			if err != nil {
				log.Warnf("孤儿任务清扫失败: %v", err)
				continue
			}
			if n > 0 {
				log.Infof("孤儿任务清扫完成: 标记 %d 个任务为 failed", n)
			}
		}
	}
}
