package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	httpAdapter "github.com/smapp/messaging-service/internal/adapters/in/http"
	"github.com/smapp/messaging-service/internal/adapters/in/ws"
	"github.com/smapp/messaging-service/internal/adapters/out/authsvc"
	"github.com/smapp/messaging-service/internal/adapters/out/db"
	"github.com/smapp/messaging-service/internal/adapters/out/mq"
	eureka "github.com/smapp/messaging-service/internal/adapters/out/registry"
	"github.com/smapp/messaging-service/internal/application"
	"github.com/smapp/messaging-service/internal/ports/out"
	"github.com/smapp/messaging-service/internal/realtime"
	"github.com/smapp/messaging-service/pkg/zlog"
)

func main() {
	// 加载配置
	if err := loadConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}
	os.Setenv("APP_ENV", env)
	logCfgPath := filepath.Join(".", "configs", fmt.Sprintf("config.%s.yaml", env))
	if _, err := os.Stat(logCfgPath); os.IsNotExist(err) {
		logCfgPath = filepath.Join("..", "configs", fmt.Sprintf("config.%s.yaml", env))
	}

	logCfg, err := zlog.LoadConfig(logCfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载日志配置失败: %v\n", err)
		os.Exit(1)
	}
	zlog.MustInitGlobal(*logCfg)
	defer zap.L().Sync()

	logger := zap.L()
	logger.Info("messaging-service starting", zap.String("env", env))

	// 注册业务指标
	zlog.RegisterMetrics(prometheus.DefaultRegisterer)
	realtime.RegisterMetrics(prometheus.DefaultRegisterer)

	// 初始化数据库
	database, err := initDB()
	if err != nil {
		logger.Fatal("Failed to init database", zap.Error(err))
	}
	if err := db.AutoMigrate(database); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}

	// 初始化Redis（可选，仅用于令牌校验缓存）
	var redisClient *redis.Client
	if addr := viper.GetString("redis.addr"); addr != "" {
		redisClient, err = initRedis(addr)
		if err != nil {
			logger.Warn("redis unavailable, token cache disabled", zap.Error(err))
			redisClient = nil
		}
	}

	// 初始化Kafka发布器（可选）
	var eventPublisher out.EventPublisher
	if brokers := viper.GetStringSlice("kafka.brokers"); len(brokers) > 0 {
		eventPublisher, err = mq.NewKafkaEventPublisher(brokers)
		if err != nil {
			logger.Fatal("Failed to init kafka publisher", zap.Error(err))
		}
		defer eventPublisher.Close()
	}

	// 初始化令牌校验链
	validator := buildTokenValidator(redisClient, logger)

	// 初始化在线状态注册表和投递路由
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	presence := realtime.NewRegistry(statusPublisher(eventPublisher), logger)
	go presence.Run(ctx)
	deliveryRouter := realtime.NewRouter(presence, logger)

	// 初始化仓储层和应用层
	userRepo := db.NewUserRepositoryMySQL(database)
	convRepo := db.NewConversationRepositoryMySQL(database)
	messageRepo := db.NewMessageRepositoryMySQL(database)
	messageUseCase := application.NewMessageUseCase(userRepo, convRepo, messageRepo, deliveryRouter, eventPublisher)

	// 初始化HTTP服务器
	devMode := viper.GetBool("server.dev_mode")
	if env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), zlog.GinLogger())

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"service": "messaging-service", "status": "running"})
	})
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/log/level", gin.WrapF(zlog.LevelHTTPHandler()))
	router.PUT("/log/level", gin.WrapF(zlog.LevelHTTPHandler()))

	// WebSocket路由：不走 Bearer 中间件，鉴权在升级后由处理器自己完成
	wsHandler := ws.NewHandler(presence, validator, logger)
	router.GET("/api/messaging/ws/:user_id", wsHandler.Handle)

	apiGroup := router.Group("/api/messaging")
	apiGroup.Use(httpAdapter.AuthMiddleware(validator, devMode, logger))
	httpAdapter.NewMessageController(messageUseCase, devMode).RegisterRoutes(apiGroup)

	// 注册到Eureka（可选）
	var eurekaClient *eureka.EurekaClient
	if serverURL := viper.GetString("eureka.server_url"); serverURL != "" {
		eurekaClient = eureka.NewEurekaClient(eureka.Config{
			ServerURL:  serverURL,
			AppName:    viper.GetString("eureka.app_name"),
			InstanceIP: viper.GetString("eureka.instance_ip"),
			Port:       viper.GetInt("server.http_port"),
		}, logger)
		eurekaClient.Register(ctx)
	}

	// 启动HTTP服务器
	httpPort := viper.GetInt("server.http_port")
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", httpPort),
		Handler: router,
	}
	go func() {
		logger.Info("HTTP server starting", zap.Int("port", httpPort))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	if eurekaClient != nil {
		eurekaClient.Deregister()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown error", zap.Error(err))
	}

	logger.Info("Server exited properly")
}

// buildTokenValidator 按配置拼装令牌校验链：
// 开发模式先本地验签后远程校验，生产模式只信任认证服务；
// 配了 Redis 就在最外层包一层结果缓存
func buildTokenValidator(redisClient *redis.Client, logger *zap.Logger) out.TokenValidator {
	devMode := viper.GetBool("server.dev_mode")
	secret := viper.GetString("auth.jwt_secret")
	authURL := viper.GetString("auth.service_url")

	var validators []out.TokenValidator
	if devMode && secret != "" {
		validators = append(validators, authsvc.NewLocalValidator(secret))
	}
	if authURL != "" {
		validators = append(validators, authsvc.NewRemoteValidator(authURL))
	}
	if len(validators) == 0 {
		// 两种校验方式都没配时退回本地验签，空密钥会拒绝一切令牌
		logger.Warn("no auth backend configured, falling back to local JWT validation")
		validators = append(validators, authsvc.NewLocalValidator(secret))
	}

	var validator out.TokenValidator = authsvc.NewChainValidator(validators...)
	if redisClient != nil {
		validator = authsvc.NewCachedValidator(validator, redisClient)
	}
	return validator
}

// statusPublisher 把可选的事件发布器适配成注册表需要的窄接口
func statusPublisher(publisher out.EventPublisher) realtime.StatusPublisher {
	if publisher == nil {
		return nil
	}
	return publisher
}

func loadConfig() error {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}

	viper.SetConfigName(fmt.Sprintf("config.%s", env))
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../configs")
	viper.AddConfigPath("../../configs")

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	return nil
}

func initDB() (*gorm.DB, error) {
	dsn := viper.GetString("mysql.dsn")

	database, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := database.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(viper.GetInt("mysql.max_idle_conns"))
	sqlDB.SetMaxOpenConns(viper.GetInt("mysql.max_open_conns"))
	sqlDB.SetConnMaxLifetime(time.Hour)

	return database, nil
}

func initRedis(addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: viper.GetString("redis.password"),
		DB:       viper.GetInt("redis.db"),
		PoolSize: viper.GetInt("redis.pool_size"),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect redis: %w", err)
	}

	return client, nil
}
