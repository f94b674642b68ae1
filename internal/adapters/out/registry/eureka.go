package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/hudl/fargo"
	"go.uber.org/zap"
)

// 心跳间隔，和 Eureka 默认的 30 秒租约刷新保持一致
const heartbeatInterval = 30 * time.Second

// Config Eureka 注册配置
type Config struct {
	ServerURL  string
	AppName    string
	InstanceIP string
	Port       int
}

// EurekaClient 把服务实例注册到 Eureka 并维持心跳
type EurekaClient struct {
	conn     fargo.EurekaConnection
	instance *fargo.Instance
	logger   *zap.Logger
}

// NewEurekaClient 创建 Eureka 客户端，不发起任何网络请求
func NewEurekaClient(cfg Config, logger *zap.Logger) *EurekaClient {
	conn := fargo.NewConn(cfg.ServerURL)
	conn.Timeout = 10 * time.Second

	instance := &fargo.Instance{
		HostName:         cfg.InstanceIP,
		App:              cfg.AppName,
		IPAddr:           cfg.InstanceIP,
		VipAddress:       cfg.AppName,
		SecureVipAddress: cfg.AppName,
		Port:             cfg.Port,
		PortEnabled:      true,
		Status:           fargo.UP,
		DataCenterInfo:   fargo.DataCenterInfo{Name: fargo.MyOwn},
		HomePageUrl:      fmt.Sprintf("http://%s:%d/", cfg.InstanceIP, cfg.Port),
		StatusPageUrl:    fmt.Sprintf("http://%s:%d/health", cfg.InstanceIP, cfg.Port),
		HealthCheckUrl:   fmt.Sprintf("http://%s:%d/health", cfg.InstanceIP, cfg.Port),
	}

	return &EurekaClient{conn: conn, instance: instance, logger: logger}
}

// Register 注册实例并启动心跳协程，ctx 取消时停止心跳。
// 注册失败只记日志，服务照常启动，下一次心跳会重试注册
func (c *EurekaClient) Register(ctx context.Context) {
	if err := c.conn.RegisterInstance(c.instance); err != nil {
		c.logger.Warn("eureka registration failed, will retry on heartbeat",
			zap.String("app", c.instance.App),
			zap.Error(err))
	} else {
		c.logger.Info("registered with eureka",
			zap.String("app", c.instance.App),
			zap.String("instance", c.instance.IPAddr))
	}

	go c.heartbeatLoop(ctx)
}

func (c *EurekaClient) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.conn.HeartBeatInstance(c.instance); err != nil {
				c.logger.Warn("eureka heartbeat failed, re-registering", zap.Error(err))
				if err := c.conn.RegisterInstance(c.instance); err != nil {
					c.logger.Warn("eureka re-registration failed", zap.Error(err))
				}
			}
		}
	}
}

// Deregister 下线时注销实例
func (c *EurekaClient) Deregister() {
	if err := c.conn.DeregisterInstance(c.instance); err != nil {
		c.logger.Warn("eureka deregistration failed", zap.Error(err))
		return
	}
	c.logger.Info("deregistered from eureka", zap.String("app", c.instance.App))
}
