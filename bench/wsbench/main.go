// wsbench 对消息服务的 WebSocket 接入层做连接压测：
// 按爬坡速率建立大量连接，统计握手延迟、上线广播和名单下发情况。
// 服务端通过控制帧维持心跳，客户端无需发送任何业务消息
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"sort"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/schollz/progressbar/v3"
)

// Config 压测配置
type Config struct {
	Target     string        // 服务地址，如 ws://localhost:8084
	Conns      int           // 总连接数
	Duration   time.Duration // 压测持续时间
	Ramp       time.Duration // 爬坡时间
	BaseUserID uint64        // 起始用户 ID
	JWTSecret  string        // 开发模式下用于本地签发令牌
	Output     string        // 输出格式：text, json
	Verbose    bool          // 详细输出
}

// Stats 统计数据
type Stats struct {
	mu sync.RWMutex

	TotalAttempts int64 `json:"total_attempts"`
	SuccessConns  int64 `json:"success_conns"`
	FailedConns   int64 `json:"failed_conns"`
	CurrentConns  int64 `json:"current_conns"`
	Disconnects   int64 `json:"disconnects"`

	// 握手延迟和收到名单的延迟（纳秒）
	ConnLatencies   []int64 `json:"-"`
	RosterLatencies []int64 `json:"-"`

	// 按事件类型统计收到的帧
	StatusEvents      int64 `json:"status_events"`
	RosterEvents      int64 `json:"roster_events"`
	MessageEvents     int64 `json:"message_events"`
	EstablishedEvents int64 `json:"established_events"`
	OtherEvents       int64 `json:"other_events"`

	Errors map[string]int64 `json:"errors"`

	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// Result 压测结果
type Result struct {
	Config Config `json:"config"`

	TotalAttempts int64   `json:"total_attempts"`
	SuccessConns  int64   `json:"success_conns"`
	FailedConns   int64   `json:"failed_conns"`
	SuccessRate   float64 `json:"success_rate_percent"`
	Disconnects   int64   `json:"disconnects"`
	FinalConns    int64   `json:"final_conns"`

	ConnLatency   LatencyStats `json:"conn_latency_ms"`
	RosterLatency LatencyStats `json:"roster_latency_ms"`

	StatusEvents      int64 `json:"status_events"`
	RosterEvents      int64 `json:"roster_events"`
	MessageEvents     int64 `json:"message_events"`
	EstablishedEvents int64 `json:"established_events"`

	Errors map[string]int64 `json:"errors"`

	Duration   time.Duration `json:"duration_seconds"`
	ActualTime float64       `json:"actual_time_seconds"`
}

// LatencyStats 延迟统计
type LatencyStats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Avg    float64 `json:"avg"`
	P50    float64 `json:"p50"`
	P90    float64 `json:"p90"`
	P95    float64 `json:"p95"`
	P99    float64 `json:"p99"`
	StdDev float64 `json:"std_dev"`
}

func main() {
	cfg := parseFlags()

	fmt.Println("=== wsbench - 消息服务 WebSocket 压测工具 ===")
	fmt.Printf("目标: %s\n", cfg.Target)
	fmt.Printf("连接数: %d\n", cfg.Conns)
	fmt.Printf("持续时间: %s\n", cfg.Duration)
	fmt.Printf("爬坡时间: %s\n", cfg.Ramp)
	fmt.Println()

	stats := &Stats{
		Errors:    make(map[string]int64),
		StartTime: time.Now(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\n收到中断信号，正在关闭...")
		cancel()
	}()

	runBench(ctx, cfg, stats)

	stats.EndTime = time.Now()

	result := generateResult(cfg, stats)
	switch cfg.Output {
	case "json":
		outputJSON(result)
	default:
		outputText(result)
	}
}

func parseFlags() Config {
	cfg := Config{}

	flag.StringVar(&cfg.Target, "target", "ws://localhost:8084", "服务地址")
	flag.IntVar(&cfg.Conns, "conns", 1000, "总连接数")
	flag.DurationVar(&cfg.Duration, "duration", 5*time.Minute, "压测持续时间")
	flag.DurationVar(&cfg.Ramp, "ramp", 1*time.Minute, "爬坡时间")
	flag.Uint64Var(&cfg.BaseUserID, "base-user-id", 100000, "起始用户 ID")
	flag.StringVar(&cfg.JWTSecret, "jwt-secret", "dev-only-secret-change-me", "本地签发令牌用的密钥，必须和服务端开发配置一致")
	flag.StringVar(&cfg.Output, "output", "text", "输出格式: text, json")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "详细输出")

	flag.Parse()

	return cfg
}

// signToken 为压测用户本地签发 HS256 令牌
func signToken(cfg Config, userID uint64) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  float64(userID),
		"username": fmt.Sprintf("bench_%d", userID),
		"exp":      time.Now().Add(2 * time.Hour).Unix(),
	})
	return token.SignedString([]byte(cfg.JWTSecret))
}

func runBench(ctx context.Context, cfg Config, stats *Stats) {
	var wg sync.WaitGroup
	connCh := make(chan *websocket.Conn, cfg.Conns)

	connsPerSecond := float64(cfg.Conns) / cfg.Ramp.Seconds()
	if connsPerSecond < 1 {
		connsPerSecond = 1
	}

	fmt.Printf("爬坡速率: %.1f 连接/秒\n\n", connsPerSecond)

	bar := progressbar.NewOptions(cfg.Conns,
		progressbar.OptionSetDescription("建立连接"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("conn"),
	)

	ticker := time.NewTicker(time.Duration(float64(time.Second) / connsPerSecond))
	defer ticker.Stop()

	connID := 0
	rampDone := false

	for !rampDone {
		select {
		case <-ctx.Done():
			rampDone = true
		case <-ticker.C:
			if connID >= cfg.Conns {
				rampDone = true
				continue
			}

			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				conn := createConnection(ctx, id, cfg, stats)
				if conn != nil {
					select {
					case connCh <- conn:
					case <-ctx.Done():
						conn.Close()
					}
				}
				bar.Add(1)
			}(connID)
			connID++
		}
	}

	bar.Finish()
	fmt.Println()

	wg.Wait()

	close(connCh)
	var conns []*websocket.Conn
	for c := range connCh {
		conns = append(conns, c)
	}

	fmt.Printf("成功建立 %d 个连接\n", len(conns))
	if len(conns) == 0 {
		fmt.Println("没有成功建立的连接，退出")
		return
	}

	elapsed := time.Since(stats.StartTime)
	remainingDuration := cfg.Duration - elapsed
	if remainingDuration <= 0 {
		remainingDuration = time.Minute
	}

	fmt.Printf("维持连接 %s...\n\n", remainingDuration)

	var connWg sync.WaitGroup
	for _, c := range conns {
		connWg.Add(1)
		go func(c *websocket.Conn) {
			defer connWg.Done()
			runConnection(ctx, c, stats, remainingDuration)
		}(c)
	}

	reportTicker := time.NewTicker(10 * time.Second)
	defer reportTicker.Stop()

	done := make(chan struct{})
	go func() {
		connWg.Wait()
		close(done)
	}()

	timeout := time.After(remainingDuration)

	for {
		select {
		case <-ctx.Done():
			fmt.Println("收到中断信号，等待连接关闭...")
			connWg.Wait()
			return
		case <-timeout:
			fmt.Println("压测时间到，关闭连接...")
			for _, c := range conns {
				c.Close()
			}
			connWg.Wait()
			return
		case <-done:
			return
		case <-reportTicker.C:
			printProgress(stats)
		}
	}
}

func createConnection(ctx context.Context, id int, cfg Config, stats *Stats) *websocket.Conn {
	atomic.AddInt64(&stats.TotalAttempts, 1)

	userID := cfg.BaseUserID + uint64(id)
	token, err := signToken(cfg, userID)
	if err != nil {
		atomic.AddInt64(&stats.FailedConns, 1)
		recordError(stats, err)
		return nil
	}

	start := time.Now()
	url := fmt.Sprintf("%s/api/messaging/ws/%d?token=%s", cfg.Target, userID, token)

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
	}

	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		atomic.AddInt64(&stats.FailedConns, 1)
		recordError(stats, err)
		if cfg.Verbose {
			fmt.Printf("连接 %d 失败: %v\n", id, err)
		}
		return nil
	}

	// 连接成功后服务端会依次推送上线广播、连接确认和在线名单，
	// 等到名单到达才算一次完整的接入
	rosterDeadline := time.Now().Add(10 * time.Second)
	for {
		ws.SetReadDeadline(rosterDeadline)
		_, msg, err := ws.ReadMessage()
		if err != nil {
			atomic.AddInt64(&stats.FailedConns, 1)
			recordError(stats, err)
			ws.Close()
			return nil
		}
		if eventType(msg) == "online_users" {
			break
		}
	}

	latency := time.Since(start).Nanoseconds()
	stats.mu.Lock()
	stats.ConnLatencies = append(stats.ConnLatencies, latency)
	stats.RosterLatencies = append(stats.RosterLatencies, latency)
	stats.mu.Unlock()

	atomic.AddInt64(&stats.SuccessConns, 1)
	atomic.AddInt64(&stats.CurrentConns, 1)
	atomic.AddInt64(&stats.RosterEvents, 1)

	return ws
}

func runConnection(ctx context.Context, ws *websocket.Conn, stats *Stats, duration time.Duration) {
	defer func() {
		ws.Close()
		atomic.AddInt64(&stats.CurrentConns, -1)
	}()

	deadline := time.Now().Add(duration)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if time.Now().After(deadline) {
			return
		}

		// 服务端 pongWait 是 60s，读超时放宽到 90s
		ws.SetReadDeadline(time.Now().Add(90 * time.Second))
		_, msg, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				atomic.AddInt64(&stats.Disconnects, 1)
			}
			return
		}

		switch eventType(msg) {
		case "user_status":
			atomic.AddInt64(&stats.StatusEvents, 1)
		case "online_users":
			atomic.AddInt64(&stats.RosterEvents, 1)
		case "new_message":
			atomic.AddInt64(&stats.MessageEvents, 1)
		case "connection_established":
			atomic.AddInt64(&stats.EstablishedEvents, 1)
		default:
			atomic.AddInt64(&stats.OtherEvents, 1)
		}
	}
}

func eventType(msg []byte) string {
	var envelope struct {
		Type string `json:"type"`
	}
	if json.Unmarshal(msg, &envelope) != nil {
		return ""
	}
	return envelope.Type
}

func recordError(stats *Stats, err error) {
	stats.mu.Lock()
	defer stats.mu.Unlock()

	errStr := err.Error()
	if len(errStr) > 50 {
		errStr = errStr[:50]
	}
	stats.Errors[errStr]++
}

func printProgress(stats *Stats) {
	current := atomic.LoadInt64(&stats.CurrentConns)
	success := atomic.LoadInt64(&stats.SuccessConns)
	failed := atomic.LoadInt64(&stats.FailedConns)
	disconnects := atomic.LoadInt64(&stats.Disconnects)
	statuses := atomic.LoadInt64(&stats.StatusEvents)

	elapsed := time.Since(stats.StartTime)
	fmt.Printf("[%s] 当前连接: %d | 成功: %d | 失败: %d | 断开: %d | 状态广播: %d\n",
		elapsed.Round(time.Second), current, success, failed, disconnects, statuses)
}

func generateResult(cfg Config, stats *Stats) Result {
	result := Result{
		Config:            cfg,
		TotalAttempts:     stats.TotalAttempts,
		SuccessConns:      stats.SuccessConns,
		FailedConns:       stats.FailedConns,
		Disconnects:       stats.Disconnects,
		FinalConns:        stats.CurrentConns,
		StatusEvents:      stats.StatusEvents,
		RosterEvents:      stats.RosterEvents,
		MessageEvents:     stats.MessageEvents,
		EstablishedEvents: stats.EstablishedEvents,
		Errors:            stats.Errors,
		Duration:          cfg.Duration,
		ActualTime:        stats.EndTime.Sub(stats.StartTime).Seconds(),
	}

	if stats.TotalAttempts > 0 {
		result.SuccessRate = float64(stats.SuccessConns) / float64(stats.TotalAttempts) * 100
	}

	result.ConnLatency = calculateLatencyStats(stats.ConnLatencies)
	result.RosterLatency = calculateLatencyStats(stats.RosterLatencies)

	return result
}

func calculateLatencyStats(latencies []int64) LatencyStats {
	if len(latencies) == 0 {
		return LatencyStats{}
	}

	sorted := make([]int64, len(latencies))
	copy(sorted, latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	toMs := func(ns int64) float64 { return float64(ns) / 1e6 }

	var sum int64
	for _, v := range sorted {
		sum += v
	}
	avg := float64(sum) / float64(len(sorted))

	var variance float64
	for _, v := range sorted {
		diff := float64(v) - avg
		variance += diff * diff
	}
	variance /= float64(len(sorted))
	stdDev := math.Sqrt(variance)

	return LatencyStats{
		Min:    toMs(sorted[0]),
		Max:    toMs(sorted[len(sorted)-1]),
		Avg:    toMs(int64(avg)),
		P50:    toMs(sorted[len(sorted)*50/100]),
		P90:    toMs(sorted[len(sorted)*90/100]),
		P95:    toMs(sorted[len(sorted)*95/100]),
		P99:    toMs(sorted[len(sorted)*99/100]),
		StdDev: toMs(int64(stdDev)),
	}
}

func outputJSON(result Result) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "JSON 编码错误: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

func outputText(result Result) {
	fmt.Println()
	fmt.Println("==================== 压测结果 ====================")
	fmt.Println()
	fmt.Println("--- 连接统计 ---")
	fmt.Printf("尝试连接数:     %d\n", result.TotalAttempts)
	fmt.Printf("成功连接数:     %d\n", result.SuccessConns)
	fmt.Printf("失败连接数:     %d\n", result.FailedConns)
	fmt.Printf("连接成功率:     %.2f%%\n", result.SuccessRate)
	fmt.Printf("断开连接数:     %d\n", result.Disconnects)
	fmt.Printf("最终连接数:     %d\n", result.FinalConns)
	fmt.Println()

	fmt.Println("--- 接入延迟（握手到收到在线名单，ms） ---")
	fmt.Printf("Min:    %.2f\n", result.ConnLatency.Min)
	fmt.Printf("Max:    %.2f\n", result.ConnLatency.Max)
	fmt.Printf("Avg:    %.2f\n", result.ConnLatency.Avg)
	fmt.Printf("P50:    %.2f\n", result.ConnLatency.P50)
	fmt.Printf("P90:    %.2f\n", result.ConnLatency.P90)
	fmt.Printf("P95:    %.2f\n", result.ConnLatency.P95)
	fmt.Printf("P99:    %.2f\n", result.ConnLatency.P99)
	fmt.Printf("StdDev: %.2f\n", result.ConnLatency.StdDev)
	fmt.Println()

	fmt.Println("--- 事件统计 ---")
	fmt.Printf("上下线广播:     %d\n", result.StatusEvents)
	fmt.Printf("在线名单:       %d\n", result.RosterEvents)
	fmt.Printf("新消息推送:     %d\n", result.MessageEvents)
	fmt.Printf("连接确认:       %d\n", result.EstablishedEvents)
	fmt.Println()

	if len(result.Errors) > 0 {
		fmt.Println("--- 错误统计 ---")
		for err, count := range result.Errors {
			fmt.Printf("%s: %d\n", err, count)
		}
		fmt.Println()
	}

	fmt.Printf("--- 运行时间: %.2f 秒 ---\n", result.ActualTime)
	fmt.Println()
	fmt.Println("=================================================")
}
