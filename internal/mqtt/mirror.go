// Package mqtt 把网桥镜像到 MQTT：周期发布回报快照，并把命令主题上的路径交给命令路由。
package mqtt

import (
	"context"
	"fmt"
	"time"

	"github.com/edgexfoundry/go-mod-core-contracts/v4/clients/logger"
	"github.com/linjuya-lu/device_s2a_go/internal/config"
	"github.com/linjuya-lu/device_s2a_go/internal/router"
	"github.com/sony/gobreaker/v2"
)

const (
	breakerMaxFailures uint32 = 3
	breakerTimeout            = 30 * time.Second
	disconnectQuiesce  uint   = 250
)

// Bridge 由 router.Router 实现
type Bridge interface {
	Submit(path string) router.Result
	// Render 与 Report 相同的文本，但不触发"客户端已就绪"提示
	Render() string
}

// Mirror 与 HTTP 客户端并列的第二个命令生产者
type Mirror struct {
	lc      logger.LoggingClient
	bus     Bus
	bridge  Bridge
	cfg     config.MQTT
	device  string
	breaker *gobreaker.CircuitBreaker[struct{}]
}

func NewMirror(lc logger.LoggingClient, bus Bus, bridge Bridge, cfg config.MQTT, device string) *Mirror {
	m := &Mirror{lc: lc, bus: bus, bridge: bridge, cfg: cfg, device: device}
	// Broker 长时间不可用时快速失败，避免每个周期都阻塞并刷日志
	m.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "mqtt:" + cfg.Broker,
		MaxRequests: 1,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= breakerMaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			lc.Warnf("circuit breaker %s: %s -> %s", name, from, to)
		},
	})
	return m
}

// Start 订阅命令主题并开始周期发布；ctx 取消后停止发布
func (m *Mirror) Start(ctx context.Context) error {
	if m.cfg.CommandTopic != "" {
		if err := m.bus.Subscribe(m.cfg.CommandTopic, m.HandleCommand); err != nil {
			return fmt.Errorf("subscribe %s: %w", m.cfg.CommandTopic, err)
		}
		m.lc.Infof("accepting command paths on %s", m.cfg.CommandTopic)
	}
	if m.cfg.ReportTopic != "" && m.cfg.PublishIntervalMs > 0 {
		go m.publishLoop(ctx, time.Duration(m.cfg.PublishIntervalMs)*time.Millisecond)
	}
	return nil
}

func (m *Mirror) Stop() {
	m.bus.Disconnect(disconnectQuiesce)
}

func (m *Mirror) publishLoop(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.PublishReport(); err != nil {
				m.lc.Debugf("publish report: %v", err)
			}
		}
	}
}

// PublishReport 发布一次当前快照；无可回报时跳过
func (m *Mirror) PublishReport() error {
	report := m.bridge.Render()
	if report == router.NothingToReport {
		return nil
	}
	body, err := newEnvelope("", newReport(m.device, report))
	if err != nil {
		return err
	}
	return m.publish(m.cfg.ReportTopic, body)
}

// HandleCommand 命令主题的回调：校验入队，结果发布到应答主题
func (m *Mirror) HandleCommand(raw []byte) {
	path, correlationID := decodeCommand(raw)
	res := m.bridge.Submit(path)
	m.lc.Debugf("mqtt command %q: %s", path, res.Body)
	if m.cfg.ResponseTopic == "" {
		return
	}

	body, err := newEnvelope(correlationID, CommandReply{Path: path, Accepted: res.Accepted, Body: res.Body})
	if err != nil {
		m.lc.Errorf("encode command reply: %v", err)
		return
	}
	if err := m.publish(m.cfg.ResponseTopic, body); err != nil {
		m.lc.Warnf("publish command reply for %q: %v", path, err)
	}
}

func (m *Mirror) publish(topic string, body []byte) error {
	_, err := m.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, m.bus.Publish(topic, body)
	})
	return err
}
