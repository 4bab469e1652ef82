// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2019-2023 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

// Package driver 组装并管理网桥的生命周期：串口、握手、引脚初始化、
// 翻译循环、HTTP 接口以及可选的 MQTT 镜像。
package driver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/edgexfoundry/go-mod-core-contracts/v4/clients/logger"
	"github.com/edgexfoundry/go-mod-core-contracts/v4/errors"
	"github.com/linjuya-lu/device_s2a_go/internal/config"
	"github.com/linjuya-lu/device_s2a_go/internal/mqtt"
	"github.com/linjuya-lu/device_s2a_go/internal/router"
	"github.com/linjuya-lu/device_s2a_go/internal/serial"
	"github.com/linjuya-lu/device_s2a_go/internal/server"
	"github.com/linjuya-lu/device_s2a_go/internal/state"
	"github.com/linjuya-lu/device_s2a_go/internal/translator"
)

const shutdownTimeout = 5 * time.Second

type BridgeDriver struct {
	lc     logger.LoggingClient
	locker sync.Mutex

	cfg        *config.BridgeConfig
	transport  *serial.LineTransport
	translator *translator.Translator
	router     *router.Router
	http       *server.Server
	mirror     *mqtt.Mirror

	onFailure translator.FailureHandler
	cancel    context.CancelFunc
	loopDone  <-chan struct{}

	// 测试替换点
	newPort func(config.Port) (serial.Port, error)
	newBus  func(mqtt.ClientOptions) (mqtt.Bus, error)
}

func NewBridgeDriver(lc logger.LoggingClient) *BridgeDriver {
	return &BridgeDriver{
		lc:      lc,
		newPort: serial.NewPort,
		newBus: func(o mqtt.ClientOptions) (mqtt.Bus, error) {
			return mqtt.NewClient(o)
		},
	}
}

// SetFailureHandler 替换翻译循环的致命错误处理，须在 Start 之前调用
func (d *BridgeDriver) SetFailureHandler(h translator.FailureHandler) {
	d.onFailure = h
}

// Initialize 打开串口、确认设备就绪、初始化引脚并绑定 HTTP 端口。
// 任何一步失败都会释放已占用的资源并返回错误，进程应以非零状态退出。
func (d *BridgeDriver) Initialize(ctx context.Context, cfg *config.BridgeConfig) (err error) {
	d.locker.Lock()
	defer d.locker.Unlock()

	catalog, err := config.NewCatalog(cfg)
	if err != nil {
		return errors.NewCommonEdgeX(errors.KindContractInvalid, "build catalog", err)
	}
	d.cfg = cfg

	// 1. 串口
	port, err := d.newPort(cfg.Serial)
	if err != nil {
		return errors.NewCommonEdgeX(errors.KindContractInvalid, "serial port "+cfg.Serial.Name, err)
	}
	d.transport = serial.NewLineTransport(port, d.lc)
	if err := d.transport.Open(); err != nil {
		return err
	}
	d.lc.Infof("serial port %s opened on %s @ %d baud", cfg.Serial.Name, cfg.Serial.Device, cfg.Serial.Baudrate)
	defer func() {
		if err != nil {
			d.closePort()
		}
	}()

	// 2. 握手与引脚初始化
	shared := state.NewShared()
	d.translator = translator.New(d.lc, d.transport, catalog, shared, translator.Options{
		HandshakeAttempts: cfg.Device.HandshakeAttempts,
		HandshakeInterval: time.Duration(cfg.Device.HandshakeIntervalMs) * time.Millisecond,
		PollInterval:      time.Duration(cfg.Device.PollIntervalMs) * time.Millisecond,
	})
	if d.onFailure != nil {
		d.translator.SetFailureHandler(d.onFailure)
	}
	if r := d.translator.Handshake(ctx); r != translator.Ready {
		return errors.NewCommonEdgeX(errors.KindServiceUnavailable,
			fmt.Sprintf("device on %s is %s, check the firmware and the serial connection", cfg.Serial.Device, r), nil)
	}
	if err := d.translator.InitializePins(); err != nil {
		return fmt.Errorf("initialize pins: %w", err)
	}

	// 3. HTTP
	d.router = router.New(d.lc, catalog, shared)
	d.http = server.New(d.lc, cfg.HTTPServer, d.router)
	if err := d.http.Listen(); err != nil {
		return err
	}

	// 4. MQTT 镜像（可选）
	if cfg.MQTT.Broker != "" {
		bus, err := d.newBus(mqtt.OptionsFromConfig(cfg.MQTT))
		if err != nil {
			_ = d.http.Shutdown(context.Background())
			return err
		}
		d.mirror = mqtt.NewMirror(d.lc, bus, d.router, cfg.MQTT, cfg.Serial.Name)
		d.lc.Infof("mqtt mirror connected to %s", cfg.MQTT.Broker)
	}
	return nil
}

// Start 启动翻译循环、HTTP 服务与 MQTT 镜像
func (d *BridgeDriver) Start(ctx context.Context) error {
	d.locker.Lock()
	defer d.locker.Unlock()
	if d.translator == nil {
		return errors.NewCommonEdgeX(errors.KindServiceUnavailable, "bridge is not initialized", nil)
	}

	ctx, d.cancel = context.WithCancel(ctx)
	d.loopDone = d.translator.Start(ctx)

	go func() {
		if err := d.http.Serve(); err != nil {
			d.lc.Errorf("http server stopped: %v", err)
		}
	}()

	if d.mirror != nil {
		if err := d.mirror.Start(ctx); err != nil {
			d.lc.Warnf("mqtt mirror: %v", err)
		}
	}
	d.lc.Infof("bridge started, clients can connect on port %s", d.http.Port())
	return nil
}

// Stop 关闭 HTTP、断开 MQTT 并关闭串口。
// 关闭串口会打断循环中阻塞的读操作；force 时不等待循环退出。
func (d *BridgeDriver) Stop(force bool) error {
	d.locker.Lock()
	defer d.locker.Unlock()
	d.lc.Info("bridge is stopping...")

	if d.cancel != nil {
		d.cancel()
	}

	var firstErr error
	if d.http != nil {
		timeout := shutdownTimeout
		if force {
			timeout = 0
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		if err := d.http.Shutdown(ctx); err != nil && !force {
			firstErr = fmt.Errorf("http shutdown: %w", err)
		}
		cancel()
	}
	if d.mirror != nil {
		d.mirror.Stop()
	}
	if err := d.closePort(); err != nil && firstErr == nil {
		firstErr = err
	}

	if d.loopDone != nil && !force {
		select {
		case <-d.loopDone:
		case <-time.After(shutdownTimeout):
			d.lc.Warn("translator loop did not stop in time")
		}
	}
	return firstErr
}

// HTTPPort 实际监听的端口
func (d *BridgeDriver) HTTPPort() string {
	if d.http == nil {
		return ""
	}
	return d.http.Port()
}

func (d *BridgeDriver) closePort() error {
	if d.transport == nil {
		return nil
	}
	t := d.transport
	d.transport = nil
	if err := t.Close(); err != nil {
		return fmt.Errorf("close serial port: %w", err)
	}
	return nil
}
