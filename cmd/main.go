// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018-2022 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/edgexfoundry/go-mod-core-contracts/v4/clients/logger"
	"github.com/linjuya-lu/device_s2a_go/internal/config"
	"github.com/linjuya-lu/device_s2a_go/internal/driver"
)

const (
	serviceName       = "device-s2a"
	defaultConfigPath = "./res/configuration.yaml"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", defaultConfigPath, "path of the bridge configuration file")
	flag.Parse()
	if flag.NArg() > 0 {
		*configPath = flag.Arg(0)
	}

	lc := logger.NewClient(serviceName, "INFO")
	lc.Infof("Using configuration file: %s", *configPath)
	lc.Info("To use another configuration file, pass it on the command line, e.g. device-s2a my_config.yaml")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		lc.Errorf("load configuration: %v", err)
		return 1
	}
	if cfg.Logging.Level != "INFO" {
		lc = logger.NewClient(serviceName, cfg.Logging.Level)
	}

	// SIGINT/SIGTERM 取消整个网桥
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d := driver.NewBridgeDriver(lc)
	if err := d.Initialize(ctx, cfg); err != nil {
		lc.Errorf("bridge startup failed: %v", err)
		lc.Error("is the board available, plugged in and running the JSON firmware?")
		return 1
	}
	if err := d.Start(ctx); err != nil {
		lc.Errorf("bridge start failed: %v", err)
		_ = d.Stop(true)
		return 1
	}
	lc.Info("Arduino interface is up and running")

	<-ctx.Done()
	lc.Info("received termination signal, shutting down")
	if err := d.Stop(false); err != nil {
		lc.Errorf("bridge stop: %v", err)
		return 1
	}
	return 0
}
