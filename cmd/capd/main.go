/*
 * Copyright 2025 Quay Labs, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/quaylabs/peripheral/pkg/config"
	"github.com/quaylabs/peripheral/pkg/daemon"
	"github.com/quaylabs/peripheral/pkg/lifecycle"
	"github.com/quaylabs/peripheral/pkg/logger"
	"github.com/quaylabs/peripheral/pkg/version"
)

const envPrefix = "PERIPHERAL_"

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/peripheral/capd.json", "Path to daemon config file")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("capd " + version.GetFullVersion())
		return nil
	}

	ctx := context.Background()

	cfg := daemon.DefaultConfig()

	cfgLoader := config.NewConfig(nil, envPrefix)
	if err := cfgLoader.Load(ctx, *configPath, &cfg); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logConfig := cfg.Logging
	if logConfig == nil {
		logConfig = &logger.Config{
			Level:  "info",
			Output: "stdout",
		}
	}

	appLogger, err := lifecycle.CreateComponentLogger(ctx, "capd", logConfig)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	defer func() {
		_ = lifecycle.ShutdownLogger()
	}()

	d, err := daemon.New(cfg, appLogger)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	appLogger.Info().
		Str("version", version.GetVersion()).
		Str("build", version.GetBuildID()).
		Msg("Starting capability daemon")

	return lifecycle.Run(ctx, lifecycle.Options{
		ServiceName: "capd",
		Services:    []lifecycle.Service{d},
		Logger:      appLogger,
	})
}
