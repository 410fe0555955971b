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

package battery

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"

	"github.com/quaylabs/peripheral/pkg/models"
)

const sysfsPowerSupplyPath = "/sys/class/power_supply"

// Sampler reads one battery telemetry sample. The default reads the cpufreq
// style sysfs battery interface and gopsutil host sensors; tests and
// platform bindings inject their own.
type Sampler func(ctx context.Context) (models.BatteryState, error)

var (
	loadAvgFunc    = load.AvgWithContext
	uptimeFunc     = host.UptimeWithContext
	sensorsFunc    = host.SensorsTemperaturesWithContext
	readSysfsLevel = readPowerSupply
)

// defaultSampler gathers battery level and charge state from sysfs, plus
// host load, uptime, and temperature via gopsutil. Hosts without a battery
// report external power at full level.
func defaultSampler(ctx context.Context) (models.BatteryState, error) {
	state := models.BatteryState{
		Level:     1.0,
		Source:    models.PowerSourceExternal,
		SampledAt: time.Now(),
	}

	if level, charging, ok := readSysfsLevel(); ok {
		state.Level = level
		state.Charging = charging

		state.Source = models.PowerSourceBattery
		if charging {
			state.Source = models.PowerSourceExternal
		}
	}

	if avg, err := loadAvgFunc(ctx); err == nil {
		state.LoadAvg = avg.Load1
	}

	if up, err := uptimeFunc(ctx); err == nil {
		state.HostUptime = up
	}

	if temps, err := sensorsFunc(ctx); err == nil {
		for _, t := range temps {
			if strings.Contains(t.SensorKey, "battery") || strings.Contains(t.SensorKey, "bat") {
				state.TemperatureC = t.Temperature
				break
			}
		}
	}

	return state, nil
}

// readPowerSupply scans /sys/class/power_supply for the first battery entry
// and returns its normalized level and charging flag.
func readPowerSupply() (level float64, charging, ok bool) {
	entries, err := os.ReadDir(sysfsPowerSupplyPath)
	if err != nil {
		return 0, false, false
	}

	for _, entry := range entries {
		base := filepath.Join(sysfsPowerSupplyPath, entry.Name())

		typ, err := os.ReadFile(filepath.Join(base, "type"))
		if err != nil || strings.TrimSpace(string(typ)) != "Battery" {
			continue
		}

		capRaw, err := os.ReadFile(filepath.Join(base, "capacity"))
		if err != nil {
			continue
		}

		pct, err := strconv.Atoi(strings.TrimSpace(string(capRaw)))
		if err != nil {
			continue
		}

		status, _ := os.ReadFile(filepath.Join(base, "status"))
		st := strings.TrimSpace(string(status))

		return float64(pct) / 100.0, st == "Charging" || st == "Full", true
	}

	return 0, false, false
}
