/*
 * This file is part of Loqa (https://github.com/loqalabs/loqa).
 * Copyright (C) 2025 Loqa Labs
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package capabilities

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/loqalabs/loqa-interviewer/internal/logging"
)

// Probe reports whether one capability is currently usable
type Probe func(ctx context.Context) bool

// Static returns a probe with a fixed answer, for capabilities decided at startup
func Static(available bool) Probe {
	return func(context.Context) bool { return available }
}

// HTTPHealth returns a probe that expects 200 from url
func HTTPHealth(url string, timeout time.Duration) Probe {
	client := &http.Client{Timeout: timeout}
	return func(ctx context.Context) bool {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return false
		}
		resp, err := client.Do(req)
		if err != nil {
			return false
		}
		defer func() { _ = resp.Body.Close() }()
		return resp.StatusCode == http.StatusOK
	}
}

// HardwareInfo contains host information
type HardwareInfo struct {
	CPUCores      int     `json:"cpu_cores"`
	MemoryGB      float64 `json:"memory_gb"`
	MemoryUsedPct float64 `json:"memory_used_percent"`
	Architecture  string  `json:"architecture"`
	OS            string  `json:"os"`
}

// Snapshot is the last detected state of every capability
type Snapshot struct {
	Services          map[string]bool `json:"services"`
	Hardware          HardwareInfo    `json:"hardware"`
	LastDetected      time.Time       `json:"last_detected"`
	Degraded          bool            `json:"degraded"`
	DegradationReason string          `json:"degradation_reason,omitempty"`
}

// Detector periodically probes the pipeline capabilities so degraded
// operation is visible before a turn hits it
type Detector struct {
	mutex    sync.RWMutex
	probes   map[string]Probe
	snapshot Snapshot

	detectionInterval time.Duration
	probeTimeout      time.Duration

	onDegradation func(reason string)
}

// NewDetector creates a detector with no probes
func NewDetector() *Detector {
	return &Detector{
		probes:            make(map[string]Probe),
		detectionInterval: 30 * time.Second,
		probeTimeout:      5 * time.Second,
		snapshot: Snapshot{
			Services: map[string]bool{},
		},
	}
}

// Register adds a named probe. Registering a name twice replaces the probe.
func (d *Detector) Register(name string, probe Probe) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.probes[name] = probe
}

// SetDegradationCallback sets callback for transitions into degraded mode
func (d *Detector) SetDegradationCallback(callback func(reason string)) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.onDegradation = callback
}

// Start runs detection now and then every interval until ctx is cancelled
func (d *Detector) Start(ctx context.Context) {
	d.Detect(ctx)

	ticker := time.NewTicker(d.detectionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Detect(ctx)
		}
	}
}

// Detect runs every probe once and stores the result
func (d *Detector) Detect(ctx context.Context) Snapshot {
	d.mutex.RLock()
	probes := make(map[string]Probe, len(d.probes))
	for name, probe := range d.probes {
		probes[name] = probe
	}
	wasDegraded := d.snapshot.Degraded
	callback := d.onDegradation
	d.mutex.RUnlock()

	probeCtx, cancel := context.WithTimeout(ctx, d.probeTimeout)
	defer cancel()

	services := make(map[string]bool, len(probes))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for name, probe := range probes {
		wg.Add(1)
		go func(name string, probe Probe) {
			defer wg.Done()
			ok := probe(probeCtx)
			mu.Lock()
			services[name] = ok
			mu.Unlock()
		}(name, probe)
	}
	wg.Wait()

	degraded, reason := checkDegradation(services)
	snapshot := Snapshot{
		Services:          services,
		Hardware:          detectHardware(),
		LastDetected:      time.Now(),
		Degraded:          degraded,
		DegradationReason: reason,
	}

	d.mutex.Lock()
	d.snapshot = snapshot
	d.mutex.Unlock()

	logging.Sugar.Debugw("Capability detection completed",
		"services", services,
		"degraded", degraded)

	if degraded && !wasDegraded && callback != nil {
		go callback(reason)
	}

	return snapshot
}

// Snapshot returns the last detected state
func (d *Detector) Snapshot() Snapshot {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	services := make(map[string]bool, len(d.snapshot.Services))
	for name, ok := range d.snapshot.Services {
		services[name] = ok
	}
	snapshot := d.snapshot
	snapshot.Services = services
	return snapshot
}

func checkDegradation(services map[string]bool) (bool, string) {
	var down []string
	for name, ok := range services {
		if !ok {
			down = append(down, name)
		}
	}
	if len(down) == 0 {
		return false, ""
	}
	sort.Strings(down)
	return true, fmt.Sprintf("unavailable: %s", strings.Join(down, ", "))
}

func detectHardware() HardwareInfo {
	info := HardwareInfo{
		CPUCores:     runtime.NumCPU(),
		Architecture: runtime.GOARCH,
		OS:           runtime.GOOS,
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		info.MemoryGB = float64(vm.Total) / (1 << 30)
		info.MemoryUsedPct = vm.UsedPercent
	}

	return info
}
