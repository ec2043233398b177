// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package diagnostics

import (
	"fmt"
	"net/http"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
	"strings"

	"github.com/DarkWingMcQuack/forge-core-sub000/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/pbnjay/memory"
	"github.com/urfave/cli/v2"
)

var (
	DiagnosticsFlag = cli.IntFlag{
		Name:  "diagnostic-port",
		Usage: "enable hosting of a realtime diagnostic server by providing a port",
		Value: 0,
	}
	CpuProfileFlag = cli.StringFlag{
		Name:  "cpuprofile",
		Usage: "sets the target file for storing CPU profiles to, disabled if empty",
		Value: "",
	}
	TraceFlag = cli.StringFlag{
		Name:  "tracefile",
		Usage: "sets the target file for traces to, disabled if empty",
		Value: "",
	}
)

// Flags lists the flags evaluated by WithDiagnostics.
func Flags() []cli.Flag {
	return []cli.Flag{&DiagnosticsFlag, &CpuProfileFlag, &TraceFlag}
}

// WithDiagnostics wraps an action such that, depending on the flags of the
// invocation, a pprof server is started, a CPU profile is recorded and an
// execution trace is collected while the action runs.
func WithDiagnostics(action cli.ActionFunc) cli.ActionFunc {
	return func(context *cli.Context) error {
		startDiagnosticServer(context.Int(DiagnosticsFlag.Name))

		cpuProfileFileName := context.String(CpuProfileFlag.Name)
		if strings.TrimSpace(cpuProfileFileName) != "" {
			if err := startCpuProfiler(cpuProfileFileName); err != nil {
				return err
			}
			defer pprof.StopCPUProfile()
		}

		traceFileName := context.String(TraceFlag.Name)
		if strings.TrimSpace(traceFileName) != "" {
			if err := startTracer(traceFileName); err != nil {
				return err
			}
			defer trace.Stop()
		}

		return action(context)
	}
}

// DescribeFootprint renders a memory footprint together with its share of
// the physical memory of the host.
func DescribeFootprint(mf *common.MemoryFootprint) string {
	total := memory.TotalMemory()
	if total == 0 {
		return mf.String()
	}
	share := float64(mf.Total()) / float64(total) * 100
	return fmt.Sprintf("%s(%.4f%% of %d bytes system memory)\n", mf.String(), share, total)
}

func startDiagnosticServer(port int) {
	if port <= 0 || port >= (1<<16) {
		return
	}
	addr := fmt.Sprintf("localhost:%d", port)
	log.Info("Starting diagnostic server", "url", "http://"+addr+"/debug/pprof/")
	log.Warn("Block and mutex sampling rate set to 100%, performance may be impacted")
	go func() {
		log.Error("Diagnostic server stopped", "err", http.ListenAndServe(addr, nil))
	}()
	runtime.SetBlockProfileRate(1)
	runtime.SetMutexProfileFraction(1)
}

func startCpuProfiler(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("could not create CPU profile: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		return fmt.Errorf("could not start CPU profile: %w", err)
	}
	return nil
}

func startTracer(filename string) error {
	traceFile, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create trace file: %w", err)
	}
	if err := trace.Start(traceFile); err != nil {
		return fmt.Errorf("failed to start trace: %w", err)
	}
	return nil
}
