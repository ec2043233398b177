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
	"net/http"
	_ "net/http/pprof"
	"path"
	"testing"
	"time"

	"github.com/DarkWingMcQuack/forge-core-sub000/common"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func TestWithDiagnostics_StartsRequestedDiagnostics(t *testing.T) {
	dir := t.TempDir()
	called := false
	action := func(ctx *cli.Context) error {
		require.FileExists(t, path.Join(dir, "cpu.profile"))
		require.FileExists(t, path.Join(dir, "tracer.out"))

		var statusCode int
		var lastErr error
		wait := 100 * time.Millisecond
		for i := 0; i < 10 && statusCode != http.StatusOK; i++ {
			resp, err := http.Get("http://localhost:6061/debug/pprof/")
			lastErr = err
			if resp != nil {
				statusCode = resp.StatusCode
				_ = resp.Body.Close()
			}
			time.Sleep(wait)
			wait *= 2
		}
		require.NoError(t, lastErr)
		require.Equal(t, http.StatusOK, statusCode)

		called = true
		return nil
	}

	app := &cli.App{
		Action: WithDiagnostics(action),
		Flags:  Flags(),
	}

	args := []string{"cmd",
		"--" + DiagnosticsFlag.Name, "6061",
		"--" + CpuProfileFlag.Name, path.Join(dir, "cpu.profile"),
		"--" + TraceFlag.Name, path.Join(dir, "tracer.out"),
	}
	require.NoError(t, app.Run(args))
	require.True(t, called, "action should be called")
}

func TestWithDiagnostics_NoFlagsRunsPlainAction(t *testing.T) {
	called := false
	app := &cli.App{
		Action: WithDiagnostics(func(*cli.Context) error {
			called = true
			return nil
		}),
		Flags: Flags(),
	}
	require.NoError(t, app.Run([]string{"cmd"}))
	require.True(t, called)
}

func TestDescribeFootprint_ContainsFootprint(t *testing.T) {
	mf := common.NewMemoryFootprint(128)
	require.Contains(t, DescribeFootprint(mf), "128\t.")
}
