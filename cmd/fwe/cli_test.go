package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fwe/internal/config"
	"fwe/internal/scenario"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// modelStub is a fake scenario service. Days of supply is 10+PI*10; PI above
// rejectAbove is answered with HTTP 500.
type modelStub struct {
	srv         *httptest.Server
	hits        atomic.Int32
	rejectAbove float64
	slowBelow   float64

	mu     sync.Mutex
	bodies []map[string]any
	raw    []string
}

func newModelStub(t *testing.T) *modelStub {
	t.Helper()
	s := &modelStub{rejectAbove: 2, slowBelow: -2}
	s.srv = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *modelStub) handle(w http.ResponseWriter, r *http.Request) {
	s.hits.Add(1)
	if r.Method != http.MethodPost || r.URL.Path != "/run-scenario" {
		http.NotFound(w, r)
		return
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.bodies = append(s.bodies, body)
	s.raw = append(s.raw, string(data))
	s.mu.Unlock()

	pi, _ := body["PI"].(float64)
	if pi > s.rejectAbove {
		http.Error(w, "model exploded", http.StatusInternalServerError)
		return
	}
	if pi < s.slowBelow {
		time.Sleep(50 * time.Millisecond)
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"kpis":{"days_of_supply_calories":%g},"diagnostics":{"M_deliv":0.9},"notes":["ok"]}`, 10+pi*10)
}

func (s *modelStub) lastBody(t *testing.T) map[string]any {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.bodies)
	return s.bodies[len(s.bodies)-1]
}

// runCLI executes fwe in a fresh workspace-scoped command tree.
func runCLI(t *testing.T, ws string, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := execute(context.Background(), append(args, "--workspace", ws), &stdout, &stderr)
	return stdout.String(), err
}

func clearEndpointEnv(t *testing.T) {
	t.Helper()
	t.Setenv(config.EnvBaseURL, "")
	os.Unsetenv(config.EnvBaseURL)
}

func TestRunCmd_PrintsResult(t *testing.T) {
	clearEndpointEnv(t)
	stub := newModelStub(t)

	out, err := runCLI(t, t.TempDir(), "run", "--pi", "0.5", "--ci", "2", "--weeks", "12", "--host", stub.srv.URL)
	require.NoError(t, err)

	assert.Equal(t, "KPIs:\n  days_of_supply_calories: 15\nDiagnostics:\n  M_deliv: 0.9\nNotes:\n - ok\n", out)

	body := stub.lastBody(t)
	assert.Equal(t, 0.5, body["PI"])
	assert.Equal(t, 2.0, body["CI"])
	assert.Equal(t, 12.0, body["D_weeks"])
	assert.Equal(t, 5.9, body["population_m"])
	assert.Equal(t, 500.0, body["budget_musd"])
	assert.NotContains(t, body, "seed")
	assert.NotContains(t, body, "demand_cal_per_cap_day")
}

func TestRunCmd_EndToEnd(t *testing.T) {
	clearEndpointEnv(t)
	stub := newModelStub(t)

	out, err := runCLI(t, t.TempDir(), "run", "--pi", "0", "--ci", "2", "--weeks", "12", "--host", stub.srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "KPIs:\n  days_of_supply_calories: 10\nDiagnostics:\n  M_deliv: 0.9\nNotes:\n - ok\n", out)
}

func TestRunCmd_OptionalFields(t *testing.T) {
	clearEndpointEnv(t)
	stub := newModelStub(t)

	_, err := runCLI(t, t.TempDir(), "run", "--pi", "-0.5", "--ci", "1", "--weeks", "8",
		"--seed", "42", "--demand", "2100", "--host", stub.srv.URL)
	require.NoError(t, err)

	body := stub.lastBody(t)
	assert.Equal(t, -0.5, body["PI"])
	assert.Equal(t, 42.0, body["seed"])
	assert.Equal(t, 2100.0, body["demand_cal_per_cap_day"])
}

func TestRunCmd_LargeSeedSentExactly(t *testing.T) {
	clearEndpointEnv(t)
	stub := newModelStub(t)

	for _, seed := range []string{"9007199254740993", "9223372036854775807"} {
		_, err := runCLI(t, t.TempDir(), "run", "--pi", "0", "--ci", "2", "--weeks", "12",
			"--seed", seed, "--host", stub.srv.URL)
		require.NoError(t, err, seed)

		stub.mu.Lock()
		sent := stub.raw[len(stub.raw)-1]
		stub.mu.Unlock()
		assert.Contains(t, sent, `"seed":`+seed)
	}
}

func TestRunCmd_ValidationNeverSends(t *testing.T) {
	clearEndpointEnv(t)
	stub := newModelStub(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"ci out of range", []string{"--pi", "0", "--ci", "7", "--weeks", "12"}, "invalid CI"},
		{"pi out of range", []string{"--pi", "1.5", "--ci", "1", "--weeks", "12"}, "invalid PI"},
		{"weeks out of range", []string{"--pi", "0", "--ci", "1", "--weeks", "53"}, "invalid D_weeks"},
		{"seed not a number", []string{"--pi", "0", "--ci", "1", "--weeks", "12", "--seed", "abc"}, "invalid seed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"run", "--host", stub.srv.URL}, tt.args...)
			_, err := runCLI(t, t.TempDir(), args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
	assert.Zero(t, stub.hits.Load())
}

func TestRunCmd_RequiredFlags(t *testing.T) {
	_, err := runCLI(t, t.TempDir(), "run", "--ci", "1", "--weeks", "12")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"pi"`)
}

func TestRunCmd_ServerError(t *testing.T) {
	clearEndpointEnv(t)
	stub := newModelStub(t)
	stub.rejectAbove = 0

	out, err := runCLI(t, t.TempDir(), "run", "--pi", "0.5", "--ci", "1", "--weeks", "12", "--host", stub.srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 500")
	assert.Contains(t, err.Error(), "model exploded")
	assert.Empty(t, out)
}

func TestRunCmd_Unreachable(t *testing.T) {
	clearEndpointEnv(t)
	stub := newModelStub(t)
	url := stub.srv.URL
	stub.srv.Close()

	_, err := runCLI(t, t.TempDir(), "run", "--pi", "0", "--ci", "0", "--weeks", "1", "--host", url)
	require.Error(t, err)
}

func TestRunCmd_JSONFormat(t *testing.T) {
	clearEndpointEnv(t)
	stub := newModelStub(t)

	out, err := runCLI(t, t.TempDir(), "run", "--pi", "0", "--ci", "0", "--weeks", "4",
		"--host", stub.srv.URL, "--format", "json")
	require.NoError(t, err)

	var resp scenario.Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 10.0, resp.KPIs[scenario.KPIDaysOfSupply])
	assert.Equal(t, []string{"ok"}, resp.Notes)

	_, err = runCLI(t, t.TempDir(), "run", "--pi", "0", "--ci", "0", "--weeks", "4",
		"--host", stub.srv.URL, "--format", "xml")
	require.Error(t, err)
	assert.Equal(t, int32(1), stub.hits.Load())
}

func TestEndpointPrecedence(t *testing.T) {
	t.Run("environment", func(t *testing.T) {
		stub := newModelStub(t)
		t.Setenv(config.EnvBaseURL, stub.srv.URL)

		_, err := runCLI(t, t.TempDir(), "run", "--pi", "0", "--ci", "0", "--weeks", "1")
		require.NoError(t, err)
		assert.Equal(t, int32(1), stub.hits.Load())
	})

	t.Run("flag beats environment", func(t *testing.T) {
		envStub, flagStub := newModelStub(t), newModelStub(t)
		t.Setenv(config.EnvBaseURL, envStub.srv.URL)

		_, err := runCLI(t, t.TempDir(), "run", "--pi", "0", "--ci", "0", "--weeks", "1", "--host", flagStub.srv.URL)
		require.NoError(t, err)
		assert.Zero(t, envStub.hits.Load())
		assert.Equal(t, int32(1), flagStub.hits.Load())
	})

	t.Run("dotenv file", func(t *testing.T) {
		clearEndpointEnv(t)
		stub := newModelStub(t)
		ws := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(ws, ".env"), []byte(config.EnvBaseURL+"="+stub.srv.URL+"\n"), 0644))

		_, err := runCLI(t, ws, "run", "--pi", "0", "--ci", "0", "--weeks", "1")
		require.NoError(t, err)
		assert.Equal(t, int32(1), stub.hits.Load())
	})

	t.Run("environment beats config file", func(t *testing.T) {
		fileStub, envStub := newModelStub(t), newModelStub(t)
		ws := t.TempDir()
		cfg := config.DefaultConfig()
		cfg.API.BaseURL = fileStub.srv.URL
		require.NoError(t, cfg.Save(config.DefaultPath(ws)))

		clearEndpointEnv(t)
		_, err := runCLI(t, ws, "run", "--pi", "0", "--ci", "0", "--weeks", "1")
		require.NoError(t, err)
		assert.Equal(t, int32(1), fileStub.hits.Load())

		t.Setenv(config.EnvBaseURL, envStub.srv.URL)
		_, err = runCLI(t, ws, "run", "--pi", "0", "--ci", "0", "--weeks", "1")
		require.NoError(t, err)
		assert.Equal(t, int32(1), fileStub.hits.Load())
		assert.Equal(t, int32(1), envStub.hits.Load())
	})
}

func TestInvalidEnvironmentEndpoint(t *testing.T) {
	t.Run("flag replaces it", func(t *testing.T) {
		stub := newModelStub(t)
		t.Setenv(config.EnvBaseURL, "bogus")

		_, err := runCLI(t, t.TempDir(), "run", "--pi", "0", "--ci", "0", "--weeks", "1", "--host", stub.srv.URL)
		require.NoError(t, err)
		assert.Equal(t, int32(1), stub.hits.Load())
	})

	t.Run("config show still works", func(t *testing.T) {
		t.Setenv(config.EnvBaseURL, "bogus")

		out, err := runCLI(t, t.TempDir(), "config", "show")
		require.NoError(t, err)
		assert.Contains(t, out, "endpoint: bogus (env)")
	})

	t.Run("run without a flag fails", func(t *testing.T) {
		t.Setenv(config.EnvBaseURL, "bogus")

		_, err := runCLI(t, t.TempDir(), "run", "--pi", "0", "--ci", "0", "--weeks", "1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid endpoint from env")
		assert.Contains(t, err.Error(), `"bogus"`)
	})
}

func TestHistoryCmd(t *testing.T) {
	clearEndpointEnv(t)
	stub := newModelStub(t)
	stub.rejectAbove = 0.5
	ws := t.TempDir()

	out, err := runCLI(t, ws, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded yet.")

	_, err = runCLI(t, ws, "run", "--pi", "0.2", "--ci", "1", "--weeks", "6", "--host", stub.srv.URL)
	require.NoError(t, err)
	_, err = runCLI(t, ws, "run", "--pi", "0.9", "--ci", "1", "--weeks", "6", "--host", stub.srv.URL)
	require.Error(t, err)

	out, err = runCLI(t, ws, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "Total runs:   2")
	assert.Contains(t, out, "Success rate: 50%")
	assert.Contains(t, out, "succeeded")
	assert.Contains(t, out, "server_rejected")
	assert.Contains(t, out, "cli")
}

func TestHistoryCmd_Disabled(t *testing.T) {
	ws := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.History.Enabled = false
	require.NoError(t, cfg.Save(config.DefaultPath(ws)))

	_, err := runCLI(t, ws, "history")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disabled")
}

func TestSweepPoints(t *testing.T) {
	assert.Equal(t, []float64{-1, -0.5, 0, 0.5, 1}, sweepPoints(-1, 1, 5))
	assert.Equal(t, []float64{0.3}, sweepPoints(0.3, 1, 1))

	pts := sweepPoints(-0.3, 0.7, 4)
	require.Len(t, pts, 4)
	assert.Equal(t, 0.7, pts[3])
}

func TestSweepCmd_OrderedTable(t *testing.T) {
	clearEndpointEnv(t)
	stub := newModelStub(t)
	// the first point answers last
	stub.slowBelow = -0.5
	ws := t.TempDir()

	out, err := runCLI(t, ws, "sweep", "--steps", "3", "--ci", "1", "--weeks", "12",
		"--parallel", "3", "--host", stub.srv.URL)
	require.NoError(t, err)
	assert.Equal(t, int32(3), stub.hits.Load())

	assert.Contains(t, out, "PI Sweep")
	assert.Contains(t, out, "Days of Supply")
	assert.Contains(t, out, "HedgeOps")
	iLow, iMid := strings.Index(out, "-1.00"), strings.Index(out, "0.00")
	require.True(t, iLow >= 0 && iMid >= 0, out)
	assert.Less(t, iLow, iMid)
	assert.Greater(t, strings.LastIndex(out, "1.00"), iMid)
	assert.Contains(t, out, "90.0")

	out, err = runCLI(t, ws, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "Total runs:   3")
	assert.Contains(t, out, "sweep")
}

func TestSweepCmd_PartialFailure(t *testing.T) {
	clearEndpointEnv(t)
	stub := newModelStub(t)
	stub.rejectAbove = 0.5

	out, err := runCLI(t, t.TempDir(), "sweep", "--steps", "3", "--ci", "1", "--weeks", "12", "--host", stub.srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3 sweep points failed")
	assert.Contains(t, out, "server_rejected")
	assert.Contains(t, out, "ok")
}

func TestSweepCmd_ValidatesBeforeSending(t *testing.T) {
	clearEndpointEnv(t)
	stub := newModelStub(t)

	_, err := runCLI(t, t.TempDir(), "sweep", "--from", "0", "--to", "2", "--ci", "1", "--weeks", "12", "--host", stub.srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid PI")
	assert.Zero(t, stub.hits.Load())

	_, err = runCLI(t, t.TempDir(), "sweep", "--steps", "0", "--ci", "1", "--weeks", "12", "--host", stub.srv.URL)
	require.Error(t, err)
}

func TestConfigCmd_InitAndShow(t *testing.T) {
	clearEndpointEnv(t)
	ws := t.TempDir()

	out, err := runCLI(t, ws, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, config.DefaultPath(ws))
	assert.FileExists(t, config.DefaultPath(ws))

	_, err = runCLI(t, ws, "config", "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--force")

	_, err = runCLI(t, ws, "config", "init", "--force")
	require.NoError(t, err)

	out, err = runCLI(t, ws, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "base_url: http://localhost:8081")
	assert.Contains(t, out, "endpoint: http://localhost:8081 (file)")

	t.Setenv(config.EnvBaseURL, "http://model.internal:9000")
	out, err = runCLI(t, ws, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "endpoint: http://model.internal:9000 (env)")

	// config commands never open the history database
	assert.NoFileExists(t, filepath.Join(ws, config.DirName, "history.db"))
}

func TestInvalidConfigFails(t *testing.T) {
	ws := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Sweep.Parallel = -1
	require.NoError(t, cfg.Save(config.DefaultPath(ws)))

	_, err := runCLI(t, ws, "config", "show")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sweep.parallel")
}

func TestBatteryCmd(t *testing.T) {
	clearEndpointEnv(t)
	stub := newModelStub(t)
	stub.rejectAbove = 0.5
	ws := t.TempDir()

	path := filepath.Join(ws, "battery.yaml")
	content := `version: 1
scenarios:
  - id: baseline
    pi: 0
    ci: 1
    weeks: 12
    expect:
      - key: days_of_supply_calories
        min: 5
      - key: Delivery
        min: 80
  - id: hedged
    pi: 0.9
    ci: 2
    weeks: 4
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	out, err := runCLI(t, ws, "battery", path, "--host", stub.srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 scenarios did not pass")
	assert.Contains(t, out, "baseline")
	assert.Contains(t, out, "PASS")
	assert.Contains(t, out, "FAIL")
	assert.Contains(t, out, "1 passed, 1 failed")

	out, err = runCLI(t, ws, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "battery")
}
