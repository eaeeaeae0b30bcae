/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package telemetry sends anonymous usage events and crash reports. Everything
// here is opt-in and fails silently: a full queue or an unreachable endpoint
// must never affect an editing or export session.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	applog "goflowwriter/internal/log"
	"goflowwriter/internal/version"
)

// Config holds the telemetry endpoints and opt-in flag.
//
// Environment variables read by FromEnv:
//   - GFW_TELEMETRY_OPT_IN: "1", "true", "yes", "on" to enable
//   - GFW_TELEMETRY_URL: URL events are POSTed to
//   - GFW_CRASH_UPLOAD_URL: URL crash reports are POSTed to
//   - GFW_TELEMETRY_TIMEOUT_MS: request timeout, default 1500ms
//   - GFW_TELEMETRY_DEBUG: log send attempts when set
//
// Without an events URL the client stays disabled even when opted in.
type Config struct {
	OptIn        bool
	EventsURL    string
	CrashURL     string
	Timeout      time.Duration
	DebugLogging bool
}

func FromEnv() Config {
	cfg := Config{
		OptIn:        parseBool(os.Getenv("GFW_TELEMETRY_OPT_IN")),
		EventsURL:    strings.TrimSpace(os.Getenv("GFW_TELEMETRY_URL")),
		CrashURL:     strings.TrimSpace(os.Getenv("GFW_CRASH_UPLOAD_URL")),
		Timeout:      1500 * time.Millisecond,
		DebugLogging: os.Getenv("GFW_TELEMETRY_DEBUG") != "",
	}
	if ms := strings.TrimSpace(os.Getenv("GFW_TELEMETRY_TIMEOUT_MS")); ms != "" {
		if v, err := time.ParseDuration(ms + "ms"); err == nil {
			cfg.Timeout = v
		}
	}
	return cfg
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// Client queues events on a bounded channel and sends them from a background
// goroutine. Callers never block.
type Client struct {
	cfg    Config
	log    *slog.Logger
	cli    *http.Client
	q      chan any
	once   sync.Once
	closed chan struct{}
}

var (
	defaultClient *Client
	defaultOnce   sync.Once
)

// InitDefault sets up the package-level client from env on first use.
func InitDefault() {
	defaultOnce.Do(func() { NewDefault(FromEnv()) })
}

// NewDefault installs a client built from cfg as the package default.
func NewDefault(cfg Config) {
	defaultClient = New(cfg)
}

// New constructs a client and starts its send loop.
func New(cfg Config) *Client {
	c := &Client{
		cfg:    cfg,
		log:    applog.WithComponent("telemetry"),
		cli:    &http.Client{Timeout: cfg.Timeout},
		q:      make(chan any, 64),
		closed: make(chan struct{}),
	}
	go c.loop()
	return c
}

// Enabled reports whether the client may send events.
func (c *Client) Enabled() bool { return c != nil && c.cfg.OptIn && c.cfg.EventsURL != "" }

// Enabled reports whether the default client may send events.
func Enabled() bool {
	InitDefault()
	return defaultClient.Enabled()
}

// Event enqueues a named event. Props must not contain PII; they are merged
// into the payload next to the standard name/ts/version/os fields.
func (c *Client) Event(name string, props map[string]any) {
	if !c.Enabled() || name == "" {
		return
	}
	payload := map[string]any{
		"name":    name,
		"ts":      time.Now().UTC().Format(time.RFC3339Nano),
		"version": version.String(),
		"os":      runtime.GOOS,
		"arch":    runtime.GOARCH,
	}
	for k, v := range props {
		payload[k] = v
	}
	select {
	case c.q <- payload:
	default:
		// queue full, drop
	}
}

// Event enqueues a named event on the default client.
func Event(name string, props map[string]any) { InitDefault(); defaultClient.Event(name, props) }

// Flush waits up to 500ms for the queue to drain.
func (c *Client) Flush(ctx context.Context) {
	deadline := time.Now().Add(500 * time.Millisecond)
	for len(c.q) > 0 && time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return
		case <-time.After(25 * time.Millisecond):
		}
	}
}

// Close stops the send loop.
func (c *Client) Close() { c.once.Do(func() { close(c.closed) }) }

func (c *Client) loop() {
	for {
		select {
		case <-c.closed:
			return
		case item := <-c.q:
			c.post(c.cfg.EventsURL, "application/json", mustJSON(item), "telemetry event")
		}
	}
}

func mustJSON(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}

func (c *Client) post(url, contentType string, body []byte, what string) {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := c.cli.Do(req)
	if err != nil {
		if c.cfg.DebugLogging {
			c.log.Debug("send failed", slog.String("what", what), slog.Any("err", err))
		}
		return
	}
	_ = resp.Body.Close()
	if c.cfg.DebugLogging {
		c.log.Debug("sent", slog.String("what", what))
	}
}

// UploadCrash posts a serialized crash report to the crash URL if opted in.
func (c *Client) UploadCrash(report []byte) {
	if c == nil || !c.cfg.OptIn || c.cfg.CrashURL == "" {
		return
	}
	go c.post(c.cfg.CrashURL, "text/plain; charset=utf-8", append([]byte(nil), report...), "crash report")
}

// UploadCrash posts a crash report through the default client.
func UploadCrash(report []byte) { InitDefault(); defaultClient.UploadCrash(report) }
