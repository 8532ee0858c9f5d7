// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/google/go-cmp/cmp"

	"github.com/yeetrun/mt/pkg/config"
)

const devicesDoc = `<MTConnectDevices><Header version="1.3.0.18"/><Devices><Device id="d1" name="Mill"/></Devices></MTConnectDevices>`

const errorDoc = `<MTConnectError><Header version="1.3.0.18"/><Errors><Error errorCode="NO_DEVICE">Could not find the device 'Lathe'</Error></Errors></MTConnectError>`

func streamsDoc(value string) string {
	return fmt.Sprintf(`<MTConnectStreams><Header version="1.3.0.18"/><Streams>
<DeviceStream name="Mill"><ComponentStream componentId="x" name="X">
<Samples><Position dataItemId="Xpos" timestamp="t1">%s</Position></Samples>
<Events><Availability dataItemId="avail" timestamp="t0">AVAILABLE</Availability></Events>
<Condition><Warning dataItemId="xsys" timestamp="t2">Low oil</Warning></Condition>
</ComponentStream></DeviceStream></Streams></MTConnectStreams>`, value)
}

func fakeAgent(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/probe", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, devicesDoc)
	})
	mux.HandleFunc("/Lathe/probe", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, errorDoc)
	})
	mux.HandleFunc("/current", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, streamsDoc("10.5"))
	})
	mux.HandleFunc("/asset/T1", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("removed") != "true" {
			http.Error(w, "removed not set", http.StatusBadRequest)
			return
		}
		io.WriteString(w, `<MTConnectAssets><Header version="1.3.0.18"/><Assets><CuttingTool assetId="T1"/></Assets></MTConnectAssets>`)
	})
	mux.HandleFunc("/sample", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("interval") == "" {
			io.WriteString(w, streamsDoc("1"))
			return
		}
		mw := multipart.NewWriter(w)
		w.Header().Set("Content-Type", "multipart/x-mixed-replace;boundary="+mw.Boundary())
		for _, v := range []string{"1", "2"} {
			pw, err := mw.CreatePart(nil)
			if err != nil {
				return
			}
			io.WriteString(pw, streamsDoc(v))
		}
		mw.Close()
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type session struct {
	cli    *Cli
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func newSession(t *testing.T, cfg *config.Config, input string) *session {
	t.Helper()
	s := &session{}
	c, err := New(cfg,
		WithIO(strings.NewReader(input), &s.stdout, &s.stderr),
		WithConfigPath(filepath.Join(t.TempDir(), "config.toml")),
		WithVersion("1.2.3"),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	s.cli = c
	return s
}

func (s *session) run(t *testing.T, args ...string) {
	t.Helper()
	if err := s.cli.Run(context.Background(), args); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestProcessToEnd(t *testing.T) {
	srv := fakeAgent(t)
	s := newSession(t, nil, "")
	s.run(t, "connect", srv.URL, "option", "format", "csv", "CURRENT", "-TYPE", "position")
	want := "Type,dataItemId,timestamp,Value\nPosition,Xpos,t1,10.5\n"
	if diff := cmp.Diff(want, s.stdout.String()); diff != "" {
		t.Fatalf("stdout mismatch (-want +got):\n%s", diff)
	}
	if s.stderr.Len() != 0 {
		t.Fatalf("stderr = %q", s.stderr.String())
	}
}

func TestParserError(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"bogus"}, ""},
		{[]string{"bogus", "version"}, "Parser Error!\n"},
		{[]string{"version", "bogus", "version"}, "Parser Error!\n"},
	}
	for _, tt := range tests {
		s := newSession(t, nil, "")
		s.run(t, tt.args...)
		if got := s.stderr.String(); got != tt.want {
			t.Errorf("%v: stderr = %q, want %q", tt.args, got, tt.want)
		}
	}
}

func TestErrorsDoNotStopBatch(t *testing.T) {
	s := newSession(t, nil, "")
	s.run(t, "version", "probe", "option", "format", "bogus", "option", "key")
	wantErr := []string{
		"Error: no connection to an MTConnect agent has been configured",
		"Error: option Format: invalid Format value \"bogus\"",
		"Error: invalid arguments for Option: argument 1 (value) was not provided",
	}
	for _, w := range wantErr {
		if !strings.Contains(s.stderr.String(), w) {
			t.Errorf("stderr %q does not contain %q", s.stderr.String(), w)
		}
	}
	if got := s.stdout.String(); got != "mt v.1.2.3\n" {
		t.Fatalf("stdout = %q", got)
	}
}

func TestExitStopsBatch(t *testing.T) {
	s := newSession(t, nil, "")
	s.run(t, "version", "exit", "version")
	if got := s.stdout.String(); got != "mt v.1.2.3\n" {
		t.Fatalf("stdout = %q", got)
	}
}

func TestInteractive(t *testing.T) {
	srv := fakeAgent(t)
	input := strings.Join([]string{
		"connect " + srv.URL,
		"",
		"bogus",
		"probe -deviceName Lathe",
		`option format "Json" version`,
		"probe -deviceName 'unterminated",
		"exit",
		"version",
	}, "\n")
	s := newSession(t, nil, input)
	s.run(t)

	wantErr := "Unrecognized command.\n" +
		"Error: MTConnect agent reported failure: 404 Not Found: NO_DEVICE: Could not find the device 'Lathe'\n" +
		"Error: unterminated quote\n"
	if diff := cmp.Diff(wantErr, s.stderr.String()); diff != "" {
		t.Fatalf("stderr mismatch (-want +got):\n%s", diff)
	}
	if got := s.stdout.String(); got != "mt v.1.2.3\n" {
		t.Fatalf("stdout = %q", got)
	}
}

func TestShowOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Format = "prettyjson"
	cfg.Transport = "WS"
	s := newSession(t, cfg, "")
	s.run(t, "option", "headerOnly", "TRUE", "showoptions")
	want := "Format: PrettyJson\n" +
		"HeaderOnly: true\n" +
		"Timeout: 30\n" +
		"Transport: ws\n" +
		"Verbose: false\n"
	if diff := cmp.Diff(want, s.stdout.String()); diff != "" {
		t.Fatalf("stdout mismatch (-want +got):\n%s", diff)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Format = "html"
	if _, err := New(cfg, WithIO(strings.NewReader(""), io.Discard, io.Discard)); err == nil {
		t.Fatal("New accepted an unknown format")
	}
}

func TestSaveOptions(t *testing.T) {
	s := newSession(t, nil, "")
	s.run(t, "connect", "agent.local:5000", "option", "timeout", "5", "saveoptions")
	got, err := config.Load(s.cli.cfgPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := config.Default()
	want.Agent = "http://agent.local:5000"
	want.Timeout = 5
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("saved config mismatch (-want +got):\n%s", diff)
	}
}

func TestSampleStream(t *testing.T) {
	srv := fakeAgent(t)
	cfg := config.Default()
	cfg.Agent = srv.URL
	cfg.Format = "CsvNoHeader"
	s := newSession(t, cfg, "")
	s.run(t, "sample", "-interval", "100", "-category", "samples")
	want := "Position,Xpos,t1,1\nPosition,Xpos,t1,2\n"
	if diff := cmp.Diff(want, s.stdout.String()); diff != "" {
		t.Fatalf("stdout mismatch (-want +got):\n%s", diff)
	}
}

func TestHeaderOnly(t *testing.T) {
	srv := fakeAgent(t)
	s := newSession(t, nil, "")
	s.run(t, "connect", srv.URL, "option", "HeaderOnly", "true", "probe")
	if got, want := s.stdout.String(), `<Header version="1.3.0.18"/>`+"\n"; got != want {
		t.Fatalf("stdout = %q, want %q", got, want)
	}
}

func TestTestCommand(t *testing.T) {
	srv := fakeAgent(t)
	s := newSession(t, nil, "")
	s.run(t, "test", srv.URL)
	if got := s.stdout.String(); got != "OK\n" {
		t.Fatalf("stdout = %q", got)
	}

	notAgent := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<html/>")
	}))
	defer notAgent.Close()
	s = newSession(t, nil, "")
	s.run(t, "test", notAgent.URL)
	if !strings.Contains(s.stderr.String(), "not an MTConnect agent") {
		t.Fatalf("stderr = %q", s.stderr.String())
	}
}

func TestTestWarnsAboutWebsocket(t *testing.T) {
	srv := fakeAgent(t)
	s := newSession(t, nil, "")
	s.run(t, "option", "transport", "ws", "test", srv.URL)
	if !strings.Contains(s.stderr.String(), "does not support websocket streaming") {
		t.Fatalf("stderr = %q", s.stderr.String())
	}
}

func TestStatus(t *testing.T) {
	old := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = old }()

	srv := fakeAgent(t)
	s := newSession(t, nil, "")
	s.run(t, "connect", srv.URL, "status")
	want := "Mill" + strings.Repeat(" ", defaultWidth-4) + "\n" +
		"|-X\n" +
		"  |-xsys\t( since t2)\n" +
		"\n"
	if diff := cmp.Diff(want, s.stdout.String()); diff != "" {
		t.Fatalf("stdout mismatch (-want +got):\n%s", diff)
	}
}

func TestHelp(t *testing.T) {
	s := newSession(t, nil, "")
	s.run(t, "help")
	out := s.stdout.String()
	for _, want := range []string{"Supported Commands:", "CURRENT", "SAVEOPTIONS", "[-deviceName]", "agentUri"} {
		if !strings.Contains(out, want) {
			t.Errorf("help output does not contain %q", want)
		}
	}
}

func TestSplitLine(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"   ", nil},
		{"current -path //Axes", []string{"current", "-path", "//Axes"}},
		{`current -path "//DataItem[@type='AVAILABILITY']"`, []string{"current", "-path", "//DataItem[@type='AVAILABILITY']"}},
		{`a 'b c' "d \"e\""`, []string{"a", "b c", `d "e"`}},
		{`a\ b ''`, []string{"a b", ""}},
	}
	for _, tt := range tests {
		got, err := SplitLine(tt.in)
		if err != nil {
			t.Fatalf("SplitLine(%q): %v", tt.in, err)
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("SplitLine(%q) mismatch (-want +got):\n%s", tt.in, diff)
		}
	}
	if _, err := SplitLine(`a "b`); err == nil {
		t.Fatal("SplitLine accepted an unterminated quote")
	}
}

func TestAsset(t *testing.T) {
	srv := fakeAgent(t)
	s := newSession(t, nil, "")
	s.run(t, "connect", srv.URL, "option", "format", "json", "asset", "-assetId", "T1", "-removed", "true")
	want := `{"MTConnectAssets":{"Header":{"@version":"1.3.0.18"},"Assets":{"CuttingTool":{"@assetId":"T1"}}}}` + "\n"
	if diff := cmp.Diff(want, s.stdout.String()); diff != "" {
		t.Fatalf("stdout mismatch (-want +got):\n%s", diff)
	}
	if s.stderr.Len() != 0 {
		t.Fatalf("stderr = %q", s.stderr.String())
	}
}

func TestClear(t *testing.T) {
	s := newSession(t, nil, "")
	s.run(t, "clear")
	if got := s.stdout.String(); got != "\x1b[H\x1b[2J" {
		t.Fatalf("stdout = %q", got)
	}
}
