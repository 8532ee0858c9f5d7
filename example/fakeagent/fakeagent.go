// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command fakeagent serves a single simulated device over the MTConnect
// REST and websocket protocols, for trying mt without a machine.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shayne/yargs"

	"github.com/yeetrun/mt/pkg/compress"
)

const devicesTmpl = `<?xml version="1.0" encoding="UTF-8"?>
<MTConnectDevices xmlns="urn:mtconnect.org:MTConnectDevices:2.2">
  <Header creationTime="%s" sender="fakeagent" instanceId="1" version="2.2.0" bufferSize="131072"/>
  <Devices>
    <Device id="mill" name="Mill" uuid="mill-001">
      <DataItems>
        <DataItem id="avail" type="AVAILABILITY" category="EVENT"/>
      </DataItems>
      <Components>
        <Axes id="axes" name="Axes">
          <Components>
            <Linear id="x" name="X">
              <DataItems>
                <DataItem id="Xpos" name="Xact" type="POSITION" subType="ACTUAL" category="SAMPLE" units="MILLIMETER"/>
                <DataItem id="xsys" type="SYSTEM" category="CONDITION"/>
              </DataItems>
            </Linear>
          </Components>
        </Axes>
      </Components>
    </Device>
  </Devices>
</MTConnectDevices>`

const streamsTmpl = `<?xml version="1.0" encoding="UTF-8"?>
<MTConnectStreams xmlns="urn:mtconnect.org:MTConnectStreams:2.2">
  <Header creationTime="%[1]s" sender="fakeagent" instanceId="1" version="2.2.0" nextSequence="%[2]d" firstSequence="1" lastSequence="%[3]d"/>
  <Streams>
    <DeviceStream name="Mill" uuid="mill-001">
      <ComponentStream component="Device" componentId="mill">
        <Events>
          <Availability dataItemId="avail" sequence="1" timestamp="%[1]s">AVAILABLE</Availability>
        </Events>
      </ComponentStream>
      <ComponentStream component="Linear" componentId="x" name="X">
        <Samples>
          <Position dataItemId="Xpos" name="Xact" subType="ACTUAL" sequence="%[3]d" timestamp="%[1]s">%[4].3f</Position>
        </Samples>
        <Condition>
          <Normal dataItemId="xsys" type="SYSTEM" sequence="2" timestamp="%[1]s"/>
        </Condition>
      </ComponentStream>
    </DeviceStream>
  </Streams>
</MTConnectStreams>`

const assetsTmpl = `<?xml version="1.0" encoding="UTF-8"?>
<MTConnectAssets xmlns="urn:mtconnect.org:MTConnectAssets:2.2">
  <Header creationTime="%s" sender="fakeagent" instanceId="1" version="2.2.0" assetCount="1"/>
  <Assets>
    <CuttingTool assetId="T1" serialNumber="1" toolId="T1" deviceUuid="mill-001" timestamp="%[1]s"/>
  </Assets>
</MTConnectAssets>`

const errorTmpl = `<?xml version="1.0" encoding="UTF-8"?>
<MTConnectError xmlns="urn:mtconnect.org:MTConnectError:2.2">
  <Header creationTime="%s" sender="fakeagent" instanceId="1" version="2.2.0"/>
  <Errors>
    <Error errorCode="%s">%s</Error>
  </Errors>
</MTConnectError>`

// agent simulates one device whose X axis moves along a sine wave.
type agent struct {
	seq   atomic.Uint64
	clock func() time.Time
}

func newAgent() *agent {
	a := &agent{clock: time.Now}
	a.seq.Store(2)
	return a
}

func (a *agent) now() string {
	return a.clock().UTC().Format(time.RFC3339Nano)
}

func (a *agent) devices() string {
	return fmt.Sprintf(devicesTmpl, a.now())
}

// streams advances the sequence and returns the next document.
func (a *agent) streams() string {
	seq := a.seq.Add(1)
	return fmt.Sprintf(streamsTmpl, a.now(), seq+1, seq, 100*math.Sin(float64(seq)/10))
}

func (a *agent) assets() string {
	return fmt.Sprintf(assetsTmpl, a.now())
}

func (a *agent) failure(code, msg string) string {
	return fmt.Sprintf(errorTmpl, a.now(), code, msg)
}

// route maps a request path to its MTConnect request and device.
func route(path string) (request, device string) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	switch len(parts) {
	case 1:
		return parts[0], ""
	case 2:
		if parts[0] == "asset" {
			return "asset", ""
		}
		return parts[1], parts[0]
	}
	return "", ""
}

func (a *agent) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		a.serveWebsocket(w, r)
		return
	}

	cw, err := compress.NewResponseWriter(w, compress.SelectEncoding(r.Header.Get("Accept-Encoding")))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer cw.Close()

	request, device := route(r.URL.Path)
	if device != "" && device != "Mill" {
		a.writeDoc(cw, http.StatusNotFound, a.failure("NO_DEVICE", fmt.Sprintf("Could not find the device '%s'", device)))
		return
	}
	switch request {
	case "probe", "":
		a.writeDoc(cw, http.StatusOK, a.devices())
	case "current", "sample":
		interval, err := parseInterval(r.URL.Query().Get("interval"))
		if err != nil {
			a.writeDoc(cw, http.StatusBadRequest, a.failure("INVALID_REQUEST", err.Error()))
			return
		}
		if interval > 0 {
			a.serveStream(r, cw, interval)
			return
		}
		a.writeDoc(cw, http.StatusOK, a.streams())
	case "assets", "asset":
		a.writeDoc(cw, http.StatusOK, a.assets())
	default:
		a.writeDoc(cw, http.StatusBadRequest, a.failure("UNSUPPORTED", "Unsupported request: "+request))
	}
}

func parseInterval(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	ms, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q", s)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func (a *agent) writeDoc(w http.ResponseWriter, code int, doc string) {
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(code)
	io.WriteString(w, doc)
}

// serveStream writes a multipart/x-mixed-replace section every interval
// until the client goes away.
func (a *agent) serveStream(r *http.Request, cw *compress.ResponseWriter, interval time.Duration) {
	mw := multipart.NewWriter(cw)
	cw.Header().Set("Content-Type", "multipart/x-mixed-replace;boundary="+mw.Boundary())
	cw.WriteHeader(http.StatusOK)

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		doc := a.streams()
		h := textproto.MIMEHeader{}
		h.Set("Content-Type", "text/xml")
		h.Set("Content-Length", strconv.Itoa(len(doc)))
		pw, err := mw.CreatePart(h)
		if err != nil {
			return
		}
		if _, err := io.WriteString(pw, doc); err != nil {
			return
		}
		cw.Flush()
		select {
		case <-r.Context().Done():
			return
		case <-t.C:
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsRequest struct {
	ID       string `json:"id"`
	Request  string `json:"request"`
	Device   string `json:"device"`
	Interval uint64 `json:"interval"`
}

// serveWebsocket answers streaming requests with one document per message.
func (a *agent) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	_, data, err := conn.ReadMessage()
	if err != nil {
		return
	}
	var req wsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		conn.WriteMessage(websocket.TextMessage, []byte(a.failure("INVALID_REQUEST", err.Error())))
		return
	}
	log.Printf("ws %s %s", req.ID, req.Request)

	interval := time.Duration(req.Interval) * time.Millisecond
	if interval == 0 {
		interval = time.Second
	}

	// Reads only notice the client closing.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		doc := a.devices()
		if req.Request != "probe" {
			doc = a.streams()
		}
		if err := conn.WriteMessage(websocket.TextMessage, []byte(doc)); err != nil {
			return
		}
		select {
		case <-closed:
			return
		case <-t.C:
		}
	}
}

type flagsParsed struct {
	Addr string `flag:"addr" help:"Listen address (default :5000)"`
}

func main() {
	result, err := yargs.ParseKnownFlags[flagsParsed](os.Args[1:], yargs.KnownFlagsOptions{})
	if err != nil {
		log.Fatal(err)
	}
	addr := result.Flags.Addr
	if addr == "" {
		addr = ":5000"
	}
	log.Printf("fake agent listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, newAgent()))
}
