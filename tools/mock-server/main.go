// Command mock-server runs a fake fnOS appliance for exporter development.
// It speaks the appliance websocket protocol: JSON frames carrying a "req"
// name and a "reqid" echoed back in the response. Responses come from a
// built-in set of canned payloads, optionally overridden per request name
// from a JSON data file.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	listenAddress = flag.String("listen-address", ":5666", "Address to listen on.")
	dataFile      = flag.String("data-file", "", "JSON file mapping request names to response payloads.")
	username      = flag.String("username", "admin", "Accepted login user.")
	password      = flag.String("password", "admin", "Accepted login password.")
	responseDelay = flag.Duration("response-delay", 0, "Artificial delay before each response.")
)

type mockAppliance struct {
	mu        sync.RWMutex
	responses map[string]map[string]any
	username  string
	password  string
	delay     time.Duration
}

func newMockAppliance() *mockAppliance {
	return &mockAppliance{
		responses: defaultResponses(),
		username:  *username,
		password:  *password,
		delay:     *responseDelay,
	}
}

// defaultResponses mirrors the payload shapes a real appliance returns.
func defaultResponses() map[string]map[string]any {
	return map[string]map[string]any{
		"appcgi.sysinfo.uptime": {
			"result": "succ",
			"data":   map[string]any{"uptime": 86400.0},
		},
		"appcgi.sysinfo.hostname": {
			"result": "succ",
			"data":   map[string]any{"hostname": "mock-nas"},
		},
		"appcgi.resmon.cpu": {
			"result": "succ",
			"data": []any{
				map[string]any{
					"name":  "Intel(R) N100",
					"usage": 7.5,
					"temp":  []any{41.0, 42.0, 40.0, 43.0},
				},
			},
		},
		"appcgi.resmon.gpu": {
			"result": "succ",
			"data": map[string]any{
				"num": 1.0,
				"gpu": []any{
					map[string]any{
						"device": "Radeon Graphics",
						"usage":  3.0,
						"memory": map[string]any{
							"ramTotal": 536870912.0,
							"ramUsed":  134217728.0,
						},
					},
				},
			},
		},
		"appcgi.resmon.memory": {
			"result": "succ",
			"data": map[string]any{
				"mem": map[string]any{
					"total":     16777216.0,
					"available": 8388608.0,
				},
				"swap": map[string]any{
					"total": 4194304.0,
					"free":  4194304.0,
				},
			},
		},
		"appcgi.resmon.disk": {
			"result": "succ",
			"data": map[string]any{
				"disk": []any{
					map[string]any{"name": "sda", "readByte": 1024.0, "writeByte": 2048.0},
					map[string]any{"name": "sdb", "readByte": 512.0, "writeByte": 4096.0},
				},
			},
		},
		"appcgi.resmon.net": {
			"result": "succ",
			"data": map[string]any{
				"ifs": []any{
					map[string]any{"name": "eth0", "rxByte": 123456.0, "txByte": 654321.0},
				},
			},
		},
		"appcgi.store.general": {
			"result": "succ",
			"data": map[string]any{
				"array": []any{
					map[string]any{
						"name":   "dm-1",
						"fssize": 9000409726976.0,
						"frsize": 2283558236160.0,
						"md": []any{
							map[string]any{"level": 1.0, "state": "clean"},
						},
					},
				},
				"block": []any{
					map[string]any{
						"name": "sda",
						"size": 4000787030016.0,
						"partitions": []any{
							map[string]any{"name": "sda1", "size": 4000785964544.0},
						},
						"arr-devices": []any{
							map[string]any{"slot": 0.0, "state": "active"},
						},
					},
				},
			},
		},
		"appcgi.store.disk.list": {
			"result": "succ",
			"data": map[string]any{
				"disk": []any{
					map[string]any{"name": "sda", "size": 4000787030016.0, "model": "WDC WD40EFRX"},
					map[string]any{"name": "sdb", "size": 4000787030016.0, "model": "WDC WD40EFRX"},
				},
			},
		},
		"appcgi.store.disk.smart": {
			"result": "succ",
			"smart": map[string]any{
				"smart_status": map[string]any{"passed": true},
				"temperature":  map[string]any{"current": 36.0},
				"power_on_time": map[string]any{
					"hours": 17520.0,
				},
			},
		},
		"appcgi.net.list": {
			"result": "succ",
			"data": map[string]any{
				"net": map[string]any{
					"ifs": []any{
						map[string]any{"name": "eth0", "mtu": 1500.0, "speed": 1000.0},
					},
				},
			},
		},
	}
}

func (m *mockAppliance) loadDataFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	overrides := map[string]map[string]any{}
	if err := json.Unmarshal(raw, &overrides); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for req, payload := range overrides {
		m.responses[req] = payload
	}
	return nil
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (m *mockAppliance) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	log.Printf("session opened from %s", r.RemoteAddr)

	for {
		var frame map[string]any
		if err := conn.ReadJSON(&frame); err != nil {
			log.Printf("session closed: %v", err)
			return
		}
		if m.delay > 0 {
			time.Sleep(m.delay)
		}
		resp := m.respond(frame)
		if err := conn.WriteJSON(resp); err != nil {
			log.Printf("write failed: %v", err)
			return
		}
	}
}

func (m *mockAppliance) respond(frame map[string]any) map[string]any {
	req, _ := frame["req"].(string)
	reqid, _ := frame["reqid"].(string)

	if req == "user.login" {
		return m.respondLogin(frame, reqid)
	}

	m.mu.RLock()
	canned, ok := m.responses[req]
	m.mu.RUnlock()
	if !ok {
		log.Printf("unknown request %q", req)
		return map[string]any{"reqid": reqid, "result": "fail", "errno": 404.0}
	}

	resp := make(map[string]any, len(canned)+1)
	for k, v := range canned {
		resp[k] = v
	}
	resp["reqid"] = reqid
	return resp
}

func (m *mockAppliance) respondLogin(frame map[string]any, reqid string) map[string]any {
	user, _ := frame["user"].(string)
	pass, _ := frame["password"].(string)
	if user == m.username && pass == m.password {
		return map[string]any{"reqid": reqid, "result": "succ"}
	}
	log.Printf("rejected login for user %q", user)
	return map[string]any{"reqid": reqid, "result": "fail", "errno": 401.0}
}

func main() {
	flag.Parse()

	appliance := newMockAppliance()
	if *dataFile != "" {
		if err := appliance.loadDataFile(*dataFile); err != nil {
			log.Fatalf("failed to load data file: %v", err)
		}
		log.Printf("loaded response overrides from %s", *dataFile)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/websocket", appliance.handleWebsocket)

	log.Printf("mock fnOS appliance listening on %s", *listenAddress)
	log.Fatal(http.ListenAndServe(*listenAddress, mux))
}
