// Command capture connects to a live fnOS appliance, issues the full query
// set the exporter uses, and writes the raw responses to a JSON file keyed
// by request name. The output feeds mock-server's -data-file flag, so real
// appliance payloads can be replayed in development and tests.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/Timandes/fnos-prometheus-exporter/fnos"
)

// queries lists every request the exporter issues, with the params it
// sends. SMART is captured per disk after the disk list is known.
var queries = []struct {
	req    string
	params map[string]any
}{
	{req: "appcgi.sysinfo.uptime"},
	{req: "appcgi.sysinfo.hostname"},
	{req: "appcgi.resmon.cpu"},
	{req: "appcgi.resmon.gpu"},
	{req: "appcgi.resmon.memory"},
	{req: "appcgi.resmon.disk"},
	{req: "appcgi.resmon.net"},
	{req: "appcgi.store.general"},
	{req: "appcgi.store.disk.list", params: map[string]any{"no_hot_spare": true}},
	{req: "appcgi.net.list", params: map[string]any{"type": 0}},
}

func main() {
	var (
		host     = flag.String("host", "", "Appliance host:port (required)")
		username = flag.String("user", "", "Username (required)")
		password = flag.String("pass", "", "Password (required)")
		output   = flag.String("output", "capture.json", "Output file path")
		timeout  = flag.Duration("timeout", 10*time.Second, "Per-request timeout")
		smart    = flag.Bool("smart", true, "Also capture SMART data for the first inventoried disk")
	)
	flag.Parse()

	if *host == "" || *username == "" || *password == "" {
		flag.Usage()
		log.Fatal("Required flags: -host, -user, -pass")
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	client, err := fnos.Dial(ctx, *host, logger)
	cancel()
	if err != nil {
		log.Fatalf("dial failed: %v", err)
	}
	defer client.Close()

	ctx, cancel = context.WithTimeout(context.Background(), *timeout)
	err = client.Login(ctx, *username, *password)
	cancel()
	if err != nil {
		log.Fatalf("login failed: %v", err)
	}
	log.Printf("connected to %s", *host)

	captured := make(map[string]map[string]any, len(queries)+1)
	for _, q := range queries {
		resp, err := request(client, *timeout, q.req, q.params)
		if err != nil {
			log.Printf("skipping %s: %v", q.req, err)
			continue
		}
		delete(resp, "reqid")
		captured[q.req] = resp
		log.Printf("captured %s", q.req)
	}

	if *smart {
		captureSMART(client, *timeout, captured)
	}

	raw, err := json.MarshalIndent(captured, "", "  ")
	if err != nil {
		log.Fatalf("encoding failed: %v", err)
	}
	if err := os.WriteFile(*output, raw, 0o644); err != nil {
		log.Fatalf("writing %s failed: %v", *output, err)
	}
	log.Printf("wrote %d responses to %s", len(captured), *output)
}

// captureSMART queries SMART state for the first disk in the captured
// inventory, since the SMART request needs a concrete disk name.
func captureSMART(client *fnos.Client, timeout time.Duration, captured map[string]map[string]any) {
	inventory, ok := captured["appcgi.store.disk.list"]
	if !ok {
		log.Print("no disk inventory captured, skipping SMART")
		return
	}
	name := firstDiskName(inventory)
	if name == "" {
		log.Print("no named disk in inventory, skipping SMART")
		return
	}
	resp, err := request(client, timeout, "appcgi.store.disk.smart", map[string]any{"disk": name})
	if err != nil {
		log.Printf("skipping SMART for %s: %v", name, err)
		return
	}
	delete(resp, "reqid")
	captured["appcgi.store.disk.smart"] = resp
	log.Printf("captured appcgi.store.disk.smart for %s", name)
}

func firstDiskName(inventory map[string]any) string {
	data, ok := inventory["data"].(map[string]any)
	if !ok {
		return ""
	}
	disks, ok := data["disk"].([]any)
	if !ok || len(disks) == 0 {
		return ""
	}
	disk, ok := disks[0].(map[string]any)
	if !ok {
		return ""
	}
	name, _ := disk["name"].(string)
	return name
}

func request(client *fnos.Client, timeout time.Duration, req string, params map[string]any) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return client.Request(ctx, req, params)
}
