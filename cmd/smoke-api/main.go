package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	baseURL := os.Getenv("SLOTLIST_API_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	grpcAddr := os.Getenv("SLOTLIST_GRPC_ADDR")
	if grpcAddr == "" {
		grpcAddr = "localhost:9090"
	}

	client := &http.Client{Timeout: 5 * time.Second}

	var health struct {
		Status  string `json:"status"`
		Service string `json:"service"`
	}
	getJSON(client, baseURL+"/healthz", &health)
	if health.Status != "ok" || health.Service != "slotlist-api" {
		log.Fatalf("unexpected health payload: %+v", health)
	}

	var board struct {
		Missions []struct {
			Slug       string `json:"slug"`
			Visibility string `json:"visibility"`
		} `json:"missions"`
	}
	getJSON(client, baseURL+"/v1/missions", &board)
	for _, m := range board.Missions {
		// Anonymous listing must never leak anything but public missions.
		if m.Visibility != "public" {
			log.Fatalf("non-public mission %q on anonymous list", m.Slug)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := grpc.DialContext(ctx, grpcAddr,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("dial grpc at %s: %v", grpcAddr, err)
	}
	defer conn.Close()

	resp, err := grpc_health_v1.NewHealthClient(conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{})
	if err != nil {
		log.Fatalf("grpc health check: %v", err)
	}
	if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		log.Fatalf("grpc health status: %s", resp.GetStatus())
	}

	fmt.Printf("✅ slotlist-api smoke test passed: %d public missions listed\n", len(board.Missions))
}

func getJSON(client *http.Client, url string, dst any) {
	resp, err := client.Get(url)
	if err != nil {
		log.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("get %s: status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		log.Fatalf("decode %s: %v", url, err)
	}
}
