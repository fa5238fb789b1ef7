package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pkt.systems/tabnap/httpapi"
	"pkt.systems/tabnap/schema"
)

func newFakeAPI(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var calls []string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(httpapi.StatusPayload{Status: schema.StatusNormal, Icon: schema.StatusNormal.Icon(), WindowID: 2, Version: "v1.0.0"})
	})
	mux.HandleFunc("GET /api/commands", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"commands": schema.Commands})
	})
	mux.HandleFunc("POST /api/commands/{name}", func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.PathValue("name"))
		if r.PathValue("name") == string(schema.CommandUnsuspendTab) {
			w.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "no active tab"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"command": r.PathValue("name")})
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, &calls
}

func TestClientStatus(t *testing.T) {
	ts, _ := newFakeAPI(t)
	client, err := newAPIClient("", ts.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	payload, err := client.Status(context.Background())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if payload.Status != schema.StatusNormal || payload.WindowID != 2 {
		t.Fatalf("unexpected status %+v", payload)
	}
	var buf bytes.Buffer
	if err := writeStatus(&buf, payload, false); err != nil {
		t.Fatalf("write status: %v", err)
	}
	if !strings.Contains(buf.String(), "normal") || !strings.Contains(buf.String(), "v1.0.0") {
		t.Fatalf("unexpected status output %q", buf.String())
	}
}

func TestClientExecuteSurfacesAPIError(t *testing.T) {
	ts, calls := newFakeAPI(t)
	client, err := newAPIClient("", strings.TrimPrefix(ts.URL, "http://"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := client.Execute(context.Background(), schema.CommandToggleSuspend); err != nil {
		t.Fatalf("execute: %v", err)
	}
	err = client.Execute(context.Background(), schema.CommandUnsuspendTab)
	if err == nil || !strings.Contains(err.Error(), "no active tab") {
		t.Fatalf("expected api error, got %v", err)
	}
	if len(*calls) != 2 {
		t.Fatalf("expected two calls, got %v", *calls)
	}
}

func TestClientUnreachableServer(t *testing.T) {
	client, err := newAPIClient("", "127.0.0.1:1")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.Status(context.Background()); !errors.Is(err, errNoServer) {
		t.Fatalf("expected unreachable error, got %v", err)
	}
}

func TestCommandRejectsUnknownName(t *testing.T) {
	ts, calls := newFakeAPI(t)
	cmd := newCommandCmd()
	cmd.SetArgs([]string{"--addr", ts.URL, "nope"})
	cmd.SetOut(&bytes.Buffer{})
	err := cmd.ExecuteContext(context.Background())
	if !errors.Is(err, schema.ErrUnknownCommand) {
		t.Fatalf("expected unknown command error, got %v", err)
	}
	if len(*calls) != 0 {
		t.Fatalf("did not expect api call, got %v", *calls)
	}
}

func TestCommandListsNames(t *testing.T) {
	ts, _ := newFakeAPI(t)
	cmd := newCommandCmd()
	var out bytes.Buffer
	cmd.SetArgs([]string{"--addr", ts.URL})
	cmd.SetOut(&out)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.HasPrefix(out.String(), string(schema.CommandToggleSuspend)+"\n") {
		t.Fatalf("unexpected command list %q", out.String())
	}
}
