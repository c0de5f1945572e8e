package server

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	s, _, _ := newTestServer(t)
	if s == nil {
		t.Fatal("New() returned nil")
	}
	if s.opts.Version != "dev" {
		t.Errorf("default version: got %q, want dev", s.opts.Version)
	}
	if s.opts.StartWait != DefaultStartWait {
		t.Errorf("default start wait: got %v, want %v", s.opts.StartWait, DefaultStartWait)
	}
}

func TestMCPRequest_Unmarshal(t *testing.T) {
	tests := []struct {
		name       string
		json       string
		wantID     interface{}
		wantMethod string
	}{
		{
			"string id",
			`{"jsonrpc":"2.0","id":"test-1","method":"tools/list"}`,
			"test-1",
			"tools/list",
		},
		{
			"number id",
			`{"jsonrpc":"2.0","id":42,"method":"ping"}`,
			float64(42), // JSON numbers decode as float64
			"ping",
		},
		{
			"null id",
			`{"jsonrpc":"2.0","id":null,"method":"initialize"}`,
			nil,
			"initialize",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req MCPRequest
			if err := json.Unmarshal([]byte(tt.json), &req); err != nil {
				t.Fatalf("Failed to unmarshal: %v", err)
			}

			if req.ID != tt.wantID {
				t.Errorf("ID: got %v (%T), want %v (%T)", req.ID, req.ID, tt.wantID, tt.wantID)
			}
			if req.Method != tt.wantMethod {
				t.Errorf("Method: got %s, want %s", req.Method, tt.wantMethod)
			}
		})
	}
}

func TestMCPRequest_WithParams(t *testing.T) {
	jsonStr := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"overlay_filter_select","arguments":{"id":"fruit-crown"}}}`

	var req MCPRequest
	if err := json.Unmarshal([]byte(jsonStr), &req); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}

	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		t.Fatalf("Failed to unmarshal params: %v", err)
	}
	if params.Name != "overlay_filter_select" {
		t.Errorf("params.Name: got %v", params.Name)
	}
	if string(params.Arguments) != `{"id":"fruit-crown"}` {
		t.Errorf("params.Arguments: got %s", params.Arguments)
	}
}

func TestMCPResponse_WithError(t *testing.T) {
	resp := MCPResponse{
		JSONRPC: "2.0",
		ID:      1,
		Error: &MCPError{
			Code:    -32601,
			Message: "Method not found",
		},
	}

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}
	if strings.Contains(string(data), `"result"`) {
		t.Errorf("error response should omit result: %s", data)
	}

	var decoded MCPResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	if decoded.Error == nil || decoded.Error.Code != -32601 {
		t.Errorf("Error: got %+v", decoded.Error)
	}
}

func TestHandleRequest_Initialize(t *testing.T) {
	s, _, _ := newTestServer(t)
	s.opts.Version = "1.2.3"
	req := &MCPRequest{
		JSONRPC: "2.0",
		ID:      "init-1",
		Method:  "initialize",
	}

	resp := s.handleRequest(context.Background(), req)

	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %v", resp.Error)
	}
	if resp.ID != "init-1" {
		t.Errorf("ID: got %v, want init-1", resp.ID)
	}

	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("Result should be a map")
	}
	if result["protocolVersion"] != "2024-11-05" {
		t.Errorf("protocolVersion: got %v", result["protocolVersion"])
	}

	serverInfo, ok := result["serverInfo"].(map[string]interface{})
	if !ok {
		t.Fatal("serverInfo should be a map")
	}
	if serverInfo["name"] != "face-overlay" {
		t.Errorf("serverInfo.name: got %v", serverInfo["name"])
	}
	if serverInfo["version"] != "1.2.3" {
		t.Errorf("serverInfo.version: got %v", serverInfo["version"])
	}
}

func TestHandleRequest_Methods(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		wantNil  bool
		wantCode int
	}{
		{"ping", "ping", false, 0},
		{"tools list", "tools/list", false, 0},
		{"initialized notification", "notifications/initialized", true, 0},
		{"unknown method", "nonexistent/method", false, -32601},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, _ := newTestServer(t)
			resp := s.handleRequest(context.Background(), &MCPRequest{JSONRPC: "2.0", ID: 1, Method: tt.method})

			if tt.wantNil {
				if resp != nil {
					t.Errorf("%s should not get a response", tt.method)
				}
				return
			}
			if resp == nil {
				t.Fatal("handleRequest returned nil")
			}
			if tt.wantCode == 0 {
				if resp.Error != nil {
					t.Errorf("Unexpected error: %+v", resp.Error)
				}
				return
			}
			if resp.Error == nil || resp.Error.Code != tt.wantCode {
				t.Errorf("Error: got %+v, want code %d", resp.Error, tt.wantCode)
			}
		})
	}
}

func TestHandleRequest_ToolsList(t *testing.T) {
	s, _, _ := newTestServer(t)
	resp := s.handleRequest(context.Background(), &MCPRequest{JSONRPC: "2.0", ID: 1, Method: "tools/list"})

	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("Result should be a map")
	}
	toolsList, ok := result["tools"].([]Tool)
	if !ok {
		t.Fatal("tools should be a slice of Tool")
	}
	if len(toolsList) != len(GetToolDefinitions()) {
		t.Errorf("Expected %d tools, got %d", len(GetToolDefinitions()), len(toolsList))
	}
}

func TestRun(t *testing.T) {
	s, ctrl, hook := newTestServer(t)

	in := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize"}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		``,
		`this is not json`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"overlay_filter_select","arguments":{"id":"milk-mustache"}}}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"overlay_capture_start"}}`,
		`{"jsonrpc":"2.0","id":4,"method":"ping"}`,
	}, "\n")

	var out bytes.Buffer
	if err := s.Run(context.Background(), strings.NewReader(in), &out); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	var ids []float64
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var resp struct {
			ID    float64   `json:"id"`
			Error *MCPError `json:"error"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			t.Fatalf("bad response line %q: %v", scanner.Text(), err)
		}
		if resp.Error != nil {
			t.Errorf("response %v: unexpected error %+v", resp.ID, resp.Error)
		}
		ids = append(ids, resp.ID)
	}

	want := []float64{1, 2, 3, 4}
	if len(ids) != len(want) {
		t.Fatalf("responses: got ids %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("response %d: got id %v, want %v", i, ids[i], want[i])
		}
	}

	if ctrl.active == nil || ctrl.active.ID != "milk-mustache" {
		t.Errorf("filter not selected: %+v", ctrl.active)
	}
	if ctrl.Status().State.String() != "running" {
		t.Errorf("capture not started: %v", ctrl.Status().State)
	}

	warned := false
	for _, e := range hook.AllEntries() {
		if e.Message == "failed to parse request" {
			warned = true
		}
	}
	if !warned {
		t.Error("unparseable line should be logged")
	}
}

func TestRun_CancelledContext(t *testing.T) {
	s, _, _ := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err := s.Run(ctx, strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}`+"\n"), &out)
	if err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("no response expected after cancel, got %q", out.String())
	}
}
