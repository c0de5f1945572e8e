package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/ironsheep/face-overlay/internal/filters"
)

// DefaultSnapshotScale is used when overlay_snapshot gets no scale.
const DefaultSnapshotScale = 0.5

// DefaultStartWait is how long overlay_capture_start waits for the session
// to leave Starting before it replies with the current status.
const DefaultStartWait = 2 * time.Second

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "overlay_capture_start").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments jsoniter.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.log.WithField("tool", params.Name).WithError(err).Warn("tool failed")
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args jsoniter.RawMessage) (interface{}, error) {
	switch name {
	// Catalog
	case "overlay_filters_list":
		return s.handleFiltersList()
	case "overlay_filter_select":
		return s.handleFilterSelect(args)

	// Capture lifecycle
	case "overlay_capture_start":
		return s.handleCaptureStart(ctx)
	case "overlay_capture_stop":
		return s.handleCaptureStop()
	case "overlay_status":
		return s.ctrl.Status(), nil

	// Output
	case "overlay_export":
		return s.handleExport(args)
	case "overlay_snapshot":
		return s.handleSnapshot(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// unmarshalArgs decodes optional tool arguments; absent arguments leave a
// unchanged.
func unmarshalArgs(args jsoniter.RawMessage, a interface{}) error {
	if len(args) == 0 || string(args) == "null" {
		return nil
	}
	if err := json.Unmarshal(args, a); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// === Catalog Handlers ===

type filterInfo struct {
	*filters.Filter
	AssetState string `json:"asset_state,omitempty"`
	Active     bool   `json:"active"`
}

type filtersListResult struct {
	Filters []filterInfo `json:"filters"`
	Active  string       `json:"active,omitempty"`
}

func (s *Server) handleFiltersList() (interface{}, error) {
	active := s.ctrl.ActiveFilter()
	res := filtersListResult{Filters: []filterInfo{}}
	if active != nil {
		res.Active = active.ID
	}
	for _, f := range s.registry.List() {
		info := filterInfo{Filter: f, Active: active != nil && active.ID == f.ID}
		if key := f.AssetKey(); key != "" && s.assets != nil {
			if state, ok := s.assets.StateOf(key); ok {
				info.AssetState = state.String()
			} else {
				info.AssetState = "unrequested"
			}
		}
		res.Filters = append(res.Filters, info)
	}
	return res, nil
}

type filterSelectArgs struct {
	ID string `json:"id"`
}

type filterSelectResult struct {
	Active *filters.Filter `json:"active"`
}

func (s *Server) handleFilterSelect(args jsoniter.RawMessage) (interface{}, error) {
	var a filterSelectArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}

	if a.ID == "" || a.ID == "none" {
		s.ctrl.ClearFilter()
		return filterSelectResult{}, nil
	}

	f, err := s.ctrl.SelectFilter(a.ID)
	if err != nil {
		return nil, err
	}
	return filterSelectResult{Active: f}, nil
}

// === Capture Handlers ===

// handleCaptureStart starts capture in the background. A start that settles
// within StartWait is reported directly; a slower one replies "starting" so
// the control channel stays free for overlay_capture_stop and
// overlay_status.
func (s *Server) handleCaptureStart(ctx context.Context) (interface{}, error) {
	done := make(chan error, 1)
	go func() { done <- s.ctrl.Start(ctx) }()

	timer := time.NewTimer(s.opts.StartWait)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, fmt.Errorf("capture start cancelled")
			}
			return nil, err
		}
	case <-timer.C:
		go s.logLateStart(done)
	}
	return s.ctrl.Status(), nil
}

// logLateStart reports the outcome of a start that outlived its reply.
func (s *Server) logLateStart(done <-chan error) {
	err := <-done
	switch {
	case err == nil:
		s.log.Info("capture started")
	case errors.Is(err, context.Canceled):
		s.log.Info("capture start cancelled")
	default:
		s.log.WithError(err).Warn("capture start failed")
	}
}

func (s *Server) handleCaptureStop() (interface{}, error) {
	s.ctrl.Stop()
	return s.ctrl.Status(), nil
}

// === Output Handlers ===

type exportArgs struct {
	Dir string `json:"dir"`
}

type exportResult struct {
	Path string `json:"path"`
}

func (s *Server) handleExport(args jsoniter.RawMessage) (interface{}, error) {
	var a exportArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Dir == "" {
		a.Dir = s.opts.ExportDir
	}

	path, err := s.ctrl.Export(a.Dir)
	if err != nil {
		return nil, err
	}
	return exportResult{Path: path}, nil
}

type snapshotArgs struct {
	Scale float64 `json:"scale"`
}

func (s *Server) handleSnapshot(args jsoniter.RawMessage) (interface{}, error) {
	a := snapshotArgs{Scale: DefaultSnapshotScale}
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Scale <= 0 || a.Scale > 4 {
		return nil, fmt.Errorf("scale must be in (0, 4], got %g", a.Scale)
	}
	return s.ctrl.Snapshot(a.Scale)
}
