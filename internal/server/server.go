package server

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/face-overlay/internal/assets"
	"github.com/ironsheep/face-overlay/internal/compositor"
	"github.com/ironsheep/face-overlay/internal/filters"
	"github.com/ironsheep/face-overlay/internal/session"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Controller is the capture session the tools drive. Start may still be
// running when other methods are called.
type Controller interface {
	Start(ctx context.Context) error
	Stop()
	Status() session.Status
	SelectFilter(id string) (*filters.Filter, error)
	ClearFilter()
	ActiveFilter() *filters.Filter
	Export(dir string) (string, error)
	Snapshot(scale float64) (*compositor.SnapshotResult, error)
}

// Options configure a Server.
type Options struct {
	// ExportDir is used when overlay_export gets no directory.
	ExportDir string
	Version   string

	// StartWait bounds how long overlay_capture_start blocks before
	// replying. Zero means DefaultStartWait.
	StartWait time.Duration
}

// Server handles MCP protocol communication
type Server struct {
	ctrl     Controller
	registry *filters.Registry
	assets   *assets.Cache
	opts     Options
	log      logrus.FieldLogger
}

// MCPRequest represents an incoming JSON-RPC request
type MCPRequest struct {
	JSONRPC string              `json:"jsonrpc"`
	ID      interface{}         `json:"id"`
	Method  string              `json:"method"`
	Params  jsoniter.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing JSON-RPC response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents a JSON-RPC error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// New creates a server driving ctrl. cache may be nil; it only feeds the
// asset state shown by overlay_filters_list.
func New(ctrl Controller, registry *filters.Registry, cache *assets.Cache, opts Options, log logrus.FieldLogger) *Server {
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.StartWait <= 0 {
		opts.StartWait = DefaultStartWait
	}
	return &Server{
		ctrl:     ctrl,
		registry: registry,
		assets:   cache,
		opts:     opts,
		log:      log,
	}
}

// Run serves requests read line by line from in, writing responses to out,
// until in is exhausted or ctx is cancelled.
func (s *Server) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	// Increase buffer size for large requests
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	encoder := json.NewEncoder(out)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.log.WithError(err).Warn("failed to parse request")
			continue
		}

		resp := s.handleRequest(ctx, &req)
		if resp != nil {
			if err := encoder.Encode(resp); err != nil {
				s.log.WithError(err).Error("failed to encode response")
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}

	return nil
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(ctx context.Context, req *MCPRequest) *MCPResponse {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		// Client acknowledgment, no response needed
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	case "ping":
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	default:
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &MCPError{
				Code:    -32601,
				Message: fmt.Sprintf("Method not found: %s", req.Method),
			},
		}
	}
}

// handleInitialize responds to the initialize request
func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    "face-overlay",
				"version": s.opts.Version,
			},
		},
	}
}

// handleToolsList returns every tool definition.
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
