package server

import (
	"slices"
	"testing"
)

func TestGetToolDefinitions(t *testing.T) {
	tools := GetToolDefinitions()

	if len(tools) == 0 {
		t.Fatal("GetToolDefinitions returned empty slice")
	}

	expectedTools := []string{
		"overlay_filters_list",
		"overlay_filter_select",
		"overlay_capture_start",
		"overlay_capture_stop",
		"overlay_status",
		"overlay_export",
		"overlay_snapshot",
	}

	toolMap := make(map[string]Tool)
	for _, tool := range tools {
		if _, dup := toolMap[tool.Name]; dup {
			t.Errorf("duplicate tool %s", tool.Name)
		}
		toolMap[tool.Name] = tool
	}

	for _, name := range expectedTools {
		if _, ok := toolMap[name]; !ok {
			t.Errorf("Expected tool %s not found", name)
		}
	}
	if len(tools) != len(expectedTools) {
		t.Errorf("Expected %d tools, got %d", len(expectedTools), len(tools))
	}
}

func TestToolDefinitions_Structure(t *testing.T) {
	tools := GetToolDefinitions()

	for _, tool := range tools {
		t.Run(tool.Name, func(t *testing.T) {
			if tool.Name == "" {
				t.Error("Tool name is empty")
			}
			if tool.Description == "" {
				t.Error("Tool description is empty")
			}
			if tool.InputSchema == nil {
				t.Fatal("Tool InputSchema is nil")
			}

			if schemaType := tool.InputSchema["type"]; schemaType != "object" {
				t.Errorf("InputSchema type: got %v, want 'object'", schemaType)
			}
			if props, ok := tool.InputSchema["properties"]; !ok || props == nil {
				t.Error("InputSchema missing 'properties' field")
			}
		})
	}
}

func TestToolDefinitions_AllDispatched(t *testing.T) {
	s, _, _ := newTestServer(t)
	for _, tool := range GetToolDefinitions() {
		t.Run(tool.Name, func(t *testing.T) {
			resp := callTool(t, s, tool.Name, map[string]interface{}{"id": "fruit-crown"})
			if resp.Error != nil && resp.Error.Data == "unknown tool: "+tool.Name {
				t.Errorf("tool %s is listed but not dispatched", tool.Name)
			}
		})
	}
}

func TestToolDefinitions_FilterSelectRequiresID(t *testing.T) {
	var tool Tool
	for _, tt := range GetToolDefinitions() {
		if tt.Name == "overlay_filter_select" {
			tool = tt
			break
		}
	}
	if tool.Name == "" {
		t.Fatal("overlay_filter_select tool not found")
	}

	required, ok := tool.InputSchema["required"].([]string)
	if !ok {
		t.Fatal("required should be a string slice")
	}
	if !slices.Contains(required, "id") {
		t.Errorf("overlay_filter_select should require 'id', got %v", required)
	}
}

func TestToolDefinitions_SnapshotDefaultScale(t *testing.T) {
	for _, tool := range GetToolDefinitions() {
		if tool.Name != "overlay_snapshot" {
			continue
		}
		props := tool.InputSchema["properties"].(map[string]interface{})
		scale := props["scale"].(map[string]interface{})
		if scale["default"] != DefaultSnapshotScale {
			t.Errorf("scale default: got %v, want %v", scale["default"], DefaultSnapshotScale)
		}
		return
	}
	t.Fatal("overlay_snapshot tool not found")
}
