package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func emptySchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Catalog
		{
			Name:        "overlay_filters_list",
			Description: "List the face filters in catalog order, with the active filter and the load state of each filter's artwork.",
			InputSchema: emptySchema(),
		},
		{
			Name:        "overlay_filter_select",
			Description: "Make a filter active. Takes effect on the next composited frame without restarting capture. An empty id or \"none\" clears the filter.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"id": map[string]interface{}{
						"type":        "string",
						"description": "Filter id from overlay_filters_list (e.g., \"fruit-crown\")",
					},
				},
				"required": []string{"id"},
			},
		},

		// Capture lifecycle
		{
			Name:        "overlay_capture_start",
			Description: "Open the camera and start the detect-and-composite loop. Returns the session status once capture is running, or with state \"starting\" if the camera is still being opened after a couple of seconds; poll overlay_status or call overlay_capture_stop to abandon it. Fails if capture is already active, if the camera is denied or missing, or once face detection has been found unavailable.",
			InputSchema: emptySchema(),
		},
		{
			Name:        "overlay_capture_stop",
			Description: "Stop capture and release the camera. The last composited frame stays available for export.",
			InputSchema: emptySchema(),
		},
		{
			Name:        "overlay_status",
			Description: "Report the capture state, active filter, last overlay placement and loop counters.",
			InputSchema: emptySchema(),
		},

		// Output
		{
			Name:        "overlay_export",
			Description: "Save the current composited frame as face-overlay-<timestamp>.png and return its path.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"dir": map[string]interface{}{
						"type":        "string",
						"description": "Directory to write into. Defaults to the configured export directory",
					},
				},
			},
		},
		{
			Name:        "overlay_snapshot",
			Description: "Return the current composited frame as a base64-encoded PNG for preview.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"scale": map[string]interface{}{
						"type":        "number",
						"description": "Scale factor in (0, 4]. Default 0.5",
						"default":     DefaultSnapshotScale,
					},
				},
			},
		},
	}
}
