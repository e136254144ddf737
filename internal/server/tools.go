package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

var pathProperty = map[string]interface{}{
	"type":        "string",
	"description": "Absolute path to the tree mask image (PNG with alpha, or a black and white mask)",
}

var speciesProperty = map[string]interface{}{
	"type":        "string",
	"description": "Scientific name of the species, e.g. \"Salix babylonica\". Unknown names are neutral.",
}

var multiplierProperty = map[string]interface{}{
	"type":        "number",
	"description": "Explicit species multiplier applied to the score. Takes precedence over identification_score.",
	"minimum":     0,
}

var identificationProperty = map[string]interface{}{
	"type":        "number",
	"description": "Confidence (0-1) of the species identification. Above 0.8 keeps the full score, above 0.5 scales it by 0.75, otherwise by 0.45.",
	"minimum":     0,
	"maximum":     1,
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		{
			Name: "tree_tilt_analyze",
			Description: "Estimate how far a tree trunk leans from vertical using its segmentation mask. " +
				"Returns the tilt angle (positive for a right lean), whether the shape is a natural sweep, " +
				"a whole-trunk tilt or a minor tilt, and the validation accuracy. Adds a fall-risk score when species " +
				"information is supplied.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
					"config": map[string]interface{}{
						"type":        "object",
						"description": "Optional analysis parameters, same keys as the JSON config file (max_attempts, sweep_tilt_threshold_deg, validation_threshold, ...). A species_table_path here also applies to the risk block of this call.",
					},
					"species":              speciesProperty,
					"species_multiplier":   multiplierProperty,
					"identification_score": identificationProperty,
				},
				"required": []string{"path"},
			},
		},
		{
			Name: "tree_risk_score",
			Description: "Convert a tilt angle into a fall-risk score between 1 and 40 with a category " +
				"(LOW, MODERATE, HIGH, CRITICAL). Species with weak roots or wood raise the score.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"angle_degrees": map[string]interface{}{
						"type":        "number",
						"description": "Trunk tilt from vertical in degrees",
					},
					"trunk_line_count": map[string]interface{}{
						"type":        "integer",
						"description": "Number of trunk lines the tilt was measured from. Fewer than 5 adds an uncertainty penalty. Omit when unknown.",
						"minimum":     0,
					},
					"species":              speciesProperty,
					"species_multiplier":   multiplierProperty,
					"identification_score": identificationProperty,
				},
				"required": []string{"angle_degrees"},
			},
		},
		{
			Name:        "tree_species_risk",
			Description: "Look up the structural weakness of a species (root, wood and growth traits) and its combined structural risk.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"species": speciesProperty,
				},
				"required": []string{"species"},
			},
		},
		{
			Name:        "tree_trunk_profile",
			Description: "Measure the silhouette width row by row and locate the stable trunk band below the crown.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
					"window": map[string]interface{}{
						"type":        "integer",
						"description": "Smoothing window in rows. Default 301, clipped to the image height.",
						"default":     301,
					},
				},
				"required": []string{"path"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
