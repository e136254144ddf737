package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ironsheep/treetilt-mcp/internal/config"
	"github.com/ironsheep/treetilt-mcp/internal/profile"
	"github.com/ironsheep/treetilt-mcp/internal/risk"
	"github.com/ironsheep/treetilt-mcp/internal/tilt"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "tree_tilt_analyze").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// Parameters:
//   - ctx: Cancels a running tilt analysis between detection attempts.
//   - req: The MCP request. Params must decode to ToolCallParams.
//
// Returns:
//   - *MCPResponse: Either a result holding the tool output or a JSON-RPC
//     error. Never nil.
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
		return s.errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.logger.Warn("tool failed", "tool", params.Name, "error", err)
		return s.errorResponse(req.ID, codeToolFailed, "Tool execution failed", err.Error())
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
//
// Parameters:
//   - ctx: Passed to handlers that do long-running work.
//   - name: Tool name from tools/list.
//   - args: Raw JSON arguments. Empty arguments decode as {}.
//
// Returns:
//   - interface{}: The handler's result, marshalled into the text content.
//   - error: Invalid arguments, a handler failure, or an unknown tool name.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "tree_tilt_analyze":
		return s.handleTiltAnalyze(ctx, args)
	case "tree_risk_score":
		return s.handleRiskScore(args)
	case "tree_species_risk":
		return s.handleSpeciesRisk(args)
	case "tree_trunk_profile":
		return s.handleTrunkProfile(args)
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
// On marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// === Tilt Analysis ===

// scoringArgs are the optional risk inputs shared by several tools.
type scoringArgs struct {
	Species             string   `json:"species"`
	SpeciesMultiplier   *float64 `json:"species_multiplier"`
	IdentificationScore *float64 `json:"identification_score"`
}

func (a scoringArgs) requested() bool {
	return a.Species != "" || a.SpeciesMultiplier != nil || a.IdentificationScore != nil
}

// multiplier resolves the species multiplier. An explicit multiplier wins
// over one derived from the identification score.
func (a scoringArgs) multiplier() (float64, error) {
	switch {
	case a.SpeciesMultiplier != nil:
		if *a.SpeciesMultiplier < 0 {
			return 0, fmt.Errorf("species_multiplier must be non-negative, got %v", *a.SpeciesMultiplier)
		}
		return *a.SpeciesMultiplier, nil
	case a.IdentificationScore != nil:
		if *a.IdentificationScore < 0 || *a.IdentificationScore > 1 {
			return 0, fmt.Errorf("identification_score must be between 0 and 1, got %v", *a.IdentificationScore)
		}
		return risk.IdentificationMultiplier(*a.IdentificationScore), nil
	default:
		return 1.0, nil
	}
}

type tiltAnalyzeArgs struct {
	Path   string          `json:"path"`
	Config json.RawMessage `json:"config"`
	scoringArgs
}

type tiltAnalyzeResult struct {
	Path   string       `json:"path"`
	Width  int          `json:"width"`
	Height int          `json:"height"`
	Tilt   *tilt.Result `json:"tilt"`
	Risk   *riskResult  `json:"risk,omitempty"`
}

// handleTiltAnalyze runs the detection controller on a mask image.
//
// Parameters:
//   - ctx: Checked between detection attempts.
//   - args: tiltAnalyzeArgs. Path is required. Config, when present,
//     replaces the server config for this call; keys it leaves out take
//     their defaults, not the server's values.
//
// Returns:
//   - interface{}: tiltAnalyzeResult. Risk is filled in only when a species,
//     multiplier or identification score is supplied.
//   - error: Missing path, invalid config, unreadable image, or a mask
//     with no detectable trunk.
//
// A config naming species_table_path scores against that table instead of
// the server's.
func (s *Server) handleTiltAnalyze(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a tiltAnalyzeArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, errors.New("path is required")
	}

	cfg, scorer := s.cfg, s.scorer
	if len(a.Config) > 0 && string(a.Config) != "null" {
		c, err := config.Parse(a.Config)
		if err != nil {
			return nil, err
		}
		cfg = c
		if c.SpeciesTablePath != nil {
			table, err := c.SpeciesTable()
			if err != nil {
				return nil, err
			}
			scorer = risk.NewScorer(table)
		}
	}

	m, err := s.cache.Load(a.Path, cfg.LoadOptions())
	if err != nil {
		return nil, err
	}

	opts, err := cfg.TiltOptions()
	if err != nil {
		return nil, err
	}
	res, err := tilt.NewController(opts, s.logger.With("path", a.Path)).Run(ctx, m)
	if err != nil {
		return nil, err
	}

	out := tiltAnalyzeResult{Path: a.Path, Width: m.Width, Height: m.Height, Tilt: res}
	if a.requested() {
		lines, ok := res.LineCount()
		if !ok {
			lines = risk.UnknownLineCount
		}
		r, err := score(scorer, res.AngleDegrees, lines, a.scoringArgs)
		if err != nil {
			return nil, err
		}
		out.Risk = r
	}
	return out, nil
}

// === Risk Scoring ===

type riskScoreArgs struct {
	AngleDegrees   *float64 `json:"angle_degrees"`
	TrunkLineCount *int     `json:"trunk_line_count"`
	scoringArgs
}

type riskResult struct {
	risk.Score
	Label          string  `json:"label"`
	Color          string  `json:"color"`
	ColorHex       string  `json:"color_hex"`
	Interpretation string  `json:"interpretation"`
	Direction      string  `json:"direction,omitempty"`
	TiltRisk       float64 `json:"tilt_risk"`
	StructuralRisk float64 `json:"structural_risk"`
	Multiplier     float64 `json:"multiplier"`
	Bar            string  `json:"bar"`
}

// score builds the risk block shared by tree_tilt_analyze and
// tree_risk_score.
func score(scorer *risk.Scorer, angle float64, lineCount int, a scoringArgs) (*riskResult, error) {
	mult, err := a.multiplier()
	if err != nil {
		return nil, err
	}
	sc := scorer.Combined(mult, angle, a.Species, lineCount)
	return &riskResult{
		Score:          sc,
		Label:          sc.Category.Label(),
		Color:          sc.Category.ColorName(),
		ColorHex:       risk.GradientColor(sc.Value).Hex(),
		Interpretation: sc.Category.Interpretation(),
		Direction:      risk.Direction(angle),
		TiltRisk:       risk.TiltRisk(angle, lineCount),
		StructuralRisk: scorer.Species().StructuralRisk(a.Species),
		Multiplier:     mult,
		Bar:            risk.RenderBar(sc.Value, risk.DefaultBarWidth, false),
	}, nil
}

// handleRiskScore scores a tilt angle measured elsewhere.
//
// Parameters:
//   - args: riskScoreArgs. AngleDegrees is required. A missing
//     TrunkLineCount is treated as unknown, which applies no line-count
//     adjustment.
//
// Returns:
//   - interface{}: *riskResult with the combined score and its display
//     fields.
//   - error: Missing angle, negative line count, or an out-of-range
//     multiplier or identification score.
func (s *Server) handleRiskScore(args json.RawMessage) (interface{}, error) {
	var a riskScoreArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.AngleDegrees == nil {
		return nil, errors.New("angle_degrees is required")
	}
	lines := risk.UnknownLineCount
	if a.TrunkLineCount != nil {
		if *a.TrunkLineCount < 0 {
			return nil, fmt.Errorf("trunk_line_count must be non-negative, got %d", *a.TrunkLineCount)
		}
		lines = *a.TrunkLineCount
	}
	return score(s.scorer, *a.AngleDegrees, lines, a.scoringArgs)
}

// === Species ===

type speciesRiskArgs struct {
	Species string `json:"species"`
}

type speciesRiskResult struct {
	Species        string               `json:"species"`
	Known          bool                 `json:"known"`
	StructuralRisk float64              `json:"structural_risk"`
	Profile        *risk.SpeciesProfile `json:"profile,omitempty"`
}

// handleSpeciesRisk looks a species up in the server's species table.
//
// Parameters:
//   - args: speciesRiskArgs. Names are matched case-insensitively.
//
// Returns:
//   - interface{}: speciesRiskResult. Unknown species report Known false and
//     the neutral structural risk.
//   - error: Only for undecodable arguments.
func (s *Server) handleSpeciesRisk(args json.RawMessage) (interface{}, error) {
	var a speciesRiskArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	table := s.scorer.Species()
	out := speciesRiskResult{
		Species:        risk.NormalizeSpecies(a.Species),
		StructuralRisk: table.StructuralRisk(a.Species),
	}
	if p, ok := table.Lookup(a.Species); ok {
		out.Known = true
		out.Profile = &p
	}
	return out, nil
}

// === Trunk Profile ===

type trunkProfileArgs struct {
	Path   string `json:"path"`
	Window int    `json:"window"`
}

type trunkProfileResult struct {
	Path string `json:"path"`
	*profile.Profile
}

// handleTrunkProfile reports the smoothed width profile and stable trunk
// band of a mask image.
//
// Parameters:
//   - args: trunkProfileArgs. Path is required. Window is the smoothing
//     window in rows; zero selects the default.
//
// Returns:
//   - interface{}: trunkProfileResult.
//   - error: Missing path, negative window, unreadable image, or
//     profile.ErrNoStableTrunk when no row qualifies.
func (s *Server) handleTrunkProfile(args json.RawMessage) (interface{}, error) {
	var a trunkProfileArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, errors.New("path is required")
	}
	if a.Window < 0 {
		return nil, fmt.Errorf("window must be non-negative, got %d", a.Window)
	}

	m, err := s.cache.Load(a.Path, s.cfg.LoadOptions())
	if err != nil {
		return nil, err
	}
	p, err := profile.Analyze(m, profile.Options{Window: a.Window, Logger: s.logger})
	if err != nil {
		return nil, err
	}
	return trunkProfileResult{Path: a.Path, Profile: p}, nil
}
