package server

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ironsheep/treetilt-mcp/internal/risk"
	"github.com/ironsheep/treetilt-mcp/internal/tilt"
)

// createMaskFile writes a white-on-black mask PNG where fill reports the
// tree pixels, and returns its path.
func createMaskFile(t *testing.T, width, height int, fill func(x, y int) bool) string {
	t.Helper()

	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if fill(x, y) {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}

	path := filepath.Join(t.TempDir(), "mask.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create mask file: %v", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode mask: %v", err)
	}
	return path
}

// straightTrunkFile is a 20 pixel wide vertical trunk in a 400x400 image.
func straightTrunkFile(t *testing.T) string {
	return createMaskFile(t, 400, 400, func(x, y int) bool {
		return x >= 190 && x <= 209
	})
}

// callTool runs a tools/call request and returns the decoded text content.
func callTool(t *testing.T, s *Server, name string, args interface{}) (map[string]interface{}, *MCPError) {
	t.Helper()

	params := map[string]interface{}{
		"name":      name,
		"arguments": args,
	}
	paramsJSON, _ := json.Marshal(params)

	resp := s.handleRequest(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  paramsJSON,
	})
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	if resp.Error != nil {
		return nil, resp.Error
	}

	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("Result should be a map")
	}
	content, ok := result["content"].([]map[string]interface{})
	if !ok || len(content) != 1 {
		t.Fatalf("content: got %#v", result["content"])
	}
	if content[0]["type"] != "text" {
		t.Errorf("content type: got %v, want text", content[0]["type"])
	}

	var out map[string]interface{}
	if err := json.Unmarshal([]byte(content[0]["text"].(string)), &out); err != nil {
		t.Fatalf("content is not JSON: %v", err)
	}
	return out, nil
}

func TestHandleToolsCall_TiltAnalyze(t *testing.T) {
	s := newTestServer(t)
	path := straightTrunkFile(t)

	out, rpcErr := callTool(t, s, "tree_tilt_analyze", map[string]interface{}{"path": path})
	if rpcErr != nil {
		t.Fatalf("Unexpected error: %+v", rpcErr)
	}

	if out["width"] != float64(400) || out["height"] != float64(400) {
		t.Errorf("size: got %vx%v, want 400x400", out["width"], out["height"])
	}
	tiltOut, ok := out["tilt"].(map[string]interface{})
	if !ok {
		t.Fatal("tilt should be an object")
	}
	if tiltOut["classification"] != string(tilt.MinorTilt) {
		t.Errorf("classification: got %v", tiltOut["classification"])
	}
	if angle, _ := tiltOut["angle_degrees"].(float64); math.Abs(angle) > 1 {
		t.Errorf("angle: got %v, want ~0", angle)
	}
	if _, ok := out["risk"]; ok {
		t.Error("risk should be omitted when no species information is given")
	}
}

func TestHandleToolsCall_TiltAnalyzeWithRisk(t *testing.T) {
	s := newTestServer(t)
	path := straightTrunkFile(t)

	out, rpcErr := callTool(t, s, "tree_tilt_analyze", map[string]interface{}{
		"path":                 path,
		"species":              "Salix babylonica",
		"identification_score": 0.9,
	})
	if rpcErr != nil {
		t.Fatalf("Unexpected error: %+v", rpcErr)
	}

	r, ok := out["risk"].(map[string]interface{})
	if !ok {
		t.Fatal("risk should be an object")
	}
	if r["multiplier"] != 1.0 {
		t.Errorf("multiplier: got %v, want 1", r["multiplier"])
	}
	if r["category"] != string(risk.CategoryLow) {
		t.Errorf("category: got %v, want LOW", r["category"])
	}
}

func TestHandleToolsCall_TiltAnalyzeConfig(t *testing.T) {
	s := newTestServer(t)
	path := straightTrunkFile(t)

	_, rpcErr := callTool(t, s, "tree_tilt_analyze", map[string]interface{}{
		"path":   path,
		"config": map[string]interface{}{"max_attempts": 0},
	})
	if rpcErr == nil || rpcErr.Code != -32000 {
		t.Fatalf("expected tool error for invalid config, got %+v", rpcErr)
	}
	if data, _ := rpcErr.Data.(string); !strings.Contains(data, "max_attempts") {
		t.Errorf("error data: got %v", rpcErr.Data)
	}

	out, rpcErr := callTool(t, s, "tree_tilt_analyze", map[string]interface{}{
		"path":   path,
		"config": map[string]interface{}{"max_attempts": 1, "estimator": "lines"},
	})
	if rpcErr != nil {
		t.Fatalf("Unexpected error: %+v", rpcErr)
	}
	tiltOut := out["tilt"].(map[string]interface{})
	if tiltOut["attempts"] != float64(1) {
		t.Errorf("attempts: got %v, want 1", tiltOut["attempts"])
	}
	if _, ok := tiltOut["pca"]; ok {
		t.Error("lines estimator should not report a PCA estimate")
	}
}

func TestHandleToolsCall_TiltAnalyzeSpeciesTable(t *testing.T) {
	s := newTestServer(t)
	path := straightTrunkFile(t)

	table := filepath.Join(t.TempDir(), "species.json")
	data := `[{"species": "Quercus fragilis", "root_risk": 1, "wood_risk": 1, "growth_risk": 1}]`
	if err := os.WriteFile(table, []byte(data), 0o644); err != nil {
		t.Fatalf("failed to write species table: %v", err)
	}

	args := map[string]interface{}{
		"path":    path,
		"species": "Quercus fragilis",
	}
	out, rpcErr := callTool(t, s, "tree_tilt_analyze", args)
	if rpcErr != nil {
		t.Fatalf("Unexpected error: %+v", rpcErr)
	}
	if got := out["risk"].(map[string]interface{})["structural_risk"]; got != risk.NeutralSpeciesRisk {
		t.Errorf("built-in table structural_risk: got %v, want %v", got, risk.NeutralSpeciesRisk)
	}

	args["config"] = map[string]interface{}{"species_table_path": table}
	out, rpcErr = callTool(t, s, "tree_tilt_analyze", args)
	if rpcErr != nil {
		t.Fatalf("Unexpected error: %+v", rpcErr)
	}
	if got := out["risk"].(map[string]interface{})["structural_risk"]; got != 1.0 {
		t.Errorf("per-call table structural_risk: got %v, want 1", got)
	}

	args["config"] = map[string]interface{}{"species_table_path": filepath.Join(t.TempDir(), "missing.json")}
	if _, rpcErr := callTool(t, s, "tree_tilt_analyze", args); rpcErr == nil {
		t.Error("expected error for a missing per-call species table")
	}
}

func TestHandleToolsCall_TiltAnalyzeErrors(t *testing.T) {
	s := newTestServer(t)
	empty := createMaskFile(t, 50, 50, func(x, y int) bool { return false })

	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"missing path", map[string]interface{}{}},
		{"file not found", map[string]interface{}{"path": "/nonexistent/mask.png"}},
		{"empty mask", map[string]interface{}{"path": empty}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, rpcErr := callTool(t, s, "tree_tilt_analyze", tt.args)
			if rpcErr == nil {
				t.Fatal("expected error")
			}
			if rpcErr.Code != -32000 {
				t.Errorf("Error code: got %d, want -32000", rpcErr.Code)
			}
		})
	}
}

func TestHandleToolsCall_RiskScore(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name         string
		args         map[string]interface{}
		wantScore    float64
		wantCategory string
		wantMult     float64
	}{
		{
			"neutral",
			map[string]interface{}{"angle_degrees": 0, "species": "unknown species", "trunk_line_count": 10},
			1, "LOW", 1,
		},
		{
			"few lines penalty",
			map[string]interface{}{"angle_degrees": 5, "trunk_line_count": 3},
			7.5, "LOW", 1,
		},
		{
			"critical",
			map[string]interface{}{"angle_degrees": -35},
			40, "CRITICAL", 1,
		},
		{
			"weak identification",
			map[string]interface{}{"angle_degrees": 20, "identification_score": 0.3},
			9, "LOW", 0.45,
		},
		{
			"explicit multiplier wins",
			map[string]interface{}{"angle_degrees": 20, "identification_score": 0.3, "species_multiplier": 0.5},
			10, "LOW", 0.5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, rpcErr := callTool(t, s, "tree_risk_score", tt.args)
			if rpcErr != nil {
				t.Fatalf("Unexpected error: %+v", rpcErr)
			}
			if out["score"] != tt.wantScore {
				t.Errorf("score: got %v, want %v", out["score"], tt.wantScore)
			}
			if out["category"] != tt.wantCategory {
				t.Errorf("category: got %v, want %v", out["category"], tt.wantCategory)
			}
			if out["multiplier"] != tt.wantMult {
				t.Errorf("multiplier: got %v, want %v", out["multiplier"], tt.wantMult)
			}
		})
	}
}

func TestHandleToolsCall_RiskScoreDetails(t *testing.T) {
	s := newTestServer(t)
	out, rpcErr := callTool(t, s, "tree_risk_score", map[string]interface{}{"angle_degrees": -12})
	if rpcErr != nil {
		t.Fatalf("Unexpected error: %+v", rpcErr)
	}
	if out["direction"] != "LEFT" {
		t.Errorf("direction: got %v, want LEFT", out["direction"])
	}
	if out["label"] != "MODERATE RISK" {
		t.Errorf("label: got %v", out["label"])
	}
	if out["color"] != "yellow" {
		t.Errorf("color: got %v", out["color"])
	}
	if hex, _ := out["color_hex"].(string); len(hex) != 7 || hex[0] != '#' {
		t.Errorf("color_hex: got %v", out["color_hex"])
	}
	if bar, _ := out["bar"].(string); !strings.Contains(bar, "▼") {
		t.Errorf("bar has no marker: %q", bar)
	}
}

func TestHandleToolsCall_RiskScoreErrors(t *testing.T) {
	s := newTestServer(t)
	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"missing angle", map[string]interface{}{"species": "quercus alba"}},
		{"negative lines", map[string]interface{}{"angle_degrees": 3, "trunk_line_count": -1}},
		{"negative multiplier", map[string]interface{}{"angle_degrees": 3, "species_multiplier": -1}},
		{"identification out of range", map[string]interface{}{"angle_degrees": 3, "identification_score": 1.5}},
		{"wrong type", map[string]interface{}{"angle_degrees": "steep"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, rpcErr := callTool(t, s, "tree_risk_score", tt.args); rpcErr == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestHandleToolsCall_SpeciesRisk(t *testing.T) {
	s := newTestServer(t)

	out, rpcErr := callTool(t, s, "tree_species_risk", map[string]interface{}{"species": "  Salix Babylonica"})
	if rpcErr != nil {
		t.Fatalf("Unexpected error: %+v", rpcErr)
	}
	if out["species"] != "salix babylonica" {
		t.Errorf("species: got %v", out["species"])
	}
	if out["known"] != true {
		t.Error("salix babylonica should be known")
	}
	if r, _ := out["structural_risk"].(float64); math.Abs(r-0.87) > 1e-9 {
		t.Errorf("structural_risk: got %v, want 0.87", r)
	}
	if _, ok := out["profile"].(map[string]interface{}); !ok {
		t.Error("profile should be an object")
	}

	out, rpcErr = callTool(t, s, "tree_species_risk", map[string]interface{}{"species": "Quercus imaginaria"})
	if rpcErr != nil {
		t.Fatalf("Unexpected error: %+v", rpcErr)
	}
	if out["known"] != false || out["structural_risk"] != 0.5 {
		t.Errorf("unknown species: got %v", out)
	}
	if _, ok := out["profile"]; ok {
		t.Error("unknown species should have no profile")
	}
}

func TestHandleToolsCall_TrunkProfile(t *testing.T) {
	s := newTestServer(t)

	// Crown over rows 0-199, trunk below widening from 20 to 60 pixels.
	path := createMaskFile(t, 200, 600, func(x, y int) bool {
		if y < 200 {
			return true
		}
		hw := 10 + (y-200)/20
		return x >= 100-hw && x < 100+hw
	})

	out, rpcErr := callTool(t, s, "tree_trunk_profile", map[string]interface{}{"path": path})
	if rpcErr != nil {
		t.Fatalf("Unexpected error: %+v", rpcErr)
	}
	band, ok := out["band"].(map[string]interface{})
	if !ok {
		t.Fatal("band should be an object")
	}
	if start, _ := band["start_row"].(float64); start < 200 {
		t.Errorf("band starts at row %v, inside the crown", start)
	}
	if _, ok := out["widths"]; ok {
		t.Error("per-row widths should not be serialized")
	}
}

func TestHandleToolsCall_TrunkProfileNoBand(t *testing.T) {
	s := newTestServer(t)
	path := createMaskFile(t, 60, 300, func(x, y int) bool { return x >= 10 && x < 50 })

	_, rpcErr := callTool(t, s, "tree_trunk_profile", map[string]interface{}{"path": path})
	if rpcErr == nil {
		t.Fatal("expected error for a uniform bar")
	}
	if data, _ := rpcErr.Data.(string); !strings.Contains(data, "no stable trunk") {
		t.Errorf("error data: got %v", rpcErr.Data)
	}
}

func TestHandleToolsCall_UnknownTool(t *testing.T) {
	s := newTestServer(t)
	_, rpcErr := callTool(t, s, "image_crop", map[string]interface{}{})
	if rpcErr == nil {
		t.Fatal("expected error for unknown tool")
	}
	if rpcErr.Code != -32000 {
		t.Errorf("Error code: got %d, want -32000", rpcErr.Code)
	}
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s := newTestServer(t)
	resp := s.handleToolsCall(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Params:  json.RawMessage(`"not an object"`),
	})
	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Errorf("expected -32602, got %+v", resp.Error)
	}
}
