// Package server implements the MCP (Model Context Protocol) server for tree
// tilt analysis.
//
// # Protocol
//
// Requests arrive as newline-delimited JSON-RPC 2.0 messages on stdin and
// responses are written to stdout, one per line. Serve accepts any reader
// and writer pair, which the tests use. The methods handled are initialize,
// ping, tools/list and tools/call. Notifications get no reply.
//
// # Available Tools
//
//   - tree_tilt_analyze: Estimate the trunk tilt of a mask image, optionally
//     with a fall-risk score
//   - tree_risk_score: Score a known tilt angle
//   - tree_species_risk: Look up the structural risk of a species
//   - tree_trunk_profile: Locate the stable trunk band of a mask
//
// # Mask Caching
//
// Masks are cached by path and load options, so repeated calls on the same
// file skip decoding. The cache persists for the lifetime of the server
// process.
//
// # Error Handling
//
// A failing tool yields a JSON-RPC error with code -32000 and the Go error
// text in its data field. Malformed lines get -32700, unknown methods -32601
// and bad tool arguments -32602.
//
// # Usage
//
//	srv, err := server.New(cfg, server.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	return srv.Run(ctx)
package server
