// Package config loads analysis parameters from a JSON file.
//
// All fields are pointers or slices so a file only needs the keys it
// changes:
//
//	{
//	  "max_attempts": 5,
//	  "sweep_tilt_threshold_deg": 8,
//	  "species_table_path": "species.json"
//	}
//
// Get* methods return the value or its default, and TiltOptions turns a
// Config into options for tilt.NewController.
package config
