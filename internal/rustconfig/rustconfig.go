// Package rustconfig parses the `rust` configuration object carried
// by `initializationOptions.settings.rust` and
// `workspace/didChangeConfiguration`, validating recognized keys and
// reporting unknown or duplicate (after case normalization) keys as
// warnings rather than failing the whole configuration update.
//
// Grounded on `internal/config.Config`'s struct-tag-driven decode
// (`BurntSushi/toml`), generalized here to JSON input (the wire format
// this object actually arrives in) while keeping the same
// "best-effort configuration, warn and continue" posture as
// `internal/config.Load`.
package rustconfig

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ClippyPreference is the `rust.clippy_preference` enum.
type ClippyPreference string

const (
	ClippyOff    ClippyPreference = "off"
	ClippyOptIn  ClippyPreference = "opt-in"
	ClippyOn     ClippyPreference = "on"
)

// Config is the recognized subset of the `rust` configuration object
// described by spec.md §6.
type Config struct {
	Sysroot           string           `json:"sysroot"`
	Target            string           `json:"target"`
	RustFlags         []string         `json:"rustflags"`
	CfgTest           bool             `json:"cfg_test"`
	UnstableFeatures  bool             `json:"unstable_features"`
	WaitToBuildMs     int              `json:"wait_to_build_ms"`
	ShowWarnings      bool             `json:"show_warnings"`
	CrateBlacklist    []string         `json:"crate_blacklist"`
	BuildCommand      string           `json:"build_command"`
	TargetDir         string           `json:"target_dir"`
	AllTargets        bool             `json:"all_targets"`
	Features          []string         `json:"features"`
	AllFeatures       bool             `json:"all_features"`
	NoDefaultFeatures bool             `json:"no_default_features"`
	Jobs              int              `json:"jobs"`
	RacerCompletion   bool             `json:"racer_completion"`
	ClippyPreference  ClippyPreference `json:"clippy_preference"`
	FullDocs          bool             `json:"full_docs"`
	ShowHoverContext  bool             `json:"show_hover_context"`
}

// Default returns the zero-value-sensible defaults: warnings shown,
// clippy off, no debounce override.
func Default() Config {
	return Config{ShowWarnings: true, ClippyPreference: ClippyOff, ShowHoverContext: true}
}

// recognizedKeys is the set of keys Config understands, derived from
// its json tags.
var recognizedKeys = map[string]bool{
	"sysroot": true, "target": true, "rustflags": true, "cfg_test": true,
	"unstable_features": true, "wait_to_build_ms": true, "show_warnings": true,
	"crate_blacklist": true, "build_command": true, "target_dir": true,
	"all_targets": true, "features": true, "all_features": true,
	"no_default_features": true, "jobs": true, "racer_completion": true,
	"clippy_preference": true, "full_docs": true, "show_hover_context": true,
}

// Result is the outcome of Parse: the decoded configuration (merged
// onto base for any key not present in raw) plus one warning string
// per unknown or duplicate key, in the order encountered.
type Result struct {
	Config   Config
	Warnings []string
}

// Parse decodes raw (the `rust` object's JSON body) onto base,
// reporting a warning for every key not in recognizedKeys and for
// every key that repeats another key already seen under
// case-insensitive comparison (a client sending both `cfg_test` and
// `Cfg_Test` in the same object).
func Parse(raw json.RawMessage, base Config) Result {
	res := Result{Config: base}
	if len(raw) == 0 {
		return res
	}

	var generic map[string]json.RawMessage
	if err := json.Unmarshal(raw, &generic); err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("rust configuration: could not parse: %v", err))
		return res
	}

	seen := make(map[string]string) // normalized key -> first original key seen
	normalized := make(map[string]json.RawMessage, len(generic))
	for key, value := range generic {
		norm := strings.ToLower(key)
		if first, dup := seen[norm]; dup {
			res.Warnings = append(res.Warnings, fmt.Sprintf("rust configuration: duplicate key %q (already set via %q); ignoring", key, first))
			continue
		}
		seen[norm] = key
		if !recognizedKeys[norm] {
			res.Warnings = append(res.Warnings, fmt.Sprintf("rust configuration: unknown key %q; ignoring", key))
			continue
		}
		normalized[norm] = value
	}

	// Re-encode the deduplicated, recognized-only key set and decode
	// directly onto base's existing value so untouched fields survive.
	filtered, err := json.Marshal(normalized)
	if err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("rust configuration: re-encoding failed: %v", err))
		return res
	}
	cfg := base
	if err := json.Unmarshal(filtered, &cfg); err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("rust configuration: could not decode recognized keys: %v", err))
		return res
	}
	res.Config = cfg
	return res
}
