package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"time"

	"github.com/tailscale/hujson"
)

// defaultsJSON is the canonical set of session defaults. It is the single
// source of truth for every value the Get* methods fall back to.
//
//go:embed session.defaults.json
var defaultsJSON []byte

// SessionConfig represents the session configuration file. All fields are
// optional; the Get* methods supply defaults for omitted fields so
// partial files are safe.
type SessionConfig struct {
	// Tracking runtime options
	DetectPlanes  *bool `json:"detect_planes,omitempty"`
	EstimateLight *bool `json:"estimate_light,omitempty"`

	// DebugVisualization attaches a visual node to every detected plane.
	DebugVisualization *bool `json:"debug_visualization,omitempty"`

	// Status feedback
	StatusMessageDuration *string  `json:"status_message_duration,omitempty"` // duration string like "2s"
	TooDarkLumens         *float64 `json:"too_dark_lumens,omitempty"`

	// FrameQueueSize is the depth of the event loop's input queue.
	FrameQueueSize *int `json:"frame_queue_size,omitempty"`

	// Markers maps marker payloads to model names.
	Markers map[string]string `json:"markers,omitempty"`

	// Models maps model names to asset paths.
	Models map[string]string `json:"models,omitempty"`
}

// Helper functions to create pointers
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }

// EmptySessionConfig returns a SessionConfig with all fields unset.
func EmptySessionConfig() *SessionConfig {
	return &SessionConfig{}
}

// DefaultSessionConfig returns the embedded defaults with every field set.
func DefaultSessionConfig() *SessionConfig {
	cfg, err := ParseSessionConfig(defaultsJSON)
	if err != nil {
		panic("embedded session defaults are invalid: " + err.Error())
	}
	return cfg
}

// LoadSessionConfig loads a SessionConfig from a JSON file. The file must
// have a .json extension and be under 1MB. Fields omitted from the file
// fall back to the embedded defaults.
func LoadSessionConfig(path string) (*SessionConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := ParseSessionConfig(data)
	if err != nil {
		return nil, err
	}
	return DefaultSessionConfig().Merge(cfg), nil
}

// ParseSessionConfig decodes and validates a JSON document. Comments and
// trailing commas are accepted.
func ParseSessionConfig(data []byte) (*SessionConfig, error) {
	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	cfg := EmptySessionConfig()
	if err := json.Unmarshal(std, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Merge returns a copy of c with every field set in override applied on
// top. Map fields are replaced wholesale, not merged key by key.
func (c *SessionConfig) Merge(override *SessionConfig) *SessionConfig {
	out := *c
	if override == nil {
		return &out
	}
	if override.DetectPlanes != nil {
		out.DetectPlanes = override.DetectPlanes
	}
	if override.EstimateLight != nil {
		out.EstimateLight = override.EstimateLight
	}
	if override.DebugVisualization != nil {
		out.DebugVisualization = override.DebugVisualization
	}
	if override.StatusMessageDuration != nil {
		out.StatusMessageDuration = override.StatusMessageDuration
	}
	if override.TooDarkLumens != nil {
		out.TooDarkLumens = override.TooDarkLumens
	}
	if override.FrameQueueSize != nil {
		out.FrameQueueSize = override.FrameQueueSize
	}
	if override.Markers != nil {
		out.Markers = maps.Clone(override.Markers)
	}
	if override.Models != nil {
		out.Models = maps.Clone(override.Models)
	}
	return &out
}

// Validate checks that the configuration values are valid.
func (c *SessionConfig) Validate() error {
	if c.StatusMessageDuration != nil && *c.StatusMessageDuration != "" {
		d, err := time.ParseDuration(*c.StatusMessageDuration)
		if err != nil {
			return fmt.Errorf("invalid status_message_duration '%s': %w", *c.StatusMessageDuration, err)
		}
		if d <= 0 {
			return fmt.Errorf("status_message_duration must be positive, got %s", d)
		}
	}

	if c.TooDarkLumens != nil && *c.TooDarkLumens < 0 {
		return fmt.Errorf("too_dark_lumens must be non-negative, got %f", *c.TooDarkLumens)
	}

	if c.FrameQueueSize != nil && *c.FrameQueueSize < 1 {
		return fmt.Errorf("frame_queue_size must be at least 1, got %d", *c.FrameQueueSize)
	}

	for payload, model := range c.Markers {
		if payload == "" {
			return fmt.Errorf("markers: empty payload")
		}
		if model == "" {
			return fmt.Errorf("markers: payload %q maps to an empty model", payload)
		}
	}
	for name, path := range c.Models {
		if name == "" || path == "" {
			return fmt.Errorf("models: entry %q -> %q is incomplete", name, path)
		}
	}

	return nil
}

// GetDetectPlanes returns the detect_planes value or the default.
func (c *SessionConfig) GetDetectPlanes() bool {
	if c.DetectPlanes == nil {
		return true
	}
	return *c.DetectPlanes
}

// GetEstimateLight returns the estimate_light value or the default.
func (c *SessionConfig) GetEstimateLight() bool {
	if c.EstimateLight == nil {
		return true
	}
	return *c.EstimateLight
}

// GetDebugVisualization returns the debug_visualization value or the default.
func (c *SessionConfig) GetDebugVisualization() bool {
	if c.DebugVisualization == nil {
		return false
	}
	return *c.DebugVisualization
}

// GetStatusMessageDuration parses and returns the status message lifetime.
func (c *SessionConfig) GetStatusMessageDuration() time.Duration {
	if c.StatusMessageDuration == nil || *c.StatusMessageDuration == "" {
		return 2 * time.Second // default
	}
	d, err := time.ParseDuration(*c.StatusMessageDuration)
	if err != nil {
		return 2 * time.Second // default on parse error
	}
	return d
}

// GetTooDarkLumens returns the too_dark_lumens value or the default.
func (c *SessionConfig) GetTooDarkLumens() float64 {
	if c.TooDarkLumens == nil {
		return 100
	}
	return *c.TooDarkLumens
}

// GetFrameQueueSize returns the frame_queue_size value or the default.
func (c *SessionConfig) GetFrameQueueSize() int {
	if c.FrameQueueSize == nil {
		return 8
	}
	return *c.FrameQueueSize
}

// GetMarkers returns a copy of the payload to model table, or nil when
// unset so callers fall back to their own defaults.
func (c *SessionConfig) GetMarkers() map[string]string {
	return maps.Clone(c.Markers)
}

// GetModels returns a copy of the model to asset table, or nil when unset.
func (c *SessionConfig) GetModels() map[string]string {
	return maps.Clone(c.Models)
}
