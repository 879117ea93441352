package orchestrator

import (
	"context"
	"strconv"
	"time"

	"github.com/linkeep/linkeep/config"
)

// Setting keys recognised in the settings table. Values are strings;
// booleans parse with strconv.ParseBool, sizes as plain byte counts,
// durations in time.ParseDuration syntax.
const (
	SettingInlineCSS     = "capture.inline_css"
	SettingExtractImages = "capture.extract_images"
	SettingInlineFonts   = "capture.inline_fonts"
	SettingRemoveScripts = "capture.remove_scripts"
	SettingRemoveHidden  = "capture.remove_hidden_elements"
	SettingFailClosed    = "capture.fail_closed"
	SettingMaxImageSize  = "capture.max_image_size"
	SettingTimeout       = "capture.timeout"
)

// EffectiveConfig is the answer to GET_CONFIG: capture defaults after
// setting overlays plus the agent probe tuning.
type EffectiveConfig struct {
	Capture config.CaptureConfig `json:"capture"`
	Agent   config.AgentConfig   `json:"agent"`
}

// EffectiveConfig returns the current stored configuration.
func (o *Orchestrator) EffectiveConfig(_ context.Context) EffectiveConfig {
	return EffectiveConfig{
		Capture: o.CaptureDefaults(),
		Agent:   o.agentCfg,
	}
}

// ReloadSettings overlays stored settings onto the file-level capture
// defaults and swaps the effective configuration in one step. Called by
// the watch loop whenever the settings table changes; unknown keys and
// unparsable values are ignored, keeping a bad write from wedging the
// reload.
func (o *Orchestrator) ReloadSettings(ctx context.Context) error {
	if o.settings == nil {
		return nil
	}
	overlay, err := o.settings.AllSettings(ctx)
	if err != nil {
		return err
	}

	cfg := o.baseline
	for key, val := range overlay {
		switch key {
		case SettingInlineCSS:
			if b, err := strconv.ParseBool(val); err == nil {
				cfg.InlineCSS = b
			}
		case SettingExtractImages:
			if b, err := strconv.ParseBool(val); err == nil {
				cfg.ExtractImages = b
			}
		case SettingInlineFonts:
			if b, err := strconv.ParseBool(val); err == nil {
				cfg.InlineFonts = b
			}
		case SettingRemoveScripts:
			if b, err := strconv.ParseBool(val); err == nil {
				cfg.RemoveScripts = b
			}
		case SettingRemoveHidden:
			if b, err := strconv.ParseBool(val); err == nil {
				cfg.RemoveHiddenElements = b
			}
		case SettingFailClosed:
			if b, err := strconv.ParseBool(val); err == nil {
				cfg.FailClosed = b
			}
		case SettingMaxImageSize:
			if n, err := strconv.ParseInt(val, 10, 64); err == nil && n > 0 {
				cfg.MaxImageSize = n
			}
		case SettingTimeout:
			if d, err := time.ParseDuration(val); err == nil && d > 0 {
				cfg.Timeout = d
			}
		}
	}

	// Keep the hard timeout invariant after any overlay.
	if cfg.HardTimeout <= cfg.Timeout {
		cfg.HardTimeout = cfg.Timeout + 5*time.Second
	}

	o.effective.Store(&cfg)
	o.logger.Info("orchestrator: settings reloaded", "overrides", len(overlay))
	return nil
}
