package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateSources(); err != nil {
		return err
	}
	if err := c.validateCompose(); err != nil {
		return err
	}
	if err := c.validatePublish(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.StorePath) == "" {
		return errors.New("paths.store_path must be set")
	}
	return nil
}

func (c *Config) validateSources() error {
	for _, name := range c.CollectionNames() {
		switch kind := c.Sources.Collections[name]; kind {
		case SourceKindRSS, SourceKindWeb:
		default:
			return fmt.Errorf("sources.collections.%s: unsupported kind %q (expected %q or %q)", name, kind, SourceKindRSS, SourceKindWeb)
		}
	}
	return nil
}

func (c *Config) validateCompose() error {
	if c.Compose.SegmentSeconds > maxSegmentSeconds {
		return fmt.Errorf("compose.segment_seconds must be <= %d", maxSegmentSeconds)
	}
	switch c.Compose.HWAccel {
	case "", "cuda", "vaapi", "qsv":
	default:
		return fmt.Errorf("compose.hwaccel: unsupported value %q", c.Compose.HWAccel)
	}
	return nil
}

func (c *Config) validatePublish() error {
	if !c.Publish.Enabled {
		return nil
	}
	if c.Publish.Target != PublishTargetOutbox {
		return fmt.Errorf("publish.target: unsupported target %q", c.Publish.Target)
	}
	if strings.TrimSpace(c.Paths.OutboxDir) == "" {
		return errors.New("paths.outbox_dir must be set when publish.enabled is true")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if err := ensurePositiveMap(map[string]int{
		"pipeline.workers":              c.Pipeline.Workers,
		"pipeline.max_attempts":         c.Pipeline.MaxAttempts,
		"pipeline.quick_limit":          c.Pipeline.QuickLimit,
		"transcription.instances":       c.Transcription.Instances,
		"synthesis.max_chunk_length":    c.Synthesis.MaxChunkLength,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	}); err != nil {
		return err
	}
	if c.Pipeline.CallTimeoutSeconds < 0 {
		return errors.New("pipeline.call_timeout_seconds must be >= 0")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
