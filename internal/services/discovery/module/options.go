package module

import (
	"time"

	"discoveryd/internal/platform/config"
	"discoveryd/internal/platform/logger"
	"discoveryd/internal/platform/validate"
)

// Options controls the discovery pipeline's runtime behavior. Values may
// also be read from env via FromConfig.
type Options struct {
	// ForgeToken is the bearer credential for the forge client. Resolved
	// FORGE_TOKEN primary, API_TOKEN fallback, per spec's token precedence.
	ForgeToken    string `validate:"required"`
	ForgeBaseURL  string
	ForgeTimeout  time.Duration `validate:"gt=0"`
	MaxRetries    int           `validate:"gte=0"`
	MaxConcurrent int           `validate:"gt=0"`

	DedupRetention     time.Duration `validate:"gt=0"`
	DedupSweepInterval time.Duration `validate:"gt=0"`

	PublishBatchSize int    `validate:"gt=0"`
	PublishMaxLogLen int64  `validate:"gt=0"`
	StreamKey        string `validate:"required"`

	StalenessInterval  time.Duration `validate:"gt=0"`
	StalenessBatchSize int           `validate:"gt=0"`
}

// FromConfig reads options using the CORE_DISCOVERY_ prefix and validates
// the result: env input is an external boundary, so a malformed deployment
// (e.g. PUBLISH_BATCH_SIZE=0) fails fast at startup instead of surfacing as
// a silent no-op deep in the publish path.
func FromConfig(cfg config.Conf) Options {
	d := cfg.Prefix("CORE_DISCOVERY_")

	// FORGE_TOKEN/API_TOKEN are the spec-mandated variable names and are
	// read un-prefixed, the way the teacher mixes a bare var (DBURL_HM)
	// with prefixed module knobs.
	token := cfg.MayString("FORGE_TOKEN", "")
	if token == "" {
		token = cfg.MayString("API_TOKEN", "")
	}

	opts := Options{
		ForgeToken:    token,
		ForgeBaseURL:  d.MayString("FORGE_BASE_URL", ""),
		ForgeTimeout:  d.MayDuration("FORGE_TIMEOUT", 30*time.Second),
		MaxRetries:    d.MayInt("MAX_RETRIES", 3),
		MaxConcurrent: d.MayInt("MAX_CONCURRENT", 5),

		DedupRetention:     d.MayDuration("DEDUP_RETENTION", 30*24*time.Hour),
		DedupSweepInterval: d.MayDuration("DEDUP_SWEEP_INTERVAL", time.Hour),

		PublishBatchSize: d.MayInt("PUBLISH_BATCH_SIZE", 100),
		PublishMaxLogLen: int64(d.MayInt("PUBLISH_MAX_LOG_LEN", 100_000)),
		StreamKey:        d.MayString("STREAM_KEY", "issues:discovered"),

		StalenessInterval:  d.MayDuration("STALENESS_INTERVAL", 6*time.Hour),
		StalenessBatchSize: d.MayInt("STALENESS_BATCH_SIZE", 500),
	}

	if err := validate.Get().Struct(opts); err != nil {
		logger.Get().Panic().Err(err).Msg("discovery: invalid configuration")
	}

	return opts
}
