package module

import (
	"time"

	"locnorm/internal/platform/config"
	"locnorm/internal/services/location/guardrails"
)

// Options for the location module
type Options struct {
	WritesPerSec   int
	RunTimeout     time.Duration
	LockTimeout    time.Duration
	EnableLeases   bool
	LeaseTTL       time.Duration
	ISOCodesDir    string
	MetricsPushURL string
	MetricsJob     string
}

// FromConfig fills options from environment
// LOCNORM_WRITES_PER_SEC (default 0) caps write transactions per second, 0 is unlimited
// LOCNORM_RUN_TIMEOUT (default 0) bounds one invocation, 0 is no budget
// LOCNORM_PG_LOCK_TIMEOUT (default 5s) is SET LOCAL lock_timeout for each transaction
// LOCNORM_LEASES (default true) takes the per entity single writer lease
// LOCNORM_LEASE_TTL (default 30m) is how long a crashed run keeps the lease
// LOCNORM_ISO_CODES_DIR (optional) reads an iso-codes JSON dir or a .yaml snapshot instead of the embedded dataset
// LOCNORM_METRICS_PUSH_URL (optional) pushgateway for run metrics
// LOCNORM_METRICS_JOB (default "locnorm") pushgateway job name
func FromConfig(cfg config.Conf) Options {
	n := cfg.Prefix("LOCNORM_")
	return Options{
		WritesPerSec:   n.MayNonNegInt("WRITES_PER_SEC", 0),
		RunTimeout:     n.MayDuration("RUN_TIMEOUT", 0),
		LockTimeout:    n.MayDuration("PG_LOCK_TIMEOUT", 5*time.Second),
		EnableLeases:   n.MayBool("LEASES", true),
		LeaseTTL:       n.MayDuration("LEASE_TTL", guardrails.DefaultLeaseTTL),
		ISOCodesDir:    n.MayString("ISO_CODES_DIR", ""),
		MetricsPushURL: n.MayURL("METRICS_PUSH_URL"),
		MetricsJob:     n.MayString("METRICS_JOB", "locnorm"),
	}
}
