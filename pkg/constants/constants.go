// Package constants provides shared constants for the pdn-calculator application.
package constants

// CalcVersion identifies the calculation rules exposed to clients.
const CalcVersion = "v1.0"

// CalcVersionHeader is the response header carrying CalcVersion.
const CalcVersionHeader = "X-PDN-Calc-Version"

// Calculation defaults
const (
	// DefaultCreditCardMinRate is the minimum payment rate applied to credit
	// card balances when the obligation does not carry its own rate.
	DefaultCreditCardMinRate = 0.05

	// DefaultMoneyPrecision is the number of decimal places for money values
	DefaultMoneyPrecision = 2

	// DefaultPercentPrecision is the number of decimal places for percentages
	DefaultPercentPrecision = 2

	// MaxPrecision bounds both rounding settings
	MaxPrecision = 8

	// DefaultRiskLowPercent is the PDN below which the risk band is LOW
	DefaultRiskLowPercent = 50.0

	// DefaultRiskHighPercent is the PDN above which the risk band is HIGH
	DefaultRiskHighPercent = 80.0
)

// Scenario shock bounds, applied to both income_shock_pct and payment_shock_pct.
const (
	// MinShockPct is the lowest accepted shock (-50%)
	MinShockPct = -0.5

	// MaxShockPct is the highest accepted shock (+100%)
	MaxShockPct = 1.0
)

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"

	// OutputFormatJSON is the JSON output format
	OutputFormatJSON = "json"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "config.yaml"

	// EnvPrefix prefixes environment overrides (PDN_SERVER_ADDRESS, ...)
	EnvPrefix = "PDN"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address
	DefaultServerAddress = ":8080"

	// DefaultMaxBodySizeBytes is the default maximum request body size (256 KB)
	DefaultMaxBodySizeBytes int64 = 256 * 1024

	// DefaultRateLimitRPS is the default sustained request rate
	DefaultRateLimitRPS = 50.0

	// DefaultRateLimitBurst is the default request burst
	DefaultRateLimitBurst = 100

	// AdminKeyHeader carries the admin key for config mutation and audit reads
	AdminKeyHeader = "X-API-Key"
)

// Audit defaults
const (
	// AuditBackendNone disables the audit log
	AuditBackendNone = "none"

	// AuditBackendFile appends JSON lines to a local file
	AuditBackendFile = "file"

	// AuditBackendRedis stores entries in Redis lists keyed by request id
	AuditBackendRedis = "redis"

	// DefaultAuditFile is the default audit log path
	DefaultAuditFile = "audit.log"

	// DefaultAuditKeyPrefix prefixes Redis audit keys
	DefaultAuditKeyPrefix = "pdn:audit:"
)
