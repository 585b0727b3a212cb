package config

const (
	defaultDBPath           = "planso.sqlite"
	defaultLogDir           = "~/.local/share/plansync/logs"
	defaultLogRetentionDays = 30
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultEnvFile          = ".env"
	defaultTimeoutSeconds   = 30
	defaultUserAgent        = "plansync/1.0"
	defaultFormTableID      = 12565
	defaultJobs             = 1
	defaultParserStrategy   = StrategyAuto
	defaultQueryLimit       = 200
	defaultQueryMaxLimit    = 1000
)

// Parser strategy names accepted in [parser] strategy.
const (
	StrategyAuto  = "auto"
	StrategyTree  = "tree"
	StrategyRegex = "regex"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DBPath: defaultDBPath,
			LogDir: defaultLogDir,
		},
		Remote: Remote{
			EnvFile:        defaultEnvFile,
			TimeoutSeconds: defaultTimeoutSeconds,
			UserAgent:      defaultUserAgent,
			FormTableID:    defaultFormTableID,
		},
		Sync: Sync{
			Jobs: defaultJobs,
		},
		Parser: Parser{
			Strategy: defaultParserStrategy,
		},
		Query: Query{
			DefaultLimit: defaultQueryLimit,
			MaxLimit:     defaultQueryMaxLimit,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
