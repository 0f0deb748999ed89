package config

// AppIdentifier names the application data directory under the platform data root.
const AppIdentifier = "com.productdiagramcopilot.desktop"

const (
	defaultConfigPath          = "~/.config/pdcdesk/config.toml"
	defaultInferenceAddress    = "127.0.0.1:11434"
	defaultInferenceExecutable = "ollama"
	defaultModelsDir           = "~/.ollama/models"
	defaultSeedMarker          = ".pdc_seeded"
	defaultBundledModelsName   = "ollama_models"
	defaultBackendAddress      = "127.0.0.1:8000"
	defaultBackendExecutable   = "pdc-backend"
	defaultReadyAttempts       = 60
	defaultReadyIntervalMS     = 250
	defaultProbeTimeoutMS      = 200
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultLogRetentionDays    = 14
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Inference: Inference{
			Enabled:    true,
			Address:    defaultInferenceAddress,
			Executable: defaultInferenceExecutable,
			Args:       []string{"serve"},
			ModelsDir:  defaultModelsDir,
			SeedMarker: defaultSeedMarker,
		},
		Backend: Backend{
			Enabled:         true,
			Address:         defaultBackendAddress,
			Executable:      defaultBackendExecutable,
			ReadyAttempts:   defaultReadyAttempts,
			ReadyIntervalMS: defaultReadyIntervalMS,
		},
		Probe: Probe{
			TimeoutMS: defaultProbeTimeoutMS,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
