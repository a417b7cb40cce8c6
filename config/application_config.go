package config

type Configuration struct {
	ApplicationConfigFileYmlPath string `env:"APP_CONFIG_FILE_YML_PATH" envDefault:"application.yml"`
	LogLevel                     string `env:"LOG_LEVEL" envDefault:"info"`
}

// ApplicationConfiguration Must use full names for `sigs.k8s.io/yaml`
type ApplicationConfiguration struct {
	Server     Server
	Admin      Admin
	Prometheus Prometheus
	Proxy      Proxy
	File       FileConfig
	Git        GitConfig
	K8s        K8sConfig
	Cache      Cache
	Sops       Sops
	Tracing    Tracing
}

// Server Each endpoint is a description such as `txsni:/etc/certs:tcp:443`
type Server struct {
	Endpoints       []string
	DefaultFallback bool `json:"defaultFallback"`
	// LookupTimeoutMillis bounds certificate loading during a handshake, 0 for no limit
	LookupTimeoutMillis int `json:"lookupTimeoutMillis"`
}

type Admin struct {
	Port int
}

type Proxy struct {
	Upstream string
	Hosts    map[string]string // hostname -> upstream URL
}

type FileConfig struct {
	Disabled bool
	Order    int
	Path     string
}

type Cache struct {
	TTLSeconds int `json:"ttlSeconds"`
}

type Sops struct {
	Enabled bool
}

type Tracing struct {
	Enabled         bool
	Endpoint        string
	SamplerFraction float64
}

type Prometheus struct {
	Path string
}
