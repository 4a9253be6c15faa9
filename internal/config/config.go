// Package config defines and validates the process configuration tree for
// a DHT node, following the teacher's YAML+env-override pattern
// (internal/configloader) generalized from Koorde's de Bruijn knobs to the
// Chord/Pastry overlay parameters this spec requires.
package config

import (
	"fmt"
	"strings"
	"time"

	"dhtresearch/internal/configloader"
	"dhtresearch/internal/logger"
)

// TracingConfig controls the OpenTelemetry tracer provider.
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"` // stdout | otlp
	Endpoint string `yaml:"endpoint"`
}

// TelemetryConfig wraps telemetry concerns.
type TelemetryConfig struct {
	Tracing TracingConfig `yaml:"tracing"`
}

// ChordConfig holds the Chord overlay's structural and maintenance
// parameters (spec §3, §4.6).
type ChordConfig struct {
	SuccessorListSize      int           `yaml:"successorListSize"`      // S
	FingerTableSize        int           `yaml:"fingerTableSize"`        // M, must be domain.Bits
	StabilizationInterval  time.Duration `yaml:"stabilizationInterval"`  // successor/predecessor repair
	FingerFixInterval      time.Duration `yaml:"fingerFixInterval"`      // finger table repair
	PredecessorCheckPeriod time.Duration `yaml:"predecessorCheckPeriod"` // liveness ping
}

// PastryConfig holds the Pastry overlay's structural parameters (spec §3,
// §4.7).
type PastryConfig struct {
	RoutingBase         int `yaml:"routingBase"`         // b, 2^b entries per routing table row
	LeafSetSize         int `yaml:"leafSetSize"`         // r, per side
	NeighborhoodSetSize int `yaml:"neighborhoodSetSize"` // r+1
}

// LSHConfig controls the banded LSH similarity search (spec §4.3).
type LSHConfig struct {
	Bands       int `yaml:"bands"`       // B
	RowsPerBand int `yaml:"rowsPerBand"` // R
	DefaultTopN int `yaml:"defaultTopN"` // N when a LOOKUP omits it
	MaxSimilarN int `yaml:"maxSimilarN"` // loaded and defaulted only; LOOKUP's N is not capped by it
}

// TransportConfig controls the gRPC transport layer (spec §4.4).
type TransportConfig struct {
	MaxMessageBytes int           `yaml:"maxMessageBytes"` // 1 MiB per spec
	MaxWorkers      int           `yaml:"maxWorkers"`      // bounded worker pool, <=10 per spec
	DialTimeout     time.Duration `yaml:"dialTimeout"`
	CallTimeout     time.Duration `yaml:"callTimeout"`
}

// DHTConfig groups every overlay-independent and overlay-specific knob.
type DHTConfig struct {
	Overlay   string                       `yaml:"overlay"` // "chord" | "pastry"
	Chord     ChordConfig                  `yaml:"chord"`
	Pastry    PastryConfig                 `yaml:"pastry"`
	LSH       LSHConfig                    `yaml:"lsh"`
	Transport TransportConfig              `yaml:"transport"`
	Bootstrap configloader.BootstrapConfig `yaml:"bootstrap"`
}

// NodeConfig identifies and binds the local node.
type NodeConfig struct {
	Id   string `yaml:"id"`   // explicit hex id, or derived from (host,port) if empty
	Bind string `yaml:"bind"` // listen address, defaults to 127.0.0.1 (spec §4.4: loopback)
	Port int    `yaml:"port"`
}

// Config is the full process configuration tree.
type Config struct {
	Logger    configloader.LoggerConfig `yaml:"logger"`
	DHT       DHTConfig                 `yaml:"dht"`
	Node      NodeConfig                `yaml:"node"`
	Telemetry TelemetryConfig           `yaml:"telemetry"`
}

// LoadConfig reads path as YAML and applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if err := configloader.LoadYAML(path, cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.applyEnvOverrides()
	if cfg.Node.Bind == "" {
		cfg.Node.Bind = "127.0.0.1"
	}
	return cfg, nil
}

func (cfg *Config) applyEnvOverrides() {
	configloader.OverrideString(&cfg.Node.Id, "NODE_ID")
	configloader.OverrideString(&cfg.Node.Bind, "NODE_BIND")
	configloader.OverrideInt(&cfg.Node.Port, "NODE_PORT")

	configloader.OverrideString(&cfg.DHT.Overlay, "DHT_OVERLAY")

	configloader.OverrideInt(&cfg.DHT.Chord.SuccessorListSize, "CHORD_SUCCESSOR_LIST_SIZE")
	configloader.OverrideInt(&cfg.DHT.Chord.FingerTableSize, "CHORD_FINGER_TABLE_SIZE")
	configloader.OverrideDuration(&cfg.DHT.Chord.StabilizationInterval, "CHORD_STABILIZATION_INTERVAL")
	configloader.OverrideDuration(&cfg.DHT.Chord.FingerFixInterval, "CHORD_FINGER_FIX_INTERVAL")
	configloader.OverrideDuration(&cfg.DHT.Chord.PredecessorCheckPeriod, "CHORD_PREDECESSOR_CHECK_PERIOD")

	configloader.OverrideInt(&cfg.DHT.Pastry.RoutingBase, "PASTRY_ROUTING_BASE")
	configloader.OverrideInt(&cfg.DHT.Pastry.LeafSetSize, "PASTRY_LEAF_SET_SIZE")
	configloader.OverrideInt(&cfg.DHT.Pastry.NeighborhoodSetSize, "PASTRY_NEIGHBORHOOD_SET_SIZE")

	configloader.OverrideInt(&cfg.DHT.LSH.Bands, "LSH_BANDS")
	configloader.OverrideInt(&cfg.DHT.LSH.RowsPerBand, "LSH_ROWS_PER_BAND")
	configloader.OverrideInt(&cfg.DHT.LSH.DefaultTopN, "LSH_DEFAULT_TOP_N")
	configloader.OverrideInt(&cfg.DHT.LSH.MaxSimilarN, "LSH_MAX_SIMILAR_N")

	configloader.OverrideInt(&cfg.DHT.Transport.MaxMessageBytes, "TRANSPORT_MAX_MESSAGE_BYTES")
	configloader.OverrideInt(&cfg.DHT.Transport.MaxWorkers, "TRANSPORT_MAX_WORKERS")
	configloader.OverrideDuration(&cfg.DHT.Transport.DialTimeout, "TRANSPORT_DIAL_TIMEOUT")
	configloader.OverrideDuration(&cfg.DHT.Transport.CallTimeout, "TRANSPORT_CALL_TIMEOUT")

	configloader.OverrideString(&cfg.DHT.Bootstrap.Mode, "BOOTSTRAP_MODE")
	configloader.OverrideStringSlice(&cfg.DHT.Bootstrap.Peers, "BOOTSTRAP_PEERS")
	configloader.OverrideString(&cfg.DHT.Bootstrap.Route53.HostedZoneID, "ROUTE53_ZONE_ID")
	configloader.OverrideString(&cfg.DHT.Bootstrap.Route53.DomainSuffix, "ROUTE53_SUFFIX")
	configloader.OverrideInt64(&cfg.DHT.Bootstrap.Route53.TTL, "ROUTE53_TTL")
	configloader.OverrideString(&cfg.DHT.Bootstrap.Route53.Region, "ROUTE53_REGION")

	configloader.OverrideBool(&cfg.Logger.Active, "LOGGER_ENABLED")
	configloader.OverrideString(&cfg.Logger.Level, "LOGGER_LEVEL")
	configloader.OverrideString(&cfg.Logger.Encoding, "LOGGER_ENCODING")
	configloader.OverrideString(&cfg.Logger.Mode, "LOGGER_MODE")
	configloader.OverrideString(&cfg.Logger.File.Path, "LOGGER_FILE_PATH")
	configloader.OverrideInt(&cfg.Logger.File.MaxSize, "LOGGER_FILE_MAX_SIZE")
	configloader.OverrideInt(&cfg.Logger.File.MaxBackups, "LOGGER_FILE_MAX_BACKUPS")
	configloader.OverrideInt(&cfg.Logger.File.MaxAge, "LOGGER_FILE_MAX_AGE")
	configloader.OverrideBool(&cfg.Logger.File.Compress, "LOGGER_FILE_COMPRESS")

	configloader.OverrideBool(&cfg.Telemetry.Tracing.Enabled, "TRACING_ENABLED")
	configloader.OverrideString(&cfg.Telemetry.Tracing.Exporter, "TRACING_EXPORTER")
	configloader.OverrideString(&cfg.Telemetry.Tracing.Endpoint, "TRACING_ENDPOINT")
}

// Default returns a Config populated with the reference values from spec §3/§4.
func Default() *Config {
	return &Config{
		Logger: configloader.LoggerConfig{Active: true, Level: "info", Encoding: "console", Mode: "stdout"},
		DHT: DHTConfig{
			Overlay: "chord",
			Chord: ChordConfig{
				SuccessorListSize:      4,
				FingerTableSize:        16,
				StabilizationInterval:  750 * time.Millisecond,
				FingerFixInterval:      1500 * time.Millisecond,
				PredecessorCheckPeriod: 1000 * time.Millisecond,
			},
			Pastry: PastryConfig{
				RoutingBase:         4,
				LeafSetSize:         2,
				NeighborhoodSetSize: 3,
			},
			LSH: LSHConfig{
				Bands:       4,
				RowsPerBand: 5,
				DefaultTopN: 5,
				MaxSimilarN: 50,
			},
			Transport: TransportConfig{
				MaxMessageBytes: 1 << 20,
				MaxWorkers:      10,
				DialTimeout:     2 * time.Second,
				CallTimeout:     2 * time.Second,
			},
			Bootstrap: configloader.BootstrapConfig{Mode: "static"},
		},
		Node: NodeConfig{Bind: "127.0.0.1"},
	}
}

// ValidateConfig performs structural validation: required fields, ranges,
// and enum membership. It does not check protocol-level semantics (e.g.
// that RoutingBase evenly divides the identifier space).
func (cfg *Config) ValidateConfig() error {
	var errs []string

	switch cfg.Logger.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("invalid logger.level: %s", cfg.Logger.Level))
	}
	switch cfg.Logger.Encoding {
	case "console", "json":
	default:
		errs = append(errs, fmt.Sprintf("invalid logger.encoding: %s", cfg.Logger.Encoding))
	}
	switch cfg.Logger.Mode {
	case "stdout":
	case "file":
		if cfg.Logger.File.Path == "" {
			errs = append(errs, "logger.file.path is required when mode=file")
		}
	default:
		errs = append(errs, fmt.Sprintf("invalid logger.mode: %s", cfg.Logger.Mode))
	}

	switch cfg.DHT.Overlay {
	case "chord":
		if cfg.DHT.Chord.SuccessorListSize <= 0 {
			errs = append(errs, "dht.chord.successorListSize must be > 0")
		}
		if cfg.DHT.Chord.FingerTableSize <= 0 {
			errs = append(errs, "dht.chord.fingerTableSize must be > 0")
		}
		if cfg.DHT.Chord.StabilizationInterval <= 0 || cfg.DHT.Chord.FingerFixInterval <= 0 {
			errs = append(errs, "dht.chord stabilization/finger intervals must be > 0")
		}
	case "pastry":
		if cfg.DHT.Pastry.RoutingBase <= 0 {
			errs = append(errs, "dht.pastry.routingBase must be > 0")
		}
		if cfg.DHT.Pastry.LeafSetSize <= 0 {
			errs = append(errs, "dht.pastry.leafSetSize must be > 0")
		}
	default:
		errs = append(errs, fmt.Sprintf("invalid dht.overlay: %s (must be chord or pastry)", cfg.DHT.Overlay))
	}

	if cfg.DHT.LSH.Bands <= 0 || cfg.DHT.LSH.RowsPerBand <= 0 {
		errs = append(errs, "dht.lsh.bands and dht.lsh.rowsPerBand must be > 0")
	}

	if cfg.DHT.Transport.MaxMessageBytes <= 0 {
		errs = append(errs, "dht.transport.maxMessageBytes must be > 0")
	}
	if cfg.DHT.Transport.MaxWorkers <= 0 || cfg.DHT.Transport.MaxWorkers > 10 {
		errs = append(errs, "dht.transport.maxWorkers must be in (0,10] per spec §4.4")
	}

	b := cfg.DHT.Bootstrap
	switch b.Mode {
	case "route53":
		if b.Route53.HostedZoneID == "" || b.Route53.DomainSuffix == "" || b.Route53.Region == "" {
			errs = append(errs, "bootstrap.route53.{hostedZoneId,domainSuffix,region} are required in mode=route53")
		}
	case "static":
		// peers may be empty (this node starts a new overlay)
	default:
		errs = append(errs, fmt.Sprintf("invalid bootstrap.mode: %s (must be static or route53)", b.Mode))
	}

	if cfg.Node.Port < 0 || cfg.Node.Port > 65535 {
		errs = append(errs, fmt.Sprintf("node.port must be in [0,65535], got %d", cfg.Node.Port))
	}

	if cfg.Telemetry.Tracing.Enabled {
		switch cfg.Telemetry.Tracing.Exporter {
		case "stdout", "otlp":
		default:
			errs = append(errs, fmt.Sprintf("invalid telemetry.tracing.exporter: %s", cfg.Telemetry.Tracing.Exporter))
		}
		if cfg.Telemetry.Tracing.Exporter == "otlp" && cfg.Telemetry.Tracing.Endpoint == "" {
			errs = append(errs, "telemetry.tracing.endpoint is required for exporter=otlp")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// LogConfig prints the loaded configuration at debug level.
func (cfg *Config) LogConfig(lgr logger.Logger) {
	lgr.Debug("loaded configuration",
		logger.F("logger.level", cfg.Logger.Level),
		logger.F("logger.mode", cfg.Logger.Mode),
		logger.F("dht.overlay", cfg.DHT.Overlay),
		logger.F("dht.chord.successorListSize", cfg.DHT.Chord.SuccessorListSize),
		logger.F("dht.chord.fingerTableSize", cfg.DHT.Chord.FingerTableSize),
		logger.F("dht.pastry.routingBase", cfg.DHT.Pastry.RoutingBase),
		logger.F("dht.pastry.leafSetSize", cfg.DHT.Pastry.LeafSetSize),
		logger.F("dht.lsh.bands", cfg.DHT.LSH.Bands),
		logger.F("dht.lsh.rowsPerBand", cfg.DHT.LSH.RowsPerBand),
		logger.F("dht.bootstrap.mode", cfg.DHT.Bootstrap.Mode),
		logger.F("node.id", cfg.Node.Id),
		logger.F("node.bind", cfg.Node.Bind),
		logger.F("node.port", cfg.Node.Port),
		logger.F("telemetry.tracing.enabled", cfg.Telemetry.Tracing.Enabled),
	)
}
