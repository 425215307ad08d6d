package ringlog

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// LogSpec names one configured log within a Config (design §6
// "Configuration": an ordered collection of logs, each with a filename).
type LogSpec struct {
	Name string `yaml:"name"`
}

// Config is the compile-time/build-time configuration shape described by
// design §6: an ordered list of logs sharing one partition size, which is
// split evenly (with the 20% bad-block slack) across them to derive each
// log's log_capacity.
type Config struct {
	// Dir is the directory each log's file lives in.
	Dir string `yaml:"dir"`

	// Logs is the ordered collection of configured logs.
	Logs []LogSpec `yaml:"logs"`

	// PartitionSize is the total byte budget across all logs
	// (logs_partition_size).
	PartitionSize int64 `yaml:"partition_size"`

	// FillerByte is the byte used to pre-fill a freshly created log.
	FillerByte byte `yaml:"filler_byte"`
}

// LoadConfig parses a small YAML document describing a registry's logs.
// This is the minimal "configuration" surface design §6 calls for — data
// shape only, no flags, no process startup, no CLI (those remain
// out of scope per spec.md §1).
func LoadConfig(data []byte) (Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("ringlog: parse config: %w", err)
	}
	if len(c.Logs) == 0 {
		return Config{}, fmt.Errorf("ringlog: config defines no logs")
	}
	if c.PartitionSize <= 0 {
		return Config{}, fmt.Errorf("ringlog: config partition_size must be positive")
	}
	return c, nil
}

// capacityPerLog derives each log's log_capacity from the partition size
// and log count, per design §6: logs_partition_size * 0.8 / n_logs, the
// 20% held back as flash bad-block remapping slack. The result is clamped
// to fit the 16-bit on-disk head/tail fields.
func capacityPerLog(partitionSize int64, nLogs int) (uint32, error) {
	if nLogs <= 0 {
		return 0, fmt.Errorf("ringlog: no logs configured")
	}
	cap64 := (partitionSize * 8 / 10) / int64(nLogs)
	if cap64 > 65535 {
		cap64 = 65535
	}
	if cap64 <= 0 {
		return 0, fmt.Errorf("ringlog: derived log_capacity non-positive for partition_size=%d n_logs=%d", partitionSize, nLogs)
	}
	return uint32(cap64), nil
}
