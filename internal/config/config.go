package config

import (
	"fmt"
	"time"

	"github.com/minesight/tilecore/internal/measure"
	"github.com/minesight/tilecore/pkg/core"
	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "tilecore.cfg.json"

// StorageConfig selects the durable key-value backend.
type StorageConfig struct {
	Type          string        `json:"type" mapstructure:"type"`
	SqlitePath    string        `json:"sqlitePath" mapstructure:"sqlitePath"`
	Archive       bool          `json:"archive" mapstructure:"archive"`
	FlushInterval time.Duration `json:"flushInterval" mapstructure:"flushInterval"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file. Defaults stay in
// effect when the file is missing.
func Load(configDir string) error {
	setDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./tilecorelogs")

	viper.SetDefault("storage.type", "sqlite")
	viper.SetDefault("storage.sqlitePath", "./tilecore.db")
	viper.SetDefault("storage.archive", true)
	viper.SetDefault("storage.flushInterval", "5s")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "tilecore")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "tilecore")
	viper.SetDefault("influx.bucket", "measurements")
	viper.SetDefault("influx.backupPath", "./tilecore_influx_backup.lp.gz")

	viper.SetDefault("stream.enabled", false)
	viper.SetDefault("stream.url", "ws://localhost:5000/feed")
	viper.SetDefault("stream.secret", "")
	viper.SetDefault("stream.session", "tilecore")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	def := core.DefaultPlacement
	viper.SetDefault("model.position.longitude", def.Position.Longitude)
	viper.SetDefault("model.position.latitude", def.Position.Latitude)
	viper.SetDefault("model.position.height", def.Position.Height)
	viper.SetDefault("model.rotation.x", def.Rotation.X)
	viper.SetDefault("model.rotation.y", def.Rotation.Y)
	viper.SetDefault("model.rotation.z", def.Rotation.Z)

	viper.SetDefault("measurement.unit", "meter")

	sec := core.DefaultSectionConfig()
	viper.SetDefault("section.axis", string(sec.Axis))
	viper.SetDefault("section.offset", sec.Offset)
	viper.SetDefault("section.thickness", sec.Thickness)
	viper.SetDefault("section.color", sec.Color)
	viper.SetDefault("section.opacity", sec.Opacity)
	viper.SetDefault("section.visible", sec.Visible)
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetStorageConfig returns the storage settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type:          viper.GetString("storage.type"),
		SqlitePath:    viper.GetString("storage.sqlitePath"),
		Archive:       viper.GetBool("storage.archive"),
		FlushInterval: viper.GetDuration("storage.flushInterval"),
	}
}

// GetDefaultPlacement returns where a freshly loaded model is put.
func GetDefaultPlacement() core.Placement {
	return core.Placement{
		Position: core.Geodetic{
			Longitude: viper.GetFloat64("model.position.longitude"),
			Latitude:  viper.GetFloat64("model.position.latitude"),
			Height:    viper.GetFloat64("model.position.height"),
		},
		Rotation: core.Rotation{
			X: viper.GetFloat64("model.rotation.x"),
			Y: viper.GetFloat64("model.rotation.y"),
			Z: viper.GetFloat64("model.rotation.z"),
		},
	}
}

// GetMeasurementUnit returns the distance unit used until the operator
// picks one. Unknown values mean meters.
func GetMeasurementUnit() measure.Unit {
	u, err := measure.ParseUnit(viper.GetString("measurement.unit"))
	if err != nil {
		return measure.UnitMeter
	}
	return u
}

// GetSectionConfig returns the initial section panel state.
func GetSectionConfig() core.SectionConfig {
	return core.SectionConfig{
		Axis:      core.SectionAxis(viper.GetString("section.axis")),
		Offset:    viper.GetFloat64("section.offset"),
		Thickness: viper.GetFloat64("section.thickness"),
		Color:     viper.GetString("section.color"),
		Opacity:   viper.GetFloat64("section.opacity"),
		Visible:   viper.GetBool("section.visible"),
	}
}
