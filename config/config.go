// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.
package config

import (
	"reflect"
	"strings"

	"github.com/spf13/viper"

	"github.com/cardinalhq/vmfscan/internal/bytesource"
)

// Config aggregates configuration for the application.
// Each section maps onto the package that consumes it.
type Config struct {
	Scan    ScanConfig    `mapstructure:"scan"`
	S3      S3Config      `mapstructure:"s3"`
	DuckDB  DuckDBConfig  `mapstructure:"duckdb"`
	Parquet ParquetConfig `mapstructure:"parquet"`
}

// S3Config configures the client used for s3:// inputs and uploads.
type S3Config struct {
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	SessionToken    string `mapstructure:"session_token"`
	RoleARN         string `mapstructure:"role_arn"`
	SessionName     string `mapstructure:"session_name"`
}

func (c S3Config) ClientOptions() bytesource.S3ClientOptions {
	return bytesource.S3ClientOptions{
		Region:          c.Region,
		Endpoint:        c.Endpoint,
		UsePathStyle:    c.UsePathStyle,
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
		SessionToken:    c.SessionToken,
		RoleARN:         c.RoleARN,
		SessionName:     c.SessionName,
	}
}

// ParquetConfig configures Parquet output of the scan command.
type ParquetConfig struct {
	Compression    string `mapstructure:"compression"`
	RecordsPerFile int64  `mapstructure:"records_per_file"`
	RowGroupLength int64  `mapstructure:"row_group_length"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Scan:    DefaultScanConfig(),
		DuckDB:  DefaultDuckDBConfig(),
		Parquet: ParquetConfig{Compression: "zstd", RecordsPerFile: -1},
	}
}

// Load reads configuration from files and environment variables.
// Environment variables use the prefix "VMFSCAN" and the dot character
// in keys is replaced by an underscore. For example, "scan.sample_size"
// becomes "VMFSCAN_SCAN_SAMPLE_SIZE".
func Load() (*Config, error) {
	return load(viper.New())
}

// LoadFile is Load with an explicit config file.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	cfg := Default()

	if v.ConfigFileUsed() == "" {
		v.SetConfigName("vmfscan")
		v.AddConfigPath(".")
		_ = v.ReadInConfig()
	}
	v.SetEnvPrefix("VMFSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(parts, tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
