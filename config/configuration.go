package config

import (
	"strings"

	"github.com/spf13/viper"
)

type ServerConfiguration struct {
	Host string `json:"host" mapstructure:"host" default:"0.0.0.0"`
	Port string `json:"port" mapstructure:"port" default:"8123"`
}

type PipelineConfiguration struct {
	RowCount int `json:"row_count" mapstructure:"row_count" default:"10"`
	// Executor is "loop" or "pool".
	Executor     string `json:"executor" mapstructure:"executor" default:"loop"`
	Workers      int    `json:"workers" mapstructure:"workers" default:"0"`
	FacetWorkers int    `json:"facet_workers" mapstructure:"facet_workers" default:"0"`
}

type LogConfiguration struct {
	Level  string `json:"level" mapstructure:"level" default:"INFO"`
	Format string `json:"format" mapstructure:"format" default:"text"`
}

type S3Configuration struct {
	Endpoint  string `json:"endpoint" mapstructure:"endpoint" default:""`
	AccessKey string `json:"access_key" mapstructure:"access_key" default:""`
	SecretKey string `json:"secret_key" mapstructure:"secret_key" default:""`
	Region    string `json:"region" mapstructure:"region" default:""`
	Secure    bool   `json:"secure" mapstructure:"secure" default:"true"`
}

type Configuration struct {
	Server   ServerConfiguration   `json:"server" mapstructure:"server"`
	Pipeline PipelineConfiguration `json:"pipeline" mapstructure:"pipeline"`
	Log      LogConfiguration      `json:"log" mapstructure:"log"`
	S3       S3Configuration       `json:"s3" mapstructure:"s3"`
	// Tables points at the yaml file with the table definitions.
	Tables string `json:"tables" mapstructure:"tables" default:""`
}

var Config *Configuration

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8123")
	v.SetDefault("pipeline.row_count", 10)
	v.SetDefault("pipeline.executor", "loop")
	v.SetDefault("pipeline.workers", 0)
	v.SetDefault("pipeline.facet_workers", 0)
	v.SetDefault("log.level", "INFO")
	v.SetDefault("log.format", "text")
	v.SetDefault("s3.secure", true)
	v.SetDefault("tables", "")
}

// InitConfig reads file into Config. Environment variables prefixed with
// TABLEPIPE_ override the file, e.g. TABLEPIPE_SERVER_PORT. An empty file
// name yields the defaults. It panics on unreadable configuration.
func InitConfig(file string) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("tablepipe")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			panic(err)
		}
	}
	cfg := &Configuration{}
	if err := v.Unmarshal(cfg); err != nil {
		panic(err)
	}
	Config = cfg
}
