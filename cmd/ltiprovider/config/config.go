// Package config loads the yaml configuration of the ltiprovider server.
package config

import (
	"io/fs"
	"os"
	"reflect"

	"github.com/fatih/structs"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/zachmann/go-utils/fileutils"
	"gopkg.in/yaml.v3"

	"github.com/go-lti/ltiprovider"
	"github.com/go-lti/ltiprovider/internal/utils"
)

// Config holds the configuration of the server
type Config struct {
	Server   ltiprovider.ServerConf `yaml:"server"`
	Logging  loggingConf            `yaml:"logging"`
	Storage  storageConf            `yaml:"storage"`
	Nonces   nonceConf              `yaml:"nonces"`
	Launch   launchConf             `yaml:"launch"`
	Services servicesConf           `yaml:"services"`
	Events   eventsConf             `yaml:"events"`
	API      apiConf                `yaml:"api"`
	OAuth    oauthConf              `yaml:"oauth"`
}

type configValidator interface {
	validate() error
}

var c *Config

var possibleConfigLocations = []string{
	".",
	"config",
	"/config",
	"/ltiprovider/config",
	"/ltiprovider",
	"/data/config",
	"/data",
	"/etc/ltiprovider",
}

const configFileName = "config.yaml"

// Get returns the loaded Config
func Get() Config {
	if c == nil {
		return defaultConfig()
	}
	return *c
}

func defaultConfig() Config {
	return Config{
		Server: ltiprovider.ServerConf{
			Port: 7672,
		},
		Logging:  defaultLoggingConf,
		Storage:  defaultStorageConf,
		Nonces:   defaultNonceConf,
		Launch:   defaultLaunchConf,
		Services: defaultServicesConf,
		Events:   defaultEventsConf,
		API:      defaultAPIConf,
		OAuth:    defaultOAuthConf,
	}
}

// Load loads the config from the passed file; if the filename is empty the
// default locations are searched. Errors are fatal.
func Load(filename string) {
	if err := loadDotEnv(); err != nil {
		log.WithError(err).Fatal("could not load .env file")
	}
	if filename == "" {
		filename = findConfigFile()
	}
	if filename == "" {
		log.Fatal("could not find config file in any of the possible locations")
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		log.WithError(err).Fatal("could not read config file")
	}
	conf, err := Parse(data)
	if err != nil {
		log.WithError(err).WithField("file", filename).Fatal("invalid config")
	}
	c = conf
}

// Parse parses and validates the passed yaml; ${VAR} references are replaced
// with the environment value
func Parse(data []byte) (*Config, error) {
	data = []byte(os.ExpandEnv(string(data)))
	conf := defaultConfig()
	if err := yaml.Unmarshal(data, &conf); err != nil {
		return nil, errors.Wrap(err, "could not parse config")
	}
	warnUnknownSections(data)
	if err := conf.validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

func loadDotEnv() error {
	err := godotenv.Load()
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func findConfigFile() string {
	for _, dir := range possibleConfigLocations {
		p := dir + "/" + configFileName
		if fileutils.FileExists(p) {
			return p
		}
	}
	return ""
}

func warnUnknownSections(data []byte) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return
	}
	for _, name := range utils.FieldTagNames(structs.New(Config{}).Fields(), "yaml") {
		delete(raw, name)
	}
	for name := range raw {
		log.WithField("section", name).Warn("unknown config section is ignored")
	}
}

func (conf *Config) validate() error {
	v := reflect.ValueOf(conf).Elem()
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		fieldVal := v.Field(i)
		if !fieldVal.CanAddr() {
			continue
		}
		if validator, ok := fieldVal.Addr().Interface().(configValidator); ok {
			if err := validator.validate(); err != nil {
				return errors.Errorf("validation failed for field '%s': %s", t.Field(i).Name, err.Error())
			}
		}
	}
	if conf.API.Admin.Port > 0 {
		conf.Server.AdminAPIPort = conf.API.Admin.Port
	}
	if conf.Server.ExternalURL == "" {
		return errors.New("server.external_url must be set")
	}
	return nil
}
