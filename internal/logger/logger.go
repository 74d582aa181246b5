// Package logger sets up the internal logrus logger and the access log
// writer used by the HTTP server.
package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// File names inside the logging directories
const (
	InternalLogFile = "ltiprovider.log"
	AccessLogFile   = "access.log"
	ErrorLogFile    = "errors.log"
)

// LoggerConf configures one log destination
type LoggerConf struct {
	Dir    string `yaml:"dir"`
	StdErr bool   `yaml:"stderr"`
}

// SmartConf duplicates error entries into a dedicated file
type SmartConf struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// InternalConf configures the application log
type InternalConf struct {
	LoggerConf `yaml:",inline"`
	Level      string    `yaml:"level"`
	Smart      SmartConf `yaml:"smart"`
}

// Config holds the logging configuration
type Config struct {
	Access   LoggerConf   `yaml:"access"`
	Internal InternalConf `yaml:"internal"`
}

var accessWriter io.Writer = os.Stdout

// Init configures the standard logrus logger and the access log writer
func Init(c Config) error {
	level := log.InfoLevel
	if c.Internal.Level != "" {
		var err error
		if level, err = log.ParseLevel(c.Internal.Level); err != nil {
			return errors.Wrap(err, "invalid log level")
		}
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	out, err := writer(c.Internal.LoggerConf, InternalLogFile)
	if err != nil {
		return err
	}
	log.SetOutput(out)

	if c.Internal.Smart.Enabled {
		dir := c.Internal.Smart.Dir
		if dir == "" {
			dir = c.Internal.Dir
		}
		if dir != "" {
			f, err := openLogFile(dir, ErrorLogFile)
			if err != nil {
				return err
			}
			log.AddHook(&errorHook{out: f})
		}
	}

	if accessWriter, err = writer(c.Access, AccessLogFile); err != nil {
		return err
	}
	return nil
}

// AccessLogWriter returns the writer for access log lines
func AccessLogWriter() io.Writer {
	return accessWriter
}

func writer(c LoggerConf, name string) (io.Writer, error) {
	if c.Dir == "" {
		return os.Stderr, nil
	}
	f, err := openLogFile(c.Dir, name)
	if err != nil {
		return nil, err
	}
	if c.StdErr {
		return io.MultiWriter(f, os.Stderr), nil
	}
	return f, nil
}

func openLogFile(dir, name string) (*os.File, error) {
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o640)
	if err != nil {
		return nil, errors.Wrap(err, "could not open log file")
	}
	return f, nil
}

type errorHook struct {
	out io.Writer
}

func (*errorHook) Levels() []log.Level {
	return []log.Level{log.PanicLevel, log.FatalLevel, log.ErrorLevel}
}

func (h *errorHook) Fire(e *log.Entry) error {
	line, err := e.Bytes()
	if err != nil {
		return err
	}
	_, err = h.out.Write(line)
	return err
}
