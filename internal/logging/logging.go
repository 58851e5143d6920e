// Package logging builds the zap loggers used by the harness and the story twin.
package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects level, encoding and destination for a logger.
type Config struct {
	Level      string `yaml:"level"`                          // debug, info, warn, error
	Encoding   string `yaml:"encoding"`                       // json or console
	OutputPath string `yaml:"output_path" split_words:"true"` // file path, stdout or stderr; empty means stderr
}

// DefaultOutput keeps stdout free for reports and protocol traffic.
const DefaultOutput = "stderr"

// New builds a *zap.Logger from cfg. Unknown levels fall back to info and
// unknown encodings fall back to console.
func New(cfg Config) (*zap.Logger, error) {
	level := zap.NewAtomicLevel()
	name := strings.ToLower(strings.TrimSpace(cfg.Level))
	if name == "" {
		name = "info"
	}
	if err := level.UnmarshalText([]byte(name)); err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %q, using info: %v\n", cfg.Level, err)
		level.SetLevel(zap.InfoLevel)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	encoding := strings.ToLower(cfg.Encoding)
	if encoding != "json" && encoding != "console" {
		encoding = "console"
	}

	output := cfg.OutputPath
	if output == "" {
		output = DefaultOutput
	}

	zcfg := zap.Config{
		Level:             level,
		DisableCaller:     true,
		DisableStacktrace: true,
		Encoding:          encoding,
		EncoderConfig:     encoderCfg,
		OutputPaths:       []string{output},
		ErrorOutputPaths:  []string{"stderr"},
	}

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}
