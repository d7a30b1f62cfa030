package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/retroenv/decompverify/internal/asmsource"
	"github.com/retroenv/decompverify/internal/cartimage"
	"github.com/retroenv/decompverify/internal/options"
	"github.com/spf13/viper"
)

// Setting keys, they are used in config files and, upper cased with the
// environment prefix, as environment variables.
const (
	KeyROM         = "rom"
	KeySource      = "source"
	KeyHeaderSize  = "header_size"
	KeyProgramSize = "program_size"
	KeyBaseAddress = "base_address"
	KeyDebug       = "debug"
	KeyQuiet       = "quiet"
	KeyNoColor     = "no_color"
)

const (
	// EnvPrefix is the prefix of environment variables, for example
	// DECOMPVERIFY_ROM.
	EnvPrefix = "DECOMPVERIFY"
	// DefaultConfigName is the name of the config file that is used if it
	// exists in the working directory.
	DefaultConfigName = "decompverify.yaml"
)

var errInvalidSetting = errors.New("invalid setting")

// NewSettings returns a settings instance with defaults and environment
// variable binding.
func NewSettings() *viper.Viper {
	v := viper.New()
	layout := cartimage.DefaultLayout()
	v.SetDefault(KeyHeaderSize, fmt.Sprintf("%d", layout.HeaderSize))
	v.SetDefault(KeyProgramSize, fmt.Sprintf("$%04X", layout.ProgramSize))
	v.SetDefault(KeyBaseAddress, fmt.Sprintf("$%04X", layout.BaseAddress))

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// LoadSettings reads the config file and returns the merged program
// options. Flags that are bound to the settings take precedence over
// environment variables, which take precedence over the config file.
// An empty config file name uses the default config file if it exists.
func LoadSettings(v *viper.Viper, configFile string) (options.Program, error) {
	if configFile == "" {
		if _, err := os.Stat(DefaultConfigName); err == nil {
			configFile = DefaultConfigName
		}
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return options.Program{}, fmt.Errorf("reading config file '%s': %w", configFile, err)
		}
	}

	opts := options.Program{
		Parameters: options.Parameters{
			Config: configFile,
			ROM:    v.GetString(KeyROM),
			Source: v.GetString(KeySource),
		},
		Flags: options.Flags{
			Debug:   v.GetBool(KeyDebug),
			Quiet:   v.GetBool(KeyQuiet),
			NoColor: v.GetBool(KeyNoColor),
		},
	}

	headerSize, err := number(v, KeyHeaderSize, 1<<24)
	if err != nil {
		return opts, err
	}
	programSize, err := number(v, KeyProgramSize, 0x10000)
	if err != nil {
		return opts, err
	}
	baseAddress, err := number(v, KeyBaseAddress, 0xFFFF)
	if err != nil {
		return opts, err
	}

	opts.Layout = options.Layout{
		HeaderSize:  uint(headerSize),
		ProgramSize: uint(programSize),
		BaseAddress: uint16(baseAddress),
	}
	return opts, nil
}

// number reads a numeric setting that can be given in assembler notation
// like $8000.
func number(v *viper.Viper, key string, limit int) (int, error) {
	text := v.GetString(key)
	value, err := asmsource.EvaluateConstant(text)
	if err != nil {
		return 0, fmt.Errorf("%w %s '%s': %w", errInvalidSetting, key, text, err)
	}
	if value < 0 || value > limit {
		return 0, fmt.Errorf("%w %s: %d is out of range", errInvalidSetting, key, value)
	}
	return value, nil
}
