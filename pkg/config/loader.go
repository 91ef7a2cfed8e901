package config

import (
	"strings"

	"github.com/spf13/viper"
	"github.com/tabstream/tabstream/pkg/errors"
)

// LoadColumnarOptions reads ColumnarOptions from a YAML file (if path is
// non-empty) layered under environment variables prefixed TABSTREAM_, e.g.
// TABSTREAM_BATCH_SIZE overrides batch_size. Defaults come from
// DefaultColumnarOptions. The result is validated/clamped before return.
func LoadColumnarOptions(path string) (ColumnarOptions, error) {
	opts := DefaultColumnarOptions()

	v := newViper(path)
	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			return opts, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config file")
		}
	}
	if err := v.Unmarshal(&opts); err != nil {
		return opts, errors.Wrap(err, errors.ErrorTypeConfig, "failed to decode columnar options")
	}
	if err := opts.Validate(); err != nil {
		return opts, errors.Wrap(err, errors.ErrorTypeValidation, "invalid columnar options")
	}
	return opts, nil
}

// LoadCsvOptions is LoadColumnarOptions' row-mode counterpart.
func LoadCsvOptions(path string) (CsvOptions, error) {
	opts := DefaultCsvOptions()

	v := newViper(path)
	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			return opts, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config file")
		}
	}
	if err := v.Unmarshal(&opts); err != nil {
		return opts, errors.Wrap(err, errors.ErrorTypeConfig, "failed to decode CSV options")
	}
	if err := opts.Validate(); err != nil {
		return opts, errors.Wrap(err, errors.ErrorTypeValidation, "invalid CSV options")
	}
	return opts, nil
}

// LoadXlsxOptions is LoadColumnarOptions' XLSX-mode counterpart.
func LoadXlsxOptions(path string) (XlsxOptions, error) {
	opts := DefaultXlsxOptions()

	v := newViper(path)
	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			return opts, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config file")
		}
	}
	if err := v.Unmarshal(&opts); err != nil {
		return opts, errors.Wrap(err, errors.ErrorTypeConfig, "failed to decode XLSX options")
	}
	if err := opts.Validate(); err != nil {
		return opts, errors.Wrap(err, errors.ErrorTypeValidation, "invalid XLSX options")
	}
	return opts, nil
}

// LoadXlsxColumnarOptions is LoadColumnarOptions' XLSX-columnar-mode
// counterpart.
func LoadXlsxColumnarOptions(path string) (XlsxColumnarOptions, error) {
	opts := DefaultXlsxColumnarOptions()

	v := newViper(path)
	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			return opts, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config file")
		}
	}
	if err := v.Unmarshal(&opts); err != nil {
		return opts, errors.Wrap(err, errors.ErrorTypeConfig, "failed to decode XLSX columnar options")
	}
	if err := opts.Validate(); err != nil {
		return opts, errors.Wrap(err, errors.ErrorTypeValidation, "invalid XLSX columnar options")
	}
	return opts, nil
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	}
	v.SetEnvPrefix("tabstream")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}
