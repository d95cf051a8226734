package config

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"golang.org/x/text/language"
)

var tablePrefixRegex = regexp.MustCompile(`^[a-zA-Z0-9_]*$`)

// Validate checks the loaded configuration
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DatabaseDriver, validation.Required, validation.In("pgx", "sqlite")),
		validation.Field(&c.DatabaseURL, validation.Required),
		validation.Field(&c.TablePrefix,
			validation.Match(tablePrefixRegex).Error("table prefix may only contain letters, digits and underscores"),
		),
		validation.Field(&c.Delimiter, validation.Required, validation.Length(1, MaxDelimiterLength)),
		validation.Field(&c.DefaultLocale, validation.Required, validation.By(validLocale)),
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.MaxLogFiles, validation.Min(1)),
		validation.Field(&c.MaxConns, validation.Min(int32(1))),
		validation.Field(&c.MinConns, validation.Min(int32(0)), validation.Max(c.MaxConns)),
	)
}

func validLocale(value interface{}) error {
	s, _ := value.(string)
	_, err := language.Parse(s)
	return err
}
