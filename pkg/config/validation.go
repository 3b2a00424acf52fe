package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tag constraints and the cross-field rules tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}

		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s: failed '%s' check (value %v)", fe.Namespace(), formatTag(fe), fe.Value()))
		}
		return errors.New(strings.Join(msgs, "; "))
	}

	if cfg.API.Enabled && cfg.Metrics.Enabled && cfg.API.Port != 0 && cfg.API.Port == cfg.Metrics.Port {
		return fmt.Errorf("api.port and metrics.port must differ (both %d)", cfg.API.Port)
	}

	return nil
}

func formatTag(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}
