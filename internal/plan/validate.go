package plan

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

// ValidationError reports the first invalid field of a plan
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var (
	validate   = validator.New()
	cronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
)

func init() {
	// report yaml keys rather than Go field names
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Validate checks struct constraints, then the cross-field rules the tags
// cannot express.
func Validate(p *Plan) error {
	if err := validate.Struct(p); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return ValidationError{Field: fieldPath(fe.Namespace()), Message: message(fe)}
		}
		return err
	}

	if p.Schedule.Cron != "" {
		if _, err := cronParser.Parse(p.Schedule.Cron); err != nil {
			return ValidationError{"schedule.cron", err.Error()}
		}
	}
	if p.Schedule.CacheTTL != "" {
		if d, err := time.ParseDuration(p.Schedule.CacheTTL); err != nil || d <= 0 {
			return ValidationError{"schedule.cache_ttl", "must be a positive duration"}
		}
	}

	jobs := p.Jobs()
	seen := make(map[string]int, len(jobs))
	for i, job := range jobs {
		field := fmt.Sprintf("notes[%d]", i)
		if job.Ticker == "" {
			return ValidationError{field + ".ticker", "required"}
		}
		// the same ticker may appear again with different terms
		key := job.Ticker + "|" + job.Config.String()
		if prev, dup := seen[key]; dup {
			return ValidationError{field, fmt.Sprintf("duplicates notes[%d]", prev)}
		}
		seen[key] = i
		if err := job.Config.Validate(); err != nil {
			return ValidationError{field + ".terms", err.Error()}
		}
	}

	return nil
}

// CacheTTL returns the configured result lifetime, or fallback when unset
func (p *Plan) CacheTTL(fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(p.Schedule.CacheTTL); err == nil && d > 0 {
		return d
	}
	return fallback
}

// fieldPath turns "Plan.notes[0].ticker" into "notes[0].ticker"
func fieldPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "min":
		return fmt.Sprintf("must have at least %s entries", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gt":
		return fmt.Sprintf("must be > %s", fe.Param())
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}
