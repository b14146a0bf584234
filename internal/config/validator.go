package config

import (
	"embed"
	"fmt"
	"net"
	"os"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"k8s.io/apimachinery/pkg/util/validation"

	oerrors "github.com/envctl/envctl/internal/errors"
)

//go:embed schema.cue
var schemaFS embed.FS

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}

	var sb strings.Builder
	sb.WriteString("config validation failed:\n")
	for _, err := range e {
		sb.WriteString(fmt.Sprintf("  %s: %s\n", err.Field, err.Message))
	}
	return sb.String()
}

// Is reports ValidationErrors as oerrors.ErrValidation.
func (e ValidationErrors) Is(target error) bool {
	return target == oerrors.ErrValidation
}

// Validator validates configuration against the embedded CUE schema.
type Validator struct {
	ctx    *cue.Context
	schema cue.Value
}

// NewValidator creates a new configuration validator.
func NewValidator() (*Validator, error) {
	ctx := cuecontext.New()

	schemaData, err := schemaFS.ReadFile("schema.cue")
	if err != nil {
		return nil, fmt.Errorf("reading embedded schema: %w", err)
	}

	schema := ctx.CompileBytes(schemaData, cue.Filename("schema.cue"))
	if schema.Err() != nil {
		return nil, fmt.Errorf("compiling schema: %w", schema.Err())
	}

	return &Validator{
		ctx:    ctx,
		schema: schema.LookupPath(cue.ParsePath("#Config")),
	}, nil
}

// Validate checks cfg against the schema and the rules CUE cannot express.
func (v *Validator) Validate(cfg *Config) error {
	var errs ValidationErrors

	value := v.ctx.Encode(cfg)
	if value.Err() != nil {
		return fmt.Errorf("encoding config: %w", value.Err())
	}
	if err := v.schema.Unify(value).Validate(cue.Concrete(true)); err != nil {
		for _, e := range cueerrors.Errors(err) {
			format, args := e.Msg()
			path := e.Path()
			if len(path) > 0 && path[0] == "#Config" {
				path = path[1:]
			}
			errs = append(errs, ValidationError{
				Field:   strings.Join(path, "."),
				Message: fmt.Sprintf(format, args...),
			})
		}
	}

	errs = append(errs, checkConfig(cfg)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ValidateFile validates a configuration file at the given path.
func (v *Validator) ValidateFile(path string) error {
	cfg, err := NewLoader().Load(path)
	if err != nil {
		return fmt.Errorf("loading config file: %w", err)
	}

	return v.Validate(cfg)
}

func checkConfig(cfg *Config) ValidationErrors {
	var errs ValidationErrors

	if cfg.Kubernetes.RolloutTimeout != "" {
		if _, err := cfg.RolloutTimeoutDuration(); err != nil {
			errs = append(errs, ValidationError{
				Field:   "kubernetes.rolloutTimeout",
				Message: "must be a duration such as 90s or 2m",
			})
		}
	}

	for i, path := range cfg.InitManifests() {
		if _, err := os.Stat(path); err != nil {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("kubernetes.init[%d]", i),
				Message: fmt.Sprintf("cannot read %s", path),
			})
		}
	}

	if cfg.DNS.Zone != "" && cfg.DNS.Provider == "" {
		errs = append(errs, ValidationError{Field: "dns.provider", Message: "required when dns.zone is set"})
	}
	if strings.EqualFold(cfg.DNS.Provider, "digitalocean") {
		if cfg.DNS.Zone == "" {
			errs = append(errs, ValidationError{Field: "dns.zone", Message: "required by the digitalocean provider"})
		}
		if cfg.DNS.Token == "" {
			errs = append(errs, ValidationError{Field: "dns.token", Message: "required by the digitalocean provider"})
		}
	}

	if cfg.Server.Addr != "" {
		if _, _, err := net.SplitHostPort(cfg.Server.Addr); err != nil {
			errs = append(errs, ValidationError{Field: "server.addr", Message: "must be host:port"})
		}
	}

	return errs
}

// ValidateEnvironmentNames checks that every environment directory under
// dir is a valid RFC 1123 label. A missing dir has no environments.
func ValidateEnvironmentNames(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading environments directory: %w", err)
	}

	var errs ValidationErrors
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if msgs := validation.IsDNS1123Label(name); len(msgs) > 0 {
			errs = append(errs, ValidationError{
				Field:   "environments." + name,
				Message: strings.Join(msgs, "; "),
			})
		}
	}
	sort.Slice(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })

	if len(errs) > 0 {
		return errs
	}
	return nil
}
