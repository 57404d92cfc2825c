package types

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Config holds backend selection and parameters for Store.Attach.
type Config struct {
	Backend string `json:"backend" yaml:"backend" validate:"required,oneof=sqlite postgres"`
	DataDir string `json:"data_dir" yaml:"data_dir"`
	// DSN is the connection string for the postgres backend.
	DSN string `json:"dsn" yaml:"dsn" validate:"required_if=Backend postgres"`
	// InsertBatchSize bounds the rows carried by one multi-row INSERT.
	// Zero selects DefaultInsertBatchSize.
	InsertBatchSize int `json:"insert_batch_size" yaml:"insert_batch_size" validate:"gte=0"`

	// Catalog describes the tables the engine manages. Nil selects
	// StandardCatalog.
	Catalog *Catalog `json:"-" yaml:"-" validate:"-"`
	// Logger receives engine logs. Nil disables logging.
	Logger *zap.SugaredLogger `json:"-" yaml:"-" validate:"-"`
	// Registerer receives the engine's metrics. Nil keeps them on a private
	// registry.
	Registerer prometheus.Registerer `json:"-" yaml:"-" validate:"-"`
}

// Supported backend names.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// DefaultInsertBatchSize is the number of child rows flushed per INSERT
// when Config.InsertBatchSize is zero.
const DefaultInsertBatchSize = 500

// Config validation errors.
var (
	ErrBackendEmpty     = errors.New("backend must not be empty")
	ErrBackendUnknown   = errors.New("unknown backend")
	ErrDSNEmpty         = errors.New("dsn must not be empty for the postgres backend")
	ErrBatchSizeInvalid = errors.New("insert batch size must not be negative")
)

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	err := configValidator.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	switch fieldErrs[0].Field() {
	case "Backend":
		return ErrBackendUnknown
	case "DSN":
		return ErrDSNEmpty
	case "InsertBatchSize":
		return ErrBatchSizeInvalid
	}
	return err
}

// BatchSize returns the effective insert batch size.
func (c Config) BatchSize() int {
	if c.InsertBatchSize <= 0 {
		return DefaultInsertBatchSize
	}
	return c.InsertBatchSize
}
