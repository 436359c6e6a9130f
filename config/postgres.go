package config

import (
	"context"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// SSM parameter names holding the production credentials.
const (
	paramDBHost     = "PRICETRACKER_DB_HOST"
	paramDBUser     = "PRICETRACKER_DB_USER"
	paramDBPassword = "PRICETRACKER_DB_PASSWORD"
)

// PostgresConfig defines the configuration for connecting to a PostgreSQL database.
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	TimeZone string `mapstructure:"timezone"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// ParameterGetter is the slice of the SSM client used to resolve credentials.
type ParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// DSN builds the connection string for env. In "prod" host, user and
// password come from SSM Parameter Store; elsewhere from the config itself.
func (cfg *PostgresConfig) DSN(env string) (string, error) {
	return cfg.dsn(env, cfg.DBName, nil)
}

// ServerDSN is DSN pointed at the maintenance database, used to create DBName.
func (cfg *PostgresConfig) ServerDSN(env string) (string, error) {
	return cfg.dsn(env, "postgres", nil)
}

func (cfg *PostgresConfig) dsn(env, dbName string, getter ParameterGetter) (string, error) {
	host, user, password := cfg.Host, cfg.User, cfg.Password

	if env == "prod" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if getter == nil {
			awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
			if err != nil {
				return "", fmt.Errorf("load aws config: %w", err)
			}
			getter = ssm.NewFromConfig(awsCfg)
		}

		var err error
		if host, err = getParameterStoreValue(ctx, getter, paramDBHost, true); err != nil {
			return "", err
		}
		if user, err = getParameterStoreValue(ctx, getter, paramDBUser, true); err != nil {
			return "", err
		}
		if password, err = getParameterStoreValue(ctx, getter, paramDBPassword, true); err != nil {
			return "", err
		}
	}

	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host, cfg.Port, user, password, dbName, cfg.SSLMode,
	)
	if cfg.TimeZone != "" {
		dsn += fmt.Sprintf(" TimeZone=%s", cfg.TimeZone)
	}
	return dsn, nil
}

func getParameterStoreValue(ctx context.Context, getter ParameterGetter, parameterName string, decrypt bool) (string, error) {
	input := &ssm.GetParameterInput{
		Name:           &parameterName,
		WithDecryption: &decrypt,
	}

	result, err := getter.GetParameter(ctx, input)
	if err != nil {
		return "", fmt.Errorf("get parameter %s: %w", parameterName, err)
	}
	if result.Parameter == nil || result.Parameter.Value == nil {
		return "", fmt.Errorf("parameter %s has no value", parameterName)
	}
	return *result.Parameter.Value, nil
}
