package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/gizmocoin/internal/logger"
	"github.com/nkiryanov/gizmocoin/internal/service/commerce"
	"github.com/nkiryanov/gizmocoin/internal/service/discount"
	"github.com/nkiryanov/gizmocoin/internal/service/ledger"
)

const (
	defaultListenAddr   = "localhost:8000"
	defaultLoggingLevel = logger.LevelInfo
	defaultEnvironment  = logger.EnvProduction
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Secret key to sign operator tokens
	SecretKey string

	// Operator passphrase. Passphrase gate denies everything if empty
	OperatorPassphrase string

	// Environment
	Environment string

	// External currency units per GZM
	Rate decimal.Decimal

	// Cap on absolute value of manual adjustment
	MaxAdjustment decimal.Decimal

	// Commerce platform
	ShopifyStore      string
	ShopifyToken      string
	ShopifyAPIVersion string
	ShopifyBaseURL    string
	CommerceTimeout   time.Duration

	// Issued discount codes
	DiscountTTL        time.Duration
	DiscountCodeLength int
}

func NewConfig() *Config {
	return &Config{
		LogLevel:           defaultLoggingLevel,
		ListenAddr:         defaultListenAddr,
		Environment:        defaultEnvironment,
		Rate:               ledger.DefaultRate,
		MaxAdjustment:      ledger.DefaultMaxAdjustment,
		ShopifyAPIVersion:  commerce.DefaultAPIVersion,
		CommerceTimeout:    commerce.DefaultTimeout,
		DiscountTTL:        discount.DefaultTTL,
		DiscountCodeLength: discount.DefaultCodeLength,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) error {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = value
			}
			return nil
		}
	}
	setDecimal := func(o *decimal.Decimal) func(value string) error {
		return func(value string) (err error) {
			if value != "" {
				*o, err = decimal.NewFromString(value)
			}
			return err
		}
	}
	setDuration := func(o *time.Duration) func(value string) error {
		return func(value string) (err error) {
			if value != "" {
				*o, err = time.ParseDuration(value)
			}
			return err
		}
	}
	setInt := func(o *int) func(value string) error {
		return func(value string) (err error) {
			if value != "" {
				*o, err = strconv.Atoi(value)
			}
			return err
		}
	}

	envMap := map[string]func(string) error{
		"RUN_ADDRESS":          setString(&c.ListenAddr),
		"DATABASE_URI":         setString(&c.DatabaseDSN),
		"SECRET_KEY":           setString(&c.SecretKey),
		"OPERATOR_PASSPHRASE":  setString(&c.OperatorPassphrase),
		"LOG_LEVEL":            setString(&c.LogLevel),
		"ENVIRONMENT":          setString(&c.Environment),
		"GZM_RATE":             setDecimal(&c.Rate),
		"MAX_ADJUSTMENT":       setDecimal(&c.MaxAdjustment),
		"SHOPIFY_STORE":        setString(&c.ShopifyStore),
		"SHOPIFY_TOKEN":        setString(&c.ShopifyToken),
		"SHOPIFY_API_VERSION":  setString(&c.ShopifyAPIVersion),
		"SHOPIFY_BASE_URL":     setString(&c.ShopifyBaseURL),
		"COMMERCE_TIMEOUT":     setDuration(&c.CommerceTimeout),
		"DISCOUNT_TTL":         setDuration(&c.DiscountTTL),
		"DISCOUNT_CODE_LENGTH": setInt(&c.DiscountCodeLength),
	}

	var errs []error
	for key, parseFn := range envMap {
		if err := parseFn(getenv(key)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}

	return errors.Join(errs...)
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("gizmocoin", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key")
	fs.StringVar(&c.OperatorPassphrase, "operator-passphrase", c.OperatorPassphrase, "Operator passphrase")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (development, production)")
	fs.Var((*decimalValue)(&c.Rate), "rate", "External currency units per GZM")
	fs.Var((*decimalValue)(&c.MaxAdjustment), "max-adjustment", "Max absolute manual adjustment")
	fs.StringVar(&c.ShopifyStore, "shopify-store", c.ShopifyStore, "Shop domain, e.g. gizmo.myshopify.com")
	fs.StringVar(&c.ShopifyToken, "shopify-token", c.ShopifyToken, "Shopify Admin API access token")
	fs.StringVar(&c.ShopifyAPIVersion, "shopify-api-version", c.ShopifyAPIVersion, "Shopify Admin API version")
	fs.StringVar(&c.ShopifyBaseURL, "shopify-base-url", c.ShopifyBaseURL, "Override Shopify Admin API base url")
	fs.DurationVar(&c.CommerceTimeout, "commerce-timeout", c.CommerceTimeout, "Timeout of every commerce platform call")
	fs.DurationVar(&c.DiscountTTL, "discount-ttl", c.DiscountTTL, "How long issued discount code is valid")
	fs.IntVar(&c.DiscountCodeLength, "discount-code-length", c.DiscountCodeLength, "Random symbols in discount code")

	return fs.Parse(args)
}

// Validate checks options required to start the service
func (c *Config) Validate() error {
	var errs []error

	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("database dsn is required"))
	}
	if c.SecretKey == "" {
		errs = append(errs, errors.New("secret key is required"))
	}
	if !c.Rate.IsPositive() {
		errs = append(errs, fmt.Errorf("rate must be positive, got %s", c.Rate))
	}
	if !c.MaxAdjustment.IsPositive() {
		errs = append(errs, fmt.Errorf("max adjustment must be positive, got %s", c.MaxAdjustment))
	}
	if c.ShopifyToken == "" {
		errs = append(errs, errors.New("shopify token is required"))
	}
	if c.ShopifyStore == "" && c.ShopifyBaseURL == "" {
		errs = append(errs, errors.New("shopify store or base url is required"))
	}
	if c.CommerceTimeout <= 0 {
		errs = append(errs, fmt.Errorf("commerce timeout must be positive, got %s", c.CommerceTimeout))
	}
	if c.DiscountTTL < discount.MinTTL || c.DiscountTTL > discount.MaxTTL {
		errs = append(errs, fmt.Errorf("discount ttl must be within [%s, %s], got %s", discount.MinTTL, discount.MaxTTL, c.DiscountTTL))
	}
	if c.DiscountCodeLength < discount.MinCodeLength || c.DiscountCodeLength > discount.MaxCodeLength {
		errs = append(errs, fmt.Errorf("discount code length must be within [%d, %d], got %d", discount.MinCodeLength, discount.MaxCodeLength, c.DiscountCodeLength))
	}

	return errors.Join(errs...)
}

// pflag.Value over decimal
type decimalValue decimal.Decimal

func (v *decimalValue) String() string {
	return (*decimal.Decimal)(v).String()
}

func (v *decimalValue) Set(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return err
	}
	*v = decimalValue(d)
	return nil
}

func (v *decimalValue) Type() string {
	return "decimal"
}
