package config

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"bapflow/internal/protocol"
)

// AppConfig holds deployment mode and protocol identity.
type AppConfig struct {
	Env        string
	Production bool
	Identity   protocol.FactoryConfig
}

// HTTPConfig holds the API listen address and ingress rate limiting.
type HTTPConfig struct {
	Addr              string
	RateLimitInterval time.Duration
	RateLimitBurst    int
}

// RegistryConfig holds registry lookup settings.
type RegistryConfig struct {
	BaseURL string
	Timeout time.Duration
}

// PaymentConfig holds payment gateway settings.
type PaymentConfig struct {
	BaseURL    string
	APIKey     string
	MerchantID string
	Timeout    time.Duration
}

// BppConfig holds outbound BPP call settings.
type BppConfig struct {
	Timeout            time.Duration
	RetryMaxAttempts   int
	BreakerMaxFailures int
	BreakerReset       time.Duration
}

// RedisConfig holds Redis connection and callback retention settings.
type RedisConfig struct {
	URL          string
	CallbackTTL  time.Duration
	DialTimeout  *time.Duration
	ReadTimeout  *time.Duration
	WriteTimeout *time.Duration
	PoolSize     *int
	MinIdleConns *int
	MaxRetries   *int
	EnableOTel   bool
	TLSConfig    *tls.Config
}

// LoadApp reads deployment mode and protocol identity from env.
func LoadApp() (AppConfig, error) {
	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "development"
	}

	bapID, err := requiredString("BAP_ID")
	if err != nil {
		return AppConfig{}, err
	}
	bapURI, err := requiredString("BAP_URI")
	if err != nil {
		return AppConfig{}, err
	}

	return AppConfig{
		Env:        env,
		Production: env == "production" || env == "prod",
		Identity: protocol.FactoryConfig{
			Domain:      strings.TrimSpace(os.Getenv("PROTOCOL_DOMAIN")),
			Country:     strings.TrimSpace(os.Getenv("PROTOCOL_COUNTRY")),
			City:        strings.TrimSpace(os.Getenv("PROTOCOL_CITY")),
			CoreVersion: strings.TrimSpace(os.Getenv("PROTOCOL_CORE_VERSION")),
			BapID:       bapID,
			BapURI:      bapURI,
		},
	}, nil
}

// LoadHTTP reads API server settings from env.
func LoadHTTP() (HTTPConfig, error) {
	addr, err := requiredString("HTTP_ADDR")
	if err != nil {
		return HTTPConfig{}, err
	}

	interval, err := optionalDuration("HTTP_RATE_LIMIT_INTERVAL")
	if err != nil {
		return HTTPConfig{}, err
	}
	burst, err := optionalInt("HTTP_RATE_LIMIT_BURST")
	if err != nil {
		return HTTPConfig{}, err
	}

	cfg := HTTPConfig{Addr: addr}
	if interval != nil {
		cfg.RateLimitInterval = *interval
	}
	if burst != nil {
		cfg.RateLimitBurst = *burst
	}
	return cfg, nil
}

// LoadRegistry reads registry client settings from env.
func LoadRegistry() (RegistryConfig, error) {
	baseURL, err := requiredString("REGISTRY_BASE_URL")
	if err != nil {
		return RegistryConfig{}, err
	}
	timeout, err := optionalDuration("REGISTRY_TIMEOUT")
	if err != nil {
		return RegistryConfig{}, err
	}

	cfg := RegistryConfig{BaseURL: baseURL}
	if timeout != nil {
		cfg.Timeout = *timeout
	}
	return cfg, nil
}

// LoadPayment reads payment gateway settings from env.
func LoadPayment() (PaymentConfig, error) {
	baseURL, err := requiredString("PAYMENT_BASE_URL")
	if err != nil {
		return PaymentConfig{}, err
	}
	timeout, err := optionalDuration("PAYMENT_TIMEOUT")
	if err != nil {
		return PaymentConfig{}, err
	}

	cfg := PaymentConfig{
		BaseURL:    baseURL,
		APIKey:     strings.TrimSpace(os.Getenv("PAYMENT_API_KEY")),
		MerchantID: strings.TrimSpace(os.Getenv("PAYMENT_MERCHANT_ID")),
	}
	if timeout != nil {
		cfg.Timeout = *timeout
	}
	return cfg, nil
}

// LoadBpp reads outbound BPP call settings from env.
func LoadBpp() (BppConfig, error) {
	var cfg BppConfig

	timeout, err := optionalDuration("BPP_TIMEOUT")
	if err != nil {
		return cfg, err
	}
	if timeout != nil {
		cfg.Timeout = *timeout
	}

	attempts, err := optionalInt("BPP_RETRY_MAX_ATTEMPTS")
	if err != nil {
		return cfg, err
	}
	if attempts != nil {
		cfg.RetryMaxAttempts = *attempts
	}

	maxFailures, err := optionalInt("BPP_BREAKER_MAX_FAILURES")
	if err != nil {
		return cfg, err
	}
	if maxFailures != nil {
		cfg.BreakerMaxFailures = *maxFailures
	}

	reset, err := optionalDuration("BPP_BREAKER_RESET")
	if err != nil {
		return cfg, err
	}
	if reset != nil {
		cfg.BreakerReset = *reset
	}

	return cfg, nil
}

// LoadRedis reads Redis config from env.
func LoadRedis() (RedisConfig, error) {
	var cfg RedisConfig

	url, err := requiredString("REDIS_URL")
	if err != nil {
		return cfg, err
	}
	cfg.URL = url

	if cfg.CallbackTTL, err = requiredDuration("REDIS_CALLBACK_TTL"); err != nil {
		return cfg, err
	}

	if cfg.DialTimeout, err = optionalDuration("REDIS_DIAL_TIMEOUT"); err != nil {
		return cfg, err
	}
	if cfg.ReadTimeout, err = optionalDuration("REDIS_READ_TIMEOUT"); err != nil {
		return cfg, err
	}
	if cfg.WriteTimeout, err = optionalDuration("REDIS_WRITE_TIMEOUT"); err != nil {
		return cfg, err
	}
	if cfg.PoolSize, err = optionalInt("REDIS_POOL_SIZE"); err != nil {
		return cfg, err
	}
	if cfg.MinIdleConns, err = optionalInt("REDIS_MIN_IDLE_CONNS"); err != nil {
		return cfg, err
	}
	if cfg.MaxRetries, err = optionalInt("REDIS_MAX_RETRIES"); err != nil {
		return cfg, err
	}

	if cfg.EnableOTel, err = optionalBool("REDIS_OTEL"); err != nil {
		return cfg, err
	}

	if cfg.TLSConfig, err = loadRedisTLSFromEnv(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func loadRedisTLSFromEnv() (*tls.Config, error) {
	caFile := strings.TrimSpace(os.Getenv("REDIS_TLS_CA_FILE"))
	certFile := strings.TrimSpace(os.Getenv("REDIS_TLS_CERT_FILE"))
	keyFile := strings.TrimSpace(os.Getenv("REDIS_TLS_KEY_FILE"))
	serverName := strings.TrimSpace(os.Getenv("REDIS_TLS_SERVER_NAME"))
	insecureStr := strings.TrimSpace(os.Getenv("REDIS_TLS_INSECURE_SKIP_VERIFY"))

	if caFile == "" && certFile == "" && keyFile == "" && serverName == "" && insecureStr == "" {
		return nil, nil
	}
	if (certFile == "") != (keyFile == "") {
		return nil, errors.New("REDIS_TLS_CERT_FILE and REDIS_TLS_KEY_FILE must be set together")
	}

	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
		ServerName: serverName,
	}

	if insecureStr != "" {
		insecure, err := strconv.ParseBool(insecureStr)
		if err != nil {
			return nil, fmt.Errorf("REDIS_TLS_INSECURE_SKIP_VERIFY: %w", err)
		}
		tlsConfig.InsecureSkipVerify = insecure
	}

	if caFile != "" {
		pemData, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("read REDIS_TLS_CA_FILE: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pemData) {
			return nil, errors.New("REDIS_TLS_CA_FILE contains no valid certificates")
		}
		tlsConfig.RootCAs = pool
	}

	if certFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("load redis TLS keypair: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

func optionalDuration(name string) (*time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return nil, nil
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if val < 0 {
		return nil, fmt.Errorf("%s must be >= 0", name)
	}
	return &val, nil
}

func optionalInt(name string) (*int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return nil, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if val < 0 {
		return nil, fmt.Errorf("%s must be >= 0", name)
	}
	return &val, nil
}

func optionalBool(name string) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, nil
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: %w", name, err)
	}
	return val, nil
}

func requiredString(name string) (string, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return raw, nil
}

func requiredDuration(name string) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return 0, fmt.Errorf("%s is required", name)
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if val < 0 {
		return 0, fmt.Errorf("%s must be >= 0", name)
	}
	return val, nil
}
