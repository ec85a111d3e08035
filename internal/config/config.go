// Package config provides centralized configuration management for the
// regional analyzer. It supports loading from YAML files, environment
// variables, and AWS Secrets Manager (for Lambda deployments).
package config

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Azure            AzureConfig            `yaml:"azure"`
	AzureCredentials AzureCredentialsConfig `yaml:"azure_credentials"`
	Cache            CacheConfig            `yaml:"cache"`
	Analysis         AnalysisConfig         `yaml:"analysis"`
	Logging          LoggingConfig          `yaml:"logging"`
}

// AzureConfig holds ARM endpoint settings and credentials
type AzureConfig struct {
	ManagementURL string        `yaml:"management_url"`
	LoginURL      string        `yaml:"login_url"`
	HTTPTimeout   time.Duration `yaml:"http_timeout"`
	// Azure authentication credentials (client-credentials flow)
	TenantID       string `yaml:"tenantId"`
	ClientID       string `yaml:"clientId"`
	ClientSecret   string `yaml:"clientSecret"`
	SubscriptionID string `yaml:"subscriptionId"`
}

// AzureCredentialsConfig holds credentials from the azure_credentials section
// of azure-config.yaml. Kept separate so credential files never need to carry
// endpoint settings.
type AzureCredentialsConfig struct {
	TenantID       string `yaml:"tenant_id"`
	ClientID       string `yaml:"client_id"`
	ClientSecret   string `yaml:"client_secret"`
	SubscriptionID string `yaml:"subscription_id"`
}

// CacheConfig holds on-disk cache settings
type CacheConfig struct {
	Dir        string        `yaml:"dir"`
	TTL        time.Duration `yaml:"ttl"`
	LambdaPath string        `yaml:"lambda_path"`
}

// AnalysisConfig holds comparison and quota settings
type AnalysisConfig struct {
	Concurrency    int           `yaml:"concurrency"`
	ContextTimeout time.Duration `yaml:"context_timeout"`
	RetryMax       int           `yaml:"retry_max"`
	ConfirmTimeout time.Duration `yaml:"confirm_timeout"`
}

// LoggingConfig holds logging-related settings
type LoggingConfig struct {
	Level       string `yaml:"level"`
	EnableFile  bool   `yaml:"enable_file"`
	EnableColor bool   `yaml:"enable_color"`
	LogDir      string `yaml:"log_dir"`
	MaxSizeMB   int    `yaml:"max_size_mb"`
	MaxBackups  int    `yaml:"max_backups"`
	MaxAgeDays  int    `yaml:"max_age_days"`
	Compress    bool   `yaml:"compress"`
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Azure: AzureConfig{
			ManagementURL: "https://management.azure.com",
			LoginURL:      "https://login.microsoftonline.com",
			HTTPTimeout:   120 * time.Second,
		},
		Cache: CacheConfig{
			Dir: ".region-analysis-cache",
			TTL: 24 * time.Hour,
		},
		Analysis: AnalysisConfig{
			Concurrency:    8,
			ContextTimeout: 10 * time.Minute,
			RetryMax:       3,
			ConfirmTimeout: 15 * time.Second,
		},
		Logging: LoggingConfig{
			Level:       "info",
			EnableFile:  true,
			EnableColor: true,
			LogDir:      "logs",
			MaxSizeMB:   100,
			MaxBackups:  3,
			MaxAgeDays:  7,
			Compress:    true,
		},
	}
}

// Get returns the global configuration (singleton)
func Get() *Config {
	configOnce.Do(func() {
		globalConfig = DefaultConfig()
		loadConfigFile()
		loadEnvOverrides()
	})
	return globalConfig
}

// Reload reloads the configuration from file
func Reload() error {
	configMu.Lock()
	defer configMu.Unlock()

	globalConfig = DefaultConfig()
	loadConfigFile()
	loadEnvOverrides()
	return nil
}

// loadConfigFile loads configuration from config.yaml
func loadConfigFile() {
	paths := []string{
		"config.yaml",
		"config.yml",
		filepath.Join(getExecutableDir(), "config.yaml"),
		filepath.Join(getExecutableDir(), "config.yml"),
	}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, globalConfig); err != nil {
			continue
		}
		break
	}

	// Credentials may live in a separate azure-config.yaml
	loadAzureConfigFile()
	mergeAzureCredentials()
}

// loadAzureConfigFile loads Azure credentials from azure-config.yaml
func loadAzureConfigFile() {
	paths := []string{
		"azure-config.yaml",
		"azure-config.yml",
		filepath.Join(getExecutableDir(), "azure-config.yaml"),
		filepath.Join(getExecutableDir(), "azure-config.yml"),
	}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		var azureOnly struct {
			AzureCredentials AzureCredentialsConfig `yaml:"azure_credentials"`
		}
		if err := yaml.Unmarshal(data, &azureOnly); err != nil {
			continue
		}

		if azureOnly.AzureCredentials.TenantID != "" {
			globalConfig.AzureCredentials = azureOnly.AzureCredentials
		}
		return
	}
}

// mergeAzureCredentials copies credentials from the azure_credentials
// section into the Azure config
func mergeAzureCredentials() {
	creds := globalConfig.AzureCredentials
	if creds.TenantID != "" {
		globalConfig.Azure.TenantID = creds.TenantID
	}
	if creds.ClientID != "" {
		globalConfig.Azure.ClientID = creds.ClientID
	}
	if creds.ClientSecret != "" {
		globalConfig.Azure.ClientSecret = creds.ClientSecret
	}
	if creds.SubscriptionID != "" {
		globalConfig.Azure.SubscriptionID = creds.SubscriptionID
	}
}

// loadEnvOverrides applies environment variable overrides
func loadEnvOverrides() {
	if ttl := os.Getenv("REGION_ANALYSIS_CACHE_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			globalConfig.Cache.TTL = d
		}
	}
	if dir := os.Getenv("REGION_ANALYSIS_CACHE_DIR"); dir != "" {
		globalConfig.Cache.Dir = dir
	}

	// Lambda detection - adjust settings for the Lambda environment
	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		globalConfig.Logging.EnableFile = false
		globalConfig.Logging.EnableColor = false
		globalConfig.Cache.LambdaPath = "/tmp/region-analysis-cache"
		globalConfig.Cache.Dir = globalConfig.Cache.LambdaPath

		// Load Azure credentials from AWS Secrets Manager in Lambda
		loadAzureCredsFromSecretsManager()
	}

	// Environment variables take precedence over files and Secrets Manager
	if tenantID := os.Getenv("AZURE_TENANT_ID"); tenantID != "" {
		globalConfig.Azure.TenantID = tenantID
	}
	if clientID := os.Getenv("AZURE_CLIENT_ID"); clientID != "" {
		globalConfig.Azure.ClientID = clientID
	}
	if clientSecret := os.Getenv("AZURE_CLIENT_SECRET"); clientSecret != "" {
		globalConfig.Azure.ClientSecret = clientSecret
	}
	if subscriptionID := os.Getenv("AZURE_SUBSCRIPTION_ID"); subscriptionID != "" {
		globalConfig.Azure.SubscriptionID = subscriptionID
	}
}

// AzureSecretsManagerPayload represents the secret structure in AWS Secrets Manager
type AzureSecretsManagerPayload struct {
	TenantID       string `json:"AZURE_TENANT_ID"`
	ClientID       string `json:"AZURE_CLIENT_ID"`
	ClientSecret   string `json:"AZURE_CLIENT_SECRET"`
	SubscriptionID string `json:"AZURE_SUBSCRIPTION_ID"`
}

// loadAzureCredsFromSecretsManager loads Azure credentials from AWS Secrets
// Manager. Only called when running in Lambda.
func loadAzureCredsFromSecretsManager() {
	secretName := os.Getenv("AZURE_SECRET_NAME")
	if secretName == "" {
		secretName = "region-analysis/azure-credentials"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Uses the Lambda execution role automatically
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		// Silently fail - ARM calls will report missing credentials
		return
	}

	client := secretsmanager.NewFromConfig(cfg)

	result, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: &secretName,
	})
	if err != nil {
		return
	}
	if result.SecretString == nil {
		return
	}

	var payload AzureSecretsManagerPayload
	if err := json.Unmarshal([]byte(*result.SecretString), &payload); err != nil {
		return
	}

	if payload.TenantID != "" {
		globalConfig.Azure.TenantID = payload.TenantID
	}
	if payload.ClientID != "" {
		globalConfig.Azure.ClientID = payload.ClientID
	}
	if payload.ClientSecret != "" {
		globalConfig.Azure.ClientSecret = payload.ClientSecret
	}
	if payload.SubscriptionID != "" {
		globalConfig.Azure.SubscriptionID = payload.SubscriptionID
	}
}

// HasAzureCredentials reports whether a client-credentials session can be
// established.
func (c *Config) HasAzureCredentials() bool {
	return c.Azure.TenantID != "" &&
		c.Azure.ClientID != "" &&
		c.Azure.ClientSecret != "" &&
		c.Azure.SubscriptionID != ""
}

// IsLambda returns true if running in AWS Lambda
func IsLambda() bool {
	return os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""
}

// getExecutableDir returns the directory containing the executable
func getExecutableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}
