package config

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// applyFallbacks applies environment variable fallbacks
func (c *Config) applyFallbacks() {
	c.applyAIKeyFallback()
	c.applyServerAPIKeyFallbacks()
	c.applyTLSDefaults()
	c.applyObservabilityDefaults()
}

// applyAIKeyFallback accepts the conventional GEMINI_API_KEY when no key is configured
func (c *Config) applyAIKeyFallback() {
	if c.AI.APIKey == "" {
		c.AI.APIKey = os.Getenv("GEMINI_API_KEY")
	}
}

// applyServerAPIKeyFallbacks normalizes the key list, which arrives as one
// comma-separated string when set through the environment.
func (c *Config) applyServerAPIKeyFallbacks() {
	c.Server.APIKeys = splitKeys(strings.Join(c.Server.APIKeys, ","))
	if len(c.Server.APIKeys) == 0 {
		if apiKeysEnv := os.Getenv(envPrefix + "_SERVER_APIKEYS"); apiKeysEnv != "" {
			c.Server.APIKeys = splitKeys(apiKeysEnv)
		}
	}
}

func splitKeys(value string) []string {
	parts := strings.Split(value, ",")
	keys := make([]string, 0, len(parts))
	for _, part := range parts {
		if key := strings.TrimSpace(part); key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

func (c *Config) applyTLSDefaults() {
	if c.Server.TLS.MinVersion == "" && c.Server.TLS.Mode != "disabled" {
		c.Server.TLS.MinVersion = "1.2"
	}
}

func (c *Config) applyObservabilityDefaults() {
	if c.Observability.ServiceInstance == "" {
		c.Observability.ServiceInstance = generateServiceInstanceID(c.Observability.ServiceName)
	}

	// Debug logging implies console telemetry unless configured otherwise
	if c.App.LogLevel == "debug" && !c.Observability.ConsoleOutput {
		c.Observability.ConsoleOutput = true
	}
}

// generateServiceInstanceID generates a unique service instance ID
func generateServiceInstanceID(serviceName string) string {
	if hostname, err := os.Hostname(); err == nil {
		return fmt.Sprintf("%s-%s", serviceName, hostname)
	}
	return fmt.Sprintf("%s-1", serviceName)
}

// sourceEnvVars are reported by logConfigurationSources when set
var sourceEnvVars = []string{
	envPrefix + "_AI_APIKEY",
	envPrefix + "_AI_PROVIDER",
	envPrefix + "_AI_MODEL",
	envPrefix + "_STORE_BACKEND",
	envPrefix + "_SERVER_PORT",
	envPrefix + "_SERVER_HOST",
	envPrefix + "_APP_LOGLEVEL",
	envPrefix + "_VAULT_ENABLED",
	"GEMINI_API_KEY",
}

// logConfigurationSources prints where configuration came from and the
// values that matter most when debugging a deployment. Secrets are masked.
func (c *Config) logConfigurationSources(configFileUsed string) {
	source := configFileUsed
	if source == "" {
		source = "none (defaults and environment)"
	}
	log.Printf("[CONFIG] Config file: %s", source)

	for _, name := range sourceEnvVars {
		value, ok := os.LookupEnv(name)
		if !ok || value == "" {
			continue
		}
		if strings.Contains(strings.ToLower(name), "key") {
			value = "***MASKED***"
		}
		log.Printf("[CONFIG] env %s=%s", name, value)
	}

	summary := []struct {
		label string
		value any
	}{
		{"AI provider", c.AI.Provider},
		{"AI model", c.AI.Model},
		{"AI timeout", c.AI.Timeout},
		{"AI max retries", c.AI.MaxRetries},
		{"AI key configured", c.AI.APIKey != ""},
		{"Resume store", c.Store.Backend},
		{"Listen address", c.Server.Host + ":" + c.Server.Port},
		{"TLS mode", c.Server.TLS.Mode},
		{"Log level", c.App.LogLevel},
		{"Vault", c.Vault.Enabled},
		{"Observability", c.Observability.Enabled},
	}
	for _, item := range summary {
		log.Printf("[CONFIG] %s: %v", item.label, item.value)
	}
}
