package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestConfig(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Config Suite")
}

var _ = Describe("Config", func() {
	var (
		tempDir    string
		configFile string
	)

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "config-test")
		Expect(err).NotTo(HaveOccurred())
		configFile = filepath.Join(tempDir, "config.yaml")
	})

	AfterEach(func() {
		os.RemoveAll(tempDir)
	})

	Describe("Load", func() {
		Context("when config file exists with valid content", func() {
			BeforeEach(func() {
				validConfig := `
server:
  metrics_port: "9090"

datastore:
  dsn: "postgres://localhost/sentinel"
  max_open_conns: 10
  conn_max_lifetime: "30m"

llm:
  provider: "anthropic"
  model: "claude-3-5-sonnet-20241022"
  timeout: "30s"
  retry_count: 3
  temperature: 0.3
  max_tokens: 500

kubernetes:
  context: "test-context"
  namespace: "default"
  kubeconfig_path: "/home/ops/.kube/config"

monitor:
  services:
    - "checkout"
  metrics_backend_url: "http://metrics.internal:9090"
  poll_interval: "30s"
  min_confidence: 0.8

actions:
  dry_run: false
  max_concurrent: 5
  cooldown_period: "5m"

logging:
  level: "info"
  format: "json"
`
				err := os.WriteFile(configFile, []byte(validConfig), 0644)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should load configuration successfully", func() {
				cfg, err := Load(configFile)
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg).NotTo(BeNil())

				Expect(cfg.Server.MetricsPort).To(Equal("9090"))

				Expect(cfg.LLM.Provider).To(Equal("anthropic"))
				Expect(cfg.LLM.Model).To(Equal("claude-3-5-sonnet-20241022"))
				Expect(cfg.LLM.Timeout).To(Equal(30 * time.Second))
				Expect(cfg.LLM.RetryCount).To(Equal(3))
				Expect(cfg.LLM.Temperature).To(Equal(float32(0.3)))
				Expect(cfg.LLM.MaxTokens).To(Equal(500))

				Expect(cfg.Kubernetes.Context).To(Equal("test-context"))
				Expect(cfg.Kubernetes.Namespace).To(Equal("default"))
				Expect(cfg.Kubernetes.KubeconfigPath).To(Equal("/home/ops/.kube/config"))

				Expect(cfg.Monitor.Services).To(ConsistOf("checkout"))
				Expect(cfg.Monitor.MetricsBackendURL).To(Equal("http://metrics.internal:9090"))
				Expect(cfg.Monitor.PollInterval).To(Equal(30 * time.Second))
				Expect(cfg.Monitor.MinConfidence).To(Equal(0.8))

				Expect(cfg.Actions.DryRun).To(BeFalse())
				Expect(cfg.Actions.MaxConcurrent).To(Equal(5))
				Expect(cfg.Actions.CooldownPeriod).To(Equal(5 * time.Minute))

				Expect(cfg.Logging.Level).To(Equal("info"))
				Expect(cfg.Logging.Format).To(Equal("json"))
			})
		})

		Context("when config file has minimal content", func() {
			BeforeEach(func() {
				minimalConfig := `
llm:
  provider: "anthropic"
  model: "test-model"
`
				err := os.WriteFile(configFile, []byte(minimalConfig), 0644)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should load with defaults for missing values", func() {
				cfg, err := Load(configFile)
				Expect(err).NotTo(HaveOccurred())

				Expect(cfg.LLM.Model).To(Equal("test-model"))
				Expect(cfg.Kubernetes.Namespace).To(Equal("default"))
				Expect(cfg.Actions.MaxConcurrent).To(Equal(5))
				Expect(cfg.Monitor.MetricsBackendURL).To(Equal("http://localhost:9090"))
			})
		})

		Context("when config file does not exist", func() {
			It("should return an error", func() {
				_, err := Load("/nonexistent/config.yaml")
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("failed to read config file"))
			})
		})

		Context("when config file has invalid YAML", func() {
			BeforeEach(func() {
				invalidConfig := `
server:
  metrics_port: "9090"
  invalid_yaml: [
llm:
  provider: "anthropic"
`
				err := os.WriteFile(configFile, []byte(invalidConfig), 0644)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return an error", func() {
				_, err := Load(configFile)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("failed to parse config file"))
			})
		})

		Context("when config has invalid duration formats", func() {
			BeforeEach(func() {
				invalidDurationConfig := `
llm:
  provider: "anthropic"
  model: "test"
  timeout: "not-a-duration"
`
				err := os.WriteFile(configFile, []byte(invalidDurationConfig), 0644)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return an error", func() {
				_, err := Load(configFile)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("failed to parse config file"))
			})
		})
	})

	Describe("validate", func() {
		var cfg *Config

		BeforeEach(func() {
			cfg = &Config{
				LLM: LLMConfig{
					Provider:    "anthropic",
					Model:       "claude-3-5-sonnet-20241022",
					Temperature: 0.3,
					MaxTokens:   500,
				},
				Kubernetes: KubernetesConfig{
					Namespace: "default",
				},
				Actions: ActionsConfig{
					MaxConcurrent: 5,
				},
				Monitor: MonitorConfig{
					MetricsBackendURL: "http://localhost:9090",
					MinConfidence:     0.75,
				},
			}
		})

		Context("when config is valid", func() {
			It("should pass validation", func() {
				Expect(validate(cfg)).To(Succeed())
			})
		})

		Context("when LLM provider is unsupported", func() {
			BeforeEach(func() { cfg.LLM.Provider = "openai" })

			It("should return a validation error", func() {
				err := validate(cfg)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("unsupported LLM provider"))
			})
		})

		Context("when localai provider has no endpoint", func() {
			BeforeEach(func() {
				cfg.LLM.Provider = "localai"
				cfg.LLM.Endpoint = ""
			})

			It("should return a validation error", func() {
				err := validate(cfg)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("LLM endpoint is required"))
			})
		})

		Context("when LLM temperature is out of range", func() {
			BeforeEach(func() { cfg.LLM.Temperature = 1.5 })

			It("should return a validation error", func() {
				err := validate(cfg)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("LLM temperature must be between"))
			})
		})

		Context("when LLM max tokens is zero", func() {
			BeforeEach(func() { cfg.LLM.MaxTokens = 0 })

			It("should return a validation error", func() {
				err := validate(cfg)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("LLM max tokens must be greater than 0"))
			})
		})

		Context("when Kubernetes namespace is empty", func() {
			BeforeEach(func() { cfg.Kubernetes.Namespace = "" })

			It("should return a validation error", func() {
				err := validate(cfg)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("Kubernetes namespace is required"))
			})
		})

		Context("when max concurrent actions is zero", func() {
			BeforeEach(func() { cfg.Actions.MaxConcurrent = 0 })

			It("should return a validation error", func() {
				err := validate(cfg)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("max concurrent actions must be greater than 0"))
			})
		})

		Context("when monitor min confidence is out of range", func() {
			BeforeEach(func() { cfg.Monitor.MinConfidence = 1.2 })

			It("should return a validation error", func() {
				err := validate(cfg)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("monitor min_confidence must be between"))
			})
		})

		Context("when monitor metrics backend URL is empty", func() {
			BeforeEach(func() { cfg.Monitor.MetricsBackendURL = "" })

			It("should return a validation error", func() {
				err := validate(cfg)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("monitor metrics_backend_url is required"))
			})
		})
	})

	Describe("loadFromEnv", func() {
		var cfg *Config

		BeforeEach(func() {
			cfg = &Config{}
			os.Clearenv()
		})

		AfterEach(func() {
			os.Clearenv()
		})

		Context("when environment variables are set", func() {
			BeforeEach(func() {
				os.Setenv("DATASTORE_DSN", "postgres://test/db")
				os.Setenv("CACHE_ADDR", "redis-test:6379")
				os.Setenv("LLM_ENDPOINT", "http://test:8080")
				os.Setenv("LLM_MODEL", "test-model")
				os.Setenv("LLM_PROVIDER", "localai")
				os.Setenv("METRICS_PORT", "9999")
				os.Setenv("METRICS_BACKEND_URL", "http://metrics-test:9090")
				os.Setenv("LOG_LEVEL", "debug")
				os.Setenv("DRY_RUN", "true")
			})

			It("should load values from the environment", func() {
				Expect(loadFromEnv(cfg)).To(Succeed())

				Expect(cfg.Datastore.DSN).To(Equal("postgres://test/db"))
				Expect(cfg.Cache.Addr).To(Equal("redis-test:6379"))
				Expect(cfg.LLM.Endpoint).To(Equal("http://test:8080"))
				Expect(cfg.LLM.Model).To(Equal("test-model"))
				Expect(cfg.LLM.Provider).To(Equal("localai"))
				Expect(cfg.Server.MetricsPort).To(Equal("9999"))
				Expect(cfg.Monitor.MetricsBackendURL).To(Equal("http://metrics-test:9090"))
				Expect(cfg.Logging.Level).To(Equal("debug"))
				Expect(cfg.Actions.DryRun).To(BeTrue())
			})
		})

		Context("when DRY_RUN is not a bool", func() {
			BeforeEach(func() { os.Setenv("DRY_RUN", "not-a-bool") })

			It("should return an error", func() {
				err := loadFromEnv(cfg)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("DRY_RUN must be a bool"))
			})
		})

		Context("when no environment variables are set", func() {
			It("should not modify the config", func() {
				original := *cfg
				Expect(loadFromEnv(cfg)).To(Succeed())
				Expect(*cfg).To(Equal(original))
			})
		})
	})
})
