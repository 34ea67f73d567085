// Command sentinel-worker is the horizontally-scalable half of the
// pipeline: it claims DETECTED incidents and runs hypothesis generation
// and action selection against them, then separately claims approved
// actions and executes them against the cluster. Multiple replicas of
// this binary can run against the same datastore; the claim queries in
// pkg/incident and pkg/analysis make that safe.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/sentinelops/sentinel/internal/config"
	"github.com/sentinelops/sentinel/internal/logging"
	"github.com/sentinelops/sentinel/pkg/action"
	"github.com/sentinelops/sentinel/pkg/analysis"
	"github.com/sentinelops/sentinel/pkg/blastradius"
	"github.com/sentinelops/sentinel/pkg/cache"
	"github.com/sentinelops/sentinel/pkg/dependency"
	"github.com/sentinelops/sentinel/pkg/detector"
	"github.com/sentinelops/sentinel/pkg/executor"
	"github.com/sentinelops/sentinel/pkg/hypothesis"
	"github.com/sentinelops/sentinel/pkg/incident"
	"github.com/sentinelops/sentinel/pkg/k8s"
	"github.com/sentinelops/sentinel/pkg/learning"
	"github.com/sentinelops/sentinel/pkg/llm"
	"github.com/sentinelops/sentinel/pkg/metrics"
	"github.com/sentinelops/sentinel/pkg/queue"
	"github.com/sentinelops/sentinel/pkg/remediation"
	"github.com/sentinelops/sentinel/pkg/runbook"
	"github.com/sentinelops/sentinel/pkg/store"
	"github.com/sentinelops/sentinel/pkg/types"
	"github.com/sentinelops/sentinel/pkg/verifier"
)

// actionPollInterval is how often this process checks for newly-approved
// actions when none are immediately available.
const actionPollInterval = 3 * time.Second

func main() {
	configPath := envOr("SENTINEL_CONFIG", "config/config.yaml")

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer logger.Sync()

	session, err := store.Open(cfg.Datastore.DSN, logger)
	if err != nil {
		logger.Fatal("open datastore", zap.Error(err))
	}
	defer session.Close()
	session.DB.SetMaxOpenConns(cfg.Datastore.MaxOpenConns)
	session.DB.SetConnMaxLifetime(cfg.Datastore.ConnMaxLifetime)

	cacheClient := cache.New(cfg.Cache.Addr, cfg.Cache.Password, cfg.Cache.DB)
	defer cacheClient.Close()

	metricsClient := metrics.New(cfg.Monitor.MetricsBackendURL)

	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		logger.Fatal("ANTHROPIC_API_KEY is required to generate hypotheses")
	}
	llmProvider := llm.NewAnthropicProvider(apiKey)
	llmClient := llm.NewClient(llmProvider, cacheClient, cfg.LLM.Model, logger)

	runbooks, err := runbook.Load(cfg.Runbooks.Path, logger)
	if err != nil {
		logger.Fatal("load runbooks", zap.Error(err))
	}
	if err := runbooks.Watch(); err != nil {
		logger.Warn("runbook hot-reload watcher unavailable", zap.Error(err))
	}
	defer runbooks.Close()

	depGraph, err := dependency.LoadFile(cfg.Runbooks.DependencyGraph)
	if err != nil {
		logger.Warn("dependency graph unavailable, blast-radius annotation and action selection penalties disabled", zap.Error(err))
		depGraph = nil
	}
	var blastCalc *blastradius.Calculator
	if depGraph != nil {
		blastCalc = blastradius.New(depGraph, metricsClient)
	}

	clientset, err := buildKubernetesClientset(cfg.Kubernetes.KubeconfigPath)
	if err != nil {
		logger.Fatal("build kubernetes client", zap.Error(err))
	}
	k8sClient := k8s.NewClient(clientset)
	orchestrator := &executor.K8sAdapter{Client: k8sClient}

	registry := executor.NewRegistry()
	registry.Register("restart_pod", &executor.PodRestartExecutor{Client: orchestrator})
	registry.Register("scale_up", &executor.ScaleExecutor{Client: orchestrator})
	registry.Register("scale_down", &executor.ScaleExecutor{Client: orchestrator})
	registry.Register("rollback_deployment", &executor.RollbackDeploymentExecutor{Client: orchestrator})

	verify := verifier.New(metricsClient)

	learningRepo := learning.NewRepository(session)
	learningEngine := learning.New(learningRepo, session, logger)

	ctx, cancel := context.WithCancel(context.Background())

	if err := learningEngine.Warmup(ctx); err != nil {
		logger.Warn("learning engine warmup failed", zap.Error(err))
	}

	incidentRepo := incident.NewRepository(session)
	det := detector.New(detector.DefaultSigmaThreshold, logger)
	selector := action.New(runbooks)

	analysisTask := &analysis.Task{
		Session:       session,
		Incidents:     incidentRepo,
		Hypotheses:    analysis.NewHypothesisRepository(),
		Actions:       analysis.NewActionRepository(),
		Metrics:       metricsClient,
		MetricQuery:   firstQuery(cfg.Monitor.Queries),
		Detector:      det,
		Generator:     analysis.NewLLMGenerator(llmClient),
		Selector:      selector,
		Dependency:    depGraph,
		BlastRadius:   blastCalc,
		ServiceCtx:    hypothesis.ServiceContext{},
		ExecutionMode: executionMode(cfg.Actions.DryRun),
		Logger:        logger,
	}

	runner := &remediation.Runner{
		Session:   session,
		Actions:   analysis.NewActionRepository(),
		Incidents: incidentRepo,
		Executors: registry,
		Verifier:  verify,
		Learning:  learningEngine,
		Namespace: cfg.Kubernetes.Namespace,
		Logger:    logger,
	}

	poller := queue.NewPoller(incidentRepo, cfg.Monitor.PollInterval)
	go runAnalysisLoop(ctx, poller, analysisTask, logger)
	go runRemediationLoop(ctx, analysis.NewActionRepository(), runner, cfg.Actions.MaxConcurrent, logger)

	logger.Info("sentinel-worker started",
		zap.String("namespace", cfg.Kubernetes.Namespace),
		zap.Bool("dry_run", cfg.Actions.DryRun),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	cancel()
	time.Sleep(time.Second)
}

// runAnalysisLoop repeatedly claims a DETECTED incident and runs the
// analysis task against it, blocking on the poller between claims.
func runAnalysisLoop(ctx context.Context, poller *queue.Poller, task *analysis.Task, logger *zap.Logger) {
	for {
		id, err := poller.Dequeue(ctx)
		if err != nil {
			return
		}
		if err := task.Run(ctx, id); err != nil {
			logger.Error("analysis task failed", zap.String("incident_id", id), zap.Error(err))
		}
	}
}

// runRemediationLoop polls for approved actions and runs each one through
// the runner, up to maxConcurrent in flight at a time.
func runRemediationLoop(ctx context.Context, actions *analysis.ActionRepository, runner *remediation.Runner, maxConcurrent int, logger *zap.Logger) {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	sem := make(chan struct{}, maxConcurrent)
	ticker := time.NewTicker(actionPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ids, err := actions.ListApprovedIDs(ctx, runner.Session.DB, maxConcurrent)
			if err != nil {
				logger.Error("list approved actions", zap.Error(err))
				continue
			}
			for _, id := range ids {
				select {
				case sem <- struct{}{}:
				case <-ctx.Done():
					return
				}
				go func(actionID string) {
					defer func() { <-sem }()
					if _, err := runner.Run(ctx, actionID); err != nil {
						logger.Error("remediation run failed", zap.String("action_id", actionID), zap.Error(err))
					}
				}(id)
			}
		}
	}
}

func buildKubernetesClientset(kubeconfigPath string) (kubernetes.Interface, error) {
	var restConfig *rest.Config
	var err error
	if kubeconfigPath != "" {
		restConfig, err = clientcmd.BuildConfigFromFlags("", kubeconfigPath)
	} else {
		restConfig, err = rest.InClusterConfig()
	}
	if err != nil {
		return nil, fmt.Errorf("load kubernetes config: %w", err)
	}
	return kubernetes.NewForConfig(restConfig)
}

func executionMode(dryRun bool) types.ExecutionMode {
	if dryRun {
		return types.ExecutionModeDryRun
	}
	return types.ExecutionModeLive
}

func firstQuery(queries map[string]string) string {
	for _, q := range queries {
		return q
	}
	return ""
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
