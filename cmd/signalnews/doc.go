// Command signalnews runs the Signal News report service and its local tools.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes the news feed, trending topics, report generation, report history and
//     deletion, job status and cancellation, a server-sent-events stream per job, and run/phase history.
//   - Dispatcher & queue: generation jobs flow through a bounded in-memory queue sized by
//     generation.queue_depth and are fanned out to a fixed worker pool sized by generation.concurrency.
//     Each job can be canceled individually; shutdown cancels them all.
//   - Generation: workers drive the step simulator, fold each step into a phase and percentage with the
//     phase tracker, and on success write the canned report body to the BlobStore (memory/local/GCS), save the
//     report to the configured repository (memory/SQLite/Postgres) and publish a Pub/Sub notification when a
//     topic is configured.
//   - Progress: lifecycle events go through the progress Hub to the SSE feed, the run store, Prometheus and
//     optionally the log.
//   - Configuration & plumbing: Viper populates config from env/files; zap provides structured logging;
//     Prometheus metrics are exported via the metrics middleware and /metrics handler.
//
// Subcommands:
//   - serve: run the HTTP service until SIGINT/SIGTERM.
//   - generate: run one simulated generation in the terminal with a live progress view.
//   - phases: list the phases or classify step messages.
//
// Quick checklist:
//   - Configure env vars: SIGNAL_SERVER_PORT, SIGNAL_GENERATION_CONCURRENCY, SIGNAL_GENERATION_STEP_INTERVAL_MS,
//     storage (SIGNAL_STORAGE_*), reports backend (SIGNAL_REPORTS_*), SIGNAL_DB_DSN, pubsub and progress.
//   - Run locally: go run ./cmd/signalnews serve --config config.yaml (or rely solely on env overrides).
package main
