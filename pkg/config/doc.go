// Package config loads listener configuration from a YAML file and ZEAL_*
// environment variables. Environment variables always win over the file.
//
// # Configuration Structure
//
// Remote API client:
//
//	ZEAL_BASE_URL="https://zeal.example.com"
//	ZEAL_AUTH_TOKEN="..."
//	ZEAL_TIMEOUT="30s"
//	ZEAL_MAX_RETRIES="3"
//	ZEAL_RETRY_BACKOFF="1s"
//
// Webhook receiver:
//
//	ZEAL_WEBHOOK_HOST="0.0.0.0"
//	ZEAL_WEBHOOK_PORT="3001"
//	ZEAL_WEBHOOK_PATH="/webhooks"
//	ZEAL_WEBHOOK_EVENTS="node.*,execution.*"
//	ZEAL_WEBHOOK_HEADERS="X-Team=core,X-Env=prod"
//	ZEAL_WEBHOOK_VERIFY_SIGNATURE="true"
//	ZEAL_WEBHOOK_SECRET="..."
//	ZEAL_WEBHOOK_REREGISTER_INTERVAL="1m"
//	ZEAL_WEBHOOK_DEDUPE_WINDOW="10m"
//	ZEAL_NAMESPACE="default"
//
// Shared dedupe store:
//
//	ZEAL_REDIS_URL="redis://localhost:6379/0"
//
// Observability:
//
//	ZEAL_LOG_LEVEL="info"
//	ZEAL_HEALTH_PORT="9090"
//	ZEAL_METRICS_ENABLED="true"
//	ZEAL_OTEL_ENABLED="false"
//	ZEAL_OTEL_ENDPOINT="localhost:4317"
//
// The same settings in YAML:
//
//	client:
//	  base_url: https://zeal.example.com
//	  max_retries: 3
//	subscription:
//	  port: 3001
//	  events: ["node.*"]
//	  dedupe_window: 10m
//	server:
//	  health_port: "9090"
package config
