// Package config loads service configuration from CRMACL_* environment
// variables, optionally seeded from a .env file.
//
// # Configuration Structure
//
// Server settings:
//
//	CRMACL_HOST="0.0.0.0"
//	CRMACL_PORT="8080"
//	CRMACL_HEALTH_PORT="9090"
//	CRMACL_RATE_LIMIT_ENABLED="true"
//
// Storage settings:
//
//	CRMACL_POSTGRES_URL="postgres://crm:secret@db:5432/crm?sslmode=disable"
//	CRMACL_POSTGRES_REPLICA_URLS="postgres://replica1/crm,postgres://replica2/crm"
//	CRMACL_REDIS_URL="redis:6379"       # enables the shared table cache
//	CRMACL_TABLE_CACHE_SIZE="1024"
//	CRMACL_TABLE_CACHE_TTL="10m"
//
// Metadata settings:
//
//	CRMACL_METADATA_DIRS="metadata,custom/metadata"
//	CRMACL_METADATA_WATCH="true"
//	CRMACL_METADATA_S3_BUCKET="crm-metadata"   # replaces the directories
//	CRMACL_METADATA_S3_KEY="metadata.yaml"
//
// Observability settings:
//
//	CRMACL_LOG_LEVEL="info"
//	CRMACL_METRICS_ENABLED="true"
//	CRMACL_OTEL_ENABLED="false"
//	CRMACL_OTEL_ENDPOINT="localhost:4317"
//	CRMACL_OTEL_SAMPLE_RATIO="0.1"
package config
