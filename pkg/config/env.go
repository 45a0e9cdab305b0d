package config

const (
	EnvPrefix = "GENFLOW"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv       = "GENFLOW_APP_ENV"
	EnvPort         = "GENFLOW_APP_PORT"
	EnvLogLevel     = "GENFLOW_LOG_LEVEL"
	EnvLogWarnStack = "GENFLOW_LOG_WARN_STACK"
	EnvServiceKind  = "GENFLOW_SERVICE_KIND"

	EnvDBDSN     = "GENFLOW_DB_DSN"
	EnvDBDriver  = "GENFLOW_DB_DRIVER"
	EnvDBHost    = "GENFLOW_DB_HOST"
	EnvDBPort    = "GENFLOW_DB_PORT"
	EnvDBUser    = "GENFLOW_DB_USER"
	EnvDBPass    = "GENFLOW_DB_PASSWORD"
	EnvDBName    = "GENFLOW_DB_NAME"
	EnvDBSSLMode = "GENFLOW_DB_SSLMODE"

	EnvRedisURL  = "GENFLOW_REDIS_URL"
	EnvRedisAddr = "GENFLOW_REDIS_ADDR"

	EnvJWTSecret = "GENFLOW_JWT_SECRET"
	EnvJWTIssuer = "GENFLOW_JWT_ISSUER"

	EnvAutoMigrate = "GENFLOW_AUTO_MIGRATE"

	EnvGCPProjectID       = "GENFLOW_GCP_PROJECT_ID"
	EnvGCPCredentialsJSON = "GENFLOW_GCP_CREDENTIALS_JSON"

	EnvGCSBucket          = "GENFLOW_GCS_BUCKET_NAME"
	EnvGCSEphemeralBucket = "GENFLOW_GCS_EPHEMERAL_BUCKET_NAME"
	EnvGCSDownloadExpiry  = "GENFLOW_GCS_DOWNLOAD_URL_EXPIRY"
	EnvGCSEphemeralMarker = "GENFLOW_GCS_EPHEMERAL_MARKER"

	EnvPubSubEnvironment     = "GENFLOW_PUBSUB_ENVIRONMENT"
	EnvPubSubDomain          = "GENFLOW_PUBSUB_DOMAIN"
	EnvPubSubProducer        = "GENFLOW_PUBSUB_PRODUCER"
	EnvPubSubConnectAttempts = "GENFLOW_PUBSUB_CONNECT_ATTEMPTS"
	EnvPubSubConnectBackoff  = "GENFLOW_PUBSUB_CONNECT_BACKOFF"
	EnvPubSubPublishTimeout  = "GENFLOW_PUBSUB_PUBLISH_TIMEOUT"

	EnvWebhookBaseURL  = "GENFLOW_WEBHOOK_BASE_URL"
	EnvWebhookTokenKey = "GENFLOW_WEBHOOK_TOKEN_KEY"
	EnvWebhookLockTTL  = "GENFLOW_WEBHOOK_LOCK_TTL"

	EnvProviderImage = "GENFLOW_PROVIDER_IMAGE"
	EnvProviderVideo = "GENFLOW_PROVIDER_VIDEO"
	EnvProviderAudio = "GENFLOW_PROVIDER_AUDIO"
	EnvProviderTune  = "GENFLOW_PROVIDER_TUNING"

	EnvFalAPIKey              = "GENFLOW_FAL_API_KEY"
	EnvFalBaseURL             = "GENFLOW_FAL_BASE_URL"
	EnvFalModelImage          = "GENFLOW_FAL_MODEL_IMAGE"
	EnvFalModelVideo          = "GENFLOW_FAL_MODEL_VIDEO"
	EnvFalModelAudio          = "GENFLOW_FAL_MODEL_AUDIO"
	EnvFalModelTuning         = "GENFLOW_FAL_MODEL_TUNING"
	EnvFalDefaults            = "GENFLOW_FAL_DEFAULTS"
	EnvReplicateAPIToken      = "GENFLOW_REPLICATE_API_TOKEN"
	EnvReplicateBaseURL       = "GENFLOW_REPLICATE_BASE_URL"
	EnvReplicateVersionImage  = "GENFLOW_REPLICATE_VERSION_IMAGE"
	EnvReplicateVersionVideo  = "GENFLOW_REPLICATE_VERSION_VIDEO"
	EnvReplicateVersionAudio  = "GENFLOW_REPLICATE_VERSION_AUDIO"
	EnvReplicateVersionTuning = "GENFLOW_REPLICATE_VERSION_TUNING"
	EnvReplicateDefaults      = "GENFLOW_REPLICATE_DEFAULTS"
	EnvProviderTimeout        = "GENFLOW_PROVIDER_HTTP_TIMEOUT"

	EnvReconcilerInterval   = "GENFLOW_RECONCILER_INTERVAL"
	EnvReconcilerStaleAfter = "GENFLOW_RECONCILER_STALE_AFTER"
	EnvReconcilerMaxAge     = "GENFLOW_RECONCILER_MAX_AGE"
	EnvReconcilerBatchSize  = "GENFLOW_RECONCILER_BATCH_SIZE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
