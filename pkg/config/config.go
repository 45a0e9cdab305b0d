package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	GCS          GCSConfig
	PubSub       PubSubConfig
	Webhook      WebhookConfig
	Providers    ProvidersConfig
	Reconciler   ReconcilerConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Webhook.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"GENFLOW_APP_ENV" required:"true"`
	Port         string `envconfig:"GENFLOW_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"GENFLOW_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"GENFLOW_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"GENFLOW_LOG_FORMAT" default:"json"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"GENFLOW_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"GENFLOW_DB_DSN"`
	Driver string `envconfig:"GENFLOW_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"GENFLOW_DB_HOST"`
	LegacyPort     int    `envconfig:"GENFLOW_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"GENFLOW_DB_USER"`
	LegacyPassword string `envconfig:"GENFLOW_DB_PASSWORD"`
	LegacyName     string `envconfig:"GENFLOW_DB_NAME"`
	LegacySSLMode  string `envconfig:"GENFLOW_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"GENFLOW_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"GENFLOW_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"GENFLOW_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"GENFLOW_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"GENFLOW_DB_SLOW_QUERY" default:"200ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"GENFLOW_REDIS_URL"`
	Address      string        `envconfig:"GENFLOW_REDIS_ADDR"`
	Password     string        `envconfig:"GENFLOW_REDIS_PASSWORD"`
	DB           int           `envconfig:"GENFLOW_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"GENFLOW_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"GENFLOW_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"GENFLOW_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GENFLOW_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"GENFLOW_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether any redis endpoint is configured.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

type JWTConfig struct {
	Secret string `envconfig:"GENFLOW_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"GENFLOW_JWT_ISSUER" required:"true"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"GENFLOW_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"GENFLOW_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"GENFLOW_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON string `envconfig:"GENFLOW_GCP_CREDENTIALS_JSON"`
}

type GCSConfig struct {
	BucketName          string        `envconfig:"GENFLOW_GCS_BUCKET_NAME" required:"true"`
	EphemeralBucketName string        `envconfig:"GENFLOW_GCS_EPHEMERAL_BUCKET_NAME"`
	DownloadURLExpiry   time.Duration `envconfig:"GENFLOW_GCS_DOWNLOAD_URL_EXPIRY" default:"1h"`
	EphemeralMarker     string        `envconfig:"GENFLOW_GCS_EPHEMERAL_MARKER" default:"ephemeral"`
	SignerEmail         string        `envconfig:"GENFLOW_GCS_SIGNER_EMAIL"`
}

type PubSubConfig struct {
	Environment     string        `envconfig:"GENFLOW_PUBSUB_ENVIRONMENT" default:"development"`
	Domain          string        `envconfig:"GENFLOW_PUBSUB_DOMAIN" default:"generation"`
	Producer        string        `envconfig:"GENFLOW_PUBSUB_PRODUCER" default:"genflow-api"`
	ConnectAttempts int           `envconfig:"GENFLOW_PUBSUB_CONNECT_ATTEMPTS" default:"5"`
	ConnectBackoff  time.Duration `envconfig:"GENFLOW_PUBSUB_CONNECT_BACKOFF" default:"500ms"`
	PublishTimeout  time.Duration `envconfig:"GENFLOW_PUBSUB_PUBLISH_TIMEOUT" default:"15s"`
	VerifyTopics    bool          `envconfig:"GENFLOW_PUBSUB_VERIFY_TOPICS" default:"true"`
}

type WebhookConfig struct {
	BaseURL  string        `envconfig:"GENFLOW_WEBHOOK_BASE_URL" required:"true"`
	TokenKey string        `envconfig:"GENFLOW_WEBHOOK_TOKEN_KEY" required:"true"`
	LockTTL  time.Duration `envconfig:"GENFLOW_WEBHOOK_LOCK_TTL" default:"10s"`
}

func (w WebhookConfig) validate() error {
	u, err := url.Parse(w.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL", EnvWebhookBaseURL)
	}
	return nil
}

// ProvidersConfig routes each resource kind to a provider and carries
// per-provider credentials.
type ProvidersConfig struct {
	Image  string `envconfig:"GENFLOW_PROVIDER_IMAGE" default:"fal"`
	Video  string `envconfig:"GENFLOW_PROVIDER_VIDEO" default:"fal"`
	Audio  string `envconfig:"GENFLOW_PROVIDER_AUDIO" default:"replicate"`
	Tuning string `envconfig:"GENFLOW_PROVIDER_TUNING" default:"replicate"`

	HTTPTimeout time.Duration `envconfig:"GENFLOW_PROVIDER_HTTP_TIMEOUT" default:"30s"`

	Fal       FalConfig
	Replicate ReplicateConfig
}

// Routes returns the configured provider name per resource kind.
func (p ProvidersConfig) Routes() map[string]string {
	return map[string]string{
		"image":  strings.ToLower(strings.TrimSpace(p.Image)),
		"video":  strings.ToLower(strings.TrimSpace(p.Video)),
		"audio":  strings.ToLower(strings.TrimSpace(p.Audio)),
		"tuning": strings.ToLower(strings.TrimSpace(p.Tuning)),
	}
}

// FalConfig pins one fal model per resource kind. A kind with an empty model
// cannot be routed to fal.
type FalConfig struct {
	APIKey      string     `envconfig:"GENFLOW_FAL_API_KEY"`
	BaseURL     string     `envconfig:"GENFLOW_FAL_BASE_URL" default:"https://queue.fal.run"`
	ImageModel  string     `envconfig:"GENFLOW_FAL_MODEL_IMAGE" default:"fal-ai/flux/dev"`
	VideoModel  string     `envconfig:"GENFLOW_FAL_MODEL_VIDEO" default:"fal-ai/kling-video/v1.6/standard/text-to-video"`
	AudioModel  string     `envconfig:"GENFLOW_FAL_MODEL_AUDIO"`
	TuningModel string     `envconfig:"GENFLOW_FAL_MODEL_TUNING"`
	Defaults    JSONObject `envconfig:"GENFLOW_FAL_DEFAULTS"`
}

// Models returns the configured model per resource kind.
func (f FalConfig) Models() map[string]string {
	return perKind(f.ImageModel, f.VideoModel, f.AudioModel, f.TuningModel)
}

// ReplicateConfig pins one model version per resource kind.
type ReplicateConfig struct {
	APIToken      string     `envconfig:"GENFLOW_REPLICATE_API_TOKEN"`
	BaseURL       string     `envconfig:"GENFLOW_REPLICATE_BASE_URL" default:"https://api.replicate.com"`
	ImageVersion  string     `envconfig:"GENFLOW_REPLICATE_VERSION_IMAGE"`
	VideoVersion  string     `envconfig:"GENFLOW_REPLICATE_VERSION_VIDEO"`
	AudioVersion  string     `envconfig:"GENFLOW_REPLICATE_VERSION_AUDIO"`
	TuningVersion string     `envconfig:"GENFLOW_REPLICATE_VERSION_TUNING"`
	Defaults      JSONObject `envconfig:"GENFLOW_REPLICATE_DEFAULTS"`
}

// Versions returns the configured model version per resource kind.
func (r ReplicateConfig) Versions() map[string]string {
	return perKind(r.ImageVersion, r.VideoVersion, r.AudioVersion, r.TuningVersion)
}

func perKind(image, video, audio, tuning string) map[string]string {
	return map[string]string{
		"image":  strings.TrimSpace(image),
		"video":  strings.TrimSpace(video),
		"audio":  strings.TrimSpace(audio),
		"tuning": strings.TrimSpace(tuning),
	}
}

// JSONObject decodes an environment value holding a JSON object.
type JSONObject map[string]any

// Decode implements envconfig.Decoder.
func (o *JSONObject) Decode(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		*o = nil
		return nil
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(value), &decoded); err != nil {
		return fmt.Errorf("expected a JSON object: %w", err)
	}
	*o = decoded
	return nil
}

type ReconcilerConfig struct {
	Interval   time.Duration `envconfig:"GENFLOW_RECONCILER_INTERVAL" default:"1m"`
	StaleAfter time.Duration `envconfig:"GENFLOW_RECONCILER_STALE_AFTER" default:"15m"`
	MaxAge     time.Duration `envconfig:"GENFLOW_RECONCILER_MAX_AGE" default:"24h"`
	BatchSize  int           `envconfig:"GENFLOW_RECONCILER_BATCH_SIZE" default:"50"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
