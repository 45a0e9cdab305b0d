package gcs

import (
	"context"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/tellowai/admin-api-sub001/pkg/config"
	"github.com/tellowai/admin-api-sub001/pkg/logger"
)

const (
	pingTimeout          = 5 * time.Second
	defaultDownloadTTL   = time.Hour
	maxV4SignedURLExpiry = 7 * 24 * time.Hour
)

// Client signs download URLs for generation artifacts. Objects in the
// ephemeral bucket are short lived and signed separately.
type Client struct {
	client          *storage.Client
	defaultBucket   string
	ephemeralBucket string
	downloadTTL     time.Duration
	serviceAccount  *serviceAccountInfo
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type serviceAccountInfo struct {
	clientEmail string
	privateKey  []byte
}

type serviceAccountJSON struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
}

func NewClient(ctx context.Context, cfg config.GCSConfig, gcp config.GCPConfig, logg *logger.Logger) (*Client, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("gcs bucket name is required")
	}

	opts := []option.ClientOption{}
	var sa *serviceAccountInfo
	if strings.TrimSpace(gcp.CredentialsJSON) != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(gcp.CredentialsJSON)))
		parsed, err := parseServiceAccount(gcp.CredentialsJSON)
		if err != nil {
			return nil, err
		}
		sa = parsed
	}

	storageClient, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}

	client := newClient(storageClient, cfg, sa)

	if logg != nil {
		logg.Info(logg.WithField(ctx, "bucket", cfg.BucketName), "gcs client initialized")
	}

	return client, nil
}

func newClient(storageClient *storage.Client, cfg config.GCSConfig, sa *serviceAccountInfo) *Client {
	ttl := cfg.DownloadURLExpiry
	if ttl <= 0 {
		ttl = defaultDownloadTTL
	}
	ephemeral := strings.TrimSpace(cfg.EphemeralBucketName)
	if ephemeral == "" {
		ephemeral = cfg.BucketName
	}
	return &Client{
		client:          storageClient,
		defaultBucket:   cfg.BucketName,
		ephemeralBucket: ephemeral,
		downloadTTL:     ttl,
		serviceAccount:  sa,
	}
}

func parseServiceAccount(raw string) (*serviceAccountInfo, error) {
	var sa serviceAccountJSON
	if err := json.Unmarshal([]byte(raw), &sa); err != nil {
		return nil, fmt.Errorf("parsing gcp credentials json: %w", err)
	}
	if sa.ClientEmail == "" || sa.PrivateKey == "" {
		// user or external-account credentials; signing goes through IAM.
		return nil, nil
	}
	block, _ := pem.Decode([]byte(sa.PrivateKey))
	if block == nil {
		return nil, errors.New("gcp credentials private key is not PEM encoded")
	}
	if _, err := x509.ParsePKCS8PrivateKey(block.Bytes); err != nil {
		if _, err := x509.ParsePKCS1PrivateKey(block.Bytes); err != nil {
			return nil, fmt.Errorf("parsing gcp credentials private key: %w", err)
		}
	}
	return &serviceAccountInfo{clientEmail: sa.ClientEmail, privateKey: []byte(sa.PrivateKey)}, nil
}

func (c *Client) DefaultBucket() string {
	if c == nil {
		return ""
	}
	return c.defaultBucket
}

func (c *Client) EphemeralBucket() string {
	if c == nil {
		return ""
	}
	return c.ephemeralBucket
}

// GeneratePresignedDownloadURL signs a GET for key in the default bucket.
func (c *Client) GeneratePresignedDownloadURL(ctx context.Context, key string, expiresIn time.Duration) (string, error) {
	if c == nil {
		return "", errors.New("gcs client not initialized")
	}
	return c.SignedDownloadURL(ctx, c.defaultBucket, key, expiresIn)
}

// GenerateEphemeralPresignedDownloadURL signs a GET for key in the ephemeral bucket.
func (c *Client) GenerateEphemeralPresignedDownloadURL(ctx context.Context, key string, expiresIn time.Duration) (string, error) {
	if c == nil {
		return "", errors.New("gcs client not initialized")
	}
	return c.SignedDownloadURL(ctx, c.ephemeralBucket, key, expiresIn)
}

// SignedDownloadURL signs a V4 GET URL. A zero expiresIn uses the configured
// download expiry.
func (c *Client) SignedDownloadURL(_ context.Context, bucket, key string, expiresIn time.Duration) (string, error) {
	if c == nil {
		return "", errors.New("gcs client not initialized")
	}
	key = strings.TrimPrefix(strings.TrimSpace(key), "/")
	if key == "" {
		return "", errors.New("object key is required")
	}
	if bucket == "" {
		return "", errors.New("bucket is required")
	}
	if expiresIn <= 0 {
		expiresIn = c.downloadTTL
	}
	if expiresIn > maxV4SignedURLExpiry {
		expiresIn = maxV4SignedURLExpiry
	}

	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: time.Now().Add(expiresIn),
	}

	if c.serviceAccount != nil {
		opts.GoogleAccessID = c.serviceAccount.clientEmail
		opts.PrivateKey = c.serviceAccount.privateKey
		signed, err := storage.SignedURL(bucket, key, opts)
		if err != nil {
			return "", fmt.Errorf("signing download url: %w", err)
		}
		return signed, nil
	}

	if c.client == nil {
		return "", errors.New("no signer configured")
	}
	// BucketHandle.SignedURL falls back to the IAM signBlob API.
	signed, err := c.client.Bucket(bucket).SignedURL(key, opts)
	if err != nil {
		return "", fmt.Errorf("signing download url: %w", err)
	}
	return signed, nil
}

func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("gcs client not initialized")
	}
	if c.defaultBucket == "" {
		return errors.New("gcs bucket not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if _, err := c.client.Bucket(c.defaultBucket).Attrs(ctx); err != nil {
		return fmt.Errorf("gcs bucket check failed: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
