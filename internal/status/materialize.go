package status

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	pkgerrors "github.com/tellowai/admin-api-sub001/pkg/errors"
)

// Signer produces time-limited download URLs for stored objects.
type Signer interface {
	GeneratePresignedDownloadURL(ctx context.Context, key string, expiresIn time.Duration) (string, error)
	GenerateEphemeralPresignedDownloadURL(ctx context.Context, key string, expiresIn time.Duration) (string, error)
}

type materializer struct {
	signer    Signer
	marker    string
	expiresIn time.Duration
}

// materialize decodes raw and adds a signed "url" next to every string "key".
func (m materializer) materialize(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return raw, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode stored payload")
	}
	if err := m.walk(ctx, doc); err != nil {
		return nil, err
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode materialized payload")
	}
	return out, nil
}

func (m materializer) walk(ctx context.Context, node any) error {
	switch v := node.(type) {
	case map[string]any:
		if key, ok := v["key"].(string); ok && strings.TrimSpace(key) != "" {
			bucket, _ := v["bucket"].(string)
			url, err := m.sign(ctx, key, bucket)
			if err != nil {
				return err
			}
			v["url"] = url
		}
		for k, child := range v {
			if k == "url" {
				continue
			}
			if err := m.walk(ctx, child); err != nil {
				return err
			}
		}
	case []any:
		for _, child := range v {
			if err := m.walk(ctx, child); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m materializer) sign(ctx context.Context, key, bucket string) (string, error) {
	var (
		url string
		err error
	)
	if m.isEphemeral(bucket) {
		url, err = m.signer.GenerateEphemeralPresignedDownloadURL(ctx, key, m.expiresIn)
	} else {
		url, err = m.signer.GeneratePresignedDownloadURL(ctx, key, m.expiresIn)
	}
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sign download url")
	}
	return url, nil
}

func (m materializer) isEphemeral(bucket string) bool {
	return m.marker != "" && strings.Contains(strings.ToLower(bucket), strings.ToLower(m.marker))
}
