package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/antoineross/supabase-go"
	storage_go "github.com/supabase-community/storage-go"

	"prodintel/internal/config"
	"prodintel/internal/logger"
)

const signedURLTTLSeconds = 15 * 60

// Store persists export artifacts (CSV tables, reports). When supabase storage
// is configured the artifact is uploaded to the bucket and a signed URL is
// returned; otherwise it lands in the data dir and is served from /files/.
type Store struct {
	log *logger.Logger
	cfg config.Config

	supabaseClient *supabase.Client
}

func NewStore(cfg config.Config) (*Store, error) {
	s := &Store{log: logger.New("ExportStore"), cfg: cfg}

	// Production runs must not scatter artifacts on local disk
	if cfg.AppEnv == "production" {
		if cfg.SupabaseURL == "" || cfg.SupabaseServiceKey == "" || cfg.SupabaseBucket == "" {
			return nil, fmt.Errorf("production environment requires storage configuration: SUPABASE_URL, SUPABASE_SERVICE_ROLE_KEY and SUPABASE_STORAGE_BUCKET must be set")
		}
	}

	if cfg.SupabaseURL != "" && cfg.SupabaseServiceKey != "" {
		client, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, nil)
		if err != nil {
			if cfg.AppEnv == "production" {
				return nil, fmt.Errorf("failed to initialize Supabase client in production: %w", err)
			}
			s.log.LogWarnf("failed to initialize Supabase client: %v", err)
		} else {
			s.supabaseClient = client
		}
	}
	return s, nil
}

// Configured reports whether remote storage is usable.
func (s *Store) Configured() bool {
	return s.supabaseClient != nil && s.cfg.SupabaseBucket != "" && s.cfg.SupabaseURL != "" && s.cfg.SupabaseServiceKey != ""
}

// HealthCheck verifies that at least one artifact destination is usable:
// the supabase bucket when configured, the local exports dir otherwise.
func (s *Store) HealthCheck(ctx context.Context) error {
	if s.Configured() {
		return nil
	}
	dir := filepath.Join(s.cfg.DataDir, "exports")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("exports dir unavailable: %w", err)
	}
	return nil
}

// Save persists one artifact and returns its local path (when written locally)
// and a URL a client can fetch it from. Remote saves return only the signed
// URL; local saves return both the path and a /files/ URL.
func (s *Store) Save(data []byte, name string) (string, string, error) {
	name = sanitizeName(name)

	if s.Configured() {
		bucketPath := filepath.ToSlash(filepath.Join("exports", time.Now().Format("20060102_150405")+"_"+name))

		mimeType := mime.TypeByExtension(filepath.Ext(bucketPath))
		if mimeType == "" {
			if strings.HasSuffix(bucketPath, ".csv") {
				mimeType = "text/csv"
			} else {
				mimeType = "application/octet-stream"
			}
		}

		reader := bytes.NewReader(data)
		if _, err := s.supabaseClient.Storage.UploadFile(s.cfg.SupabaseBucket, bucketPath, reader, storage_go.FileOptions{ContentType: &mimeType}); err != nil {
			s.log.LogWarnf("Supabase upload failed: %v", err)
			if s.cfg.AppEnv == "production" {
				return "", "", fmt.Errorf("failed to upload export to Supabase storage in production: %w", err)
			}
			goto LOCAL
		}

		signed, err := s.createSignedURL(s.cfg.SupabaseBucket, bucketPath, signedURLTTLSeconds)
		if err != nil {
			s.log.LogWarnf("Supabase signed URL creation failed: %v", err)
			if s.cfg.AppEnv == "production" {
				return "", "", fmt.Errorf("failed to create signed URL for export in production: %w", err)
			}
			goto LOCAL
		}
		s.log.LogInfof("Export uploaded: %s", bucketPath)
		return "", signed, nil
	}

	if s.cfg.AppEnv == "production" {
		return "", "", fmt.Errorf("supabase storage is required in production environment")
	}

LOCAL:
	dir := filepath.Join(s.cfg.DataDir, "exports")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("failed to create export dir: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", "", err
	}
	return path, "/files/exports/" + name, nil
}

// createSignedURL performs a direct REST call to sign objects with fresh headers
func (s *Store) createSignedURL(bucket, objectPath string, expiresIn int) (string, error) {
	if s.cfg.SupabaseURL == "" {
		return "", fmt.Errorf("supabase URL not configured")
	}
	serviceKey := s.cfg.SupabaseServiceKey
	if serviceKey == "" {
		return "", fmt.Errorf("supabase service key not configured")
	}

	signURL := fmt.Sprintf("%s/storage/v1/object/sign/%s/%s", strings.TrimRight(s.cfg.SupabaseURL, "/"), bucket, objectPath)
	body := map[string]int{"expiresIn": expiresIn}
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(body); err != nil {
		return "", fmt.Errorf("failed to encode sign body: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, signURL, buf)
	if err != nil {
		return "", fmt.Errorf("failed to build sign request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+serviceKey)
	req.Header.Set("apikey", serviceKey)

	httpClient := &http.Client{Timeout: 15 * time.Second}
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to request signed URL: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("failed to create signed URL: status %d", resp.StatusCode)
	}

	var signed struct {
		SignedURL string `json:"signedURL"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&signed); err != nil {
		return "", fmt.Errorf("failed to decode signed URL response: %w", err)
	}

	base := strings.TrimRight(s.cfg.SupabaseURL, "/")
	path := signed.SignedURL
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if !strings.HasPrefix(path, "/storage/v1/") {
		path = "/storage/v1" + path
	}
	finalURL := base + path
	if s.cfg.AppEnv == "development" {
		finalURL = strings.Replace(finalURL, "host.docker.internal", "127.0.0.1", 1)
	}
	return finalURL, nil
}

func sanitizeName(name string) string {
	replacer := strings.NewReplacer(":", "-", "/", "-", "?", "-", "&", "-", "=", "-", "#", "-", "%", "", " ", "_")
	out := replacer.Replace(name)
	if len(out) > 100 {
		out = out[:100]
	}
	return out
}
