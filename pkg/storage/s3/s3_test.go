package s3

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	gconfig "github.com/gedixr/gedixr/pkg/config"
)

func TestKey(t *testing.T) {
	c := &Client{cfg: Config{Bucket: "b", Prefix: "/runs/2024/"}}
	if got := c.Key("/data/extracted/x.parquet"); got != "runs/2024/x.parquet" {
		t.Errorf("Unexpected key %s", got)
	}
	c.cfg.Prefix = ""
	if got := c.Key("x.gpkg"); got != "x.gpkg" {
		t.Errorf("Unexpected key %s", got)
	}
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(gconfig.S3Config{Bucket: "b", Prefix: "p", Endpoint: "http://minio:9000", PathStyle: true})
	if cfg.Bucket != "b" || cfg.Prefix != "p" || !cfg.UsePathStyle || cfg.UploadTimeout == 0 {
		t.Errorf("Unexpected config %+v", cfg)
	}
}

func TestNewClient_RequiresBucket(t *testing.T) {
	if _, err := NewClient(context.Background(), Config{}); err == nil {
		t.Error("Expected error for missing bucket")
	}
}

func TestPublish(t *testing.T) {
	var (
		mu   sync.Mutex
		got  = map[string][]byte{}
		ctyp string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		got[r.URL.Path] = body
		ctyp = r.Header.Get("Content-Type")
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	local := filepath.Join(t.TempDir(), "20240101T0000__L2B_1.parquet")
	if err := os.WriteFile(local, []byte("PAR1"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig("gedi", "us-east-1")
	cfg.Prefix = "runs"
	cfg.Endpoint = srv.URL
	cfg.UsePathStyle = true
	cfg.AccessKeyID = "test"
	cfg.SecretAccessKey = "test"

	c, err := NewClient(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	uri, err := c.Publish(context.Background(), local)
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if uri != "s3://gedi/runs/20240101T0000__L2B_1.parquet" {
		t.Errorf("Unexpected uri %s", uri)
	}

	mu.Lock()
	defer mu.Unlock()
	body, ok := got["/gedi/runs/20240101T0000__L2B_1.parquet"]
	if !ok || string(body) != "PAR1" {
		t.Errorf("Unexpected uploads %v", got)
	}
	if ctyp != "application/vnd.apache.parquet" {
		t.Errorf("Unexpected content type %s", ctyp)
	}
}
