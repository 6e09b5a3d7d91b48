// Package catalog obtains the Gutenberg RDF catalog archive and turns it
// into a directory of per-book RDF documents.
package catalog

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/gutenlab/gutenberg-pipeline/internal/gutenberg"
)

// ArchiveName is the filename of the catalog archive inside the data dir.
const ArchiveName = "rdf-files.tar.zip"

// ExtractDirName is the directory the archive is unpacked into.
const ExtractDirName = "rdf-files"

// Config controls the catalog source.
type Config struct {
	FeedsURL string
	DataDir  string
	Limit    int
	Timeout  time.Duration
}

// Source implements gutenberg.CatalogSource: archive download, extraction
// and the RDF document walk.
type Source struct {
	cfg    Config
	client *http.Client
	retry  gutenberg.RetryPolicy
	logger *zap.Logger
}

// NewSource builds a Source. A nil retry policy disables retries.
func NewSource(cfg Config, retry gutenberg.RetryPolicy, logger *zap.Logger) *Source {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	// The timeout bounds dial and response headers only. A whole-body
	// deadline would kill the archive download mid-stream; the file is
	// hundreds of megabytes.
	return &Source{
		cfg: cfg,
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				ResponseHeaderTimeout: timeout,
			},
		},
		retry:  retry,
		logger: logger,
	}
}
