package contentset

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

func init() {
	// Default logging to discard until a caller attaches a sink with
	// WithLogger; the library should be silent by default.
	logrus.SetOutput(io.Discard)
}

// Environment is the injectable process context the design avoids hiding
// behind package-level singletons: the blob store directory, the scratch
// allocator, the committed-directory shadow state, and the logging sink are
// all reachable from one value with documented init/teardown.
type Environment struct {
	Logger logrus.FieldLogger

	store   *BlobStore
	scratch *scratchAllocator

	shadowMu sync.Mutex
	shadow   map[string]shadowEntry
}

// EnvOption configures an Environment at construction time.
type EnvOption func(*envConfig)

type envConfig struct {
	logger      logrus.FieldLogger
	scratchRoot string
}

// WithLogger attaches a logging sink. Without this option the environment
// logs nothing (logrus default output is io.Discard).
func WithLogger(l logrus.FieldLogger) EnvOption {
	return func(c *envConfig) { c.logger = l }
}

// WithScratchRoot overrides where scratch subdirectories are allocated.
// Defaults to a unique directory under os.TempDir().
func WithScratchRoot(dir string) EnvOption {
	return func(c *envConfig) { c.scratchRoot = dir }
}

// NewEnvironment creates the blob store under blobRoot (created if absent)
// and a scratch allocator for merger/staging output, and returns the
// Environment that every Fileset operation is threaded through.
func NewEnvironment(blobRoot string, opts ...EnvOption) (*Environment, error) {
	cfg := &envConfig{logger: logrus.StandardLogger()}
	for _, o := range opts {
		o(cfg)
	}

	blobRoot = filepath.Clean(blobRoot)
	if err := os.MkdirAll(blobRoot, 0o755); err != nil {
		return nil, fmt.Errorf("creating blob store directory: %w", err)
	}

	store, err := newBlobStore(blobRoot, cfg.logger)
	if err != nil {
		return nil, err
	}

	scratchRoot := cfg.scratchRoot
	if scratchRoot == "" {
		scratchRoot, err = os.MkdirTemp("", "contentset-scratch-")
		if err != nil {
			return nil, fmt.Errorf("creating scratch root: %w", err)
		}
	} else if err := os.MkdirAll(scratchRoot, 0o755); err != nil {
		return nil, fmt.Errorf("creating scratch root: %w", err)
	}

	return &Environment{
		Logger:  cfg.logger,
		store:   store,
		scratch: newScratchAllocator(scratchRoot, cfg.scratchRoot == ""),
		shadow:  make(map[string]shadowEntry),
	}, nil
}

// Close reclaims the scratch root at process shutdown. It does not delete
// the blob store directory: blobs outlive the Environment value that
// created them by design, and a fresh Environment over the same directory
// picks up where the last one left off (refcounts, however, are in-memory
// and reset to whatever Add calls happen next).
func (e *Environment) Close() error {
	storeErr := e.store.Close()
	scratchErr := e.scratch.close()
	if storeErr != nil {
		return storeErr
	}
	return scratchErr
}
