package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/flagstream-dev/flagstream/pkg/flags"
)

// Client is the subset of the S3 API the archiver uses. *s3.Client
// satisfies it.
type Client interface {
	s3.ListObjectsV2APIClient
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Config holds archiver settings.
type Config struct {
	// Bucket is the target S3 bucket. Required.
	Bucket string

	// Prefix is the key prefix for snapshot objects (default "flags/").
	Prefix string

	// Debounce is how long to wait after the last mutation before
	// uploading (default 2s). Bursts of mutations produce one object.
	Debounce time.Duration
}

func (c Config) withDefaults() Config {
	if c.Prefix == "" {
		c.Prefix = "flags/"
	}
	if c.Debounce == 0 {
		c.Debounce = 2 * time.Second
	}
	return c
}

// Entry describes one archived snapshot object.
type Entry struct {
	Key          string
	Version      uint64
	Size         int64
	LastModified time.Time
}

// archiveObject is the JSON shape uploaded to S3.
type archiveObject struct {
	Version    uint64         `json:"version"`
	ArchivedAt time.Time      `json:"archived_at"`
	Flags      map[string]any `json:"flags"`
}

// Archiver uploads debounced store snapshots to S3.
type Archiver struct {
	client Client
	store  *flags.Store
	config Config
	logger *slog.Logger

	dispose func()
	trigger chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup
	started atomic.Bool

	// lastUploaded avoids re-uploading a version already persisted.
	lastUploaded atomic.Uint64
	anyUploaded  atomic.Bool
}

// New creates an archiver for the given store. A nil store uses the
// process-wide shared store; a nil logger uses slog.Default.
func New(client Client, store *flags.Store, config Config, logger *slog.Logger) *Archiver {
	if store == nil {
		store = flags.SharedStore()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Archiver{
		client:  client,
		store:   store,
		config:  config.withDefaults(),
		logger:  logger.With("bucket", config.Bucket),
		trigger: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Start subscribes to the store and begins archiving changes. Idempotent.
func (a *Archiver) Start() {
	if !a.started.CompareAndSwap(false, true) {
		return
	}

	a.dispose = a.store.Subscribe(func() {
		// Coalesce: one pending trigger is enough, the upload reads the
		// latest snapshot anyway.
		select {
		case a.trigger <- struct{}{}:
		default:
		}
	})

	a.wg.Add(1)
	go a.loop()

	a.logger.Info("archiver started", "prefix", a.config.Prefix, "debounce", a.config.Debounce)
}

// Stop detaches from the store and flushes any pending snapshot. Idempotent.
func (a *Archiver) Stop() {
	if !a.started.CompareAndSwap(true, false) {
		return
	}

	a.dispose()
	close(a.done)
	a.wg.Wait()
}

// loop debounces triggers and uploads snapshots.
func (a *Archiver) loop() {
	defer a.wg.Done()

	timer := time.NewTimer(a.config.Debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-a.trigger:
			if pending {
				if !timer.Stop() {
					<-timer.C
				}
			}
			timer.Reset(a.config.Debounce)
			pending = true

		case <-timer.C:
			pending = false
			a.upload(context.Background())

		case <-a.done:
			// A trigger racing with shutdown must still be flushed.
			select {
			case <-a.trigger:
				pending = true
			default:
			}
			if pending {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				a.upload(context.Background())
			}
			return
		}
	}
}

// upload persists the current snapshot unless this version was already
// archived.
func (a *Archiver) upload(ctx context.Context) {
	version := a.store.Version()
	if a.anyUploaded.Load() && version == a.lastUploaded.Load() {
		return
	}

	obj := archiveObject{
		Version:    version,
		ArchivedAt: time.Now().UTC(),
		Flags:      a.store.Snapshot(),
	}

	data, err := json.Marshal(obj)
	if err != nil {
		a.logger.Error("snapshot encode error", "error", err)
		return
	}

	key := a.key(version)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.config.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"flag-version": strconv.FormatUint(version, 10),
		},
	})
	if err != nil {
		a.logger.Error("snapshot upload failed", "key", key, "error", err)
		return
	}

	a.lastUploaded.Store(version)
	a.anyUploaded.Store(true)
	a.logger.Info("snapshot archived", "key", key, "version", version, "flags", len(obj.Flags))
}

// List returns the archived snapshots under the configured prefix, oldest
// first. The zero-padded version in the key makes lexical order equal
// version order.
func (a *Archiver) List(ctx context.Context) ([]Entry, error) {
	paginator := s3.NewListObjectsV2Paginator(a.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(a.config.Bucket),
		Prefix: aws.String(a.config.Prefix),
	})

	var entries []Entry
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list snapshots: %w", err)
		}

		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}

			entry := Entry{Key: *obj.Key}
			if v, ok := a.parseVersion(*obj.Key); ok {
				entry.Version = v
			}
			if obj.Size != nil {
				entry.Size = *obj.Size
			}
			if obj.LastModified != nil {
				entry.LastModified = *obj.LastModified
			}
			entries = append(entries, entry)
		}
	}

	return entries, nil
}

// Prune deletes archived snapshots older than maxAge.
func (a *Archiver) Prune(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)

	entries, err := a.List(ctx)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, e := range entries {
		if e.LastModified.IsZero() || !e.LastModified.Before(cutoff) {
			continue
		}

		_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(a.config.Bucket),
			Key:    aws.String(e.Key),
		})
		if err != nil {
			return deleted, fmt.Errorf("delete %s: %w", e.Key, err)
		}
		deleted++
	}

	if deleted > 0 {
		a.logger.Info("snapshots pruned", "deleted", deleted, "max_age", maxAge)
	}
	return deleted, nil
}

// key builds the object key for a store version. Zero padding keeps
// lexical and numeric order aligned.
func (a *Archiver) key(version uint64) string {
	return fmt.Sprintf("%s%012d.json", a.config.Prefix, version)
}

// parseVersion extracts the version from a snapshot key.
func (a *Archiver) parseVersion(key string) (uint64, bool) {
	name := strings.TrimPrefix(key, a.config.Prefix)
	name = strings.TrimSuffix(name, ".json")
	v, err := strconv.ParseUint(name, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
