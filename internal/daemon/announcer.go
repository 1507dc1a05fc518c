package daemon

import (
	"context"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/lejeunerenard/file-assets/internal/config"
	"github.com/lejeunerenard/file-assets/internal/errors"
	"github.com/lejeunerenard/file-assets/internal/report"
)

// latestReportKey is the KV key holding the most recent export report.
const latestReportKey = "latest"

// Announcer publishes completed export reports on a NATS subject and keeps
// the latest report in a JetStream KV bucket for consumers that poll instead
// of subscribe.
type Announcer struct {
	conn    *nats.Conn
	js      jetstream.JetStream
	kv      jetstream.KeyValue
	subject string
	logger  *slog.Logger
}

// NewAnnouncer connects to NATS. The KV bucket is created when configured
// and missing.
func NewAnnouncer(cfg *config.NATSConfig, logger *slog.Logger) (*Announcer, error) {
	if cfg == nil {
		return nil, errors.DaemonError("nats configuration is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryDaemon, "failed to connect to nats").
			WithContext("url", cfg.URL)
	}

	a := &Announcer{
		conn:    conn,
		subject: cfg.Subject,
		logger:  logger,
	}

	if cfg.Bucket != "" {
		js, err := jetstream.New(conn)
		if err != nil {
			conn.Close()
			return nil, errors.WrapError(err, errors.CategoryDaemon, "failed to create jetstream context")
		}
		a.js = js
		if err := a.initBucket(cfg.Bucket); err != nil {
			conn.Close()
			return nil, err
		}
	}

	logger.Info("nats announcer connected",
		slog.String("url", cfg.URL),
		slog.String("subject", cfg.Subject),
		slog.String("bucket", cfg.Bucket))

	return a, nil
}

func (a *Announcer) initBucket(bucket string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	kv, err := a.js.KeyValue(ctx, bucket)
	if err == nil {
		a.kv = kv
		return nil
	}

	kv, err = a.js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "Latest file-assets export report",
		History:     1,
	})
	if err != nil {
		return errors.WrapError(err, errors.CategoryDaemon, "failed to create kv bucket").
			WithContext("bucket", bucket)
	}
	a.kv = kv
	a.logger.Info("created report kv bucket", slog.String("bucket", bucket))
	return nil
}

// PublishReport announces one completed export. The subject carries the full
// report JSON; the KV bucket, when configured, is updated to the same
// payload.
func (a *Announcer) PublishReport(rep *report.Report) error {
	if rep == nil {
		return errors.DaemonError("cannot publish a nil report")
	}

	data, err := rep.ToJSON()
	if err != nil {
		return err
	}

	if err := a.conn.Publish(a.subject, data); err != nil {
		return errors.WrapError(err, errors.CategoryDaemon, "failed to publish export report").
			WithContext("subject", a.subject)
	}

	if a.kv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := a.kv.Put(ctx, latestReportKey, data); err != nil {
			return errors.WrapError(err, errors.CategoryDaemon, "failed to store latest report").
				WithContext("key", latestReportKey)
		}
	}

	a.logger.Debug("export report published",
		slog.String("subject", a.subject),
		slog.String("export_id", rep.ID))

	return nil
}

// Close closes the NATS connection.
func (a *Announcer) Close() {
	if a.conn != nil {
		a.conn.Close()
	}
}
