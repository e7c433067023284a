package runner

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/threadpost/internal/config"
	"github.com/roach88/threadpost/internal/content"
	"github.com/roach88/threadpost/internal/logging"
	"github.com/roach88/threadpost/internal/metrics"
	"github.com/roach88/threadpost/internal/scheduler"
	"github.com/roach88/threadpost/internal/store"
	"github.com/roach88/threadpost/internal/testutil"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

type closingRepo struct {
	*testutil.MemoryRepository
	closed bool
}

func (r *closingRepo) Close() error {
	r.closed = true
	return nil
}

type fixture struct {
	repo      *closingRepo
	transport *testutil.RecordingTransport
	metrics   *metrics.Metrics
	logs      *bytes.Buffer
	opened    atomic.Int32
	gotKind   string
}

func newFixture(items ...content.Item) *fixture {
	return &fixture{
		repo:      &closingRepo{MemoryRepository: testutil.NewMemoryRepository(items...)},
		transport: testutil.NewRecordingTransport(),
		metrics:   metrics.New(),
		logs:      &bytes.Buffer{},
	}
}

func (f *fixture) options() Options {
	return Options{
		Logger: logging.New(logging.Options{Output: f.logs}),
		OpenRepository: func(ctx context.Context, cfg *config.Config) (Repository, error) {
			f.opened.Add(1)
			return f.repo, nil
		},
		NewTransport: func(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger) (scheduler.Transport, error) {
			f.gotKind = cfg.Transport.Kind
			return f.transport, nil
		},
		RunIDs:  testutil.NewFixedRunID("run-1"),
		Metrics: f.metrics,
		Clock:   testutil.NewClock(epoch).Now,
	}
}

func validConfig() *config.Config {
	cfg := config.Default()
	cfg.X.AccessToken = "tok"
	return cfg
}

func item(id string, parent string) content.Item {
	it := content.Item{ID: id, Title: id, Status: content.StatusScheduled, Body: "body " + id}
	if parent != "" {
		it.ParentID = ptr(parent)
	}
	return it
}

func TestRun_PublishesAndSummarises(t *testing.T) {
	f := newFixture(item("a", ""), item("b", "a"))

	summary, err := Run(context.Background(), validConfig(), epoch, f.options())
	require.NoError(t, err)

	assert.Equal(t, "run-1", summary.RunID)
	assert.Equal(t, 2, summary.Posted)
	assert.True(t, f.repo.closed)
	assert.Equal(t, config.TransportX, f.gotKind)
	assert.Equal(t, "ext-1", f.transport.Calls()[1].ReplyTo)

	assert.Equal(t, 2.0, prom.ToFloat64(f.metrics.Items.WithLabelValues("posted")))
	assert.Contains(t, f.logs.String(), `"run_id":"run-1"`)
	assert.Contains(t, f.logs.String(), "run complete")
}

func TestRun_ConfigErrorOpensNothing(t *testing.T) {
	f := newFixture(item("a", ""))
	cfg := config.Default()

	_, err := Run(context.Background(), cfg, epoch, f.options())
	require.Error(t, err)
	assert.True(t, config.IsConfigError(err))
	assert.Equal(t, int32(0), f.opened.Load())
	assert.Empty(t, f.transport.Calls())
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	f := newFixture(item("a", ""), item("b", "a"))
	opts := f.options()
	opts.DryRun = true

	// dry run needs no credentials
	summary, err := Run(context.Background(), config.Default(), epoch, opts)
	require.NoError(t, err)

	assert.Equal(t, config.TransportDryRun, f.gotKind)
	assert.Equal(t, 2, summary.Posted)
	assert.Empty(t, f.repo.Writes())
	a, _ := f.repo.Item("a")
	assert.Equal(t, content.StatusScheduled, a.Status)
	assert.Contains(t, f.logs.String(), "write-back skipped")
}

func TestRun_RepositoryOpenError(t *testing.T) {
	f := newFixture()
	opts := f.options()
	opts.OpenRepository = func(context.Context, *config.Config) (Repository, error) {
		return nil, errors.New("unable to open database file")
	}

	summary, err := Run(context.Background(), validConfig(), epoch, opts)
	require.Error(t, err)
	assert.False(t, config.IsConfigError(err))
	assert.Equal(t, "run-1", summary.RunID)
}

func TestRun_ListErrorIsRunLevel(t *testing.T) {
	f := newFixture()
	f.repo.ListErr = errors.New("no such table")

	_, err := Run(context.Background(), validConfig(), epoch, f.options())
	require.Error(t, err)
	assert.True(t, f.repo.closed)
	assert.Equal(t, 1.0, prom.ToFloat64(f.metrics.RunFailures))
}

func TestRun_PushesMetrics(t *testing.T) {
	var pushed atomic.Int32
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/metrics/job/threadpost") {
			pushed.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer gw.Close()

	f := newFixture(item("a", ""))
	cfg := validConfig()
	cfg.Metrics.PushgatewayURL = gw.URL

	_, err := Run(context.Background(), cfg, epoch, f.options())
	require.NoError(t, err)
	assert.Equal(t, int32(1), pushed.Load())
}

func TestRun_PushFailureDoesNotFailRun(t *testing.T) {
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer gw.Close()

	f := newFixture(item("a", ""))
	cfg := validConfig()
	cfg.Metrics.PushgatewayURL = gw.URL

	_, err := Run(context.Background(), cfg, epoch, f.options())
	require.NoError(t, err)
	assert.Contains(t, f.logs.String(), "metrics push failed")
}

func TestRun_SQLiteEndToEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.db")
	s, err := store.Open(path)
	require.NoError(t, err)
	ctx := context.Background()

	root, err := s.InsertItem(ctx, content.Item{Title: "Launch", Body: "We are live", Mentions: `["acme"]`})
	require.NoError(t, err)
	_, err = s.InsertItem(ctx, content.Item{Title: "Details", Body: "More", ParentID: &root.ID, ThreadPosition: ptr(1)})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	cfg := config.Default()
	cfg.Transport.Kind = config.TransportDryRun
	cfg.Database.Path = path

	summary, err := Run(ctx, cfg, time.Now(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Posted)

	s, err = store.Open(path)
	require.NoError(t, err)
	defer s.Close()

	posted, err := s.GetItem(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, content.StatusPosted, posted.Status)
	assert.True(t, strings.HasPrefix(posted.ExternalID, "dryrun-"))

	again, err := Run(ctx, cfg, time.Now(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, again.Due)
}

func TestOpenRepository_UnknownDriver(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Driver = "mysql"

	_, err := OpenRepository(context.Background(), cfg)
	require.Error(t, err)
}

func TestNewTransport_Kinds(t *testing.T) {
	cfg := validConfig()
	tr, err := NewTransport(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)
	assert.NotNil(t, tr)

	cfg.Transport.Kind = config.TransportDryRun
	tr, err = NewTransport(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)
	assert.NotNil(t, tr)

	cfg.Transport.Kind = "fax"
	_, err = NewTransport(context.Background(), cfg, logging.Discard())
	require.Error(t, err)
}
