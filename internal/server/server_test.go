// Integration tests for the confsnap gRPC service
package server

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/nainya/confsnap/internal/logger"
	"github.com/nainya/confsnap/internal/metrics"
	"github.com/nainya/confsnap/pkg/backup"
	"github.com/nainya/confsnap/pkg/fetcher"
	"github.com/nainya/confsnap/pkg/inventory"
	"github.com/nainya/confsnap/pkg/snapshot"
	"github.com/nainya/confsnap/pkg/snapshot/storetest"
)

const bufSize = 1024 * 1024

type testEnv struct {
	client  *Client
	store   *snapshot.MemStore
	clock   *storetest.ManualClock
	sim     *fetcher.Simulated
	metrics *metrics.Metrics
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()

	clock := storetest.NewManualClock(storetest.Epoch)
	store := snapshot.NewMemStore(clock)
	sim := fetcher.DefaultSimulated()
	m := metrics.New(prometheus.NewRegistry())
	log := logger.Nop()

	session := backup.NewSession(store, sim, backup.Options{Logger: log, Metrics: m})
	srv := NewServer(store, session, inventory.Default(), log)

	lis := bufconn.Listen(bufSize)
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(GrpcMetricsInterceptor(m, log)))
	RegisterSnapshotServiceServer(grpcServer, srv)

	go func() {
		// Serve returns once the listener closes during cleanup
		_ = grpcServer.Serve(lis)
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) {
			return lis.Dial()
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("Failed to dial bufnet: %v", err)
	}

	t.Cleanup(func() {
		conn.Close()
		grpcServer.Stop()
		lis.Close()
	})

	return &testEnv{client: NewClient(conn), store: store, clock: clock, sim: sim, metrics: m}
}

func TestRunBackupAndCompare(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	first, err := env.client.RunBackup(ctx, nil)
	require.NoError(t, err)

	results := first.GetFields()["results"].GetListValue().GetValues()
	require.Len(t, results, 3)
	for i, host := range []string{"Switch1", "Router1", "Firewall1"} {
		r := results[i].GetStructValue().GetFields()
		assert.Equal(t, host, r["device"].GetStringValue())
		assert.Equal(t, "insufficient_history", r["status"].GetStringValue())
		assert.Equal(t, host+"_2024-03-09_14-05-07", r["saved"].GetStringValue())
	}

	env.clock.Advance(time.Minute)
	env.sim.Set("Switch1", "\nhostname Switch1\ninterface Fa0/1\n switchport mode access\n switchport access vlan 20\n!\n")

	second, err := env.client.RunBackup(ctx, []string{"Switch1"})
	require.NoError(t, err)
	results = second.GetFields()["results"].GetListValue().GetValues()
	require.Len(t, results, 1)
	assert.Equal(t, "changed", results[0].GetStructValue().GetFields()["status"].GetStringValue())

	cmp, err := env.client.CompareLatest(ctx, "Switch1")
	require.NoError(t, err)
	f := cmp.GetFields()
	assert.Equal(t, "changed", f["status"].GetStringValue())
	assert.Equal(t, "Switch1_2024-03-09_14-05-07", f["base"].GetStringValue())
	assert.Equal(t, "Switch1_2024-03-09_14-06-07", f["target"].GetStringValue())
	assert.Equal(t, 1.0, f["inserted"].GetNumberValue())
	assert.Equal(t, 1.0, f["deleted"].GetNumberValue())
	assert.Contains(t, f["unified"].GetStringValue(), "+ switchport access vlan 20")

	assert.Equal(t, 2.0, testutil.ToFloat64(env.metrics.GrpcRequestsTotal.WithLabelValues(RunBackupMethod, "OK")))
}

func TestCompareLatestInsufficientHistory(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	_, err := env.store.Save(ctx, "Router1", "hostname Router1\n")
	require.NoError(t, err)

	cmp, err := env.client.CompareLatest(ctx, "Router1")
	require.NoError(t, err)
	assert.Equal(t, "insufficient_history", cmp.GetFields()["status"].GetStringValue())
}

func TestListAndGetSnapshot(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	_, err := env.store.Save(ctx, "Switch1", "rev 1\n")
	require.NoError(t, err)
	_, err = env.store.Save(ctx, "Switch1", "rev 2\n")
	require.NoError(t, err)

	list, err := env.client.ListSnapshots(ctx, "Switch1")
	require.NoError(t, err)
	snaps := list.GetFields()["snapshots"].GetListValue().GetValues()
	require.Len(t, snaps, 2)

	second := snaps[1].GetStructValue().GetFields()
	assert.Equal(t, "Switch1_2024-03-09_14-05-07_0001", second["key"].GetStringValue())
	assert.Equal(t, 1.0, second["seq"].GetNumberValue())
	assert.Equal(t, "2024-03-09T14:05:07Z", second["captured_at"].GetStringValue())

	got, err := env.client.GetSnapshot(ctx, "Switch1", second["key"].GetStringValue())
	require.NoError(t, err)
	assert.Equal(t, "rev 2\n", got.GetFields()["config"].GetStringValue())

	empty, err := env.client.ListSnapshots(ctx, "Core9")
	require.NoError(t, err)
	assert.Empty(t, empty.GetFields()["snapshots"].GetListValue().GetValues())
}

func TestErrorCodes(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	_, err := env.client.GetSnapshot(ctx, "Switch1", "Switch1_2024-03-09_14-05-07")
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = env.client.GetSnapshot(ctx, "Switch1", "not-a-key")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = env.client.ListSnapshots(ctx, "")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = env.client.CompareLatest(ctx, "../etc")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = env.client.RunBackup(ctx, []string{"Core9"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestToStatus(t *testing.T) {
	assert.Equal(t, codes.NotFound, status.Code(toStatus(&snapshot.NotFoundError{})))
	assert.Equal(t, codes.DeadlineExceeded, status.Code(toStatus(context.DeadlineExceeded)))
	assert.Equal(t, codes.Internal, status.Code(toStatus(errors.New("boom"))))
}

func TestObservabilityHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.RecordDeviceResult("changed")

	notReady := errors.New("store unreachable")
	var ready atomic.Bool
	srv := httptest.NewServer(ObservabilityHandler(reg, func(context.Context) error {
		if !ready.Load() {
			return notReady
		}
		return nil
	}))
	defer srv.Close()

	get := func(path string) (int, string) {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(body)
	}

	code, body := get("/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, strings.Contains(body, `confsnap_device_results_total{status="changed"} 1`), body)

	code, body = get("/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"healthy"`)

	code, body = get("/ready")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body, "store unreachable")

	ready.Store(true)
	code, _ = get("/ready")
	assert.Equal(t, http.StatusOK, code)
}
