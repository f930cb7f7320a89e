package grpcserver

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"droneDispatch/internal/airspace"
	"droneDispatch/internal/apperr"
	"droneDispatch/internal/config"
	"droneDispatch/internal/dronelink"
	"droneDispatch/internal/fleet"
	"droneDispatch/internal/metrics"
	"droneDispatch/internal/missions"
	"droneDispatch/internal/notify"
	"droneDispatch/internal/requests"
	"droneDispatch/internal/testutil"
	"droneDispatch/models"
	"droneDispatch/repository"
)

const testSecret = "test-secret"

var berlin = models.Point{Lat: 52.52, Lng: 13.40}

type harness struct {
	store   *repository.Store
	metrics *metrics.MetricsRegistry
	conn    *grpc.ClientConn
}

func newHarness(t *testing.T, rateLimit float64, burst int) *harness {
	t.Helper()
	log := zaptest.NewLogger(t)
	h := &harness{store: testutil.NewStore(t), metrics: metrics.NewMetricsRegistry()}

	sink := notify.NewStoreSink(h.store.Notifications)
	zones := airspace.New(h.store.Zones, h.store.Missions, log)
	link := dronelink.NewClient(time.Second, time.Minute, h.metrics, log)
	s := &Server{
		Store:    h.store,
		Requests: requests.New(h.store, sink, h.metrics, log),
		Missions: missions.New(h.store, link, sink, nil, h.metrics, log),
		Airspace: zones,
		Fleet:    fleet.NewLocator(h.store, zones, nil, h.metrics, log),
		Inbox:    notify.NewInbox(h.store.Notifications),
	}
	cfg := &config.Config{
		GRPC: config.GRPCConfig{RateLimit: rateLimit, RateBurst: burst},
		Auth: config.AuthConfig{JWTSecret: testSecret},
	}

	lis := bufconn.Listen(1 << 20)
	gs := NewGRPCServer(cfg, s, h.metrics, log)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	h.conn = conn
	return h
}

func as(t *testing.T, userID, role, providerID string) context.Context {
	t.Helper()
	tok := testutil.GenerateJWTHS256(t, testSecret, userID, role, providerID)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+tok)
}

func (h *harness) call(ctx context.Context, name string, args map[string]any) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(args)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := h.conn.Invoke(ctx, FullMethod(name), in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (h *harness) mustCall(t *testing.T, ctx context.Context, name string, args map[string]any) *structpb.Struct {
	t.Helper()
	out, err := h.call(ctx, name, args)
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	return out
}

func wantCode(t *testing.T, err error, want codes.Code) {
	t.Helper()
	if got := status.Code(err); got != want {
		t.Fatalf("code = %v, want %v (err=%v)", got, want, err)
	}
}

func createArgs(packageID string) map[string]any {
	return map[string]any{
		"packageId":        packageID,
		"contactInfo":      map[string]any{"recipientName": "Ada", "phoneNumber": "+100"},
		"startPoint":       map[string]any{"coordinates": map[string]any{"lat": 52.52, "lng": 13.40}, "city": "Berlin"},
		"destinationPoint": map[string]any{"coordinates": map[string]any{"lat": 52.50, "lng": 13.45}, "city": "Berlin"},
		"weight":           1.5,
		"payout":           12,
	}
}

func TestRequestFlowOverGRPC(t *testing.T) {
	h := newHarness(t, 0, 0)
	pkg := testutil.SeedPackage(t, h.store, "p1")
	consumer := as(t, "u1", "consumer", "")
	provider := as(t, "staff-1", "provider", "p1")

	created := h.mustCall(t, consumer, "CreateRequest", createArgs(pkg.ID))
	id := created.Fields["id"].GetStringValue()
	if id == "" || created.Fields["status"].GetStringValue() != "pending" {
		t.Fatalf("created = %v", created)
	}
	if created.Fields["providerId"].GetStringValue() != "p1" {
		t.Fatalf("provider = %v", created.Fields["providerId"])
	}

	accepted := h.mustCall(t, provider, "AcceptRequest", map[string]any{"requestId": id})
	if got := accepted.Fields["status"].GetStringValue(); got != "scheduled" {
		t.Fatalf("status after accept = %q", got)
	}

	_, err := h.call(provider, "RejectRequest", map[string]any{"requestId": id})
	wantCode(t, err, codes.FailedPrecondition)

	got := h.mustCall(t, consumer, "GetRequest", map[string]any{"requestId": id})
	if got.Fields["status"].GetStringValue() != "scheduled" {
		t.Fatalf("consumer view = %v", got)
	}

	list := h.mustCall(t, consumer, "ListRequests", map[string]any{"status": "scheduled", "fields": []any{"id", "status"}})
	if total := list.Fields["total"].GetNumberValue(); total != 1 {
		t.Fatalf("total = %v", total)
	}
	item := list.Fields["items"].GetListValue().Values[0].GetStructValue()
	if len(item.Fields) != 2 {
		t.Fatalf("projected item = %v", item)
	}

	inbox := h.mustCall(t, consumer, "ListNotifications", nil)
	if inbox.Fields["total"].GetNumberValue() != 1 {
		t.Fatalf("inbox = %v", inbox)
	}
	note := inbox.Fields["items"].GetListValue().Values[0].GetStructValue()
	h.mustCall(t, consumer, "ReadNotification", map[string]any{"notificationId": note.Fields["id"].GetStringValue()})

	dash := h.mustCall(t, provider, "ProviderDashboard", nil)
	if dash.Fields["pendingRequestCount"].GetNumberValue() != 0 {
		t.Fatalf("dashboard = %v", dash)
	}

	if v := promtest.ToFloat64(h.metrics.RPCRequestsTotal.WithLabelValues(FullMethod("AcceptRequest"), "OK")); v != 1 {
		t.Fatalf("rpc counter = %v", v)
	}
}

func TestAuthorization(t *testing.T) {
	h := newHarness(t, 0, 0)
	pkg := testutil.SeedPackage(t, h.store, "p1")
	req := testutil.SeedRequest(t, h.store, "u1", "p1", "pending")

	_, err := h.call(context.Background(), "GetRequest", map[string]any{"requestId": req.ID})
	wantCode(t, err, codes.Unauthenticated)

	_, err = h.call(as(t, "u1", "consumer", ""), "AcceptRequest", map[string]any{"requestId": req.ID})
	wantCode(t, err, codes.PermissionDenied)

	_, err = h.call(as(t, "staff-2", "provider", "p2"), "AcceptRequest", map[string]any{"requestId": req.ID})
	wantCode(t, err, codes.NotFound)

	_, err = h.call(as(t, "u2", "consumer", ""), "GetRequest", map[string]any{"requestId": req.ID})
	wantCode(t, err, codes.NotFound)

	_, err = h.call(as(t, "staff-1", "provider", "p1"), "CreateRequest", createArgs(pkg.ID))
	wantCode(t, err, codes.PermissionDenied)

	_, err = h.call(as(t, "u1", "consumer", ""), "CreateRequest", map[string]any{"packageId": pkg.ID, "weight": -1})
	wantCode(t, err, codes.InvalidArgument)
}

func TestHealthIsUnauthenticated(t *testing.T) {
	h := newHarness(t, 0, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := healthpb.NewHealthClient(h.conn).Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("status = %v", resp.GetStatus())
	}
}

func TestRateLimitPerPrincipal(t *testing.T) {
	h := newHarness(t, 0.001, 2)
	alice := as(t, "u1", "consumer", "")
	for i := 0; i < 2; i++ {
		h.mustCall(t, alice, "ListNotifications", nil)
	}
	_, err := h.call(alice, "ListNotifications", nil)
	wantCode(t, err, codes.ResourceExhausted)

	h.mustCall(t, as(t, "u2", "consumer", ""), "ListNotifications", nil)
}

func TestAirspaceAndFleetOverGRPC(t *testing.T) {
	h := newHarness(t, 0, 0)
	provider := as(t, "staff-1", "provider", "p1")
	drone := testutil.SeedDroneAt(t, h.store, "p1", berlin)

	zone := h.mustCall(t, provider, "CreateNoFlyZone", map[string]any{
		"circle":      map[string]any{"center": map[string]any{"lat": berlin.Lat, "lng": berlin.Lng}, "radius": 500},
		"description": "stadium",
		"isPermanent": true,
	})
	zoneID := zone.Fields["id"].GetStringValue()
	if zone.Fields["location"].GetStructValue().Fields["type"].GetStringValue() != "Polygon" {
		t.Fatalf("zone location = %v", zone.Fields["location"])
	}

	_, err := h.call(as(t, "u1", "consumer", ""), "CreateNoFlyZone", map[string]any{"description": "x"})
	wantCode(t, err, codes.PermissionDenied)

	found := h.mustCall(t, as(t, "u1", "consumer", ""), "SearchNoFlyZones", map[string]any{
		"geometry":  map[string]any{"type": "Point", "coordinates": []any{berlin.Lng, berlin.Lat}},
		"matchTime": true,
	})
	if found.Fields["total"].GetNumberValue() != 1 {
		t.Fatalf("search = %v", found)
	}

	update := h.mustCall(t, provider, "UpdateDroneLocation", map[string]any{
		"droneId":        drone.ID,
		"lat":            berlin.Lat,
		"lng":            berlin.Lng,
		"returnAirspace": true,
	})
	airspaceHits := update.Fields["airspace"].GetStructValue()
	if airspaceHits.Fields["total"].GetNumberValue() != 1 {
		t.Fatalf("airspace = %v", airspaceHits)
	}

	_, err = h.call(as(t, "staff-2", "provider", "p2"), "UpdateDroneLocation", map[string]any{"droneId": drone.ID, "lat": 1, "lng": 1})
	wantCode(t, err, codes.NotFound)

	positions := h.mustCall(t, provider, "GetDronePositions", map[string]any{"droneId": drone.ID})
	if positions.Fields["total"].GetNumberValue() != 1 {
		t.Fatalf("positions = %v", positions)
	}

	h.mustCall(t, provider, "RemoveNoFlyZone", map[string]any{"zoneId": zoneID})
	_, err = h.call(provider, "RemoveNoFlyZone", map[string]any{"zoneId": zoneID})
	wantCode(t, err, codes.NotFound)
}

func TestToStatus(t *testing.T) {
	cases := []struct {
		err  error
		want codes.Code
		msg  string
	}{
		{apperr.NotFound("mission %s not found", "m1"), codes.NotFound, "mission m1 not found"},
		{apperr.Validation("bad"), codes.InvalidArgument, "bad"},
		{apperr.NotPermitted("nope"), codes.PermissionDenied, "nope"},
		{apperr.Wrap(errors.New("disk on fire"), "save"), codes.Internal, "internal error"},
		{errors.New("plain"), codes.Internal, "internal error"},
		{status.Error(codes.ResourceExhausted, "slow down"), codes.ResourceExhausted, "slow down"},
	}
	for _, tc := range cases {
		st := status.Convert(toStatus(tc.err))
		if st.Code() != tc.want {
			t.Fatalf("%v: code = %v, want %v", tc.err, st.Code(), tc.want)
		}
		if tc.msg != "" && st.Message() != tc.msg {
			t.Fatalf("%v: message = %q, want %q", tc.err, st.Message(), tc.msg)
		}
	}
}

func TestEncodeWrapsNonObjects(t *testing.T) {
	out, err := encode([]string{"a", "b"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if n := len(out.Fields["result"].GetListValue().GetValues()); n != 2 {
		t.Fatalf("result = %v", out)
	}

	var dst struct {
		RequestID string `json:"requestId"`
	}
	in, _ := structpb.NewStruct(map[string]any{"requestId": "r1"})
	if err := decode(in, &dst); err != nil || dst.RequestID != "r1" {
		t.Fatalf("decode = %+v, %v", dst, err)
	}
	bad, _ := structpb.NewStruct(map[string]any{"requestId": 5})
	wantCode(t, decode(bad, &dst), codes.InvalidArgument)
}
