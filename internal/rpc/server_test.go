package rpc

import (
	"context"
	"net"
	"testing"

	"github.com/danielpatrickdp/cell-controller/internal/controller"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

// #region harness
func startServer(t *testing.T) (*Client, *Server) {
	t.Helper()
	ctrl, err := controller.New(controller.DefaultConfig(), nil, nil)
	if err != nil {
		t.Fatalf("controller.New: %v", err)
	}
	srv := NewServer(ctrl, nil)

	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer()
	RegisterParticipantServer(gs, srv)
	go gs.Serve(lis)
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewClient(conn), srv
}

// #endregion harness

// #region tests
func TestDeliverAndProduce(t *testing.T) {
	client, _ := startServer(t)
	ctx := context.Background()

	first, err := client.Deliver(ctx, 1000)
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if !first.Charged || first.CellIndex != 0 || !first.RocketBuilt || first.Mode != "conservative" {
		t.Fatalf("unexpected first delivery %+v", first)
	}
	for at := int64(2000); at <= 5000; at += 1000 {
		if _, err := client.Deliver(ctx, at); err != nil {
			t.Fatalf("Deliver: %v", err)
		}
	}

	charged, err := client.AvailableCells(ctx)
	if err != nil {
		t.Fatalf("AvailableCells: %v", err)
	}
	if charged != 4 {
		t.Fatalf("expected 4 charged, got %d", charged)
	}

	res, err := client.Produce(ctx, "carbon", 5100)
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if res.Resource != "carbon" || res.ID == "" || res.ProducedAtMs != 5100 {
		t.Fatalf("unexpected produce reply %+v", res)
	}

	_, err = client.Produce(ctx, "carbon", 5200)
	if status.Code(err) != codes.ResourceExhausted {
		t.Fatalf("expected ResourceExhausted at the reserve, got %v", err)
	}
}

func TestErrorCodes(t *testing.T) {
	client, _ := startServer(t)
	ctx := context.Background()

	if _, err := client.Produce(ctx, "oxygen", 100); status.Code(err) != codes.Unimplemented {
		t.Errorf("unsupported resource: expected Unimplemented, got %v", err)
	}
	if _, err := client.Produce(ctx, "plutonium", 100); status.Code(err) != codes.InvalidArgument {
		t.Errorf("unknown resource: expected InvalidArgument, got %v", err)
	}
	if err := client.Combine(ctx, "carbon", "oxygen"); status.Code(err) != codes.Unimplemented {
		t.Errorf("combine: expected Unimplemented, got %v", err)
	}
	if _, err := client.Produce(ctx, "carbon", 100); status.Code(err) != codes.ResourceExhausted {
		t.Errorf("no charge: expected ResourceExhausted, got %v", err)
	}
}

func TestCatalogue(t *testing.T) {
	client, _ := startServer(t)
	ctx := context.Background()

	resources, err := client.SupportedResources(ctx)
	if err != nil {
		t.Fatalf("SupportedResources: %v", err)
	}
	if len(resources) != 1 || resources[0] != "carbon" {
		t.Fatalf("expected [carbon], got %v", resources)
	}

	combos, err := client.SupportedCombinations(ctx)
	if err != nil {
		t.Fatalf("SupportedCombinations: %v", err)
	}
	if len(combos) != 0 {
		t.Fatalf("expected no combinations, got %v", combos)
	}
}

func TestDestroyedRejectsCalls(t *testing.T) {
	client, _ := startServer(t)
	ctx := context.Background()

	reply, err := client.Threat(ctx, 100)
	if err != nil {
		t.Fatalf("Threat: %v", err)
	}
	if reply.Outcome != "destroyed" {
		t.Fatalf("expected destroyed, got %s", reply.Outcome)
	}

	if _, err := client.Deliver(ctx, 200); status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("expected FailedPrecondition after destruction, got %v", err)
	}

	snap, destroyed, err := client.InternalState(ctx, 300)
	if err != nil {
		t.Fatalf("InternalState: %v", err)
	}
	if !destroyed || snap.Counters.Threats != 1 || snap.AtMs != 300 {
		t.Fatalf("unexpected state %+v destroyed=%v", snap, destroyed)
	}
}

func TestInternalStateSnapshot(t *testing.T) {
	client, _ := startServer(t)
	ctx := context.Background()

	client.Deliver(ctx, 1000)
	client.Deliver(ctx, 2000)
	threat, err := client.Threat(ctx, 2500)
	if err != nil {
		t.Fatalf("Threat: %v", err)
	}
	if threat.Outcome != "deflected" || !threat.RocketRebuilt {
		t.Fatalf("unexpected threat reply %+v", threat)
	}

	snap, destroyed, err := client.InternalState(ctx, 3000)
	if err != nil {
		t.Fatalf("InternalState: %v", err)
	}
	if destroyed {
		t.Fatal("participant should be alive")
	}
	if snap.Mode != "conservative" || snap.Charged != 0 || !snap.Rocket || snap.Capacity != 5 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if len(snap.Cells) != 5 || snap.Delivery.SampleCount != 1 || snap.Reserve != 3 {
		t.Fatalf("unexpected snapshot detail %+v", snap)
	}
}

func TestMissingTimestampUsesClock(t *testing.T) {
	ctrl, err := controller.New(controller.DefaultConfig(), nil, nil)
	if err != nil {
		t.Fatalf("controller.New: %v", err)
	}
	srv := NewServer(ctrl, nil)
	srv.now = func() int64 { return 4242 }

	if _, err := srv.Deliver(context.Background(), nil); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if got := ctrl.Snapshot(0).Delivery.LastSeenMs; got != 4242 {
		t.Fatalf("expected clock timestamp 4242, got %d", got)
	}
}

func TestOutOfOrderTimestampRejected(t *testing.T) {
	client, srv := startServer(t)
	ctx := context.Background()

	if _, err := client.Deliver(ctx, 5000); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if _, err := client.Deliver(ctx, 1000); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument for an earlier delivery, got %v", err)
	}
	if _, err := client.Produce(ctx, "carbon", 4000); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument for a production before the last delivery, got %v", err)
	}

	// threats are tracked on their own clock
	if _, err := client.Threat(ctx, 3000); err != nil {
		t.Fatalf("Threat: %v", err)
	}
	if _, err := client.Threat(ctx, 2000); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument for an earlier threat, got %v", err)
	}

	snap := srv.ctrl.Snapshot(6000)
	if snap.Delivery.LastSeenMs != 5000 || snap.Delivery.SampleCount != 0 || snap.Delivery.EstimateMs < 0 {
		t.Fatalf("rejected delivery must not reach the controller, got %+v", snap.Delivery)
	}
	if snap.Threat.LastSeenMs != 3000 || snap.Counters.Deliveries != 1 || snap.Counters.Threats != 1 {
		t.Fatalf("unexpected state after rejections %+v", snap)
	}
}

// #endregion tests
