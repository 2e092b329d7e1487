package rpc

import (
	"context"
	"fmt"

	"github.com/danielpatrickdp/cell-controller/internal/controller"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region client-struct
// Client is the host side of the Participant service.
type Client struct {
	conn *grpc.ClientConn
	cc   grpc.ClientConnInterface
}

// #endregion client-struct

// #region constructor
// Dial connects to a participant at addr.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn, cc: conn}, nil
}

// NewClient wraps an existing connection. Close is then the caller's job.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// #endregion constructor

// #region close
// Close shuts down a connection opened by Dial.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion close

// #region calls
func (c *Client) invoke(ctx context.Context, method string, req map[string]any) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", method, err)
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod(method), in, out); err != nil {
		return nil, fmt.Errorf("%s rpc: %w", method, err)
	}
	return out, nil
}

// Deliver reports an energy delivery at atMs.
func (c *Client) Deliver(ctx context.Context, atMs int64) (DeliverReply, error) {
	out, err := c.invoke(ctx, "Deliver", map[string]any{"at_ms": atMs})
	if err != nil {
		return DeliverReply{}, err
	}
	var reply DeliverReply
	if err := fromStruct(out, &reply); err != nil {
		return DeliverReply{}, err
	}
	return reply, nil
}

// Threat reports a threat at atMs.
func (c *Client) Threat(ctx context.Context, atMs int64) (ThreatReply, error) {
	out, err := c.invoke(ctx, "Threat", map[string]any{"at_ms": atMs})
	if err != nil {
		return ThreatReply{}, err
	}
	var reply ThreatReply
	if err := fromStruct(out, &reply); err != nil {
		return ThreatReply{}, err
	}
	return reply, nil
}

// Produce requests one unit of kind at atMs.
func (c *Client) Produce(ctx context.Context, kind string, atMs int64) (ProduceReply, error) {
	out, err := c.invoke(ctx, "Produce", map[string]any{"resource": kind, "at_ms": atMs})
	if err != nil {
		return ProduceReply{}, err
	}
	var reply ProduceReply
	if err := fromStruct(out, &reply); err != nil {
		return ProduceReply{}, err
	}
	return reply, nil
}

// AvailableCells returns the participant's charged cell count.
func (c *Client) AvailableCells(ctx context.Context) (int, error) {
	out, err := c.invoke(ctx, "AvailableCells", map[string]any{})
	if err != nil {
		return 0, err
	}
	return int(out.GetFields()["charged"].GetNumberValue()), nil
}

// SupportedResources lists what the participant can produce.
func (c *Client) SupportedResources(ctx context.Context) ([]string, error) {
	out, err := c.invoke(ctx, "SupportedResources", map[string]any{})
	if err != nil {
		return nil, err
	}
	var reply struct {
		Resources []string `json:"resources"`
	}
	if err := fromStruct(out, &reply); err != nil {
		return nil, err
	}
	return reply.Resources, nil
}

// SupportedCombinations lists the participant's combination rules.
func (c *Client) SupportedCombinations(ctx context.Context) ([]string, error) {
	out, err := c.invoke(ctx, "SupportedCombinations", map[string]any{})
	if err != nil {
		return nil, err
	}
	var reply struct {
		Combinations []string `json:"combinations"`
	}
	if err := fromStruct(out, &reply); err != nil {
		return nil, err
	}
	return reply.Combinations, nil
}

// Combine asks the participant to combine a and b.
func (c *Client) Combine(ctx context.Context, a, b string) error {
	_, err := c.invoke(ctx, "Combine", map[string]any{"a": a, "b": b})
	return err
}

// InternalState fetches the participant snapshot at atMs.
func (c *Client) InternalState(ctx context.Context, atMs int64) (controller.Snapshot, bool, error) {
	out, err := c.invoke(ctx, "InternalState", map[string]any{"at_ms": atMs})
	if err != nil {
		return controller.Snapshot{}, false, err
	}
	var reply struct {
		controller.Snapshot
		Destroyed bool `json:"destroyed"`
	}
	if err := fromStruct(out, &reply); err != nil {
		return controller.Snapshot{}, false, err
	}
	return reply.Snapshot, reply.Destroyed, nil
}

// #endregion calls
