package rpc

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/danielpatrickdp/cell-controller/internal/controller"
	"github.com/danielpatrickdp/cell-controller/internal/estimator"
	"github.com/danielpatrickdp/cell-controller/internal/resource"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region server
// Server serializes host calls into one controller. After a destroyed threat
// every call fails with FailedPrecondition.
type Server struct {
	mu        sync.Mutex
	ctrl      *controller.Controller
	destroyed bool
	logger    *slog.Logger
	now       func() int64
}

// NewServer wraps ctrl. Requests without "at_ms" are stamped with the wall
// clock in milliseconds. Timestamps earlier than the last accepted delivery
// or threat fail with InvalidArgument.
func NewServer(ctrl *controller.Controller, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		ctrl:   ctrl,
		logger: logger,
		now:    func() int64 { return time.Now().UnixMilli() },
	}
}

var _ ParticipantServer = (*Server)(nil)

// #endregion server

// #region handlers
func (s *Server) Deliver(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.alive(); err != nil {
		return nil, err
	}

	atMs, err := s.stamp(in, estimator.KindDelivery)
	if err != nil {
		return nil, err
	}
	res := s.ctrl.OnDelivery(atMs)
	return toStruct(DeliverReply{
		Charged:     res.Charged,
		CellIndex:   res.CellIndex,
		RocketBuilt: res.RocketBuilt,
		Mode:        string(s.ctrl.Mode()),
		ModeChanged: res.Transition.Changed,
	})
}

func (s *Server) Threat(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.alive(); err != nil {
		return nil, err
	}

	atMs, err := s.stamp(in, estimator.KindThreat)
	if err != nil {
		return nil, err
	}
	res := s.ctrl.OnThreat(atMs)
	if res.Outcome == controller.Destroyed {
		s.destroyed = true
		s.logger.Warn("participant destroyed, rejecting further calls")
	}
	return toStruct(ThreatReply{
		Outcome:       string(res.Outcome),
		RocketRebuilt: res.RocketRebuilt,
		Mode:          string(s.ctrl.Mode()),
	})
}

func (s *Server) Produce(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.alive(); err != nil {
		return nil, err
	}

	kind, err := resource.ParseKind(in.GetFields()["resource"].GetStringValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	atMs, err := s.stamp(in, estimator.Kinds...)
	if err != nil {
		return nil, err
	}
	res, err := s.ctrl.OnProductionRequest(kind, atMs)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(ProduceReply{
		ID:           res.ID,
		Resource:     string(res.Kind),
		CellIndex:    res.CellIndex,
		ProducedAtMs: res.ProducedAtMs,
	})
}

func (s *Server) AvailableCells(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.alive(); err != nil {
		return nil, err
	}
	return toStruct(map[string]int{"charged": s.ctrl.AvailableChargedCells()})
}

func (s *Server) SupportedResources(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.alive(); err != nil {
		return nil, err
	}
	return toStruct(map[string][]resource.Kind{"resources": s.ctrl.SupportedResources()})
}

func (s *Server) SupportedCombinations(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.alive(); err != nil {
		return nil, err
	}
	return toStruct(map[string][]string{"combinations": s.ctrl.SupportedCombinations()})
}

func (s *Server) Combine(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.alive(); err != nil {
		return nil, err
	}

	fields := in.GetFields()
	a := resource.Kind(fields["a"].GetStringValue())
	b := resource.Kind(fields["b"].GetStringValue())
	_, err := s.ctrl.Combine(a, b)
	return nil, toStatus(err)
}

// InternalState answers while destroyed too, so the host can inspect the wreck.
func (s *Server) InternalState(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return toStruct(struct {
		controller.Snapshot
		Destroyed bool `json:"destroyed"`
	}{s.ctrl.Snapshot(s.atMs(in)), s.destroyed})
}

// #endregion handlers

// #region helpers
func (s *Server) alive() error {
	if s.destroyed {
		return status.Error(codes.FailedPrecondition, "participant destroyed")
	}
	return nil
}

func (s *Server) atMs(in *structpb.Struct) int64 {
	if v, ok := in.GetFields()["at_ms"]; ok {
		return int64(v.GetNumberValue())
	}
	return s.now()
}

// stamp resolves the request timestamp and rejects it when it precedes the
// last accepted event of any of kinds.
func (s *Server) stamp(in *structpb.Struct, kinds ...estimator.Kind) (int64, error) {
	atMs := s.atMs(in)
	snap := s.ctrl.Snapshot(atMs)
	for _, kind := range kinds {
		est := snap.Delivery
		if kind == estimator.KindThreat {
			est = snap.Threat
		}
		if est.Seen && atMs < est.LastSeenMs {
			return 0, status.Errorf(codes.InvalidArgument,
				"at_ms %d precedes last %s at %d", atMs, kind, est.LastSeenMs)
		}
	}
	return atMs, nil
}

// toStatus maps controller errors onto gRPC codes.
func toStatus(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, controller.ErrInsufficientCharge):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, controller.ErrUnsupportedResource), errors.Is(err, controller.ErrNoCombinationRules):
		return status.Error(codes.Unimplemented, err.Error())
	case errors.Is(err, controller.ErrInvalidState):
		return status.Error(codes.Internal, err.Error())
	default:
		return status.Error(codes.Unknown, err.Error())
	}
}

// #endregion helpers
