package grpcserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/availability"
	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/booking"
	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/cache"
)

type Checker interface {
	CheckAvailability(ctx context.Context, localDate, localTime string, partySize int) (availability.Result, error)
}

type Lister interface {
	List(ctx context.Context, localDate string, partySize int) (cache.Listing, error)
}

type server struct {
	checker Checker
	lister  Lister
	logger  *slog.Logger
}

func Register(grpcServer *grpc.Server, checker Checker, lister Lister, logger *slog.Logger) {
	grpcServer.RegisterService(&ServiceDesc, &server{checker: checker, lister: lister, logger: logger})
}

func (s *server) CheckAvailability(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	date, err := stringField(in, "date")
	if err != nil {
		return nil, err
	}
	clock, err := stringField(in, "time")
	if err != nil {
		return nil, err
	}
	partySize, err := intField(in, "party_size")
	if err != nil {
		return nil, err
	}

	res, err := s.checker.CheckAvailability(ctx, date, clock, partySize)
	if err != nil {
		return nil, s.toStatus(err)
	}
	out := map[string]any{
		"available":      res.Available,
		"reason_code":    string(res.ReasonCode()),
		"reason_message": res.ReasonMessage(),
	}
	if res.Table != nil {
		out["table_id"] = res.Table.ID
		out["table_capacity"] = res.Table.Capacity
		out["start_time"] = res.Interval.Start.UTC().Format(time.RFC3339)
		out["end_time"] = res.Interval.End.UTC().Format(time.RFC3339)
	}
	return structpb.NewStruct(out)
}

func (s *server) ListAvailableSlots(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	date, err := stringField(in, "date")
	if err != nil {
		return nil, err
	}
	partySize, err := intField(in, "party_size")
	if err != nil {
		return nil, err
	}

	listing, err := s.lister.List(ctx, date, partySize)
	if err != nil {
		return nil, s.toStatus(err)
	}
	slots := make([]any, 0, len(listing.Slots))
	for _, sl := range listing.Slots {
		slots = append(slots, map[string]any{
			"start_time": sl.Start.UTC().Format(time.RFC3339),
			"end_time":   sl.End.UTC().Format(time.RFC3339),
			"table_id":   sl.TableID,
		})
	}
	return structpb.NewStruct(map[string]any{
		"date":           listing.Date,
		"party_size":     partySize,
		"slots":          slots,
		"reason_code":    listing.ReasonCode,
		"reason_message": listing.ReasonMessage,
	})
}

func (s *server) toStatus(err error) error {
	switch {
	case availability.IsValidation(err):
		return status.Error(codes.InvalidArgument, err.Error())
	case availability.IsConfiguration(err):
		s.logger.Error("calendar misconfigured", "err", err)
		return status.Error(codes.FailedPrecondition, "calendar not configured")
	case errors.Is(err, booking.ErrContended):
		return status.Error(codes.Aborted, err.Error())
	case availability.IsTransient(err):
		s.logger.Warn("availability store unavailable", "err", err)
		return status.Error(codes.Unavailable, "availability temporarily unavailable")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		s.logger.Error("grpc request failed", "err", err)
		return status.Error(codes.Internal, "internal error")
	}
}

func stringField(in *structpb.Struct, name string) (string, error) {
	v, ok := in.GetFields()[name]
	if !ok {
		return "", status.Errorf(codes.InvalidArgument, "%s is required", name)
	}
	sv, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", status.Errorf(codes.InvalidArgument, "%s must be a string", name)
	}
	return sv.StringValue, nil
}

func intField(in *structpb.Struct, name string) (int, error) {
	v, ok := in.GetFields()[name]
	if !ok {
		return 0, status.Errorf(codes.InvalidArgument, "%s is required", name)
	}
	nv, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok || nv.NumberValue != math.Trunc(nv.NumberValue) || math.Abs(nv.NumberValue) > math.MaxInt32 {
		return 0, status.Error(codes.InvalidArgument, fmt.Sprintf("%s must be an integer", name))
	}
	return int(nv.NumberValue), nil
}
