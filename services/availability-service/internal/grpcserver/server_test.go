package grpcserver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	_ "time/tzdata"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/md-rashed-zaman/tablekeeper/libs/grpcx"
	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/availability"
	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/cache"
	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/civil"
	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/memstore"
	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/model"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func startServer(t *testing.T, store *memstore.Store) *Client {
	t.Helper()
	cfg := availability.DefaultConfig()
	cfg.Zone = civil.MustLoadZone("America/New_York")
	svc, err := availability.NewService(cfg, store, store,
		availability.WithClock(fixedClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}),
		availability.WithLogger(quiet),
	)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := grpcx.NewServer(quiet)
	Register(srv, svc, cache.NewLister(svc, nil, quiet), quiet)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpcx.Dial(context.Background(), lis.Addr().String(), grpcx.DialOptions{Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return NewClient(conn)
}

func venue() *memstore.Store {
	store := memstore.New()
	store.SetHours(time.Thursday, civil.Range{Start: 18 * 60, End: 23 * 60})
	store.AddTables(model.Table{ID: "two", Capacity: 2}, model.Table{ID: "four", Capacity: 4})
	return store
}

func TestCheckAvailability(t *testing.T) {
	client := startServer(t, venue())

	out, err := client.CheckAvailability(context.Background(), "2026-03-05", "19:00", 4)
	if err != nil {
		t.Fatalf("CheckAvailability: %v", err)
	}
	fields := out.GetFields()
	if !fields["available"].GetBoolValue() {
		t.Fatalf("expected available, got %v", out)
	}
	if got := fields["table_id"].GetStringValue(); got != "four" {
		t.Fatalf("expected table four, got %q", got)
	}
	if got := fields["start_time"].GetStringValue(); got != "2026-03-06T00:00:00Z" {
		t.Fatalf("unexpected start_time %q", got)
	}

	out, err = client.CheckAvailability(context.Background(), "2026-03-05", "14:00", 2)
	if err != nil {
		t.Fatalf("CheckAvailability: %v", err)
	}
	if out.GetFields()["available"].GetBoolValue() || out.GetFields()["reason_code"].GetStringValue() != "outside_hours" {
		t.Fatalf("expected outside_hours, got %v", out)
	}
}

func TestListAvailableSlots(t *testing.T) {
	client := startServer(t, venue())

	out, err := client.ListAvailableSlots(context.Background(), "2026-03-05", 2)
	if err != nil {
		t.Fatalf("ListAvailableSlots: %v", err)
	}
	slots := out.GetFields()["slots"].GetListValue().GetValues()
	if len(slots) != 15 {
		t.Fatalf("expected 15 slots, got %d", len(slots))
	}
	first := slots[0].GetStructValue().GetFields()
	if first["start_time"].GetStringValue() != "2026-03-05T23:00:00Z" || first["table_id"].GetStringValue() != "two" {
		t.Fatalf("unexpected first slot %v", first)
	}

	out, err = client.ListAvailableSlots(context.Background(), "2026-03-04", 2)
	if err != nil {
		t.Fatalf("ListAvailableSlots: %v", err)
	}
	if out.GetFields()["reason_code"].GetStringValue() != "closed_weekday" {
		t.Fatalf("expected closed_weekday, got %v", out)
	}
}

func TestErrorCodes(t *testing.T) {
	tests := []struct {
		name  string
		store func() *memstore.Store
		date  string
		party int
		want  codes.Code
	}{
		{name: "bad date", store: venue, date: "2026-02-30", party: 2, want: codes.InvalidArgument},
		{name: "party too large", store: venue, date: "2026-03-05", party: 99, want: codes.InvalidArgument},
		{name: "not configured", store: memstore.New, date: "2026-03-05", party: 2, want: codes.FailedPrecondition},
		{name: "store down", store: func() *memstore.Store {
			s := venue()
			s.Fail = errors.New("connection refused")
			return s
		}, date: "2026-03-05", party: 2, want: codes.Unavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := startServer(t, tt.store())
			_, err := client.CheckAvailability(context.Background(), tt.date, "19:00", tt.party)
			if got := status.Code(err); got != tt.want {
				t.Fatalf("expected %s, got %s (%v)", tt.want, got, err)
			}
		})
	}
}

func TestMalformedRequest(t *testing.T) {
	client := startServer(t, venue())
	in, err := structpb.NewStruct(map[string]any{"date": "2026-03-05", "time": "19:00", "party_size": "four"})
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	err = client.cc.Invoke(context.Background(), methodCheckAvailability, in, new(structpb.Struct))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}
