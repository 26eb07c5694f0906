// Package server implements the gRPC confsnap snapshot service
package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/nainya/confsnap/internal/logger"
	"github.com/nainya/confsnap/pkg/backup"
	"github.com/nainya/confsnap/pkg/changes"
	"github.com/nainya/confsnap/pkg/inventory"
	"github.com/nainya/confsnap/pkg/snapshot"
)

// Server implements the SnapshotServiceServer interface
type Server struct {
	store     snapshot.Reader
	detector  *changes.Detector
	session   *backup.Session
	inventory *inventory.Inventory
	log       *logger.Logger

	startTime time.Time
}

var _ SnapshotServiceServer = (*Server)(nil)

// NewServer creates a service reading from store and running backups
// through session over inv
func NewServer(store snapshot.Reader, session *backup.Session, inv *inventory.Inventory, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		store:     store,
		detector:  changes.NewDetector(store),
		session:   session,
		inventory: inv,
		log:       log,
		startTime: time.Now(),
	}
}

// Uptime reports how long the server has been running
func (s *Server) Uptime() time.Duration {
	return time.Since(s.startTime)
}

// ========== Snapshot Operations ==========

func (s *Server) ListSnapshots(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	deviceID := req.GetValue()
	refs, err := s.store.List(ctx, deviceID)
	if err != nil {
		return nil, toStatus(err)
	}

	items := make([]interface{}, len(refs))
	for i, ref := range refs {
		items[i] = refFields(ref)
	}

	return newStruct(map[string]interface{}{
		"device":    deviceID,
		"snapshots": items,
	})
}

func (s *Server) GetSnapshot(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	deviceID := stringField(req, "device")
	key := stringField(req, "key")
	if deviceID == "" || key == "" {
		return nil, status.Error(codes.InvalidArgument, "device and key are required")
	}
	if err := snapshot.ValidateDeviceID(deviceID); err != nil {
		return nil, toStatus(err)
	}

	ref, err := snapshot.ParseKey(deviceID, key)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid key: %v", err)
	}

	config, err := s.store.Load(ctx, ref)
	if err != nil {
		return nil, toStatus(err)
	}

	fields := refFields(ref)
	fields["device"] = deviceID
	fields["config"] = config
	return newStruct(fields)
}

func (s *Server) CompareLatest(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	deviceID := req.GetValue()
	if err := snapshot.ValidateDeviceID(deviceID); err != nil {
		return nil, toStatus(err)
	}

	res, err := s.detector.CompareLatest(ctx, deviceID)
	if errors.Is(err, changes.ErrInsufficientHistory) {
		return newStruct(map[string]interface{}{
			"device": deviceID,
			"status": string(backup.StatusInsufficientHistory),
		})
	}
	if err != nil {
		return nil, toStatus(err)
	}

	fields, err := diffFields(res)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "render diff: %v", err)
	}
	return newStruct(fields)
}

// ========== Backup Operations ==========

func (s *Server) RunBackup(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.session == nil || s.inventory == nil {
		return nil, status.Error(codes.Unimplemented, "backups are not enabled on this server")
	}

	var hostnames []string
	if v, ok := req.GetFields()["devices"]; ok {
		for _, item := range v.GetListValue().GetValues() {
			hostnames = append(hostnames, item.GetStringValue())
		}
	}

	inv, err := s.inventory.Filter(hostnames...)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	results := s.session.Run(ctx, inv.Devices)

	items := make([]interface{}, len(results))
	for i, r := range results {
		item, err := resultFields(r)
		if err != nil {
			return nil, status.Errorf(codes.Internal, "render result for %s: %v", r.DeviceID, err)
		}
		items[i] = item
	}

	return newStruct(map[string]interface{}{"results": items})
}

// ========== Conversions ==========

func refFields(ref snapshot.Ref) map[string]interface{} {
	return map[string]interface{}{
		"key":         ref.Key(),
		"captured_at": ref.CapturedAt.UTC().Format(time.RFC3339),
		"seq":         ref.Seq,
	}
}

func diffFields(res *changes.Result) (map[string]interface{}, error) {
	unified, err := res.Unified(changes.DefaultContext)
	if err != nil {
		return nil, err
	}

	st := res.Stats()
	state := backup.StatusNoChange
	if res.Changed() {
		state = backup.StatusChanged
	}

	return map[string]interface{}{
		"device":   res.DeviceID,
		"status":   string(state),
		"base":     res.Base.Key(),
		"target":   res.Target.Key(),
		"inserted": st.Inserted,
		"deleted":  st.Deleted,
		"equal":    st.Equal,
		"unified":  unified,
	}, nil
}

func resultFields(r backup.Result) (map[string]interface{}, error) {
	fields := map[string]interface{}{
		"device":      r.DeviceID,
		"status":      string(r.Status),
		"duration_ms": r.Duration.Milliseconds(),
	}
	if r.Saved != nil {
		fields["saved"] = r.Saved.Key()
	}
	if r.Err != nil {
		fields["error"] = r.Err.Error()
	}
	if r.Diff != nil {
		diff, err := diffFields(r.Diff)
		if err != nil {
			return nil, err
		}
		fields["diff"] = diff
	}
	return fields, nil
}

func newStruct(fields map[string]interface{}) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

func stringField(s *structpb.Struct, name string) string {
	return s.GetFields()[name].GetStringValue()
}

// toStatus maps domain errors onto gRPC codes
func toStatus(err error) error {
	switch {
	case errors.Is(err, snapshot.ErrInvalidDevice):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, snapshot.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, fmt.Sprintf("internal error: %v", err))
	}
}
