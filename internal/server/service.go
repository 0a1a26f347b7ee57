package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/doc-cleanser/constants"
	"github.com/joseph-ayodele/doc-cleanser/internal/common"
	"github.com/joseph-ayodele/doc-cleanser/internal/entity"
	"github.com/joseph-ayodele/doc-cleanser/internal/ingest"
)

// Runner processes a batch. async.BatchRunner satisfies it.
type Runner interface {
	Run(ctx context.Context, docs []entity.Document) entity.Report
}

// RunReader reads the session ledger.
type RunReader interface {
	GetRun(ctx context.Context, runID string) (entity.CleanseRun, []entity.CleanseJob, error)
}

type CleanserService struct {
	runner Runner
	runs   RunReader
	logger *slog.Logger
}

var _ CleanserServer = (*CleanserService)(nil)

// NewCleanserService wires the service. runs may be nil when no ledger is configured.
func NewCleanserService(runner Runner, runs RunReader, logger *slog.Logger) *CleanserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanserService{runner: runner, runs: runs, logger: logger}
}

// ProcessDocument takes {name, format, content_b64, client_name, client_logo_b64} and returns the
// document's report entry plus the run id it was recorded under.
func (s *CleanserService) ProcessDocument(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	name := strings.TrimSpace(stringField(in, "name"))
	raw := stringField(in, "content_b64")
	if raw == "" {
		return nil, common.InvalidArgumentError("content_b64 is required")
	}
	content, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, common.InvalidArgumentErrorf("content_b64: %v", err)
	}
	var logo []byte
	if rawLogo := stringField(in, "client_logo_b64"); rawLogo != "" {
		if logo, err = base64.StdEncoding.DecodeString(rawLogo); err != nil {
			return nil, common.InvalidArgumentErrorf("client_logo_b64: %v", err)
		}
	}
	format := constants.Format(constants.NormalizeExt(stringField(in, "format")))
	if f := constants.MapExtToFormat(string(format)); f != "" {
		format = f
	}

	doc, _ := ingest.NewDocument(name, format, content, stringField(in, "client_name"), logo)
	if doc.Name == "" {
		doc.Name = doc.ID
	}

	s.logger.Info("grpc.process_document", "document_id", doc.ID, "format", doc.Format, "bytes", len(content))
	rep := s.runner.Run(ctx, []entity.Document{doc})
	if len(rep.Entries) != 1 {
		return nil, common.InternalErrorf("expected 1 report entry, got %d", len(rep.Entries))
	}

	out, err := toMap(rep.Entries[0])
	if err != nil {
		return nil, common.InternalErrorf("encode entry: %v", err)
	}
	out["run_id"] = rep.RunID
	return toStruct(out)
}

// GetRun takes {run_id} and returns {run, jobs} from the session ledger.
func (s *CleanserService) GetRun(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.runs == nil {
		return nil, status.Error(codes.FailedPrecondition, "session ledger is not configured")
	}
	runID := strings.TrimSpace(stringField(in, "run_id"))
	if runID == "" {
		return nil, common.InvalidArgumentError("run_id is required")
	}
	run, jobs, err := s.runs.GetRun(ctx, runID)
	if err != nil {
		s.logger.Warn("grpc.get_run.failed", "run_id", runID, "error", err)
		return nil, common.ToStatus(err)
	}
	if jobs == nil {
		jobs = []entity.CleanseJob{}
	}
	out, err := toMap(map[string]any{"run": run, "jobs": jobs})
	if err != nil {
		return nil, common.InternalErrorf("encode run: %v", err)
	}
	return toStruct(out)
}

// NewGRPCServer builds a server with the cleanser, health and reflection services registered.
func NewGRPCServer(svc CleanserServer, logger *slog.Logger, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	if logger == nil {
		logger = slog.Default()
	}
	opts = append(opts, grpc.ChainUnaryInterceptor(loggingInterceptor(logger)))
	gs := grpc.NewServer(opts...)
	RegisterCleanserServer(gs, svc)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	reflection.Register(gs)
	return gs, hs
}

func loggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Info("grpc.request",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return resp, err
	}
}

func stringField(in *structpb.Struct, key string) string {
	return in.GetFields()[key].GetStringValue()
}

// toMap round-trips v through its JSON form so struct tags decide the field names.
func toMap(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func toStruct(m map[string]any) (*structpb.Struct, error) {
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	return st, nil
}
