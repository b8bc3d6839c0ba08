package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/sileme/sileme-backend/internal/domain"
	"github.com/sileme/sileme-backend/internal/usecase/will"
)

// Server implements the WillService gRPC server
type Server struct {
	Machine *will.Machine
}

// NewServer creates a new gRPC server instance
func NewServer(machine *will.Machine) *Server {
	return &Server{Machine: machine}
}

// EstablishIdentity handles the EstablishIdentity RPC
func (s *Server) EstablishIdentity(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := s.Machine.EstablishIdentity(ctx, stringField(req, "handle"), stringField(req, "locale"))
	if err != nil {
		return nil, mapError(err)
	}
	return respond(map[string]any{"identity": identityToMap(id)})
}

// LinkWallet handles the LinkWallet RPC
func (s *Server) LinkWallet(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	wallet, err := s.Machine.LinkWallet(ctx, stringField(req, "address"))
	if err != nil {
		return nil, mapError(err)
	}
	return respond(map[string]any{"wallet": walletToMap(wallet)})
}

// InterpretManifesto handles the InterpretManifesto RPC
func (s *Server) InterpretManifesto(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	list, err := s.Machine.InterpretManifesto(ctx, stringField(req, "manifesto"))
	if err != nil {
		return nil, mapError(err)
	}
	return respond(map[string]any{"beneficiaries": beneficiariesToList(list)})
}

// SetBeneficiaries handles the SetBeneficiaries RPC
func (s *Server) SetBeneficiaries(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	list, err := beneficiariesFromStruct(req)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid beneficiaries: %v", err)
	}
	if err := s.Machine.SetBeneficiaries(ctx, list); err != nil {
		return nil, mapError(err)
	}
	return respond(map[string]any{"beneficiaries": beneficiariesToList(list)})
}

// SealWill handles the SealWill RPC
func (s *Server) SealWill(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	pending, err := s.Machine.SealWill(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return respond(map[string]any{"pendingWill": pendingWillToMap(pending)})
}

// CancelWill handles the CancelWill RPC
func (s *Server) CancelWill(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	cancelled, err := s.Machine.CancelWill(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return respond(map[string]any{"pendingWill": pendingWillToMap(cancelled)})
}

// AcknowledgeCompletion handles the AcknowledgeCompletion RPC
func (s *Server) AcknowledgeCompletion(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if err := s.Machine.AcknowledgeCompletion(ctx); err != nil {
		return nil, mapError(err)
	}
	return s.status()
}

// Heartbeat handles the Heartbeat RPC
func (s *Server) Heartbeat(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if err := s.Machine.Heartbeat(ctx); err != nil {
		return nil, mapError(err)
	}
	return s.status()
}

// CheckInactivity handles the CheckInactivity RPC
func (s *Server) CheckInactivity(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	tripped := s.Machine.CheckInactivity(ctx)
	return respond(map[string]any{
		"triggered": tripped,
		"status":    string(s.Machine.Status()),
	})
}

// ForceTrigger handles the ForceTrigger RPC
func (s *Server) ForceTrigger(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if err := s.Machine.ForceTrigger(ctx); err != nil {
		return nil, mapError(err)
	}
	return s.status()
}

// PreparePlan handles the PreparePlan RPC
// An invalid plan is reported as FailedPrecondition carrying its reason.
func (s *Server) PreparePlan(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	plan, err := s.Machine.PreparePlan(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return respond(map[string]any{"plan": planToMap(plan)})
}

// ConfirmExecution handles the ConfirmExecution RPC
func (s *Server) ConfirmExecution(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	result, err := s.Machine.ConfirmExecution(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return respond(map[string]any{"result": resultToMap(result)})
}

// CancelPlan handles the CancelPlan RPC
func (s *Server) CancelPlan(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if err := s.Machine.CancelPlan(ctx); err != nil {
		return nil, mapError(err)
	}
	return s.status()
}

// ScanSentinel handles the ScanSentinel RPC
func (s *Server) ScanSentinel(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	report, err := s.Machine.ScanSentinel(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return respond(map[string]any{"sentinel": reportToMap(report)})
}

// GetStatus handles the GetStatus RPC
func (s *Server) GetStatus(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return s.status()
}

// ListHistory handles the ListHistory RPC
func (s *Server) ListHistory(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	records, err := s.Machine.History(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return respond(map[string]any{"records": recordsToList(records)})
}

// ListEvents handles the ListEvents RPC
func (s *Server) ListEvents(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	events, err := s.Machine.Events(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return respond(map[string]any{"events": eventsToList(events)})
}

func (s *Server) status() (*structpb.Struct, error) {
	return respond(snapshotToMap(s.Machine.Snapshot()))
}

func respond(fields map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

// preconditionErrs are validation failures caused by the protocol state rather than the input
var preconditionErrs = []error{
	domain.ErrInvalidTransition,
	domain.ErrHeartbeatRejected,
	domain.ErrNoPendingWill,
	domain.ErrNoValidPlan,
	domain.ErrExecutionInFlight,
	domain.ErrAlreadyTriggered,
	domain.ErrNoFundedWallet,
	domain.ErrZeroBalance,
}

// mapError converts domain errors to gRPC status errors
func mapError(err error) error {
	if err == nil {
		return nil
	}

	for _, target := range preconditionErrs {
		if errors.Is(err, target) {
			return status.Error(codes.FailedPrecondition, err.Error())
		}
	}

	switch {
	case domain.IsValidation(err):
		return status.Error(codes.InvalidArgument, err.Error())
	case domain.IsPrecondition(err):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	// Default to Internal error for unknown errors
	return status.Error(codes.Internal, err.Error())
}

// Compile-time interface check.
var _ WillServiceServer = (*Server)(nil)
