// Package rpc exposes the booking API over gRPC. Messages are
// google.protobuf.Struct values carrying the same fields as the JSON API.
package rpc

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"rendezvous-api/internal/auth"
	"rendezvous-api/internal/middleware"
	"rendezvous-api/internal/model"
	"rendezvous-api/internal/service"
)

const ServiceName = "rendezvous.v1.RendezvousService"

// Full method names.
const (
	MethodRegister                     = "/" + ServiceName + "/Register"
	MethodLogin                        = "/" + ServiceName + "/Login"
	MethodCreateAppointment            = "/" + ServiceName + "/CreateAppointment"
	MethodListPatientAppointments      = "/" + ServiceName + "/ListPatientAppointments"
	MethodListPractitionerAppointments = "/" + ServiceName + "/ListPractitionerAppointments"
)

type AuthService interface {
	Register(ctx context.Context, name, email, password string) error
	Login(ctx context.Context, email, password string) (service.LoginResult, error)
}

type AppointmentService interface {
	Create(ctx context.Context, id auth.Identity, in service.CreateInput) (string, error)
	ListForPatient(ctx context.Context, id auth.Identity) ([]model.Appointment, error)
	ListForPractitioner(ctx context.Context, id auth.Identity) ([]model.Appointment, error)
}

// RendezvousServer is the service contract registered with grpc.
type RendezvousServer interface {
	Register(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Login(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	CreateAppointment(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	ListPatientAppointments(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	ListPractitionerAppointments(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

type Server struct {
	auth  AuthService
	appts AppointmentService
}

var _ RendezvousServer = (*Server)(nil)

func NewServer(a AuthService, appts AppointmentService) *Server {
	return &Server{auth: a, appts: appts}
}

// NewGRPCServer builds a grpc.Server with recovery, logging and bearer auth
// and registers s on it. Register and Login are reachable without a token.
func NewGRPCServer(s *Server, v middleware.Verifier, logger *slog.Logger, opts ...grpc.ServerOption) *grpc.Server {
	if logger == nil {
		logger = slog.Default()
	}
	opts = append(opts, grpc.ChainUnaryInterceptor(
		middleware.UnaryRecovery(),
		middleware.UnaryLogging(logger),
		middleware.UnaryAuth(v, MethodRegister, MethodLogin),
	))
	g := grpc.NewServer(opts...)
	RegisterRendezvousServer(g, s)
	return g
}

func RegisterRendezvousServer(r grpc.ServiceRegistrar, srv RendezvousServer) {
	r.RegisterService(&serviceDesc, srv)
}

func (s *Server) Register(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	err := s.auth.Register(ctx, field(in, "name"), field(in, "email"), field(in, "password"))
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(map[string]any{"message": service.MsgRegistered})
}

func (s *Server) Login(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	res, err := s.auth.Login(ctx, field(in, "email"), field(in, "password"))
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(map[string]any{
		"message": service.MsgLoggedIn,
		"token":   res.Token,
		"user": map[string]any{
			"name":  res.Name,
			"email": res.Email,
			"role":  string(res.Role),
		},
	})
}

func (s *Server) CreateAppointment(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := auth.IdentityFrom(ctx)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, service.MsgUnauthorized)
	}
	apptID, err := s.appts.Create(ctx, id, service.CreateInput{
		MedecinID: field(in, "medecinId"),
		Date:      field(in, "date"),
		Time:      field(in, "heure"),
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(map[string]any{"message": service.MsgBooked, "id": apptID})
}

func (s *Server) ListPatientAppointments(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return s.list(ctx, s.appts.ListForPatient)
}

func (s *Server) ListPractitionerAppointments(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return s.list(ctx, s.appts.ListForPractitioner)
}

func (s *Server) list(ctx context.Context, fetch func(context.Context, auth.Identity) ([]model.Appointment, error)) (*structpb.Struct, error) {
	id, err := auth.IdentityFrom(ctx)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, service.MsgUnauthorized)
	}
	appts, err := fetch(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	items := make([]any, 0, len(appts))
	for _, a := range appts {
		items = append(items, map[string]any{
			"id":        a.ID,
			"patientId": a.PatientID,
			"medecinId": a.PractitionerID,
			"date":      a.Date,
			"heure":     a.Time,
			"status":    string(a.Status),
		})
	}
	return reply(map[string]any{"appointments": items})
}

func field(in *structpb.Struct, name string) string {
	return in.GetFields()[name].GetStringValue()
}

func reply(m map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, service.MsgInternal)
	}
	return out, nil
}

// toStatus maps service error kinds to gRPC codes, keeping the caller-safe
// message only.
func toStatus(err error) error {
	switch service.KindOf(err) {
	case service.KindValidation:
		return status.Error(codes.InvalidArgument, service.MessageOf(err))
	case service.KindConflict:
		return status.Error(codes.AlreadyExists, service.MessageOf(err))
	case service.KindAuth:
		return status.Error(codes.Unauthenticated, service.MessageOf(err))
	default:
		slog.Error("rpc failed", slog.Any("error", err))
		return status.Error(codes.Internal, service.MsgInternal)
	}
}
