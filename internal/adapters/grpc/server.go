package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/quorasec/iamcore/internal/application"
	"github.com/quorasec/iamcore/internal/domain"
	"github.com/quorasec/iamcore/internal/ports"
)

// IAMInternalService is the service-to-service surface: sibling services validate
// tokens and check permissions here instead of re-implementing either.
type IAMInternalService interface {
	ValidateToken(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CheckPermission(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetPublicKeys(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

type IAMInternalServer struct {
	service *application.Service
	signer  ports.TokenSigner
}

func NewIAMInternalServer(service *application.Service, signer ports.TokenSigner) *IAMInternalServer {
	return &IAMInternalServer{service: service, signer: signer}
}

func Register(server grpc.ServiceRegistrar, svc IAMInternalService) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: "quorasec.iam.v1.IAMInternalService",
		HandlerType: (*IAMInternalService)(nil),
		Methods: []grpc.MethodDesc{
			{
				MethodName: "ValidateToken",
				Handler:    structHandler(svc, "ValidateToken", IAMInternalService.ValidateToken),
			},
			{
				MethodName: "CheckPermission",
				Handler:    structHandler(svc, "CheckPermission", IAMInternalService.CheckPermission),
			},
			{
				MethodName: "GetPublicKeys",
				Handler:    getPublicKeysHandler(svc),
			},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "quorasec/iam/v1/iam_internal.proto",
	}, svc)
}

func stringField(req *structpb.Struct, name string) string {
	if v := req.GetFields()[name]; v != nil {
		return v.GetStringValue()
	}
	return ""
}

func (s *IAMInternalServer) ValidateToken(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	token := stringField(req, "token")
	if token == "" {
		return nil, status.Error(codes.InvalidArgument, "missing token")
	}

	result, err := s.service.ValidateToken(ctx, token)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}

	roles := make([]any, 0, len(result.Roles))
	for _, role := range result.Roles {
		roles = append(roles, role)
	}
	resp, err := structpb.NewStruct(map[string]any{
		"valid":        true,
		"principal_id": result.PrincipalID.String(),
		"username":     result.Username,
		"roles":        roles,
		"session_id":   result.SessionID.String(),
		"mfa_verified": result.MFAVerified,
		"expires_at":   result.ExpiresAt.Unix(),
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return resp, nil
}

func (s *IAMInternalServer) CheckPermission(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	token := stringField(req, "token")
	resource := stringField(req, "resource")
	action := stringField(req, "action")
	if token == "" || resource == "" || action == "" {
		return nil, status.Error(codes.InvalidArgument, "token, resource and action are required")
	}

	result, err := s.service.CheckPermission(ctx, token, application.PermissionCheckRequest{
		Resource: resource,
		Action:   action,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			return nil, status.Error(codes.InvalidArgument, err.Error())
		case errors.Is(err, domain.ErrUnauthorized),
			errors.Is(err, domain.ErrSessionExpired),
			errors.Is(err, domain.ErrSessionRevoked),
			errors.Is(err, domain.ErrSessionNotFound):
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		default:
			return nil, status.Error(codes.Internal, "permission check failed")
		}
	}

	resp, err := structpb.NewStruct(map[string]any{
		"allowed": result.Allowed,
		"reason":  result.Reason,
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return resp, nil
}

func (s *IAMInternalServer) GetPublicKeys(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	keys, err := s.signer.PublicJWKs()
	if err != nil {
		return nil, status.Errorf(codes.Internal, "get keys: %v", err)
	}
	jwks := make([]any, 0, len(keys))
	for _, key := range keys {
		entry := make(map[string]any, len(key))
		for k, v := range key {
			entry[k] = v
		}
		jwks = append(jwks, entry)
	}
	resp, err := structpb.NewStruct(map[string]any{"keys": jwks})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return resp, nil
}

func structHandler(svc IAMInternalService, method string, call func(IAMInternalService, context.Context, *structpb.Struct) (*structpb.Struct, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	fullMethod := "/quorasec.iam.v1.IAMInternalService/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := &structpb.Struct{}
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(svc, ctx, req)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			typed, ok := req.(*structpb.Struct)
			if !ok {
				return nil, status.Error(codes.InvalidArgument, "invalid request type")
			}
			return call(svc, ctx, typed)
		}
		return interceptor(ctx, req, info, handler)
	}
}

func getPublicKeysHandler(svc IAMInternalService) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := &emptypb.Empty{}
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return svc.GetPublicKeys(ctx, req)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/quorasec.iam.v1.IAMInternalService/GetPublicKeys",
		}
		handler := func(ctx context.Context, req any) (any, error) {
			typed, ok := req.(*emptypb.Empty)
			if !ok {
				return nil, status.Error(codes.InvalidArgument, "invalid request type")
			}
			return svc.GetPublicKeys(ctx, typed)
		}
		return interceptor(ctx, req, info, handler)
	}
}
