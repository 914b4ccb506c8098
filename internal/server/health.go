package server

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// NewHealthServer returns a gRPC server exposing only the standard health
// service, initially NOT_SERVING until SetServing is called.
func NewHealthServer() (*grpc.Server, *health.Server) {
	grpcServer := grpc.NewServer()
	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, hs)
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	return grpcServer, hs
}

// SetServing flips the overall status.
func SetServing(hs *health.Server, serving bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	hs.SetServingStatus("", status)
}
