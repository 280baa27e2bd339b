// Package health exposes the standard gRPC health service (grpc.health.v1)
// for `basel serve`. Both the overall status ("") and the Service name start
// NOT_SERVING and flip to SERVING once warm-up has finished, so orchestrators
// do not route traffic to a server that is still summing its warm terms.
package health
