// Package status implements the gRPC transport for the alert manager status
// service.
//
// The service has a single unary method returning the manager statistics as a
// google.protobuf.Struct, so it is registered through a hand-written service
// descriptor and needs no generated code.
package status
