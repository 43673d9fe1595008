package errors

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var grpcCodeByCode = map[Code]codes.Code{
	CodeOK:                 codes.OK,
	CodeCanceled:           codes.Canceled,
	CodeInvalidArgument:    codes.InvalidArgument,
	CodeDeadlineExceeded:   codes.DeadlineExceeded,
	CodeNotFound:           codes.NotFound,
	CodeAlreadyExists:      codes.AlreadyExists,
	CodePermissionDenied:   codes.PermissionDenied,
	CodeResourceExhausted:  codes.ResourceExhausted,
	CodeFailedPrecondition: codes.FailedPrecondition,
	CodeAborted:            codes.Aborted,
	CodeOutOfRange:         codes.OutOfRange,
	CodeUnimplemented:      codes.Unimplemented,
	CodeInternal:           codes.Internal,
	CodeUnavailable:        codes.Unavailable,
	CodeDataLoss:           codes.DataLoss,
	CodeUnauthenticated:    codes.Unauthenticated,
}

var codeByGRPCCode = func() map[codes.Code]Code {
	m := make(map[codes.Code]Code, len(grpcCodeByCode))
	for c, g := range grpcCodeByCode {
		m[g] = c
	}
	return m
}()

// GRPCCode maps the code to its gRPC counterpart. Unknown codes map to
// codes.Unknown.
func (c Code) GRPCCode() codes.Code {
	if g, ok := grpcCodeByCode[c]; ok {
		return g
	}
	return codes.Unknown
}

func grpcCodeToCode(grpcCode codes.Code) Code {
	if c, ok := codeByGRPCCode[grpcCode]; ok {
		return c
	}
	return CodeInternal
}

// ToGRPCError converts any error to a gRPC status error for the wire.
// Errors that already carry a status pass through; structured errors
// keep their code and ship metadata as details; everything else
// becomes Internal.
func ToGRPCError(err error) error {
	if err == nil {
		return nil
	}

	if _, ok := status.FromError(err); ok {
		return err
	}

	var customErr *Error
	if As(err, &customErr) {
		st := status.New(customErr.Code.GRPCCode(), customErr.Message)
		if len(customErr.Meta) > 0 {
			details := &ErrorDetails{
				Code:    string(customErr.Code),
				Message: customErr.Message,
				Meta:    customErr.Meta,
			}
			st, _ = st.WithDetails(details)
		}
		return st.Err()
	}

	return status.Error(codes.Internal, err.Error())
}

// FromGRPCError converts a gRPC status error back to a structured
// error, recovering the code and any metadata details.
func FromGRPCError(err error) error {
	if err == nil {
		return nil
	}

	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	customErr := &Error{
		Code:    grpcCodeToCode(st.Code()),
		Message: st.Message(),
	}

	for _, detail := range st.Details() {
		if errDetails, ok := detail.(*ErrorDetails); ok {
			customErr.Meta = errDetails.Meta
			break
		}
	}

	return customErr
}

// GRPCStatus returns the status for any error without converting it.
func GRPCStatus(err error) *status.Status {
	if err == nil {
		return status.New(codes.OK, "")
	}

	if st, ok := status.FromError(err); ok {
		return st
	}

	var customErr *Error
	if As(err, &customErr) {
		return status.New(customErr.Code.GRPCCode(), customErr.Message)
	}

	return status.New(codes.Internal, err.Error())
}

// ErrorDetails carries structured error context across the wire.
// A generated proto message would normally fill this role.
type ErrorDetails struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Meta    map[string]interface{} `json:"meta,omitempty"`
}

// Reset implements proto.Message.
func (e *ErrorDetails) Reset() {}

// String implements proto.Message.
func (e *ErrorDetails) String() string {
	return e.Message
}

// ProtoMessage implements proto.Message.
func (e *ErrorDetails) ProtoMessage() {}
