package grpcapi

import (
	"context"
	"runtime/debug"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/fyrsmithlabs/vectord/internal/errdefs"
	"github.com/fyrsmithlabs/vectord/internal/logging"
	"github.com/fyrsmithlabs/vectord/internal/reqctx"
	apiv1 "github.com/fyrsmithlabs/vectord/pkg/api/v1"
)

// UnaryInterceptor registers every call with the registry for its whole
// lifetime, returns the request id to the client in the "request_id"
// header, records RPC metrics and converts handler panics into an
// embedded UNEXPECTED_ERROR status.
func UnaryInterceptor(registry *reqctx.Registry, metrics *RPCMetrics, logger *logging.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		rc, ctx := registry.Begin(ctx, info.FullMethod)
		defer registry.End(rc.RequestID())

		if herr := grpc.SetHeader(ctx, metadata.Pairs(apiv1.RequestIDKey, rc.RequestID())); herr != nil {
			logger.Debug(ctx, "failed to set request id header", zap.Error(herr))
		}

		done := metrics.start(ctx, info.FullMethod)
		defer func() {
			if p := recover(); p != nil {
				perr := errdefs.Internal(apiv1.ErrorCodeUnexpectedError, "internal error: %v", p)
				rc.RecordError(perr)
				logger.Error(ctx, "handler panic",
					zap.String("method", info.FullMethod),
					zap.Any("panic", p),
					zap.ByteString("stack", debug.Stack()))
				resp, err = failedReply(info.FullMethod, errdefs.Status(perr))
			}
			done(resp, err)
			logCall(ctx, logger, info.FullMethod, rc.Elapsed(), resp, err)
		}()

		return handler(ctx, req)
	}
}

// failedReply builds the empty response of method carrying st. Unknown
// methods fail at the transport level instead.
func failedReply(fullMethod string, st *apiv1.Status) (any, error) {
	switch methodName(fullMethod) {
	case apiv1.MethodCreateCollection, apiv1.MethodDropCollection,
		apiv1.MethodCreateIndex, apiv1.MethodDropIndex,
		apiv1.MethodCreatePartition, apiv1.MethodDropPartition,
		apiv1.MethodDeleteByID, apiv1.MethodPreloadCollection,
		apiv1.MethodFlush, apiv1.MethodCompact:
		return st, nil
	case apiv1.MethodHasCollection, apiv1.MethodHasPartition:
		return &apiv1.BoolReply{Status: st}, nil
	case apiv1.MethodDescribeCollection:
		return &apiv1.Mapping{Status: st}, nil
	case apiv1.MethodCountCollection:
		return &apiv1.CollectionRowCount{Status: st}, nil
	case apiv1.MethodShowCollections:
		return &apiv1.CollectionNameList{Status: st}, nil
	case apiv1.MethodShowCollectionInfo:
		return &apiv1.CollectionInfo{Status: st}, nil
	case apiv1.MethodDescribeIndex:
		return &apiv1.IndexParam{Status: st}, nil
	case apiv1.MethodShowPartitions:
		return &apiv1.PartitionList{Status: st}, nil
	case apiv1.MethodInsert, apiv1.MethodGetEntityIDs:
		return &apiv1.EntityIDs{Status: st}, nil
	case apiv1.MethodGetEntityByID:
		return &apiv1.Entities{Status: st}, nil
	case apiv1.MethodSearch:
		return &apiv1.QueryResult{Status: st}, nil
	case apiv1.MethodCmd:
		return &apiv1.StringReply{Status: st}, nil
	default:
		return nil, status.Error(codes.Internal, st.Reason)
	}
}

func methodName(fullMethod string) string {
	return fullMethod[strings.LastIndex(fullMethod, "/")+1:]
}

// replyCode returns the embedded error code of resp, or the code a
// transport error maps to.
func replyCode(resp any, err error) apiv1.ErrorCode {
	if err != nil {
		return errdefs.Code(err)
	}
	if r, ok := resp.(apiv1.StatusReply); ok {
		if st := r.GetStatus(); st != nil {
			return st.ErrorCode
		}
	}
	return apiv1.ErrorCodeSuccess
}

func logCall(ctx context.Context, logger *logging.Logger, fullMethod string, elapsed time.Duration, resp any, err error) {
	code := replyCode(resp, err)
	fields := []zap.Field{
		zap.String("method", methodName(fullMethod)),
		zap.Duration("duration", elapsed),
		zap.Stringer("error_code", code),
	}
	switch {
	case err != nil:
		logger.Warn(ctx, "request failed at transport", append(fields, zap.Error(err))...)
	case code != apiv1.ErrorCodeSuccess:
		logger.Info(ctx, "request completed", fields...)
	default:
		logger.Debug(ctx, "request completed", fields...)
	}
}
