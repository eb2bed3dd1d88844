package identity

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

var (
	// ErrRPCFailed is returned for identity service failures without a more specific class
	ErrRPCFailed = errors.New("identity service call failed")

	// ErrDeadlineExceeded is returned when the call does not finish in time
	ErrDeadlineExceeded = errors.New("identity service timeout")

	// ErrUnavailable is returned when the identity service cannot be reached
	ErrUnavailable = errors.New("identity service unavailable")

	// ErrUserNotFound is returned when the identity service has no user for the subject
	ErrUserNotFound = errors.New("identity service has no user for subject")
)

// Config holds configuration for Client
type Config struct {
	Address     string
	CallTimeout time.Duration // applied only when the caller's context has no deadline
	TLS         bool
	DialOptions []grpc.DialOption // appended last; tests use this for bufconn
}

// Client is a gRPC client for the IdentityService. One Client holds one
// connection that is shared by all requests; it is safe for concurrent use.
type Client struct {
	conn    *grpc.ClientConn
	timeout time.Duration
	logger  *zap.Logger
}

// NewClient creates the connection to the identity service. The connection
// is established lazily; call WaitReady to fail fast at startup.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.Address == "" {
		return nil, errors.New("identity service address is required")
	}

	creds := insecure.NewCredentials()
	if cfg.TLS {
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(Codec{})),
	}
	opts = append(opts, cfg.DialOptions...)

	conn, err := grpc.NewClient(cfg.Address, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create identity service client: %w", err)
	}

	return &Client{
		conn:    conn,
		timeout: cfg.CallTimeout,
		logger:  logger,
	}, nil
}

// GetUserContext performs the unary GetUserContext call.
func (c *Client) GetUserContext(ctx context.Context, req *GetUserContextRequest) (*UserContextResponse, error) {
	if _, ok := ctx.Deadline(); !ok && c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if requestID := chimiddleware.GetReqID(ctx); requestID != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "x-request-id", requestID)
	}

	resp := new(UserContextResponse)
	if err := c.conn.Invoke(ctx, GetUserContextMethod, req, resp); err != nil {
		return nil, mapGRPCError(err)
	}
	return resp, nil
}

// WaitReady blocks until the connection is ready or ctx is done
func (c *Client) WaitReady(ctx context.Context) error {
	c.conn.Connect()
	for {
		state := c.conn.GetState()
		if state == connectivity.Ready {
			return nil
		}
		if state == connectivity.Shutdown {
			return fmt.Errorf("%w: connection shut down", ErrUnavailable)
		}
		if !c.conn.WaitForStateChange(ctx, state) {
			return fmt.Errorf("%w: %s (last state %s)", ErrUnavailable, ctx.Err(), state)
		}
	}
}

// State returns the current connectivity state
func (c *Client) State() connectivity.State {
	return c.conn.GetState()
}

// Close releases the connection
func (c *Client) Close() error {
	c.logger.Info("closing identity service connection")
	return c.conn.Close()
}

func mapGRPCError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrDeadlineExceeded, err)
	}

	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%w: %v", ErrRPCFailed, err)
	}

	switch st.Code() {
	case codes.Canceled:
		return fmt.Errorf("%w: %s", context.Canceled, st.Message())
	case codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s", ErrDeadlineExceeded, st.Message())
	case codes.Unavailable:
		return fmt.Errorf("%w: %s", ErrUnavailable, st.Message())
	case codes.NotFound:
		return fmt.Errorf("%w: %s", ErrUserNotFound, st.Message())
	case codes.Internal:
		// the response reached us but could not be decoded
		if strings.Contains(st.Message(), codecErrorPrefix) {
			return fmt.Errorf("%w: %s", ErrContractViolation, st.Message())
		}
		return fmt.Errorf("%w: %s: %s", ErrRPCFailed, st.Code(), st.Message())
	default:
		return fmt.Errorf("%w: %s: %s", ErrRPCFailed, st.Code(), st.Message())
	}
}
