package engine

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff/v5"

	domainerrors "github.com/Sumatoshi-tech/odfcore/internal/domain/errors"
)

// socketPollInterval mirrors docker_client.rs's wait_for_socket: a
// fixed 500ms poll interval bounded by an overall deadline.
const socketPollInterval = 500 * time.Millisecond

// dialTimeout bounds each individual connection attempt.
const dialTimeout = 100 * time.Millisecond

// WaitForSocket polls addr until a TCP connection succeeds or timeout
// elapses, returning a TimeoutError on the latter. The Broker and
// ProcessEngine do not call it.
func WaitForSocket(ctx context.Context, addr string, timeout time.Duration) error {
	retryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, err := backoff.Retry(retryCtx, func() (struct{}, error) {
		conn, dialErr := net.DialTimeout("tcp", addr, dialTimeout)
		if dialErr != nil {
			return struct{}{}, dialErr
		}

		_ = conn.Close()

		return struct{}{}, nil
	}, backoff.WithBackOff(backoff.NewConstantBackOff(socketPollInterval)))

	if err != nil {
		return domainerrors.NewTimeoutError(fmt.Sprintf("engine readiness socket %s", addr))
	}

	return nil
}
