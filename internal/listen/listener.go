package listen

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"hotdog/internal/config"
	"hotdog/internal/dispatch"
	"hotdog/internal/logger"
	"hotdog/internal/rule"
	"hotdog/pkg/metrics"
)

// Lines longer than this are truncated by the scanner and the connection is
// dropped; syslog frames should never get close.
const maxLineSize = 1024 * 1024

// Listener accepts syslog streams and runs one worker goroutine per
// connection. Every worker shares the immutable RuleSet and the dispatcher;
// per-record state stays with the worker that created it.
type Listener struct {
	cfg        config.ListenConfig
	rules      *rule.RuleSet
	dispatcher *dispatch.Dispatcher
	statsd     *metrics.Statsd
	logger     logger.Logger

	mu   sync.Mutex
	addr net.Addr
}

func New(cfg config.ListenConfig, rules *rule.RuleSet, d *dispatch.Dispatcher, statsd *metrics.Statsd, log logger.Logger) *Listener {
	if log == nil {
		log = logger.NopLogger()
	}
	return &Listener{
		cfg:        cfg,
		rules:      rules,
		dispatcher: d,
		statsd:     statsd,
		logger:     log,
	}
}

// Addr returns the bound address once Serve is listening. Useful when the
// configured port is 0.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.addr
}

// Serve listens until ctx is canceled, then stops accepting and waits for
// every connection worker to drain its in-flight records.
func (l *Listener) Serve(ctx context.Context) error {
	bind := fmt.Sprintf("%s:%d", l.cfg.Address, l.cfg.Port)

	var (
		ln  net.Listener
		err error
	)
	if l.cfg.TLS.Enabled() {
		cert, certErr := tls.LoadX509KeyPair(l.cfg.TLS.Cert, l.cfg.TLS.Key)
		if certErr != nil {
			return fmt.Errorf("failed to load TLS key pair: %w", certErr)
		}
		ln, err = tls.Listen("tcp", bind, &tls.Config{Certificates: []tls.Certificate{cert}})
	} else {
		ln, err = net.Listen("tcp", bind)
	}
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", bind, err)
	}

	l.mu.Lock()
	l.addr = ln.Addr()
	l.mu.Unlock()

	l.logger.Infow("Listening for syslog", "address", ln.Addr().String(), "tls", l.cfg.TLS.Enabled())

	var wg sync.WaitGroup
	stopAccept := context.AfterFunc(ctx, func() {
		ln.Close()
	})
	defer stopAccept()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			l.logger.Warnw("Accept failed", "error", err)
			continue
		}

		metrics.ConnectionsTotal.Inc()
		metrics.ConnectionsActive.Inc()
		l.statsd.IncConnections()

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer metrics.ConnectionsActive.Dec()
			l.handleConn(ctx, conn)
		}()
	}

	wg.Wait()
	return nil
}

func (l *Listener) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	l.logger.Debugw("Connection received", "remote", conn.RemoteAddr().String())

	// Unblock the scanner on shutdown.
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	parser := newParser()
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		metrics.RecordsTotal.Inc()
		l.statsd.IncLines()

		raw := make([]byte, len(line))
		copy(raw, line)

		rec := rule.NewRecord(raw, parser.fields(raw))

		start := time.Now()
		topic := l.rules.Evaluate(rec)
		metrics.ObserveEvaluationDuration(time.Since(start))

		err := l.dispatcher.Submit(dispatch.Envelope{
			Topic:   topic,
			Key:     []byte(rec.ID),
			Payload: rec.Payload(),
		})
		if err != nil {
			l.logger.Warnw("Record lost, dispatcher rejected submission",
				"record_id", rec.ID,
				"topic", topic,
				"error", err,
			)
			if errors.Is(err, dispatch.ErrDispatcherClosed) {
				return
			}
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
		l.logger.Debugw("Connection read error", "remote", conn.RemoteAddr().String(), "error", err)
	}
	l.logger.Debugw("Connection terminating", "remote", conn.RemoteAddr().String())
}
