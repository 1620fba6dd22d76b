// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cardinalhq/oteltools/pkg/telemetry"
	slogmulti "github.com/samber/slog-multi"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/instrumentation/host"
	iruntime "go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/vmfscan/internal/helpers"
	"github.com/cardinalhq/vmfscan/internal/idgen"
	"github.com/cardinalhq/vmfscan/internal/logctx"
)

var (
	commonAttributes attribute.Set

	meter  = otel.Meter("github.com/cardinalhq/vmfscan")
	tracer = otel.Tracer("github.com/cardinalhq/vmfscan")

	commandDuration metric.Float64Histogram
	rowsWritten     metric.Int64Counter
)

func init() {
	m, err := meter.Float64Histogram(
		"vmfscan.command.duration",
		metric.WithUnit("s"),
		metric.WithDescription("The duration in seconds of one command invocation"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create command.duration histogram: %w", err))
	}
	commandDuration = m

	c, err := meter.Int64Counter(
		"vmfscan.command.rows.written",
		metric.WithDescription("Rows written by a command to its output"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create command.rows.written counter: %w", err))
	}
	rowsWritten = c
}

// setupTelemetry installs the default logger and, when OTLP export is
// enabled, the OpenTelemetry SDK. Logs go to stderr because stdout carries
// command output.
func setupTelemetry(servicename string, debug bool) (context.Context, func() error, error) {
	doneCtx, doneCancel := handleSignals(context.Background())

	commonAttributes = attribute.NewSet(
		attribute.String("instanceID", idgen.InstanceID()),
	)

	opts := &slog.HandlerOptions{Level: slog.LevelWarn}
	if debug || helpers.DebugEnabled() {
		opts.Level = slog.LevelDebug
	}

	f := func() error {
		doneCancel()
		return nil
	}

	var logger *slog.Logger
	if helpers.OTLPEnabled() {
		logger = slog.New(slogmulti.Fanout(
			slog.NewTextHandler(os.Stderr, opts),
			otelslog.NewHandler(servicename),
		))

		otelShutdown, err := telemetry.SetupOTelSDK(doneCtx)
		if err != nil {
			doneCancel()
			return nil, nil, fmt.Errorf("failed to setup OpenTelemetry SDK: %w", err)
		}

		if err := iruntime.Start(iruntime.WithMinimumReadMemStatsInterval(time.Second * 10)); err != nil {
			slog.Warn("failed to start runtime metrics", "error", err.Error())
		}

		if err := host.Start(); err != nil {
			slog.Warn("failed to start host metrics", "error", err.Error())
		}

		f = func() error {
			defer doneCancel()
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return otelShutdown(ctx)
		}
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stderr, opts))
	}

	logger = logger.With(
		slog.String("service", servicename),
		slog.String("instanceID", idgen.InstanceID()),
	)
	slog.SetDefault(logger)
	return logctx.WithLogger(doneCtx, logger), f, nil
}

// runWithTelemetry wraps a command body with telemetry setup, a span and
// the duration histogram.
func runWithTelemetry(name string, body func(ctx context.Context, c *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(c *cobra.Command, args []string) error {
		debug, _ := c.Flags().GetBool("debug")
		ctx, doneFx, err := setupTelemetry("vmfscan", debug)
		if err != nil {
			return fmt.Errorf("failed to setup telemetry: %w", err)
		}
		defer func() {
			if err := doneFx(); err != nil {
				slog.Error("Error shutting down telemetry", slog.Any("error", err))
			}
		}()

		ctx, span := tracer.Start(ctx, "vmfscan."+name, trace.WithAttributes(attribute.String("command", name)))
		defer span.End()

		start := time.Now()
		err = body(ctx, c, args)
		status := "ok"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		commandDuration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributeSet(commonAttributes),
			metric.WithAttributes(attribute.String("command", name), attribute.String("status", status)))
		return err
	}
}

func recordRowsWritten(ctx context.Context, command string, n int64) {
	rowsWritten.Add(ctx, n,
		metric.WithAttributeSet(commonAttributes),
		metric.WithAttributes(attribute.String("command", command)))
}
