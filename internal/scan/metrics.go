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

package scan

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	meter  = otel.Meter("github.com/cardinalhq/vmfscan/internal/scan")
	tracer = otel.Tracer("github.com/cardinalhq/vmfscan/internal/scan")

	buffersReadCounter     metric.Int64Counter
	recordsParsedCounter   metric.Int64Counter
	recordsSkippedCounter  metric.Int64Counter
	transformErrorsCounter metric.Int64Counter
	batchesEmittedCounter  metric.Int64Counter
)

func init() {
	var err error

	buffersReadCounter, err = meter.Int64Counter(
		"vmfscan.buffers.read",
		metric.WithDescription("Read buffers claimed by scan workers"),
	)
	if err != nil {
		panic(err)
	}

	recordsParsedCounter, err = meter.Int64Counter(
		"vmfscan.records.parsed",
		metric.WithDescription("Documents split out of read buffers and parsed"),
	)
	if err != nil {
		panic(err)
	}

	recordsSkippedCounter, err = meter.Int64Counter(
		"vmfscan.records.skipped",
		metric.WithDescription("Rows dropped because they could not be converted"),
	)
	if err != nil {
		panic(err)
	}

	transformErrorsCounter, err = meter.Int64Counter(
		"vmfscan.transform.errors",
		metric.WithDescription("Batches in which a document failed conversion"),
	)
	if err != nil {
		panic(err)
	}

	batchesEmittedCounter, err = meter.Int64Counter(
		"vmfscan.batches.emitted",
		metric.WithDescription("Record batches handed to scan consumers"),
	)
	if err != nil {
		panic(err)
	}
}
