// Package pipeline wires the collector and the HDF5 writer into the
// two-stage producer/consumer model described in spec §5: a sequential
// producer drives the collector over a packet source and sends completed
// groups on a channel; a sequential consumer receives groups and writes
// one HDF5 file per group.
package pipeline

import (
	"time"

	"github.com/jpss-rdr/rdrgen/internal/rdr/accumulator"
	"github.com/jpss-rdr/rdrgen/internal/rdr/collector"
	"github.com/jpss-rdr/rdrgen/internal/rdr/hdf5writer"
	"github.com/jpss-rdr/rdrgen/internal/rdr/rdrtime"
)

// TimedPacket pairs a packet with its externally decoded observation time.
type TimedPacket struct {
	Time rdrtime.Instant
	Pkt  accumulator.Packet
}

// Source is a lazy sequence of timed packets, matching spec §6's "packet
// source" external interface. Next returns false once exhausted.
type Source interface {
	Next() (TimedPacket, bool, error)
}

// groupChanSize mirrors the teacher's frameCh buffering: bounded for
// backpressure without affecting correctness (spec §5 permits this).
const groupChanSize = 8

// Result reports the outcome of writing one group.
type Result struct {
	Path string
	Err  error
}

// Run drives src through col, sending each completed group to writeFn
// (typically a Writer.WriteGroup call) on a bounded channel, exactly the
// two-stage model spec §5 describes. Consumer errors are reported via
// onResult and do not abort the pipeline; producer errors abort it and are
// returned.
func Run(src Source, col *collector.Collector, writeFn func(*collector.Group) (string, error), onResult func(Result)) error {
	groups := make(chan *collector.Group, groupChanSize)
	producerErr := make(chan error, 1)

	go func() {
		defer close(groups)
		for {
			tp, ok, err := src.Next()
			if err != nil {
				producerErr <- err
				return
			}
			if !ok {
				break
			}
			g, err := col.Add(tp.Time.IET(), tp.Pkt)
			if err != nil {
				producerErr <- err
				return
			}
			if g != nil {
				groups <- g
			}
		}

		finished, err := col.Finish()
		if err != nil {
			producerErr <- err
			return
		}
		for _, g := range finished {
			groups <- g
		}
		producerErr <- nil
	}()

	for g := range groups {
		path, err := writeFn(g)
		if onResult != nil {
			onResult(Result{Path: path, Err: err})
		}
	}

	return <-producerErr
}

// writerFunc adapts a hdf5writer.Writer into the pipeline's writeFn shape,
// stamping each file with the current wall-clock time as its creation
// instant.
func writerFunc(w *hdf5writer.Writer) func(*collector.Group) (string, error) {
	return func(g *collector.Group) (string, error) {
		return w.WriteGroup(g, rdrtime.FromTime(time.Now()))
	}
}

// NewWriterFunc exposes writerFunc to callers assembling a Run invocation.
func NewWriterFunc(w *hdf5writer.Writer) func(*collector.Group) (string, error) {
	return writerFunc(w)
}
