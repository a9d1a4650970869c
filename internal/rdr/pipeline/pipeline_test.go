package pipeline

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpss-rdr/rdrgen/internal/rdr/accumulator"
	"github.com/jpss-rdr/rdrgen/internal/rdr/collector"
	"github.com/jpss-rdr/rdrgen/internal/rdr/config"
	"github.com/jpss-rdr/rdrgen/internal/rdr/rdrtime"
)

const baseTime = 1_698_019_234_000_000

func testConfig() config.Config {
	primary := config.ProductSpec{
		ProductID: "RVIRS", Sensor: "VIIRS", ShortName: "VIIRS-SCIENCE-RDR", TypeID: "SCIENCE",
		GranLen: 100_000,
		Apids:   []config.ApidSpec{{Num: 826, Name: "VIIRS-SCIENCE"}},
	}
	return config.Config{
		Satellite: config.SatSpec{ID: "npp", ShortName: "NPP", BaseTime: baseTime},
		Products:  []config.ProductSpec{primary},
		Rdrs:      []config.RdrSpec{{Product: "RVIRS"}},
	}
}

// sliceSource replays a fixed list of packets, implementing Source.
type sliceSource struct {
	items []TimedPacket
	idx   int
	err   error
}

func (s *sliceSource) Next() (TimedPacket, bool, error) {
	if s.err != nil && s.idx >= len(s.items) {
		return TimedPacket{}, false, s.err
	}
	if s.idx >= len(s.items) {
		return TimedPacket{}, false, nil
	}
	tp := s.items[s.idx]
	s.idx++
	return tp, true, nil
}

func TestRunOnEmptySourceProducesNoGroups(t *testing.T) {
	src := &sliceSource{}
	var mu sync.Mutex
	var results []Result

	err := Run(src, collector.New(testConfig()), func(g *collector.Group) (string, error) {
		return "unused.h5", nil
	}, func(r Result) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	})

	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRunFlushesResidualGroupThroughWriteFn(t *testing.T) {
	src := &sliceSource{items: []TimedPacket{
		{Time: rdrtime.FromIETMicros(baseTime), Pkt: accumulator.Packet{Apid: 826, Data: []byte("x")}},
	}}

	var mu sync.Mutex
	var results []Result
	err := Run(src, collector.New(testConfig()), func(g *collector.Group) (string, error) {
		return "out.h5", nil
	}, func(r Result) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "out.h5", results[0].Path)
	assert.NoError(t, results[0].Err)
}

func TestRunPropagatesProducerError(t *testing.T) {
	src := &sliceSource{err: errors.New("boom")}

	err := Run(src, collector.New(testConfig()), func(g *collector.Group) (string, error) {
		return "", nil
	}, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestRunReportsConsumerErrorWithoutAborting(t *testing.T) {
	src := &sliceSource{items: []TimedPacket{
		{Time: rdrtime.FromIETMicros(baseTime), Pkt: accumulator.Packet{Apid: 826, Data: []byte("x")}},
		{Time: rdrtime.FromIETMicros(baseTime + 200_000), Pkt: accumulator.Packet{Apid: 826, Data: []byte("y")}},
	}}

	var mu sync.Mutex
	var results []Result
	err := Run(src, collector.New(testConfig()), func(g *collector.Group) (string, error) {
		return "", errors.New("write failed")
	}, func(r Result) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	})

	require.NoError(t, err) // consumer errors don't abort the pipeline
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.Error(t, r.Err)
	}
}
