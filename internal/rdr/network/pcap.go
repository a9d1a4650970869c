//go:build pcap
// +build pcap

package network

import (
	"context"
	"fmt"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
)

// ReadPCAPFile replays a captured CCSDS-over-UDP stream from a PCAP file,
// calling handler once per UDP payload. Used for integration testing and
// reprocessing previously captured ingest traffic.
func ReadPCAPFile(ctx context.Context, pcapFile string, udpPort int, handler PayloadHandler) error {
	handle, err := pcap.OpenOffline(pcapFile)
	if err != nil {
		return fmt.Errorf("open pcap file %s: %w", pcapFile, err)
	}
	defer handle.Close()

	filterStr := fmt.Sprintf("udp port %d", udpPort)
	if err := handle.SetBPFFilter(filterStr); err != nil {
		return fmt.Errorf("set bpf filter %q: %w", filterStr, err)
	}
	diagf("pcap bpf filter set: %s", filterStr)

	packetSource := gopacket.NewPacketSource(handle, handle.LinkType())
	count := 0
	start := time.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case packet, ok := <-packetSource.Packets():
			if !ok {
				diagf("pcap file complete: %d packets in %v", count, time.Since(start))
				return nil
			}
			if packet == nil {
				continue
			}
			count++

			udpLayer := packet.Layer(layers.LayerTypeUDP)
			if udpLayer == nil {
				continue
			}
			udp, ok := udpLayer.(*layers.UDP)
			if !ok || len(udp.Payload) == 0 {
				continue
			}

			ts := packet.Metadata().Timestamp
			if ts.IsZero() {
				ts = time.Now()
			}
			if handler != nil {
				if err := handler(ts, udp.Payload); err != nil {
					opsf("handler error on packet %d: %v", count, err)
				}
			}
		}
	}
}
