package generator

import (
	"net"
	"time"

	"Go2NetSynth/internal/model"
)

// DefaultProfile holds the endpoint and TTL fields used for reconstructed flows.
var DefaultProfile = model.FlowData{
	SrcIP:             net.IPv4(192, 168, 1, 8).To4(),
	DstIP:             net.IPv4(192, 168, 1, 14).To4(),
	SrcPort:           34200,
	DstPort:           8080,
	RecordedTTLClient: 23,
	RecordedTTLServer: 68,
	InitialTTLClient:  255,
	InitialTTLServer:  255,
}

// Reconstruct rebuilds the flow descriptor of a sampled run. Packet counts
// and payload totals are taken per direction over every record that
// reaches the wire (records marked Deleted are skipped); the duration runs
// from start to the last record.
func Reconstruct[P model.Protocol](kind model.ProtocolKind, packets []P, start time.Time) model.Flow {
	fd := DefaultProfile
	fd.SrcIP = append(net.IP(nil), DefaultProfile.SrcIP...)
	fd.DstIP = append(net.IP(nil), DefaultProfile.DstIP...)
	fd.Timestamp = start

	for _, p := range packets {
		if p.NoiseType() == model.NoiseDeleted {
			continue
		}
		size := uint32(p.PayloadSize())
		if p.Direction() == model.Forward {
			fd.FwdPacketsCount++
			fd.FwdTotalPayloadLength += size
		} else {
			fd.BwdPacketsCount++
			fd.BwdTotalPayloadLength += size
		}
	}
	if n := len(packets); n > 0 {
		fd.TotalDuration = packets[n-1].Timestamp().Sub(start)
	}
	return model.Flow{Protocol: kind, Data: fd}
}
