// Package transport implements the QUIC peer connection manager and
// channel multiplexer of spec §4.5: one connection per remote peer,
// established with symmetric-NAT hole punching, carrying channel_id-framed
// uni-streams.
package transport

import "encoding/binary"

// ChannelIDSize is the length of the big-endian channel_id prefix every
// uni-stream begins with (spec §4.5, §6).
const ChannelIDSize = 4

// MaxStreamSize bounds a single uni-stream payload (spec §6): 512 KiB.
const MaxStreamSize = 512 * 1024

// encodeFrameHeader returns the 4-byte big-endian channel_id prefix for a
// uni-stream.
func encodeFrameHeader(channelID uint32) []byte {
	b := make([]byte, ChannelIDSize)
	binary.BigEndian.PutUint32(b, channelID)
	return b
}

// decodeFrameHeader reads a channel_id prefix, failing if fewer than
// ChannelIDSize bytes are available.
func decodeFrameHeader(b []byte) (uint32, []byte, bool) {
	if len(b) < ChannelIDSize {
		return 0, nil, false
	}
	return binary.BigEndian.Uint32(b[:ChannelIDSize]), b[ChannelIDSize:], true
}
