package webrtc

import (
	"dcbench/internal/core/ports"

	"github.com/pion/webrtc/v3"
)

var _ ports.DataChannel = (*DataChannel)(nil)

// DataChannel adapts a pion data channel to the channel surface the
// benchmark engine consumes.
type DataChannel struct {
	dc *webrtc.DataChannel
}

func newDataChannel(dc *webrtc.DataChannel) *DataChannel {
	return &DataChannel{dc: dc}
}

func (c *DataChannel) Label() string { return c.dc.Label() }

func (c *DataChannel) Send(data []byte) error {
	return c.dc.Send(data)
}

func (c *DataChannel) BufferedAmount() uint64 {
	return c.dc.BufferedAmount()
}

func (c *DataChannel) SetBufferedAmountLowThreshold(bytes uint64) {
	c.dc.SetBufferedAmountLowThreshold(bytes)
}

func (c *DataChannel) IsOpen() bool {
	return c.dc.ReadyState() == webrtc.DataChannelStateOpen
}

func (c *DataChannel) OnOpen(handler func()) {
	c.dc.OnOpen(handler)
}

func (c *DataChannel) OnClose(handler func()) {
	c.dc.OnClose(handler)
}

func (c *DataChannel) OnBufferedAmountLow(handler func()) {
	c.dc.OnBufferedAmountLow(handler)
}

func (c *DataChannel) OnMessage(handler func(data []byte, isText bool)) {
	c.dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		handler(msg.Data, msg.IsString)
	})
}

func (c *DataChannel) Close() error {
	return c.dc.Close()
}
