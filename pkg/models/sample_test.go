package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAxis_InRange(t *testing.T) {
	assert.True(t, Axis{0, 0, 0}.InRange())
	assert.True(t, Axis{AxisLimit, -AxisLimit, 12}.InRange())
	assert.False(t, Axis{AxisLimit + 1, 0, 0}.InRange())
	assert.False(t, Axis{0, 0, -AxisLimit - 1}.InRange())
}

func TestVibrationBatch_Latest(t *testing.T) {
	batch := VibrationBatch{Samples: []Axis{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}}}

	latest, ok := batch.Latest()
	assert.True(t, ok)
	assert.Equal(t, Axis{7, 8, 9}, latest)

	empty := VibrationBatch{}
	_, ok = empty.Latest()
	assert.False(t, ok)
}

func TestVibrationBatch_OutOfRange(t *testing.T) {
	batch := VibrationBatch{Samples: []Axis{{1, 2, 3}, {3000, 0, 0}, {0, -2049, 0}, {2048, 2048, -2048}}}
	assert.Equal(t, 2, batch.OutOfRange())
}

func TestVibrationBatch_Summary(t *testing.T) {
	batch := VibrationBatch{ID: 7, ChunkStartUs: 1000, FsHz: 500, SampleCount: 2, Samples: []Axis{{1, 2, 3}, {4, 5, 6}}}
	summary := batch.Summary()

	assert.Equal(t, int64(7), summary.ID)
	assert.Equal(t, int64(1000), summary.ChunkStartUs)
	assert.Equal(t, 500, summary.FsHz)
	assert.Equal(t, 2, summary.SampleCount)
}

func TestPayloadKinds(t *testing.T) {
	var p Payload = &EnvironmentalPayload{Envelope: Envelope{DeviceID: "raspi-01"}}
	assert.Equal(t, KindEnvironmental, p.Kind())
	assert.Equal(t, "raspi-01", p.Meta().DeviceID)

	p = &VibrationPayload{Envelope: Envelope{DeviceID: "raspi-02"}}
	assert.Equal(t, KindVibration, p.Kind())
	assert.Equal(t, "raspi-02", p.Meta().DeviceID)
}
