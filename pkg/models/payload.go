package models

import "time"

// Kind identifies the type of an inbound payload
type Kind string

const (
	KindEnvironmental Kind = "rs485"
	KindVibration     Kind = "adxl"
)

// Envelope carries the device attribution common to every payload
type Envelope struct {
	DeviceID string
	// TS is the device-supplied timestamp as sent, echoed back in broadcasts
	TS       string
	ParsedTS time.Time
}

// Payload is a classified and validated inbound sample.
// It is implemented by *EnvironmentalPayload and *VibrationPayload only.
type Payload interface {
	Kind() Kind
	Meta() Envelope
	payload()
}

// EnvironmentalPayload is a validated rs485 payload
type EnvironmentalPayload struct {
	Envelope
	Sample EnvironmentalSample
}

func (p *EnvironmentalPayload) Kind() Kind     { return KindEnvironmental }
func (p *EnvironmentalPayload) Meta() Envelope { return p.Envelope }
func (p *EnvironmentalPayload) payload()       {}

// VibrationPayload is a validated adxl payload
type VibrationPayload struct {
	Envelope
	Batch VibrationBatch
}

func (p *VibrationPayload) Kind() Kind     { return KindVibration }
func (p *VibrationPayload) Meta() Envelope { return p.Envelope }
func (p *VibrationPayload) payload()       {}
