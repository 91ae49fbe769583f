package models

import "time"

// Push channel event names
const (
	EventConnectionResponse = "connection_response"
	EventRS485Data          = "rs485_data"
	EventADXLData           = "adxl_data"
	EventStatsUpdate        = "stats_update"
	EventRequestStats       = "request_stats"
)

// Event is the envelope of every push channel message
type Event struct {
	Name string      `json:"event"`
	Data interface{} `json:"data,omitempty"`
}

// ConnectionResponse greets a newly connected viewer
type ConnectionResponse struct {
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// RS485Data is broadcast after an environmental sample was stored
type RS485Data struct {
	DeviceID  string              `json:"device_id"`
	Timestamp string              `json:"timestamp"`
	Data      EnvironmentalSample `json:"data"`
	ID        int64               `json:"id"`
}

// ADXLData is broadcast after a vibration batch was stored.
// ADXL1..3 hold the axes of the last reading in the batch.
type ADXLData struct {
	DeviceID     string `json:"device_id"`
	ChunkStartUs int64  `json:"chunk_start_us"`
	FsHz         int    `json:"fs_hz"`
	SampleCount  int    `json:"sample_count"`
	Samples      []Axis `json:"samples"`
	ADXL1        *int   `json:"adxl1"`
	ADXL2        *int   `json:"adxl2"`
	ADXL3        *int   `json:"adxl3"`
	ID           int64  `json:"id"`
	OutOfRange   int    `json:"out_of_range"`
}

// Stats holds the current row counts of both sample tables
type Stats struct {
	RS485Count int64     `json:"rs485_count"`
	ADXLCount  int64     `json:"adxl_count"`
	Timestamp  time.Time `json:"timestamp"`
}
