package main

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"os/signal"
	"syscall"
	"time"

	"github.com/sguter90/sensormaestro/pkg/api"
	"github.com/sguter90/sensormaestro/pkg/models"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var windDirections = [16]string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

var (
	simDeviceID   string
	simMode       string
	simCount      int
	simInterval   time.Duration
	simADXLEvery  int
	simBatchMs    int
	simFsHz       int
	simLegacyADXL bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Post simulated sensor data to a running server",
	Long: `Generate random RS485 environmental samples and ADXL vibration batches
and post them to the ingest endpoint of a running server.`,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	addClientFlags(simulateCmd)
	simulateCmd.Flags().StringVar(&simDeviceID, "device-id", "sim-raspi-01", "device id sent with every payload")
	simulateCmd.Flags().StringVar(&simMode, "mode", "both", "what to send: rs485, adxl or both")
	simulateCmd.Flags().IntVar(&simCount, "count", 0, "number of iterations (0 = run until interrupted)")
	simulateCmd.Flags().DurationVar(&simInterval, "interval", time.Second, "delay between iterations")
	simulateCmd.Flags().IntVar(&simADXLEvery, "adxl-every", 1, "send an ADXL batch every N iterations")
	simulateCmd.Flags().IntVar(&simBatchMs, "adxl-batch-ms", 100, "duration covered by one ADXL batch in ms")
	simulateCmd.Flags().IntVar(&simFsHz, "fs-hz", 500, "ADXL sample rate in Hz")
	simulateCmd.Flags().BoolVar(&simLegacyADXL, "legacy-adxl", false, "send ADXL batches in the legacy adxl_batch shape")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	log := loggerFrom(cmd)

	sendRS485 := simMode == "rs485" || simMode == "both"
	sendADXL := simMode == "adxl" || simMode == "both"
	if !sendRS485 && !sendADXL {
		return fmt.Errorf("invalid mode: %s (valid: rs485, adxl, both)", simMode)
	}
	if simInterval <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	if simADXLEvery < 1 {
		simADXLEvery = 1
	}

	client := newAPIClient(cmd)
	sim := newSimulator(simDeviceID, rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)))
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(simInterval)
	defer ticker.Stop()

	for i := 0; simCount == 0 || i < simCount; i++ {
		now := time.Now()

		if sendRS485 {
			post(ctx, log, client, sim.rs485(now))
		}
		if sendADXL && i%simADXLEvery == 0 {
			n := simFsHz * simBatchMs / 1000
			if simLegacyADXL {
				post(ctx, log, client, sim.legacyADXL(now, simFsHz, n))
			} else {
				post(ctx, log, client, sim.adxl(now, simFsHz, n))
			}
		}

		if simCount != 0 && i == simCount-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
	return nil
}

func post(ctx context.Context, log *zap.Logger, client *api.Client, body interface{}) {
	resp, err := client.IngestRaw(ctx, body)
	if err != nil {
		log.Warn("Failed to post sample", zap.Error(err))
		return
	}
	log.Info(resp.Message, zap.String("device_id", resp.DeviceID))
}

// windDirText maps a bearing in degrees onto the 16-point compass
func windDirText(deg int) string {
	d := math.Mod(float64(deg), 360)
	if d < 0 {
		d += 360
	}
	return windDirections[int((d+11.25)/22.5)%16]
}

type simulator struct {
	deviceID string
	rnd      *rand.Rand
}

func newSimulator(deviceID string, rnd *rand.Rand) *simulator {
	return &simulator{deviceID: deviceID, rnd: rnd}
}

func (s *simulator) uniform(lo, hi float64) float64 {
	v := lo + s.rnd.Float64()*(hi-lo)
	return math.Round(v*100) / 100
}

func (s *simulator) rs485(now time.Time) api.IngestRequest {
	deg := s.rnd.IntN(360)
	txt := windDirText(deg)
	spd := s.uniform(0, 12)
	local := now.Format("2006-01-02 15:04:05")

	return api.NewRS485Request(s.deviceID, now, api.RS485Sample{
		TempC:      s.uniform(18, 28),
		HumPct:     s.uniform(35, 65),
		WindDirDeg: &deg,
		WindDirTxt: &txt,
		WindSpdMs:  &spd,
		TimeLocal:  &local,
	})
}

func (s *simulator) samples(n int) []models.Axis {
	samples := make([]models.Axis, n)
	for i := range samples {
		samples[i] = models.Axis{
			s.rnd.IntN(201) - 100,
			s.rnd.IntN(201) - 100,
			s.rnd.IntN(201) + 900,
		}
	}
	return samples
}

func (s *simulator) adxl(now time.Time, fsHz, n int) api.IngestRequest {
	samples := s.samples(n)
	return api.NewADXLRequest(s.deviceID, now, api.ADXLSample{
		ChunkStartUs: now.UnixMicro(),
		FsHz:         fsHz,
		SampleCount:  len(samples),
		Samples:      samples,
	})
}

// legacyBatch is the flat shape older firmware posts
type legacyBatch struct {
	DeviceID     string        `json:"device_id"`
	TS           string        `json:"ts"`
	Type         string        `json:"type"`
	FsHz         int           `json:"fs_hz"`
	ChunkStartUs int64         `json:"chunk_start_us"`
	Samples      []models.Axis `json:"samples"`
}

func (s *simulator) legacyADXL(now time.Time, fsHz, n int) legacyBatch {
	return legacyBatch{
		DeviceID:     s.deviceID,
		TS:           now.UTC().Format(time.RFC3339Nano),
		Type:         "adxl_batch",
		FsHz:         fsHz,
		ChunkStartUs: now.UnixMicro(),
		Samples:      s.samples(n),
	}
}
