package adxl

import (
	"math"

	"github.com/sguter90/sensormaestro/pkg/models"
	"github.com/sguter90/sensormaestro/pkg/parser"
)

const (
	// LegacyType is the type name used by older firmware, which sends the batch
	// fields at the top level of the payload
	LegacyType = "adxl_batch"
	// LegacyDefaultFsHz applies to legacy payloads that omit fs_hz
	LegacyDefaultFsHz = 500
)

// Parser validates accelerometer batches from the ADXL sensor
type Parser struct{}

// New creates a new adxl parser
func New() *Parser {
	return &Parser{}
}

func (p *Parser) Kind() models.Kind {
	return models.KindVibration
}

func (p *Parser) Aliases() []string {
	return []string{LegacyType}
}

// Parse converts the batch fields into a VibrationPayload
func (p *Parser) Parse(typ string, env models.Envelope, root parser.Fields, sample parser.Fields) (models.Payload, error) {
	legacy := typ == LegacyType
	fields := sample
	if fields == nil {
		if !legacy {
			return nil, parser.Invalidf("missing required field 'sample'")
		}
		fields = root
	}

	var b models.VibrationBatch

	chunkStart, ok, err := fields.Int("chunk_start_us")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, parser.Invalidf("missing required field 'chunk_start_us'")
	}
	if chunkStart < 0 {
		return nil, parser.Invalidf("field 'chunk_start_us' must not be negative")
	}
	b.ChunkStartUs = chunkStart

	fsHz, ok, err := fields.Int("fs_hz")
	if err != nil {
		return nil, err
	}
	if !ok {
		if !legacy {
			return nil, parser.Invalidf("missing required field 'fs_hz'")
		}
		fsHz = LegacyDefaultFsHz
	}
	if fsHz <= 0 {
		return nil, parser.Invalidf("field 'fs_hz' must be positive")
	}
	if fsHz > math.MaxInt32 {
		return nil, parser.Invalidf("field 'fs_hz' must not exceed %d", math.MaxInt32)
	}
	b.FsHz = int(fsHz)

	items, ok, err := fields.Array("samples")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, parser.Invalidf("missing required field 'samples'")
	}

	b.Samples = make([]models.Axis, len(items))
	for i, item := range items {
		values, err := parser.IntTuple(item, 3)
		if err != nil {
			return nil, parser.Invalidf("samples[%d] %v", i, err)
		}
		b.Samples[i] = models.Axis{int(values[0]), int(values[1]), int(values[2])}
	}

	count, ok, err := fields.Int("sample_count")
	if err != nil {
		return nil, err
	}
	if ok && count != int64(len(b.Samples)) {
		return nil, parser.Invalidf("sample_count %d does not match number of samples %d", count, len(b.Samples))
	}
	b.SampleCount = len(b.Samples)

	return &models.VibrationPayload{Envelope: env, Batch: b}, nil
}
