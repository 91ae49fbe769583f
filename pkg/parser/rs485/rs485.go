package rs485

import (
	"github.com/sguter90/sensormaestro/pkg/models"
	"github.com/sguter90/sensormaestro/pkg/parser"
)

// Parser validates environmental samples from the RS485 weather sensor
type Parser struct{}

// New creates a new rs485 parser
func New() *Parser {
	return &Parser{}
}

func (p *Parser) Kind() models.Kind {
	return models.KindEnvironmental
}

func (p *Parser) Aliases() []string {
	return nil
}

// Parse converts the sample object into an EnvironmentalPayload
func (p *Parser) Parse(typ string, env models.Envelope, root parser.Fields, sample parser.Fields) (models.Payload, error) {
	if sample == nil {
		return nil, parser.Invalidf("missing required field 'sample'")
	}

	var s models.EnvironmentalSample

	tempC, ok, err := sample.Float("temp_c")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, parser.Invalidf("missing required field 'temp_c'")
	}
	s.TempC = tempC

	humPct, ok, err := sample.Float("hum_pct")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, parser.Invalidf("missing required field 'hum_pct'")
	}
	s.HumPct = humPct

	windDir, ok, err := sample.Int("wind_dir_deg")
	if err != nil {
		return nil, err
	}
	if ok {
		if windDir < 0 || windDir > 359 {
			return nil, parser.Invalidf("field 'wind_dir_deg' must be between 0 and 359")
		}
		deg := int(windDir)
		s.WindDirDeg = &deg
	}

	windTxt, ok, err := sample.String("wind_dir_txt")
	if err != nil {
		return nil, err
	}
	if ok {
		s.WindDirTxt = &windTxt
	}

	windSpd, ok, err := sample.Float("wind_spd_ms")
	if err != nil {
		return nil, err
	}
	if ok {
		s.WindSpdMs = &windSpd
	}

	timeLocal, ok, err := sample.String("time_local")
	if err != nil {
		return nil, err
	}
	if ok {
		s.TimeLocal = &timeLocal
	}

	return &models.EnvironmentalPayload{Envelope: env, Sample: s}, nil
}
