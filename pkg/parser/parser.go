package parser

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/sguter90/sensormaestro/pkg/models"
)

// Parser validates the kind-specific part of an ingest payload
type Parser interface {
	// Kind returns the payload kind produced by this parser
	Kind() models.Kind

	// Aliases returns additional type names accepted for this kind
	Aliases() []string

	// Parse validates the sample fields. typ is the type name as sent by the device,
	// root is the whole payload object and sample its "sample" object (nil if absent).
	Parse(typ string, env models.Envelope, root Fields, sample Fields) (models.Payload, error)
}

// Registry holds all registered parsers keyed by type name
type Registry struct {
	mu      sync.RWMutex
	parsers map[string]Parser
}

// NewRegistry creates a new parser registry
func NewRegistry() *Registry {
	return &Registry{
		parsers: make(map[string]Parser),
	}
}

// Register adds a parser under its kind and all of its aliases
func (r *Registry) Register(p Parser) {
	if p == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.parsers[string(p.Kind())] = p
	for _, alias := range p.Aliases() {
		r.parsers[alias] = p
	}
}

// Get retrieves a parser by type name
func (r *Registry) Get(typ string) (Parser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.parsers[typ]
	return p, ok
}

// Types returns all accepted type names in sorted order
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.parsers))
	for typ := range r.parsers {
		types = append(types, typ)
	}
	sort.Strings(types)
	return types
}

// Classify decodes a raw ingest payload, determines its kind and validates it.
// Every failure is a *ValidationError.
func (r *Registry) Classify(raw []byte) (models.Payload, error) {
	root, err := DecodeObject(raw)
	if err != nil {
		return nil, err
	}

	env, err := parseEnvelope(root)
	if err != nil {
		return nil, err
	}

	typ, ok, err := root.String("type")
	if err != nil {
		return nil, err
	}
	if !ok || typ == "" {
		return nil, Invalidf("missing required field 'type'")
	}

	p, ok := r.Get(typ)
	if !ok {
		return nil, Invalidf("unknown data type: %s (valid: %s)", typ, strings.Join(r.Types(), ", "))
	}

	sample, _, err := root.Object("sample")
	if err != nil {
		return nil, err
	}

	payload, err := p.Parse(typ, env, root, sample)
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			return nil, ve
		}
		return nil, &ValidationError{Reason: err.Error()}
	}

	return payload, nil
}

func parseEnvelope(root Fields) (models.Envelope, error) {
	deviceID, ok, err := root.String("device_id")
	if err != nil {
		return models.Envelope{}, err
	}
	if !ok || strings.TrimSpace(deviceID) == "" {
		return models.Envelope{}, Invalidf("missing required field 'device_id'")
	}

	ts, ok, err := root.String("ts")
	if err != nil {
		return models.Envelope{}, err
	}
	if !ok {
		return models.Envelope{}, Invalidf("missing required field 'ts'")
	}

	parsed, err := models.ParseTimestamp(ts)
	if err != nil {
		return models.Envelope{}, Invalidf("field 'ts' must be an ISO-8601 timestamp")
	}

	return models.Envelope{
		DeviceID: deviceID,
		TS:       ts,
		ParsedTS: parsed,
	}, nil
}
