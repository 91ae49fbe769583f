package main

import (
	"github.com/sguter90/sensormaestro/pkg/parser"
	"github.com/sguter90/sensormaestro/pkg/parser/adxl"
	"github.com/sguter90/sensormaestro/pkg/parser/rs485"
)

// newClassifier registers a parser for every supported sample type
func newClassifier() *parser.Registry {
	registry := parser.NewRegistry()
	registry.Register(rs485.New())
	registry.Register(adxl.New())
	return registry
}
