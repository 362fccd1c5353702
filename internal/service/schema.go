package service

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"polytrader/internal/order"
)

// Per-kind JSON schemas for strategy parameters. Validation runs on the raw
// request payload before decoding, so callers get schema-shaped errors
// instead of decode failures.
const (
	trailingStopSchema = `{
  "type": "object",
  "properties": {
    "trail_percent": {"type": "number", "exclusiveMinimum": 0, "exclusiveMaximum": 100},
    "activation_price": {"type": "number", "minimum": 0}
  },
  "required": ["trail_percent"],
  "additionalProperties": false
}`

	thresholdSchema = `{
  "type": "object",
  "properties": {
    "stop_loss_price": {"type": "number", "exclusiveMinimum": 0},
    "take_profit_price": {"type": "number", "exclusiveMinimum": 0}
  },
  "anyOf": [
    {"required": ["stop_loss_price"]},
    {"required": ["take_profit_price"]}
  ],
  "additionalProperties": false
}`

	twapSchema = `{
  "type": "object",
  "properties": {
    "duration": {"type": "string", "minLength": 2},
    "interval": {"type": "string", "minLength": 2}
  },
  "required": ["duration", "interval"],
  "additionalProperties": false
}`
)

var paramSchemas = map[order.Kind]*jsonschema.Schema{
	order.KindTrailingStop: jsonschema.MustCompileString("trailing_stop.json", trailingStopSchema),
	order.KindStopLoss:     jsonschema.MustCompileString("threshold.json", thresholdSchema),
	order.KindTakeProfit:   jsonschema.MustCompileString("threshold.json", thresholdSchema),
	order.KindTWAP:         jsonschema.MustCompileString("twap.json", twapSchema),
}

// decodeParams validates the raw parameter payload against the kind's schema
// and decodes it into the typed variant. Duration fields use Go duration
// strings ("30m", "90s").
func decodeParams(kind order.Kind, raw map[string]any) (order.Params, error) {
	schema, ok := paramSchemas[kind]
	if !ok {
		return order.Params{}, fmt.Errorf("unknown strategy kind %q", kind)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	if err := schema.Validate(raw); err != nil {
		return order.Params{}, fmt.Errorf("invalid %s params: %w", kind, err)
	}

	var params order.Params
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
		Result:     &params,
		TagName:    "json",
	})
	if err != nil {
		return order.Params{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return order.Params{}, fmt.Errorf("decoding %s params: %w", kind, err)
	}
	if err := params.Validate(kind); err != nil {
		return order.Params{}, err
	}
	return params, nil
}
