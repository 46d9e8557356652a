package testkit

import (
	"fmt"
	"math"
	"math/rand"

	"gopattern/domain/discovery"
)

// ScenarioConfig configures the synthetic dataset generators
type ScenarioConfig struct {
	Rows  int     `json:"rows"`
	Noise float64 `json:"noise"`
	Seed  int64   `json:"seed"`
}

// DefaultScenarioConfig returns defaults sized for the engine's default thresholds
func DefaultScenarioConfig() ScenarioConfig {
	return ScenarioConfig{Rows: 500, Noise: 0.5, Seed: 42}
}

// ScenarioGenerator builds datasets with known, injected effects
type ScenarioGenerator struct {
	config ScenarioConfig
	rng    *rand.Rand
}

// NewScenarioGenerator creates a generator; the same config always yields the same data.
func NewScenarioGenerator(config ScenarioConfig) *ScenarioGenerator {
	return &ScenarioGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Scenario is a generated dataset together with the schema and rows it was built from.
type Scenario struct {
	Name    string
	Schema  discovery.Schema
	Rows    []discovery.Observation
	Dataset *discovery.Dataset
}

func (g *ScenarioGenerator) build(name string, schema discovery.Schema, rows []discovery.Observation) (*Scenario, error) {
	ds, err := discovery.NewDataset(schema, rows)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", name, err)
	}
	return &Scenario{Name: name, Schema: schema, Rows: rows, Dataset: ds}, nil
}

// Quadratic: outcome = 3·feature_a² + noise, feature_a ~ U(-3, 3).
func (g *ScenarioGenerator) Quadratic() (*Scenario, error) {
	schema := discovery.Schema{
		Outcome:  "outcome",
		Features: []discovery.Feature{{Name: "feature_a", Kind: discovery.FeatureContinuous}},
	}
	rows := make([]discovery.Observation, g.config.Rows)
	for i := range rows {
		a := g.rng.Float64()*6 - 3
		rows[i] = discovery.Observation{
			Values:  map[string]discovery.Value{"feature_a": discovery.Number(a)},
			Outcome: 3*a*a + g.rng.NormFloat64()*g.config.Noise,
		}
	}
	return g.build("quadratic", schema, rows)
}

// Threshold: outcome jumps by offset when feature_b > 5. Rows/2 observations fall on each
// side of the step.
func (g *ScenarioGenerator) Threshold(offset float64) (*Scenario, error) {
	schema := discovery.Schema{
		Outcome:  "outcome",
		Features: []discovery.Feature{{Name: "feature_b", Kind: discovery.FeatureContinuous}},
	}
	rows := make([]discovery.Observation, g.config.Rows)
	for i := range rows {
		var b, y float64
		if i%2 == 0 {
			b = g.rng.Float64() * 5
		} else {
			b = math.Nextafter(5, 6) + g.rng.Float64()*5
			y = offset
		}
		rows[i] = discovery.Observation{
			Values:  map[string]discovery.Value{"feature_b": discovery.Number(b)},
			Outcome: y + g.rng.NormFloat64()*g.config.Noise,
		}
	}
	return g.build("threshold", schema, rows)
}

// SignFlip: corr(feature_c, outcome) is +r in context A and -r in context B, with
// Rows/2 observations per context.
func (g *ScenarioGenerator) SignFlip(r float64) (*Scenario, error) {
	schema := discovery.Schema{
		Outcome:  "outcome",
		Features: []discovery.Feature{{Name: "feature_c", Kind: discovery.FeatureContinuous}},
		Contexts: []string{"context"},
	}
	rows := make([]discovery.Observation, g.config.Rows)
	for i := range rows {
		level, rho := "A", r
		if i >= g.config.Rows/2 {
			level, rho = "B", -r
		}
		x := g.rng.NormFloat64()
		y := rho*x + math.Sqrt(1-rho*rho)*g.rng.NormFloat64()
		rows[i] = discovery.Observation{
			Values:   map[string]discovery.Value{"feature_c": discovery.Number(x)},
			Outcome:  y,
			Contexts: map[string]string{"context": level},
		}
	}
	return g.build("sign_flip", schema, rows)
}

// Noise: outcome is independent of every feature.
func (g *ScenarioGenerator) Noise(features int) (*Scenario, error) {
	schema := discovery.Schema{Outcome: "outcome"}
	for j := 0; j < features; j++ {
		schema.Features = append(schema.Features, discovery.Feature{
			Name: fmt.Sprintf("noise_%02d", j+1),
			Kind: discovery.FeatureContinuous,
		})
	}
	rows := make([]discovery.Observation, g.config.Rows)
	for i := range rows {
		values := make(map[string]discovery.Value, features)
		for _, f := range schema.Features {
			values[f.Name] = discovery.Number(g.rng.NormFloat64())
		}
		rows[i] = discovery.Observation{Values: values, Outcome: g.rng.NormFloat64()}
	}
	return g.build("noise", schema, rows)
}

// Storefront is a mixed e-commerce scenario: order value depends on basket size
// (U-shaped), a loyalty discount step, region, membership and a session-length effect
// that reverses between acquisition channels. A few values are missing.
func (g *ScenarioGenerator) Storefront() (*Scenario, error) {
	regions := []string{"north", "south", "east", "west"}
	channels := []string{"organic", "paid"}
	schema := discovery.Schema{
		Outcome: "order_value",
		Features: []discovery.Feature{
			{Name: "basket_size", Kind: discovery.FeatureContinuous},
			{Name: "discount_pct", Kind: discovery.FeatureContinuous},
			{Name: "session_minutes", Kind: discovery.FeatureContinuous},
			{Name: "page_views", Kind: discovery.FeatureContinuous},
			{Name: "region", Kind: discovery.FeatureCategorical},
			{Name: "is_member", Kind: discovery.FeatureBoolean},
		},
		Contexts: []string{"channel"},
	}

	rows := make([]discovery.Observation, g.config.Rows)
	for i := range rows {
		basket := g.rng.Float64()*6 - 3
		discount := g.rng.Float64() * 40
		session := g.rng.NormFloat64()
		views := g.rng.NormFloat64()
		region := regions[g.rng.Intn(len(regions))]
		member := g.rng.Float64() < 0.4
		channel := channels[i%2]

		y := 50 + 2*basket*basket
		if discount > 20 {
			y += 6
		}
		if region == "north" {
			y += 4
		}
		if member {
			y += 2
		}
		if channel == "organic" {
			y += 4 * session
		} else {
			y -= 4 * session
		}
		y += g.rng.NormFloat64() * g.config.Noise * 4

		values := map[string]discovery.Value{
			"basket_size":     discovery.Number(basket),
			"discount_pct":    discovery.Number(discount),
			"session_minutes": discovery.Number(session),
			"page_views":      discovery.Number(views),
			"region":          discovery.Label(region),
			"is_member":       discovery.Bool(member),
		}
		if g.rng.Float64() < 0.02 {
			values["page_views"] = discovery.Missing()
		}
		rows[i] = discovery.Observation{
			Values:   values,
			Outcome:  y,
			Contexts: map[string]string{"channel": channel},
		}
	}
	return g.build("storefront", schema, rows)
}
