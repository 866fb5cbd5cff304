package application

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	billing "github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/billing/domain"
	"github.com/RaimundoNexoNeural/RPA-LUZ-GRUPOMAS/internal/normalize"
)

// Rule declares an aggregate: Target is the rounded sum of Components.
type Rule struct {
	Target     string
	Components []string
}

// AggregateConfig holds the configurable distributor aggregates. Empty lists
// leave the target as extracted.
type AggregateConfig struct {
	EnelOtherCharges []string `yaml:"other_charges"`
	EnelReactive     []string `yaml:"reactive"`
}

type resolvedRule struct {
	target     billing.Field
	components []billing.Field
}

// Calculator fills the derived totals of an invoice.
type Calculator struct {
	rules  map[billing.Provider][]resolvedRule
	logger zerolog.Logger
}

// DefaultRules returns the fixed aggregates of a provider.
func DefaultRules(provider billing.Provider) []Rule {
	switch provider {
	case billing.ProviderEndesa:
		return []Rule{
			{Target: "importe_de_potencia", Components: bands("potencia_")},
			{Target: "importe_consumo", Components: append(bands("importe_consumo_"), bands("energia_precio_indexado_")...)},
			{Target: "importe_exceso_potencia", Components: bands("importe_exceso_potencia_")},
			{Target: "importe_otros_conceptos", Components: []string{
				"importe_alquiler_equipos",
				"importe_bono_social",
				"importe_reactiva",
				"importe_regularizacion_eficiencia_energetica",
			}},
			{Target: "kw_totales", Components: bands("consumo_kw_")},
		}
	case billing.ProviderEnel:
		return []Rule{
			{Target: "importe_de_potencia", Components: []string{"termino_de_potencia_peaje", "termino_de_potencia_cargos"}},
			{Target: "importe_atr", Components: []string{"termino_de_energia_peaje", "termino_de_energia_cargos"}},
			{Target: "importe_subtotal", Components: []string{"importe_de_potencia", "importe_atr", "importe_exceso_potencia"}},
		}
	}
	return nil
}

// NewCalculator validates every rule against the provider schemas.
func NewCalculator(cfg AggregateConfig, logger zerolog.Logger) (*Calculator, error) {
	c := &Calculator{
		rules:  make(map[billing.Provider][]resolvedRule),
		logger: logger.With().Str("component", "calculator").Logger(),
	}
	for _, provider := range billing.Providers() {
		rules := DefaultRules(provider)
		if provider == billing.ProviderEnel {
			if len(cfg.EnelOtherCharges) > 0 {
				rules = append(rules, Rule{Target: "importe_otros_conceptos", Components: cfg.EnelOtherCharges})
			}
			if len(cfg.EnelReactive) > 0 {
				rules = append(rules, Rule{Target: "importe_reactiva", Components: cfg.EnelReactive})
			}
		}
		schema, err := billing.SchemaFor(provider)
		if err != nil {
			return nil, err
		}
		for _, rule := range rules {
			resolved, err := resolve(schema, rule)
			if err != nil {
				return nil, err
			}
			c.rules[provider] = append(c.rules[provider], resolved)
		}
	}
	return c, nil
}

// Apply computes every aggregate of inv and the billed days. Each aggregate
// is independent: one that fails is set to 0 and reported in the returned
// error, which is informational only.
func (c *Calculator) Apply(inv *billing.Invoice) error {
	var errs error
	for _, rule := range c.rules[inv.Provider] {
		values := make([]float64, 0, len(rule.components))
		var failed error
		for _, component := range rule.components {
			value := component.Number(inv)
			if math.IsNaN(value) || math.IsInf(value, 0) {
				failed = fmt.Errorf("aggregate %s: component %s is not finite", rule.target.Name, component.Name)
				break
			}
			values = append(values, value)
		}
		total := 0.0
		if failed == nil {
			total = RoundedSum(values...)
		} else {
			errs = multierr.Append(errs, failed)
			c.logger.Warn().Err(failed).Str("event", "aggregate_failed").Str("cup", inv.AccountCode()).
				Str("invoice", inv.Number()).Str("target", rule.target.Name).Msg("aggregate defaulted to 0")
		}
		if err := rule.target.Set(inv, total); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("aggregate %s: %w", rule.target.Name, err))
		}
	}

	if err := c.billedDays(inv); err != nil {
		errs = multierr.Append(errs, err)
	}
	return errs
}

func (c *Calculator) billedDays(inv *billing.Invoice) error {
	start, okStart := inv.PeriodStart.Get()
	end, okEnd := inv.PeriodEnd.Get()
	if !okStart || !okEnd || start == billing.NotAvailable || end == billing.NotAvailable {
		return nil
	}
	days, err := normalize.DaysBetween(start, end)
	if err != nil {
		c.logger.Warn().Err(err).Str("event", "billed_days_unparsed").Str("cup", inv.AccountCode()).
			Str("invoice", inv.Number()).Str("period_start", start).Str("period_end", end).Msg("billed days not derived")
		return fmt.Errorf("billed days: %w", err)
	}
	inv.BilledDays = billing.Some(days)
	return nil
}

// RoundedSum adds values as decimals and rounds to cents, half away from zero.
func RoundedSum(values ...float64) float64 {
	total := decimal.Zero
	for _, value := range values {
		total = total.Add(decimal.NewFromFloat(value))
	}
	return total.Round(2).InexactFloat64()
}

func resolve(schema billing.Schema, rule Rule) (resolvedRule, error) {
	target, ok := schema.Field(rule.Target)
	if !ok || target.Kind != billing.KindNumber {
		return resolvedRule{}, fmt.Errorf("%w: aggregate target %q for %s", billing.ErrUnknownField, rule.Target, schema.Provider)
	}
	resolved := resolvedRule{target: target}
	for _, name := range rule.Components {
		component, ok := schema.Field(name)
		if !ok || component.Kind != billing.KindNumber {
			return resolvedRule{}, fmt.Errorf("%w: aggregate component %q of %s for %s", billing.ErrUnknownField, name, rule.Target, schema.Provider)
		}
		if name == rule.Target {
			return resolvedRule{}, fmt.Errorf("aggregate %s: refers to itself", rule.Target)
		}
		resolved.components = append(resolved.components, component)
	}
	return resolved, nil
}

func bands(prefix string) []string {
	names := make([]string, billing.Bands)
	for i := range names {
		names[i] = fmt.Sprintf("%sp%d", prefix, i+1)
	}
	return names
}
