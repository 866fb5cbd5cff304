package billing

import "fmt"

// Schema is the ordered field table of one provider. Export columns follow
// this order.
type Schema struct {
	Provider Provider
	fields   []Field
	index    map[string]int
}

func newSchema(provider Provider, groups ...[]Field) Schema {
	s := Schema{Provider: provider, index: make(map[string]int)}
	for _, group := range groups {
		for _, field := range group {
			if _, dup := s.index[field.Name]; dup {
				panic(fmt.Sprintf("billing: duplicate field %q in %s schema", field.Name, provider))
			}
			s.index[field.Name] = len(s.fields)
			s.fields = append(s.fields, field)
		}
	}
	return s
}

// Fields returns the fields in declaration order.
func (s Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Field looks up a field by name.
func (s Schema) Field(name string) (Field, bool) {
	idx, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[idx], true
}

// Names returns the field names in declaration order.
func (s Schema) Names() []string {
	names := make([]string, len(s.fields))
	for i, field := range s.fields {
		names[i] = field.Name
	}
	return names
}

// Header returns the full export header.
func (s Schema) Header() []string {
	return append([]string{ColumnError, ColumnErrorMessage, ColumnAccount}, s.Names()...)
}

// Row renders inv in Header order.
func (s Schema) Row(inv *Invoice) []string {
	row := make([]string, 0, len(s.fields)+3)
	errFlag := "False"
	if inv.HasError() {
		errFlag = "True"
	}
	row = append(row, errFlag, inv.ErrorMessage(), inv.AccountCode())
	for _, field := range s.fields {
		row = append(row, field.Format(inv))
	}
	return row
}

// SchemaFor returns the schema of a provider.
func SchemaFor(provider Provider) (Schema, error) {
	switch provider {
	case ProviderEndesa:
		return endesaSchema, nil
	case ProviderEnel:
		return enelSchema, nil
	default:
		return Schema{}, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
}

var (
	endesaSchema = newSchema(ProviderEndesa,
		[]Field{
			textField("numero_factura", NotAvailable, func(i *Invoice) *Opt[string] { return &i.InvoiceNumber }),
			textField("contrato", NotAvailable, func(i *Invoice) *Opt[string] { return &i.ContractID }),
			textField("fecha_emision", NotAvailable, func(i *Invoice) *Opt[string] { return &i.IssueDate }),
			textField("fecha_inicio_periodo", NotAvailable, func(i *Invoice) *Opt[string] { return &i.PeriodStart }),
			textField("fecha_fin_periodo", NotAvailable, func(i *Invoice) *Opt[string] { return &i.PeriodEnd }),
			numberField("importe_total", func(i *Invoice) *Opt[float64] { return &i.TotalAmount }),
			textField("secuencial", NotAvailable, func(i *Invoice) *Opt[string] { return &i.Sequence }),
			textField("estado_factura", NotAvailable, func(i *Invoice) *Opt[string] { return &i.Status }),
			textField("fraccionamiento", NotAvailable, func(i *Invoice) *Opt[string] { return &i.Installments }),
			textField("tipo_factura", NotAvailable, func(i *Invoice) *Opt[string] { return &i.InvoiceType }),
			textField("mes_facturado", "", func(i *Invoice) *Opt[string] { return &i.BilledMonth }),
			textField("tarifa", "", func(i *Invoice) *Opt[string] { return &i.Tariff }),
			textField("direccion_suministro", "", func(i *Invoice) *Opt[string] { return &i.SupplyAddress }),
			integerField("num_dias", func(i *Invoice) *Opt[int] { return &i.BilledDays }),
		},
		bandFields("potencia_", func(i *Invoice) *[Bands]Opt[float64] { return &i.Power }),
		[]Field{numberField("importe_de_potencia", func(i *Invoice) *Opt[float64] { return &i.PowerCharge })},
		bandFields("consumo_kw_", func(i *Invoice) *[Bands]Opt[float64] { return &i.ConsumptionKWh }),
		[]Field{numberField("kw_totales", func(i *Invoice) *Opt[float64] { return &i.TotalKWh })},
		bandFields("importe_consumo_", func(i *Invoice) *[Bands]Opt[float64] { return &i.ConsumptionCharge }),
		bandFields("energia_precio_indexado_", func(i *Invoice) *[Bands]Opt[float64] { return &i.IndexedEnergy }),
		[]Field{
			numberField("importe_consumo", func(i *Invoice) *Opt[float64] { return &i.ConsumptionTotal }),
			numberField("importe_impuesto_electrico", func(i *Invoice) *Opt[float64] { return &i.ElectricityTax }),
			numberField("importe_bono_social", func(i *Invoice) *Opt[float64] { return &i.SocialBonus }),
			numberField("importe_alquiler_equipos", func(i *Invoice) *Opt[float64] { return &i.EquipmentRental }),
			numberField("importe_reactiva", func(i *Invoice) *Opt[float64] { return &i.ReactiveEnergy }),
			numberField("importe_regularizacion_eficiencia_energetica", func(i *Invoice) *Opt[float64] { return &i.EfficiencyRegularization }),
			numberField("importe_otros_conceptos", func(i *Invoice) *Opt[float64] { return &i.OtherCharges }),
		},
		bandFields("importe_exceso_potencia_", func(i *Invoice) *[Bands]Opt[float64] { return &i.ExcessPower }),
		[]Field{
			numberField("importe_exceso_potencia", func(i *Invoice) *Opt[float64] { return &i.ExcessPowerTotal }),
			numberField("importe_base_imponible", func(i *Invoice) *Opt[float64] { return &i.TaxableBase }),
			numberField("importe_facturado", func(i *Invoice) *Opt[float64] { return &i.InvoicedAmount }),
			textField("fecha_de_factura", "", func(i *Invoice) *Opt[string] { return &i.InvoiceDate }),
			textField("fecha_de_vencimiento", "", func(i *Invoice) *Opt[string] { return &i.DueDate }),
		},
	)

	enelSchema = newSchema(ProviderEnel,
		[]Field{
			textField("numero_factura", NotAvailable, func(i *Invoice) *Opt[string] { return &i.InvoiceNumber }),
			textField("contrato", NotAvailable, func(i *Invoice) *Opt[string] { return &i.ContractID }),
			textField("direccion_suministro", "", func(i *Invoice) *Opt[string] { return &i.SupplyAddress }),
			textField("fecha_emision", NotAvailable, func(i *Invoice) *Opt[string] { return &i.IssueDate }),
			textField("fecha_inicio_periodo", NotAvailable, func(i *Invoice) *Opt[string] { return &i.PeriodStart }),
			textField("fecha_fin_periodo", NotAvailable, func(i *Invoice) *Opt[string] { return &i.PeriodEnd }),
			textField("estado_factura", NotAvailable, func(i *Invoice) *Opt[string] { return &i.Status }),
			numberField("importe_total", func(i *Invoice) *Opt[float64] { return &i.TotalAmount }),
			textField("tipo_factura", NotAvailable, func(i *Invoice) *Opt[string] { return &i.InvoiceType }),
			textField("mes_facturado", "", func(i *Invoice) *Opt[string] { return &i.BilledMonth }),
			textField("tarifa", "", func(i *Invoice) *Opt[string] { return &i.Tariff }),
			integerField("num_dias", func(i *Invoice) *Opt[int] { return &i.BilledDays }),
		},
		bandFields("potencia_", func(i *Invoice) *[Bands]Opt[float64] { return &i.Power }),
		[]Field{
			numberField("termino_de_potencia_peaje", func(i *Invoice) *Opt[float64] { return &i.PowerToll }),
			numberField("termino_de_potencia_cargos", func(i *Invoice) *Opt[float64] { return &i.PowerSurcharge }),
			numberField("importe_de_potencia", func(i *Invoice) *Opt[float64] { return &i.PowerCharge }),
			numberField("termino_de_energia_peaje", func(i *Invoice) *Opt[float64] { return &i.EnergyToll }),
			numberField("termino_de_energia_cargos", func(i *Invoice) *Opt[float64] { return &i.EnergySurcharge }),
			numberField("importe_atr", func(i *Invoice) *Opt[float64] { return &i.TransportCharge }),
			numberField("importe_exceso_potencia", func(i *Invoice) *Opt[float64] { return &i.ExcessPowerTotal }),
			numberField("importe_subtotal", func(i *Invoice) *Opt[float64] { return &i.Subtotal }),
			numberField("importe_impuesto_electrico", func(i *Invoice) *Opt[float64] { return &i.ElectricityTax }),
			numberField("importe_alquiler_equipos", func(i *Invoice) *Opt[float64] { return &i.EquipmentRental }),
			numberField("importe_otros_conceptos", func(i *Invoice) *Opt[float64] { return &i.OtherCharges }),
			numberField("importe_reactiva", func(i *Invoice) *Opt[float64] { return &i.ReactiveEnergy }),
			numberField("importe_base_imponible", func(i *Invoice) *Opt[float64] { return &i.TaxableBase }),
			numberField("importe_facturado", func(i *Invoice) *Opt[float64] { return &i.InvoicedAmount }),
			textField("fecha_factura", "", func(i *Invoice) *Opt[string] { return &i.InvoiceDate }),
			textField("fecha_de_vencimiento", "", func(i *Invoice) *Opt[string] { return &i.DueDate }),
		},
	)
)
