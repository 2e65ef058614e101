package models

import "google.golang.org/protobuf/types/known/structpb"

// PricingConfig é o documento de configuração de tarifas editável pelo admin.
type PricingConfig struct {
	ActiveSystem        string  `json:"activeSystem"`
	MinSpend            float64 `json:"minSpend"`
	Tier1Rate           float64 `json:"tier1Rate"`
	Tier2Rate           float64 `json:"tier2Rate"`
	Tier3Rate           float64 `json:"tier3Rate"`
	MidnightSurcharge   float64 `json:"midnightSurcharge"`
	DriverFeePercentage float64 `json:"driverFeePercentage"`
}

// DefaultPricingConfig espelha os valores de produção originais.
func DefaultPricingConfig() PricingConfig {
	return PricingConfig{
		ActiveSystem:        "distance",
		MinSpend:            600,
		Tier1Rate:           12,
		Tier2Rate:           10,
		Tier3Rate:           8,
		MidnightSurcharge:   100,
		DriverFeePercentage: 0.08,
	}
}

// ToProto serializa o documento para o cache. Toda cotação lê a config,
// então a entrada quente vai em protobuf em vez de JSON.
func (c PricingConfig) ToProto() *structpb.Struct {
	s, _ := structpb.NewStruct(map[string]interface{}{
		"activeSystem":        c.ActiveSystem,
		"minSpend":            c.MinSpend,
		"tier1Rate":           c.Tier1Rate,
		"tier2Rate":           c.Tier2Rate,
		"tier3Rate":           c.Tier3Rate,
		"midnightSurcharge":   c.MidnightSurcharge,
		"driverFeePercentage": c.DriverFeePercentage,
	})
	return s
}

func PricingConfigFromProto(s *structpb.Struct) PricingConfig {
	f := s.GetFields()
	return PricingConfig{
		ActiveSystem:        f["activeSystem"].GetStringValue(),
		MinSpend:            f["minSpend"].GetNumberValue(),
		Tier1Rate:           f["tier1Rate"].GetNumberValue(),
		Tier2Rate:           f["tier2Rate"].GetNumberValue(),
		Tier3Rate:           f["tier3Rate"].GetNumberValue(),
		MidnightSurcharge:   f["midnightSurcharge"].GetNumberValue(),
		DriverFeePercentage: f["driverFeePercentage"].GetNumberValue(),
	}
}

// PriceRule é uma entrada fixa da matriz origem/destino. Quando existe,
// ignora as faixas de quilometragem.
type PriceRule struct {
	ID          string `json:"id"`
	StartRegion Region `json:"startRegion"`
	EndRegion   Region `json:"endRegion"`
	BasePrice   int64  `json:"basePrice"`
	OrderFee    int64  `json:"orderFee"`
}

// LocationKeyword mapeia um termo de busca para uma região.
type LocationKeyword struct {
	ID       string `json:"id"`
	Keyword  string `json:"keyword"`
	RegionID Region `json:"regionId"`
}

type RouteQuote struct {
	StartRegion   Region             `json:"startRegion"`
	EndRegion     Region             `json:"endRegion"`
	BasePrice     int64              `json:"basePrice"`
	OrderFee      int64              `json:"orderFee"`
	Surcharges    map[string]float64 `json:"surcharges"`
	TotalPrice    int64              `json:"totalPrice"`
	Currency      string             `json:"currency"`
	Note          string             `json:"note"`
	IsEstimate    bool               `json:"isEstimate"`
	PricingSystem string             `json:"pricingSystem"`
}
