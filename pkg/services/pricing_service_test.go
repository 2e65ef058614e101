package services

import (
	"testing"

	"p7s/pkg/models"
)

func newPricingForTest() (PricingService, *fakePricingRepo) {
	repo := newFakePricingRepo()
	return NewPricingService(repo, newFakeCache()), repo
}

func TestTieredMileageCost(t *testing.T) {
	cfg := models.DefaultPricingConfig()
	cases := []struct {
		km   float64
		want float64
	}{
		{0, 0},
		{10, 0},
		{30, 240},  // (30-10)*12
		{50, 480},  // (50-10)*12
		{65, 630},  // 40*12 + 15*10
		{100, 980}, // 40*12 + 50*10
		{120, 1140},
	}
	for _, c := range cases {
		if got := tieredMileageCost(c.km, cfg); got != c.want {
			t.Fatalf("custo para %.0f km: esperava %.0f, veio %.0f", c.km, c.want, got)
		}
	}
}

func TestQuoteFallsBackToMinSpend(t *testing.T) {
	svc, _ := newPricingForTest()

	q, err := svc.Quote(
		models.LocationData{PlaceName: "A"},
		models.LocationData{PlaceName: "B"},
	)
	if err != nil {
		t.Fatalf("quote falhou: %v", err)
	}
	if q.TotalPrice != 600 {
		t.Fatalf("sem distância cai no gasto mínimo: esperava 600, veio %d", q.TotalPrice)
	}
	if q.OrderFee != 48 {
		t.Fatalf("comissão de 600: esperava 48, veio %d", q.OrderFee)
	}
	if !q.IsEstimate || q.PricingSystem != "distance" {
		t.Fatalf("sem matriz deve ser estimativa por distância: %+v", q)
	}
	if q.Currency != "HKD" {
		t.Fatalf("moeda errada: %q", q.Currency)
	}
}

func TestQuoteUsesMatrixWhenRuleExists(t *testing.T) {
	svc, repo := newPricingForTest()
	repo.keywords = []models.LocationKeyword{
		{ID: "k1", Keyword: "central", RegionID: models.RegionHKIsland},
		{ID: "k2", Keyword: "futian", RegionID: models.RegionSZCityMain},
	}
	repo.UpsertPriceRule(models.PriceRule{
		ID:          "r1",
		StartRegion: models.RegionHKIsland,
		EndRegion:   models.RegionSZCityMain,
		BasePrice:   800,
	})

	q, err := svc.Quote(
		models.LocationData{PlaceName: "Central Pier"},
		models.LocationData{Address: "Futian District"},
	)
	if err != nil {
		t.Fatalf("quote falhou: %v", err)
	}
	if q.TotalPrice != 800 {
		t.Fatalf("preço de matriz: esperava 800, veio %d", q.TotalPrice)
	}
	if q.IsEstimate {
		t.Fatal("matriz não é estimativa")
	}
	if q.PricingSystem != "matrix" {
		t.Fatalf("sistema errado: %q", q.PricingSystem)
	}
	if q.OrderFee != 64 {
		t.Fatalf("comissão de 800: esperava 64, veio %d", q.OrderFee)
	}
	if q.StartRegion != models.RegionHKIsland || q.EndRegion != models.RegionSZCityMain {
		t.Fatalf("regiões erradas: %s -> %s", q.StartRegion, q.EndRegion)
	}
}

func TestQuoteMatrixBelowMinSpendStillChargesMinSpend(t *testing.T) {
	svc, repo := newPricingForTest()
	repo.keywords = []models.LocationKeyword{
		{ID: "k1", Keyword: "aeroporto", RegionID: models.RegionHKAirport},
		{ID: "k2", Keyword: "kowloon", RegionID: models.RegionHKKowloon},
	}
	repo.UpsertPriceRule(models.PriceRule{
		ID:          "r2",
		StartRegion: models.RegionHKAirport,
		EndRegion:   models.RegionHKKowloon,
		BasePrice:   300,
	})

	q, err := svc.Quote(
		models.LocationData{PlaceName: "Aeroporto"},
		models.LocationData{PlaceName: "Kowloon Station"},
	)
	if err != nil {
		t.Fatalf("quote falhou: %v", err)
	}
	if q.TotalPrice != 600 {
		t.Fatalf("gasto mínimo vale também para a matriz: esperava 600, veio %d", q.TotalPrice)
	}
}

func TestResolveRegionPrecedence(t *testing.T) {
	svc, repo := newPricingForTest()
	repo.keywords = []models.LocationKeyword{
		{ID: "k1", Keyword: "disney", RegionID: models.RegionHKDisney},
	}

	// Palavra-chave ganha da região explícita.
	got := svc.ResolveRegion(models.LocationData{PlaceName: "Hotel Disney", RegionID: models.RegionHKIsland})
	if got != models.RegionHKDisney {
		t.Fatalf("keyword devia ganhar: veio %s", got)
	}

	// Sem keyword, vale a região que o cliente mandou.
	got = svc.ResolveRegion(models.LocationData{PlaceName: "Lugar qualquer", RegionID: models.RegionMOMacau})
	if got != models.RegionMOMacau {
		t.Fatalf("esperava MO_MACAU, veio %s", got)
	}

	// Sem nada, UNKNOWN.
	got = svc.ResolveRegion(models.LocationData{PlaceName: "Lugar qualquer"})
	if got != models.RegionUnknown {
		t.Fatalf("esperava UNKNOWN, veio %s", got)
	}
}

func TestEstimateDistanceNeedsBothCoordinates(t *testing.T) {
	a := models.LocationData{Latitude: 22.3, Longitude: 114.17}
	b := models.LocationData{}
	if km := EstimateDistanceKm(a, b); km != 0 {
		t.Fatalf("sem coordenada do destino: esperava 0, veio %f", km)
	}

	b = models.LocationData{Latitude: 22.54, Longitude: 114.06}
	km := EstimateDistanceKm(a, b)
	// Hong Kong -> Shenzhen: ~29 km em linha reta, ~38 km com fator rodoviário.
	if km < 30 || km > 50 {
		t.Fatalf("distância HK-SZ fora da faixa esperada: %f", km)
	}
}

func TestUpdateConfigInvalidatesCache(t *testing.T) {
	repo := newFakePricingRepo()
	svc := NewPricingService(repo, newFakeCache())

	first, err := svc.GetConfig()
	if err != nil {
		t.Fatalf("config inicial: %v", err)
	}
	if first.MinSpend != 600 {
		t.Fatalf("default errado: %+v", first)
	}

	first.MinSpend = 900
	if err := svc.UpdateConfig(first); err != nil {
		t.Fatalf("update falhou: %v", err)
	}

	got, err := svc.GetConfig()
	if err != nil {
		t.Fatalf("config depois do update: %v", err)
	}
	if got.MinSpend != 900 {
		t.Fatalf("cache não foi invalidado: %+v", got)
	}
}

func TestPricingConfigProtoRoundTrip(t *testing.T) {
	want := models.DefaultPricingConfig()
	got := models.PricingConfigFromProto(want.ToProto())
	if got != want {
		t.Fatalf("config perdeu campos no protobuf: got %+v, want %+v", got, want)
	}
}

// A segunda leitura vem da entrada protobuf do cache, não do repositório.
func TestGetConfigServesFromProtoCache(t *testing.T) {
	repo := newFakePricingRepo()
	svc := NewPricingService(repo, newFakeCache())

	first, err := svc.GetConfig()
	if err != nil {
		t.Fatalf("primeira leitura: %v", err)
	}

	changed := first
	changed.MinSpend = 999
	if err := repo.SavePricingConfig(changed); err != nil {
		t.Fatalf("SavePricingConfig: %v", err)
	}

	got, err := svc.GetConfig()
	if err != nil {
		t.Fatalf("segunda leitura: %v", err)
	}
	if got != first {
		t.Fatalf("leitura não veio do cache: got %+v, want %+v", got, first)
	}
}
