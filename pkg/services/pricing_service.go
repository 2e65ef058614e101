package services

import (
	"math"
	"strings"
	"time"

	"p7s/pkg/models"
	"p7s/pkg/repository"

	"google.golang.org/protobuf/types/known/structpb"
)

// roadFactor corrige a distância em linha reta para distância rodoviária.
const roadFactor = 1.3

type PricingService interface {
	Quote(pickup, dropoff models.LocationData) (models.RouteQuote, error)
	ResolveRegion(loc models.LocationData) models.Region
	GetConfig() (models.PricingConfig, error)
	UpdateConfig(cfg models.PricingConfig) error
	ListRules() ([]models.PriceRule, error)
	UpsertRule(rule models.PriceRule) error
	DeleteRule(id string) error
	ListKeywords() ([]models.LocationKeyword, error)
	UpsertKeyword(kw models.LocationKeyword) error
	DeleteKeyword(id string) error
}

type pricingService struct {
	repo  repository.PricingRepository
	cache Cache
}

func NewPricingService(repo repository.PricingRepository, cache Cache) PricingService {
	return &pricingService{repo: repo, cache: cache}
}

// GetConfig lê do cache em protobuf; toda cotação passa por aqui.
func (s *pricingService) GetConfig() (models.PricingConfig, error) {
	var pb structpb.Struct
	if s.cache.GetProto("pricing:config", &pb) {
		return models.PricingConfigFromProto(&pb), nil
	}
	cfg, err := s.repo.GetPricingConfig()
	if err != nil {
		return models.PricingConfig{}, err
	}
	s.cache.SetProto("pricing:config", cfg.ToProto(), 5*time.Minute)
	return cfg, nil
}

func (s *pricingService) UpdateConfig(cfg models.PricingConfig) error {
	if err := s.repo.SavePricingConfig(cfg); err != nil {
		return err
	}
	s.cache.Del("pricing:config")
	return nil
}

func (s *pricingService) keywords() ([]models.LocationKeyword, error) {
	var kws []models.LocationKeyword
	err := s.cache.Remember("pricing:keywords", 5*time.Minute, &kws, func() (interface{}, error) {
		return s.repo.ListLocationKeywords()
	})
	return kws, err
}

// ResolveRegion classifica um local: primeiro por palavra-chave no nome ou
// endereço, depois pela região explícita do cliente, senão UNKNOWN.
func (s *pricingService) ResolveRegion(loc models.LocationData) models.Region {
	text := strings.ToLower(loc.PlaceName + " " + loc.Address)
	kws, err := s.keywords()
	if err == nil {
		for _, kw := range kws {
			if kw.Keyword != "" && strings.Contains(text, strings.ToLower(kw.Keyword)) {
				return kw.RegionID
			}
		}
	}
	if loc.RegionID != "" {
		return loc.RegionID
	}
	return models.RegionUnknown
}

// EstimateDistanceKm: haversine entre os dois pontos vezes o fator
// rodoviário. Sem coordenadas não há estimativa (0 km cai no gasto mínimo).
func EstimateDistanceKm(pickup, dropoff models.LocationData) float64 {
	if (pickup.Latitude == 0 && pickup.Longitude == 0) || (dropoff.Latitude == 0 && dropoff.Longitude == 0) {
		return 0
	}
	const earthRadiusKm = 6371.0
	lat1 := pickup.Latitude * math.Pi / 180
	lat2 := dropoff.Latitude * math.Pi / 180
	dLat := (dropoff.Latitude - pickup.Latitude) * math.Pi / 180
	dLon := (dropoff.Longitude - pickup.Longitude) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c * roadFactor
}

// tieredMileageCost aplica as faixas progressivas de quilometragem. Os
// primeiros 10 km não cobram nada além do gasto mínimo.
func tieredMileageCost(km float64, cfg models.PricingConfig) float64 {
	switch {
	case km <= 10:
		return 0
	case km <= 50:
		return (km - 10) * cfg.Tier1Rate
	case km <= 100:
		return 40*cfg.Tier1Rate + (km-50)*cfg.Tier2Rate
	default:
		return 40*cfg.Tier1Rate + 50*cfg.Tier2Rate + (km-100)*cfg.Tier3Rate
	}
}

func (s *pricingService) Quote(pickup, dropoff models.LocationData) (models.RouteQuote, error) {
	cfg, err := s.GetConfig()
	if err != nil {
		return models.RouteQuote{}, err
	}

	start := s.ResolveRegion(pickup)
	end := s.ResolveRegion(dropoff)

	quote := models.RouteQuote{
		StartRegion: start,
		EndRegion:   end,
		Surcharges:  map[string]float64{},
		Currency:    "HKD",
	}

	var mileageCost float64
	matrixHit := false
	if start != models.RegionUnknown && end != models.RegionUnknown {
		rule, ok, err := s.repo.GetPriceRule(start, end)
		if err != nil {
			return models.RouteQuote{}, err
		}
		if ok {
			matrixHit = true
			mileageCost = float64(rule.BasePrice)
		}
	}
	if !matrixHit {
		km := EstimateDistanceKm(pickup, dropoff)
		mileageCost = tieredMileageCost(km, cfg)
	}

	total := int64(math.Ceil(math.Max(cfg.MinSpend, mileageCost)))
	quote.BasePrice = total
	quote.TotalPrice = total
	quote.OrderFee = int64(math.Ceil(float64(total) * cfg.DriverFeePercentage))
	quote.IsEstimate = !matrixHit
	if matrixHit {
		quote.PricingSystem = "matrix"
	} else {
		quote.PricingSystem = "distance"
		quote.Note = "Preço estimado por distância; sujeito a confirmação"
	}
	return quote, nil
}

func (s *pricingService) ListRules() ([]models.PriceRule, error) {
	return s.repo.ListPriceRules()
}

func (s *pricingService) UpsertRule(rule models.PriceRule) error {
	if err := s.repo.UpsertPriceRule(rule); err != nil {
		return err
	}
	s.cache.DelPattern("pricing:*")
	return nil
}

func (s *pricingService) DeleteRule(id string) error {
	if err := s.repo.DeletePriceRule(id); err != nil {
		return err
	}
	s.cache.DelPattern("pricing:*")
	return nil
}

func (s *pricingService) ListKeywords() ([]models.LocationKeyword, error) {
	return s.keywords()
}

func (s *pricingService) UpsertKeyword(kw models.LocationKeyword) error {
	if err := s.repo.UpsertLocationKeyword(kw); err != nil {
		return err
	}
	s.cache.Del("pricing:keywords")
	return nil
}

func (s *pricingService) DeleteKeyword(id string) error {
	if err := s.repo.DeleteLocationKeyword(id); err != nil {
		return err
	}
	s.cache.Del("pricing:keywords")
	return nil
}
