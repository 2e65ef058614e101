package repository

import (
	"database/sql"
	"encoding/json"

	"p7s/pkg/models"
)

const pricingConfigKey = "pricing"

type PricingRepository interface {
	GetPriceRule(start, end models.Region) (models.PriceRule, bool, error)
	ListPriceRules() ([]models.PriceRule, error)
	UpsertPriceRule(rule models.PriceRule) error
	DeletePriceRule(id string) error

	ListLocationKeywords() ([]models.LocationKeyword, error)
	UpsertLocationKeyword(kw models.LocationKeyword) error
	DeleteLocationKeyword(id string) error

	GetPricingConfig() (models.PricingConfig, error)
	SavePricingConfig(cfg models.PricingConfig) error
}

type pricingRepository struct {
	db *sql.DB
}

func NewPricingRepository(db *sql.DB) PricingRepository {
	return &pricingRepository{db: db}
}

func (r *pricingRepository) GetPriceRule(start, end models.Region) (models.PriceRule, bool, error) {
	var rule models.PriceRule
	err := r.db.QueryRow(
		`SELECT id, start_region, end_region, base_price, order_fee
		 FROM price_rules WHERE start_region = $1 AND end_region = $2`,
		start, end,
	).Scan(&rule.ID, &rule.StartRegion, &rule.EndRegion, &rule.BasePrice, &rule.OrderFee)
	if err == sql.ErrNoRows {
		return rule, false, nil
	}
	if err != nil {
		return rule, false, err
	}
	return rule, true, nil
}

func (r *pricingRepository) ListPriceRules() ([]models.PriceRule, error) {
	rows, err := r.db.Query(
		`SELECT id, start_region, end_region, base_price, order_fee
		 FROM price_rules ORDER BY start_region, end_region`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	rules := []models.PriceRule{}
	for rows.Next() {
		var rule models.PriceRule
		if err := rows.Scan(&rule.ID, &rule.StartRegion, &rule.EndRegion, &rule.BasePrice, &rule.OrderFee); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func (r *pricingRepository) UpsertPriceRule(rule models.PriceRule) error {
	_, err := r.db.Exec(
		`INSERT INTO price_rules (id, start_region, end_region, base_price, order_fee)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (start_region, end_region) DO UPDATE
		 SET base_price = EXCLUDED.base_price, order_fee = EXCLUDED.order_fee`,
		rule.ID, rule.StartRegion, rule.EndRegion, rule.BasePrice, rule.OrderFee)
	return err
}

func (r *pricingRepository) DeletePriceRule(id string) error {
	_, err := r.db.Exec(`DELETE FROM price_rules WHERE id = $1`, id)
	return err
}

func (r *pricingRepository) ListLocationKeywords() ([]models.LocationKeyword, error) {
	rows, err := r.db.Query(`SELECT id, keyword, region_id FROM location_keywords`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	kws := []models.LocationKeyword{}
	for rows.Next() {
		var kw models.LocationKeyword
		if err := rows.Scan(&kw.ID, &kw.Keyword, &kw.RegionID); err != nil {
			return nil, err
		}
		kws = append(kws, kw)
	}
	return kws, rows.Err()
}

func (r *pricingRepository) UpsertLocationKeyword(kw models.LocationKeyword) error {
	_, err := r.db.Exec(
		`INSERT INTO location_keywords (id, keyword, region_id) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET keyword = EXCLUDED.keyword, region_id = EXCLUDED.region_id`,
		kw.ID, kw.Keyword, kw.RegionID)
	return err
}

func (r *pricingRepository) DeleteLocationKeyword(id string) error {
	_, err := r.db.Exec(`DELETE FROM location_keywords WHERE id = $1`, id)
	return err
}

// GetPricingConfig cai nos valores padrão quando o admin nunca salvou nada.
func (r *pricingRepository) GetPricingConfig() (models.PricingConfig, error) {
	var raw []byte
	err := r.db.QueryRow(`SELECT value FROM config WHERE key = $1`, pricingConfigKey).Scan(&raw)
	if err == sql.ErrNoRows {
		return models.DefaultPricingConfig(), nil
	}
	if err != nil {
		return models.PricingConfig{}, err
	}
	cfg := models.DefaultPricingConfig()
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return models.PricingConfig{}, err
	}
	return cfg, nil
}

func (r *pricingRepository) SavePricingConfig(cfg models.PricingConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(
		`INSERT INTO config (key, value, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		pricingConfigKey, raw)
	return err
}
