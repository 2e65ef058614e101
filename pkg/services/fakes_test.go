package services

import (
	"encoding/json"
	"sync"
	"time"

	"p7s/pkg/models"

	"google.golang.org/protobuf/proto"
)

// fakeCache guarda bytes em memória, igual ao Redis de verdade faria.
type fakeCache struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{items: map[string][]byte{}}
}

func (c *fakeCache) Get(key string, dest interface{}) bool {
	c.mu.Lock()
	raw, ok := c.items[key]
	c.mu.Unlock()
	if !ok {
		return false
	}
	return json.Unmarshal(raw, dest) == nil
}

func (c *fakeCache) Set(key string, value interface{}, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	c.mu.Lock()
	c.items[key] = raw
	c.mu.Unlock()
}

func (c *fakeCache) GetProto(key string, dest proto.Message) bool {
	c.mu.Lock()
	raw, ok := c.items[key]
	c.mu.Unlock()
	if !ok {
		return false
	}
	return proto.Unmarshal(raw, dest) == nil
}

func (c *fakeCache) SetProto(key string, msg proto.Message, ttl time.Duration) {
	raw, err := proto.Marshal(msg)
	if err != nil {
		return
	}
	c.mu.Lock()
	c.items[key] = raw
	c.mu.Unlock()
}

func (c *fakeCache) Remember(key string, ttl time.Duration, dest interface{}, load func() (interface{}, error)) error {
	if c.Get(key, dest) {
		return nil
	}
	v, err := load()
	if err != nil {
		return err
	}
	c.Set(key, v, ttl)
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

func (c *fakeCache) Del(keys ...string) {
	c.mu.Lock()
	for _, k := range keys {
		delete(c.items, k)
	}
	c.mu.Unlock()
}

func (c *fakeCache) DelPattern(pattern string) {
	c.mu.Lock()
	c.items = map[string][]byte{}
	c.mu.Unlock()
}

type fakePricingRepo struct {
	mu       sync.Mutex
	rules    map[string]models.PriceRule
	keywords []models.LocationKeyword
	config   *models.PricingConfig
}

func newFakePricingRepo() *fakePricingRepo {
	return &fakePricingRepo{rules: map[string]models.PriceRule{}}
}

func ruleKey(start, end models.Region) string {
	return string(start) + "|" + string(end)
}

func (r *fakePricingRepo) GetPriceRule(start, end models.Region) (models.PriceRule, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rule, ok := r.rules[ruleKey(start, end)]
	return rule, ok, nil
}

func (r *fakePricingRepo) ListPriceRules() ([]models.PriceRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.PriceRule{}
	for _, rule := range r.rules {
		out = append(out, rule)
	}
	return out, nil
}

func (r *fakePricingRepo) UpsertPriceRule(rule models.PriceRule) error {
	r.mu.Lock()
	r.rules[ruleKey(rule.StartRegion, rule.EndRegion)] = rule
	r.mu.Unlock()
	return nil
}

func (r *fakePricingRepo) DeletePriceRule(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, rule := range r.rules {
		if rule.ID == id {
			delete(r.rules, k)
		}
	}
	return nil
}

func (r *fakePricingRepo) ListLocationKeywords() ([]models.LocationKeyword, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.LocationKeyword{}, r.keywords...), nil
}

func (r *fakePricingRepo) UpsertLocationKeyword(kw models.LocationKeyword) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.keywords {
		if r.keywords[i].ID == kw.ID {
			r.keywords[i] = kw
			return nil
		}
	}
	r.keywords = append(r.keywords, kw)
	return nil
}

func (r *fakePricingRepo) DeleteLocationKeyword(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.keywords {
		if r.keywords[i].ID == id {
			r.keywords = append(r.keywords[:i], r.keywords[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *fakePricingRepo) GetPricingConfig() (models.PricingConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.config == nil {
		return models.DefaultPricingConfig(), nil
	}
	return *r.config, nil
}

func (r *fakePricingRepo) SavePricingConfig(cfg models.PricingConfig) error {
	r.mu.Lock()
	r.config = &cfg
	r.mu.Unlock()
	return nil
}
