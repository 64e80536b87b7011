package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"fulfillment/internal/pkg/apperr"
	"fulfillment/internal/pkg/bootstrap"
	"fulfillment/internal/pkg/money"
	couponapp "fulfillment/internal/service/coupon/application"
	coupondomain "fulfillment/internal/service/coupon/domain"
	inventoryapp "fulfillment/internal/service/inventory/application"
	inventorydomain "fulfillment/internal/service/inventory/domain"
	pointapp "fulfillment/internal/service/point/application"
)

// seed 写入配置里的初始数据。已存在的商品和用户跳过，券只发给本次新建的用户，重启不会重复发放。
func seed(ctx context.Context, cfg bootstrap.SeedConfig, be *backend,
	inventory *inventoryapp.Ledger, coupons *couponapp.Ledger, points *pointapp.Ledger) error {
	now := time.Now()

	for _, p := range cfg.Products {
		_, err := inventory.GetProduct(ctx, p.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return err
		}
		product, err := toProduct(p, now)
		if err != nil {
			return err
		}
		if err := be.tx.WithinTx(ctx, func(ctx context.Context) error {
			return be.products.Create(ctx, product)
		}); err != nil {
			return err
		}
	}

	created := make(map[string]bool)
	for _, u := range cfg.Users {
		exists, err := be.users.Exists(ctx, u.ID)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if err := be.users.Register(ctx, u.ID, u.Name); err != nil {
			return err
		}
		if err := points.Open(ctx, u.ID, u.Points); err != nil {
			return err
		}
		created[u.ID] = true
	}

	for _, c := range cfg.Coupons {
		if !created[c.UserID] {
			continue
		}
		coupon, err := toCoupon(c, now)
		if err != nil {
			return err
		}
		if err := coupons.Issue(ctx, coupon); err != nil {
			return err
		}
	}

	log.Info().Int("products", len(cfg.Products)).Int("new_users", len(created)).Msg("seed data applied")
	return nil
}

func toProduct(p bootstrap.SeedProduct, now time.Time) (*inventorydomain.Product, error) {
	price, err := money.Parse(p.Price)
	if err != nil {
		return nil, err
	}
	stock, err := money.NewQuantity(p.Stock)
	if err != nil {
		return nil, err
	}
	return &inventorydomain.Product{ID: p.ID, Name: p.Name, Price: price, Stock: stock, UpdatedAt: now}, nil
}

func toCoupon(c bootstrap.SeedCoupon, now time.Time) (*coupondomain.Coupon, error) {
	var discount coupondomain.Discount
	switch coupondomain.DiscountType(strings.ToUpper(c.Type)) {
	case coupondomain.DiscountFixedAmount:
		amount, err := money.Parse(c.Value)
		if err != nil {
			return nil, err
		}
		discount = coupondomain.FixedAmount(amount)
	case coupondomain.DiscountFixedRate:
		rate, err := decimal.NewFromString(c.Value)
		if err != nil {
			return nil, fmt.Errorf("coupon %q: invalid rate %q", c.Name, c.Value)
		}
		var maxAmount *money.Money
		if c.MaxAmount != "" {
			m, err := money.Parse(c.MaxAmount)
			if err != nil {
				return nil, err
			}
			maxAmount = &m
		}
		if discount, err = coupondomain.FixedRate(rate, maxAmount); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("coupon %q: unknown type %q", c.Name, c.Type)
	}

	minOrder := money.Zero()
	if c.MinOrderAmount != "" {
		m, err := money.Parse(c.MinOrderAmount)
		if err != nil {
			return nil, err
		}
		minOrder = m
	}
	validFor := c.ValidFor
	if validFor <= 0 {
		validFor = 30 * 24 * time.Hour
	}
	return coupondomain.NewCoupon(c.UserID, c.Name, discount, minOrder, now.Add(validFor), now)
}
