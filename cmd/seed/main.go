package main

import (
	"fmt"

	"github.com/cartline-next/internal/config"
	"github.com/cartline-next/internal/logger"
	"github.com/cartline-next/internal/models"

	"github.com/shopspring/decimal"
)

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	// 添加商品
	products := []models.Product{
		{
			TitleJSON: models.JSON(map[string]interface{}{
				"zh-CN": "无线蓝牙耳机",
				"zh-TW": "無線藍牙耳機",
				"en-US": "Wireless Bluetooth Earphones",
			}),
			Slug:          "wireless-earphones",
			PriceAmount:   models.NewMoneyFromDecimal(decimal.NewFromFloat(99.99)),
			PriceCurrency: "USD",
			Variants:      models.StringArray([]string{"black", "white"}),
			SortOrder:     400,
			IsActive:      true,
		},
		{
			TitleJSON: models.JSON(map[string]interface{}{
				"zh-CN": "智能手表",
				"zh-TW": "智能手錶",
				"en-US": "Smart Watch",
			}),
			Slug:          "smart-watch",
			PriceAmount:   models.NewMoneyFromDecimal(decimal.NewFromFloat(199.99)),
			PriceCurrency: "USD",
			Variants:      models.StringArray([]string{"40mm", "44mm"}),
			SortOrder:     300,
			IsActive:      true,
		},
		{
			TitleJSON: models.JSON(map[string]interface{}{
				"zh-CN": "便携充电宝",
				"zh-TW": "便攜充電寶",
				"en-US": "Portable Power Bank",
			}),
			Slug:          "power-bank",
			PriceAmount:   models.NewMoneyFromDecimal(decimal.NewFromFloat(49.99)),
			PriceCurrency: "USD",
			SortOrder:     200,
			IsActive:      true,
		},
		{
			TitleJSON: models.JSON(map[string]interface{}{
				"zh-CN": "多功能背包",
				"zh-TW": "多功能背包",
				"en-US": "Multi-function Backpack",
			}),
			Slug:          "backpack",
			PriceAmount:   models.NewMoneyFromDecimal(decimal.NewFromFloat(79.99)),
			PriceCurrency: "USD",
			Variants:      models.StringArray([]string{"grey", "navy"}),
			SortOrder:     100,
			IsActive:      true,
		},
		{
			TitleJSON: models.JSON(map[string]interface{}{
				"zh-CN": "演示商品-已下架",
				"zh-TW": "演示商品-已下架",
				"en-US": "Demo Product - Inactive",
			}),
			Slug:          "demo-inactive",
			PriceAmount:   models.NewMoneyFromDecimal(decimal.NewFromFloat(9.99)),
			PriceCurrency: "USD",
			SortOrder:     10,
			IsActive:      false,
		},
	}

	for _, prod := range products {
		var existing models.Product
		if err := models.DB.Where("slug = ?", prod.Slug).First(&existing).Error; err != nil {
			if err := models.DB.Create(&prod).Error; err != nil {
				stdLog.Printf("Failed to create product %s: %v", prod.Slug, err)
			} else {
				stdLog.Printf("Created product: %s", prod.Slug)
			}
		} else {
			existing.TitleJSON = prod.TitleJSON
			existing.PriceAmount = prod.PriceAmount
			existing.PriceCurrency = prod.PriceCurrency
			existing.Variants = prod.Variants
			existing.IsActive = prod.IsActive
			existing.SortOrder = prod.SortOrder
			if err := models.DB.Save(&existing).Error; err != nil {
				stdLog.Printf("Failed to update product %s: %v", prod.Slug, err)
			} else {
				stdLog.Printf("Updated product: %s", prod.Slug)
			}
		}
	}

	fmt.Println("\n✅ Seed data created successfully!")
	fmt.Println("Summary:")
	fmt.Println("- 5 Products (含下架演示商品)")
}
