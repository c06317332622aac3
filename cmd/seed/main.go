// Package main seeds demo plants with vault-encrypted credentials.
//
// Development tooling only: production plants are created by the management
// API, which lives in another service.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/adapter"
	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/config"
	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/domain"
	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/infrastructure"
	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/pkg/logger"
	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/vault"
)

type seedPlant struct {
	ID            string
	Name          string
	Brand         domain.Brand
	Timezone      string
	VendorPlantID string
	Credentials   map[string]string
}

var seedPlants = []seedPlant{
	{
		ID: "plant-solis-001", Name: "Fazenda Boa Vista", Brand: domain.BrandSolis,
		Timezone: "America/Sao_Paulo", VendorPlantID: "1298491919448976384",
		Credentials: map[string]string{"keyId": "demo-key", "keySecret": "demo-secret"},
	},
	{
		ID: "plant-huawei-001", Name: "Sítio das Palmeiras", Brand: domain.BrandHuawei,
		Timezone: "America/Sao_Paulo", VendorPlantID: "NE=33659745",
		Credentials: map[string]string{"userName": "demo-user", "systemCode": "demo-code"},
	},
	{
		ID: "plant-goodwe-001", Name: "Granja Santa Rita", Brand: domain.BrandGoodwe,
		Timezone: "America/Fortaleza", VendorPlantID: "6ef62eb2-7959-4c49-ad0a-0ce75565023a",
		Credentials: map[string]string{"account": "demo@example.com", "password": "demo-pass"},
	},
	{
		ID: "plant-dele-001", Name: "Armazém União", Brand: domain.BrandDele,
		Timezone: "America/Recife", VendorPlantID: "du-40021",
		Credentials: map[string]string{"apiToken": "demo-token"},
	},
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(cfg.Log.Level, "console"); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	v, err := vault.New(cfg.Vault.MasterKeyCurrent, cfg.Vault.MasterKeyPrevious)
	if err != nil {
		return fmt.Errorf("init vault: %w", err)
	}

	ctx := context.Background()
	db, err := infrastructure.NewDatabaseClients(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer db.Close()

	// In mock mode, verify every fixture parses before writing anything.
	if cfg.Integration.MockMode {
		registry, err := adapter.NewMockRegistry(cfg.Integration.FixtureDir)
		if err != nil {
			return fmt.Errorf("verify fixtures: %w", err)
		}
		for _, brand := range registry.Brands() {
			a, _ := registry.Lookup(brand)
			if _, err := a.TestConnection(ctx, nil); err != nil {
				return fmt.Errorf("test connection for %s: %w", brand, err)
			}
		}
	}

	for _, p := range seedPlants {
		if err := insertPlant(ctx, db.DB, v, p); err != nil {
			return fmt.Errorf("seed plant %s: %w", p.ID, err)
		}
		logger.Info("Seeded plant",
			zap.String("plant_id", p.ID),
			zap.String("brand", string(p.Brand)),
		)
	}
	logger.Info("Seed complete", zap.Int("plants", len(seedPlants)))
	return nil
}

func insertPlant(ctx context.Context, db *sql.DB, v *vault.Vault, p seedPlant) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO plants (id, name, brand, timezone, integration_status, status, vendor_plant_id)
		 VALUES ($1, $2, $3, $4, 'ACTIVE', 'GREY', $5)
		 ON CONFLICT (id) DO NOTHING`,
		p.ID, p.Name, p.Brand, p.Timezone, p.VendorPlantID,
	)
	if err != nil {
		return fmt.Errorf("insert plant row: %w", err)
	}

	plaintext, err := json.Marshal(p.Credentials)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}
	blob, err := v.Encrypt(plaintext)
	vault.Zero(plaintext)
	if err != nil {
		return fmt.Errorf("encrypt credentials: %w", err)
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO credentials (plant_id, brand, encrypted_blob, key_version)
		 VALUES ($1, $2, $3, 1)
		 ON CONFLICT (plant_id, brand) DO UPDATE SET
			encrypted_blob = EXCLUDED.encrypted_blob,
			updated_at = now()`,
		p.ID, p.Brand, blob,
	)
	if err != nil {
		return fmt.Errorf("insert credential row: %w", err)
	}
	return nil
}
