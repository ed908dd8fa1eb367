package testutil

import (
	"fmt"
	"strings"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	appinventory "github.com/erp/stocksync/internal/application/inventory"
	appintegration "github.com/erp/stocksync/internal/application/integration"
)

// Fixtures generates realistic request payloads from a seeded faker, so a failing
// run can be replayed with the same seed
type Fixtures struct {
	faker *gofakeit.Faker
}

// NewFixtures creates a generator for seed
func NewFixtures(seed uint64) *Fixtures {
	return &Fixtures{faker: gofakeit.New(seed)}
}

// Faker exposes the underlying generator
func (f *Fixtures) Faker() *gofakeit.Faker {
	return f.faker
}

// SKU returns a seller SKU such as "SKU-4821-KQ"
func (f *Fixtures) SKU() string {
	return fmt.Sprintf("SKU-%04d-%s", f.faker.Number(0, 9999), strings.ToUpper(f.faker.LetterN(2)))
}

// Barcode returns a 13 digit EAN-like barcode
func (f *Fixtures) Barcode() string {
	return f.faker.Numerify("869##########")
}

// CreateStockUnit returns a stock unit request for owner with the given opening quantity
func (f *Fixtures) CreateStockUnit(ownerID uuid.UUID, initial int64) appinventory.CreateStockUnitRequest {
	return appinventory.CreateStockUnitRequest{
		OwnerID:         ownerID,
		SKU:             f.SKU(),
		VariantID:       f.faker.RandomString([]string{"", "S", "M", "L", "XL"}),
		MinLevel:        int64(f.faker.Number(0, 10)),
		InitialQuantity: initial,
		Actor:           TestActor,
	}
}

// Reserve returns a reservation request against stockUnitID
func (f *Fixtures) Reserve(stockUnitID uuid.UUID, quantity int64) appinventory.ReserveRequest {
	return appinventory.ReserveRequest{
		StockUnitID:    stockUnitID,
		Quantity:       quantity,
		OrderReference: "ORD-" + f.faker.Numerify("########"),
		OriginPlatform: f.faker.RandomString([]string{"TRENDYOL", "HEPSIBURADA", "N11", "WEBSTORE"}),
	}
}

// Snapshot returns a marketplace record as a platform would report it
func (f *Fixtures) Snapshot(platform string) appintegration.SnapshotRequest {
	return appintegration.SnapshotRequest{
		Platform:      platform,
		RemoteID:      f.faker.UUID(),
		Barcode:       f.Barcode(),
		SKU:           f.SKU(),
		Name:          f.faker.ProductName(),
		Brand:         f.faker.Company(),
		Attributes:    map[string]string{"color": f.faker.Color()},
		ReportedStock: int64(f.faker.Number(0, 200)),
		ReportedPrice: decimal.NewFromFloat(f.faker.Price(10, 500)).Round(2),
		Status:        "ON_SALE",
	}
}
