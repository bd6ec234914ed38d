package output

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/law-makers/lotscout/pkg/models"
)

// Export is the on-disk JSON envelope
type Export struct {
	GeneratedAt time.Time               `json:"generated_at"`
	Count       int                     `json:"count"`
	Data        []*models.VehicleRecord `json:"data"`
}

// SaveJSON writes records as an indented JSON export to filepath.
func SaveJSON(records []*models.VehicleRecord, filepath string) error {
	if records == nil {
		records = []*models.VehicleRecord{}
	}
	content, err := json.MarshalIndent(Export{
		GeneratedAt: time.Now().UTC(),
		Count:       len(records),
		Data:        records,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath, content, 0644)
}

// LoadJSON reads an export written by SaveJSON
func LoadJSON(filepath string) ([]*models.VehicleRecord, error) {
	content, err := os.ReadFile(filepath)
	if err != nil {
		return nil, err
	}
	var exp Export
	if err := json.Unmarshal(content, &exp); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath, err)
	}
	if exp.Data == nil {
		exp.Data = []*models.VehicleRecord{}
	}
	return exp.Data, nil
}
