package output

import (
	"encoding/csv"
	"os"
	"strconv"
	"strings"

	"github.com/law-makers/lotscout/pkg/models"
)

// CSVHeader is the column order of SaveCSV
var CSVHeader = []string{
	"lot_id", "year", "make", "model", "damage", "location_state", "location_text",
	"location_source", "odometer", "current_bid", "auction_countdown", "title_status",
	"condition", "sale_info", "url", "images", "query",
}

// SaveCSV writes one row per record. Images are joined with '|'.
func SaveCSV(records []*models.VehicleRecord, filepath string) error {
	file, err := os.Create(filepath)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(CSVHeader); err != nil {
		return err
	}
	for _, r := range records {
		if r == nil {
			continue
		}
		if err := writer.Write(row(r)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func row(r *models.VehicleRecord) []string {
	return []string{
		r.LotID,
		optInt(r.Year),
		r.Make,
		r.Model,
		r.Damage,
		r.LocationState,
		r.LocationText,
		r.LocationSource.String(),
		optInt(r.Odometer),
		optInt64(r.CurrentBid),
		r.AuctionCountdown,
		r.TitleStatus,
		r.Condition,
		r.SaleInfo,
		r.URL,
		strings.Join(r.Images, "|"),
		r.Query,
	}
}

func optInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func optInt64(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}
