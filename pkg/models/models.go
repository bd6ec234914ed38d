package models

import (
	"fmt"
	"time"
)

// Unknown marks a field the extractors could not resolve.
const Unknown = "unknown"

// LocationSource identifies which signal set a record's location.
// Higher values outrank lower ones.
type LocationSource int

const (
	SourceNone LocationSource = iota
	SourceHint
	SourceGeneral
	SourceLane
	SourceSaleDoc
)

// String returns the wire name of the source
func (s LocationSource) String() string {
	switch s {
	case SourceHint:
		return "hint"
	case SourceGeneral:
		return "general"
	case SourceLane:
		return "lane"
	case SourceSaleDoc:
		return "sale_doc"
	default:
		return ""
	}
}

// MarshalText implements encoding.TextMarshaler
func (s LocationSource) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *LocationSource) UnmarshalText(b []byte) error {
	switch string(b) {
	case "hint":
		*s = SourceHint
	case "general":
		*s = SourceGeneral
	case "lane":
		*s = SourceLane
	case "sale_doc":
		*s = SourceSaleDoc
	case "":
		*s = SourceNone
	default:
		return fmt.Errorf("unknown location source %q", string(b))
	}
	return nil
}

// VehicleRecord is one normalized auction listing
type VehicleRecord struct {
	LotID            string         `json:"lot_id"`
	Year             *int           `json:"year"`
	Make             string         `json:"make"`
	Model            string         `json:"model"`
	Damage           string         `json:"damage"`
	LocationState    string         `json:"location_state"`
	LocationText     string         `json:"location_text"`
	LocationSource   LocationSource `json:"location_source"`
	Odometer         *int           `json:"odometer"`
	CurrentBid       *int64         `json:"current_bid"`
	AuctionCountdown string         `json:"auction_countdown"`
	TitleStatus      string         `json:"title_status"`
	Condition        string         `json:"condition"`
	SaleInfo         string         `json:"sale_info"`
	URL              string         `json:"url"`
	Images           []string       `json:"images"`
	Query            string         `json:"query,omitempty"`
}

// NewVehicleRecord returns a record with every optional text field set to Unknown
func NewVehicleRecord(vehicleMake, vehicleModel string) *VehicleRecord {
	return &VehicleRecord{
		Make:             vehicleMake,
		Model:            vehicleModel,
		Damage:           Unknown,
		LocationState:    Unknown,
		LocationText:     Unknown,
		AuctionCountdown: Unknown,
		TitleStatus:      Unknown,
		Condition:        Unknown,
		SaleInfo:         Unknown,
		Images:           []string{},
	}
}

// SetLocation records a resolved location unless a higher-priority source
// already set one. It reports whether the record changed.
func (r *VehicleRecord) SetLocation(state, text string, src LocationSource) bool {
	if src < r.LocationSource || state == "" {
		return false
	}
	r.LocationState = state
	if text == "" {
		text = state
	}
	r.LocationText = text
	r.LocationSource = src
	return true
}

// Clone returns a deep copy of the record
func (r *VehicleRecord) Clone() *VehicleRecord {
	c := *r
	if r.Year != nil {
		y := *r.Year
		c.Year = &y
	}
	if r.Odometer != nil {
		o := *r.Odometer
		c.Odometer = &o
	}
	if r.CurrentBid != nil {
		b := *r.CurrentBid
		c.CurrentBid = &b
	}
	c.Images = append([]string(nil), r.Images...)
	return &c
}

// Page is a rendered document as returned by a Renderer
type Page struct {
	URL       string        `json:"url"`
	Title     string        `json:"title,omitempty"`
	HTML      string        `json:"html,omitempty"`
	Text      string        `json:"text,omitempty"`
	TimedOut  bool          `json:"timed_out"`
	FetchedAt time.Time     `json:"fetched_at"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Query is one configured search-results page
type Query struct {
	Name string `json:"name" yaml:"name"`
	URL  string `json:"url" yaml:"url"`
}

// RendererKind selects the Renderer backend
type RendererKind string

const (
	RendererChrome RendererKind = "chrome"
	RendererRod    RendererKind = "rod"
	RendererStatic RendererKind = "static"
)

// DetailPolicy controls when the orchestrator visits a lot's detail page
type DetailPolicy string

const (
	// DetailAlways confirms every extracted candidate against its detail page.
	DetailAlways DetailPolicy = "always"
	// DetailAuto visits the detail page only when the candidate hint is missing or disallowed.
	DetailAuto DetailPolicy = "auto"
)
