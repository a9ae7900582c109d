// Package transfer converts vehicle collections to and from the bulk
// formats the app exchanges with spreadsheets and backups: CSV, JSON and a
// ZIP carrying both.
//
// Imports are forgiving. Header names are matched through aliases regardless
// of case and spacing, a leading SOLD/TRADED/STORED keyword in the notes
// column sets the status, and dates go through the flexible date parser.
package transfer

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/tbourn/go-garage-backend/internal/domain"
	"github.com/tbourn/go-garage-backend/internal/parse"
	"github.com/tbourn/go-garage-backend/internal/retail"
)

// Canonical field names, in export column order.
const (
	FieldYear             = "year"
	FieldMake             = "make"
	FieldModel            = "model"
	FieldNickname         = "nickname"
	FieldType             = "type"
	FieldVIN              = "vin"
	FieldColor            = "color"
	FieldMileage          = "mileage"
	FieldPlate            = "plate"
	FieldStatus           = "status"
	FieldPurchaseDate     = "purchase_date"
	FieldPurchasePrice    = "purchase_price"
	FieldTabExpiration    = "tab_expiration"
	FieldNeedsMaintenance = "needs_maintenance"
	FieldSaleDate         = "sale_date"
	FieldSalePrice        = "sale_price"
	FieldNotes            = "notes"
)

// Columns is the export column order.
var Columns = []string{
	FieldYear, FieldMake, FieldModel, FieldNickname, FieldType, FieldVIN,
	FieldColor, FieldMileage, FieldPlate, FieldStatus, FieldPurchaseDate,
	FieldPurchasePrice, FieldTabExpiration, FieldNeedsMaintenance,
	FieldSaleDate, FieldSalePrice, FieldNotes,
}

// aliasSpellings lists the normalized header spellings accepted for each
// canonical field besides the field name itself.
var aliasSpellings = map[string][]string{
	FieldYear:             {"yr", "model year"},
	FieldMake:             {"manufacturer", "brand"},
	FieldNickname:         {"name", "nick", "nick name"},
	FieldType:             {"vehicle type", "category", "kind"},
	FieldVIN:              {"vin number", "serial", "serial number", "hin"},
	FieldColor:            {"colour", "paint"},
	FieldMileage:          {"miles", "odometer", "odo"},
	FieldPlate:            {"license plate", "plate number", "license", "tag"},
	FieldStatus:           {"state"},
	FieldPurchaseDate:     {"purchased", "date purchased", "bought", "acquired"},
	FieldPurchasePrice:    {"price paid", "cost", "purchase cost"},
	FieldTabExpiration:    {"tabs", "tab expires", "tabs expire", "registration", "registration expiration", "tag expiration"},
	FieldNeedsMaintenance: {"maintenance", "needs service", "service due"},
	FieldSaleDate:         {"sold date", "date sold"},
	FieldSalePrice:        {"sold price", "sold for"},
	FieldNotes:            {"comments", "status notes", "note", "description"},
}

// aliases maps a normalized header spelling to its canonical field.
var aliases = func() map[string]string {
	m := make(map[string]string)
	for field, spellings := range aliasSpellings {
		for _, s := range spellings {
			m[s] = field
		}
	}
	return m
}()

var headerSepRE = regexp.MustCompile(`[^a-z0-9]+`)

// CanonicalField maps a header such as "Tab Expiration", "tab_expiration" or
// " TABS " to its canonical field. ok is false for unknown headers.
func CanonicalField(header string) (string, bool) {
	h := strings.TrimSpace(headerSepRE.ReplaceAllString(strings.ToLower(header), " "))
	if h == "" {
		return "", false
	}
	canon := strings.ReplaceAll(h, " ", "_")
	for _, c := range Columns {
		if c == canon {
			return c, true
		}
	}
	f, ok := aliases[h]
	return f, ok
}

// Row is one imported record keyed by canonical field.
type Row map[string]string

// RowError describes a row that could not be imported. Line is 1-based and
// counts the header for CSV input.
type RowError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// ToVehicle converts a row. Unparseable numbers and dates are dropped rather
// than failing the row; only a row without year, make and model is rejected.
func ToVehicle(r Row, now time.Time) (domain.Vehicle, bool) {
	v := domain.Vehicle{
		Make:     strings.TrimSpace(r[FieldMake]),
		Model:    strings.TrimSpace(r[FieldModel]),
		Nickname: strings.TrimSpace(r[FieldNickname]),
		VIN:      strings.ToUpper(strings.TrimSpace(r[FieldVIN])),
		Color:    strings.TrimSpace(r[FieldColor]),
		Plate:    strings.TrimSpace(r[FieldPlate]),
		Type:     vehicleType(r[FieldType]),
	}
	if y, err := strconv.Atoi(strings.TrimSpace(r[FieldYear])); err == nil && y > 1800 && y < 3000 {
		v.Year = y
	}
	if v.Year == 0 && v.Make == "" && v.Model == "" {
		return domain.Vehicle{}, false
	}

	v.Mileage = parseInt(r[FieldMileage])
	v.PurchasePrice = parseMoney(r[FieldPurchasePrice])
	v.SalePrice = parseMoney(r[FieldSalePrice])
	v.NeedsMaintenance = parseBool(r[FieldNeedsMaintenance])
	v.PurchaseDate = parseDate(r[FieldPurchaseDate], now)
	v.TabExpiration = parseDate(r[FieldTabExpiration], now)
	v.SaleDate = parseDate(r[FieldSaleDate], now)

	sn := parse.ParseStatusNotesAt(r[FieldNotes], now)
	v.Status = sn.Status
	v.Notes = sn.Notes
	if sn.Sale != nil {
		v.SaleNotes = sn.Sale.Notes
		if v.SaleDate == nil && sn.Sale.Date != "" {
			v.SaleDate = parseDate(sn.Sale.Date, now)
		}
		if v.SalePrice == nil {
			v.SalePrice = sn.Sale.Amount
		}
	}
	if st := normalizeStatus(r[FieldStatus]); st != "" && sn.Status == parse.StatusActive {
		v.Status = st
	}
	return v, true
}

// FromVehicle renders v as a row. Sale details are folded into the notes
// column the way ParseStatusNotes reads them back.
func FromVehicle(v domain.Vehicle) Row {
	r := Row{
		FieldMake:     v.Make,
		FieldModel:    v.Model,
		FieldNickname: v.Nickname,
		FieldType:     v.Type,
		FieldVIN:      v.VIN,
		FieldColor:    v.Color,
		FieldPlate:    v.Plate,
		FieldStatus:   v.Status,
	}
	if v.Year > 0 {
		r[FieldYear] = strconv.Itoa(v.Year)
	}
	if v.Mileage != nil {
		r[FieldMileage] = strconv.Itoa(*v.Mileage)
	}
	r[FieldPurchasePrice] = formatMoney(v.PurchasePrice)
	r[FieldSalePrice] = formatMoney(v.SalePrice)
	r[FieldPurchaseDate] = formatDate(v.PurchaseDate)
	r[FieldTabExpiration] = formatDate(v.TabExpiration)
	r[FieldSaleDate] = formatDate(v.SaleDate)
	if v.NeedsMaintenance {
		r[FieldNeedsMaintenance] = "yes"
	} else {
		r[FieldNeedsMaintenance] = "no"
	}

	var sale *parse.SaleInfo
	if v.Status == parse.StatusSold || v.Status == parse.StatusTraded {
		sale = &parse.SaleInfo{Date: formatDate(v.SaleDate), Amount: v.SalePrice, Notes: v.SaleNotes}
	}
	r[FieldNotes] = parse.FormatStatusNotes(v.Status, sale, v.Notes)
	return r
}

func vehicleType(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		return string(retail.Car)
	case "bike", "moto", "motorbike", "motorcycles":
		return string(retail.Motorcycle)
	}
	return string(retail.ParseVehicleType(s))
}

func normalizeStatus(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sold":
		return parse.StatusSold
	case "traded", "trade":
		return parse.StatusTraded
	case "stored", "storage":
		return parse.StatusStored
	case "active":
		return parse.StatusActive
	}
	return ""
}

func parseInt(s string) *int {
	s = strings.NewReplacer(",", "", "miles", "", "mi", "", " ", "").Replace(strings.ToLower(s))
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

func parseMoney(s string) *float64 {
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return nil
	}
	return &f
}

func formatMoney(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "y", "yes", "true", "x", "needed", "due":
		return true
	}
	return false
}

func parseDate(s string, now time.Time) *datatypes.Date {
	t, ok := parse.ParseFlexibleDateAt(s, now)
	if !ok {
		return nil
	}
	return domain.NewDate(t)
}

func formatDate(d *datatypes.Date) string {
	t, ok := domain.Date(d)
	if !ok {
		return ""
	}
	return parse.FormatDateForDB(t)
}
