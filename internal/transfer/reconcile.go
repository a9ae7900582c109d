package transfer

import (
	"fmt"
	"strings"
	"time"

	"github.com/tbourn/go-garage-backend/internal/domain"
)

// Action is what an import does with one row.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
)

// Change is one planned write. For updates Vehicle carries the existing id
// and creation time with the imported fields applied.
type Change struct {
	Action  Action         `json:"action"`
	Line    int            `json:"line"`
	Vehicle domain.Vehicle `json:"vehicle"`
}

// Plan is the outcome of reconciling imported rows against a collection.
type Plan struct {
	Changes []Change   `json:"changes"`
	Skipped []RowError `json:"skipped,omitempty"`
}

// Counts returns the number of creates and updates.
func (p Plan) Counts() (created, updated int) {
	for _, c := range p.Changes {
		if c.Action == ActionCreate {
			created++
		} else {
			updated++
		}
	}
	return created, updated
}

// Reconcile matches rows against existing vehicles of the collection.
//
// A row with a VIN matches the existing vehicle with the same VIN. A row
// without one matches an existing vehicle with the same year, make and model
// (case-insensitive) that has no conflicting VIN. Each existing vehicle is
// matched at most once, so duplicate rows in one file create duplicates
// rather than overwriting each other.
func Reconcile(existing []domain.Vehicle, rows []Row, userID, collectionID string, now time.Time) Plan {
	used := make(map[string]bool, len(existing))
	var plan Plan

	for _, r := range rows {
		v, ok := ToVehicle(r, now)
		if !ok {
			plan.Skipped = append(plan.Skipped, RowError{Line: r.Line(), Message: "missing year, make and model"})
			continue
		}
		v.UserID, v.CollectionID = userID, collectionID

		if i := findMatch(existing, used, v); i >= 0 {
			cur := existing[i]
			used[cur.ID] = true
			plan.Changes = append(plan.Changes, Change{Action: ActionUpdate, Line: r.Line(), Vehicle: merge(cur, v, r)})
			continue
		}
		plan.Changes = append(plan.Changes, Change{Action: ActionCreate, Line: r.Line(), Vehicle: v})
	}
	return plan
}

func findMatch(existing []domain.Vehicle, used map[string]bool, v domain.Vehicle) int {
	if v.VIN != "" {
		for i, e := range existing {
			if !used[e.ID] && strings.EqualFold(e.VIN, v.VIN) {
				return i
			}
		}
	}
	for i, e := range existing {
		if used[e.ID] || (e.VIN != "" && v.VIN != "" && !strings.EqualFold(e.VIN, v.VIN)) {
			continue
		}
		if e.Year == v.Year && strings.EqualFold(e.Make, v.Make) && strings.EqualFold(e.Model, v.Model) {
			return i
		}
	}
	return -1
}

// merge overlays the fields present in the row onto cur. Columns absent from
// the import keep their stored values.
func merge(cur, in domain.Vehicle, r Row) domain.Vehicle {
	has := func(f string) bool {
		_, ok := r[f]
		return ok
	}
	out := cur

	str := []struct {
		field string
		dst   *string
		val   string
	}{
		{FieldMake, &out.Make, in.Make},
		{FieldModel, &out.Model, in.Model},
		{FieldNickname, &out.Nickname, in.Nickname},
		{FieldType, &out.Type, in.Type},
		{FieldVIN, &out.VIN, in.VIN},
		{FieldColor, &out.Color, in.Color},
		{FieldPlate, &out.Plate, in.Plate},
	}
	for _, s := range str {
		if has(s.field) {
			*s.dst = s.val
		}
	}
	if has(FieldYear) && in.Year > 0 {
		out.Year = in.Year
	}
	if has(FieldMileage) {
		out.Mileage = in.Mileage
	}
	if has(FieldPurchasePrice) {
		out.PurchasePrice = in.PurchasePrice
	}
	if has(FieldPurchaseDate) {
		out.PurchaseDate = in.PurchaseDate
	}
	if has(FieldTabExpiration) {
		out.TabExpiration = in.TabExpiration
	}
	if has(FieldNeedsMaintenance) {
		out.NeedsMaintenance = in.NeedsMaintenance
	}
	if has(FieldNotes) || has(FieldStatus) {
		out.Status = in.Status
		out.Notes = in.Notes
		out.SaleNotes = in.SaleNotes
	}
	if in.SaleDate != nil {
		out.SaleDate = in.SaleDate
	}
	if in.SalePrice != nil {
		out.SalePrice = in.SalePrice
	}
	return out
}

// Summary renders a one-line description of p for logs.
func (p Plan) Summary() string {
	c, u := p.Counts()
	return fmt.Sprintf("%d created, %d updated, %d skipped", c, u, len(p.Skipped))
}
