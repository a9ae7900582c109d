// Package domain defines the persistence models for chat sessions, messages,
// research state and the vehicle collection they talk about. These types are
// mapped with GORM and shared by the repository and service layers.
package domain

import (
	"strconv"
	"time"

	"gorm.io/datatypes"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Chat is an assistant conversation owned by a user (a chat session). The
// title starts out derived from the first message and is later replaced by a
// generated summary.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - UserID: owner; indexed for listing.
//   - CollectionID: collection the session was opened against (optional).
//   - Title: human-readable title.
type Chat struct {
	ID           string    `json:"id"            gorm:"type:char(36);primaryKey"`
	UserID       string    `json:"user_id"       gorm:"type:varchar(64);not null;index:idx_user_chats"`
	CollectionID string    `json:"collection_id" gorm:"type:varchar(64);index"`
	Title        string    `json:"title"         gorm:"type:varchar(255);not null;default:'New chat'"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for Chat.
func (Chat) TableName() string { return "chats" }

// Message is a single append-only utterance within a chat. Assistant messages
// may carry Metadata describing a research payload for rich rendering and for
// resuming the research flow.
type Message struct {
	ID        string         `json:"id"                 gorm:"type:char(36);primaryKey"`
	ChatID    string         `json:"chat_id"            gorm:"type:char(36);not null;index:idx_chat_msgs,priority:1"`
	Role      string         `json:"role"               gorm:"type:varchar(16);not null;check:role IN ('user','assistant')"`
	Content   string         `json:"content"            gorm:"type:text;not null"`
	Metadata  datatypes.JSON `json:"metadata,omitempty" swaggertype:"object"`
	CreatedAt time.Time      `json:"created_at"         gorm:"index:idx_chat_msgs,priority:2"`
	UpdatedAt time.Time      `json:"updated_at"`

	// Chat is the parent session. Messages are cascade-deleted with it.
	Chat Chat `json:"-" gorm:"foreignKey:ChatID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// ResearchSession holds the explicit research state machine for one chat.
// Status mirrors State.status so it can be queried without decoding JSON.
type ResearchSession struct {
	ChatID    string         `json:"chat_id"  gorm:"type:char(36);primaryKey"`
	UserID    string         `json:"user_id"  gorm:"type:varchar(64);not null;index"`
	Status    string         `json:"status"   gorm:"type:varchar(32);not null;default:'idle'"`
	State     datatypes.JSON `json:"state"    swaggertype:"object"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`

	Chat Chat `json:"-" gorm:"foreignKey:ChatID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ResearchSession.
func (ResearchSession) TableName() string { return "research_sessions" }

// Collection groups vehicles owned by a user.
type Collection struct {
	ID        string    `json:"id"       gorm:"type:varchar(64);primaryKey"`
	OwnerID   string    `json:"owner_id" gorm:"type:varchar(64);not null;index"`
	Name      string    `json:"name"     gorm:"type:varchar(255);not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Collection.
func (Collection) TableName() string { return "collections" }

// Vehicle is a single record in a collection. Dates are calendar dates
// (YYYY-MM-DD); nil means unknown.
type Vehicle struct {
	ID           string `json:"id"            gorm:"type:char(36);primaryKey"`
	CollectionID string `json:"collection_id" gorm:"type:varchar(64);not null;index"`
	UserID       string `json:"user_id"       gorm:"type:varchar(64);not null;index"`

	Type     string `json:"type"               gorm:"type:varchar(16);not null;default:'car'"`
	Year     int    `json:"year,omitempty"`
	Make     string `json:"make"               gorm:"type:varchar(64)"`
	Model    string `json:"model"              gorm:"type:varchar(128)"`
	Nickname string `json:"nickname,omitempty" gorm:"type:varchar(128)"`
	VIN      string `json:"vin,omitempty"      gorm:"column:vin;type:varchar(32);index"`
	Color    string `json:"color,omitempty"    gorm:"type:varchar(64)"`
	Mileage  *int   `json:"mileage,omitempty"`
	Plate    string `json:"plate,omitempty"    gorm:"type:varchar(32)"`

	Status    string          `json:"status"               gorm:"type:varchar(16);not null;default:'active'"`
	SaleDate  *datatypes.Date `json:"sale_date,omitempty"  swaggertype:"string"`
	SalePrice *float64        `json:"sale_price,omitempty"`
	SaleNotes string          `json:"sale_notes,omitempty" gorm:"type:text"`

	PurchaseDate     *datatypes.Date `json:"purchase_date,omitempty"  swaggertype:"string"`
	PurchasePrice    *float64        `json:"purchase_price,omitempty"`
	TabExpiration    *datatypes.Date `json:"tab_expiration,omitempty" swaggertype:"string"`
	NeedsMaintenance bool            `json:"needs_maintenance"`
	Notes            string          `json:"notes,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Vehicle.
func (Vehicle) TableName() string { return "vehicles" }

// DisplayName renders "2019 Honda CBR650F" (or the nickname when there is
// nothing else to go on).
func (v Vehicle) DisplayName() string {
	s := v.Make
	if v.Model != "" {
		if s != "" {
			s += " "
		}
		s += v.Model
	}
	if v.Year > 0 {
		if s != "" {
			s = strconv.Itoa(v.Year) + " " + s
		} else {
			s = strconv.Itoa(v.Year)
		}
	}
	if s == "" {
		return v.Nickname
	}
	return s
}

// Date returns the time value of a nullable date column.
func Date(d *datatypes.Date) (time.Time, bool) {
	if d == nil {
		return time.Time{}, false
	}
	t := time.Time(*d)
	return t, !t.IsZero()
}

// NewDate wraps t as a nullable date column; the zero time yields nil.
func NewDate(t time.Time) *datatypes.Date {
	if t.IsZero() {
		return nil
	}
	d := datatypes.Date(time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC))
	return &d
}
