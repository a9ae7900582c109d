package domain

import (
	"testing"
	"time"

	"gorm.io/datatypes"
)

func TestTableNames(t *testing.T) {
	cases := map[string]string{
		(Chat{}).TableName():            "chats",
		(Message{}).TableName():         "messages",
		(ResearchSession{}).TableName(): "research_sessions",
		(Collection{}).TableName():      "collections",
		(Vehicle{}).TableName():         "vehicles",
		(Idempotency{}).TableName():     "idempotency",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("TableName()=%q, want %q", got, want)
		}
	}
}

func TestMigrations_Indexes_AndCascades(t *testing.T) {
	db := newTestDB(t)
	if err := db.AutoMigrate(&Chat{}, &Message{}, &ResearchSession{}, &Collection{}, &Vehicle{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()
	if !m.HasIndex(&Chat{}, "idx_user_chats") {
		t.Fatalf("expected index idx_user_chats on chats")
	}
	if !m.HasIndex(&Message{}, "idx_chat_msgs") {
		t.Fatalf("expected index idx_chat_msgs on messages")
	}

	now := time.Now().UTC()
	if err := db.Create(&Chat{ID: "c1", UserID: "u1", Title: "T", CreatedAt: now, UpdatedAt: now}).Error; err != nil {
		t.Fatalf("insert chat: %v", err)
	}
	meta := datatypes.JSON(`{"type":"discovery","researchState":{"status":"awaiting_refinement"}}`)
	if err := db.Create(&Message{ID: "m1", ChatID: "c1", Role: RoleAssistant, Content: "hi", Metadata: meta, CreatedAt: now, UpdatedAt: now}).Error; err != nil {
		t.Fatalf("insert message: %v", err)
	}
	if err := db.Create(&ResearchSession{ChatID: "c1", UserID: "u1", Status: "awaiting_refinement", State: datatypes.JSON(`{}`)}).Error; err != nil {
		t.Fatalf("insert research session: %v", err)
	}

	var got Message
	if err := db.First(&got, "id = ?", "m1").Error; err != nil {
		t.Fatalf("readback: %v", err)
	}
	if string(got.Metadata) != string(meta) {
		t.Fatalf("metadata round trip: %s", got.Metadata)
	}

	if err := db.Create(&Message{ID: "bad", ChatID: "c1", Role: "system", Content: "x", CreatedAt: now, UpdatedAt: now}).Error; err == nil {
		t.Fatalf("role check constraint not enforced")
	}

	if err := db.Delete(&Chat{}, "id = ?", "c1").Error; err != nil {
		t.Fatalf("delete chat: %v", err)
	}
	var cnt int64
	db.Model(&Message{}).Where("chat_id = ?", "c1").Count(&cnt)
	if cnt != 0 {
		t.Fatalf("messages not cascade-deleted, count=%d", cnt)
	}
	db.Model(&ResearchSession{}).Where("chat_id = ?", "c1").Count(&cnt)
	if cnt != 0 {
		t.Fatalf("research session not cascade-deleted, count=%d", cnt)
	}
}

func TestVehicle_DisplayName(t *testing.T) {
	cases := []struct {
		v    Vehicle
		want string
	}{
		{Vehicle{Year: 2019, Make: "Honda", Model: "CBR650F"}, "2019 Honda CBR650F"},
		{Vehicle{Make: "Ford", Model: "F-150"}, "Ford F-150"},
		{Vehicle{Year: 1967}, "1967"},
		{Vehicle{Nickname: "Old Blue"}, "Old Blue"},
	}
	for _, tc := range cases {
		if got := tc.v.DisplayName(); got != tc.want {
			t.Fatalf("DisplayName(%+v)=%q, want %q", tc.v, got, tc.want)
		}
	}
}

func TestDateHelpers(t *testing.T) {
	if NewDate(time.Time{}) != nil {
		t.Fatalf("zero time must map to nil")
	}
	in := time.Date(2025, 7, 25, 18, 30, 0, 0, time.FixedZone("x", 3600))
	d := NewDate(in)
	got, ok := Date(d)
	if !ok || got.Year() != 2025 || got.Month() != 7 || got.Day() != 25 || got.Hour() != 0 {
		t.Fatalf("NewDate/Date: %v %v", got, ok)
	}
	if _, ok := Date(nil); ok {
		t.Fatalf("nil date reported as set")
	}
}
