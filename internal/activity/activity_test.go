package activity

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
)

func TestRecordInsertsEntry(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()
	svc := NewService(db)

	entry := Entry{
		Type:         EntryAppointmentBooked,
		ActorID:      uuid.NewString(),
		Participants: []string{uuid.NewString(), uuid.NewString()},
		Summary:      "Chris booked an appointment with Dana",
		Details:      json.RawMessage(`{"status":"scheduled"}`),
	}

	mock.ExpectExec("INSERT INTO user_activity").
		WithArgs(sqlmock.AnyArg(), string(EntryAppointmentBooked), entry.ActorID,
			sqlmock.AnyArg(), entry.Summary, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := svc.Record(context.Background(), entry); err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRecordDefaultsIDAndTimestamp(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()
	svc := NewService(db)

	mock.ExpectExec("INSERT INTO user_activity").
		WillReturnResult(sqlmock.NewResult(0, 1))

	entry := Entry{Type: EntryAppointmentCompleted, ActorID: "actor"}
	if err := svc.Record(context.Background(), entry); err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListForUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()
	svc := NewService(db)

	userID := uuid.NewString()
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "type", "actor_id", "participants", "summary", "details", "created_at"}).
		AddRow("e-2", string(EntryAppointmentCancelled), "actor-1", "{"+userID+"}", "cancelled", `{"k":"v"}`, now).
		AddRow("e-1", string(EntryAppointmentBooked), "actor-1", "{"+userID+"}", "booked", nil, now.Add(-time.Hour))

	mock.ExpectQuery("FROM user_activity").
		WithArgs(userID, 50).
		WillReturnRows(rows)

	entries, err := svc.ListForUser(context.Background(), userID, 0)
	if err != nil {
		t.Fatalf("ListForUser returned error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].ID != "e-2" || entries[0].Type != EntryAppointmentCancelled {
		t.Errorf("unexpected first entry %+v", entries[0])
	}
	if string(entries[0].Details) != `{"k":"v"}` {
		t.Errorf("details = %s", entries[0].Details)
	}
	if entries[1].Details != nil {
		t.Errorf("nil details should stay nil, got %s", entries[1].Details)
	}
	if len(entries[0].Participants) != 1 || entries[0].Participants[0] != userID {
		t.Errorf("participants = %v", entries[0].Participants)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestNewServiceRequiresDB(t *testing.T) {
	if svc := NewService(nil); svc != nil {
		t.Fatal("expected nil service without a database")
	}
}
