package deepagent

import (
	"testing"

	"github.com/google/uuid"
)

func TestNewIDUniqueAndSortable(t *testing.T) {
	a, b := NewID(), NewID()
	if a == b {
		t.Error("ids not unique")
	}
	parsed, err := uuid.Parse(a)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.Version() != 7 {
		t.Errorf("version = %d", parsed.Version())
	}
	if a >= b {
		t.Errorf("ids not time-sortable: %s >= %s", a, b)
	}
}

func TestShortID(t *testing.T) {
	id := ShortID()
	if len(id) != 8 {
		t.Errorf("len = %d", len(id))
	}
	if id == ShortID() {
		t.Error("short ids collided")
	}
}
