package state

import (
	"testing"

	"github.com/example/kigalisim/internal/engine/number"
)

func TestNewStreamUpdateDefaultsPropagateChanges(t *testing.T) {
	upd := NewStreamUpdate(StreamDomestic, number.New(10, "kg"))
	if !upd.PropagateChanges {
		t.Error("expected NewStreamUpdate to default PropagateChanges to true")
	}
	if upd.Name != StreamDomestic || upd.Value.Value != 10 {
		t.Errorf("unexpected StreamUpdate: %+v", upd)
	}
	if upd.Scope != nil {
		t.Error("expected Scope to be nil by default")
	}
}
