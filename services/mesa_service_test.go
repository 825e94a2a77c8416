package services_test

import (
	"sync"
	"testing"
	"time"

	"floorops/models"
	"floorops/services"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCreateTableAutoNumberAndPlacement(t *testing.T) {
	f := newFixture(t)

	m, err := f.tables.Create(f.ctx, services.CreateMesaInput{})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if m.Number != 1 || m.Capacity != 4 || m.Area != models.AreaInterna {
		t.Errorf("got number=%d capacity=%d area=%s, want 1/4/interna", m.Number, m.Capacity, m.Area)
	}
	if m.Location != (models.Localizacao{X: 400, Y: 300}) {
		t.Errorf("location = %+v, want area center", m.Location)
	}
	if m.Status != models.MesaDisponivel {
		t.Errorf("status = %s, want disponivel", m.Status)
	}

	second, err := f.tables.Create(f.ctx, services.CreateMesaInput{Capacity: intPtr(6)})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if second.Number != 2 {
		t.Errorf("second number = %d, want 2", second.Number)
	}
	if second.Location == m.Location {
		t.Errorf("second table placed on top of the first at %+v", second.Location)
	}
}

func TestCreateTableErrors(t *testing.T) {
	f := newFixture(t)
	f.table(t, 5)

	five, zero := 5, 0
	tests := []struct {
		name string
		in   services.CreateMesaInput
		kind services.Kind
		code string
	}{
		{"duplicate number", services.CreateMesaInput{Number: &five}, services.KindConflict, "DuplicateNumber"},
		{"zero number", services.CreateMesaInput{Number: &zero}, services.KindValidation, "InvalidNumber"},
		{"zero capacity", services.CreateMesaInput{Capacity: &zero}, services.KindValidation, "InvalidCapacity"},
		{"negative capacity", services.CreateMesaInput{Capacity: intPtr(-2)}, services.KindValidation, "InvalidCapacity"},
		{"unknown area", services.CreateMesaInput{Area: "cozinha"}, services.KindValidation, "InvalidArea"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.tables.Create(f.ctx, tt.in)
			wantErr(t, err, tt.kind, tt.code)
		})
	}
}

func TestOccupy(t *testing.T) {
	f := newFixture(t)
	m := f.table(t, 1)

	for _, n := range []int{0, -3} {
		_, err := f.tables.Occupy(f.ctx, m.ID, n, f.waiter, 0)
		wantErr(t, err, services.KindValidation, "InvalidClientCount")
	}

	got, err := f.tables.Occupy(f.ctx, m.ID, 3, f.waiter, 45)
	if err != nil {
		t.Fatalf("Occupy() error = %v", err)
	}
	if got.Status != models.MesaOcupada || got.Occupancy == nil || got.Occupancy.ClientCount != 3 {
		t.Fatalf("unexpected table after occupy: %+v", got)
	}
	if !got.Occupancy.StartTime.Equal(f.clock.Now()) {
		t.Errorf("start time = %v, want %v", got.Occupancy.StartTime, f.clock.Now())
	}
	if len(got.ServedBy) != 1 || got.ServedBy[0].Staff != f.waiter {
		t.Errorf("servedBy = %+v", got.ServedBy)
	}
	if f.events.count(models.EventMesaOcupada) != 1 {
		t.Errorf("events = %v", f.events.names())
	}

	staff, err := f.staff.FindByPhone(f.ctx, "11999990000")
	if err != nil {
		t.Fatal(err)
	}
	if len(staff.Tables) != 1 || staff.Tables[0] != m.ID {
		t.Errorf("staff tables = %v, want [%s]", staff.Tables, m.ID.Hex())
	}

	_, err = f.tables.Occupy(f.ctx, m.ID, 2, "", 0)
	wantErr(t, err, services.KindInvalidState, "NotAvailable")

	_, err = f.tables.Occupy(f.ctx, primitive.NewObjectID(), 2, "", 0)
	wantErr(t, err, services.KindNotFound, "TableNotFound")
}

func TestOccupyMaintenance(t *testing.T) {
	f := newFixture(t)
	m := f.table(t, 1)
	if _, err := f.tables.SetStatus(f.ctx, m.ID, models.MesaManutencao); err != nil {
		t.Fatal(err)
	}
	_, err := f.tables.Occupy(f.ctx, m.ID, 2, "", 0)
	wantErr(t, err, services.KindInvalidState, "InMaintenance")
}

func TestOccupyConcurrent(t *testing.T) {
	f := newFixture(t)
	m := f.table(t, 1)

	const callers = 8
	var wg sync.WaitGroup
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.tables.Occupy(f.ctx, m.ID, 2, "", 0)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	won := 0
	for err := range results {
		if err == nil {
			won++
			continue
		}
		if services.KindOf(err) != services.KindInvalidState {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if won != 1 {
		t.Fatalf("%d callers occupied the table, want exactly 1", won)
	}
}

func TestRelease(t *testing.T) {
	f := newFixture(t)
	m := f.occupiedTable(t, 1)
	if _, err := f.tables.AddPayer(f.ctx, m.ID, "Joao", "joao"); err != nil {
		t.Fatal(err)
	}

	f.clock.Advance(95*time.Minute + 40*time.Second)
	got, err := f.tables.Release(f.ctx, m.ID, 120.5, f.waiter)
	if err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if got.Status != models.MesaDisponivel || got.Occupancy != nil || len(got.Payers) != 0 || len(got.UnitedTables) != 0 {
		t.Fatalf("table not reset: %+v", got)
	}
	if len(got.History) != 1 {
		t.Fatalf("history = %+v", got.History)
	}
	h := got.History[0]
	if h.DurationMinutes != 95 || h.AmountConsumed != 120.5 || h.PriorStatus != models.MesaOcupada {
		t.Errorf("history entry = %+v", h)
	}

	staff, _ := f.staff.FindByPhone(f.ctx, "11999990000")
	if len(staff.Tables) != 0 {
		t.Errorf("staff still assigned to %v", staff.Tables)
	}

	_, err = f.tables.Release(f.ctx, m.ID, 0, "")
	wantErr(t, err, services.KindInvalidState, "NotOccupied")

	_, err = f.tables.Release(f.ctx, m.ID, -1, "")
	wantErr(t, err, services.KindValidation, "InvalidAmount")
}

func TestReleaseClockAnomaly(t *testing.T) {
	f := newFixture(t)
	m := f.occupiedTable(t, 1)
	f.clock.Advance(-10 * time.Minute)
	got, err := f.tables.Release(f.ctx, m.ID, 0, "")
	if err != nil {
		t.Fatal(err)
	}
	if d := got.History[0].DurationMinutes; d != 0 {
		t.Errorf("duration = %d, want 0", d)
	}
}

func TestReleaseThenOccupyResets(t *testing.T) {
	f := newFixture(t)
	m := f.occupiedTable(t, 1)
	sec := f.table(t, 2)
	if _, err := f.tables.AddPayer(f.ctx, m.ID, "Maria", "maria"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.tables.Unite(f.ctx, m.ID, []primitive.ObjectID{sec.ID}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.tables.Release(f.ctx, m.ID, 10, ""); err != nil {
		t.Fatal(err)
	}
	got, err := f.tables.Occupy(f.ctx, m.ID, 4, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Payers) != 0 || len(got.UnitedTables) != 0 || got.Occupancy.ClientCount != 4 {
		t.Errorf("occupancy not reset: %+v", got)
	}
}

func TestUnite(t *testing.T) {
	f := newFixture(t)
	primary := f.occupiedTable(t, 1)
	a, b := f.table(t, 2), f.table(t, 3)

	got, err := f.tables.Unite(f.ctx, primary.ID, []primitive.ObjectID{a.ID, b.ID})
	if err != nil {
		t.Fatalf("Unite() error = %v", err)
	}
	if len(got.UnitedTables) != 2 {
		t.Fatalf("unitedTables = %v", got.UnitedTables)
	}
	for _, id := range []primitive.ObjectID{a.ID, b.ID} {
		sec, _ := f.tables.Get(f.ctx, id)
		if sec.Status != models.MesaManutencao || sec.UnitedInto == nil || *sec.UnitedInto != primary.ID {
			t.Errorf("secondary %d = %s united into %v", sec.Number, sec.Status, sec.UnitedInto)
		}
	}

	if _, err := f.tables.Release(f.ctx, primary.ID, 0, ""); err != nil {
		t.Fatal(err)
	}
	for _, id := range []primitive.ObjectID{a.ID, b.ID} {
		sec, _ := f.tables.Get(f.ctx, id)
		if sec.Status != models.MesaDisponivel || sec.UnitedInto != nil {
			t.Errorf("secondary %d not restored: %s", sec.Number, sec.Status)
		}
	}
}

func TestUniteValidatesBeforeMutating(t *testing.T) {
	f := newFixture(t)
	primary := f.occupiedTable(t, 1)
	free := f.table(t, 2)
	broken := f.table(t, 3)
	if _, err := f.tables.SetStatus(f.ctx, broken.ID, models.MesaManutencao); err != nil {
		t.Fatal(err)
	}

	_, err := f.tables.Unite(f.ctx, primary.ID, []primitive.ObjectID{free.ID, broken.ID})
	wantErr(t, err, services.KindInvalidState, "SecondaryNotAvailable")

	got, _ := f.tables.Get(f.ctx, free.ID)
	if got.Status != models.MesaDisponivel {
		t.Errorf("free secondary mutated to %s", got.Status)
	}
	p, _ := f.tables.Get(f.ctx, primary.ID)
	if len(p.UnitedTables) != 0 {
		t.Errorf("primary mutated: %v", p.UnitedTables)
	}

	_, err = f.tables.Unite(f.ctx, primary.ID, []primitive.ObjectID{free.ID, primitive.NewObjectID()})
	wantErr(t, err, services.KindNotFound, "SecondaryNotFound")
}

func TestUniteErrors(t *testing.T) {
	f := newFixture(t)
	occupied := f.occupiedTable(t, 1)
	other := f.occupiedTable(t, 2)
	free := f.table(t, 3)

	_, err := f.tables.Unite(f.ctx, free.ID, []primitive.ObjectID{occupied.ID})
	wantErr(t, err, services.KindInvalidState, "PrimaryNotOccupied")

	_, err = f.tables.Unite(f.ctx, occupied.ID, []primitive.ObjectID{other.ID})
	wantErr(t, err, services.KindInvalidState, "SecondaryNotAvailable")

	_, err = f.tables.Unite(f.ctx, occupied.ID, []primitive.ObjectID{occupied.ID})
	wantErr(t, err, services.KindInvalidState, "SecondaryNotAvailable")

	_, err = f.tables.Unite(f.ctx, occupied.ID, nil)
	wantErr(t, err, services.KindValidation, "MissingSecondaries")
}

func TestRepairUnions(t *testing.T) {
	f := newFixture(t)
	primary := f.occupiedTable(t, 1)
	linked, orphan := f.table(t, 2), f.table(t, 3)
	if _, err := f.tables.Unite(f.ctx, primary.ID, []primitive.ObjectID{linked.ID, orphan.ID}); err != nil {
		t.Fatal(err)
	}

	// simulate a crash after the secondary save: the primary lost the orphan link
	p, _ := f.mesas.FindByID(f.ctx, primary.ID)
	p.UnitedTables = []primitive.ObjectID{linked.ID}
	if err := f.mesas.Replace(f.ctx, p); err != nil {
		t.Fatal(err)
	}

	f.clock.Advance(5 * time.Minute)
	repaired, err := f.tables.RepairUnions(f.ctx)
	if err != nil {
		t.Fatalf("RepairUnions() error = %v", err)
	}
	if len(repaired) != 1 || repaired[0] != orphan.ID {
		t.Fatalf("repaired = %v, want [%s]", repaired, orphan.ID.Hex())
	}
	got, _ := f.tables.Get(f.ctx, orphan.ID)
	if got.Status != models.MesaDisponivel {
		t.Errorf("orphan status = %s", got.Status)
	}
	still, _ := f.tables.Get(f.ctx, linked.ID)
	if still.Status != models.MesaManutencao {
		t.Errorf("linked secondary status = %s", still.Status)
	}
}

func TestRepairUnionsSkipsUnionInProgress(t *testing.T) {
	f := newFixture(t)
	primary := f.occupiedTable(t, 1)
	sec := f.table(t, 2)

	// Unite has saved the secondary but not yet the primary
	s, _ := f.mesas.FindByID(f.ctx, sec.ID)
	s.Status = models.MesaManutencao
	s.UnitedInto = &primary.ID
	s.UpdatedAt = f.clock.Now()
	if err := f.mesas.Replace(f.ctx, s); err != nil {
		t.Fatal(err)
	}

	f.clock.Advance(30 * time.Second)
	repaired, err := f.tables.RepairUnions(f.ctx)
	if err != nil || len(repaired) != 0 {
		t.Fatalf("RepairUnions() = %v, %v, want nothing repaired", repaired, err)
	}
	got, _ := f.tables.Get(f.ctx, sec.ID)
	if got.Status != models.MesaManutencao {
		t.Errorf("secondary status = %s, want manutencao", got.Status)
	}

	f.clock.Advance(5 * time.Minute)
	repaired, err = f.tables.RepairUnions(f.ctx)
	if err != nil || len(repaired) != 1 {
		t.Fatalf("RepairUnions() = %v, %v, want the stale secondary repaired", repaired, err)
	}
}

func TestAddPayer(t *testing.T) {
	f := newFixture(t)
	free := f.table(t, 1)
	m := f.occupiedTable(t, 2)

	_, err := f.tables.AddPayer(f.ctx, free.ID, "Joao", "joao")
	wantErr(t, err, services.KindInvalidState, "NotOccupied")

	got, err := f.tables.AddPayer(f.ctx, m.ID, "Joao", "joao")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Payers) != 1 || got.Payers[0].Identifier != "joao" {
		t.Fatalf("payers = %+v", got.Payers)
	}

	_, err = f.tables.AddPayer(f.ctx, m.ID, "Joao Silva", "joao")
	wantErr(t, err, services.KindConflict, "DuplicateIdentifier")

	_, err = f.tables.AddPayer(f.ctx, m.ID, "", "x")
	wantErr(t, err, services.KindValidation, "MissingPayerData")
}

func TestSetStatusAndDelete(t *testing.T) {
	f := newFixture(t)
	m := f.occupiedTable(t, 1)
	free := f.table(t, 2)

	_, err := f.tables.SetStatus(f.ctx, m.ID, models.MesaReservada)
	wantErr(t, err, services.KindInvalidState, "TableOccupied")

	_, err = f.tables.SetStatus(f.ctx, free.ID, models.MesaOcupada)
	wantErr(t, err, services.KindValidation, "InvalidStatus")

	got, err := f.tables.SetStatus(f.ctx, free.ID, models.MesaReservada)
	if err != nil || got.Status != models.MesaReservada {
		t.Fatalf("SetStatus() = %v, %v", got, err)
	}

	err = f.tables.Delete(f.ctx, m.ID)
	wantErr(t, err, services.KindInvalidState, "TableOccupied")

	if err := f.tables.Delete(f.ctx, free.ID); err != nil {
		t.Fatal(err)
	}
	_, err = f.tables.Get(f.ctx, free.ID)
	wantErr(t, err, services.KindNotFound, "TableNotFound")
}

func TestUpdateTableNumberCollision(t *testing.T) {
	f := newFixture(t)
	f.table(t, 1)
	m := f.table(t, 2)
	one := 1
	_, err := f.tables.Update(f.ctx, m.ID, services.UpdateMesaInput{Number: &one})
	wantErr(t, err, services.KindConflict, "DuplicateNumber")

	seven, area := 7, models.AreaVaranda
	got, err := f.tables.Update(f.ctx, m.ID, services.UpdateMesaInput{Number: &seven, Area: &area})
	if err != nil {
		t.Fatal(err)
	}
	if got.Number != 7 || got.Area != models.AreaVaranda {
		t.Errorf("got %+v", got)
	}
}

func TestReopen(t *testing.T) {
	f := newFixture(t)
	m := f.table(t, 1)
	got, err := f.tables.Reopen(f.ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.MesaOcupada || got.Occupancy == nil || got.Occupancy.ClientCount != 1 {
		t.Errorf("reopened table = %+v", got)
	}
	again, err := f.tables.Reopen(f.ctx, m.ID)
	if err != nil || again.Version != got.Version {
		t.Errorf("second reopen should be a no-op: %v %v", again, err)
	}
}

func TestLayout(t *testing.T) {
	f := newFixture(t)
	f.table(t, 1)
	area := models.AreaExterna
	m := f.table(t, 2)
	if _, err := f.tables.Update(f.ctx, m.ID, services.UpdateMesaInput{Area: &area}); err != nil {
		t.Fatal(err)
	}
	layout, err := f.tables.Layout(f.ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(layout) != 4 {
		t.Fatalf("layout has %d areas", len(layout))
	}
	if len(layout[0].Tables) != 1 || len(layout[1].Tables) != 1 || len(layout[2].Tables) != 0 {
		t.Errorf("unexpected grouping: %+v", layout)
	}
}
