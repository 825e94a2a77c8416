package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"floorops/logger"
	"floorops/models"
	"floorops/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const defaultCapacity = 4

// unionRepairGrace keeps RepairUnions off secondaries a Unite may still be linking.
const unionRepairGrace = 2 * time.Minute

// AreaStore keeps per-area floor-plan metadata.
type AreaStore interface {
	List(ctx context.Context) ([]models.Area, error)
	Upsert(ctx context.Context, a *models.Area) error
}

// MesaService is the table registry: placement, occupancy, unions and payers.
type MesaService struct {
	Store  MesaStore
	Areas  AreaStore
	Staff  StaffDirectory
	Events Notifier
	Log    *logger.Logger
	Now    func() time.Time

	mu   sync.Mutex
	rand *rand.Rand
}

func NewMesaService(store MesaStore, staff StaffDirectory, events Notifier, log *logger.Logger) *MesaService {
	if events == nil {
		events = nopNotifier{}
	}
	return &MesaService{
		Store:  store,
		Staff:  staff,
		Events: events,
		Log:    log,
		Now:    time.Now,
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetRand replaces the random source used by placement fallback.
func (s *MesaService) SetRand(r *rand.Rand) {
	s.mu.Lock()
	s.rand = r
	s.mu.Unlock()
}

// CreateMesaInput leaves Capacity nil for the default of four seats.
type CreateMesaInput struct {
	Number   *int
	Capacity *int
	Area     string
	Location *models.Localizacao
}

type UpdateMesaInput struct {
	Number   *int
	Capacity *int
	Area     *string
	Location *models.Localizacao
}

func (s *MesaService) Create(ctx context.Context, in CreateMesaInput) (*models.Mesa, error) {
	capacity := defaultCapacity
	if in.Capacity != nil {
		capacity = *in.Capacity
	}
	if capacity < 1 {
		return nil, validation("InvalidCapacity", "capacity must be at least 1", map[string]interface{}{"capacidade": capacity})
	}
	if in.Area == "" {
		in.Area = models.AreaInterna
	}
	if !validArea(in.Area) {
		return nil, validation("InvalidArea", fmt.Sprintf("unknown area %q", in.Area), map[string]interface{}{"area": in.Area})
	}

	var number int
	if in.Number != nil {
		if *in.Number <= 0 {
			return nil, validation("InvalidNumber", "table number must be positive", map[string]interface{}{"numero": *in.Number})
		}
		number = *in.Number
	} else {
		max, err := s.Store.MaxNumber(ctx)
		if err != nil {
			return nil, fmt.Errorf("error reading table numbers: %w", err)
		}
		number = max + 1
	}

	var loc models.Localizacao
	if in.Location != nil {
		loc = *in.Location
	} else {
		siblings, err := s.Store.List(ctx, MesaFilter{Area: in.Area})
		if err != nil {
			return nil, fmt.Errorf("error listing tables of area %s: %w", in.Area, err)
		}
		s.mu.Lock()
		loc = AutoPlace(in.Area, capacity, siblings, s.rand)
		s.mu.Unlock()
	}

	now := s.Now()
	m := &models.Mesa{
		Number:    number,
		Capacity:  capacity,
		Status:    models.MesaDisponivel,
		Location:  loc,
		Area:      in.Area,
		ServedBy:  []models.Atendimento{},
		History:   []models.HistoricoMesa{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Store.Insert(ctx, m); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, conflict("DuplicateNumber", fmt.Sprintf("table number %d already exists", number), map[string]interface{}{"numero": number})
		}
		return nil, fmt.Errorf("error creating table: %w", err)
	}
	return m, nil
}

func (s *MesaService) Get(ctx context.Context, id primitive.ObjectID) (*models.Mesa, error) {
	m, err := s.Store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("TableNotFound", "table not found", map[string]interface{}{"mesa": id.Hex()})
		}
		return nil, fmt.Errorf("error retrieving table %s: %w", id.Hex(), err)
	}
	return m, nil
}

func (s *MesaService) List(ctx context.Context, filter MesaFilter) ([]models.Mesa, error) {
	if filter.Area != "" && !validArea(filter.Area) {
		return nil, validation("InvalidArea", fmt.Sprintf("unknown area %q", filter.Area), nil)
	}
	return s.Store.List(ctx, filter)
}

func (s *MesaService) Update(ctx context.Context, id primitive.ObjectID, in UpdateMesaInput) (*models.Mesa, error) {
	m, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Number != nil {
		if *in.Number <= 0 {
			return nil, validation("InvalidNumber", "table number must be positive", map[string]interface{}{"numero": *in.Number})
		}
		m.Number = *in.Number
	}
	if in.Capacity != nil {
		if *in.Capacity < 1 {
			return nil, validation("InvalidCapacity", "capacity must be at least 1", map[string]interface{}{"capacidade": *in.Capacity})
		}
		m.Capacity = *in.Capacity
	}
	if in.Area != nil {
		if !validArea(*in.Area) {
			return nil, validation("InvalidArea", fmt.Sprintf("unknown area %q", *in.Area), nil)
		}
		m.Area = *in.Area
	}
	if in.Location != nil {
		m.Location = *in.Location
	}
	if err := s.save(ctx, m); err != nil {
		return nil, err
	}
	publish(ctx, s.Events, s.Log, s.Now(), models.EventMesaAtualizada, mesaPayload(m))
	return m, nil
}

// SetStatus moves a table administratively between available, reserved and
// maintenance. Occupied tables are left alone; occupancy goes through Occupy/Release.
func (s *MesaService) SetStatus(ctx context.Context, id primitive.ObjectID, status string) (*models.Mesa, error) {
	switch status {
	case models.MesaDisponivel, models.MesaReservada, models.MesaManutencao:
	default:
		return nil, validation("InvalidStatus", fmt.Sprintf("status %q cannot be set administratively", status), map[string]interface{}{"status": status})
	}
	m, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.Status == models.MesaOcupada {
		return nil, invalidState("TableOccupied", "table is occupied", map[string]interface{}{"mesa": id.Hex(), "status": m.Status})
	}
	m.Status = status
	if status != models.MesaManutencao {
		m.UnitedInto = nil
	}
	if err := s.save(ctx, m); err != nil {
		return nil, err
	}
	publish(ctx, s.Events, s.Log, s.Now(), models.EventMesaAtualizada, mesaPayload(m))
	return m, nil
}

func (s *MesaService) Delete(ctx context.Context, id primitive.ObjectID) error {
	m, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if m.Status == models.MesaOcupada {
		return invalidState("TableOccupied", "cannot delete an occupied table", map[string]interface{}{"mesa": id.Hex()})
	}
	if err := s.Store.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("TableNotFound", "table not found", map[string]interface{}{"mesa": id.Hex()})
		}
		return fmt.Errorf("error deleting table %s: %w", id.Hex(), err)
	}
	return nil
}

// Occupy marks an available table occupied. The write is conditional on the version
// read, so of two concurrent occupy calls only one succeeds.
func (s *MesaService) Occupy(ctx context.Context, id primitive.ObjectID, clientCount int, staff string, estimatedMinutes int) (*models.Mesa, error) {
	if clientCount <= 0 {
		return nil, validation("InvalidClientCount", "client count must be positive", map[string]interface{}{"clientes": clientCount})
	}
	m, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch m.Status {
	case models.MesaDisponivel:
	case models.MesaManutencao:
		return nil, invalidState("InMaintenance", "table is under maintenance", map[string]interface{}{"mesa": id.Hex(), "status": m.Status})
	default:
		return nil, invalidState("NotAvailable", "table is not available", map[string]interface{}{"mesa": id.Hex(), "status": m.Status})
	}

	now := s.Now()
	m.Status = models.MesaOcupada
	m.Occupancy = &models.Ocupacao{StartTime: now, ClientCount: clientCount, EstimatedDuration: estimatedMinutes}
	m.ServedBy = []models.Atendimento{}
	if staff != "" {
		m.ServedBy = append(m.ServedBy, models.Atendimento{Staff: staff, Timestamp: now})
	}
	m.Payers = nil
	m.UnitedTables = nil

	if err := s.Store.Replace(ctx, m); err != nil {
		if errors.Is(err, repository.ErrStale) {
			return nil, invalidState("NotAvailable", "table was taken concurrently", map[string]interface{}{"mesa": id.Hex()})
		}
		return nil, fmt.Errorf("error occupying table %s: %w", id.Hex(), err)
	}

	s.attachServer(ctx, staff, m.ID)

	payload := mesaPayload(m)
	payload["clientes"] = clientCount
	payload["funcionario"] = staff
	publish(ctx, s.Events, s.Log, now, models.EventMesaOcupada, payload)
	return m, nil
}

// Release frees an occupied table, appending a history entry with the occupancy
// duration. Secondaries united into it go back to available and each server is
// detached from the table; both side effects are best-effort.
func (s *MesaService) Release(ctx context.Context, id primitive.ObjectID, amountConsumed float64, staff string) (*models.Mesa, error) {
	if amountConsumed < 0 {
		return nil, validation("InvalidAmount", "amount consumed cannot be negative", map[string]interface{}{"valorConsumido": amountConsumed})
	}
	m, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.Status != models.MesaOcupada {
		return nil, invalidState("NotOccupied", "table is not occupied", map[string]interface{}{"mesa": id.Hex(), "status": m.Status})
	}

	now := s.Now()
	duration := 0
	if m.Occupancy != nil {
		duration = int(now.Sub(m.Occupancy.StartTime).Minutes())
		if duration < 0 {
			duration = 0
		}
	}
	secondaries := m.UnitedTables
	servers := m.ServedBy

	m.History = append(m.History, models.HistoricoMesa{
		Timestamp:       now,
		PriorStatus:     m.Status,
		Staff:           staff,
		DurationMinutes: duration,
		AmountConsumed:  amountConsumed,
	})
	m.Status = models.MesaDisponivel
	m.Occupancy = nil
	m.Payers = nil
	m.UnitedTables = nil

	if err := s.save(ctx, m); err != nil {
		return nil, err
	}

	for _, secID := range secondaries {
		s.restoreSecondary(ctx, secID, m.ID)
	}
	s.detachServers(ctx, servers, m.ID)

	payload := mesaPayload(m)
	payload["duracaoMinutos"] = duration
	payload["valorConsumido"] = amountConsumed
	publish(ctx, s.Events, s.Log, now, models.EventMesaLiberada, payload)
	return m, nil
}

func (s *MesaService) restoreSecondary(ctx context.Context, secID, primaryID primitive.ObjectID) {
	sec, err := s.Store.FindByID(ctx, secID)
	if err != nil {
		s.Log.Warn(ctx, "union_restore_failed", "secondary table not readable", slog.String("mesa", secID.Hex()), slog.String("erro", err.Error()))
		return
	}
	if sec.Status != models.MesaManutencao || sec.UnitedInto == nil || *sec.UnitedInto != primaryID {
		return
	}
	sec.Status = models.MesaDisponivel
	sec.UnitedInto = nil
	if err := s.Store.Replace(ctx, sec); err != nil {
		s.Log.Error(ctx, "union_restore_failed", "failed to restore secondary table", err, slog.String("mesa", secID.Hex()))
	}
}

func (s *MesaService) attachServer(ctx context.Context, staff string, mesaID primitive.ObjectID) {
	if s.Staff == nil || staff == "" {
		return
	}
	if err := s.Staff.AttachTable(ctx, staff, mesaID); err != nil {
		s.Log.Error(ctx, "staff_attach_failed", "failed to attach table to staff", err,
			slog.String("funcionario", staff), slog.String("mesa", mesaID.Hex()))
	}
}

func (s *MesaService) detachServers(ctx context.Context, servers []models.Atendimento, mesaID primitive.ObjectID) {
	if s.Staff == nil {
		return
	}
	seen := make(map[string]bool, len(servers))
	for _, a := range servers {
		if a.Staff == "" || seen[a.Staff] {
			continue
		}
		seen[a.Staff] = true
		if err := s.Staff.DetachTable(ctx, a.Staff, mesaID); err != nil {
			s.Log.Error(ctx, "staff_detach_failed", "failed to detach table from staff", err,
				slog.String("funcionario", a.Staff), slog.String("mesa", mesaID.Hex()))
		}
	}
}

// Unite joins available secondaries into an occupied primary. Every secondary is
// validated before any is written; after that each save is independent, and a
// secondary left in maintenance without a link is picked up by RepairUnions.
func (s *MesaService) Unite(ctx context.Context, primaryID primitive.ObjectID, secondaryIDs []primitive.ObjectID) (*models.Mesa, error) {
	if len(secondaryIDs) == 0 {
		return nil, validation("MissingSecondaries", "at least one secondary table is required", nil)
	}
	primary, err := s.Get(ctx, primaryID)
	if err != nil {
		return nil, err
	}
	if primary.Status != models.MesaOcupada {
		return nil, invalidState("PrimaryNotOccupied", "primary table is not occupied", map[string]interface{}{"mesa": primaryID.Hex(), "status": primary.Status})
	}

	seen := make(map[primitive.ObjectID]bool, len(secondaryIDs))
	var secondaries []*models.Mesa
	for _, secID := range secondaryIDs {
		if seen[secID] {
			continue
		}
		seen[secID] = true
		if secID == primaryID {
			return nil, invalidState("SecondaryNotAvailable", "secondary table is not available", map[string]interface{}{"mesa": secID.Hex(), "status": primary.Status})
		}
		sec, err := s.Store.FindByID(ctx, secID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, notFound("SecondaryNotFound", "secondary table not found", map[string]interface{}{"mesa": secID.Hex()})
			}
			return nil, fmt.Errorf("error retrieving table %s: %w", secID.Hex(), err)
		}
		if sec.Status != models.MesaDisponivel {
			return nil, invalidState("SecondaryNotAvailable", "secondary table is not available", map[string]interface{}{"mesa": secID.Hex(), "status": sec.Status})
		}
		secondaries = append(secondaries, sec)
	}

	for _, sec := range secondaries {
		sec.Status = models.MesaManutencao
		pid := primaryID
		sec.UnitedInto = &pid
		if err := s.save(ctx, sec); err != nil {
			return nil, err
		}
	}

	for _, sec := range secondaries {
		if !containsID(primary.UnitedTables, sec.ID) {
			primary.UnitedTables = append(primary.UnitedTables, sec.ID)
		}
	}
	if err := s.save(ctx, primary); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(secondaries))
	for _, sec := range secondaries {
		ids = append(ids, sec.ID.Hex())
	}
	payload := mesaPayload(primary)
	payload["mesasUnidas"] = ids
	publish(ctx, s.Events, s.Log, s.Now(), models.EventMesaUnida, payload)
	return primary, nil
}

// RepairUnions returns to available every table left in maintenance by a union whose
// primary is no longer occupied or does not list it. Secondaries changed within
// unionRepairGrace are left alone: Unite saves them before the primary.
func (s *MesaService) RepairUnions(ctx context.Context) ([]primitive.ObjectID, error) {
	candidates, err := s.Store.List(ctx, MesaFilter{Status: models.MesaManutencao})
	if err != nil {
		return nil, fmt.Errorf("error listing tables in maintenance: %w", err)
	}
	var repaired []primitive.ObjectID
	cutoff := s.Now().Add(-unionRepairGrace)
	for i := range candidates {
		sec := &candidates[i]
		if sec.UnitedInto == nil || sec.UpdatedAt.After(cutoff) {
			continue
		}
		primary, err := s.Store.FindByID(ctx, *sec.UnitedInto)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return repaired, fmt.Errorf("error retrieving table %s: %w", sec.UnitedInto.Hex(), err)
		}
		if primary != nil && primary.Status == models.MesaOcupada && containsID(primary.UnitedTables, sec.ID) {
			continue
		}
		sec.Status = models.MesaDisponivel
		sec.UnitedInto = nil
		if err := s.Store.Replace(ctx, sec); err != nil {
			if errors.Is(err, repository.ErrStale) {
				continue
			}
			return repaired, fmt.Errorf("error repairing table %s: %w", sec.ID.Hex(), err)
		}
		repaired = append(repaired, sec.ID)
	}
	if len(repaired) > 0 {
		s.Log.Info(ctx, "union_repair", "restored orphaned united tables", slog.Int("total", len(repaired)))
	}
	return repaired, nil
}

func (s *MesaService) AddPayer(ctx context.Context, id primitive.ObjectID, name, identifier string) (*models.Mesa, error) {
	if name == "" || identifier == "" {
		return nil, validation("MissingPayerData", "payer name and identifier are required", nil)
	}
	m, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.Status != models.MesaOcupada {
		return nil, invalidState("NotOccupied", "table is not occupied", map[string]interface{}{"mesa": id.Hex(), "status": m.Status})
	}
	if m.PayerIndex(identifier) >= 0 {
		return nil, conflict("DuplicateIdentifier", fmt.Sprintf("payer %q already exists on this table", identifier), map[string]interface{}{"identificador": identifier})
	}
	m.Payers = append(m.Payers, models.Pagante{Name: name, Identifier: identifier, Orders: []primitive.ObjectID{}})
	if err := s.save(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// LinkPayerOrder records orderID under the table payer with the payer's identifier,
// creating the payer entry when it does not exist yet.
func (s *MesaService) LinkPayerOrder(ctx context.Context, id primitive.ObjectID, payer models.ClientePedido, orderID primitive.ObjectID) error {
	m, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if i := m.PayerIndex(payer.Identifier); i >= 0 {
		if !containsID(m.Payers[i].Orders, orderID) {
			m.Payers[i].Orders = append(m.Payers[i].Orders, orderID)
		}
	} else {
		m.Payers = append(m.Payers, models.Pagante{
			Name:       payer.Name,
			Identifier: payer.Identifier,
			Orders:     []primitive.ObjectID{orderID},
		})
	}
	return s.save(ctx, m)
}

// AddServer records another staff member attending the current occupancy.
func (s *MesaService) AddServer(ctx context.Context, id primitive.ObjectID, staff string) (*models.Mesa, error) {
	if staff == "" {
		return nil, validation("MissingStaff", "staff reference is required", nil)
	}
	m, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.Status != models.MesaOcupada {
		return nil, invalidState("NotOccupied", "table is not occupied", map[string]interface{}{"mesa": id.Hex(), "status": m.Status})
	}
	m.ServedBy = append(m.ServedBy, models.Atendimento{Staff: staff, Timestamp: s.Now()})
	if err := s.save(ctx, m); err != nil {
		return nil, err
	}
	s.attachServer(ctx, staff, m.ID)
	return m, nil
}

// Reopen puts an available table back to occupied so billing can continue. It is a
// no-op when the table is already occupied.
func (s *MesaService) Reopen(ctx context.Context, id primitive.ObjectID) (*models.Mesa, error) {
	m, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch m.Status {
	case models.MesaOcupada:
		return m, nil
	case models.MesaDisponivel:
	default:
		return nil, invalidState("NotAvailable", "table cannot be reopened", map[string]interface{}{"mesa": id.Hex(), "status": m.Status})
	}
	now := s.Now()
	m.Status = models.MesaOcupada
	m.Occupancy = &models.Ocupacao{StartTime: now, ClientCount: 1}
	if err := s.save(ctx, m); err != nil {
		return nil, err
	}
	publish(ctx, s.Events, s.Log, now, models.EventMesaOcupada, mesaPayload(m))
	return m, nil
}

type AreaLayout struct {
	Area   string        `json:"area"`
	Bounds AreaBounds    `json:"limites"`
	Plan   *models.Area  `json:"planta,omitempty"`
	Tables []models.Mesa `json:"mesas"`
}

// Layout groups every table by area together with the area bounds and floor plan.
func (s *MesaService) Layout(ctx context.Context) ([]AreaLayout, error) {
	all, err := s.Store.List(ctx, MesaFilter{})
	if err != nil {
		return nil, fmt.Errorf("error listing tables: %w", err)
	}
	plans := map[string]*models.Area{}
	if s.Areas != nil {
		areas, err := s.Areas.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("error listing areas: %w", err)
		}
		for i := range areas {
			plans[areas[i].Name] = &areas[i]
		}
	}
	order := []string{models.AreaInterna, models.AreaExterna, models.AreaVaranda, models.AreaPrivativa}
	out := make([]AreaLayout, 0, len(order))
	for _, area := range order {
		l := AreaLayout{Area: area, Bounds: AreaLayouts[area], Plan: plans[area], Tables: []models.Mesa{}}
		for _, m := range all {
			if m.Area == area {
				l.Tables = append(l.Tables, m)
			}
		}
		out = append(out, l)
	}
	return out, nil
}

// SetAreaPlan stores the floor-plan image urls of an area.
func (s *MesaService) SetAreaPlan(ctx context.Context, area, planURL, previewURL string) (*models.Area, error) {
	if !validArea(area) {
		return nil, validation("InvalidArea", fmt.Sprintf("unknown area %q", area), nil)
	}
	if s.Areas == nil {
		return nil, errors.New("area store not configured")
	}
	a := &models.Area{Name: area, PlanURL: planURL, PreviewURL: previewURL, UpdatedAt: s.Now()}
	if err := s.Areas.Upsert(ctx, a); err != nil {
		return nil, fmt.Errorf("error saving area %s: %w", area, err)
	}
	return a, nil
}

func (s *MesaService) save(ctx context.Context, m *models.Mesa) error {
	m.UpdatedAt = s.Now()
	err := s.Store.Replace(ctx, m)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrStale):
		return conflict("TableChanged", "table was modified concurrently, reload and retry", map[string]interface{}{"mesa": m.ID.Hex()})
	case errors.Is(err, repository.ErrDuplicate):
		return conflict("DuplicateNumber", fmt.Sprintf("table number %d already exists", m.Number), map[string]interface{}{"numero": m.Number})
	case errors.Is(err, repository.ErrNotFound):
		return notFound("TableNotFound", "table not found", map[string]interface{}{"mesa": m.ID.Hex()})
	default:
		return fmt.Errorf("error saving table %s: %w", m.ID.Hex(), err)
	}
}

func mesaPayload(m *models.Mesa) map[string]interface{} {
	return map[string]interface{}{
		"mesa":   m.ID.Hex(),
		"numero": m.Number,
		"status": m.Status,
		"area":   m.Area,
	}
}

func containsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
